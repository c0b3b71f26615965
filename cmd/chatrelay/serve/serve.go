package servecmder

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/papercomputeco/chatrelay/pkg/auth"
	"github.com/papercomputeco/chatrelay/pkg/config"
	"github.com/papercomputeco/chatrelay/pkg/logger"
	"github.com/papercomputeco/chatrelay/pkg/metrics"
	"github.com/papercomputeco/chatrelay/pkg/profile"
	"github.com/papercomputeco/chatrelay/pkg/upstream"
	"github.com/papercomputeco/chatrelay/proxy"
)

const serveLongDesc string = `Run the chat relay server.

Settings come from the built-in defaults, then the TOML file given
with --config, then the environment (SUPABASE_URL, SUPABASE_ANON_KEY,
OPENAI_API_KEY, CHATRELAY_*), then flags.

Examples:
  chatrelay serve
  chatrelay serve --config /etc/chatrelay.toml --listen :9000 --debug`

const serveShortDesc string = "Run the chat relay server"

// shutdownGrace bounds how long open streams may keep running after a signal.
const shutdownGrace = 30 * time.Second

type serveCommander struct {
	configPath string
	listenAddr string
	debug      bool
}

func NewServeCmd() *cobra.Command {
	return newServeCmdFor(&serveCommander{})
}

func newServeCmdFor(cmder *serveCommander) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: serveShortDesc,
		Long:  serveLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmder.run(cmd)
		},
	}

	cmd.Flags().StringVarP(&cmder.configPath, "config", "c", "", "Path to a TOML config file")
	cmd.Flags().StringVarP(&cmder.listenAddr, "listen", "l", "", "Address to listen on (overrides config)")
	cmd.Flags().BoolVar(&cmder.debug, "debug", false, "Enable debug logging")

	return cmd
}

// loadConfig resolves the configuration with flags applied last.
func (c *serveCommander) loadConfig(cmd *cobra.Command, lookup config.LookupFunc) (*config.Config, error) {
	cfg, err := config.LoadWithEnv(c.configPath, lookup)
	if err != nil {
		return nil, fmt.Errorf("could not load config: %w", err)
	}

	if cmd.Flags().Changed("listen") {
		cfg.ListenAddr = c.listenAddr
	}
	if cmd.Flags().Changed("debug") {
		cfg.Debug = c.debug
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func (c *serveCommander) run(cmd *cobra.Command) error {
	cfg, err := c.loadConfig(cmd, os.LookupEnv)
	if err != nil {
		return err
	}

	log := logger.NewLogger(cfg.Debug, cfg.LogFormat)
	defer log.Sync()

	log.Info("chat relay starting",
		zap.String("listen", cfg.ListenAddr),
		zap.String("upstream", cfg.Upstream.BaseURL),
		zap.String("model", cfg.Upstream.Generation.Model),
		zap.Bool("debug", cfg.Debug),
	)

	p, err := buildProxy(cfg, log)
	if err != nil {
		return err
	}
	defer p.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- p.Run()
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("relay server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("shutting down, waiting for open streams")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()

	if err := p.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("shutdown failed: %w", err)
	}

	return nil
}

// buildProxy wires the collaborators described by cfg into a relay.
func buildProxy(cfg *config.Config, log *zap.Logger) (*proxy.Proxy, error) {
	validator := auth.NewSupabaseValidator(auth.SupabaseConfig{
		URL:     cfg.Identity.URL,
		AnonKey: cfg.Identity.AnonKey,
		Timeout: cfg.IdentityTimeout(),
	}, log.Named("auth"))

	provider := upstream.NewOpenAIProvider(upstream.OpenAIConfig{
		BaseURL: cfg.Upstream.BaseURL,
		APIKey:  cfg.Upstream.APIKey,
		Params:  cfg.Upstream.Generation,
		Timeout: cfg.UpstreamTimeout(),
	}, log.Named("upstream"))

	profiles, err := profile.NewSQLiteStore(cfg.Profiles.DBPath)
	if err != nil {
		return nil, fmt.Errorf("could not open profile store: %w", err)
	}

	p, err := proxy.New(proxy.Config{ListenAddr: cfg.ListenAddr}, proxy.Dependencies{
		Validator: validator,
		Provider:  provider,
		Profiles:  profiles,
		Metrics:   metrics.New(),
	}, log)
	if err != nil {
		profiles.Close()
		return nil, fmt.Errorf("could not create relay: %w", err)
	}

	return p, nil
}
