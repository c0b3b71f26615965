// Package proxy provides the chat relay: an authenticated HTTP front end that
// forwards conversations to a completion provider and streams the reply back.
package proxy

import (
	"context"
	"errors"
	"net"
	"time"

	"github.com/gofiber/adaptor/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/papercomputeco/chatrelay/pkg/auth"
	"github.com/papercomputeco/chatrelay/pkg/llm"
	"github.com/papercomputeco/chatrelay/pkg/metrics"
	"github.com/papercomputeco/chatrelay/pkg/profile"
	"github.com/papercomputeco/chatrelay/pkg/upstream"
)

const requestIDKey = "requestid"

// Proxy is the chat relay server. It holds no per-request state: every
// request owns its principal, message list and fragment stream.
type Proxy struct {
	config    Config
	validator auth.Validator
	provider  upstream.Provider
	profiles  profile.Store
	metrics   *metrics.Recorder
	logger    *zap.Logger
	server    *fiber.App
}

// New creates a new Proxy.
func New(config Config, deps Dependencies, logger *zap.Logger) (*Proxy, error) {
	if deps.Validator == nil {
		return nil, errors.New("credential validator is required")
	}
	if deps.Provider == nil {
		return nil, errors.New("completion provider is required")
	}
	if deps.Metrics == nil {
		deps.Metrics = metrics.New()
	}

	app := fiber.New(fiber.Config{
		// Disable startup message for cleaner logs
		DisableStartupMessage: true,
	})

	p := &Proxy{
		config:    config,
		validator: deps.Validator,
		provider:  deps.Provider,
		profiles:  deps.Profiles,
		metrics:   deps.Metrics,
		logger:    logger,
		server:    app,
	}

	p.routes(app)

	return p, nil
}

func (p *Proxy) routes(app *fiber.App) {
	app.Use(recover.New())
	app.Use(requestid.New(requestid.Config{
		Generator:  uuid.NewString,
		ContextKey: requestIDKey,
	}))

	// Relay endpoints dispatch on method themselves so that preflight and
	// rejected methods still get CORS headers.
	app.All("/chat-stream", p.handleChatStream)
	app.All("/chat", p.handleChat)

	if p.profiles != nil {
		app.All("/profile", p.handleProfile)
	}

	// Health check
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(map[string]string{"status": "ok"})
	})

	app.Get("/metrics", adaptor.HTTPHandler(p.metrics.Handler()))
}

// Run starts the relay server on the configured listening address.
func (p *Proxy) Run() error {
	p.logger.Info("starting relay server",
		zap.String("listen", p.config.ListenAddr),
	)

	return p.server.Listen(p.config.ListenAddr)
}

// RunWithListener serves the relay on an existing listener.
func (p *Proxy) RunWithListener(ln net.Listener) error {
	p.logger.Info("starting relay server",
		zap.String("listen", ln.Addr().String()),
	)

	return p.server.Listener(ln)
}

// Shutdown stops accepting connections and waits for in-flight requests,
// open streams included, until ctx expires.
func (p *Proxy) Shutdown(ctx context.Context) error {
	return p.server.ShutdownWithContext(ctx)
}

// Close shuts down the proxy and releases resources.
func (p *Proxy) Close() error {
	if p.profiles == nil {
		return nil
	}
	return p.profiles.Close()
}

// requestLogger returns a logger tagged with the request id.
func (p *Proxy) requestLogger(c *fiber.Ctx) *zap.Logger {
	id, _ := c.Locals(requestIDKey).(string)
	return p.logger.With(
		zap.String("request_id", id),
		zap.String("method", c.Method()),
		zap.String("path", c.Path()),
	)
}

// authenticate runs the credential check for a request.
func (p *Proxy) authenticate(c *fiber.Ctx) (*auth.Principal, error) {
	start := time.Now()
	principal, err := p.validator.Validate(c.UserContext(), c.Get(fiber.HeaderAuthorization))
	p.metrics.AuthObserved(time.Since(start))

	return principal, err
}

// fail writes the JSON error response for a failure that happened before any
// body bytes were sent.
func (p *Proxy) fail(c *fiber.Ctx, route string, log *zap.Logger, err error) error {
	kind := llm.KindOf(err)
	status := llm.StatusCode(err)

	if status >= fiber.StatusInternalServerError {
		log.Error("request failed", zap.String("kind", kind.String()), zap.Int("status", status), zap.Error(err))
	} else {
		log.Warn("request rejected", zap.String("kind", kind.String()), zap.Int("status", status), zap.Error(err))
	}

	p.metrics.Request(route, kind.String())
	return c.Status(status).JSON(errorBody(llm.PublicMessage(err)))
}

func errorBody(msg string) llm.ErrorResponse {
	return llm.ErrorResponse{Error: msg}
}
