// Package config loads chat relay settings from a TOML file and the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/papercomputeco/chatrelay/pkg/llm"
)

// Config is the relay server configuration.
type Config struct {
	// Address to listen on (e.g., ":8080")
	ListenAddr string `toml:"listen"`

	// Debug enables debug logging.
	Debug bool `toml:"debug"`

	// LogFormat is "console" or "json".
	LogFormat string `toml:"log_format"`

	Identity IdentityConfig `toml:"identity"`
	Upstream UpstreamConfig `toml:"upstream"`
	Profiles ProfilesConfig `toml:"profiles"`
}

// IdentityConfig locates the identity service that validates bearer tokens.
type IdentityConfig struct {
	URL     string `toml:"url"`
	AnonKey string `toml:"anon_key"`
	Timeout string `toml:"timeout"`
}

// UpstreamConfig locates the completion provider.
type UpstreamConfig struct {
	BaseURL    string               `toml:"base_url"`
	APIKey     string               `toml:"api_key"`
	Timeout    string               `toml:"timeout"`
	Generation llm.GenerationParams `toml:"generation"`
}

// ProfilesConfig configures the profile store.
type ProfilesConfig struct {
	// DBPath is the SQLite database file. Empty means in-memory.
	DBPath string `toml:"db_path"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		ListenAddr: ":8080",
		LogFormat:  "console",
		Identity: IdentityConfig{
			Timeout: "10s",
		},
		Upstream: UpstreamConfig{
			BaseURL:    "https://api.openai.com/v1",
			Timeout:    "5m",
			Generation: llm.DefaultGenerationParams(),
		},
	}
}

// LookupFunc reads an environment variable.
type LookupFunc func(key string) (string, bool)

// Load reads the defaults, then the TOML file at path (if any), then the process environment.
func Load(path string) (*Config, error) {
	return LoadWithEnv(path, os.LookupEnv)
}

// LoadWithEnv is Load with an explicit environment.
func LoadWithEnv(path string, lookup LookupFunc) (*Config, error) {
	cfg := Default()

	if path != "" {
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return nil, fmt.Errorf("decode config %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(lookup); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) applyEnv(lookup LookupFunc) error {
	strs := map[string]*string{
		"CHATRELAY_LISTEN":     &c.ListenAddr,
		"CHATRELAY_LOG_FORMAT": &c.LogFormat,
		"CHATRELAY_PROFILE_DB": &c.Profiles.DBPath,
		"SUPABASE_URL":         &c.Identity.URL,
		"SUPABASE_ANON_KEY":    &c.Identity.AnonKey,
		"OPENAI_API_KEY":       &c.Upstream.APIKey,
		"OPENAI_BASE_URL":      &c.Upstream.BaseURL,
	}
	for key, dst := range strs {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}

	if v, ok := lookup("CHATRELAY_DEBUG"); ok && v != "" {
		debug, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("CHATRELAY_DEBUG: %w", err)
		}
		c.Debug = debug
	}

	return nil
}

// IdentityTimeout returns the parsed identity call timeout.
func (c *Config) IdentityTimeout() time.Duration {
	d, _ := time.ParseDuration(c.Identity.Timeout)
	return d
}

// UpstreamTimeout returns the parsed completion call timeout.
func (c *Config) UpstreamTimeout() time.Duration {
	d, _ := time.ParseDuration(c.Upstream.Timeout)
	return d
}

// Validate reports every problem with the configuration at once.
func (c *Config) Validate() error {
	var errs []error

	if c.ListenAddr == "" {
		errs = append(errs, errors.New("listen address is required"))
	}
	if c.Identity.URL == "" {
		errs = append(errs, errors.New("identity.url (SUPABASE_URL) is required"))
	}
	if c.Identity.AnonKey == "" {
		errs = append(errs, errors.New("identity.anon_key (SUPABASE_ANON_KEY) is required"))
	}
	if c.Upstream.BaseURL == "" {
		errs = append(errs, errors.New("upstream.base_url is required"))
	}
	if c.Upstream.APIKey == "" {
		errs = append(errs, errors.New("upstream.api_key (OPENAI_API_KEY) is required"))
	}
	if c.Upstream.Generation.Model == "" {
		errs = append(errs, errors.New("upstream.generation.model is required"))
	}
	if c.Upstream.Generation.MaxTokens <= 0 {
		errs = append(errs, errors.New("upstream.generation.max_tokens must be positive"))
	}

	timeouts := []struct {
		name  string
		value string
	}{
		{"identity.timeout", c.Identity.Timeout},
		{"upstream.timeout", c.Upstream.Timeout},
	}
	for _, t := range timeouts {
		if d, err := time.ParseDuration(t.value); err != nil || d <= 0 {
			errs = append(errs, fmt.Errorf("%s must be a positive duration, got %q", t.name, t.value))
		}
	}

	switch strings.ToLower(c.LogFormat) {
	case "console", "json":
	default:
		errs = append(errs, fmt.Errorf("log_format must be console or json, got %q", c.LogFormat))
	}

	return errors.Join(errs...)
}
