// Package hconfig loads this module's runtime configuration: a layered
// YAML file plus environment-variable overrides, grounded on the
// teacher's pkg/config (nested-section structs, each with its own
// SetDefaults/Validate, composed by one root Config.SetDefaults/
// Validate pair).
package hconfig

import (
	"errors"
	"fmt"
)

// ServerConfig configures the HTTP/SSE surface's listen address.
type ServerConfig struct {
	Host string `yaml:"host,omitempty"`
	Port int    `yaml:"port,omitempty"`
}

func (c *ServerConfig) SetDefaults() {
	if c.Host == "" {
		c.Host = "0.0.0.0"
	}
	if c.Port == 0 {
		c.Port = 8080
	}
}

func (c *ServerConfig) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Port)
	}
	return nil
}

// Addr is the listen address net/http.Server expects.
func (c *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// DatabaseConfig names the connection pkg/store.NewFromDSN opens. An
// empty DSN after Load falls back to the DATABASE_URL environment
// variable and finally to degraded (in-memory) mode, matching pkg/store's
// own "never fail construction" contract.
type DatabaseConfig struct {
	DSN string `yaml:"dsn,omitempty"`
}

func (c *DatabaseConfig) SetDefaults() {}

func (c *DatabaseConfig) Validate() error { return nil }

// LoggerConfig configures log/slog output, matching the teacher's
// LoggerConfig field names and priority order (flags > env > file >
// defaults is handled by the CLI layer; this struct is just the file/env
// layer).
type LoggerConfig struct {
	Level  string `yaml:"level,omitempty"`
	File   string `yaml:"file,omitempty"`
	Format string `yaml:"format,omitempty"`
}

func (c *LoggerConfig) SetDefaults() {
	if c.Level == "" {
		c.Level = "info"
	}
	if c.Format == "" {
		c.Format = "text"
	}
}

func (c *LoggerConfig) Validate() error {
	switch c.Level {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logger.level %q invalid (valid: debug, info, warn, error)", c.Level)
	}
	switch c.Format {
	case "", "text", "json":
	default:
		return fmt.Errorf("logger.format %q invalid (valid: text, json)", c.Format)
	}
	return nil
}

// APIKeyConfig is one static credential entry under auth.api_keys.
type APIKeyConfig struct {
	Owner string `yaml:"owner,omitempty"`
	Role  string `yaml:"role,omitempty"`
}

// AuthConfig configures pkg/authn. Both JWT and API-key modes are
// optional and independent; a zero-value AuthConfig means the surface
// runs unauthenticated, a local/dev posture spec.md leaves as valid.
type AuthConfig struct {
	JWKSURL  string                  `yaml:"jwks_url,omitempty"`
	Issuer   string                  `yaml:"issuer,omitempty"`
	Audience string                  `yaml:"audience,omitempty"`
	APIKeys  map[string]APIKeyConfig `yaml:"api_keys,omitempty"`
}

func (c *AuthConfig) SetDefaults() {}

func (c *AuthConfig) Validate() error {
	if c.JWKSURL != "" && (c.Issuer == "" || c.Audience == "") {
		return errors.New("auth.jwks_url requires both auth.issuer and auth.audience")
	}
	return nil
}

// MetricsConfig toggles pkg/obslog's Prometheus registry.
type MetricsConfig struct {
	Enabled   bool   `yaml:"enabled,omitempty"`
	Namespace string `yaml:"namespace,omitempty"`
}

func (c *MetricsConfig) SetDefaults() {
	if c.Namespace == "" {
		c.Namespace = "orchestrator"
	}
}

func (c *MetricsConfig) Validate() error { return nil }

// StreamConfig holds the per-turn stream deadline setting. It is loaded,
// defaulted and validated, but nothing passes it to pkg/stream.Handler,
// whose own Deadline field (DefaultDeadline, 120s, when zero) governs.
type StreamConfig struct {
	DeadlineSeconds int `yaml:"deadline_seconds,omitempty"`
}

func (c *StreamConfig) SetDefaults() {
	if c.DeadlineSeconds == 0 {
		c.DeadlineSeconds = 120
	}
}

func (c *StreamConfig) Validate() error {
	if c.DeadlineSeconds < 0 {
		return errors.New("stream.deadline_seconds must be non-negative")
	}
	return nil
}

// Config is the root configuration document (spec §9 ambient config
// layer), unmarshaled from YAML and then environment-overridden before
// SetDefaults/Validate run.
type Config struct {
	Server   ServerConfig   `yaml:"server,omitempty"`
	Database DatabaseConfig `yaml:"database,omitempty"`
	Logger   LoggerConfig   `yaml:"logger,omitempty"`
	Auth     AuthConfig     `yaml:"auth,omitempty"`
	Stream   StreamConfig   `yaml:"stream,omitempty"`
	Metrics  MetricsConfig  `yaml:"metrics,omitempty"`
}

// SetDefaults fills every section's zero-valued fields in place.
func (c *Config) SetDefaults() {
	c.Server.SetDefaults()
	c.Database.SetDefaults()
	c.Logger.SetDefaults()
	c.Auth.SetDefaults()
	c.Stream.SetDefaults()
	c.Metrics.SetDefaults()
}

// Validate checks every section, joining all failures with errors.Join
// so a misconfigured deployment sees every problem in one pass rather
// than fixing them one at a time.
func (c *Config) Validate() error {
	return errors.Join(
		c.Server.Validate(),
		c.Database.Validate(),
		c.Logger.Validate(),
		c.Auth.Validate(),
		c.Stream.Validate(),
		c.Metrics.Validate(),
	)
}
