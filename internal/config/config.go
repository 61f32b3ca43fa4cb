// Package config provides centralized configuration management for Switchboard services.
// It uses envconfig for environment variable loading and validator for validation.
package config

import (
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
)

const (
	// EnvironmentProduction is the production environment identifier
	EnvironmentProduction = "production"
)

// Config holds the complete application configuration.
type Config struct {
	App           AppConfig           `envconfig:"APP"`
	Server        ServerConfig        `envconfig:"SERVER"`
	Database      DatabaseConfig      `envconfig:"DB"`
	Redis         RedisConfig         `envconfig:"REDIS"`
	Syncer        SyncerConfig        `envconfig:"SYNCER"`
	Observability ObservabilityConfig `envconfig:"OBSERVABILITY"`
	Source        SourceConfig        `envconfig:"SOURCE"`
	Cache         CacheConfig         `envconfig:"CACHE"`
}

// AppConfig contains core application settings.
type AppConfig struct {
	Name            string        `envconfig:"NAME" default:"switchboard"`
	Version         string        `envconfig:"VERSION" default:"dev"`
	Environment     string        `envconfig:"ENV" default:"development" validate:"oneof=development staging production"`
	LogLevel        string        `envconfig:"LOG_LEVEL" default:"info" validate:"oneof=debug info warn error"`
	LogFormat       string        `envconfig:"LOG_FORMAT" default:"text" validate:"oneof=json text"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"30s"`
}

// ServerConfig holds server-specific configuration.
type ServerConfig struct {
	GRPC GRPCConfig `envconfig:"GRPC"`
	HTTP HTTPConfig `envconfig:"HTTP"`
}

// envPrefix is the prefix of every environment variable (SWITCHBOARD_APP_ENV, ...).
const envPrefix = "SWITCHBOARD"

// Load reads configuration from environment variables with the SWITCHBOARD prefix.
func Load() (*Config, error) {
	cfg := &Config{}

	if err := envconfig.Process(envPrefix, cfg); err != nil {
		return nil, fmt.Errorf("failed to process environment variables: %w", err)
	}

	// Validate the configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate performs validation on the loaded configuration using go-playground/validator.
func (c *Config) Validate() error {
	validate := validator.New()

	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("validation error: %w", err)
	}

	// Additional custom validation.
	// Database and Redis are optional: each binary decides what it requires
	// (see RequireDatabase and RequireRedis), but anything configured must be valid.
	if c.Database.specified() {
		if err := c.Database.Validate(c.App.Environment); err != nil {
			return err
		}
	}

	if c.Redis.specified() || c.Source.Kind == SourceRedis {
		if err := c.Redis.Validate(c.App.Environment); err != nil {
			return err
		}
	}

	if err := c.Server.HTTP.Validate(c.App.Environment); err != nil {
		return err
	}

	if err := c.Server.GRPC.Validate(); err != nil {
		return err
	}

	if err := c.Observability.Validate(); err != nil {
		return err
	}

	if err := c.validateListeners(); err != nil {
		return err
	}

	if err := c.Source.Validate(); err != nil {
		return err
	}

	if err := c.Syncer.Validate(); err != nil {
		return err
	}

	return nil
}

// validateListeners rejects two servers of the data plane bound to the same
// address.
func (c *Config) validateListeners() error {
	addrs := map[string]string{"grpc": c.Server.GRPC.Address()}
	named := []struct{ name, addr string }{{"observability", c.Observability.Address()}}
	if c.Server.HTTP.Enabled {
		named = append(named, struct{ name, addr string }{"http", c.Server.HTTP.Address()})
	}
	for _, n := range named {
		for other, addr := range addrs {
			if sameListener(addr, n.addr) {
				return fmt.Errorf("%s listener %s collides with %s listener", n.name, n.addr, other)
			}
		}
		addrs[n.name] = n.addr
	}
	return nil
}

// sameListener reports whether two host:port addresses would bind the same
// socket. A wildcard host overlaps every host on the same port.
func sameListener(a, b string) bool {
	hostA, portA, _ := net.SplitHostPort(a)
	hostB, portB, _ := net.SplitHostPort(b)
	if portA != portB {
		return false
	}
	wildcard := func(h string) bool { return h == "" || h == "0.0.0.0" || h == "::" }
	return hostA == hostB || wildcard(hostA) || wildcard(hostB)
}

// RequireDatabase fails unless PostgreSQL connection settings are present.
func (c *Config) RequireDatabase() error {
	if !c.Database.IsConfigured() {
		return fmt.Errorf("database configuration is required (set %s_DB_URL or host, port, name and user)", envPrefix)
	}
	return nil
}

// RequireRedis fails unless Redis connection settings are present.
func (c *Config) RequireRedis() error {
	if !c.Redis.IsConfigured() {
		return fmt.Errorf("redis configuration is required (set %s_REDIS_URL or host and port)", envPrefix)
	}
	return nil
}

// LogConfig logs the current configuration (without sensitive data).
func (c *Config) LogConfig(log *slog.Logger) {
	log.Info("configuration loaded",
		slog.String("app_name", c.App.Name),
		slog.String("version", c.App.Version),
		slog.String("environment", c.App.Environment),
		slog.String("log_level", c.App.LogLevel),
		slog.String("log_format", c.App.LogFormat),
		slog.Duration("shutdown_timeout", c.App.ShutdownTimeout),
		slog.String("grpc_addr", c.Server.GRPC.Address()),
		slog.Bool("http_enabled", c.Server.HTTP.Enabled),
		slog.String("http_addr", c.Server.HTTP.Address()),
		slog.Bool("tls_enabled", c.Server.HTTP.TLSEnabled),
		slog.String("observability_addr", c.Observability.Address()),
		slog.String("source", c.Source.Kind),
		slog.Bool("decision_cache_enabled", c.Cache.Enabled),
		slog.Bool("db_configured", c.Database.IsConfigured()),
		slog.Bool("redis_configured", c.Redis.IsConfigured()),
	)
}
