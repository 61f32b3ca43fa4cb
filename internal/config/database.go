package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
	"time"
)

// DatabaseConfig locates the PostgreSQL database holding the rule
// definitions. Only the syncer and `switchctl push` connect to it.
type DatabaseConfig struct {
	// URL wins over the individual fields when set.
	URL      string `envconfig:"URL"`
	Host     string `envconfig:"HOST"`
	Port     string `envconfig:"PORT"`
	Name     string `envconfig:"NAME"`
	User     string `envconfig:"USER"`
	Password string `envconfig:"PASSWORD"`
	SSLMode  string `envconfig:"SSL_MODE" default:"prefer" validate:"oneof=disable allow prefer require verify-ca verify-full"`

	// ApplicationName shows up in pg_stat_activity.
	ApplicationName string `envconfig:"APPLICATION_NAME" default:"switchboard" validate:"max=63"`
	// StatementTimeout aborts any single statement that runs longer; zero
	// leaves the server default in place.
	StatementTimeout time.Duration `envconfig:"STATEMENT_TIMEOUT" default:"10s" validate:"min=0"`

	MaxConns        int           `envconfig:"MAX_CONNS" default:"4" validate:"min=1"`
	MinConns        int           `envconfig:"MIN_CONNS" default:"0" validate:"min=0"`
	MaxConnLifetime time.Duration `envconfig:"MAX_CONN_LIFETIME" default:"1h"`
	MaxConnIdleTime time.Duration `envconfig:"MAX_CONN_IDLE_TIME" default:"30m"`
	ConnectTimeout  time.Duration `envconfig:"CONNECT_TIMEOUT" default:"5s"`

	PingMaxRetries int           `envconfig:"PING_MAX_RETRIES" default:"5" validate:"min=1"`
	PingBackoff    time.Duration `envconfig:"PING_BACKOFF" default:"2s"`
}

// DSN returns the connection URL. Credentials are escaped, so passwords may
// contain any character.
func (c *DatabaseConfig) DSN() string {
	if c.URL != "" {
		return c.URL
	}
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.User, c.Password),
		Host:     net.JoinHostPort(c.Host, c.Port),
		Path:     "/" + c.Name,
		RawQuery: url.Values{"sslmode": {c.SSLMode}}.Encode(),
	}
	if c.Password == "" {
		u.User = url.User(c.User)
	}
	return u.String()
}

// IsConfigured reports whether enough is set to attempt a connection.
func (c *DatabaseConfig) IsConfigured() bool {
	return c.URL != "" || (c.Host != "" && c.Port != "" && c.Name != "" && c.User != "")
}

// specified reports whether the operator set any connection field at all.
// A partial setup is an error rather than an absent database.
func (c *DatabaseConfig) specified() bool {
	return c.URL != "" || c.Host != "" || c.Port != "" || c.Name != "" || c.User != ""
}

// Validate checks the connection settings. Production additionally needs a
// strong password and a verifying SSL mode.
func (c *DatabaseConfig) Validate(environment string) error {
	var err error
	if c.URL != "" {
		err = validatePostgresURL(c.URL)
		if err != nil {
			err = fmt.Errorf("invalid database URL: %w", err)
		}
	} else {
		err = c.validateFields(environment)
	}
	if err != nil {
		return err
	}

	if c.MinConns > c.MaxConns {
		return fmt.Errorf("min_conns (%d) cannot be greater than max_conns (%d)", c.MinConns, c.MaxConns)
	}
	return nil
}

func (c *DatabaseConfig) validateFields(environment string) error {
	if err := validateHost(c.Host, "database"); err != nil {
		return err
	}
	if err := validatePort(c.Port, "database"); err != nil {
		return err
	}
	if err := requireToken(c.Name, "database name"); err != nil {
		return err
	}
	if len(c.Name) > 63 {
		return errors.New("database name cannot exceed 63 characters")
	}
	if err := requireToken(c.User, "database user"); err != nil {
		return err
	}

	if environment != EnvironmentProduction {
		return nil
	}
	if c.Password == "" {
		return errors.New("database password is required in production environment")
	}
	if err := validatePasswordStrength(c.Password, "database", environment); err != nil {
		return err
	}
	if !isSecureSSLMode(c.SSLMode) {
		return errors.New("database SSL mode must be 'require', 'verify-ca', or 'verify-full' in production environment")
	}
	return nil
}

func validatePostgresURL(dbURL string) error {
	parsed, err := parseServiceURL(dbURL, "postgres", "postgresql")
	if err != nil {
		return err
	}
	if parsed.User == nil || parsed.User.Username() == "" {
		return errors.New("user is required in URL")
	}
	if strings.TrimPrefix(parsed.Path, "/") == "" {
		return errors.New("database name is required in URL path")
	}
	return nil
}
