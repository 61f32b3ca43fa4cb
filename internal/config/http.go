package config

import (
	"encoding/hex"
	"errors"
	"fmt"
	"net"
	"time"
)

// HTTPConfig configures the JSON evaluation API served next to gRPC.
type HTTPConfig struct {
	Enabled bool   `envconfig:"ENABLED" default:"true"`
	Host    string `envconfig:"HOST" default:"0.0.0.0"`
	Port    string `envconfig:"PORT" default:"8080"`

	ReadTimeout       time.Duration `envconfig:"READ_TIMEOUT" default:"10s" validate:"gt=0"`
	ReadHeaderTimeout time.Duration `envconfig:"READ_HEADER_TIMEOUT" default:"5s" validate:"gt=0"`
	WriteTimeout      time.Duration `envconfig:"WRITE_TIMEOUT" default:"10s" validate:"gt=0"`
	IdleTimeout       time.Duration `envconfig:"IDLE_TIMEOUT" default:"60s" validate:"min=0"`

	MaxHeaderBytes int   `envconfig:"MAX_HEADER_BYTES" default:"524288" validate:"min=1"` // 512KB
	MaxBodyBytes   int64 `envconfig:"MAX_BODY_BYTES" default:"65536" validate:"min=1"`    // 64KB

	// APIKeyHash is the hex SHA-256 of the key guarding explain and
	// generation. Evaluation stays open.
	APIKeyHash string `envconfig:"API_KEY_HASH"`

	TLSEnabled bool   `envconfig:"TLS_ENABLED" default:"false"`
	TLSCert    string `envconfig:"TLS_CERT_FILE"`
	TLSKey     string `envconfig:"TLS_KEY_FILE"`
}

// Address returns the listen address in host:port form.
func (c *HTTPConfig) Address() string {
	return net.JoinHostPort(c.Host, c.Port)
}

// Validate checks the listener, timeouts and, in production, that the
// operator endpoints are protected by an API key over TLS. A disabled API
// is not checked.
func (c *HTTPConfig) Validate(environment string) error {
	if !c.Enabled {
		return nil
	}
	if err := validateHost(c.Host, "http"); err != nil {
		return err
	}
	if err := validatePort(c.Port, "http"); err != nil {
		return err
	}
	if c.ReadHeaderTimeout > c.ReadTimeout {
		return fmt.Errorf("http read header timeout (%s) cannot exceed read timeout (%s)", c.ReadHeaderTimeout, c.ReadTimeout)
	}

	if c.APIKeyHash != "" {
		if err := validateSHA256Hash(c.APIKeyHash); err != nil {
			return fmt.Errorf("invalid http API key hash: %w", err)
		}
	}
	if c.TLSEnabled && (c.TLSCert == "" || c.TLSKey == "") {
		return errors.New("http TLS enabled but cert or key file not specified")
	}

	if environment == EnvironmentProduction {
		if c.APIKeyHash == "" {
			return errors.New("http API key hash is required in production")
		}
		if !c.TLSEnabled {
			return errors.New("http TLS must be enabled in production")
		}
	}
	return nil
}

// validateSHA256Hash accepts exactly 64 hex characters.
func validateSHA256Hash(hash string) error {
	if len(hash) != hex.EncodedLen(32) {
		return fmt.Errorf("SHA-256 hash must be %d characters, got %d", hex.EncodedLen(32), len(hash))
	}
	if _, err := hex.DecodeString(hash); err != nil {
		return fmt.Errorf("hash must be hexadecimal: %w", err)
	}
	return nil
}
