package config

import (
	"fmt"
	"net/url"
	"slices"
	"strconv"
	"strings"
)

// minProductionPassword is the shortest password accepted in production.
const minProductionPassword = 12

// requireToken fails when value is empty or padded with whitespace.
func requireToken(value, field string) error {
	switch {
	case value == "":
		return fmt.Errorf("%s cannot be empty", field)
	case strings.TrimSpace(value) != value:
		return fmt.Errorf("%s cannot contain surrounding whitespace", field)
	}
	return nil
}

func validateHost(host, component string) error {
	return requireToken(host, component+" host")
}

// validatePort accepts a decimal TCP port between 1 and 65535.
func validatePort(port, component string) error {
	if port == "" {
		return fmt.Errorf("%s port cannot be empty", component)
	}
	n, err := strconv.ParseUint(port, 10, 16)
	if err != nil || n == 0 {
		return fmt.Errorf("%s port must be between 1 and 65535, got %q", component, port)
	}
	return nil
}

func validatePasswordStrength(password, component, environment string) error {
	if environment == EnvironmentProduction && len(password) < minProductionPassword {
		return fmt.Errorf("%s password must be at least %d characters in production", component, minProductionPassword)
	}
	return nil
}

var secureSSLModes = []string{"require", "verify-ca", "verify-full"}

func isSecureSSLMode(mode string) bool {
	return slices.Contains(secureSSLModes, mode)
}

// parseServiceURL parses rawURL and requires one of schemes and a host.
func parseServiceURL(rawURL string, schemes ...string) (*url.URL, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse URL: %w", err)
	}
	if !slices.Contains(schemes, parsed.Scheme) {
		return nil, fmt.Errorf("invalid scheme %q, must be one of %v", parsed.Scheme, schemes)
	}
	if parsed.Host == "" {
		return nil, fmt.Errorf("host is required in URL")
	}
	return parsed, nil
}
