package config

import (
	"fmt"
	"net"
	"strings"
	"time"
)

// ObservabilityConfig configures the probes and metrics listener.
type ObservabilityConfig struct {
	Host string `envconfig:"HOST" default:"0.0.0.0"`
	Port string `envconfig:"PORT" default:"9090"`

	// Timeout bounds reads, writes, each readiness check and the shutdown drain.
	Timeout time.Duration `envconfig:"TIMEOUT" default:"5s" validate:"min=1s"`

	LivenessPath  string `envconfig:"LIVENESS_PATH" default:"/healthz"`
	ReadinessPath string `envconfig:"READINESS_PATH" default:"/readyz"`
	MetricsPath   string `envconfig:"METRICS_PATH" default:"/metrics"`
}

// Address is the listen address in host:port form.
func (o *ObservabilityConfig) Address() string {
	return net.JoinHostPort(o.Host, o.Port)
}

// Validate checks the listen address and that the three routes are
// absolute and distinct.
func (o *ObservabilityConfig) Validate() error {
	if err := validateHost(o.Host, "observability"); err != nil {
		return err
	}
	if err := validatePort(o.Port, "observability"); err != nil {
		return err
	}

	seen := make(map[string]string, 3)
	for _, route := range []struct{ name, path string }{
		{"liveness", o.LivenessPath},
		{"readiness", o.ReadinessPath},
		{"metrics", o.MetricsPath},
	} {
		if !strings.HasPrefix(route.path, "/") || strings.ContainsAny(route.path, " \t") {
			return fmt.Errorf("observability %s path %q must start with / and contain no whitespace", route.name, route.path)
		}
		if other, dup := seen[route.path]; dup {
			return fmt.Errorf("observability %s path %q collides with the %s path", route.name, route.path, other)
		}
		seen[route.path] = route.name
	}
	return nil
}
