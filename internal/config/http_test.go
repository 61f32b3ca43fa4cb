package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHTTPConfig_Validation(t *testing.T) {
	tests := []loadCase{
		{
			name:    "Should pass validation with a complete production config",
			envVars: validProductionConfig(),
			want: func(t *testing.T, cfg *Config) {
				assert.True(t, cfg.Server.HTTP.TLSEnabled)
				assert.Equal(t, "/certs/http-cert.pem", cfg.Server.HTTP.TLSCert)
			},
		},
		{
			name: "Should fail validation when API key hash missing in production",
			envVars: func() map[string]string {
				cfg := validProductionConfig()
				delete(cfg, "SWITCHBOARD_SERVER_HTTP_API_KEY_HASH")
				return cfg
			}(),
			wantErr: true,
		},
		{
			name: "Should fail validation when TLS disabled in production",
			envVars: func() map[string]string {
				cfg := validProductionConfig()
				cfg["SWITCHBOARD_SERVER_HTTP_TLS_ENABLED"] = "false"
				return cfg
			}(),
			wantErr: true,
		},
		{
			name: "Should skip production checks when the HTTP API is disabled",
			envVars: func() map[string]string {
				cfg := validProductionConfig()
				cfg["SWITCHBOARD_SERVER_HTTP_ENABLED"] = "false"
				delete(cfg, "SWITCHBOARD_SERVER_HTTP_API_KEY_HASH")
				return cfg
			}(),
			want: func(t *testing.T, cfg *Config) {
				assert.False(t, cfg.Server.HTTP.Enabled)
			},
		},
		{
			name: "Should fail validation on API key hash with wrong length",
			envVars: mergeEnvVars(map[string]string{
				"SWITCHBOARD_SERVER_HTTP_API_KEY_HASH": "abc123",
			}),
			wantErr: true,
		},
		{
			name: "Should fail validation on API key hash that is not hex",
			envVars: mergeEnvVars(map[string]string{
				"SWITCHBOARD_SERVER_HTTP_API_KEY_HASH": "zzzz7e1c36e8ec7f526cfa8ff6dc788daad76f6dd34467662eb47990dca6b55d",
			}),
			wantErr: true,
		},
		{
			name: "Should fail validation when TLS enabled without key file",
			envVars: mergeEnvVars(map[string]string{
				"SWITCHBOARD_SERVER_HTTP_TLS_ENABLED":   "true",
				"SWITCHBOARD_SERVER_HTTP_TLS_CERT_FILE": "/certs/cert.pem",
			}),
			wantErr: true,
		},
		{
			name: "Should fail validation on invalid port",
			envVars: mergeEnvVars(map[string]string{
				"SWITCHBOARD_SERVER_HTTP_PORT": "70000",
			}),
			wantErr: true,
		},
		{
			name: "Should fail validation when the header timeout exceeds the read timeout",
			envVars: mergeEnvVars(map[string]string{
				"SWITCHBOARD_SERVER_HTTP_READ_TIMEOUT":        "2s",
				"SWITCHBOARD_SERVER_HTTP_READ_HEADER_TIMEOUT": "3s",
			}),
			wantErr: true,
		},
		{
			name: "Should fail validation on a zero write timeout",
			envVars: mergeEnvVars(map[string]string{
				"SWITCHBOARD_SERVER_HTTP_WRITE_TIMEOUT": "0s",
			}),
			wantErr: true,
		},
		{
			name: "Should expose the listen address",
			envVars: mergeEnvVars(map[string]string{
				"SWITCHBOARD_SERVER_HTTP_HOST": "::1",
				"SWITCHBOARD_SERVER_HTTP_PORT": "8443",
			}),
			want: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "[::1]:8443", cfg.Server.HTTP.Address())
			},
		},
		{
			name: "Should fail validation on zero body limit",
			envVars: mergeEnvVars(map[string]string{
				"SWITCHBOARD_SERVER_HTTP_MAX_BODY_BYTES": "0",
			}),
			wantErr: true,
		},
	}

	runLoadCases(t, tests)
}
