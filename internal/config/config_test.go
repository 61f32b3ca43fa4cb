package config

import (
	"maps"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// minimalRequiredConfig provides database and Redis config needed for all tests
func minimalRequiredConfig() map[string]string {
	return map[string]string{
		"SWITCHBOARD_DB_HOST":        "localhost",
		"SWITCHBOARD_DB_PORT":        "5432",
		"SWITCHBOARD_DB_NAME":        "switchboard_test",
		"SWITCHBOARD_DB_USER":        "test_user",
		"SWITCHBOARD_DB_PASSWORD":    "test_pass",
		"SWITCHBOARD_REDIS_HOST":     "localhost",
		"SWITCHBOARD_REDIS_PORT":     "6379",
		"SWITCHBOARD_REDIS_PASSWORD": "redis_password_123",
	}
}

// mergeEnvVars merges additional env vars with minimal required config
func mergeEnvVars(additional map[string]string) map[string]string {
	result := minimalRequiredConfig()
	maps.Copy(result, additional)
	return result
}

// validProductionConfig returns a complete valid production configuration
// with all required database, Redis, and HTTP API settings for production tests
func validProductionConfig() map[string]string {
	return map[string]string{
		// App
		"SWITCHBOARD_APP_ENV": "production",

		// Database
		"SWITCHBOARD_DB_HOST":     "prod-db.example.com",
		"SWITCHBOARD_DB_PORT":     "5432",
		"SWITCHBOARD_DB_NAME":     "switchboard_prod",
		"SWITCHBOARD_DB_USER":     "prod_user",
		"SWITCHBOARD_DB_PASSWORD": "SuperSecure123!",
		"SWITCHBOARD_DB_SSL_MODE": "require",

		// Redis
		"SWITCHBOARD_REDIS_HOST":        "prod-redis.example.com",
		"SWITCHBOARD_REDIS_PORT":        "6379",
		"SWITCHBOARD_REDIS_PASSWORD":    "RedisSecure123!",
		"SWITCHBOARD_REDIS_TLS_ENABLED": "true",

		// HTTP API
		"SWITCHBOARD_SERVER_HTTP_API_KEY_HASH":  "5dec7e1c36e8ec7f526cfa8ff6dc788daad76f6dd34467662eb47990dca6b55d",
		"SWITCHBOARD_SERVER_HTTP_TLS_ENABLED":   "true",
		"SWITCHBOARD_SERVER_HTTP_TLS_CERT_FILE": "/certs/http-cert.pem",
		"SWITCHBOARD_SERVER_HTTP_TLS_KEY_FILE":  "/certs/http-key.pem",
	}
}

// productionWith returns validProductionConfig with overrides applied and
// the drop keys removed.
func productionWith(overrides map[string]string, drop ...string) map[string]string {
	env := validProductionConfig()
	for _, k := range drop {
		delete(env, k)
	}
	maps.Copy(env, overrides)
	return env
}

// loadCase is one environment fed to Load.
type loadCase struct {
	name    string
	envVars map[string]string
	want    func(t *testing.T, cfg *Config)
	wantErr bool
}

// runLoadCases sets each case's environment, calls Load and checks the
// outcome. t.Setenv keeps the subtests sequential.
func runLoadCases(t *testing.T, cases []loadCase) {
	t.Helper()
	for _, tt := range cases {
		t.Run(tt.name, func(t *testing.T) {
			for key, value := range tt.envVars {
				t.Setenv(key, value)
			}

			cfg, err := Load()
			if tt.wantErr {
				assert.Error(t, err)
				return
			}

			require.NoError(t, err)
			if tt.want != nil {
				tt.want(t, cfg)
			}
		})
	}
}

func TestLoad(t *testing.T) {
	tests := []loadCase{
		{
			name:    "Should use defaults when no env vars are set",
			envVars: minimalRequiredConfig(),
			want: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "switchboard", cfg.App.Name)
				assert.Equal(t, "dev", cfg.App.Version)
				assert.Equal(t, "development", cfg.App.Environment)
				assert.Equal(t, "info", cfg.App.LogLevel)
				assert.Equal(t, "text", cfg.App.LogFormat)
				assert.Equal(t, 30*time.Second, cfg.App.ShutdownTimeout)
				assert.Equal(t, "8080", cfg.Server.HTTP.Port)
				assert.Equal(t, "50051", cfg.Server.GRPC.Port)
				assert.Equal(t, SourceFile, cfg.Source.Kind)
				assert.Equal(t, "rules.yaml", cfg.Source.File)
				assert.True(t, cfg.Source.Watch)
				assert.Equal(t, 30*time.Second, cfg.Source.Resync)
				assert.True(t, cfg.Cache.Enabled)
				assert.Equal(t, 100000, cfg.Cache.Capacity)
				assert.Equal(t, 60*time.Second, cfg.Cache.TTL)
				assert.Equal(t, 10*time.Second, cfg.Syncer.Interval)
			},
			wantErr: false,
		},
		{
			name: "Should load all custom environment variables correctly",
			envVars: mergeEnvVars(map[string]string{
				"SWITCHBOARD_APP_NAME":             "test-app",
				"SWITCHBOARD_APP_VERSION":          "1.0.0",
				"SWITCHBOARD_APP_ENV":              "staging",
				"SWITCHBOARD_APP_LOG_LEVEL":        "debug",
				"SWITCHBOARD_APP_LOG_FORMAT":       "json",
				"SWITCHBOARD_APP_SHUTDOWN_TIMEOUT": "60s",
				"SWITCHBOARD_SERVER_HTTP_PORT":     "8081",
				"SWITCHBOARD_SERVER_GRPC_PORT":     "50052",
			}),
			want: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "test-app", cfg.App.Name)
				assert.Equal(t, "1.0.0", cfg.App.Version)
				assert.Equal(t, "staging", cfg.App.Environment)
				assert.Equal(t, "debug", cfg.App.LogLevel)
				assert.Equal(t, "json", cfg.App.LogFormat)
				assert.Equal(t, 60*time.Second, cfg.App.ShutdownTimeout)
				assert.Equal(t, "8081", cfg.Server.HTTP.Port)
				assert.Equal(t, "50052", cfg.Server.GRPC.Port)
			},
			wantErr: false,
		},
		{
			name: "Should fail validation on invalid environment value",
			envVars: mergeEnvVars(map[string]string{
				"SWITCHBOARD_APP_ENV": "invalid",
			}),
			wantErr: true,
		},
		{
			name: "Should fail validation on invalid log level",
			envVars: mergeEnvVars(map[string]string{
				"SWITCHBOARD_APP_LOG_LEVEL": "trace",
			}),
			wantErr: true,
		},
		{
			name: "Should fail validation on invalid log format",
			envVars: mergeEnvVars(map[string]string{
				"SWITCHBOARD_APP_LOG_FORMAT": "xml",
			}),
			wantErr: true,
		},
		{
			name: "Should pass validation in staging environment",
			envVars: mergeEnvVars(map[string]string{
				"SWITCHBOARD_APP_ENV": "staging",
			}),
			want: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "staging", cfg.App.Environment)
			},
			wantErr: false,
		},
		{
			name: "Should fail validation when HTTP and observability share a port",
			envVars: mergeEnvVars(map[string]string{
				"SWITCHBOARD_SERVER_HTTP_PORT": "9090",
			}),
			wantErr: true,
		},
		{
			name: "Should fail validation when a specific host overlaps a wildcard on the same port",
			envVars: mergeEnvVars(map[string]string{
				"SWITCHBOARD_OBSERVABILITY_HOST": "127.0.0.1",
				"SWITCHBOARD_OBSERVABILITY_PORT": "50051",
			}),
			wantErr: true,
		},
		{
			name: "Should allow a port reused by a disabled HTTP server",
			envVars: mergeEnvVars(map[string]string{
				"SWITCHBOARD_SERVER_HTTP_ENABLED": "false",
				"SWITCHBOARD_SERVER_HTTP_PORT":    "9090",
			}),
			want: func(t *testing.T, cfg *Config) {
				assert.False(t, cfg.Server.HTTP.Enabled)
			},
		},
		{
			name: "Should allow missing passwords in non-production environments",
			envVars: mergeEnvVars(map[string]string{
				"SWITCHBOARD_APP_ENV":        "development",
				"SWITCHBOARD_DB_PASSWORD":    "", // Empty password OK in development
				"SWITCHBOARD_REDIS_PASSWORD": "", // Empty password OK in development
			}),
			want: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "development", cfg.App.Environment)
				assert.Equal(t, "", cfg.Database.Password)
				assert.Equal(t, "", cfg.Redis.Password)
			},
			wantErr: false,
		},
	}

	runLoadCases(t, tests)
}

func TestLoad_OptionalBackends(t *testing.T) {
	t.Run("Should load without database or Redis when rules come from a file", func(t *testing.T) {
		cfg, err := Load()
		require.NoError(t, err)

		assert.False(t, cfg.Database.IsConfigured())
		assert.False(t, cfg.Redis.IsConfigured())
		assert.Error(t, cfg.RequireDatabase())
		assert.Error(t, cfg.RequireRedis())
	})

	t.Run("Should require Redis when the source is redis", func(t *testing.T) {
		t.Setenv("SWITCHBOARD_SOURCE_KIND", "redis")

		_, err := Load()
		assert.Error(t, err)
	})

	t.Run("Should satisfy requirements when both backends are configured", func(t *testing.T) {
		for key, value := range minimalRequiredConfig() {
			t.Setenv(key, value)
		}

		cfg, err := Load()
		require.NoError(t, err)
		assert.NoError(t, cfg.RequireDatabase())
		assert.NoError(t, cfg.RequireRedis())
	})
}
