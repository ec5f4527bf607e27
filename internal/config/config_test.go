package config

import (
	"os"
	"path/filepath"
	"scoutgate/internal/models"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

// clearEnv blanks every variable the loader reads so the host environment
// cannot leak into a test.
func clearEnv(t *testing.T) {
	t.Helper()
	chains := [][]string{StoreURLEnv, StoreTokenEnv, DatabaseDSNEnv, AdminPasswordEnv, CronSecretEnv, GeminiAPIKeyEnv, RecipientEnv}
	for _, chain := range chains {
		for _, key := range chain {
			t.Setenv(key, "")
		}
	}
	for _, kv := range os.Environ() {
		if key, _, _ := strings.Cut(kv, "="); strings.HasPrefix(key, "SCOUTGATE_") {
			t.Setenv(key, "")
		}
	}
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	configFile := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(configFile, []byte(content), 0644))
	return configFile
}

func TestLoad_WithValidConfigFile(t *testing.T) {
	clearEnv(t)

	configFile := writeConfig(t, `
server:
  port: 8081
  host: "localhost"
  read_timeout: 10s
  write_timeout: 90s
  idle_timeout: 60s
  cors:
    enabled: true
    allowed_origins: ["https://scout.example.com"]
    allowed_methods: ["GET", "POST"]
    allowed_headers: ["Authorization"]
    max_age: 3600

store:
  type: "sqlite"
  connect_timeout: 2s
  database:
    dsn: "file:scout.db"

auth:
  token_ttl: 168h
  verify_rate_limit:
    enabled: true
    requests_per_minute: 5
    burst_size: 2
    cleanup_interval: 1m

quota:
  hourly_limit: 3
  daily_limit: 6

ledger:
  key: "history_test"
  max_size: 50

schedule:
  min_interval: 24h

scan:
  model: "gemini-2.5-pro"
  product_count: 5
  candidate_count: 8
  categories: ["Pet Supplies"]

notify:
  recipient: "team@example.com"

logging:
  level: "debug"
  format: "text"

metrics:
  enabled: false
`)

	config, err := Load(configFile)
	require.NoError(t, err)

	// Verify server config
	assert.Equal(t, 8081, config.Server.Port)
	assert.Equal(t, "localhost", config.Server.Host)
	assert.Equal(t, 10*time.Second, config.Server.ReadTimeout)
	assert.Equal(t, 90*time.Second, config.Server.WriteTimeout)
	assert.Equal(t, []string{"https://scout.example.com"}, config.Server.CORS.AllowedOrigins)
	assert.Equal(t, 3600, config.Server.CORS.MaxAge)

	// Verify store config
	assert.Equal(t, models.StoreTypeSQLite, config.Store.Type)
	assert.Equal(t, 2*time.Second, config.Store.ConnectTimeout)
	assert.Equal(t, "file:scout.db", config.Store.Database.DSN)

	// Verify auth and quota config
	assert.Equal(t, 168*time.Hour, config.Auth.TokenTTL)
	assert.Equal(t, 5, config.Auth.VerifyRateLimit.RequestsPerMinute)
	assert.Equal(t, 2, config.Auth.VerifyRateLimit.BurstSize)
	assert.Equal(t, 3, config.Quota.HourlyLimit)
	assert.Equal(t, 6, config.Quota.DailyLimit)

	// Verify ledger, schedule and scan config
	assert.Equal(t, "history_test", config.Ledger.Key)
	assert.Equal(t, 50, config.Ledger.MaxSize)
	assert.Equal(t, 24*time.Hour, config.Schedule.MinInterval)
	assert.Equal(t, "gemini-2.5-pro", config.Scan.Model)
	assert.Equal(t, 5, config.Scan.ProductCount)
	assert.Equal(t, 8, config.Scan.CandidateCount)
	assert.Equal(t, []string{"Pet Supplies"}, config.Scan.Categories)

	assert.Equal(t, "team@example.com", config.Notify.Recipient)
	assert.Equal(t, "debug", config.Logging.Level)
	assert.False(t, config.Metrics.Enabled)
}

func TestLoad_WithDefaults(t *testing.T) {
	clearEnv(t)

	config, err := Load(writeConfig(t, "server:\n  port: 3000\n"))
	require.NoError(t, err)

	assert.Equal(t, 3000, config.Server.Port)
	assert.Equal(t, "0.0.0.0", config.Server.Host)               // Default
	assert.Equal(t, 120*time.Second, config.Server.WriteTimeout) // Default
	assert.Equal(t, models.StoreTypeRedis, config.Store.Type)    // Default
	assert.Empty(t, config.Store.URL)
	assert.Equal(t, 30*24*time.Hour, config.Auth.TokenTTL)
	assert.Equal(t, 10, config.Quota.HourlyLimit)
	assert.Equal(t, 20, config.Quota.DailyLimit)
	assert.Equal(t, "scout_history", config.Ledger.Key)
	assert.Equal(t, "weekly_scout_last_execution", config.Schedule.Key)
	assert.Equal(t, 6*24*time.Hour, config.Schedule.MinInterval)
	assert.Equal(t, "gemini-2.5-flash", config.Scan.Model)
	assert.Equal(t, 9, config.Scan.ProductCount)
	assert.Equal(t, "icyfire.info@gmail.com", config.Notify.Recipient)
}

func TestLoad_NoFile(t *testing.T) {
	clearEnv(t)

	config, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, models.NewDefaultConfig(), config)
}

func TestLoad_WithEnvironmentVariables(t *testing.T) {
	clearEnv(t)
	t.Setenv("SCOUTGATE_PORT", "9000")
	t.Setenv("SCOUTGATE_HOST", "127.0.0.1")
	t.Setenv("SCOUTGATE_WRITE_TIMEOUT", "45s")
	t.Setenv("SCOUTGATE_CORS_ALLOWED_ORIGINS", "https://a.example.com, https://b.example.com,")
	t.Setenv("SCOUTGATE_STORE_TYPE", "postgres")
	t.Setenv("DATABASE_URL", "postgres://localhost/scout")
	t.Setenv("SCOUTGATE_QUOTA_HOURLY_LIMIT", "4")
	t.Setenv("SCOUTGATE_QUOTA_DAILY_LIMIT", "8")
	t.Setenv("SCOUTGATE_SCHEDULE_MIN_INTERVAL", "72h")
	t.Setenv("SCOUTGATE_PRODUCT_COUNT", "7")
	t.Setenv("SCOUTGATE_SMTP_HOST", "smtp.example.com")
	t.Setenv("SCOUTGATE_SMTP_FROM", "scout@example.com")
	t.Setenv("SCOUTGATE_LOG_LEVEL", "warn")
	t.Setenv("SCOUTGATE_METRICS_PORT", "9191")
	t.Setenv("SCOUTGATE_TRACING_ENABLED", "TRUE")

	config, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 9000, config.Server.Port)
	assert.Equal(t, "127.0.0.1", config.Server.Host)
	assert.Equal(t, 45*time.Second, config.Server.WriteTimeout)
	assert.Equal(t, []string{"https://a.example.com", "https://b.example.com"}, config.Server.CORS.AllowedOrigins)
	assert.Equal(t, models.StoreTypePostgres, config.Store.Type)
	assert.Equal(t, "postgres://localhost/scout", config.Store.Database.DSN)
	assert.Equal(t, 4, config.Quota.HourlyLimit)
	assert.Equal(t, 8, config.Quota.DailyLimit)
	assert.Equal(t, 72*time.Hour, config.Schedule.MinInterval)
	assert.Equal(t, 7, config.Scan.ProductCount)
	assert.True(t, config.Notify.SMTP.Configured())
	assert.Equal(t, "warn", config.Logging.Level)
	assert.Equal(t, 9191, config.Metrics.Port)
	assert.True(t, config.Observability.Tracing.Enabled)
}

func TestLoad_EnvironmentOverridesFile(t *testing.T) {
	clearEnv(t)
	t.Setenv("SCOUTGATE_PORT", "9000")

	config, err := Load(writeConfig(t, "server:\n  port: 3000\n"))
	require.NoError(t, err)
	assert.Equal(t, 9000, config.Server.Port)
}

func TestLoad_InvalidEnvironmentValuesIgnored(t *testing.T) {
	clearEnv(t)
	t.Setenv("SCOUTGATE_PORT", "not-a-port")
	t.Setenv("SCOUTGATE_SCAN_TIMEOUT", "soon")

	config, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 8080, config.Server.Port)
	assert.Equal(t, 90*time.Second, config.Scan.Timeout)
}

func TestLoad_StoreEnvironmentChains(t *testing.T) {
	tests := []struct {
		name      string
		env       map[string]string
		wantURL   string
		wantToken string
	}{
		{
			name:    "redis url only",
			env:     map[string]string{"REDIS_URL": "redis://cache:6379"},
			wantURL: "redis://cache:6379",
		},
		{
			name: "history prefix wins",
			env: map[string]string{
				"history_REDIS_URL":   "redis://history:6379",
				"KV_REST_API_URL":     "https://kv.example.com",
				"REDIS_URL":           "redis://cache:6379",
				"history_REDIS_TOKEN": "history-token",
				"REDIS_TOKEN":         "cache-token",
			},
			wantURL:   "redis://history:6379",
			wantToken: "history-token",
		},
		{
			name: "vercel kv before plain redis",
			env: map[string]string{
				"KV_REST_API_URL":          "https://kv.example.com",
				"UPSTASH_REDIS_REST_URL":   "https://upstash.example.com",
				"KV_REST_API_TOKEN":        "kv-token",
				"UPSTASH_REDIS_REST_TOKEN": "upstash-token",
			},
			wantURL:   "https://kv.example.com",
			wantToken: "kv-token",
		},
		{
			name: "upstash last",
			env: map[string]string{
				"UPSTASH_REDIS_REST_URL":   "https://upstash.example.com",
				"UPSTASH_REDIS_REST_TOKEN": "upstash-token",
			},
			wantURL:   "https://upstash.example.com",
			wantToken: "upstash-token",
		},
		{
			name: "prefixed variable overrides all",
			env: map[string]string{
				"SCOUTGATE_STORE_URL": "redis://primary:6379",
				"history_REDIS_URL":   "redis://history:6379",
			},
			wantURL: "redis://primary:6379",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			config, err := Load("")
			require.NoError(t, err)
			assert.Equal(t, tt.wantURL, config.Store.URL)
			assert.Equal(t, tt.wantToken, config.Store.Token)
		})
	}
}

func TestLoad_SecretsFromEnvironment(t *testing.T) {
	clearEnv(t)
	t.Setenv("ADMIN_PASSWORD", "hunter2")
	t.Setenv("CRON_SECRET", "cron-s3cret")
	t.Setenv("GEMINI_API_KEY", "gemini-key")
	t.Setenv("RECIPIENT_EMAIL", "rd@example.com")

	config, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "hunter2", config.Auth.AdminPassword)
	assert.Equal(t, "cron-s3cret", config.Auth.CronSecret)
	assert.Equal(t, "gemini-key", config.Scan.APIKey)
	assert.Equal(t, "rd@example.com", config.Notify.Recipient)

	t.Setenv("SCOUTGATE_ADMIN_PASSWORD", "override")
	config, err = Load("")
	require.NoError(t, err)
	assert.Equal(t, "override", config.Auth.AdminPassword)
}

func TestLoad_NonExistentFile(t *testing.T) {
	_, err := Load("/nonexistent/config.yaml")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "config file not found")
}

func TestLoad_InvalidYAML(t *testing.T) {
	clearEnv(t)
	_, err := Load(writeConfig(t, "server:\n  port: [not, a, number\n"))
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse YAML config")
}

func TestLoad_EmptyConfigFile(t *testing.T) {
	clearEnv(t)
	config, err := Load(writeConfig(t, ""))
	require.NoError(t, err)
	assert.Equal(t, 8080, config.Server.Port)
}

func TestLoad_InvalidConfiguration(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{name: "bad port", content: "server:\n  port: 70000\n", want: "invalid server config"},
		{name: "bad store type", content: "store:\n  type: etcd\n", want: "invalid store config"},
		{name: "tls without certs", content: "server:\n  tls_enabled: true\n", want: "TLS cert file is required"},
		{name: "zero quota", content: "quota:\n  hourly_limit: 0\n", want: "invalid quota config"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			_, err := Load(writeConfig(t, tt.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), "invalid configuration")
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoad_InlineSecretsStillApply(t *testing.T) {
	clearEnv(t)
	config, err := Load(writeConfig(t, "auth:\n  admin_password: from-file\n"))
	require.NoError(t, err)
	assert.Equal(t, "from-file", config.Auth.AdminPassword)
}

func TestSaveExample(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "nested", "scoutgate.yaml")

	require.NoError(t, SaveExample(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "# scoutgate example configuration."))

	var parsed models.Config
	require.NoError(t, yaml.Unmarshal(data, &parsed))
	assert.Equal(t, "redis://localhost:6379/0", parsed.Store.URL)
	assert.Empty(t, parsed.Auth.AdminPassword)

	config, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "smtp.example.com", config.Notify.SMTP.Host)
}
