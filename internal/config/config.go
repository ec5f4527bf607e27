package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"scoutgate/internal/models"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Environment variable chains for settings that predate the SCOUTGATE_
// prefix. The first non-empty variable wins.
var (
	StoreURLEnv      = []string{"SCOUTGATE_STORE_URL", "history_REDIS_URL", "KV_REST_API_URL", "REDIS_URL", "UPSTASH_REDIS_REST_URL"}
	StoreTokenEnv    = []string{"SCOUTGATE_STORE_TOKEN", "history_REDIS_TOKEN", "KV_REST_API_TOKEN", "REDIS_TOKEN", "UPSTASH_REDIS_REST_TOKEN"}
	DatabaseDSNEnv   = []string{"SCOUTGATE_DATABASE_DSN", "DATABASE_URL"}
	AdminPasswordEnv = []string{"SCOUTGATE_ADMIN_PASSWORD", "ADMIN_PASSWORD"}
	CronSecretEnv    = []string{"SCOUTGATE_CRON_SECRET", "CRON_SECRET"}
	GeminiAPIKeyEnv  = []string{"SCOUTGATE_GEMINI_API_KEY", "GEMINI_API_KEY"}
	RecipientEnv     = []string{"SCOUTGATE_RECIPIENT_EMAIL", "RECIPIENT_EMAIL"}
)

// Load loads configuration from file and environment variables
func Load(configPath string) (*models.Config, error) {
	// Start with default configuration
	config := models.NewDefaultConfig()

	// Load from file if provided and exists
	if configPath != "" {
		if err := loadFromFile(config, configPath); err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
	}

	// Override with environment variables
	loadFromEnvironment(config)

	// Validate the final configuration
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// inlineSecrets mirrors the config fields that should come from the environment.
type inlineSecrets struct {
	Store struct {
		Token    string `yaml:"token"`
		Database struct {
			DSN string `yaml:"dsn"`
		} `yaml:"database"`
	} `yaml:"store"`
	Auth struct {
		AdminPassword string `yaml:"admin_password"`
		CronSecret    string `yaml:"cron_secret"`
	} `yaml:"auth"`
	Scan struct {
		APIKey string `yaml:"api_key"`
	} `yaml:"scan"`
	Notify struct {
		SMTP struct {
			Password string `yaml:"password"`
		} `yaml:"smtp"`
	} `yaml:"notify"`
}

// warnInlineSecrets logs a warning for each secret found in the YAML data.
// The values are still used; the warning only nudges operators towards
// environment variables.
func warnInlineSecrets(data []byte) {
	var sec inlineSecrets
	if err := yaml.Unmarshal(data, &sec); err != nil {
		return
	}
	found := map[string]string{
		"store.token":          sec.Store.Token,
		"store.database.dsn":   sec.Store.Database.DSN,
		"auth.admin_password":  sec.Auth.AdminPassword,
		"auth.cron_secret":     sec.Auth.CronSecret,
		"scan.api_key":         sec.Scan.APIKey,
		"notify.smtp.password": sec.Notify.SMTP.Password,
	}
	for key, value := range found {
		if value != "" {
			slog.Warn("Secret set in config file; prefer an environment variable", "config_key", key)
		}
	}
}

// loadFromFile loads configuration from a YAML file
func loadFromFile(config *models.Config, filePath string) error {
	if _, err := os.Stat(filePath); os.IsNotExist(err) {
		return fmt.Errorf("config file not found: %s", filePath)
	}
	data, err := os.ReadFile(filePath)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	warnInlineSecrets(data)
	if err := yaml.Unmarshal(data, config); err != nil {
		return fmt.Errorf("failed to parse YAML config: %w", err)
	}
	return nil
}

// firstEnv returns the first non-empty value among keys.
func firstEnv(keys []string) (string, bool) {
	for _, key := range keys {
		if v := os.Getenv(key); v != "" {
			return v, true
		}
	}
	return "", false
}

func envInt(key string, dst *int) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func envDuration(key string, dst *time.Duration) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}

func envBool(key string, dst *bool) {
	if v := os.Getenv(key); v != "" {
		*dst = strings.ToLower(v) == "true"
	}
}

func envString(key string, dst *string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

// loadFromEnvironment loads configuration from environment variables
func loadFromEnvironment(config *models.Config) {
	// Server configuration
	envInt("SCOUTGATE_PORT", &config.Server.Port)
	envString("SCOUTGATE_HOST", &config.Server.Host)
	envDuration("SCOUTGATE_READ_TIMEOUT", &config.Server.ReadTimeout)
	envDuration("SCOUTGATE_WRITE_TIMEOUT", &config.Server.WriteTimeout)
	envDuration("SCOUTGATE_IDLE_TIMEOUT", &config.Server.IdleTimeout)
	envBool("SCOUTGATE_TLS_ENABLED", &config.Server.TLSEnabled)
	envString("SCOUTGATE_TLS_CERT_FILE", &config.Server.TLSCertFile)
	envString("SCOUTGATE_TLS_KEY_FILE", &config.Server.TLSKeyFile)
	envBool("SCOUTGATE_CORS_ENABLED", &config.Server.CORS.Enabled)
	if origins := os.Getenv("SCOUTGATE_CORS_ALLOWED_ORIGINS"); origins != "" {
		config.Server.CORS.AllowedOrigins = splitList(origins)
	}

	// Store configuration
	envString("SCOUTGATE_STORE_TYPE", &config.Store.Type)
	if url, ok := firstEnv(StoreURLEnv); ok {
		config.Store.URL = url
	}
	if token, ok := firstEnv(StoreTokenEnv); ok {
		config.Store.Token = token
	}
	if dsn, ok := firstEnv(DatabaseDSNEnv); ok {
		config.Store.Database.DSN = dsn
	}
	envString("SCOUTGATE_STORE_PATH", &config.Store.Path)
	envDuration("SCOUTGATE_STORE_CONNECT_TIMEOUT", &config.Store.ConnectTimeout)
	envInt("SCOUTGATE_STORE_POOL_SIZE", &config.Store.PoolSize)
	envInt("SCOUTGATE_DATABASE_MAX_OPEN_CONNS", &config.Store.Database.MaxOpenConns)
	envInt("SCOUTGATE_DATABASE_MAX_IDLE_CONNS", &config.Store.Database.MaxIdleConns)

	// Auth configuration
	if password, ok := firstEnv(AdminPasswordEnv); ok {
		config.Auth.AdminPassword = password
	}
	if secret, ok := firstEnv(CronSecretEnv); ok {
		config.Auth.CronSecret = secret
	}
	envDuration("SCOUTGATE_TOKEN_TTL", &config.Auth.TokenTTL)
	envBool("SCOUTGATE_VERIFY_RATE_LIMIT_ENABLED", &config.Auth.VerifyRateLimit.Enabled)
	envInt("SCOUTGATE_VERIFY_RATE_LIMIT_RPM", &config.Auth.VerifyRateLimit.RequestsPerMinute)
	envInt("SCOUTGATE_VERIFY_RATE_LIMIT_BURST", &config.Auth.VerifyRateLimit.BurstSize)

	// Quota, ledger and schedule
	envInt("SCOUTGATE_QUOTA_HOURLY_LIMIT", &config.Quota.HourlyLimit)
	envInt("SCOUTGATE_QUOTA_DAILY_LIMIT", &config.Quota.DailyLimit)
	envString("SCOUTGATE_LEDGER_KEY", &config.Ledger.Key)
	envInt("SCOUTGATE_LEDGER_MAX_SIZE", &config.Ledger.MaxSize)
	envString("SCOUTGATE_SCHEDULE_KEY", &config.Schedule.Key)
	envDuration("SCOUTGATE_SCHEDULE_MIN_INTERVAL", &config.Schedule.MinInterval)

	// Scan configuration
	if key, ok := firstEnv(GeminiAPIKeyEnv); ok {
		config.Scan.APIKey = key
	}
	envString("SCOUTGATE_GEMINI_MODEL", &config.Scan.Model)
	envInt("SCOUTGATE_PRODUCT_COUNT", &config.Scan.ProductCount)
	envInt("SCOUTGATE_CANDIDATE_COUNT", &config.Scan.CandidateCount)
	envDuration("SCOUTGATE_SCAN_TIMEOUT", &config.Scan.Timeout)

	// Notify configuration
	if recipient, ok := firstEnv(RecipientEnv); ok {
		config.Notify.Recipient = recipient
	}
	envString("SCOUTGATE_SMTP_HOST", &config.Notify.SMTP.Host)
	envInt("SCOUTGATE_SMTP_PORT", &config.Notify.SMTP.Port)
	envString("SCOUTGATE_SMTP_USERNAME", &config.Notify.SMTP.Username)
	envString("SCOUTGATE_SMTP_PASSWORD", &config.Notify.SMTP.Password)
	envString("SCOUTGATE_SMTP_FROM", &config.Notify.SMTP.From)

	// Logging configuration
	envString("SCOUTGATE_LOG_LEVEL", &config.Logging.Level)
	envString("SCOUTGATE_LOG_FORMAT", &config.Logging.Format)
	envString("SCOUTGATE_LOG_OUTPUT", &config.Logging.Output)
	envString("SCOUTGATE_LOG_FILE_PATH", &config.Logging.FilePath)

	// Metrics and tracing
	envBool("SCOUTGATE_METRICS_ENABLED", &config.Metrics.Enabled)
	envString("SCOUTGATE_METRICS_PATH", &config.Metrics.Path)
	envInt("SCOUTGATE_METRICS_PORT", &config.Metrics.Port)
	envBool("SCOUTGATE_TRACING_ENABLED", &config.Observability.Tracing.Enabled)
	envString("SCOUTGATE_TRACING_EXPORTER", &config.Observability.Tracing.Exporter)
	envString("SCOUTGATE_OTLP_ENDPOINT", &config.Observability.Tracing.OTLPEndpoint)
}

func splitList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// SaveExample saves an example configuration file. Secrets are left empty
// and documented as environment variables instead.
func SaveExample(filePath string) error {
	// Create directory if it doesn't exist
	if err := os.MkdirAll(filepath.Dir(filePath), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	config := models.NewDefaultConfig()
	config.Store.URL = "redis://localhost:6379/0"
	config.Notify.SMTP.Host = "smtp.example.com"
	config.Notify.SMTP.From = "scout@example.com"
	config.Server.TLSCertFile = "/path/to/cert.pem"
	config.Server.TLSKeyFile = "/path/to/key.pem"

	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal config to YAML: %w", err)
	}

	header := "# scoutgate example configuration.\n" +
		"# Set secrets through the environment: ADMIN_PASSWORD, CRON_SECRET,\n" +
		"# GEMINI_API_KEY, REDIS_URL/REDIS_TOKEN and SCOUTGATE_SMTP_PASSWORD.\n"

	if err := os.WriteFile(filePath, append([]byte(header), data...), 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
