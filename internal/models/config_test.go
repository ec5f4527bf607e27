package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewDefaultConfig(t *testing.T) {
	config := NewDefaultConfig()

	// Test server defaults
	assert.Equal(t, 8080, config.Server.Port)
	assert.Equal(t, "0.0.0.0", config.Server.Host)
	assert.Equal(t, 30*time.Second, config.Server.ReadTimeout)
	assert.Equal(t, 60*time.Second, config.Server.IdleTimeout)
	assert.False(t, config.Server.TLSEnabled)

	// Test store defaults
	assert.Equal(t, StoreTypeRedis, config.Store.Type)
	assert.Empty(t, config.Store.URL)
	assert.Equal(t, 5*time.Second, config.Store.ConnectTimeout)

	// Test auth defaults
	assert.Equal(t, 30*24*time.Hour, config.Auth.TokenTTL)
	assert.Equal(t, time.Hour, config.Auth.GracePeriod)
	assert.Empty(t, config.Auth.AdminPassword)
	assert.True(t, config.Auth.VerifyRateLimit.Enabled)

	// Test quota, ledger and schedule defaults
	assert.Equal(t, 10, config.Quota.HourlyLimit)
	assert.Equal(t, 20, config.Quota.DailyLimit)
	assert.Equal(t, 500, config.Ledger.MaxSize)
	assert.Equal(t, "scout_history", config.Ledger.Key)
	assert.Equal(t, 144*time.Hour, config.Schedule.MinInterval)

	// Test scan defaults
	assert.Equal(t, "gemini-2.5-flash", config.Scan.Model)
	assert.Equal(t, 9, config.Scan.ProductCount)
	assert.Equal(t, 11, config.Scan.CandidateCount)
	assert.NotEmpty(t, config.Scan.TechStack)
	assert.Equal(t, "icyfire.info@gmail.com", config.Notify.Recipient)
	assert.Equal(t, 587, config.Notify.SMTP.Port)

	// Test logging defaults
	assert.Equal(t, "info", config.Logging.Level)
	assert.Equal(t, "json", config.Logging.Format)
	assert.Equal(t, "stdout", config.Logging.Output)

	// Test metrics and observability defaults
	assert.True(t, config.Metrics.Enabled)
	assert.Equal(t, "/metrics", config.Metrics.Path)
	assert.Equal(t, 9090, config.Metrics.Port)
	assert.Equal(t, "scoutgate", config.Observability.ServiceName)
	assert.False(t, config.Observability.Tracing.Enabled)
	assert.Equal(t, 1.0, config.Observability.Tracing.SampleRate)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name        string
		mutate      func(c *Config)
		expectError bool
		errorMsg    string
	}{
		{
			name:   "valid default config",
			mutate: func(c *Config) {},
		},
		{
			name:        "invalid server config",
			mutate:      func(c *Config) { c.Server.Port = -1 },
			expectError: true,
			errorMsg:    "invalid server config",
		},
		{
			name:        "invalid store config",
			mutate:      func(c *Config) { c.Store.Type = "etcd" },
			expectError: true,
			errorMsg:    "invalid store config",
		},
		{
			name:        "invalid auth config",
			mutate:      func(c *Config) { c.Auth.TokenTTL = 0 },
			expectError: true,
			errorMsg:    "invalid auth config",
		},
		{
			name:        "invalid quota config",
			mutate:      func(c *Config) { c.Quota.DailyLimit = 0 },
			expectError: true,
			errorMsg:    "invalid quota config",
		},
		{
			name:        "invalid ledger config",
			mutate:      func(c *Config) { c.Ledger.MaxSize = 0 },
			expectError: true,
			errorMsg:    "invalid ledger config",
		},
		{
			name:        "invalid schedule config",
			mutate:      func(c *Config) { c.Schedule.Key = "" },
			expectError: true,
			errorMsg:    "invalid schedule config",
		},
		{
			name:        "invalid scan config",
			mutate:      func(c *Config) { c.Scan.CandidateCount = 1 },
			expectError: true,
			errorMsg:    "invalid scan config",
		},
		{
			name: "invalid notify config",
			mutate: func(c *Config) {
				c.Notify.SMTP = SMTPConfig{Host: "smtp.example.com", From: "scout@example.com"}
			},
			expectError: true,
			errorMsg:    "invalid notify config",
		},
		{
			name:        "invalid logging config",
			mutate:      func(c *Config) { c.Logging.Level = "verbose" },
			expectError: true,
			errorMsg:    "invalid logging config",
		},
		{
			name:        "invalid metrics config",
			mutate:      func(c *Config) { c.Metrics.Port = 0 },
			expectError: true,
			errorMsg:    "invalid metrics config",
		},
		{
			name: "invalid observability config",
			mutate: func(c *Config) {
				c.Observability.Tracing.Enabled = true
				c.Observability.Tracing.Exporter = "zipkin"
			},
			expectError: true,
			errorMsg:    "invalid observability config",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := NewDefaultConfig()
			tt.mutate(config)
			err := config.Validate()
			if tt.expectError {
				assert.Error(t, err)
				assert.Contains(t, err.Error(), tt.errorMsg)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestServerConfig_Validate(t *testing.T) {
	tests := []struct {
		name        string
		config      ServerConfig
		expectError bool
	}{
		{"valid", ServerConfig{Port: 8080, Host: "localhost"}, false},
		{"port zero", ServerConfig{Port: 0, Host: "localhost"}, true},
		{"port too high", ServerConfig{Port: 70000, Host: "localhost"}, true},
		{"empty host", ServerConfig{Port: 8080}, true},
		{"negative read timeout", ServerConfig{Port: 8080, Host: "localhost", ReadTimeout: -time.Second}, true},
		{"tls without cert", ServerConfig{Port: 8080, Host: "localhost", TLSEnabled: true, TLSKeyFile: "k"}, true},
		{"tls without key", ServerConfig{Port: 8080, Host: "localhost", TLSEnabled: true, TLSCertFile: "c"}, true},
		{"tls complete", ServerConfig{Port: 8080, Host: "localhost", TLSEnabled: true, TLSCertFile: "c", TLSKeyFile: "k"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.expectError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestStoreConfig_Validate(t *testing.T) {
	tests := []struct {
		name        string
		config      StoreConfig
		expectError bool
	}{
		{"redis without url", StoreConfig{Type: StoreTypeRedis}, false},
		{"postgres without dsn", StoreConfig{Type: StoreTypePostgres}, false},
		{"sqlite", StoreConfig{Type: StoreTypeSQLite, Database: DatabaseConfig{DSN: "file::memory:"}}, false},
		{"memory", StoreConfig{Type: StoreTypeMemory}, false},
		{"none", StoreConfig{Type: StoreTypeNone}, false},
		{"file", StoreConfig{Type: StoreTypeFile, Path: "/var/lib/scoutgate/store.json"}, false},
		{"unknown type", StoreConfig{Type: "dynamo"}, true},
		{"negative timeout", StoreConfig{Type: StoreTypeRedis, ConnectTimeout: -time.Second}, true},
		{"negative pool", StoreConfig{Type: StoreTypeRedis, PoolSize: -1}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.expectError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestAuthConfig_Validate(t *testing.T) {
	valid := NewDefaultConfig().Auth

	assert.NoError(t, valid.Validate())

	noTTL := valid
	noTTL.TokenTTL = 0
	assert.Error(t, noTTL.Validate())

	negativeGrace := valid
	negativeGrace.GracePeriod = -time.Minute
	assert.Error(t, negativeGrace.Validate())

	badLimit := valid
	badLimit.VerifyRateLimit.RequestsPerMinute = 0
	assert.Error(t, badLimit.Validate())

	disabledLimit := valid
	disabledLimit.VerifyRateLimit = RateLimitConfig{Enabled: false}
	assert.NoError(t, disabledLimit.Validate())
}

func TestLoggingConfig_Validate(t *testing.T) {
	tests := []struct {
		name        string
		config      LoggingConfig
		expectError bool
	}{
		{"valid json stdout", LoggingConfig{Level: "info", Format: "json", Output: "stdout"}, false},
		{"valid text stderr", LoggingConfig{Level: "debug", Format: "text", Output: "stderr"}, false},
		{"invalid level", LoggingConfig{Level: "trace", Format: "json", Output: "stdout"}, true},
		{"invalid format", LoggingConfig{Level: "info", Format: "xml", Output: "stdout"}, true},
		{"invalid output", LoggingConfig{Level: "info", Format: "json", Output: "syslog"}, true},
		{"file without path", LoggingConfig{Level: "info", Format: "json", Output: "file"}, true},
		{"file with path", LoggingConfig{Level: "info", Format: "json", Output: "file", FilePath: "/tmp/x.log"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.expectError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestMetricsConfig_Validate(t *testing.T) {
	assert.NoError(t, (&MetricsConfig{Enabled: false}).Validate())
	assert.NoError(t, (&MetricsConfig{Enabled: true, Path: "/metrics", Port: 9090}).Validate())
	assert.Error(t, (&MetricsConfig{Enabled: true, Port: 9090}).Validate())
	assert.Error(t, (&MetricsConfig{Enabled: true, Path: "/metrics", Port: 99999}).Validate())
}

func TestObservabilityConfig_Validate(t *testing.T) {
	tests := []struct {
		name        string
		config      ObservabilityConfig
		expectError bool
	}{
		{"tracing disabled", ObservabilityConfig{ServiceName: "svc"}, false},
		{"empty service name", ObservabilityConfig{}, true},
		{"stdout exporter", ObservabilityConfig{ServiceName: "svc", Tracing: TracingConfig{Enabled: true, Exporter: "stdout", SampleRate: 0.5}}, false},
		{"otlp without endpoint", ObservabilityConfig{ServiceName: "svc", Tracing: TracingConfig{Enabled: true, Exporter: "otlp", SampleRate: 1}}, true},
		{"otlp with endpoint", ObservabilityConfig{ServiceName: "svc", Tracing: TracingConfig{Enabled: true, Exporter: "otlp", OTLPEndpoint: "localhost:4317", SampleRate: 1}}, false},
		{"sample rate out of range", ObservabilityConfig{ServiceName: "svc", Tracing: TracingConfig{Enabled: true, Exporter: "stdout", SampleRate: 2}}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.expectError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestSMTPConfig_Configured(t *testing.T) {
	assert.False(t, SMTPConfig{}.Configured())
	assert.False(t, SMTPConfig{Host: "smtp.example.com"}.Configured())
	assert.True(t, SMTPConfig{Host: "smtp.example.com", From: "scout@example.com"}.Configured())
}

func TestNotifyConfig_Validate(t *testing.T) {
	smtp := SMTPConfig{Host: "smtp.example.com", Port: 587, From: "scout@example.com"}

	tests := []struct {
		name        string
		config      NotifyConfig
		expectError bool
	}{
		{name: "smtp unset", config: NotifyConfig{}},
		{name: "configured", config: NotifyConfig{Recipient: "team@example.com", SMTP: smtp}},
		{name: "missing recipient", config: NotifyConfig{SMTP: smtp}, expectError: true},
		{
			name:        "bad port",
			config:      NotifyConfig{Recipient: "team@example.com", SMTP: SMTPConfig{Host: "smtp.example.com", From: "scout@example.com", Port: 70000}},
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.expectError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
