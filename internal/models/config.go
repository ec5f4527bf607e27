// Package models - Service configuration and operational settings.
// This file defines configuration structures for every scoutgate component.
//
// Configuration Philosophy:
// - Hierarchical configuration grouped by component (server, store, auth, quota, ...)
// - Defaults that run out of the box against an unconfigured store
// - Validation that catches misconfigurations before the server starts
package models

import (
	"errors"
	"fmt"
	"time"
)

// Store type constants
const (
	StoreTypeRedis    = "redis"
	StoreTypePostgres = "postgres"
	StoreTypeSQLite   = "sqlite"
	StoreTypeMemory   = "memory"
	StoreTypeFile     = "file"
	StoreTypeNone     = "none"
)

// Config is the root configuration structure containing all service settings.
//
// Configuration Structure:
// - Server: HTTP server and network settings
// - Store: durable key-value store backing credentials, counters and history
// - Auth: admin password, credential lifetime, scheduled-caller secret
// - Quota: hourly and daily invocation ceilings
// - Ledger: deduplication history settings
// - Schedule: minimum spacing between scheduled runs
// - Scan: product scanner (Gemini) settings
// - Notify: report delivery settings
// - Logging, Metrics, Observability: operational concerns
type Config struct {
	Server        ServerConfig        `yaml:"server" json:"server"`
	Store         StoreConfig         `yaml:"store" json:"store"`
	Auth          AuthConfig          `yaml:"auth" json:"auth"`
	Quota         QuotaConfig         `yaml:"quota" json:"quota"`
	Ledger        LedgerConfig        `yaml:"ledger" json:"ledger"`
	Schedule      ScheduleConfig      `yaml:"schedule" json:"schedule"`
	Scan          ScanConfig          `yaml:"scan" json:"scan"`
	Notify        NotifyConfig        `yaml:"notify" json:"notify"`
	Logging       LoggingConfig       `yaml:"logging" json:"logging"`
	Metrics       MetricsConfig       `yaml:"metrics" json:"metrics"`
	Observability ObservabilityConfig `yaml:"observability" json:"observability"`
}

type ServerConfig struct {
	Port         int           `yaml:"port" json:"port"`
	Host         string        `yaml:"host" json:"host"`
	ReadTimeout  time.Duration `yaml:"read_timeout" json:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout" json:"write_timeout"`
	IdleTimeout  time.Duration `yaml:"idle_timeout" json:"idle_timeout"`
	TLSEnabled   bool          `yaml:"tls_enabled" json:"tls_enabled"`
	TLSCertFile  string        `yaml:"tls_cert_file" json:"tls_cert_file"`
	TLSKeyFile   string        `yaml:"tls_key_file" json:"tls_key_file"`
	CORS         CORSConfig    `yaml:"cors" json:"cors"`
}

type CORSConfig struct {
	Enabled        bool     `yaml:"enabled" json:"enabled"`
	AllowedOrigins []string `yaml:"allowed_origins" json:"allowed_origins"`
	AllowedMethods []string `yaml:"allowed_methods" json:"allowed_methods"`
	AllowedHeaders []string `yaml:"allowed_headers" json:"allowed_headers"`
	MaxAge         int      `yaml:"max_age" json:"max_age"`
}

// StoreConfig selects and configures the durable key-value backend.
//
// An empty URL for redis, or an empty DSN for postgres/sqlite, is not a
// configuration error: every session against such a store reports itself
// unavailable and callers fall back to in-process state.
type StoreConfig struct {
	Type           string         `yaml:"type" json:"type"`
	URL            string         `yaml:"url" json:"url"`
	Path           string         `yaml:"path" json:"path"`
	Token          string         `yaml:"token" json:"-"`
	ConnectTimeout time.Duration  `yaml:"connect_timeout" json:"connect_timeout"`
	PoolSize       int            `yaml:"pool_size" json:"pool_size"`
	Database       DatabaseConfig `yaml:"database" json:"database"`
}

type DatabaseConfig struct {
	DSN             string        `yaml:"dsn" json:"-"`
	MaxOpenConns    int           `yaml:"max_open_conns" json:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns" json:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" json:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `yaml:"conn_max_idle_time" json:"conn_max_idle_time"`
}

type AuthConfig struct {
	AdminPassword   string          `yaml:"admin_password" json:"-"`
	TokenTTL        time.Duration   `yaml:"token_ttl" json:"token_ttl"`
	GracePeriod     time.Duration   `yaml:"grace_period" json:"grace_period"`
	CronSecret      string          `yaml:"cron_secret" json:"-"`
	VerifyRateLimit RateLimitConfig `yaml:"verify_rate_limit" json:"verify_rate_limit"`
}

// RateLimitConfig throttles credential issuance attempts per client IP.
type RateLimitConfig struct {
	Enabled           bool          `yaml:"enabled" json:"enabled"`
	RequestsPerMinute int           `yaml:"requests_per_minute" json:"requests_per_minute"`
	BurstSize         int           `yaml:"burst_size" json:"burst_size"`
	CleanupInterval   time.Duration `yaml:"cleanup_interval" json:"cleanup_interval"`
}

type QuotaConfig struct {
	HourlyLimit int `yaml:"hourly_limit" json:"hourly_limit"`
	DailyLimit  int `yaml:"daily_limit" json:"daily_limit"`
}

type LedgerConfig struct {
	Key     string `yaml:"key" json:"key"`
	MaxSize int    `yaml:"max_size" json:"max_size"`
}

type ScheduleConfig struct {
	Key         string        `yaml:"key" json:"key"`
	MinInterval time.Duration `yaml:"min_interval" json:"min_interval"`
}

// ScanConfig configures the Gemini product scanner.
type ScanConfig struct {
	APIKey         string        `yaml:"api_key" json:"-"`
	Model          string        `yaml:"model" json:"model"`
	ProductCount   int           `yaml:"product_count" json:"product_count"`
	CandidateCount int           `yaml:"candidate_count" json:"candidate_count"`
	Timeout        time.Duration `yaml:"timeout" json:"timeout"`
	CompanyName    string        `yaml:"company_name" json:"company_name"`
	TechStack      []string      `yaml:"tech_stack" json:"tech_stack"`
	Categories     []string      `yaml:"categories" json:"categories"`
}

type NotifyConfig struct {
	Recipient string     `yaml:"recipient" json:"recipient"`
	SMTP      SMTPConfig `yaml:"smtp" json:"smtp"`
}

type SMTPConfig struct {
	Host     string `yaml:"host" json:"host"`
	Port     int    `yaml:"port" json:"port"`
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"-"`
	From     string `yaml:"from" json:"from"`
}

// Configured reports whether enough SMTP settings are present to send mail.
func (sc SMTPConfig) Configured() bool {
	return sc.Host != "" && sc.From != ""
}

type LoggingConfig struct {
	Level    string `yaml:"level" json:"level"`
	Format   string `yaml:"format" json:"format"`
	Output   string `yaml:"output" json:"output"`
	FilePath string `yaml:"file_path" json:"file_path"`
}

type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Path    string `yaml:"path" json:"path"`
	Port    int    `yaml:"port" json:"port"`
}

type ObservabilityConfig struct {
	ServiceName string        `yaml:"service_name" json:"service_name"`
	Tracing     TracingConfig `yaml:"tracing" json:"tracing"`
}

type TracingConfig struct {
	Enabled      bool    `yaml:"enabled" json:"enabled"`
	Exporter     string  `yaml:"exporter" json:"exporter"`
	OTLPEndpoint string  `yaml:"otlp_endpoint" json:"otlp_endpoint"`
	SampleRate   float64 `yaml:"sample_rate" json:"sample_rate"`
}

// NewDefaultConfig creates a configuration with working defaults.
//
// Default Values:
// - Port 8080, 30-second timeouts
// - Redis store with no URL: every session is unavailable until one is supplied
// - 30-day credentials with a one-hour store grace margin
// - 10 scans per hour, 20 per day
// - 500 remembered products, 6 days between scheduled runs
func NewDefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         8080,
			Host:         "0.0.0.0",
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 120 * time.Second,
			IdleTimeout:  60 * time.Second,
			TLSEnabled:   false,
			CORS: CORSConfig{
				Enabled:        true,
				AllowedOrigins: []string{"*"},
				AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
				AllowedHeaders: []string{"Authorization", "Content-Type"},
				MaxAge:         86400,
			},
		},
		Store: StoreConfig{
			Type:           StoreTypeRedis,
			ConnectTimeout: 5 * time.Second,
			PoolSize:       10,
			Database: DatabaseConfig{
				MaxOpenConns:    10,
				MaxIdleConns:    2,
				ConnMaxLifetime: 5 * time.Minute,
				ConnMaxIdleTime: 5 * time.Minute,
			},
		},
		Auth: AuthConfig{
			TokenTTL:    30 * 24 * time.Hour,
			GracePeriod: time.Hour,
			VerifyRateLimit: RateLimitConfig{
				Enabled:           true,
				RequestsPerMinute: 10,
				BurstSize:         5,
				CleanupInterval:   5 * time.Minute,
			},
		},
		Quota: QuotaConfig{
			HourlyLimit: 10,
			DailyLimit:  20,
		},
		Ledger: LedgerConfig{
			Key:     "scout_history",
			MaxSize: 500,
		},
		Schedule: ScheduleConfig{
			Key:         "weekly_scout_last_execution",
			MinInterval: 6 * 24 * time.Hour,
		},
		Scan: ScanConfig{
			Model:          "gemini-2.5-flash",
			ProductCount:   9,
			CandidateCount: 11,
			Timeout:        90 * time.Second,
			CompanyName:    "IcyFire Tech Solutions",
			TechStack: []string{
				"Sensors: Temp/Humidity (SHT/NTC), MEMS, Bio-impedance, Hall Effect",
				"Connectivity: BLE, WiFi (Tuya/ESP), SubG",
				"Output: LCD/LED, Motor/Servo, Audio",
				"Algorithms: PID, Pedometer",
			},
			Categories: []string{"Smart Home", "Health", "Pet Supplies", "Tools"},
		},
		Notify: NotifyConfig{
			Recipient: "icyfire.info@gmail.com",
			SMTP: SMTPConfig{
				Port: 587,
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
			Port:    9090,
		},
		Observability: ObservabilityConfig{
			ServiceName: "scoutgate",
			Tracing: TracingConfig{
				Enabled:    false,
				Exporter:   "stdout",
				SampleRate: 1.0,
			},
		},
	}
}

func (c *Config) Validate() error {
	if err := c.Server.Validate(); err != nil {
		return fmt.Errorf("invalid server config: %w", err)
	}

	if err := c.Store.Validate(); err != nil {
		return fmt.Errorf("invalid store config: %w", err)
	}

	if err := c.Auth.Validate(); err != nil {
		return fmt.Errorf("invalid auth config: %w", err)
	}

	if err := c.Quota.Validate(); err != nil {
		return fmt.Errorf("invalid quota config: %w", err)
	}

	if err := c.Ledger.Validate(); err != nil {
		return fmt.Errorf("invalid ledger config: %w", err)
	}

	if err := c.Schedule.Validate(); err != nil {
		return fmt.Errorf("invalid schedule config: %w", err)
	}

	if err := c.Scan.Validate(); err != nil {
		return fmt.Errorf("invalid scan config: %w", err)
	}

	if err := c.Notify.Validate(); err != nil {
		return fmt.Errorf("invalid notify config: %w", err)
	}

	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("invalid logging config: %w", err)
	}

	if err := c.Metrics.Validate(); err != nil {
		return fmt.Errorf("invalid metrics config: %w", err)
	}

	if err := c.Observability.Validate(); err != nil {
		return fmt.Errorf("invalid observability config: %w", err)
	}

	return nil
}

func (sc *ServerConfig) Validate() error {
	if sc.Port <= 0 || sc.Port > 65535 {
		return errors.New("port must be between 1 and 65535")
	}

	if sc.Host == "" {
		return errors.New("host cannot be empty")
	}

	if sc.ReadTimeout < 0 {
		return errors.New("read timeout cannot be negative")
	}

	if sc.WriteTimeout < 0 {
		return errors.New("write timeout cannot be negative")
	}

	if sc.IdleTimeout < 0 {
		return errors.New("idle timeout cannot be negative")
	}

	if sc.TLSEnabled {
		if sc.TLSCertFile == "" {
			return errors.New("TLS cert file is required when TLS is enabled")
		}
		if sc.TLSKeyFile == "" {
			return errors.New("TLS key file is required when TLS is enabled")
		}
	}

	return nil
}

func (stc *StoreConfig) Validate() error {
	validTypes := []string{StoreTypeRedis, StoreTypePostgres, StoreTypeSQLite, StoreTypeFile, StoreTypeMemory, StoreTypeNone}
	found := false
	for _, vt := range validTypes {
		if stc.Type == vt {
			found = true
			break
		}
	}
	if !found {
		return fmt.Errorf("invalid store type: %s", stc.Type)
	}

	if stc.ConnectTimeout < 0 {
		return errors.New("connect timeout cannot be negative")
	}

	if stc.PoolSize < 0 {
		return errors.New("pool size cannot be negative")
	}

	return nil
}

func (ac *AuthConfig) Validate() error {
	if ac.TokenTTL <= 0 {
		return errors.New("token TTL must be positive")
	}

	if ac.GracePeriod < 0 {
		return errors.New("grace period cannot be negative")
	}

	if ac.VerifyRateLimit.Enabled {
		if ac.VerifyRateLimit.RequestsPerMinute <= 0 {
			return errors.New("verify rate limit requests per minute must be positive")
		}
		if ac.VerifyRateLimit.BurstSize <= 0 {
			return errors.New("verify rate limit burst size must be positive")
		}
		if ac.VerifyRateLimit.CleanupInterval <= 0 {
			return errors.New("verify rate limit cleanup interval must be positive")
		}
	}

	return nil
}

func (qc *QuotaConfig) Validate() error {
	if qc.HourlyLimit <= 0 {
		return errors.New("hourly limit must be positive")
	}
	if qc.DailyLimit <= 0 {
		return errors.New("daily limit must be positive")
	}
	return nil
}

func (lc *LedgerConfig) Validate() error {
	if lc.Key == "" {
		return errors.New("ledger key cannot be empty")
	}
	if lc.MaxSize <= 0 {
		return errors.New("ledger max size must be positive")
	}
	return nil
}

func (sc *ScheduleConfig) Validate() error {
	if sc.Key == "" {
		return errors.New("schedule key cannot be empty")
	}
	if sc.MinInterval < 0 {
		return errors.New("minimum interval cannot be negative")
	}
	return nil
}

func (sc *ScanConfig) Validate() error {
	if sc.Model == "" {
		return errors.New("scan model cannot be empty")
	}
	if sc.ProductCount <= 0 {
		return errors.New("product count must be positive")
	}
	if sc.CandidateCount < sc.ProductCount {
		return errors.New("candidate count cannot be less than product count")
	}
	if sc.Timeout < 0 {
		return errors.New("scan timeout cannot be negative")
	}
	return nil
}

func (nc *NotifyConfig) Validate() error {
	if !nc.SMTP.Configured() {
		return nil
	}
	if nc.Recipient == "" {
		return errors.New("recipient is required when SMTP is configured")
	}
	if nc.SMTP.Port <= 0 || nc.SMTP.Port > 65535 {
		return errors.New("SMTP port must be between 1 and 65535")
	}
	return nil
}

func (lc *LoggingConfig) Validate() error {
	validLevels := []string{"debug", "info", "warn", "error"}
	found := false
	for _, vl := range validLevels {
		if lc.Level == vl {
			found = true
			break
		}
	}
	if !found {
		return fmt.Errorf("invalid log level: %s", lc.Level)
	}

	validFormats := []string{"json", "text"}
	found = false
	for _, vf := range validFormats {
		if lc.Format == vf {
			found = true
			break
		}
	}
	if !found {
		return fmt.Errorf("invalid log format: %s", lc.Format)
	}

	validOutputs := []string{"stdout", "stderr", "file"}
	found = false
	for _, vo := range validOutputs {
		if lc.Output == vo {
			found = true
			break
		}
	}
	if !found {
		return fmt.Errorf("invalid log output: %s", lc.Output)
	}

	if lc.Output == "file" && lc.FilePath == "" {
		return errors.New("file path is required when output is file")
	}

	return nil
}

func (mc *MetricsConfig) Validate() error {
	if !mc.Enabled {
		return nil
	}

	if mc.Path == "" {
		return errors.New("metrics path cannot be empty")
	}

	if mc.Port <= 0 || mc.Port > 65535 {
		return errors.New("metrics port must be between 1 and 65535")
	}

	return nil
}

func (oc *ObservabilityConfig) Validate() error {
	if oc.ServiceName == "" {
		return errors.New("service name cannot be empty")
	}
	if !oc.Tracing.Enabled {
		return nil
	}
	switch oc.Tracing.Exporter {
	case "stdout":
	case "otlp":
		if oc.Tracing.OTLPEndpoint == "" {
			return errors.New("OTLP endpoint is required for the otlp exporter")
		}
	default:
		return fmt.Errorf("invalid trace exporter: %s", oc.Tracing.Exporter)
	}
	if oc.Tracing.SampleRate < 0 || oc.Tracing.SampleRate > 1 {
		return errors.New("sample rate must be between 0 and 1")
	}
	return nil
}
