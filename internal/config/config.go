package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/welldanyogia/node-attachments-backend/internal/validator"
)

// Supported database drivers
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Config holds all configuration for the application
type Config struct {
	// Database
	DatabaseURL string
	DBDriver    string
	SQLitePath  string

	// Server ports
	APIPort  int
	SMTPPort int

	// Mail-in
	SMTPEnabled        bool
	InboundDomain      string
	SMTPMaxMessageSize int64
	SMTPMaxRecipients  int
	SMTPReadTimeout    time.Duration
	SMTPWriteTimeout   time.Duration
	SMTPAllowInsecure  bool
	SMTPTLSCert        string
	SMTPTLSKey         string

	// Storage
	AttachmentStoragePath string

	// Attachment limits
	MaxFileSize           int64
	MaxAttachmentsPerNode int
	AllowedImageTypes     []string
	AllowedDocumentTypes  []string
	StrictAttachmentLimit bool

	// Orphan sweeping; a zero interval disables the sweeper
	OrphanSweepInterval time.Duration
	OrphanGracePeriod   time.Duration

	// Observability
	MetricsEnabled bool
	LogLevel       string

	// Security
	APIKey         string
	AllowedOrigins string
	AppEnv         string

	// Rate Limiting
	RateLimitRequests float64
	RateLimitBurst    int
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{}
	var err error

	// DB_DRIVER (default: postgres)
	cfg.DBDriver = strings.ToLower(os.Getenv("DB_DRIVER"))
	if cfg.DBDriver == "" {
		cfg.DBDriver = DriverPostgres
	}

	cfg.SQLitePath = os.Getenv("SQLITE_PATH")
	if cfg.SQLitePath == "" {
		cfg.SQLitePath = "attachments.db"
	}

	// DATABASE_URL is required for postgres only
	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" && cfg.DBDriver == DriverPostgres {
		return nil, fmt.Errorf("DATABASE_URL is required but not set")
	}

	if cfg.APIPort, err = intEnv("API_PORT", 8080); err != nil {
		return nil, err
	}

	if cfg.SMTPPort, err = intEnv("SMTP_PORT", 2525); err != nil {
		return nil, err
	}

	if cfg.SMTPEnabled, err = boolEnv("SMTP_ENABLED", false); err != nil {
		return nil, err
	}

	cfg.InboundDomain = strings.ToLower(strings.TrimSpace(os.Getenv("INBOUND_DOMAIN")))
	if cfg.InboundDomain == "" {
		cfg.InboundDomain = "localhost"
	}

	// Zero values fall back to the SMTP server defaults
	maxMessage, err := intEnv("SMTP_MAX_MESSAGE_SIZE", 0)
	if err != nil {
		return nil, err
	}
	cfg.SMTPMaxMessageSize = int64(maxMessage)
	if cfg.SMTPMaxRecipients, err = intEnv("SMTP_MAX_RECIPIENTS", 0); err != nil {
		return nil, err
	}
	if cfg.SMTPReadTimeout, err = durationEnv("SMTP_READ_TIMEOUT", 0); err != nil {
		return nil, err
	}
	if cfg.SMTPWriteTimeout, err = durationEnv("SMTP_WRITE_TIMEOUT", 0); err != nil {
		return nil, err
	}
	if cfg.SMTPAllowInsecure, err = boolEnv("SMTP_ALLOW_INSECURE", false); err != nil {
		return nil, err
	}
	cfg.SMTPTLSCert = os.Getenv("SMTP_TLS_CERT")
	cfg.SMTPTLSKey = os.Getenv("SMTP_TLS_KEY")

	// ATTACHMENT_STORAGE_PATH (default: uploads)
	cfg.AttachmentStoragePath = os.Getenv("ATTACHMENT_STORAGE_PATH")
	if cfg.AttachmentStoragePath == "" {
		cfg.AttachmentStoragePath = "uploads"
	}

	// MAX_FILE_SIZE in bytes (default: 5 MiB)
	if v := os.Getenv("MAX_FILE_SIZE"); v != "" {
		size, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("MAX_FILE_SIZE must be a valid integer: %w", err)
		}
		cfg.MaxFileSize = size
	} else {
		cfg.MaxFileSize = validator.DefaultMaxFileSize
	}

	if cfg.MaxAttachmentsPerNode, err = intEnv("MAX_ATTACHMENTS_PER_NODE", validator.DefaultMaxAttachmentsPerNode); err != nil {
		return nil, err
	}

	cfg.AllowedImageTypes = listEnv("ALLOWED_IMAGE_TYPES", validator.DefaultImageTypes)
	cfg.AllowedDocumentTypes = listEnv("ALLOWED_DOCUMENT_TYPES", validator.DefaultDocumentTypes)

	if cfg.StrictAttachmentLimit, err = boolEnv("STRICT_ATTACHMENT_LIMIT", false); err != nil {
		return nil, err
	}

	if cfg.OrphanSweepInterval, err = durationEnv("ORPHAN_SWEEP_INTERVAL", 0); err != nil {
		return nil, err
	}

	if cfg.OrphanGracePeriod, err = durationEnv("ORPHAN_GRACE_PERIOD", time.Hour); err != nil {
		return nil, err
	}

	if cfg.MetricsEnabled, err = boolEnv("METRICS_ENABLED", true); err != nil {
		return nil, err
	}

	// LOG_LEVEL (default: info)
	cfg.LogLevel = os.Getenv("LOG_LEVEL")
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}

	// Security configuration
	cfg.APIKey = os.Getenv("API_KEY")
	cfg.AllowedOrigins = os.Getenv("ALLOWED_ORIGINS")
	cfg.AppEnv = os.Getenv("APP_ENV")
	if cfg.AppEnv == "" {
		cfg.AppEnv = "development"
	}

	if cfg.RateLimitRequests, err = floatEnv("RATE_LIMIT_REQUESTS", 10); err != nil {
		return nil, err
	}
	if cfg.RateLimitBurst, err = intEnv("RATE_LIMIT_BURST", 20); err != nil {
		return nil, err
	}

	return cfg, nil
}

func intEnv(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be a valid integer: %w", key, err)
	}
	return n, nil
}

func floatEnv(key string, def float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("%s must be a valid number: %w", key, err)
	}
	return f, nil
}

func boolEnv(key string, def bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%s must be a valid boolean: %w", key, err)
	}
	return b, nil
}

func durationEnv(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be a valid duration: %w", key, err)
	}
	return d, nil
}

// listEnv splits a comma separated variable, dropping blanks
func listEnv(key string, def []string) []string {
	v := os.Getenv(key)
	if strings.TrimSpace(v) == "" {
		return append([]string(nil), def...)
	}
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// LoadWithValidation loads and validates configuration, failing fast on errors
func LoadWithValidation() (*Config, error) {
	cfg, err := Load()
	if err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	// Production-specific validation
	if cfg.AppEnv == "production" {
		if err := cfg.ValidateProduction(); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	switch c.DBDriver {
	case DriverPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DatabaseURL cannot be empty")
		}
	case DriverSQLite:
		if c.SQLitePath == "" {
			return fmt.Errorf("SQLitePath cannot be empty")
		}
	default:
		return fmt.Errorf("DBDriver must be %q or %q, got %q", DriverPostgres, DriverSQLite, c.DBDriver)
	}
	if c.APIPort <= 0 || c.APIPort > 65535 {
		return fmt.Errorf("APIPort must be between 1 and 65535")
	}
	if c.SMTPEnabled {
		if c.SMTPPort <= 0 || c.SMTPPort > 65535 {
			return fmt.Errorf("SMTPPort must be between 1 and 65535")
		}
		if err := validator.ValidateDomain(c.InboundDomain); err != nil {
			return fmt.Errorf("InboundDomain is invalid: %w", err)
		}
		if c.SMTPMaxMessageSize < 0 || c.SMTPMaxRecipients < 0 {
			return fmt.Errorf("SMTP limits cannot be negative")
		}
		if c.SMTPReadTimeout < 0 || c.SMTPWriteTimeout < 0 {
			return fmt.Errorf("SMTP timeouts cannot be negative")
		}
		if (c.SMTPTLSCert == "") != (c.SMTPTLSKey == "") {
			return fmt.Errorf("SMTP_TLS_CERT and SMTP_TLS_KEY must be set together")
		}
	}
	if c.AttachmentStoragePath == "" {
		return fmt.Errorf("AttachmentStoragePath cannot be empty")
	}
	if c.MaxFileSize <= 0 {
		return fmt.Errorf("MaxFileSize must be positive")
	}
	if c.MaxAttachmentsPerNode <= 0 {
		return fmt.Errorf("MaxAttachmentsPerNode must be positive")
	}
	if len(c.AllowedImageTypes)+len(c.AllowedDocumentTypes) == 0 {
		return fmt.Errorf("at least one allowed content type is required")
	}
	if c.RateLimitRequests <= 0 || c.RateLimitBurst <= 0 {
		return fmt.Errorf("rate limit requests and burst must be positive")
	}
	if c.OrphanSweepInterval < 0 || c.OrphanGracePeriod < 0 {
		return fmt.Errorf("orphan sweep durations cannot be negative")
	}
	return nil
}

// ValidateProduction performs additional validation for production environment
func (c *Config) ValidateProduction() error {
	if c.APIKey == "" {
		return fmt.Errorf("API_KEY is required in production")
	}

	if c.AllowedOrigins == "" {
		return fmt.Errorf("ALLOWED_ORIGINS is required in production")
	}

	// Check for wildcard in production
	if strings.Contains(c.AllowedOrigins, "*") {
		return fmt.Errorf("wildcard (*) origins are not allowed in production")
	}

	// Check for sslmode=disable in database URL
	if strings.Contains(c.DatabaseURL, "sslmode=disable") {
		return fmt.Errorf("sslmode=disable is not allowed in production")
	}

	return nil
}

// UploadPolicy returns the limits the upload validator enforces
func (c *Config) UploadPolicy() validator.UploadPolicy {
	return validator.UploadPolicy{
		MaxFileSize:   c.MaxFileSize,
		ImageTypes:    c.AllowedImageTypes,
		DocumentTypes: c.AllowedDocumentTypes,
	}
}

// LogConfig logs configuration values (excluding secrets)
func (c *Config) LogConfig(logger *slog.Logger) {
	logger.Info("configuration loaded",
		slog.String("db_driver", c.DBDriver),
		slog.Int("api_port", c.APIPort),
		slog.Bool("smtp_enabled", c.SMTPEnabled),
		slog.Int("smtp_port", c.SMTPPort),
		slog.Bool("smtp_tls", c.SMTPTLSCert != ""),
		slog.String("inbound_domain", c.InboundDomain),
		slog.String("storage_path", c.AttachmentStoragePath),
		slog.Int64("max_file_size", c.MaxFileSize),
		slog.Int("max_attachments_per_node", c.MaxAttachmentsPerNode),
		slog.Int("allowed_types", len(c.AllowedImageTypes)+len(c.AllowedDocumentTypes)),
		slog.Bool("strict_attachment_limit", c.StrictAttachmentLimit),
		slog.Duration("orphan_sweep_interval", c.OrphanSweepInterval),
		slog.Duration("orphan_grace_period", c.OrphanGracePeriod),
		slog.Bool("metrics_enabled", c.MetricsEnabled),
		slog.String("log_level", c.LogLevel),
		slog.String("app_env", c.AppEnv),
		slog.Bool("api_key_set", c.APIKey != ""),
		slog.Bool("allowed_origins_set", c.AllowedOrigins != ""),
		slog.Float64("rate_limit_rps", c.RateLimitRequests),
		slog.Int("rate_limit_burst", c.RateLimitBurst),
	)
}
