// Package config loads provider settings from the environment, optionally
// layered over a YAML file.
package config

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/welldanyogia/aap/internal/validator"
)

// Store drivers
const (
	StoreMemory   = "memory"
	StoreSQLite   = "sqlite"
	StorePostgres = "postgres"
)

// Idempotency backends. IdempotencyStore keeps keys next to the inbox.
const (
	IdempotencyStore = "store"
	IdempotencyRedis = "redis"
)

// Config holds all configuration for the application
type Config struct {
	// Server
	APIPort int `yaml:"api_port"`

	// Provider identity
	ProviderName   string `yaml:"provider_name"`
	ProviderDomain string `yaml:"provider_domain"`
	PublicBaseURL  string `yaml:"public_base_url"`

	// Storage
	StoreDriver string `yaml:"store_driver"`
	DatabaseURL string `yaml:"database_url"`

	// Idempotency
	IdempotencyBackend string        `yaml:"idempotency_backend"`
	RedisURL           string        `yaml:"redis_url"`
	IdempotencyTTL     time.Duration `yaml:"idempotency_ttl"`

	// Intake
	StrictProviderMatch bool `yaml:"strict_provider_match"`

	// Logging
	LogLevel string `yaml:"log_level"`

	// Security
	AllowedOrigins string `yaml:"allowed_origins"`
	AppEnv         string `yaml:"app_env"`

	// Rate Limiting
	RateLimitRequests float64 `yaml:"rate_limit_requests"`
	RateLimitBurst    int     `yaml:"rate_limit_burst"`

	// Mail bridge
	SMTPEnabled        bool   `yaml:"smtp_enabled"`
	SMTPAddr           string `yaml:"smtp_addr"`
	SMTPDomain         string `yaml:"smtp_domain"`
	SMTPMaxMessageSize int64  `yaml:"smtp_max_message_size"`
}

// Defaults returns the configuration used when nothing is set.
func Defaults() *Config {
	return &Config{
		APIPort:            8080,
		ProviderName:       "AAP Provider",
		StoreDriver:        StoreMemory,
		IdempotencyBackend: IdempotencyStore,
		IdempotencyTTL:     24 * time.Hour,
		LogLevel:           "info",
		AppEnv:             "development",
		RateLimitRequests:  10.0,
		RateLimitBurst:     20,
		SMTPAddr:           ":2525",
		SMTPMaxMessageSize: 10 * 1024 * 1024,
	}
}

// Load reads configuration from the file named by CONFIG_PATH, if any, and
// then from environment variables, which take precedence.
func Load() (*Config, error) {
	cfg := Defaults()

	if path := os.Getenv("CONFIG_PATH"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	if err := cfg.loadEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadFile decodes a YAML file over cfg. ${VAR} references are expanded
// before decoding.
func (c *Config) loadFile(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file %s: %w", path, err)
	}
	expanded := os.ExpandEnv(string(raw))
	if err := yaml.Unmarshal([]byte(expanded), c); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) loadEnv() error {
	// API_PORT (default: 8080)
	if v := os.Getenv("API_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("API_PORT must be a valid integer: %w", err)
		}
		c.APIPort = port
	}

	setString(&c.ProviderName, "PROVIDER_NAME")
	setString(&c.ProviderDomain, "PROVIDER_DOMAIN")
	setString(&c.PublicBaseURL, "PUBLIC_BASE_URL")
	setString(&c.StoreDriver, "STORE_DRIVER")
	setString(&c.DatabaseURL, "DATABASE_URL")
	setString(&c.IdempotencyBackend, "IDEMPOTENCY_BACKEND")
	setString(&c.RedisURL, "REDIS_URL")
	setString(&c.LogLevel, "LOG_LEVEL")
	setString(&c.AllowedOrigins, "ALLOWED_ORIGINS")
	setString(&c.AppEnv, "APP_ENV")
	setString(&c.SMTPAddr, "SMTP_ADDR")
	setString(&c.SMTPDomain, "SMTP_DOMAIN")

	// IDEMPOTENCY_TTL (default: 24h, 0 = never expire)
	if v := os.Getenv("IDEMPOTENCY_TTL"); v != "" {
		ttl, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("IDEMPOTENCY_TTL must be a valid duration: %w", err)
		}
		c.IdempotencyTTL = ttl
	}

	if err := setBool(&c.StrictProviderMatch, "STRICT_PROVIDER_MATCH"); err != nil {
		return err
	}
	if err := setBool(&c.SMTPEnabled, "SMTP_ENABLED"); err != nil {
		return err
	}

	if v := os.Getenv("SMTP_MAX_MESSAGE_SIZE"); v != "" {
		size, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("SMTP_MAX_MESSAGE_SIZE must be a valid integer: %w", err)
		}
		c.SMTPMaxMessageSize = size
	}

	// Rate limiting configuration
	if v := os.Getenv("RATE_LIMIT_REQUESTS"); v != "" {
		rps, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("RATE_LIMIT_REQUESTS must be a valid number: %w", err)
		}
		c.RateLimitRequests = rps
	}
	if v := os.Getenv("RATE_LIMIT_BURST"); v != "" {
		burst, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("RATE_LIMIT_BURST must be a valid integer: %w", err)
		}
		c.RateLimitBurst = burst
	}

	c.StoreDriver = strings.ToLower(strings.TrimSpace(c.StoreDriver))
	c.IdempotencyBackend = strings.ToLower(strings.TrimSpace(c.IdempotencyBackend))
	c.ProviderDomain = strings.ToLower(strings.TrimSpace(c.ProviderDomain))
	c.PublicBaseURL = strings.TrimRight(c.PublicBaseURL, "/")
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setBool(dst *bool, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fmt.Errorf("%s must be a valid boolean: %w", key, err)
	}
	*dst = b
	return nil
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
	if cfg.IsProduction() {
		if err := cfg.ValidateProduction(); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.APIPort <= 0 || c.APIPort > 65535 {
		return fmt.Errorf("APIPort must be between 1 and 65535")
	}

	switch c.StoreDriver {
	case StoreMemory:
	case StoreSQLite, StorePostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required for store driver %q", c.StoreDriver)
		}
	default:
		return fmt.Errorf("STORE_DRIVER must be one of memory, sqlite, postgres; got %q", c.StoreDriver)
	}

	switch c.IdempotencyBackend {
	case IdempotencyStore:
	case IdempotencyRedis:
		if c.RedisURL == "" {
			return fmt.Errorf("REDIS_URL is required for idempotency backend redis")
		}
	default:
		return fmt.Errorf("IDEMPOTENCY_BACKEND must be one of store, redis; got %q", c.IdempotencyBackend)
	}
	// zero keeps idempotency records forever
	if c.IdempotencyTTL < 0 {
		return fmt.Errorf("IDEMPOTENCY_TTL cannot be negative")
	}

	if c.ProviderDomain != "" {
		if err := validator.ValidateDomain(c.ProviderDomain); err != nil {
			return fmt.Errorf("PROVIDER_DOMAIN: %w", err)
		}
	}
	if c.PublicBaseURL != "" {
		u, err := url.Parse(c.PublicBaseURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("PUBLIC_BASE_URL must be an absolute http(s) URL")
		}
	}

	if c.RateLimitRequests < 0 {
		return fmt.Errorf("RATE_LIMIT_REQUESTS cannot be negative")
	}
	if c.RateLimitRequests > 0 && c.RateLimitBurst <= 0 {
		return fmt.Errorf("RATE_LIMIT_BURST must be positive when rate limiting is enabled")
	}

	if c.SMTPEnabled {
		if c.MailDomain() == "" {
			return fmt.Errorf("SMTP_DOMAIN or PROVIDER_DOMAIN is required when SMTP is enabled")
		}
		if c.SMTPAddr == "" {
			return fmt.Errorf("SMTP_ADDR cannot be empty when SMTP is enabled")
		}
		if c.SMTPMaxMessageSize <= 0 {
			return fmt.Errorf("SMTP_MAX_MESSAGE_SIZE must be positive")
		}
	}
	return nil
}

// ValidateProduction performs additional validation for production environment
func (c *Config) ValidateProduction() error {
	if c.ProviderDomain == "" {
		return fmt.Errorf("PROVIDER_DOMAIN is required in production")
	}

	if c.AllowedOrigins == "" {
		return fmt.Errorf("ALLOWED_ORIGINS is required in production")
	}

	// Check for wildcard in production
	if strings.Contains(c.AllowedOrigins, "*") {
		return fmt.Errorf("wildcard (*) origins are not allowed in production")
	}

	if c.StoreDriver == StoreMemory {
		return fmt.Errorf("store driver memory is not allowed in production")
	}

	// Check for sslmode=disable in database URL
	if c.StoreDriver == StorePostgres && strings.Contains(c.DatabaseURL, "sslmode=disable") {
		return fmt.Errorf("sslmode=disable is not allowed in production")
	}

	if c.PublicBaseURL != "" && !strings.HasPrefix(c.PublicBaseURL, "https://") {
		return fmt.Errorf("PUBLIC_BASE_URL must use https in production")
	}

	return nil
}

// IsProduction reports whether APP_ENV is production.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.AppEnv, "production")
}

// Origins splits AllowedOrigins on commas.
func (c *Config) Origins() []string {
	if c.AllowedOrigins == "" {
		return nil
	}
	var out []string
	for _, o := range strings.Split(c.AllowedOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}

// MailDomain is the domain the SMTP bridge accepts mail for.
func (c *Config) MailDomain() string {
	if c.SMTPDomain != "" {
		return strings.ToLower(c.SMTPDomain)
	}
	return c.ProviderDomain
}

// LogConfig logs configuration values (excluding secrets)
func (c *Config) LogConfig(logger *slog.Logger) {
	logger.Info("configuration loaded",
		slog.Int("api_port", c.APIPort),
		slog.String("provider_name", c.ProviderName),
		slog.String("provider_domain", c.ProviderDomain),
		slog.String("public_base_url", c.PublicBaseURL),
		slog.String("store_driver", c.StoreDriver),
		slog.Bool("database_url_set", c.DatabaseURL != ""),
		slog.String("idempotency_backend", c.IdempotencyBackend),
		slog.Bool("redis_url_set", c.RedisURL != ""),
		slog.Duration("idempotency_ttl", c.IdempotencyTTL),
		slog.Bool("strict_provider_match", c.StrictProviderMatch),
		slog.String("log_level", c.LogLevel),
		slog.String("app_env", c.AppEnv),
		slog.Bool("allowed_origins_set", c.AllowedOrigins != ""),
		slog.Float64("rate_limit_rps", c.RateLimitRequests),
		slog.Int("rate_limit_burst", c.RateLimitBurst),
		slog.Bool("smtp_enabled", c.SMTPEnabled),
		slog.String("smtp_addr", c.SMTPAddr),
	)
}
