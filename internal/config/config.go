package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration required by the API process.
// All values must come from env (or env-file loaded by the process runner).
// No business logic should depend on raw environment variables.
type Config struct {
	App     AppConfig
	DB      DBConfig
	Redis   RedisConfig
	Auth    AuthConfig
	Gateway GatewayConfig
	Ledger  LedgerConfig
}

type AppConfig struct {
	Env  string
	Port int
}

type DBConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string

	// SSLMode is kept explicit for managed-Postgres posture.
	// Accepts: disable, require, verify-ca, verify-full
	SSLMode string
}

type RedisConfig struct {
	Host string
	Port int
}

type AuthConfig struct {
	JWTSecret      string
	JWTIssuer      string
	JWTAudience    string
	AccessTokenTTL time.Duration
}

// GatewayConfig configures the external payment processor integration.
type GatewayConfig struct {
	// BaseURL of the processor's HTTP API. Empty selects the in-memory
	// stub gateway (local development only).
	BaseURL string
	// SecretKey authenticates API calls to the processor.
	SecretKey string
	// WebhookSecret verifies inbound webhook signatures (HMAC-SHA256).
	WebhookSecret string
	// Currency is the settlement currency for charge requests (ISO 4217, lowercase).
	Currency string
}

// LedgerConfig tunes the credit ledger and charge reconciliation.
type LedgerConfig struct {
	// DedupWindow coalesces duplicate charge-creation requests
	// (same user, amount, credits) into the existing pending charge.
	DedupWindow time.Duration
	// HistoryLimit caps transaction history reads.
	HistoryLimit int
	// SweepInterval is how often the reconciliation sweep runs. Zero disables it.
	SweepInterval time.Duration
	// StalePendingAge is how old a pending charge must be before the sweep
	// re-checks it against the gateway.
	StalePendingAge time.Duration
	// BalanceCacheTTL bounds staleness of the Redis balance read cache.
	BalanceCacheTTL time.Duration
}

const (
	defaultDedupWindowSeconds = 60
	defaultHistoryLimit       = 50
)

func Load() (Config, error) {
	c := Config{}
	var parseErrs []error

	c.App.Env = strings.TrimSpace(os.Getenv("APP_ENV"))
	{
		n, err := mustInt("APP_PORT")
		n, parseErrs = appendParseErr(parseErrs, n, err)
		c.App.Port = n
	}

	c.DB.Host = strings.TrimSpace(os.Getenv("DB_HOST"))
	{
		n, err := mustInt("DB_PORT")
		n, parseErrs = appendParseErr(parseErrs, n, err)
		c.DB.Port = n
	}
	c.DB.User = strings.TrimSpace(os.Getenv("DB_USER"))
	c.DB.Password = os.Getenv("DB_PASSWORD")
	c.DB.Name = strings.TrimSpace(os.Getenv("DB_NAME"))
	c.DB.SSLMode = strings.TrimSpace(os.Getenv("DB_SSLMODE"))

	c.Redis.Host = strings.TrimSpace(os.Getenv("REDIS_HOST"))
	{
		n, err := mustInt("REDIS_PORT")
		n, parseErrs = appendParseErr(parseErrs, n, err)
		c.Redis.Port = n
	}

	c.Auth.JWTSecret = os.Getenv("JWT_SECRET")
	c.Auth.JWTIssuer = strings.TrimSpace(os.Getenv("JWT_ISSUER"))
	c.Auth.JWTAudience = strings.TrimSpace(os.Getenv("JWT_AUDIENCE"))
	c.Auth.AccessTokenTTL = optDuration("JWT_ACCESS_TTL")

	c.Gateway.BaseURL = strings.TrimRight(strings.TrimSpace(os.Getenv("GATEWAY_BASE_URL")), "/")
	c.Gateway.SecretKey = os.Getenv("GATEWAY_SECRET_KEY")
	c.Gateway.WebhookSecret = os.Getenv("GATEWAY_WEBHOOK_SECRET")
	c.Gateway.Currency = strings.ToLower(strings.TrimSpace(os.Getenv("GATEWAY_CURRENCY")))

	c.Ledger.DedupWindow = time.Duration(optInt("DEDUP_WINDOW_SECONDS", defaultDedupWindowSeconds)) * time.Second
	c.Ledger.HistoryLimit = optInt("LEDGER_HISTORY_LIMIT", defaultHistoryLimit)
	c.Ledger.SweepInterval = optDuration("CHARGE_SWEEP_INTERVAL")
	c.Ledger.StalePendingAge = optDuration("CHARGE_STALE_PENDING_AGE")
	c.Ledger.BalanceCacheTTL = optDuration("BALANCE_CACHE_TTL")

	if err := joinErrors(parseErrs); err != nil {
		return Config{}, err
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

func (c *Config) Validate() error {
	var errs []error

	if c.App.Env == "" {
		errs = append(errs, errors.New("APP_ENV is required"))
	} else if !isValidEnv(c.App.Env) {
		errs = append(errs, fmt.Errorf("APP_ENV must be one of local, dev, staging, production, got %q", c.App.Env))
	}
	if c.App.Port <= 0 || c.App.Port > 65535 {
		errs = append(errs, fmt.Errorf("APP_PORT must be a valid port, got %d", c.App.Port))
	}

	if c.DB.Host == "" {
		errs = append(errs, errors.New("DB_HOST is required"))
	}
	if c.DB.Port <= 0 || c.DB.Port > 65535 {
		errs = append(errs, fmt.Errorf("DB_PORT must be a valid port, got %d", c.DB.Port))
	}
	if c.DB.User == "" {
		errs = append(errs, errors.New("DB_USER is required"))
	}
	if c.DB.Name == "" {
		errs = append(errs, errors.New("DB_NAME is required"))
	}
	if strings.TrimSpace(c.DB.SSLMode) == "" {
		if c.IsProduction() {
			errs = append(errs, errors.New("DB_SSLMODE is required in production"))
		} else {
			// Local-friendly default; production must be explicit.
			c.DB.SSLMode = "disable"
		}
	}
	if c.DB.SSLMode != "" && !isValidSSLMode(c.DB.SSLMode) {
		errs = append(errs, fmt.Errorf("DB_SSLMODE must be one of disable, require, verify-ca, verify-full, got %q", c.DB.SSLMode))
	}

	if c.Redis.Host == "" {
		errs = append(errs, errors.New("REDIS_HOST is required"))
	}
	if c.Redis.Port <= 0 || c.Redis.Port > 65535 {
		errs = append(errs, fmt.Errorf("REDIS_PORT must be a valid port, got %d", c.Redis.Port))
	}

	if c.Auth.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required"))
	}
	if c.IsProduction() {
		if c.Auth.JWTIssuer == "" {
			errs = append(errs, errors.New("JWT_ISSUER is required in production"))
		}
		if c.Gateway.BaseURL == "" {
			errs = append(errs, errors.New("GATEWAY_BASE_URL is required in production"))
		}
		if c.Gateway.SecretKey == "" {
			errs = append(errs, errors.New("GATEWAY_SECRET_KEY is required in production"))
		}
		if c.Gateway.WebhookSecret == "" {
			errs = append(errs, errors.New("GATEWAY_WEBHOOK_SECRET is required in production"))
		}
	}
	if c.Auth.AccessTokenTTL <= 0 {
		c.Auth.AccessTokenTTL = 15 * time.Minute
	}

	if c.Gateway.Currency == "" {
		c.Gateway.Currency = "jpy"
	}
	if len(c.Gateway.Currency) != 3 {
		errs = append(errs, fmt.Errorf("GATEWAY_CURRENCY must be a 3-letter ISO code, got %q", c.Gateway.Currency))
	}

	if c.Ledger.DedupWindow <= 0 {
		c.Ledger.DedupWindow = defaultDedupWindowSeconds * time.Second
	}
	if c.Ledger.HistoryLimit <= 0 {
		c.Ledger.HistoryLimit = defaultHistoryLimit
	}
	if c.Ledger.SweepInterval < 0 {
		errs = append(errs, errors.New("CHARGE_SWEEP_INTERVAL must not be negative"))
	}
	if c.Ledger.StalePendingAge <= 0 {
		c.Ledger.StalePendingAge = 10 * time.Minute
	}
	if c.Ledger.BalanceCacheTTL <= 0 {
		c.Ledger.BalanceCacheTTL = time.Minute
	}

	return joinErrors(errs)
}

func (c Config) IsProduction() bool {
	return c.App.Env == "production"
}

func (c Config) HTTPAddr() string {
	return fmt.Sprintf(":%d", c.App.Port)
}

func (c Config) PostgresDSN() string {
	// Avoid logging this string; it contains secrets.
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.DB.Host,
		c.DB.Port,
		c.DB.User,
		c.DB.Password,
		c.DB.Name,
		c.DB.SSLMode,
	)
}

func (c Config) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Redis.Host, c.Redis.Port)
}

func mustInt(key string) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0, fmt.Errorf("%s is required", key)
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer, got %q", key, v)
	}
	return n, nil
}

func optInt(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func optDuration(key string) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0
	}
	return d
}

func appendParseErr(errs []error, n int, err error) (int, []error) {
	if err != nil {
		errs = append(errs, err)
	}
	return n, errs
}

func isValidEnv(v string) bool {
	switch v {
	case "local", "dev", "staging", "production":
		return true
	default:
		return false
	}
}

func isValidSSLMode(v string) bool {
	switch v {
	case "disable", "require", "verify-ca", "verify-full":
		return true
	default:
		return false
	}
}

func joinErrors(errs []error) error {
	if len(errs) == 0 {
		return nil
	}
	if len(errs) == 1 {
		return errs[0]
	}
	var b strings.Builder
	b.WriteString("config errors:\n")
	for _, e := range errs {
		b.WriteString("- ")
		b.WriteString(e.Error())
		b.WriteString("\n")
	}
	return errors.New(strings.TrimSpace(b.String()))
}
