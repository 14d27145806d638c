package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

type RuntimeConfig struct {
	Dev bool
}

type HTTPConfig struct {
	Port           int           `yaml:"port"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	PublicBaseURL  string        `yaml:"public_base_url"` // used to build the gateway return url
}

type LogConfig struct {
	Level    string `yaml:"level"`    // trace|debug|info|warn|error
	Format   string `yaml:"format"`   // json|console
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

type DatabaseConfig struct {
	URL      string `yaml:"url"`
	MaxConns int32  `yaml:"max_conns"`
}

type RedisConfig struct {
	URL      string        `yaml:"url"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	TTL      time.Duration `yaml:"ttl"`
}

type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret"`
}

// QuotaConfig keeps kilometres as strings so they parse straight into
// fixed-point decimals.
type QuotaConfig struct {
	FreeAllowanceKM string `yaml:"free_allowance_km"`
	ChunkKM         string `yaml:"chunk_km"`
}

func (q QuotaConfig) Parse() (free, chunk decimal.Decimal, err error) {
	free, err = decimal.NewFromString(q.FreeAllowanceKM)
	if err != nil {
		return decimal.Zero, decimal.Zero, fmt.Errorf("quota.free_allowance_km: %w", err)
	}
	chunk, err = decimal.NewFromString(q.ChunkKM)
	if err != nil {
		return decimal.Zero, decimal.Zero, fmt.Errorf("quota.chunk_km: %w", err)
	}
	return free, chunk, nil
}

type CashfreeConfig struct {
	AppID         string        `yaml:"app_id"`
	SecretKey     string        `yaml:"secret_key"`
	WebhookSecret string        `yaml:"webhook_secret"`
	Env           string        `yaml:"env"` // test | prod
	APIVersion    string        `yaml:"api_version"`
	BaseURL       string        `yaml:"base_url"` // override; derived from env when empty
	Timeout       time.Duration `yaml:"timeout"`
	MaxRetries    int           `yaml:"max_retries"`
	RetryBackoff  time.Duration `yaml:"retry_backoff"`
}

type PaymentConfig struct {
	DefaultDurationDays int            `yaml:"default_duration_days"`
	Currency            string         `yaml:"currency"`
	ChunkPrice          string         `yaml:"chunk_price"` // optional; when set, initiation must match it
	CallbackPath        string         `yaml:"callback_path"`
	Cashfree            CashfreeConfig `yaml:"cashfree"`
}

type JobsConfig struct {
	RouteWorkers     int           `yaml:"route_workers"`
	RouteQueueSize   int           `yaml:"route_queue_size"`
	RouteMaxAttempts int           `yaml:"route_max_attempts"`
	RouteBackoff     time.Duration `yaml:"route_backoff"`
}

type SchedulerConfig struct {
	ReconcileCron string        `yaml:"reconcile_cron"`
	StaleAfter    time.Duration `yaml:"stale_after"`
	BatchSize     int           `yaml:"batch_size"`
}

type RateLimitConfig struct {
	PaymentInitiationsPerMinute int `yaml:"payment_initiations_per_minute"`
}

type Config struct {
	HTTP      HTTPConfig      `yaml:"http"`
	Log       LogConfig       `yaml:"log"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	Auth      AuthConfig      `yaml:"auth"`
	Quota     QuotaConfig     `yaml:"quota"`
	Payment   PaymentConfig   `yaml:"payment"`
	Jobs      JobsConfig      `yaml:"jobs"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	RateLimit RateLimitConfig `yaml:"ratelimit"`

	Runtime RuntimeConfig `yaml:"-"`
}

// LoadConfig reads the YAML file at path, applies defaults and validates the
// settings the process cannot start without.
func LoadConfig(path string, dev bool) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(b, dev)
}

func Parse(b []byte, dev bool) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.applyDefaults()
	cfg.Runtime.Dev = dev
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (cfg *Config) applyDefaults() {
	if cfg.HTTP.Port == 0 {
		cfg.HTTP.Port = 8080
	}
	if cfg.HTTP.RequestTimeout <= 0 {
		cfg.HTTP.RequestTimeout = 30 * time.Second
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.Database.MaxConns <= 0 {
		cfg.Database.MaxConns = 10
	}
	cfg.Redis.TTL = normalizeTTL(cfg.Redis.TTL)

	if cfg.Quota.FreeAllowanceKM == "" {
		cfg.Quota.FreeAllowanceKM = "50"
	}
	if cfg.Quota.ChunkKM == "" {
		cfg.Quota.ChunkKM = "50"
	}

	if cfg.Payment.DefaultDurationDays <= 0 {
		cfg.Payment.DefaultDurationDays = 365
	}
	if cfg.Payment.Currency == "" {
		cfg.Payment.Currency = "INR"
	}
	if cfg.Payment.CallbackPath == "" {
		cfg.Payment.CallbackPath = "/api/v1/payments/callback"
	}
	cf := &cfg.Payment.Cashfree
	if cf.Env == "" {
		cf.Env = "test"
	}
	if cf.APIVersion == "" {
		cf.APIVersion = "2022-09-01"
	}
	if cf.Timeout <= 0 {
		cf.Timeout = 10 * time.Second
	}
	if cf.Timeout > 15*time.Second {
		cf.Timeout = 15 * time.Second
	}
	if cf.MaxRetries < 0 {
		cf.MaxRetries = 0
	}
	if cf.RetryBackoff <= 0 {
		cf.RetryBackoff = 500 * time.Millisecond
	}

	if cfg.Jobs.RouteWorkers <= 0 {
		cfg.Jobs.RouteWorkers = 4
	}
	if cfg.Jobs.RouteQueueSize <= 0 {
		cfg.Jobs.RouteQueueSize = 256
	}
	if cfg.Jobs.RouteMaxAttempts <= 0 {
		cfg.Jobs.RouteMaxAttempts = 3
	}
	if cfg.Jobs.RouteBackoff <= 0 {
		cfg.Jobs.RouteBackoff = 5 * time.Second
	}

	if cfg.Scheduler.ReconcileCron == "" {
		cfg.Scheduler.ReconcileCron = "@every 5m"
	}
	if cfg.Scheduler.StaleAfter <= 0 {
		cfg.Scheduler.StaleAfter = 10 * time.Minute
	}
	if cfg.Scheduler.BatchSize <= 0 {
		cfg.Scheduler.BatchSize = 200
	}
	if cfg.RateLimit.PaymentInitiationsPerMinute <= 0 {
		cfg.RateLimit.PaymentInitiationsPerMinute = 5
	}
}

func (cfg *Config) validate() error {
	// Minimal validation
	if cfg.Database.URL == "" {
		return errors.New("database.url is required")
	}
	if cfg.Redis.URL == "" {
		return errors.New("redis.url is required")
	}
	if cfg.Auth.JWTSecret == "" {
		return errors.New("auth.jwt_secret is required")
	}
	if _, _, err := cfg.Quota.Parse(); err != nil {
		return err
	}
	if cfg.Payment.ChunkPrice != "" {
		if _, err := decimal.NewFromString(cfg.Payment.ChunkPrice); err != nil {
			return fmt.Errorf("payment.chunk_price: %w", err)
		}
	}
	switch strings.ToLower(cfg.Payment.Cashfree.Env) {
	case "test", "prod":
	default:
		return fmt.Errorf("payment.cashfree.env must be test or prod, got %q", cfg.Payment.Cashfree.Env)
	}
	if !cfg.Runtime.Dev && cfg.Payment.Cashfree.WebhookSecret == "" {
		return errors.New("payment.cashfree.webhook_secret is required")
	}
	return nil
}

func normalizeTTL(d time.Duration) time.Duration {
	if d <= 0 {
		return time.Hour
	}
	return d
}
