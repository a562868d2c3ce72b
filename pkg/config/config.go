// Package config loads the wellness-sync configuration from a YAML file and
// environment variables.
package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Cache backends.
const (
	CacheMemory = "memory"
	CacheRedis  = "redis"
)

type (
	// Config is the application configuration.
	Config struct {
		API       API       `yaml:"api"`
		Retry     Retry     `yaml:"retry"`
		Cache     Cache     `yaml:"cache"`
		Poll      Poll      `yaml:"poll"`
		RateLimit RateLimit `yaml:"ratelimit"`
		Auth      Auth      `yaml:"auth"`
		Log       Log       `yaml:"log"`
		Metrics   Metrics   `yaml:"metrics"`
	}

	// API configures the backend client.
	API struct {
		BaseURL   string        `yaml:"base-url" env:"WELLNESS_BASE_URL"`
		UserAgent string        `yaml:"user-agent" env:"WELLNESS_USER_AGENT"`
		Timeout   time.Duration `yaml:"timeout" env:"WELLNESS_TIMEOUT"`
		// Conditional enables ETag revalidation of GET requests
		Conditional bool `yaml:"conditional" env:"WELLNESS_CONDITIONAL"`
	}

	// Retry configures the bounded retry of reads.
	Retry struct {
		MaxRetries int           `yaml:"max-retries" env:"WELLNESS_MAX_RETRIES"`
		BaseDelay  time.Duration `yaml:"base-delay" env:"WELLNESS_RETRY_BASE_DELAY"`
		MaxBackoff time.Duration `yaml:"max-backoff" env:"WELLNESS_RETRY_MAX_BACKOFF"`
	}

	// Cache selects and configures the result cache.
	Cache struct {
		Backend       string        `yaml:"backend" env:"WELLNESS_CACHE_BACKEND"`
		DashboardTTL  time.Duration `yaml:"dashboard-ttl" env:"WELLNESS_DASHBOARD_TTL"`
		ListTTL       time.Duration `yaml:"list-ttl" env:"WELLNESS_LIST_TTL"`
		RedisAddr     string        `yaml:"redis-addr" env:"REDIS_ADDR"`
		RedisDB       int           `yaml:"redis-db" env:"REDIS_DB"`
		RedisPassword string        `yaml:"redis-password" env:"REDIS_PASSWORD"`
	}

	// Poll configures background refresh intervals. Zero disables polling.
	Poll struct {
		Dashboard    time.Duration `yaml:"dashboard" env:"WELLNESS_POLL_DASHBOARD"`
		Appointments time.Duration `yaml:"appointments" env:"WELLNESS_POLL_APPOINTMENTS"`
		Slots        time.Duration `yaml:"slots" env:"WELLNESS_POLL_SLOTS"`
	}

	// RateLimit paces outgoing requests.
	RateLimit struct {
		RPS   float64 `yaml:"rps" env:"WELLNESS_RATE_LIMIT"`
		Burst int     `yaml:"burst" env:"WELLNESS_RATE_BURST"`
	}

	// Auth configures credential storage.
	Auth struct {
		// Token bypasses the credential store (CI, scripts)
		Token       string `yaml:"-" env:"WELLNESS_TOKEN"`
		Keyring     bool   `yaml:"keyring" env:"WELLNESS_KEYRING"`
		FallbackDir string `yaml:"fallback-dir" env:"WELLNESS_CONFIG_DIR"`
	}

	// Log configures zerolog.
	Log struct {
		Level  string `yaml:"level" env:"LOG_LEVEL"`
		Pretty bool   `yaml:"pretty" env:"LOG_PRETTY"`
	}

	// Metrics configures the Prometheus endpoint.
	Metrics struct {
		Addr string `yaml:"addr" env:"METRICS_ADDR"`
	}
)

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		API: API{
			BaseURL:     "http://localhost:8000",
			UserAgent:   "wellness-sync/0.1.0",
			Timeout:     15 * time.Second,
			Conditional: true,
		},
		Retry: Retry{
			MaxRetries: 3,
			BaseDelay:  time.Second,
			MaxBackoff: 30 * time.Second,
		},
		Cache: Cache{
			Backend:      CacheMemory,
			DashboardTTL: 5 * time.Minute,
			ListTTL:      time.Minute,
			RedisAddr:    "localhost:6379",
		},
		Poll: Poll{
			Dashboard:    time.Minute,
			Appointments: 30 * time.Second,
		},
		RateLimit: RateLimit{RPS: 10, Burst: 5},
		Auth: Auth{
			Keyring:     true,
			FallbackDir: defaultConfigDir(),
		},
		Log:     Log{Level: "info"},
		Metrics: Metrics{Addr: ":9090"},
	}
}

// Load reads path (optional) over the defaults, then the environment, and
// validates the result.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if err := cleanenv.ReadConfig(path, cfg); err != nil {
			return nil, fmt.Errorf("config error: %w", err)
		}
	}

	if err := cleanenv.ReadEnv(cfg); err != nil {
		return nil, fmt.Errorf("config env: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration for values the client cannot run with.
func (c *Config) Validate() error {
	if c.API.BaseURL == "" {
		return fmt.Errorf("api.base-url is required")
	}
	u, err := url.Parse(c.API.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("api.base-url must be an absolute URL (got %q)", c.API.BaseURL)
	}
	if c.API.Timeout <= 0 {
		return fmt.Errorf("api.timeout must be > 0 (got %s)", c.API.Timeout)
	}
	if c.Retry.MaxRetries < 0 {
		return fmt.Errorf("retry.max-retries must be >= 0 (got %d)", c.Retry.MaxRetries)
	}
	if c.Retry.MaxRetries > 0 && c.Retry.BaseDelay <= 0 {
		return fmt.Errorf("retry.base-delay must be > 0 when retries are enabled")
	}
	switch c.Cache.Backend {
	case CacheMemory:
	case CacheRedis:
		if c.Cache.RedisAddr == "" {
			return fmt.Errorf("cache.redis-addr is required for the redis backend")
		}
	default:
		return fmt.Errorf("cache.backend must be %q or %q (got %q)", CacheMemory, CacheRedis, c.Cache.Backend)
	}
	if c.Cache.DashboardTTL < 0 || c.Cache.ListTTL < 0 {
		return fmt.Errorf("cache TTLs must be >= 0")
	}
	if c.Poll.Dashboard < 0 || c.Poll.Appointments < 0 || c.Poll.Slots < 0 {
		return fmt.Errorf("poll intervals must be >= 0")
	}
	if c.RateLimit.RPS < 0 {
		return fmt.Errorf("ratelimit.rps must be >= 0 (got %g)", c.RateLimit.RPS)
	}
	if c.RateLimit.RPS > 0 && c.RateLimit.Burst < 1 {
		return fmt.Errorf("ratelimit.burst must be >= 1 when rps is set (got %d)", c.RateLimit.Burst)
	}
	return nil
}

// Origin returns the scheme://host of the backend, used to key stored credentials.
func (c *Config) Origin() string {
	u, err := url.Parse(c.API.BaseURL)
	if err != nil {
		return c.API.BaseURL
	}
	return u.Scheme + "://" + u.Host
}

func defaultConfigDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "wellness-sync")
	}
	return filepath.Join(os.TempDir(), "wellness-sync")
}
