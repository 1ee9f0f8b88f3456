package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config gathers every setting the storefront client reads from the
// environment.
type Config struct {
	App     AppConfig
	API     APIConfig
	State   StateConfig
	Redis   RedisConfig
	Metrics MetricsConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.State.ensureDir(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"GREENMART_APP_ENV" default:"dev"`
	LogLevel     string `envconfig:"GREENMART_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"GREENMART_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

// APIConfig locates the storefront backend.
type APIConfig struct {
	URL     string        `envconfig:"GREENMART_API_URL" default:"http://localhost:8000"`
	Timeout time.Duration `envconfig:"GREENMART_API_TIMEOUT" default:"10s"`
}

// BaseURL returns the backend location without a trailing slash.
func (a APIConfig) BaseURL() string {
	return strings.TrimRight(strings.TrimSpace(a.URL), "/")
}

// StateConfig selects where the durable client state (cart, session) lives.
type StateConfig struct {
	Backend    string `envconfig:"GREENMART_STATE_BACKEND" default:"file"`
	Dir        string `envconfig:"GREENMART_STATE_DIR"`
	SQLitePath string `envconfig:"GREENMART_SQLITE_PATH"`
}

const (
	StateBackendFile   = "file"
	StateBackendSQLite = "sqlite"
	StateBackendRedis  = "redis"
)

// Kind returns the normalized backend name.
func (s StateConfig) Kind() string {
	kind := strings.TrimSpace(strings.ToLower(s.Backend))
	if kind == "" {
		return StateBackendFile
	}
	return kind
}

// SQLiteDSN returns the sqlite database path, defaulting into the state dir.
func (s StateConfig) SQLiteDSN() string {
	if s.SQLitePath != "" {
		return s.SQLitePath
	}
	return filepath.Join(s.Dir, "state.db")
}

func (s *StateConfig) ensureDir() error {
	if s.Dir != "" {
		return nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("resolving state dir: %w", err)
	}
	s.Dir = filepath.Join(home, ".greenmart")
	return nil
}

type RedisConfig struct {
	URL          string        `envconfig:"GREENMART_REDIS_URL"`
	Address      string        `envconfig:"GREENMART_REDIS_ADDR"`
	Password     string        `envconfig:"GREENMART_REDIS_PASSWORD"`
	DB           int           `envconfig:"GREENMART_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"GREENMART_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"GREENMART_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"GREENMART_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"GREENMART_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"GREENMART_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// MetricsConfig enables the optional local metrics listener.
type MetricsConfig struct {
	Addr string `envconfig:"GREENMART_METRICS_ADDR"`
}
