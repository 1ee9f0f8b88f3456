package config

// EnvPrefix namespaces every environment variable read by Load.
const EnvPrefix = "GREENMART"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "production"
)

// Environment variable names, exported so tests and docs stay in sync with
// the envconfig tags below.
const (
	EnvAppEnv       = "GREENMART_APP_ENV"
	EnvLogLevel     = "GREENMART_LOG_LEVEL"
	EnvAPIURL       = "GREENMART_API_URL"
	EnvAPITimeout   = "GREENMART_API_TIMEOUT"
	EnvStateBackend = "GREENMART_STATE_BACKEND"
	EnvStateDir     = "GREENMART_STATE_DIR"
	EnvSQLitePath   = "GREENMART_SQLITE_PATH"
	EnvRedisURL     = "GREENMART_REDIS_URL"
	EnvMetricsAddr  = "GREENMART_METRICS_ADDR"
)
