package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the path checked for YAML configuration.
const DefaultConfigFile = "siteforge.yaml"

// loadYAML reads the YAML file and unmarshals it over cfg.
// Returns nil if the file does not exist.
func loadYAML(cfg *Config, path string) error {
	data, err := os.ReadFile(path) //nolint:gosec // G304: path is validated by caller
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}

	return nil
}

// loadEnv overlays environment variables onto cfg.
// Only non-empty env values override the current config.
func loadEnv(cfg *Config) {
	setString(&cfg.Server.Port, "SITEFORGE_PORT")
	setString(&cfg.Server.CORSOrigin, "SITEFORGE_CORS_ORIGIN")
	setString(&cfg.Server.TrustedHostHeader, "SITEFORGE_TRUSTED_HOST_HEADER")
	setDuration(&cfg.Server.ShutdownTimeout, "SITEFORGE_SHUTDOWN_TIMEOUT")

	setString(&cfg.Storage.Driver, "SITEFORGE_STORAGE_DRIVER")
	setInt(&cfg.Storage.MaxConcurrent, "SITEFORGE_STORAGE_MAX_CONCURRENT")
	setString(&cfg.Postgres.DSN, "DATABASE_URL")
	setInt32(&cfg.Postgres.MaxConns, "SITEFORGE_PG_MAX_CONNS")
	setInt32(&cfg.Postgres.MinConns, "SITEFORGE_PG_MIN_CONNS")
	setDuration(&cfg.Postgres.MaxConnLifetime, "SITEFORGE_PG_MAX_CONN_LIFETIME")
	setDuration(&cfg.Postgres.MaxConnIdleTime, "SITEFORGE_PG_MAX_CONN_IDLE_TIME")
	setDuration(&cfg.Postgres.HealthCheck, "SITEFORGE_PG_HEALTH_CHECK")
	setString(&cfg.SQLite.Path, "SITEFORGE_SQLITE_PATH")

	setString(&cfg.NATS.URL, "NATS_URL")
	setBool(&cfg.NATS.Enabled, "SITEFORGE_NATS_ENABLED")

	// Cache
	setInt64(&cfg.Cache.L1MaxSizeMB, "SITEFORGE_CACHE_L1_SIZE_MB")
	setString(&cfg.Cache.L2Bucket, "SITEFORGE_CACHE_L2_BUCKET")
	setDuration(&cfg.Cache.L2TTL, "SITEFORGE_CACHE_L2_TTL")
	setDuration(&cfg.Cache.TTL, "SITEFORGE_CACHE_TTL")

	// Directory
	setString(&cfg.Directory.StaticFile, "SITEFORGE_DIRECTORY_FILE")
	setString(&cfg.Directory.LocalDevDomain, "SITEFORGE_LOCAL_DEV_DOMAIN")
	setBool(&cfg.Directory.DraftVisible, "SITEFORGE_DRAFT_VISIBLE")
	setDuration(&cfg.Directory.RefreshInterval, "SITEFORGE_DIRECTORY_REFRESH")

	setString(&cfg.Logging.Level, "SITEFORGE_LOG_LEVEL")
	setString(&cfg.Logging.Service, "SITEFORGE_LOG_SERVICE")
	setBool(&cfg.Logging.Async, "SITEFORGE_LOG_ASYNC")
	setInt(&cfg.Logging.AsyncBuffer, "SITEFORGE_LOG_ASYNC_BUFFER")
	setInt(&cfg.Breaker.MaxFailures, "SITEFORGE_BREAKER_MAX_FAILURES")
	setDuration(&cfg.Breaker.Timeout, "SITEFORGE_BREAKER_TIMEOUT")
	setFloat64(&cfg.Rate.RequestsPerSecond, "SITEFORGE_RATE_RPS")
	setInt(&cfg.Rate.Burst, "SITEFORGE_RATE_BURST")
	setDuration(&cfg.Rate.CleanupInterval, "SITEFORGE_RATE_CLEANUP_INTERVAL")
	setDuration(&cfg.Rate.MaxIdleTime, "SITEFORGE_RATE_MAX_IDLE_TIME")

	// OpenTelemetry
	setBool(&cfg.OTEL.Enabled, "SITEFORGE_OTEL_ENABLED")
	setString(&cfg.OTEL.Endpoint, "SITEFORGE_OTEL_ENDPOINT")
	setString(&cfg.OTEL.ServiceName, "SITEFORGE_OTEL_SERVICE_NAME")
	setBool(&cfg.OTEL.Insecure, "SITEFORGE_OTEL_INSECURE")
	setFloat64(&cfg.OTEL.SampleRate, "SITEFORGE_OTEL_SAMPLE_RATE")
}

// validate checks that required fields are set.
func validate(cfg *Config) error {
	if cfg.Server.Port == "" {
		return errors.New("server.port is required")
	}
	switch cfg.Storage.Driver {
	case DriverPostgres:
		if cfg.Postgres.DSN == "" {
			return errors.New("postgres.dsn is required")
		}
		if cfg.Postgres.MaxConns < 1 {
			return errors.New("postgres.max_conns must be >= 1")
		}
	case DriverSQLite:
		if cfg.SQLite.Path == "" {
			return errors.New("sqlite.path is required")
		}
	default:
		return fmt.Errorf("storage.driver must be %q or %q, got %q", DriverPostgres, DriverSQLite, cfg.Storage.Driver)
	}
	if cfg.NATS.Enabled && cfg.NATS.URL == "" {
		return errors.New("nats.url is required when nats.enabled is set")
	}
	if cfg.Cache.L1MaxSizeMB < 1 {
		return errors.New("cache.l1_max_size_mb must be >= 1")
	}
	if cfg.Directory.RefreshInterval <= 0 {
		return errors.New("directory.refresh_interval must be > 0")
	}
	if cfg.Breaker.MaxFailures < 1 {
		return errors.New("breaker.max_failures must be >= 1")
	}
	if cfg.Rate.Burst < 1 {
		return errors.New("rate.burst must be >= 1")
	}
	if cfg.OTEL.SampleRate < 0 || cfg.OTEL.SampleRate > 1 {
		return errors.New("otel.sample_rate must be within [0, 1]")
	}
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

// setParsed overwrites dst with the parsed value of env var key. Empty and
// unparseable values leave dst unchanged.
func setParsed[T any](dst *T, key string, parse func(string) (T, error)) {
	if v := os.Getenv(key); v != "" {
		if x, err := parse(v); err == nil {
			*dst = x
		}
	}
}

func setInt(dst *int, key string) { setParsed(dst, key, strconv.Atoi) }

func setInt32(dst *int32, key string) {
	setParsed(dst, key, func(s string) (int32, error) {
		n, err := strconv.ParseInt(s, 10, 32)
		return int32(n), err
	})
}

func setInt64(dst *int64, key string) {
	setParsed(dst, key, func(s string) (int64, error) { return strconv.ParseInt(s, 10, 64) })
}

func setFloat64(dst *float64, key string) {
	setParsed(dst, key, func(s string) (float64, error) { return strconv.ParseFloat(s, 64) })
}

func setBool(dst *bool, key string) { setParsed(dst, key, strconv.ParseBool) }

func setDuration(dst *time.Duration, key string) { setParsed(dst, key, time.ParseDuration) }
