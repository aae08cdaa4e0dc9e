package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the path checked for YAML configuration.
const DefaultConfigFile = "aruna.yaml"

// DefaultEnvFile is the dotenv file merged into the process environment.
const DefaultEnvFile = ".env"

// Load returns a Config using the hierarchy: defaults < YAML < .env < ENV.
// Both files are optional.
func Load() (*Config, error) {
	if err := loadDotenv(DefaultEnvFile); err != nil {
		return nil, fmt.Errorf("config dotenv: %w", err)
	}
	return LoadFrom(DefaultConfigFile)
}

// LoadFrom returns a Config loaded from the given YAML path using the
// hierarchy: defaults < YAML < ENV. The YAML file is optional.
func LoadFrom(yamlPath string) (*Config, error) {
	cfg := Defaults()

	if err := loadYAML(&cfg, yamlPath); err != nil {
		return nil, fmt.Errorf("config yaml: %w", err)
	}

	loadEnv(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("config validate: %w", err)
	}

	return &cfg, nil
}

// loadDotenv merges a dotenv file into the process environment. Variables
// already set in the environment win. A missing file is not an error.
func loadDotenv(path string) error {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return godotenv.Load(path)
}

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
	setString(&cfg.Server.Port, "ARUNA_PORT")
	setString(&cfg.Server.CORSOrigin, "ARUNA_CORS_ORIGIN")
	setDuration(&cfg.Server.RequestTimeout, "ARUNA_REQUEST_TIMEOUT")
	setDuration(&cfg.Server.ReadTimeout, "ARUNA_READ_TIMEOUT")
	setDuration(&cfg.Server.WriteTimeout, "ARUNA_WRITE_TIMEOUT")

	setString(&cfg.Postgres.DSN, "DATABASE_URL")
	setInt32(&cfg.Postgres.MaxConns, "ARUNA_PG_MAX_CONNS")
	setInt32(&cfg.Postgres.MinConns, "ARUNA_PG_MIN_CONNS")
	setDuration(&cfg.Postgres.MaxConnLifetime, "ARUNA_PG_MAX_CONN_LIFETIME")
	setDuration(&cfg.Postgres.MaxConnIdleTime, "ARUNA_PG_MAX_CONN_IDLE_TIME")
	setDuration(&cfg.Postgres.HealthCheck, "ARUNA_PG_HEALTH_CHECK")

	setBool(&cfg.NATS.Enabled, "ARUNA_NATS_ENABLED")
	setString(&cfg.NATS.URL, "NATS_URL")

	setString(&cfg.OpenRouter.BaseURL, "OPENROUTER_BASE_URL")
	setString(&cfg.OpenRouter.Model, "OPENROUTER_MODEL")
	setString(&cfg.OpenRouter.Referer, "OPENROUTER_REFERER")
	setString(&cfg.OpenRouter.Title, "OPENROUTER_TITLE")
	setDuration(&cfg.OpenRouter.Timeout, "OPENROUTER_TIMEOUT")
	setString(&cfg.OpenRouter.APIKeyEnv, "OPENROUTER_API_KEY_ENV")

	setInt(&cfg.Agent.MaxIterations, "ARUNA_AGENT_MAX_ITERATIONS")
	setString(&cfg.Agent.ArgParsePolicy, "ARUNA_AGENT_ARG_PARSE_POLICY")
	setInt(&cfg.Agent.HistoryLimit, "ARUNA_AGENT_HISTORY_LIMIT")
	setInt(&cfg.Agent.ReplySummaryLen, "ARUNA_AGENT_REPLY_SUMMARY_LEN")

	setString(&cfg.Logging.Level, "ARUNA_LOG_LEVEL")
	setString(&cfg.Logging.Service, "ARUNA_LOG_SERVICE")
	setBool(&cfg.Logging.Async, "ARUNA_LOG_ASYNC")

	setInt(&cfg.Breaker.MaxFailures, "ARUNA_BREAKER_MAX_FAILURES")
	setDuration(&cfg.Breaker.Timeout, "ARUNA_BREAKER_TIMEOUT")

	setFloat64(&cfg.Rate.RequestsPerSecond, "ARUNA_RATE_RPS")
	setInt(&cfg.Rate.Burst, "ARUNA_RATE_BURST")
	setDuration(&cfg.Rate.CleanupInterval, "ARUNA_RATE_CLEANUP_INTERVAL")
	setDuration(&cfg.Rate.MaxIdleTime, "ARUNA_RATE_MAX_IDLE_TIME")

	// Cache
	setInt64(&cfg.Cache.L1MaxSizeMB, "ARUNA_CACHE_L1_SIZE_MB")
	setDuration(&cfg.Cache.L1TTL, "ARUNA_CACHE_L1_TTL")
	setString(&cfg.Cache.L2Bucket, "ARUNA_CACHE_L2_BUCKET")
	setDuration(&cfg.Cache.L2TTL, "ARUNA_CACHE_L2_TTL")

	// Audit
	setBool(&cfg.Audit.Enabled, "ARUNA_AUDIT_ENABLED")
	setString(&cfg.Audit.Subject, "ARUNA_AUDIT_SUBJECT")
	setDuration(&cfg.Audit.Retention, "ARUNA_AUDIT_RETENTION")
	setString(&cfg.Audit.PruneSchedule, "ARUNA_AUDIT_PRUNE_SCHEDULE")

	setBool(&cfg.MCP.Enabled, "ARUNA_MCP_ENABLED")
	setString(&cfg.MCP.Path, "ARUNA_MCP_PATH")
	setString(&cfg.MCP.APIKeyEnv, "ARUNA_MCP_API_KEY_ENV")

	setBool(&cfg.OTEL.Enabled, "ARUNA_OTEL_ENABLED")
	setString(&cfg.OTEL.Endpoint, "OTEL_EXPORTER_OTLP_ENDPOINT")
	setString(&cfg.OTEL.ServiceName, "OTEL_SERVICE_NAME")
	setBool(&cfg.OTEL.Insecure, "ARUNA_OTEL_INSECURE")
	setFloat64(&cfg.OTEL.SampleRate, "ARUNA_OTEL_SAMPLE_RATE")
}

// validate checks that required fields are set.
func validate(cfg *Config) error {
	if cfg.Server.Port == "" {
		return errors.New("server.port is required")
	}
	if cfg.Postgres.DSN == "" {
		return errors.New("postgres.dsn is required")
	}
	if cfg.NATS.Enabled && cfg.NATS.URL == "" {
		return errors.New("nats.url is required when nats is enabled")
	}
	if cfg.Postgres.MaxConns < 1 {
		return errors.New("postgres.max_conns must be >= 1")
	}
	if cfg.OpenRouter.BaseURL == "" {
		return errors.New("openrouter.base_url is required")
	}
	if cfg.OpenRouter.Model == "" {
		return errors.New("openrouter.model is required")
	}
	if cfg.Agent.MaxIterations < 1 {
		return errors.New("agent.max_iterations must be >= 1")
	}
	switch strings.ToLower(cfg.Agent.ArgParsePolicy) {
	case "", "use_empty_args", "fail":
	default:
		return fmt.Errorf("agent.arg_parse_policy %q is invalid (use_empty_args, fail)", cfg.Agent.ArgParsePolicy)
	}
	if cfg.Agent.ReplySummaryLen < 1 {
		return errors.New("agent.reply_summary_len must be >= 1")
	}
	if cfg.Breaker.MaxFailures < 1 {
		return errors.New("breaker.max_failures must be >= 1")
	}
	if cfg.Rate.Burst < 1 {
		return errors.New("rate.burst must be >= 1")
	}
	if cfg.Audit.Enabled && cfg.Audit.Subject == "" {
		return errors.New("audit.subject is required when audit is enabled")
	}
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setInt32(dst *int32, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 32); err == nil {
			*dst = int32(n)
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *time.Duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}
