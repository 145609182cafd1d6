package config

import (
	"encoding/json"
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Queue backends selectable via QUEUE_BACKEND.
const (
	QueueBackendMemory = "memory"
	QueueBackendRedis  = "redis"
	QueueBackendKafka  = "kafka"
)

// Config holds all configuration for the relaycore services. Values are
// loaded from environment variables; a .env file in the working
// directory is honored when present.
type Config struct {
	APIBaseURL     string `json:"api_base_url"`
	InternalSecret string `json:"-"`
	DatabaseURL    string `json:"database_url"`
	RedisAddr      string `json:"redis_addr,omitempty"`
	HTTPAddr       string `json:"http_addr"`

	TickInterval    time.Duration `json:"-"`
	TickIntervalStr string        `json:"tick_interval"`

	// QueueBackend: "memory", "redis", or "kafka".
	QueueBackend    string   `json:"queue_backend"`
	QueueBufferSize int      `json:"queue_buffer_size"`
	QueueRedisKey   string   `json:"queue_redis_key"`
	KafkaBrokers    []string `json:"kafka_brokers,omitempty"`
	KafkaTopic      string   `json:"kafka_topic"`

	DBMaxOpenConns       int           `json:"db_max_open_conns"`
	DBMaxIdleConns       int           `json:"db_max_idle_conns"`
	DBConnMaxLifetime    time.Duration `json:"-"`
	DBConnMaxLifetimeStr string        `json:"db_conn_max_lifetime"`

	HTTPShutdownTimeout    time.Duration `json:"-"`
	HTTPShutdownTimeoutStr string        `json:"http_shutdown_timeout"`
	ShutdownTimeout        time.Duration `json:"-"`
	ShutdownTimeoutStr     string        `json:"shutdown_timeout"`

	MetricsEnabled bool   `json:"metrics_enabled"`
	MetricsPath    string `json:"metrics_path"`

	// ReloadScopes a worker watches; empty means all scopes.
	ReloadScopes []string `json:"reload_scopes,omitempty"`

	// LeaderEnabled gates the scheduler behind a Postgres advisory lock
	// so only one replica fires tasks.
	LeaderEnabled bool `json:"leader_enabled"`

	// LeaderLockKey: all replicas sharing the same database must use the
	// same key.
	LeaderLockKey int64 `json:"leader_lock_key"`

	LeaderRetryInterval    time.Duration `json:"-"`
	LeaderRetryIntervalStr string        `json:"leader_retry_interval"`

	LeaderHeartbeatInterval    time.Duration `json:"-"`
	LeaderHeartbeatIntervalStr string        `json:"leader_heartbeat_interval"`
}

// Load reads configuration from environment variables with defaults. A
// .env file, when present, fills variables that are not already set.
func Load() Config {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("config: skipping .env: %v", err)
	}

	cfg := Config{
		APIBaseURL:                 os.Getenv("API_BASE_URL"),
		InternalSecret:             os.Getenv("INTERNAL_SECRET"),
		DatabaseURL:                os.Getenv("DATABASE_URL"),
		RedisAddr:                  os.Getenv("REDIS_ADDR"),
		HTTPAddr:                   os.Getenv("HTTP_ADDR"),
		TickIntervalStr:            os.Getenv("TICK_INTERVAL"),
		QueueBackend:               os.Getenv("QUEUE_BACKEND"),
		QueueRedisKey:              os.Getenv("QUEUE_REDIS_KEY"),
		KafkaTopic:                 os.Getenv("KAFKA_TOPIC"),
		DBConnMaxLifetimeStr:       os.Getenv("DB_CONN_MAX_LIFETIME"),
		HTTPShutdownTimeoutStr:     os.Getenv("HTTP_SHUTDOWN_TIMEOUT"),
		ShutdownTimeoutStr:         os.Getenv("SHUTDOWN_TIMEOUT"),
		MetricsEnabled:             os.Getenv("METRICS_ENABLED") == "true",
		MetricsPath:                os.Getenv("METRICS_PATH"),
		LeaderEnabled:              os.Getenv("LEADER_ENABLED") == "true",
		LeaderRetryIntervalStr:     os.Getenv("LEADER_RETRY_INTERVAL"),
		LeaderHeartbeatIntervalStr: os.Getenv("LEADER_HEARTBEAT_INTERVAL"),
	}

	cfg.KafkaBrokers = splitList(os.Getenv("KAFKA_BROKERS"))
	cfg.ReloadScopes = splitList(os.Getenv("RELOAD_SCOPES"))

	if bufStr := os.Getenv("QUEUE_BUFFER_SIZE"); bufStr != "" {
		if n, err := parseInt(bufStr); err == nil && n > 0 {
			cfg.QueueBufferSize = n
		} else {
			log.Printf("config: invalid QUEUE_BUFFER_SIZE %q (must be a positive integer), using default 100", bufStr)
		}
	}
	if cfg.QueueBufferSize == 0 {
		cfg.QueueBufferSize = 100
	}

	if lockKeyStr := os.Getenv("LEADER_LOCK_KEY"); lockKeyStr != "" {
		if n, err := parseInt(lockKeyStr); err == nil && n > 0 {
			cfg.LeaderLockKey = int64(n)
		} else {
			log.Printf("config: invalid LEADER_LOCK_KEY %q (must be a positive integer), using default 427015", lockKeyStr)
		}
	}
	if cfg.LeaderLockKey == 0 {
		cfg.LeaderLockKey = 427015
	}

	if maxOpenStr := os.Getenv("DB_MAX_OPEN_CONNS"); maxOpenStr != "" {
		if n, err := parseInt(maxOpenStr); err == nil && n > 0 {
			cfg.DBMaxOpenConns = n
		}
	}
	if cfg.DBMaxOpenConns == 0 {
		cfg.DBMaxOpenConns = 25
	}

	if maxIdleStr := os.Getenv("DB_MAX_IDLE_CONNS"); maxIdleStr != "" {
		if n, err := parseInt(maxIdleStr); err == nil && n > 0 {
			cfg.DBMaxIdleConns = n
		}
	}
	if cfg.DBMaxIdleConns == 0 {
		cfg.DBMaxIdleConns = 5
	}

	// Support hosting platforms that only hand out PORT.
	if cfg.HTTPAddr == "" {
		if port := os.Getenv("PORT"); port != "" {
			cfg.HTTPAddr = ":" + port
		} else {
			cfg.HTTPAddr = ":8080"
		}
	}
	if cfg.APIBaseURL == "" {
		cfg.APIBaseURL = "http://localhost:8080"
	}
	if cfg.QueueBackend == "" {
		cfg.QueueBackend = QueueBackendMemory
	}
	if cfg.QueueRedisKey == "" {
		cfg.QueueRedisKey = "relaycore:events"
	}
	if cfg.KafkaTopic == "" {
		cfg.KafkaTopic = "relaycore.events"
	}
	if cfg.TickIntervalStr == "" {
		cfg.TickIntervalStr = "5s"
	}
	if cfg.DBConnMaxLifetimeStr == "" {
		cfg.DBConnMaxLifetimeStr = "30m"
	}
	if cfg.HTTPShutdownTimeoutStr == "" {
		cfg.HTTPShutdownTimeoutStr = "10s"
	}
	if cfg.ShutdownTimeoutStr == "" {
		cfg.ShutdownTimeoutStr = "30s"
	}
	if cfg.MetricsPath == "" {
		cfg.MetricsPath = "/metrics"
	}
	if cfg.LeaderRetryIntervalStr == "" {
		cfg.LeaderRetryIntervalStr = "5s"
	}
	if cfg.LeaderHeartbeatIntervalStr == "" {
		cfg.LeaderHeartbeatIntervalStr = "2s"
	}

	// Parse durations; validation is handled separately by Validate().
	if d, err := time.ParseDuration(cfg.TickIntervalStr); err == nil {
		cfg.TickInterval = d
	}
	if d, err := time.ParseDuration(cfg.DBConnMaxLifetimeStr); err == nil {
		cfg.DBConnMaxLifetime = d
	}
	if d, err := time.ParseDuration(cfg.HTTPShutdownTimeoutStr); err == nil {
		cfg.HTTPShutdownTimeout = d
	}
	if d, err := time.ParseDuration(cfg.ShutdownTimeoutStr); err == nil {
		cfg.ShutdownTimeout = d
	}
	if d, err := time.ParseDuration(cfg.LeaderRetryIntervalStr); err == nil {
		cfg.LeaderRetryInterval = d
	}
	if d, err := time.ParseDuration(cfg.LeaderHeartbeatIntervalStr); err == nil {
		cfg.LeaderHeartbeatInterval = d
	}

	return cfg
}

// splitList splits a comma-separated env value, trimming whitespace and
// dropping empty entries.
func splitList(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(s, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// parseInt parses a string of ASCII digits as an integer.
func parseInt(s string) (int, error) {
	if s == "" {
		return 0, os.ErrInvalid
	}
	var n int
	for _, c := range s {
		if c < '0' || c > '9' {
			return 0, os.ErrInvalid
		}
		n = n*10 + int(c-'0')
	}
	return n, nil
}

// MaskedJSON returns the configuration as JSON with secrets masked.
func (c Config) MaskedJSON() ([]byte, error) {
	masked := struct {
		APIBaseURL              string   `json:"api_base_url"`
		InternalSecret          string   `json:"internal_secret"`
		DatabaseURL             string   `json:"database_url"`
		RedisAddr               string   `json:"redis_addr,omitempty"`
		HTTPAddr                string   `json:"http_addr"`
		TickInterval            string   `json:"tick_interval"`
		QueueBackend            string   `json:"queue_backend"`
		QueueBufferSize         int      `json:"queue_buffer_size"`
		QueueRedisKey           string   `json:"queue_redis_key"`
		KafkaBrokers            []string `json:"kafka_brokers,omitempty"`
		KafkaTopic              string   `json:"kafka_topic"`
		DBMaxOpenConns          int      `json:"db_max_open_conns"`
		DBMaxIdleConns          int      `json:"db_max_idle_conns"`
		DBConnMaxLifetime       string   `json:"db_conn_max_lifetime"`
		HTTPShutdownTimeout     string   `json:"http_shutdown_timeout"`
		ShutdownTimeout         string   `json:"shutdown_timeout"`
		MetricsEnabled          bool     `json:"metrics_enabled"`
		MetricsPath             string   `json:"metrics_path"`
		ReloadScopes            []string `json:"reload_scopes,omitempty"`
		LeaderEnabled           bool     `json:"leader_enabled"`
		LeaderLockKey           int64    `json:"leader_lock_key"`
		LeaderRetryInterval     string   `json:"leader_retry_interval"`
		LeaderHeartbeatInterval string   `json:"leader_heartbeat_interval"`
	}{
		APIBaseURL:              c.APIBaseURL,
		InternalSecret:          maskSecret(c.InternalSecret),
		DatabaseURL:             maskSecret(c.DatabaseURL),
		RedisAddr:               c.RedisAddr,
		HTTPAddr:                c.HTTPAddr,
		TickInterval:            c.TickIntervalStr,
		QueueBackend:            c.QueueBackend,
		QueueBufferSize:         c.QueueBufferSize,
		QueueRedisKey:           c.QueueRedisKey,
		KafkaBrokers:            c.KafkaBrokers,
		KafkaTopic:              c.KafkaTopic,
		DBMaxOpenConns:          c.DBMaxOpenConns,
		DBMaxIdleConns:          c.DBMaxIdleConns,
		DBConnMaxLifetime:       c.DBConnMaxLifetimeStr,
		HTTPShutdownTimeout:     c.HTTPShutdownTimeoutStr,
		ShutdownTimeout:         c.ShutdownTimeoutStr,
		MetricsEnabled:          c.MetricsEnabled,
		MetricsPath:             c.MetricsPath,
		ReloadScopes:            c.ReloadScopes,
		LeaderEnabled:           c.LeaderEnabled,
		LeaderLockKey:           c.LeaderLockKey,
		LeaderRetryInterval:     c.LeaderRetryIntervalStr,
		LeaderHeartbeatInterval: c.LeaderHeartbeatIntervalStr,
	}
	return json.MarshalIndent(masked, "", "  ")
}

// maskSecret masks a secret value, preserving only the URI scheme if present.
func maskSecret(s string) string {
	if s == "" {
		return ""
	}
	for _, scheme := range []string{"postgres://", "postgresql://"} {
		if strings.HasPrefix(s, scheme) {
			return scheme + "***"
		}
	}
	return "***"
}
