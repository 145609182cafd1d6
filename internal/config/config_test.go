package config

import (
	"encoding/json"
	"os"
	"reflect"
	"testing"
	"time"
)

var allEnvVars = []string{
	"API_BASE_URL", "INTERNAL_SECRET", "DATABASE_URL", "REDIS_ADDR",
	"HTTP_ADDR", "PORT", "TICK_INTERVAL", "QUEUE_BACKEND",
	"QUEUE_BUFFER_SIZE", "QUEUE_REDIS_KEY", "KAFKA_BROKERS", "KAFKA_TOPIC",
	"DB_MAX_OPEN_CONNS", "DB_MAX_IDLE_CONNS", "DB_CONN_MAX_LIFETIME",
	"HTTP_SHUTDOWN_TIMEOUT", "SHUTDOWN_TIMEOUT", "METRICS_ENABLED",
	"METRICS_PATH", "RELOAD_SCOPES", "LEADER_ENABLED", "LEADER_LOCK_KEY",
	"LEADER_RETRY_INTERVAL", "LEADER_HEARTBEAT_INTERVAL",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, v := range allEnvVars {
		os.Unsetenv(v)
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	cfg := Load()

	if cfg.HTTPAddr != ":8080" {
		t.Errorf("HTTPAddr = %q, want :8080", cfg.HTTPAddr)
	}
	if cfg.APIBaseURL != "http://localhost:8080" {
		t.Errorf("APIBaseURL = %q", cfg.APIBaseURL)
	}
	if cfg.TickInterval != 5*time.Second {
		t.Errorf("TickInterval = %v, want 5s", cfg.TickInterval)
	}
	if cfg.QueueBackend != QueueBackendMemory {
		t.Errorf("QueueBackend = %q, want memory", cfg.QueueBackend)
	}
	if cfg.QueueBufferSize != 100 {
		t.Errorf("QueueBufferSize = %d, want 100", cfg.QueueBufferSize)
	}
	if cfg.QueueRedisKey != "relaycore:events" {
		t.Errorf("QueueRedisKey = %q", cfg.QueueRedisKey)
	}
	if cfg.KafkaTopic != "relaycore.events" {
		t.Errorf("KafkaTopic = %q", cfg.KafkaTopic)
	}
	if cfg.DBMaxOpenConns != 25 || cfg.DBMaxIdleConns != 5 {
		t.Errorf("db pool = %d/%d, want 25/5", cfg.DBMaxOpenConns, cfg.DBMaxIdleConns)
	}
	if cfg.ShutdownTimeout != 30*time.Second {
		t.Errorf("ShutdownTimeout = %v, want 30s", cfg.ShutdownTimeout)
	}
	if cfg.HTTPShutdownTimeout != 10*time.Second {
		t.Errorf("HTTPShutdownTimeout = %v, want 10s", cfg.HTTPShutdownTimeout)
	}
	if cfg.MetricsPath != "/metrics" {
		t.Errorf("MetricsPath = %q", cfg.MetricsPath)
	}
	if cfg.LeaderLockKey == 0 {
		t.Error("LeaderLockKey not defaulted")
	}
}

func TestLoadCustomValues(t *testing.T) {
	clearEnv(t)
	t.Setenv("API_BASE_URL", "http://core:9090")
	t.Setenv("INTERNAL_SECRET", "hunter2")
	t.Setenv("TICK_INTERVAL", "10s")
	t.Setenv("QUEUE_BACKEND", "kafka")
	t.Setenv("KAFKA_BROKERS", "kafka-1:9092, kafka-2:9092")
	t.Setenv("RELOAD_SCOPES", "slack,github")
	t.Setenv("QUEUE_BUFFER_SIZE", "500")
	t.Setenv("METRICS_ENABLED", "true")

	cfg := Load()

	if cfg.APIBaseURL != "http://core:9090" {
		t.Errorf("APIBaseURL = %q", cfg.APIBaseURL)
	}
	if cfg.InternalSecret != "hunter2" {
		t.Errorf("InternalSecret not loaded")
	}
	if cfg.TickInterval != 10*time.Second {
		t.Errorf("TickInterval = %v, want 10s", cfg.TickInterval)
	}
	if cfg.QueueBackend != QueueBackendKafka {
		t.Errorf("QueueBackend = %q, want kafka", cfg.QueueBackend)
	}
	if !reflect.DeepEqual(cfg.KafkaBrokers, []string{"kafka-1:9092", "kafka-2:9092"}) {
		t.Errorf("KafkaBrokers = %v", cfg.KafkaBrokers)
	}
	if !reflect.DeepEqual(cfg.ReloadScopes, []string{"slack", "github"}) {
		t.Errorf("ReloadScopes = %v", cfg.ReloadScopes)
	}
	if cfg.QueueBufferSize != 500 {
		t.Errorf("QueueBufferSize = %d, want 500", cfg.QueueBufferSize)
	}
	if !cfg.MetricsEnabled {
		t.Error("MetricsEnabled = false, want true")
	}
}

func TestLoadPortFallback(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "3000")

	cfg := Load()
	if cfg.HTTPAddr != ":3000" {
		t.Errorf("HTTPAddr = %q, want :3000", cfg.HTTPAddr)
	}
}

func TestLoadInvalidIntegersFallBack(t *testing.T) {
	clearEnv(t)
	t.Setenv("QUEUE_BUFFER_SIZE", "lots")
	t.Setenv("LEADER_LOCK_KEY", "-1")

	cfg := Load()
	if cfg.QueueBufferSize != 100 {
		t.Errorf("QueueBufferSize = %d, want default 100", cfg.QueueBufferSize)
	}
	if cfg.LeaderLockKey != 427015 {
		t.Errorf("LeaderLockKey = %d, want default", cfg.LeaderLockKey)
	}
}

func TestSplitList(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"", nil},
		{"a", []string{"a"}},
		{"a,b", []string{"a", "b"}},
		{" a , b ,", []string{"a", "b"}},
		{",,", nil},
	}
	for _, tt := range tests {
		if got := splitList(tt.in); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("splitList(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestMaskedJSONHidesSecrets(t *testing.T) {
	cfg := Config{
		APIBaseURL:     "http://core:8080",
		InternalSecret: "hunter2",
		DatabaseURL:    "postgres://user:pass@db:5432/relaycore",
	}

	data, err := cfg.MaskedJSON()
	if err != nil {
		t.Fatalf("MaskedJSON: %v", err)
	}

	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if out["internal_secret"] != "***" {
		t.Errorf("internal_secret = %v, want ***", out["internal_secret"])
	}
	if out["database_url"] != "postgres://***" {
		t.Errorf("database_url = %v, want postgres://***", out["database_url"])
	}
}
