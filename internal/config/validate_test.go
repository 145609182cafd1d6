package config

import (
	"errors"
	"strings"
	"testing"
)

func validConfig() Config {
	return Config{
		DatabaseURL:     "postgres://localhost/relaycore",
		TickIntervalStr: "5s",
		QueueBackend:    QueueBackendMemory,
	}
}

func TestValidateOK(t *testing.T) {
	if err := Validate(validConfig()); err != nil {
		t.Errorf("Validate = %v, want nil", err)
	}
}

func TestValidateErrors(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantMsg string
	}{
		{"missing database url", func(c *Config) { c.DatabaseURL = "" }, "DATABASE_URL"},
		{"bad tick interval", func(c *Config) { c.TickIntervalStr = "five seconds" }, "TICK_INTERVAL"},
		{"negative tick interval", func(c *Config) { c.TickIntervalStr = "-5s" }, "must be positive"},
		{"unknown queue backend", func(c *Config) { c.QueueBackend = "sqs" }, "QUEUE_BACKEND"},
		{"redis backend without addr", func(c *Config) { c.QueueBackend = QueueBackendRedis }, "REDIS_ADDR"},
		{"kafka backend without brokers", func(c *Config) { c.QueueBackend = QueueBackendKafka }, "KAFKA_BROKERS"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			err := Validate(cfg)
			if err == nil {
				t.Fatal("Validate = nil, want error")
			}
			if !strings.Contains(err.Error(), tt.wantMsg) {
				t.Errorf("error %q does not mention %q", err.Error(), tt.wantMsg)
			}
		})
	}
}

func TestValidateCollectsMultipleErrors(t *testing.T) {
	cfg := Config{TickIntervalStr: "nope", QueueBackend: "sqs"}

	err := Validate(cfg)
	var verrs ValidationErrors
	if !errors.As(err, &verrs) {
		t.Fatalf("err = %T, want ValidationErrors", err)
	}
	if len(verrs) != 3 {
		t.Errorf("got %d errors, want 3: %v", len(verrs), verrs)
	}
	if !strings.Contains(err.Error(), "3 validation errors") {
		t.Errorf("aggregate message = %q", err.Error())
	}
}
