package config

import (
	"fmt"
	"time"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	if len(e) == 1 {
		return e[0].Error()
	}
	msg := fmt.Sprintf("%d validation errors:", len(e))
	for _, err := range e {
		msg += "\n  - " + err.Error()
	}
	return msg
}

// Validate checks the configuration for errors.
// Returns nil if valid, or ValidationErrors if invalid.
func Validate(cfg Config) error {
	var errs ValidationErrors

	if cfg.DatabaseURL == "" {
		errs = append(errs, ValidationError{
			Field:   "DATABASE_URL",
			Message: "required",
		})
	}

	if cfg.TickIntervalStr != "" {
		d, err := time.ParseDuration(cfg.TickIntervalStr)
		if err != nil {
			errs = append(errs, ValidationError{
				Field:   "TICK_INTERVAL",
				Message: fmt.Sprintf("invalid duration: %v", err),
			})
		} else if d <= 0 {
			errs = append(errs, ValidationError{
				Field:   "TICK_INTERVAL",
				Message: "must be positive",
			})
		}
	}

	switch cfg.QueueBackend {
	case "", QueueBackendMemory:
	case QueueBackendRedis:
		if cfg.RedisAddr == "" {
			errs = append(errs, ValidationError{
				Field:   "REDIS_ADDR",
				Message: "required when QUEUE_BACKEND=redis",
			})
		}
	case QueueBackendKafka:
		if len(cfg.KafkaBrokers) == 0 {
			errs = append(errs, ValidationError{
				Field:   "KAFKA_BROKERS",
				Message: "required when QUEUE_BACKEND=kafka",
			})
		}
	default:
		errs = append(errs, ValidationError{
			Field:   "QUEUE_BACKEND",
			Message: fmt.Sprintf("must be 'memory', 'redis', or 'kafka', got %q", cfg.QueueBackend),
		})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}
