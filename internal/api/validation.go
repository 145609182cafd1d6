package api

import (
	"errors"

	"github.com/relaycore/relaycore/internal/domain"
)

func validateCreateTask(req CreateTaskRequest) error {
	if req.Intent == "" {
		return errors.New("intent is required")
	}

	switch {
	case req.ExecuteAt == "" && req.Cron == "":
		return errors.New("one of execute_at or cron is required")
	case req.ExecuteAt != "" && req.Cron != "":
		return errors.New("execute_at and cron are mutually exclusive")
	case req.ExecuteAt != "":
		if _, err := domain.ParseTime(req.ExecuteAt); err != nil {
			return errors.New("execute_at must be an RFC 3339 UTC timestamp with milliseconds")
		}
	}

	if req.Timezone != "" && req.Cron == "" {
		return errors.New("timezone only applies to cron tasks")
	}

	return nil
}
