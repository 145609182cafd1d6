package api

import (
	"strings"
	"testing"
)

func TestValidateCreateTask(t *testing.T) {
	tests := []struct {
		name    string
		req     CreateTaskRequest
		wantErr string
	}{
		{
			name: "one-shot ok",
			req:  CreateTaskRequest{ExecuteAt: "2030-01-01T00:00:00.000Z", Intent: "ping"},
		},
		{
			name: "cron ok",
			req:  CreateTaskRequest{Cron: "0 9 * * *", Timezone: "Europe/Paris", Intent: "digest"},
		},
		{
			name:    "missing intent",
			req:     CreateTaskRequest{ExecuteAt: "2030-01-01T00:00:00.000Z"},
			wantErr: "intent",
		},
		{
			name:    "no schedule",
			req:     CreateTaskRequest{Intent: "ping"},
			wantErr: "execute_at or cron",
		},
		{
			name:    "both schedules",
			req:     CreateTaskRequest{ExecuteAt: "2030-01-01T00:00:00.000Z", Cron: "* * * * *", Intent: "ping"},
			wantErr: "mutually exclusive",
		},
		{
			name:    "non-canonical timestamp",
			req:     CreateTaskRequest{ExecuteAt: "2030-01-01T00:00:00Z", Intent: "ping"},
			wantErr: "milliseconds",
		},
		{
			name:    "timezone without cron",
			req:     CreateTaskRequest{ExecuteAt: "2030-01-01T00:00:00.000Z", Timezone: "UTC", Intent: "ping"},
			wantErr: "timezone",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateCreateTask(tt.req)
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("err = %v, want nil", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("err = %v, want mention of %q", err, tt.wantErr)
			}
		})
	}
}
