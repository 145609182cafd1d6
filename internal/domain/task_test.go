package domain

import (
	"testing"
	"time"
)

func TestFormatTime_FixedWidthUTC(t *testing.T) {
	tests := []struct {
		in   time.Time
		want string
	}{
		{time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), "2024-01-01T00:00:00.000Z"},
		{time.Date(2024, 9, 5, 7, 3, 9, 42e6, time.UTC), "2024-09-05T07:03:09.042Z"},
		{time.Date(2024, 6, 1, 12, 0, 0, 0, time.FixedZone("CET", 3600)), "2024-06-01T11:00:00.000Z"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := FormatTime(tt.in); got != tt.want {
				t.Errorf("FormatTime = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestTimeLayout_LexicographicOrderIsChronological(t *testing.T) {
	earlier := FormatTime(time.Date(2024, 1, 2, 9, 59, 59, 999e6, time.UTC))
	later := FormatTime(time.Date(2024, 1, 2, 10, 0, 0, 0, time.UTC))

	if !(earlier < later) {
		t.Errorf("expected %q < %q", earlier, later)
	}
}

func TestParseTime_RoundTrip(t *testing.T) {
	in := time.Date(2024, 3, 15, 18, 30, 5, 500e6, time.UTC)

	parsed, err := ParseTime(FormatTime(in))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !parsed.Equal(in) {
		t.Errorf("round trip = %v, want %v", parsed, in)
	}
}

func TestRawDispatchInput_Validate(t *testing.T) {
	tests := []struct {
		name    string
		in      RawDispatchInput
		wantErr error
	}{
		{"valid", RawDispatchInput{Source: "slack", Type: "message.received", Payload: map[string]any{}}, nil},
		{"empty payload ok", RawDispatchInput{Source: "scheduler", Type: "task.scheduled", Payload: map[string]any{}}, nil},
		{"missing source", RawDispatchInput{Type: "x", Payload: map[string]any{}}, ErrMissingSource},
		{"missing type", RawDispatchInput{Source: "x", Payload: map[string]any{}}, ErrMissingType},
		{"nil payload", RawDispatchInput{Source: "x", Type: "y"}, ErrMissingPayload},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.in.Validate(); err != tt.wantErr {
				t.Errorf("Validate() = %v, want %v", err, tt.wantErr)
			}
		})
	}
}
