// Package dispatch is the HTTP client workers use to hand events to the
// core service's internal dispatch endpoint.
package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/relaycore/relaycore/internal/domain"
	"github.com/relaycore/relaycore/internal/metrics"
)

// SecretHeader authenticates internal callers to the core service.
const SecretHeader = "X-Internal-Secret"

const defaultTimeout = 30 * time.Second

// maxErrorBody caps how much of an error response is captured into a
// StatusError.
const maxErrorBody = 4 << 10

// StatusError is returned when the dispatch endpoint answers with a
// non-2xx status. It carries the status code and the response body so
// callers can log or branch on the failure.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("dispatch: status %d: %s", e.StatusCode, e.Body)
}

// MetricsSink records dispatch request outcomes.
type MetricsSink interface {
	DispatchCompleted(statusClass string, duration time.Duration)
}

type Client struct {
	baseURL string
	secret  string
	client  *http.Client
	metrics MetricsSink // optional, nil = disabled
}

// NewClient builds a dispatch client for the given base URL. The secret
// may be empty, in which case no auth header is sent.
func NewClient(baseURL, secret string) *Client {
	return &Client{
		baseURL: baseURL,
		secret:  secret,
		client:  &http.Client{Timeout: defaultTimeout},
	}
}

// WithMetrics attaches a metrics sink to the client.
func (c *Client) WithMetrics(sink MetricsSink) *Client {
	c.metrics = sink
	return c
}

// WithHTTPClient replaces the underlying HTTP client, mainly for tests
// and callers that need custom transport settings.
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	c.client = hc
	return c
}

// BaseURL reports the endpoint this client posts to.
func (c *Client) BaseURL() string {
	return c.baseURL
}

type dispatchRequest struct {
	Source        string         `json:"source"`
	Type          string         `json:"type"`
	Payload       map[string]any `json:"payload"`
	CorrelationID string         `json:"correlation_id,omitempty"`
}

type dispatchResponse struct {
	ID string `json:"id"`
}

// Dispatch posts a raw event to the core service and returns the
// normalized event id it was assigned.
func (c *Client) Dispatch(ctx context.Context, raw domain.RawDispatchInput) (string, error) {
	return c.DispatchCorrelated(ctx, raw, "")
}

// DispatchCorrelated is Dispatch with an explicit correlation id, which
// the core service uses for duplicate suppression.
func (c *Client) DispatchCorrelated(ctx context.Context, raw domain.RawDispatchInput, correlationID string) (string, error) {
	body, err := json.Marshal(dispatchRequest{
		Source:        raw.Source,
		Type:          raw.Type,
		Payload:       raw.Payload,
		CorrelationID: correlationID,
	})
	if err != nil {
		return "", fmt.Errorf("dispatch: marshal: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/internal/dispatch", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("dispatch: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.secret != "" {
		req.Header.Set(SecretHeader, c.secret)
	}

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		c.record(0, err, time.Since(start))
		return "", fmt.Errorf("dispatch: send: %w", err)
	}
	defer resp.Body.Close()
	c.record(resp.StatusCode, nil, time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return "", &StatusError{StatusCode: resp.StatusCode, Body: string(data)}
	}

	var out dispatchResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("dispatch: decode response: %w", err)
	}
	return out.ID, nil
}

func (c *Client) record(statusCode int, err error, duration time.Duration) {
	if c.metrics == nil {
		return
	}
	c.metrics.DispatchCompleted(metrics.ClassifyStatus(statusCode, err), duration)
}
