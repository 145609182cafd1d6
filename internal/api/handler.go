// Package api is the HTTP surface of the core service: the internal
// dispatch and reload endpoints used by workers, and task management.
package api

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/relaycore/relaycore/internal/domain"
	"github.com/relaycore/relaycore/internal/event"
	"github.com/relaycore/relaycore/internal/pipeline"
	"github.com/relaycore/relaycore/internal/queue"
	"github.com/relaycore/relaycore/internal/reload"
)

// SecretHeader authenticates internal callers.
const SecretHeader = "X-Internal-Secret"

// TaskScheduler is the slice of the scheduler the API needs.
type TaskScheduler interface {
	Schedule(ctx context.Context, task domain.ScheduledTask) (string, error)
	ScheduleCron(ctx context.Context, expression, timezone, intent string, taskCtx map[string]any) (string, error)
	Cancel(ctx context.Context, id string) (bool, error)
	List() []domain.ScheduledTask
}

// HealthChecker provides database health status for the /health endpoint.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

// MetricsSink records API-level metrics.
type MetricsSink interface {
	ReloadSignalReceived(scope string)
}

type Handler struct {
	scheduler TaskScheduler
	pipeline  *pipeline.Pipeline
	queue     queue.Queue
	dedup     *event.Set
	secret    string

	publisher reload.Publisher // optional, nil = reload endpoint disabled
	db        HealthChecker    // optional, nil = simple health only
	metrics   MetricsSink      // optional, nil = disabled
}

func NewHandler(sched TaskScheduler, p *pipeline.Pipeline, q queue.Queue, dedup *event.Set, secret string) *Handler {
	return &Handler{
		scheduler: sched,
		pipeline:  p,
		queue:     q,
		dedup:     dedup,
		secret:    secret,
	}
}

// WithPublisher enables the /internal/reload endpoint.
func (h *Handler) WithPublisher(p reload.Publisher) *Handler {
	h.publisher = p
	return h
}

// WithHealthChecker sets the database health checker for verbose /health responses.
func (h *Handler) WithHealthChecker(db HealthChecker) *Handler {
	h.db = db
	return h
}

// WithMetrics attaches a metrics sink to the handler.
func (h *Handler) WithMetrics(sink MetricsSink) *Handler {
	h.metrics = sink
	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Path

	switch {
	case path == "/health" && r.Method == http.MethodGet:
		h.health(w, r)

	case path == "/internal/dispatch" && r.Method == http.MethodPost:
		h.dispatch(w, r)

	case path == "/internal/reload" && r.Method == http.MethodPost:
		h.reload(w, r)

	case path == "/tasks" && r.Method == http.MethodPost:
		h.createTask(w, r)

	case path == "/tasks" && r.Method == http.MethodGet:
		h.listTasks(w, r)

	case strings.HasPrefix(path, "/tasks/") && r.Method == http.MethodDelete:
		h.deleteTask(w, r)

	default:
		writeError(w, http.StatusNotFound, "not found")
	}
}

// authorized checks the internal secret header. An empty configured
// secret disables the check, for local development.
func (h *Handler) authorized(r *http.Request) bool {
	if h.secret == "" {
		return true
	}
	got := r.Header.Get(SecretHeader)
	return subtle.ConstantTimeCompare([]byte(got), []byte(h.secret)) == 1
}

// HealthResponse represents the /health endpoint response.
type HealthResponse struct {
	Status     string            `json:"status"`
	Components map[string]string `json:"components,omitempty"`
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	verbose := r.URL.Query().Get("verbose") == "true"

	if !verbose || h.db == nil {
		writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
		return
	}

	resp := HealthResponse{
		Status:     "ok",
		Components: make(map[string]string),
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	if err := h.db.Ping(ctx); err != nil {
		resp.Status = "degraded"
		resp.Components["database"] = "unhealthy: " + err.Error()
	} else {
		resp.Components["database"] = "healthy"
	}

	statusCode := http.StatusOK
	if resp.Status == "degraded" {
		statusCode = http.StatusServiceUnavailable
	}

	writeJSON(w, statusCode, resp)
}

// maxRequestBodySize is the maximum allowed request body size (1MB).
const maxRequestBodySize = 1 << 20

func (h *Handler) dispatch(w http.ResponseWriter, r *http.Request) {
	if !h.authorized(r) {
		writeError(w, http.StatusUnauthorized, "missing or invalid internal secret")
		return
	}

	var req DispatchRequest
	if !decodeBody(w, r, &req) {
		return
	}

	raw := domain.RawDispatchInput{
		Source:  req.Source,
		Type:    req.Type,
		Payload: req.Payload,
	}
	if err := raw.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	id, err := h.pipeline.Enqueue(r.Context(), h.queue, raw, pipeline.Options{
		CorrelationID: req.CorrelationID,
		Dedup:         h.dedup,
	})
	if err != nil {
		log.Printf("api: dispatch error: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to enqueue event")
		return
	}

	writeJSON(w, http.StatusAccepted, DispatchResponse{ID: id})
}

func (h *Handler) reload(w http.ResponseWriter, r *http.Request) {
	if !h.authorized(r) {
		writeError(w, http.StatusUnauthorized, "missing or invalid internal secret")
		return
	}
	if h.publisher == nil {
		writeError(w, http.StatusServiceUnavailable, "reload bus not configured")
		return
	}

	var req ReloadRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if len(req.Scopes) == 0 {
		writeError(w, http.StatusBadRequest, "scopes is required")
		return
	}

	if err := h.publisher.Publish(r.Context(), req.Scopes...); err != nil {
		log.Printf("api: reload publish error: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to publish reload")
		return
	}

	if h.metrics != nil {
		for _, scope := range req.Scopes {
			h.metrics.ReloadSignalReceived(scope)
		}
	}
	log.Printf("api: reload published scopes=%v", req.Scopes)

	writeJSON(w, http.StatusAccepted, ReloadResponse{Scopes: req.Scopes})
}

func (h *Handler) createTask(w http.ResponseWriter, r *http.Request) {
	var req CreateTaskRequest
	if !decodeBody(w, r, &req) {
		return
	}

	if err := validateCreateTask(req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var id string
	var err error
	if req.Cron != "" {
		tz := req.Timezone
		if tz == "" {
			tz = "UTC"
		}
		id, err = h.scheduler.ScheduleCron(r.Context(), req.Cron, tz, req.Intent, req.Context)
	} else {
		id, err = h.scheduler.Schedule(r.Context(), domain.ScheduledTask{
			ExecuteAt: req.ExecuteAt,
			Intent:    req.Intent,
			Context:   req.Context,
		})
	}
	if err != nil {
		log.Printf("api: create task error: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to schedule task")
		return
	}

	writeJSON(w, http.StatusCreated, TaskResponse{ID: id})
}

func (h *Handler) listTasks(w http.ResponseWriter, r *http.Request) {
	tasks := h.scheduler.List()

	resp := ListTasksResponse{Tasks: make([]domain.ScheduledTask, len(tasks))}
	copy(resp.Tasks, tasks)
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) deleteTask(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/tasks/")
	if id == "" || strings.Contains(id, "/") {
		writeError(w, http.StatusNotFound, "not found")
		return
	}

	found, err := h.scheduler.Cancel(r.Context(), id)
	if err != nil {
		log.Printf("api: delete task error: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to cancel task")
		return
	}
	if !found {
		writeError(w, http.StatusNotFound, "task not found")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// decodeBody reads a size-capped JSON body into v, writing the error
// response itself on failure.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		if err.Error() == "http: request body too large" {
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return false
		}
		writeError(w, http.StatusBadRequest, "invalid json")
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("api: json encode error: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}
