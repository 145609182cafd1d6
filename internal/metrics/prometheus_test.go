package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func newTestSink(t *testing.T) (*PrometheusSink, *prometheus.Registry) {
	t.Helper()
	reg := prometheus.NewRegistry()
	sink := NewPrometheusSink(reg)
	return sink, reg
}

func getCounterValue(t *testing.T, reg *prometheus.Registry, name string) float64 {
	t.Helper()
	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}
	for _, mf := range mfs {
		if mf.GetName() == name {
			for _, m := range mf.GetMetric() {
				if m.GetCounter() != nil {
					return m.GetCounter().GetValue()
				}
			}
		}
	}
	return 0
}

func getGaugeValue(t *testing.T, reg *prometheus.Registry, name string) float64 {
	t.Helper()
	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}
	for _, mf := range mfs {
		if mf.GetName() == name {
			for _, m := range mf.GetMetric() {
				if m.GetGauge() != nil {
					return m.GetGauge().GetValue()
				}
			}
		}
	}
	return 0
}

func getCounterVecValue(t *testing.T, reg *prometheus.Registry, name string, labels map[string]string) float64 {
	t.Helper()
	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}
	for _, mf := range mfs {
		if mf.GetName() == name {
			for _, m := range mf.GetMetric() {
				if matchLabels(m.GetLabel(), labels) {
					return m.GetCounter().GetValue()
				}
			}
		}
	}
	return 0
}

func matchLabels(pairs []*dto.LabelPair, want map[string]string) bool {
	if len(pairs) != len(want) {
		return false
	}
	for _, p := range pairs {
		if v, ok := want[p.GetName()]; !ok || v != p.GetValue() {
			return false
		}
	}
	return true
}

func TestPrometheusSink_Registration(t *testing.T) {
	// Should not panic or error with a fresh registry.
	reg := prometheus.NewRegistry()
	sink := NewPrometheusSink(reg)
	if sink == nil {
		t.Fatal("NewPrometheusSink returned nil")
	}

	// Registering twice against the same registry logs but must not panic.
	_ = NewPrometheusSink(reg)
}

func TestPrometheusSink_SchedulerMetrics(t *testing.T) {
	sink, reg := newTestSink(t)

	sink.TickStarted()
	sink.TickStarted()
	sink.TickCompleted(50*time.Millisecond, 3, nil)
	sink.TickCompleted(10*time.Millisecond, 0, errors.New("boom"))
	sink.TasksPendingUpdate(7)

	if got := getCounterValue(t, reg, "relaycore_scheduler_ticks_total"); got != 2 {
		t.Errorf("ticks_total = %v, want 2", got)
	}
	if got := getCounterValue(t, reg, "relaycore_scheduler_tasks_fired_total"); got != 3 {
		t.Errorf("tasks_fired_total = %v, want 3", got)
	}
	if got := getCounterValue(t, reg, "relaycore_scheduler_tick_errors_total"); got != 1 {
		t.Errorf("tick_errors_total = %v, want 1", got)
	}
	if got := getGaugeValue(t, reg, "relaycore_scheduler_tasks_pending"); got != 7 {
		t.Errorf("tasks_pending = %v, want 7", got)
	}
}

func TestPrometheusSink_TaskLifecycleMetrics(t *testing.T) {
	sink, reg := newTestSink(t)

	sink.TaskScheduled()
	sink.TaskScheduled()
	sink.TaskCancelled(true)
	sink.TaskCancelled(false)
	sink.TaskCancelled(false)

	if got := getCounterValue(t, reg, "relaycore_scheduler_tasks_scheduled_total"); got != 2 {
		t.Errorf("tasks_scheduled_total = %v, want 2", got)
	}
	if got := getCounterVecValue(t, reg, "relaycore_scheduler_tasks_cancelled_total", map[string]string{"found": "true"}); got != 1 {
		t.Errorf("tasks_cancelled_total{found=true} = %v, want 1", got)
	}
	if got := getCounterVecValue(t, reg, "relaycore_scheduler_tasks_cancelled_total", map[string]string{"found": "false"}); got != 2 {
		t.Errorf("tasks_cancelled_total{found=false} = %v, want 2", got)
	}
}

func TestPrometheusSink_PipelineMetrics(t *testing.T) {
	sink, reg := newTestSink(t)

	sink.EnqueueCompleted("slack", nil)
	sink.EnqueueCompleted("slack", nil)
	sink.EnqueueCompleted("scheduler", errors.New("queue down"))
	sink.DedupSuppressed("slack")

	if got := getCounterVecValue(t, reg, "relaycore_pipeline_enqueues_total", map[string]string{"source": "slack", "outcome": "success"}); got != 2 {
		t.Errorf("enqueues_total{slack,success} = %v, want 2", got)
	}
	if got := getCounterVecValue(t, reg, "relaycore_pipeline_enqueues_total", map[string]string{"source": "scheduler", "outcome": "error"}); got != 1 {
		t.Errorf("enqueues_total{scheduler,error} = %v, want 1", got)
	}
	if got := getCounterVecValue(t, reg, "relaycore_pipeline_dedup_suppressed_total", map[string]string{"source": "slack"}); got != 1 {
		t.Errorf("dedup_suppressed_total{slack} = %v, want 1", got)
	}
}

func TestPrometheusSink_DispatchAndReloadMetrics(t *testing.T) {
	sink, reg := newTestSink(t)

	sink.DispatchCompleted(StatusClass2xx, 100*time.Millisecond)
	sink.DispatchCompleted(StatusClass5xx, 200*time.Millisecond)
	sink.ReloadSignalReceived("slack")

	if got := getCounterVecValue(t, reg, "relaycore_dispatch_requests_total", map[string]string{"status_class": "2xx"}); got != 1 {
		t.Errorf("dispatch_requests_total{2xx} = %v, want 1", got)
	}
	if got := getCounterVecValue(t, reg, "relaycore_dispatch_requests_total", map[string]string{"status_class": "5xx"}); got != 1 {
		t.Errorf("dispatch_requests_total{5xx} = %v, want 1", got)
	}
	if got := getCounterVecValue(t, reg, "relaycore_reload_signals_total", map[string]string{"scope": "slack"}); got != 1 {
		t.Errorf("reload_signals_total{slack} = %v, want 1", got)
	}
}

func TestPrometheusSink_LeaderMetrics(t *testing.T) {
	sink, reg := newTestSink(t)

	sink.LeaderStatusChanged(true)
	if got := getGaugeValue(t, reg, "relaycore_leader_status"); got != 1 {
		t.Errorf("leader_status = %v, want 1", got)
	}

	sink.LeaderStatusChanged(false)
	sink.LeaderLost("conn_lost")
	if got := getGaugeValue(t, reg, "relaycore_leader_status"); got != 0 {
		t.Errorf("leader_status = %v, want 0", got)
	}
	if got := getCounterVecValue(t, reg, "relaycore_leader_lost_total", map[string]string{"reason": "conn_lost"}); got != 1 {
		t.Errorf("leader_lost_total{conn_lost} = %v, want 1", got)
	}
}
