package metrics

import (
	"log"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusSink implements Sink using the Prometheus client library.
// All methods are non-blocking and fire-and-forget.
// Registration errors are logged but never propagated.
type PrometheusSink struct {
	// Scheduler metrics
	ticksTotal      prometheus.Counter
	tickErrorsTotal prometheus.Counter
	tasksFiredTotal prometheus.Counter
	tickDuration    prometheus.Histogram
	tasksPending    prometheus.Gauge
	tasksScheduled  prometheus.Counter
	tasksCancelled  *prometheus.CounterVec

	// Pipeline metrics
	enqueuesTotal        *prometheus.CounterVec
	dedupSuppressedTotal *prometheus.CounterVec

	// Dispatch client metrics
	dispatchTotal    *prometheus.CounterVec
	dispatchDuration prometheus.Histogram

	// Reload metrics
	reloadSignalsTotal *prometheus.CounterVec

	// Leader election metrics
	leaderStatus    prometheus.Gauge
	leaderLostTotal *prometheus.CounterVec
}

// NewPrometheusSink creates a new Prometheus metrics sink.
// Metrics that fail to register are logged and left unregistered; the sink
// stays functional either way.
func NewPrometheusSink(reg prometheus.Registerer) *PrometheusSink {
	s := &PrometheusSink{}
	s.initSchedulerMetrics(reg)
	s.initPipelineMetrics(reg)
	s.initDispatchMetrics(reg)
	s.initReloadMetrics(reg)
	s.initLeaderMetrics(reg)
	return s
}

func (s *PrometheusSink) initSchedulerMetrics(reg prometheus.Registerer) {
	s.ticksTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "relaycore_scheduler_ticks_total",
		Help: "Total number of scheduler ticks processed.",
	})
	s.tickErrorsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "relaycore_scheduler_tick_errors_total",
		Help: "Total number of scheduler tick errors.",
	})
	s.tasksFiredTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "relaycore_scheduler_tasks_fired_total",
		Help: "Total number of due tasks fired.",
	})
	s.tickDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "relaycore_scheduler_tick_duration_seconds",
		Help:    "Duration of each scheduler tick in seconds.",
		Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10},
	})
	s.tasksPending = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "relaycore_scheduler_tasks_pending",
		Help: "Number of tasks currently held in the timeline.",
	})
	s.tasksScheduled = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "relaycore_scheduler_tasks_scheduled_total",
		Help: "Total number of tasks accepted by Schedule.",
	})
	s.tasksCancelled = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "relaycore_scheduler_tasks_cancelled_total",
		Help: "Total number of Cancel calls by result.",
	}, []string{"found"})

	s.register(reg, s.ticksTotal, "relaycore_scheduler_ticks_total")
	s.register(reg, s.tickErrorsTotal, "relaycore_scheduler_tick_errors_total")
	s.register(reg, s.tasksFiredTotal, "relaycore_scheduler_tasks_fired_total")
	s.register(reg, s.tickDuration, "relaycore_scheduler_tick_duration_seconds")
	s.register(reg, s.tasksPending, "relaycore_scheduler_tasks_pending")
	s.register(reg, s.tasksScheduled, "relaycore_scheduler_tasks_scheduled_total")
	s.register(reg, s.tasksCancelled, "relaycore_scheduler_tasks_cancelled_total")
}

func (s *PrometheusSink) initPipelineMetrics(reg prometheus.Registerer) {
	s.enqueuesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "relaycore_pipeline_enqueues_total",
		Help: "Total number of enqueue attempts by source and outcome.",
	}, []string{"source", "outcome"})
	s.dedupSuppressedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "relaycore_pipeline_dedup_suppressed_total",
		Help: "Total number of enqueues suppressed as duplicates.",
	}, []string{"source"})

	s.register(reg, s.enqueuesTotal, "relaycore_pipeline_enqueues_total")
	s.register(reg, s.dedupSuppressedTotal, "relaycore_pipeline_dedup_suppressed_total")
}

func (s *PrometheusSink) initDispatchMetrics(reg prometheus.Registerer) {
	s.dispatchTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "relaycore_dispatch_requests_total",
		Help: "Total number of dispatch client requests by status class.",
	}, []string{"status_class"})
	s.dispatchDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "relaycore_dispatch_request_duration_seconds",
		Help:    "Dispatch client request latency in seconds.",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
	})

	s.register(reg, s.dispatchTotal, "relaycore_dispatch_requests_total")
	s.register(reg, s.dispatchDuration, "relaycore_dispatch_request_duration_seconds")
}

func (s *PrometheusSink) initReloadMetrics(reg prometheus.Registerer) {
	s.reloadSignalsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "relaycore_reload_signals_total",
		Help: "Total number of reload signals received by scope.",
	}, []string{"scope"})

	s.register(reg, s.reloadSignalsTotal, "relaycore_reload_signals_total")
}

func (s *PrometheusSink) initLeaderMetrics(reg prometheus.Registerer) {
	s.leaderStatus = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "relaycore_leader_status",
		Help: "1 if this instance currently holds the scheduler lease, else 0.",
	})
	s.leaderLostTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "relaycore_leader_lost_total",
		Help: "Total number of leadership losses by reason.",
	}, []string{"reason"})

	s.register(reg, s.leaderStatus, "relaycore_leader_status")
	s.register(reg, s.leaderLostTotal, "relaycore_leader_lost_total")
}

// register attempts to register a collector, logging any errors without
// propagating them.
func (s *PrometheusSink) register(reg prometheus.Registerer, c prometheus.Collector, name string) {
	if err := reg.Register(c); err != nil {
		log.Printf("metrics: failed to register %s: %v", name, err)
	}
}

func (s *PrometheusSink) TickStarted() {
	s.ticksTotal.Inc()
}

func (s *PrometheusSink) TickCompleted(duration time.Duration, fired int, err error) {
	s.tickDuration.Observe(duration.Seconds())
	s.tasksFiredTotal.Add(float64(fired))
	if err != nil {
		s.tickErrorsTotal.Inc()
	}
}

func (s *PrometheusSink) TasksPendingUpdate(count int) {
	s.tasksPending.Set(float64(count))
}

func (s *PrometheusSink) TaskScheduled() {
	s.tasksScheduled.Inc()
}

func (s *PrometheusSink) TaskCancelled(found bool) {
	s.tasksCancelled.WithLabelValues(boolLabel(found)).Inc()
}

func (s *PrometheusSink) EnqueueCompleted(source string, err error) {
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	s.enqueuesTotal.WithLabelValues(source, outcome).Inc()
}

func (s *PrometheusSink) DedupSuppressed(source string) {
	s.dedupSuppressedTotal.WithLabelValues(source).Inc()
}

func (s *PrometheusSink) DispatchCompleted(statusClass string, d time.Duration) {
	s.dispatchTotal.WithLabelValues(statusClass).Inc()
	s.dispatchDuration.Observe(d.Seconds())
}

func (s *PrometheusSink) ReloadSignalReceived(scope string) {
	s.reloadSignalsTotal.WithLabelValues(scope).Inc()
}

func (s *PrometheusSink) LeaderStatusChanged(isLeader bool) {
	if isLeader {
		s.leaderStatus.Set(1)
	} else {
		s.leaderStatus.Set(0)
	}
}

func (s *PrometheusSink) LeaderLost(reason string) {
	s.leaderLostTotal.WithLabelValues(reason).Inc()
}

func boolLabel(b bool) string {
	if b {
		return "true"
	}
	return "false"
}

var _ Sink = (*PrometheusSink)(nil)
