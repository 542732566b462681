package telemetry

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	once sync.Once

	TasksAdmitted = prometheus.NewCounter(prometheus.CounterOpts{Name: "receiver_tasks_admitted_total", Help: "Submissions accepted past the secret gate"})
	TasksRejected = prometheus.NewCounter(prometheus.CounterOpts{Name: "receiver_tasks_rejected_total", Help: "Submissions rejected for a secret mismatch"})
	JobsInFlight  = prometheus.NewGauge(prometheus.GaugeOpts{Name: "receiver_jobs_inflight", Help: "Background jobs currently holding a concurrency slot"})
	JobsCompleted = prometheus.NewCounter(prometheus.CounterOpts{Name: "receiver_jobs_completed_total", Help: "Background jobs finished without error"})
	JobsFailed    = prometheus.NewCounter(prometheus.CounterOpts{Name: "receiver_jobs_failed_total", Help: "Background jobs that returned an error or panicked"})
	Heartbeats    = prometheus.NewCounter(prometheus.CounterOpts{Name: "receiver_heartbeats_total", Help: "Heartbeat ticks emitted"})
)

// Handler exposes the /metrics HTTP handler with a singleton registry.
func Handler() http.Handler {
	once.Do(func() {
		prometheus.MustRegister(
			TasksAdmitted,
			TasksRejected,
			JobsInFlight,
			JobsCompleted,
			JobsFailed,
			Heartbeats,
		)
	})
	return promhttp.Handler()
}
