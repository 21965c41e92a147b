// Package metrics records operational metrics for scan runs behind a small,
// backend-agnostic interface.
//
// A global backend defaults to a no-op, so instrumentation is always safe to
// call. Concrete systems (Prometheus Pushgateway, DogStatsD) live in
// subpackages and are installed once from main with SetBackend.
package metrics

import "time"

// Metric names emitted by the helpers below.
const (
	StepTotal           = "rowscan_step_total"
	StepDurationSeconds = "rowscan_step_duration_seconds"
	RowsTotal           = "rowscan_rows_total"
	SpansTotal          = "rowscan_spans_total"
	Keys                = "rowscan_keys"
)

// Labels are string key/value pairs attached to a metric.
type Labels map[string]string

// Backend is the minimal interface for metrics backends.
type Backend interface {
	// IncCounter increments a counter by delta.
	IncCounter(name string, delta float64, labels Labels)
	// ObserveHistogram records a value in a latency/duration style metric.
	ObserveHistogram(name string, value float64, labels Labels)
	// SetGauge records the current value of a level metric.
	SetGauge(name string, value float64, labels Labels)
	// Flush pushes or flushes metrics, if the backend needs it (e.g. Pushgateway).
	Flush() error
}

type nopBackend struct{}

func (nopBackend) IncCounter(string, float64, Labels)       {}
func (nopBackend) ObserveHistogram(string, float64, Labels) {}
func (nopBackend) SetGauge(string, float64, Labels)         {}
func (nopBackend) Flush() error                             { return nil }

var backend Backend = nopBackend{}

// SetBackend installs a concrete backend. Passing nil keeps the existing backend.
func SetBackend(b Backend) {
	if b == nil {
		return
	}
	backend = b
}

// Flush delegates to the current backend.
func Flush() error {
	return backend.Flush()
}

// RecordStep counts one execution of a run step (open, scan, reconcile,
// export) and observes its duration.
func RecordStep(job, step string, err error, d time.Duration) {
	status := "success"
	if err != nil {
		status = "failure"
	}
	lbls := Labels{"job": job, "step": step, "status": status}
	backend.IncCounter(StepTotal, 1, lbls)
	backend.ObserveHistogram(StepDurationSeconds, d.Seconds(), lbls)
}

// RecordRow adds delta to the row counter of the given kind: scanned,
// recovered, parsed, dropped or exported.
func RecordRow(job, kind string, delta int64) {
	if delta <= 0 {
		return
	}
	backend.IncCounter(RowsTotal, float64(delta), Labels{"job": job, "kind": kind})
}

// RecordSpans adds the number of spans claimed by a run.
func RecordSpans(job string, delta int64) {
	if delta <= 0 {
		return
	}
	backend.IncCounter(SpansTotal, float64(delta), Labels{"job": job})
}

// RecordKeys reports the number of distinct keys aggregated by a run.
func RecordKeys(job string, n int) {
	backend.SetGauge(Keys, float64(n), Labels{"job": job})
}
