// Package metrics records operational metrics for import runs and aggregate
// queries behind a small pluggable Backend. The default backend is a no-op,
// so instrumentation is always safe to call.
//
// Concrete systems live in subpackages (prompush, datadog) and are installed
// once at process start with SetBackend.
package metrics

import (
	"sync"
	"time"
)

// Metric names shared by every backend.
const (
	StepTotal       = "salesimport_step_total"
	StepDuration    = "salesimport_step_duration_seconds"
	RecordsTotal    = "salesimport_records_total"
	ChunksTotal     = "salesimport_chunks_total"
	ChunkFailsTotal = "salesimport_chunk_failures_total"
)

// Labels are string key/value pairs attached to a metric.
type Labels map[string]string

// Backend is the minimal interface for metrics backends.
type Backend interface {
	// IncCounter increments a counter by delta.
	IncCounter(name string, delta float64, labels Labels)
	// ObserveHistogram records a value in a latency/duration style metric.
	ObserveHistogram(name string, value float64, labels Labels)
	// Flush pushes or flushes metrics, if the backend needs it (e.g. Pushgateway).
	Flush() error
}

type nopBackend struct{}

func (nopBackend) IncCounter(string, float64, Labels)       {}
func (nopBackend) ObserveHistogram(string, float64, Labels) {}
func (nopBackend) Flush() error                             { return nil }

var (
	mu      sync.RWMutex
	backend Backend = nopBackend{}
)

func current() Backend {
	mu.RLock()
	defer mu.RUnlock()
	return backend
}

// SetBackend installs a concrete backend. Passing nil keeps the existing backend.
func SetBackend(b Backend) {
	if b == nil {
		return
	}
	mu.Lock()
	backend = b
	mu.Unlock()
}

// Reset restores the no-op backend.
func Reset() {
	mu.Lock()
	backend = nopBackend{}
	mu.Unlock()
}

// Flush delegates to the current backend.
func Flush() error {
	return current().Flush()
}

// RecordStep counts one execution of a named step (read, import, summary,
// counts) and observes its duration, labeled by outcome.
func RecordStep(job, step string, err error, d time.Duration) {
	status := "success"
	if err != nil {
		status = "failure"
	}
	lbls := Labels{"job": job, "step": step, "status": status}
	b := current()
	b.IncCounter(StepTotal, 1, lbls)
	b.ObserveHistogram(StepDuration, d.Seconds(), lbls)
}

// RecordRow increments the record counter for kind. Kinds used by the
// importer are "total", "inserted", "skipped", "mapping_failed" and
// "insert_failed".
func RecordRow(job, kind string, delta int64) {
	if delta <= 0 {
		return
	}
	current().IncCounter(RecordsTotal, float64(delta), Labels{"job": job, "kind": kind})
}

// RecordChunks counts insert chunks issued for job, and separately those
// whose insert call failed.
func RecordChunks(job string, issued, failed int64) {
	b := current()
	if issued > 0 {
		b.IncCounter(ChunksTotal, float64(issued), Labels{"job": job})
	}
	if failed > 0 {
		b.IncCounter(ChunkFailsTotal, float64(failed), Labels{"job": job})
	}
}
