// Package metrics instruments the remote-call engine with the same
// prometheus-plus-gohistogram pairing a long-running pool manager would
// use for its own instance stats: Prometheus series for a live scrape
// target, and a streaming histogram for a human-readable summary when
// nobody is scraping.
package metrics

import (
	"fmt"
	"sync"
	"time"

	"github.com/VividCortex/gohistogram"
	"github.com/prometheus/client_golang/prometheus"
)

// Stats tracks remote-call outcomes and latency, both as Prometheus series
// (for a scrape target a long-lived driver could expose) and as a
// streaming histogram kept in memory for a human-readable end-of-run
// summary, since a one-shot CLI invocation has nobody to scrape it.
type Stats struct {
	calls    prometheus.Counter
	failures prometheus.Counter
	latency  prometheus.Histogram

	mu      sync.Mutex
	rolling *gohistogram.NumericHistogram
}

// New creates a Stats instance. If reg is non-nil, the Prometheus series
// are registered against it; a nil registry is valid and simply means the
// caller isn't serving /metrics this run.
func New(reg prometheus.Registerer) *Stats {
	s := &Stats{
		calls: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ptrinject_remote_calls_total",
			Help: "Number of remote_call invocations attempted.",
		}),
		failures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ptrinject_remote_call_failures_total",
			Help: "Number of remote_call invocations that returned an error.",
		}),
		latency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "ptrinject_remote_call_latency_ms",
			Help:    "Wall-clock latency of a remote_call, in milliseconds.",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 16),
		}),
		rolling: gohistogram.NewHistogram(20),
	}
	if reg != nil {
		reg.MustRegister(s.calls, s.failures, s.latency)
	}
	return s
}

// ObserveCall records one remote_call's outcome and duration.
func (s *Stats) ObserveCall(d time.Duration, ok bool) {
	ms := float64(d.Microseconds()) / 1000
	s.calls.Inc()
	if !ok {
		s.failures.Inc()
	}
	s.latency.Observe(ms)

	s.mu.Lock()
	s.rolling.Add(ms)
	s.mu.Unlock()
}

// Summary renders the rolling latency histogram for a one-line end-of-run
// report; it is informational, matching §7's "not part of any
// machine-readable contract" framing for progress output.
func (s *Stats) Summary() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fmt.Sprintf("remote calls: median=%.3fms mean=%.3fms variance=%.3f",
		s.rolling.Quantile(0.5), s.rolling.Mean(), s.rolling.Variance())
}
