package memoauth

import (
	"sync/atomic"
	"time"
)

// MetricID names one counter (or histogram) kept by Metrics.
type MetricID uint16

const (
	MetricSignupSuccess MetricID = iota
	MetricSignupDuplicate
	MetricSignupRejected
	MetricLoginSuccess
	MetricLoginFailure
	MetricReissueSuccess
	MetricReissueFailure
	MetricReissueMismatch
	MetricLogout
	MetricLogoutNotFound
	MetricTokenBlacklisted
	MetricAuthenticateSuccess
	MetricAuthenticateFailure
	MetricStoreUnavailable
	// MetricAuthenticateLatency is the only histogram.
	MetricAuthenticateLatency
	metricIDCount
)

const cacheLineSize = 64

// latencyBounds are the inclusive upper bounds of every latency bucket but
// the last, which is unbounded.
var latencyBounds = [...]time.Duration{
	5 * time.Millisecond,
	10 * time.Millisecond,
	25 * time.Millisecond,
	50 * time.Millisecond,
	100 * time.Millisecond,
	250 * time.Millisecond,
	500 * time.Millisecond,
}

const histBucketCount = len(latencyBounds) + 1

// Counters are padded to a cache line so hot counters on different cores do
// not contend.
type paddedCounter struct {
	value uint64
	_     [cacheLineSize - 8]byte
}

// Metrics is a fixed set of lock-free counters plus the authenticate latency
// histogram. A nil *Metrics is valid and records nothing.
type Metrics struct {
	enabled       bool
	enableLatency bool
	counters      [metricIDCount]paddedCounter

	latency    [histBucketCount]uint64
	latencySum atomic.Int64
}

// MetricsSnapshot is a point-in-time copy of every counter. Histogram buckets
// are non-cumulative with upper bounds 5, 10, 25, 50, 100, 250, 500ms and +Inf.
// HistogramSums holds the total observed duration per histogram.
type MetricsSnapshot struct {
	Counters      map[MetricID]uint64
	Histograms    map[MetricID][]uint64
	HistogramSums map[MetricID]time.Duration
}

func NewMetrics(cfg MetricsConfig) *Metrics {
	return &Metrics{
		enabled:       cfg.Enabled,
		enableLatency: cfg.Enabled && cfg.EnableLatencyHistograms,
	}
}

func (m *Metrics) Enabled() bool {
	return m != nil && m.enabled
}

func (m *Metrics) Inc(id MetricID) {
	if m == nil || !m.enabled || id >= MetricAuthenticateLatency {
		return
	}
	atomic.AddUint64(&m.counters[id].value, 1)
}

// Observe records d for MetricAuthenticateLatency. Other ids are ignored.
func (m *Metrics) Observe(id MetricID, d time.Duration) {
	if m == nil || !m.enableLatency || id != MetricAuthenticateLatency {
		return
	}
	atomic.AddUint64(&m.latency[bucketIndex(d)], 1)
	m.latencySum.Add(int64(d))
}

func (m *Metrics) Value(id MetricID) uint64 {
	if m == nil || id >= MetricAuthenticateLatency {
		return 0
	}
	return atomic.LoadUint64(&m.counters[id].value)
}

// Snapshot copies all counters. Disabled metrics yield empty maps.
func (m *Metrics) Snapshot() MetricsSnapshot {
	s := MetricsSnapshot{
		Counters:      map[MetricID]uint64{},
		Histograms:    map[MetricID][]uint64{},
		HistogramSums: map[MetricID]time.Duration{},
	}
	if m == nil || !m.enabled {
		return s
	}

	for id := MetricID(0); id < MetricAuthenticateLatency; id++ {
		s.Counters[id] = atomic.LoadUint64(&m.counters[id].value)
	}
	if m.enableLatency {
		buckets := make([]uint64, histBucketCount)
		for i := range buckets {
			buckets[i] = atomic.LoadUint64(&m.latency[i])
		}
		s.Histograms[MetricAuthenticateLatency] = buckets
		s.HistogramSums[MetricAuthenticateLatency] = time.Duration(m.latencySum.Load())
	}
	return s
}

func bucketIndex(d time.Duration) int {
	for i, bound := range latencyBounds {
		if d <= bound {
			return i
		}
	}
	return len(latencyBounds)
}
