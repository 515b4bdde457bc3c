package phonauth

import (
	"sync/atomic"
	"time"
)

// MetricID identifies a counter in [Metrics].
type MetricID uint16

const (
	MetricSignupSuccess MetricID = iota
	MetricSignupDuplicate
	MetricLoginSuccess
	MetricLoginFailure
	MetricFederatedLoginSuccess
	MetricFederatedLoginRejected
	MetricFederatedUserCreated
	MetricRefreshSuccess
	MetricRefreshFailure
	MetricLogout
	MetricLogoutMissingSession
	MetricPasswordChangeSuccess
	MetricPasswordChangeInvalidOld
	MetricPasswordRehashed
	MetricSessionUpserted
	MetricProfileUpdated
	MetricTokenGranted
	MetricActivityTouched
	MetricAuthenticateFailure
	MetricRateLimitHit
	MetricWelcomeQueued
	// MetricAuthenticateLatency is the only metric with a histogram.
	MetricAuthenticateLatency
	metricIDCount
)

// MetricIDCount is the number of defined metrics.
const MetricIDCount = int(metricIDCount)

const (
	histBucketCount = 8
	cacheLineSize   = 64
)

// HistogramBounds are the upper bounds of the latency buckets. The last
// bucket is unbounded.
var HistogramBounds = [histBucketCount - 1]time.Duration{
	5 * time.Millisecond,
	10 * time.Millisecond,
	25 * time.Millisecond,
	50 * time.Millisecond,
	100 * time.Millisecond,
	250 * time.Millisecond,
	500 * time.Millisecond,
}

type paddedCounter struct {
	atomic.Uint64
	_ [cacheLineSize - 8]byte
}

// Metrics holds lock-free counters and the Authenticate latency histogram.
// A nil or disabled Metrics ignores every write.
type Metrics struct {
	enabled       bool
	enableLatency bool
	counters      [metricIDCount]paddedCounter
	latency       [histBucketCount]atomic.Uint64
}

// MetricsSnapshot is a point-in-time copy of all metrics.
type MetricsSnapshot struct {
	Counters   map[MetricID]uint64
	Histograms map[MetricID][]uint64
}

// NewMetrics creates a Metrics configured by cfg.
func NewMetrics(cfg MetricsConfig) *Metrics {
	return &Metrics{
		enabled:       cfg.Enabled,
		enableLatency: cfg.Enabled && cfg.EnableLatencyHistograms,
	}
}

func (m *Metrics) Enabled() bool {
	return m != nil && m.enabled
}

func (m *Metrics) LatencyEnabled() bool {
	return m != nil && m.enableLatency
}

// Inc adds one to the counter for id.
func (m *Metrics) Inc(id MetricID) {
	if !m.Enabled() || id >= metricIDCount {
		return
	}
	m.counters[id].Add(1)
}

// Observe records d when id is MetricAuthenticateLatency; other ids are
// ignored.
func (m *Metrics) Observe(id MetricID, d time.Duration) {
	if !m.LatencyEnabled() || id != MetricAuthenticateLatency {
		return
	}
	m.latency[bucketIndex(d)].Add(1)
}

func (m *Metrics) Value(id MetricID) uint64 {
	if m == nil || id >= metricIDCount {
		return 0
	}
	return m.counters[id].Load()
}

// Snapshot copies every counter and, when latency is enabled, the
// histogram buckets.
func (m *Metrics) Snapshot() MetricsSnapshot {
	s := MetricsSnapshot{
		Counters:   map[MetricID]uint64{},
		Histograms: map[MetricID][]uint64{},
	}
	if !m.Enabled() {
		return s
	}

	for id := range metricIDCount {
		s.Counters[id] = m.counters[id].Load()
	}
	if m.enableLatency {
		buckets := make([]uint64, histBucketCount)
		for i := range buckets {
			buckets[i] = m.latency[i].Load()
		}
		s.Histograms[MetricAuthenticateLatency] = buckets
	}
	return s
}

func bucketIndex(d time.Duration) int {
	for i, bound := range HistogramBounds {
		if d <= bound {
			return i
		}
	}
	return histBucketCount - 1
}
