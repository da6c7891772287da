package hexazine

import "sync/atomic"

// MetricID identifies one engine counter.
type MetricID uint16

const (
	// MetricLoginSuccess counts successful authentications.
	MetricLoginSuccess MetricID = iota
	// MetricLoginFailure counts rejected authentications.
	MetricLoginFailure
	// MetricTokenIssued counts freshly generated session tokens. Idempotent
	// re-issues of a live token are not counted.
	MetricTokenIssued
	// MetricTokenRevoked counts revoked session tokens.
	MetricTokenRevoked
	// MetricAccountCreated counts created accounts.
	MetricAccountCreated
	// MetricAccountDeleted counts deleted accounts.
	MetricAccountDeleted
	// MetricUsernameChanged counts username changes.
	MetricUsernameChanged
	// MetricPasswordChanged counts password changes.
	MetricPasswordChanged
	// MetricCredentialUpgraded counts migrate-on-read credential rewrites.
	MetricCredentialUpgraded
	// MetricEmailVerifyRequested counts requested email verifications.
	MetricEmailVerifyRequested
	// MetricEmailChanged counts confirmed email changes and additions.
	MetricEmailChanged
	// MetricEmailReverted counts applied revert codes.
	MetricEmailReverted
	// MetricEmailCodeExpired counts change codes purged by lazy expiry.
	MetricEmailCodeExpired
	// MetricProjectCreated counts created projects.
	MetricProjectCreated
	// MetricProjectDeleted counts deleted projects.
	MetricProjectDeleted
	// MetricProjectPublished counts published projects.
	MetricProjectPublished
	// MetricPersistFailure counts failed whole-document persists.
	MetricPersistFailure

	metricCount
)

// Metrics is a fixed set of atomic counters. All methods are safe for
// concurrent use and free when metrics are disabled.
type Metrics struct {
	enabled  bool
	counters [metricCount]atomic.Uint64
}

func newMetrics(cfg MetricsConfig) *Metrics {
	return &Metrics{enabled: cfg.Enabled}
}

// Inc increments one counter.
func (m *Metrics) Inc(id MetricID) {
	if m == nil || !m.enabled || id >= metricCount {
		return
	}
	m.counters[id].Add(1)
}

// MetricsSnapshot is a point-in-time copy of every counter.
type MetricsSnapshot struct {
	Counters map[MetricID]uint64
}

// Snapshot returns a copy of all counters.
func (m *Metrics) Snapshot() MetricsSnapshot {
	snap := MetricsSnapshot{
		Counters: make(map[MetricID]uint64, metricCount),
	}
	if m == nil || !m.enabled {
		return snap
	}
	for id := MetricID(0); id < metricCount; id++ {
		snap.Counters[id] = m.counters[id].Load()
	}
	return snap
}
