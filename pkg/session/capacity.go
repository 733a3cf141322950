package session

import (
	"sync"
	"time"
)

// CapacityReport is the Schema Manager's self-reported utilisation, pushed to
// the Authority periodically by the Gateway so createSession can reject
// against the "globally advertised schema capacity" without a synchronous
// cross-process call on the hot path.
type CapacityReport struct {
	ActiveSchemas int           `json:"activeSchemas"`
	CachedClients int           `json:"cachedClients"`
	HeapMB        int           `json:"heapMB"`
	Uptime        time.Duration `json:"uptime"`
	ReportedAt    time.Time     `json:"reportedAt"`
}

// CapacityTracker holds the last known CapacityReport in memory. It is a
// plain mutex-guarded value, not a cache with expiry: a stale report is
// treated as the best available signal, exactly like the teacher's
// escalation engine treats its last-seen roster snapshot.
type CapacityTracker struct {
	mu     sync.RWMutex
	report CapacityReport
}

// NewCapacityTracker returns a tracker that reports zero utilisation until
// the first report arrives.
func NewCapacityTracker() *CapacityTracker {
	return &CapacityTracker{}
}

// Record stores a freshly received capacity report.
func (c *CapacityTracker) Record(r CapacityReport) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.report = r
}

// Snapshot returns the last recorded report.
func (c *CapacityTracker) Snapshot() CapacityReport {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.report
}

// Exhausted reports whether the last known utilisation is over the given
// limits. A zero report (nothing ever reported) is never exhausted.
func (c *CapacityTracker) Exhausted(maxConcurrentSchemas, heapSoftCeilingMB int) bool {
	r := c.Snapshot()
	if r.ReportedAt.IsZero() {
		return false
	}
	return r.ActiveSchemas >= maxConcurrentSchemas || r.HeapMB > heapSoftCeilingMB
}
