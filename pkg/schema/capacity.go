package schema

import (
	"context"
	"runtime"
	"time"
)

// Probe computes the current utilisation snapshot used to gate new
// provisioning (spec §4.2 "Capacity probe", glossary).
func (p *Provisioner) Probe(ctx context.Context) (CapacityProbe, error) {
	active, err := p.countActiveSchemas(ctx)
	if err != nil {
		// Fall back to the cache count — a probe failure must not wedge
		// provisioning entirely, per spec: "cache count is only a fallback
		// if the probe fails".
		active = p.cache.Len()
	}

	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)
	heapMB := int(mem.HeapAlloc / (1024 * 1024))

	return CapacityProbe{
		ActiveSchemas: active,
		CachedClients: p.cache.Len(),
		HeapMB:        heapMB,
		Uptime:        time.Since(p.startedAt),
	}, nil
}

// Exhausted reports whether a probe result is over the configured limits.
func (p CapacityProbe) Exhausted(maxConcurrentSchemas, heapSoftCeilingMB int) bool {
	return p.ActiveSchemas >= maxConcurrentSchemas || p.HeapMB > heapSoftCeilingMB
}
