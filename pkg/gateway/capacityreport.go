package gateway

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/previewbox/orchestrator/internal/signing"
	"github.com/previewbox/orchestrator/pkg/schema"
)

// RunCapacityReportLoop periodically probes the Schema Manager and pushes
// the result to the Authority, which uses the last known report to gate
// createSession's "globally advertised schema capacity" check without a
// synchronous cross-process call on that hot path.
func RunCapacityReportLoop(ctx context.Context, provisioner *schema.Provisioner, authorityClient *signing.Client, interval time.Duration, logger *slog.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			reportOnce(ctx, provisioner, authorityClient, logger)
		}
	}
}

type capacityReportPayload struct {
	ActiveSchemas int           `json:"activeSchemas"`
	CachedClients int           `json:"cachedClients"`
	HeapMB        int           `json:"heapMB"`
	Uptime        time.Duration `json:"uptime"`
	ReportedAt    time.Time     `json:"reportedAt"`
}

func reportOnce(ctx context.Context, provisioner *schema.Provisioner, authorityClient *signing.Client, logger *slog.Logger) {
	probe, err := provisioner.Probe(ctx)
	if err != nil {
		logger.Error("computing capacity probe", "error", err)
		return
	}

	payload := capacityReportPayload{
		ActiveSchemas: probe.ActiveSchemas,
		CachedClients: probe.CachedClients,
		HeapMB:        probe.HeapMB,
		Uptime:        probe.Uptime,
		ReportedAt:    time.Now(),
	}

	if _, err := authorityClient.Do(ctx, http.MethodPost, "/internal/capacity/report", payload, nil); err != nil {
		logger.Warn("pushing capacity report to authority", "error", err)
	}
}
