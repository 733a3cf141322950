package session

import (
	"context"
	"log/slog"
	"time"
)

// RunExpirySweepLoop periodically drops the schemas of expired sessions and
// marks them DROPPED. It is idempotent by construction: each tick only acts
// on rows whose expires_at is already in the past, and dropping an
// already-dropped schema is a no-op on the Gateway side.
func RunExpirySweepLoop(ctx context.Context, svc *Service, interval time.Duration, logger *slog.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sweepExpired(ctx, svc, logger)
		}
	}
}

func sweepExpired(ctx context.Context, svc *Service, logger *slog.Logger) {
	expired, err := svc.store.ListExpired(ctx, time.Now().UTC())
	if err != nil {
		logger.Error("listing expired sessions", "error", err)
		return
	}

	for _, sess := range expired {
		if sess.SchemaName != nil {
			if err := svc.gateway.DropSchema(ctx, *sess.SchemaName); err != nil {
				logger.Error("dropping expired schema", "token", sess.Token, "schema", *sess.SchemaName, "error", err)
				continue
			}
		}
		if err := svc.store.MarkDropped(ctx, sess.Token); err != nil {
			logger.Error("marking expired session dropped", "token", sess.Token, "error", err)
		}
	}
}
