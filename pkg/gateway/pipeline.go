package gateway

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/previewbox/orchestrator/internal/httpapi"
	"github.com/previewbox/orchestrator/pkg/sandbox"
	"github.com/sony/gobreaker/v2"
)

// SessionHeader is the header carrying the preview session token (spec §6
// "Tenant surface").
const SessionHeader = "X-Preview-Session"

// readyStatus mirrors session.StatusReady without importing pkg/session:
// the Gateway only ever sees the Authority's JSON projection, never the row
// itself, so the two processes intentionally do not share that type.
const readyStatus = "READY"

// ClientBinder resolves a pooled database client pinned to a schema (spec
// §4.3 step 4). Implemented by *schema.Provisioner in the composition root.
type ClientBinder interface {
	GetClientForSchema(ctx context.Context, schemaName string) (*pgxpool.Pool, error)
}

// Pipeline implements the Tenant Gateway's request pipeline (spec §4.3).
type Pipeline struct {
	sessionCache *SessionCache
	authority    AuthorityResolveClient
	breaker      *gobreaker.CircuitBreaker[SessionCacheEntry]
	binder       ClientBinder
	routes       RouteMap
	mockEmail    *sandbox.MockEmailProvider
	logger       *slog.Logger
}

// NewPipeline wires every collaborator the request pipeline needs.
func NewPipeline(cache *SessionCache, authority AuthorityResolveClient, breaker *gobreaker.CircuitBreaker[SessionCacheEntry], binder ClientBinder, routes RouteMap, mockEmail *sandbox.MockEmailProvider, logger *slog.Logger) *Pipeline {
	return &Pipeline{
		sessionCache: cache,
		authority:    authority,
		breaker:      breaker,
		binder:       binder,
		routes:       routes,
		mockEmail:    mockEmail,
		logger:       logger,
	}
}

type schemaClientContextKey struct{}

// SchemaClientFromContext retrieves the per-schema pool attached by Middleware.
func SchemaClientFromContext(ctx context.Context) (*pgxpool.Pool, bool) {
	pool, ok := ctx.Value(schemaClientContextKey{}).(*pgxpool.Pool)
	return pool, ok
}

// Middleware implements the full tenant pipeline: bypass, session
// resolution, readiness gate, client binding, sandbox injection, feature
// gate. It must be mounted ahead of every tenant route.
func (p *Pipeline) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Step 1: bypass.
		if r.URL.Path == "/health" || strings.HasPrefix(r.URL.Path, "/internal/") {
			next.ServeHTTP(w, r)
			return
		}

		// Step 2: session resolution.
		token := r.Header.Get(SessionHeader)
		if token == "" {
			httpapi.Fail(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing "+SessionHeader+" header")
			return
		}

		entry, ok := p.sessionCache.Get(token)
		if !ok {
			resolved, err := ResolveThroughBreaker(r.Context(), p.breaker, p.authority, token)
			switch {
			case errors.Is(err, ErrAuthorityUnavailable):
				httpapi.Fail(w, http.StatusServiceUnavailable, "AUTHORITY_UNAVAILABLE", "authority is temporarily unavailable")
				return
			case errors.Is(err, ErrAuthorityNotFound):
				httpapi.Fail(w, http.StatusUnauthorized, "UNAUTHORIZED", "unknown session")
				return
			case errors.Is(err, ErrAuthorityExpired):
				httpapi.Fail(w, http.StatusGone, "EXPIRED", "session has expired")
				return
			case err != nil:
				p.logger.Error("resolving session", "error", err)
				httpapi.Fail(w, http.StatusServiceUnavailable, "AUTHORITY_UNAVAILABLE", "failed to resolve session")
				return
			}
			p.sessionCache.Put(token, resolved)
			entry = resolved
		}

		// Step 3: readiness gate.
		if entry.SchemaStatus != readyStatus {
			httpapi.Fail(w, http.StatusBadRequest, "SCHEMA_NOT_READY", "preview schema is not ready")
			return
		}

		// Step 4: client binding.
		if entry.SchemaName == nil {
			httpapi.Fail(w, http.StatusInternalServerError, "INTERNAL", "ready session missing schema name")
			return
		}
		pool, err := p.binder.GetClientForSchema(r.Context(), *entry.SchemaName)
		if err != nil {
			p.logger.Error("binding schema client", "schema", *entry.SchemaName, "error", err)
			httpapi.Fail(w, http.StatusInternalServerError, "INTERNAL", "failed to bind schema client")
			return
		}

		// Step 5: sandbox stubs.
		ctx := context.WithValue(r.Context(), schemaClientContextKey{}, pool)
		ctx = sandbox.NewContext(ctx, sandbox.NewMockStubs(p.mockEmail))

		// Step 6: feature gate.
		if required, found := p.routes.RequiredFeature(r.URL.Path); found {
			if !Admits(entry.Features, required) {
				httpapi.Fail(w, http.StatusNotFound, "NOT_FOUND", "not found")
				return
			}
		}

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// InvalidateSession removes token from the session cache; called from the
// Authority-facing internal handler on expiry or manual termination.
func (p *Pipeline) InvalidateSession(token string) {
	p.sessionCache.Invalidate(token)
}
