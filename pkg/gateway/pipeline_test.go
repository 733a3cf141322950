package gateway

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/previewbox/orchestrator/pkg/sandbox"
)

type fakeAuthorityClient struct {
	entry SessionCacheEntry
	err   error
}

func (f *fakeAuthorityClient) ResolveSession(ctx context.Context, token string) (SessionCacheEntry, error) {
	return f.entry, f.err
}

type fakeBinder struct{}

func (fakeBinder) GetClientForSchema(ctx context.Context, schemaName string) (*pgxpool.Pool, error) {
	return &pgxpool.Pool{}, nil
}

func newTestPipeline(t *testing.T, authority AuthorityResolveClient, routes RouteMap) *Pipeline {
	t.Helper()
	breaker := NewResolveBreaker(5, 30*time.Second)
	cache := NewSessionCache(60*time.Second, 100)
	logger := slog.New(slog.NewTextHandler(discardWriter{}, nil))
	return NewPipeline(cache, authority, breaker, fakeBinder{}, routes, sandbox.NewMockEmailProvider(nil, time.Hour), logger)
}

type discardWriter struct{}

func (discardWriter) Write(p []byte) (int, error) { return len(p), nil }

func TestPipelineBypassesHealthAndInternal(t *testing.T) {
	called := false
	handler := newTestPipeline(t, &fakeAuthorityClient{err: errors.New("should not be called")}, nil).
		Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			called = true
			w.WriteHeader(http.StatusOK)
		}))

	for _, path := range []string{"/health", "/internal/schemas/provision"} {
		called = false
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if !called {
			t.Errorf("path %q did not bypass the pipeline", path)
		}
		if rec.Code != http.StatusOK {
			t.Errorf("path %q status = %d, want 200", path, rec.Code)
		}
	}
}

func TestPipelineMissingTokenRejected(t *testing.T) {
	handler := newTestPipeline(t, &fakeAuthorityClient{}, nil).
		Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			t.Fatal("handler should not be reached without a session token")
		}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/ecommerce/products", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

func TestPipelineFeatureGateDeniesWithoutLeaking(t *testing.T) {
	schemaName := "preview_abc123"
	authority := &fakeAuthorityClient{entry: SessionCacheEntry{
		SchemaName:   &schemaName,
		Features:     []string{"ecommerce.products"},
		SchemaStatus: readyStatus,
		ExpiresAt:    time.Now().Add(time.Hour),
	}}
	routes := RouteMap{"/api/v1/booking/services": "booking.services"}

	handler := newTestPipeline(t, authority, routes).
		Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			t.Fatal("handler should not be reached when the feature gate denies")
		}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/booking/services", nil)
	req.Header.Set(SessionHeader, "tok-1")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404 (feature gate must never leak via 403)", rec.Code)
	}
}

func TestPipelineAdmitsCoreRoutes(t *testing.T) {
	schemaName := "preview_abc123"
	authority := &fakeAuthorityClient{entry: SessionCacheEntry{
		SchemaName:   &schemaName,
		Features:     nil,
		SchemaStatus: readyStatus,
		ExpiresAt:    time.Now().Add(time.Hour),
	}}
	called := false
	handler := newTestPipeline(t, authority, RouteMap{"/api/v1/booking/services": "booking.services"}).
		Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			called = true
			w.WriteHeader(http.StatusOK)
		}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/core/ping", nil)
	req.Header.Set(SessionHeader, "tok-1")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if !called || rec.Code != http.StatusOK {
		t.Errorf("core route was not admitted: called=%v status=%d", called, rec.Code)
	}
}

func TestPipelineSchemaNotReadyRejected(t *testing.T) {
	authority := &fakeAuthorityClient{entry: SessionCacheEntry{
		SchemaStatus: "PROVISIONING",
		ExpiresAt:    time.Now().Add(time.Hour),
	}}
	handler := newTestPipeline(t, authority, nil).
		Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			t.Fatal("handler should not be reached while the schema is not ready")
		}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/core/ping", nil)
	req.Header.Set(SessionHeader, "tok-1")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400 SchemaNotReady", rec.Code)
	}
}
