package session

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/previewbox/orchestrator/pkg/schema"
)

// Policy carries the capacity and TTL knobs createSession/heartbeat enforce.
type Policy struct {
	MaxSessionsPerIp      int
	MaxConcurrentSchemas  int
	HeapSoftCeilingMB     int
	PreviewTTL            time.Duration
}

// Service implements the Session Authority's configurator and
// gateway-internal operations (spec §4.1).
type Service struct {
	store    *Store
	gateway  GatewayClient
	capacity *CapacityTracker
	policy   Policy
	logger   *slog.Logger
}

// NewService wires the store, the Gateway client used to trigger
// provisioning/dropping, the capacity tracker, and policy limits.
func NewService(store *Store, gateway GatewayClient, capacity *CapacityTracker, policy Policy, logger *slog.Logger) *Service {
	return &Service{store: store, gateway: gateway, capacity: capacity, policy: policy, logger: logger}
}

// CreateSession enforces per-IP and global capacity, inserts a PENDING
// session row, and kicks off asynchronous provisioning. It returns as soon
// as the row is durable — provisioning completes in the background and is
// observed by the caller via getSession/resolveSession.
func (s *Service) CreateSession(ctx context.Context, params CreateParams) (*Session, error) {
	if err := validateFeatures(params.Features); err != nil {
		return nil, err
	}

	count, err := s.store.CountNonTerminalForIP(ctx, params.OriginIP)
	if err != nil {
		return nil, err
	}
	if count >= s.policy.MaxSessionsPerIp {
		return nil, ErrTooManySessionsForIp
	}

	if s.capacity.Exhausted(s.policy.MaxConcurrentSchemas, s.policy.HeapSoftCeilingMB) {
		return nil, ErrCapacityExhausted
	}

	token, err := newToken()
	if err != nil {
		return nil, fmt.Errorf("generating session token: %w", err)
	}

	expiresAt := time.Now().UTC().Add(s.policy.PreviewTTL)
	sess, err := s.store.Create(ctx, token, params, expiresAt)
	if err != nil {
		return nil, err
	}

	go s.provisionInBackground(context.Background(), sess.Token, params.Features, params.Tier)

	return sess, nil
}

// provisionInBackground runs the claim-then-provision sequence with its own
// detached context, since the HTTP request that triggered CreateSession may
// have already returned by the time this completes.
func (s *Service) provisionInBackground(ctx context.Context, token string, features []string, tier string) {
	if err := s.EnsureProvisioned(ctx, token, features, tier); err != nil && !errors.Is(err, ErrAlreadyClaimed) {
		s.logger.Error("background provisioning failed", "token", token, "error", err)
	}
}

// EnsureProvisioned performs the claim (CAS markProvisioning), calls the
// Gateway to provision the schema, and marks the session READY or FAILED.
// It is idempotent under concurrent invocation: only the caller that wins
// the CAS claim performs the DDL; every other caller observes
// ErrAlreadyClaimed and returns immediately.
func (s *Service) EnsureProvisioned(ctx context.Context, token string, features []string, tier string) error {
	if err := s.store.MarkProvisioning(ctx, token); err != nil {
		return err
	}

	schemaName, err := s.gateway.ProvisionSchema(ctx, token, features, tier)
	if err != nil {
		s.logger.Error("schema provisioning failed", "token", token, "error", err)
		if markErr := s.store.MarkFailed(ctx, token); markErr != nil {
			s.logger.Error("marking session failed after provision error", "token", token, "error", markErr)
		}
		return fmt.Errorf("provisioning schema: %w", err)
	}

	if err := s.store.MarkReady(ctx, token, schemaName); err != nil {
		return fmt.Errorf("marking session ready: %w", err)
	}
	return nil
}

// GetSession returns the full session view to the configurator, rejecting
// expired-but-not-yet-swept rows.
func (s *Service) GetSession(ctx context.Context, token string) (*Session, error) {
	sess, err := s.store.Get(ctx, token)
	if err != nil {
		return nil, err
	}
	if sess.SchemaStatus != StatusDropped && time.Now().UTC().After(sess.ExpiresAt) {
		return nil, ErrExpired
	}
	return sess, nil
}

// ResolveSession returns the Gateway-facing projection of a session. A
// DROPPED session is reported as ErrExpired.
func (s *Service) ResolveSession(ctx context.Context, token string) (*ResolvedSession, error) {
	sess, err := s.GetSession(ctx, token)
	if err != nil {
		return nil, err
	}
	if sess.SchemaStatus == StatusDropped {
		return nil, ErrExpired
	}
	return &ResolvedSession{
		Token:        sess.Token,
		SchemaName:   sess.SchemaName,
		Features:     sess.Features,
		Tier:         sess.Tier,
		SchemaStatus: sess.SchemaStatus,
		ExpiresAt:    sess.ExpiresAt,
	}, nil
}

// Heartbeat extends a session's expiry by PreviewTTL from now.
func (s *Service) Heartbeat(ctx context.Context, token string) (time.Time, error) {
	return s.store.Heartbeat(ctx, token, s.policy.PreviewTTL)
}

// ListSessionsForIp returns every session recorded for an origin IP.
func (s *Service) ListSessionsForIp(ctx context.Context, ip string) ([]*Session, error) {
	return s.store.ListForIP(ctx, ip)
}

// MarkProvisioning exposes the raw CAS claim for callers (e.g. the Gateway,
// via the gateway-internal HTTP surface) that need to claim a session
// without driving the rest of EnsureProvisioned.
func (s *Service) MarkProvisioning(ctx context.Context, token string) error {
	return s.store.MarkProvisioning(ctx, token)
}

// MarkReady exposes the raw CAS transition to READY.
func (s *Service) MarkReady(ctx context.Context, token, schemaName string) error {
	return s.store.MarkReady(ctx, token, schemaName)
}

// MarkFailed exposes the raw CAS transition to FAILED.
func (s *Service) MarkFailed(ctx context.Context, token string) error {
	return s.store.MarkFailed(ctx, token)
}

// ActiveSchemaNames returns the set of schema names expected to physically
// exist, keyed by the deterministic name derivation so the Schema Manager's
// orphan sweep can join against it (spec §4.2 orphanSweep, open question
// "prefer the Authority-join form once the API is available").
func (s *Service) ActiveSchemaNames(ctx context.Context) (map[string]bool, error) {
	tokens, err := s.store.TokensWithPhysicalSchema(ctx)
	if err != nil {
		return nil, err
	}
	names := make(map[string]bool, len(tokens))
	for _, tok := range tokens {
		names[schema.ToSchemaName(tok)] = true
	}
	return names, nil
}

// RecordCapacity stores a freshly pushed capacity report from the Gateway.
func (s *Service) RecordCapacity(r CapacityReport) {
	s.capacity.Record(r)
}

// CapacitySnapshot returns the last known capacity report.
func (s *Service) CapacitySnapshot() CapacityReport {
	return s.capacity.Snapshot()
}

func validateFeatures(features []string) error {
	for _, f := range features {
		if f == "" || strings.Contains(f, " ") {
			return ErrInvalidFeatures
		}
	}
	return nil
}

// newToken generates a URL-safe token with at least 128 bits of entropy.
func newToken() (string, error) {
	buf := make([]byte, 24) // 192 bits
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
