// Package sandbox implements the capability interfaces that stand in for
// real outbound side effects during preview (spec §4.3, design note "service
// clients... behind a small capability interface with two implementations").
package sandbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrNotImplemented is returned by every method of the real (non-preview)
// implementations; they exist only so a production wiring is an addition,
// not a rewrite.
var ErrNotImplemented = errors.New("sandbox: real implementation not wired in preview")

// EmailProvider is the capability interface feature handlers use to send
// mail; in preview, only MockEmailProvider is ever injected.
type EmailProvider interface {
	SendEmail(ctx context.Context, token, to, subject, body string) (string, error)
	SendWelcome(ctx context.Context, token, to string) (string, error)
	SendPasswordReset(ctx context.Context, token, to string) (string, error)
	SendVerify(ctx context.Context, token, to string) (string, error)
	SendChanged(ctx context.Context, token, to string) (string, error)
	GetEmails(token string) []RecordedEmail
	ClearEmails(token string)
}

// RecordedEmail is one entry in a token's Redis-backed mailbox, exposed via the
// privileged inspection endpoint (spec §6 GET /internal/emails/{token}).
type RecordedEmail struct {
	ID      string `json:"id"`
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// MockEmailProvider records every send in a per-token Redis list and never
// performs outbound I/O. Each mailbox carries a TTL matching the session's
// TTL, so a mailbox is reclaimed by Redis itself rather than needing its own
// sweep; the same RPUSH+EXPIRE pipeline shape the teacher's login rate
// limiter uses for INCR+EXPIRE.
type MockEmailProvider struct {
	redis *redis.Client
	ttl   time.Duration
}

// NewMockEmailProvider wraps a Redis client; ttl bounds how long a mailbox
// survives after its last send (the caller passes the session preview TTL).
func NewMockEmailProvider(rdb *redis.Client, ttl time.Duration) *MockEmailProvider {
	return &MockEmailProvider{redis: rdb, ttl: ttl}
}

func mailboxKey(token string) string {
	return fmt.Sprintf("preview_mailbox:%s", token)
}

// SendEmail records the message and returns a synthetic id.
func (m *MockEmailProvider) SendEmail(ctx context.Context, token, to, subject, body string) (string, error) {
	id := fmt.Sprintf("mock_email_%s", uuid.NewString())
	entry := RecordedEmail{ID: id, To: to, Subject: subject, Body: body}

	raw, err := json.Marshal(entry)
	if err != nil {
		return "", fmt.Errorf("marshaling recorded email: %w", err)
	}

	key := mailboxKey(token)
	pipe := m.redis.Pipeline()
	pipe.RPush(ctx, key, raw)
	pipe.Expire(ctx, key, m.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return "", fmt.Errorf("recording mock email: %w", err)
	}

	return id, nil
}

// SendWelcome, SendPasswordReset, SendVerify, and SendChanged are well-known
// templates that return synthetic ids WITHOUT recording, matching "helper
// methods for well-known templates... return synthetic ids without
// recording" (spec §4.3).

func (m *MockEmailProvider) SendWelcome(ctx context.Context, token, to string) (string, error) {
	return syntheticEmailID(), nil
}

func (m *MockEmailProvider) SendPasswordReset(ctx context.Context, token, to string) (string, error) {
	return syntheticEmailID(), nil
}

func (m *MockEmailProvider) SendVerify(ctx context.Context, token, to string) (string, error) {
	return syntheticEmailID(), nil
}

func (m *MockEmailProvider) SendChanged(ctx context.Context, token, to string) (string, error) {
	return syntheticEmailID(), nil
}

func syntheticEmailID() string {
	return fmt.Sprintf("mock_email_%s", uuid.NewString())
}

// GetEmails returns the recorded mailbox for token (nil if empty or
// expired). Decode errors on individual entries are skipped rather than
// failing the whole inspection request.
func (m *MockEmailProvider) GetEmails(token string) []RecordedEmail {
	raw, err := m.redis.LRange(context.Background(), mailboxKey(token), 0, -1).Result()
	if err != nil {
		return nil
	}

	out := make([]RecordedEmail, 0, len(raw))
	for _, r := range raw {
		var entry RecordedEmail
		if err := json.Unmarshal([]byte(r), &entry); err == nil {
			out = append(out, entry)
		}
	}
	return out
}

// ClearEmails empties token's mailbox.
func (m *MockEmailProvider) ClearEmails(token string) {
	m.redis.Del(context.Background(), mailboxKey(token))
}

// RealEmailProvider is an inert stub: a production wiring replaces its
// methods with a real provider client, but the capability seam already
// exists so that wiring is additive.
type RealEmailProvider struct{}

func (RealEmailProvider) SendEmail(ctx context.Context, token, to, subject, body string) (string, error) {
	return "", ErrNotImplemented
}
func (RealEmailProvider) SendWelcome(ctx context.Context, token, to string) (string, error) {
	return "", ErrNotImplemented
}
func (RealEmailProvider) SendPasswordReset(ctx context.Context, token, to string) (string, error) {
	return "", ErrNotImplemented
}
func (RealEmailProvider) SendVerify(ctx context.Context, token, to string) (string, error) {
	return "", ErrNotImplemented
}
func (RealEmailProvider) SendChanged(ctx context.Context, token, to string) (string, error) {
	return "", ErrNotImplemented
}
func (RealEmailProvider) GetEmails(token string) []RecordedEmail { return nil }
func (RealEmailProvider) ClearEmails(token string)               {}
