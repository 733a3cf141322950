// Package session implements the Session Authority: the authoritative
// catalogue of preview sessions, their feature/tier selections, and their
// schema lifecycle state.
package session

import (
	"errors"
	"time"
)

// Status is a session's schema lifecycle state. Transitions are monotonic
// along PENDING -> PROVISIONING -> {READY|FAILED} -> DROPPED and are only
// ever applied via a conditional update on the backing row (see Store).
type Status string

const (
	StatusPending      Status = "PENDING"
	StatusProvisioning Status = "PROVISIONING"
	StatusReady        Status = "READY"
	StatusFailed       Status = "FAILED"
	StatusDropped      Status = "DROPPED"
)

// Session is the unit of isolation: one configurator-requested preview.
//
// Invariants (enforced by Store, not by this struct):
//   - SchemaName is set when Status becomes READY and kept if the session is
//     later DROPPED; it is nil in every other status, including DROPPED
//     sessions that never reached READY.
//   - Status transitions are monotonic along the declared paths.
//   - Per-IP concurrent non-terminal sessions never exceed MaxSessionsPerIp.
type Session struct {
	Token           string
	Features        []string
	Tier            string
	OriginIP        string
	CreatedAt       time.Time
	ExpiresAt       time.Time
	SchemaName      *string
	SchemaStatus    Status
	LastHeartbeatAt time.Time
}

// IsTerminal reports whether no further lifecycle transitions are expected.
func (s *Session) IsTerminal() bool {
	return s.SchemaStatus == StatusFailed || s.SchemaStatus == StatusDropped
}

// IsNonTerminal reports whether the session still counts against per-IP and
// global capacity.
func (s *Session) IsNonTerminal() bool {
	return !s.IsTerminal()
}

// CreateParams is the configurator-supplied input to CreateSession.
type CreateParams struct {
	Features []string
	Tier     string
	OriginIP string
}

// ResolvedSession is the read-only projection the Gateway consumes from
// resolveSession; it deliberately excludes OriginIP and heartbeat details.
type ResolvedSession struct {
	Token        string    `json:"token"`
	SchemaName   *string   `json:"schemaName"`
	Features     []string  `json:"selectedFeatures"`
	Tier         string    `json:"tier"`
	SchemaStatus Status    `json:"schemaStatus"`
	ExpiresAt    time.Time `json:"expiresAt"`
}

var (
	ErrNotFound            = errors.New("session: not found")
	ErrExpired             = errors.New("session: expired")
	ErrAlreadyClaimed      = errors.New("session: already claimed")
	ErrTooManySessionsForIp = errors.New("session: too many sessions for ip")
	ErrCapacityExhausted   = errors.New("session: capacity exhausted")
	ErrInvalidFeatures     = errors.New("session: invalid features")
)
