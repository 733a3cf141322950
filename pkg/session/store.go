package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Store persists Session rows in the Authority's shared catalogue schema.
// Every lifecycle transition is a single conditional UPDATE checked via
// RowsAffected — the sole coordination primitive against duplicate
// provisioning, matching the CAS pattern the teacher uses for its own
// row-level state machines.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore wraps a catalogue connection pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Create inserts a new PENDING session row.
func (s *Store) Create(ctx context.Context, token string, params CreateParams, expiresAt time.Time) (*Session, error) {
	now := time.Now().UTC()
	const q = `
		INSERT INTO sessions
			(token, features, tier, origin_ip, created_at, expires_at, schema_status, last_heartbeat_at)
		VALUES
			($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := s.pool.Exec(ctx, q, token, params.Features, params.Tier, params.OriginIP, now, expiresAt, StatusPending, now)
	if err != nil {
		return nil, fmt.Errorf("inserting session: %w", err)
	}

	return &Session{
		Token:           token,
		Features:        params.Features,
		Tier:            params.Tier,
		OriginIP:        params.OriginIP,
		CreatedAt:       now,
		ExpiresAt:       expiresAt,
		SchemaStatus:    StatusPending,
		LastHeartbeatAt: now,
	}, nil
}

// Get reads a session by token.
func (s *Store) Get(ctx context.Context, token string) (*Session, error) {
	const q = `
		SELECT token, features, tier, origin_ip, created_at, expires_at,
		       schema_name, schema_status, last_heartbeat_at
		FROM sessions WHERE token = $1
	`
	row := s.pool.QueryRow(ctx, q, token)
	sess, err := scanSession(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("reading session: %w", err)
	}
	return sess, nil
}

// CountNonTerminalForIP counts sessions for originIP not in {FAILED, DROPPED}.
func (s *Store) CountNonTerminalForIP(ctx context.Context, originIP string) (int, error) {
	const q = `
		SELECT count(*) FROM sessions
		WHERE origin_ip = $1 AND schema_status NOT IN ('FAILED', 'DROPPED')
	`
	var n int
	if err := s.pool.QueryRow(ctx, q, originIP).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting sessions for ip: %w", err)
	}
	return n, nil
}

// ListForIP returns every session recorded for originIP, newest first.
func (s *Store) ListForIP(ctx context.Context, originIP string) ([]*Session, error) {
	const q = `
		SELECT token, features, tier, origin_ip, created_at, expires_at,
		       schema_name, schema_status, last_heartbeat_at
		FROM sessions WHERE origin_ip = $1 ORDER BY created_at DESC
	`
	rows, err := s.pool.Query(ctx, q, originIP)
	if err != nil {
		return nil, fmt.Errorf("listing sessions for ip: %w", err)
	}
	defer rows.Close()

	var out []*Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning session row: %w", err)
		}
		out = append(out, sess)
	}
	return out, rows.Err()
}

// ListExpired returns non-terminal sessions whose expiry has passed, for the
// background sweeper.
func (s *Store) ListExpired(ctx context.Context, now time.Time) ([]*Session, error) {
	const q = `
		SELECT token, features, tier, origin_ip, created_at, expires_at,
		       schema_name, schema_status, last_heartbeat_at
		FROM sessions
		WHERE expires_at < $1 AND schema_status NOT IN ('DROPPED')
	`
	rows, err := s.pool.Query(ctx, q, now)
	if err != nil {
		return nil, fmt.Errorf("listing expired sessions: %w", err)
	}
	defer rows.Close()

	var out []*Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning expired session row: %w", err)
		}
		out = append(out, sess)
	}
	return out, rows.Err()
}

// TokensWithPhysicalSchema returns the tokens of every session whose
// backing schema is expected to physically exist — PROVISIONING, READY, or
// FAILED (spec §3 invariant I4). Note schema_name itself is only populated
// once a session reaches READY (invariant I1), so the orphan-reclamation
// join must recompute the expected name from the token rather than reading
// the column for PROVISIONING/FAILED rows.
func (s *Store) TokensWithPhysicalSchema(ctx context.Context) ([]string, error) {
	const q = `SELECT token FROM sessions WHERE schema_status IN ('PROVISIONING', 'READY', 'FAILED')`
	rows, err := s.pool.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("listing tokens with physical schema: %w", err)
	}
	defer rows.Close()

	var tokens []string
	for rows.Next() {
		var tok string
		if err := rows.Scan(&tok); err != nil {
			return nil, fmt.Errorf("scanning token: %w", err)
		}
		tokens = append(tokens, tok)
	}
	return tokens, rows.Err()
}

// MarkProvisioning is the CAS claim: it transitions PENDING -> PROVISIONING
// and succeeds only when exactly one row was affected. A zero-row update
// means the session was not in PENDING (either already claimed or terminal).
func (s *Store) MarkProvisioning(ctx context.Context, token string) error {
	const q = `
		UPDATE sessions SET schema_status = 'PROVISIONING'
		WHERE token = $1 AND schema_status = 'PENDING'
	`
	tag, err := s.pool.Exec(ctx, q, token)
	if err != nil {
		return fmt.Errorf("claiming session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		if _, err := s.Get(ctx, token); err != nil {
			return err
		}
		return ErrAlreadyClaimed
	}
	return nil
}

// MarkReady transitions PROVISIONING -> READY and records the schema name.
func (s *Store) MarkReady(ctx context.Context, token, schemaName string) error {
	const q = `
		UPDATE sessions SET schema_status = 'READY', schema_name = $2
		WHERE token = $1 AND schema_status = 'PROVISIONING'
	`
	tag, err := s.pool.Exec(ctx, q, token, schemaName)
	if err != nil {
		return fmt.Errorf("marking session ready: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// MarkFailed transitions PROVISIONING -> FAILED.
func (s *Store) MarkFailed(ctx context.Context, token string) error {
	const q = `
		UPDATE sessions SET schema_status = 'FAILED'
		WHERE token = $1 AND schema_status = 'PROVISIONING'
	`
	tag, err := s.pool.Exec(ctx, q, token)
	if err != nil {
		return fmt.Errorf("marking session failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// MarkDropped transitions any non-DROPPED status -> DROPPED. Called only by
// the expiry sweeper, after the Gateway confirms the drop when the session
// has a recorded schema name.
func (s *Store) MarkDropped(ctx context.Context, token string) error {
	const q = `
		UPDATE sessions SET schema_status = 'DROPPED'
		WHERE token = $1 AND schema_status IN ('READY', 'FAILED', 'PENDING', 'PROVISIONING')
	`
	tag, err := s.pool.Exec(ctx, q, token)
	if err != nil {
		return fmt.Errorf("marking session dropped: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Heartbeat extends expires_at to now+ttl, but only forward — never backward.
func (s *Store) Heartbeat(ctx context.Context, token string, ttl time.Duration) (time.Time, error) {
	newExpiry := time.Now().UTC().Add(ttl)
	const q = `
		UPDATE sessions SET expires_at = $2, last_heartbeat_at = now()
		WHERE token = $1 AND schema_status NOT IN ('FAILED', 'DROPPED') AND expires_at < $2
		RETURNING expires_at
	`
	row := s.pool.QueryRow(ctx, q, token, newExpiry)
	var got time.Time
	if err := row.Scan(&got); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			sess, getErr := s.Get(ctx, token)
			if getErr != nil {
				return time.Time{}, getErr
			}
			if sess.IsTerminal() {
				return time.Time{}, ErrNotFound
			}
			return sess.ExpiresAt, nil
		}
		return time.Time{}, fmt.Errorf("extending heartbeat: %w", err)
	}
	return got, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*Session, error) {
	var sess Session
	var schemaName *string
	if err := row.Scan(
		&sess.Token, &sess.Features, &sess.Tier, &sess.OriginIP,
		&sess.CreatedAt, &sess.ExpiresAt, &schemaName, &sess.SchemaStatus, &sess.LastHeartbeatAt,
	); err != nil {
		return nil, err
	}
	sess.SchemaName = schemaName
	return &sess, nil
}
