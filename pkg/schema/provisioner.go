package schema

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/previewbox/orchestrator/internal/previewddl"
)

// AuthorityClient is the Schema Manager's view of the Authority's
// orphan-reclamation join (spec's open question: "prefer the Authority-join
// form once the API is available").
type AuthorityClient interface {
	ActiveSchemaNames(ctx context.Context) (map[string]bool, error)
}

// Provisioner implements the Schema Manager's public contract (spec §4.2):
// provision, drop, client binding, listing, and orphan reclamation.
type Provisioner struct {
	admin                *pgxpool.Pool
	databaseURL          string
	connLimit            int32
	cache                *Cache
	authority            AuthorityClient
	logger               *slog.Logger
	startedAt            time.Time
	maxConcurrentSchemas int
	heapSoftCeilingMB    int

	sweepRunning atomic.Bool
}

// NewProvisioner wires the admin (non-schema-pinned) client, the backing
// database URL used to mint per-schema pools, the bounded client cache, the
// Authority client used by orphan sweeping, and the capacity limits Provision
// enforces via Probe before creating any schema.
func NewProvisioner(admin *pgxpool.Pool, databaseURL string, connLimit int32, cache *Cache, authority AuthorityClient, logger *slog.Logger, maxConcurrentSchemas, heapSoftCeilingMB int) *Provisioner {
	return &Provisioner{
		admin:                admin,
		databaseURL:          databaseURL,
		connLimit:            connLimit,
		cache:                cache,
		authority:            authority,
		logger:               logger,
		startedAt:            time.Now(),
		maxConcurrentSchemas: maxConcurrentSchemas,
		heapSoftCeilingMB:    heapSoftCeilingMB,
	}
}

// Provision creates, seeds, and registers a new per-session schema. Any
// failure after CREATE SCHEMA triggers a compensating DROP SCHEMA so no
// partial schema ever survives a failed provision (spec §4.2 step 4).
func (p *Provisioner) Provision(ctx context.Context, token string, features []string, tier string) (string, error) {
	probe, err := p.Probe(ctx)
	if err != nil {
		return "", fmt.Errorf("probing capacity: %w", err)
	}
	if probe.Exhausted(p.maxConcurrentSchemas, p.heapSoftCeilingMB) {
		return "", ErrCapacityExhausted
	}

	schemaName := ToSchemaName(token)
	if err := ValidateSchemaName(schemaName); err != nil {
		return "", err
	}

	if _, err := p.admin.Exec(ctx, fmt.Sprintf(`CREATE SCHEMA IF NOT EXISTS %s`, schemaName)); err != nil {
		return "", fmt.Errorf("creating schema: %w", err)
	}

	if err := p.replayAndSeed(ctx, schemaName, features); err != nil {
		p.compensate(ctx, schemaName)
		return "", fmt.Errorf("provisioning schema %s: %w", schemaName, err)
	}

	return schemaName, nil
}

// replayAndSeed pins a single connection for the whole SET search_path ->
// DDL bundle -> seed sequence. pgxpool hands out an arbitrary pooled
// connection to each call made against the pool directly, so doing this over
// separate p.admin.Exec calls would risk the SET landing on one connection
// and the bundle/seed running on another — against public, or under
// concurrent provisions, against a different session's schema entirely.
func (p *Provisioner) replayAndSeed(ctx context.Context, schemaName string, features []string) error {
	if err := ValidateSchemaName(schemaName); err != nil {
		return err
	}

	conn, err := p.admin.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquiring connection for schema replay: %w", err)
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, fmt.Sprintf(`SET search_path TO %s`, schemaName)); err != nil {
		return fmt.Errorf("setting search_path: %w", err)
	}
	defer conn.Exec(context.Background(), `SET search_path TO public`)

	if _, err := conn.Exec(ctx, previewddl.Bundle()); err != nil {
		return fmt.Errorf("replaying ddl bundle: %w", err)
	}

	if err := previewddl.Seed(ctx, connExecutor{conn: conn}, features); err != nil {
		return fmt.Errorf("seeding: %w", err)
	}

	return nil
}

// compensate drops a partially-provisioned schema and evicts any cached
// client, swallowing the drop's own error (the original failure is already
// being returned to the caller).
func (p *Provisioner) compensate(ctx context.Context, schemaName string) {
	if err := ValidateSchemaName(schemaName); err == nil {
		if _, err := p.admin.Exec(ctx, fmt.Sprintf(`DROP SCHEMA IF EXISTS %s CASCADE`, schemaName)); err != nil {
			p.logger.Error("compensating drop schema failed", "schema", schemaName, "error", err)
		}
	}
	p.cache.Evict(schemaName)
}

// Drop validates and drops a schema, evicting its cached client.
func (p *Provisioner) Drop(ctx context.Context, schemaName string) error {
	if err := ValidateSchemaName(schemaName); err != nil {
		return err
	}
	if _, err := p.admin.Exec(ctx, fmt.Sprintf(`DROP SCHEMA IF EXISTS %s CASCADE`, schemaName)); err != nil {
		return fmt.Errorf("dropping schema %s: %w", schemaName, err)
	}
	p.cache.Evict(schemaName)
	return nil
}

// GetClientForSchema returns a pooled client pinned to schemaName via the
// bounded cache. Safe to call concurrently.
func (p *Provisioner) GetClientForSchema(ctx context.Context, schemaName string) (*pgxpool.Pool, error) {
	if err := ValidateSchemaName(schemaName); err != nil {
		return nil, err
	}
	return p.cache.Get(ctx, schemaName)
}

// ListPreviewSchemas enumerates preview_* namespaces in the backing store.
func (p *Provisioner) ListPreviewSchemas(ctx context.Context) ([]string, error) {
	const q = `SELECT schema_name FROM information_schema.schemata WHERE schema_name LIKE 'preview\_%' ESCAPE '\'`
	rows, err := p.admin.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("listing preview schemas: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scanning schema name: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

func (p *Provisioner) countActiveSchemas(ctx context.Context) (int, error) {
	names, err := p.ListPreviewSchemas(ctx)
	if err != nil {
		return 0, err
	}
	return len(names), nil
}

// OrphanSweep enumerates preview_* namespaces and drops any with zero tables
// or with no active session referencing them; when the Authority join is
// unavailable, only empty schemas are dropped. Serialised by a process-wide
// running flag — a concurrent invocation returns immediately (spec §4.2/§5).
func (p *Provisioner) OrphanSweep(ctx context.Context) error {
	if !p.sweepRunning.CompareAndSwap(false, true) {
		return nil
	}
	defer p.sweepRunning.Store(false)

	names, err := p.ListPreviewSchemas(ctx)
	if err != nil {
		return fmt.Errorf("orphan sweep: listing schemas: %w", err)
	}

	active, err := p.authority.ActiveSchemaNames(ctx)
	if err != nil {
		p.logger.Warn("orphan sweep: authority join unavailable, falling back to empty-schema heuristic", "error", err)
		active = nil
	}

	for _, name := range names {
		empty, err := p.schemaHasZeroTables(ctx, name)
		if err != nil {
			p.logger.Error("orphan sweep: checking table count", "schema", name, "error", err)
			continue
		}

		referenced := active != nil && active[name]
		if empty || (active != nil && !referenced) {
			if err := p.Drop(ctx, name); err != nil {
				p.logger.Error("orphan sweep: dropping orphan schema", "schema", name, "error", err)
				continue
			}
			p.logger.Info("orphan sweep: dropped orphan schema", "schema", name, "empty", empty, "referenced", referenced)
		}
	}

	return nil
}

// RunOrphanSweepLoop ticks OrphanSweep on interval until ctx is cancelled.
func (p *Provisioner) RunOrphanSweepLoop(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := p.OrphanSweep(ctx); err != nil {
				p.logger.Error("orphan sweep failed", "error", err)
			}
		}
	}
}

func (p *Provisioner) schemaHasZeroTables(ctx context.Context, schemaName string) (bool, error) {
	const q = `SELECT count(*) FROM information_schema.tables WHERE table_schema = $1`
	var n int
	if err := p.admin.QueryRow(ctx, q, schemaName).Scan(&n); err != nil {
		return false, fmt.Errorf("counting tables in %s: %w", schemaName, err)
	}
	return n == 0, nil
}

// Shutdown drains the client cache and closes the admin client last, per
// spec §4.2 "Graceful shutdown".
func (p *Provisioner) Shutdown() {
	p.cache.Drain()
	p.admin.Close()
}

// connExecutor adapts a single pinned *pgxpool.Conn to previewddl.Executor,
// so seeding runs on the same connection the search_path was set on.
type connExecutor struct {
	conn *pgxpool.Conn
}

func (c connExecutor) Exec(ctx context.Context, sql string, args ...any) error {
	_, err := c.conn.Exec(ctx, sql, args...)
	return err
}
