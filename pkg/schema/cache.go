package schema

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/previewbox/orchestrator/internal/platform"
)

// ClientFactory builds a new pooled client pinned to schemaName with at most
// connLimit connections.
type ClientFactory func(ctx context.Context, schemaName string, connLimit int32) (*pgxpool.Pool, error)

// Cache is the bounded, mutually-exclusive client cache described in spec
// §4.2/§5: at most one live client per schema, at most maxSize entries
// total, eviction picks the smallest last-accessed-at (ties broken
// deterministically by schema name), and eviction's disconnect is
// fire-and-forget.
type Cache struct {
	mu        sync.Mutex
	entries   map[string]*ClientEntry
	creating  map[string]*inflightCreate
	maxSize   int
	connLimit int32
	factory   ClientFactory
	logger    *slog.Logger

	cachedGauge func(n int)
}

// inflightCreate single-flights a concurrent miss on the same schema: every
// caller past the first waits on done instead of calling factory itself, so
// a schema never transiently gets two live pools (one leaked, never closed)
// and the cache never transiently exceeds maxSize.
type inflightCreate struct {
	done chan struct{}
	pool *pgxpool.Pool
	err  error
}

// NewCache builds an empty cache. factory is normally
// platform.NewSchemaPool wrapped to match ClientFactory.
func NewCache(maxSize int, connLimit int32, factory ClientFactory, logger *slog.Logger, cachedGauge func(n int)) *Cache {
	return &Cache{
		entries:     make(map[string]*ClientEntry),
		creating:    make(map[string]*inflightCreate),
		maxSize:     maxSize,
		connLimit:   connLimit,
		factory:     factory,
		logger:      logger,
		cachedGauge: cachedGauge,
	}
}

// NewPgxClientFactory adapts platform.NewSchemaPool to ClientFactory.
func NewPgxClientFactory(databaseURL string) ClientFactory {
	return func(ctx context.Context, schemaName string, connLimit int32) (*pgxpool.Pool, error) {
		return platform.NewSchemaPool(ctx, databaseURL, schemaName, connLimit)
	}
}

// Get returns the pooled client for schemaName, creating one (and evicting
// the LRU victim if at capacity) if absent. Concurrent misses on the same
// schema single-flight through one factory call. Safe for concurrent use.
func (c *Cache) Get(ctx context.Context, schemaName string) (*pgxpool.Pool, error) {
	c.mu.Lock()

	if e, ok := c.entries[schemaName]; ok {
		e.LastAccessedAt = time.Now()
		pool := e.Pool
		c.mu.Unlock()
		return pool, nil
	}

	if inf, ok := c.creating[schemaName]; ok {
		c.mu.Unlock()
		<-inf.done
		return inf.pool, inf.err
	}

	inf := &inflightCreate{done: make(chan struct{})}
	c.creating[schemaName] = inf

	var victim *ClientEntry
	if len(c.entries) >= c.maxSize {
		victim = c.selectEvictionVictimLocked()
		if victim != nil {
			delete(c.entries, victim.SchemaName)
		}
	}
	c.mu.Unlock()

	if victim != nil {
		c.disconnectAsync(victim)
	}

	pool, err := c.factory(ctx, schemaName, c.connLimit)

	c.mu.Lock()
	delete(c.creating, schemaName)
	var n int
	var late []*ClientEntry
	if err == nil {
		// Concurrent misses on other schemas may have filled the cache while
		// factory ran; evict again so this insert never exceeds maxSize.
		for len(c.entries) >= c.maxSize {
			v := c.selectEvictionVictimLocked()
			if v == nil {
				break
			}
			delete(c.entries, v.SchemaName)
			late = append(late, v)
		}
		c.entries[schemaName] = &ClientEntry{SchemaName: schemaName, Pool: pool, LastAccessedAt: time.Now()}
	}
	n = len(c.entries)
	c.mu.Unlock()

	for _, v := range late {
		c.disconnectAsync(v)
	}

	inf.pool, inf.err = pool, err
	close(inf.done)

	if err == nil {
		c.reportSize(n)
	}

	return pool, err
}

// Evict removes schemaName's entry (if present) and disconnects it
// asynchronously. Used by Drop so a dropped schema never lingers cached.
func (c *Cache) Evict(schemaName string) {
	c.mu.Lock()
	e, ok := c.entries[schemaName]
	if ok {
		delete(c.entries, schemaName)
	}
	n := len(c.entries)
	c.mu.Unlock()

	if ok {
		c.disconnectAsync(e)
	}
	c.reportSize(n)
}

// selectEvictionVictimLocked must be called with c.mu held. It picks the
// entry with the smallest LastAccessedAt, breaking ties deterministically
// by schema name.
func (c *Cache) selectEvictionVictimLocked() *ClientEntry {
	if len(c.entries) == 0 {
		return nil
	}
	names := make([]string, 0, len(c.entries))
	for name := range c.entries {
		names = append(names, name)
	}
	sort.Strings(names)

	var victim *ClientEntry
	for _, name := range names {
		e := c.entries[name]
		if victim == nil || e.LastAccessedAt.Before(victim.LastAccessedAt) {
			victim = e
		}
	}
	return victim
}

func (c *Cache) disconnectAsync(e *ClientEntry) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				c.logger.Warn("recovered from panic disconnecting evicted client", "schema", e.SchemaName, "panic", r)
			}
		}()
		e.Pool.Close()
	}()
}

func (c *Cache) reportSize(n int) {
	if c.cachedGauge != nil {
		c.cachedGauge(n)
	}
}

// RunIdleSweepLoop runs forever (until ctx is cancelled), evicting and
// disconnecting any entry idle for longer than idleTimeout, once per tick.
func (c *Cache) RunIdleSweepLoop(ctx context.Context, tickInterval, idleTimeout time.Duration) {
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.sweepIdle(idleTimeout)
		}
	}
}

func (c *Cache) sweepIdle(idleTimeout time.Duration) {
	now := time.Now()

	c.mu.Lock()
	var idle []*ClientEntry
	for name, e := range c.entries {
		if now.Sub(e.LastAccessedAt) > idleTimeout {
			idle = append(idle, e)
			delete(c.entries, name)
		}
	}
	n := len(c.entries)
	c.mu.Unlock()

	for _, e := range idle {
		c.disconnectAsync(e)
	}
	c.reportSize(n)
}

// Len reports the current entry count (test/diagnostic use).
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Drain disconnects every cached client, swallowing individual failures, for
// graceful process shutdown. The admin client (not schema-pinned, so never
// present in this cache) must be closed by the caller after Drain returns.
func (c *Cache) Drain() {
	c.mu.Lock()
	entries := make([]*ClientEntry, 0, len(c.entries))
	for _, e := range c.entries {
		entries = append(entries, e)
	}
	c.entries = make(map[string]*ClientEntry)
	c.mu.Unlock()

	var wg sync.WaitGroup
	for _, e := range entries {
		wg.Add(1)
		go func(e *ClientEntry) {
			defer wg.Done()
			defer func() { _ = recover() }()
			e.Pool.Close()
		}(e)
	}
	wg.Wait()
}
