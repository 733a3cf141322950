package schema

import (
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// ClientEntry is a pool handle pinned to one schema plus the bookkeeping the
// bounded LRU cache needs to pick an eviction victim.
type ClientEntry struct {
	SchemaName     string
	Pool           *pgxpool.Pool
	LastAccessedAt time.Time
}

// CapacityProbe is the Schema Manager's self-reported utilisation (spec
// §4.2, glossary "Capacity probe").
type CapacityProbe struct {
	ActiveSchemas int
	CachedClients int
	HeapMB        int
	Uptime        time.Duration
}

var (
	ErrCapacityExhausted = errors.New("schema: capacity exhausted")
)
