package gateway

import (
	"context"
	"net/http"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/previewbox/orchestrator/internal/signing"
)

// SessionCacheEntry is the short-TTL projection of a session the Gateway
// resolves from the Authority (spec §3 "gateway-owned, in-memory").
type SessionCacheEntry struct {
	Token        string
	SchemaName   *string
	Features     []string
	Tier         string
	SchemaStatus string
	ExpiresAt    time.Time
	CachedAt     time.Time
}

// SessionCache wraps an expirable LRU keyed by token; last-writer-wins on
// concurrent inserts is acceptable because TTL bounds staleness (spec §5).
type SessionCache struct {
	lru *lru.LRU[string, SessionCacheEntry]
}

// NewSessionCache builds a cache with the given TTL and a generous capacity
// (entries are small projections, not live resources, so sizing is lax
// compared to the client cache's hard bound).
func NewSessionCache(ttl time.Duration, capacity int) *SessionCache {
	return &SessionCache{lru: lru.NewLRU[string, SessionCacheEntry](capacity, nil, ttl)}
}

// Get returns the cached entry for token, if present and unexpired.
func (c *SessionCache) Get(token string) (SessionCacheEntry, bool) {
	return c.lru.Get(token)
}

// Put inserts/overwrites token's cached entry.
func (c *SessionCache) Put(token string, entry SessionCacheEntry) {
	c.lru.Add(token, entry)
}

// Invalidate removes token's cached entry (called on Authority-driven
// invalidation or manual termination).
func (c *SessionCache) Invalidate(token string) {
	c.lru.Remove(token)
}

// AuthorityResolveClient is the Gateway's view of the Authority's
// resolveSession operation (spec §4.1, §6).
type AuthorityResolveClient interface {
	ResolveSession(ctx context.Context, token string) (SessionCacheEntry, error)
}

type resolveResponse struct {
	Data struct {
		SchemaName   *string   `json:"schemaName"`
		Features     []string  `json:"selectedFeatures"`
		Tier         string    `json:"tier"`
		SchemaStatus string    `json:"schemaStatus"`
		ExpiresAt    time.Time `json:"expiresAt"`
	} `json:"data"`
}

// SignedAuthorityClient implements AuthorityResolveClient over a
// signing.Client pointed at the Authority process.
type SignedAuthorityClient struct {
	client *signing.Client
}

// NewSignedAuthorityClient wraps an HMAC-signed client.
func NewSignedAuthorityClient(client *signing.Client) *SignedAuthorityClient {
	return &SignedAuthorityClient{client: client}
}

// ErrAuthorityNotFound and ErrAuthorityExpired surface the Authority's
// 404/410 distinctions through to the pipeline's error mapping.
var (
	ErrAuthorityNotFound = authorityError("authority: session not found")
	ErrAuthorityExpired  = authorityError("authority: session expired or dropped")
)

type authorityError string

func (e authorityError) Error() string { return string(e) }

// ResolveSession calls GET /api/preview/sessions/{token} on the Authority.
func (c *SignedAuthorityClient) ResolveSession(ctx context.Context, token string) (SessionCacheEntry, error) {
	var resp resolveResponse
	status, err := c.client.Do(ctx, http.MethodGet, "/api/preview/sessions/"+token, nil, &resp)
	if err != nil {
		return SessionCacheEntry{}, err
	}
	switch status {
	case http.StatusNotFound:
		return SessionCacheEntry{}, ErrAuthorityNotFound
	case http.StatusGone:
		return SessionCacheEntry{}, ErrAuthorityExpired
	case http.StatusOK:
		return SessionCacheEntry{
			Token:        token,
			SchemaName:   resp.Data.SchemaName,
			Features:     resp.Data.Features,
			Tier:         resp.Data.Tier,
			SchemaStatus: resp.Data.SchemaStatus,
			ExpiresAt:    resp.Data.ExpiresAt,
			CachedAt:     time.Now(),
		}, nil
	default:
		return SessionCacheEntry{}, authorityError("authority: unexpected status")
	}
}
