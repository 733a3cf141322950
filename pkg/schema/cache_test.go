package schema

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// fakeFactory hands out distinct, never-connected *pgxpool.Pool values so
// the cache's bookkeeping can be exercised without a real database. Their
// Close() method may panic on a nil internal state; Cache's disconnectAsync
// recovers from that, matching "errors suppressed" in the spec.
func fakeFactory(created *int, mu *sync.Mutex) ClientFactory {
	return func(ctx context.Context, schemaName string, connLimit int32) (*pgxpool.Pool, error) {
		mu.Lock()
		*created++
		mu.Unlock()
		return &pgxpool.Pool{}, nil
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(discardWriter{}, nil))
}

type discardWriter struct{}

func (discardWriter) Write(p []byte) (int, error) { return len(p), nil }

func TestCacheEvictsLeastRecentlyUsed(t *testing.T) {
	var created int
	var mu sync.Mutex
	cache := NewCache(3, 2, fakeFactory(&created, &mu), discardLogger(), nil)
	ctx := context.Background()

	for _, name := range []string{"preview_a", "preview_b", "preview_c"} {
		if _, err := cache.Get(ctx, name); err != nil {
			t.Fatalf("Get(%s) error: %v", name, err)
		}
		time.Sleep(time.Millisecond)
	}

	// Access A again to make it most-recently-used, then insert D, which
	// must evict B (the spec's worked example: A,B,C,A,D -> {A,C,D}).
	if _, err := cache.Get(ctx, "preview_a"); err != nil {
		t.Fatalf("Get(preview_a) error: %v", err)
	}
	time.Sleep(time.Millisecond)
	if _, err := cache.Get(ctx, "preview_d"); err != nil {
		t.Fatalf("Get(preview_d) error: %v", err)
	}

	cache.mu.Lock()
	names := make([]string, 0, len(cache.entries))
	for name := range cache.entries {
		names = append(names, name)
	}
	cache.mu.Unlock()
	sort.Strings(names)

	want := []string{"preview_a", "preview_c", "preview_d"}
	if len(names) != len(want) {
		t.Fatalf("cache contents = %v, want %v", names, want)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Fatalf("cache contents = %v, want %v", names, want)
		}
	}
}

func TestCacheNeverExceedsMaxSize(t *testing.T) {
	var created int
	var mu sync.Mutex
	const maxSize = 4
	cache := NewCache(maxSize, 2, fakeFactory(&created, &mu), discardLogger(), nil)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			schemaName := "preview_" + string(rune('a'+n%26))
			_, _ = cache.Get(ctx, schemaName)
		}(i)
	}
	wg.Wait()

	if n := cache.Len(); n > maxSize {
		t.Fatalf("cache size = %d, exceeds max %d", n, maxSize)
	}
}

func TestCacheAtMostOneEntryPerSchema(t *testing.T) {
	var created int
	var mu sync.Mutex
	cache := NewCache(10, 2, fakeFactory(&created, &mu), discardLogger(), nil)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = cache.Get(ctx, "preview_shared")
		}()
	}
	wg.Wait()

	if n := cache.Len(); n != 1 {
		t.Fatalf("cache size = %d, want 1 (single schema accessed concurrently)", n)
	}

	mu.Lock()
	gotCreated := created
	mu.Unlock()
	if gotCreated != 1 {
		t.Fatalf("factory invoked %d times for one schema under concurrent miss, want 1 (single-flight)", gotCreated)
	}
}
