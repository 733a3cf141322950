package session

import (
	"sync"
	"testing"
	"time"
)

func TestCapacityTrackerExhausted(t *testing.T) {
	tests := []struct {
		name       string
		report     CapacityReport
		maxSchemas int
		heapMB     int
		want       bool
	}{
		{
			name:       "never reported is never exhausted",
			report:     CapacityReport{},
			maxSchemas: 50,
			heapMB:     1024,
			want:       false,
		},
		{
			name:       "under both limits",
			report:     CapacityReport{ActiveSchemas: 10, HeapMB: 200, ReportedAt: time.Now()},
			maxSchemas: 50,
			heapMB:     1024,
			want:       false,
		},
		{
			name:       "at schema cap",
			report:     CapacityReport{ActiveSchemas: 50, HeapMB: 200, ReportedAt: time.Now()},
			maxSchemas: 50,
			heapMB:     1024,
			want:       true,
		},
		{
			name:       "over heap ceiling",
			report:     CapacityReport{ActiveSchemas: 1, HeapMB: 2048, ReportedAt: time.Now()},
			maxSchemas: 50,
			heapMB:     1024,
			want:       true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tracker := NewCapacityTracker()
			tracker.Record(tt.report)
			if got := tracker.Exhausted(tt.maxSchemas, tt.heapMB); got != tt.want {
				t.Errorf("Exhausted() = %v, want %v", got, tt.want)
			}
		})
	}
}

// TestCapacityTrackerConcurrentAccess exercises the tracker under concurrent
// reads and writes; the race detector is the actual assertion here.
func TestCapacityTrackerConcurrentAccess(t *testing.T) {
	tracker := NewCapacityTracker()
	var wg sync.WaitGroup

	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func(n int) {
			defer wg.Done()
			tracker.Record(CapacityReport{ActiveSchemas: n, ReportedAt: time.Now()})
		}(i)
		go func() {
			defer wg.Done()
			_ = tracker.Snapshot()
		}()
	}

	wg.Wait()
}
