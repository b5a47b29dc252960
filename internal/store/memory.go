package store

import (
	"context"
	"sync"
	"time"

	"github.com/i474232898/weather-data-generator/internal/weather"
)

// MemoryStore is a concurrency-safe in-memory sample series. It serves the
// "memory" store driver and tests.
type MemoryStore struct {
	mu sync.RWMutex

	samples []weather.Sample

	// retention configuration
	maxHistory int // max number of samples kept (0 = unlimited)
}

// NewMemoryStore creates a new MemoryStore.
// If maxHistory is <= 0, it is treated as unlimited.
func NewMemoryStore(maxHistory int) *MemoryStore {
	return &MemoryStore{maxHistory: maxHistory}
}

// Insert appends a sample and enforces retention by count.
func (s *MemoryStore) Insert(_ context.Context, ts time.Time, state weather.State) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.samples = append(s.samples, weather.Sample{Timestamp: ts, State: state})

	if s.maxHistory > 0 && len(s.samples) > s.maxHistory {
		over := len(s.samples) - s.maxHistory
		s.samples = append(s.samples[:0:0], s.samples[over:]...)
	}
	return nil
}

// Close is a no-op; the samples stay readable.
func (s *MemoryStore) Close() error {
	return nil
}

// Prune drops samples recorded before the cutoff and returns how many were
// removed.
func (s *MemoryStore) Prune(_ context.Context, before time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.samples[:0]
	var removed int64
	for _, sample := range s.samples {
		if sample.Timestamp.Before(before) {
			removed++
			continue
		}
		kept = append(kept, sample)
	}
	s.samples = kept
	return removed, nil
}

// Len returns the number of samples held.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.samples)
}
