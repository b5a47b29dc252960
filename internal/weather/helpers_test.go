package weather

import (
	"context"
	"errors"
	"math/rand/v2"
	"sync"
	"time"
)

// constSource always yields the same value: 0 makes every uniform draw hit
// its lower bound, ^uint64(0) its upper bound.
type constSource uint64

func (c constSource) Uint64() uint64 { return uint64(c) }

func minRand() *rand.Rand { return rand.New(constSource(0)) }
func maxRand() *rand.Rand { return rand.New(constSource(^uint64(0))) }

func seededRand(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

// memStore records inserted samples. It fails with failErr on insert number
// failAt (1-based) when failAt is set, and calls onInsert after each write.
type memStore struct {
	mu       sync.Mutex
	samples  []Sample
	closed   bool
	failAt   int
	failErr  error
	onInsert func(n int)
}

func (m *memStore) Insert(_ context.Context, ts time.Time, state State) error {
	m.mu.Lock()
	if m.failAt > 0 && len(m.samples)+1 == m.failAt {
		m.mu.Unlock()
		return m.failErr
	}
	m.samples = append(m.samples, Sample{Timestamp: ts, State: state})
	n := len(m.samples)
	hook := m.onInsert
	m.mu.Unlock()

	if hook != nil {
		hook(n)
	}
	return nil
}

func (m *memStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return errors.New("already closed")
	}
	m.closed = true
	return nil
}

func (m *memStore) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.samples)
}

func (m *memStore) snapshot() []Sample {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Sample(nil), m.samples...)
}

func (m *memStore) isClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

type generateCall struct {
	at          time.Time
	conditioned bool
	scale       float64
}

// spySnapshotter records every call before delegating to a real Generator.
type spySnapshotter struct {
	mu    sync.Mutex
	gen   *Generator
	calls []generateCall
}

func newSpy() *spySnapshotter {
	return &spySnapshotter{gen: NewGenerator(seededRand(7), nil, time.UTC)}
}

func (s *spySnapshotter) GenerateAt(at time.Time, prev *State, drift *Drift, scale float64) (State, Drift, error) {
	s.mu.Lock()
	s.calls = append(s.calls, generateCall{at: at, conditioned: prev != nil, scale: scale})
	s.mu.Unlock()
	return s.gen.GenerateAt(at, prev, drift, scale)
}

func (s *spySnapshotter) recorded() []generateCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]generateCall(nil), s.calls...)
}
