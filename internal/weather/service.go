package weather

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/i474232898/weather-data-generator/internal/logger"
)

// Phase is the lifecycle position of the generation loop.
type Phase string

const (
	PhaseIdle        Phase = "idle"
	PhaseBackfilling Phase = "backfilling"
	PhaseLive        Phase = "live"
	PhaseStopped     Phase = "stopped"
)

// Observer is notified of generation events. Implementations must be safe
// for concurrent use.
type Observer interface {
	PhaseChanged(phase Phase)
	SampleWritten(phase Phase, ts time.Time)
	BackfillProgress(written, total int)
	StorageFailed()
}

type nopObserver struct{}

func (nopObserver) PhaseChanged(Phase)             {}
func (nopObserver) SampleWritten(Phase, time.Time) {}
func (nopObserver) BackfillProgress(int, int)      {}
func (nopObserver) StorageFailed()                 {}

// ServiceConfig tunes a Service. Zero values select the defaults.
type ServiceConfig struct {
	// Clock drives the live tick wait and the default window. Defaults to
	// the real clock.
	Clock clockwork.Clock

	// Window computes the backfill window from the start time. Defaults to
	// DefaultWindow.
	Window func(now time.Time) Window

	// Tick is the wait between live samples and the timestamp step between
	// them. Defaults to one second.
	Tick time.Duration

	// LiveScale is the scale passed to every live step. Defaults to 1.
	LiveScale float64

	// BatchSize is the number of backfill samples between progress reports.
	// Defaults to DefaultBatchSize.
	BatchSize int

	Logger   *slog.Logger
	Observer Observer
}

// Status is a point-in-time view of the generation loop.
type Status struct {
	Running        bool       `json:"running"`
	Phase          Phase      `json:"phase"`
	RunID          string     `json:"runId,omitempty"`
	StartedAt      *time.Time `json:"startedAt,omitempty"`
	Window         *Window    `json:"window,omitempty"`
	SamplesWritten int64      `json:"samplesWritten"`
	LastSample     *Sample    `json:"lastSample,omitempty"`
	LastError      string     `json:"lastError,omitempty"`
}

// run is one generation worker: its cancellation and its join point.
type run struct {
	id        uuid.UUID
	startedAt time.Time
	window    Window
	cancel    context.CancelFunc
	done      chan struct{}
}

func (r *run) finished() bool {
	select {
	case <-r.done:
		return true
	default:
		return false
	}
}

// Service owns at most one generation worker. A worker backfills the
// historical window and then continues live, one sample per tick, until
// Stop is called or a write fails.
type Service struct {
	open     Opener
	gen      Snapshotter
	clock    clockwork.Clock
	window   func(now time.Time) Window
	tick     time.Duration
	scale    float64
	batch    int
	log      *slog.Logger
	observer Observer
	failures chan error

	mu         sync.Mutex
	starting   bool
	run        *run
	phase      Phase
	written    int64
	lastSample *Sample
	lastErr    error
}

// NewService creates a Service writing through stores returned by open.
func NewService(open Opener, gen Snapshotter, cfg ServiceConfig) *Service {
	s := &Service{
		open:     open,
		gen:      gen,
		clock:    cfg.Clock,
		window:   cfg.Window,
		tick:     cfg.Tick,
		scale:    cfg.LiveScale,
		batch:    cfg.BatchSize,
		log:      cfg.Logger,
		observer: cfg.Observer,
		failures: make(chan error, 1),
		phase:    PhaseIdle,
	}
	if s.clock == nil {
		s.clock = clockwork.NewRealClock()
	}
	if s.window == nil {
		s.window = DefaultWindow
	}
	if s.tick <= 0 {
		s.tick = time.Second
	}
	if s.scale <= 0 {
		s.scale = 1
	}
	if s.log == nil {
		s.log = slog.New(slog.DiscardHandler)
	}
	if s.observer == nil {
		s.observer = nopObserver{}
	}
	return s
}

// Start opens a store and launches the worker. It returns ErrAlreadyRunning
// if a worker is active or another Start is still opening its store. Errors
// opening the store are returned and no worker is started.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.starting || (s.run != nil && !s.run.finished()) {
		s.mu.Unlock()
		return ErrAlreadyRunning
	}
	s.starting = true
	s.mu.Unlock()

	// The lock is not held while connecting; starting keeps other callers out.
	store, err := s.open(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.starting = false
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}

	now := s.clock.Now()
	runCtx, cancel := context.WithCancel(context.Background())
	r := &run{
		id:        uuid.New(),
		startedAt: now,
		window:    s.window(now),
		cancel:    cancel,
		done:      make(chan struct{}),
	}
	s.run = r
	s.written = 0
	s.lastSample = nil
	s.lastErr = nil
	s.setPhaseLocked(PhaseBackfilling)

	s.log.Info("data generation started",
		slog.String("run_id", r.id.String()),
		slog.Time("backfill_start", r.window.Start),
		slog.Duration("backfill_duration", r.window.Duration),
		slog.Duration("backfill_interval", r.window.Interval))

	go s.work(runCtx, r, store)
	return nil
}

// Stop signals the worker and waits for it to exit. Once Stop returns no
// further writes happen. It returns ErrNotRunning if no worker is active.
func (s *Service) Stop() error {
	s.mu.Lock()
	r := s.run
	if r == nil || r.finished() {
		s.mu.Unlock()
		return ErrNotRunning
	}
	r.cancel()
	s.mu.Unlock()

	<-r.done
	return nil
}

// Running reports whether a worker is active.
func (s *Service) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.run != nil && !s.run.finished()
}

// Status returns the current state of the loop.
func (s *Service) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := Status{
		Running:        s.run != nil && !s.run.finished(),
		Phase:          s.phase,
		SamplesWritten: s.written,
	}
	if s.run != nil {
		startedAt := s.run.startedAt
		window := s.run.window
		st.RunID = s.run.id.String()
		st.StartedAt = &startedAt
		st.Window = &window
	}
	if s.lastSample != nil {
		sample := *s.lastSample
		st.LastSample = &sample
	}
	if s.lastErr != nil {
		st.LastError = s.lastErr.Error()
	}
	return st
}

// Failures delivers the error of a worker that stopped because a write
// failed. Callers treat it as a process-level fault.
func (s *Service) Failures() <-chan error {
	return s.failures
}

func (s *Service) work(ctx context.Context, r *run, store Store) {
	defer close(r.done)
	defer func() {
		if err := store.Close(); err != nil {
			s.log.Warn("failed to close store", slog.String("run_id", r.id.String()), logger.Err(err))
		}
	}()

	err := s.generate(ctx, r, &recordingStore{Store: store, svc: s})

	s.mu.Lock()
	s.setPhaseLocked(PhaseStopped)
	if err != nil {
		s.lastErr = err
	}
	written := s.written
	s.mu.Unlock()

	if err != nil {
		var serr *StorageError
		if errors.As(err, &serr) {
			s.observer.StorageFailed()
		}
		s.log.Error("data generation failed",
			slog.String("run_id", r.id.String()),
			slog.Int64("samples_written", written),
			logger.Err(err))
		select {
		case s.failures <- err:
		default:
		}
		return
	}
	s.log.Info("data generation stopped",
		slog.String("run_id", r.id.String()),
		slog.Int64("samples_written", written))
}

func (s *Service) generate(ctx context.Context, r *run, store Store) error {
	backfiller := NewBackfiller(s.gen, s.batch)
	backfiller.OnProgress(func(p Progress) {
		s.observer.BackfillProgress(p.Written, p.Total)
		s.log.Debug("backfill progress",
			slog.String("run_id", r.id.String()),
			slog.Int("written", p.Written),
			slog.Int("total", p.Total),
			slog.Time("cursor", p.Cursor))
	})

	cursor, err := backfiller.Run(ctx, r.window, store)
	if err != nil {
		if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
			s.log.Info("backfill interrupted", slog.String("run_id", r.id.String()))
			return nil
		}
		return fmt.Errorf("backfill: %w", err)
	}

	s.setPhase(PhaseLive)
	s.log.Info("backfill complete, continuing live",
		slog.String("run_id", r.id.String()),
		slog.Time("cursor", cursor.Time))

	return s.live(ctx, cursor, store)
}

// live appends one sample per tick after the backfilled timeline. The stop
// signal is checked before generating and again before writing; the write
// itself is never interrupted.
func (s *Service) live(ctx context.Context, cursor Cursor, store Store) error {
	writeCtx := context.WithoutCancel(ctx)
	state, drift, at := cursor.State, cursor.Drift, cursor.Time

	for {
		if ctx.Err() != nil {
			return nil
		}
		next, nextDrift, err := s.gen.GenerateAt(at, &state, &drift, s.scale)
		if err != nil {
			return fmt.Errorf("live: %w", err)
		}
		if ctx.Err() != nil {
			return nil
		}
		if err := store.Insert(writeCtx, at, next); err != nil {
			return fmt.Errorf("live: %w", err)
		}
		state, drift = next, nextDrift
		at = at.Add(s.tick)

		select {
		case <-ctx.Done():
			return nil
		case <-s.clock.After(s.tick):
		}
	}
}

func (s *Service) setPhase(p Phase) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setPhaseLocked(p)
}

func (s *Service) setPhaseLocked(p Phase) {
	s.phase = p
	s.observer.PhaseChanged(p)
}

func (s *Service) recordSample(ts time.Time, state State) {
	s.mu.Lock()
	s.written++
	s.lastSample = &Sample{Timestamp: ts, State: state}
	phase := s.phase
	s.mu.Unlock()

	s.observer.SampleWritten(phase, ts)
}

// recordingStore counts successful writes for Status and the Observer.
type recordingStore struct {
	Store
	svc *Service
}

func (r *recordingStore) Insert(ctx context.Context, ts time.Time, state State) error {
	if err := r.Store.Insert(ctx, ts, state); err != nil {
		return err
	}
	r.svc.recordSample(ts, state)
	return nil
}
