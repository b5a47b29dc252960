package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/jonboulle/clockwork"

	"github.com/i474232898/weather-data-generator/internal/logger"
	"github.com/i474232898/weather-data-generator/internal/weather"
)

// Recorder is told how many rows each prune removed.
type Recorder interface {
	Pruned(n int64)
}

// Config tunes a Scheduler.
type Config struct {
	// Retention is the age past which samples are pruned. Zero disables
	// pruning.
	Retention time.Duration

	// Interval between prune runs. Defaults to one hour.
	Interval time.Duration

	// Timeout bounds a single prune run. Defaults to five minutes.
	Timeout time.Duration

	Clock    clockwork.Clock
	Logger   *slog.Logger
	Recorder Recorder
}

// Scheduler periodically deletes samples older than the retention period.
type Scheduler struct {
	scheduler *gocron.Scheduler
	pruner    weather.Pruner
	retention time.Duration
	interval  time.Duration
	timeout   time.Duration
	clock     clockwork.Clock
	log       *slog.Logger
	recorder  Recorder
}

// New creates a new Scheduler pruning through p.
func New(p weather.Pruner, cfg Config) *Scheduler {
	s := &Scheduler{
		scheduler: gocron.NewScheduler(time.UTC),
		pruner:    p,
		retention: cfg.Retention,
		interval:  cfg.Interval,
		timeout:   cfg.Timeout,
		clock:     cfg.Clock,
		log:       cfg.Logger,
		recorder:  cfg.Recorder,
	}
	if s.interval <= 0 {
		s.interval = time.Hour
	}
	if s.timeout <= 0 {
		s.timeout = 5 * time.Minute
	}
	if s.clock == nil {
		s.clock = clockwork.NewRealClock()
	}
	if s.log == nil {
		s.log = slog.New(slog.DiscardHandler)
	}
	return s
}

// Start schedules the prune job and starts the underlying scheduler. The
// first run happens immediately.
func (s *Scheduler) Start() error {
	if s.retention <= 0 || s.pruner == nil {
		s.log.Info("scheduler: retention disabled; nothing to schedule")
		return nil
	}

	_, err := s.scheduler.Every(s.interval).SingletonMode().Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		defer cancel()

		if _, err := s.PruneOnce(ctx); err != nil {
			s.log.Error("scheduler: prune failed", logger.Err(err))
		}
	})
	if err != nil {
		return err
	}

	s.scheduler.StartAsync()
	return nil
}

// PruneOnce deletes samples recorded before now minus the retention period.
func (s *Scheduler) PruneOnce(ctx context.Context) (int64, error) {
	cutoff := s.clock.Now().Add(-s.retention)
	removed, err := s.pruner.Prune(ctx, cutoff)
	if removed > 0 && s.recorder != nil {
		s.recorder.Pruned(removed)
	}
	if err != nil {
		return removed, err
	}
	s.log.Info("scheduler: pruned old samples",
		slog.Time("cutoff", cutoff),
		slog.Int64("removed", removed))
	return removed, nil
}

// Stop stops the scheduler and cancels any future jobs.
func (s *Scheduler) Stop() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
}
