package weather

import (
	"context"
	"fmt"
	"time"
)

// DefaultBatchSize is how many backfill samples are written between two
// progress reports.
const DefaultBatchSize = 3600

// Progress reports how far a backfill has got.
type Progress struct {
	Written int
	Total   int
	Cursor  time.Time
}

// Backfiller replays a Snapshotter across a historical window, writing each
// sample to the store as soon as it is produced.
type Backfiller struct {
	gen        Snapshotter
	batchSize  int
	onProgress func(Progress)
}

// NewBackfiller returns a Backfiller reporting progress every batchSize
// samples. A non-positive batchSize means DefaultBatchSize.
func NewBackfiller(gen Snapshotter, batchSize int) *Backfiller {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &Backfiller{gen: gen, batchSize: batchSize}
}

// OnProgress registers fn to be called after every batch and once at the end.
func (b *Backfiller) OnProgress(fn func(Progress)) {
	b.onProgress = fn
}

// Run generates the samples of w and writes them to store.
//
// The first sample is unconditioned and stamped w.Start; each following one
// is conditioned on its predecessor with scale w.Interval.Seconds(). Samples
// stop once the cursor reaches w.End(), so a zero-length window still yields
// the single sample at w.Start.
//
// ctx is checked before every sample. Writes are never cut short by ctx: an
// insert that has started completes. On cancellation the returned Cursor
// holds the last written state and the error wraps ctx.Err().
func (b *Backfiller) Run(ctx context.Context, w Window, store Store) (Cursor, error) {
	if w.Interval <= 0 {
		return Cursor{}, fmt.Errorf("%w: backfill interval must be positive, got %s", ErrInvalidArgument, w.Interval)
	}
	if w.Duration < 0 {
		return Cursor{}, fmt.Errorf("%w: backfill duration must not be negative, got %s", ErrInvalidArgument, w.Duration)
	}
	if err := ctx.Err(); err != nil {
		return Cursor{}, fmt.Errorf("backfill not started: %w", err)
	}

	writeCtx := context.WithoutCancel(ctx)
	total := w.Steps()
	end := w.End()
	scale := w.Interval.Seconds()

	state, drift, err := b.gen.GenerateAt(w.Start, nil, nil, scale)
	if err != nil {
		return Cursor{}, err
	}
	if err := store.Insert(writeCtx, w.Start, state); err != nil {
		return Cursor{}, err
	}
	written := 1
	cursor := w.Start.Add(w.Interval)

	for cursor.Before(end) {
		if written%b.batchSize == 0 {
			b.report(written, total, cursor)
		}
		if err := ctx.Err(); err != nil {
			return Cursor{State: state, Drift: drift, Time: cursor},
				fmt.Errorf("backfill interrupted at %s: %w", cursor.Format(time.RFC3339), err)
		}

		state, drift, err = b.gen.GenerateAt(cursor, &state, &drift, scale)
		if err != nil {
			return Cursor{}, err
		}
		if err := store.Insert(writeCtx, cursor, state); err != nil {
			return Cursor{}, err
		}
		written++
		cursor = cursor.Add(w.Interval)
	}

	b.report(written, total, cursor)
	return Cursor{State: state, Drift: drift, Time: cursor}, nil
}

func (b *Backfiller) report(written, total int, cursor time.Time) {
	if b.onProgress != nil {
		b.onProgress(Progress{Written: written, Total: total, Cursor: cursor})
	}
}
