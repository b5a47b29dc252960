package weather

import (
	"context"
	"time"
)

// Store is the append-only sink generated samples are written to. Insert
// writes every field of the state under the same timestamp; fields are
// committed independently, so a failure can leave a partial timestamp.
type Store interface {
	Insert(ctx context.Context, ts time.Time, state State) error
	Close() error
}

// Opener opens a Store for the exclusive use of one generation run.
type Opener func(ctx context.Context) (Store, error)

// Pruner deletes samples recorded before a cutoff.
type Pruner interface {
	Prune(ctx context.Context, before time.Time) (int64, error)
}
