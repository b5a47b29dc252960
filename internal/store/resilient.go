package store

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/lib/pq"
	"github.com/sony/gobreaker"
)

// BackoffConfig controls exponential backoff behaviour.
type BackoffConfig struct {
	MaxRetries      int
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// DefaultBackoff is used when no backoff is configured.
var DefaultBackoff = BackoffConfig{
	MaxRetries:      3,
	InitialInterval: 200 * time.Millisecond,
	MaxInterval:     5 * time.Second,
}

var (
	errCircuitOpen   = errors.New("circuit breaker open")
	errInvalidConfig = errors.New("invalid backoff configuration")
)

// Retrier executes store writes with retries, exponential backoff and a
// circuit breaker. Errors the database will reject again (bad data,
// constraint or schema violations) are returned without retrying.
type Retrier struct {
	backoff BackoffConfig
	circuit *gobreaker.CircuitBreaker
}

// NewRetrier returns a Retrier whose breaker is reported under name.
func NewRetrier(name string, backoff BackoffConfig) *Retrier {
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 5,
		Interval:    1 * time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		IsSuccessful: func(err error) bool {
			return err == nil || isPermanent(err)
		},
	})

	return &Retrier{backoff: backoff, circuit: cb}
}

// State reports the breaker state.
func (r *Retrier) State() gobreaker.State {
	return r.circuit.State()
}

// Do runs op until it succeeds, fails permanently or retries are exhausted.
func (r *Retrier) Do(ctx context.Context, op func(ctx context.Context) error) error {
	if r.backoff.MaxRetries < 0 || r.backoff.InitialInterval <= 0 {
		return errInvalidConfig
	}

	var attempt int
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		_, err := r.circuit.Execute(func() (interface{}, error) {
			return nil, op(ctx)
		})
		if err == nil {
			return nil
		}

		// If circuit is open, propagate immediately.
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return fmt.Errorf("%w: %v", errCircuitOpen, err)
		}
		if isPermanent(err) || attempt >= r.backoff.MaxRetries {
			return err
		}

		// Backoff with exponential delay.
		delay := r.backoff.InitialInterval * time.Duration(math.Pow(2, float64(attempt)))
		if delay > r.backoff.MaxInterval && r.backoff.MaxInterval > 0 {
			delay = r.backoff.MaxInterval
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}

		attempt++
	}
}

// isPermanent reports errors a retry cannot fix: data exceptions, integrity
// constraint violations and syntax or access rule violations.
func isPermanent(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code.Class() {
		case "22", "23", "42":
			return true
		}
	}
	return false
}
