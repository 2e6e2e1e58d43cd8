// Package retry delivers operations that fail transiently, with bounded
// exponential backoff and a Kafka dead letter fallback. The ticket event
// publisher is the main consumer: a lifecycle event that still cannot be
// delivered once the retry budget is spent is parked on a dead letter
// topic for later replay.
package retry

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"time"
)

var (
	// ErrMaxRetriesExceeded is returned once the retry budget is spent
	ErrMaxRetriesExceeded = errors.New("max retries exceeded")

	// ErrContextCanceled is returned when the caller gave up first
	ErrContextCanceled = errors.New("context canceled during retry")
)

// Config bounds the backoff schedule
type Config struct {
	// MaxRetries counts retries after the initial attempt.
	// Zero means a single attempt.
	MaxRetries int
	// InitialInterval is the wait before the first retry
	InitialInterval time.Duration
	// MaxInterval caps the grown interval
	MaxInterval time.Duration
	// Multiplier grows the interval after every failed attempt
	Multiplier float64
	// JitterFactor (0..1) randomizes each wait by up to that fraction
	// either way, so concurrent publishers do not retry in lockstep
	JitterFactor float64
}

// DefaultConfig spaces attempts at roughly 1s, 2s, 4s, 8s, 16s, 30s
func DefaultConfig() *Config {
	return &Config{
		MaxRetries:      5,
		InitialInterval: time.Second,
		MaxInterval:     30 * time.Second,
		Multiplier:      2.0,
		JitterFactor:    0.1,
	}
}

// Operation is a single delivery attempt
type Operation func(ctx context.Context) error

// PermanentError marks a failure retrying cannot cure, a payload that
// will not marshal for instance. The retrier stops on the first one.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string {
	return e.Err.Error()
}

func (e *PermanentError) Unwrap() error {
	return e.Err
}

// Permanent wraps err so the retrier gives up immediately
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &PermanentError{Err: err}
}

// Result reports how a retried operation ended
type Result struct {
	// Err is nil on success, otherwise the reason retrying stopped
	Err error
	// Attempts counts every attempt made, the initial one included
	Attempts int
	// TotalDuration includes the waits between attempts
	TotalDuration time.Duration
	// LastError is the error from the final attempt
	LastError error
}

// Retrier runs operations under one backoff schedule
type Retrier struct {
	cfg *Config
}

// New creates a Retrier, filling zero config values with defaults
func New(cfg *Config) *Retrier {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.InitialInterval <= 0 {
		cfg.InitialInterval = time.Second
	}
	if cfg.MaxInterval <= 0 {
		cfg.MaxInterval = 30 * time.Second
	}
	if cfg.Multiplier <= 0 {
		cfg.Multiplier = 2.0
	}
	if cfg.JitterFactor < 0 {
		cfg.JitterFactor = 0
	}
	if cfg.JitterFactor > 1 {
		cfg.JitterFactor = 1
	}
	return &Retrier{cfg: cfg}
}

// Do runs op until it succeeds, fails permanently, exhausts the retry
// budget or the context ends.
func (r *Retrier) Do(ctx context.Context, op Operation) *Result {
	start := time.Now()
	res := &Result{}

	for attempt := 0; ; attempt++ {
		if ctx.Err() != nil {
			res.Err = ErrContextCanceled
			break
		}

		res.Attempts = attempt + 1
		err := op(ctx)
		if err == nil {
			break
		}
		res.LastError = err

		var perm *PermanentError
		if errors.As(err, &perm) {
			res.Err = perm.Err
			res.LastError = perm.Err
			break
		}

		if attempt == r.cfg.MaxRetries {
			res.Err = ErrMaxRetriesExceeded
			break
		}

		select {
		case <-ctx.Done():
			res.Err = ErrContextCanceled
		case <-time.After(r.wait(attempt)):
			continue
		}
		break
	}

	res.TotalDuration = time.Since(start)
	return res
}

// wait derives the backoff after the given zero-based attempt
func (r *Retrier) wait(attempt int) time.Duration {
	d := float64(r.cfg.InitialInterval) * math.Pow(r.cfg.Multiplier, float64(attempt))
	if j := r.cfg.JitterFactor; j > 0 {
		d += d * j * (rand.Float64()*2 - 1)
	}
	if limit := float64(r.cfg.MaxInterval); d > limit {
		d = limit
	}
	if d < 0 {
		d = float64(r.cfg.InitialInterval)
	}
	return time.Duration(d)
}
