package retry

import (
	"context"
	"errors"
	"testing"
	"time"
)

func fastConfig(maxRetries int) *Config {
	return &Config{
		MaxRetries:      maxRetries,
		InitialInterval: time.Millisecond,
		MaxInterval:     10 * time.Millisecond,
		Multiplier:      2.0,
		JitterFactor:    0,
	}
}

func TestRetrier_Do_TransientBrokerFailure(t *testing.T) {
	retrier := New(fastConfig(3))

	attempts := 0
	op := func(ctx context.Context) error {
		attempts++
		if attempts < 3 {
			return errors.New("broker not reachable")
		}
		return nil
	}

	result := retrier.Do(context.Background(), op)
	if result.Err != nil {
		t.Fatalf("expected delivery to succeed after retries, got %v", result.Err)
	}
	if result.Attempts != 3 {
		t.Errorf("Attempts = %d, want 3", result.Attempts)
	}
}

func TestRetrier_Do_BudgetExhausted(t *testing.T) {
	retrier := New(fastConfig(2))

	brokerErr := errors.New("broker not reachable")
	attempts := 0
	result := retrier.Do(context.Background(), func(ctx context.Context) error {
		attempts++
		return brokerErr
	})

	if !errors.Is(result.Err, ErrMaxRetriesExceeded) {
		t.Errorf("Err = %v, want ErrMaxRetriesExceeded", result.Err)
	}
	// Initial attempt plus two retries.
	if attempts != 3 || result.Attempts != 3 {
		t.Errorf("attempts = %d, result.Attempts = %d, want 3", attempts, result.Attempts)
	}
	if !errors.Is(result.LastError, brokerErr) {
		t.Errorf("LastError = %v, want the broker error", result.LastError)
	}
}

func TestRetrier_Do_PermanentStopsImmediately(t *testing.T) {
	retrier := New(fastConfig(5))

	marshalErr := errors.New("event payload does not marshal")
	attempts := 0
	result := retrier.Do(context.Background(), func(ctx context.Context) error {
		attempts++
		return Permanent(marshalErr)
	})

	if attempts != 1 {
		t.Errorf("operation called %d times, want 1 for a permanent failure", attempts)
	}
	if !errors.Is(result.Err, marshalErr) {
		t.Errorf("Err = %v, want the underlying cause", result.Err)
	}
}

func TestRetrier_Do_ContextCanceled(t *testing.T) {
	retrier := New(&Config{
		MaxRetries:      5,
		InitialInterval: time.Second,
		MaxInterval:     time.Second,
		Multiplier:      2.0,
		JitterFactor:    0,
	})

	ctx, cancel := context.WithCancel(context.Background())
	attempts := 0
	op := func(ctx context.Context) error {
		attempts++
		cancel()
		return errors.New("broker not reachable")
	}

	result := retrier.Do(ctx, op)
	if !errors.Is(result.Err, ErrContextCanceled) {
		t.Errorf("Err = %v, want ErrContextCanceled", result.Err)
	}
	if attempts != 1 {
		t.Errorf("operation called %d times, want 1 after cancellation", attempts)
	}
}

func TestRetrier_Do_ZeroRetriesIsSingleAttempt(t *testing.T) {
	retrier := New(fastConfig(0))

	attempts := 0
	result := retrier.Do(context.Background(), func(ctx context.Context) error {
		attempts++
		return errors.New("broker not reachable")
	})

	if attempts != 1 {
		t.Errorf("operation called %d times, want 1", attempts)
	}
	if !errors.Is(result.Err, ErrMaxRetriesExceeded) {
		t.Errorf("Err = %v, want ErrMaxRetriesExceeded", result.Err)
	}
}

func TestRetrier_WaitGrowsAndCaps(t *testing.T) {
	retrier := New(&Config{
		MaxRetries:      5,
		InitialInterval: 100 * time.Millisecond,
		MaxInterval:     500 * time.Millisecond,
		Multiplier:      2.0,
		JitterFactor:    0,
	})

	wants := []time.Duration{
		100 * time.Millisecond,
		200 * time.Millisecond,
		400 * time.Millisecond,
		500 * time.Millisecond, // capped
		500 * time.Millisecond,
	}
	for attempt, want := range wants {
		if got := retrier.wait(attempt); got != want {
			t.Errorf("wait(%d) = %v, want %v", attempt, got, want)
		}
	}
}

func TestRetrier_WaitJitterBounds(t *testing.T) {
	retrier := New(&Config{
		MaxRetries:      1,
		InitialInterval: 100 * time.Millisecond,
		MaxInterval:     time.Second,
		Multiplier:      2.0,
		JitterFactor:    0.5,
	})

	lo := 50 * time.Millisecond
	hi := 150 * time.Millisecond
	for i := 0; i < 100; i++ {
		if got := retrier.wait(0); got < lo || got > hi {
			t.Fatalf("wait(0) = %v, want within [%v, %v]", got, lo, hi)
		}
	}
}

func TestNew_FillsZeroConfig(t *testing.T) {
	retrier := New(nil)
	if retrier.cfg.MaxRetries != 5 {
		t.Errorf("MaxRetries = %d, want the default 5", retrier.cfg.MaxRetries)
	}

	clamped := New(&Config{JitterFactor: 3})
	if clamped.cfg.JitterFactor != 1 {
		t.Errorf("JitterFactor = %v, want clamped to 1", clamped.cfg.JitterFactor)
	}
	if clamped.cfg.InitialInterval <= 0 || clamped.cfg.Multiplier <= 0 {
		t.Error("zero intervals must be replaced with defaults")
	}
}

func TestPermanent(t *testing.T) {
	if Permanent(nil) != nil {
		t.Error("Permanent(nil) must stay nil")
	}

	cause := errors.New("event payload does not marshal")
	wrapped := Permanent(cause)
	if !errors.Is(wrapped, cause) {
		t.Error("wrapped error must unwrap to its cause")
	}
	if wrapped.Error() != cause.Error() {
		t.Errorf("Error() = %q, want %q", wrapped.Error(), cause.Error())
	}
}
