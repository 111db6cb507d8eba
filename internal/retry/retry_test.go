package retry

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestDoSuccess(t *testing.T) {
	config := Exponential(3, time.Millisecond, 10*time.Millisecond)

	calls := 0
	result := Do(context.Background(), config, func() error {
		calls++
		return nil
	})

	if result.Err != nil {
		t.Errorf("expected no error, got %v", result.Err)
	}
	if calls != 1 {
		t.Errorf("expected 1 call, got %d", calls)
	}
}

func TestDoRetryThenSuccess(t *testing.T) {
	config := Config{
		MaxAttempts:  5,
		InitialDelay: time.Millisecond,
		MaxDelay:     10 * time.Millisecond,
		Factor:       2.0,
	}

	calls := 0
	result := Do(context.Background(), config, func() error {
		calls++
		if calls < 3 {
			return errors.New("temporary error")
		}
		return nil
	})

	if result.Err != nil {
		t.Errorf("expected no error, got %v", result.Err)
	}
	if result.Attempts != 3 {
		t.Errorf("expected 3 attempts, got %d", result.Attempts)
	}
}

func TestDoExhaustsMaxAttempts(t *testing.T) {
	config := Config{
		MaxAttempts:  3,
		InitialDelay: time.Millisecond,
		MaxDelay:     5 * time.Millisecond,
		Factor:       2.0,
	}

	calls := 0
	result := Do(context.Background(), config, func() error {
		calls++
		return errors.New("permanent failure")
	})

	if result.Err == nil {
		t.Error("expected an error")
	}
	if calls != 3 {
		t.Errorf("expected 3 calls, got %d", calls)
	}
}

func TestDoStopsOnPermanentError(t *testing.T) {
	calls := 0
	result := Do(context.Background(), Exponential(5, time.Millisecond, 10*time.Millisecond), func() error {
		calls++
		return Permanent(errors.New("do not retry me"))
	})
	if calls != 1 {
		t.Errorf("expected 1 call for a permanent error, got %d", calls)
	}
	if !IsPermanent(result.Err) {
		t.Error("expected result.Err to be permanent")
	}
}

func TestNextDelayGrowsWithAttempt(t *testing.T) {
	config := Config{InitialDelay: 10 * time.Millisecond, MaxDelay: time.Second, Factor: 2.0}
	d1 := NextDelay(1, config)
	d3 := NextDelay(3, config)
	if d3 <= d1 {
		t.Errorf("expected delay to grow: attempt1=%v attempt3=%v", d1, d3)
	}
}

func TestNextDelayCapsAtMax(t *testing.T) {
	config := Config{InitialDelay: time.Second, MaxDelay: 2 * time.Second, Factor: 10.0}
	d := NextDelay(10, config)
	if d > 2*time.Second {
		t.Errorf("expected delay capped at 2s, got %v", d)
	}
}
