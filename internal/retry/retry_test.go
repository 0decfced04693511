package retry

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

func fastConfig(retries int) *Config {
	return &Config{
		MaxRetries:   retries,
		InitialDelay: time.Millisecond,
		MaxDelay:     5 * time.Millisecond,
		Multiplier:   2.0,
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.MaxRetries != 3 {
		t.Errorf("expected MaxRetries=3, got %d", cfg.MaxRetries)
	}
	if cfg.InitialDelay != 100*time.Millisecond {
		t.Errorf("expected InitialDelay=100ms, got %v", cfg.InitialDelay)
	}
	if cfg.MaxDelay != 5*time.Second {
		t.Errorf("expected MaxDelay=5s, got %v", cfg.MaxDelay)
	}
	if cfg.JitterFactor != 0.1 {
		t.Errorf("expected JitterFactor=0.1, got %f", cfg.JitterFactor)
	}
}

func TestDo_SuccessAfterRetries(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fastConfig(3), func() error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if calls != 3 {
		t.Errorf("expected 3 calls, got %d", calls)
	}
}

func TestDo_MaxRetriesExhausted(t *testing.T) {
	calls := 0
	want := errors.New("still down")
	err := Do(context.Background(), fastConfig(2), func() error {
		calls++
		return want
	})
	if !errors.Is(err, want) {
		t.Errorf("expected last error, got %v", err)
	}
	if calls != 3 {
		t.Errorf("expected 3 calls (1 + 2 retries), got %d", calls)
	}
}

func TestDo_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cfg := &Config{MaxRetries: 5, InitialDelay: time.Hour, MaxDelay: time.Hour, Multiplier: 2}

	calls := 0
	err := Do(ctx, cfg, func() error {
		calls++
		cancel()
		return errors.New("fail")
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if calls != 1 {
		t.Errorf("expected 1 call, got %d", calls)
	}
}

func TestDoWithResult(t *testing.T) {
	calls := 0
	got, err := DoWithResult(context.Background(), fastConfig(3), func() (int, error) {
		calls++
		if calls == 1 {
			return 0, errors.New("not yet")
		}
		return 42, nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 42 {
		t.Errorf("expected 42, got %d", got)
	}
}

type declared struct{ retry bool }

func (d declared) Error() string     { return "declared" }
func (d declared) IsRetryable() bool { return d.retry }

func TestDoIfRetryable_StopsOnPermanent(t *testing.T) {
	calls := 0
	err := DoIfRetryable(context.Background(), fastConfig(3), func() error {
		calls++
		return errors.New("access denied")
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if calls != 1 {
		t.Errorf("permanent errors must not be retried, got %d calls", calls)
	}

	calls = 0
	_ = DoIfRetryable(context.Background(), fastConfig(2), func() error {
		calls++
		return errors.New("dial tcp: connection refused")
	})
	if calls != 3 {
		t.Errorf("expected 3 calls for transient error, got %d", calls)
	}
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"refused", errors.New("dial tcp 127.0.0.1:6379: connect: connection refused"), true},
		{"loading", errors.New("LOADING Redis is loading the dataset in memory"), true},
		{"s3 slowdown", errors.New("SlowDown: Please reduce your request rate"), true},
		{"bad request", errors.New("syntax error at or near"), false},
		{"canceled", fmt.Errorf("op: %w", context.Canceled), false},
		{"deadline", context.DeadlineExceeded, false},
		{"declared yes", declared{retry: true}, true},
		{"declared no wrapped", fmt.Errorf("x: %w", declared{retry: false}), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsRetryable(tt.err); got != tt.want {
				t.Errorf("IsRetryable(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestApplyJitter(t *testing.T) {
	if got := applyJitter(time.Second, 0); got != time.Second {
		t.Errorf("zero jitter must not change delay, got %v", got)
	}
	for i := 0; i < 50; i++ {
		got := applyJitter(time.Second, 0.1)
		if got < 900*time.Millisecond || got > 1100*time.Millisecond {
			t.Fatalf("jitter out of range: %v", got)
		}
	}
}
