package clients

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestBackoffDelayDoublesToCap(t *testing.T) {
	policy := BackoffPolicy{MaxRetries: 5, Initial: 1 * time.Second, Max: 8 * time.Second}

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{-1, 1 * time.Second},
		{0, 1 * time.Second},
		{1, 2 * time.Second},
		{2, 4 * time.Second},
		{3, 8 * time.Second},
		{4, 8 * time.Second},
		{10, 8 * time.Second},
	}
	for _, tt := range tests {
		if got := policy.Delay(tt.attempt); got != tt.want {
			t.Errorf("Delay(%d) = %v, want %v", tt.attempt, got, tt.want)
		}
	}
}

func TestBackoffDelayInitialAboveCap(t *testing.T) {
	policy := BackoffPolicy{MaxRetries: 3, Initial: 10 * time.Second, Max: 4 * time.Second}
	if got := policy.Delay(0); got != 4*time.Second {
		t.Errorf("Delay(0) = %v, want the cap", got)
	}
}

func TestBackoffWaitCancelled(t *testing.T) {
	policy := BackoffPolicy{MaxRetries: 3, Initial: time.Minute, Max: time.Minute}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := policy.Wait(ctx, 0); !errors.Is(err, context.Canceled) {
		t.Errorf("Wait() = %v, want context.Canceled", err)
	}
}

func TestBackoffWaitElapses(t *testing.T) {
	policy := BackoffPolicy{MaxRetries: 3, Initial: time.Millisecond, Max: time.Millisecond}
	if err := policy.Wait(context.Background(), 0); err != nil {
		t.Errorf("Wait() = %v, want nil", err)
	}
}
