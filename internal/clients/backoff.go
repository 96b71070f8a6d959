package clients

import (
	"context"
	"time"
)

const (
	MAX_RETRIES     = 5
	INITIAL_BACKOFF = 1 * time.Second
	MAX_BACKOFF     = 32 * time.Second
	USER_AGENT      = "fanpulse-client/1.0 (+https://github.com/fanpulse/fanpulse)"
)

// BackoffPolicy is the retry schedule shared by every outbound HTTP client.
// Delays double per attempt and are capped at Max.
type BackoffPolicy struct {
	MaxRetries int
	Initial    time.Duration
	Max        time.Duration
}

func DefaultBackoff() BackoffPolicy {
	return BackoffPolicy{
		MaxRetries: MAX_RETRIES,
		Initial:    INITIAL_BACKOFF,
		Max:        MAX_BACKOFF,
	}
}

// Delay returns the pause taken after attempt (0-based) fails.
func (p BackoffPolicy) Delay(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	d := p.Initial
	for i := 0; i < attempt; i++ {
		d *= 2
		if d >= p.Max {
			return p.Max
		}
	}
	if d > p.Max {
		return p.Max
	}
	return d
}

// Wait blocks for the attempt's delay or until ctx is done.
func (p BackoffPolicy) Wait(ctx context.Context, attempt int) error {
	timer := time.NewTimer(p.Delay(attempt))
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
