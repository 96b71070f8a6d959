package monitoring

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/fanpulse/fanpulse/internal/clients"
)

const HEALTHCHECK_TIMER = 15

var analyzerHealthy atomic.Bool

// AnalyzerHealthy is the shared flag the monitor keeps current. Consumers
// hand it to the fallback analyzer so batches skip a dead service without
// waiting out its timeout.
func AnalyzerHealthy() *atomic.Bool {
	return &analyzerHealthy
}

// MonitorAnalyzerHealth probes the sentiment service until the context ends.
// It probes once immediately so startup does not sit in fallback for the
// first tick.
func MonitorAnalyzerHealth(ctx context.Context, healthy *atomic.Bool) {
	probe := func() {
		err := clients.GetAnalyzerClient().HealthCheck(ctx)
		healthy.Store(err == nil)
		if err != nil {
			slog.Warn("[HealthCheck] Analyzer is unhealthy",
				slog.String("error", err.Error()))
		}
	}
	probe()

	ticker := time.NewTicker(time.Second * HEALTHCHECK_TIMER)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			probe()
		}
	}
}
