package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/fanpulse/fanpulse/internal/metrics"
	"github.com/fanpulse/fanpulse/internal/models"
	"github.com/fanpulse/fanpulse/internal/sentiment"
)

// enrichedStore is the slice of the feedback store the dispatcher writes.
type enrichedStore interface {
	BatchUpsertEnriched(ctx context.Context, items []models.EnrichedFeedback) ([]models.EnrichedFeedback, error)
	UpsertEnriched(ctx context.Context, item models.EnrichedFeedback) error
}

// PublishFunc forwards one stored item downstream, usually onto the enriched
// topic. Publication is best effort.
type PublishFunc func(ctx context.Context, enriched models.EnrichedFeedback) error

// Dispatcher sends normalized batches through analysis and lands the results
// in storage. Writes are upserts keyed by (song_id, source_id), replays of
// the same batch cannot double count anything.
type Dispatcher struct {
	analyzer sentiment.Analyzer
	store    enrichedStore
	publish  PublishFunc
	now      func() time.Time
}

// New builds a dispatcher. publish may be nil when nothing consumes stored
// items downstream.
func New(analyzer sentiment.Analyzer, store enrichedStore, publish PublishFunc) *Dispatcher {
	return &Dispatcher{
		analyzer: analyzer,
		store:    store,
		publish:  publish,
		now:      time.Now,
	}
}

// DispatchBatch analyzes one batch and stores whatever came back. A failed
// analysis call loses the whole batch for this run; a failed storage write is
// retried once per item and then dropped. The returned stats always reflect
// what actually happened, even when an error is also returned.
func (d *Dispatcher) DispatchBatch(ctx context.Context, items []models.FeedbackItem) (models.RunStats, error) {
	var stats models.RunStats
	if len(items) == 0 {
		return stats, nil
	}

	results, err := d.analyzer.AnalyzeBatch(ctx, items)
	if err != nil {
		stats.Failed = len(items)
		metrics.AddAnalysisFailures(len(items))
		slog.Error("[Dispatcher] Analysis failed for batch",
			slog.Int("batch_size", len(items)),
			slog.String("error", err.Error()))
		return stats, err
	}

	analyzedAt := d.now().UTC()
	enriched := make([]models.EnrichedFeedback, 0, len(items))
	engineCounts := make(map[string]int)
	for _, item := range items {
		result, ok := results[item.SourceID]
		if !ok {
			stats.Failed++
			metrics.AddAnalysisFailures(1)
			slog.Warn("[Dispatcher] Analyzer returned no result for item",
				slog.String("source_id", item.SourceID),
				slog.String("song_id", item.SongID))
			continue
		}
		engineCounts[result.Engine]++
		enriched = append(enriched, models.EnrichedFeedback{
			FeedbackItem:   item,
			AnalysisResult: result,
			AnalyzedAt:     analyzedAt,
		})
	}
	stats.Analyzed = len(enriched)
	for engine, n := range engineCounts {
		metrics.AddAnalyzed(engine, n)
	}

	if len(enriched) == 0 {
		return stats, nil
	}

	leftovers, err := d.store.BatchUpsertEnriched(ctx, enriched)
	if err != nil {
		stats.Stored = len(enriched) - len(leftovers)
		stats.Dropped = len(leftovers)
		metrics.AddStored(stats.Stored)
		metrics.AddDropped(stats.Dropped)
		return stats, err
	}

	var dropped []error
	stored := make([]models.EnrichedFeedback, 0, len(enriched))
	leftoverKeys := make(map[string]struct{}, len(leftovers))
	for _, item := range leftovers {
		leftoverKeys[item.SongID+"|"+item.SourceID] = struct{}{}
	}
	for _, item := range enriched {
		if _, failedFirst := leftoverKeys[item.SongID+"|"+item.SourceID]; !failedFirst {
			stored = append(stored, item)
		}
	}

	for _, item := range leftovers {
		if retryErr := d.store.UpsertEnriched(ctx, item); retryErr != nil {
			stats.Dropped++
			metrics.AddDropped(1)
			slog.Error("[Dispatcher] Dropping feedback after storage retry",
				slog.String("source_id", item.SourceID),
				slog.String("song_id", item.SongID),
				slog.String("error", retryErr.Error()))
			dropped = append(dropped, fmt.Errorf("%w: source_id=%s", models.ErrStorageWriteFailed, item.SourceID))
			continue
		}
		stored = append(stored, item)
	}

	stats.Stored = len(stored)
	metrics.AddStored(len(stored))

	if d.publish != nil {
		for _, item := range stored {
			if pubErr := d.publish(ctx, item); pubErr != nil {
				slog.Warn("[Dispatcher] Failed to publish enriched feedback",
					slog.String("source_id", item.SourceID),
					slog.String("error", pubErr.Error()))
			}
		}
	}

	return stats, errors.Join(dropped...)
}
