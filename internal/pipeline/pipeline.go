package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/fanpulse/fanpulse/internal/metrics"
	"github.com/fanpulse/fanpulse/internal/models"
	"github.com/fanpulse/fanpulse/internal/utils"
)

const (
	// Bound on every inter-stage channel. A stalled analyzer backpressures
	// the collector instead of letting pages pile up in memory.
	channelDepth = 100

	BATCH_SIZE = 50
)

type pageCollector interface {
	CollectPages(ctx context.Context, job models.CollectionJob, handle func(models.CommentPage) error) error
}

type pageNormalizer interface {
	NormalizePage(ctx context.Context, page models.CommentPage) ([]models.FeedbackItem, models.RunStats)
}

type batchDispatcher interface {
	DispatchBatch(ctx context.Context, items []models.FeedbackItem) (models.RunStats, error)
}

// Pipeline wires collection, normalization, and dispatch into one run. Each
// stage runs in its own goroutine over bounded channels, so pages stream
// through instead of accumulating.
type Pipeline struct {
	collector  pageCollector
	normalizer pageNormalizer
	dispatcher batchDispatcher
	batchSize  int
}

func New(c pageCollector, n pageNormalizer, d batchDispatcher) *Pipeline {
	return &Pipeline{
		collector:  c,
		normalizer: n,
		dispatcher: d,
		batchSize:  BATCH_SIZE,
	}
}

// Run drives one collection job to completion and reports what happened to
// every payload. A failed batch does not stop the run; its items are counted
// and the error surfaces once the run finishes. Cancelling the context stops
// all stages promptly and returns the stats gathered so far.
func (p *Pipeline) Run(ctx context.Context, job models.CollectionJob) (models.RunStats, error) {
	start := time.Now()
	slog.Info("[Pipeline] Run starting",
		slog.String("song_id", job.SongID),
		slog.Time("window_start", job.Window.Start),
		slog.Time("window_end", job.Window.End))

	pages := make(chan models.CommentPage, channelDepth)
	items := make(chan models.FeedbackItem, channelDepth)

	var (
		mu    sync.Mutex
		total models.RunStats
		errs  []error
	)
	merge := func(stats models.RunStats) {
		mu.Lock()
		total.Merge(stats)
		mu.Unlock()
	}
	record := func(err error) {
		mu.Lock()
		errs = append(errs, err)
		mu.Unlock()
	}

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		defer close(pages)
		err := p.collector.CollectPages(ctx, job, func(page models.CommentPage) error {
			select {
			case pages <- page:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		})
		if err != nil && !errors.Is(err, context.Canceled) {
			record(err)
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		defer close(items)
		for page := range pages {
			normalized, stats := p.normalizer.NormalizePage(ctx, page)
			merge(stats)
			for _, item := range normalized {
				select {
				case items <- item:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		buffer := utils.NewBatchBuffer[models.FeedbackItem]()
		flush := func() {
			batch := buffer.GetAndClear()
			if len(batch) == 0 {
				return
			}
			stats, err := p.dispatcher.DispatchBatch(ctx, batch)
			merge(stats)
			if err != nil {
				record(err)
			}
		}
		for item := range items {
			buffer.Add(item)
			if buffer.Size() >= p.batchSize {
				flush()
			}
		}
		flush()
	}()

	wg.Wait()

	if ctxErr := ctx.Err(); ctxErr != nil {
		record(ctxErr)
	}
	mu.Lock()
	err := errors.Join(errs...)
	stats := total
	mu.Unlock()

	elapsed := time.Since(start)
	outcome := metrics.OutcomeSuccess
	if err != nil {
		outcome = metrics.OutcomeError
	}
	metrics.ObserveRun(elapsed, outcome)

	slog.Info("[Pipeline] Run complete",
		slog.String("song_id", job.SongID),
		slog.String("outcome", outcome),
		slog.Duration("elapsed", elapsed),
		slog.Int("fetched", stats.Fetched),
		slog.Int("malformed", stats.Malformed),
		slog.Int("duplicates", stats.Duplicates),
		slog.Int("analyzed", stats.Analyzed),
		slog.Int("failed", stats.Failed),
		slog.Int("stored", stats.Stored),
		slog.Int("dropped", stats.Dropped))
	return stats, err
}
