package sentiment

import (
	"context"
	"log/slog"
	"strings"
	"sync/atomic"

	"github.com/fanpulse/fanpulse/internal/models"
)

// Analyzer produces one AnalysisResult per feedback item, keyed by source id.
// Items missing from the result map failed individually; a returned error
// fails the whole batch.
type Analyzer interface {
	Name() string
	AnalyzeBatch(ctx context.Context, items []models.FeedbackItem) (map[string]models.AnalysisResult, error)
}

// sentimentService is the slice of the analyzer client the remote analyzer
// needs. Tests substitute a fake.
type sentimentService interface {
	GetBatchedSentimentAnalysis(ctx context.Context, input models.AnalyzeBatchRequest) (models.AnalyzeBatchResponse, error)
}

// RemoteAnalyzer sends batches to the hosted sentiment service and optionally
// fills in entities through a separate extractor when the service returns
// none.
type RemoteAnalyzer struct {
	svc       sentimentService
	extractor EntityExtractor
}

func NewRemoteAnalyzer(svc sentimentService, extractor EntityExtractor) *RemoteAnalyzer {
	return &RemoteAnalyzer{svc: svc, extractor: extractor}
}

func (r *RemoteAnalyzer) Name() string { return models.EngineRemote }

func (r *RemoteAnalyzer) AnalyzeBatch(ctx context.Context, items []models.FeedbackItem) (map[string]models.AnalysisResult, error) {
	if len(items) == 0 {
		return map[string]models.AnalysisResult{}, nil
	}

	request := make(models.AnalyzeBatchRequest, 0, len(items))
	for _, item := range items {
		request = append(request, models.AnalyzeRequest{
			FeedbackID: item.SourceID,
			Text:       item.Text,
		})
	}

	response, err := r.svc.GetBatchedSentimentAnalysis(ctx, request)
	if err != nil {
		return nil, err
	}

	results := make(map[string]models.AnalysisResult, len(response))
	missingEntities := false
	for _, res := range response {
		if res.FeedbackID == "" {
			continue
		}
		if len(res.Entities) == 0 {
			missingEntities = true
		}
		results[res.FeedbackID] = models.AnalysisResult{
			SentimentLabel: normalizeLabel(res.SentimentLabel),
			SentimentScore: res.SentimentScore,
			Scores:         res.Scores,
			Entities:       res.Entities,
			Engine:         models.EngineRemote,
		}
	}

	if r.extractor != nil && missingEntities {
		r.mergeEntities(ctx, items, results)
	}

	return results, nil
}

// mergeEntities backfills entity sets for items the service left empty.
// Extraction is enrichment only; its failure never fails the batch.
func (r *RemoteAnalyzer) mergeEntities(ctx context.Context, items []models.FeedbackItem, results map[string]models.AnalysisResult) {
	pending := make([]models.FeedbackItem, 0, len(items))
	for _, item := range items {
		res, ok := results[item.SourceID]
		if ok && len(res.Entities) == 0 {
			pending = append(pending, item)
		}
	}
	if len(pending) == 0 {
		return
	}

	entities, err := r.extractor.ExtractBatch(ctx, pending)
	if err != nil {
		slog.Warn("[RemoteAnalyzer] Entity extraction failed, continuing without entities",
			slog.Int("items", len(pending)),
			slog.String("error", err.Error()))
		return
	}

	for sourceID, ents := range entities {
		res, ok := results[sourceID]
		if !ok || len(res.Entities) > 0 || len(ents) == 0 {
			continue
		}
		res.Entities = ents
		results[sourceID] = res
	}
}

// FallbackAnalyzer routes batches to the primary analyzer and falls back when
// the health monitor reports it down or a batch fails outright.
type FallbackAnalyzer struct {
	Primary  Analyzer
	Fallback Analyzer
	Healthy  *atomic.Bool
}

func NewFallbackAnalyzer(primary, fallback Analyzer, healthy *atomic.Bool) *FallbackAnalyzer {
	return &FallbackAnalyzer{Primary: primary, Fallback: fallback, Healthy: healthy}
}

func (f *FallbackAnalyzer) Name() string { return f.Primary.Name() }

func (f *FallbackAnalyzer) AnalyzeBatch(ctx context.Context, items []models.FeedbackItem) (map[string]models.AnalysisResult, error) {
	if f.Healthy != nil && !f.Healthy.Load() {
		slog.Warn("[FallbackAnalyzer] Primary analyzer unhealthy, using fallback",
			slog.String("fallback", f.Fallback.Name()),
			slog.Int("batch_size", len(items)))
		return f.Fallback.AnalyzeBatch(ctx, items)
	}

	results, err := f.Primary.AnalyzeBatch(ctx, items)
	if err == nil {
		return results, nil
	}
	if ctx.Err() != nil {
		return nil, err
	}

	slog.Warn("[FallbackAnalyzer] Primary analyzer failed, using fallback",
		slog.String("fallback", f.Fallback.Name()),
		slog.String("error", err.Error()))
	return f.Fallback.AnalyzeBatch(ctx, items)
}

func normalizeLabel(label string) string {
	switch strings.ToUpper(strings.TrimSpace(label)) {
	case models.SentimentPositive:
		return models.SentimentPositive
	case models.SentimentNegative:
		return models.SentimentNegative
	default:
		return models.SentimentNeutral
	}
}
