package consumers

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/confluentinc/confluent-kafka-go/kafka"

	"github.com/fanpulse/fanpulse/config"
	"github.com/fanpulse/fanpulse/internal/clients"
	"github.com/fanpulse/fanpulse/internal/clients/kafka_client"
	"github.com/fanpulse/fanpulse/internal/db"
	"github.com/fanpulse/fanpulse/internal/dispatcher"
	"github.com/fanpulse/fanpulse/internal/models"
	"github.com/fanpulse/fanpulse/internal/monitoring"
	"github.com/fanpulse/fanpulse/internal/normalizer"
	"github.com/fanpulse/fanpulse/internal/sentiment"
	"github.com/fanpulse/fanpulse/internal/utils"
)

var feedbackBuffer = utils.NewBatchBuffer[models.FeedbackItem]()

// StartFeedbackConsumer drains the raw feedback topic. Pages are normalized
// and deduped against Valkey, then batched into the dispatcher for analysis
// and storage. Offsets commit once the batch carrying an item has been
// dispatched.
func StartFeedbackConsumer(ctx context.Context, consumer *kafka.Consumer) {
	iterator := kafka_client.NewKafkaMessageIterator(ctx, consumer)
	committer := kafka_client.NewCommitHandler(ctx, consumer)

	norm := normalizer.New(normalizer.NewValkeySeen(clients.GetValkeyClient()))
	disp := dispatcher.New(buildAnalyzer(), db.NewFeedbackStore(clients.GetDynamoDBClient()), publishEnriched)

	ticker := time.NewTicker(kafka_client.BATCH_TIMEOUT)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Warn("[FeedbackConsumer] Consumer shutting down...")
			flushFeedback(ctx, disp, committer)
			return
		case <-ticker.C:
			flushFeedback(ctx, disp, committer)
		default:
			msg, err := iterator.Next()
			if err != nil {
				utils.HandleConsumerError(err)
				continue
			}

			var page models.CommentPage
			if err := utils.DeserializeFromJSON(msg.Value, &page); err != nil {
				utils.HandleConsumerError(err)
				continue
			}

			items, stats := norm.NormalizePage(ctx, page)
			slog.Debug("[FeedbackConsumer] Page normalized",
				slog.String("song_id", page.SongID),
				slog.Int("fetched", stats.Fetched),
				slog.Int("malformed", stats.Malformed),
				slog.Int("duplicates", stats.Duplicates))

			for _, item := range items {
				utils.TrackMessage(item.SourceID, msg)
				feedbackBuffer.Add(item)
			}
			if feedbackBuffer.Size() >= kafka_client.BATCH_SIZE {
				flushFeedback(ctx, disp, committer)
			}
		}
	}
}

func flushFeedback(ctx context.Context, disp *dispatcher.Dispatcher, committer *kafka_client.KafkaCommitHandler) {
	batch := feedbackBuffer.GetAndClear()
	if len(batch) == 0 {
		return
	}

	stats, err := disp.DispatchBatch(ctx, batch)
	if err != nil {
		slog.Error("[FeedbackConsumer] Batch dispatch finished with errors",
			slog.Int("analyzed", stats.Analyzed),
			slog.Int("failed", stats.Failed),
			slog.Int("dropped", stats.Dropped),
			slog.String("error", err.Error()))
	}

	// An analysis outage holds offsets back so the broker redelivers the
	// batch; the upsert keyed on (song_id, source_id) absorbs the replays.
	// Storage drops are final and committed through.
	if errors.Is(err, models.ErrAnalysisUnavailable) {
		for _, item := range batch {
			feedbackBuffer.Add(item)
		}
		return
	}

	for _, item := range batch {
		msg, found := utils.GetMessageForFeedback(item.SourceID)
		if !found {
			continue
		}
		if err := committer.Commit(msg); err != nil {
			slog.Warn("[FeedbackConsumer] Failed to commit offset",
				slog.String("error", err.Error()))
		}
	}
}

// buildAnalyzer assembles the analyzer chain used in streaming mode: the
// hosted service first, VADER when it is down, OpenAI entity extraction when
// a key is present. ANALYZER_MODE=local swaps in the ONNX pipeline instead.
func buildAnalyzer() sentiment.Analyzer {
	if config.GetEnv("ANALYZER_MODE", "") == "local" {
		local, err := sentiment.NewLocalAnalyzer()
		if err == nil {
			return local
		}
		slog.Error("[FeedbackConsumer] Local analyzer unavailable, using remote chain",
			slog.String("error", err.Error()))
	}

	var extractor sentiment.EntityExtractor
	if clients.OpenAIConfigured() {
		extractor = sentiment.NewOpenAIExtractor(clients.GetOpenAIClient())
	}
	remote := sentiment.NewRemoteAnalyzer(clients.GetAnalyzerClient(), extractor)
	return sentiment.NewFallbackAnalyzer(remote, sentiment.VaderAnalyzer{}, monitoring.AnalyzerHealthy())
}

func publishEnriched(ctx context.Context, enriched models.EnrichedFeedback) error {
	return kafka_client.PublishToKafka(ctx, kafka_client.KAFKA_TOPIC_ENRICHED_FEEDBACK, enriched.SongID, enriched)
}
