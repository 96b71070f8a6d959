package consumers

import (
	"context"
	"log/slog"
	"time"

	"github.com/confluentinc/confluent-kafka-go/kafka"

	"github.com/fanpulse/fanpulse/internal/aggregator"
	"github.com/fanpulse/fanpulse/internal/clients"
	"github.com/fanpulse/fanpulse/internal/clients/kafka_client"
	"github.com/fanpulse/fanpulse/internal/db"
	"github.com/fanpulse/fanpulse/internal/models"
	"github.com/fanpulse/fanpulse/internal/utils"
)

var rollupBuffer = utils.NewBatchBuffer[models.EnrichedFeedback]()

// StartRollupConsumer folds enriched feedback into the per-song score and
// word cloud tables. Offsets commit after the fold either way: replaying a
// batch into the score combine would double count it.
func StartRollupConsumer(ctx context.Context, consumer *kafka.Consumer) {
	iterator := kafka_client.NewKafkaMessageIterator(ctx, consumer)
	committer := kafka_client.NewCommitHandler(ctx, consumer)

	dynamo := clients.GetDynamoDBClient()
	agg := aggregator.New(db.NewFeedbackStore(dynamo), db.NewRollupStore(dynamo))

	ticker := time.NewTicker(kafka_client.BATCH_TIMEOUT)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Warn("[RollupConsumer] Consumer shutting down...")
			flushRollups(ctx, agg, committer)
			return
		case <-ticker.C:
			flushRollups(ctx, agg, committer)
		default:
			msg, err := iterator.Next()
			if err != nil {
				utils.HandleConsumerError(err)
				continue
			}

			var enriched models.EnrichedFeedback
			if err := utils.DeserializeFromJSON(msg.Value, &enriched); err != nil {
				utils.HandleConsumerError(err)
				continue
			}

			utils.TrackMessage(enriched.SourceID, msg)
			rollupBuffer.Add(enriched)
			if rollupBuffer.Size() >= kafka_client.BATCH_SIZE {
				flushRollups(ctx, agg, committer)
			}
		}
	}
}

func flushRollups(ctx context.Context, agg *aggregator.Aggregator, committer *kafka_client.KafkaCommitHandler) {
	batch := rollupBuffer.GetAndClear()
	if len(batch) == 0 {
		return
	}

	if err := agg.ApplyBatch(ctx, batch); err != nil {
		slog.Error("[RollupConsumer] Failed to apply rollup batch",
			slog.Int("batch_size", len(batch)),
			slog.String("error", err.Error()))
	}

	for _, enriched := range batch {
		msg, found := utils.GetMessageForFeedback(enriched.SourceID)
		if !found {
			continue
		}
		if err := committer.Commit(msg); err != nil {
			slog.Warn("[RollupConsumer] Failed to commit offset",
				slog.String("error", err.Error()))
		}
	}
}
