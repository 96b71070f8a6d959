package streams

import (
	"context"
	"log/slog"

	"github.com/aws/aws-lambda-go/events"

	"github.com/fanpulse/fanpulse/internal/aggregator"
	"github.com/fanpulse/fanpulse/internal/models"
)

// ProcessEnrichedRecords applies a batch of enriched feedback stream records
// to the rollups. INSERT images fold into the song score and rebuild the
// cloud; MODIFY images are replays of items already counted, so they only
// refresh the cloud. Records that fail to unmarshal are logged and skipped,
// one poison record must not wedge the shard.
func ProcessEnrichedRecords(ctx context.Context, agg *aggregator.Aggregator, records []events.DynamoDBEventRecord) error {
	inserts := make([]models.EnrichedFeedback, 0, len(records))
	modified := make(map[string]struct{})

	for _, record := range records {
		if record.EventName != "INSERT" && record.EventName != "MODIFY" {
			continue
		}

		var enriched models.EnrichedFeedback
		if err := UnmarshalEventStreamImage(record.Change.NewImage, &enriched); err != nil {
			slog.Error("[RollupStream] Failed to unmarshal enriched record",
				slog.String("event_id", record.EventID),
				slog.String("error", err.Error()))
			continue
		}
		if enriched.SongID == "" || enriched.SourceID == "" {
			slog.Warn("[RollupStream] Record image missing keys, skipping",
				slog.String("event_id", record.EventID))
			continue
		}

		if record.EventName == "INSERT" {
			inserts = append(inserts, enriched)
		} else {
			modified[enriched.SongID] = struct{}{}
		}
	}

	return applyPartition(ctx, agg, inserts, modified)
}

// applyPartition folds fresh inserts into the rollups, then refreshes clouds
// for songs that only saw replays. Songs covered by the insert batch already
// got their cloud rebuilt there.
func applyPartition(ctx context.Context, agg *aggregator.Aggregator, inserts []models.EnrichedFeedback, modified map[string]struct{}) error {
	if len(inserts) > 0 {
		if err := agg.ApplyBatch(ctx, inserts); err != nil {
			return err
		}
		for _, enriched := range inserts {
			delete(modified, enriched.SongID)
		}
	}

	for songID := range modified {
		if err := agg.RebuildWordCloud(ctx, songID); err != nil {
			slog.Error("[RollupStream] Failed to rebuild word cloud",
				slog.String("song_id", songID),
				slog.String("error", err.Error()))
		}
	}
	return nil
}

// NewLambdaHandler returns the function handed to lambda.Start when the
// worker runs as a stream-triggered Lambda.
func NewLambdaHandler(agg *aggregator.Aggregator) func(ctx context.Context, event events.DynamoDBEvent) error {
	return func(ctx context.Context, event events.DynamoDBEvent) error {
		slog.Info("[RollupStream] Stream event received",
			slog.Int("records", len(event.Records)))
		return ProcessEnrichedRecords(ctx, agg, event.Records)
	}
}
