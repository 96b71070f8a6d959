package streams

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodbstreams"
	streamtypes "github.com/aws/aws-sdk-go-v2/service/dynamodbstreams/types"

	"github.com/fanpulse/fanpulse/internal/aggregator"
	"github.com/fanpulse/fanpulse/internal/models"
)

const (
	DEFAULT_POLL_INTERVAL = 3 * time.Second

	getRecordsLimit = 100
)

// streamAPI is the slice of the DynamoDB Streams client the poller uses.
type streamAPI interface {
	DescribeStream(ctx context.Context, params *dynamodbstreams.DescribeStreamInput, optFns ...func(*dynamodbstreams.Options)) (*dynamodbstreams.DescribeStreamOutput, error)
	GetShardIterator(ctx context.Context, params *dynamodbstreams.GetShardIteratorInput, optFns ...func(*dynamodbstreams.Options)) (*dynamodbstreams.GetShardIteratorOutput, error)
	GetRecords(ctx context.Context, params *dynamodbstreams.GetRecordsInput, optFns ...func(*dynamodbstreams.Options)) (*dynamodbstreams.GetRecordsOutput, error)
}

// StreamPoller tails the enriched feedback table's stream without Lambda,
// for local stacks and anywhere else stream triggers are not available. It
// starts from LATEST and keeps no checkpoint, so records written while the
// poller is down are picked up by the next scheduled collection run instead.
type StreamPoller struct {
	client    streamAPI
	agg       *aggregator.Aggregator
	streamArn string
	interval  time.Duration
}

func NewStreamPoller(client streamAPI, agg *aggregator.Aggregator, streamArn string) *StreamPoller {
	return &StreamPoller{
		client:    client,
		agg:       agg,
		streamArn: streamArn,
		interval:  DEFAULT_POLL_INTERVAL,
	}
}

// Run polls every open shard until the context ends.
func (p *StreamPoller) Run(ctx context.Context) error {
	slog.Info("[StreamPoller] Starting",
		slog.String("stream_arn", p.streamArn),
		slog.Duration("interval", p.interval))

	iterators := make(map[string]string)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if len(iterators) == 0 {
			if err := p.refreshShards(ctx, iterators); err != nil {
				slog.Error("[StreamPoller] Failed to refresh shards",
					slog.String("error", err.Error()))
			}
		}

		for shardID, iterator := range iterators {
			out, err := p.client.GetRecords(ctx, &dynamodbstreams.GetRecordsInput{
				ShardIterator: aws.String(iterator),
				Limit:         aws.Int32(getRecordsLimit),
			})
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				slog.Warn("[StreamPoller] GetRecords failed, re-acquiring shard",
					slog.String("shard_id", shardID),
					slog.String("error", err.Error()))
				delete(iterators, shardID)
				continue
			}

			if len(out.Records) > 0 {
				if err := p.applyRecords(ctx, out.Records); err != nil {
					slog.Error("[StreamPoller] Failed to apply stream records",
						slog.Int("records", len(out.Records)),
						slog.String("error", err.Error()))
				}
			}

			if out.NextShardIterator == nil {
				// Shard closed; its successor shows up on the next refresh.
				delete(iterators, shardID)
			} else {
				iterators[shardID] = *out.NextShardIterator
			}
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(p.interval):
		}
	}
}

func (p *StreamPoller) refreshShards(ctx context.Context, iterators map[string]string) error {
	out, err := p.client.DescribeStream(ctx, &dynamodbstreams.DescribeStreamInput{
		StreamArn: aws.String(p.streamArn),
	})
	if err != nil {
		return err
	}
	if out.StreamDescription == nil {
		return fmt.Errorf("stream description empty for %s", p.streamArn)
	}

	for _, shard := range out.StreamDescription.Shards {
		if shard.ShardId == nil {
			continue
		}
		if _, tracked := iterators[*shard.ShardId]; tracked {
			continue
		}

		iterOut, err := p.client.GetShardIterator(ctx, &dynamodbstreams.GetShardIteratorInput{
			StreamArn:         aws.String(p.streamArn),
			ShardId:           shard.ShardId,
			ShardIteratorType: streamtypes.ShardIteratorTypeLatest,
		})
		if err != nil {
			slog.Warn("[StreamPoller] Failed to get shard iterator",
				slog.String("shard_id", *shard.ShardId),
				slog.String("error", err.Error()))
			continue
		}
		if iterOut.ShardIterator != nil {
			iterators[*shard.ShardId] = *iterOut.ShardIterator
		}
	}

	slog.Debug("[StreamPoller] Tracking shards", slog.Int("count", len(iterators)))
	return nil
}

func (p *StreamPoller) applyRecords(ctx context.Context, records []streamtypes.Record) error {
	inserts := make([]models.EnrichedFeedback, 0, len(records))
	modified := make(map[string]struct{})

	for _, record := range records {
		if record.Dynamodb == nil {
			continue
		}
		switch record.EventName {
		case streamtypes.OperationTypeInsert, streamtypes.OperationTypeModify:
		default:
			continue
		}

		var enriched models.EnrichedFeedback
		if err := UnmarshalStreamImage(record.Dynamodb.NewImage, &enriched); err != nil {
			slog.Error("[StreamPoller] Failed to unmarshal stream record",
				slog.String("error", err.Error()))
			continue
		}
		if enriched.SongID == "" || enriched.SourceID == "" {
			continue
		}

		if record.EventName == streamtypes.OperationTypeInsert {
			inserts = append(inserts, enriched)
		} else {
			modified[enriched.SongID] = struct{}{}
		}
	}

	return applyPartition(ctx, p.agg, inserts, modified)
}
