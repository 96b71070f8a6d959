package db

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/fanpulse/fanpulse/config"
	"github.com/fanpulse/fanpulse/internal/models"
)

const (
	DEFAULT_FEEDBACK_TABLE    = "EnrichedFeedback"
	DEFAULT_SONG_SCORES_TABLE = "SongScores"
	DEFAULT_WORD_CLOUDS_TABLE = "WordClouds"

	maxBatchSize = 25
)

// dynamoAPI is the slice of the DynamoDB client the stores use. The real
// *dynamodb.Client satisfies it, tests swap in fakes.
type dynamoAPI interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	BatchWriteItem(ctx context.Context, params *dynamodb.BatchWriteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.BatchWriteItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
}

// FeedbackStore owns the enriched feedback table. The table keys on song_id
// with source_id as the sort key, so writing the same feedback twice lands on
// the same item and replays stay invisible.
type FeedbackStore struct {
	client dynamoAPI
	table  string
}

func NewFeedbackStore(client dynamoAPI) *FeedbackStore {
	return &FeedbackStore{
		client: client,
		table:  config.GetEnv("FEEDBACK_TABLE_NAME", DEFAULT_FEEDBACK_TABLE),
	}
}

// UpsertEnriched writes a single enriched item, replacing any previous
// version under the same (song_id, source_id).
func (s *FeedbackStore) UpsertEnriched(ctx context.Context, enriched models.EnrichedFeedback) error {
	item, err := attributevalue.MarshalMap(enriched)
	if err != nil {
		return fmt.Errorf("[DynamoDB] Failed to marshal enriched feedback: %w", err)
	}

	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.table),
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("[DynamoDB] Failed to put enriched feedback: %w", err)
	}
	return nil
}

// BatchUpsertEnriched writes enriched items in chunks of 25. Items DynamoDB
// would not take, either through a failed call or through unprocessed
// leftovers that survived the retry loop, come back to the caller so it can
// decide their fate item by item. The error return is reserved for
// cancellation.
func (s *FeedbackStore) BatchUpsertEnriched(ctx context.Context, items []models.EnrichedFeedback) ([]models.EnrichedFeedback, error) {
	var failed []models.EnrichedFeedback

	deduped := dedupeByKey(items)
	for i := 0; i < len(deduped); i += maxBatchSize {
		select {
		case <-ctx.Done():
			slog.Warn("[DynamoDB] Context cancelled during batch upsert")
			failed = append(failed, deduped[i:]...)
			return failed, ctx.Err()
		default:
		}

		end := i + maxBatchSize
		if end > len(deduped) {
			end = len(deduped)
		}
		chunk := deduped[i:end]

		byKey := make(map[string]models.EnrichedFeedback, len(chunk))
		writeRequests := make([]types.WriteRequest, 0, len(chunk))
		for _, enriched := range chunk {
			item, err := attributevalue.MarshalMap(enriched)
			if err != nil {
				slog.Error("[DynamoDB] Failed to marshal enriched feedback, skipping",
					slog.String("source_id", enriched.SourceID),
					slog.String("error", err.Error()))
				failed = append(failed, enriched)
				continue
			}
			byKey[enriched.SongID+"|"+enriched.SourceID] = enriched
			writeRequests = append(writeRequests, types.WriteRequest{
				PutRequest: &types.PutRequest{Item: item},
			})
		}
		if len(writeRequests) == 0 {
			continue
		}

		out, err := s.client.BatchWriteItem(ctx, &dynamodb.BatchWriteItemInput{
			RequestItems: map[string][]types.WriteRequest{
				s.table: writeRequests,
			},
		})
		if err != nil {
			slog.Error("[DynamoDB] Batch write failed, returning chunk to caller",
				slog.Int("items", len(chunk)),
				slog.String("error", err.Error()))
			for _, enriched := range byKey {
				failed = append(failed, enriched)
			}
			continue
		}

		retryCount := 0
		backoff := 500 * time.Millisecond
		for len(out.UnprocessedItems) > 0 && retryCount < 3 {
			time.Sleep(backoff)
			backoff *= 2
			slog.Warn("[DynamoDB] Retrying unprocessed enriched items...",
				slog.Int("attempt", retryCount+1),
				slog.Int("remaining", len(out.UnprocessedItems[s.table])))

			retry, retryErr := s.client.BatchWriteItem(ctx, &dynamodb.BatchWriteItemInput{
				RequestItems: out.UnprocessedItems,
			})
			if retryErr != nil {
				slog.Error("[DynamoDB] Error retrying batch write",
					slog.String("error", retryErr.Error()))
				break
			}
			out = retry
			retryCount++
		}

		if len(out.UnprocessedItems) > 0 {
			failed = append(failed, unprocessedToItems(out.UnprocessedItems[s.table], byKey)...)
		}
	}

	if len(failed) == 0 {
		slog.Info("[DynamoDB] Successfully stored enriched feedback batch",
			slog.Int("count", len(deduped)))
	}
	return failed, nil
}

// QueryBySong returns every enriched item stored for a song.
func (s *FeedbackStore) QueryBySong(ctx context.Context, songID string) ([]models.EnrichedFeedback, error) {
	input := &dynamodb.QueryInput{
		TableName:              aws.String(s.table),
		KeyConditionExpression: aws.String("song_id = :song"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":song": &types.AttributeValueMemberS{Value: songID},
		},
	}

	var items []models.EnrichedFeedback
	paginator := dynamodb.NewQueryPaginator(s.client, input)
	for paginator.HasMorePages() {
		out, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("[DynamoDB] Query for song feedback failed: %w", err)
		}
		var page []models.EnrichedFeedback
		if err := attributevalue.UnmarshalListOfMaps(out.Items, &page); err != nil {
			return nil, fmt.Errorf("[DynamoDB] Failed to unmarshal feedback page: %w", err)
		}
		items = append(items, page...)
	}
	return items, nil
}

// QueryTexts returns just the comment texts for a song. The word cloud
// builder only needs text, no reason to drag whole items over the wire.
func (s *FeedbackStore) QueryTexts(ctx context.Context, songID string) ([]string, error) {
	input := &dynamodb.QueryInput{
		TableName:              aws.String(s.table),
		KeyConditionExpression: aws.String("song_id = :song"),
		// "text" is a DynamoDB reserved word.
		ProjectionExpression:     aws.String("#t"),
		ExpressionAttributeNames: map[string]string{"#t": "text"},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":song": &types.AttributeValueMemberS{Value: songID},
		},
	}

	var texts []string
	paginator := dynamodb.NewQueryPaginator(s.client, input)
	for paginator.HasMorePages() {
		out, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("[DynamoDB] Query for song texts failed: %w", err)
		}
		var page []struct {
			Text string `dynamodbav:"text"`
		}
		if err := attributevalue.UnmarshalListOfMaps(out.Items, &page); err != nil {
			return nil, fmt.Errorf("[DynamoDB] Failed to unmarshal text page: %w", err)
		}
		for _, row := range page {
			texts = append(texts, row.Text)
		}
	}
	return texts, nil
}

// RollupStore owns the per-song rollup tables, scores and word clouds. Both
// key on song_id alone.
type RollupStore struct {
	client      dynamoAPI
	scoresTable string
	cloudsTable string
}

func NewRollupStore(client dynamoAPI) *RollupStore {
	return &RollupStore{
		client:      client,
		scoresTable: config.GetEnv("SONG_SCORES_TABLE_NAME", DEFAULT_SONG_SCORES_TABLE),
		cloudsTable: config.GetEnv("WORD_CLOUDS_TABLE_NAME", DEFAULT_WORD_CLOUDS_TABLE),
	}
}

// GetSongScore returns the stored score for a song, or nil when the song has
// never been scored.
func (s *RollupStore) GetSongScore(ctx context.Context, songID string) (*models.SongScore, error) {
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.scoresTable),
		Key: map[string]types.AttributeValue{
			"song_id": &types.AttributeValueMemberS{Value: songID},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("[DynamoDB] Failed to get song score: %w", err)
	}
	if len(out.Item) == 0 {
		return nil, nil
	}

	var score models.SongScore
	if err := attributevalue.UnmarshalMap(out.Item, &score); err != nil {
		return nil, fmt.Errorf("[DynamoDB] Failed to unmarshal song score: %w", err)
	}
	return &score, nil
}

func (s *RollupStore) PutSongScore(ctx context.Context, score models.SongScore) error {
	item, err := attributevalue.MarshalMap(score)
	if err != nil {
		return fmt.Errorf("[DynamoDB] Failed to marshal song score: %w", err)
	}

	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.scoresTable),
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("[DynamoDB] Failed to put song score: %w", err)
	}
	return nil
}

func (s *RollupStore) GetWordCloud(ctx context.Context, songID string) (*models.WordCloud, error) {
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.cloudsTable),
		Key: map[string]types.AttributeValue{
			"song_id": &types.AttributeValueMemberS{Value: songID},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("[DynamoDB] Failed to get word cloud: %w", err)
	}
	if len(out.Item) == 0 {
		return nil, nil
	}

	var cloud models.WordCloud
	if err := attributevalue.UnmarshalMap(out.Item, &cloud); err != nil {
		return nil, fmt.Errorf("[DynamoDB] Failed to unmarshal word cloud: %w", err)
	}
	return &cloud, nil
}

func (s *RollupStore) PutWordCloud(ctx context.Context, cloud models.WordCloud) error {
	item, err := attributevalue.MarshalMap(cloud)
	if err != nil {
		return fmt.Errorf("[DynamoDB] Failed to marshal word cloud: %w", err)
	}

	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.cloudsTable),
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("[DynamoDB] Failed to put word cloud: %w", err)
	}
	return nil
}

// dedupeByKey drops earlier duplicates of the same (song_id, source_id).
// BatchWriteItem rejects requests that name one key twice.
func dedupeByKey(items []models.EnrichedFeedback) []models.EnrichedFeedback {
	seen := make(map[string]int, len(items))
	out := make([]models.EnrichedFeedback, 0, len(items))
	for _, item := range items {
		key := item.SongID + "|" + item.SourceID
		if idx, ok := seen[key]; ok {
			out[idx] = item
			continue
		}
		seen[key] = len(out)
		out = append(out, item)
	}
	return out
}

// unprocessedToItems maps leftover write requests back to the items that
// produced them.
func unprocessedToItems(requests []types.WriteRequest, byKey map[string]models.EnrichedFeedback) []models.EnrichedFeedback {
	var items []models.EnrichedFeedback
	for _, request := range requests {
		if request.PutRequest == nil {
			continue
		}
		songID := stringAttr(request.PutRequest.Item["song_id"])
		sourceID := stringAttr(request.PutRequest.Item["source_id"])
		if enriched, ok := byKey[songID+"|"+sourceID]; ok {
			items = append(items, enriched)
		}
	}
	return items
}

func stringAttr(attr types.AttributeValue) string {
	if s, ok := attr.(*types.AttributeValueMemberS); ok {
		return s.Value
	}
	return ""
}
