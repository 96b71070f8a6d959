package streams

import (
	"context"
	"testing"

	"github.com/aws/aws-lambda-go/events"
	streamtypes "github.com/aws/aws-sdk-go-v2/service/dynamodbstreams/types"

	"github.com/fanpulse/fanpulse/internal/aggregator"
	"github.com/fanpulse/fanpulse/internal/models"
)

type fakeReader struct {
	texts map[string][]string
}

func (f *fakeReader) QueryTexts(_ context.Context, songID string) ([]string, error) {
	return f.texts[songID], nil
}

type fakeRollups struct {
	scores    map[string]*models.SongScore
	putScores []models.SongScore
	putClouds []models.WordCloud
}

func (f *fakeRollups) GetSongScore(_ context.Context, songID string) (*models.SongScore, error) {
	return f.scores[songID], nil
}

func (f *fakeRollups) PutSongScore(_ context.Context, score models.SongScore) error {
	f.putScores = append(f.putScores, score)
	return nil
}

func (f *fakeRollups) PutWordCloud(_ context.Context, cloud models.WordCloud) error {
	f.putClouds = append(f.putClouds, cloud)
	return nil
}

func enrichedImage(songID, sourceID, text string) map[string]events.DynamoDBAttributeValue {
	return map[string]events.DynamoDBAttributeValue{
		"song_id":         events.NewStringAttribute(songID),
		"source_id":       events.NewStringAttribute(sourceID),
		"text":            events.NewStringAttribute(text),
		"sentiment_label": events.NewStringAttribute(models.SentimentPositive),
		"sentiment_score": events.NewNumberAttribute("0.9"),
		"scores": events.NewMapAttribute(map[string]events.DynamoDBAttributeValue{
			"positive": events.NewNumberAttribute("0.9"),
			"neutral":  events.NewNumberAttribute("0.1"),
			"negative": events.NewNumberAttribute("0"),
		}),
	}
}

func record(eventName, eventID string, image map[string]events.DynamoDBAttributeValue) events.DynamoDBEventRecord {
	return events.DynamoDBEventRecord{
		EventID:   eventID,
		EventName: eventName,
		Change: events.DynamoDBStreamRecord{
			NewImage: image,
		},
	}
}

func TestProcessEnrichedRecordsFoldsInserts(t *testing.T) {
	rollups := &fakeRollups{}
	agg := aggregator.New(&fakeReader{texts: map[string][]string{
		"song": {"banger banger", "banger chorus"},
	}}, rollups)

	records := []events.DynamoDBEventRecord{
		record("INSERT", "e1", enrichedImage("song", "src-1", "banger banger")),
		record("INSERT", "e2", enrichedImage("song", "src-2", "banger chorus")),
		record("REMOVE", "e3", nil),
	}
	if err := ProcessEnrichedRecords(context.Background(), agg, records); err != nil {
		t.Fatalf("ProcessEnrichedRecords: %v", err)
	}

	if len(rollups.putScores) != 1 {
		t.Fatalf("put %d scores, want 1", len(rollups.putScores))
	}
	if rollups.putScores[0].CommentCount != 2 {
		t.Errorf("comment count = %d, want 2", rollups.putScores[0].CommentCount)
	}
	if len(rollups.putClouds) != 1 {
		t.Fatalf("put %d clouds, want 1", len(rollups.putClouds))
	}
	if len(rollups.putClouds[0].Words) == 0 || rollups.putClouds[0].Words[0] != "banger" {
		t.Errorf("cloud = %v", rollups.putClouds[0].Words)
	}
}

func TestProcessEnrichedRecordsModifyOnlyRefreshesCloud(t *testing.T) {
	rollups := &fakeRollups{}
	agg := aggregator.New(&fakeReader{texts: map[string][]string{
		"song": {"replay chorus"},
	}}, rollups)

	records := []events.DynamoDBEventRecord{
		record("MODIFY", "e1", enrichedImage("song", "src-1", "replay chorus")),
	}
	if err := ProcessEnrichedRecords(context.Background(), agg, records); err != nil {
		t.Fatalf("ProcessEnrichedRecords: %v", err)
	}

	if len(rollups.putScores) != 0 {
		t.Errorf("put %d scores, want replays to leave the score alone", len(rollups.putScores))
	}
	if len(rollups.putClouds) != 1 {
		t.Errorf("put %d clouds, want 1", len(rollups.putClouds))
	}
}

func TestProcessEnrichedRecordsSkipsBadImages(t *testing.T) {
	rollups := &fakeRollups{}
	agg := aggregator.New(&fakeReader{}, rollups)

	records := []events.DynamoDBEventRecord{
		record("INSERT", "e1", nil),
		record("INSERT", "e2", enrichedImage("", "", "missing keys")),
	}
	if err := ProcessEnrichedRecords(context.Background(), agg, records); err != nil {
		t.Fatalf("ProcessEnrichedRecords: %v", err)
	}
	if len(rollups.putScores) != 0 || len(rollups.putClouds) != 0 {
		t.Errorf("rollups touched by bad records: %+v", rollups)
	}
}

func TestUnmarshalStreamImage(t *testing.T) {
	image := map[string]streamtypes.AttributeValue{
		"song_id":   &streamtypes.AttributeValueMemberS{Value: "song"},
		"source_id": &streamtypes.AttributeValueMemberS{Value: "src-1"},
		"text":      &streamtypes.AttributeValueMemberS{Value: "hello"},
		"scores": &streamtypes.AttributeValueMemberM{Value: map[string]streamtypes.AttributeValue{
			"positive": &streamtypes.AttributeValueMemberN{Value: "0.75"},
		}},
	}

	var enriched models.EnrichedFeedback
	if err := UnmarshalStreamImage(image, &enriched); err != nil {
		t.Fatalf("UnmarshalStreamImage: %v", err)
	}
	if enriched.SongID != "song" || enriched.SourceID != "src-1" || enriched.Text != "hello" {
		t.Errorf("enriched = %+v", enriched)
	}
	if enriched.Scores.Positive != 0.75 {
		t.Errorf("positive = %v, want 0.75", enriched.Scores.Positive)
	}
}
