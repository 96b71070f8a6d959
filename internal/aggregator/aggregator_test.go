package aggregator

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/fanpulse/fanpulse/internal/models"
)

type fakeFeedbackReader struct {
	texts map[string][]string
	err   error
}

func (f *fakeFeedbackReader) QueryTexts(_ context.Context, songID string) ([]string, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.texts[songID], nil
}

type fakeRollupStore struct {
	scores      map[string]*models.SongScore
	putScores   []models.SongScore
	putClouds   []models.WordCloud
	getErr      error
	failSongPut string
}

func (f *fakeRollupStore) GetSongScore(_ context.Context, songID string) (*models.SongScore, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	return f.scores[songID], nil
}

func (f *fakeRollupStore) PutSongScore(_ context.Context, score models.SongScore) error {
	if score.SongID == f.failSongPut {
		return errors.New("put refused")
	}
	f.putScores = append(f.putScores, score)
	return nil
}

func (f *fakeRollupStore) PutWordCloud(_ context.Context, cloud models.WordCloud) error {
	f.putClouds = append(f.putClouds, cloud)
	return nil
}

func enriched(songID string, scores models.SentimentScores) models.EnrichedFeedback {
	return models.EnrichedFeedback{
		FeedbackItem:   models.FeedbackItem{SongID: songID, SourceID: "src"},
		AnalysisResult: models.AnalysisResult{Scores: scores},
	}
}

func TestApplyBatchUpdatesEachSong(t *testing.T) {
	reader := &fakeFeedbackReader{texts: map[string][]string{
		"song-a": {"banger banger", "total banger"},
		"song-b": {"weak drop"},
	}}
	store := &fakeRollupStore{scores: map[string]*models.SongScore{
		"song-b": {SongID: "song-b", Normalized: -0.5, CommentCount: 5},
	}}

	agg := New(reader, store)
	agg.now = func() time.Time { return time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC) }

	batch := []models.EnrichedFeedback{
		enriched("song-a", models.SentimentScores{Positive: 1}),
		enriched("song-a", models.SentimentScores{Positive: 1}),
		enriched("song-b", models.SentimentScores{Negative: 1}),
	}
	if err := agg.ApplyBatch(context.Background(), batch); err != nil {
		t.Fatalf("ApplyBatch: %v", err)
	}

	if len(store.putScores) != 2 {
		t.Fatalf("stored %d scores, want 2", len(store.putScores))
	}
	byID := make(map[string]models.SongScore)
	for _, score := range store.putScores {
		byID[score.SongID] = score
	}
	if byID["song-a"].CommentCount != 2 || byID["song-a"].OverallScore != 100 {
		t.Errorf("song-a score = %+v", byID["song-a"])
	}
	if byID["song-b"].CommentCount != 6 {
		t.Errorf("song-b count = %d, want 6", byID["song-b"].CommentCount)
	}

	if len(store.putClouds) != 2 {
		t.Fatalf("stored %d clouds, want 2", len(store.putClouds))
	}
	for _, cloud := range store.putClouds {
		if cloud.SongID == "song-a" {
			if len(cloud.Words) == 0 || cloud.Words[0] != "banger" {
				t.Errorf("song-a cloud = %v", cloud.Words)
			}
		}
	}
}

func TestApplyBatchContinuesPastFailingSong(t *testing.T) {
	reader := &fakeFeedbackReader{texts: map[string][]string{}}
	store := &fakeRollupStore{failSongPut: "song-bad"}

	batch := []models.EnrichedFeedback{
		enriched("song-bad", models.SentimentScores{Positive: 1}),
		enriched("song-good", models.SentimentScores{Positive: 1}),
	}
	err := New(reader, store).ApplyBatch(context.Background(), batch)
	if err == nil {
		t.Fatal("expected an error for the failing song")
	}
	if len(store.putScores) != 1 || store.putScores[0].SongID != "song-good" {
		t.Errorf("stored scores = %+v, want song-good only", store.putScores)
	}
}

func TestApplyBatchEmpty(t *testing.T) {
	store := &fakeRollupStore{}
	if err := New(&fakeFeedbackReader{}, store).ApplyBatch(context.Background(), nil); err != nil {
		t.Fatalf("ApplyBatch: %v", err)
	}
	if len(store.putScores) != 0 {
		t.Errorf("stored %d scores for empty batch", len(store.putScores))
	}
}
