package aggregator

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/fanpulse/fanpulse/internal/models"
)

// feedbackReader is the slice of the feedback store the aggregator reads.
type feedbackReader interface {
	QueryTexts(ctx context.Context, songID string) ([]string, error)
}

// rollupStore is the slice of the rollup store the aggregator writes.
type rollupStore interface {
	GetSongScore(ctx context.Context, songID string) (*models.SongScore, error)
	PutSongScore(ctx context.Context, score models.SongScore) error
	PutWordCloud(ctx context.Context, cloud models.WordCloud) error
}

// Aggregator keeps the per-song rollups current. Scores fold in batch by
// batch; word clouds rebuild from the full stored comment set because the
// top ten can reshuffle on any new comment.
type Aggregator struct {
	feedback feedbackReader
	rollups  rollupStore
	now      func() time.Time
}

func New(feedback feedbackReader, rollups rollupStore) *Aggregator {
	return &Aggregator{feedback: feedback, rollups: rollups, now: time.Now}
}

// ApplyBatch folds freshly enriched feedback into each touched song's score
// and word cloud. A failing song does not block the others; the first error
// per song is collected and joined.
func (a *Aggregator) ApplyBatch(ctx context.Context, batch []models.EnrichedFeedback) error {
	if len(batch) == 0 {
		return nil
	}

	bySong := make(map[string][]models.EnrichedFeedback)
	for _, item := range batch {
		bySong[item.SongID] = append(bySong[item.SongID], item)
	}

	var errs []error
	for songID, group := range bySong {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		if err := a.applySong(ctx, songID, group); err != nil {
			slog.Error("[Aggregator] Failed to update rollups for song",
				slog.String("song_id", songID),
				slog.Int("batch_size", len(group)),
				slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (a *Aggregator) applySong(ctx context.Context, songID string, group []models.EnrichedFeedback) error {
	prev, err := a.rollups.GetSongScore(ctx, songID)
	if err != nil {
		return err
	}

	score := CombineScore(songID, prev, group, a.now().UTC())
	if err := a.rollups.PutSongScore(ctx, score); err != nil {
		return err
	}
	slog.Info("[Aggregator] Song score updated",
		slog.String("song_id", songID),
		slog.Int("overall_score", score.OverallScore),
		slog.Int("comment_count", score.CommentCount))

	return a.RebuildWordCloud(ctx, songID)
}

// RebuildWordCloud recomputes a song's word cloud from everything stored for
// it. Safe to call any number of times, the rebuild always starts from the
// full comment set.
func (a *Aggregator) RebuildWordCloud(ctx context.Context, songID string) error {
	texts, err := a.feedback.QueryTexts(ctx, songID)
	if err != nil {
		return err
	}
	cloud := models.WordCloud{
		SongID:    songID,
		Words:     BuildWordCloud(texts),
		UpdatedAt: a.now().UTC(),
	}
	if err := a.rollups.PutWordCloud(ctx, cloud); err != nil {
		return err
	}
	slog.Debug("[Aggregator] Word cloud rebuilt",
		slog.String("song_id", songID),
		slog.Int("words", len(cloud.Words)))
	return nil
}
