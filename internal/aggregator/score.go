package aggregator

import (
	"math"
	"time"

	"github.com/fanpulse/fanpulse/internal/models"
)

const (
	// Positive sentiment counts for a bit more than negative when scoring a
	// song. Fans reading a 0-100 score expect praise to move the needle.
	positiveWeight = 1.25

	// Flat boost applied to a batch that nets out positive, capped at 1.
	positiveBoost = 0.2
)

// commentNorm collapses one comment's class scores into [-1, 1].
func commentNorm(scores models.SentimentScores) float64 {
	weighted := positiveWeight * scores.Positive
	total := weighted + scores.Negative
	if total == 0 {
		return 0
	}
	return (weighted - scores.Negative) / total
}

// batchAverage is the mean normalized sentiment of a batch.
func batchAverage(batch []models.EnrichedFeedback) float64 {
	if len(batch) == 0 {
		return 0
	}
	var sum float64
	for _, item := range batch {
		sum += commentNorm(item.Scores)
	}
	return sum / float64(len(batch))
}

// CombineScore folds a batch of enriched feedback into the running score for
// a song. The running and batch values are weighted by their comment counts,
// and a batch that nets out positive never pulls the score down.
func CombineScore(songID string, prev *models.SongScore, batch []models.EnrichedFeedback, now time.Time) models.SongScore {
	newAvg := batchAverage(batch)
	adjusted := newAvg
	if newAvg > 0 {
		adjusted = math.Min(newAvg+positiveBoost, 1)
	}

	existingNorm := 0.0
	existingCount := 0
	if prev != nil && prev.CommentCount > 0 {
		existingNorm = prev.Normalized
		existingCount = prev.CommentCount
	}

	total := existingCount + len(batch)
	combined := adjusted
	if total > 0 {
		combined = (existingNorm*float64(existingCount) + adjusted*float64(len(batch))) / float64(total)
	}
	if newAvg > 0 && combined < existingNorm {
		combined = existingNorm
	}

	return models.SongScore{
		SongID:        songID,
		OverallScore:  displayScore(combined),
		Normalized:    combined,
		CommentCount:  total,
		LastUpdatedAt: now,
	}
}

// displayScore maps a normalized score in [-1, 1] onto the 0-100 scale.
func displayScore(norm float64) int {
	return int(math.Round((norm + 1) / 2 * 100))
}
