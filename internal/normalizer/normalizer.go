package normalizer

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/fanpulse/fanpulse/internal/metrics"
	"github.com/fanpulse/fanpulse/internal/models"
)

// Normalizer turns raw provider payloads into FeedbackItems and drops
// duplicates through its SeenSet.
type Normalizer struct {
	seen SeenSet
}

func New(seen SeenSet) *Normalizer {
	if seen == nil {
		seen = NewMemorySeen()
	}
	return &Normalizer{seen: seen}
}

// SourceID derives the stable identity of a raw comment. The provider's
// comment id is preferred; without one the publish time plus author stands in,
// matching how replayed pages keep hashing to the same key.
func SourceID(songID string, raw models.RawComment) string {
	base := raw.CommentID
	if base == "" {
		base = raw.PublishedAt + "_" + raw.Author
	}
	sum := sha256.Sum256([]byte(songID + "_" + base))
	return hex.EncodeToString(sum[:])
}

// Normalize maps one raw payload to a FeedbackItem. A payload with no usable
// text or an unparseable timestamp yields ErrMalformedPayload.
func Normalize(songID string, raw models.RawComment, collectedAt time.Time) (models.FeedbackItem, error) {
	text := strings.TrimSpace(raw.Text)
	if text == "" {
		return models.FeedbackItem{}, fmt.Errorf("%w: empty text", models.ErrMalformedPayload)
	}

	publishedAt, err := time.Parse(time.RFC3339, raw.PublishedAt)
	if err != nil {
		return models.FeedbackItem{}, fmt.Errorf("%w: bad published_at %q", models.ErrMalformedPayload, raw.PublishedAt)
	}

	if collectedAt.IsZero() {
		collectedAt = time.Now().UTC()
	}

	return models.FeedbackItem{
		SourceID:    SourceID(songID, raw),
		SongID:      songID,
		AuthorRef:   strings.TrimSpace(raw.Author),
		Text:        text,
		PublishedAt: publishedAt.UTC(),
		CollectedAt: collectedAt.UTC(),
	}, nil
}

// NormalizePage folds a whole page: malformed payloads are logged and
// counted, already-seen keys are skipped, everything else comes back as
// items in page order. The returned stats carry fetched/malformed/duplicate
// counts for the caller to merge.
func (n *Normalizer) NormalizePage(ctx context.Context, page models.CommentPage) ([]models.FeedbackItem, models.RunStats) {
	stats := models.RunStats{Fetched: len(page.Comments)}
	items := make([]models.FeedbackItem, 0, len(page.Comments))

	for _, raw := range page.Comments {
		item, err := Normalize(page.SongID, raw, page.FetchedAt)
		if err != nil {
			stats.Malformed++
			metrics.IncMalformed()
			slog.Warn("[Normalizer] Skipping malformed payload",
				slog.String("song_id", page.SongID),
				slog.String("comment_id", raw.CommentID),
				slog.String("error", err.Error()))
			continue
		}

		if n.seen.Seen(ctx, item.SongID, item.SourceID) {
			stats.Duplicates++
			metrics.IncDuplicate()
			slog.Debug("[Normalizer] Skipping duplicate payload",
				slog.String("song_id", item.SongID),
				slog.String("source_id", item.SourceID))
			continue
		}

		if err := n.seen.Mark(ctx, item.SongID, item.SourceID); err != nil {
			slog.Warn("[Normalizer] Failed to mark feedback as seen",
				slog.String("source_id", item.SourceID),
				slog.String("error", err.Error()))
		}

		items = append(items, item)
	}

	return items, stats
}
