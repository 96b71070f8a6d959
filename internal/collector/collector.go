package collector

import (
	"context"
	"log/slog"
	"time"

	"github.com/fanpulse/fanpulse/internal/metrics"
	"github.com/fanpulse/fanpulse/internal/models"
)

// pageFetcher is the slice of the YouTube client the collector needs.
type pageFetcher interface {
	FetchCommentPage(ctx context.Context, videoID, pageToken string) (models.CommentPage, error)
}

// Collector walks the comment pages of a song and hands each page that
// survives window filtering to its caller. The upstream orders comments
// newest first, so a run stops as soon as a whole page has fallen behind
// the window start.
type Collector struct {
	fetcher pageFetcher
}

func New(fetcher pageFetcher) *Collector {
	return &Collector{fetcher: fetcher}
}

// CollectPages fetches comment pages for the job until the stream is
// exhausted, the page limit is hit, or the window is left behind. Pages are
// surfaced one at a time so a slow consumer never forces the whole run into
// memory. Comments whose timestamps do not parse are passed through, the
// normalizer decides what happens to those.
func (c *Collector) CollectPages(ctx context.Context, job models.CollectionJob, handle func(models.CommentPage) error) error {
	pageToken := ""
	pages := 0
	collected := 0
	windowed := !job.Window.Start.IsZero() || !job.Window.End.IsZero()

	for {
		select {
		case <-ctx.Done():
			slog.Warn("[Collector] Context cancelled, stopping collection",
				slog.String("song_id", job.SongID))
			return ctx.Err()
		default:
		}

		page, err := c.fetcher.FetchCommentPage(ctx, job.SongID, pageToken)
		if err != nil {
			return err
		}
		pages++

		kept, exhausted := page.Comments, false
		if windowed {
			kept, exhausted = filterWindow(page.Comments, job.Window)
		}

		if len(kept) > 0 {
			filtered := page
			filtered.Comments = kept
			if err := handle(filtered); err != nil {
				return err
			}
			collected += len(kept)
			metrics.AddCollected(len(kept))
		}

		slog.Debug("[Collector] Page processed",
			slog.String("song_id", job.SongID),
			slog.Int("page", pages),
			slog.Int("comments", len(page.Comments)),
			slog.Int("in_window", len(kept)))

		if exhausted {
			slog.Info("[Collector] Window exhausted, stopping pagination",
				slog.String("song_id", job.SongID),
				slog.Int("pages", pages))
			break
		}
		if page.NextPageToken == "" {
			break
		}
		if job.PageLimit > 0 && pages >= job.PageLimit {
			slog.Info("[Collector] Page limit reached",
				slog.String("song_id", job.SongID),
				slog.Int("page_limit", job.PageLimit))
			break
		}
		pageToken = page.NextPageToken
	}

	slog.Info("[Collector] Collection finished",
		slog.String("song_id", job.SongID),
		slog.Int("pages", pages),
		slog.Int("comments", collected))
	return nil
}

// filterWindow keeps window hits plus anything unparseable. It reports the
// stream exhausted once every parseable comment on the page is older than
// the window start.
func filterWindow(comments []models.RawComment, window models.TimeWindow) ([]models.RawComment, bool) {
	kept := make([]models.RawComment, 0, len(comments))
	parseable := 0
	older := 0
	for _, comment := range comments {
		published, err := time.Parse(time.RFC3339, comment.PublishedAt)
		if err != nil {
			kept = append(kept, comment)
			continue
		}
		parseable++
		if published.Before(window.Start) {
			older++
			continue
		}
		if window.Contains(published) {
			kept = append(kept, comment)
		}
	}
	return kept, parseable > 0 && older == parseable
}
