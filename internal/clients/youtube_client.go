package clients

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/fanpulse/fanpulse/internal/models"
)

const (
	YOUTUBE_API_BASE_URL = "https://www.googleapis.com/youtube/v3"
	YOUTUBE_PAGE_SIZE    = 50
	YOUTUBE_ORDER        = "time"
)

var (
	youtubeInstance *YouTubeClient
	youtubeOnce     sync.Once

	videoIDPattern = regexp.MustCompile(`v=([a-zA-Z0-9_-]{11})`)
	shortURLPatter = regexp.MustCompile(`youtu\.be/([a-zA-Z0-9_-]{11})`)
	bareIDPattern  = regexp.MustCompile(`^[a-zA-Z0-9_-]{11}$`)
)

type YouTubeClient struct {
	Client   *http.Client
	BaseURL  string
	APIKey   string
	PageSize int
	Order    string
	Backoff  BackoffPolicy
}

// NewYouTubeClient builds a client with explicit settings. Tests point
// baseURL at an httptest server.
func NewYouTubeClient(baseURL, apiKey string, httpClient *http.Client) *YouTubeClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &YouTubeClient{
		Client:   httpClient,
		BaseURL:  strings.TrimRight(baseURL, "/"),
		APIKey:   apiKey,
		PageSize: YOUTUBE_PAGE_SIZE,
		Order:    YOUTUBE_ORDER,
		Backoff:  DefaultBackoff(),
	}
}

func GetYouTubeClient() *YouTubeClient {
	youtubeOnce.Do(func() {
		baseURL := os.Getenv("YOUTUBE_API_BASE_URL")
		if baseURL == "" {
			baseURL = YOUTUBE_API_BASE_URL
		}

		client := NewYouTubeClient(baseURL, os.Getenv("YOUTUBE_API_KEY"), nil)

		if v := os.Getenv("YOUTUBE_PAGE_SIZE"); v != "" {
			if size, err := strconv.Atoi(v); err == nil && size > 0 && size <= 100 {
				client.PageSize = size
			}
		}
		if v := os.Getenv("YOUTUBE_COMMENT_ORDER"); v != "" {
			client.Order = v
		}

		slog.Info("[YouTubeClient] Initializing Client",
			slog.String("base_url", client.BaseURL),
			slog.Int("page_size", client.PageSize))
		youtubeInstance = client
	})
	return youtubeInstance
}

// ExtractVideoID pulls the 11-character video id out of a watch URL, a
// youtu.be short link, or a bare id.
func ExtractVideoID(raw string) (string, error) {
	if m := videoIDPattern.FindStringSubmatch(raw); len(m) == 2 {
		return m[1], nil
	}
	if m := shortURLPatter.FindStringSubmatch(raw); len(m) == 2 {
		return m[1], nil
	}
	if bareIDPattern.MatchString(raw) {
		return raw, nil
	}
	return "", fmt.Errorf("no video id in %q", raw)
}

// FetchCommentPage fetches one commentThreads page for a video. Transient
// failures (timeouts, 429, quota 403, 5xx) retry with the client's backoff;
// exhausting the budget returns ErrUpstreamUnavailable.
func (y *YouTubeClient) FetchCommentPage(ctx context.Context, videoID string, pageToken string) (models.CommentPage, error) {
	page := models.CommentPage{SongID: videoID}

	if y.APIKey == "" {
		slog.Error("[YouTubeClient] API key is missing")
		return page, errors.New("[YouTubeClient] API key is missing")
	}

	params := url.Values{}
	params.Set("part", "snippet")
	params.Set("videoId", videoID)
	params.Set("key", y.APIKey)
	params.Set("maxResults", strconv.Itoa(y.PageSize))
	params.Set("order", y.Order)
	params.Set("textFormat", "plainText")
	if pageToken != "" {
		params.Set("pageToken", pageToken)
	}
	endpoint := y.BaseURL + "/commentThreads?" + params.Encode()

	var lastErr error
	for attempt := 0; attempt < y.Backoff.MaxRetries; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return page, err
		}
		req.Header.Set("User-Agent", USER_AGENT)

		res, err := y.Client.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return page, ctx.Err()
			}
			slog.Warn("[YouTubeClient] Request failed, will retry",
				slog.String("video_id", videoID),
				slog.Int("attempt", attempt+1),
				slog.String("error", err.Error()))
			lastErr = err
			if werr := y.Backoff.Wait(ctx, attempt); werr != nil {
				return page, werr
			}
			continue
		}

		body, readErr := io.ReadAll(res.Body)
		res.Body.Close()
		if readErr != nil {
			slog.Error("[YouTubeClient] Failed to read response body",
				slog.String("error", readErr.Error()))
			return page, readErr
		}

		switch {
		case res.StatusCode == http.StatusOK:
			var parsed models.YouTubeCommentThreadsResponse
			if err := json.Unmarshal(body, &parsed); err != nil {
				slog.Error("[YouTubeClient] Failed to parse JSON response",
					slog.String("error", err.Error()))
				return page, err
			}
			return threadsToPage(videoID, parsed), nil

		case res.StatusCode == http.StatusTooManyRequests,
			res.StatusCode == http.StatusForbidden && isQuotaError(body):
			slog.Warn("[YouTubeClient] Rate limited, retrying...",
				slog.Int("status", res.StatusCode),
				slog.Int("attempt", attempt+1),
				slog.Duration("backoff", y.Backoff.Delay(attempt)))
			lastErr = fmt.Errorf("status code %d", res.StatusCode)
			if werr := y.Backoff.Wait(ctx, attempt); werr != nil {
				return page, werr
			}

		case res.StatusCode >= 500:
			slog.Warn("[YouTubeClient] Server error, retrying...",
				slog.Int("status", res.StatusCode),
				slog.Int("attempt", attempt+1),
				slog.Duration("backoff", y.Backoff.Delay(attempt)))
			lastErr = fmt.Errorf("status code %d", res.StatusCode)
			if werr := y.Backoff.Wait(ctx, attempt); werr != nil {
				return page, werr
			}

		case res.StatusCode == http.StatusBadRequest:
			return page, fmt.Errorf("[YouTubeClient] bad request: %s", apiErrMessage(body))
		case res.StatusCode == http.StatusUnauthorized, res.StatusCode == http.StatusForbidden:
			return page, fmt.Errorf("[YouTubeClient] API key rejected: %s", apiErrMessage(body))
		case res.StatusCode == http.StatusNotFound:
			return page, fmt.Errorf("[YouTubeClient] video not found: %s", videoID)
		default:
			return page, fmt.Errorf("[YouTubeClient] unexpected status code %d", res.StatusCode)
		}
	}

	slog.Error("[YouTubeClient] Failed after max retries",
		slog.String("video_id", videoID))
	return page, fmt.Errorf("%w: %v", models.ErrUpstreamUnavailable, lastErr)
}

func threadsToPage(videoID string, resp models.YouTubeCommentThreadsResponse) models.CommentPage {
	page := models.CommentPage{
		SongID:        videoID,
		NextPageToken: resp.NextPageToken,
		FetchedAt:     time.Now().UTC(),
		Comments:      make([]models.RawComment, 0, len(resp.Items)),
	}

	for _, item := range resp.Items {
		snippet := item.Snippet.TopLevelComment.Snippet
		page.Comments = append(page.Comments, models.RawComment{
			CommentID:   item.Snippet.TopLevelComment.ID,
			Text:        snippet.TextOriginal,
			Author:      snippet.AuthorDisplayName,
			PublishedAt: snippet.PublishedAt,
			LikeCount:   snippet.LikeCount,
		})
	}

	return page
}

func isQuotaError(body []byte) bool {
	var parsed models.YouTubeErrorResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return false
	}
	msg := strings.ToLower(parsed.Error.Message)
	return strings.Contains(msg, "quota") || strings.Contains(msg, "rate")
}

func apiErrMessage(body []byte) string {
	var parsed models.YouTubeErrorResponse
	if err := json.Unmarshal(body, &parsed); err != nil || parsed.Error.Message == "" {
		preview := string(body)
		if len(preview) > 80 {
			preview = preview[:80]
		}
		return preview
	}
	return parsed.Error.Message
}
