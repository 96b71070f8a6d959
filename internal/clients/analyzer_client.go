package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/fanpulse/fanpulse/internal/models"
)

const (
	ANALYZER_SENTIMENT_PATH = "/v1/sentiment/batch"
	ANALYZER_HEALTH_PATH    = "/healthz"
)

var (
	analyzerInstance *AnalyzerClient
	analyzerOnce     sync.Once
)

// AnalyzerClient talks to the hosted sentiment service. When the service sits
// behind an OAuth2 gateway the client-credentials flow is used; otherwise
// plain HTTP.
type AnalyzerClient struct {
	Client  *http.Client
	BaseURL string
	Backoff BackoffPolicy

	oauthConf *clientcredentials.Config
	mu        sync.Mutex
}

// NewAnalyzerClient builds a client with explicit settings. Tests point
// baseURL at an httptest server.
func NewAnalyzerClient(baseURL string, httpClient *http.Client) *AnalyzerClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 60 * time.Second}
	}
	return &AnalyzerClient{
		Client:  httpClient,
		BaseURL: strings.TrimRight(baseURL, "/"),
		Backoff: DefaultBackoff(),
	}
}

func GetAnalyzerClient() *AnalyzerClient {
	analyzerOnce.Do(func() {
		var timeout time.Duration
		env := os.Getenv("APP_ENV")
		if env == "production" {
			timeout = 10 * time.Second
		} else {
			timeout = 60 * time.Second
		}

		baseURL := os.Getenv("ANALYZER_BASE_URL")
		if baseURL == "" {
			baseURL = "http://localhost:8081"
		}

		client := NewAnalyzerClient(baseURL, &http.Client{Timeout: timeout})

		clientID := os.Getenv("ANALYZER_CLIENT_ID")
		if clientID != "" {
			oauthConf := &clientcredentials.Config{
				ClientID:     clientID,
				ClientSecret: os.Getenv("ANALYZER_CLIENT_SECRET"),
				TokenURL:     os.Getenv("ANALYZER_TOKEN_URL"),
				AuthStyle:    oauth2.AuthStyleInHeader,
			}
			client.oauthConf = oauthConf
			client.Client = oauthConf.Client(context.Background())
			client.Client.Timeout = timeout
		}

		slog.Info("[AnalyzerClient] Initializing Client",
			slog.String("base_url", client.BaseURL),
			slog.Duration("timeout", timeout),
			slog.Bool("oauth", client.oauthConf != nil))
		analyzerInstance = client
	})
	return analyzerInstance
}

// RefreshClient rebuilds the underlying OAuth2 client so the next request
// fetches a fresh token. No-op without OAuth2.
func (a *AnalyzerClient) RefreshClient() {
	if a.oauthConf == nil {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	timeout := a.Client.Timeout
	a.Client = a.oauthConf.Client(context.Background())
	a.Client.Timeout = timeout
}

// GetBatchedSentimentAnalysis sends one analysis batch. Exhausting the retry
// budget yields ErrAnalysisUnavailable so callers can fail the batch and move
// on.
func (a *AnalyzerClient) GetBatchedSentimentAnalysis(ctx context.Context, input models.AnalyzeBatchRequest) (models.AnalyzeBatchResponse, error) {
	var result models.AnalyzeBatchResponse
	slog.Info("[AnalyzerClient] Requesting sentiment analysis",
		slog.Int("batch_size", len(input)))
	start := time.Now()

	err := a.postJSON(ctx, a.BaseURL+ANALYZER_SENTIMENT_PATH, input, &result)
	if err != nil {
		slog.Error("[AnalyzerClient] Sentiment analysis request failed",
			slog.Duration("elapsed", time.Since(start)))
		return result, err
	}

	slog.Info("[AnalyzerClient] Sentiment analysis request successful",
		slog.Duration("elapsed", time.Since(start)),
		slog.Int("results", len(result)))
	return result, nil
}

// HealthCheck probes the analyzer liveness endpoint with a single request.
func (a *AnalyzerClient) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.BaseURL+ANALYZER_HEALTH_PATH, nil)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", USER_AGENT)

	resp, err := a.Client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("analyzer health returned %d", resp.StatusCode)
	}
	return nil
}

func (a *AnalyzerClient) doWithRetry(ctx context.Context, build func() (*http.Request, error)) (*http.Response, error) {
	var resp *http.Response
	var err error
	refreshed := false

	for attempt := 0; attempt < a.Backoff.MaxRetries; attempt++ {
		var req *http.Request
		req, err = build()
		if err != nil {
			return nil, err
		}

		resp, err = a.Client.Do(req)
		if err == nil {
			switch {
			case resp.StatusCode < 400:
				return resp, nil
			case resp.StatusCode == http.StatusUnauthorized && a.oauthConf != nil && !refreshed:
				slog.Warn("[AnalyzerClient] Token rejected, refreshing OAuth2 client")
				resp.Body.Close()
				a.RefreshClient()
				refreshed = true
				continue
			case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
				resp.Body.Close()
			default:
				return resp, nil
			}
		}

		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		slog.Warn("[AnalyzerClient] Request failed, will retry",
			slog.Int("attempt", attempt+1),
			slog.String("error", errMsg(err, resp)))

		if werr := a.Backoff.Wait(ctx, attempt); werr != nil {
			return nil, werr
		}
	}

	if err == nil {
		err = fmt.Errorf("%s", errMsg(nil, resp))
	}
	return nil, fmt.Errorf("%w: %v", models.ErrAnalysisUnavailable, err)
}

func (a *AnalyzerClient) postJSON(ctx context.Context, endpoint string, input interface{}, output interface{}) error {
	body, err := json.Marshal(input)
	if err != nil {
		slog.Error("[AnalyzerClient] Failed to marshal input",
			slog.String("endpoint", endpoint),
			slog.String("error", err.Error()))
		return fmt.Errorf("failed to marshal input: %w", err)
	}

	resp, err := a.doWithRetry(ctx, func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("User-Agent", USER_AGENT)
		return req, nil
	})
	if err != nil {
		slog.Error("[AnalyzerClient] Failed request after retries",
			slog.String("endpoint", endpoint),
			slog.String("error", err.Error()))
		return err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		slog.Error("[AnalyzerClient] Failed to read response",
			slog.String("endpoint", endpoint),
			slog.String("error", err.Error()))
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		slog.Error("[AnalyzerClient] Request rejected",
			slog.String("endpoint", endpoint),
			slog.Int("status", resp.StatusCode),
			getPreview(respBody))
		return fmt.Errorf("analyzer returned status %d", resp.StatusCode)
	}

	if err := json.Unmarshal(respBody, output); err != nil {
		slog.Error("[AnalyzerClient] Failed to unmarshal response",
			slog.String("endpoint", endpoint),
			slog.String("error", err.Error()),
			getPreview(respBody),
			slog.Int("raw_response_length", len(string(respBody))))
		return fmt.Errorf("failed to unmarshal response: %w", err)
	}

	return nil
}

func getPreview(respBody []byte) slog.Attr {
	raw := string(respBody)
	if len(raw) > 50 {
		raw = raw[:50]
	}
	return slog.String("raw_response", raw)
}

func errMsg(err error, resp *http.Response) string {
	if err != nil {
		return err.Error()
	}
	if resp != nil {
		return fmt.Sprintf("status code %d", resp.StatusCode)
	}
	return "unknown error"
}
