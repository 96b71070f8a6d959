package clients

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/fanpulse/fanpulse/internal/models"
)

func TestGetBatchedSentimentAnalysis(t *testing.T) {
	var gotRequest models.AnalyzeBatchRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != ANALYZER_SENTIMENT_PATH {
			t.Errorf("%s %s", r.Method, r.URL.Path)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("content type = %q", ct)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotRequest); err != nil {
			t.Errorf("decode request: %v", err)
		}
		json.NewEncoder(w).Encode(models.AnalyzeBatchResponse{
			{
				FeedbackID:     "src-1",
				SentimentLabel: "positive",
				SentimentScore: 0.93,
				Scores:         models.SentimentScores{Positive: 0.93, Neutral: 0.05, Negative: 0.02},
				Entities:       []string{"chorus"},
			},
		})
	}))
	defer server.Close()

	client := NewAnalyzerClient(server.URL, server.Client())
	client.Backoff = fastBackoff()

	resp, err := client.GetBatchedSentimentAnalysis(context.Background(), models.AnalyzeBatchRequest{
		{FeedbackID: "src-1", Text: "the chorus is amazing"},
	})
	if err != nil {
		t.Fatalf("GetBatchedSentimentAnalysis: %v", err)
	}

	if len(gotRequest) != 1 || gotRequest[0].FeedbackID != "src-1" {
		t.Errorf("request = %+v", gotRequest)
	}
	if len(resp) != 1 {
		t.Fatalf("got %d results, want 1", len(resp))
	}
	if resp[0].SentimentLabel != "positive" || resp[0].Scores.Positive != 0.93 {
		t.Errorf("result = %+v", resp[0])
	}
	if len(resp[0].Entities) != 1 || resp[0].Entities[0] != "chorus" {
		t.Errorf("entities = %v", resp[0].Entities)
	}
}

func TestGetBatchedSentimentAnalysisRetriesServerError(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		json.NewEncoder(w).Encode(models.AnalyzeBatchResponse{})
	}))
	defer server.Close()

	client := NewAnalyzerClient(server.URL, server.Client())
	client.Backoff = fastBackoff()

	if _, err := client.GetBatchedSentimentAnalysis(context.Background(), nil); err != nil {
		t.Fatalf("GetBatchedSentimentAnalysis: %v", err)
	}
	if calls != 2 {
		t.Errorf("made %d calls, want 2", calls)
	}
}

func TestGetBatchedSentimentAnalysisUnavailable(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := NewAnalyzerClient(server.URL, server.Client())
	client.Backoff = fastBackoff()

	_, err := client.GetBatchedSentimentAnalysis(context.Background(), nil)
	if !errors.Is(err, models.ErrAnalysisUnavailable) {
		t.Fatalf("got %v, want ErrAnalysisUnavailable", err)
	}
	if calls != client.Backoff.MaxRetries {
		t.Errorf("made %d calls, want %d", calls, client.Backoff.MaxRetries)
	}
}

func TestGetBatchedSentimentAnalysisRejectedNoRetry(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusUnprocessableEntity)
	}))
	defer server.Close()

	client := NewAnalyzerClient(server.URL, server.Client())
	client.Backoff = fastBackoff()

	_, err := client.GetBatchedSentimentAnalysis(context.Background(), nil)
	if err == nil {
		t.Fatal("want error for a rejected batch")
	}
	if errors.Is(err, models.ErrAnalysisUnavailable) {
		t.Errorf("a rejected batch is not an outage: %v", err)
	}
	if calls != 1 {
		t.Errorf("made %d calls, want 1", calls)
	}
}

func TestHealthCheck(t *testing.T) {
	healthy := true
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != ANALYZER_HEALTH_PATH {
			t.Errorf("path = %q", r.URL.Path)
		}
		if !healthy {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
	}))
	defer server.Close()

	client := NewAnalyzerClient(server.URL, server.Client())

	if err := client.HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck() = %v, want nil", err)
	}

	healthy = false
	if err := client.HealthCheck(context.Background()); err == nil {
		t.Error("HealthCheck() = nil, want error when the service is down")
	}
}
