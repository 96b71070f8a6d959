package sentiment

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/fanpulse/fanpulse/internal/models"
)

type fakeSentimentService struct {
	response models.AnalyzeBatchResponse
	err      error
	gotInput models.AnalyzeBatchRequest
}

func (f *fakeSentimentService) GetBatchedSentimentAnalysis(_ context.Context, input models.AnalyzeBatchRequest) (models.AnalyzeBatchResponse, error) {
	f.gotInput = input
	return f.response, f.err
}

type fakeExtractor struct {
	entities map[string][]string
	err      error
	called   bool
}

func (f *fakeExtractor) ExtractBatch(_ context.Context, _ []models.FeedbackItem) (map[string][]string, error) {
	f.called = true
	return f.entities, f.err
}

type fakeAnalyzer struct {
	name    string
	results map[string]models.AnalysisResult
	err     error
	calls   int
}

func (f *fakeAnalyzer) Name() string { return f.name }

func (f *fakeAnalyzer) AnalyzeBatch(_ context.Context, _ []models.FeedbackItem) (map[string]models.AnalysisResult, error) {
	f.calls++
	return f.results, f.err
}

func testItems() []models.FeedbackItem {
	return []models.FeedbackItem{
		{SourceID: "src-1", SongID: "song", Text: "the drummer carried this one"},
		{SourceID: "src-2", SongID: "song", Text: "skip it"},
	}
}

func TestRemoteAnalyzerMapsResponses(t *testing.T) {
	svc := &fakeSentimentService{
		response: models.AnalyzeBatchResponse{
			{FeedbackID: "src-1", SentimentLabel: "positive", SentimentScore: 0.91,
				Scores:   models.SentimentScores{Positive: 0.91, Neutral: 0.06, Negative: 0.03},
				Entities: []string{"drummer"}},
			{FeedbackID: "src-2", SentimentLabel: "NEGATIVE", SentimentScore: 0.77},
		},
	}

	results, err := NewRemoteAnalyzer(svc, nil).AnalyzeBatch(context.Background(), testItems())
	if err != nil {
		t.Fatalf("AnalyzeBatch: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("got %d results, want 2", len(results))
	}
	if len(svc.gotInput) != 2 || svc.gotInput[0].FeedbackID != "src-1" {
		t.Errorf("request not built from items: %+v", svc.gotInput)
	}

	first := results["src-1"]
	if first.SentimentLabel != models.SentimentPositive {
		t.Errorf("label = %q, want %q", first.SentimentLabel, models.SentimentPositive)
	}
	if first.Engine != models.EngineRemote {
		t.Errorf("engine = %q, want %q", first.Engine, models.EngineRemote)
	}
	if len(first.Entities) != 1 || first.Entities[0] != "drummer" {
		t.Errorf("entities = %v", first.Entities)
	}
	if results["src-2"].SentimentLabel != models.SentimentNegative {
		t.Errorf("src-2 label = %q", results["src-2"].SentimentLabel)
	}
}

func TestRemoteAnalyzerPartialResponse(t *testing.T) {
	svc := &fakeSentimentService{
		response: models.AnalyzeBatchResponse{
			{FeedbackID: "src-1", SentimentLabel: "NEUTRAL", SentimentScore: 0.5},
		},
	}

	results, err := NewRemoteAnalyzer(svc, nil).AnalyzeBatch(context.Background(), testItems())
	if err != nil {
		t.Fatalf("AnalyzeBatch: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("got %d results, want 1", len(results))
	}
	if _, ok := results["src-2"]; ok {
		t.Error("src-2 should be absent from results")
	}
}

func TestRemoteAnalyzerServiceError(t *testing.T) {
	svc := &fakeSentimentService{err: models.ErrAnalysisUnavailable}

	_, err := NewRemoteAnalyzer(svc, nil).AnalyzeBatch(context.Background(), testItems())
	if !errors.Is(err, models.ErrAnalysisUnavailable) {
		t.Fatalf("err = %v, want ErrAnalysisUnavailable", err)
	}
}

func TestRemoteAnalyzerBackfillsEntities(t *testing.T) {
	svc := &fakeSentimentService{
		response: models.AnalyzeBatchResponse{
			{FeedbackID: "src-1", SentimentLabel: "POSITIVE", SentimentScore: 0.9, Entities: []string{"already here"}},
			{FeedbackID: "src-2", SentimentLabel: "NEGATIVE", SentimentScore: 0.6},
		},
	}
	extractor := &fakeExtractor{entities: map[string][]string{
		"src-1": {"should not overwrite"},
		"src-2": {"chorus"},
	}}

	results, err := NewRemoteAnalyzer(svc, extractor).AnalyzeBatch(context.Background(), testItems())
	if err != nil {
		t.Fatalf("AnalyzeBatch: %v", err)
	}
	if !extractor.called {
		t.Fatal("extractor never called")
	}
	if got := results["src-1"].Entities; len(got) != 1 || got[0] != "already here" {
		t.Errorf("src-1 entities overwritten: %v", got)
	}
	if got := results["src-2"].Entities; len(got) != 1 || got[0] != "chorus" {
		t.Errorf("src-2 entities = %v, want [chorus]", got)
	}
}

func TestRemoteAnalyzerExtractorErrorNotFatal(t *testing.T) {
	svc := &fakeSentimentService{
		response: models.AnalyzeBatchResponse{
			{FeedbackID: "src-1", SentimentLabel: "POSITIVE", SentimentScore: 0.9},
		},
	}
	extractor := &fakeExtractor{err: errors.New("openai down")}

	results, err := NewRemoteAnalyzer(svc, extractor).AnalyzeBatch(context.Background(), testItems())
	if err != nil {
		t.Fatalf("AnalyzeBatch: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("got %d results, want 1", len(results))
	}
}

func TestFallbackAnalyzerUsesPrimaryWhenHealthy(t *testing.T) {
	primary := &fakeAnalyzer{name: "remote", results: map[string]models.AnalysisResult{"src-1": {SentimentLabel: models.SentimentPositive}}}
	fallback := &fakeAnalyzer{name: "vader"}
	healthy := &atomic.Bool{}
	healthy.Store(true)

	results, err := NewFallbackAnalyzer(primary, fallback, healthy).AnalyzeBatch(context.Background(), testItems())
	if err != nil {
		t.Fatalf("AnalyzeBatch: %v", err)
	}
	if primary.calls != 1 || fallback.calls != 0 {
		t.Errorf("primary calls = %d, fallback calls = %d", primary.calls, fallback.calls)
	}
	if results["src-1"].SentimentLabel != models.SentimentPositive {
		t.Errorf("unexpected results: %+v", results)
	}
}

func TestFallbackAnalyzerSkipsUnhealthyPrimary(t *testing.T) {
	primary := &fakeAnalyzer{name: "remote"}
	fallback := &fakeAnalyzer{name: "vader", results: map[string]models.AnalysisResult{"src-1": {SentimentLabel: models.SentimentNeutral}}}
	healthy := &atomic.Bool{}

	results, err := NewFallbackAnalyzer(primary, fallback, healthy).AnalyzeBatch(context.Background(), testItems())
	if err != nil {
		t.Fatalf("AnalyzeBatch: %v", err)
	}
	if primary.calls != 0 {
		t.Errorf("primary called %d times while unhealthy", primary.calls)
	}
	if fallback.calls != 1 {
		t.Errorf("fallback calls = %d, want 1", fallback.calls)
	}
	if results["src-1"].SentimentLabel != models.SentimentNeutral {
		t.Errorf("unexpected results: %+v", results)
	}
}

func TestFallbackAnalyzerFallsBackOnPrimaryError(t *testing.T) {
	primary := &fakeAnalyzer{name: "remote", err: models.ErrAnalysisUnavailable}
	fallback := &fakeAnalyzer{name: "vader", results: map[string]models.AnalysisResult{}}
	healthy := &atomic.Bool{}
	healthy.Store(true)

	_, err := NewFallbackAnalyzer(primary, fallback, healthy).AnalyzeBatch(context.Background(), testItems())
	if err != nil {
		t.Fatalf("AnalyzeBatch: %v", err)
	}
	if primary.calls != 1 || fallback.calls != 1 {
		t.Errorf("primary calls = %d, fallback calls = %d", primary.calls, fallback.calls)
	}
}

func TestNormalizeLabel(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"positive", models.SentimentPositive},
		{"POSITIVE", models.SentimentPositive},
		{"Negative", models.SentimentNegative},
		{"neutral", models.SentimentNeutral},
		{"mixed", models.SentimentNeutral},
		{"", models.SentimentNeutral},
	}

	for _, tt := range tests {
		if got := normalizeLabel(tt.input); got != tt.want {
			t.Errorf("normalizeLabel(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestDedupeEntities(t *testing.T) {
	got := dedupeEntities([]string{" Drummer ", "drummer", "", "Chorus", "chorus", "bridge"})
	want := []string{"Drummer", "Chorus", "bridge"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("got[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestCleanOpenAIResponse(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "fenced json",
			input: "```json\n{\"results\": []}\n```",
			want:  `{"results": []}`,
		},
		{
			name:  "plain json",
			input: `{"results": []}`,
			want:  `{"results": []}`,
		},
		{
			name:  "chatter around json rejected",
			input: "Here you go: {\"results\": []} hope that helps",
			want:  "",
		},
		{
			name:  "no json at all",
			input: "sorry, I cannot do that",
			want:  "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := cleanOpenAIResponse(tt.input); got != tt.want {
				t.Errorf("cleanOpenAIResponse(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}
