package sentiment

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/fanpulse/fanpulse/internal/models"
)

func TestRemoveLinks(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "markdown link keeps text",
			input: "listen [here](https://example.com/watch) now",
			want:  "listen here now",
		},
		{
			name:  "bare url removed",
			input: "great mix https://example.com/a?b=c",
			want:  "great mix ",
		},
		{
			name:  "www url removed",
			input: "see www.example.com for more",
			want:  "see  for more",
		},
		{
			name:  "no links untouched",
			input: "the bridge is incredible",
			want:  "the bridge is incredible",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := RemoveLinks(tt.input); got != tt.want {
				t.Errorf("RemoveLinks(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestCleanCommentText(t *testing.T) {
	got := CleanCommentText("**so** _good_\n\ncheck https://example.com")
	if strings.Contains(got, "<") || strings.Contains(got, ">") {
		t.Errorf("html left in cleaned text: %q", got)
	}
	if strings.Contains(got, "https://") {
		t.Errorf("link left in cleaned text: %q", got)
	}
	if !strings.Contains(got, "so") || !strings.Contains(got, "good") {
		t.Errorf("words lost in cleaning: %q", got)
	}
}

func TestAnalyzeWithVADERLabels(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
	}{
		{
			name: "positive",
			text: "I absolutely love this song, the chorus is amazing and beautiful",
			want: models.SentimentPositive,
		},
		{
			name: "negative",
			text: "I hate this, worst track they ever made, terrible awful mix",
			want: models.SentimentNegative,
		},
		{
			name: "neutral",
			text: "The video was uploaded on a Monday",
			want: models.SentimentNeutral,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := AnalyzeWithVADER(tt.text)
			if result.SentimentLabel != tt.want {
				t.Errorf("label = %q, want %q (scores %+v)", result.SentimentLabel, tt.want, result.Scores)
			}
			if result.Engine != models.EngineVader {
				t.Errorf("engine = %q, want %q", result.Engine, models.EngineVader)
			}
			if result.SentimentScore < 0 || result.SentimentScore > 1 {
				t.Errorf("confidence %v outside [0,1]", result.SentimentScore)
			}
		})
	}
}

func TestVaderAnalyzerBatch(t *testing.T) {
	items := []models.FeedbackItem{
		{SourceID: "a", SongID: "song", Text: "this is incredible, love it", PublishedAt: time.Now()},
		{SourceID: "b", SongID: "song", Text: "awful, hated every second", PublishedAt: time.Now()},
	}

	results, err := VaderAnalyzer{}.AnalyzeBatch(context.Background(), items)
	if err != nil {
		t.Fatalf("AnalyzeBatch: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("got %d results, want 2", len(results))
	}
	if results["a"].SentimentLabel != models.SentimentPositive {
		t.Errorf("item a label = %q", results["a"].SentimentLabel)
	}
	if results["b"].SentimentLabel != models.SentimentNegative {
		t.Errorf("item b label = %q", results["b"].SentimentLabel)
	}
}

func TestVaderAnalyzerBatchCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := VaderAnalyzer{}.AnalyzeBatch(ctx, []models.FeedbackItem{{SourceID: "a", Text: "hi"}})
	if err == nil {
		t.Fatal("expected context error")
	}
}
