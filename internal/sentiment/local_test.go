package sentiment

import (
	"testing"

	"github.com/fanpulse/fanpulse/internal/models"
	"github.com/knights-analytics/hugot/pipelines"
)

func TestClassesToResult(t *testing.T) {
	tests := []struct {
		name      string
		classes   []pipelines.ClassificationOutput
		wantLabel string
		wantScore float64
	}{
		{
			name: "confident positive",
			classes: []pipelines.ClassificationOutput{
				{Label: "POSITIVE", Score: 0.97},
				{Label: "NEGATIVE", Score: 0.03},
			},
			wantLabel: models.SentimentPositive,
			wantScore: 0.97,
		},
		{
			name: "confident negative",
			classes: []pipelines.ClassificationOutput{
				{Label: "POSITIVE", Score: 0.11},
				{Label: "NEGATIVE", Score: 0.89},
			},
			wantLabel: models.SentimentNegative,
			wantScore: 0.89,
		},
		{
			name: "low confidence collapses to neutral",
			classes: []pipelines.ClassificationOutput{
				{Label: "POSITIVE", Score: 0.55},
				{Label: "NEGATIVE", Score: 0.45},
			},
			wantLabel: models.SentimentNeutral,
			wantScore: 0.55,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := classesToResult(tt.classes)
			if result.SentimentLabel != tt.wantLabel {
				t.Errorf("label = %q, want %q", result.SentimentLabel, tt.wantLabel)
			}
			if diff := result.SentimentScore - tt.wantScore; diff > 1e-6 || diff < -1e-6 {
				t.Errorf("score = %v, want %v", result.SentimentScore, tt.wantScore)
			}
			if result.Engine != models.EngineLocal {
				t.Errorf("engine = %q, want %q", result.Engine, models.EngineLocal)
			}
		})
	}
}
