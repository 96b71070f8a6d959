package models

type (
	AnalyzeBatchRequest []AnalyzeRequest
	AnalyzeRequest      struct {
		FeedbackID string `json:"feedback_id"`
		Text       string `json:"text"`
	}
)

type (
	AnalyzeBatchResponse []AnalyzeResponse
	AnalyzeResponse      struct {
		FeedbackID     string          `json:"feedback_id"`
		SentimentLabel string          `json:"sentiment_label"`
		SentimentScore float64         `json:"sentiment_score"`
		Scores         SentimentScores `json:"scores"`
		Entities       []string        `json:"entities,omitempty"`
	}
)
