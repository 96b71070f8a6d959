package models

import "time"

const (
	SentimentPositive = "POSITIVE"
	SentimentNeutral  = "NEUTRAL"
	SentimentNegative = "NEGATIVE"
)

const (
	EngineRemote = "remote"
	EngineVader  = "vader"
	EngineLocal  = "local"
)

// RawComment is a single provider comment exactly as collected, before any
// validation. PublishedAt stays a string until the normalizer parses it.
type RawComment struct {
	CommentID   string `json:"comment_id,omitempty"`
	Text        string `json:"text"`
	Author      string `json:"author"`
	PublishedAt string `json:"published_at"`
	LikeCount   int    `json:"like_count,omitempty"`
}

// CommentPage is one page of raw comments for a song. It is the unit handed
// to page callbacks and published to the raw-feedback topic.
type CommentPage struct {
	SongID        string       `json:"song_id"`
	Comments      []RawComment `json:"comments"`
	NextPageToken string       `json:"next_page_token,omitempty"`
	FetchedAt     time.Time    `json:"fetched_at"`
}

// FeedbackItem is a normalized comment. (SongID, SourceID) is unique within a
// run and in storage.
type FeedbackItem struct {
	SourceID    string    `json:"source_id" dynamodbav:"source_id"`
	SongID      string    `json:"song_id" dynamodbav:"song_id"`
	AuthorRef   string    `json:"author_ref" dynamodbav:"author_ref"`
	Text        string    `json:"text" dynamodbav:"text"`
	PublishedAt time.Time `json:"published_at" dynamodbav:"published_at"`
	CollectedAt time.Time `json:"collected_at" dynamodbav:"collected_at"`
}

type SentimentScores struct {
	Positive float64 `json:"positive" dynamodbav:"positive"`
	Neutral  float64 `json:"neutral" dynamodbav:"neutral"`
	Negative float64 `json:"negative" dynamodbav:"negative"`
}

type AnalysisResult struct {
	SentimentLabel string          `json:"sentiment_label" dynamodbav:"sentiment_label"`
	SentimentScore float64         `json:"sentiment_score" dynamodbav:"sentiment_score"`
	Scores         SentimentScores `json:"scores" dynamodbav:"scores"`
	Entities       []string        `json:"entities,omitempty" dynamodbav:"entities,omitempty"`
	Engine         string          `json:"engine,omitempty" dynamodbav:"engine,omitempty"`
}

// EnrichedFeedback is the unit of persistence: the normalized item plus its
// analysis. Upserts by (SongID, SourceID) are idempotent.
type EnrichedFeedback struct {
	FeedbackItem
	AnalysisResult
	AnalyzedAt time.Time `json:"analyzed_at" dynamodbav:"analyzed_at"`
}
