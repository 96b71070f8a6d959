package models

import "time"

// SongScore is the stored per-song rollup. OverallScore is the displayed
// 0-100 value; Normalized keeps the [-1,1] combining form so later batches
// can be count-weighted against it without losing precision.
type SongScore struct {
	SongID        string    `json:"song_id" dynamodbav:"song_id"`
	OverallScore  int       `json:"overall_score" dynamodbav:"overall_score"`
	Normalized    float64   `json:"normalized" dynamodbav:"normalized"`
	CommentCount  int       `json:"comment_count" dynamodbav:"comment_count"`
	LastUpdatedAt time.Time `json:"last_updated_at" dynamodbav:"last_updated_at"`
}

type WordCloud struct {
	SongID    string    `json:"song_id" dynamodbav:"song_id"`
	Words     []string  `json:"words" dynamodbav:"words"`
	UpdatedAt time.Time `json:"updated_at" dynamodbav:"updated_at"`
}
