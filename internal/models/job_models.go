package models

import "time"

// TimeWindow bounds a collection run. Half-open: a comment belongs to the
// window when Start <= published_at < End.
type TimeWindow struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

func (w TimeWindow) Contains(t time.Time) bool {
	return !t.Before(w.Start) && t.Before(w.End)
}

// CollectionJob identifies one scheduled run: which song, which window, and
// how many pages the collector may fetch (0 means no page limit).
type CollectionJob struct {
	SongID    string     `json:"song_id"`
	Window    TimeWindow `json:"window"`
	PageLimit int        `json:"page_limit,omitempty"`
}

// RunStats counts what happened to every payload of a run.
type RunStats struct {
	Fetched    int `json:"fetched"`
	Malformed  int `json:"malformed"`
	Duplicates int `json:"duplicates"`
	Analyzed   int `json:"analyzed"`
	Failed     int `json:"failed"`
	Stored     int `json:"stored"`
	Dropped    int `json:"dropped"`
}

func (s *RunStats) Merge(other RunStats) {
	s.Fetched += other.Fetched
	s.Malformed += other.Malformed
	s.Duplicates += other.Duplicates
	s.Analyzed += other.Analyzed
	s.Failed += other.Failed
	s.Stored += other.Stored
	s.Dropped += other.Dropped
}
