package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/fanpulse/fanpulse/internal/models"
)

func TestWatchedSongs(t *testing.T) {
	t.Setenv("FANPULSE_VIDEOS", "https://www.youtube.com/watch?v=dQw4w9WgXcQ, kXYiU_JCYtU ,, not a video")

	songs := WatchedSongs()
	want := []string{"dQw4w9WgXcQ", "kXYiU_JCYtU"}
	if len(songs) != len(want) {
		t.Fatalf("got %v, want %v", songs, want)
	}
	for i := range want {
		if songs[i] != want[i] {
			t.Errorf("songs[%d] = %q, want %q", i, songs[i], want[i])
		}
	}
}

func TestWatchedSongsEmpty(t *testing.T) {
	t.Setenv("FANPULSE_VIDEOS", "")
	if songs := WatchedSongs(); len(songs) != 0 {
		t.Errorf("got %v, want none", songs)
	}
}

func TestRunOnceBuildsWindowedJobs(t *testing.T) {
	var mu sync.Mutex
	var jobs []models.CollectionJob
	run := func(_ context.Context, job models.CollectionJob) error {
		mu.Lock()
		defer mu.Unlock()
		jobs = append(jobs, job)
		return nil
	}

	s, err := New([]string{"song-a", "song-b"}, run)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }
	s.window = 6 * time.Hour
	s.pages = 3

	s.RunOnce(context.Background())

	if len(jobs) != 2 {
		t.Fatalf("ran %d jobs, want 2", len(jobs))
	}
	seen := map[string]bool{}
	for _, job := range jobs {
		seen[job.SongID] = true
		if !job.Window.End.Equal(now) {
			t.Errorf("window end = %v, want %v", job.Window.End, now)
		}
		if !job.Window.Start.Equal(now.Add(-6 * time.Hour)) {
			t.Errorf("window start = %v, want %v", job.Window.Start, now.Add(-6*time.Hour))
		}
		if job.PageLimit != 3 {
			t.Errorf("page limit = %d, want 3", job.PageLimit)
		}
	}
	if !seen["song-a"] || !seen["song-b"] {
		t.Errorf("songs ran: %v", seen)
	}
}

func TestRunOnceContinuesPastFailures(t *testing.T) {
	var mu sync.Mutex
	ran := map[string]bool{}
	run := func(_ context.Context, job models.CollectionJob) error {
		mu.Lock()
		ran[job.SongID] = true
		mu.Unlock()
		if job.SongID == "song-bad" {
			return errors.New("upstream down")
		}
		return nil
	}

	s, err := New([]string{"song-bad", "song-good"}, run)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	s.RunOnce(context.Background())

	if !ran["song-bad"] || !ran["song-good"] {
		t.Errorf("songs ran: %v", ran)
	}
}

func TestNewRejectsBadCronSpec(t *testing.T) {
	t.Setenv("CRON_SPEC", "definitely not cron")
	if _, err := New(nil, func(context.Context, models.CollectionJob) error { return nil }); err == nil {
		t.Fatal("want error for a bad cron spec")
	}
}

func TestCollectWindow(t *testing.T) {
	t.Setenv("COLLECT_WINDOW", "90m")
	if got := collectWindow(); got != 90*time.Minute {
		t.Errorf("collectWindow() = %v, want 90m", got)
	}

	t.Setenv("COLLECT_WINDOW", "yesterday")
	if got := collectWindow(); got != DEFAULT_COLLECT_WINDOW {
		t.Errorf("collectWindow() = %v, want default %v", got, DEFAULT_COLLECT_WINDOW)
	}
}
