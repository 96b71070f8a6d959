package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/fanpulse/fanpulse/config"
	"github.com/fanpulse/fanpulse/internal/clients"
	"github.com/fanpulse/fanpulse/internal/models"
)

const (
	DEFAULT_CRON_SPEC      = "@every 30m"
	DEFAULT_COLLECT_WINDOW = 24 * time.Hour
)

// RunFunc executes one collection job.
type RunFunc func(ctx context.Context, job models.CollectionJob) error

// Scheduler fires a collection run for every watched song on a cron spec.
// Each run covers the trailing COLLECT_WINDOW so that consecutive runs
// overlap rather than leave gaps; the idempotent store absorbs the overlap.
type Scheduler struct {
	cron   *cron.Cron
	run    RunFunc
	songs  []string
	window time.Duration
	pages  int
	now    func() time.Time
}

// New builds a scheduler over the given songs. The cron spec comes from
// CRON_SPEC and the trailing window from COLLECT_WINDOW.
func New(songs []string, run RunFunc) (*Scheduler, error) {
	s := &Scheduler{
		cron:   cron.New(),
		run:    run,
		songs:  songs,
		window: collectWindow(),
		pages:  pageLimit(),
		now:    time.Now,
	}

	spec := config.GetEnv("CRON_SPEC", DEFAULT_CRON_SPEC)
	if _, err := s.cron.AddFunc(spec, func() { s.RunOnce(context.Background()) }); err != nil {
		return nil, fmt.Errorf("bad CRON_SPEC %q: %w", spec, err)
	}
	return s, nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
	slog.Info("[Scheduler] Started",
		slog.Int("songs", len(s.songs)),
		slog.Duration("window", s.window))
}

// Stop halts the cron loop. The returned context is done once any in-flight
// jobs the cron runner started have returned.
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}

// RunOnce collects every watched song once, concurrently, and waits for all
// of them. A failing song never blocks the others.
func (s *Scheduler) RunOnce(ctx context.Context) {
	if len(s.songs) == 0 {
		slog.Warn("[Scheduler] No songs configured, skipping run")
		return
	}

	started := time.Now()
	slog.Info("[Scheduler] Collection run starting", slog.Int("songs", len(s.songs)))

	var wg sync.WaitGroup
	for _, songID := range s.songs {
		songID := songID
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := s.run(ctx, s.jobFor(songID)); err != nil {
				slog.Error("[Scheduler] Song collection failed",
					slog.String("song_id", songID),
					slog.String("error", err.Error()))
			}
		}()
	}
	wg.Wait()

	slog.Info("[Scheduler] Collection run complete",
		slog.Int("songs", len(s.songs)),
		slog.Duration("elapsed", time.Since(started)))
}

func (s *Scheduler) jobFor(songID string) models.CollectionJob {
	end := s.now().UTC()
	return models.CollectionJob{
		SongID: songID,
		Window: models.TimeWindow{
			Start: end.Add(-s.window),
			End:   end,
		},
		PageLimit: s.pages,
	}
}

// WatchedSongs resolves FANPULSE_VIDEOS, a comma separated list of YouTube
// video URLs or bare ids, into song ids. Unrecognized entries are skipped.
func WatchedSongs() []string {
	raw := config.GetEnv("FANPULSE_VIDEOS", "")

	var songs []string
	for _, entry := range strings.Split(raw, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		id, err := clients.ExtractVideoID(entry)
		if err != nil {
			slog.Warn("[Scheduler] Skipping unrecognized video entry",
				slog.String("entry", entry))
			continue
		}
		songs = append(songs, id)
	}
	return songs
}

func collectWindow() time.Duration {
	raw := config.GetEnv("COLLECT_WINDOW", "")
	if raw == "" {
		return DEFAULT_COLLECT_WINDOW
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		slog.Warn("[Scheduler] Invalid COLLECT_WINDOW, using default",
			slog.String("value", raw),
			slog.Duration("default", DEFAULT_COLLECT_WINDOW))
		return DEFAULT_COLLECT_WINDOW
	}
	return d
}

func pageLimit() int {
	raw := config.GetEnv("COLLECT_PAGE_LIMIT", "")
	if raw == "" {
		return 0
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		slog.Warn("[Scheduler] Invalid COLLECT_PAGE_LIMIT, collecting without a limit",
			slog.String("value", raw))
		return 0
	}
	return n
}
