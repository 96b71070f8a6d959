package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fanpulse/fanpulse/config"
	"github.com/fanpulse/fanpulse/internal/clients"
	"github.com/fanpulse/fanpulse/internal/collector"
	"github.com/fanpulse/fanpulse/internal/db"
	"github.com/fanpulse/fanpulse/internal/dispatcher"
	"github.com/fanpulse/fanpulse/internal/logging"
	"github.com/fanpulse/fanpulse/internal/models"
	"github.com/fanpulse/fanpulse/internal/monitoring"
	"github.com/fanpulse/fanpulse/internal/normalizer"
	"github.com/fanpulse/fanpulse/internal/pipeline"
	"github.com/fanpulse/fanpulse/internal/scheduler"
	"github.com/fanpulse/fanpulse/internal/sentiment"
)

// The runner collects one song end to end in a single process: fetch,
// normalize, analyze, store. Rollups still arrive through the stream worker,
// so a runner box needs no Kafka broker.
func main() {
	video := flag.String("video", "", "YouTube video URL or id (required)")
	window := flag.Duration("window", scheduler.DEFAULT_COLLECT_WINDOW, "trailing window to collect, 0 collects the full history")
	pages := flag.Int("pages", 0, "page fetch limit, 0 means no limit")
	engine := flag.String("engine", "remote", "sentiment engine: remote, vader, or local")
	flag.Parse()

	env := os.Getenv("APP_ENV")
	if env == "" {
		env = "dev"
	}
	config.LoadEnv(env)
	logging.InitLogger()

	if *video == "" {
		flag.Usage()
		os.Exit(2)
	}
	songID, err := clients.ExtractVideoID(*video)
	if err != nil {
		slog.Error("[Runner] Unrecognized video", slog.String("video", *video))
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	analyzer, closeAnalyzer, err := buildAnalyzer(ctx, *engine)
	if err != nil {
		slog.Error("[Runner] Failed to build analyzer",
			slog.String("engine", *engine),
			slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer closeAnalyzer()

	var seen normalizer.SeenSet = normalizer.NewMemorySeen()
	if os.Getenv("VALKEY_INIT_ADDRESS") != "" {
		clients.InitValkey()
		defer clients.CloseValkey()
		seen = normalizer.NewValkeySeen(clients.GetValkeyClient())
	}

	pipe := pipeline.New(
		collector.New(clients.GetYouTubeClient()),
		normalizer.New(seen),
		dispatcher.New(analyzer, db.NewFeedbackStore(clients.GetDynamoDBClient()), nil),
	)

	job := models.CollectionJob{SongID: songID, PageLimit: *pages}
	if *window > 0 {
		end := time.Now().UTC()
		job.Window = models.TimeWindow{Start: end.Add(-*window), End: end}
	}

	stats, err := pipe.Run(ctx, job)
	if err != nil {
		os.Exit(1)
	}
	slog.Info("[Runner] Song processed",
		slog.String("song_id", songID),
		slog.Int("stored", stats.Stored),
		slog.Int("duplicates", stats.Duplicates),
		slog.Int("failed", stats.Failed+stats.Dropped))
}

func buildAnalyzer(ctx context.Context, engine string) (sentiment.Analyzer, func(), error) {
	switch engine {
	case "vader":
		return sentiment.VaderAnalyzer{}, func() {}, nil

	case "local":
		local, err := sentiment.NewLocalAnalyzer()
		if err != nil {
			return nil, nil, err
		}
		return local, local.Close, nil

	default:
		var extractor sentiment.EntityExtractor
		if clients.OpenAIConfigured() {
			extractor = sentiment.NewOpenAIExtractor(clients.GetOpenAIClient())
		}
		remote := sentiment.NewRemoteAnalyzer(clients.GetAnalyzerClient(), extractor)

		healthy := monitoring.AnalyzerHealthy()
		probeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		healthy.Store(clients.GetAnalyzerClient().HealthCheck(probeCtx) == nil)
		cancel()

		return sentiment.NewFallbackAnalyzer(remote, sentiment.VaderAnalyzer{}, healthy), func() {}, nil
	}
}
