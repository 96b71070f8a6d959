package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/fanpulse/fanpulse/config"
	"github.com/fanpulse/fanpulse/internal/clients"
	"github.com/fanpulse/fanpulse/internal/clients/kafka_client"
	"github.com/fanpulse/fanpulse/internal/collector"
	"github.com/fanpulse/fanpulse/internal/logging"
	"github.com/fanpulse/fanpulse/internal/metrics"
	"github.com/fanpulse/fanpulse/internal/models"
	"github.com/fanpulse/fanpulse/internal/scheduler"
)

func main() {
	env := os.Getenv("APP_ENV")
	if env == "" {
		env = "dev"
	}
	config.LoadEnv(env)
	logging.InitLogger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := kafka_client.GetKafkaConfig()
	for {
		err := kafka_client.InitProducer(cfg)
		if err == nil {
			break
		}

		slog.Warn("Kafka init failed, retrying...", slog.String("error", err.Error()))
		time.Sleep(5 * time.Second)
	}
	defer kafka_client.CloseProducer()

	if err := metrics.Register(prometheus.DefaultRegisterer); err != nil {
		slog.Error("[Main] Failed to register metrics", slog.String("error", err.Error()))
		os.Exit(1)
	}
	metricsServer := startMetricsServer(config.GetEnv("METRICS_ADDR", ":2112"), stop)

	songs := scheduler.WatchedSongs()
	if len(songs) == 0 {
		slog.Error("[Main] FANPULSE_VIDEOS resolved to no songs, nothing to collect")
		os.Exit(1)
	}

	coll := collector.New(clients.GetYouTubeClient())
	run := func(ctx context.Context, job models.CollectionJob) error {
		return coll.CollectPages(ctx, job, func(page models.CommentPage) error {
			return kafka_client.PublishToKafka(ctx, kafka_client.KAFKA_TOPIC_RAW_FEEDBACK, job.SongID, page)
		})
	}

	sched, err := scheduler.New(songs, run)
	if err != nil {
		slog.Error("[Main] Failed to build scheduler", slog.String("error", err.Error()))
		os.Exit(1)
	}
	sched.Start()
	go sched.RunOnce(ctx)

	<-ctx.Done()
	slog.Info("[Main] Shutting down collector...")
	<-sched.Stop().Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		slog.Warn("[Main] Metrics server shutdown", slog.String("error", err.Error()))
	}
}

func startMetricsServer(addr string, stop context.CancelFunc) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	server := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		slog.Info("[Main] Metrics server listening", slog.String("addr", addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("[Main] Metrics server exited", slog.String("error", err.Error()))
			stop()
		}
	}()
	return server
}
