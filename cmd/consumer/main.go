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
	"github.com/fanpulse/fanpulse/internal/consumers"
	"github.com/fanpulse/fanpulse/internal/logging"
	"github.com/fanpulse/fanpulse/internal/metrics"
	"github.com/fanpulse/fanpulse/internal/monitoring"
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

	clients.InitValkey()
	defer clients.CloseValkey()

	if err := metrics.Register(prometheus.DefaultRegisterer); err != nil {
		slog.Error("[Main] Failed to register metrics", slog.String("error", err.Error()))
		os.Exit(1)
	}
	metricsServer := startMetricsServer(config.GetEnv("METRICS_ADDR", ":2112"), stop)
	defer shutdownMetricsServer(metricsServer)

	go monitoring.MonitorAnalyzerHealth(ctx, monitoring.AnalyzerHealthy())

	kafka_client.RegisterConsumer(kafka_client.KAFKA_TOPIC_RAW_FEEDBACK, consumers.StartFeedbackConsumer)
	kafka_client.RegisterConsumer(kafka_client.KAFKA_TOPIC_ENRICHED_FEEDBACK, consumers.StartRollupConsumer)

	if err := kafka_client.StartConsumers(ctx, cfg); err != nil {
		slog.Error("[Main] Failed to start consumers",
			slog.String("error", err.Error()))
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

func shutdownMetricsServer(server *http.Server) {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Warn("[Main] Metrics server shutdown", slog.String("error", err.Error()))
	}
}
