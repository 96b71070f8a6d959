package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/aws/aws-lambda-go/lambda"

	"github.com/fanpulse/fanpulse/config"
	"github.com/fanpulse/fanpulse/internal/aggregator"
	"github.com/fanpulse/fanpulse/internal/clients"
	"github.com/fanpulse/fanpulse/internal/db"
	"github.com/fanpulse/fanpulse/internal/logging"
	"github.com/fanpulse/fanpulse/internal/streams"
)

// The stream worker folds the enriched feedback table's stream into the
// rollup tables. STREAM_MODE=lambda hands the handler to the Lambda runtime;
// anything else polls the stream directly, which is how local and container
// deployments run it.
func main() {
	env := os.Getenv("APP_ENV")
	if env == "" {
		env = "dev"
	}
	config.LoadEnv(env)
	logging.InitLogger()

	dynamo := clients.GetDynamoDBClient()
	agg := aggregator.New(db.NewFeedbackStore(dynamo), db.NewRollupStore(dynamo))

	if config.GetEnv("STREAM_MODE", "poller") == "lambda" {
		lambda.Start(streams.NewLambdaHandler(agg))
		return
	}

	streamArn := os.Getenv("STREAM_ARN")
	if streamArn == "" {
		slog.Error("[Main] STREAM_ARN is required in poller mode")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	poller := streams.NewStreamPoller(clients.GetDynamoDBStreamClient(), agg, streamArn)
	if err := poller.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("[Main] Stream poller exited",
			slog.String("error", err.Error()))
		os.Exit(1)
	}
	slog.Info("[Main] Stream worker stopped")
}
