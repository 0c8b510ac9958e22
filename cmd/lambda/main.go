package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/spf13/viper"

	"pagesmith/internal/app"
	"pagesmith/internal/config"
	"pagesmith/internal/logging"
)

func main() {
	ctx := context.Background()

	// ---- Configuration (read only here) ----
	v := viper.New()
	v.Set("store", config.StoreDynamoDB)
	v.Set("log_format", logging.FormatJSON)
	cfg, err := config.LoadServer(v)
	if err != nil {
		slog.Error("failed to load configuration", "err", err)
		os.Exit(1)
	}

	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat, os.Stdout)
	if err != nil {
		slog.Error("failed to create logger", "err", err)
		os.Exit(1)
	}
	slog.SetDefault(logger)

	// ---- Handler ----
	h, err := app.NewHandler(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to create handler", "err", err)
		os.Exit(1)
	}

	lambda.Start(h.Handle)
}
