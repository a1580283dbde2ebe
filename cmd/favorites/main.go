package main

import (
	"context"
	"log"
	"log/slog"
	"runtime"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"

	"github.com/globoclima/backend/internal/bootstrap"
)

var (
	app    *bootstrap.App
	logger *slog.Logger
)

func init() {
	ctx := context.Background()

	cfg, awsCfg, err := bootstrap.LoadConfig(ctx)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger = cfg.NewLogger()
	slog.SetDefault(logger)

	app, err = bootstrap.New(ctx, cfg, awsCfg, logger)
	if err != nil {
		logger.Error("Failed to initialize favorites api", "error", err)
		log.Fatalf("Failed to initialize favorites api: %v", err)
	}
}

func handler(ctx context.Context, request events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	if logger.Enabled(ctx, slog.LevelDebug) {
		var m runtime.MemStats
		runtime.ReadMemStats(&m)
		logger.Debug("favorites - Memory Status", "MB", m.Alloc/1024/1024)
	}

	return app.Handler(ctx, logger, request)
}

func main() {
	lambda.Start(handler)
}
