// Package bootstrap wires configuration, stores and handlers for the binaries.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"go.uber.org/zap"

	"github.com/globoclima/backend/internal/api/handlers"
	"github.com/globoclima/backend/internal/api/middleware"
	"github.com/globoclima/backend/internal/common/config"
	"github.com/globoclima/backend/internal/domain/favorite"
	"github.com/globoclima/backend/internal/platform/badgerstore"
	"github.com/globoclima/backend/internal/platform/cognito"
	ddbclient "github.com/globoclima/backend/internal/platform/dynamodb/client"
	"github.com/globoclima/backend/internal/platform/dynamodb/repository"
	"github.com/globoclima/backend/pkg/validator"
)

// App holds the wired components of the favorites API
type App struct {
	Config     *config.Config
	Logger     *slog.Logger
	Repository favorite.Repository
	Service    *favorite.Service
	Handler    middleware.APIGatewayHandler

	// DynamoDB is nil when the Badger backend is selected
	DynamoDB ddbclient.Client

	closers []func() error
}

// LoadConfig reads the environment and, when CONFIG_SECRET_ID is set, the
// Secrets Manager overlay
func LoadConfig(ctx context.Context) (*config.Config, aws.Config, error) {
	cfg, err := config.LoadFromEnv()
	if err != nil {
		return nil, aws.Config{}, err
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWSRegion))
	if err != nil {
		return nil, aws.Config{}, fmt.Errorf("failed to load AWS config: %w", err)
	}

	if cfg.ConfigSecretID != "" {
		cache, err := config.NewSecretCache(awsCfg)
		if err != nil {
			return nil, aws.Config{}, err
		}
		if err := cfg.ApplySecret(cache); err != nil {
			return nil, aws.Config{}, err
		}
	}

	return cfg, awsCfg, nil
}

// New builds the store selected by STORE_BACKEND and everything above it
func New(ctx context.Context, cfg *config.Config, awsCfg aws.Config, logger *slog.Logger) (*App, error) {
	app := &App{
		Config: cfg,
		Logger: logger,
	}

	switch cfg.StoreBackend {
	case config.StoreBackendBadger:
		db, err := badgerstore.Open(ctx, cfg.BadgerPath, logger)
		if err != nil {
			return nil, err
		}
		app.closers = append(app.closers, db.Close)
		app.Repository = badgerstore.NewFavoriteStore(db, logger)
	default:
		app.DynamoDB = ddbclient.NewDynamoDBClient(awsCfg, cfg.DynamoDBEndpoint, logger)
		factory := repository.NewFactory(app.DynamoDB, cfg.FavoritesTableName, cfg.CountryIndexName, logger)
		app.Repository = factory.FavoriteRepository()
		if !cfg.CountryIndexEnabled() {
			logger.Warn("country index not configured; country listings will be empty", "event", "degraded_read")
		}
	}

	app.Service = favorite.NewService(app.Repository, logger)

	zapLogger, err := newZapLogger(cfg)
	if err != nil {
		_ = app.Close()
		return nil, err
	}
	app.closers = append(app.closers, func() error {
		_ = zapLogger.Sync()
		return nil
	})

	// Bearer tokens are only resolved when a user pool is configured;
	// otherwise the API Gateway authorizer is the sole identity source.
	var resolver middleware.IdentityResolver
	if cfg.UserPoolID != "" {
		resolver = cognito.NewIdentityResolver(cognito.NewClient(awsCfg), logger)
	}

	router := handlers.NewRouter(
		handlers.NewFavoritesHandler(app.Service, validator.New()),
		middleware.NewAuthMiddleware(resolver, zapLogger),
	)
	app.Handler = router.Handler()

	logger.Info("favorites api initialized",
		"environment", cfg.Environment,
		"storeBackend", cfg.StoreBackend,
		"table", cfg.FavoritesTableName,
		"countryIndex", cfg.CountryIndexName,
	)

	return app, nil
}

// Close releases the resources opened by New
func (a *App) Close() error {
	var firstErr error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	a.closers = nil
	return firstErr
}

func newZapLogger(cfg *config.Config) (*zap.Logger, error) {
	if cfg.IsProd() {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}
