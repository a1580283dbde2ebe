package repository

import (
	"log/slog"

	"github.com/globoclima/backend/internal/domain/favorite"
	"github.com/globoclima/backend/internal/platform/dynamodb/client"
)

// Factory creates repository instances
type Factory struct {
	client       client.Client
	tableName    string
	countryIndex string
	logger       *slog.Logger
}

// NewFactory creates a new repository factory
func NewFactory(client client.Client, tableName, countryIndex string, logger *slog.Logger) *Factory {
	return &Factory{
		client:       client,
		tableName:    tableName,
		countryIndex: countryIndex,
		logger:       logger,
	}
}

// FavoriteRepository returns an implementation of the favorite.Repository interface
func (f *Factory) FavoriteRepository() favorite.Repository {
	return NewDynamoDBFavoriteRepository(f.client, f.tableName, f.countryIndex, f.logger)
}
