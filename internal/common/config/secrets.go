package config

import (
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/aws-secretsmanager-caching-go/v2/secretcache"
)

// SecretSource returns the string value of a secret
type SecretSource interface {
	GetSecretString(secretID string) (string, error)
}

// secretOverlay is the JSON document stored under CONFIG_SECRET_ID. Empty
// fields leave the environment value in place.
type secretOverlay struct {
	UserPoolID         string  `json:"userPoolId"`
	UserPoolClientID   string  `json:"userPoolClientId"`
	FavoritesTableName string  `json:"favoritesTableName"`
	CountryIndexName   *string `json:"countryIndexName"`
}

// NewSecretCache creates a Secrets Manager cache usable as a SecretSource
func NewSecretCache(awsCfg aws.Config) (*secretcache.Cache, error) {
	client := secretsmanager.NewFromConfig(awsCfg)
	cache, err := secretcache.New(
		func(c *secretcache.Cache) {
			c.Client = client
		},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create secret cache: %w", err)
	}
	return cache, nil
}

// ApplySecret overlays the values stored in CONFIG_SECRET_ID. It is a no-op
// when no secret is configured.
func (c *Config) ApplySecret(source SecretSource) error {
	if c.ConfigSecretID == "" {
		return nil
	}

	secretString, err := source.GetSecretString(c.ConfigSecretID)
	if err != nil {
		return fmt.Errorf("failed to read config secret: %w", err)
	}

	var overlay secretOverlay
	if err := json.Unmarshal([]byte(secretString), &overlay); err != nil {
		return fmt.Errorf("failed to parse config secret: %w", err)
	}

	if overlay.UserPoolID != "" {
		c.UserPoolID = overlay.UserPoolID
	}
	if overlay.UserPoolClientID != "" {
		c.UserPoolClientID = overlay.UserPoolClientID
	}
	if overlay.FavoritesTableName != "" {
		c.FavoritesTableName = overlay.FavoritesTableName
	}
	// Present but empty disables the index
	if overlay.CountryIndexName != nil {
		c.CountryIndexName = *overlay.CountryIndexName
	}

	return nil
}
