package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/globoclima/backend/internal/bootstrap"
	"github.com/globoclima/backend/internal/domain/favorite"
	"github.com/globoclima/backend/internal/platform/dynamodb/repository"
)

// seedRecord is one entry of a seed file
type seedRecord struct {
	UserID      string    `json:"userId"`
	LocationID  string    `json:"locationId,omitempty"`
	CountryCode string    `json:"countryCode"`
	CityName    string    `json:"cityName"`
	CreatedAt   time.Time `json:"createdAt,omitempty"`
}

// Example: AWS_PROFILE=globoclima-dev REGION=br go run ./cmd/operation create-table
func main() {
	var app *bootstrap.App

	root := &cobra.Command{
		Use:           "operation",
		Short:         "Operations for the favorite cities store",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, awsCfg, err := bootstrap.LoadConfig(cmd.Context())
			if err != nil {
				return err
			}
			app, err = bootstrap.New(cmd.Context(), cfg, awsCfg, cfg.NewLogger())
			return err
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if app == nil {
				return nil
			}
			return app.Close()
		},
	}

	var maxWait time.Duration
	createTable := &cobra.Command{
		Use:   "create-table",
		Short: "Create the favorites table and its country index",
		RunE: func(cmd *cobra.Command, args []string) error {
			if app.DynamoDB == nil {
				return errors.New("create-table requires STORE_BACKEND=dynamodb")
			}
			created, err := repository.CreateFavoritesTable(cmd.Context(), app.DynamoDB,
				app.Config.FavoritesTableName, app.Config.CountryIndexName, maxWait)
			if err != nil {
				return err
			}
			if created {
				fmt.Fprintf(cmd.OutOrStdout(), "table %s created\n", app.Config.FavoritesTableName)
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "table %s already exists\n", app.Config.FavoritesTableName)
			}
			return nil
		},
	}
	createTable.Flags().DurationVar(&maxWait, "wait", 2*time.Minute, "how long to wait for the table to become active")

	var seedFile string
	seed := &cobra.Command{
		Use:   "seed",
		Short: "Write favorites from a JSON file, replacing existing records",
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(seedFile)
			if err != nil {
				return fmt.Errorf("failed to open seed file: %w", err)
			}
			defer f.Close()

			favorites, err := readSeed(f, time.Now().UTC())
			if err != nil {
				return err
			}
			written, err := seedFavorites(cmd.Context(), app.Repository, favorites, app.Logger)
			fmt.Fprintf(cmd.OutOrStdout(), "%d favorites written\n", written)
			return err
		},
	}
	seed.Flags().StringVar(&seedFile, "file", "favorites.json", "seed file")

	var userID, countryCode string
	list := &cobra.Command{
		Use:   "list",
		Short: "List favorites of a user or a country",
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				results []favorite.FavoriteCityResult
				err     error
			)
			switch {
			case userID != "" && countryCode != "":
				return errors.New("use either --user or --country")
			case userID != "":
				results, err = app.Service.ListUserFavorites(cmd.Context(), userID)
			case countryCode != "":
				results, err = app.Service.ListByCountry(cmd.Context(), countryCode)
			default:
				return errors.New("--user or --country is required")
			}
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), results)
		},
	}
	list.Flags().StringVar(&userID, "user", "", "user id")
	list.Flags().StringVar(&countryCode, "country", "", "country code")

	root.AddCommand(createTable, seed, list)

	if err := root.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// readSeed parses a seed file. A missing location id is derived from the
// country and city, a missing creation time defaults to now.
func readSeed(r io.Reader, now time.Time) ([]*favorite.FavoriteCity, error) {
	var records []seedRecord
	if err := json.NewDecoder(r).Decode(&records); err != nil {
		return nil, fmt.Errorf("failed to parse seed file: %w", err)
	}

	favorites := make([]*favorite.FavoriteCity, 0, len(records))
	for i, rec := range records {
		if strings.TrimSpace(rec.UserID) == "" {
			return nil, fmt.Errorf("record %d: userId is required", i)
		}

		if rec.LocationID == "" {
			fav, err := favorite.NewFavoriteCity(rec.UserID, rec.CountryCode, rec.CityName)
			if err != nil {
				return nil, fmt.Errorf("record %d: %w", i, err)
			}
			rec.LocationID = fav.LocationID()
			rec.CountryCode = fav.CountryCode()
			rec.CityName = fav.CityName()
		}
		if rec.CreatedAt.IsZero() {
			rec.CreatedAt = now
		}

		favorites = append(favorites, favorite.RehydrateFavoriteCity(rec.UserID, rec.LocationID, rec.CountryCode, rec.CityName, rec.CreatedAt))
	}
	return favorites, nil
}

func seedFavorites(ctx context.Context, repo favorite.Repository, favorites []*favorite.FavoriteCity, logger *slog.Logger) (int, error) {
	for i, fav := range favorites {
		if err := repo.Add(ctx, fav); err != nil {
			return i, fmt.Errorf("failed to write %s/%s: %w", fav.UserID(), fav.LocationID(), err)
		}
		logger.Debug("favorite seeded", "userId", fav.UserID(), "locationId", fav.LocationID())
	}
	return len(favorites), nil
}

func printJSON(w io.Writer, v interface{}) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}
