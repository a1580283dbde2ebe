package favorite

import (
	"context"
	"errors"
	"log/slog"
	"sort"

	"github.com/samber/lo"
)

// Service provides favorite city business logic
type Service struct {
	repo   Repository
	logger *slog.Logger
}

// NewService creates a new favorite city service
func NewService(repo Repository, logger *slog.Logger) *Service {
	return &Service{
		repo:   repo,
		logger: logger,
	}
}

// AddFavorite saves a city for the user. It fails with ErrAlreadyExists when
// the normalized location is already saved, without writing anything.
func (s *Service) AddFavorite(ctx context.Context, userID string, req CreateFavoriteCityRequest) (*FavoriteCityResult, error) {
	favorite, err := NewFavoriteCity(userID, req.CountryCode, req.CityName)
	if err != nil {
		return nil, err
	}

	exists, err := s.repo.Exists(ctx, userID, favorite.LocationID())
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, AlreadyExistsError(favorite.LocationID())
	}

	// Insert is conditional, so a concurrent add that passed the same check
	// loses here instead of overwriting.
	if err := s.repo.Insert(ctx, favorite); err != nil {
		if errors.Is(err, ErrAlreadyExists) {
			s.logger.Info("concurrent favorite add rejected",
				"userId", userID,
				"locationId", favorite.LocationID(),
			)
		}
		return nil, err
	}

	result := favorite.Result()
	return &result, nil
}

// ListUserFavorites returns the user's favorites, most recently added first
func (s *Service) ListUserFavorites(ctx context.Context, userID string) ([]FavoriteCityResult, error) {
	favorites, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	return toResults(favorites), nil
}

// ListByCountry returns every favorite saved for a country across users, most
// recently added first. When the country index is unavailable the result is
// empty.
func (s *Service) ListByCountry(ctx context.Context, countryCode string) ([]FavoriteCityResult, error) {
	listing, err := s.repo.ListByCountry(ctx, countryCode)
	if err != nil {
		return nil, err
	}
	if !listing.Available {
		return []FavoriteCityResult{}, nil
	}
	return toResults(listing.Favorites), nil
}

// RemoveFavorite deletes a saved city. It returns false, without touching the
// store, when the user has no such favorite.
func (s *Service) RemoveFavorite(ctx context.Context, userID, locationID string) (bool, error) {
	exists, err := s.repo.Exists(ctx, userID, locationID)
	if err != nil {
		return false, err
	}
	if !exists {
		return false, nil
	}

	if err := s.repo.Remove(ctx, userID, locationID); err != nil {
		return false, err
	}
	return true, nil
}

// IsFavorite reports whether the user has the location saved
func (s *Service) IsFavorite(ctx context.Context, userID, locationID string) (bool, error) {
	return s.repo.Exists(ctx, userID, locationID)
}

// toResults projects favorites and orders them by creation time, newest
// first. Equal timestamps keep store order.
func toResults(favorites []*FavoriteCity) []FavoriteCityResult {
	results := lo.Map(favorites, func(item *FavoriteCity, _ int) FavoriteCityResult {
		return item.Result()
	})
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].CreatedAt.After(results[j].CreatedAt)
	})
	return results
}
