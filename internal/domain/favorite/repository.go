//go:generate go run go.uber.org/mock/mockgen -source=repository.go -destination=mocks/mock_repository.go -package=mocks
package favorite

import (
	"context"
)

// Repository defines the storage operations for favorite cities. Records are
// keyed by (userID, locationID); the country code is a secondary access path.
//
// Backend failures are reported as storage-unavailable errors. A missing
// record is never an error: Get returns nil and Exists returns false.
type Repository interface {
	// Get returns the favorite or nil when absent
	Get(ctx context.Context, userID, locationID string) (*FavoriteCity, error)

	// Exists reports whether the user has the location saved
	Exists(ctx context.Context, userID, locationID string) (bool, error)

	// ListByUser returns every favorite of a user in store order
	ListByUser(ctx context.Context, userID string) ([]*FavoriteCity, error)

	// ListByCountry reads the country index. An unavailable index is reported
	// through CountryListing.Available, not as an error.
	ListByCountry(ctx context.Context, countryCode string) (CountryListing, error)

	// Add writes the favorite unconditionally, replacing any record with the same key
	Add(ctx context.Context, favorite *FavoriteCity) error

	// Insert writes the favorite only if its key is free, failing with
	// ErrAlreadyExists otherwise
	Insert(ctx context.Context, favorite *FavoriteCity) error

	// Remove deletes the favorite; removing an absent key succeeds
	Remove(ctx context.Context, userID, locationID string) error
}
