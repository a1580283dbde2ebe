package badgerstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"

	commonErrors "github.com/globoclima/backend/internal/domain/errors"
	"github.com/globoclima/backend/internal/domain/favorite"
)

// FavoriteStore implements favorite.Repository on an embedded Badger database.
//
// Each favorite is stored under "fav/{userId}/{locationId}". A second key,
// "country/{countryCode}/{createdAt}/{userId}/{locationId}", is written in the
// same transaction and serves the country listing. createdAt is zero padded
// UnixNano so keys sort chronologically. Every id segment is path escaped, so
// ids containing "/" cannot reach into another user's key range.
type FavoriteStore struct {
	db     *badger.DB
	logger *slog.Logger
}

// NewFavoriteStore creates a new FavoriteStore
func NewFavoriteStore(db *badger.DB, logger *slog.Logger) *FavoriteStore {
	return &FavoriteStore{db: db, logger: logger}
}

// Open opens the database at path, logging through badger's default logger
// only at warning level or above unless debug logging is enabled.
func Open(ctx context.Context, path string, logger *slog.Logger) (*badger.DB, error) {
	options := badger.DefaultOptions(path)
	if logger.Enabled(ctx, slog.LevelDebug) {
		options = options.WithLoggingLevel(badger.DEBUG)
	} else {
		options = options.WithLoggingLevel(badger.WARNING)
	}

	db, err := badger.Open(options)
	if err != nil {
		return nil, fmt.Errorf("database opening failed: %w", err)
	}
	return db, nil
}

type diskFavorite struct {
	UserID      string    `json:"userId"`
	LocationID  string    `json:"locationId"`
	CountryCode string    `json:"countryCode"`
	CityName    string    `json:"cityName"`
	CreatedAt   time.Time `json:"createdAt"`
}

func fromFavorite(fav *favorite.FavoriteCity) diskFavorite {
	return diskFavorite{
		UserID:      fav.UserID(),
		LocationID:  fav.LocationID(),
		CountryCode: fav.CountryCode(),
		CityName:    fav.CityName(),
		CreatedAt:   fav.CreatedAt().UTC(),
	}
}

func (d diskFavorite) toFavorite() *favorite.FavoriteCity {
	return favorite.RehydrateFavoriteCity(d.UserID, d.LocationID, d.CountryCode, d.CityName, d.CreatedAt)
}

func userPrefix(userID string) string {
	return "fav/" + url.PathEscape(userID) + "/"
}

func favoriteKey(userID, locationID string) []byte {
	return []byte(userPrefix(userID) + url.PathEscape(locationID))
}

func countryPrefix(countryCode string) string {
	return "country/" + url.PathEscape(strings.ToUpper(strings.TrimSpace(countryCode))) + "/"
}

func countryKey(d diskFavorite) []byte {
	return []byte(fmt.Sprintf("%s%019d/%s/%s",
		countryPrefix(d.CountryCode),
		d.CreatedAt.UnixNano(),
		url.PathEscape(d.UserID),
		url.PathEscape(d.LocationID),
	))
}

// parseCountryKey returns the user and location ids of a country key, given
// the part after the country prefix
func parseCountryKey(rest string) (userID, locationID string, ok bool) {
	parts := strings.Split(rest, "/")
	if len(parts) != 3 {
		return "", "", false
	}
	userID, err := url.PathUnescape(parts[1])
	if err != nil {
		return "", "", false
	}
	locationID, err = url.PathUnescape(parts[2])
	if err != nil {
		return "", "", false
	}
	return userID, locationID, true
}

func readFavorite(txn *badger.Txn, key []byte) (*diskFavorite, error) {
	item, err := txn.Get(key)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var d diskFavorite
	err = item.Value(func(value []byte) error {
		return json.Unmarshal(value, &d)
	})
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// write stores d and its country key, dropping the index key of any record it replaces
func write(txn *badger.Txn, d diskFavorite, previous *diskFavorite) error {
	data, err := json.Marshal(d)
	if err != nil {
		return err
	}
	if previous != nil {
		if err := txn.Delete(countryKey(*previous)); err != nil {
			return err
		}
	}
	if err := txn.Set(favoriteKey(d.UserID, d.LocationID), data); err != nil {
		return err
	}
	return txn.Set(countryKey(d), nil)
}

// Get retrieves a favorite by its key
func (s *FavoriteStore) Get(ctx context.Context, userID, locationID string) (*favorite.FavoriteCity, error) {
	var found *diskFavorite
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		found, err = readFavorite(txn, favoriteKey(userID, locationID))
		return err
	})
	if err != nil {
		return nil, commonErrors.NewStorageUnavailableError("failed to get favorite", err)
	}
	if found == nil {
		return nil, nil
	}
	return found.toFavorite(), nil
}

// Exists reports whether the favorite key is present
func (s *FavoriteStore) Exists(ctx context.Context, userID, locationID string) (bool, error) {
	exists := false
	err := s.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get(favoriteKey(userID, locationID))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		exists = true
		return nil
	})
	if err != nil {
		return false, commonErrors.NewStorageUnavailableError("failed to check favorite", err)
	}
	return exists, nil
}

// ListByUser returns the user's favorites in key order
func (s *FavoriteStore) ListByUser(ctx context.Context, userID string) ([]*favorite.FavoriteCity, error) {
	favorites := make([]*favorite.FavoriteCity, 0)
	err := s.db.View(func(txn *badger.Txn) error {
		prefix := []byte(userPrefix(userID))
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var d diskFavorite
			if err := it.Item().Value(func(value []byte) error {
				return json.Unmarshal(value, &d)
			}); err != nil {
				return err
			}
			favorites = append(favorites, d.toFavorite())
		}
		return nil
	})
	if err != nil {
		return nil, commonErrors.NewStorageUnavailableError("failed to list favorites", err)
	}
	return favorites, nil
}

// ListByCountry walks the country keys newest first. The index is part of the
// store, so the listing is always available.
func (s *FavoriteStore) ListByCountry(ctx context.Context, countryCode string) (favorite.CountryListing, error) {
	listing := favorite.CountryListing{Available: true, Favorites: make([]*favorite.FavoriteCity, 0)}
	err := s.db.View(func(txn *badger.Txn) error {
		prefixStr := countryPrefix(countryCode)
		prefix := []byte(prefixStr)
		options := badger.DefaultIteratorOptions
		options.Reverse = true
		options.PrefetchValues = false
		it := txn.NewIterator(options)
		defer it.Close()

		// Reverse iteration starts from the largest key under the prefix
		for it.Seek(append([]byte(prefixStr), 0xFF)); it.ValidForPrefix(prefix); it.Next() {
			userID, locationID, ok := parseCountryKey(string(it.Item().Key()[len(prefix):]))
			if !ok {
				s.logger.Warn("malformed country index key", "key", string(it.Item().Key()))
				continue
			}
			d, err := readFavorite(txn, favoriteKey(userID, locationID))
			if err != nil {
				return err
			}
			if d == nil {
				s.logger.Warn("dangling country index key", "key", string(it.Item().Key()))
				continue
			}
			listing.Favorites = append(listing.Favorites, d.toFavorite())
		}
		return nil
	})
	if err != nil {
		return favorite.CountryListing{}, commonErrors.NewStorageUnavailableError("failed to list favorites by country", err)
	}
	return listing, nil
}

// Add writes the favorite, replacing any existing record with the same key
func (s *FavoriteStore) Add(ctx context.Context, fav *favorite.FavoriteCity) error {
	d := fromFavorite(fav)
	err := s.db.Update(func(txn *badger.Txn) error {
		previous, err := readFavorite(txn, favoriteKey(d.UserID, d.LocationID))
		if err != nil {
			return err
		}
		return write(txn, d, previous)
	})
	if err != nil {
		return commonErrors.NewStorageUnavailableError("failed to save favorite", err)
	}
	return nil
}

// Insert writes the favorite only if the key is free. The read and the write
// share one transaction, so a concurrent insert of the same key makes the
// commit fail with a conflict.
func (s *FavoriteStore) Insert(ctx context.Context, fav *favorite.FavoriteCity) error {
	d := fromFavorite(fav)
	err := s.db.Update(func(txn *badger.Txn) error {
		previous, err := readFavorite(txn, favoriteKey(d.UserID, d.LocationID))
		if err != nil {
			return err
		}
		if previous != nil {
			return favorite.AlreadyExistsError(d.LocationID)
		}
		return write(txn, d, nil)
	})
	switch {
	case err == nil:
		return nil
	case errors.Is(err, favorite.ErrAlreadyExists):
		return err
	case errors.Is(err, badger.ErrConflict):
		return favorite.AlreadyExistsError(d.LocationID)
	default:
		return commonErrors.NewStorageUnavailableError("failed to save favorite", err)
	}
}

// Remove deletes the favorite and its country key. Deleting a missing key succeeds.
func (s *FavoriteStore) Remove(ctx context.Context, userID, locationID string) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		previous, err := readFavorite(txn, favoriteKey(userID, locationID))
		if err != nil || previous == nil {
			return err
		}
		if err := txn.Delete(countryKey(*previous)); err != nil {
			return err
		}
		return txn.Delete(favoriteKey(userID, locationID))
	})
	if err != nil {
		return commonErrors.NewStorageUnavailableError("failed to remove favorite", err)
	}
	return nil
}
