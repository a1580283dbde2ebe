package favorite

import (
	"strings"
	"time"

	"github.com/globoclima/backend/internal/common/utils"
)

// FavoriteCity is a city saved by a user. Identity fields are fixed at
// construction; a favorite is only ever added or removed, never updated.
type FavoriteCity struct {
	userID      string
	locationID  string
	countryCode string
	cityName    string
	createdAt   time.Time
}

// NewFavoriteCity validates the input and builds a new favorite. The country
// code is upper-cased, the city name trimmed, and the location id derived
// from both.
func NewFavoriteCity(userID, countryCode, cityName string) (*FavoriteCity, error) {
	if err := utils.ValidateRequiredString(userID, "userId"); err != nil {
		return nil, err
	}
	if err := utils.ValidateRequiredString(countryCode, "countryCode"); err != nil {
		return nil, err
	}
	if err := utils.ValidateRequiredString(cityName, "cityName"); err != nil {
		return nil, err
	}

	countryCode = strings.ToUpper(strings.TrimSpace(countryCode))
	cityName = strings.TrimSpace(cityName)

	return &FavoriteCity{
		userID:      userID,
		locationID:  LocationID(countryCode, cityName),
		countryCode: countryCode,
		cityName:    cityName,
		createdAt:   time.Now().UTC(),
	}, nil
}

// RehydrateFavoriteCity rebuilds a favorite from storage. Nothing is
// validated or derived again; stored values are trusted as written.
func RehydrateFavoriteCity(userID, locationID, countryCode, cityName string, createdAt time.Time) *FavoriteCity {
	return &FavoriteCity{
		userID:      userID,
		locationID:  locationID,
		countryCode: countryCode,
		cityName:    cityName,
		createdAt:   createdAt,
	}
}

func (f *FavoriteCity) UserID() string       { return f.userID }
func (f *FavoriteCity) LocationID() string   { return f.locationID }
func (f *FavoriteCity) CountryCode() string  { return f.countryCode }
func (f *FavoriteCity) CityName() string     { return f.cityName }
func (f *FavoriteCity) CreatedAt() time.Time { return f.createdAt }

// IsSameLocation compares country and city case-insensitively against the
// stored fields, independent of the derived location id.
func (f *FavoriteCity) IsSameLocation(countryCode, cityName string) bool {
	return strings.EqualFold(f.countryCode, countryCode) &&
		strings.EqualFold(f.cityName, cityName)
}

// Result returns the read-only projection handed to callers.
func (f *FavoriteCity) Result() FavoriteCityResult {
	return FavoriteCityResult{
		LocationID:  f.locationID,
		CountryCode: f.countryCode,
		CityName:    f.cityName,
		CreatedAt:   f.createdAt,
	}
}

// CreateFavoriteCityRequest is the payload of an add request.
type CreateFavoriteCityRequest struct {
	CountryCode string `json:"countryCode" validate:"required,max=3"`
	CityName    string `json:"cityName" validate:"required,max=120"`
}

// FavoriteCityResult is the view of a favorite returned to callers. The
// owning user is implicit in the caller's context and is never included.
type FavoriteCityResult struct {
	LocationID  string    `json:"locationId"`
	CountryCode string    `json:"countryCode"`
	CityName    string    `json:"cityName"`
	CreatedAt   time.Time `json:"createdAt"`
}

// CountryListing is the outcome of a lookup through the country index.
// Available is false when the index is missing or unreachable; Favorites is
// then empty and Reason says why. An available listing with no favorites is a
// confirmed empty result.
type CountryListing struct {
	Available bool
	Reason    string
	Favorites []*FavoriteCity
}

// Reasons reported by unavailable country listings.
const (
	ReasonIndexNotConfigured = "index_not_configured"
	ReasonIndexMissing       = "index_missing"
	ReasonBackendError       = "backend_error"
)

// UnavailableListing builds a degraded country listing.
func UnavailableListing(reason string) CountryListing {
	return CountryListing{Reason: reason}
}
