package favorite

import "strings"

// locationSeparator joins the country code and the compacted city name.
const locationSeparator = "-"

var cityNameCompactor = strings.NewReplacer(" ", "", "-", "")

// LocationID derives the stable key of a location: the upper-cased country
// code and the city name with spaces and hyphens removed, joined by "-".
//
// Diacritics are kept as-is, so "São Paulo" and "Sao Paulo" are different
// locations.
func LocationID(countryCode, cityName string) string {
	return strings.ToUpper(countryCode) + locationSeparator + cityNameCompactor.Replace(cityName)
}
