package gbfs

import (
	"strings"

	"github.com/rewired-gh/velofeed/internal/models"
)

// countryTimezones maps the ISO country codes of provider contracts to the
// IANA zone reported in system_information.
var countryTimezones = map[string]string{
	"AT": "Europe/Vienna",
	"AU": "Australia/Brisbane",
	"BE": "Europe/Brussels",
	"CH": "Europe/Zurich",
	"CZ": "Europe/Prague",
	"DE": "Europe/Berlin",
	"DK": "Europe/Copenhagen",
	"ES": "Europe/Madrid",
	"FI": "Europe/Helsinki",
	"FR": "Europe/Paris",
	"GB": "Europe/London",
	"HU": "Europe/Budapest",
	"IE": "Europe/Dublin",
	"IT": "Europe/Rome",
	"JP": "Asia/Tokyo",
	"KZ": "Asia/Almaty",
	"LT": "Europe/Vilnius",
	"LU": "Europe/Luxembourg",
	"NL": "Europe/Amsterdam",
	"NO": "Europe/Oslo",
	"PL": "Europe/Warsaw",
	"PT": "Europe/Lisbon",
	"RU": "Europe/Moscow",
	"SE": "Europe/Stockholm",
	"SI": "Europe/Ljubljana",
}

func timezoneFor(countryCode string) (string, bool) {
	tz, ok := countryTimezones[countryCode]
	return tz, ok
}

// MissingTimezones returns the contracts whose country has no zone, so their
// system_information feed would fail.
func MissingTimezones(cities []models.City) []string {
	var missing []string
	for _, city := range cities {
		if _, ok := timezoneFor(strings.ToUpper(city.CountryCode)); !ok {
			missing = append(missing, city.Name+" ("+city.CountryCode+")")
		}
	}
	return missing
}
