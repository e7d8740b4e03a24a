package contracts

import "github.com/rewired-gh/velofeed/internal/models"

// override replaces upstream fields known to be wrong for one contract.
type override struct {
	CountryCode    string
	CommercialName string
	Cities         []string
}

var overrides = map[string]override{
	"valence": {
		CountryCode:    "ES",
		CommercialName: "Valenbisi",
		Cities:         []string{"Valencia"},
	},
	"seville": {
		CountryCode:    "ES",
		CommercialName: "Sevici",
		Cities:         []string{"Sevilla"},
	},
	"besancon": {
		CountryCode:    "FR",
		CommercialName: "VéloCité",
		Cities:         []string{"Besançon"},
	},
}

// ApplyOverrides corrects known-bad upstream records in place.
func ApplyOverrides(cities []models.City) {
	for i := range cities {
		o, ok := overrides[cities[i].Name]
		if !ok {
			continue
		}
		cities[i].CountryCode = o.CountryCode
		cities[i].CommercialName = o.CommercialName
		cities[i].Cities = append([]string(nil), o.Cities...)
	}
}
