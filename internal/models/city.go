// Package models defines the core domain entities: cities, stations, and system alerts.
package models

// City is one JCDecaux contract: a bike-share deployment in one or more localities.
// Name is the contract identifier and the key of the city's alert history.
type City struct {
	Name           string   `json:"name"`
	CommercialName string   `json:"commercial_name"`
	Cities         []string `json:"cities"`
	CountryCode    string   `json:"country_code"`
}

// Clone returns a deep copy so callers cannot mutate a shared snapshot.
func (c City) Clone() City {
	out := c
	if c.Cities != nil {
		out.Cities = make([]string, len(c.Cities))
		copy(out.Cities, c.Cities)
	}
	return out
}

// CloneCities deep-copies a city batch.
func CloneCities(cities []City) []City {
	if cities == nil {
		return nil
	}
	out := make([]City, len(cities))
	for i, c := range cities {
		out[i] = c.Clone()
	}
	return out
}
