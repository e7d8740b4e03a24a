package models

import (
	"sort"
	"strconv"
)

// StationStatus is the operational status reported upstream.
type StationStatus string

const (
	StatusOpen   StationStatus = "OPEN"
	StatusClosed StationStatus = "CLOSED"
)

// Position is a WGS84 coordinate.
type Position struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Station is one docking point as returned by the JCDecaux stations endpoint.
// Number is unique within a contract and stable across polls.
type Station struct {
	Number              int           `json:"number"`
	ContractName        string        `json:"contract_name"`
	Name                string        `json:"name"`
	Address             string        `json:"address"`
	Position            Position      `json:"position"`
	Banking             bool          `json:"banking"`
	BikeStands          int           `json:"bike_stands"`
	AvailableBikeStands int           `json:"available_bike_stands"`
	AvailableBikes      int           `json:"available_bikes"`
	Status              StationStatus `json:"status"`
	LastUpdate          int64         `json:"last_update"` // unix milliseconds
}

// ID returns the station identifier in the form persisted in alerts and feeds.
func (s Station) ID() string {
	return strconv.Itoa(s.Number)
}

// SortStations orders stations by Number, keeping upstream order for ties.
func SortStations(stations []Station) {
	sort.SliceStable(stations, func(i, j int) bool {
		return stations[i].Number < stations[j].Number
	})
}

// SortStationIDs orders station ids ascending by numeric value.
// Ids that are not integers sort after numeric ones, lexicographically.
func SortStationIDs(ids []string) {
	sort.SliceStable(ids, func(i, j int) bool {
		a, errA := strconv.Atoi(ids[i])
		b, errB := strconv.Atoi(ids[j])
		switch {
		case errA == nil && errB == nil:
			return a < b
		case errA == nil:
			return true
		case errB == nil:
			return false
		default:
			return ids[i] < ids[j]
		}
	})
}
