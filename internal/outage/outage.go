// Package outage computes which stations of a city are currently down.
package outage

import "github.com/rewired-gh/velofeed/internal/models"

// Set holds station identifiers.
type Set map[string]struct{}

// FromIDs builds a Set from persisted station identifiers.
func FromIDs(ids []string) Set {
	s := make(Set, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

func (s Set) Len() int { return len(s) }

func (s Set) Contains(id string) bool {
	_, ok := s[id]
	return ok
}

// Equal reports whether both sets hold exactly the same identifiers.
func (s Set) Equal(other Set) bool {
	if len(s) != len(other) {
		return false
	}
	for id := range s {
		if _, ok := other[id]; !ok {
			return false
		}
	}
	return true
}

// Sorted returns the identifiers ascending by numeric value. Never nil.
func (s Set) Sorted() []string {
	ids := make([]string, 0, len(s))
	for id := range s {
		ids = append(ids, id)
	}
	models.SortStationIDs(ids)
	return ids
}

// IsDown is the down policy: a station is down only when upstream reports
// it CLOSED. Empty docks alone do not count.
func IsDown(st models.Station) bool {
	return st.Status == models.StatusClosed
}

// Snapshot returns the identifiers of every down station.
func Snapshot(stations []models.Station) Set {
	down := make(Set)
	for _, st := range stations {
		if IsDown(st) {
			down[st.ID()] = struct{}{}
		}
	}
	return down
}
