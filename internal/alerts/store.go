// Package alerts decides, per city, whether the current outage opens a new
// alert episode or extends the latest one, and applies that decision.
package alerts

import (
	"context"

	"github.com/rewired-gh/velofeed/internal/models"
)

// Store is the alert history of every city.
type Store interface {
	// Latest returns the alert with the newest Date, or nil when the city
	// has no history yet.
	Latest(ctx context.Context, city string) (*models.SystemAlert, error)
	// Append stores a new alert with Date and LastUpdate set to now.
	Append(ctx context.Context, city string, stationsDown []string) (models.SystemAlert, error)
	// Touch moves LastUpdate of an existing alert to now and nothing else.
	Touch(ctx context.Context, ref models.AlertRef) error
}

// StationLister returns the live station list of a city.
type StationLister interface {
	ListStations(ctx context.Context, city string) ([]models.Station, error)
}
