package storage

import (
	"context"
	"fmt"

	"github.com/rewired-gh/velofeed/internal/models"
)

// AlertStore is the backend-independent alert history used by the process.
type AlertStore interface {
	Latest(ctx context.Context, city string) (*models.SystemAlert, error)
	Append(ctx context.Context, city string, stationsDown []string) (models.SystemAlert, error)
	Touch(ctx context.Context, ref models.AlertRef) error
	History(ctx context.Context, city string, limit int) ([]models.SystemAlert, error)
	Cities(ctx context.Context) ([]string, error)
	Close() error
}

// Open selects a backend: "sqlite" (default) uses dbPath, "postgres" uses databaseURL.
func Open(ctx context.Context, driver, dbPath, databaseURL string) (AlertStore, error) {
	switch driver {
	case "", "sqlite":
		return New(dbPath)
	case "postgres":
		return NewPostgres(ctx, databaseURL)
	default:
		return nil, fmt.Errorf("unknown storage driver: %s", driver)
	}
}
