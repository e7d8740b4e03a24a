package alerts

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/rewired-gh/velofeed/internal/models"
	"github.com/rewired-gh/velofeed/internal/outage"
)

// Outcome reports one city's reconciliation. Alert is the opened or
// touched alert; Err is set when any step failed.
type Outcome struct {
	City   string
	Action Action
	Alert  models.SystemAlert
	Err    error
}

// Reconciler runs one reconciliation pass for one city at a time.
type Reconciler struct {
	stations StationLister
	store    Store
}

func NewReconciler(stations StationLister, store Store) *Reconciler {
	return &Reconciler{stations: stations, store: store}
}

// Reconcile never panics on collaborator errors; failures come back in
// Outcome.Err tagged with the step that failed.
func (r *Reconciler) Reconcile(ctx context.Context, city string) Outcome {
	out := Outcome{City: city}

	var (
		stations []models.Station
		latest   *models.SystemAlert
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		if stations, err = r.stations.ListStations(gctx, city); err != nil {
			return fmt.Errorf("failed to list stations: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		if latest, err = r.store.Latest(gctx, city); err != nil {
			return fmt.Errorf("failed to load latest alert: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		out.Err = err
		return out
	}

	d := Decide(outage.Snapshot(stations), latest)
	switch d.Action {
	case ActionOpen:
		alert, err := r.store.Append(ctx, city, d.StationsDown)
		if err != nil {
			out.Err = fmt.Errorf("failed to append alert: %w", err)
			return out
		}
		out.Action = ActionOpen
		out.Alert = alert
	case ActionTouch:
		if err := r.store.Touch(ctx, d.Ref); err != nil {
			out.Err = fmt.Errorf("failed to touch alert %s: %w", d.Ref.ID, err)
			return out
		}
		out.Action = ActionTouch
		out.Alert = *latest
	}
	return out
}
