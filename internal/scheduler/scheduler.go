// Package scheduler runs alert reconciliation for every known city on a
// fixed interval.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/rewired-gh/velofeed/internal/alerts"
	"github.com/rewired-gh/velofeed/internal/logger"
	"github.com/rewired-gh/velofeed/internal/models"
)

const (
	Interval       = 10 * time.Minute
	DefaultWorkers = 4
	CityTimeout    = 30 * time.Second
)

// CityLister returns the current contract list.
type CityLister interface {
	ListCities(ctx context.Context) ([]models.City, error)
}

// CityReconciler reconciles one city.
type CityReconciler interface {
	Reconcile(ctx context.Context, city string) alerts.Outcome
}

// Report summarises one pass. Outcomes follow the order of the city list.
type Report struct {
	StartedAt time.Time
	Duration  time.Duration
	Outcomes  []alerts.Outcome
}

func (r Report) filter(keep func(alerts.Outcome) bool) []alerts.Outcome {
	var out []alerts.Outcome
	for _, o := range r.Outcomes {
		if keep(o) {
			out = append(out, o)
		}
	}
	return out
}

// Opened returns cities whose outage set changed this pass.
func (r Report) Opened() []alerts.Outcome {
	return r.filter(func(o alerts.Outcome) bool { return o.Err == nil && o.Action == alerts.ActionOpen })
}

// Touched returns cities whose latest alert was refreshed.
func (r Report) Touched() []alerts.Outcome {
	return r.filter(func(o alerts.Outcome) bool { return o.Err == nil && o.Action == alerts.ActionTouch })
}

// Failed returns cities whose reconciliation errored.
func (r Report) Failed() []alerts.Outcome {
	return r.filter(func(o alerts.Outcome) bool { return o.Err != nil })
}

// Option configures a Scheduler.
type Option func(*Scheduler)

func WithInterval(d time.Duration) Option {
	return func(s *Scheduler) { s.interval = d }
}

func WithWorkers(n int) Option {
	return func(s *Scheduler) { s.workers = n }
}

func WithCityTimeout(d time.Duration) Option {
	return func(s *Scheduler) { s.cityTimeout = d }
}

// WithReportHook is called after every pass with its report, or with the
// error that prevented the pass from listing cities.
func WithReportHook(fn func(Report, error)) Option {
	return func(s *Scheduler) { s.onReport = fn }
}

type Scheduler struct {
	cities      CityLister
	reconciler  CityReconciler
	interval    time.Duration
	workers     int
	cityTimeout time.Duration
	onReport    func(Report, error)
}

func New(cities CityLister, reconciler CityReconciler, opts ...Option) *Scheduler {
	s := &Scheduler{
		cities:      cities,
		reconciler:  reconciler,
		interval:    Interval,
		workers:     DefaultWorkers,
		cityTimeout: CityTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.workers < 1 {
		s.workers = 1
	}
	return s
}

// RunOnce reconciles every city once. Per-city failures are recorded in the
// report; only failing to list cities returns an error.
func (s *Scheduler) RunOnce(ctx context.Context) (Report, error) {
	report := Report{StartedAt: time.Now()}

	cities, err := s.cities.ListCities(ctx)
	if err != nil {
		return report, fmt.Errorf("failed to list cities: %w", err)
	}

	report.Outcomes = make([]alerts.Outcome, len(cities))
	var g errgroup.Group
	g.SetLimit(s.workers)
	for i, city := range cities {
		g.Go(func() error {
			report.Outcomes[i] = s.reconcileCity(ctx, city.Name)
			return nil
		})
	}
	_ = g.Wait()

	report.Duration = time.Since(report.StartedAt)
	return report, nil
}

func (s *Scheduler) reconcileCity(ctx context.Context, city string) (out alerts.Outcome) {
	defer func() {
		if r := recover(); r != nil {
			out = alerts.Outcome{City: city, Err: fmt.Errorf("panic: %v", r)}
		}
		if out.Err != nil {
			logger.Error("Failed generating system alerts for %s: %v", city, out.Err)
		}
	}()

	cctx, cancel := context.WithTimeout(ctx, s.cityTimeout)
	defer cancel()
	return s.reconciler.Reconcile(cctx, city)
}

// Run performs an initial pass and then one pass per interval until ctx is
// cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	logger.Info("Starting alert reconciliation (interval: %v, workers: %d)", s.interval, s.workers)
	s.pass(ctx)

	for {
		select {
		case <-ctx.Done():
			logger.Info("Alert reconciliation stopped")
			return
		case <-ticker.C:
			s.pass(ctx)
		}
	}
}

func (s *Scheduler) pass(ctx context.Context) {
	logger.Debug("Starting reconciliation pass")
	report, err := s.RunOnce(ctx)
	if err != nil {
		logger.Error("Reconciliation pass failed: %v", err)
	} else {
		logger.Info("Reconciliation pass completed in %v: %d cities, %d opened, %d touched, %d failed",
			report.Duration, len(report.Outcomes), len(report.Opened()), len(report.Touched()), len(report.Failed()))
	}
	if s.onReport != nil {
		s.onReport(report, err)
	}
}
