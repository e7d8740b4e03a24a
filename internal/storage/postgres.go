package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rewired-gh/velofeed/internal/models"
)

// Postgres stores alerts in a PostgreSQL database. Timestamps come from the
// server clock.
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres connects to databaseURL and ensures the schema exists.
func NewPostgres(ctx context.Context, databaseURL string) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to reach database: %w", err)
	}
	p := &Postgres{pool: pool}
	if err := p.createTables(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	return p, nil
}

// Close releases the pool resources.
func (p *Postgres) Close() error {
	p.pool.Close()
	return nil
}

func (p *Postgres) createTables(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS system_alerts (
			id            UUID PRIMARY KEY,
			seq           BIGSERIAL,
			city          TEXT NOT NULL,
			date          TIMESTAMPTZ NOT NULL,
			last_update   TIMESTAMPTZ NOT NULL,
			stations_down TEXT[] NOT NULL DEFAULT '{}',
			description   TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE INDEX IF NOT EXISTS idx_system_alerts_city_date ON system_alerts(city, date DESC, seq DESC)`,
	}
	for _, stmt := range stmts {
		if _, err := p.pool.Exec(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

const pgAlertCols = `id::text, city, date, last_update, stations_down, description`

func (p *Postgres) Latest(ctx context.Context, city string) (*models.SystemAlert, error) {
	row := p.pool.QueryRow(ctx, `
SELECT `+pgAlertCols+` FROM system_alerts
WHERE city = $1 ORDER BY date DESC, seq DESC LIMIT 1`, city)
	a, err := scanPgAlert(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: failed to get latest alert for %s: %v", ErrPersistence, city, err)
	}
	return a, nil
}

func (p *Postgres) Append(ctx context.Context, city string, stationsDown []string) (models.SystemAlert, error) {
	if stationsDown == nil {
		stationsDown = []string{}
	}
	row := p.pool.QueryRow(ctx, `
INSERT INTO system_alerts (id, city, date, last_update, stations_down)
VALUES ($1, $2, now(), now(), $3)
RETURNING `+pgAlertCols, uuid.New().String(), city, stationsDown)
	a, err := scanPgAlert(row)
	if err != nil {
		return models.SystemAlert{}, fmt.Errorf("%w: failed to insert alert: %v", ErrPersistence, err)
	}
	return *a, nil
}

func (p *Postgres) Touch(ctx context.Context, ref models.AlertRef) error {
	id, err := uuid.Parse(ref.ID)
	if err != nil {
		return fmt.Errorf("%w: %s/%s", ErrAlertNotFound, ref.City, ref.ID)
	}
	tag, err := p.pool.Exec(ctx,
		`UPDATE system_alerts SET last_update = now() WHERE id = $1 AND city = $2`, id.String(), ref.City)
	if err != nil {
		return fmt.Errorf("%w: failed to update alert: %v", ErrPersistence, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s/%s", ErrAlertNotFound, ref.City, ref.ID)
	}
	return nil
}

func (p *Postgres) History(ctx context.Context, city string, limit int) ([]models.SystemAlert, error) {
	rows, err := p.pool.Query(ctx, `
SELECT `+pgAlertCols+` FROM system_alerts
WHERE city = $1 ORDER BY date DESC, seq DESC LIMIT $2`, city, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to query alerts: %v", ErrPersistence, err)
	}
	defer rows.Close()

	alerts := []models.SystemAlert{}
	for rows.Next() {
		a, err := scanPgAlert(rows)
		if err != nil {
			return nil, fmt.Errorf("%w: failed to scan alert: %v", ErrPersistence, err)
		}
		alerts = append(alerts, *a)
	}
	return alerts, rows.Err()
}

func (p *Postgres) Cities(ctx context.Context) ([]string, error) {
	rows, err := p.pool.Query(ctx, `SELECT DISTINCT city FROM system_alerts ORDER BY city`)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to query cities: %v", ErrPersistence, err)
	}
	cities, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("%w: failed to scan cities: %v", ErrPersistence, err)
	}
	if cities == nil {
		cities = []string{}
	}
	return cities, nil
}

func scanPgAlert(row pgx.Row) (*models.SystemAlert, error) {
	var a models.SystemAlert
	if err := row.Scan(&a.ID, &a.City, &a.Date, &a.LastUpdate, &a.StationsDown, &a.Description); err != nil {
		return nil, err
	}
	return &a, nil
}
