// Package storage provides persistence for per-city system alert history.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/rewired-gh/velofeed/internal/models"
	_ "modernc.org/sqlite"
)

var (
	// ErrPersistence wraps every failed read or write against the backend.
	ErrPersistence = errors.New("persistence failure")
	// ErrAlertNotFound is returned when touching an alert that does not exist.
	ErrAlertNotFound = errors.New("alert not found")
)

// Storage wraps a SQLite database holding the system_alerts collection.
type Storage struct {
	db  *sql.DB
	now func() time.Time
}

// New opens or creates the SQLite database at dbPath.
// An empty dbPath defaults to $TMPDIR/velofeed/data.db.
func New(dbPath string) (*Storage, error) {
	if dbPath == "" {
		dbPath = filepath.Join(os.TempDir(), "velofeed", "data.db")
	}
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1) // single writer; WAL allows concurrent readers
	if _, err := db.Exec(`PRAGMA journal_mode=WAL`); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set WAL mode: %w", err)
	}
	s := &Storage{db: db, now: time.Now}
	if err := s.createTables(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *Storage) Close() error {
	return s.db.Close()
}

func (s *Storage) createTables() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS system_alerts (
			id            TEXT PRIMARY KEY,
			city          TEXT NOT NULL,
			date          INTEGER NOT NULL,
			last_update   INTEGER NOT NULL,
			stations_down TEXT NOT NULL DEFAULT '[]',
			description   TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE INDEX IF NOT EXISTS idx_system_alerts_city_date ON system_alerts(city, date DESC)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

const alertCols = `id, city, date, last_update, stations_down, description`

// Latest returns the newest alert of a city by date, or nil without history.
func (s *Storage) Latest(ctx context.Context, city string) (*models.SystemAlert, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+alertCols+` FROM system_alerts
		WHERE city = ? ORDER BY date DESC, rowid DESC LIMIT 1`, city)
	a, err := scanAlert(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: failed to get latest alert for %s: %v", ErrPersistence, city, err)
	}
	return a, nil
}

// Append inserts a new alert whose date and last update are both now.
func (s *Storage) Append(ctx context.Context, city string, stationsDown []string) (models.SystemAlert, error) {
	if stationsDown == nil {
		stationsDown = []string{}
	}
	down, err := json.Marshal(stationsDown)
	if err != nil {
		return models.SystemAlert{}, fmt.Errorf("failed to marshal stations: %w", err)
	}

	now := s.now()
	a := models.SystemAlert{
		ID:           uuid.New().String(),
		City:         city,
		Date:         now,
		LastUpdate:   now,
		StationsDown: append([]string(nil), stationsDown...),
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO system_alerts (`+alertCols+`)
		VALUES (?,?,?,?,?,?)`,
		a.ID, a.City, now.UnixNano(), now.UnixNano(), string(down), a.Description,
	)
	if err != nil {
		return models.SystemAlert{}, fmt.Errorf("%w: failed to insert alert: %v", ErrPersistence, err)
	}
	return a, nil
}

// Touch sets last_update of one alert to now.
func (s *Storage) Touch(ctx context.Context, ref models.AlertRef) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE system_alerts SET last_update = ? WHERE id = ? AND city = ?`,
		s.now().UnixNano(), ref.ID, ref.City,
	)
	if err != nil {
		return fmt.Errorf("%w: failed to update alert: %v", ErrPersistence, err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("%w: %s/%s", ErrAlertNotFound, ref.City, ref.ID)
	}
	return nil
}

// History returns up to limit alerts of a city, newest first.
func (s *Storage) History(ctx context.Context, city string, limit int) ([]models.SystemAlert, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+alertCols+` FROM system_alerts
		WHERE city = ? ORDER BY date DESC, rowid DESC LIMIT ?`, city, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to query alerts: %v", ErrPersistence, err)
	}
	defer rows.Close()

	alerts := []models.SystemAlert{}
	for rows.Next() {
		a, err := scanAlert(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("%w: failed to scan alert: %v", ErrPersistence, err)
		}
		alerts = append(alerts, *a)
	}
	return alerts, rows.Err()
}

// Cities returns every city with at least one alert, sorted by name.
func (s *Storage) Cities(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT city FROM system_alerts ORDER BY city`)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to query cities: %v", ErrPersistence, err)
	}
	defer rows.Close()

	cities := []string{}
	for rows.Next() {
		var city string
		if err := rows.Scan(&city); err != nil {
			return nil, fmt.Errorf("%w: failed to scan city: %v", ErrPersistence, err)
		}
		cities = append(cities, city)
	}
	return cities, rows.Err()
}

func scanAlert(scan func(...any) error) (*models.SystemAlert, error) {
	var a models.SystemAlert
	var dateNano, lastUpdateNano int64
	var down string
	if err := scan(&a.ID, &a.City, &dateNano, &lastUpdateNano, &down, &a.Description); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(down), &a.StationsDown); err != nil {
		return nil, fmt.Errorf("failed to unmarshal stations: %w", err)
	}
	a.Date = time.Unix(0, dateNano)
	a.LastUpdate = time.Unix(0, lastUpdateNano)
	return &a, nil
}
