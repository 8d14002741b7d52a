package store

import (
	"database/sql"
	"errors"
	"fmt"
	"log"
	"time"

	_ "modernc.org/sqlite"

	"github.com/solentwx/weather-station/internal/weather"
)

// ErrNoSetting is returned when a settings key has never been written.
var ErrNoSetting = errors.New("setting not found")

// tsFormat is fixed-width so lexicographic TEXT comparisons in SQL match
// chronological order. RFC3339Nano drops trailing fraction zeros, which
// breaks ordering between same-second timestamps with and without fractions.
const tsFormat = "2006-01-02T15:04:05.000000000Z07:00"

const schema = `
CREATE TABLE IF NOT EXISTS readings (
	id             TEXT PRIMARY KEY,
	location       TEXT NOT NULL,
	ts             TEXT NOT NULL,
	temperature    REAL NOT NULL DEFAULT 0,
	humidity       REAL NOT NULL DEFAULT 0,
	pressure       REAL NOT NULL DEFAULT 0,
	wind_speed     REAL NOT NULL DEFAULT 0,
	wind_gust      REAL NOT NULL DEFAULT 0,
	wind_direction INTEGER NOT NULL DEFAULT 0,
	visibility     REAL NOT NULL DEFAULT 0,
	uv_index       REAL NOT NULL DEFAULT 0,
	precipitation  REAL NOT NULL DEFAULT 0,
	conditions     TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_readings_location_ts ON readings(location, ts);

CREATE TABLE IF NOT EXISTS settings (
	namespace TEXT NOT NULL,
	key       TEXT NOT NULL,
	value     TEXT NOT NULL,
	PRIMARY KEY (namespace, key)
);
`

// SQLiteStore persists snapshots and namespaced settings in a local SQLite
// database. It satisfies weather.Store so it can back the in-memory store
// across restarts.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens (or creates) the database at path and applies the schema.
func NewSQLite(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %q: %w", path, err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// SaveSnapshot appends a snapshot to the readings journal. Persistence
// failures are logged, not propagated; the in-memory history stays the
// source of truth for live queries.
func (s *SQLiteStore) SaveSnapshot(location string, snap weather.Snapshot) {
	if err := s.insertSnapshot(location, snap); err != nil {
		log.Printf("sqlite: save snapshot for %s failed: %v", location, err)
	}
}

func (s *SQLiteStore) insertSnapshot(location string, snap weather.Snapshot) error {
	_, err := s.db.Exec(`INSERT INTO readings
		(id, location, ts, temperature, humidity, pressure, wind_speed, wind_gust,
		 wind_direction, visibility, uv_index, precipitation, conditions)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		snap.ID, location, snap.Timestamp.UTC().Format(tsFormat),
		snap.Temperature, snap.Humidity, snap.Pressure, snap.WindSpeed, snap.WindGust,
		snap.WindDirection, snap.Visibility, snap.UVIndex, snap.Precipitation,
		snap.Conditions)
	return err
}

// GetLatest returns the most recent persisted snapshot for a location.
func (s *SQLiteStore) GetLatest(location string) (weather.Snapshot, error) {
	row := s.db.QueryRow(`SELECT id, location, ts, temperature, humidity, pressure,
		wind_speed, wind_gust, wind_direction, visibility, uv_index, precipitation, conditions
		FROM readings WHERE location = ? ORDER BY ts DESC LIMIT 1`, location)

	snap, err := scanSnapshot(row)
	if errors.Is(err, sql.ErrNoRows) {
		return weather.Snapshot{}, ErrNotFound
	}
	return snap, err
}

// GetRange returns persisted snapshots for a location between from and to (inclusive).
func (s *SQLiteStore) GetRange(location string, from, to time.Time) ([]weather.Snapshot, error) {
	rows, err := s.db.Query(`SELECT id, location, ts, temperature, humidity, pressure,
		wind_speed, wind_gust, wind_direction, visibility, uv_index, precipitation, conditions
		FROM readings WHERE location = ? AND ts >= ? AND ts <= ? ORDER BY ts ASC`,
		location, from.UTC().Format(tsFormat), to.UTC().Format(tsFormat))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []weather.Snapshot
	for rows.Next() {
		snap, err := scanSnapshot(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, snap)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, ErrNotFound
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSnapshot(row rowScanner) (weather.Snapshot, error) {
	var snap weather.Snapshot
	var ts string
	err := row.Scan(&snap.ID, &snap.Location, &ts, &snap.Temperature, &snap.Humidity,
		&snap.Pressure, &snap.WindSpeed, &snap.WindGust, &snap.WindDirection,
		&snap.Visibility, &snap.UVIndex, &snap.Precipitation, &snap.Conditions)
	if err != nil {
		return weather.Snapshot{}, err
	}
	t, err := time.Parse(tsFormat, ts)
	if err != nil {
		return weather.Snapshot{}, fmt.Errorf("parse timestamp %q: %w", ts, err)
	}
	snap.Timestamp = t
	return snap, nil
}

// SetSetting writes one key in a settings namespace, replacing any prior value.
func (s *SQLiteStore) SetSetting(namespace, key, value string) error {
	_, err := s.db.Exec(`INSERT INTO settings (namespace, key, value) VALUES (?, ?, ?)
		ON CONFLICT(namespace, key) DO UPDATE SET value = excluded.value`,
		namespace, key, value)
	return err
}

// GetSetting reads one key from a settings namespace.
func (s *SQLiteStore) GetSetting(namespace, key string) (string, error) {
	var value string
	err := s.db.QueryRow(`SELECT value FROM settings WHERE namespace = ? AND key = ?`,
		namespace, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNoSetting
	}
	return value, err
}

// ClearNamespace removes every key in a settings namespace.
func (s *SQLiteStore) ClearNamespace(namespace string) error {
	_, err := s.db.Exec(`DELETE FROM settings WHERE namespace = ?`, namespace)
	return err
}
