package weather

import (
	"context"
	"time"
)

// Source abstracts a weather station endpoint (e.g. WeatherLink, WeatherFile,
// Southampton VTS, Navis live-data).
type Source interface {
	Name() string
	Fetch(ctx context.Context) (Reading, error)
}

// Store is the contract the in-memory store (and the SQLite store) must satisfy.
type Store interface {
	SaveSnapshot(location string, snapshot Snapshot)
	GetLatest(location string) (Snapshot, error)
	GetRange(location string, from, to time.Time) ([]Snapshot, error)
}

// Publisher receives every aggregated snapshot after it is stored.
// Implementations must be safe for concurrent use.
type Publisher interface {
	Publish(snapshot Snapshot) error
}

// SourceStatus records the outcome of the most recent fetch attempt per station.
type SourceStatus struct {
	Source      string        `json:"source"`
	Status      ParseStatus   `json:"-"`
	StatusText  string        `json:"status"`
	Error       string        `json:"error,omitempty"`
	LastAttempt time.Time     `json:"lastAttempt"`
	LastSuccess time.Time     `json:"lastSuccess,omitempty"`
	ParseTime   time.Duration `json:"parseTime"`
}
