package store

import (
	"errors"
	"sync"
	"time"

	"github.com/solentwx/weather-station/internal/weather"
)

var (
	// ErrNotFound is returned when no data is available for a given location.
	ErrNotFound = errors.New("no weather data for location")
)

// snapshotHistory holds a time-ordered list of snapshots for a location.
type snapshotHistory struct {
	snapshots []weather.Snapshot
}

// MemoryStore is a concurrency-safe in-memory implementation of weather.Store.
type MemoryStore struct {
	mu sync.RWMutex

	// key: location, value: history
	data map[string]*snapshotHistory

	// retention configuration
	maxHistory int           // max number of snapshots per location
	maxAge     time.Duration // optional max age for snapshots
}

// NewMemoryStore creates a new MemoryStore with optional limits.
// If maxHistory is <= 0, it is treated as unlimited.
func NewMemoryStore(maxHistory int, maxAge time.Duration) *MemoryStore {
	return &MemoryStore{
		data:       make(map[string]*snapshotHistory),
		maxHistory: maxHistory,
		maxAge:     maxAge,
	}
}

// SaveSnapshot appends a new snapshot for a location and enforces retention.
func (s *MemoryStore) SaveSnapshot(location string, snapshot weather.Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()

	history, ok := s.data[location]
	if !ok {
		history = &snapshotHistory{}
		s.data[location] = history
	}

	history.snapshots = append(history.snapshots, snapshot)

	// Enforce retention by count.
	if s.maxHistory > 0 && len(history.snapshots) > s.maxHistory {
		over := len(history.snapshots) - s.maxHistory
		history.snapshots = history.snapshots[over:]
	}

	// Enforce retention by age.
	if s.maxAge > 0 {
		cutoff := time.Now().Add(-s.maxAge)
		i := 0
		for ; i < len(history.snapshots); i++ {
			if !history.snapshots[i].Timestamp.Before(cutoff) {
				break
			}
		}
		if i > 0 && i < len(history.snapshots) {
			history.snapshots = history.snapshots[i:]
		}
	}
}

// GetLatest returns the most recent snapshot for a location.
func (s *MemoryStore) GetLatest(location string) (weather.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	history, ok := s.data[location]
	if !ok || len(history.snapshots) == 0 {
		return weather.Snapshot{}, ErrNotFound
	}
	return history.snapshots[len(history.snapshots)-1], nil
}

// GetRange returns all snapshots for a location between from and to (inclusive).
func (s *MemoryStore) GetRange(location string, from, to time.Time) ([]weather.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	history, ok := s.data[location]
	if !ok || len(history.snapshots) == 0 {
		return nil, ErrNotFound
	}

	var result []weather.Snapshot
	for _, snap := range history.snapshots {
		if !snap.Timestamp.Before(from) && !snap.Timestamp.After(to) {
			result = append(result, snap)
		}
	}

	if len(result) == 0 {
		return nil, ErrNotFound
	}

	return result, nil
}
