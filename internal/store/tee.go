package store

import (
	"errors"
	"sort"
	"time"

	"github.com/solentwx/weather-station/internal/weather"
)

// TeeStore writes snapshots to both a hot (in-memory) and cold (SQLite)
// store, and falls back to the cold store on reads so history survives
// restarts.
type TeeStore struct {
	hot  weather.Store
	cold weather.Store
}

func NewTeeStore(hot, cold weather.Store) *TeeStore {
	return &TeeStore{hot: hot, cold: cold}
}

func (t *TeeStore) SaveSnapshot(location string, snapshot weather.Snapshot) {
	t.hot.SaveSnapshot(location, snapshot)
	t.cold.SaveSnapshot(location, snapshot)
}

func (t *TeeStore) GetLatest(location string) (weather.Snapshot, error) {
	snap, err := t.hot.GetLatest(location)
	if errors.Is(err, ErrNotFound) {
		return t.cold.GetLatest(location)
	}
	return snap, err
}

// GetRange merges both stores. Hot retention may have evicted the start of
// the window while the cold journal still holds it, so neither answer alone
// is complete.
func (t *TeeStore) GetRange(location string, from, to time.Time) ([]weather.Snapshot, error) {
	hot, err := t.hot.GetRange(location, from, to)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, err
	}
	cold, err := t.cold.GetRange(location, from, to)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	seen := make(map[string]bool, len(hot))
	out := make([]weather.Snapshot, 0, len(hot)+len(cold))
	for _, s := range hot {
		seen[s.ID] = true
		out = append(out, s)
	}
	for _, s := range cold {
		if !seen[s.ID] {
			out = append(out, s)
		}
	}
	if len(out) == 0 {
		return nil, ErrNotFound
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out, nil
}
