package store

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/solentwx/weather-station/internal/weather"
)

// TestMemoryStoreLatest verifies save and latest retrieval per location.
func TestMemoryStoreLatest(t *testing.T) {
	s := NewMemoryStore(10, time.Hour)

	if _, err := s.GetLatest("Solent"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound on empty store, got %v", err)
	}

	now := time.Now().UTC()
	s.SaveSnapshot("Solent", weather.Snapshot{ID: "a", Location: "Solent", Timestamp: now.Add(-time.Minute)})
	s.SaveSnapshot("Solent", weather.Snapshot{ID: "b", Location: "Solent", Timestamp: now})

	snap, err := s.GetLatest("Solent")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if snap.ID != "b" {
		t.Fatalf("latest = %q, want b", snap.ID)
	}

	if _, err := s.GetLatest("Elsewhere"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for another location, got %v", err)
	}
}

// TestMemoryStoreRetentionByCount verifies the oldest snapshots are evicted
// past the history cap.
func TestMemoryStoreRetentionByCount(t *testing.T) {
	s := NewMemoryStore(3, 0)
	now := time.Now().UTC()

	for i := 0; i < 5; i++ {
		s.SaveSnapshot("Solent", weather.Snapshot{
			ID:        fmt.Sprintf("snap-%d", i),
			Timestamp: now.Add(time.Duration(i) * time.Minute),
		})
	}

	snaps, err := s.GetRange("Solent", now.Add(-time.Hour), now.Add(time.Hour))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(snaps) != 3 {
		t.Fatalf("retained = %d, want 3", len(snaps))
	}
	if snaps[0].ID != "snap-2" {
		t.Fatalf("oldest retained = %q, want snap-2", snaps[0].ID)
	}
}

// TestMemoryStoreRetentionByAge verifies stale snapshots are evicted on save.
func TestMemoryStoreRetentionByAge(t *testing.T) {
	s := NewMemoryStore(0, time.Hour)
	now := time.Now().UTC()

	s.SaveSnapshot("Solent", weather.Snapshot{ID: "stale", Timestamp: now.Add(-2 * time.Hour)})
	s.SaveSnapshot("Solent", weather.Snapshot{ID: "fresh", Timestamp: now})

	snaps, err := s.GetRange("Solent", now.Add(-24*time.Hour), now.Add(time.Hour))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(snaps) != 1 || snaps[0].ID != "fresh" {
		t.Fatalf("snaps = %+v, want only the fresh snapshot", snaps)
	}
}

// TestMemoryStoreGetRange verifies the inclusive range query.
func TestMemoryStoreGetRange(t *testing.T) {
	s := NewMemoryStore(0, 0)
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 4; i++ {
		s.SaveSnapshot("Solent", weather.Snapshot{
			ID:        fmt.Sprintf("snap-%d", i),
			Timestamp: base.Add(time.Duration(i) * time.Hour),
		})
	}

	snaps, err := s.GetRange("Solent", base.Add(time.Hour), base.Add(2*time.Hour))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(snaps) != 2 || snaps[0].ID != "snap-1" || snaps[1].ID != "snap-2" {
		t.Fatalf("snaps = %+v, want snap-1 and snap-2", snaps)
	}

	if _, err := s.GetRange("Solent", base.Add(10*time.Hour), base.Add(11*time.Hour)); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for an empty window, got %v", err)
	}
}
