package weather

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"
)

type fakeSource struct {
	name    string
	reading Reading
	err     error
	calls   int
}

func (f *fakeSource) Name() string { return f.name }

func (f *fakeSource) Fetch(ctx context.Context) (Reading, error) {
	f.calls++
	return f.reading, f.err
}

type fakeStore struct {
	mu    sync.Mutex
	saved []Snapshot
}

func (f *fakeStore) SaveSnapshot(location string, snap Snapshot) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saved = append(f.saved, snap)
}

func (f *fakeStore) GetLatest(location string) (Snapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.saved) == 0 {
		return Snapshot{}, errors.New("not found")
	}
	return f.saved[len(f.saved)-1], nil
}

func (f *fakeStore) GetRange(location string, from, to time.Time) ([]Snapshot, error) {
	return nil, nil
}

type fakePublisher struct {
	mu        sync.Mutex
	published []Snapshot
}

func (f *fakePublisher) Publish(snap Snapshot) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.published = append(f.published, snap)
	return nil
}

// TestFetchAndStorePartialSuccess verifies one failing station does not stop
// the aggregate from being stored and published.
func TestFetchAndStorePartialSuccess(t *testing.T) {
	good := &fakeSource{
		name:    "good",
		reading: Reading{Temperature: 10, WindSpeed: 5, Fields: FieldTemperature | FieldWindSpeed, Valid: true},
	}
	bad := &fakeSource{
		name: "bad",
		err:  fmt.Errorf("fetch: %w", ErrNetworkTimeout),
	}
	st := &fakeStore{}
	pub := &fakePublisher{}

	svc := NewService("Solent", st, []Source{good, bad}, pub)
	if err := svc.FetchAndStore(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(st.saved) != 1 {
		t.Fatalf("saved snapshots = %d, want 1", len(st.saved))
	}
	if st.saved[0].Temperature != 10 {
		t.Fatalf("temperature = %v, want 10", st.saved[0].Temperature)
	}
	if len(pub.published) != 1 {
		t.Fatalf("published snapshots = %d, want 1", len(pub.published))
	}
}

// TestFetchAndStoreAllFail verifies the last good snapshot is not overwritten
// when every station fails.
func TestFetchAndStoreAllFail(t *testing.T) {
	bad := &fakeSource{name: "bad", err: ErrInvalidFormat}
	st := &fakeStore{saved: []Snapshot{{ID: "prior", Location: "Solent"}}}

	svc := NewService("Solent", st, []Source{bad}, nil)
	if err := svc.FetchAndStore(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(st.saved) != 1 || st.saved[0].ID != "prior" {
		t.Fatalf("store = %+v, want the prior snapshot untouched", st.saved)
	}
}

// TestFetchAndStoreNoSources verifies an unconfigured service errors.
func TestFetchAndStoreNoSources(t *testing.T) {
	svc := NewService("Solent", &fakeStore{}, nil, nil)
	if err := svc.FetchAndStore(context.Background()); err == nil {
		t.Fatal("expected an error with no sources configured")
	}
}

// TestFetchOne verifies per-station fetch stamps the reading and records the
// attempt status.
func TestFetchOne(t *testing.T) {
	src := &fakeSource{
		name:    "seaview",
		reading: Reading{Temperature: 8.5, Valid: true},
	}
	svc := NewService("Solent", &fakeStore{}, []Source{src}, nil)

	r, err := svc.FetchOne(context.Background(), "seaview")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.Station != "seaview" {
		t.Fatalf("station = %q, want seaview", r.Station)
	}
	if r.Timestamp.IsZero() {
		t.Fatal("expected a stamped timestamp")
	}

	statuses := svc.Statuses()
	if len(statuses) != 1 {
		t.Fatalf("statuses = %d, want 1", len(statuses))
	}
	if statuses[0].Status != ParseOK || statuses[0].StatusText != "ok" {
		t.Fatalf("status = %s/%q, want ok", statuses[0].Status, statuses[0].StatusText)
	}
	if statuses[0].LastSuccess.IsZero() {
		t.Fatal("expected LastSuccess to be set")
	}

	if _, err := svc.FetchOne(context.Background(), "nope"); err == nil {
		t.Fatal("expected an error for an unknown source")
	}
}

// TestFetchOneInvalidReading verifies a fetch returning no usable fields is
// rejected as a format error.
func TestFetchOneInvalidReading(t *testing.T) {
	src := &fakeSource{name: "seaview", reading: Reading{Valid: false}}
	svc := NewService("Solent", &fakeStore{}, []Source{src}, nil)

	_, err := svc.FetchOne(context.Background(), "seaview")
	if !errors.Is(err, ErrInvalidFormat) {
		t.Fatalf("expected ErrInvalidFormat, got %v", err)
	}
}

// TestStatusesPreserveLastSuccess verifies a later failure keeps the previous
// success timestamp.
func TestStatusesPreserveLastSuccess(t *testing.T) {
	src := &fakeSource{
		name:    "seaview",
		reading: Reading{Temperature: 5, Valid: true},
	}
	svc := NewService("Solent", &fakeStore{}, []Source{src}, nil)

	if _, err := svc.FetchOne(context.Background(), "seaview"); err != nil {
		t.Fatalf("first fetch: %v", err)
	}
	success := svc.Statuses()[0].LastSuccess

	src.err = fmt.Errorf("fetch: %w", ErrNetworkTimeout)
	if _, err := svc.FetchOne(context.Background(), "seaview"); err == nil {
		t.Fatal("expected the second fetch to fail")
	}

	st := svc.Statuses()[0]
	if st.Status != ParseNetworkTimeout {
		t.Fatalf("status = %s, want network_timeout", st.Status)
	}
	if !st.LastSuccess.Equal(success) {
		t.Fatalf("LastSuccess = %v, want preserved %v", st.LastSuccess, success)
	}
	if st.Error == "" {
		t.Fatal("expected the error text to be recorded")
	}
}
