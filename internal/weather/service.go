package weather

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"
)

// Service orchestrates fetching from all stations and persisting snapshots.
type Service struct {
	location  string
	store     Store
	sources   []Source
	publisher Publisher

	mu       sync.Mutex
	statuses map[string]SourceStatus
}

// NewService creates a new Service. publisher may be nil.
func NewService(location string, store Store, sources []Source, publisher Publisher) *Service {
	return &Service{
		location:  location,
		store:     store,
		sources:   sources,
		publisher: publisher,
		statuses:  make(map[string]SourceStatus),
	}
}

// Location returns the logical location this service aggregates for.
func (s *Service) Location() string {
	return s.location
}

// SourceNames returns the names of all configured stations.
func (s *Service) SourceNames() []string {
	names := make([]string, 0, len(s.sources))
	for _, src := range s.sources {
		names = append(names, src.Name())
	}
	return names
}

// FetchAndStore fetches from all stations concurrently, aggregates the valid
// readings, and stores a snapshot. Stations that fail are logged and skipped;
// we want partial success when possible.
func (s *Service) FetchAndStore(ctx context.Context) error {
	if len(s.sources) == 0 {
		return fmt.Errorf("no weather sources configured")
	}

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		readings []Reading
	)

	for _, src := range s.sources {
		src := src
		wg.Add(1)
		go func() {
			defer wg.Done()

			r, err := s.fetchOne(ctx, src)
			if err != nil {
				log.Printf("source %s fetch failed: %v (%s)", src.Name(), err, Classify(err))
				return
			}

			mu.Lock()
			readings = append(readings, r)
			mu.Unlock()
		}()
	}

	wg.Wait()

	if len(readings) == 0 {
		// No stations succeeded; do not overwrite the last good snapshot.
		log.Printf("no successful readings for %s; keeping last good snapshot if any", s.location)
		return nil
	}

	snapshot := AggregateReadings(s.location, readings)
	if snapshot.Timestamp.IsZero() {
		snapshot.Timestamp = time.Now().UTC()
	}
	s.store.SaveSnapshot(s.location, snapshot)

	if s.publisher != nil {
		if err := s.publisher.Publish(snapshot); err != nil {
			log.Printf("publish snapshot for %s failed: %v", s.location, err)
		}
	}
	return nil
}

// FetchOne fetches a single station by name, without storing the result.
func (s *Service) FetchOne(ctx context.Context, name string) (Reading, error) {
	for _, src := range s.sources {
		if src.Name() == name {
			return s.fetchOne(ctx, src)
		}
	}
	return Reading{}, fmt.Errorf("unknown source %q", name)
}

func (s *Service) fetchOne(ctx context.Context, src Source) (Reading, error) {
	start := time.Now()
	r, err := src.Fetch(ctx)
	elapsed := time.Since(start)

	status := Classify(err)
	st := SourceStatus{
		Source:      src.Name(),
		Status:      status,
		StatusText:  status.String(),
		LastAttempt: start.UTC(),
		ParseTime:   elapsed,
	}
	if err != nil {
		st.Error = err.Error()
	}

	s.mu.Lock()
	if prev, ok := s.statuses[src.Name()]; ok {
		st.LastSuccess = prev.LastSuccess
	}
	if err == nil {
		st.LastSuccess = start.UTC()
	}
	s.statuses[src.Name()] = st
	s.mu.Unlock()

	if err != nil {
		return Reading{}, err
	}

	r.Station = src.Name()
	r.ParseDuration = elapsed
	if r.Timestamp.IsZero() {
		r.Timestamp = time.Now().UTC()
	}
	if !r.Valid {
		return Reading{}, fmt.Errorf("%s returned no usable fields: %w", src.Name(), ErrInvalidFormat)
	}
	return r, nil
}

// Statuses returns the last fetch outcome per station, in source order.
func (s *Service) Statuses() []SourceStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]SourceStatus, 0, len(s.sources))
	for _, src := range s.sources {
		if st, ok := s.statuses[src.Name()]; ok {
			out = append(out, st)
		}
	}
	return out
}

// GetLatest delegates to the underlying store.
func (s *Service) GetLatest() (Snapshot, error) {
	return s.store.GetLatest(s.location)
}

// GetRange delegates to the underlying store.
func (s *Service) GetRange(from, to time.Time) ([]Snapshot, error) {
	return s.store.GetRange(s.location, from, to)
}
