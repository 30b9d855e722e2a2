package store

import (
	"errors"
	"sync"
	"time"

	"github.com/i474232898/weather-history/internal/weather"
)

var (
	// ErrNotFound is returned when no data is available for a given location.
	ErrNotFound = errors.New("no weather data for location")
)

// DatasetHistory holds the downloads of a location, oldest first.
type DatasetHistory struct {
	Datasets []*weather.Dataset
}

// MemoryStore is a concurrency-safe in-memory implementation of a dataset store.
type MemoryStore struct {
	mu sync.RWMutex

	// key: location key, value: history
	data map[string]*DatasetHistory

	// retention configuration
	maxHistory int           // max number of datasets per location
	maxAge     time.Duration // optional max age by fetch time

	now func() time.Time
}

// NewMemoryStore creates a new MemoryStore with optional limits.
// If maxHistory or maxAge is <= 0, it is treated as unlimited.
func NewMemoryStore(maxHistory int, maxAge time.Duration) *MemoryStore {
	return &MemoryStore{
		data:       make(map[string]*DatasetHistory),
		maxHistory: maxHistory,
		maxAge:     maxAge,
		now:        time.Now,
	}
}

// SaveDataset appends a dataset for its location and enforces retention.
// The newest dataset is always kept.
func (s *MemoryStore) SaveDataset(ds *weather.Dataset) {
	key := ds.Location.Key()

	s.mu.Lock()
	defer s.mu.Unlock()

	history, ok := s.data[key]
	if !ok {
		history = &DatasetHistory{}
		s.data[key] = history
	}

	history.Datasets = append(history.Datasets, ds)

	// Enforce retention by count.
	if s.maxHistory > 0 && len(history.Datasets) > s.maxHistory {
		over := len(history.Datasets) - s.maxHistory
		history.Datasets = history.Datasets[over:]
	}

	// Enforce retention by age.
	if s.maxAge > 0 {
		cutoff := s.now().Add(-s.maxAge)
		i := 0
		for ; i < len(history.Datasets)-1; i++ {
			if !history.Datasets[i].FetchedAt.Before(cutoff) {
				break
			}
		}
		history.Datasets = history.Datasets[i:]
	}
}

// GetLatest returns the most recent dataset for a location.
func (s *MemoryStore) GetLatest(key string) (*weather.Dataset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	history, ok := s.data[key]
	if !ok || len(history.Datasets) == 0 {
		return nil, ErrNotFound
	}
	return history.Datasets[len(history.Datasets)-1], nil
}

// GetHistory returns all retained datasets for a location, oldest first.
func (s *MemoryStore) GetHistory(key string) ([]*weather.Dataset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	history, ok := s.data[key]
	if !ok || len(history.Datasets) == 0 {
		return nil, ErrNotFound
	}
	out := make([]*weather.Dataset, len(history.Datasets))
	copy(out, history.Datasets)
	return out, nil
}
