package weather

import (
	"context"
	"errors"
)

var (
	// ErrUnknownLocation is returned when a location key is not configured.
	ErrUnknownLocation = errors.New("unknown location")
	// ErrNoProvider is returned when the service has no history provider.
	ErrNoProvider = errors.New("no history provider configured")
)

// HistoryProvider abstracts a historical weather data source (e.g. Open-Meteo).
type HistoryProvider interface {
	Name() string
	FetchHistory(ctx context.Context, req HistoryRequest) (HistoryResponse, error)
}

// Geocoder resolves a city to coordinates.
type Geocoder interface {
	Geocode(ctx context.Context, city, country string) (lat, lon float64, err error)
}

// Store is the contract the in-memory store (and any future persistent store) must satisfy.
type Store interface {
	SaveDataset(ds *Dataset)
	GetLatest(key string) (*Dataset, error)
	GetHistory(key string) ([]*Dataset, error)
}

// Exporter persists a dataset and returns the paths it wrote.
type Exporter interface {
	Export(ds *Dataset) ([]string, error)
}
