package weather

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/i474232898/weather-history/internal/common"
	"github.com/i474232898/weather-history/internal/timeseries"
)

var validate = validator.New()

// Service orchestrates fetching history, filling gaps and persisting datasets.
type Service struct {
	store    Store
	provider HistoryProvider
	exporter Exporter
	geocoder Geocoder
	requests []HistoryRequest

	mu       sync.Mutex
	resolved map[string]Location
}

// Option configures optional Service collaborators.
type Option func(*Service)

// WithExporter persists every downloaded dataset through e.
func WithExporter(e Exporter) Option {
	return func(s *Service) { s.exporter = e }
}

// WithGeocoder resolves locations given by city name.
func WithGeocoder(g Geocoder) Option {
	return func(s *Service) { s.geocoder = g }
}

// WithRequests sets the downloads performed by Refresh and RefreshAll.
func WithRequests(reqs ...HistoryRequest) Option {
	return func(s *Service) { s.requests = append(s.requests, reqs...) }
}

// NewService creates a new Service.
func NewService(store Store, provider HistoryProvider, opts ...Option) *Service {
	s := &Service{
		store:    store,
		provider: provider,
		resolved: make(map[string]Location),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Download fetches one history window, fills both series and stores the
// result. When an exporter is configured the dataset is also written out; an
// export failure still returns the stored dataset alongside the error.
func (s *Service) Download(ctx context.Context, req HistoryRequest) (*Dataset, error) {
	runID := uuid.NewString()
	log := common.GetLogger(ctx).With(
		zap.String("location", req.Location.Key()),
		zap.String("run_id", runID),
	)

	if s.provider == nil {
		return nil, ErrNoProvider
	}
	if err := validate.Struct(req); err != nil {
		return nil, fmt.Errorf("invalid history request: %w", err)
	}
	if _, _, err := req.Window(); err != nil {
		return nil, err
	}

	loc, err := s.resolveLocation(ctx, req.Location)
	if err != nil {
		return nil, err
	}
	req.Location = loc

	log.Debug("fetching history",
		zap.String("provider", s.provider.Name()),
		zap.String("start", req.StartDate),
		zap.String("end", req.EndDate),
	)
	resp, err := s.provider.FetchHistory(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("fetch history for %s: %w", loc.Key(), err)
	}

	ds := &Dataset{
		RunID:     runID,
		Location:  loc,
		Request:   req,
		Metadata:  resp.Metadata,
		FetchedAt: time.Now().UTC(),
	}
	if ds.Hourly, err = fillPair(resp.Hourly); err != nil {
		return nil, fmt.Errorf("hourly data for %s: %w", loc.Key(), err)
	}
	if ds.Daily, err = fillPair(resp.Daily); err != nil {
		return nil, fmt.Errorf("daily data for %s: %w", loc.Key(), err)
	}

	for _, res := range []Resolution{ResolutionHourly, ResolutionDaily} {
		pair, _ := ds.Pair(res)
		fields := []zap.Field{
			zap.String("resolution", string(res)),
			zap.Int("samples", pair.Report.Total),
			zap.Int("missing_before", pair.Report.Missing),
			zap.Int("missing_after", pair.Report.Remaining),
		}
		if pair.Report.Remaining > 0 {
			log.Warn("series has no observed values; left unfilled", fields...)
			continue
		}
		log.Info("series filled", fields...)
	}

	s.store.SaveDataset(ds)

	if s.exporter != nil {
		paths, err := s.exporter.Export(ds)
		if err != nil {
			return ds, fmt.Errorf("export dataset for %s: %w", loc.Key(), err)
		}
		log.Info("dataset exported", zap.Strings("files", paths))
	}
	return ds, nil
}

func fillPair(raw timeseries.Series) (SeriesPair, error) {
	filled, report, err := timeseries.Fill(raw)
	if err != nil {
		return SeriesPair{}, err
	}
	return SeriesPair{Raw: raw, Filled: filled, Report: report}, nil
}

// resolveLocation geocodes locations that are given by city only. Results are
// cached for the lifetime of the service.
func (s *Service) resolveLocation(ctx context.Context, loc Location) (Location, error) {
	if loc.HasCoordinates() {
		return loc, nil
	}
	if loc.Lat != nil || loc.Lon != nil {
		return loc, fmt.Errorf("location %s: latitude and longitude must be set together", loc.Key())
	}

	key := loc.Key()
	s.mu.Lock()
	cached, ok := s.resolved[key]
	s.mu.Unlock()
	if ok {
		return cached, nil
	}

	if s.geocoder == nil {
		return loc, fmt.Errorf("location %s has no coordinates and no geocoder is configured", key)
	}
	lat, lon, err := s.geocoder.Geocode(ctx, loc.City, loc.Country)
	if err != nil {
		return loc, fmt.Errorf("geocode %s: %w", key, err)
	}

	resolved := loc
	resolved.Name = key
	resolved.Lat = &lat
	resolved.Lon = &lon

	s.mu.Lock()
	s.resolved[key] = resolved
	s.mu.Unlock()

	common.GetLogger(ctx).Info("location geocoded",
		zap.String("location", key),
		zap.Float64("latitude", lat),
		zap.Float64("longitude", lon),
	)
	return resolved, nil
}

// Refresh re-downloads the configured request for the location key.
func (s *Service) Refresh(ctx context.Context, key string) (*Dataset, error) {
	for _, req := range s.requests {
		if req.Location.Key() == key {
			return s.Download(ctx, req)
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownLocation, key)
}

// RefreshAll downloads every configured request concurrently. Datasets are
// returned in request order; failed downloads leave a nil entry and their
// errors are joined.
func (s *Service) RefreshAll(ctx context.Context) ([]*Dataset, error) {
	var (
		wg       sync.WaitGroup
		datasets = make([]*Dataset, len(s.requests))
		errs     = make([]error, len(s.requests))
	)

	if len(s.requests) == 0 {
		return nil, errors.New("no locations configured")
	}

	for i, req := range s.requests {
		wg.Add(1)
		go func(i int, req HistoryRequest) {
			defer wg.Done()

			ds, err := s.Download(ctx, req)
			datasets[i] = ds
			if err != nil {
				common.GetLogger(ctx).Error("download failed",
					zap.String("location", req.Location.Key()),
					zap.Error(err),
				)
				errs[i] = err
			}
		}(i, req)
	}
	wg.Wait()

	return datasets, errors.Join(errs...)
}

// Requests returns the configured downloads.
func (s *Service) Requests() []HistoryRequest {
	out := make([]HistoryRequest, len(s.requests))
	copy(out, s.requests)
	return out
}

// Known reports whether key names a configured location.
func (s *Service) Known(key string) bool {
	for _, req := range s.requests {
		if req.Location.Key() == key {
			return true
		}
	}
	return false
}

// GetLatest delegates to the underlying store.
func (s *Service) GetLatest(key string) (*Dataset, error) {
	return s.store.GetLatest(key)
}

// GetHistory returns the retained downloads of a location, oldest first.
func (s *Service) GetHistory(key string) ([]*Dataset, error) {
	return s.store.GetHistory(key)
}
