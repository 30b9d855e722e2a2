package main

import (
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/i474232898/weather-history/internal/cache"
	"github.com/i474232898/weather-history/internal/common"
	"github.com/i474232898/weather-history/internal/config"
	"github.com/i474232898/weather-history/internal/export"
	"github.com/i474232898/weather-history/internal/store"
	"github.com/i474232898/weather-history/internal/weather"
	"github.com/i474232898/weather-history/internal/weather/providers"
)

// loadConfig loads configuration and installs the logger it describes.
func loadConfig() (*config.AppConfig, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := common.InitLogger(cfg.LogLevel, cfg.LogDevelopment); err != nil {
		return nil, err
	}
	return cfg, nil
}

// buildService wires provider, cache, exporter and store from cfg.
func buildService(cfg *config.AppConfig, useCache bool) (*weather.Service, error) {
	// Shared HTTP client for outbound provider calls.
	httpCfg := providers.HTTPClientConfig{
		Client:  &http.Client{Timeout: cfg.HTTPTimeout},
		Backoff: providers.NewBackoffConfig(cfg.MaxRetries, cfg.BackoffFactor),
	}
	if useCache && cfg.CacheDir != "" {
		c, err := cache.NewDiskCache(cfg.CacheDir, cfg.CacheExpire)
		if err != nil {
			return nil, err
		}
		if removed, err := c.Purge(); err != nil {
			zap.L().Warn("failed to purge response cache", zap.String("dir", cfg.CacheDir), zap.Error(err))
		} else if removed > 0 {
			zap.L().Info("purged expired cache entries", zap.Int("removed", removed))
		}
		httpCfg.Cache = c
	}

	var provider weather.HistoryProvider
	switch cfg.Provider {
	case "weatherapi":
		provider = providers.NewWeatherAPIProvider(httpCfg, cfg.WeatherAPIKey, "")
	default:
		provider = providers.NewOpenMeteoProvider(httpCfg, cfg.OpenMeteoURL)
	}

	// In-memory store with configured retention.
	memStore := store.NewMemoryStore(cfg.StoreMaxHistory, cfg.StoreMaxAge)

	opts := []weather.Option{
		weather.WithExporter(export.NewCSVWriter(cfg.OutputDir, len(cfg.Locations) > 1)),
		weather.WithRequests(cfg.Requests(time.Now())...),
	}
	if cfg.GeocoderKey != "" {
		opts = append(opts, weather.WithGeocoder(providers.NewGoogleGeocoder(cfg.GeocoderKey)))
	}

	return weather.NewService(memStore, provider, opts...), nil
}
