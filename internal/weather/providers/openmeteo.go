package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/sony/gobreaker"

	"github.com/i474232898/weather-history/internal/timeseries"
	"github.com/i474232898/weather-history/internal/weather"
)

// DefaultOpenMeteoURL is the Open-Meteo historical forecast endpoint.
const DefaultOpenMeteoURL = "https://historical-forecast-api.open-meteo.com/v1/forecast"

// OpenMeteoProvider implements weather.HistoryProvider for Open-Meteo.
type OpenMeteoProvider struct {
	name    string
	baseURL string
	httpCfg HTTPClientConfig
	circuit *gobreaker.CircuitBreaker
}

func NewOpenMeteoProvider(cfg HTTPClientConfig, baseURL string) *OpenMeteoProvider {
	if baseURL == "" {
		baseURL = DefaultOpenMeteoURL
	}
	return &OpenMeteoProvider{
		name:    "openmeteo",
		baseURL: baseURL,
		httpCfg: cfg,
		circuit: newCircuitBreaker("openmeteo"),
	}
}

func (p *OpenMeteoProvider) Name() string {
	return p.name
}

type openMeteoPayload struct {
	Latitude             float64        `json:"latitude"`
	Longitude            float64        `json:"longitude"`
	Elevation            float64        `json:"elevation"`
	Timezone             string         `json:"timezone"`
	TimezoneAbbreviation string         `json:"timezone_abbreviation"`
	UTCOffsetSeconds     int            `json:"utc_offset_seconds"`
	Hourly               openMeteoBlock `json:"hourly"`
	Daily                openMeteoBlock `json:"daily"`
}

// openMeteoBlock holds "time" plus one array per requested variable.
type openMeteoBlock map[string]json.RawMessage

func (b openMeteoBlock) series(variable string, fallback time.Duration) (timeseries.Series, error) {
	var (
		stamps []int64
		values []*float64
	)
	if raw, ok := b["time"]; ok {
		if err := json.Unmarshal(raw, &stamps); err != nil {
			return timeseries.Series{}, fmt.Errorf("decode time: %w", err)
		}
	}
	if raw, ok := b[variable]; ok {
		if err := json.Unmarshal(raw, &values); err != nil {
			return timeseries.Series{}, fmt.Errorf("decode %s: %w", variable, err)
		}
	} else if len(stamps) > 0 {
		return timeseries.Series{}, fmt.Errorf("response has no %q values", variable)
	}

	times := make([]time.Time, len(stamps))
	for i, ts := range stamps {
		times[i] = time.Unix(ts, 0).UTC()
	}
	s, err := timeseries.NewSeries(variable, times, nullableFloats(values))
	if err != nil {
		return timeseries.Series{}, fmt.Errorf("%s: %w", variable, err)
	}
	if s.Interval == 0 {
		s.Interval = fallback
	}
	return s, nil
}

func (p *OpenMeteoProvider) requestURL(req weather.HistoryRequest) string {
	values := url.Values{}
	values.Set("latitude", strconv.FormatFloat(*req.Location.Lat, 'f', -1, 64))
	values.Set("longitude", strconv.FormatFloat(*req.Location.Lon, 'f', -1, 64))
	values.Set("start_date", req.StartDate)
	values.Set("end_date", req.EndDate)
	values.Set("hourly", req.HourlyVariable)
	values.Set("daily", req.DailyVariable)
	values.Set("timeformat", "unixtime")
	return fmt.Sprintf("%s?%s", p.baseURL, values.Encode())
}

func (p *OpenMeteoProvider) FetchHistory(ctx context.Context, req weather.HistoryRequest) (weather.HistoryResponse, error) {
	if !req.Location.HasCoordinates() {
		return weather.HistoryResponse{}, fmt.Errorf("openmeteo requires latitude and longitude")
	}

	u := p.requestURL(req)
	buildRequest := func() (*http.Request, error) {
		return http.NewRequest(http.MethodGet, u, nil)
	}

	body, err := fetchWithResilience(ctx, p.httpCfg, p.circuit, u, buildRequest)
	if err != nil {
		return weather.HistoryResponse{}, err
	}

	var payload openMeteoPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return weather.HistoryResponse{}, fmt.Errorf("decode openmeteo response: %w", err)
	}

	hourly, err := payload.Hourly.series(req.HourlyVariable, time.Hour)
	if err != nil {
		return weather.HistoryResponse{}, fmt.Errorf("openmeteo hourly: %w", err)
	}
	daily, err := payload.Daily.series(req.DailyVariable, 24*time.Hour)
	if err != nil {
		return weather.HistoryResponse{}, fmt.Errorf("openmeteo daily: %w", err)
	}

	return weather.HistoryResponse{
		Metadata: weather.Metadata{
			Latitude:             payload.Latitude,
			Longitude:            payload.Longitude,
			Elevation:            payload.Elevation,
			Timezone:             payload.Timezone,
			TimezoneAbbreviation: payload.TimezoneAbbreviation,
			UTCOffsetSeconds:     payload.UTCOffsetSeconds,
		},
		Hourly: hourly,
		Daily:  daily,
	}, nil
}
