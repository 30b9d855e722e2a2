package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"
	_ "time/tzdata"

	"github.com/sony/gobreaker"

	"github.com/i474232898/weather-history/internal/weather"
)

// DefaultWeatherAPIURL is the WeatherAPI.com history endpoint.
const DefaultWeatherAPIURL = "https://api.weatherapi.com/v1/history.json"

// Open-Meteo variable names mapped to WeatherAPI.com fields, so both
// providers accept the same configuration.
var (
	weatherAPIHourlyFields = map[string]string{
		"temperature_2m":       "temp_c",
		"relative_humidity_2m": "humidity",
		"precipitation":        "precip_mm",
		"pressure_msl":         "pressure_mb",
		"wind_speed_10m":       "wind_kph",
		"dew_point_2m":         "dewpoint_c",
	}
	weatherAPIDailyFields = map[string]string{
		"temperature_2m_mean": "avgtemp_c",
		"temperature_2m_max":  "maxtemp_c",
		"temperature_2m_min":  "mintemp_c",
		"precipitation_sum":   "totalprecip_mm",
		"wind_speed_10m_max":  "maxwind_kph",
	}
)

// WeatherAPIProvider implements weather.HistoryProvider for WeatherAPI.com.
type WeatherAPIProvider struct {
	name    string
	apiKey  string
	baseURL string
	httpCfg HTTPClientConfig
	circuit *gobreaker.CircuitBreaker
}

func NewWeatherAPIProvider(cfg HTTPClientConfig, apiKey, baseURL string) *WeatherAPIProvider {
	if baseURL == "" {
		baseURL = DefaultWeatherAPIURL
	}
	return &WeatherAPIProvider{
		name:    "weatherapi",
		apiKey:  apiKey,
		baseURL: baseURL,
		httpCfg: cfg,
		circuit: newCircuitBreaker("weatherapi"),
	}
}

func (p *WeatherAPIProvider) Name() string {
	return p.name
}

type weatherAPIPayload struct {
	Location struct {
		Lat  float64 `json:"lat"`
		Lon  float64 `json:"lon"`
		TzID string  `json:"tz_id"`
	} `json:"location"`
	Forecast struct {
		ForecastDay []struct {
			DateEpoch int64                        `json:"date_epoch"`
			Day       map[string]json.RawMessage   `json:"day"`
			Hour      []map[string]json.RawMessage `json:"hour"`
		} `json:"forecastday"`
	} `json:"forecast"`
}

func numberField(fields map[string]json.RawMessage, key string) (float64, bool) {
	raw, ok := fields[key]
	if !ok {
		return 0, false
	}
	var v *float64
	if err := json.Unmarshal(raw, &v); err != nil || v == nil {
		return 0, false
	}
	return *v, true
}

func (p *WeatherAPIProvider) FetchHistory(ctx context.Context, req weather.HistoryRequest) (weather.HistoryResponse, error) {
	if p.apiKey == "" {
		return weather.HistoryResponse{}, fmt.Errorf("weatherapi api key is not configured")
	}
	hourField, ok := weatherAPIHourlyFields[req.HourlyVariable]
	if !ok {
		return weather.HistoryResponse{}, fmt.Errorf("weatherapi does not provide hourly %q", req.HourlyVariable)
	}
	dayField, ok := weatherAPIDailyFields[req.DailyVariable]
	if !ok {
		return weather.HistoryResponse{}, fmt.Errorf("weatherapi does not provide daily %q", req.DailyVariable)
	}
	start, end, err := req.Window()
	if err != nil {
		return weather.HistoryResponse{}, err
	}

	values := url.Values{}
	values.Set("key", p.apiKey)
	// WeatherAPI uses "q" for location; it accepts "city,country" or "lat,lon".
	if req.Location.HasCoordinates() {
		values.Set("q", fmt.Sprintf("%f,%f", *req.Location.Lat, *req.Location.Lon))
	} else {
		q := req.Location.City
		if req.Location.Country != "" {
			q = fmt.Sprintf("%s,%s", req.Location.City, req.Location.Country)
		}
		values.Set("q", q)
	}
	values.Set("dt", req.StartDate)
	values.Set("end_dt", req.EndDate)
	u := fmt.Sprintf("%s?%s", p.baseURL, values.Encode())

	buildRequest := func() (*http.Request, error) {
		return http.NewRequest(http.MethodGet, u, nil)
	}

	body, err := fetchWithResilience(ctx, p.httpCfg, p.circuit, u, buildRequest)
	if err != nil {
		return weather.HistoryResponse{}, err
	}

	var payload weatherAPIPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return weather.HistoryResponse{}, fmt.Errorf("decode weatherapi response: %w", err)
	}

	hourly := make(map[int64]float64)
	daily := make(map[int64]float64)
	var firstHour map[string]json.RawMessage
	for _, day := range payload.Forecast.ForecastDay {
		if firstHour == nil && len(day.Hour) > 0 {
			firstHour = day.Hour[0]
		}
		if v, ok := numberField(day.Day, dayField); ok {
			daily[day.DateEpoch] = v
		}
		for _, hour := range day.Hour {
			epoch, ok := numberField(hour, "time_epoch")
			if !ok {
				continue
			}
			if v, ok := numberField(hour, hourField); ok {
				hourly[int64(epoch)] = v
			}
		}
	}

	// Hours cover the location's local days, daily values are keyed by the
	// UTC midnight of their date. Absent hours and days become gaps.
	from, until := localDayBounds(payload.Location.TzID, firstHour, start, end.AddDate(0, 0, 1))
	return weather.HistoryResponse{
		Metadata: weather.Metadata{
			Latitude:  payload.Location.Lat,
			Longitude: payload.Location.Lon,
			Timezone:  payload.Location.TzID,
		},
		Hourly: gridSeries(req.HourlyVariable, from, until, time.Hour, hourly),
		Daily:  gridSeries(req.DailyVariable, start, end.AddDate(0, 0, 1), 24*time.Hour, daily),
	}, nil
}

// localDayBounds converts the UTC dates [start, until) into the instants of
// local midnight at the location. Without a usable tz_id the UTC offset is
// taken from the first reported hour, whose "time" is local wall clock.
func localDayBounds(tzID string, firstHour map[string]json.RawMessage, start, until time.Time) (time.Time, time.Time) {
	if loc, err := time.LoadLocation(tzID); err == nil && tzID != "" {
		return wallClockIn(start, loc), wallClockIn(until, loc)
	}
	if firstHour == nil {
		return start, until
	}
	epoch, ok := numberField(firstHour, "time_epoch")
	if !ok {
		return start, until
	}
	var wall string
	if err := json.Unmarshal(firstHour["time"], &wall); err != nil {
		return start, until
	}
	local, err := time.Parse("2006-01-02 15:04", wall)
	if err != nil {
		return start, until
	}
	offset := local.Sub(time.Unix(int64(epoch), 0).UTC())
	return start.Add(-offset), until.Add(-offset)
}

func wallClockIn(t time.Time, loc *time.Location) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc).UTC()
}
