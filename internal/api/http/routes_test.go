package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i474232898/weather-history/internal/store"
	"github.com/i474232898/weather-history/internal/timeseries"
	"github.com/i474232898/weather-history/internal/weather"
)

type stubProvider struct {
	err error
}

func (p *stubProvider) Name() string { return "stub" }

func (p *stubProvider) FetchHistory(ctx context.Context, req weather.HistoryRequest) (weather.HistoryResponse, error) {
	if p.err != nil {
		return weather.HistoryResponse{}, p.err
	}
	start, _, _ := req.Window()
	hourly, _ := timeseries.NewSeries(req.HourlyVariable,
		timeseries.Range(start, start.Add(4*time.Hour), time.Hour),
		[]float64{5, math.NaN(), math.NaN(), 11})
	daily, _ := timeseries.NewSeries(req.DailyVariable,
		timeseries.Range(start, start.AddDate(0, 0, 1), 24*time.Hour),
		[]float64{math.NaN()})
	return weather.HistoryResponse{
		Metadata: weather.Metadata{Elevation: 13, Timezone: "GMT"},
		Hourly:   hourly,
		Daily:    daily,
	}, nil
}

func newTestApp(t *testing.T, prov weather.HistoryProvider) (*fiber.App, *weather.Service) {
	t.Helper()
	svc := weather.NewService(store.NewMemoryStore(10, time.Hour), prov,
		weather.WithRequests(weather.HistoryRequest{
			Location:       weather.NewLocation("amsterdam", 52.37, 4.89),
			StartDate:      "2020-08-10",
			EndDate:        "2020-08-10",
			HourlyVariable: "temperature_2m",
			DailyVariable:  "temperature_2m_mean",
		}))
	app := fiber.New()
	RegisterRoutes(app, svc)
	return app, svc
}

func doRequest(t *testing.T, app *fiber.App, method, target string) (int, map[string]any) {
	t.Helper()
	resp, err := app.Test(httptest.NewRequest(method, target, nil))
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var out map[string]any
	_ = json.Unmarshal(body, &out)
	return resp.StatusCode, out
}

func TestHistoryBeforeDownload(t *testing.T) {
	app, _ := newTestApp(t, &stubProvider{})

	status, _ := doRequest(t, app, http.MethodGet, "/api/v1/weather/history?location=amsterdam")
	assert.Equal(t, http.StatusNotFound, status)

	status, _ = doRequest(t, app, http.MethodGet, "/api/v1/weather/history?location=utrecht")
	assert.Equal(t, http.StatusNotFound, status)
}

func TestHistoryValidation(t *testing.T) {
	app, _ := newTestApp(t, &stubProvider{})

	for _, target := range []string{
		"/api/v1/weather/history",
		"/api/v1/weather/history?location=amsterdam&resolution=weekly",
		"/api/v1/weather/history?location=amsterdam&from=yesterday",
		"/api/v1/weather/history?location=amsterdam&from=2020-08-11&to=2020-08-10",
	} {
		status, _ := doRequest(t, app, http.MethodGet, target)
		assert.Equal(t, http.StatusBadRequest, status, target)
	}
}

func TestRefreshThenQuery(t *testing.T) {
	app, _ := newTestApp(t, &stubProvider{})

	status, body := doRequest(t, app, http.MethodPost, "/api/v1/weather/refresh?location=amsterdam")
	require.Equal(t, http.StatusAccepted, status)
	assert.NotEmpty(t, body["runId"])

	status, body = doRequest(t, app, http.MethodGet, "/api/v1/weather/history?location=amsterdam&resolution=hourly")
	require.Equal(t, http.StatusOK, status)
	samples := body["samples"].([]any)
	require.Len(t, samples, 4)
	assert.InDelta(t, 7.0, samples[1].(map[string]any)["value"].(float64), 1e-9)
	assert.InDelta(t, 9.0, samples[2].(map[string]any)["value"].(float64), 1e-9)

	status, body = doRequest(t, app, http.MethodGet, "/api/v1/weather/history?location=amsterdam&filled=false&from=2020-08-10T01:00:00Z&to=2020-08-10T02:00:00Z")
	require.Equal(t, http.StatusOK, status)
	samples = body["samples"].([]any)
	require.Len(t, samples, 2)
	assert.Nil(t, samples[0].(map[string]any)["value"])

	// A daily series without observations stays missing.
	status, body = doRequest(t, app, http.MethodGet, "/api/v1/weather/history?location=amsterdam&resolution=daily")
	require.Equal(t, http.StatusOK, status)
	samples = body["samples"].([]any)
	require.Len(t, samples, 1)
	assert.Nil(t, samples[0].(map[string]any)["value"])

	status, body = doRequest(t, app, http.MethodGet, "/api/v1/weather/report?location=amsterdam")
	require.Equal(t, http.StatusOK, status)
	hourly := body["hourly"].(map[string]any)
	assert.Equal(t, 2.0, hourly["missingBefore"])
	assert.Equal(t, 2.0, hourly["interpolated"])
	daily := body["daily"].(map[string]any)
	assert.Equal(t, 1.0, daily["missingAfter"])

	status, body = doRequest(t, app, http.MethodGet, "/api/v1/locations")
	require.Equal(t, http.StatusOK, status)
	locs := body["locations"].([]any)
	require.Len(t, locs, 1)
	assert.Equal(t, true, locs[0].(map[string]any)["hasData"])
}

func TestRefreshErrors(t *testing.T) {
	app, _ := newTestApp(t, &stubProvider{err: errors.New("upstream down")})

	status, _ := doRequest(t, app, http.MethodPost, "/api/v1/weather/refresh")
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = doRequest(t, app, http.MethodPost, "/api/v1/weather/refresh?location=utrecht")
	assert.Equal(t, http.StatusNotFound, status)

	status, _ = doRequest(t, app, http.MethodPost, "/api/v1/weather/refresh?location=amsterdam")
	assert.Equal(t, http.StatusBadGateway, status)
}

func TestParseTime(t *testing.T) {
	ts, err := parseTime("2020-08-10T01:00:00Z")
	require.NoError(t, err)
	assert.Equal(t, 1, ts.Hour())

	ts, err = parseTime("1597017600")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2020, 8, 10, 0, 0, 0, 0, time.UTC), ts)

	_, err = parseTime("noon")
	assert.Error(t, err)
}

func TestRunsListsRetainedDownloads(t *testing.T) {
	app, _ := newTestApp(t, &stubProvider{})

	status, _ := doRequest(t, app, http.MethodGet, "/api/v1/weather/runs")
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = doRequest(t, app, http.MethodGet, "/api/v1/weather/runs?location=utrecht")
	assert.Equal(t, http.StatusNotFound, status)

	status, _ = doRequest(t, app, http.MethodGet, "/api/v1/weather/runs?location=amsterdam")
	assert.Equal(t, http.StatusNotFound, status)

	var runIDs []any
	for i := 0; i < 2; i++ {
		status, body := doRequest(t, app, http.MethodPost, "/api/v1/weather/refresh?location=amsterdam")
		require.Equal(t, http.StatusAccepted, status)
		runIDs = append(runIDs, body["runId"])
	}

	status, body := doRequest(t, app, http.MethodGet, "/api/v1/weather/runs?location=amsterdam")
	require.Equal(t, http.StatusOK, status)
	runs := body["runs"].([]any)
	require.Len(t, runs, 2)
	for i, r := range runs {
		run := r.(map[string]any)
		assert.Equal(t, runIDs[i], run["runId"])
		assert.Equal(t, "2020-08-10", run["startDate"])
		assert.Equal(t, 0.0, run["hourlyRemaining"])
		assert.Equal(t, 1.0, run["dailyRemaining"])
	}
}
