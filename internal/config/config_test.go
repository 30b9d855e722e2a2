package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "openmeteo", cfg.Provider)
	assert.Equal(t, "2020-08-10", cfg.StartDate)
	assert.Equal(t, "2024-08-23", cfg.EndDate)
	assert.Equal(t, "temperature_2m", cfg.HourlyVariable)
	assert.Equal(t, "temperature_2m_mean", cfg.DailyVariable)
	assert.Equal(t, 5, cfg.MaxRetries)
	assert.Equal(t, 0.2, cfg.BackoffFactor)
	assert.Equal(t, time.Hour, cfg.CacheExpire)
	assert.Equal(t, ".cache", cfg.CacheDir)

	require.Len(t, cfg.Locations, 1)
	assert.Equal(t, "amsterdam", cfg.Locations[0].Key())
	assert.Equal(t, 52.37, *cfg.Locations[0].Lat)
	assert.Equal(t, 4.89, *cfg.Locations[0].Lon)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("WEATHER_LOCATION_NAME", "berlin")
	t.Setenv("WEATHER_LATITUDE", "52.52")
	t.Setenv("WEATHER_LONGITUDE", "13.41")
	t.Setenv("HTTP_MAX_RETRIES", "2")
	t.Setenv("FETCH_INTERVAL", "30m")
	t.Setenv("LOG_DEVELOPMENT", "true")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "berlin", cfg.Locations[0].Key())
	assert.Equal(t, 52.52, *cfg.Locations[0].Lat)
	assert.Equal(t, 2, cfg.MaxRetries)
	assert.Equal(t, 30*time.Minute, cfg.FetchInterval)
	assert.True(t, cfg.LogDevelopment)
}

func TestLoadCityOnlyLocation(t *testing.T) {
	t.Setenv("WEATHER_LOCATION_CITY", "Paris")
	t.Setenv("WEATHER_LOCATION_COUNTRY", "FR")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "Paris:FR", cfg.Locations[0].Key())
	assert.False(t, cfg.Locations[0].HasCoordinates())
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	cases := map[string]string{
		"HTTP_TIMEOUT":        "soon",
		"HTTP_BACKOFF_FACTOR": "fast",
		"WEATHER_START_DATE":  "10/08/2020",
		"WEATHER_LATITUDE":    "north",
		"WEATHER_PROVIDER":    "darksky",
		"LOG_LEVEL":           "loud",
		"FETCH_INTERVAL":      "10s",
	}
	for key, value := range cases {
		t.Run(key, func(t *testing.T) {
			t.Setenv(key, value)
			if key == "WEATHER_LATITUDE" {
				t.Setenv("WEATHER_LONGITUDE", "4.89")
			}
			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestLoadWeatherAPIRequiresKey(t *testing.T) {
	t.Setenv("WEATHER_PROVIDER", "weatherapi")
	_, err := Load()
	assert.Error(t, err)

	t.Setenv("WEATHERAPI_API_KEY", "secret")
	_, err = Load()
	assert.NoError(t, err)
}

func TestLoadLocationsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "locations.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
locations:
  - name: amsterdam
    latitude: 52.37
    longitude: 4.89
  - city: Paris
    country: FR
`), 0o644))
	t.Setenv("WEATHER_LOCATIONS_FILE", path)

	cfg, err := Load()
	require.NoError(t, err)
	require.Len(t, cfg.Locations, 2)
	assert.Equal(t, "amsterdam", cfg.Locations[0].Key())
	assert.Equal(t, "Paris:FR", cfg.Locations[1].Key())
}

func TestLoadLocationsErrors(t *testing.T) {
	dir := t.TempDir()

	_, err := LoadLocations(filepath.Join(dir, "missing.yaml"))
	assert.ErrorContains(t, err, "failed to read")

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("locations: [\n"), 0o644))
	_, err = LoadLocations(bad)
	assert.ErrorContains(t, err, "failed to parse")

	empty := filepath.Join(dir, "empty.yaml")
	require.NoError(t, os.WriteFile(empty, []byte("locations: []\n"), 0o644))
	_, err = LoadLocations(empty)
	assert.Error(t, err)

	dup := filepath.Join(dir, "dup.yaml")
	require.NoError(t, os.WriteFile(dup, []byte(`
locations:
  - {name: a, latitude: 1, longitude: 2}
  - {name: a, latitude: 3, longitude: 4}
`), 0o644))
	_, err = LoadLocations(dup)
	assert.ErrorContains(t, err, "duplicate")

	outOfRange := filepath.Join(dir, "range.yaml")
	require.NoError(t, os.WriteFile(outOfRange, []byte(`
locations:
  - {name: a, latitude: 91, longitude: 2}
`), 0o644))
	_, err = LoadLocations(outOfRange)
	assert.Error(t, err)
}

func TestRequestsWindow(t *testing.T) {
	t.Setenv("WEATHER_START_DATE", "")
	t.Setenv("WEATHER_END_DATE", "")
	t.Setenv("WEATHER_LOOKBACK_DAYS", "7")

	cfg, err := Load()
	require.NoError(t, err)

	now := time.Date(2024, 8, 23, 15, 0, 0, 0, time.UTC)
	reqs := cfg.Requests(now)
	require.Len(t, reqs, 1)
	assert.Equal(t, "2024-08-16", reqs[0].StartDate)
	assert.Equal(t, "2024-08-23", reqs[0].EndDate)
	assert.Equal(t, "temperature_2m", reqs[0].HourlyVariable)
	assert.Equal(t, "amsterdam", reqs[0].Location.Key())
}
