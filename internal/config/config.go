package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/i474232898/weather-history/internal/common"
	"github.com/i474232898/weather-history/internal/weather"
	"github.com/i474232898/weather-history/internal/weather/providers"
)

var validate = validator.New()

type AppConfig struct {
	// Provider selects the history source: openmeteo or weatherapi.
	Provider      string `validate:"oneof=openmeteo weatherapi"`
	OpenMeteoURL  string `validate:"required,url"`
	WeatherAPIKey string `validate:"required_if=Provider weatherapi"`
	GeocoderKey   string

	// Locations to download.
	Locations []weather.Location `validate:"required,min=1,dive"`

	// History window. An empty StartDate means EndDate minus LookbackDays,
	// an empty EndDate means today (UTC).
	StartDate    string `validate:"omitempty,datetime=2006-01-02"`
	EndDate      string `validate:"omitempty,datetime=2006-01-02"`
	LookbackDays int    `validate:"gte=1"`

	HourlyVariable string `validate:"required"`
	DailyVariable  string `validate:"required"`

	HTTPTimeout   time.Duration `validate:"gt=0"`
	MaxRetries    int           `validate:"gte=0"`
	BackoffFactor float64       `validate:"gt=0"`

	CacheDir    string
	CacheExpire time.Duration

	OutputDir string `validate:"required"`

	// FetchInterval controls how often the server refreshes every location.
	FetchInterval time.Duration `validate:"gte=1m"`

	// In-memory store retention.
	StoreMaxHistory int           // max number of datasets per location (0 = unlimited)
	StoreMaxAge     time.Duration // max age of datasets (0 = unlimited)

	Port string `validate:"required,numeric"`

	LogLevel       string `validate:"oneof=debug info warn error"`
	LogDevelopment bool
}

// Load reads configuration from .env, the environment and an optional YAML
// locations file, with sensible defaults.
func Load() (*AppConfig, error) {
	if err := godotenv.Load(); err != nil {
		zap.L().Debug("no .env file loaded", zap.Error(err))
	}
	cfg := &AppConfig{}

	cfg.Provider = getenvDefault("WEATHER_PROVIDER", "openmeteo")
	cfg.OpenMeteoURL = getenvDefault("OPENMETEO_BASE_URL", providers.DefaultOpenMeteoURL)
	cfg.WeatherAPIKey = os.Getenv("WEATHERAPI_API_KEY")
	cfg.GeocoderKey = os.Getenv("GEOCODER_API_KEY")

	// Set-but-empty dates select an open-ended window.
	cfg.StartDate = getenvLookup("WEATHER_START_DATE", "2020-08-10")
	cfg.EndDate = getenvLookup("WEATHER_END_DATE", "2024-08-23")
	cfg.LookbackDays = getenvInt("WEATHER_LOOKBACK_DAYS", 30)
	cfg.HourlyVariable = getenvDefault("WEATHER_HOURLY_VARIABLE", "temperature_2m")
	cfg.DailyVariable = getenvDefault("WEATHER_DAILY_VARIABLE", "temperature_2m_mean")

	var err error
	if cfg.HTTPTimeout, err = getenvDuration("HTTP_TIMEOUT", "30s"); err != nil {
		return nil, err
	}
	cfg.MaxRetries = getenvInt("HTTP_MAX_RETRIES", 5)
	backoff, err := strconv.ParseFloat(getenvDefault("HTTP_BACKOFF_FACTOR", "0.2"), 64)
	if err != nil {
		return nil, fmt.Errorf("invalid HTTP_BACKOFF_FACTOR: %w", err)
	}
	cfg.BackoffFactor = backoff

	cfg.CacheDir = getenvDefault("CACHE_DIR", ".cache")
	if cfg.CacheExpire, err = getenvDuration("CACHE_EXPIRE", "1h"); err != nil {
		return nil, err
	}
	cfg.OutputDir = getenvDefault("OUTPUT_DIR", ".")

	if cfg.FetchInterval, err = getenvDuration("FETCH_INTERVAL", "1h"); err != nil {
		return nil, err
	}
	cfg.StoreMaxHistory = getenvInt("STORE_MAX_HISTORY", 24)
	if cfg.StoreMaxAge, err = getenvDuration("STORE_MAX_AGE", "48h"); err != nil {
		return nil, err
	}
	cfg.Port = getenvDefault("PORT", "8080")

	cfg.LogLevel = getenvDefault("LOG_LEVEL", "info")
	cfg.LogDevelopment = common.ParseBool(os.Getenv("LOG_DEVELOPMENT"), false)

	if path := os.Getenv("WEATHER_LOCATIONS_FILE"); path != "" {
		cfg.Locations, err = LoadLocations(path)
	} else {
		cfg.Locations, err = loadPrimaryLocation()
	}
	if err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks field constraints. It is called by Load and again by the
// CLI after flags override loaded values.
func (c *AppConfig) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// Requests builds one history request per configured location. now is used
// to resolve an open-ended window.
func (c *AppConfig) Requests(now time.Time) []weather.HistoryRequest {
	end := c.EndDate
	if end == "" {
		end = now.UTC().Format(time.DateOnly)
	}
	start := c.StartDate
	if start == "" {
		endDate, err := time.Parse(time.DateOnly, end)
		if err != nil {
			endDate = now.UTC()
		}
		start = endDate.AddDate(0, 0, -c.LookbackDays).Format(time.DateOnly)
	}

	reqs := make([]weather.HistoryRequest, 0, len(c.Locations))
	for _, loc := range c.Locations {
		reqs = append(reqs, weather.HistoryRequest{
			Location:       loc,
			StartDate:      start,
			EndDate:        end,
			HourlyVariable: c.HourlyVariable,
			DailyVariable:  c.DailyVariable,
		})
	}
	return reqs
}

// loadPrimaryLocation builds the single location described by WEATHER_* variables.
func loadPrimaryLocation() ([]weather.Location, error) {
	loc := weather.Location{
		Name:    os.Getenv("WEATHER_LOCATION_NAME"),
		City:    os.Getenv("WEATHER_LOCATION_CITY"),
		Country: os.Getenv("WEATHER_LOCATION_COUNTRY"),
	}

	latStr, lonStr := os.Getenv("WEATHER_LATITUDE"), os.Getenv("WEATHER_LONGITUDE")
	if loc.City == "" && latStr == "" && lonStr == "" {
		// Amsterdam area.
		latStr, lonStr = "52.37", "4.89"
		if loc.Name == "" {
			loc.Name = "amsterdam"
		}
	}
	if latStr != "" || lonStr != "" {
		lat, err := strconv.ParseFloat(latStr, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid WEATHER_LATITUDE: %w", err)
		}
		lon, err := strconv.ParseFloat(lonStr, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid WEATHER_LONGITUDE: %w", err)
		}
		loc.Lat, loc.Lon = &lat, &lon
	}
	return []weather.Location{loc}, nil
}

type locationsFile struct {
	Locations []weather.Location `yaml:"locations"`
}

// LoadLocations reads a YAML file of the form
//
//	locations:
//	  - name: amsterdam
//	    latitude: 52.37
//	    longitude: 4.89
//	  - city: Paris
//	    country: FR
func LoadLocations(path string) ([]weather.Location, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, NewReadError(path, err)
	}
	var f locationsFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, NewParseError(path, err)
	}
	if len(f.Locations) == 0 {
		return nil, fmt.Errorf("locations file %q lists no locations", path)
	}

	seen := make(map[string]bool, len(f.Locations))
	for i, loc := range f.Locations {
		if err := validate.Struct(loc); err != nil {
			return nil, fmt.Errorf("locations file %q: location[%d]: %w", path, i, err)
		}
		if seen[loc.Key()] {
			return nil, fmt.Errorf("locations file %q: duplicate location %q", path, loc.Key())
		}
		seen[loc.Key()] = true
	}
	return f.Locations, nil
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvLookup(key, def string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		n, err := strconv.Atoi(v)
		if err == nil {
			return n
		}
	}
	return def
}

func getenvDuration(key, def string) (time.Duration, error) {
	d, err := time.ParseDuration(getenvDefault(key, def))
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}
