package weather

import (
	"fmt"
	"strconv"
	"time"

	"github.com/i474232898/weather-history/internal/timeseries"
)

// Resolution selects one of the two blocks returned by the history API.
type Resolution string

const (
	ResolutionHourly Resolution = "hourly"
	ResolutionDaily  Resolution = "daily"
)

// Location represents a logical place for which we track weather.
// Either Lat/Lon or City (optionally with Country) must be provided.
type Location struct {
	Name    string   `json:"name" yaml:"name"`
	City    string   `json:"city,omitempty" yaml:"city" validate:"required_without=Lat"`
	Country string   `json:"country,omitempty" yaml:"country"`
	Lat     *float64 `json:"latitude,omitempty" yaml:"latitude" validate:"omitempty,gte=-90,lte=90"`
	Lon     *float64 `json:"longitude,omitempty" yaml:"longitude" validate:"omitempty,gte=-180,lte=180"`
}

// NewLocation returns a named location at the given coordinates.
func NewLocation(name string, lat, lon float64) Location {
	return Location{Name: name, Lat: &lat, Lon: &lon}
}

// Key returns a canonical string key for indexing this location in stores.
func (l Location) Key() string {
	if l.Name != "" {
		return l.Name
	}
	if l.HasCoordinates() {
		return strconv.FormatFloat(*l.Lat, 'f', -1, 64) + "," + strconv.FormatFloat(*l.Lon, 'f', -1, 64)
	}
	if l.Country != "" {
		return l.City + ":" + l.Country
	}
	return l.City
}

// HasCoordinates reports whether both latitude and longitude are set.
func (l Location) HasCoordinates() bool {
	return l.Lat != nil && l.Lon != nil
}

// HistoryRequest describes one download from the history API.
type HistoryRequest struct {
	Location       Location `json:"location"`
	StartDate      string   `json:"startDate" validate:"required,datetime=2006-01-02"`
	EndDate        string   `json:"endDate" validate:"required,datetime=2006-01-02"`
	HourlyVariable string   `json:"hourlyVariable" validate:"required"`
	DailyVariable  string   `json:"dailyVariable" validate:"required"`
}

// Window parses the request dates. End is returned as given (inclusive day).
func (r HistoryRequest) Window() (start, end time.Time, err error) {
	start, err = time.Parse(time.DateOnly, r.StartDate)
	if err != nil {
		return start, end, fmt.Errorf("invalid start date %q: %w", r.StartDate, err)
	}
	end, err = time.Parse(time.DateOnly, r.EndDate)
	if err != nil {
		return start, end, fmt.Errorf("invalid end date %q: %w", r.EndDate, err)
	}
	if end.Before(start) {
		return start, end, fmt.Errorf("end date %s is before start date %s", r.EndDate, r.StartDate)
	}
	return start, end, nil
}

// Metadata is the location information reported alongside a history response.
type Metadata struct {
	Latitude             float64 `json:"latitude"`
	Longitude            float64 `json:"longitude"`
	Elevation            float64 `json:"elevation"`
	Timezone             string  `json:"timezone"`
	TimezoneAbbreviation string  `json:"timezoneAbbreviation"`
	UTCOffsetSeconds     int     `json:"utcOffsetSeconds"`
}

// HistoryResponse is a provider's answer to a HistoryRequest. Missing
// observations are NaN in the series.
type HistoryResponse struct {
	Metadata Metadata
	Hourly   timeseries.Series
	Daily    timeseries.Series
}

// SeriesPair keeps a series as fetched next to its gap-filled version.
type SeriesPair struct {
	Raw    timeseries.Series     `json:"raw"`
	Filled timeseries.Series     `json:"filled"`
	Report timeseries.FillReport `json:"report"`
}

// Dataset is the outcome of one download for one location.
type Dataset struct {
	RunID     string         `json:"runId"`
	Location  Location       `json:"location"`
	Request   HistoryRequest `json:"request"`
	Metadata  Metadata       `json:"metadata"`
	FetchedAt time.Time      `json:"fetchedAt"` // always UTC
	Hourly    SeriesPair     `json:"hourly"`
	Daily     SeriesPair     `json:"daily"`
}

// Pair returns the series pair for a resolution.
func (d *Dataset) Pair(res Resolution) (SeriesPair, bool) {
	switch res {
	case ResolutionHourly:
		return d.Hourly, true
	case ResolutionDaily:
		return d.Daily, true
	}
	return SeriesPair{}, false
}
