// Package export writes datasets to CSV files.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/i474232898/weather-history/internal/common"
	"github.com/i474232898/weather-history/internal/timeseries"
	"github.com/i474232898/weather-history/internal/weather"
)

// DateColumn is the header of the timestamp column.
const DateColumn = "date"

// CSVWriter writes the filled and raw series of a dataset to a directory.
type CSVWriter struct {
	Dir string
	// PerLocation places each location's files in a subdirectory named by its key.
	PerLocation bool
}

// NewCSVWriter returns a writer targeting dir.
func NewCSVWriter(dir string, perLocation bool) *CSVWriter {
	return &CSVWriter{Dir: dir, PerLocation: perLocation}
}

// FileName returns the file name used for a resolution.
func FileName(res weather.Resolution, withMissing bool) string {
	if withMissing {
		return string(res) + "_data_with_missing.csv"
	}
	return string(res) + "_data.csv"
}

// Export writes hourly_data.csv and daily_data.csv (filled) plus the
// *_with_missing.csv variants (as fetched). It returns the written paths.
func (w *CSVWriter) Export(ds *weather.Dataset) ([]string, error) {
	dir := w.Dir
	if dir == "" {
		dir = "."
	}
	if w.PerLocation {
		dir = filepath.Join(dir, sanitize(ds.Location.Key()))
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output directory %q: %w", dir, err)
	}

	var paths []string
	for _, res := range []weather.Resolution{weather.ResolutionHourly, weather.ResolutionDaily} {
		pair, _ := ds.Pair(res)
		for _, out := range []struct {
			series      timeseries.Series
			withMissing bool
		}{
			{pair.Filled, false},
			{pair.Raw, true},
		} {
			path := filepath.Join(dir, FileName(res, out.withMissing))
			if err := writeFile(path, out.series); err != nil {
				return paths, err
			}
			paths = append(paths, path)
		}
	}
	return paths, nil
}

func writeFile(path string, s timeseries.Series) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %q: %w", path, err)
	}
	if err := WriteSeries(f, s); err != nil {
		f.Close()
		return fmt.Errorf("write %q: %w", path, err)
	}
	return f.Close()
}

// WriteSeries writes s as a two-column CSV with a header naming the
// timestamp and value columns. Missing values are written as empty cells.
func WriteSeries(w io.Writer, s timeseries.Series) error {
	cw := csv.NewWriter(w)

	name := s.Name
	if name == "" {
		name = "value"
	}
	if err := cw.Write([]string{DateColumn, name}); err != nil {
		return err
	}
	for _, sample := range s.Samples {
		record := []string{
			sample.Time.UTC().Format(weather.ReportTimeLayout),
			common.FormatValue(sample.Value),
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// sanitize turns a location key into a single directory name. Keys made
// only of dots would escape the output directory and map to "_".
func sanitize(key string) string {
	name := strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', ',', ' ':
			return '_'
		}
		return r
	}, key)
	if strings.Trim(name, ".") == "" {
		return "_"
	}
	return name
}
