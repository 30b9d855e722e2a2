package weather

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/i474232898/weather-history/internal/common"
	"github.com/i474232898/weather-history/internal/timeseries"
)

// ReportTimeLayout is used for timestamps in reports and CSV files.
const ReportTimeLayout = "2006-01-02 15:04:05-07:00"

// WriteReport prints a human-readable account of a dataset: response
// metadata, a preview of each series and its missing counts around the fill.
// preview is the number of rows shown at each end of a series.
func WriteReport(w io.Writer, ds *Dataset, preview int) error {
	p := &reportPrinter{w: w}

	p.printf("Location: %s\n", ds.Location.Key())
	p.printf("Coordinates: %g°N %g°E\n", ds.Metadata.Latitude, ds.Metadata.Longitude)
	p.printf("Elevation: %g masl\n", ds.Metadata.Elevation)
	p.printf("Timezone: %s %s\n", ds.Metadata.Timezone, ds.Metadata.TimezoneAbbreviation)
	p.printf("Timezone difference to GMT+0: %d s\n", ds.Metadata.UTCOffsetSeconds)

	for _, res := range []Resolution{ResolutionHourly, ResolutionDaily} {
		pair, _ := ds.Pair(res)
		p.printf("\n%s %s: %d samples every %s\n", res, pair.Raw.Name, pair.Raw.Len(), pair.Raw.Interval)
		if p.err == nil {
			p.err = writePreview(w, pair.Raw, preview)
		}
		p.printf("Missing values in %s data before interpolation: %d\n", res, pair.Report.Missing)
		p.printf("Missing values in %s data after interpolation: %d\n", res, pair.Report.Remaining)

		sum := timeseries.Summarize(pair.Filled)
		p.printf("Summary: count=%d mean=%.2f std=%.2f min=%.2f max=%.2f\n",
			sum.Count, sum.Mean, sum.Std, sum.Min, sum.Max)
	}
	return p.err
}

type reportPrinter struct {
	w   io.Writer
	err error
}

func (p *reportPrinter) printf(format string, args ...any) {
	if p.err != nil {
		return
	}
	_, p.err = fmt.Fprintf(p.w, format, args...)
}

func writePreview(w io.Writer, s timeseries.Series, n int) error {
	if n <= 0 || s.Len() == 0 {
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintf(tw, "\tdate\t%s\t\n", s.Name)

	row := func(i int) {
		sample := s.Samples[i]
		value := common.FormatValue(sample.Value)
		if sample.IsMissing() {
			value = "NaN"
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t\n", i, sample.Time.UTC().Format(ReportTimeLayout), value)
	}

	if s.Len() <= 2*n {
		for i := range s.Samples {
			row(i)
		}
	} else {
		for i := 0; i < n; i++ {
			row(i)
		}
		fmt.Fprintf(tw, "...\t...\t...\t\n")
		for i := s.Len() - n; i < s.Len(); i++ {
			row(i)
		}
	}
	fmt.Fprintf(tw, "\n[%d rows x 2 columns]\n", s.Len())
	return tw.Flush()
}
