package timeseries

// FillReport counts what Fill did to a series.
type FillReport struct {
	Total        int `json:"total"`
	Missing      int `json:"missingBefore"`
	Interpolated int `json:"interpolated"`
	Leading      int `json:"leadingFilled"`
	Trailing     int `json:"trailingFilled"`
	// Remaining is non-zero only when the series had no present value at all.
	Remaining int `json:"missingAfter"`
}

// Filled returns how many samples received a value.
func (r FillReport) Filled() int {
	return r.Interpolated + r.Leading + r.Trailing
}

// Fill returns a copy of s with every missing value populated.
//
// Runs bounded on both sides are interpolated linearly by elapsed time. A
// leading run takes the first present value and a trailing run the last one.
// When no value is present the series is returned unchanged and
// Report.Remaining equals its length. The input is never modified.
func Fill(s Series) (Series, FillReport, error) {
	if err := Validate(s); err != nil {
		return Series{}, FillReport{}, err
	}

	out := s.Clone()
	report := FillReport{Total: len(out.Samples)}
	samples := out.Samples

	prev := -1
	for i := 0; i <= len(samples); i++ {
		if i < len(samples) && samples[i].IsMissing() {
			report.Missing++
			continue
		}
		start := prev + 1
		if i == len(samples) {
			if prev >= 0 {
				report.Trailing += padRun(samples[start:], samples[prev].Value)
			}
			break
		}
		switch {
		case start == i:
		case prev < 0:
			report.Leading += padRun(samples[:i], samples[i].Value)
		default:
			report.Interpolated += interpolateRun(samples[prev], samples[i], samples[start:i])
		}
		prev = i
	}
	if prev < 0 {
		report.Remaining = report.Missing
	}
	return out, report, nil
}

func padRun(run []Sample, v float64) int {
	for i := range run {
		run[i].Value = v
	}
	return len(run)
}

// interpolateRun fills run using the elapsed time from lo towards hi.
func interpolateRun(lo, hi Sample, run []Sample) int {
	span := float64(hi.Time.Sub(lo.Time))
	delta := hi.Value - lo.Value
	for i := range run {
		w := float64(run[i].Time.Sub(lo.Time)) / span
		run[i].Value = lo.Value + delta*w
	}
	return len(run)
}
