package timeseries

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Summary describes the present values of a series.
type Summary struct {
	Count   int
	Missing int
	Mean    float64
	Std     float64
	Min     float64
	Max     float64
}

// Summarize computes statistics over the present values of s. Statistics of
// a series without present values are NaN.
func Summarize(s Series) Summary {
	present := make([]float64, 0, len(s.Samples))
	for _, sample := range s.Samples {
		if !sample.IsMissing() {
			present = append(present, sample.Value)
		}
	}

	sum := Summary{
		Count:   len(present),
		Missing: len(s.Samples) - len(present),
		Mean:    math.NaN(),
		Std:     math.NaN(),
		Min:     math.NaN(),
		Max:     math.NaN(),
	}
	if len(present) == 0 {
		return sum
	}

	sum.Mean, sum.Std = stat.MeanStdDev(present, nil)
	sum.Min = floats.Min(present)
	sum.Max = floats.Max(present)
	return sum
}
