// Package timeseries holds fixed-interval weather series and the gap filler
// that turns a partially observed series into a fully populated one.
package timeseries

import (
	"encoding/json"
	"errors"
	"math"
	"time"
)

// Missing returns the sentinel used for absent values.
func Missing() float64 {
	return math.NaN()
}

// Sample is a single observation. A NaN Value marks the sample as missing.
type Sample struct {
	Time  time.Time
	Value float64
}

// IsMissing reports whether the sample carries no value.
func (s Sample) IsMissing() bool {
	return math.IsNaN(s.Value)
}

type sampleJSON struct {
	Time  time.Time `json:"time"`
	Value *float64  `json:"value"`
}

// MarshalJSON encodes missing values as null.
func (s Sample) MarshalJSON() ([]byte, error) {
	out := sampleJSON{Time: s.Time}
	if !s.IsMissing() {
		v := s.Value
		out.Value = &v
	}
	return json.Marshal(out)
}

// UnmarshalJSON decodes null values as missing.
func (s *Sample) UnmarshalJSON(data []byte) error {
	var in sampleJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	s.Time = in.Time
	s.Value = Missing()
	if in.Value != nil {
		s.Value = *in.Value
	}
	return nil
}

// Series is an ordered sequence of samples at a nominal fixed interval.
type Series struct {
	Name     string        `json:"name"`
	Interval time.Duration `json:"interval"`
	Samples  []Sample      `json:"samples"`
}

// NewSeries zips timestamps and values into a Series.
func NewSeries(name string, times []time.Time, values []float64) (Series, error) {
	if len(times) != len(values) {
		return Series{}, errors.New("timestamps and values must have the same length")
	}
	s := Series{Name: name, Samples: make([]Sample, len(times))}
	for i := range times {
		s.Samples[i] = Sample{Time: times[i], Value: values[i]}
	}
	if len(times) > 1 {
		s.Interval = times[1].Sub(times[0])
	}
	return s, nil
}

// Range returns timestamps from start (inclusive) to end (exclusive) spaced by interval.
func Range(start, end time.Time, interval time.Duration) []time.Time {
	if interval <= 0 || !end.After(start) {
		return nil
	}
	n := int(end.Sub(start) / interval)
	if end.Sub(start)%interval != 0 {
		n++
	}
	out := make([]time.Time, 0, n)
	for t := start; t.Before(end); t = t.Add(interval) {
		out = append(out, t)
	}
	return out
}

// Len returns the number of samples.
func (s Series) Len() int {
	return len(s.Samples)
}

// MissingCount returns how many samples are missing.
func (s Series) MissingCount() int {
	n := 0
	for _, sample := range s.Samples {
		if sample.IsMissing() {
			n++
		}
	}
	return n
}

// Clone returns a deep copy of the series.
func (s Series) Clone() Series {
	out := s
	out.Samples = make([]Sample, len(s.Samples))
	copy(out.Samples, s.Samples)
	return out
}

// Values returns the sample values in order.
func (s Series) Values() []float64 {
	out := make([]float64, len(s.Samples))
	for i, sample := range s.Samples {
		out[i] = sample.Value
	}
	return out
}

// Between returns the samples with from <= Time <= to. Zero bounds are open.
func (s Series) Between(from, to time.Time) Series {
	out := s
	out.Samples = nil
	for _, sample := range s.Samples {
		if !from.IsZero() && sample.Time.Before(from) {
			continue
		}
		if !to.IsZero() && sample.Time.After(to) {
			continue
		}
		out.Samples = append(out.Samples, sample)
	}
	return out
}
