package timeseries

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var nan = math.NaN()

var base = time.Date(2020, 8, 10, 0, 0, 0, 0, time.UTC)

func hourly(values ...float64) Series {
	times := Range(base, base.Add(time.Duration(len(values))*time.Hour), time.Hour)
	s, err := NewSeries("temperature_2m", times, values)
	if err != nil {
		panic(err)
	}
	return s
}

func assertValues(t *testing.T, want []float64, got Series) {
	t.Helper()
	require.Equal(t, len(want), got.Len())
	for i, w := range want {
		if math.IsNaN(w) {
			assert.True(t, got.Samples[i].IsMissing(), "index %d should stay missing", i)
			continue
		}
		assert.InDelta(t, w, got.Samples[i].Value, 1e-9, "index %d", i)
	}
}

func TestFill(t *testing.T) {
	tests := []struct {
		name   string
		input  []float64
		want   []float64
		report FillReport
	}{
		{
			name:   "interior ramp",
			input:  []float64{5, nan, nan, 11},
			want:   []float64{5, 7, 9, 11},
			report: FillReport{Total: 4, Missing: 2, Interpolated: 2},
		},
		{
			name:   "leading edge",
			input:  []float64{nan, nan, 4, 6},
			want:   []float64{4, 4, 4, 6},
			report: FillReport{Total: 4, Missing: 2, Leading: 2},
		},
		{
			name:   "trailing edge",
			input:  []float64{2, 4, nan},
			want:   []float64{2, 4, 4},
			report: FillReport{Total: 3, Missing: 1, Trailing: 1},
		},
		{
			name:   "mixed",
			input:  []float64{nan, 2, nan, nan, 8, nan},
			want:   []float64{2, 2, 4, 6, 8, 8},
			report: FillReport{Total: 6, Missing: 4, Interpolated: 2, Leading: 1, Trailing: 1},
		},
		{
			name:   "single present value",
			input:  []float64{nan, 3, nan},
			want:   []float64{3, 3, 3},
			report: FillReport{Total: 3, Missing: 2, Leading: 1, Trailing: 1},
		},
		{
			name:   "all missing",
			input:  []float64{nan, nan, nan},
			want:   []float64{nan, nan, nan},
			report: FillReport{Total: 3, Missing: 3, Remaining: 3},
		},
		{
			name:   "no missing",
			input:  []float64{1.5, -2, 0},
			want:   []float64{1.5, -2, 0},
			report: FillReport{Total: 3},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, report, err := Fill(hourly(tt.input...))
			require.NoError(t, err)
			assertValues(t, tt.want, got)
			assert.Equal(t, tt.report, report)
		})
	}
}

func TestFillEmpty(t *testing.T) {
	got, report, err := Fill(Series{Name: "empty"})
	require.NoError(t, err)
	assert.Equal(t, 0, got.Len())
	assert.Equal(t, FillReport{}, report)
}

func TestFillUsesElapsedTime(t *testing.T) {
	// Uneven spacing: the gap sample sits a quarter of the way between its bounds.
	s := Series{Samples: []Sample{
		{Time: base, Value: 0},
		{Time: base.Add(1 * time.Hour), Value: nan},
		{Time: base.Add(4 * time.Hour), Value: 8},
	}}
	got, report, err := Fill(s)
	require.NoError(t, err)
	assert.InDelta(t, 2.0, got.Samples[1].Value, 1e-9)
	assert.Equal(t, 1, report.Interpolated)
}

func TestFillDoesNotMutateInput(t *testing.T) {
	in := hourly(1, nan, 3)
	_, _, err := Fill(in)
	require.NoError(t, err)
	assert.True(t, in.Samples[1].IsMissing())
}

func TestFillPreservesTimestamps(t *testing.T) {
	in := hourly(nan, 1, nan, nan, 2, nan, nan)
	got, _, err := Fill(in)
	require.NoError(t, err)
	require.Equal(t, in.Len(), got.Len())
	for i := range in.Samples {
		assert.True(t, in.Samples[i].Time.Equal(got.Samples[i].Time))
	}
	assert.Equal(t, in.Name, got.Name)
	assert.Equal(t, in.Interval, got.Interval)
}

func TestFillIdempotent(t *testing.T) {
	once, _, err := Fill(hourly(nan, 2, nan, nan, 8, nan))
	require.NoError(t, err)
	twice, report, err := Fill(once)
	require.NoError(t, err)
	assert.Equal(t, once.Values(), twice.Values())
	assert.Zero(t, report.Filled())
	assert.Zero(t, report.Missing)
}

func TestFillRejectsUnorderedSeries(t *testing.T) {
	s := Series{Name: "bad", Samples: []Sample{
		{Time: base, Value: 1},
		{Time: base.Add(2 * time.Hour), Value: nan},
		{Time: base.Add(time.Hour), Value: 3},
	}}
	_, _, err := Fill(s)
	require.Error(t, err)

	var invalid *InvalidSeriesError
	require.True(t, errors.As(err, &invalid))
	assert.Equal(t, 2, invalid.Index)
	assert.Equal(t, "bad", invalid.Name)
}

func TestFillRejectsDuplicateTimestamps(t *testing.T) {
	s := Series{Samples: []Sample{{Time: base, Value: 1}, {Time: base, Value: 2}}}
	_, _, err := Fill(s)

	var invalid *InvalidSeriesError
	assert.ErrorAs(t, err, &invalid)
}
