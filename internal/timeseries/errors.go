package timeseries

import "fmt"

// InvalidSeriesError is returned when a series violates the ordering the
// filler relies on.
type InvalidSeriesError struct {
	Name   string
	Index  int
	Reason string
}

func (e *InvalidSeriesError) Error() string {
	if e.Name == "" {
		return fmt.Sprintf("invalid series at index %d: %s", e.Index, e.Reason)
	}
	return fmt.Sprintf("invalid series %q at index %d: %s", e.Name, e.Index, e.Reason)
}

// Validate checks that timestamps are strictly increasing.
// Uneven spacing is accepted.
func Validate(s Series) error {
	for i := 1; i < len(s.Samples); i++ {
		prev, cur := s.Samples[i-1].Time, s.Samples[i].Time
		if !cur.After(prev) {
			return &InvalidSeriesError{
				Name:   s.Name,
				Index:  i,
				Reason: fmt.Sprintf("timestamp %s does not follow %s", cur.Format("2006-01-02T15:04:05Z07:00"), prev.Format("2006-01-02T15:04:05Z07:00")),
			}
		}
	}
	return nil
}
