package weather

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLocationKey(t *testing.T) {
	assert.Equal(t, "amsterdam", NewLocation("amsterdam", 52.37, 4.89).Key())
	assert.Equal(t, "52.37,4.89", NewLocation("", 52.37, 4.89).Key())
	assert.Equal(t, "Paris:FR", Location{City: "Paris", Country: "FR"}.Key())
	assert.Equal(t, "Paris", Location{City: "Paris"}.Key())
}

func TestHistoryRequestWindow(t *testing.T) {
	req := HistoryRequest{StartDate: "2020-08-10", EndDate: "2024-08-23"}
	start, end, err := req.Window()
	assert.NoError(t, err)
	assert.Equal(t, 2020, start.Year())
	assert.Equal(t, 23, end.Day())

	req.EndDate = "2019-01-01"
	_, _, err = req.Window()
	assert.Error(t, err)

	req.EndDate = "tomorrow"
	_, _, err = req.Window()
	assert.Error(t, err)
}

func TestLocationValidation(t *testing.T) {
	assert.NoError(t, validate.Struct(NewLocation("x", 10, 20)))
	assert.NoError(t, validate.Struct(Location{City: "Paris"}))
	assert.Error(t, validate.Struct(Location{Name: "empty"}))
	assert.Error(t, validate.Struct(NewLocation("x", 95, 20)))
	assert.Error(t, validate.Struct(NewLocation("x", 10, 200)))
}
