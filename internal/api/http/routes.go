package httpapi

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/i474232898/weather-history/internal/common"
	"github.com/i474232898/weather-history/internal/store"
	"github.com/i474232898/weather-history/internal/weather"
)

var validate = validator.New()

// refreshTimeout bounds a download triggered over HTTP.
const refreshTimeout = 2 * time.Minute

// Service is what the HTTP layer needs from weather.Service.
type Service interface {
	Requests() []weather.HistoryRequest
	Known(key string) bool
	GetLatest(key string) (*weather.Dataset, error)
	GetHistory(key string) ([]*weather.Dataset, error)
	Refresh(ctx context.Context, key string) (*weather.Dataset, error)
}

// RegisterRoutes wires the HTTP handlers into the Fiber app.
func RegisterRoutes(app *fiber.App, service Service) {
	v1 := app.Group("/api/v1")

	v1.Get("/locations", func(c *fiber.Ctx) error {
		type locationStatus struct {
			Key       string           `json:"key"`
			Location  weather.Location `json:"location"`
			StartDate string           `json:"startDate"`
			EndDate   string           `json:"endDate"`
			HasData   bool             `json:"hasData"`
			FetchedAt *time.Time       `json:"fetchedAt,omitempty"`
		}

		reqs := service.Requests()
		out := make([]locationStatus, 0, len(reqs))
		for _, req := range reqs {
			st := locationStatus{
				Key:       req.Location.Key(),
				Location:  req.Location,
				StartDate: req.StartDate,
				EndDate:   req.EndDate,
			}
			if ds, err := service.GetLatest(st.Key); err == nil {
				st.HasData = true
				st.FetchedAt = &ds.FetchedAt
			}
			out = append(out, st)
		}
		return c.JSON(fiber.Map{"locations": out})
	})

	v1.Get("/weather/history", func(c *fiber.Ctx) error {
		var req historyQuery
		if err := req.bind(c); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		if err := validate.Struct(req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		ds, err := latestDataset(service, req.Location)
		if err != nil {
			return err
		}

		pair, _ := ds.Pair(weather.Resolution(req.Resolution))
		series := pair.Filled
		if !req.Filled {
			series = pair.Raw
		}
		series = series.Between(req.From, req.To)

		return c.JSON(fiber.Map{
			"location":   ds.Location,
			"resolution": req.Resolution,
			"filled":     req.Filled,
			"runId":      ds.RunID,
			"fetchedAt":  ds.FetchedAt,
			"variable":   series.Name,
			"interval":   series.Interval.String(),
			"samples":    series.Samples,
		})
	})

	v1.Get("/weather/report", func(c *fiber.Ctx) error {
		q, err := parseLocationQuery(c)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		ds, err := latestDataset(service, q.Location)
		if err != nil {
			return err
		}

		return c.JSON(fiber.Map{
			"location":  ds.Location,
			"runId":     ds.RunID,
			"fetchedAt": ds.FetchedAt,
			"request":   ds.Request,
			"metadata":  ds.Metadata,
			"hourly":    ds.Hourly.Report,
			"daily":     ds.Daily.Report,
		})
	})

	v1.Get("/weather/runs", func(c *fiber.Ctx) error {
		type run struct {
			RunID           string    `json:"runId"`
			FetchedAt       time.Time `json:"fetchedAt"`
			StartDate       string    `json:"startDate"`
			EndDate         string    `json:"endDate"`
			HourlyRemaining int       `json:"hourlyRemaining"`
			DailyRemaining  int       `json:"dailyRemaining"`
		}

		q, err := parseLocationQuery(c)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		if !service.Known(q.Location) {
			return fiber.NewError(fiber.StatusNotFound, "unknown location")
		}

		history, err := service.GetHistory(q.Location)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return fiber.NewError(fiber.StatusNotFound, "no weather history downloaded for requested location yet")
			}
			return fiber.NewError(fiber.StatusInternalServerError, "failed to fetch weather history")
		}

		runs := make([]run, 0, len(history))
		for _, ds := range history {
			runs = append(runs, run{
				RunID:           ds.RunID,
				FetchedAt:       ds.FetchedAt,
				StartDate:       ds.Request.StartDate,
				EndDate:         ds.Request.EndDate,
				HourlyRemaining: ds.Hourly.Report.Remaining,
				DailyRemaining:  ds.Daily.Report.Remaining,
			})
		}
		return c.JSON(fiber.Map{"location": q.Location, "runs": runs})
	})

	v1.Post("/weather/refresh", func(c *fiber.Ctx) error {
		q, err := parseLocationQuery(c)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		if !service.Known(q.Location) {
			return fiber.NewError(fiber.StatusNotFound, "unknown location")
		}

		ctx, cancel := context.WithTimeout(c.UserContext(), refreshTimeout)
		defer cancel()

		ds, err := service.Refresh(ctx, q.Location)
		if err != nil {
			if errors.Is(err, weather.ErrUnknownLocation) {
				return fiber.NewError(fiber.StatusNotFound, "unknown location")
			}
			if ds == nil {
				return fiber.NewError(fiber.StatusBadGateway, "failed to download weather history: "+err.Error())
			}
			common.GetLogger(ctx).Warn("refresh stored dataset but export failed",
				zap.String("location", q.Location), zap.Error(err))
		}

		return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
			"location": ds.Location,
			"runId":    ds.RunID,
			"hourly":   ds.Hourly.Report,
			"daily":    ds.Daily.Report,
		})
	})
}

func latestDataset(service Service, key string) (*weather.Dataset, error) {
	if !service.Known(key) {
		return nil, fiber.NewError(fiber.StatusNotFound, "unknown location")
	}
	ds, err := service.GetLatest(key)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fiber.NewError(fiber.StatusNotFound, "no weather history downloaded for requested location yet")
		}
		return nil, fiber.NewError(fiber.StatusInternalServerError, "failed to fetch weather history")
	}
	return ds, nil
}

// locationQuery identifies a configured location by key.
type locationQuery struct {
	Location string `validate:"required"`
}

func parseLocationQuery(c *fiber.Ctx) (locationQuery, error) {
	var q locationQuery

	q.Location = c.Query("location")

	if err := validate.Struct(q); err != nil {
		return q, err
	}

	return q, nil
}

// historyQuery holds query parameters for the history endpoint.
type historyQuery struct {
	Location   string `validate:"required"`
	Resolution string `validate:"oneof=hourly daily"`
	Filled     bool
	From       time.Time
	To         time.Time `validate:"omitempty,gtefield=From"`
}

func (h *historyQuery) bind(c *fiber.Ctx) error {
	h.Location = c.Query("location")
	h.Resolution = c.Query("resolution", string(weather.ResolutionHourly))
	h.Filled = common.ParseBool(c.Query("filled"), true)

	var err error
	if s := c.Query("from"); s != "" {
		if h.From, err = parseTime(s); err != nil {
			return err
		}
	}
	if s := c.Query("to"); s != "" {
		if h.To, err = parseTime(s); err != nil {
			return err
		}
	}
	return nil
}

// parseTime tries to parse RFC3339, a plain date, or Unix seconds.
func parseTime(s string) (time.Time, error) {
	if ts, err := time.Parse(time.RFC3339, s); err == nil {
		return ts, nil
	}
	if ts, err := time.Parse(time.DateOnly, s); err == nil {
		return ts, nil
	}
	if unix, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Unix(unix, 0).UTC(), nil
	}
	return time.Time{}, errors.New("invalid time format; use RFC3339, YYYY-MM-DD or unix seconds")
}
