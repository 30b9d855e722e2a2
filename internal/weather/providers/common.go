package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/i474232898/weather-history/internal/common"
	"github.com/i474232898/weather-history/internal/timeseries"
)

// BackoffConfig controls exponential backoff behaviour.
type BackoffConfig struct {
	MaxRetries      int
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// NewBackoffConfig derives a backoff from a retry count and a factor in
// seconds: the n-th retry waits factor * 2^n.
func NewBackoffConfig(retries int, factor float64) BackoffConfig {
	return BackoffConfig{
		MaxRetries:      retries,
		InitialInterval: time.Duration(factor * float64(time.Second)),
		MaxInterval:     30 * time.Second,
	}
}

// ResponseCache stores successful response bodies by request URL.
type ResponseCache interface {
	Get(key string) ([]byte, bool)
	Set(key string, body []byte) error
}

// HTTPClientConfig bundles HTTP client and resilience settings.
type HTTPClientConfig struct {
	Client  *http.Client
	Backoff BackoffConfig
	// Cache is optional.
	Cache ResponseCache
}

// APIError is a client error reported by an upstream API. It is never retried.
type APIError struct {
	StatusCode int
	Reason     string
}

func (e *APIError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("api error: status %d", e.StatusCode)
	}
	return fmt.Sprintf("api error: status %d: %s", e.StatusCode, e.Reason)
}

var (
	errRateLimited   = errors.New("rate limited")
	errServerError   = errors.New("server error")
	errUnexpected    = errors.New("unexpected status code")
	errCircuitOpen   = errors.New("circuit breaker open")
	errNoHTTPClient  = errors.New("http client not configured")
	errInvalidConfig = errors.New("invalid backoff configuration")
)

func newCircuitBreaker(name string) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 5,
		Interval:    1 * time.Minute,
		Timeout:     2 * time.Minute,
		// Client errors say nothing about upstream health.
		IsSuccessful: func(err error) bool {
			var apiErr *APIError
			return err == nil || errors.As(err, &apiErr)
		},
	})
}

// isPermanent reports errors that a retry cannot fix.
func isPermanent(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return true
	}
	return common.HasAny(err.Error(), "no such host", "unsupported protocol scheme")
}

// decodeReason extracts the message of an error body such as
// {"error": true, "reason": "..."} or {"error": {"message": "..."}}.
func decodeReason(body []byte) string {
	var payload struct {
		Reason string          `json:"reason"`
		Error  json.RawMessage `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return ""
	}
	if payload.Reason != "" {
		return payload.Reason
	}
	var nested struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(payload.Error, &nested); err == nil {
		return nested.Message
	}
	return ""
}

// fetchWithResilience returns the body of a successful response, served from
// the cache when possible. cacheKey is usually the request URL.
func fetchWithResilience(
	ctx context.Context,
	cfg HTTPClientConfig,
	cb *gobreaker.CircuitBreaker,
	cacheKey string,
	buildRequest func() (*http.Request, error),
) ([]byte, error) {
	if cfg.Cache != nil {
		if body, ok := cfg.Cache.Get(cacheKey); ok {
			common.GetLogger(ctx).Debug("serving response from cache", zap.String("breaker", cb.Name()))
			return body, nil
		}
	}

	body, err := doRequestWithResilience(ctx, cfg, cb, buildRequest)
	if err != nil {
		return nil, err
	}

	if cfg.Cache != nil {
		if err := cfg.Cache.Set(cacheKey, body); err != nil {
			common.GetLogger(ctx).Warn("failed to cache response", zap.Error(err))
		}
	}
	return body, nil
}

// doRequestWithResilience executes the HTTP request with retries, exponential backoff,
// and a circuit breaker, and returns the response body.
func doRequestWithResilience(
	ctx context.Context,
	cfg HTTPClientConfig,
	cb *gobreaker.CircuitBreaker,
	buildRequest func() (*http.Request, error),
) ([]byte, error) {
	if cfg.Client == nil {
		return nil, errNoHTTPClient
	}
	if cfg.Backoff.MaxRetries < 0 || cfg.Backoff.InitialInterval <= 0 {
		return nil, errInvalidConfig
	}

	var attempt int
	var lastErr error

	for {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		req, err := buildRequest()
		if err != nil {
			return nil, err
		}

		// Ensure the request obeys context cancellation.
		req = req.WithContext(ctx)

		result, err := cb.Execute(func() (interface{}, error) {
			resp, execErr := cfg.Client.Do(req)
			if execErr != nil {
				return nil, execErr
			}
			defer resp.Body.Close()

			body, readErr := io.ReadAll(resp.Body)
			if readErr != nil {
				return nil, readErr
			}

			// Handle rate limiting and server errors explicitly.
			switch {
			case resp.StatusCode == http.StatusTooManyRequests:
				return nil, errRateLimited
			case resp.StatusCode >= 500:
				return nil, fmt.Errorf("%w: %d", errServerError, resp.StatusCode)
			case resp.StatusCode >= 400:
				return nil, &APIError{StatusCode: resp.StatusCode, Reason: decodeReason(body)}
			case resp.StatusCode < 200 || resp.StatusCode >= 300:
				return nil, fmt.Errorf("%w: %d", errUnexpected, resp.StatusCode)
			}

			return body, nil
		})

		if err == nil {
			// Success.
			body, ok := result.([]byte)
			if !ok {
				return nil, fmt.Errorf("unexpected result type from circuit breaker")
			}
			return body, nil
		}

		// If circuit is open, propagate immediately.
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("%w: %v", errCircuitOpen, err)
		}
		if isPermanent(err) {
			return nil, err
		}

		lastErr = err
		if attempt >= cfg.Backoff.MaxRetries {
			return nil, lastErr
		}

		// Backoff with exponential delay.
		delay := cfg.Backoff.InitialInterval * time.Duration(math.Pow(2, float64(attempt)))
		if delay > cfg.Backoff.MaxInterval && cfg.Backoff.MaxInterval > 0 {
			delay = cfg.Backoff.MaxInterval
		}

		common.GetLogger(ctx).Debug("retrying request",
			zap.String("breaker", cb.Name()),
			zap.Int("attempt", attempt+1),
			zap.Duration("delay", delay),
			zap.Error(err),
		)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
			// continue to next attempt
		}

		attempt++
	}
}

// gridSeries places observations keyed by unix second onto the regular grid
// [start, end). Grid points without an observation are missing.
func gridSeries(name string, start, end time.Time, interval time.Duration, obs map[int64]float64) timeseries.Series {
	times := timeseries.Range(start, end, interval)
	s := timeseries.Series{Name: name, Interval: interval, Samples: make([]timeseries.Sample, len(times))}
	for i, t := range times {
		v, ok := obs[t.Unix()]
		if !ok {
			v = timeseries.Missing()
		}
		s.Samples[i] = timeseries.Sample{Time: t, Value: v}
	}
	return s
}

// nullableFloats maps JSON nulls to missing values.
func nullableFloats(in []*float64) []float64 {
	out := make([]float64, len(in))
	for i, v := range in {
		if v == nil {
			out[i] = timeseries.Missing()
			continue
		}
		out[i] = *v
	}
	return out
}
