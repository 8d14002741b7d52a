package sources

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"time"

	"github.com/sony/gobreaker"

	"github.com/solentwx/weather-station/internal/weather"
)

// BackoffConfig controls exponential backoff behaviour.
type BackoffConfig struct {
	MaxRetries      int
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// HTTPClientConfig bundles the shared HTTP client and resilience settings
// applied to every station request.
type HTTPClientConfig struct {
	Client    *http.Client
	UserAgent string
	MaxBody   int // response body cap in bytes
	Backoff   BackoffConfig
}

var (
	errRateLimited   = errors.New("rate limited")
	errServerError   = errors.New("server error")
	errUnexpected    = errors.New("unexpected status code")
	errCircuitOpen   = errors.New("circuit breaker open")
	errNoHTTPClient  = errors.New("http client not configured")
	errInvalidConfig = errors.New("invalid backoff configuration")
)

func newCircuit(name string) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 5,
		Interval:    1 * time.Minute,
		Timeout:     2 * time.Minute,
	})
}

func defaultBackoff() BackoffConfig {
	return BackoffConfig{
		MaxRetries:      3,
		InitialInterval: 500 * time.Millisecond,
		MaxInterval:     5 * time.Second,
	}
}

// doRequestWithResilience executes the HTTP request with retries, exponential
// backoff, and a circuit breaker. The configured User-Agent is set on every
// request.
func doRequestWithResilience(
	ctx context.Context,
	cfg HTTPClientConfig,
	cb *gobreaker.CircuitBreaker,
	buildRequest func() (*http.Request, error),
) (*http.Response, error) {
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
			return nil, wrapNetErr(ctx.Err())
		}

		req, err := buildRequest()
		if err != nil {
			return nil, err
		}

		req = req.WithContext(ctx)
		if cfg.UserAgent != "" && req.Header.Get("User-Agent") == "" {
			req.Header.Set("User-Agent", cfg.UserAgent)
		}

		result, err := cb.Execute(func() (interface{}, error) {
			resp, execErr := cfg.Client.Do(req)
			if execErr != nil {
				return nil, execErr
			}

			// Handle rate limiting and server errors explicitly.
			if resp.StatusCode == http.StatusTooManyRequests {
				resp.Body.Close()
				return nil, errRateLimited
			}
			if resp.StatusCode >= 500 {
				resp.Body.Close()
				return nil, errServerError
			}
			if resp.StatusCode < 200 || resp.StatusCode >= 300 {
				resp.Body.Close()
				return nil, fmt.Errorf("%w: %d", errUnexpected, resp.StatusCode)
			}

			return resp, nil
		})

		if err == nil {
			resp, ok := result.(*http.Response)
			if !ok {
				return nil, fmt.Errorf("unexpected result type from circuit breaker")
			}
			return resp, nil
		}

		// If circuit is open, propagate immediately.
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("%w: %v", errCircuitOpen, err)
		}

		lastErr = wrapNetErr(err)
		if attempt >= cfg.Backoff.MaxRetries {
			return nil, lastErr
		}

		delay := cfg.Backoff.InitialInterval * time.Duration(math.Pow(2, float64(attempt)))
		if delay > cfg.Backoff.MaxInterval && cfg.Backoff.MaxInterval > 0 {
			delay = cfg.Backoff.MaxInterval
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, wrapNetErr(ctx.Err())
		case <-timer.C:
			// continue to next attempt
		}

		attempt++
	}
}

// readBody drains a response body up to the configured cap. A body larger
// than the cap is a buffer overflow, not a truncation.
func readBody(resp *http.Response, maxBytes int) ([]byte, error) {
	defer resp.Body.Close()

	if maxBytes <= 0 {
		maxBytes = 8192
	}

	buf, err := io.ReadAll(io.LimitReader(resp.Body, int64(maxBytes)+1))
	if err != nil {
		return nil, wrapNetErr(err)
	}
	if len(buf) > maxBytes {
		return nil, fmt.Errorf("response exceeds %d byte buffer: %w", maxBytes, weather.ErrBufferOverflow)
	}
	return buf, nil
}

// wrapNetErr folds transport timeouts into the network-timeout sentinel so
// callers classify them uniformly.
func wrapNetErr(err error) error {
	if err == nil {
		return nil
	}
	if weather.Classify(err) == weather.ParseNetworkTimeout && !errors.Is(err, weather.ErrNetworkTimeout) {
		return fmt.Errorf("%v: %w", err, weather.ErrNetworkTimeout)
	}
	return err
}
