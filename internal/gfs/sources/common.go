package sources

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"time"

	"github.com/sony/gobreaker"
)

// backoffConfig controls retry behaviour for upstream grid requests.
type backoffConfig struct {
	maxRetries      int
	initialInterval time.Duration
	maxInterval     time.Duration
}

// httpConfig bundles the shared HTTP client and retry settings.
type httpConfig struct {
	client  *http.Client
	backoff backoffConfig
}

var (
	errServerError  = errors.New("server error")
	errUnexpected   = errors.New("unexpected status code")
	errCircuitOpen  = errors.New("circuit breaker open")
	errNoHTTPClient = errors.New("http client not configured")
)

func defaultBackoff() backoffConfig {
	// Grid downloads are large; keep retries low so a struggling source is
	// abandoned in favour of the next candidate quickly.
	return backoffConfig{
		maxRetries:      1,
		initialInterval: 2 * time.Second,
		maxInterval:     10 * time.Second,
	}
}

func newCircuit(name string) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 2,
		Interval:    5 * time.Minute,
		Timeout:     10 * time.Minute,
	})
}

// fetchWithResilience executes an upstream request with bounded retries,
// exponential backoff, and a circuit breaker. The caller owns the response
// body on success.
func fetchWithResilience(
	ctx context.Context,
	cfg httpConfig,
	cb *gobreaker.CircuitBreaker,
	buildRequest func() (*http.Request, error),
) (*http.Response, error) {
	if cfg.client == nil {
		return nil, errNoHTTPClient
	}

	var attempt int
	for {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		req, err := buildRequest()
		if err != nil {
			return nil, err
		}
		req = req.WithContext(ctx)

		result, err := cb.Execute(func() (interface{}, error) {
			resp, execErr := cfg.client.Do(req)
			if execErr != nil {
				return nil, execErr
			}
			if resp.StatusCode >= 500 {
				resp.Body.Close()
				return nil, fmt.Errorf("%w: %d", errServerError, resp.StatusCode)
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

		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("%w: %v", errCircuitOpen, err)
		}

		if attempt >= cfg.backoff.maxRetries {
			return nil, err
		}

		delay := cfg.backoff.initialInterval * time.Duration(math.Pow(2, float64(attempt)))
		if cfg.backoff.maxInterval > 0 && delay > cfg.backoff.maxInterval {
			delay = cfg.backoff.maxInterval
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}

		attempt++
	}
}
