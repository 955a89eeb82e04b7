package pubmed

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/Adithya-Monish-Kumar-K/pubmed-search/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/pubmed-search/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/pubmed-search/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/pubmed-search/pkg/resilience"
)

// StatusError is returned for a non-2xx response.
type StatusError struct {
	URL  string
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s: unexpected status %d", e.URL, e.Code)
}

// isTransient reports whether a failed fetch is worth retrying: network
// errors, 429 and 5xx responses. Cancellation and an open circuit are not.
func isTransient(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, resilience.ErrCircuitOpen) {
		return false
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.Code == http.StatusTooManyRequests || se.Code >= 500
	}
	return true
}

// fetcher performs GETs against one NCBI host with retry and a circuit
// breaker.
type fetcher struct {
	http    *http.Client
	retry   resilience.RetryConfig
	breaker *resilience.Breaker
}

func newFetcher(name string, cfg config.BuildConfig, httpClient *http.Client, m *metrics.Metrics) *fetcher {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.FetchTimeout}
	}
	cbCfg := resilience.BreakerConfig{Threshold: 5, Cooldown: 30 * time.Second, Counts: isTransient}
	if m != nil {
		cbCfg.OnChange = func(host string, to resilience.State) {
			m.CircuitBreakerState.WithLabelValues(host).Set(float64(to))
		}
	}
	return &fetcher{
		http: httpClient,
		retry: resilience.RetryConfig{
			MaxAttempts:  cfg.Retry.MaxAttempts,
			InitialDelay: cfg.Retry.InitialDelay,
			MaxDelay:     cfg.Retry.MaxDelay,
			Retryable:    isTransient,
		},
		breaker: resilience.NewBreaker(name, cbCfg),
	}
}

// get returns the body of url. Exhausted retries are reported as
// ErrFetchFailed.
func (f *fetcher) get(ctx context.Context, url string) ([]byte, error) {
	var body []byte
	err := resilience.Retry(ctx, "GET "+url, f.retry, func() error {
		return f.breaker.Do(func() error {
			b, err := f.getOnce(ctx, url)
			if err != nil {
				return err
			}
			body = b
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", apperrors.ErrFetchFailed, err)
	}
	return body, nil
}

func (f *fetcher) getOnce(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, resilience.Permanent(fmt.Errorf("building request: %w", err))
	}
	resp, err := f.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, &StatusError{URL: url, Code: resp.StatusCode}
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading body of %s: %w", url, err)
	}
	return body, nil
}
