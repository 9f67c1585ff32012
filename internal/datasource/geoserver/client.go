package geoserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sony/gobreaker/v2"
)

// maxResponseBytes caps upstream bodies. CSV payloads for five years of
// acquisitions stay well below this.
const maxResponseBytes = 32 << 20

// HTTPDoer is the subset of *http.Client used for upstream calls.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// StatusError is returned for non-2xx upstream responses.
type StatusError struct {
	URL        string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("upstream %s returned %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("upstream %s returned %d: %s", e.URL, e.StatusCode, e.Body)
}

// Client performs GET requests against GeoServer and the parcel processing
// server through a circuit breaker. Requests are never retried: a failure
// is terminal for that one call, and an open breaker fails fast while the
// upstream is down.
type Client struct {
	doer      HTTPDoer
	breaker   *gobreaker.CircuitBreaker[[]byte]
	userAgent string
}

// NewClient wraps doer with a circuit breaker named name.
func NewClient(doer HTTPDoer, name, userAgent string) *Client {
	cb := gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > 5
		},
		IsSuccessful: func(err error) bool {
			// Client errors mean the upstream is healthy.
			var statusErr *StatusError
			if errors.As(err, &statusErr) {
				return statusErr.StatusCode < 500
			}
			return err == nil || errors.Is(err, context.Canceled)
		},
	})

	return &Client{doer: doer, breaker: cb, userAgent: userAgent}
}

// Get fetches rawURL and returns the response body of a 2xx response.
func (c *Client) Get(ctx context.Context, rawURL string) ([]byte, error) {
	return c.breaker.Execute(func() ([]byte, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to build request: %w", err)
		}
		req.Header.Set("Accept", "application/json")
		if c.userAgent != "" {
			req.Header.Set("User-Agent", c.userAgent)
		}

		resp, err := c.doer.Do(req)
		if err != nil {
			return nil, fmt.Errorf("request to %s failed: %w", req.URL.Path, err)
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
		if err != nil {
			return nil, fmt.Errorf("failed to read response from %s: %w", req.URL.Path, err)
		}

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			return nil, &StatusError{
				URL:        req.URL.Path,
				StatusCode: resp.StatusCode,
				Body:       snippet(body),
			}
		}
		return body, nil
	})
}

// GetJSON fetches rawURL and decodes the JSON body into out.
func (c *Client) GetJSON(ctx context.Context, rawURL string, out interface{}) error {
	body, err := c.Get(ctx, rawURL)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to decode upstream JSON: %w", err)
	}
	return nil
}

// Ping reports whether rawURL answers with a 2xx status.
func (c *Client) Ping(ctx context.Context, rawURL string) error {
	_, err := c.Get(ctx, rawURL)
	return err
}

// State exposes the breaker state for diagnostics.
func (c *Client) State() string {
	return c.breaker.State().String()
}

func snippet(body []byte) string {
	const limit = 200
	if len(body) > limit {
		return string(body[:limit]) + "..."
	}
	return string(body)
}
