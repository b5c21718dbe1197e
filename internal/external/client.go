// Package external is the boundary between storefront domain logic and
// third-party HTTP endpoints (the WHMCS billing API and Discord webhooks).
// All outbound calls are routed through the BaseClient, which enforces a
// shared circuit breaker and consistent error mapping. Requests are single
// shot: the upstream contract for both price fetches and fire-and-forget
// notifications is one synchronous call with no retry.
package external

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/sony/gobreaker/v2"

	"expanse/internal/types"
)

// BaseClient wraps an *http.Client and a circuit breaker. Provider clients
// (WHMCS, Discord) embed or hold a BaseClient to inherit this behavior.
type BaseClient struct {
	client    *http.Client
	breaker   *gobreaker.CircuitBreaker[*http.Response]
	userAgent string
}

// NewBaseClient creates a BaseClient with the given http client, breaker name,
// and user agent string. The breaker opens after five consecutive failures
// and probes again after thirty seconds.
func NewBaseClient(httpClient *http.Client, breakerName, userAgent string) *BaseClient {
	cb := gobreaker.NewCircuitBreaker[*http.Response](gobreaker.Settings{
		Name:        breakerName,
		MaxRequests: 1,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > 5
		},
		IsSuccessful: func(err error) bool {
			return err == nil
		},
	})

	return &BaseClient{
		client:    httpClient,
		breaker:   cb,
		userAgent: userAgent,
	}
}

// Do executes the HTTP request with:
//  1. Trace ID injection (X-Request-Id from context)
//  2. User-Agent header injection
//  3. Circuit breaker wrapping (5xx counts as a breaker failure)
//
// On a transport-level success (any HTTP status), Do returns the response
// as-is; the caller is responsible for closing the response body and
// interpreting the status. On network failure or open breaker, Do returns a
// *types.AppError.
func (c *BaseClient) Do(req *http.Request) (*http.Response, error) {
	if traceID := types.GetRequestID(req.Context()); traceID != "" {
		req.Header.Set("X-Request-Id", traceID)
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.breaker.Execute(func() (*http.Response, error) {
		r, doErr := c.client.Do(req)
		if doErr != nil {
			return nil, doErr
		}
		// 5xx counts against the breaker but is still handed to the caller.
		if r.StatusCode >= 500 {
			return r, fmt.Errorf("upstream returned %d", r.StatusCode)
		}
		return r, nil
	})

	if err == nil {
		return resp, nil
	}
	if resp != nil {
		// A 5xx response reached us; the breaker recorded the failure but the
		// caller still gets the response for status handling and body logging.
		return resp, nil
	}

	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, types.NewAppError(
			types.ErrCodeUpstreamBilling,
			"circuit breaker is open; upstream unavailable",
			err,
		)
	}
	return nil, types.NewAppError(
		types.ErrCodeUpstreamBilling,
		"upstream request failed",
		err,
	)
}
