// Package userclient is the gateway's typed client for the user
// service. Every failure mode surfaces as one of the package's error
// types; callers branch with errors.Is and errors.As, never on raw
// status codes.
package userclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/hashicorp/go-retryablehttp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/tracechain-io/tracechain/internal/infrastructure/monitoring"
	"github.com/tracechain-io/tracechain/internal/infrastructure/resilience"
	"github.com/tracechain-io/tracechain/internal/infrastructure/telemetry"
	"github.com/tracechain-io/tracechain/internal/shared/types"
)

const (
	downstreamName = "user-service"
	opGetUser      = "get_user"
)

// Config defines client construction parameters.
type Config struct {
	BaseURL string
	Timeout time.Duration
	Logger  *zap.Logger
	Metrics *monitoring.Metrics

	// RequestsPerSecond caps outbound call rate; zero means unlimited.
	RequestsPerSecond float64
}

// Client wraps resty with a retrying transport, a circuit breaker, and
// span context propagation into outbound headers.
type Client struct {
	resty   *resty.Client
	breaker *resilience.Breaker
	limiter *rate.Limiter
	logger  *zap.Logger
	metrics *monitoring.Metrics
}

// New creates a user service client.
func New(cfg Config) *Client {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 5 * time.Second
	}

	// Transport-level retries for connect failures only. Any received
	// response is an answer: retrying a 5xx here would surface it as a
	// transport fault and hide the real status from the caller.
	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = 2
	retryClient.RetryWaitMin = 100 * time.Millisecond
	retryClient.RetryWaitMax = 1 * time.Second
	retryClient.Logger = nil
	retryClient.CheckRetry = func(ctx context.Context, resp *http.Response, err error) (bool, error) {
		if err != nil {
			return retryablehttp.DefaultRetryPolicy(ctx, resp, err)
		}
		return false, nil
	}

	restyClient := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(timeout).
		SetHeader("User-Agent", "tracechain-gateway/1.0").
		SetTransport(&retryablehttp.RoundTripper{Client: retryClient})

	breaker := resilience.New(downstreamName, resilience.Settings{
		MaxRequests: 3,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts resilience.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to resilience.State) {
			logger.Warn("circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})

	limiter := rate.NewLimiter(rate.Inf, 0)
	if cfg.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), int(cfg.RequestsPerSecond))
	}

	return &Client{
		resty:   restyClient,
		breaker: breaker,
		limiter: limiter,
		logger:  logger,
		metrics: cfg.Metrics,
	}
}

// BreakerState returns the current circuit breaker state.
func (c *Client) BreakerState() resilience.State {
	return c.breaker.State()
}

// GetUser fetches one user record. The active span context in ctx is
// injected into the outbound traceparent header, making the user
// service's server span a child of the caller's span.
//
// Errors: ErrNotFound for a 404, *StatusError for any other non-200
// response, *TransportError when no usable response arrived.
func (c *Client) GetUser(ctx context.Context, userID string) (*types.User, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, &TransportError{Cause: err}
	}

	var (
		user    types.User
		callErr error
	)

	timer := monitoring.NewTimer(c.metrics, downstreamName, opGetUser)
	err := c.breaker.Do(func() error {
		req := c.resty.R().SetContext(ctx)
		if sc, ok := telemetry.SpanContextFromContext(ctx); ok {
			sc.Inject(req.Header)
		}

		resp, err := req.Get(fmt.Sprintf("/internal/user/%s", userID))
		if err != nil {
			callErr = &TransportError{Cause: err}
			return err
		}

		switch code := resp.StatusCode(); {
		case code == http.StatusOK:
			if err := json.Unmarshal(resp.Body(), &user); err != nil {
				callErr = &TransportError{Cause: err}
				return err
			}
			return nil
		case code == http.StatusNotFound:
			// A definitive answer, not a downstream fault: the
			// breaker must not trip on missing users.
			callErr = ErrNotFound
			return nil
		default:
			callErr = &StatusError{Code: code}
			if code >= http.StatusInternalServerError {
				return fmt.Errorf("user service status %d", code)
			}
			return nil
		}
	})
	if errors.Is(err, resilience.ErrCircuitOpen) || errors.Is(err, resilience.ErrTooManyRequests) {
		callErr = &TransportError{Cause: err}
	}

	c.record(userID, callErr, timer)

	if callErr != nil {
		return nil, callErr
	}
	return &user, nil
}

// record stops the call timer under the outcome's status label and
// emits the local log line.
func (c *Client) record(userID string, callErr error, timer *monitoring.Timer) {
	status := "success"
	var transportErr *TransportError
	var statusErr *StatusError
	switch {
	case errors.Is(callErr, ErrNotFound):
		status = "not_found"
	case errors.As(callErr, &statusErr):
		status = "bad_status"
	case errors.As(callErr, &transportErr):
		status = "transport_error"
	}

	elapsed := timer.Stop(status)
	if c.metrics != nil && status == "transport_error" {
		c.metrics.RecordDownstreamError(downstreamName, opGetUser, status)
	}

	if callErr != nil && status != "not_found" {
		c.logger.Warn("user service call failed",
			zap.String("user_id", userID),
			zap.String("status", status),
			zap.Duration("duration", elapsed),
			zap.Error(callErr),
		)
		return
	}
	c.logger.Debug("user service call completed",
		zap.String("user_id", userID),
		zap.String("status", status),
		zap.Duration("duration", elapsed),
	)
}
