package kamis

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"
)

// ClientConfig holds the retry policy of the HTTP client.
type ClientConfig struct {
	MaxAttempts int           // total attempts including the first
	BackoffBase float64       // wait before retry n is BackoffBase^n * BackoffUnit
	BackoffUnit time.Duration
	Timeout     time.Duration // per request
}

// DefaultClientConfig waits 2s then 4s and gives each request 30s.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		MaxAttempts: 3,
		BackoffBase: 2,
		BackoffUnit: time.Second,
		Timeout:     30 * time.Second,
	}
}

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Response is a successful (2xx/3xx) HTTP response.
type Response struct {
	StatusCode int
	Body       []byte
	Attempts   int
}

// Fetcher is what the collector needs from a client.
type Fetcher interface {
	Request(ctx context.Context, url string, params map[string]string) (*Response, error)
}

// Client is a resty-backed HTTP client with bounded retries.
type Client struct {
	config ClientConfig
	client *resty.Client
	logger *logrus.Logger
	sleep  SleepFunc
}

func NewClient(config ClientConfig, logger *logrus.Logger) *Client {
	defaults := DefaultClientConfig()
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = defaults.MaxAttempts
	}
	if config.BackoffBase <= 0 {
		config.BackoffBase = defaults.BackoffBase
	}
	if config.BackoffUnit <= 0 {
		config.BackoffUnit = defaults.BackoffUnit
	}
	if config.Timeout <= 0 {
		config.Timeout = defaults.Timeout
	}

	client := resty.New()
	client.SetTimeout(config.Timeout)

	return &Client{
		config: config,
		client: client,
		logger: logger,
		sleep:  sleepContext,
	}
}

// SetSleep replaces the backoff wait. Tests use it to record waits instead of sleeping.
func (c *Client) SetSleep(fn SleepFunc) {
	c.sleep = fn
}

// Backoff returns the wait before retry number n (1-based).
func (c *Client) Backoff(n int) time.Duration {
	return time.Duration(math.Pow(c.config.BackoffBase, float64(n)) * float64(c.config.BackoffUnit))
}

// Request performs a GET with the query params, retrying transport failures and 5xx.
// A 4xx fails after a single attempt.
func (c *Client) Request(ctx context.Context, url string, params map[string]string) (*Response, error) {
	var lastErr *FetchError

	for attempt := 1; attempt <= c.config.MaxAttempts; attempt++ {
		resp, ferr := c.do(ctx, url, params)
		if ferr == nil {
			if attempt > 1 {
				c.logger.WithField("attempt", attempt).Info("request succeeded after retry")
			}
			resp.Attempts = attempt
			return resp, nil
		}

		ferr.Attempts = attempt
		lastErr = ferr

		if !ferr.Retryable() {
			c.logger.WithFields(logrus.Fields{
				"status": ferr.StatusCode,
				"kind":   ferr.Kind,
			}).Warn("request failed, not retrying")
			return nil, ferr
		}

		if attempt == c.config.MaxAttempts {
			break
		}

		delay := c.Backoff(attempt)
		c.logger.WithFields(logrus.Fields{
			"attempt": attempt,
			"kind":    ferr.Kind,
			"delay":   delay,
		}).Warnf("request failed: %v, retrying", ferr.Err)

		if err := c.sleep(ctx, delay); err != nil {
			lastErr.Err = fmt.Errorf("%v (backoff interrupted: %w)", lastErr.Err, err)
			return nil, lastErr
		}
	}

	c.logger.WithFields(logrus.Fields{
		"attempts": lastErr.Attempts,
		"kind":     lastErr.Kind,
	}).Error("all request attempts failed")
	return nil, lastErr
}

func (c *Client) do(ctx context.Context, url string, params map[string]string) (*Response, *FetchError) {
	resp, err := c.client.R().
		SetContext(ctx).
		SetQueryParams(params).
		Get(url)
	if err != nil {
		return nil, classifyTransportError(err)
	}

	status := resp.StatusCode()
	switch {
	case status >= 500:
		return nil, &FetchError{Kind: KindServer, StatusCode: status, Err: fmt.Errorf("%s", resp.Status())}
	case status >= 400:
		return nil, &FetchError{Kind: KindClient, StatusCode: status, Err: fmt.Errorf("%s", resp.Status())}
	}

	return &Response{StatusCode: status, Body: resp.Body()}, nil
}

func classifyTransportError(err error) *FetchError {
	if errors.Is(err, context.DeadlineExceeded) {
		return &FetchError{Kind: KindTimeout, Err: err}
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &FetchError{Kind: KindTimeout, Err: err}
	}
	return &FetchError{Kind: KindConnection, Err: err}
}
