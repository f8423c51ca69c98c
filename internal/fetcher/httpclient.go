package fetcher

import (
	"time"

	"go.uber.org/zap"
	"resty.dev/v3"
)

const (
	defaultHTTPRetryCount       = 1
	defaultHTTPRetryWaitTime    = 1 * time.Second
	defaultHTTPRetryMaxWaitTime = 10 * time.Second
	defaultHTTPTimeout          = 30 * time.Second
)

// ClientOptions tunes the transport-level retries of an HTTP client. The
// Worker retry loop sits on top of these.
type ClientOptions struct {
	RetryCount int
	Timeout    time.Duration
}

// NewHTTPClient creates a new HTTP client with retry logic and exponential backoff
func NewHTTPClient(baseURL string, opts ClientOptions) *resty.Client {
	if opts.RetryCount < 0 {
		opts.RetryCount = defaultHTTPRetryCount
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultHTTPTimeout
	}

	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(opts.Timeout).
		SetHeader("Accept", "application/json").
		SetRetryCount(opts.RetryCount).
		SetRetryWaitTime(defaultHTTPRetryWaitTime).
		SetRetryMaxWaitTime(defaultHTTPRetryMaxWaitTime).
		AddRetryConditions(retryCondition).
		AddRetryHooks(retryHook)

	return client
}

// retryCondition determines whether a request should be retried based on the response and error
func retryCondition(r *resty.Response, err error) bool {
	if err != nil {
		return true
	}
	switch code := r.StatusCode(); {
	case code >= 500, code == 429, code == 408:
		return true
	default:
		return false
	}
}

// retryHook logs retry attempts
func retryHook(r *resty.Response, err error) {
	if err != nil {
		zap.L().Debug("retrying request due to error",
			zap.String("url", r.Request.URL),
			zap.Int("attempt", r.Request.Attempt),
			zap.Error(err))
		return
	}

	zap.L().Debug("retrying request due to status code",
		zap.String("url", r.Request.URL),
		zap.Int("attempt", r.Request.Attempt),
		zap.Int("status_code", r.StatusCode()))
}
