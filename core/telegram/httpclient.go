package telegram

import (
	"net"
	"net/http"
	"time"

	"github.com/m3rciful/consultbot/core/telegram/netutil"
)

const (
	defaultDialTimeout       = 5 * time.Second
	defaultTLSHandshake      = 5 * time.Second
	defaultIdleConnTimeout   = 30 * time.Second
	defaultResponseTimeout   = 15 * time.Second
	defaultClientTimeout     = 30 * time.Second
	defaultKeepAliveInterval = 30 * time.Second
	defaultRetryAttempts     = 3
	defaultRetryBackoff      = 2 * time.Second
)

// BuildHTTPClient returns an HTTP client with tuned timeouts that retries transient
// network failures. It backs the Telegram API client and the Google Sheets sink.
func BuildHTTPClient() *http.Client {
	return &http.Client{
		Timeout:   defaultClientTimeout,
		Transport: RetryTransport(nil),
	}
}

// RetryTransport wraps base (a tuned transport when nil) with transient-failure retries.
func RetryTransport(base http.RoundTripper) http.RoundTripper {
	return newRetryTransport(base, netutil.ShouldRetry)
}

// DialRetryTransport retries only failures to connect. Timeouts after the
// request went out are returned as is, so a non-idempotent call is never sent twice.
func DialRetryTransport(base http.RoundTripper) http.RoundTripper {
	return newRetryTransport(base, netutil.DialFailed)
}

func newRetryTransport(base http.RoundTripper, retryable func(error) bool) http.RoundTripper {
	if base == nil {
		base = &http.Transport{
			Proxy:                 http.ProxyFromEnvironment,
			DialContext:           (&net.Dialer{Timeout: defaultDialTimeout, KeepAlive: defaultKeepAliveInterval}).DialContext,
			ForceAttemptHTTP2:     true,
			MaxIdleConns:          100,
			MaxIdleConnsPerHost:   10,
			IdleConnTimeout:       defaultIdleConnTimeout,
			TLSHandshakeTimeout:   defaultTLSHandshake,
			ResponseHeaderTimeout: defaultResponseTimeout,
			ExpectContinueTimeout: 1 * time.Second,
		}
	}
	return &retryTransport{
		base:       base,
		maxRetries: defaultRetryAttempts,
		backoff:    defaultRetryBackoff,
		retryable:  retryable,
	}
}

type retryTransport struct {
	base       http.RoundTripper
	maxRetries int
	backoff    time.Duration
	retryable  func(error) bool
}

func (t *retryTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	attempts := t.maxRetries + 1
	var lastErr error

	for attempt := 1; attempt <= attempts; attempt++ {
		currReq := req
		if attempt > 1 {
			// A consumed body without GetBody cannot be replayed.
			if req.Body != nil && req.GetBody == nil {
				return nil, lastErr
			}
			currReq = req.Clone(req.Context())
			if req.GetBody != nil {
				body, err := req.GetBody()
				if err != nil {
					return nil, err
				}
				currReq.Body = body
			}
		}

		resp, err := t.base.RoundTrip(currReq)
		if err == nil {
			return resp, nil
		}
		lastErr = err
		if !t.retryable(err) || attempt == attempts {
			break
		}

		timer := time.NewTimer(t.backoff * time.Duration(attempt))
		select {
		case <-req.Context().Done():
			timer.Stop()
			return nil, req.Context().Err()
		case <-timer.C:
		}
	}

	return nil, lastErr
}
