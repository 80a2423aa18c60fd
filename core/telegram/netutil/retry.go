package netutil

import (
	"context"
	"errors"
	"net"
	"net/url"
)

// ShouldRetry reports whether a network error is worth retrying.
// Only transient dial and timeout failures qualify; API-level errors never do.
func ShouldRetry(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		if opErr.Timeout() || opErr.Op == "dial" {
			return true
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		if urlErr.Timeout() {
			return true
		}
		if urlErr.Err != nil && !errors.Is(urlErr.Err, err) {
			return ShouldRetry(urlErr.Err)
		}
	}

	return false
}

// DialFailed reports whether err happened while connecting, before any byte of
// the request was written. Only such failures are safe to replay for
// non-idempotent requests.
func DialFailed(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	var opErr *net.OpError
	return errors.As(err, &opErr) && opErr.Op == "dial"
}
