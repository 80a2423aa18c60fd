package netutil

import (
	"context"
	"errors"
	"net"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
)

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

func TestShouldRetry(t *testing.T) {
	dial := &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")}
	read := &net.OpError{Op: "read", Net: "tcp", Err: errors.New("connection reset")}

	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"plain", errors.New("bad request"), false},
		{"canceled", context.Canceled, false},
		{"dial", dial, true},
		{"read reset", read, false},
		{"timeout", timeoutErr{}, true},
		{"url wrapping dial", &url.Error{Op: "Post", URL: "https://api.telegram.org", Err: dial}, true},
		{"url wrapping plain", &url.Error{Op: "Post", URL: "https://api.telegram.org", Err: errors.New("eof")}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ShouldRetry(tc.err))
		})
	}
}

func TestDialFailed(t *testing.T) {
	dial := &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")}

	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"dial", dial, true},
		{"dial timeout", &net.OpError{Op: "dial", Net: "tcp", Err: timeoutErr{}}, true},
		{"url wrapping dial", &url.Error{Op: "Post", URL: "https://sheets.googleapis.com", Err: dial}, true},
		{"response timeout", timeoutErr{}, false},
		{"read reset", &net.OpError{Op: "read", Net: "tcp", Err: errors.New("connection reset")}, false},
		{"canceled", context.Canceled, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, DialFailed(tc.err))
		})
	}
}
