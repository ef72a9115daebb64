package provider

import (
	"context"
	"errors"
	"io"
	"net"
	"strings"
	"syscall"
	"time"
)

// RetryPolicy bounds how a single provider call is retried. Only errors that
// IsTransient accepts are retried; one retry per entry of Delays.
type RetryPolicy struct {
	Delays      []time.Duration
	Timeout     time.Duration
	IsTransient func(error) bool
}

var DefaultRetryPolicy = RetryPolicy{
	Delays:      []time.Duration{300 * time.Millisecond, 900 * time.Millisecond},
	Timeout:     15 * time.Second,
	IsTransient: IsTransient,
}

// IsTransient reports network failures worth retrying: connection resets,
// broken sockets and failed fetches. Timeouts and HTTP-level errors are not.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, syscall.ECONNRESET) || errors.Is(err, syscall.ECONNABORTED) ||
		errors.Is(err, syscall.EPIPE) || errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) && !opErr.Timeout() {
		return true
	}

	text := strings.ToLower(err.Error())
	for _, marker := range []string{"econnreset", "connection reset", "socket", "fetch failed", "broken pipe"} {
		if strings.Contains(text, marker) {
			return true
		}
	}
	return false
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
