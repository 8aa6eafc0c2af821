package client

import (
	"context"
	stderrors "errors"
	"math/rand"
	"net"
	"time"

	"github.com/bluesky-social/indigo/xrpc"

	"Skymarshal/pkg/errors"
)

const maxAttempts = 3

// authErrStrs are the XRPC error strings the PDS returns for token problems.
// Classification happens here, at the client boundary, so no caller ever
// needs to sniff error messages.
var authErrStrs = map[string]bool{
	"ExpiredToken":           true,
	"InvalidToken":           true,
	"AuthenticationRequired": true,
	"AuthMissing":            true,
}

// Classify maps a transport error onto the Skymarshal error taxonomy.
func Classify(err error) errors.Kind {
	if err == nil {
		return ""
	}
	var xe *xrpc.Error
	if stderrors.As(err, &xe) {
		switch {
		case xe.StatusCode == 401:
			return errors.Auth
		case xe.StatusCode == 429:
			return errors.RateLimited
		case xe.StatusCode == 404:
			return errors.NotFound
		case xe.StatusCode >= 500:
			return errors.Network
		case xe.StatusCode == 400:
			var xrpcErr *xrpc.XRPCError
			if stderrors.As(xe.Wrapped, &xrpcErr) && authErrStrs[xrpcErr.ErrStr] {
				return errors.Auth
			}
			return errors.Validation
		default:
			return errors.Internal
		}
	}
	var netErr net.Error
	if stderrors.As(err, &netErr) || stderrors.Is(err, context.DeadlineExceeded) {
		return errors.Network
	}
	return errors.Network
}

// retryable reports whether a failed attempt should back off and retry.
// Only 429, 5xx, and network errors qualify; other client errors surface
// immediately.
func retryable(kind errors.Kind) bool {
	return kind == errors.RateLimited || kind == errors.Network
}

// backoff returns the sleep before retry attempt n (0-based), an
// exponential series seeded between 0.5 and 1.0 seconds.
func backoff(n int) time.Duration {
	base := 500*time.Millisecond + time.Duration(rand.Int63n(int64(500*time.Millisecond)))
	return base << n
}

// do runs one XRPC operation through the rate limiter and retry policy.
// Mutations must only pass idempotent=true when repeating them is safe
// (deletes are; creates are not).
func (c *Client) do(ctx context.Context, op string, cost int, idempotent bool, fn func() error) error {
	c.limiter.Acquire(cost)

	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return errors.Wrap(ctx.Err(), errors.Network, op+" cancelled")
			case <-time.After(backoff(attempt - 1)):
			}
		}
		err := fn()
		if err == nil {
			return nil
		}
		kind := Classify(err)
		lastErr = errors.Wrap(err, kind, op+" failed")
		if !retryable(kind) || !idempotent {
			return lastErr
		}
	}
	return lastErr
}
