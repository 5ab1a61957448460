package gateway

import (
	"context"
	"errors"
	"strings"
)

// ErrorKind buckets call failures by how the gateway must react.
type ErrorKind int

const (
	// KindCall is an ordinary call failure (revert, missing route).
	// Not retried, no breaker effect.
	KindCall ErrorKind = iota
	// KindRateLimited is provider throttling. Retried with backoff;
	// sustained occurrence opens the breaker.
	KindRateLimited
	// KindTransient is a timeout or connection-level failure. Retried,
	// no breaker effect.
	KindTransient
)

// Known provider throttling signatures. BSC public endpoints and most
// hosted providers answer with one of these.
var rateLimitSignatures = []string{
	"429",
	"too many requests",
	"rate limit",
	"rate-limit",
	"limit exceeded",
	"exceeded the quota",
	"-32005",
	"throttl",
}

var transientSignatures = []string{
	"timeout",
	"timed out",
	"deadline exceeded",
	"connection refused",
	"connection reset",
	"broken pipe",
	"eof",
	"no such host",
	"tls handshake",
}

// Classify buckets an error from an outbound call.
func Classify(err error) ErrorKind {
	if err == nil {
		return KindCall
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTransient
	}

	msg := strings.ToLower(err.Error())
	for _, sig := range rateLimitSignatures {
		if strings.Contains(msg, sig) {
			return KindRateLimited
		}
	}
	for _, sig := range transientSignatures {
		if strings.Contains(msg, sig) {
			return KindTransient
		}
	}
	return KindCall
}
