// Package transport reaches upstream services (the ticket tracker and the
// documentation store) through tool servers speaking MCP over stdio. The rest
// of the codebase sees only the Invoker boundary: a named operation with
// arguments, returning human-readable text.
package transport

import (
	"context"
	"regexp"
	"strconv"
	"sync"

	"golang.org/x/time/rate"

	pferrors "github.com/pbelyakov/planforge/pkg/errors"
)

// Invoker executes one named operation against an upstream and returns its
// textual result. Implementations fail with *pferrors.TransportError.
type Invoker interface {
	Invoke(ctx context.Context, operation string, args map[string]any) (string, error)
}

// RequestIDGenerator produces monotonically increasing ids for request
// correlation in logs. Safe for concurrent use.
type RequestIDGenerator struct {
	mu      sync.Mutex
	counter int64
}

// Next returns the next unique request id.
func (g *RequestIDGenerator) Next() int64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.counter++
	return g.counter
}

// NewLimiter builds the token-bucket limiter shared by one upstream client.
// Injected rather than global so each upstream gets its own bucket and tests
// can substitute a permissive one.
func NewLimiter(requestsPerSecond float64, burst int) *rate.Limiter {
	return rate.NewLimiter(rate.Limit(requestsPerSecond), burst)
}

var statusPattern = regexp.MustCompile(`(?i)(?:HTTP|status(?:\s+code)?)[:\s]*([1-5]\d{2})`)

// extractStatus pulls an HTTP-equivalent status code out of an upstream error
// text, so the retry layer can classify rate-limit/unavailable replies. Zero
// when no status is recognizable.
func extractStatus(message string) int {
	m := statusPattern.FindStringSubmatch(message)
	if m == nil {
		return 0
	}
	code, err := strconv.Atoi(m[1])
	if err != nil {
		return 0
	}
	return code
}

// errorFromToolResult converts an upstream tool error text into a typed
// TransportError, preserving any embedded status code for retry
// classification.
func errorFromToolResult(upstream, operation, message string) error {
	if status := extractStatus(message); status > 0 {
		return pferrors.NewTransportErrorWithStatus(upstream, operation, status, message)
	}
	return pferrors.NewTransportError(upstream, operation, message)
}
