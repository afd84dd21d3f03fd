// Package oracle abstracts the language model that proposes field
// matches. The resolver builds prompts and validates output; an Oracle
// only turns a prompt into raw completion text.
package oracle

import (
	"context"
	"fmt"
	"time"
)

// Request is one completion call.
type Request struct {
	System string
	Prompt string
}

// Oracle answers completion requests.
type Oracle interface {
	// Name returns the provider identifier for logging.
	Name() string

	// Complete returns the raw completion text for the request.
	Complete(ctx context.Context, req Request) (string, error)
}

// RateLimitError indicates the provider throttled the request. The
// resolver backs off and retries these.
type RateLimitError struct {
	Message    string
	RetryAfter time.Duration
	StatusCode int
}

func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("%s (retry after %s)", e.Message, e.RetryAfter)
	}
	return e.Message
}
