// Package api is the gateway facade. A Gateway resolves which rendering
// backends a request concerns, fans the call out to them, and merges what
// they answer into the unified schema of package model.
package api

import (
	"context"

	"github.com/morikuni/failure/v2"
)

// ErrorCode defines error types for API operations
type ErrorCode string

const (
	// ErrCanceled represents a request whose caller went away before the
	// aggregate was complete
	ErrCanceled ErrorCode = "Canceled"

	// ErrInvalidRequest represents a request the facade refuses to fan out
	ErrInvalidRequest ErrorCode = "InvalidRequest"
)

func (c ErrorCode) ErrorCode() string {
	return string(c)
}

func checkCanceled(ctx context.Context, op string) error {
	if err := ctx.Err(); err != nil {
		return failure.Translate(err, ErrCanceled,
			failure.Message("Request canceled"),
			failure.Context{"op": op},
		)
	}
	return nil
}
