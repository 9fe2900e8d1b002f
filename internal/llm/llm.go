package llm

import (
	"context"
	"errors"
)

// Client sends one prompt to a model provider and returns the raw text reply.
type Client interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// ErrNotConfigured is returned when no provider credentials are available.
var ErrNotConfigured = errors.New("llm provider not configured")

// UnconfiguredClient fails every call. It lets the API boot without provider credentials.
type UnconfiguredClient struct{}

// Complete returns ErrNotConfigured.
func (UnconfiguredClient) Complete(context.Context, string) (string, error) {
	return "", ErrNotConfigured
}
