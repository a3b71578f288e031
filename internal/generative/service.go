// Package generative wraps the external text-generation service behind a
// narrow contract and the fallback policy every caller goes through.
package generative

import (
	"context"
	"net/http"
)

// Request is a single-turn generation request. The call deadline travels
// on the context.
type Request struct {
	Prompt    string
	MaxTokens int
}

// Response is the raw reply of the service. Success is false when the
// upstream answered with a non-success status.
type Response struct {
	Success bool
	Content string
}

// Service is the black-box generative text endpoint
type Service interface {
	Generate(ctx context.Context, req Request) (Response, error)
}

// HTTPDoer is the interface for executing HTTP requests.
// *http.Client satisfies it.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Disabled is a Service that is never consulted. FallbackPolicy short
// circuits on it without making a call.
type Disabled struct{}

// Generate always reports an unsuccessful response
func (Disabled) Generate(context.Context, Request) (Response, error) {
	return Response{}, nil
}
