package ai

import (
	"context"
	"fmt"
)

// DefaultMaxOutputTokens bounds the response length when the caller does not.
const DefaultMaxOutputTokens = 3500

// GenerationRequest is the two-turn completion sent for one submission.
type GenerationRequest struct {
	SystemContent   string
	UserContent     string
	Model           string
	Temperature     float64
	MaxOutputTokens int
}

func (r GenerationRequest) maxTokens() int {
	if r.MaxOutputTokens <= 0 {
		return DefaultMaxOutputTokens
	}
	return r.MaxOutputTokens
}

// Generator produces feedback text from a composed grading request.
// Implementations make exactly one remote call per Generate and never retry.
type Generator interface {
	Generate(ctx context.Context, req GenerationRequest) (string, error)
}

// APIError wraps every failure raised while talking to a completion provider.
type APIError struct {
	Provider string
	Model    string
	Err      error
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API call failed: %v", e.Err)
}

func (e *APIError) Unwrap() error {
	return e.Err
}

func apiError(provider, model string, err error) *APIError {
	return &APIError{Provider: provider, Model: model, Err: err}
}
