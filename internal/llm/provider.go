package llm

import (
	"context"
	"errors"
)

// ErrUnavailable is the single failure kind every provider error maps to.
// Callers only need to know the completion could not be produced; the
// underlying cause is preserved in the wrap chain for logging.
var ErrUnavailable = errors.New("completion provider unavailable")

// CompletionRequest carries everything needed for one chat completion.
type CompletionRequest struct {
	Model             string
	SystemPrompt      string
	ExtraInstructions string
	Context           string
	UserInput         string
}

// TokenUsage reports the token counts of one completion call.
type TokenUsage struct {
	InputTokens  int
	OutputTokens int
	TotalTokens  int
}

// CompletionResult is the provider-agnostic response.
type CompletionResult struct {
	Content string
	Usage   TokenUsage
}

// Provider produces a chat completion for a request.
type Provider interface {
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResult, error)
}

// Embedder produces an embedding vector for a piece of text.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}
