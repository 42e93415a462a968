package llm

import (
	"context"
	"fmt"
	"strings"
)

// Selector routes a completion request to the provider owning the model,
// decided by the model name prefix the way the authoring tool names models.
type Selector struct {
	openai Provider
	gemini Provider
}

func NewSelector(openai, gemini Provider) *Selector {
	return &Selector{openai: openai, gemini: gemini}
}

// Complete dispatches to the provider for req.Model. Unsupported model
// names are an authoring error and map to the unavailable failure kind so
// ai nodes fall back the same way they do for provider outages.
func (s *Selector) Complete(ctx context.Context, req CompletionRequest) (*CompletionResult, error) {
	switch {
	case strings.HasPrefix(req.Model, "gpt-"):
		if s.openai == nil {
			return nil, fmt.Errorf("%w: openai provider not configured", ErrUnavailable)
		}
		return s.openai.Complete(ctx, req)
	case strings.HasPrefix(req.Model, "gemini-"):
		if s.gemini == nil {
			return nil, fmt.Errorf("%w: gemini provider not configured", ErrUnavailable)
		}
		return s.gemini.Complete(ctx, req)
	default:
		return nil, fmt.Errorf("%w: unsupported model %q", ErrUnavailable, req.Model)
	}
}

var _ Provider = (*Selector)(nil)
