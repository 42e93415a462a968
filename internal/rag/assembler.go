package rag

import (
	"context"
	"strings"
	"time"

	logx "github.com/waflow/server/pkg/logger"
)

const (
	// DefaultContextBudget bounds the assembled context in characters so
	// downstream prompt cost stays deterministic regardless of corpus size.
	DefaultContextBudget = 8000
	// TruncationMarker is appended whenever the budget cuts the context.
	TruncationMarker = "\n\n[context truncated]"
	// DefaultSourceTimeout bounds each source's similarity search.
	DefaultSourceTimeout = 3 * time.Second
)

// Assembler gathers grounded context for ai nodes from the vector index.
type Assembler struct {
	index         Index
	budget        int
	sourceTimeout time.Duration
}

func NewAssembler(index Index) *Assembler {
	return &Assembler{
		index:         index,
		budget:        DefaultContextBudget,
		sourceTimeout: DefaultSourceTimeout,
	}
}

// WithBudget overrides the character budget.
func (a *Assembler) WithBudget(budget int) *Assembler {
	a.budget = budget
	return a
}

// Retrieve runs one similarity search per scope and concatenates the
// returned chunks in retrieval order, bounded by the character budget.
// A failing source is skipped; when everything fails the context is simply
// empty and the caller relies on the model or its fallback.
func (a *Assembler) Retrieve(ctx context.Context, query string, scopes []Scope) string {
	k := chunksForQuery(query)

	var parts []string
	for _, scope := range scopes {
		searchCtx, cancel := context.WithTimeout(ctx, a.sourceTimeout)
		chunks, err := a.index.SimilaritySearch(searchCtx, query, scope, k)
		cancel()
		if err != nil {
			logx.Warn().Err(err).
				Str("flow_id", scope.FlowID).
				Str("source", scope.SourceKey()).
				Msg("retrieval failed for source, skipping")
			continue
		}
		parts = append(parts, chunks...)
	}

	joined := strings.Join(parts, "\n\n")
	if len(joined) > a.budget {
		joined = joined[:a.budget] + TruncationMarker
	}
	return joined
}

// chunksForQuery picks k from the query length: short queries need less
// grounding, which keeps token cost down.
func chunksForQuery(query string) int {
	switch {
	case len(query) < 10:
		return 2
	case len(query) < 50:
		return 3
	default:
		return 5
	}
}
