package rag

import "context"

// Scope is the identifier tuple that isolates retrieval and indexing.
// Exactly one of FileID or Link is set: a scope points at one uploaded file
// or one linked document. Retrieval always filters by the full tuple.
type Scope struct {
	UserID string
	BotID  string
	FlowID string
	FileID string
	Link   string
}

// SourceKey returns the file-or-link identifier of the scope.
func (s Scope) SourceKey() string {
	if s.FileID != "" {
		return s.FileID
	}
	return s.Link
}

// Index is the vector search surface the assembler and indexer run against.
type Index interface {
	// SimilaritySearch returns up to k chunk contents most similar to the
	// query, filtered to exactly the given scope.
	SimilaritySearch(ctx context.Context, query string, scope Scope, k int) ([]string, error)
	// Upsert replaces the indexed chunks of the scope with the given ones.
	Upsert(ctx context.Context, scope Scope, chunks []string) error
	// Delete removes every chunk matching the full scope.
	Delete(ctx context.Context, scope Scope) error
}
