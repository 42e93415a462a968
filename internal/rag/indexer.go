package rag

import (
	"context"
	"crypto/sha256"
	"encoding/hex"

	errx "github.com/waflow/server/internal/core/error"
	logx "github.com/waflow/server/pkg/logger"
)

// HashCache remembers the content hash last indexed for a (source, flow)
// pair so unchanged documents are never re-embedded.
type HashCache interface {
	Get(ctx context.Context, source, flowID string) (string, error)
	Set(ctx context.Context, source, flowID, hash string) error
	Delete(ctx context.Context, source, flowID string) error
}

// Indexer chunks source text and maintains the vector index for a scope.
// Indexing is best-effort: callers triggering it (uploads, scheduled
// re-syncs) log failures and carry on.
type Indexer struct {
	index  Index
	hashes HashCache
}

func NewIndexer(index Index, hashes HashCache) *Indexer {
	return &Indexer{index: index, hashes: hashes}
}

// Upsert indexes the source text under the scope. When the content hash
// matches the last indexed one the call is a no-op, which makes scheduled
// re-fetches of unchanged documents free and retries idempotent.
func (ix *Indexer) Upsert(ctx context.Context, scope Scope, text string) error {
	chunks := ChunkText(text)
	if len(chunks) == 0 {
		logx.Debug().Str("source", scope.SourceKey()).Msg("no content to index")
		return nil
	}

	sum := contentHash(text)
	last, err := ix.hashes.Get(ctx, scope.SourceKey(), scope.FlowID)
	if err != nil && !errx.NotFound(err) {
		// Treat a cache failure as "changed" rather than failing the upsert.
		logx.Warn().Err(err).Str("source", scope.SourceKey()).Msg("hash cache read failed")
	}
	if last == sum {
		logx.Debug().
			Str("flow_id", scope.FlowID).
			Str("source", scope.SourceKey()).
			Msg("content unchanged, skipping re-index")
		return nil
	}

	if err := ix.index.Upsert(ctx, scope, chunks); err != nil {
		logx.Error().Err(err).
			Str("flow_id", scope.FlowID).
			Str("source", scope.SourceKey()).
			Msg("vector index upsert failed")
		return err
	}

	if err := ix.hashes.Set(ctx, scope.SourceKey(), scope.FlowID, sum); err != nil {
		// The next upsert re-embeds needlessly but stays correct.
		logx.Warn().Err(err).Str("source", scope.SourceKey()).Msg("hash cache write failed")
	}

	logx.Info().
		Str("flow_id", scope.FlowID).
		Str("source", scope.SourceKey()).
		Int("chunks", len(chunks)).
		Msg("indexed source")
	return nil
}

// Delete removes every chunk of the scope and forgets its content hash so a
// re-added source is indexed again.
func (ix *Indexer) Delete(ctx context.Context, scope Scope) error {
	if err := ix.index.Delete(ctx, scope); err != nil {
		logx.Error().Err(err).
			Str("flow_id", scope.FlowID).
			Str("source", scope.SourceKey()).
			Msg("vector index delete failed")
		return err
	}
	if err := ix.hashes.Delete(ctx, scope.SourceKey(), scope.FlowID); err != nil {
		logx.Warn().Err(err).Str("source", scope.SourceKey()).Msg("hash cache delete failed")
	}
	return nil
}

func contentHash(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}
