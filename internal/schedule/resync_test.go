package schedule

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/waflow/server/internal/rag"
	"github.com/waflow/server/internal/repo"
)

type memIndex struct {
	upserts map[string][]string
}

func (m *memIndex) SimilaritySearch(_ context.Context, _ string, _ rag.Scope, _ int) ([]string, error) {
	return nil, nil
}

func (m *memIndex) Upsert(_ context.Context, scope rag.Scope, chunks []string) error {
	m.upserts[scope.Link] = chunks
	return nil
}

func (m *memIndex) Delete(_ context.Context, _ rag.Scope) error { return nil }

type memHashCache struct{ hashes map[string]string }

func (m *memHashCache) Get(_ context.Context, source, flowID string) (string, error) {
	return m.hashes[flowID+"/"+source], nil
}

func (m *memHashCache) Set(_ context.Context, source, flowID, hash string) error {
	m.hashes[flowID+"/"+source] = hash
	return nil
}

func (m *memHashCache) Delete(_ context.Context, source, flowID string) error {
	delete(m.hashes, flowID+"/"+source)
	return nil
}

type memFlowLister struct {
	flows []repo.FlowRecord
	err   error
}

func (m *memFlowLister) FlowsWithDocLinks(_ context.Context) ([]repo.FlowRecord, error) {
	return m.flows, m.err
}

type memFetcher struct {
	texts map[string]string
}

func (m *memFetcher) FetchLink(_ context.Context, link string) (string, error) {
	text, ok := m.texts[link]
	if !ok {
		return "", errors.New("document not found")
	}
	return text, nil
}

func TestRunOnceIndexesEveryLink(t *testing.T) {
	idx := &memIndex{upserts: map[string][]string{}}
	indexer := rag.NewIndexer(idx, &memHashCache{hashes: map[string]string{}})

	lister := &memFlowLister{flows: []repo.FlowRecord{
		{
			ID:       "flow-1",
			BotID:    "bot-1",
			UserID:   "user-1",
			DocLinks: []string{"link-a", "link-b"},
		},
	}}
	fetcher := &memFetcher{texts: map[string]string{
		"link-a": "content of a",
		"link-b": "content of b",
	}}

	r := NewResyncer(lister, fetcher, indexer, 0)
	r.runOnce(context.Background())

	require.Len(t, idx.upserts, 2)
	assert.Equal(t, []string{"content of a"}, idx.upserts["link-a"])
	assert.Equal(t, []string{"content of b"}, idx.upserts["link-b"])
}

func TestRunOnceSkipsBrokenLink(t *testing.T) {
	idx := &memIndex{upserts: map[string][]string{}}
	indexer := rag.NewIndexer(idx, &memHashCache{hashes: map[string]string{}})

	lister := &memFlowLister{flows: []repo.FlowRecord{
		{ID: "flow-1", BotID: "bot-1", UserID: "user-1", DocLinks: []string{"broken", "link-a"}},
	}}
	fetcher := &memFetcher{texts: map[string]string{"link-a": "still indexed"}}

	r := NewResyncer(lister, fetcher, indexer, 0)
	r.runOnce(context.Background())

	require.Len(t, idx.upserts, 1)
	assert.Equal(t, []string{"still indexed"}, idx.upserts["link-a"])
}

func TestRunOnceToleratesListFailure(t *testing.T) {
	idx := &memIndex{upserts: map[string][]string{}}
	indexer := rag.NewIndexer(idx, &memHashCache{hashes: map[string]string{}})

	r := NewResyncer(&memFlowLister{err: errors.New("pg down")}, &memFetcher{}, indexer, 0)
	r.runOnce(context.Background())

	assert.Empty(t, idx.upserts)
}
