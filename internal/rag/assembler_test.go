package rag

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeIndex struct {
	chunks    map[string][]string
	failKeys  map[string]bool
	gotKs     []int
	upserts   map[string][][]string
	deletes   []string
	upsertErr error
}

func newFakeIndex() *fakeIndex {
	return &fakeIndex{
		chunks:   map[string][]string{},
		failKeys: map[string]bool{},
		upserts:  map[string][][]string{},
	}
}

func (f *fakeIndex) SimilaritySearch(_ context.Context, _ string, scope Scope, k int) ([]string, error) {
	f.gotKs = append(f.gotKs, k)
	if f.failKeys[scope.SourceKey()] {
		return nil, errors.New("search failed")
	}
	return f.chunks[scope.SourceKey()], nil
}

func (f *fakeIndex) Upsert(_ context.Context, scope Scope, chunks []string) error {
	if f.upsertErr != nil {
		return f.upsertErr
	}
	f.upserts[scope.SourceKey()] = append(f.upserts[scope.SourceKey()], chunks)
	return nil
}

func (f *fakeIndex) Delete(_ context.Context, scope Scope) error {
	f.deletes = append(f.deletes, scope.SourceKey())
	return nil
}

func TestRetrieveJoinsSourcesInOrder(t *testing.T) {
	idx := newFakeIndex()
	idx.chunks["file-1"] = []string{"chunk a", "chunk b"}
	idx.chunks["link-1"] = []string{"chunk c"}

	got := NewAssembler(idx).Retrieve(context.Background(), "what is the refund policy", []Scope{
		{FlowID: "f1", FileID: "file-1"},
		{FlowID: "f1", Link: "link-1"},
	})
	assert.Equal(t, "chunk a\n\nchunk b\n\nchunk c", got)
}

func TestRetrieveSkipsFailingSource(t *testing.T) {
	idx := newFakeIndex()
	idx.chunks["file-1"] = []string{"survivor"}
	idx.failKeys["file-2"] = true

	got := NewAssembler(idx).Retrieve(context.Background(), "some question here", []Scope{
		{FlowID: "f1", FileID: "file-2"},
		{FlowID: "f1", FileID: "file-1"},
	})
	assert.Equal(t, "survivor", got)
}

func TestRetrieveAllSourcesFailingYieldsEmpty(t *testing.T) {
	idx := newFakeIndex()
	idx.failKeys["file-1"] = true

	got := NewAssembler(idx).Retrieve(context.Background(), "question", []Scope{
		{FlowID: "f1", FileID: "file-1"},
	})
	assert.Equal(t, "", got)
}

func TestRetrieveTruncatesAtBudget(t *testing.T) {
	idx := newFakeIndex()
	idx.chunks["file-1"] = []string{strings.Repeat("x", 100)}

	got := NewAssembler(idx).WithBudget(40).Retrieve(context.Background(), "question", []Scope{
		{FlowID: "f1", FileID: "file-1"},
	})
	require.True(t, strings.HasSuffix(got, TruncationMarker))
	assert.Equal(t, 40+len(TruncationMarker), len(got))
}

func TestChunksForQueryScalesWithLength(t *testing.T) {
	idx := newFakeIndex()
	a := NewAssembler(idx)
	scope := []Scope{{FlowID: "f1", FileID: "file-1"}}

	a.Retrieve(context.Background(), "hi", scope)
	a.Retrieve(context.Background(), "a medium sized question", scope)
	a.Retrieve(context.Background(), strings.Repeat("long question ", 10), scope)

	assert.Equal(t, []int{2, 3, 5}, idx.gotKs)
}
