package handoff

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memRepository struct {
	flags map[string]bool
	err   error
}

func newMemRepository() *memRepository {
	return &memRepository{flags: map[string]bool{}}
}

func (m *memRepository) key(botID, conversationID string) string {
	return botID + "/" + conversationID
}

func (m *memRepository) Active(_ context.Context, botID, conversationID string) (bool, error) {
	if m.err != nil {
		return false, m.err
	}
	return m.flags[m.key(botID, conversationID)], nil
}

func (m *memRepository) SetActive(_ context.Context, botID, conversationID string, active bool) error {
	if m.err != nil {
		return m.err
	}
	m.flags[m.key(botID, conversationID)] = active
	return nil
}

func TestShouldHandleDefaultsToBot(t *testing.T) {
	a := NewArbiter(newMemRepository(), "")

	ok, err := a.ShouldHandle(context.Background(), "bot-1", "conv-1", "hello")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestEscapeKeywordActivatesHandoff(t *testing.T) {
	repo := newMemRepository()
	a := NewArbiter(repo, "")

	// The keyword message itself is not answered by the bot.
	ok, err := a.ShouldHandle(context.Background(), "bot-1", "conv-1", "  AGENT  ")
	require.NoError(t, err)
	assert.False(t, ok)

	// Handoff persists for the following messages.
	ok, err = a.ShouldHandle(context.Background(), "bot-1", "conv-1", "hello?")
	require.NoError(t, err)
	assert.False(t, ok)

	// Other conversations of the same bot are unaffected.
	ok, err = a.ShouldHandle(context.Background(), "bot-1", "conv-2", "hello")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestCustomEscapeKeyword(t *testing.T) {
	a := NewArbiter(newMemRepository(), "human")

	ok, err := a.ShouldHandle(context.Background(), "bot-1", "conv-1", "agent")
	require.NoError(t, err)
	assert.True(t, ok, "default keyword must not trigger a custom configuration")

	ok, err = a.ShouldHandle(context.Background(), "bot-1", "conv-1", "Human")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestClaimAndRelease(t *testing.T) {
	a := NewArbiter(newMemRepository(), "")
	ctx := context.Background()

	require.NoError(t, a.Claim(ctx, "bot-1", "conv-1"))
	active, err := a.Active(ctx, "bot-1", "conv-1")
	require.NoError(t, err)
	assert.True(t, active)

	ok, err := a.ShouldHandle(ctx, "bot-1", "conv-1", "hello")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, a.Release(ctx, "bot-1", "conv-1"))
	ok, err = a.ShouldHandle(ctx, "bot-1", "conv-1", "hello")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestShouldHandlePropagatesRepositoryError(t *testing.T) {
	repo := newMemRepository()
	repo.err = errors.New("redis down")
	a := NewArbiter(repo, "")

	_, err := a.ShouldHandle(context.Background(), "bot-1", "conv-1", "hello")
	require.Error(t, err)
}
