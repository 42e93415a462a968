// Package handoff decides, per (bot, conversation), whether the flow
// interpreter answers inbound messages or a human agent owns the
// conversation.
package handoff

import (
	"context"
	"strings"

	"github.com/waflow/server/internal/metrics"
	logx "github.com/waflow/server/pkg/logger"
)

// DefaultEscapeKeyword is the message body that hands a conversation to a
// human agent when no keyword is configured.
const DefaultEscapeKeyword = "agent"

// Repository persists the handoff flag per (bot, conversation). Records are
// created lazily on first write and live until explicitly reset; there is
// no TTL.
type Repository interface {
	Active(ctx context.Context, botID, conversationID string) (bool, error)
	SetActive(ctx context.Context, botID, conversationID string, active bool) error
}

// Arbiter is the per-conversation state machine: bot-controlled until the
// user sends the escape keyword or an agent claims the conversation;
// bot control returns only on an explicit agent release.
type Arbiter struct {
	repo          Repository
	escapeKeyword string
}

func NewArbiter(repo Repository, escapeKeyword string) *Arbiter {
	if escapeKeyword == "" {
		escapeKeyword = DefaultEscapeKeyword
	}
	return &Arbiter{repo: repo, escapeKeyword: escapeKeyword}
}

// ShouldHandle reports whether the bot may answer this message. A message
// equal to the escape keyword (case-insensitive, trimmed) activates handoff
// and is itself not answered by the bot.
func (a *Arbiter) ShouldHandle(ctx context.Context, botID, conversationID, message string) (bool, error) {
	active, err := a.repo.Active(ctx, botID, conversationID)
	if err != nil {
		return false, err
	}
	if active {
		return false, nil
	}

	if strings.EqualFold(strings.TrimSpace(message), a.escapeKeyword) {
		if err := a.repo.SetActive(ctx, botID, conversationID, true); err != nil {
			return false, err
		}
		metrics.HandoffActivations.Inc()
		logx.Info().
			Str("bot_id", botID).
			Str("conversation_id", conversationID).
			Msg("handoff activated by escape keyword")
		return false, nil
	}

	return true, nil
}

// Claim puts the conversation under human control.
func (a *Arbiter) Claim(ctx context.Context, botID, conversationID string) error {
	if err := a.repo.SetActive(ctx, botID, conversationID, true); err != nil {
		return err
	}
	metrics.HandoffActivations.Inc()
	return nil
}

// Release returns the conversation to the bot.
func (a *Arbiter) Release(ctx context.Context, botID, conversationID string) error {
	return a.repo.SetActive(ctx, botID, conversationID, false)
}

// Active reports the current handoff state.
func (a *Arbiter) Active(ctx context.Context, botID, conversationID string) (bool, error) {
	return a.repo.Active(ctx, botID, conversationID)
}
