// Package dispatch routes inbound WhatsApp messages to the flow
// interpreter and delivers its responses.
package dispatch

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/waflow/server/internal/flow"
	"github.com/waflow/server/internal/handoff"
	"github.com/waflow/server/internal/llm"
	"github.com/waflow/server/internal/metrics"
	"github.com/waflow/server/internal/repo"
	logx "github.com/waflow/server/pkg/logger"
)

// ApologyMessage goes out when a run fails for any reason: the user always
// gets an answer, never silence.
const ApologyMessage = "I apologize, but I'm having trouble processing your request right now."

// InboundEvent is one user message extracted from a webhook delivery.
type InboundEvent struct {
	From          string
	PhoneNumberID string
	Text          string
}

// Sender delivers outbound messages back to the user.
type Sender interface {
	SendMessages(ctx context.Context, to, phoneNumberID string, messages []string)
}

// ConfigStore reads the bot and flow configuration a message resolves to.
type ConfigStore interface {
	BotByPhoneNumberID(ctx context.Context, phoneNumberID string) (*repo.Bot, error)
	ActiveFlow(ctx context.Context, botID string) (*repo.FlowRecord, error)
}

// Dispatcher is the inbound pipeline: resolve the bot, check handoff, run
// the flow, send the responses.
type Dispatcher struct {
	store     ConfigStore
	arbiter   *handoff.Arbiter
	retriever flow.Retriever
	completer llm.Provider
	sender    Sender
}

func NewDispatcher(store ConfigStore, arbiter *handoff.Arbiter, retriever flow.Retriever, completer llm.Provider, sender Sender) *Dispatcher {
	return &Dispatcher{
		store:     store,
		arbiter:   arbiter,
		retriever: retriever,
		completer: completer,
		sender:    sender,
	}
}

// HandleInbound processes one user message end to end. Run failures are
// absorbed into the apology message; only configuration lookups surface
// errors to the webhook layer.
func (d *Dispatcher) HandleInbound(ctx context.Context, ev InboundEvent) error {
	if ev.From == "" || ev.PhoneNumberID == "" || ev.Text == "" {
		return fmt.Errorf("incomplete inbound event")
	}
	metrics.InboundMessages.Inc()

	runID := uuid.NewString()
	bot, err := d.store.BotByPhoneNumberID(ctx, ev.PhoneNumberID)
	if err != nil {
		return fmt.Errorf("resolve bot: %w", err)
	}

	ok, err := d.arbiter.ShouldHandle(ctx, bot.ID, ev.From, ev.Text)
	if err != nil {
		return fmt.Errorf("handoff check: %w", err)
	}
	if !ok {
		metrics.SkippedByHandoff.Inc()
		logx.Debug().
			Str("run_id", runID).
			Str("bot_id", bot.ID).
			Str("conversation_id", ev.From).
			Msg("conversation owned by human agent, skipping")
		return nil
	}

	record, err := d.store.ActiveFlow(ctx, bot.ID)
	if err != nil {
		return fmt.Errorf("load active flow: %w", err)
	}
	logx.Info().
		Str("run_id", runID).
		Str("from", ev.From).
		Str("flow_id", record.ID).
		Msg("dispatching message to flow")

	responses, err := d.runFlow(ctx, bot, record, ev.Text)
	if err != nil {
		metrics.FlowRuns.WithLabelValues("error").Inc()
		logx.Error().Err(err).
			Str("run_id", runID).
			Str("flow_id", record.ID).
			Msg("flow run failed")
		responses = []string{ApologyMessage}
	} else {
		metrics.FlowRuns.WithLabelValues("ok").Inc()
	}

	if len(responses) == 0 {
		return nil
	}
	d.sender.SendMessages(ctx, ev.From, ev.PhoneNumberID, responses)
	return nil
}

func (d *Dispatcher) runFlow(ctx context.Context, bot *repo.Bot, record *repo.FlowRecord, text string) ([]string, error) {
	graph, err := flow.ParseGraph(record.Definition)
	if err != nil {
		return nil, err
	}

	exec := flow.NewExecutionContext(record.UserID, bot.ID, record.ID, record.FileIDs, record.DocLinks, text)
	engine := flow.NewEngine(graph, exec, d.retriever, d.completer)

	responses, err := engine.Run(ctx)
	if err != nil {
		var cycle *flow.CycleDetectedError
		if errors.As(err, &cycle) {
			logx.Warn().
				Str("flow_id", record.ID).
				Int("steps", cycle.Steps).
				Msg("flow exceeded step bound")
		}
		return nil, err
	}
	return responses, nil
}
