package flow

import (
	"context"
	"fmt"
	"strings"

	"github.com/waflow/server/internal/llm"
	"github.com/waflow/server/internal/rag"
	logx "github.com/waflow/server/pkg/logger"
)

// DefaultFallbackResponse is used when an ai node has no configured fallback.
const DefaultFallbackResponse = "Sorry, I can't answer that right now."

// Retriever assembles grounded context for ai nodes.
type Retriever interface {
	Retrieve(ctx context.Context, query string, scopes []rag.Scope) string
}

// handlerResult is what every node handler produces: outbound strings,
// variable updates, and (for condition nodes) the evaluated branch.
type handlerResult struct {
	responses []string
	vars      map[string]any
	branch    *bool
}

// handleInput seeds the variable store with the raw user input.
func handleInput(ec *ExecutionContext) handlerResult {
	return handlerResult{
		vars: map[string]any{VarLastInput: ec.UserInput},
	}
}

// handleMessage renders the node's template against the variable store and
// emits the one resulting string.
func handleMessage(node *Node, ec *ExecutionContext) handlerResult {
	return handlerResult{
		responses: []string{RenderTemplate(node.Data.Message, ec.Vars)},
	}
}

// handleCondition compares the named variable (the raw input when the
// variable is absent) against the configured literal, case-insensitively.
func handleCondition(node *Node, ec *ExecutionContext) handlerResult {
	value := strings.ToLower(node.Data.Value)

	varValue := ec.UserInput
	if v, ok := ec.Vars[node.Data.Variable]; ok {
		varValue = stringify(v)
	}
	varValue = strings.ToLower(varValue)

	var result bool
	switch node.Data.Condition {
	case "equals":
		result = varValue == value
	case "contains":
		result = strings.Contains(varValue, value)
	case "startsWith":
		result = strings.HasPrefix(varValue, value)
	case "endsWith":
		result = strings.HasSuffix(varValue, value)
	}

	return handlerResult{
		vars:   map[string]any{VarConditionResult: result},
		branch: &result,
	}
}

// handleAI retrieves scoped context, calls the completion provider, and
// emits the reply with token/cost accounting in the variables. Every
// retrieval or provider failure is masked by the node's fallback string so
// a broken ai node never stalls the conversation.
func handleAI(ctx context.Context, node *Node, ec *ExecutionContext, retriever Retriever, completer llm.Provider) handlerResult {
	fallback := node.Data.FallbackResponse
	if fallback == "" {
		fallback = DefaultFallbackResponse
	}

	// Total retrieval failure yields an empty context, not an error.
	retrieved := ""
	if retriever != nil {
		retrieved = retriever.Retrieve(ctx, ec.UserInput, ec.Scopes())
	}

	result, err := completer.Complete(ctx, llm.CompletionRequest{
		Model:             node.Data.Model,
		SystemPrompt:      node.Data.SystemPrompt,
		ExtraInstructions: node.Data.ExtraInstructions,
		Context:           retrieved,
		UserInput:         ec.UserInput,
	})
	if err != nil {
		logx.Warn().Err(err).
			Str("node_id", node.ID).
			Str("model", node.Data.Model).
			Msg("ai node falling back")
		return handlerResult{responses: []string{fallback}}
	}

	pricing := llm.ResolvePricing(node.Data.Model)
	inCost, outCost, totalCost := llm.ComputeCost(result.Usage, pricing)
	logx.Debug().
		Str("node_id", node.ID).
		Str("model", node.Data.Model).
		Int("input_tokens", result.Usage.InputTokens).
		Int("output_tokens", result.Usage.OutputTokens).
		Int("total_tokens", result.Usage.TotalTokens).
		Float64("input_cost_usd", inCost).
		Float64("output_cost_usd", outCost).
		Float64("total_cost_usd", totalCost).
		Msg("LLM usage")

	return handlerResult{
		responses: []string{result.Content},
		vars: map[string]any{
			VarAIResponse:   result.Content,
			VarModel:        node.Data.Model,
			VarInputTokens:  result.Usage.InputTokens,
			VarOutputTokens: result.Usage.OutputTokens,
			VarTotalTokens:  result.Usage.TotalTokens,
			VarCostUSD:      totalCost,
		},
	}
}

func stringify(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}
