package flow

import "github.com/waflow/server/internal/rag"

// Reserved variable names written by node handlers.
const (
	VarLastInput       = "last_input"
	VarConditionResult = "condition_result"
	VarAIResponse      = "ai_response"
	VarModel           = "model"
	VarInputTokens     = "input_tokens"
	VarOutputTokens    = "output_tokens"
	VarTotalTokens     = "total_tokens"
	VarCostUSD         = "cost_usd"
)

// Variables is the key/value store accumulated during one run. Later writes
// overwrite earlier ones.
type Variables map[string]any

// Merge applies updates on top of the current values.
func (v Variables) Merge(updates map[string]any) {
	for k, val := range updates {
		v[k] = val
	}
}

// ExecutionContext is the per-run state owned by exactly one interpreter
// run. It is created from the triggering message and discarded at run end;
// nothing here is shared across concurrent runs.
type ExecutionContext struct {
	UserID   string
	BotID    string
	FlowID   string
	FileIDs  []string
	DocLinks []string

	UserInput string
	Vars      Variables
}

func NewExecutionContext(userID, botID, flowID string, fileIDs, docLinks []string, userInput string) *ExecutionContext {
	return &ExecutionContext{
		UserID:    userID,
		BotID:     botID,
		FlowID:    flowID,
		FileIDs:   fileIDs,
		DocLinks:  docLinks,
		UserInput: userInput,
		Vars:      Variables{},
	}
}

// Scopes expands the context's file ids and document links into one
// retrieval scope per source.
func (ec *ExecutionContext) Scopes() []rag.Scope {
	scopes := make([]rag.Scope, 0, len(ec.FileIDs)+len(ec.DocLinks))
	for _, fileID := range ec.FileIDs {
		scopes = append(scopes, rag.Scope{
			UserID: ec.UserID,
			BotID:  ec.BotID,
			FlowID: ec.FlowID,
			FileID: fileID,
		})
	}
	for _, link := range ec.DocLinks {
		scopes = append(scopes, rag.Scope{
			UserID: ec.UserID,
			BotID:  ec.BotID,
			FlowID: ec.FlowID,
			Link:   link,
		})
	}
	return scopes
}
