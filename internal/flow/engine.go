package flow

import (
	"context"
	"fmt"
	"time"

	"github.com/waflow/server/internal/llm"
	logx "github.com/waflow/server/pkg/logger"
)

const (
	// DefaultMaxSteps bounds a run; user-authored graphs may contain cycles.
	DefaultMaxSteps = 1000
	// DefaultCompletionTimeout bounds each ai node's provider call.
	DefaultCompletionTimeout = 30 * time.Second
)

// Engine walks one flow graph for one inbound message. It owns the
// execution context for the duration of the run and is not reused.
type Engine struct {
	graph             *Graph
	exec              *ExecutionContext
	retriever         Retriever
	completer         llm.Provider
	maxSteps          int
	completionTimeout time.Duration
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithMaxSteps overrides the run step bound.
func WithMaxSteps(n int) EngineOption {
	return func(e *Engine) {
		if n > 0 {
			e.maxSteps = n
		}
	}
}

// WithCompletionTimeout overrides the per-call provider timeout.
func WithCompletionTimeout(d time.Duration) EngineOption {
	return func(e *Engine) {
		if d > 0 {
			e.completionTimeout = d
		}
	}
}

func NewEngine(graph *Graph, exec *ExecutionContext, retriever Retriever, completer llm.Provider, opts ...EngineOption) *Engine {
	e := &Engine{
		graph:             graph,
		exec:              exec,
		retriever:         retriever,
		completer:         completer,
		maxSteps:          DefaultMaxSteps,
		completionTimeout: DefaultCompletionTimeout,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Run executes the flow from its entry node and returns the outbound
// strings in emission order. Structural problems and handler faults fail
// the whole run; the caller owns the user-visible fallback.
func (e *Engine) Run(ctx context.Context) ([]string, error) {
	current, err := e.graph.EntryNode()
	if err != nil {
		return nil, err
	}

	var out []string
	for steps := 0; ; steps++ {
		if steps >= e.maxSteps {
			return nil, &CycleDetectedError{Steps: e.maxSteps}
		}
		if current.Type == NodeEnd {
			break
		}

		logx.Debug().
			Str("node_id", current.ID).
			Str("node_type", current.Type.String()).
			Msg("executing node")

		result, err := e.dispatch(ctx, current)
		if err != nil {
			return nil, &NodeExecutionError{NodeID: current.ID, Cause: err}
		}

		e.exec.Vars.Merge(result.vars)
		out = append(out, result.responses...)

		nextID := e.graph.NextNodeID(current.ID, result.branch)
		if nextID == "" {
			break
		}
		next, ok := e.graph.Node(nextID)
		if !ok {
			// Edges are validated at parse time; a miss here means the
			// graph was constructed outside ParseGraph.
			return nil, &NodeExecutionError{
				NodeID: current.ID,
				Cause:  fmt.Errorf("next node %q not found", nextID),
			}
		}
		current = next
	}

	return out, nil
}

// dispatch routes the node to its typed handler. The switch is exhaustive
// over NodeType; NodeEnd never reaches here.
func (e *Engine) dispatch(ctx context.Context, node *Node) (handlerResult, error) {
	switch node.Type {
	case NodeInput:
		return handleInput(e.exec), nil
	case NodeMessage:
		return handleMessage(node, e.exec), nil
	case NodeCondition:
		return handleCondition(node, e.exec), nil
	case NodeAI:
		callCtx, cancel := context.WithTimeout(ctx, e.completionTimeout)
		defer cancel()
		return handleAI(callCtx, node, e.exec, e.retriever, e.completer), nil
	case NodeEnd:
		return handlerResult{}, nil
	}
	return handlerResult{}, fmt.Errorf("no handler for node type %s", node.Type)
}
