package flow

import "fmt"

// MalformedGraphError reports authored flow data that violates a structural
// invariant. It is fatal to the run and treated as a configuration error.
type MalformedGraphError struct {
	Reason string
}

func (e *MalformedGraphError) Error() string {
	return "malformed flow graph: " + e.Reason
}

// CycleDetectedError reports a run that did not reach a terminal node within
// the step bound. Flows are user-authored and may contain cycles.
type CycleDetectedError struct {
	Steps int
}

func (e *CycleDetectedError) Error() string {
	return fmt.Sprintf("flow did not terminate within %d steps", e.Steps)
}

// NodeExecutionError reports an unexpected handler fault. The node id is
// kept for diagnosis; the whole run fails.
type NodeExecutionError struct {
	NodeID string
	Cause  error
}

func (e *NodeExecutionError) Error() string {
	return fmt.Sprintf("node %s: %v", e.NodeID, e.Cause)
}

func (e *NodeExecutionError) Unwrap() error {
	return e.Cause
}
