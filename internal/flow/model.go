package flow

import (
	"encoding/json"
	"fmt"
)

// NodeType is the closed set of node kinds a flow can contain. Parsing the
// authored wire names into an enum keeps handler dispatch an exhaustive
// switch instead of a runtime lookup.
type NodeType int

const (
	NodeInput NodeType = iota
	NodeMessage
	NodeCondition
	NodeAI
	NodeEnd
)

// Wire names used by the flow authoring tool.
const (
	wireInput     = "inputNode"
	wireMessage   = "messageNode"
	wireCondition = "conditionNode"
	wireAI        = "aiNode"
	wireEnd       = "endNode"
)

func (t NodeType) String() string {
	switch t {
	case NodeInput:
		return wireInput
	case NodeMessage:
		return wireMessage
	case NodeCondition:
		return wireCondition
	case NodeAI:
		return wireAI
	case NodeEnd:
		return wireEnd
	}
	return fmt.Sprintf("NodeType(%d)", int(t))
}

// ParseNodeType maps an authored type name to its NodeType.
func ParseNodeType(s string) (NodeType, error) {
	switch s {
	case wireInput:
		return NodeInput, nil
	case wireMessage:
		return NodeMessage, nil
	case wireCondition:
		return NodeCondition, nil
	case wireAI:
		return NodeAI, nil
	case wireEnd:
		return NodeEnd, nil
	}
	return 0, fmt.Errorf("unknown node type %q", s)
}

// NodeData carries the per-type configuration authored on a node. Fields not
// relevant to a node's type are simply left zero by the authoring tool.
type NodeData struct {
	// messageNode
	Message string `json:"message,omitempty"`

	// conditionNode
	Variable  string `json:"variable,omitempty"`
	Condition string `json:"condition,omitempty"`
	Value     string `json:"value,omitempty"`

	// aiNode
	Model             string `json:"model,omitempty"`
	SystemPrompt      string `json:"systemPrompt,omitempty"`
	ExtraInstructions string `json:"extraInstructions,omitempty"`
	FallbackResponse  string `json:"fallbackResponse,omitempty"`
}

// Node is one typed step in a flow.
type Node struct {
	ID   string
	Type NodeType
	Data NodeData
}

// Edge is a directed link between two nodes. SourceHandle carries the
// condition branch label ("true"/"false") on edges leaving condition nodes.
type Edge struct {
	Source       string `json:"source"`
	Target       string `json:"target"`
	SourceHandle string `json:"sourceHandle,omitempty"`
}

// Graph is an immutable flow definition. Outgoing edges are indexed per
// source node once at construction so the interpreter never rescans the
// full edge list per step; declaration order within a source is preserved.
type Graph struct {
	nodes    map[string]*Node
	outgoing map[string][]Edge
}

type wireNode struct {
	ID   string   `json:"id"`
	Type string   `json:"type"`
	Data NodeData `json:"data"`
}

type wireGraph struct {
	Nodes []wireNode `json:"nodes"`
	Edges []Edge     `json:"edges"`
}

// ParseGraph decodes an authored flow definition and validates its
// structural invariants. Authoring mistakes surface as MalformedGraphError.
func ParseGraph(raw []byte) (*Graph, error) {
	var wire wireGraph
	if err := json.Unmarshal(raw, &wire); err != nil {
		return nil, &MalformedGraphError{Reason: fmt.Sprintf("invalid flow definition: %v", err)}
	}
	return newGraph(wire.Nodes, wire.Edges)
}

func newGraph(wireNodes []wireNode, edges []Edge) (*Graph, error) {
	nodes := make(map[string]*Node, len(wireNodes))
	for _, wn := range wireNodes {
		if wn.ID == "" {
			return nil, &MalformedGraphError{Reason: "node without id"}
		}
		if _, exists := nodes[wn.ID]; exists {
			return nil, &MalformedGraphError{Reason: fmt.Sprintf("duplicate node id %q", wn.ID)}
		}
		t, err := ParseNodeType(wn.Type)
		if err != nil {
			return nil, &MalformedGraphError{Reason: err.Error()}
		}
		nodes[wn.ID] = &Node{ID: wn.ID, Type: t, Data: wn.Data}
	}

	outgoing := make(map[string][]Edge)
	branchSeen := make(map[string]bool)
	for _, e := range edges {
		src, ok := nodes[e.Source]
		if !ok {
			return nil, &MalformedGraphError{Reason: fmt.Sprintf("edge source %q does not exist", e.Source)}
		}
		if _, ok := nodes[e.Target]; !ok {
			return nil, &MalformedGraphError{Reason: fmt.Sprintf("edge target %q does not exist", e.Target)}
		}
		if src.Type == NodeCondition && e.SourceHandle != "" {
			key := e.Source + "/" + e.SourceHandle
			if branchSeen[key] {
				return nil, &MalformedGraphError{
					Reason: fmt.Sprintf("condition node %q has multiple %q edges", e.Source, e.SourceHandle),
				}
			}
			branchSeen[key] = true
		}
		outgoing[e.Source] = append(outgoing[e.Source], e)
	}

	return &Graph{nodes: nodes, outgoing: outgoing}, nil
}

// Node returns the node with the given id.
func (g *Graph) Node(id string) (*Node, bool) {
	n, ok := g.nodes[id]
	return n, ok
}

// EntryNode locates the unique input node. Zero or more than one is an
// authoring error, not something worth guessing around.
func (g *Graph) EntryNode() (*Node, error) {
	var entry *Node
	for _, n := range g.nodes {
		if n.Type != NodeInput {
			continue
		}
		if entry != nil {
			return nil, &MalformedGraphError{Reason: "multiple input nodes in flow"}
		}
		entry = n
	}
	if entry == nil {
		return nil, &MalformedGraphError{Reason: "no input node in flow"}
	}
	return entry, nil
}

// NextNodeID selects the next node after the given one. For condition nodes
// the caller supplies the evaluated branch and the edge with the matching
// label wins; no match ends the run. For every other node the first outgoing
// edge in declaration order is taken.
func (g *Graph) NextNodeID(currentID string, branch *bool) string {
	edges := g.outgoing[currentID]
	if len(edges) == 0 {
		return ""
	}

	if branch != nil {
		want := "false"
		if *branch {
			want = "true"
		}
		for _, e := range edges {
			if e.SourceHandle == want {
				return e.Target
			}
		}
		return ""
	}

	return edges[0].Target
}
