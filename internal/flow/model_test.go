package flow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseGraph(t *testing.T) {
	raw := []byte(`{
		"nodes": [
			{"id": "start", "type": "inputNode"},
			{"id": "greet", "type": "messageNode", "data": {"message": "Hello!"}},
			{"id": "done", "type": "endNode"}
		],
		"edges": [
			{"source": "start", "target": "greet"},
			{"source": "greet", "target": "done"}
		]
	}`)

	g, err := ParseGraph(raw)
	require.NoError(t, err)

	entry, err := g.EntryNode()
	require.NoError(t, err)
	assert.Equal(t, "start", entry.ID)
	assert.Equal(t, NodeInput, entry.Type)

	greet, ok := g.Node("greet")
	require.True(t, ok)
	assert.Equal(t, "Hello!", greet.Data.Message)
}

func TestParseGraphRejectsMalformed(t *testing.T) {
	cases := []struct {
		name string
		raw  string
	}{
		{"invalid json", `{`},
		{"node without id", `{"nodes": [{"type": "inputNode"}]}`},
		{"duplicate node id", `{"nodes": [
			{"id": "a", "type": "inputNode"},
			{"id": "a", "type": "endNode"}
		]}`},
		{"unknown node type", `{"nodes": [{"id": "a", "type": "webhookNode"}]}`},
		{"dangling edge source", `{
			"nodes": [{"id": "a", "type": "inputNode"}],
			"edges": [{"source": "ghost", "target": "a"}]
		}`},
		{"dangling edge target", `{
			"nodes": [{"id": "a", "type": "inputNode"}],
			"edges": [{"source": "a", "target": "ghost"}]
		}`},
		{"duplicate condition branch", `{
			"nodes": [
				{"id": "a", "type": "inputNode"},
				{"id": "c", "type": "conditionNode"},
				{"id": "x", "type": "endNode"},
				{"id": "y", "type": "endNode"}
			],
			"edges": [
				{"source": "a", "target": "c"},
				{"source": "c", "target": "x", "sourceHandle": "true"},
				{"source": "c", "target": "y", "sourceHandle": "true"}
			]
		}`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseGraph([]byte(tc.raw))
			var malformed *MalformedGraphError
			require.ErrorAs(t, err, &malformed)
		})
	}
}

func TestEntryNodeRequiresExactlyOneInput(t *testing.T) {
	noInput, err := ParseGraph([]byte(`{"nodes": [{"id": "a", "type": "endNode"}]}`))
	require.NoError(t, err)
	_, err = noInput.EntryNode()
	var malformed *MalformedGraphError
	require.ErrorAs(t, err, &malformed)

	twoInputs, err := ParseGraph([]byte(`{"nodes": [
		{"id": "a", "type": "inputNode"},
		{"id": "b", "type": "inputNode"}
	]}`))
	require.NoError(t, err)
	_, err = twoInputs.EntryNode()
	require.ErrorAs(t, err, &malformed)
}

func TestNextNodeID(t *testing.T) {
	g, err := ParseGraph([]byte(`{
		"nodes": [
			{"id": "start", "type": "inputNode"},
			{"id": "c", "type": "conditionNode"},
			{"id": "yes", "type": "messageNode"},
			{"id": "no", "type": "messageNode"},
			{"id": "done", "type": "endNode"}
		],
		"edges": [
			{"source": "start", "target": "c"},
			{"source": "c", "target": "yes", "sourceHandle": "true"},
			{"source": "c", "target": "no", "sourceHandle": "false"},
			{"source": "yes", "target": "done"}
		]
	}`))
	require.NoError(t, err)

	assert.Equal(t, "c", g.NextNodeID("start", nil))

	truthy, falsy := true, false
	assert.Equal(t, "yes", g.NextNodeID("c", &truthy))
	assert.Equal(t, "no", g.NextNodeID("c", &falsy))

	// A node with no outgoing edges ends the run.
	assert.Equal(t, "", g.NextNodeID("no", nil))
}

func TestNextNodeIDMissingBranchEndsRun(t *testing.T) {
	g, err := ParseGraph([]byte(`{
		"nodes": [
			{"id": "start", "type": "inputNode"},
			{"id": "c", "type": "conditionNode"},
			{"id": "yes", "type": "messageNode"}
		],
		"edges": [
			{"source": "start", "target": "c"},
			{"source": "c", "target": "yes", "sourceHandle": "true"}
		]
	}`))
	require.NoError(t, err)

	falsy := false
	assert.Equal(t, "", g.NextNodeID("c", &falsy))
}
