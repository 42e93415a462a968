package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestComputeCost(t *testing.T) {
	usage := TokenUsage{InputTokens: 1_000_000, OutputTokens: 500_000, TotalTokens: 1_500_000}
	in, out, total := ComputeCost(usage, Pricing{InputPerM: 0.15, OutputPerM: 0.60})

	assert.InDelta(t, 0.15, in, 1e-9)
	assert.InDelta(t, 0.30, out, 1e-9)
	assert.InDelta(t, 0.45, total, 1e-9)
}

func TestResolvePricingUnknownModelIsFree(t *testing.T) {
	p := ResolvePricing("some-future-model")
	assert.Zero(t, p.InputPerM)
	assert.Zero(t, p.OutputPerM)

	in, out, total := ComputeCost(TokenUsage{InputTokens: 1000, OutputTokens: 1000}, p)
	assert.Zero(t, in)
	assert.Zero(t, out)
	assert.Zero(t, total)
}

func TestBuildUserContent(t *testing.T) {
	got := BuildUserContent(CompletionRequest{
		ExtraInstructions: "Answer in Thai.",
		Context:           "Plan A costs $10.",
		UserInput:         "How much is plan A?",
	})
	assert.Equal(t, "Answer in Thai.\n\nContext:\nPlan A costs $10.\n\nUser Question: How much is plan A?\nAnswer:", got)

	got = BuildUserContent(CompletionRequest{Context: "", UserInput: "hi"})
	assert.Equal(t, "Context:\n\n\nUser Question: hi\nAnswer:", got)
}
