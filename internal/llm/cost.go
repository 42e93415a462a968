package llm

// Pricing defines USD cost per 1M tokens for input/output.
type Pricing struct {
	InputPerM  float64
	OutputPerM float64
}

// defaultPricing provides hardcoded USD pricing per 1M tokens (text tokens).
var defaultPricing = map[string]Pricing{
	"gpt-4o":                {InputPerM: 5.00, OutputPerM: 5.00},
	"gpt-4o-mini":           {InputPerM: 0.15, OutputPerM: 0.15},
	"gpt-3.5-turbo":         {InputPerM: 1.50, OutputPerM: 2.00},
	"gemini-2.5-flash":      {InputPerM: 0.30, OutputPerM: 2.50},
	"gemini-2.5-flash-lite": {InputPerM: 0.10, OutputPerM: 0.40},
	"gemini-1.5-pro":        {InputPerM: 3.50, OutputPerM: 10.50},
	"gemini-1.5-flash":      {InputPerM: 0.075, OutputPerM: 0.30},
}

// ResolvePricing returns hardcoded pricing for a model.
func ResolvePricing(model string) Pricing {
	p, ok := defaultPricing[model]
	if !ok {
		// fallback to zero pricing for unknown models
		return Pricing{}
	}
	return p
}

// ComputeCost converts token usage to USD cost using per-1M Pricing.
func ComputeCost(usage TokenUsage, p Pricing) (inputCost, outputCost, total float64) {
	inputCost = p.InputPerM * float64(usage.InputTokens) / 1_000_000.0
	outputCost = p.OutputPerM * float64(usage.OutputTokens) / 1_000_000.0
	total = inputCost + outputCost
	return
}
