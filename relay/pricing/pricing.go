package pricing

import (
	relaymodel "github.com/llmgateway/llmgateway/relay/model"
	"github.com/llmgateway/llmgateway/relay/provider"
)

// Breakdown is the USD cost of one request, split by component. Estimated is
// true when any token count came from the local tokenizer rather than the
// upstream usage block.
type Breakdown struct {
	Input       float64
	Output      float64
	CachedInput float64
	Request     float64
	Total       float64
	Estimated   bool
}

// Calculate prices a usage block against a provider mapping. Cached prompt
// tokens are billed at the cached rate and excluded from the input rate;
// reasoning tokens are billed as output.
func Calculate(mapping *provider.Mapping, usage *relaymodel.Usage, estimated bool) Breakdown {
	b := Breakdown{Estimated: estimated}
	if mapping == nil || usage == nil {
		return b
	}

	cached := usage.CachedTokens()
	billableInput := usage.PromptTokens - cached
	if billableInput < 0 {
		billableInput = 0
	}

	b.Input = float64(billableInput) * mapping.InputPrice
	b.CachedInput = float64(cached) * mapping.CachedInputPrice
	b.Output = float64(usage.CompletionTokens+usage.ReasoningTokens) * mapping.OutputPrice
	b.Request = mapping.RequestPrice

	discount := mapping.EffectiveDiscount()
	b.Input *= discount
	b.CachedInput *= discount
	b.Output *= discount
	b.Total = b.Input + b.CachedInput + b.Output + b.Request
	return b
}
