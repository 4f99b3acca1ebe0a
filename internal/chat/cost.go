package chat

import "fmt"

// Price holds per-token prices for a single model deployment.
type Price struct {
	Input  float64
	Output float64
}

// PriceTable maps an exact model name to its per-token prices. The table is
// built once from configuration and validated at startup; lookups during a
// run must therefore only fail if the invoker reports a model the table has
// never seen, which is a configuration fault.
type PriceTable map[string]Price

// Compute derives the cost record for one invocation. Pure and
// deterministic: TotalCost is exactly in*Input + out*Output with no
// rounding beyond float64 arithmetic.
func (t PriceTable) Compute(model string, inputTokens, outputTokens int64) (CostRecord, error) {
	price, ok := t[model]
	if !ok {
		return CostRecord{}, fmt.Errorf("%w: no price tier for model %q", ErrConfiguration, model)
	}

	return CostRecord{
		Model:        model,
		InputTokens:  inputTokens,
		OutputTokens: outputTokens,
		InputPrice:   price.Input,
		OutputPrice:  price.Output,
		TotalCost:    float64(inputTokens)*price.Input + float64(outputTokens)*price.Output,
	}, nil
}
