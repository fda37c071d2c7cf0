package domain

const tokensPerK = 1000.0

// StandardCostCalculator prices requests from the model's per-1K rates.
type StandardCostCalculator struct{}

// NewStandardCostCalculator creates a new cost calculator.
func NewStandardCostCalculator() *StandardCostCalculator {
	return &StandardCostCalculator{}
}

// Cost computes the total USD cost for the given pricing and usage.
// Cache reads and writes are priced separately when the model defines
// rates for them; input tokens already exclude cached tokens in the
// normalized usage, so no double counting happens here.
func (c *StandardCostCalculator) Cost(info ModelInfo, usage Usage) float64 {
	inputCost := float64(usage.InputTokens) / tokensPerK * info.InputPrice
	outputCost := float64(usage.OutputTokens) / tokensPerK * info.OutputPrice
	cacheWriteCost := float64(usage.CacheWriteTokens) / tokensPerK * info.CacheWritesPrice
	cacheReadCost := float64(usage.CacheReadTokens) / tokensPerK * info.CacheReadsPrice

	return inputCost + outputCost + cacheWriteCost + cacheReadCost
}
