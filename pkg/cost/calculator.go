package cost

import (
	"fmt"
	"math"

	"github.com/snow-ghost/fusion/core"
	"github.com/snow-ghost/fusion/pkg/catalog"
)

// Result is the cost breakdown for one call.
type Result struct {
	InputCost    float64 `json:"input_cost"`
	OutputCost   float64 `json:"output_cost"`
	TotalCost    float64 `json:"total_cost"`
	Currency     string  `json:"currency"`
	InputTokens  int     `json:"input_tokens"`
	OutputTokens int     `json:"output_tokens"`
}

// Calculator prices token usage against catalog pricing.
type Calculator struct {
	catalog *catalog.Catalog
}

// NewCalculator creates a calculator over the given catalog.
func NewCalculator(c *catalog.Catalog) *Calculator {
	return &Calculator{catalog: c}
}

// Calc computes input, output and total cost for usage and pricing.
// Costs are rounded to 6 decimal places.
func Calc(u core.Usage, p catalog.Pricing) (inputCost, outputCost, total float64) {
	inputCost = round6(float64(u.PromptTokens) * p.InputPer1K / 1000.0)
	outputCost = round6(float64(u.CompletionTokens) * p.OutputPer1K / 1000.0)
	total = round6(inputCost + outputCost)
	return inputCost, outputCost, total
}

// ForWorker computes the cost of usage against a worker's pricing.
func (c *Calculator) ForWorker(workerID string, usage core.Usage) (*Result, error) {
	profile, ok := c.catalog.Get(workerID)
	if !ok {
		return nil, fmt.Errorf("worker %s not found in catalog", workerID)
	}

	inputCost, outputCost, total := Calc(usage, profile.Pricing)
	return &Result{
		InputCost:    inputCost,
		OutputCost:   outputCost,
		TotalCost:    total,
		Currency:     profile.Pricing.Currency,
		InputTokens:  usage.PromptTokens,
		OutputTokens: usage.CompletionTokens,
	}, nil
}

func round6(v float64) float64 {
	return math.Round(v*1000000) / 1000000
}
