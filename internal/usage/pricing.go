package usage

import (
	"math"
	"strings"
	"unicode/utf8"
)

// Pricing represents the per-model cost rates used for usage estimation.
type Pricing struct {
	Model                 string
	InputCostPer1MTokens  float64 // USD per 1M input tokens
	OutputCostPer1MTokens float64 // USD per 1M output tokens
}

// PricingTable contains Gemini pricing as of 2025. Unknown models fall back
// to Flash pricing.
var PricingTable = map[string]Pricing{
	"gemini-1.5-flash-latest": {
		Model:                 "gemini-1.5-flash-latest",
		InputCostPer1MTokens:  0.075,
		OutputCostPer1MTokens: 0.30,
	},
	"gemini-1.5-flash": {
		Model:                 "gemini-1.5-flash",
		InputCostPer1MTokens:  0.075,
		OutputCostPer1MTokens: 0.30,
	},
	"gemini-1.5-pro-latest": {
		Model:                 "gemini-1.5-pro-latest",
		InputCostPer1MTokens:  3.50,
		OutputCostPer1MTokens: 10.50,
	},
	"gemini-1.5-pro": {
		Model:                 "gemini-1.5-pro",
		InputCostPer1MTokens:  3.50,
		OutputCostPer1MTokens: 10.50,
	},
}

const defaultPricingModel = "gemini-1.5-flash-latest"

// EstimateCost converts token counts into an estimated USD cost for the
// given model.
func EstimateCost(model string, promptTokens, outputTokens int) float64 {
	pricing, ok := PricingTable[model]
	if !ok {
		pricing = PricingTable[defaultPricingModel]
	}
	inputCost := float64(promptTokens) * pricing.InputCostPer1MTokens / 1_000_000
	outputCost := float64(outputTokens) * pricing.OutputCostPer1MTokens / 1_000_000
	return inputCost + outputCost
}

// EstimateTokenCount provides a rough token count for text, used when the
// provider returns no usage metadata. Approximation: 1 token ≈ 3.5
// characters of English text, with a little buffer for special tokens.
func EstimateTokenCount(text string) int {
	text = strings.TrimSpace(text)
	text = strings.ReplaceAll(text, "\n", " ")
	charCount := utf8.RuneCountInString(text)
	return int(math.Ceil(float64(charCount) / 3.5))
}
