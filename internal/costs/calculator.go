// Package costs provides cost calculation for API usage.
package costs

import (
	"os"
	"strconv"
)

// Pricing constants (in cents per unit for precision).
// These are based on 2026 market rates and can be overridden via environment variables.
var (
	// OpenAICentsPerThousandInputTokens is the cost per 1K input tokens for GPT-4o-mini.
	// Default: $0.15/1M = $0.00015/1K = 0.015 cents/1K tokens
	OpenAICentsPerThousandInputTokens = getEnvFloat("COST_OPENAI_INPUT_CENTS_PER_1K", 0.015)

	// OpenAICentsPerThousandOutputTokens is the cost per 1K output tokens for GPT-4o-mini.
	// Default: $0.60/1M = $0.0006/1K = 0.06 cents/1K tokens
	OpenAICentsPerThousandOutputTokens = getEnvFloat("COST_OPENAI_OUTPUT_CENTS_PER_1K", 0.06)

	// DeepLCentsPerThousandChars is the cost per 1K characters on the DeepL API plan.
	// Default: $25/1M chars = 2.5 cents/1K chars
	DeepLCentsPerThousandChars = getEnvFloat("COST_DEEPL_CENTS_PER_1K_CHARS", 2.5)
)

// SummaryMetrics contains the raw usage from one summary generation run,
// including the per-language translation fan-out.
type SummaryMetrics struct {
	LLMInputTokens        int // Tokens sent to the generation provider
	LLMOutputTokens       int // Tokens received from the generation provider
	TranslationCharacters int // Characters sent to the translation provider
}

// SummaryCosts contains the calculated costs for a summary run in cents.
type SummaryCosts struct {
	LLMCostCents         float64
	TranslationCostCents float64
	TotalCostCents       float64
}

// CalculateSummaryCosts computes the costs for a summary run based on usage metrics.
func CalculateSummaryCosts(m SummaryMetrics) SummaryCosts {
	llmInputCents := (float64(m.LLMInputTokens) / 1000.0) * OpenAICentsPerThousandInputTokens
	llmOutputCents := (float64(m.LLMOutputTokens) / 1000.0) * OpenAICentsPerThousandOutputTokens
	llmCents := llmInputCents + llmOutputCents

	translationCents := (float64(m.TranslationCharacters) / 1000.0) * DeepLCentsPerThousandChars

	return SummaryCosts{
		LLMCostCents:         llmCents,
		TranslationCostCents: translationCents,
		TotalCostCents:       llmCents + translationCents,
	}
}

// EstimateTokens approximates the token count of a text. Four characters
// per token is close enough for cost accounting.
func EstimateTokens(text string) int {
	if text == "" {
		return 0
	}
	return (len(text) + 3) / 4
}

func getEnvFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}
