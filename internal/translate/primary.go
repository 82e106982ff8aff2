package translate

import (
	"context"
	"fmt"

	"github.com/lukasbauer/lector/internal/llm"
)

// translationPrompt instructs the generative model to return only the
// translated text, with no commentary or quoting.
const translationPrompt = `Translate the following text to %s. Reply with ONLY the translation, no explanations, no quotes.

%s`

// LLMProvider translates through a generative-text model. It is the
// primary (highest quality) provider in the chain.
type LLMProvider struct {
	client llm.Client
}

func NewLLMProvider(client llm.Client) *LLMProvider {
	return &LLMProvider{client: client}
}

func (p *LLMProvider) Name() string { return ProviderPrimary }

func (p *LLMProvider) Translate(ctx context.Context, text, _, targetLang string) (string, error) {
	prompt := fmt.Sprintf(translationPrompt, languageName(targetLang), text)
	return p.client.Generate(ctx, prompt, llm.GenerateParams{
		Temperature: 0.3,
		MaxTokens:   1000,
	})
}

// languageName maps common ISO 639-1 codes to English names so the model
// prompt reads naturally. Unknown codes are passed through unchanged.
func languageName(code string) string {
	switch code {
	case "en":
		return "English"
	case "ko":
		return "Korean"
	case "ja":
		return "Japanese"
	case "zh":
		return "Chinese"
	case "es":
		return "Spanish"
	case "fr":
		return "French"
	case "de":
		return "German"
	case "cs":
		return "Czech"
	case "vi":
		return "Vietnamese"
	default:
		return code
	}
}
