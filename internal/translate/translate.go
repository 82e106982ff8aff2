// Package translate produces translations through an ordered provider
// chain with deterministic fallback. The chain always ends in a stub
// provider that cannot fail, so Translate always yields a result.
package translate

import "context"

// Result is the outcome of a translation attempt. It is never persisted
// here; callers decide whether to cache it.
type Result struct {
	Text       string  `json:"translatedText"`
	SourceLang string  `json:"sourceLang"`
	TargetLang string  `json:"targetLang"`
	Confidence float64 `json:"confidence"` // 0-1
	Provider   string  `json:"provider"`   // skip, primary, secondary, mock
}

// Provider names as they appear in Result.Provider.
const (
	ProviderSkip      = "skip"
	ProviderPrimary   = "primary"
	ProviderSecondary = "secondary"
	ProviderMock      = "mock"
)

// Provider is a single translation strategy in the fallback chain.
type Provider interface {
	Name() string
	// Translate returns the translated text or an error. An error (or an
	// empty result, which the orchestrator treats the same) moves the
	// chain to the next provider.
	Translate(ctx context.Context, text, sourceLang, targetLang string) (string, error)
}
