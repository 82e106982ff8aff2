package translate

import (
	"context"
	"errors"
	"log"
	"time"
)

const defaultProviderTimeout = 15 * time.Second

// providerConfidence maps a provider to the confidence score its results
// carry. Scores decrease along the fallback order.
func providerConfidence(name string) float64 {
	switch name {
	case ProviderSkip:
		return 1.0
	case ProviderPrimary:
		return 0.9
	case ProviderSecondary:
		return 0.8
	default:
		return 0.1
	}
}

// Orchestrator walks an ordered provider chain until one succeeds. The
// chain is built at startup from the configured credentials; providers
// without credentials are simply absent from it. The terminal mock
// provider cannot fail, so Translate never returns an error for
// provider-level failures.
type Orchestrator struct {
	canonicalLang string
	providers     []Provider
	timeout       time.Duration
	logger        *log.Logger
}

func NewOrchestrator(canonicalLang string, providers []Provider, timeout time.Duration, logger *log.Logger) *Orchestrator {
	if timeout <= 0 {
		timeout = defaultProviderTimeout
	}
	return &Orchestrator{
		canonicalLang: canonicalLang,
		providers:     providers,
		timeout:       timeout,
		logger:        logger,
	}
}

// CanonicalLang returns the language summaries are generated in.
func (o *Orchestrator) CanonicalLang() string { return o.canonicalLang }

// Translate produces a translation of text into targetLang. sourceLang may
// be empty, meaning automatic detection. Errors are returned only for
// missing required arguments; provider failures degrade through the chain.
func (o *Orchestrator) Translate(ctx context.Context, text, targetLang, sourceLang string) (Result, error) {
	if text == "" {
		return Result{}, errors.New("translate: text is required")
	}
	if targetLang == "" {
		return Result{}, errors.New("translate: target language is required")
	}
	if sourceLang == "" {
		sourceLang = "auto"
	}

	// Text already in the canonical language needs no provider call.
	if targetLang == o.canonicalLang && looksCanonical(text) {
		return Result{
			Text:       text,
			SourceLang: sourceLang,
			TargetLang: targetLang,
			Confidence: providerConfidence(ProviderSkip),
			Provider:   ProviderSkip,
		}, nil
	}

	for _, p := range o.providers {
		translated, err := o.attempt(ctx, p, text, sourceLang, targetLang)
		if err != nil {
			o.logger.Printf("translate: provider %s failed for target %s: %v", p.Name(), targetLang, err)
			continue
		}
		return Result{
			Text:       translated,
			SourceLang: sourceLang,
			TargetLang: targetLang,
			Confidence: providerConfidence(p.Name()),
			Provider:   p.Name(),
		}, nil
	}

	// Unreachable when the chain is built with the mock terminal, but the
	// type still demands a value.
	mock, _ := NewMockProvider().Translate(ctx, text, sourceLang, targetLang)
	return Result{
		Text:       mock,
		SourceLang: sourceLang,
		TargetLang: targetLang,
		Confidence: providerConfidence(ProviderMock),
		Provider:   ProviderMock,
	}, nil
}

// attempt runs one provider under the configured timeout. A timeout, an
// error, or an empty result all count as failure.
func (o *Orchestrator) attempt(ctx context.Context, p Provider, text, sourceLang, targetLang string) (string, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	translated, err := p.Translate(attemptCtx, text, sourceLang, targetLang)
	if err != nil {
		return "", err
	}
	if translated == "" {
		return "", errors.New("empty translation")
	}
	return translated, nil
}

// looksCanonical reports whether text looks like it is already in the
// canonical language: ASCII letters, digits, whitespace and basic
// punctuation only. One CJK or Hangul rune is enough to disqualify.
func looksCanonical(text string) bool {
	for _, r := range text {
		if r > 127 {
			return false
		}
	}
	return true
}
