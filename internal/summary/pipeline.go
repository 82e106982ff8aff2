// Package summary generates per-session summaries and fans them out into
// cached per-language translations.
package summary

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/jackc/pgx/v5"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/lukasbauer/lector/internal/costs"
	"github.com/lukasbauer/lector/internal/eventlog"
	"github.com/lukasbauer/lector/internal/llm"
	"github.com/lukasbauer/lector/internal/store"
	"github.com/lukasbauer/lector/internal/translate"
)

var (
	// ErrNoTranscript means the session has no finalized segments to
	// summarize.
	ErrNoTranscript = errors.New("summary: session has no transcript")

	// ErrNoSummary means no summary has been generated for the session yet.
	ErrNoSummary = errors.New("summary: no summary generated yet")

	// ErrGeneration wraps a failure of the generation provider. There is no
	// fallback generation provider, so this surfaces to the caller.
	ErrGeneration = errors.New("summary: generation failed")
)

// maxTranscriptChars bounds the transcript sent to the generation
// provider. Longer transcripts are truncated with an ellipsis marker.
const maxTranscriptChars = 8000

// Store is the persistence surface the pipeline needs. Implemented by
// store.Store.
type Store interface {
	GetSession(ctx context.Context, id string) (*store.Session, error)
	ListFinalSegments(ctx context.Context, sessionID string) ([]store.Segment, error)
	UpdateSessionSummary(ctx context.Context, id, summary string) error
	UpsertSummaryCache(ctx context.Context, sessionID, lang, text string) error
	GetSummaryCache(ctx context.Context, sessionID, lang string) (string, error)
}

// Translator is the translation surface. Implemented by
// translate.Orchestrator.
type Translator interface {
	Translate(ctx context.Context, text, targetLang, sourceLang string) (translate.Result, error)
}

// Config holds the language settings for the pipeline.
type Config struct {
	CanonicalLang string   // language summaries are generated in
	TargetLangs   []string // languages the summary is translated into
}

// Pipeline owns summary generation for sessions. A singleflight group
// keyed by session ID guarantees at most one in-flight generation per
// session; concurrent requests share the in-flight result.
type Pipeline struct {
	store      Store
	generator  llm.Client
	translator Translator
	events     *eventlog.Logger
	logger     *log.Logger
	cfg        Config

	flight singleflight.Group
}

func NewPipeline(s Store, generator llm.Client, translator Translator, events *eventlog.Logger, logger *log.Logger, cfg Config) *Pipeline {
	if cfg.CanonicalLang == "" {
		cfg.CanonicalLang = "en"
	}
	return &Pipeline{
		store:      s,
		generator:  generator,
		translator: translator,
		events:     events,
		logger:     logger,
		cfg:        cfg,
	}
}

// GenerateResult is the outcome of a Generate call.
type GenerateResult struct {
	Summary         string `json:"summary"`
	Category        string `json:"category"`
	TranscriptCount int    `json:"transcriptCount"`
	FromCache       bool   `json:"fromCache"`
}

// RetrievedSummary is the outcome of a GetSummary call.
type RetrievedSummary struct {
	Summary   string `json:"summary"`
	Category  string `json:"category"`
	Title     string `json:"title"`
	Lang      string `json:"lang"`
	FromCache bool   `json:"fromCache"`
}

// Generate produces the canonical summary for a session and caches its
// translations. Without force, an existing summary is returned as-is.
func (p *Pipeline) Generate(ctx context.Context, sessionID string, force bool) (GenerateResult, error) {
	// The run is shared by every concurrent caller for the session, so it
	// must not die with whichever request happened to start it.
	genCtx := context.WithoutCancel(ctx)
	v, err, _ := p.flight.Do(sessionID, func() (any, error) {
		return p.generate(genCtx, sessionID, force)
	})
	if err != nil {
		return GenerateResult{}, err
	}
	return v.(GenerateResult), nil
}

func (p *Pipeline) generate(ctx context.Context, sessionID string, force bool) (GenerateResult, error) {
	sess, err := p.store.GetSession(ctx, sessionID)
	if err != nil {
		return GenerateResult{}, fmt.Errorf("load session %s: %w", sessionID, err)
	}

	category := NormalizeCategory(sess.Category)

	if !force && sess.Summary != nil && *sess.Summary != "" {
		return GenerateResult{
			Summary:   *sess.Summary,
			Category:  category,
			FromCache: true,
		}, nil
	}

	segments, err := p.store.ListFinalSegments(ctx, sessionID)
	if err != nil {
		return GenerateResult{}, fmt.Errorf("load segments for %s: %w", sessionID, err)
	}
	if len(segments) == 0 {
		return GenerateResult{}, ErrNoTranscript
	}

	transcript := joinSegments(segments)
	transcript = truncate(transcript, maxTranscriptChars)

	p.events.LogAsync(sessionID, eventlog.EventSummaryStarted, map[string]any{
		"category": category,
		"force":    force,
		"segments": len(segments),
	})

	prompt := buildPrompt(category, transcript)
	summaryText, err := p.generator.Generate(ctx, prompt, llm.GenerateParams{
		Temperature: 0.3,
		MaxTokens:   500,
	})
	if err != nil {
		p.events.LogAsync(sessionID, eventlog.EventSummaryFailed, map[string]any{
			"error": err.Error(),
		})
		return GenerateResult{}, fmt.Errorf("%w: %v", ErrGeneration, err)
	}

	if err := p.store.UpdateSessionSummary(ctx, sessionID, summaryText); err != nil {
		return GenerateResult{}, fmt.Errorf("persist summary for %s: %w", sessionID, err)
	}

	cached := p.fanOut(ctx, sessionID, summaryText)

	usage := costs.CalculateSummaryCosts(costs.SummaryMetrics{
		LLMInputTokens:        costs.EstimateTokens(prompt),
		LLMOutputTokens:       costs.EstimateTokens(summaryText),
		TranslationCharacters: len(summaryText) * cached,
	})
	p.events.LogAsync(sessionID, eventlog.EventSummaryCompleted, map[string]any{
		"transcript_count": len(segments),
		"languages_cached": cached,
		"cost_cents":       usage.TotalCostCents,
	})

	return GenerateResult{
		Summary:         summaryText,
		Category:        category,
		TranscriptCount: len(segments),
		FromCache:       false,
	}, nil
}

// fanOut translates the canonical summary into every configured target
// language and upserts each success into the cache. Per-language failures
// are logged and skipped; they never fail the parent generation. Returns
// the number of languages cached.
func (p *Pipeline) fanOut(ctx context.Context, sessionID, summaryText string) int {
	results := make([]bool, len(p.cfg.TargetLangs))

	var g errgroup.Group
	for i, lang := range p.cfg.TargetLangs {
		if lang == p.cfg.CanonicalLang {
			continue
		}
		g.Go(func() error {
			result, err := p.translator.Translate(ctx, summaryText, lang, p.cfg.CanonicalLang)
			if err != nil {
				p.logger.Printf("summary: translate %s for session %s failed: %v", lang, sessionID, err)
				return nil
			}
			if result.Provider == translate.ProviderMock {
				p.events.LogAsync(sessionID, eventlog.EventTranslationFallback, map[string]any{
					"lang":     lang,
					"provider": result.Provider,
				})
			}
			if err := p.store.UpsertSummaryCache(ctx, sessionID, lang, result.Text); err != nil {
				p.logger.Printf("summary: cache %s for session %s failed: %v", lang, sessionID, err)
				return nil
			}
			results[i] = true
			return nil
		})
	}
	_ = g.Wait()

	cached := 0
	for _, ok := range results {
		if ok {
			cached++
		}
	}
	return cached
}

// GetSummary returns the session summary in the requested language,
// falling back to the canonical language on a cache miss.
func (p *Pipeline) GetSummary(ctx context.Context, sessionID, lang string) (RetrievedSummary, error) {
	sess, err := p.store.GetSession(ctx, sessionID)
	if err != nil {
		return RetrievedSummary{}, fmt.Errorf("load session %s: %w", sessionID, err)
	}
	if sess.Summary == nil || *sess.Summary == "" {
		return RetrievedSummary{}, ErrNoSummary
	}

	out := RetrievedSummary{
		Summary:  *sess.Summary,
		Category: NormalizeCategory(sess.Category),
		Title:    sess.Title,
		Lang:     p.cfg.CanonicalLang,
	}

	if lang == "" || lang == p.cfg.CanonicalLang {
		return out, nil
	}

	text, err := p.store.GetSummaryCache(ctx, sessionID, lang)
	if err != nil {
		if !errors.Is(err, pgx.ErrNoRows) {
			p.logger.Printf("summary: cache read %s/%s failed: %v", sessionID, lang, err)
		}
		// Cache miss: serve the canonical summary.
		return out, nil
	}

	out.Summary = text
	out.Lang = lang
	out.FromCache = true
	return out, nil
}

func joinSegments(segments []store.Segment) string {
	parts := make([]string, 0, len(segments))
	for _, seg := range segments {
		parts = append(parts, seg.Text)
	}
	return strings.Join(parts, " ")
}

// truncate shortens text to at most max runes, appending an ellipsis when
// anything was cut.
func truncate(text string, max int) string {
	runes := []rune(text)
	if len(runes) <= max {
		return text
	}
	return string(runes[:max]) + "…"
}
