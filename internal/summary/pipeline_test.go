package summary

import (
	"context"
	"errors"
	"io"
	"log"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/lukasbauer/lector/internal/llm"
	"github.com/lukasbauer/lector/internal/store"
	"github.com/lukasbauer/lector/internal/translate"
)

type fakeStore struct {
	mu            sync.Mutex
	session       *store.Session
	segments      []store.Segment
	cache         map[string]string
	upsertErr     map[string]error
	summaryWrites []string
}

func (f *fakeStore) GetSession(_ context.Context, id string) (*store.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.session == nil || f.session.ID != id {
		return nil, pgx.ErrNoRows
	}
	sess := *f.session
	return &sess, nil
}

func (f *fakeStore) ListFinalSegments(_ context.Context, _ string) ([]store.Segment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.segments, nil
}

func (f *fakeStore) UpdateSessionSummary(_ context.Context, _, summary string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.summaryWrites = append(f.summaryWrites, summary)
	f.session.Summary = &summary
	return nil
}

func (f *fakeStore) UpsertSummaryCache(_ context.Context, _, lang, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.upsertErr[lang]; err != nil {
		return err
	}
	if f.cache == nil {
		f.cache = make(map[string]string)
	}
	f.cache[lang] = text
	return nil
}

func (f *fakeStore) GetSummaryCache(_ context.Context, _, lang string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	text, ok := f.cache[lang]
	if !ok {
		return "", pgx.ErrNoRows
	}
	return text, nil
}

type fakeGenerator struct {
	mu      sync.Mutex
	text    string
	err     error
	delay   time.Duration
	calls   int
	prompts []string
}

func (g *fakeGenerator) Generate(_ context.Context, prompt string, _ llm.GenerateParams) (string, error) {
	g.mu.Lock()
	g.calls++
	g.prompts = append(g.prompts, prompt)
	g.mu.Unlock()
	if g.delay > 0 {
		time.Sleep(g.delay)
	}
	return g.text, g.err
}

type fakeTranslator struct {
	provider string
	err      error
}

func (t *fakeTranslator) Translate(_ context.Context, text, targetLang, sourceLang string) (translate.Result, error) {
	if t.err != nil {
		return translate.Result{}, t.err
	}
	provider := t.provider
	if provider == "" {
		provider = translate.ProviderPrimary
	}
	return translate.Result{
		Text:       "[" + strings.ToUpper(targetLang) + "] " + text,
		SourceLang: sourceLang,
		TargetLang: targetLang,
		Confidence: 0.9,
		Provider:   provider,
	}, nil
}

func activeSession(category string) *store.Session {
	return &store.Session{
		ID:       "s1",
		OwnerID:  "owner",
		Title:    "Chip launch",
		Category: category,
		Status:   "active",
	}
}

func segmentsOf(texts ...string) []store.Segment {
	segs := make([]store.Segment, 0, len(texts))
	for _, t := range texts {
		segs = append(segs, store.Segment{SessionID: "s1", Text: t, IsFinal: true})
	}
	return segs
}

func newTestPipeline(s Store, g llm.Client, tr Translator) *Pipeline {
	return NewPipeline(s, g, tr, nil, log.New(io.Discard, "", 0), Config{
		CanonicalLang: "en",
		TargetLangs:   []string{"ko", "ja"},
	})
}

func TestGenerateProducesSummaryAndCaches(t *testing.T) {
	fs := &fakeStore{
		session:  activeSession("technology"),
		segments: segmentsOf("The new chip uses 3nm process.", "It improves battery life by 40 percent."),
	}
	gen := &fakeGenerator{text: "A chip announcement."}
	p := newTestPipeline(fs, gen, &fakeTranslator{})

	result, err := p.Generate(context.Background(), "s1", false)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if result.Summary != "A chip announcement." {
		t.Errorf("summary = %q", result.Summary)
	}
	if result.Category != "technology" {
		t.Errorf("category = %q, want technology", result.Category)
	}
	if result.TranscriptCount != 2 {
		t.Errorf("transcriptCount = %d, want 2", result.TranscriptCount)
	}
	if result.FromCache {
		t.Error("first generation must not report fromCache")
	}

	if len(fs.summaryWrites) != 1 {
		t.Fatalf("summary persisted %d times, want 1", len(fs.summaryWrites))
	}
	for _, lang := range []string{"ko", "ja"} {
		want := "[" + strings.ToUpper(lang) + "] A chip announcement."
		if fs.cache[lang] != want {
			t.Errorf("cache[%s] = %q, want %q", lang, fs.cache[lang], want)
		}
	}
}

func TestGenerateReturnsCachedSummary(t *testing.T) {
	existing := "Existing summary."
	sess := activeSession("general")
	sess.Summary = &existing
	fs := &fakeStore{session: sess, segments: segmentsOf("some text")}
	gen := &fakeGenerator{text: "New summary."}
	p := newTestPipeline(fs, gen, &fakeTranslator{})

	result, err := p.Generate(context.Background(), "s1", false)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if !result.FromCache {
		t.Error("expected fromCache=true")
	}
	if result.Summary != existing {
		t.Errorf("summary = %q, want existing summary", result.Summary)
	}
	if gen.calls != 0 {
		t.Errorf("generator called %d times, want 0", gen.calls)
	}

	// Repeat call returns identical text.
	again, err := p.Generate(context.Background(), "s1", false)
	if err != nil {
		t.Fatalf("Generate (repeat): %v", err)
	}
	if again.Summary != result.Summary {
		t.Error("repeat call should return identical summary text")
	}
}

func TestGenerateForceRegenerates(t *testing.T) {
	existing := "Stale summary."
	sess := activeSession("general")
	sess.Summary = &existing
	fs := &fakeStore{session: sess, segments: segmentsOf("some text")}
	gen := &fakeGenerator{text: "Fresh summary."}
	p := newTestPipeline(fs, gen, &fakeTranslator{})

	result, err := p.Generate(context.Background(), "s1", true)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if result.FromCache {
		t.Error("forced generation must not report fromCache")
	}
	if result.Summary != "Fresh summary." {
		t.Errorf("summary = %q, want fresh summary", result.Summary)
	}
	if gen.calls != 1 {
		t.Errorf("generator called %d times, want 1", gen.calls)
	}
	if fs.session.Summary == nil || *fs.session.Summary != "Fresh summary." {
		t.Error("forced generation should overwrite the stored summary")
	}
}

func TestGenerateSessionNotFound(t *testing.T) {
	p := newTestPipeline(&fakeStore{}, &fakeGenerator{text: "x"}, &fakeTranslator{})

	_, err := p.Generate(context.Background(), "missing", false)
	if !errors.Is(err, pgx.ErrNoRows) {
		t.Errorf("err = %v, want wrapped pgx.ErrNoRows", err)
	}
}

func TestGenerateNoTranscript(t *testing.T) {
	fs := &fakeStore{session: activeSession("general")}
	p := newTestPipeline(fs, &fakeGenerator{text: "x"}, &fakeTranslator{})

	_, err := p.Generate(context.Background(), "s1", false)
	if !errors.Is(err, ErrNoTranscript) {
		t.Errorf("err = %v, want ErrNoTranscript", err)
	}
}

func TestGenerateProviderFailure(t *testing.T) {
	fs := &fakeStore{session: activeSession("general"), segments: segmentsOf("text")}
	gen := &fakeGenerator{err: errors.New("upstream 500")}
	p := newTestPipeline(fs, gen, &fakeTranslator{})

	_, err := p.Generate(context.Background(), "s1", false)
	if !errors.Is(err, ErrGeneration) {
		t.Errorf("err = %v, want ErrGeneration", err)
	}
	if len(fs.summaryWrites) != 0 {
		t.Error("failed generation must not persist a summary")
	}
}

func TestGeneratePerLanguageFailureIsSwallowed(t *testing.T) {
	fs := &fakeStore{
		session:   activeSession("general"),
		segments:  segmentsOf("text"),
		upsertErr: map[string]error{"ko": errors.New("db down")},
	}
	gen := &fakeGenerator{text: "Summary."}
	p := newTestPipeline(fs, gen, &fakeTranslator{})

	result, err := p.Generate(context.Background(), "s1", false)
	if err != nil {
		t.Fatalf("per-language failure must not fail Generate: %v", err)
	}
	if result.Summary != "Summary." {
		t.Errorf("summary = %q", result.Summary)
	}
	if _, ok := fs.cache["ko"]; ok {
		t.Error("ko should not be cached after upsert failure")
	}
	if _, ok := fs.cache["ja"]; !ok {
		t.Error("ja should still be cached")
	}
}

func TestGenerateTruncatesLongTranscript(t *testing.T) {
	long := strings.Repeat("word ", 4000) // well past the limit
	fs := &fakeStore{session: activeSession("general"), segments: segmentsOf(long)}
	gen := &fakeGenerator{text: "Summary."}
	p := newTestPipeline(fs, gen, &fakeTranslator{})

	if _, err := p.Generate(context.Background(), "s1", false); err != nil {
		t.Fatalf("Generate: %v", err)
	}

	prompt := gen.prompts[0]
	if !strings.Contains(prompt, "…") {
		t.Error("truncated transcript should carry an ellipsis marker")
	}
	if len([]rune(prompt)) > maxTranscriptChars+500 {
		t.Errorf("prompt length %d suggests transcript was not truncated", len([]rune(prompt)))
	}
}

func TestGenerateUnknownCategoryFallsBack(t *testing.T) {
	fs := &fakeStore{session: activeSession("astrology"), segments: segmentsOf("text")}
	gen := &fakeGenerator{text: "Summary."}
	p := newTestPipeline(fs, gen, &fakeTranslator{})

	result, err := p.Generate(context.Background(), "s1", false)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if result.Category != CategoryGeneral {
		t.Errorf("category = %q, want %q", result.Category, CategoryGeneral)
	}
}

func TestGenerateSingleFlight(t *testing.T) {
	fs := &fakeStore{session: activeSession("general"), segments: segmentsOf("text")}
	gen := &fakeGenerator{text: "Summary.", delay: 100 * time.Millisecond}
	p := newTestPipeline(fs, gen, &fakeTranslator{})

	const n = 5
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			_, _ = p.Generate(context.Background(), "s1", true)
		}()
	}
	wg.Wait()

	if gen.calls != 1 {
		t.Errorf("generator called %d times for concurrent requests, want 1", gen.calls)
	}
}

func TestGetSummary(t *testing.T) {
	existing := "Canonical summary."
	sess := activeSession("technology")
	sess.Summary = &existing
	fs := &fakeStore{
		session: sess,
		cache:   map[string]string{"ko": "[KO] Canonical summary."},
	}
	p := newTestPipeline(fs, &fakeGenerator{}, &fakeTranslator{})
	ctx := context.Background()

	t.Run("canonical language", func(t *testing.T) {
		got, err := p.GetSummary(ctx, "s1", "en")
		if err != nil {
			t.Fatalf("GetSummary: %v", err)
		}
		if got.Summary != existing || got.FromCache {
			t.Errorf("got %+v, want canonical summary with fromCache=false", got)
		}
		if got.Lang != "en" {
			t.Errorf("lang = %q, want en", got.Lang)
		}
	})

	t.Run("cached language", func(t *testing.T) {
		got, err := p.GetSummary(ctx, "s1", "ko")
		if err != nil {
			t.Fatalf("GetSummary: %v", err)
		}
		if !got.FromCache {
			t.Error("expected fromCache=true for cached language")
		}
		if got.Summary != "[KO] Canonical summary." {
			t.Errorf("summary = %q", got.Summary)
		}
		if got.Lang != "ko" {
			t.Errorf("lang = %q, want ko", got.Lang)
		}
	})

	t.Run("cache miss falls back to canonical", func(t *testing.T) {
		got, err := p.GetSummary(ctx, "s1", "xx")
		if err != nil {
			t.Fatalf("GetSummary: %v", err)
		}
		if got.FromCache {
			t.Error("cache miss must report fromCache=false")
		}
		if got.Summary != existing {
			t.Errorf("summary = %q, want canonical fallback", got.Summary)
		}
		if got.Lang != "en" {
			t.Errorf("lang = %q, want canonical en", got.Lang)
		}
	})

	t.Run("no summary yet", func(t *testing.T) {
		bare := &fakeStore{session: activeSession("general")}
		p := newTestPipeline(bare, &fakeGenerator{}, &fakeTranslator{})
		if _, err := p.GetSummary(ctx, "s1", "en"); !errors.Is(err, ErrNoSummary) {
			t.Errorf("err = %v, want ErrNoSummary", err)
		}
	})

	t.Run("session not found", func(t *testing.T) {
		p := newTestPipeline(&fakeStore{}, &fakeGenerator{}, &fakeTranslator{})
		if _, err := p.GetSummary(ctx, "missing", "en"); !errors.Is(err, pgx.ErrNoRows) {
			t.Errorf("err = %v, want wrapped pgx.ErrNoRows", err)
		}
	})
}

func TestTruncate(t *testing.T) {
	if got := truncate("short", 10); got != "short" {
		t.Errorf("truncate(short) = %q", got)
	}
	got := truncate(strings.Repeat("한", 20), 10)
	if got != strings.Repeat("한", 10)+"…" {
		t.Errorf("truncate on multibyte text = %q", got)
	}
}

func TestNormalizeCategory(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"technology", "technology"},
		{"medical", "medical"},
		{"", "general"},
		{"astrology", "general"},
	}
	for _, tt := range tests {
		if got := NormalizeCategory(tt.in); got != tt.want {
			t.Errorf("NormalizeCategory(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestGenerateSurvivesCallerCancellation(t *testing.T) {
	fs := &fakeStore{
		session:  activeSession("technology"),
		segments: segmentsOf("The new chip uses 3nm process."),
	}
	gen := &fakeGenerator{text: "A chip announcement."}
	p := newTestPipeline(fs, gen, &fakeTranslator{})

	// The shared run must outlive the request that started it.
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := p.Generate(ctx, "s1", false)
	if err != nil {
		t.Fatalf("Generate with cancelled caller context: %v", err)
	}
	if result.Summary != "A chip announcement." {
		t.Errorf("summary = %q", result.Summary)
	}
	if len(fs.summaryWrites) != 1 {
		t.Errorf("summary writes = %d, want 1", len(fs.summaryWrites))
	}
	if fs.cache["ko"] == "" || fs.cache["ja"] == "" {
		t.Errorf("cache = %v, want ko and ja entries", fs.cache)
	}
}
