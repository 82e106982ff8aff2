package app

import (
	"context"
	"errors"
	"log"
	"net"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lukasbauer/lector/internal/eventlog"
	"github.com/lukasbauer/lector/internal/httpapi"
	"github.com/lukasbauer/lector/internal/llm"
	"github.com/lukasbauer/lector/internal/store"
	"github.com/lukasbauer/lector/internal/summary"
	"github.com/lukasbauer/lector/internal/transcript"
	"github.com/lukasbauer/lector/internal/translate"
)

type App struct {
	cfg        Config
	logger     *log.Logger
	db         *pgxpool.Pool
	store      *store.Store
	eventLog   *eventlog.Logger
	aggregator *transcript.Aggregator
	translator *translate.Orchestrator
	summaries  *summary.Pipeline
	httpClient *http.Client // Shared HTTP client with connection pooling for provider calls
}

func New(cfg Config, logger *log.Logger) (*App, error) {
	if cfg.DatabaseURL == "" {
		return nil, errors.New("DATABASE_URL is required")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	db, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(ctx); err != nil {
		db.Close()
		return nil, err
	}

	s := store.New(db)
	el := eventlog.New(db)

	// Migrations are applied externally by the CI deploy job (docker exec psql).
	// No automatic migration runner at startup.

	// Shared HTTP client with connection pooling. Keeps TCP connections
	// alive to reduce latency for repeated OpenAI and DeepL calls.
	httpClient := &http.Client{
		Timeout: 30 * time.Second,
		Transport: &http.Transport{
			DialContext: (&net.Dialer{
				Timeout:   5 * time.Second,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			MaxIdleConns:          100,
			MaxIdleConnsPerHost:   10,
			IdleConnTimeout:       90 * time.Second,
			TLSHandshakeTimeout:   5 * time.Second,
			ExpectContinueTimeout: 1 * time.Second,
		},
	}

	generator := llm.NewOpenAIClient(llm.OpenAIConfig{
		APIKey:     cfg.OpenAIAPIKey,
		Model:      cfg.OpenAIModel,
		HTTPClient: httpClient,
	})

	translator := translate.NewOrchestrator(
		cfg.CanonicalLang,
		buildProviderChain(cfg, generator, httpClient),
		cfg.ProviderTimeout,
		logger,
	)

	aggregator := transcript.NewAggregator(s, logger)

	summaries := summary.NewPipeline(s, generator, translator, el, logger, summary.Config{
		CanonicalLang: cfg.CanonicalLang,
		TargetLangs:   cfg.TargetLangs,
	})

	return &App{
		cfg:        cfg,
		logger:     logger,
		db:         db,
		store:      s,
		eventLog:   el,
		aggregator: aggregator,
		translator: translator,
		summaries:  summaries,
		httpClient: httpClient,
	}, nil
}

// buildProviderChain assembles the translation fallback order from the
// configured credentials. Providers without credentials are left out.
// The mock terminal is always present so the chain cannot come up empty.
func buildProviderChain(cfg Config, generator llm.Client, httpClient *http.Client) []translate.Provider {
	var providers []translate.Provider
	if cfg.OpenAIAPIKey != "" {
		providers = append(providers, translate.NewLLMProvider(generator))
	}
	if cfg.DeepLAPIKey != "" {
		providers = append(providers, translate.NewDeepLClient(translate.DeepLConfig{
			APIKey:     cfg.DeepLAPIKey,
			HTTPClient: httpClient,
		}))
	}
	providers = append(providers, translate.NewMockProvider())
	return providers
}

func (a *App) Router(streams *httpapi.StreamRegistry) http.Handler {
	routerCfg := httpapi.RouterConfig{
		JWTSecret:         a.cfg.JWTSecret,
		CanonicalLang:     a.cfg.CanonicalLang,
		DiscordWebhookURL: a.cfg.DiscordWebhookURL,
	}
	return httpapi.NewRouter(routerCfg, a.logger, a.store, a.aggregator, a.translator, a.summaries, a.eventLog, streams)
}

func (a *App) Store() *store.Store                { return a.store }
func (a *App) Aggregator() *transcript.Aggregator { return a.aggregator }

func (a *App) Close() error {
	if a.db != nil {
		a.db.Close()
	}
	return nil
}
