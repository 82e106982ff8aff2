package httpapi

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/getsentry/sentry-go"

	"github.com/lukasbauer/lector/internal/eventlog"
	"github.com/lukasbauer/lector/internal/notifications"
	"github.com/lukasbauer/lector/internal/store"
	"github.com/lukasbauer/lector/internal/summary"
	"github.com/lukasbauer/lector/internal/transcript"
	"github.com/lukasbauer/lector/internal/translate"
)

// Store is the persistence surface the handlers need. Implemented by
// store.Store.
type Store interface {
	CreateSession(ctx context.Context, ownerID, title, category string) (*store.Session, error)
	GetSession(ctx context.Context, id string) (*store.Session, error)
	GetSessionDetail(ctx context.Context, id string) (*store.SessionDetail, error)
	ListSessionsByOwner(ctx context.Context, ownerID string, limit int) ([]store.Session, error)
	ListFinalSegments(ctx context.Context, sessionID string) ([]store.Segment, error)
	EndSession(ctx context.Context, id string) (bool, error)
	TouchSession(ctx context.Context, id string) error
}

type RouterConfig struct {
	// JWT Authentication (tokens issued by the external auth service)
	JWTSecret string

	// Languages
	CanonicalLang string

	// Notifications
	DiscordWebhookURL string
}

type Router struct {
	cfg        RouterConfig
	logger     *log.Logger
	store      Store
	aggregator *transcript.Aggregator
	translator *translate.Orchestrator
	summaries  *summary.Pipeline
	eventLog   *eventlog.Logger
	discord    *notifications.Discord
	streams    *StreamRegistry
	hub        *liveHub
	mux        *http.ServeMux
}

func NewRouter(
	cfg RouterConfig,
	logger *log.Logger,
	s Store,
	agg *transcript.Aggregator,
	translator *translate.Orchestrator,
	summaries *summary.Pipeline,
	eventLog *eventlog.Logger,
	streams *StreamRegistry,
) http.Handler {
	r := &Router{
		cfg:        cfg,
		logger:     logger,
		store:      s,
		aggregator: agg,
		translator: translator,
		summaries:  summaries,
		eventLog:   eventLog,
		discord:    notifications.NewDiscord(cfg.DiscordWebhookURL, logger),
		streams:    streams,
		hub:        newLiveHub(),
		mux:        http.NewServeMux(),
	}

	r.routes()
	return withSentryRecovery(withCORS(r.mux))
}

func (r *Router) routes() {
	// Health checks
	r.mux.HandleFunc("GET /healthz", r.handleHealthz)
	r.mux.HandleFunc("GET /readyz", r.handleReadyz)

	// Session management (protected)
	r.mux.HandleFunc("POST /api/sessions", r.withAuth(r.handleCreateSession))
	r.mux.HandleFunc("GET /api/sessions", r.withAuth(r.handleListSessions))
	r.mux.HandleFunc("GET /api/sessions/{id}", r.withAuth(r.handleGetSession))

	// Capture boundary (protected, owner only)
	r.mux.HandleFunc("POST /session/{id}/segment", r.withAuth(r.handleAppendSegment))
	r.mux.HandleFunc("POST /session/{id}/end", r.withAuth(r.handleEndSession))
	r.mux.HandleFunc("POST /session/{id}/summary", r.withAuth(r.handleGenerateSummary))

	// Live transcript status (protected, owner only)
	r.mux.HandleFunc("GET /session/{id}/transcript", r.withAuth(r.handleGetTranscript))

	// Public reads
	r.mux.HandleFunc("GET /session/{id}/summary", r.handleGetSummary)
	r.mux.HandleFunc("GET /session/{id}/live", r.handleLiveStream)

	// Standalone translation
	r.mux.HandleFunc("POST /translate", r.handleTranslate)
}

func (r *Router) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// handleReadyz reports readiness for load balancers. During shutdown the
// stream registry drains and new traffic should go elsewhere.
func (r *Router) handleReadyz(w http.ResponseWriter, _ *http.Request) {
	if r.streams.IsDraining() {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("draining"))
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func withSentryRecovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				hub := sentry.CurrentHub().Clone()
				hub.Scope().SetRequest(req)
				hub.RecoverWithContext(req.Context(), err)
				hub.Flush(2 * time.Second)
				writeError(w, http.StatusInternalServerError, KindInternal, "internal server error")
			}
		}()
		next.ServeHTTP(w, req)
	})
}

func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,PATCH,DELETE,OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type,Authorization")
		if req.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, req)
	})
}

// captureError sends an error to Sentry with request context
func captureError(req *http.Request, err error, msg string) {
	sentry.WithScope(func(scope *sentry.Scope) {
		scope.SetRequest(req)
		scope.SetExtra("message", msg)
		sentry.CaptureException(err)
	})
}
