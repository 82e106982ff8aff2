package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/jackc/pgx/v5"

	"github.com/lukasbauer/lector/internal/summary"
)

type generateSummaryRequest struct {
	Force bool `json:"force"`
}

func (r *Router) handleGenerateSummary(w http.ResponseWriter, req *http.Request) {
	user := getAuthUser(req.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, KindUnauthorized, "authentication required")
		return
	}
	sessionID := req.PathValue("id")

	session, err := r.store.GetSession(req.Context(), sessionID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(w, http.StatusNotFound, KindNotFound, "session not found")
			return
		}
		r.logger.Printf("generate summary, load session %s: %v", sessionID, err)
		writeError(w, http.StatusInternalServerError, KindInternal, "failed to load session")
		return
	}
	if session.OwnerID != user.ID {
		writeError(w, http.StatusForbidden, KindForbidden, "not your session")
		return
	}

	// Body is optional: a bare POST means force=false.
	var body generateSummaryRequest
	if req.Body != nil {
		_ = json.NewDecoder(req.Body).Decode(&body)
	}

	result, err := r.summaries.Generate(req.Context(), sessionID, body.Force)
	if err != nil {
		switch {
		case errors.Is(err, summary.ErrNoTranscript):
			writeError(w, http.StatusNotFound, KindNotFound, "session has no transcript")
		case errors.Is(err, summary.ErrGeneration):
			r.logger.Printf("generate summary %s: %v", sessionID, err)
			captureError(req, err, "summary generation failed")
			if r.discord.Enabled() {
				r.discord.NotifySummaryFailed(req.Context(), session.Title, err)
			}
			writeError(w, http.StatusInternalServerError, KindProvider, "summary generation failed")
		case errors.Is(err, pgx.ErrNoRows):
			writeError(w, http.StatusNotFound, KindNotFound, "session not found")
		default:
			r.logger.Printf("generate summary %s: %v", sessionID, err)
			captureError(req, err, "summary pipeline error")
			writeError(w, http.StatusInternalServerError, KindInternal, "failed to generate summary")
		}
		return
	}

	if !result.FromCache && r.discord.Enabled() {
		r.discord.NotifySummaryCompleted(req.Context(), session.Title, result.Category, result.TranscriptCount)
	}

	writeJSON(w, http.StatusOK, result)
}

func (r *Router) handleGetSummary(w http.ResponseWriter, req *http.Request) {
	sessionID := req.PathValue("id")
	lang := req.URL.Query().Get("lang")
	if lang == "" {
		lang = r.cfg.CanonicalLang
	}

	result, err := r.summaries.GetSummary(req.Context(), sessionID, lang)
	if err != nil {
		switch {
		case errors.Is(err, summary.ErrNoSummary):
			writeError(w, http.StatusNotFound, KindNotFound, "summary not generated yet")
		case errors.Is(err, pgx.ErrNoRows):
			writeError(w, http.StatusNotFound, KindNotFound, "session not found")
		default:
			r.logger.Printf("get summary %s lang=%s: %v", sessionID, lang, err)
			writeError(w, http.StatusInternalServerError, KindInternal, "failed to load summary")
		}
		return
	}

	writeJSON(w, http.StatusOK, result)
}
