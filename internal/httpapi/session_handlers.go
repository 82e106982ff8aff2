package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/lukasbauer/lector/internal/eventlog"
	"github.com/lukasbauer/lector/internal/store"
	"github.com/lukasbauer/lector/internal/summary"
	"github.com/lukasbauer/lector/internal/transcript"
)

type createSessionRequest struct {
	Title    string `json:"title"`
	Category string `json:"category"`
}

type appendSegmentRequest struct {
	Text    string `json:"text"`
	IsFinal bool   `json:"isFinal"`
}

type appendSegmentResponse struct {
	Accepted     bool   `json:"accepted"`
	BufferLength int    `json:"bufferLength"`
	Status       string `json:"status"`
}

func (r *Router) handleCreateSession(w http.ResponseWriter, req *http.Request) {
	user := getAuthUser(req.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, KindUnauthorized, "authentication required")
		return
	}

	var body createSessionRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, KindValidation, "invalid request body")
		return
	}

	body.Title = strings.TrimSpace(body.Title)
	if body.Title == "" {
		writeError(w, http.StatusBadRequest, KindValidation, "title is required")
		return
	}
	category := summary.NormalizeCategory(body.Category)

	session, err := r.store.CreateSession(req.Context(), user.ID, body.Title, category)
	if err != nil {
		r.logger.Printf("create session: %v", err)
		captureError(req, err, "failed to create session")
		writeError(w, http.StatusInternalServerError, KindInternal, "failed to create session")
		return
	}

	r.aggregator.Start(session.ID)
	r.eventLog.LogAsync(session.ID, eventlog.EventSessionStarted, map[string]any{
		"title":    session.Title,
		"category": session.Category,
	})

	writeJSON(w, http.StatusCreated, session)
}

func (r *Router) handleListSessions(w http.ResponseWriter, req *http.Request) {
	user := getAuthUser(req.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, KindUnauthorized, "authentication required")
		return
	}

	sessions, err := r.store.ListSessionsByOwner(req.Context(), user.ID, 100)
	if err != nil {
		r.logger.Printf("list sessions: %v", err)
		writeError(w, http.StatusInternalServerError, KindInternal, "failed to list sessions")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"sessions": sessions})
}

func (r *Router) handleGetSession(w http.ResponseWriter, req *http.Request) {
	user := getAuthUser(req.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, KindUnauthorized, "authentication required")
		return
	}
	sessionID := req.PathValue("id")

	detail, err := r.store.GetSessionDetail(req.Context(), sessionID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(w, http.StatusNotFound, KindNotFound, "session not found")
			return
		}
		r.logger.Printf("get session %s: %v", sessionID, err)
		writeError(w, http.StatusInternalServerError, KindInternal, "failed to load session")
		return
	}
	if detail.OwnerID != user.ID {
		writeError(w, http.StatusForbidden, KindForbidden, "not your session")
		return
	}

	writeJSON(w, http.StatusOK, detail)
}

func (r *Router) handleAppendSegment(w http.ResponseWriter, req *http.Request) {
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
		r.logger.Printf("append segment, load session %s: %v", sessionID, err)
		writeError(w, http.StatusInternalServerError, KindInternal, "failed to load session")
		return
	}
	if session.OwnerID != user.ID {
		writeError(w, http.StatusForbidden, KindForbidden, "not your session")
		return
	}
	if session.Status != store.SessionStatusActive {
		writeError(w, http.StatusBadRequest, KindValidation, "session has ended")
		return
	}

	var body appendSegmentRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, KindValidation, "invalid request body")
		return
	}
	if strings.TrimSpace(body.Text) == "" {
		writeError(w, http.StatusBadRequest, KindValidation, "text is required")
		return
	}

	if err := r.appendWithRehydrate(req.Context(), sessionID, body.Text, body.IsFinal); err != nil {
		r.logger.Printf("append segment %s: %v", sessionID, err)
		writeError(w, http.StatusInternalServerError, KindInternal, "failed to append segment")
		return
	}

	if err := r.store.TouchSession(req.Context(), sessionID); err != nil {
		r.logger.Printf("touch session %s: %v", sessionID, err)
	}

	// Final segments with content made it into the buffer; partials did not.
	accepted := body.IsFinal && strings.TrimSpace(body.Text) != ""
	if accepted {
		r.eventLog.LogAsync(sessionID, eventlog.EventSegmentFinal, map[string]any{
			"chars": len(body.Text),
		})
	}

	// Live viewers get both partial and final updates.
	r.hub.broadcast(sessionID, liveEvent{
		Type:    "segment",
		Text:    body.Text,
		IsFinal: body.IsFinal,
	})

	buf, _, _ := r.aggregator.Buffer(sessionID)
	writeJSON(w, http.StatusOK, appendSegmentResponse{
		Accepted:     accepted,
		BufferLength: len(buf),
		Status:       session.Status,
	})
}

// appendWithRehydrate retries an append after rebuilding aggregator state
// from stored segments. Covers sessions that were active across a restart.
func (r *Router) appendWithRehydrate(ctx context.Context, sessionID, text string, isFinal bool) error {
	err := r.aggregator.Append(ctx, sessionID, text, isFinal)
	if !errors.Is(err, transcript.ErrSessionNotFound) {
		return err
	}

	segments, err := r.store.ListFinalSegments(ctx, sessionID)
	if err != nil {
		return err
	}
	texts := make([]string, len(segments))
	for i, seg := range segments {
		texts[i] = seg.Text
	}
	r.aggregator.Rehydrate(sessionID, texts)

	return r.aggregator.Append(ctx, sessionID, text, isFinal)
}

func (r *Router) handleGetTranscript(w http.ResponseWriter, req *http.Request) {
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
		r.logger.Printf("get transcript, load session %s: %v", sessionID, err)
		writeError(w, http.StatusInternalServerError, KindInternal, "failed to load session")
		return
	}
	if session.OwnerID != user.ID {
		writeError(w, http.StatusForbidden, KindForbidden, "not your session")
		return
	}

	buf, _, err := r.aggregator.Buffer(sessionID)
	if errors.Is(err, transcript.ErrSessionNotFound) {
		// Not in memory, serve the durable copy.
		segments, err := r.store.ListFinalSegments(req.Context(), sessionID)
		if err != nil {
			r.logger.Printf("list segments %s: %v", sessionID, err)
			writeError(w, http.StatusInternalServerError, KindInternal, "failed to load transcript")
			return
		}
		parts := make([]string, len(segments))
		for i, seg := range segments {
			parts[i] = seg.Text
		}
		buf = strings.Join(parts, " ")
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"sessionId":  sessionID,
		"transcript": strings.TrimSpace(buf),
		"status":     session.Status,
	})
}

func (r *Router) handleEndSession(w http.ResponseWriter, req *http.Request) {
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
		r.logger.Printf("end session, load %s: %v", sessionID, err)
		writeError(w, http.StatusInternalServerError, KindInternal, "failed to load session")
		return
	}
	if session.OwnerID != user.ID {
		writeError(w, http.StatusForbidden, KindForbidden, "not your session")
		return
	}

	ended, err := r.store.EndSession(req.Context(), sessionID)
	if err != nil {
		r.logger.Printf("end session %s: %v", sessionID, err)
		captureError(req, err, "failed to end session")
		writeError(w, http.StatusInternalServerError, KindInternal, "failed to end session")
		return
	}

	r.aggregator.End(sessionID)
	if ended {
		r.eventLog.LogAsync(sessionID, eventlog.EventSessionEnded, nil)
	}
	r.hub.closeSession(sessionID)

	writeJSON(w, http.StatusOK, map[string]any{
		"sessionId": sessionID,
		"status":    store.SessionStatusEnded,
	})
}
