// Package transcript keeps the in-memory running transcript of live
// sessions. It is a fast read mirror; the durable copy lives in the store.
package transcript

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/getsentry/sentry-go"
)

// ErrSessionNotFound is returned when no in-memory state exists for a
// session. The session must be started before segments can be appended.
var ErrSessionNotFound = errors.New("transcript: session not found")

// SegmentWriter persists finalized segments. Implemented by store.Store.
type SegmentWriter interface {
	InsertSegment(ctx context.Context, sessionID, text string) error
}

type sessionState struct {
	mu        sync.Mutex
	buf       strings.Builder
	updatedAt time.Time
}

// Aggregator buffers finalized speech segments per session and mirrors each
// one to durable storage. The buffer is best-effort: a failed durable write
// is logged but does not roll back the in-memory append, so readers must
// tolerate the two views diverging until the session is rebuilt.
//
// Mutations for the same session are serialized by a per-session mutex;
// unrelated sessions never contend on a shared lock.
type Aggregator struct {
	mu       sync.RWMutex
	sessions map[string]*sessionState
	writer   SegmentWriter
	logger   *log.Logger
}

func NewAggregator(writer SegmentWriter, logger *log.Logger) *Aggregator {
	return &Aggregator{
		sessions: make(map[string]*sessionState),
		writer:   writer,
		logger:   logger,
	}
}

// Start initializes the buffer for a session. Re-starting an existing
// session resets the buffer; that is allowed and logged, not an error.
func (a *Aggregator) Start(sessionID string) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if _, ok := a.sessions[sessionID]; ok {
		a.logger.Printf("transcript: session %s restarted, buffer reset", sessionID)
	}
	a.sessions[sessionID] = &sessionState{updatedAt: time.Now()}
}

// Append handles one speech segment. Partial segments are no-ops for the
// buffer and are never persisted. Final non-empty segments are appended to
// the buffer with a single trailing space and mirrored to the store.
func (a *Aggregator) Append(ctx context.Context, sessionID, text string, isFinal bool) error {
	state, ok := a.lookup(sessionID)
	if !ok {
		return ErrSessionNotFound
	}

	if !isFinal {
		return nil
	}
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil
	}

	// The durable write happens under the same per-session lock as the
	// in-memory append so read-back order matches append order.
	state.mu.Lock()
	defer state.mu.Unlock()

	state.buf.WriteString(trimmed + " ")
	state.updatedAt = time.Now()

	if err := a.writer.InsertSegment(ctx, sessionID, trimmed); err != nil {
		a.logger.Printf("transcript: persist segment for session %s failed: %v", sessionID, err)
		sentry.CaptureException(fmt.Errorf("transcript: persist segment for session %s: %w", sessionID, err))
	}
	return nil
}

// Buffer returns the current concatenated transcript and last-update time.
func (a *Aggregator) Buffer(sessionID string) (string, time.Time, error) {
	state, ok := a.lookup(sessionID)
	if !ok {
		return "", time.Time{}, ErrSessionNotFound
	}

	state.mu.Lock()
	defer state.mu.Unlock()
	return state.buf.String(), state.updatedAt, nil
}

// End removes the in-memory state for a session and reports whether an
// entry existed. Persisted segments are untouched.
func (a *Aggregator) End(sessionID string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	_, ok := a.sessions[sessionID]
	delete(a.sessions, sessionID)
	return ok
}

// Rehydrate rebuilds the buffer for a session from previously persisted
// segment texts, in order. Used after a process restart when segments for
// an active session keep arriving but no in-memory state exists.
func (a *Aggregator) Rehydrate(sessionID string, texts []string) {
	state := &sessionState{updatedAt: time.Now()}
	for _, t := range texts {
		state.buf.WriteString(strings.TrimSpace(t) + " ")
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	a.sessions[sessionID] = state
	a.logger.Printf("transcript: rehydrated session %s from %d segment(s)", sessionID, len(texts))
}

// EvictIdle drops sessions that have not been updated within maxIdle.
// Returns the number of evicted sessions.
func (a *Aggregator) EvictIdle(maxIdle time.Duration) int {
	cutoff := time.Now().Add(-maxIdle)

	a.mu.Lock()
	defer a.mu.Unlock()

	evicted := 0
	for id, state := range a.sessions {
		state.mu.Lock()
		idle := state.updatedAt.Before(cutoff)
		state.mu.Unlock()
		if idle {
			delete(a.sessions, id)
			evicted++
		}
	}
	if evicted > 0 {
		a.logger.Printf("transcript: evicted %d idle session(s)", evicted)
	}
	return evicted
}

// ActiveSessions returns the number of buffered sessions.
func (a *Aggregator) ActiveSessions() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.sessions)
}

func (a *Aggregator) lookup(sessionID string) (*sessionState, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	state, ok := a.sessions[sessionID]
	return state, ok
}
