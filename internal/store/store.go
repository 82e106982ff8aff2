package store

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Store struct {
	db *pgxpool.Pool
}

func New(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

const (
	SessionStatusActive = "active"
	SessionStatusEnded  = "ended"
)

// Session represents a presentation session
type Session struct {
	ID        string     `json:"id"`
	OwnerID   string     `json:"owner_id"`
	Title     string     `json:"title"`
	Category  string     `json:"category"`
	Status    string     `json:"status"` // active, ended
	Summary   *string    `json:"summary,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	EndedAt   *time.Time `json:"ended_at,omitempty"`
}

// Segment is a finalized speech-to-text segment belonging to a session.
// Partial (interim) segments are never persisted.
type Segment struct {
	ID        string    `json:"id"`
	SessionID string    `json:"session_id"`
	Text      string    `json:"text"`
	IsFinal   bool      `json:"is_final"`
	CreatedAt time.Time `json:"created_at"`
}

type SessionDetail struct {
	Session
	Segments []Segment `json:"segments"`
}

// CreateSession creates a new session for an owner and returns it.
func (s *Store) CreateSession(ctx context.Context, ownerID, title, category string) (*Session, error) {
	var sess Session
	err := s.db.QueryRow(ctx, `
		INSERT INTO sessions (id, owner_id, title, category, status)
		VALUES (gen_random_uuid(), $1, $2, $3, 'active')
		RETURNING id, owner_id, title, category, status, summary, created_at, updated_at, ended_at
	`, ownerID, title, category).Scan(
		&sess.ID, &sess.OwnerID, &sess.Title, &sess.Category, &sess.Status,
		&sess.Summary, &sess.CreatedAt, &sess.UpdatedAt, &sess.EndedAt,
	)
	if err != nil {
		return nil, err
	}
	return &sess, nil
}

// GetSession retrieves a session by ID.
func (s *Store) GetSession(ctx context.Context, id string) (*Session, error) {
	var sess Session
	err := s.db.QueryRow(ctx, `
		SELECT id, owner_id, title, category, status, summary, created_at, updated_at, ended_at
		FROM sessions
		WHERE id = $1
	`, id).Scan(
		&sess.ID, &sess.OwnerID, &sess.Title, &sess.Category, &sess.Status,
		&sess.Summary, &sess.CreatedAt, &sess.UpdatedAt, &sess.EndedAt,
	)
	if err != nil {
		return nil, err
	}
	return &sess, nil
}

// ListSessionsByOwner lists sessions for an owner, newest first.
func (s *Store) ListSessionsByOwner(ctx context.Context, ownerID string, limit int) ([]Session, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, owner_id, title, category, status, summary, created_at, updated_at, ended_at
		FROM sessions
		WHERE owner_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, ownerID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sessions := []Session{}
	for rows.Next() {
		var sess Session
		if err := rows.Scan(
			&sess.ID, &sess.OwnerID, &sess.Title, &sess.Category, &sess.Status,
			&sess.Summary, &sess.CreatedAt, &sess.UpdatedAt, &sess.EndedAt,
		); err != nil {
			return nil, err
		}
		sessions = append(sessions, sess)
	}
	return sessions, rows.Err()
}

// EndSession marks a session as ended. Returns true if the session was
// active and is now ended, false if it was already ended.
func (s *Store) EndSession(ctx context.Context, id string) (bool, error) {
	result, err := s.db.Exec(ctx, `
		UPDATE sessions
		SET status = 'ended', ended_at = NOW(), updated_at = NOW()
		WHERE id = $1 AND status = 'active'
	`, id)
	if err != nil {
		return false, err
	}
	return result.RowsAffected() > 0, nil
}

// UpdateSessionSummary writes the canonical-language summary onto the session.
// Overwrites any previous summary (forced regeneration).
func (s *Store) UpdateSessionSummary(ctx context.Context, id, summary string) error {
	result, err := s.db.Exec(ctx, `
		UPDATE sessions
		SET summary = $2, updated_at = NOW()
		WHERE id = $1
	`, id, summary)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// InsertSegment persists a finalized transcript segment.
func (s *Store) InsertSegment(ctx context.Context, sessionID, text string) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO transcript_segments (id, session_id, text, is_final)
		VALUES (gen_random_uuid(), $1, $2, true)
	`, sessionID, text)
	return err
}

// ListFinalSegments returns all finalized segments for a session in
// creation order.
func (s *Store) ListFinalSegments(ctx context.Context, sessionID string) ([]Segment, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, session_id, text, is_final, created_at
		FROM transcript_segments
		WHERE session_id = $1 AND is_final = true
		ORDER BY created_at ASC
	`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var segments []Segment
	for rows.Next() {
		var seg Segment
		if err := rows.Scan(&seg.ID, &seg.SessionID, &seg.Text, &seg.IsFinal, &seg.CreatedAt); err != nil {
			return nil, err
		}
		segments = append(segments, seg)
	}
	return segments, rows.Err()
}

// GetSessionDetail retrieves a session along with its finalized segments.
func (s *Store) GetSessionDetail(ctx context.Context, id string) (*SessionDetail, error) {
	sess, err := s.GetSession(ctx, id)
	if err != nil {
		return nil, err
	}

	segments, err := s.ListFinalSegments(ctx, id)
	if err != nil {
		return nil, err
	}
	if segments == nil {
		segments = []Segment{}
	}

	return &SessionDetail{Session: *sess, Segments: segments}, nil
}

// UpsertSummaryCache writes a per-language summary translation.
// Last write wins on conflict.
func (s *Store) UpsertSummaryCache(ctx context.Context, sessionID, lang, text string) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO summary_cache (session_id, lang, text, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (session_id, lang) DO UPDATE SET
			text = EXCLUDED.text,
			updated_at = NOW()
	`, sessionID, lang, text)
	return err
}

// GetSummaryCache reads the cached summary for (session, lang).
// Returns pgx.ErrNoRows on a cache miss.
func (s *Store) GetSummaryCache(ctx context.Context, sessionID, lang string) (string, error) {
	var text string
	err := s.db.QueryRow(ctx, `
		SELECT text FROM summary_cache
		WHERE session_id = $1 AND lang = $2
	`, sessionID, lang).Scan(&text)
	return text, err
}

// ListStaleActiveSessions returns active sessions whose last update is older
// than the cutoff. Used by the idle sweeper to close abandoned sessions.
func (s *Store) ListStaleActiveSessions(ctx context.Context, cutoff time.Time, limit int) ([]Session, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, owner_id, title, category, status, summary, created_at, updated_at, ended_at
		FROM sessions
		WHERE status = 'active' AND updated_at < $1
		ORDER BY updated_at ASC
		LIMIT $2
	`, cutoff, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []Session
	for rows.Next() {
		var sess Session
		if err := rows.Scan(
			&sess.ID, &sess.OwnerID, &sess.Title, &sess.Category, &sess.Status,
			&sess.Summary, &sess.CreatedAt, &sess.UpdatedAt, &sess.EndedAt,
		); err != nil {
			return nil, err
		}
		sessions = append(sessions, sess)
	}
	return sessions, rows.Err()
}

// TouchSession bumps updated_at, marking the session as recently active.
// Called on segment ingest so the idle sweeper doesn't close live sessions.
func (s *Store) TouchSession(ctx context.Context, id string) error {
	_, err := s.db.Exec(ctx, `
		UPDATE sessions SET updated_at = NOW() WHERE id = $1
	`, id)
	return err
}
