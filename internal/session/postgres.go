package session

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DB is the subset of *pgxpool.Pool used by PgStore.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
}

const schemaSQL = `
CREATE TABLE IF NOT EXISTS statepage_sessions (
	id         TEXT PRIMARY KEY,
	payload    BYTEA NOT NULL,
	expires_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS statepage_sessions_expires_at ON statepage_sessions (expires_at);`

// PgStore is a PostgreSQL-backed session store using pgx/v5.
type PgStore struct {
	db      DB
	cookies CookieOptions
	now     func() time.Time
}

// NewPgStore creates a new PostgreSQL session store.
func NewPgStore(db DB, cookies CookieOptions) *PgStore {
	return &PgStore{db: db, cookies: cookies, now: time.Now}
}

// EnsureSchema creates the sessions table if it does not exist.
func (s *PgStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("create sessions table: %w", err)
	}
	return nil
}

// Load retrieves the unexpired payload for the request's session id.
func (s *PgStore) Load(r *http.Request) ([]byte, error) {
	id, ok := s.cookies.get(r)
	if !ok {
		return nil, ErrNoSession
	}

	var payload []byte
	err := s.db.QueryRow(r.Context(), `
		SELECT payload
		FROM statepage_sessions
		WHERE id = $1 AND expires_at > $2`,
		id, s.now().UTC(),
	).Scan(&payload)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNoSession
	}
	if err != nil {
		return nil, fmt.Errorf("query session: %w", err)
	}
	return payload, nil
}

// Save inserts payload under a fresh session id, dropping the previous one.
func (s *PgStore) Save(w http.ResponseWriter, r *http.Request, payload []byte) error {
	ctx := r.Context()
	id := uuid.NewString()

	_, err := s.db.Exec(ctx, `
		INSERT INTO statepage_sessions (id, payload, expires_at)
		VALUES ($1, $2, $3)`,
		id, payload, s.now().UTC().Add(s.cookies.TTL),
	)
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	if old, ok := s.cookies.get(r); ok {
		if _, err := s.db.Exec(ctx, `DELETE FROM statepage_sessions WHERE id = $1`, old); err != nil {
			return fmt.Errorf("delete previous session: %w", err)
		}
	}

	s.cookies.set(w, id)
	return nil
}

// Clear deletes the session row and expires its cookie.
func (s *PgStore) Clear(w http.ResponseWriter, r *http.Request) error {
	s.cookies.expire(w)
	id, ok := s.cookies.get(r)
	if !ok {
		return nil
	}
	if _, err := s.db.Exec(r.Context(), `DELETE FROM statepage_sessions WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// PurgeExpired removes expired rows and returns how many were deleted.
func (s *PgStore) PurgeExpired(ctx context.Context) (int64, error) {
	tag, err := s.db.Exec(ctx, `DELETE FROM statepage_sessions WHERE expires_at <= $1`, s.now().UTC())
	if err != nil {
		return 0, fmt.Errorf("purge sessions: %w", err)
	}
	return tag.RowsAffected(), nil
}

// Driver returns "postgres".
func (s *PgStore) Driver() string { return "postgres" }

// HealthCheck pings the database.
func (s *PgStore) HealthCheck(ctx context.Context) error {
	return s.db.Ping(ctx)
}
