package session

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisStore is a Redis-backed session store. Keys are prefix + session id
// and expire with the session TTL.
type RedisStore struct {
	client  redis.Cmdable
	prefix  string
	cookies CookieOptions
	logger  *zap.Logger
}

// NewRedisStore creates a new Redis-backed session store. A nil logger
// discards warnings.
func NewRedisStore(client redis.Cmdable, prefix string, cookies CookieOptions, logger *zap.Logger) *RedisStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisStore{client: client, prefix: prefix, cookies: cookies, logger: logger}
}

// Load returns the payload stored for the request's session id.
func (s *RedisStore) Load(r *http.Request) ([]byte, error) {
	id, ok := s.cookies.get(r)
	if !ok {
		return nil, ErrNoSession
	}

	key := s.prefix + id
	raw, err := s.client.Get(r.Context(), key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNoSession
	}
	if err != nil {
		return nil, fmt.Errorf("redis get %q: %w", key, err)
	}
	return raw, nil
}

// Save stores payload under a fresh session id, dropping the previous one.
func (s *RedisStore) Save(w http.ResponseWriter, r *http.Request, payload []byte) error {
	ctx := r.Context()
	id := uuid.NewString()
	key := s.prefix + id

	if err := s.client.Set(ctx, key, payload, s.cookies.TTL).Err(); err != nil {
		return fmt.Errorf("redis set %q: %w", key, err)
	}
	s.cookies.set(w, id)

	// The old key expires on its own if this fails.
	if old, ok := s.cookies.get(r); ok {
		if err := s.client.Del(ctx, s.prefix+old).Err(); err != nil {
			s.logger.Warn("dropping previous session failed",
				zap.String("key", s.prefix+old), zap.Error(err))
		}
	}
	return nil
}

// Clear deletes the session and expires its cookie.
func (s *RedisStore) Clear(w http.ResponseWriter, r *http.Request) error {
	s.cookies.expire(w)
	id, ok := s.cookies.get(r)
	if !ok {
		return nil
	}
	if err := s.client.Del(r.Context(), s.prefix+id).Err(); err != nil {
		return fmt.Errorf("redis del %q: %w", s.prefix+id, err)
	}
	return nil
}

// Driver returns "redis".
func (s *RedisStore) Driver() string { return "redis" }

// HealthCheck pings Redis.
func (s *RedisStore) HealthCheck(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
