// Package session persists the authenticated principal between requests.
//
// A Store keeps an opaque payload per browser. The cookie driver signs the
// payload into the cookie itself; the memory, redis and postgres drivers keep
// it server-side behind a random session id cookie.
package session

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/pitabwire/statepage/internal/config"
)

// ErrNoSession is returned by Load when the request carries no usable session.
var ErrNoSession = errors.New("session: no session")

// secretSize is the length of a generated signing secret.
const secretSize = 64

// Store loads and saves the session payload for a request.
type Store interface {
	Load(r *http.Request) ([]byte, error)
	Save(w http.ResponseWriter, r *http.Request, payload []byte) error
	Clear(w http.ResponseWriter, r *http.Request) error

	// Driver names the backend, used as a metrics label.
	Driver() string
	HealthCheck(ctx context.Context) error
}

// Purger is implemented by server-side stores whose expired rows must be
// removed periodically.
type Purger interface {
	PurgeExpired(ctx context.Context) (int64, error)
}

// New creates the Store selected by cfg.Driver. The returned close function
// releases backend connections and is never nil.
func New(ctx context.Context, cfg config.SessionConfig, logger *zap.Logger) (Store, func(), error) {
	noop := func() {}
	cookies := OptionsFrom(cfg)

	switch cfg.Driver {
	case config.SessionCookie, "":
		secret, generated, err := LoadSecret(cfg)
		if err != nil {
			return nil, noop, err
		}
		if generated {
			logger.Warn("no session secret configured, sessions will not survive a restart",
				zap.String("secret_file", cfg.SecretFile),
				zap.String("secret_env", cfg.SecretEnv),
			)
		}
		return NewCookieStore(secret, cookies), noop, nil

	case config.SessionMemory:
		return NewMemoryStore(cookies), noop, nil

	case config.SessionRedis:
		addr := os.Getenv(cfg.Redis.AddrEnv)
		if addr == "" {
			return nil, noop, fmt.Errorf("session: %s is not set", cfg.Redis.AddrEnv)
		}
		client := redis.NewClient(&redis.Options{Addr: addr, DB: cfg.Redis.DB})
		if err := client.Ping(ctx).Err(); err != nil {
			logger.Warn("redis session store unreachable at startup", zap.String("addr", addr), zap.Error(err))
		}
		closeFn := func() {
			if err := client.Close(); err != nil {
				logger.Warn("closing redis client", zap.Error(err))
			}
		}
		return NewRedisStore(client, cfg.Redis.KeyPrefix, cookies, logger), closeFn, nil

	case config.SessionPostgres:
		dsn := os.Getenv(cfg.Postgres.DSNEnv)
		if dsn == "" {
			return nil, noop, fmt.Errorf("session: %s is not set", cfg.Postgres.DSNEnv)
		}
		poolCfg, err := pgxpool.ParseConfig(dsn)
		if err != nil {
			return nil, noop, fmt.Errorf("session: parse postgres dsn: %w", err)
		}
		if cfg.Postgres.MaxConns > 0 {
			poolCfg.MaxConns = cfg.Postgres.MaxConns
		}
		if cfg.Postgres.ConnMaxLifetime > 0 {
			poolCfg.MaxConnLifetime = cfg.Postgres.ConnMaxLifetime
		}
		pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
		if err != nil {
			return nil, noop, fmt.Errorf("session: connect postgres: %w", err)
		}
		store := NewPgStore(pool, cookies)
		if err := store.EnsureSchema(ctx); err != nil {
			pool.Close()
			return nil, noop, err
		}
		return store, pool.Close, nil

	default:
		return nil, noop, fmt.Errorf("session: unsupported driver %q", cfg.Driver)
	}
}

// LoadSecret returns the cookie signing secret. The environment variable
// named by cfg.SecretEnv takes precedence over cfg.SecretFile. When neither
// yields a value, a random secret is generated and generated is true.
func LoadSecret(cfg config.SessionConfig) (secret []byte, generated bool, err error) {
	if cfg.SecretEnv != "" {
		if v := os.Getenv(cfg.SecretEnv); v != "" {
			return []byte(v), false, nil
		}
	}
	if cfg.SecretFile != "" {
		data, err := os.ReadFile(cfg.SecretFile)
		switch {
		case err == nil && len(data) > 0:
			return data, false, nil
		case err != nil && !errors.Is(err, os.ErrNotExist):
			return nil, false, fmt.Errorf("session: reading secret file %s: %w", cfg.SecretFile, err)
		}
	}

	secret = make([]byte, secretSize)
	if _, err := rand.Read(secret); err != nil {
		return nil, false, fmt.Errorf("session: generating secret: %w", err)
	}
	return secret, true, nil
}

// CookieOptions describes the cookie that carries a session id or token.
type CookieOptions struct {
	Name   string
	TTL    time.Duration
	Secure bool
}

// OptionsFrom returns the cookie options of cfg.
func OptionsFrom(cfg config.SessionConfig) CookieOptions {
	return CookieOptions{Name: cfg.CookieName, TTL: cfg.TTL, Secure: cfg.Secure}
}

func (c CookieOptions) get(r *http.Request) (string, bool) {
	ck, err := r.Cookie(c.Name)
	if err != nil || ck.Value == "" {
		return "", false
	}
	return ck.Value, true
}

func (c CookieOptions) set(w http.ResponseWriter, value string) {
	http.SetCookie(w, &http.Cookie{
		Name:     c.Name,
		Value:    value,
		Path:     "/",
		MaxAge:   int(c.TTL.Seconds()),
		HttpOnly: true,
		Secure:   c.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (c CookieOptions) expire(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     c.Name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   c.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}
