package session

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// cookieClaims is the signed cookie body.
type cookieClaims struct {
	Data []byte `json:"dat"`
	jwt.RegisteredClaims
}

// CookieStore keeps the payload in an HS256-signed JWT cookie.
type CookieStore struct {
	secret  []byte
	cookies CookieOptions
	now     func() time.Time
}

// NewCookieStore creates a cookie-backed store signing with secret.
func NewCookieStore(secret []byte, cookies CookieOptions) *CookieStore {
	return &CookieStore{secret: secret, cookies: cookies, now: time.Now}
}

// Load verifies the session cookie and returns its payload. A missing,
// tampered or expired cookie yields ErrNoSession.
func (s *CookieStore) Load(r *http.Request) ([]byte, error) {
	raw, ok := s.cookies.get(r)
	if !ok {
		return nil, ErrNoSession
	}

	var claims cookieClaims
	_, err := jwt.ParseWithClaims(raw, &claims,
		func(*jwt.Token) (any, error) { return s.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoSession, err)
	}
	return claims.Data, nil
}

// Save signs payload into the session cookie.
func (s *CookieStore) Save(w http.ResponseWriter, _ *http.Request, payload []byte) error {
	now := s.now()
	claims := cookieClaims{
		Data: payload,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.cookies.TTL)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return fmt.Errorf("session: sign cookie: %w", err)
	}
	s.cookies.set(w, token)
	return nil
}

// Clear expires the session cookie.
func (s *CookieStore) Clear(w http.ResponseWriter, _ *http.Request) error {
	s.cookies.expire(w)
	return nil
}

// Driver returns "cookie".
func (s *CookieStore) Driver() string { return "cookie" }

// HealthCheck always succeeds; the cookie store has no backend.
func (s *CookieStore) HealthCheck(context.Context) error { return nil }
