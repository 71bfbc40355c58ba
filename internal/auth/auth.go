// Package auth defines how a page obtains its principal and provides the
// reference session-backed implementation.
package auth

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/pitabwire/statepage/internal/observability"
	"github.com/pitabwire/statepage/internal/session"
)

// ReturnURLParam is the login query parameter carrying the page to return to.
const ReturnURLParam = "ReturnUrl"

// AdminGroup is the group that makes a User an administrator.
const AdminGroup = "administrators"

// Provider resolves the principal for a request. When ok is false the
// request is redirected to loginURL instead of running the page.
type Provider[A any] interface {
	FromRequest(r *http.Request) (a A, loginURL string, ok bool)
}

// ProviderFunc adapts a function to Provider.
type ProviderFunc[A any] func(r *http.Request) (A, string, bool)

// FromRequest calls f(r).
func (f ProviderFunc[A]) FromRequest(r *http.Request) (A, string, bool) {
	return f(r)
}

// None is the principal of pages that need no authentication.
type None struct{}

// NoneProvider accepts every request.
type NoneProvider struct{}

// FromRequest always succeeds.
func (NoneProvider) FromRequest(*http.Request) (None, string, bool) {
	return None{}, "", true
}

// User is the principal persisted by the login page.
type User struct {
	Username        string          `json:"username"`
	SuperAdminUntil *time.Time      `json:"super_admin_until,omitempty"`
	Groups          map[string]bool `json:"groups"`
}

// NewUser returns a User belonging to groups.
func NewUser(username string, groups ...string) User {
	u := User{Username: username, Groups: make(map[string]bool, len(groups))}
	for _, g := range groups {
		u.Groups[g] = true
	}
	return u
}

// Subject identifies the user in logs.
func (u User) Subject() string {
	return u.Username
}

// InGroup reports whether the user belongs to group.
func (u User) InGroup(group string) bool {
	return u.Groups[group]
}

// IsAdmin reports membership of AdminGroup.
func (u User) IsAdmin() bool {
	return u.InGroup(AdminGroup)
}

// IsSuperAdmin reports whether elevated rights are active at now.
func (u User) IsSuperAdmin(now time.Time) bool {
	return u.SuperAdminUntil != nil && now.Before(*u.SuperAdminUntil)
}

// Session reads the principal from a session store. Requests without a
// valid session are sent to LoginURL with the original URL as ReturnUrl.
type Session[A any] struct {
	Store    session.Store
	LoginURL string
	Logger   *zap.Logger
}

// FromRequest decodes the session payload into A.
func (p Session[A]) FromRequest(r *http.Request) (A, string, bool) {
	var a A
	logger := observability.RequestLogger(r.Context(), p.logger())

	payload, err := p.Store.Load(r)
	if err != nil {
		if !errors.Is(err, session.ErrNoSession) {
			logger.Warn("session load failed", zap.String("driver", p.Store.Driver()), zap.Error(err))
		}
		return a, LoginRedirect(p.LoginURL, r), false
	}
	if err := json.Unmarshal(payload, &a); err != nil {
		logger.Debug("session payload rejected", zap.Error(err))
		return a, LoginRedirect(p.LoginURL, r), false
	}
	return a, "", true
}

func (p Session[A]) logger() *zap.Logger {
	if p.Logger != nil {
		return p.Logger
	}
	return zap.NewNop()
}

// LoginRedirect returns loginURL with the request URI as ReturnUrl.
func LoginRedirect(loginURL string, r *http.Request) string {
	sep := "?"
	if strings.Contains(loginURL, "?") {
		sep = "&"
	}
	return loginURL + sep + ReturnURLParam + "=" + url.QueryEscape(r.URL.RequestURI())
}
