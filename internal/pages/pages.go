// Package pages registers the bundled pages.
package pages

import (
	"go.uber.org/zap"

	"github.com/pitabwire/statepage/internal/auth"
	"github.com/pitabwire/statepage/internal/config"
	"github.com/pitabwire/statepage/internal/pages/login"
	"github.com/pitabwire/statepage/internal/pages/logout"
	"github.com/pitabwire/statepage/internal/pages/teststate"
	"github.com/pitabwire/statepage/internal/server"
	"github.com/pitabwire/statepage/internal/transport"
)

// Routes binds every bundled page. Pages that need a signed-in user read it
// from a.Sessions and send anonymous visitors to cfg.LoginURL.
func Routes(a *transport.Adapter, cfg config.AuthConfig, globals *server.Globals, logger *zap.Logger) []transport.Route {
	users := auth.Session[auth.User]{
		Store:    a.Sessions,
		LoginURL: cfg.LoginURL,
		Logger:   logger,
	}
	open := auth.NoneProvider{}

	return []transport.Route{
		transport.Bind[login.Key, login.State, auth.None](a, cfg.LoginURL, login.FromEnv(), open),
		transport.Bind[struct{}, logout.State, auth.None](a, "/logout", logout.Page{}, open),
		transport.Bind[teststate.Key, teststate.State, auth.User](a, "/teststate", teststate.Page{Globals: globals}, users),
		transport.Bind[teststate.Key, teststate.State, auth.User](a, "/", teststate.Page{Globals: globals}, users),
	}
}

// Templates lists the templates the routes render.
func Templates(routes []transport.Route) []string {
	seen := make(map[string]bool, len(routes))
	var names []string
	for _, rt := range routes {
		if !seen[rt.Template] {
			seen[rt.Template] = true
			names = append(names, rt.Template)
		}
	}
	return names
}
