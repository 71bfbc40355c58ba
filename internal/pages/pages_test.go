package pages

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/pitabwire/statepage/internal/config"
	"github.com/pitabwire/statepage/internal/pages/login"
	"github.com/pitabwire/statepage/internal/render"
	"github.com/pitabwire/statepage/internal/server"
	"github.com/pitabwire/statepage/internal/session"
	"github.com/pitabwire/statepage/internal/transport"
)

const templatesDir = "../../templates"

func newSite(t *testing.T) (http.Handler, []transport.Route, *render.Engine) {
	t.Helper()
	t.Setenv(login.EnvUsername, "ann")
	t.Setenv(login.EnvPassword, "s3cret")

	cfg := config.Defaults()
	cfg.Templates.Dir = templatesDir
	engine := render.NewEngine(cfg.Templates, nil)
	a := &transport.Adapter{
		Engine:   engine,
		Sessions: session.NewMemoryStore(session.OptionsFrom(cfg.Session)),
		Logger:   zap.NewNop(),
		Datastar: cfg.Datastar,
	}
	routes := Routes(a, cfg.Auth, server.NewGlobals(), zap.NewNop())
	return transport.NewRouter(transport.Dependencies{Config: cfg, Routes: routes}), routes, engine
}

func TestTemplates_deduplicated(t *testing.T) {
	_, routes, _ := newSite(t)
	assert.Equal(t, []string{"login", "logout", "teststate"}, Templates(routes))
}

func TestTemplates_compile(t *testing.T) {
	_, routes, engine := newSite(t)
	names := Templates(routes)
	for _, n := range Templates(routes) {
		if engine.Exists(n + transport.PatchTemplateSuffix) {
			names = append(names, n+transport.PatchTemplateSuffix)
		}
	}
	require.NoError(t, engine.Check(names...))
}

func TestSite_loginRoundTrip(t *testing.T) {
	h, _, _ := newSite(t)

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/teststate?id=2", nil))
	require.Equal(t, http.StatusFound, w.Code)
	loginURL := w.Header().Get("Location")
	assert.Equal(t, "/login?ReturnUrl="+url.QueryEscape("/teststate?id=2"), loginURL)

	w = httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, loginURL, nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `name="txtUsername"`)
	assert.Contains(t, w.Body.String(), `<button type="submit" name="btnLogin" value="Log in">Log in</button>`)

	form := url.Values{
		"state_json":  {`{"txtUsername":"","txtPassword":"","message":null,"return_url":"/teststate?id=2"}`},
		"txtUsername": {"ann"},
		"txtPassword": {"s3cret"},
		"btnLogin":    {"Log in"},
	}
	r := httptest.NewRequest(http.MethodPost, loginURL, strings.NewReader(form.Encode()))
	r.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w = httptest.NewRecorder()
	h.ServeHTTP(w, r)
	require.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/teststate?id=2", w.Header().Get("Location"))
	cookies := w.Result().Cookies()
	require.NotEmpty(t, cookies)

	r = httptest.NewRequest(http.MethodGet, "/teststate?id=2", nil)
	for _, c := range cookies {
		r.AddCookie(c)
	}
	w = httptest.NewRecorder()
	h.ServeHTTP(w, r)
	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, "Signed in as <b>ann</b>")
	assert.Contains(t, body, `<option value="2" selected>testing item 2</option>`)
	assert.Contains(t, body, `<button type="submit" name="btnTest" value="Test">Test</button>`)
}

func TestSite_logoutClearsSession(t *testing.T) {
	h, _, _ := newSite(t)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/logout", nil))
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/", w.Header().Get("Location"))
}
