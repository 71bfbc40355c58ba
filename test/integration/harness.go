// Package integration provides a reusable test harness for end-to-end
// testing of the statepage server. It starts the full HTTP stack with the
// bundled pages and templates over a real listener.
package integration

import (
	"context"
	"encoding/json"
	"html"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/pitabwire/statepage/internal/config"
	"github.com/pitabwire/statepage/internal/observability"
	"github.com/pitabwire/statepage/internal/pages"
	"github.com/pitabwire/statepage/internal/pages/login"
	"github.com/pitabwire/statepage/internal/render"
	"github.com/pitabwire/statepage/internal/server"
	"github.com/pitabwire/statepage/internal/session"
	"github.com/pitabwire/statepage/internal/transport"
)

// Credentials accepted by the login page in every harness.
const (
	TestUsername = "ann"
	TestPassword = "s3cret"
)

// TestHarness encapsulates a fully wired statepage instance.
type TestHarness struct {
	t      *testing.T
	server *httptest.Server
	client *http.Client

	// Internal components exposed for advanced test scenarios.
	Config  *config.Config
	Globals *server.Globals
	Store   session.Store
	Engine  *render.Engine
	Logs    *observer.ObservedLogs
}

// HarnessOption configures the test harness.
type HarnessOption func(*config.Config)

// WithSessionDriver selects the session backend. The redis driver is backed
// by an in-process miniredis.
func WithSessionDriver(driver string) HarnessOption {
	return func(c *config.Config) {
		c.Session.Driver = driver
	}
}

// WithRouter selects the chi or servemux router.
func WithRouter(router string) HarnessOption {
	return func(c *config.Config) {
		c.Server.Router = router
	}
}

// WithRemoteStop mounts the remote stop endpoint.
func WithRemoteStop() HarnessOption {
	return func(c *config.Config) {
		c.Server.AllowRemoteStop = true
	}
}

// WithMaxFormBytes caps request bodies.
func WithMaxFormBytes(n int64) HarnessOption {
	return func(c *config.Config) {
		c.Server.MaxFormBytes = n
	}
}

// WithoutDatastar leaves the SSE endpoints unmounted.
func WithoutDatastar() HarnessOption {
	return func(c *config.Config) {
		c.Datastar.Enabled = false
	}
}

// NewTestHarness creates and starts a statepage instance. The server is
// automatically cleaned up when the test completes.
func NewTestHarness(t *testing.T, opts ...HarnessOption) *TestHarness {
	t.Helper()

	cfg := config.Defaults()
	cfg.Templates.Dir = filepath.Join(repoRoot(), "templates")
	cfg.Server.StaticDir = filepath.Join(repoRoot(), "staticfiles")
	cfg.Server.HandlerTimeout = 10 * time.Second
	cfg.Session.Driver = config.SessionMemory
	for _, opt := range opts {
		opt(cfg)
	}

	t.Setenv(login.EnvUsername, TestUsername)
	t.Setenv(login.EnvPassword, TestPassword)
	if cfg.Session.Driver == config.SessionRedis {
		mr := miniredis.RunT(t)
		t.Setenv(cfg.Session.Redis.AddrEnv, mr.Addr())
	}

	core, logs := observer.New(zapcore.DebugLevel)
	logger := zap.New(core)

	store, closeStore, err := session.New(context.Background(), cfg.Session, logger)
	if err != nil {
		t.Fatalf("session store: %v", err)
	}
	t.Cleanup(closeStore)

	h := &TestHarness{
		t:       t,
		Config:  cfg,
		Globals: server.NewGlobals(),
		Store:   store,
		Engine:  render.NewEngine(cfg.Templates, nil),
		Logs:    logs,
	}

	adapter := &transport.Adapter{
		Engine:       h.Engine,
		Sessions:     store,
		Logger:       logger,
		Datastar:     cfg.Datastar,
		MaxFormBytes: cfg.Server.MaxFormBytes,
	}
	handler := transport.New(transport.Dependencies{
		Config: cfg,
		Logger: logger,
		Ready: observability.ReadinessChecks{
			Templates:    h.Engine,
			Stopping:     h.Globals.StopRequested,
			SessionStore: store,
		},
		Stop:   h.Globals.RequestStop,
		Routes: pages.Routes(adapter, cfg.Auth, h.Globals, logger),
	})

	h.server = httptest.NewServer(handler)
	t.Cleanup(h.server.Close)

	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatalf("cookie jar: %v", err)
	}
	h.client = &http.Client{
		Jar:     jar,
		Timeout: 10 * time.Second,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
	return h
}

// BaseURL returns the test server's base URL.
func (h *TestHarness) BaseURL() string {
	return h.server.URL
}

// Get issues a GET with the harness cookie jar. Redirects are not followed.
func (h *TestHarness) Get(path string) *http.Response {
	h.t.Helper()
	return h.Do(http.MethodGet, path, "", nil)
}

// PostForm issues a url-encoded POST.
func (h *TestHarness) PostForm(path string, form url.Values) *http.Response {
	h.t.Helper()
	return h.Do(http.MethodPost, path, "application/x-www-form-urlencoded", strings.NewReader(form.Encode()))
}

// PostSignals issues a Datastar POST carrying signals as JSON.
func (h *TestHarness) PostSignals(path string, signals map[string]any) *http.Response {
	h.t.Helper()
	raw, err := json.Marshal(signals)
	if err != nil {
		h.t.Fatalf("marshal signals: %v", err)
	}
	return h.Do(http.MethodPost, path, "application/json", strings.NewReader(string(raw)))
}

// Do sends a request to the harness server.
func (h *TestHarness) Do(method, path, contentType string, body io.Reader) *http.Response {
	h.t.Helper()
	req, err := http.NewRequestWithContext(context.Background(), method, h.server.URL+path, body)
	if err != nil {
		h.t.Fatalf("create request: %v", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	resp, err := h.client.Do(req)
	if err != nil {
		h.t.Fatalf("%s %s failed: %v", method, path, err)
	}
	return resp
}

// Login signs in with the harness credentials and returns the redirect
// target.
func (h *TestHarness) Login(returnURL string) string {
	h.t.Helper()
	loginPath := h.Config.Auth.LoginURL + "?ReturnUrl=" + url.QueryEscape(returnURL)
	page := h.ReadBody(h.Get(loginPath))

	form := FormState(h.t, page)
	form.Set("txtUsername", TestUsername)
	form.Set("txtPassword", TestPassword)
	form.Set("btnLogin", "Log in")
	resp := h.PostForm(loginPath, form)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusFound {
		h.t.Fatalf("login status = %d, want 302", resp.StatusCode)
	}
	return resp.Header.Get("Location")
}

// ReadBody reads and returns the response body as a string.
func (h *TestHarness) ReadBody(resp *http.Response) string {
	h.t.Helper()
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		h.t.Fatalf("read response body: %v", err)
	}
	return string(data)
}

// AssertStatus checks that the response has the expected status code.
func (h *TestHarness) AssertStatus(t *testing.T, resp *http.Response, expected int) {
	t.Helper()
	if resp.StatusCode != expected {
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		t.Errorf("status = %d, want %d\nbody: %s", resp.StatusCode, expected, string(body))
	}
}

var hiddenState = regexp.MustCompile(`name="(state_json|initial_state_json)" value="([^"]*)"`)

// FormState returns the hidden state fields of a rendered page, ready to be
// posted back.
func FormState(t *testing.T, body string) url.Values {
	t.Helper()
	form := url.Values{}
	for _, m := range hiddenState.FindAllStringSubmatch(body, -1) {
		form.Set(m[1], html.UnescapeString(m[2]))
	}
	if !form.Has("state_json") {
		t.Fatalf("page has no state_json field:\n%s", body)
	}
	return form
}

// repoRoot returns the absolute path of the module root.
func repoRoot() string {
	_, file, _, _ := runtime.Caller(0)
	return filepath.Join(filepath.Dir(file), "..", "..")
}
