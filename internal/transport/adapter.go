package transport

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"

	"go.uber.org/zap"

	"github.com/pitabwire/statepage/internal/auth"
	"github.com/pitabwire/statepage/internal/config"
	"github.com/pitabwire/statepage/internal/observability"
	"github.com/pitabwire/statepage/internal/page"
	"github.com/pitabwire/statepage/internal/render"
	"github.com/pitabwire/statepage/internal/session"
	"github.com/pitabwire/statepage/model"
)

// Transport names recorded on the RequestContext.
const (
	TransportForm     = "form"
	TransportDatastar = "datastar"
)

// SSESuffix is appended to a page path to reach its Datastar endpoint.
const SSESuffix = "/sse"

// Adapter holds the collaborators shared by every bound page.
type Adapter struct {
	Engine       *render.Engine
	Sessions     session.Store
	Metrics      *observability.Metrics
	Logger       *zap.Logger
	Datastar     config.DatastarConfig
	MaxFormBytes int64
}

// Route is one page bound to a path. Form serves full HTML pages and SSE
// serves Datastar element patches for the same page.
type Route struct {
	Path     string
	Template string
	Form     http.Handler
	SSE      http.Handler
}

// SSEPath returns the path of the Datastar endpoint.
func (rt Route) SSEPath() string {
	if rt.Path == "/" {
		return SSESuffix
	}
	return rt.Path + SSESuffix
}

// subjecter is implemented by principals that can name themselves in logs.
type subjecter interface {
	Subject() string
}

// Bind binds p to path. The page is written once and served unchanged by
// both transports.
func Bind[K comparable, S, A any](a *Adapter, path string, p page.Page[K, S, A], provider auth.Provider[A]) Route {
	b := &binding[K, S, A]{
		adapter:  a,
		page:     p,
		provider: provider,
		template: page.TemplateName(p),
	}
	return Route{
		Path:     path,
		Template: b.template,
		Form:     http.HandlerFunc(b.serveForm),
		SSE:      http.HandlerFunc(b.serveSSE),
	}
}

type binding[K comparable, S, A any] struct {
	adapter  *Adapter
	page     page.Page[K, S, A]
	provider auth.Provider[A]
	template string
}

func (b *binding[K, S, A]) serveForm(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodPost {
		WriteMethodNotAllowed(w, r)
		return
	}
	setTransport(r, TransportForm)
	logger := b.logger(r)

	if b.adapter.MaxFormBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, b.adapter.MaxFormBytes)
	}
	form := url.Values{}
	if err := r.ParseForm(); err != nil {
		logger.Debug("form discarded", zap.Error(err))
	} else if r.PostForm != nil {
		form = r.PostForm
	}

	principal, loginURL, ok := b.provider.FromRequest(r)
	if !ok {
		logger.Debug("authentication required", zap.String("login_url", loginURL))
		WriteRedirect(w, r, loginURL)
		return
	}
	setSubject(r, principal)

	out, err := b.run(r, logger, principal, r.URL.Query(), form)
	if err != nil {
		WriteHTMLError(w, withTraceID(r, err))
		return
	}
	b.persistAuth(w, r, logger, out)

	if target, ok := out.Redirect(); ok {
		WriteRedirect(w, r, target)
		return
	}
	var buf bytes.Buffer
	if err := b.adapter.Engine.Render(r.Context(), &buf, out.Template, out.Data); err != nil {
		logger.Error("page render failed", zap.String("template", out.Template), zap.Error(err))
		WriteHTMLError(w, withTraceID(r, err))
		return
	}
	WriteHTML(w, http.StatusOK, buf.Bytes())
}

func (b *binding[K, S, A]) run(r *http.Request, logger *zap.Logger, principal A, query, form url.Values) (*page.Outcome[K, S, A], error) {
	if ce := logger.Check(zap.DebugLevel, "page request"); ce != nil {
		ce.Write(zap.String("page", b.template), zap.Any("form", observability.RedactForm(form, nil)))
	}

	out, err := page.Run(r.Context(), b.page, principal, query, form)
	if err != nil {
		logger.Error("page run failed", zap.String("page", b.template), zap.Error(err))
		return nil, err
	}
	if b.adapter.Metrics != nil {
		b.adapter.Metrics.RecordPageRun(b.template, out.Info.Event.Event, out.Action.Kind.String(), out.Reconcile)
	}
	return out, nil
}

// persistAuth stores the principal the handler returned, or forgets it.
// Failures are logged and the response is still sent: page state lives in
// the client, only the login is lost.
func (b *binding[K, S, A]) persistAuth(w http.ResponseWriter, r *http.Request, logger *zap.Logger, out *page.Outcome[K, S, A]) {
	if !out.ClearAuth && out.NewAuth == nil {
		return
	}
	store := b.adapter.Sessions
	if store == nil {
		logger.Warn("no session store configured, auth change dropped", zap.String("page", b.template))
		return
	}

	var err error
	if out.ClearAuth {
		err = store.Clear(w, r)
	} else {
		var payload []byte
		payload, err = json.Marshal(out.NewAuth)
		if err == nil {
			err = store.Save(w, r, payload)
		}
	}
	if err != nil {
		logger.Error("session update failed",
			zap.String("driver", store.Driver()),
			zap.Error(model.NewSessionError(err)),
		)
	}
}

func (b *binding[K, S, A]) logger(r *http.Request) *zap.Logger {
	fallback := b.adapter.Logger
	if fallback == nil {
		fallback = zap.NewNop()
	}
	return observability.RequestLogger(r.Context(), fallback)
}

func setTransport(r *http.Request, name string) {
	if rctx := model.RequestContextFrom(r.Context()); rctx != nil {
		rctx.Transport = name
	}
}

func setSubject(r *http.Request, principal any) {
	s, ok := principal.(subjecter)
	if !ok {
		return
	}
	if rctx := model.RequestContextFrom(r.Context()); rctx != nil {
		rctx.Subject = s.Subject()
	}
}

// withTraceID stamps the request trace id onto an error envelope so users
// can quote it.
func withTraceID(r *http.Request, err error) error {
	var ee *model.ErrorEnvelope
	if !errors.As(err, &ee) {
		ee = model.NewInternalError()
	}
	if ee.TraceID == "" {
		if rctx := model.RequestContextFrom(r.Context()); rctx != nil {
			ee.TraceID = rctx.TraceID
		}
	}
	return ee
}
