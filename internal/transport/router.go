package transport

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/pitabwire/statepage/internal/config"
	"github.com/pitabwire/statepage/internal/observability"
)

// StopPath is where a remote stop is requested when enabled.
const StopPath = "/_statepage/stop"

// Dependencies holds all injected dependencies for the HTTP transport layer.
type Dependencies struct {
	Config  *config.Config
	Logger  *zap.Logger
	Metrics *observability.Metrics
	// MetricsHandler serves the scrape endpoint. Nil disables it.
	MetricsHandler http.Handler
	Ready          observability.ReadinessChecks
	// Stop requests a graceful shutdown. It is mounted only when
	// server.allow_remote_stop is set.
	Stop   func()
	Routes []Route
}

// New returns the router selected by server.router.
func New(deps Dependencies) http.Handler {
	if deps.Config.Server.Router == config.RouterServeMux {
		return NewServeMux(deps)
	}
	return NewRouter(deps)
}

// NewRouter creates a chi.Router with the middleware pipeline, the
// operational endpoints and every bound page.
func NewRouter(deps Dependencies) chi.Router {
	r := chi.NewRouter()
	for _, mw := range middlewares(deps) {
		r.Use(mw)
	}

	r.Get("/healthz", observability.HandleHealth())
	r.Get("/readyz", observability.HandleReady(deps.Ready))
	if deps.MetricsHandler != nil {
		r.Method(http.MethodGet, deps.Config.Observability.Metrics.Path, deps.MetricsHandler)
	}
	if stop := stopHandler(deps); stop != nil {
		r.Post(StopPath, stop)
	}
	if dir := deps.Config.Server.StaticDir; dir != "" {
		r.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.Dir(dir))))
	}

	for _, rt := range deps.Routes {
		r.Handle(rt.Path, rt.Form)
		if deps.Config.Datastar.Enabled {
			r.Handle(rt.SSEPath(), rt.SSE)
		}
	}
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		WriteNotFound(w, "no page at "+r.URL.Path)
	})
	return r
}

// NewServeMux creates the same routing table on http.ServeMux.
func NewServeMux(deps Dependencies) http.Handler {
	mux := http.NewServeMux()

	mux.Handle("GET /healthz", observability.HandleHealth())
	mux.Handle("GET /readyz", observability.HandleReady(deps.Ready))
	if deps.MetricsHandler != nil {
		mux.Handle("GET "+deps.Config.Observability.Metrics.Path, deps.MetricsHandler)
	}
	if stop := stopHandler(deps); stop != nil {
		mux.Handle("POST "+StopPath, stop)
	}
	if dir := deps.Config.Server.StaticDir; dir != "" {
		mux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServer(http.Dir(dir))))
	}

	for _, rt := range deps.Routes {
		mux.Handle(exact(rt.Path), rt.Form)
		if deps.Config.Datastar.Enabled {
			mux.Handle(exact(rt.SSEPath()), rt.SSE)
		}
	}
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		WriteNotFound(w, "no page at "+r.URL.Path)
	})

	mws := middlewares(deps)
	var h http.Handler = mux
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}

// exact keeps a trailing-slash page from swallowing its subtree.
func exact(path string) string {
	if path == "/" {
		return "/{$}"
	}
	if path[len(path)-1] == '/' {
		return path + "{$}"
	}
	return path
}

// middlewares returns the chain applied to every request, outermost first.
func middlewares(deps Dependencies) []func(http.Handler) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	chain := []func(http.Handler) http.Handler{
		Recovery(logger),
		RequestID,
		SecurityHeaders,
		observability.TracingMiddleware,
	}
	if deps.Metrics != nil {
		chain = append(chain, deps.Metrics.MetricsMiddleware)
	}
	return append(chain,
		BuildRequestContext(logger),
		HandlerTimeout(deps.Config.Server.HandlerTimeout),
		RequestLogging(logger),
	)
}

func stopHandler(deps Dependencies) http.HandlerFunc {
	if !deps.Config.Server.AllowRemoteStop || deps.Stop == nil {
		return nil
	}
	return func(w http.ResponseWriter, r *http.Request) {
		observability.RequestLogger(r.Context(), deps.Logger).Warn("remote stop requested",
			zap.String("remote_addr", r.RemoteAddr))
		deps.Stop()
		WriteJSON(w, http.StatusAccepted, map[string]string{"status": "stopping"})
	}
}
