package observability

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Histogram bucket definitions.
var (
	httpDurationBuckets   = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10}
	renderDurationBuckets = []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1}
	bodySizeBuckets       = []float64{100, 1024, 10240, 102400, 1048576}
)

// Metrics holds all Prometheus metric instruments for the page server.
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal     *prometheus.CounterVec
	HTTPRequestDuration   *prometheus.HistogramVec
	HTTPRequestSizeBytes  *prometheus.HistogramVec
	HTTPResponseSizeBytes *prometheus.HistogramVec

	// Page metrics
	PageEventsTotal     *prometheus.CounterVec
	PageActionsTotal    *prometheus.CounterVec
	StateReconcileTotal *prometheus.CounterVec

	// Template metrics
	TemplateCompilesTotal *prometheus.CounterVec
	RenderDuration        *prometheus.HistogramVec

	// Session metrics
	SessionWritesTotal *prometheus.CounterVec
}

// InitMetrics creates and registers all Prometheus metric instruments.
func InitMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		// HTTP
		HTTPRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "statepage_http_requests_total",
			Help: "Total number of HTTP requests.",
		}, []string{"method", "path_pattern", "status"}),
		HTTPRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "statepage_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds.",
			Buckets: httpDurationBuckets,
		}, []string{"method", "path_pattern"}),
		HTTPRequestSizeBytes: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "statepage_http_request_size_bytes",
			Help:    "HTTP request body size in bytes.",
			Buckets: bodySizeBuckets,
		}, []string{"method", "path_pattern"}),
		HTTPResponseSizeBytes: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "statepage_http_response_size_bytes",
			Help:    "HTTP response body size in bytes.",
			Buckets: bodySizeBuckets,
		}, []string{"method", "path_pattern"}),

		// Pages
		PageEventsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "statepage_page_events_total",
			Help: "Total number of page events dispatched.",
		}, []string{"page", "event"}),
		PageActionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "statepage_page_actions_total",
			Help: "Total number of page actions returned by event handlers.",
		}, []string{"page", "action"}),
		StateReconcileTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "statepage_state_reconcile_total",
			Help: "Total number of state reconciliations by result.",
		}, []string{"page", "result"}),

		// Templates
		TemplateCompilesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "statepage_template_compiles_total",
			Help: "Total number of template compilations.",
		}, []string{"template", "status"}),
		RenderDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "statepage_render_duration_seconds",
			Help:    "Template render duration in seconds.",
			Buckets: renderDurationBuckets,
		}, []string{"template"}),

		// Sessions
		SessionWritesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "statepage_session_writes_total",
			Help: "Total number of session writes.",
		}, []string{"driver", "status"}),
	}

	reg.MustRegister(
		// HTTP
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPRequestSizeBytes,
		m.HTTPResponseSizeBytes,
		// Pages
		m.PageEventsTotal,
		m.PageActionsTotal,
		m.StateReconcileTotal,
		// Templates
		m.TemplateCompilesTotal,
		m.RenderDuration,
		// Sessions
		m.SessionWritesTotal,
	)

	return m
}

// --- Recording helpers ---

// RecordHTTPRequest records HTTP request metrics.
func (m *Metrics) RecordHTTPRequest(method, pathPattern string, status int, duration time.Duration, reqSize, respSize int) {
	statusStr := strconv.Itoa(status)
	m.HTTPRequestsTotal.WithLabelValues(method, pathPattern, statusStr).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, pathPattern).Observe(duration.Seconds())
	m.HTTPRequestSizeBytes.WithLabelValues(method, pathPattern).Observe(float64(reqSize))
	m.HTTPResponseSizeBytes.WithLabelValues(method, pathPattern).Observe(float64(respSize))
}

// RecordPageRun records the event, action and reconcile result of one page
// invocation.
func (m *Metrics) RecordPageRun(page, event, action, reconcile string) {
	m.PageEventsTotal.WithLabelValues(page, event).Inc()
	m.PageActionsTotal.WithLabelValues(page, action).Inc()
	m.StateReconcileTotal.WithLabelValues(page, reconcile).Inc()
}

// RecordTemplateCompile records a template compilation.
func (m *Metrics) RecordTemplateCompile(template string, err error) {
	m.TemplateCompilesTotal.WithLabelValues(template, statusLabel(err)).Inc()
}

// RecordRender records the duration of a successful render.
func (m *Metrics) RecordRender(template string, duration time.Duration) {
	m.RenderDuration.WithLabelValues(template).Observe(duration.Seconds())
}

// RecordSessionWrite records a session save or clear.
func (m *Metrics) RecordSessionWrite(driver string, err error) {
	m.SessionWritesTotal.WithLabelValues(driver, statusLabel(err)).Inc()
}

func statusLabel(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// --- HTTP Middleware ---

// MetricsMiddleware returns HTTP middleware that records request metrics using
// the router's route pattern (not the actual URL path) to avoid label
// cardinality explosion.
func (m *Metrics) MetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &metricsResponseWriter{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(sw, r)

		duration := time.Since(start)
		pathPattern := routePattern(r)
		reqSize := 0
		if r.ContentLength > 0 {
			reqSize = int(r.ContentLength)
		}

		m.RecordHTTPRequest(r.Method, pathPattern, sw.status, duration, reqSize, sw.bytes)
	})
}

// Handler returns the Prometheus HTTP handler for the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

// HandlerFor returns a Prometheus HTTP handler for the given gatherer.
func HandlerFor(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

// routePattern extracts the route pattern from chi's route context or, for
// http.ServeMux, from Request.Pattern. Falls back to the raw URL path if no
// pattern is found.
func routePattern(r *http.Request) string {
	rctx := chi.RouteContext(r.Context())
	if rctx == nil {
		if r.Pattern != "" {
			return r.Pattern
		}
		return r.URL.Path
	}
	pattern := strings.Join(rctx.RoutePatterns, "")
	// chi route patterns have trailing /*, remove it.
	pattern = strings.TrimSuffix(pattern, "/*")
	if pattern == "" {
		return r.URL.Path
	}
	return pattern
}

// metricsResponseWriter wraps http.ResponseWriter to capture status and bytes.
type metricsResponseWriter struct {
	http.ResponseWriter
	status  int
	bytes   int
	written bool
}

func (w *metricsResponseWriter) WriteHeader(code int) {
	if !w.written {
		w.status = code
		w.written = true
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *metricsResponseWriter) Write(b []byte) (int, error) {
	if !w.written {
		w.written = true
	}
	n, err := w.ResponseWriter.Write(b)
	w.bytes += n
	return n, err
}

// Flush forwards to the wrapped writer so SSE streams are not buffered.
func (w *metricsResponseWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (w *metricsResponseWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}
