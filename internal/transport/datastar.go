package transport

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/starfederation/datastar-go/datastar"
	"go.uber.org/zap"

	"github.com/pitabwire/statepage/internal/page"
)

// PatchTemplateSuffix names the fragment template Datastar responses prefer
// over the full page, e.g. teststate_patch for teststate.
const PatchTemplateSuffix = "_patch"

// signalsQueryParam is where Datastar puts signals on GET requests.
const signalsQueryParam = "datastar"

var patchModes = map[string]datastar.ElementPatchMode{
	"outer":   datastar.ElementPatchModeOuter,
	"inner":   datastar.ElementPatchModeInner,
	"replace": datastar.ElementPatchModeReplace,
	"prepend": datastar.ElementPatchModePrepend,
	"append":  datastar.ElementPatchModeAppend,
	"before":  datastar.ElementPatchModeBefore,
	"after":   datastar.ElementPatchModeAfter,
	"remove":  datastar.ElementPatchModeRemove,
}

// PatchMode maps a configured mode name to a Datastar patch mode. Unknown
// names patch the outer element.
func PatchMode(name string) datastar.ElementPatchMode {
	if m, ok := patchModes[name]; ok {
		return m
	}
	return datastar.ElementPatchModeOuter
}

func (b *binding[K, S, A]) serveSSE(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodPost {
		WriteMethodNotAllowed(w, r)
		return
	}
	setTransport(r, TransportDatastar)
	logger := b.logger(r)

	if b.adapter.MaxFormBytes > 0 && r.Body != nil {
		r.Body = http.MaxBytesReader(w, r.Body, b.adapter.MaxFormBytes)
	}
	signals := map[string]any{}
	if err := datastar.ReadSignals(r, &signals); err != nil {
		logger.Debug("signals discarded", zap.Error(err))
		signals = map[string]any{}
	}
	form := FlattenSignals(signals)
	query := r.URL.Query()
	query.Del(signalsQueryParam)

	principal, loginURL, ok := b.provider.FromRequest(pageRequest(r, query))
	if !ok {
		logger.Debug("authentication required", zap.String("login_url", loginURL))
		redirectSSE(w, r, logger, loginURL)
		return
	}
	setSubject(r, principal)

	out, err := b.run(r, logger, principal, query, form)
	if err != nil {
		WriteError(w, withTraceID(r, err))
		return
	}
	// Session cookies must be set before the event stream sends headers.
	b.persistAuth(w, r, logger, out)

	if target, ok := out.Redirect(); ok {
		redirectSSE(w, r, logger, target)
		return
	}
	name := out.Template
	if b.adapter.Engine.Exists(name + PatchTemplateSuffix) {
		name += PatchTemplateSuffix
	}
	html, err := b.adapter.Engine.RenderString(r.Context(), name, out.Data)
	if err != nil {
		logger.Error("page render failed", zap.String("template", name), zap.Error(err))
		WriteError(w, withTraceID(r, err))
		return
	}

	sse := datastar.NewSSE(w, r)
	if err := sse.PatchElements(html,
		datastar.WithSelector(b.adapter.Datastar.Selector),
		datastar.WithMode(PatchMode(b.adapter.Datastar.Mode)),
	); err != nil {
		logger.Debug("element patch not delivered", zap.Error(err))
		return
	}
	if err := sse.MarshalAndPatchSignals(map[string]any{
		page.FieldState:        out.Data[page.DataState+"_json"],
		page.FieldInitialState: out.Data[page.DataInitialState+"_json"],
	}); err != nil {
		logger.Debug("signal patch not delivered", zap.Error(err))
	}
}

// pageRequest returns a shallow copy of r addressed to the page behind the
// Datastar endpoint, so login redirects return to the page and not the stream.
func pageRequest(r *http.Request, query url.Values) *http.Request {
	u := *r.URL
	u.Path = strings.TrimSuffix(u.Path, SSESuffix)
	if u.Path == "" {
		u.Path = "/"
	}
	u.RawPath = ""
	u.RawQuery = query.Encode()
	pr := r.WithContext(r.Context())
	pr.URL = &u
	pr.RequestURI = u.RequestURI()
	return pr
}

func redirectSSE(w http.ResponseWriter, r *http.Request, logger *zap.Logger, target string) {
	sse := datastar.NewSSE(w, r)
	if err := sse.Redirect(target); err != nil {
		logger.Debug("redirect not delivered", zap.Error(err))
	}
}

// FlattenSignals turns Datastar signals into the url-encoded form a browser
// would have posted. Nested objects and arrays become "__" joined paths, with
// array elements keyed by index, so they meet the state overlay. Strings pass
// through and booleans become "true" or "false". Numbers are encoded as JSON.
// Nulls are dropped.
func FlattenSignals(signals map[string]any) url.Values {
	form := url.Values{}
	for k, v := range signals {
		flattenInto(form, k, v)
	}
	return form
}

func flattenInto(form url.Values, name string, v any) {
	switch val := v.(type) {
	case nil:
	case string:
		form.Set(name, val)
	case bool:
		form.Set(name, strconv.FormatBool(val))
	case map[string]any:
		for k, child := range val {
			flattenInto(form, name+page.PathSeparator+k, child)
		}
	case []any:
		for i, child := range val {
			flattenInto(form, name+page.PathSeparator+strconv.Itoa(i), child)
		}
	default:
		raw, err := json.Marshal(val)
		if err != nil {
			return
		}
		form.Set(name, string(raw))
	}
}
