package page

import (
	"context"
	"encoding/json"
	"net/url"

	"go.uber.org/zap"

	"github.com/pitabwire/statepage/internal/fill"
	"github.com/pitabwire/statepage/internal/observability"
	"github.com/pitabwire/statepage/model"
)

// Template data names injected after FillData. Each value also has a _json
// mirror holding its serialized form.
const (
	DataAuth                = "auth"
	DataState               = "state"
	DataKey                 = "state_key"
	DataKeyAlias            = "key"
	DataInitialState        = "initial_state"
	DataCurrentInitialState = "curr_initial_state"
	DataCurrentInitialAlias = "current_initial_state"
	jsonSuffix              = "_json"
)

// Outcome is the transport-independent result of running a page.
type Outcome[K comparable, S, A any] struct {
	Info     Info[K, S, A]
	Action   Action[K]
	Template string
	// Data is the complete template map. It is nil for redirects.
	Data      map[string]any
	NewAuth   any
	ClearAuth bool
	Reconcile string
	Overlaid  int
}

// Redirect returns the redirect target, if the handler asked for one.
func (o *Outcome[K, S, A]) Redirect() (string, bool) {
	if o.Action.Kind == model.ActionRedirect {
		return o.Action.URL, true
	}
	return "", false
}

// Run executes one request against p: event extraction, state
// reconciliation, key derivation, the event handler, action interpretation
// and data fill. Malformed input never fails the run. Errors are reserved for
// defects in the page itself: a failing FillData (TEMPLATE_ERROR) or values
// that cannot be serialized (SERIALIZATION_ERROR).
func Run[K comparable, S, A any](ctx context.Context, p Page[K, S, A], auth A, query, form url.Values) (out *Outcome[K, S, A], err error) {
	name := TemplateName(p)
	ctx, span := observability.StartSpan(ctx, "page.run", observability.AttrPage.String(name))
	defer func() { observability.EndSpanWithError(span, err) }()
	logger := observability.RequestLogger(ctx, zap.NewNop())

	event := ExtractEvent(form)
	snap := Reconcile[S](form)
	key := DeriveKey(p, auth, query, snap.State)
	current := p.GetState(auth, key)
	info := resolve(auth, event, key, snap, current)

	if rctx := model.RequestContextFrom(ctx); rctx != nil {
		rctx.Page = name
		rctx.Event = event
	}
	span.SetAttributes(
		observability.AttrEvent.String(event.Event),
		observability.AttrEventTarget.String(event.Target),
		observability.AttrReconcile.String(snap.Result()),
	)
	logger.Debug("page state reconciled",
		zap.String("page", name),
		zap.String("event", event.Event),
		zap.String("target", event.Target),
		zap.String("reconcile", snap.Result()),
		zap.Int("overlaid", snap.Overlaid),
		zap.Bool("state_was_none", info.StateWasNone),
		zap.Bool("initial_state_was_none", info.InitialStateWasNone),
	)

	res := handle(p, info)
	out = &Outcome[K, S, A]{
		Action:    res.Action,
		Template:  name,
		NewAuth:   res.NewAuth,
		ClearAuth: res.ClearAuth,
		Reconcile: snap.Result(),
		Overlaid:  snap.Overlaid,
	}
	info = Apply(p, info, res)
	out.Info = info
	span.SetAttributes(observability.AttrAction.String(res.Action.Kind.String()))
	if out.Action.Kind == model.ActionRedirect {
		return out, nil
	}

	b := fill.New()
	if f, ok := any(p).(DataFiller[K, S, A]); ok {
		if err := f.FillData(&info, b); err != nil {
			return nil, model.NewTemplateError(name, err)
		}
	}
	out.Info = info

	data, err := b.Build()
	if err != nil {
		return nil, model.NewSerializationError("template data", err)
	}
	if err := inject(data, info); err != nil {
		return nil, err
	}
	out.Data = data
	return out, nil
}

// DeriveKey asks the page for a key and falls back to KeyFromQuery.
func DeriveKey[K comparable, S, A any](p Page[K, S, A], auth A, query url.Values, state *S) K {
	if kg, ok := any(p).(KeyGetter[K, S, A]); ok {
		if key, ok := kg.GetKey(auth, query, state); ok {
			return key
		}
	}
	return KeyFromQuery[K](query)
}

// resolve fills in absent snapshots: the baseline defaults to the current
// initial state and the state defaults to the baseline.
func resolve[K comparable, S, A any](auth A, event model.Event, key K, snap Snapshot[S], current S) Info[K, S, A] {
	info := Info[K, S, A]{
		Auth:                auth,
		Event:               event,
		Key:                 key,
		CurrentInitialState: current,
	}
	if snap.Initial != nil {
		info.InitialState = *snap.Initial
	} else {
		info.InitialState = current
		info.InitialStateWasNone = true
	}
	if snap.State != nil {
		info.State = *snap.State
	} else {
		info.State = info.InitialState
		info.StateWasNone = true
	}
	return info
}

func handle[K comparable, S, A any](p Page[K, S, A], info Info[K, S, A]) Result[K, S] {
	if h, ok := any(p).(EventHandler[K, S, A]); ok {
		return h.HandleEvent(info)
	}
	return info.Render()
}

// Apply interprets the handler result. ReloadState and SetKey discard the
// handler's state edits and load state and baseline from the key.
func Apply[K comparable, S, A any](p Page[K, S, A], info Info[K, S, A], res Result[K, S]) Info[K, S, A] {
	switch res.Action.Kind {
	case model.ActionSetKey:
		info.Key = res.Action.Key
		fallthrough
	case model.ActionReloadState:
		info.CurrentInitialState = p.GetState(info.Auth, info.Key)
		info.State = info.CurrentInitialState
		info.InitialState = info.CurrentInitialState
	default:
		info.State = res.State
		info.InitialState = res.InitialState
	}
	return info
}

func inject[K comparable, S, A any](data map[string]any, info Info[K, S, A]) error {
	values := []struct {
		name  string
		alias string
		v     any
	}{
		{DataAuth, "", info.Auth},
		{DataState, "", info.State},
		{DataKey, DataKeyAlias, info.Key},
		{DataInitialState, "", info.InitialState},
		{DataCurrentInitialState, DataCurrentInitialAlias, info.CurrentInitialState},
	}
	for _, e := range values {
		raw, err := json.Marshal(e.v)
		if err != nil {
			return model.NewSerializationError(e.name, err)
		}
		var tree any
		if err := json.Unmarshal(raw, &tree); err != nil {
			return model.NewSerializationError(e.name, err)
		}
		data[e.name] = tree
		data[e.name+jsonSuffix] = string(raw)
		if e.alias != "" {
			data[e.alias] = tree
			data[e.alias+jsonSuffix] = string(raw)
		}
	}
	return nil
}
