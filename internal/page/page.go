// Package page implements the stateful page protocol: key derivation, state
// reconciliation against the client-held JSON snapshot, event extraction,
// the event handler contract and action interpretation.
//
// A page is any type with a GetState method. Everything else is an optional
// capability detected at run time:
//
//	GetKey(auth A, query url.Values, state *S) (K, bool)
//	HandleEvent(info Info[K, S, A]) Result[K, S]
//	FillData(info *Info[K, S, A], b *fill.Builder) error
//	TemplateName() string
package page

import (
	"net/url"

	"github.com/pitabwire/statepage/internal/fill"
	"github.com/pitabwire/statepage/model"
)

// Page loads the pristine state for a key.
type Page[K comparable, S, A any] interface {
	GetState(auth A, key K) S
}

// KeyGetter derives the key from the query and the reconciled state. The
// second result is false when the page cannot decide, in which case the key
// is read from the query by field name.
type KeyGetter[K comparable, S, A any] interface {
	GetKey(auth A, query url.Values, state *S) (K, bool)
}

// EventHandler is the page's single state transition. It must not perform
// transport I/O; side effects are expressed through the returned Result.
type EventHandler[K comparable, S, A any] interface {
	HandleEvent(info Info[K, S, A]) Result[K, S]
}

// DataFiller adds template entries for the reconciled state. It may correct
// info.State and info.InitialState in place.
type DataFiller[K comparable, S, A any] interface {
	FillData(info *Info[K, S, A], b *fill.Builder) error
}

// TemplateNamer overrides the template derived from the state type.
type TemplateNamer interface {
	TemplateName() string
}

// Info is the per-request view handed to the event handler and data filler.
type Info[K comparable, S, A any] struct {
	Auth                A
	Event               model.Event
	Key                 K
	State               S
	StateWasNone        bool
	InitialState        S
	InitialStateWasNone bool
	CurrentInitialState S
}

// Render returns a Result that renders the current state and baseline.
func (i Info[K, S, A]) Render() Result[K, S] {
	return Result[K, S]{State: i.State, InitialState: i.InitialState, Action: Render[K]()}
}

// Reload returns a Result that reloads state from the current key.
func (i Info[K, S, A]) Reload() Result[K, S] {
	return i.Render().With(ReloadState[K]())
}

// Redirect returns a Result that redirects to url.
func (i Info[K, S, A]) Redirect(url string) Result[K, S] {
	return i.Render().With(RedirectTo[K](url))
}

// SetKey returns a Result that switches to key and reloads.
func (i Info[K, S, A]) SetKey(key K) Result[K, S] {
	return i.Render().With(SetKey(key))
}

// Result is what an event handler returns.
type Result[K comparable, S any] struct {
	State        S
	InitialState S
	Action       Action[K]
	// NewAuth, when non-nil, is persisted to the session as JSON.
	NewAuth any
	// ClearAuth removes the session principal.
	ClearAuth bool
}

// With returns a copy of r with the given action.
func (r Result[K, S]) With(a Action[K]) Result[K, S] {
	r.Action = a
	return r
}

// WithAuth returns a copy of r that persists auth to the session.
func (r Result[K, S]) WithAuth(auth any) Result[K, S] {
	r.NewAuth = auth
	return r
}

// WithClearAuth returns a copy of r that clears the session.
func (r Result[K, S]) WithClearAuth() Result[K, S] {
	r.ClearAuth = true
	return r
}

// Action is the handler's declared next step.
type Action[K comparable] struct {
	Kind model.ActionKind
	URL  string
	Key  K
}

// Render keeps the handler's state.
func Render[K comparable]() Action[K] {
	return Action[K]{Kind: model.ActionRender}
}

// ReloadState replaces state and baseline with GetState for the current key.
func ReloadState[K comparable]() Action[K] {
	return Action[K]{Kind: model.ActionReloadState}
}

// RedirectTo skips rendering and redirects to url.
func RedirectTo[K comparable](url string) Action[K] {
	return Action[K]{Kind: model.ActionRedirect, URL: url}
}

// SetKey switches to key and reloads.
func SetKey[K comparable](key K) Action[K] {
	return Action[K]{Kind: model.ActionSetKey, Key: key}
}
