package model

// Event names produced by event extraction when no explicit event is posted.
const (
	EventSubmit  = "submit"
	EventUnknown = "unknown"
)

// Event describes what triggered a page request: a named UI action and the
// control that invoked it.
type Event struct {
	Event  string `json:"event"`
	Target string `json:"target"`
}

// Is reports whether the event has the given name and target.
func (e Event) Is(event, target string) bool {
	return e.Event == event && e.Target == target
}

// ActionKind identifies what the pipeline does after an event handler returns.
type ActionKind int

const (
	// ActionRender renders the state returned by the handler.
	ActionRender ActionKind = iota
	// ActionReloadState replaces state and baseline with a fresh load of the key.
	ActionReloadState
	// ActionRedirect skips rendering and redirects the client.
	ActionRedirect
	// ActionSetKey switches to a new key and reloads.
	ActionSetKey
)

// String returns the metric/log label for the action kind.
func (k ActionKind) String() string {
	switch k {
	case ActionRender:
		return "render"
	case ActionReloadState:
		return "reload_state"
	case ActionRedirect:
		return "redirect"
	case ActionSetKey:
		return "set_key"
	default:
		return "unknown"
	}
}
