package page

import (
	"net/url"
	"sort"
	"strings"

	"github.com/pitabwire/statepage/model"
)

// Form fields that name the event explicitly.
const (
	FieldEvent       = "event"
	FieldEventTarget = "event_target"
)

// Button naming conventions.
const (
	submitPrefix = "submit"
	buttonPrefix = "btn"
)

// ExtractEvent derives the event from the form. Explicit event and
// event_target fields win. Otherwise a submit<Target> field yields
// (submit, Target), then a btn<Name> field yields (submit, btn<Name>).
// Anything else is (unknown, "").
func ExtractEvent(form url.Values) model.Event {
	ev := model.Event{Event: model.EventUnknown}
	if form.Has(FieldEvent) {
		ev.Event = form.Get(FieldEvent)
	}
	if form.Has(FieldEventTarget) {
		ev.Target = form.Get(FieldEventTarget)
	}
	if ev.Event != model.EventUnknown || ev.Target != "" {
		return ev
	}

	keys := sortedKeys(form)
	for _, k := range keys {
		if strings.HasPrefix(k, submitPrefix) {
			return model.Event{Event: model.EventSubmit, Target: k[len(submitPrefix):]}
		}
	}
	for _, k := range keys {
		if strings.HasPrefix(k, buttonPrefix) {
			return model.Event{Event: model.EventSubmit, Target: k}
		}
	}
	return ev
}

func sortedKeys(form url.Values) []string {
	keys := make([]string, 0, len(form))
	for k := range form {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
