package page

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/url"
	"strconv"
	"strings"
)

// Form fields carrying the client-held snapshots.
const (
	FieldState        = "state_json"
	FieldInitialState = "initial_state_json"

	legacyFieldState        = "state"
	legacyFieldInitialState = "initial_state"
)

// Overlay naming.
const (
	PathSeparator  = "__"
	SentinelSuffix = "_sentinel"
)

// Reconcile results, used as metric labels.
const (
	ReconcileFresh    = "fresh"
	ReconcileRestored = "restored"
	ReconcileInvalid  = "invalid"
)

var errTrailingData = errors.New("page: trailing data after JSON value")

// Snapshot is the typed view of the client-held state. A nil pointer means the
// corresponding blob was absent or unusable.
type Snapshot[S any] struct {
	State   *S
	Initial *S
	// Overlaid is the number of leaves replaced from form fields.
	Overlaid int
	// Invalid is set when a state blob was posted but could not be used.
	Invalid bool
}

// Result returns the reconcile outcome label.
func (s Snapshot[S]) Result() string {
	switch {
	case s.State != nil:
		return ReconcileRestored
	case s.Invalid:
		return ReconcileInvalid
	default:
		return ReconcileFresh
	}
}

// Reconcile parses state_json, overlays form fields onto its leaves by path,
// and decodes the result into S. initial_state_json is decoded as is. Parse
// and decode failures yield nil rather than partial values.
func Reconcile[S any](form url.Values) Snapshot[S] {
	var snap Snapshot[S]

	if raw, ok := stateBlob(form, FieldState, legacyFieldState); ok {
		tree, err := DecodeTree(raw)
		if err == nil {
			var n int
			tree, n = Amend(tree, form)
			snap.Overlaid = n
			if s, err := decodeInto[S](tree); err == nil {
				snap.State = &s
			}
		}
		snap.Invalid = snap.State == nil
	}

	if raw, ok := stateBlob(form, FieldInitialState, legacyFieldInitialState); ok {
		var s S
		if err := json.Unmarshal([]byte(raw), &s); err == nil {
			snap.Initial = &s
		} else {
			snap.Invalid = true
		}
	}
	return snap
}

// stateBlob returns the named field, falling back to the legacy name when it
// holds a JSON object.
func stateBlob(form url.Values, field, legacy string) (string, bool) {
	if form.Has(field) {
		return form.Get(field), true
	}
	if raw := strings.TrimSpace(form.Get(legacy)); strings.HasPrefix(raw, "{") {
		return raw, true
	}
	return "", false
}

// DecodeTree parses a single JSON value into its generic form. Numbers are
// kept as json.Number so integers survive the round trip.
func DecodeTree(raw string) (any, error) {
	dec := json.NewDecoder(strings.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, errTrailingData
	}
	return v, nil
}

func decodeInto[S any](tree any) (S, error) {
	var s S
	raw, err := json.Marshal(tree)
	if err != nil {
		return s, err
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	err = dec.Decode(&s)
	return s, err
}

// Amend overlays form values onto the leaves of tree and returns the amended
// tree with the number of replaced leaves. A leaf at path p is replaced when
// the form has p:
//
//	bool    true for "true", "on" or "checked", false otherwise
//	string  the raw value
//	other   the raw value parsed as JSON; skipped when it does not parse
//
// When the form has only p_sentinel, bool leaves take the sentinel's value.
// This is how an unchecked checkbox, which posts nothing, is told apart from
// a field that was not on the page.
func Amend(tree any, form url.Values) (any, int) {
	return amend("", tree, form)
}

func amend(path string, node any, form url.Values) (any, int) {
	switch n := node.(type) {
	case map[string]any:
		total := 0
		for k, child := range n {
			v, c := amend(joinPath(path, k), child, form)
			n[k] = v
			total += c
		}
		return n, total
	case []any:
		total := 0
		for i, child := range n {
			v, c := amend(path+PathSeparator+strconv.Itoa(i), child, form)
			n[i] = v
			total += c
		}
		return n, total
	default:
		if v, ok := amendLeaf(path, n, form); ok {
			return v, 1
		}
		return node, 0
	}
}

func amendLeaf(path string, leaf any, form url.Values) (any, bool) {
	if form.Has(path) {
		raw := form.Get(path)
		switch leaf.(type) {
		case bool:
			return isChecked(raw), true
		case string:
			return raw, true
		default:
			parsed, err := DecodeTree(raw)
			if err != nil {
				return leaf, false
			}
			return parsed, true
		}
	}
	if _, ok := leaf.(bool); ok && form.Has(path+SentinelSuffix) {
		return isChecked(form.Get(path + SentinelSuffix)), true
	}
	return leaf, false
}

func joinPath(prefix, name string) string {
	if prefix == "" {
		return name
	}
	return prefix + PathSeparator + name
}

func isChecked(raw string) bool {
	switch raw {
	case "true", "on", "checked":
		return true
	default:
		return false
	}
}
