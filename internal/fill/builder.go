// Package fill builds the named-field map a page template is rendered with.
//
// Entries are collected on a Builder and converted in a single Build pass.
// Plain values are normalized through JSON so templates address them by
// their json tag names; functions are kept as render-time lambdas.
package fill

import (
	"encoding/json"
	"fmt"
)

// Func is a one-argument lambda. It receives the raw section text.
type Func func(text string) string

// RenderFunc renders a template fragment against the current context.
type RenderFunc func(text string) (string, error)

// Func2 is a two-argument lambda. It receives the raw section text and the
// continuation that renders it, so it may act before and after rendering.
type Func2 func(text string, render RenderFunc) (string, error)

// Builder collects named template entries.
type Builder struct {
	entries  map[string]any
	order    []string
	modified bool
}

// New returns an empty Builder.
func New() *Builder {
	return &Builder{entries: make(map[string]any)}
}

func (b *Builder) set(name string, v any) {
	if _, ok := b.entries[name]; !ok {
		b.order = append(b.order, name)
	}
	b.entries[name] = v
}

// Insert adds a serializable value under name, replacing any previous entry.
func (b *Builder) Insert(name string, v any) *Builder {
	b.set(name, v)
	return b
}

// Item adds a value under name. Control descriptors are inserted as pointers
// so they can still be adjusted until Build.
func (b *Builder) Item(name string, v any) *Builder {
	return b.Insert(name, v)
}

// InsertFunc adds a one-argument lambda under name.
func (b *Builder) InsertFunc(name string, fn Func) *Builder {
	b.set(name, fn)
	return b
}

// InsertFunc2 adds a two-argument lambda under name.
func (b *Builder) InsertFunc2(name string, fn Func2) *Builder {
	b.set(name, fn)
	return b
}

// Vector adds or extends the list entry name. It panics if name already holds
// a non-list entry, which is a programming error in the page.
func (b *Builder) Vector(name string, fn func(v *Vec)) *Builder {
	vec, ok := b.entries[name].(*Vec)
	if !ok {
		if _, exists := b.entries[name]; exists {
			panic(fmt.Sprintf("fill: entry %q is not a vector", name))
		}
		vec = &Vec{}
		b.set(name, vec)
	}
	fn(vec)
	return b
}

// MarkModified ORs highlight into the page-level modified flag.
func (b *Builder) MarkModified(highlight bool) {
	b.modified = b.modified || highlight
}

// Modified reports whether any bound control was highlighted.
func (b *Builder) Modified() bool {
	return b.modified
}

// Len returns the number of entries.
func (b *Builder) Len() int {
	return len(b.entries)
}

// Build converts the collected entries into the template map. The modified
// flag is added under ModifiedKey unless an entry of that name exists.
func (b *Builder) Build() (map[string]any, error) {
	out := make(map[string]any, len(b.entries)+1)
	for _, name := range b.order {
		v, err := buildValue(b.entries[name])
		if err != nil {
			return nil, fmt.Errorf("fill: entry %q: %w", name, err)
		}
		out[name] = v
	}
	if _, ok := out[ModifiedKey]; !ok {
		out[ModifiedKey] = b.modified
	}
	return out, nil
}

func buildValue(v any) (any, error) {
	switch x := v.(type) {
	case nil:
		return nil, nil
	case Func, Func2:
		return x, nil
	case func(string) string:
		return Func(x), nil
	case *Vec:
		return x.build()
	default:
		return Normalize(v)
	}
}

// Normalize converts v into the generic JSON shape (maps, slices, strings,
// float64, bool, nil).
func Normalize(v any) (any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Vec is a list of maps under one template name.
type Vec struct {
	rows []map[string]any
}

// Add appends a row with the given fields.
func (v *Vec) Add(fields map[string]any) {
	row := make(map[string]any, len(fields))
	for k, val := range fields {
		row[k] = val
	}
	v.rows = append(v.rows, row)
}

// InsertAt sets name on row i, growing the list with empty rows as needed.
func (v *Vec) InsertAt(i int, name string, val any) {
	for len(v.rows) <= i {
		v.rows = append(v.rows, map[string]any{})
	}
	v.rows[i][name] = val
}

// Insert sets name on a new row appended to the list.
func (v *Vec) Insert(name string, val any) {
	v.InsertAt(len(v.rows), name, val)
}

// Len returns the number of rows.
func (v *Vec) Len() int {
	return len(v.rows)
}

func (v *Vec) build() ([]any, error) {
	out := make([]any, 0, len(v.rows))
	for i, row := range v.rows {
		m := make(map[string]any, len(row))
		for k, val := range row {
			bv, err := buildValue(val)
			if err != nil {
				return nil, fmt.Errorf("row %d field %q: %w", i, k, err)
			}
			m[k] = bv
		}
		out = append(out, m)
	}
	return out, nil
}
