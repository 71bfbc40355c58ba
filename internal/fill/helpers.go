package fill

import (
	"fmt"

	"github.com/pitabwire/statepage/internal/control"
)

// ModifiedKey is the template name of the page-level modified flag.
const ModifiedKey = "modified"

// Text inserts a text input bound to value. It is highlighted when value
// differs from initial.
func Text[T comparable](b *Builder, id string, value, initial T) *control.Text {
	c := &control.Text{
		ID:        id,
		Value:     fmt.Sprint(value),
		Highlight: value != initial,
	}
	b.MarkModified(c.Highlight)
	b.Item(id, c)
	return c
}

// Check inserts a checkbox bound to value.
func Check(b *Builder, id string, value, initial bool) *control.Check {
	c := &control.Check{
		ID:        id,
		Checked:   value,
		Highlight: value != initial,
	}
	b.MarkModified(c.Highlight)
	b.Item(id, c)
	return c
}

// Select binds sel to *value and inserts it. When *value is not one of the
// options, the first option is selected and *value is overwritten.
func Select[T comparable](b *Builder, id string, sel *control.Select[T], value *T, initial T) *control.Select[T] {
	sel.ID = id
	sel.SetSelectedValue(value)
	sel.Highlight = *value != initial
	b.MarkModified(sel.Highlight)
	b.Item(id, sel)
	return sel
}

// Radio is Select for a radio group.
func Radio[T comparable](b *Builder, id string, r *control.Radio[T], value *T, initial T) *control.Radio[T] {
	Select(b, id, &r.Select, value, initial)
	b.Item(id, r)
	return r
}

// Button inserts a button. Buttons never count as modified.
func Button(b *Builder, id, label string) *control.Button {
	c := &control.Button{ID: id, Value: label}
	b.Item(id, c)
	return c
}
