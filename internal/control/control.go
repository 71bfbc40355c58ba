// Package control defines the render models for HTML form controls. Each
// descriptor serializes to the field names templates use (id, value,
// labeltext, highlight, ...).
package control

// Text is a text input descriptor.
type Text struct {
	ID        string `json:"id"`
	Value     string `json:"value"`
	Label     string `json:"labeltext"`
	Highlight bool   `json:"highlight"`
	Hidden    bool   `json:"hidden"`
	Disabled  bool   `json:"disabled"`
}

// Button is a submit button descriptor. Buttons are never highlighted by the
// fill helpers.
type Button struct {
	ID        string `json:"id"`
	Value     string `json:"value"`
	Label     string `json:"labeltext"`
	Highlight bool   `json:"highlight"`
	Hidden    bool   `json:"hidden"`
	Disabled  bool   `json:"disabled"`
}

// Check is a checkbox descriptor.
type Check struct {
	ID        string `json:"id"`
	Label     string `json:"labeltext"`
	Checked   bool   `json:"checked"`
	Highlight bool   `json:"highlight"`
	Hidden    bool   `json:"hidden"`
	Disabled  bool   `json:"disabled"`
}

// Binder is implemented by option-list controls that can be bound to a state
// field through reflection.
type Binder interface {
	// Bind sets the control id and applies the selection fallback to the
	// value pointed to by ptr. It reports false when ptr has the wrong type.
	Bind(id string, ptr any) bool
	// Mark sets the highlight flag.
	Mark(highlight bool)
}
