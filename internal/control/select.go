package control

// SelectItem is a single option of a Select.
type SelectItem[T comparable] struct {
	I        int    `json:"i"`
	Label    string `json:"user_label"`
	Value    T      `json:"value"`
	Selected bool   `json:"selected"`
}

// Select is a dropdown descriptor with an ordered option list.
type Select[T comparable] struct {
	ID            string          `json:"id"`
	Items         []SelectItem[T] `json:"items"`
	SelectedValue T               `json:"selected_value"`
	Highlight     bool            `json:"highlight"`
	Hidden        bool            `json:"hidden"`
	Disabled      bool            `json:"disabled"`
}

// Item appends an option.
func (s *Select[T]) Item(label string, value T) *Select[T] {
	s.Items = append(s.Items, SelectItem[T]{
		I:     len(s.Items),
		Label: label,
		Value: value,
	})
	return s
}

// SetSelectedValue marks the option whose value equals *value as selected.
// When no option matches, the first option is selected and *value is
// overwritten with its value. An empty option list leaves everything as is.
func (s *Select[T]) SetSelectedValue(value *T) {
	found := false
	for i := range s.Items {
		if s.Items[i].Value == *value {
			s.Items[i].Selected = true
			s.SelectedValue = *value
			found = true
		} else {
			s.Items[i].Selected = false
		}
	}
	if found || len(s.Items) == 0 {
		return
	}
	s.Items[0].Selected = true
	*value = s.Items[0].Value
	s.SelectedValue = *value
}

// Selected returns the selected option, if any.
func (s *Select[T]) Selected() (SelectItem[T], bool) {
	for _, it := range s.Items {
		if it.Selected {
			return it, true
		}
	}
	return SelectItem[T]{}, false
}

// Bind implements Binder.
func (s *Select[T]) Bind(id string, ptr any) bool {
	v, ok := ptr.(*T)
	if !ok {
		return false
	}
	s.ID = id
	s.SetSelectedValue(v)
	return true
}

// Mark implements Binder.
func (s *Select[T]) Mark(highlight bool) {
	s.Highlight = highlight
}

// Item1 appends a string option whose value is its label.
func Item1(s *Select[string], label string) *Select[string] {
	return s.Item(label, label)
}

// Radio is a Select rendered as a radio group.
type Radio[T comparable] struct {
	Select[T]
}

// Item appends an option.
func (r *Radio[T]) Item(label string, value T) *Radio[T] {
	r.Select.Item(label, value)
	return r
}
