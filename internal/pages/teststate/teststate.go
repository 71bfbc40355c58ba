// Package teststate is a demonstration page exercising every control kind:
// two dropdowns stepped by buttons, a checkbox and a text input.
package teststate

import (
	"fmt"

	"github.com/pitabwire/statepage/internal/auth"
	"github.com/pitabwire/statepage/internal/control"
	"github.com/pitabwire/statepage/internal/fill"
	"github.com/pitabwire/statepage/internal/page"
	"github.com/pitabwire/statepage/internal/server"
	"github.com/pitabwire/statepage/model"
)

// Event targets handled by the page.
const (
	TargetEqual    = "_eq"
	TargetLess     = "_lt"
	TargetGreater  = "_gt"
	TargetSaveNote = "_note"
)

const itemCount = 22

// Key selects the initial value of ddMyDropdown.
type Key struct {
	ID *int `json:"id"`
}

// State is the page state.
type State struct {
	Message        string   `json:"message"`
	DdTesting      int      `json:"dd_testing" label:"Testing"`
	TxtTextMessage string   `json:"txt_text_message" label:"Text message"`
	CbTestCheck    bool     `json:"cbTestCheck" label:"Test check"`
	DdMyDropdown   int      `json:"ddMyDropdown" source:"TestingItems" label:"My dropdown"`
	BtnTest        struct{} `json:"-" label:"Test"`
}

// GetDdTesting lists the options of dd_testing.
func (State) GetDdTesting(int) control.Select[int] {
	return dropdown("item")
}

// TestingItems lists the options of ddMyDropdown.
func (State) TestingItems() control.Select[int] {
	return dropdown("testing item")
}

func dropdown(label string) control.Select[int] {
	var dd control.Select[int]
	dd.Item(" --- ", -1)
	for i := 1; i <= itemCount; i++ {
		dd.Item(fmt.Sprintf("%s %d", label, i), i)
	}
	return dd
}

// Page is the test page. Globals, when set, supplies the server note.
type Page struct {
	Globals *server.Globals
}

// GetState returns the pristine state for key.
func (Page) GetState(_ auth.User, key Key) State {
	my := -1
	if key.ID != nil {
		my = *key.ID
	}
	return State{
		DdTesting:      -1,
		TxtTextMessage: "test",
		CbTestCheck:    true,
		DdMyDropdown:   my,
	}
}

// HandleEvent steps dd_testing. Buttons are ignored on a first load, when
// there is no posted state to act on.
func (p Page) HandleEvent(info page.Info[Key, State, auth.User]) page.Result[Key, State] {
	if info.Event.Event != model.EventSubmit {
		return info.Render()
	}
	st := &info.State
	st.Message = ""
	if info.StateWasNone {
		return info.Render()
	}

	switch info.Event.Target {
	case TargetEqual:
		st.TxtTextMessage = fmt.Sprintf("Pressed eq when state is %d", st.DdTesting)
	case TargetLess:
		st.DdTesting--
	case TargetGreater:
		if st.DdTesting == -1 {
			st.Message = "Select a value from the right dropdown first"
		} else {
			st.DdTesting++
		}
	case TargetSaveNote:
		if p.Globals != nil {
			p.Globals.SetNote(st.TxtTextMessage)
		}
	}
	return info.Render()
}

// FillData binds every control from the field-name conventions.
func (p Page) FillData(info *page.Info[Key, State, auth.User], b *fill.Builder) error {
	if err := fill.Auto(b, &info.State, info.InitialState); err != nil {
		return err
	}
	b.Insert("is_admin", info.Auth.IsAdmin())
	if p.Globals != nil {
		b.Insert("note", p.Globals.Note())
		b.Insert("stop_requested", p.Globals.StopRequested())
	}
	return nil
}
