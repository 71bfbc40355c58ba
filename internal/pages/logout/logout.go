// Package logout clears the session and returns to the home page.
package logout

import (
	"github.com/pitabwire/statepage/internal/auth"
	"github.com/pitabwire/statepage/internal/page"
)

// State is empty; the page never renders.
type State struct{}

// Page is the logout page.
type Page struct{}

func (Page) GetState(auth.None, struct{}) State { return State{} }

func (Page) HandleEvent(info page.Info[struct{}, State, auth.None]) page.Result[struct{}, State] {
	return info.Redirect("/").WithClearAuth()
}
