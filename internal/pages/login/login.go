// Package login is the sign-in page. Credentials are checked against the
// TEST_USERNAME and TEST_PASSWORD environment variables.
package login

import (
	"crypto/subtle"
	"fmt"
	"os"
	"strings"

	"github.com/pitabwire/statepage/internal/auth"
	"github.com/pitabwire/statepage/internal/fill"
	"github.com/pitabwire/statepage/internal/page"
	"github.com/pitabwire/statepage/model"
)

// Environment variables holding the accepted credentials.
const (
	EnvUsername = "TEST_USERNAME"
	EnvPassword = "TEST_PASSWORD"
)

// Key carries where to go after a successful login. It is read from the
// ReturnUrl query parameter.
type Key struct {
	ReturnURL string `json:"return_url"`
}

// State is the login form.
type State struct {
	TxtUsername string  `json:"txtUsername" label:"Username"`
	TxtPassword string  `json:"txtPassword" label:"Password"`
	Message     *string `json:"message"`
	ReturnURL   string  `json:"return_url"`
}

// Page checks the submitted credentials. An empty Username or Password
// rejects every login.
type Page struct {
	Username string
	Password string
}

// FromEnv returns a Page using the credentials in the environment.
func FromEnv() Page {
	return Page{Username: os.Getenv(EnvUsername), Password: os.Getenv(EnvPassword)}
}

// GetState returns an empty form that returns to key.ReturnURL.
func (Page) GetState(_ auth.None, key Key) State {
	return State{ReturnURL: safeReturnURL(key.ReturnURL)}
}

// HandleEvent signs the user in on submit.
func (p Page) HandleEvent(info page.Info[Key, State, auth.None]) page.Result[Key, State] {
	if info.Event.Event != model.EventSubmit {
		return info.Render()
	}
	st := &info.State
	if p.valid(st.TxtUsername, st.TxtPassword) {
		return info.Redirect(safeReturnURL(st.ReturnURL)).WithAuth(auth.NewUser(st.TxtUsername))
	}

	msg := fmt.Sprintf("Login %s invalid", st.TxtUsername)
	st.Message = &msg
	st.TxtUsername = ""
	st.TxtPassword = ""
	return info.Render()
}

// FillData binds both inputs.
func (p Page) FillData(info *page.Info[Key, State, auth.None], b *fill.Builder) error {
	fill.Text(b, "txtUsername", info.State.TxtUsername, info.InitialState.TxtUsername).Label = "Username"
	fill.Text(b, "txtPassword", info.State.TxtPassword, info.InitialState.TxtPassword).Label = "Password"
	fill.Button(b, "btnLogin", "Log in")
	b.Insert("login_configured", p.Username != "" && p.Password != "")
	return nil
}

func (p Page) valid(username, password string) bool {
	if p.Username == "" || p.Password == "" {
		return false
	}
	userOK := subtle.ConstantTimeCompare([]byte(username), []byte(p.Username)) == 1
	passOK := subtle.ConstantTimeCompare([]byte(password), []byte(p.Password)) == 1
	return userOK && passOK
}

// safeReturnURL keeps redirects on this site.
func safeReturnURL(u string) string {
	if !strings.HasPrefix(u, "/") || strings.HasPrefix(u, "//") || strings.HasPrefix(u, "/\\") {
		return "/"
	}
	return u
}
