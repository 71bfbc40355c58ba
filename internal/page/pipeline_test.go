package page

import (
	"context"
	"encoding/json"
	"errors"
	"net/url"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/pitabwire/statepage/internal/control"
	"github.com/pitabwire/statepage/internal/fill"
	"github.com/pitabwire/statepage/model"
)

type counterKey struct {
	ID int `json:"id"`
}

type testAuth struct {
	User string `json:"user"`
}

type counterState struct {
	Count   int    `json:"count"`
	TxtNote string `json:"txt_note"`
	CbFlag  bool   `json:"cbFlag"`
	DdLevel int    `json:"dd_level"`
}

func (counterState) GetDdLevel() control.Select[int] {
	var s control.Select[int]
	s.Item("one", 1).Item("two", 2).Item("three", 3)
	return s
}

type counterPage struct{}

func (counterPage) GetState(_ testAuth, key counterKey) counterState {
	return counterState{Count: key.ID * 10, TxtNote: "note", DdLevel: 1}
}

func (counterPage) HandleEvent(info Info[counterKey, counterState, testAuth]) Result[counterKey, counterState] {
	switch info.Event.Target {
	case "Inc":
		info.State.Count++
	case "Reload":
		info.State.Count = 999
		return info.Reload()
	case "Jump":
		info.State.Count = 999
		return info.SetKey(counterKey{ID: 7})
	case "Away":
		return info.Redirect("/elsewhere")
	case "Login":
		return info.Render().WithAuth(testAuth{User: "bob"})
	case "Logout":
		return info.Render().WithClearAuth()
	}
	return info.Render()
}

func (counterPage) FillData(info *Info[counterKey, counterState, testAuth], b *fill.Builder) error {
	return fill.Auto(b, &info.State, info.InitialState)
}

func run(t *testing.T, query, form url.Values) *Outcome[counterKey, counterState, testAuth] {
	t.Helper()
	out, err := Run[counterKey, counterState, testAuth](context.Background(), counterPage{}, testAuth{User: "ann"}, query, form)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	return out
}

// postBack builds the form a browser would submit from a rendered outcome.
func postBack(t *testing.T, out *Outcome[counterKey, counterState, testAuth], extra url.Values) url.Values {
	t.Helper()
	form := url.Values{
		FieldState:        {out.Data[DataState+jsonSuffix].(string)},
		FieldInitialState: {out.Data[DataInitialState+jsonSuffix].(string)},
	}
	for k, v := range extra {
		form[k] = v
	}
	return form
}

func highlighted(data map[string]any, id string) bool {
	m, _ := data[id].(map[string]any)
	h, _ := m["highlight"].(bool)
	return h
}

func TestRun_freshLoadHasNoHighlights(t *testing.T) {
	out := run(t, url.Values{"id": {"2"}}, url.Values{})

	if !out.Info.StateWasNone || !out.Info.InitialStateWasNone {
		t.Errorf("was-none flags = %v/%v, want true/true", out.Info.StateWasNone, out.Info.InitialStateWasNone)
	}
	if out.Info.State.Count != 20 {
		t.Errorf("Count = %d, want 20", out.Info.State.Count)
	}
	for _, id := range []string{"txt_note", "cbFlag", "dd_level"} {
		if highlighted(out.Data, id) {
			t.Errorf("%s highlighted on fresh load", id)
		}
	}
	if out.Data[fill.ModifiedKey] != false {
		t.Errorf("modified = %v, want false", out.Data[fill.ModifiedKey])
	}
	if out.Reconcile != ReconcileFresh {
		t.Errorf("Reconcile = %q, want %q", out.Reconcile, ReconcileFresh)
	}
}

func TestRun_dirtyDetection(t *testing.T) {
	first := run(t, url.Values{"id": {"1"}}, url.Values{})
	out := run(t, url.Values{"id": {"1"}}, postBack(t, first, url.Values{
		"txt_note": {"changed"},
		"submitInc": {"+"},
	}))

	if out.Info.StateWasNone {
		t.Error("StateWasNone = true on post-back")
	}
	if out.Info.State.Count != 11 {
		t.Errorf("Count = %d, want 11", out.Info.State.Count)
	}
	if !highlighted(out.Data, "txt_note") {
		t.Error("txt_note not highlighted")
	}
	if highlighted(out.Data, "cbFlag") || highlighted(out.Data, "dd_level") {
		t.Error("unchanged field highlighted")
	}
	if out.Data[fill.ModifiedKey] != true {
		t.Errorf("modified = %v, want true", out.Data[fill.ModifiedKey])
	}
}

func TestRun_reloadIsIdempotent(t *testing.T) {
	first := run(t, url.Values{"id": {"3"}}, url.Values{})
	edited := postBack(t, first, url.Values{"txt_note": {"edited"}, "submitReload": {"r"}})

	once := run(t, url.Values{"id": {"3"}}, edited)
	twice := run(t, url.Values{"id": {"3"}}, postBack(t, once, url.Values{"submitReload": {"r"}}))

	want := counterPage{}.GetState(testAuth{}, counterKey{ID: 3})
	if diff := cmp.Diff(want, once.Info.State); diff != "" {
		t.Errorf("after one reload (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(once.Info.State, twice.Info.State); diff != "" {
		t.Errorf("second reload changed state (-once +twice):\n%s", diff)
	}
	if once.Info.InitialState != want || once.Info.CurrentInitialState != want {
		t.Error("reload did not reset baseline to the fresh state")
	}
}

func TestRun_setKeyReloadsWithNewKey(t *testing.T) {
	first := run(t, url.Values{"id": {"1"}}, url.Values{})
	out := run(t, url.Values{"id": {"1"}}, postBack(t, first, url.Values{"submitJump": {"j"}}))

	if out.Info.Key.ID != 7 {
		t.Errorf("Key.ID = %d, want 7", out.Info.Key.ID)
	}
	if out.Info.State.Count != 70 {
		t.Errorf("Count = %d, want 70 (handler edit discarded)", out.Info.State.Count)
	}
	if out.Data[DataKey+jsonSuffix] != `{"id":7}` {
		t.Errorf("state_key_json = %v, want {\"id\":7}", out.Data[DataKey+jsonSuffix])
	}
}

func TestRun_redirectSkipsFill(t *testing.T) {
	out := run(t, nil, url.Values{"event": {"click"}, "event_target": {"Away"}})

	to, ok := out.Redirect()
	if !ok || to != "/elsewhere" {
		t.Errorf("Redirect() = %q, %v; want /elsewhere, true", to, ok)
	}
	if out.Data != nil {
		t.Errorf("Data = %v, want nil on redirect", out.Data)
	}
}

func TestRun_newAuthAndClear(t *testing.T) {
	out := run(t, nil, url.Values{"submitLogin": {"1"}})
	if diff := cmp.Diff(testAuth{User: "bob"}, out.NewAuth); diff != "" {
		t.Errorf("NewAuth mismatch (-want +got):\n%s", diff)
	}
	if _, ok := out.Redirect(); ok {
		t.Error("login result should render")
	}

	out = run(t, nil, url.Values{"submitLogout": {"1"}})
	if !out.ClearAuth {
		t.Error("ClearAuth = false, want true")
	}
}

func TestRun_injectsTemplateData(t *testing.T) {
	out := run(t, url.Values{"id": {"4"}}, url.Values{})

	for _, k := range []string{
		"auth", "state", "state_key", "key", "initial_state", "curr_initial_state", "current_initial_state",
		"auth_json", "state_json", "state_key_json", "key_json", "initial_state_json", "curr_initial_state_json",
	} {
		if _, ok := out.Data[k]; !ok {
			t.Errorf("template data missing %q", k)
		}
	}

	var got counterState
	if err := json.Unmarshal([]byte(out.Data["state_json"].(string)), &got); err != nil {
		t.Fatalf("state_json does not parse: %v", err)
	}
	if got != out.Info.State {
		t.Errorf("state_json = %+v, want %+v", got, out.Info.State)
	}
	auth := out.Data["auth"].(map[string]any)
	if auth["user"] != "ann" {
		t.Errorf("auth.user = %v, want ann", auth["user"])
	}
}

func TestRun_selectFallbackCorrectsState(t *testing.T) {
	first := run(t, nil, url.Values{})
	out := run(t, nil, postBack(t, first, url.Values{"dd_level": {"99"}}))

	if out.Info.State.DdLevel != 1 {
		t.Errorf("DdLevel = %d, want 1 after fallback", out.Info.State.DdLevel)
	}
}

type failingFillPage struct{ counterPage }

func (failingFillPage) FillData(*Info[counterKey, counterState, testAuth], *fill.Builder) error {
	return errors.New("no source")
}

func TestRun_fillErrorIsTemplateError(t *testing.T) {
	_, err := Run[counterKey, counterState, testAuth](context.Background(), failingFillPage{}, testAuth{}, nil, nil)
	var env *model.ErrorEnvelope
	if !errors.As(err, &env) || env.Code != model.ErrTemplate {
		t.Errorf("Run() error = %v, want %s", err, model.ErrTemplate)
	}
}

type chanState struct {
	C chan int `json:"c"`
}

type chanPage struct{}

func (chanPage) GetState(struct{}, string) chanState { return chanState{C: make(chan int)} }

func TestRun_unserializableStateIsSerializationError(t *testing.T) {
	_, err := Run[string, chanState, struct{}](context.Background(), chanPage{}, struct{}{}, nil, nil)
	var env *model.ErrorEnvelope
	if !errors.As(err, &env) || env.Code != model.ErrSerialization {
		t.Errorf("Run() error = %v, want %s", err, model.ErrSerialization)
	}
}

func TestRun_recordsPageOnRequestContext(t *testing.T) {
	rctx := &model.RequestContext{CorrelationID: "c-1"}
	ctx := model.WithRequestContext(context.Background(), rctx)

	_, err := Run[counterKey, counterState, testAuth](ctx, counterPage{}, testAuth{}, nil, url.Values{"btnGo": {"1"}})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if rctx.Page != "page" {
		t.Errorf("Page = %q, want page", rctx.Page)
	}
	if rctx.Event.Target != "btnGo" {
		t.Errorf("Event.Target = %q, want btnGo", rctx.Event.Target)
	}
}

func TestApply_renderKeepsHandlerState(t *testing.T) {
	info := Info[counterKey, counterState, testAuth]{State: counterState{Count: 1}}
	res := Result[counterKey, counterState]{State: counterState{Count: 5}, Action: Render[counterKey]()}

	got := Apply[counterKey, counterState, testAuth](counterPage{}, info, res)
	if got.State.Count != 5 {
		t.Errorf("Count = %d, want 5", got.State.Count)
	}
}
