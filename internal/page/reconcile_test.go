package page

import (
	"encoding/json"
	"net/url"
	"testing"

	"github.com/google/go-cmp/cmp"
)

type inner struct {
	X int    `json:"x"`
	Y string `json:"y"`
}

type sample struct {
	A      int     `json:"a"`
	B      string  `json:"b"`
	CbFoo  bool    `json:"cbFoo"`
	Ratio  float64 `json:"ratio"`
	Opt    *int    `json:"opt"`
	Nested inner   `json:"nested"`
	List   []int   `json:"list"`
}

func mustJSON(t *testing.T, v any) string {
	t.Helper()
	raw, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("json.Marshal() error = %v", err)
	}
	return string(raw)
}

func TestReconcile_overlayPrecedence(t *testing.T) {
	type ab struct {
		A int    `json:"a"`
		B string `json:"b"`
	}
	form := url.Values{
		FieldState: {mustJSON(t, ab{A: 1, B: "x"})},
		"a":        {"5"},
	}

	snap := Reconcile[ab](form)
	if snap.State == nil {
		t.Fatal("State = nil, want reconciled state")
	}
	if want := (ab{A: 5, B: "x"}); *snap.State != want {
		t.Errorf("State = %+v, want %+v", *snap.State, want)
	}
	if snap.Overlaid != 1 {
		t.Errorf("Overlaid = %d, want 1", snap.Overlaid)
	}
}

func TestReconcile_roundTrip(t *testing.T) {
	opt := 7
	want := sample{
		A: 3, B: "hello", CbFoo: true, Ratio: 0.25, Opt: &opt,
		Nested: inner{X: 9, Y: "z"},
		List:   []int{1, 2, 3},
	}
	snap := Reconcile[sample](url.Values{FieldState: {mustJSON(t, want)}})
	if snap.State == nil {
		t.Fatal("State = nil")
	}
	if diff := cmp.Diff(want, *snap.State); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
	if snap.Result() != ReconcileRestored {
		t.Errorf("Result() = %q, want %q", snap.Result(), ReconcileRestored)
	}
}

func TestReconcile_checkboxSentinel(t *testing.T) {
	tests := []struct {
		name  string
		prior bool
		form  url.Values
		want  bool
	}{
		{"sentinel true flips false", false, url.Values{"cbFoo_sentinel": {"true"}}, true},
		{"sentinel true keeps true", true, url.Values{"cbFoo_sentinel": {"true"}}, true},
		{"sentinel false clears", true, url.Values{"cbFoo_sentinel": {"false"}}, false},
		{"field wins over sentinel", false, url.Values{"cbFoo": {"on"}, "cbFoo_sentinel": {"false"}}, true},
		{"checked", false, url.Values{"cbFoo": {"checked"}}, true},
		{"unknown word is false", true, url.Values{"cbFoo": {"yes"}}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			form := tt.form
			form.Set(FieldState, mustJSON(t, sample{CbFoo: tt.prior}))
			snap := Reconcile[sample](form)
			if snap.State == nil {
				t.Fatal("State = nil")
			}
			if snap.State.CbFoo != tt.want {
				t.Errorf("CbFoo = %v, want %v", snap.State.CbFoo, tt.want)
			}
		})
	}
}

func TestReconcile_sentinelIgnoredForNonBool(t *testing.T) {
	form := url.Values{
		FieldState:   {mustJSON(t, sample{A: 4})},
		"a_sentinel": {"true"},
	}
	snap := Reconcile[sample](form)
	if snap.State == nil || snap.State.A != 4 {
		t.Errorf("State = %+v, want A unchanged at 4", snap.State)
	}
}

func TestReconcile_badValueKeepsOld(t *testing.T) {
	form := url.Values{
		FieldState: {mustJSON(t, sample{A: 1, Ratio: 1.5})},
		"a":        {"not-a-number"},
		"ratio":    {"2.5"},
	}
	snap := Reconcile[sample](form)
	if snap.State == nil {
		t.Fatal("State = nil")
	}
	if snap.State.A != 1 {
		t.Errorf("A = %d, want 1", snap.State.A)
	}
	if snap.State.Ratio != 2.5 {
		t.Errorf("Ratio = %v, want 2.5", snap.State.Ratio)
	}
}

func TestReconcile_typeMismatchYieldsNone(t *testing.T) {
	form := url.Values{
		FieldState: {mustJSON(t, sample{A: 1})},
		"a":        {`"text"`},
	}
	snap := Reconcile[sample](form)
	if snap.State != nil {
		t.Errorf("State = %+v, want nil", *snap.State)
	}
	if snap.Result() != ReconcileInvalid {
		t.Errorf("Result() = %q, want %q", snap.Result(), ReconcileInvalid)
	}
}

func TestReconcile_nestedAndArrayPaths(t *testing.T) {
	form := url.Values{
		FieldState:  {mustJSON(t, sample{Nested: inner{X: 1, Y: "a"}, List: []int{10, 20}})},
		"nested__x": {"2"},
		"nested__y": {"b"},
		"list__1":   {"21"},
	}
	snap := Reconcile[sample](form)
	if snap.State == nil {
		t.Fatal("State = nil")
	}
	if want := (inner{X: 2, Y: "b"}); snap.State.Nested != want {
		t.Errorf("Nested = %+v, want %+v", snap.State.Nested, want)
	}
	if diff := cmp.Diff([]int{10, 21}, snap.State.List); diff != "" {
		t.Errorf("List mismatch (-want +got):\n%s", diff)
	}
}

func TestReconcile_rootArrayIndicesArePrefixed(t *testing.T) {
	form := url.Values{
		FieldState: {"[1,2,3]"},
		"__1":      {"20"},
		"2":        {"30"},
	}
	snap := Reconcile[[]int](form)
	if snap.State == nil {
		t.Fatal("State = nil")
	}
	if diff := cmp.Diff([]int{1, 20, 3}, *snap.State); diff != "" {
		t.Errorf("State mismatch (-want +got):\n%s", diff)
	}
	if snap.Overlaid != 1 {
		t.Errorf("Overlaid = %d, want 1", snap.Overlaid)
	}
}

func TestReconcile_nullLeafParsesJSON(t *testing.T) {
	form := url.Values{
		FieldState: {mustJSON(t, sample{})},
		"opt":      {"12"},
	}
	snap := Reconcile[sample](form)
	if snap.State == nil || snap.State.Opt == nil || *snap.State.Opt != 12 {
		t.Errorf("Opt not set from form: %+v", snap.State)
	}
}

func TestReconcile_stringTakesRawValue(t *testing.T) {
	form := url.Values{
		FieldState: {mustJSON(t, sample{B: "x"})},
		"b":        {`{"not":"parsed"}`},
	}
	snap := Reconcile[sample](form)
	if snap.State == nil || snap.State.B != `{"not":"parsed"}` {
		t.Errorf("B = %+v, want raw form value", snap.State)
	}
}

func TestReconcile_absentAndMalformed(t *testing.T) {
	tests := []struct {
		name        string
		form        url.Values
		wantState   bool
		wantInitial bool
		wantResult  string
	}{
		{"empty form", url.Values{}, false, false, ReconcileFresh},
		{"malformed state", url.Values{FieldState: {"{"}}, false, false, ReconcileInvalid},
		{"trailing garbage", url.Values{FieldState: {`{"a":1} x`}}, false, false, ReconcileInvalid},
		{"initial only", url.Values{FieldInitialState: {`{"a":1}`}}, false, true, ReconcileFresh},
		{"malformed initial", url.Values{FieldState: {`{"a":1}`}, FieldInitialState: {"nope"}}, true, false, ReconcileRestored},
		{"legacy names", url.Values{"state": {`{"a":1}`}, "initial_state": {`{"a":2}`}}, true, true, ReconcileRestored},
		{"legacy name not an object", url.Values{"state": {"plain"}}, false, false, ReconcileFresh},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			snap := Reconcile[sample](tt.form)
			if (snap.State != nil) != tt.wantState {
				t.Errorf("State present = %v, want %v", snap.State != nil, tt.wantState)
			}
			if (snap.Initial != nil) != tt.wantInitial {
				t.Errorf("Initial present = %v, want %v", snap.Initial != nil, tt.wantInitial)
			}
			if snap.Result() != tt.wantResult {
				t.Errorf("Result() = %q, want %q", snap.Result(), tt.wantResult)
			}
		})
	}
}

func TestReconcile_initialNotAmended(t *testing.T) {
	form := url.Values{
		FieldState:        {mustJSON(t, sample{A: 1})},
		FieldInitialState: {mustJSON(t, sample{A: 1})},
		"a":               {"9"},
	}
	snap := Reconcile[sample](form)
	if snap.Initial == nil || snap.Initial.A != 1 {
		t.Errorf("Initial = %+v, want A=1", snap.Initial)
	}
	if snap.State == nil || snap.State.A != 9 {
		t.Errorf("State = %+v, want A=9", snap.State)
	}
}

func TestAmend_largeIntegersSurvive(t *testing.T) {
	tree, err := DecodeTree(`{"id":9007199254740993}`)
	if err != nil {
		t.Fatalf("DecodeTree() error = %v", err)
	}
	tree, _ = Amend(tree, url.Values{})
	raw, _ := json.Marshal(tree)
	if string(raw) != `{"id":9007199254740993}` {
		t.Errorf("amended = %s, want integer preserved", raw)
	}
}
