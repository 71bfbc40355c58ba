package fill

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestBuilder_Insert_normalizesJSON(t *testing.T) {
	type row struct {
		Name  string `json:"name"`
		Count int    `json:"count"`
	}
	b := New()
	b.Insert("row", row{Name: "x", Count: 3})

	got, err := b.Build()
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	want := map[string]any{
		"row":      map[string]any{"name": "x", "count": float64(3)},
		"modified": false,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Build() mismatch (-want +got):\n%s", diff)
	}
}

func TestBuilder_Insert_replaces(t *testing.T) {
	b := New()
	b.Insert("a", 1).Insert("a", 2)

	got, err := b.Build()
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if got["a"] != float64(2) {
		t.Errorf("a = %v, want 2", got["a"])
	}
	if b.Len() != 1 {
		t.Errorf("Len() = %d, want 1", b.Len())
	}
}

func TestBuilder_Build_keepsFuncs(t *testing.T) {
	b := New()
	b.InsertFunc("upper", strings.ToUpper)
	b.InsertFunc2("wrap", func(text string, render RenderFunc) (string, error) {
		s, err := render(text)
		return "[" + s + "]", err
	})

	got, err := b.Build()
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	fn, ok := got["upper"].(Func)
	if !ok {
		t.Fatalf("upper is %T, want Func", got["upper"])
	}
	if fn("abc") != "ABC" {
		t.Errorf("upper(abc) = %q, want ABC", fn("abc"))
	}
	fn2, ok := got["wrap"].(Func2)
	if !ok {
		t.Fatalf("wrap is %T, want Func2", got["wrap"])
	}
	out, err := fn2("x", func(s string) (string, error) { return s + s, nil })
	if err != nil || out != "[xx]" {
		t.Errorf("wrap(x) = %q, %v; want [xx], nil", out, err)
	}
}

func TestBuilder_Build_unserializable(t *testing.T) {
	b := New()
	b.Insert("ch", make(chan int))
	if _, err := b.Build(); err == nil {
		t.Fatal("Build() error = nil, want error for channel value")
	}
}

func TestBuilder_MarkModified_ors(t *testing.T) {
	b := New()
	b.MarkModified(false)
	b.MarkModified(true)
	b.MarkModified(false)
	if !b.Modified() {
		t.Error("Modified() = false, want true")
	}
	got, _ := b.Build()
	if got[ModifiedKey] != true {
		t.Errorf("%s = %v, want true", ModifiedKey, got[ModifiedKey])
	}
}

func TestBuilder_Vector(t *testing.T) {
	b := New()
	b.Vector("rows", func(v *Vec) {
		v.Add(map[string]any{"n": 1})
		v.InsertAt(2, "n", 3)
	})
	b.Vector("rows", func(v *Vec) {
		v.InsertAt(1, "n", 2)
	})

	got, err := b.Build()
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	want := []any{
		map[string]any{"n": float64(1)},
		map[string]any{"n": float64(2)},
		map[string]any{"n": float64(3)},
	}
	if diff := cmp.Diff(want, got["rows"]); diff != "" {
		t.Errorf("rows mismatch (-want +got):\n%s", diff)
	}
}

func TestBuilder_Vector_wrongEntryPanics(t *testing.T) {
	b := New()
	b.Insert("x", 1)
	defer func() {
		if recover() == nil {
			t.Error("Vector() on scalar entry did not panic")
		}
	}()
	b.Vector("x", func(*Vec) {})
}
