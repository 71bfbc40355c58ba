package fill

import (
	"fmt"
	"reflect"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/pitabwire/statepage/internal/control"
)

// Kind is the control kind a state field is bound to.
type Kind int

const (
	KindNone Kind = iota
	KindText
	KindCheck
	KindSelect
	KindRadio
	KindButton
)

// Field-name prefixes recognised by Auto. Longer prefixes must not be shadowed
// by shorter ones earlier in the table.
var prefixKinds = []struct {
	prefix string
	kind   Kind
}{
	{"txt", KindText},
	{"btn", KindButton},
	{"cb", KindCheck},
	{"dd", KindSelect},
	{"rb", KindRadio},
}

// Struct tags read by Auto.
const (
	tagSource = "source"
	tagLabel  = "label"
)

// KindOf returns the control kind for a field id.
func KindOf(id string) Kind {
	for _, pk := range prefixKinds {
		if strings.HasPrefix(id, pk.prefix) {
			return pk.kind
		}
	}
	return KindNone
}

// FieldID returns the template id of a struct field: its json name, or the
// Go name with a lower-case first letter when the field has no json name.
func FieldID(f reflect.StructField) string {
	if tag, ok := f.Tag.Lookup("json"); ok {
		name, _, _ := strings.Cut(tag, ",")
		if name != "" && name != "-" {
			return name
		}
	}
	r, size := utf8.DecodeRuneInString(f.Name)
	return string(unicode.ToLower(r)) + f.Name[size:]
}

// SourceMethod returns the name of the option-list method for a select or
// radio field: the source tag, or Get followed by the Go field name.
func SourceMethod(f reflect.StructField) string {
	if src := f.Tag.Get(tagSource); src != "" {
		return src
	}
	return "Get" + f.Name
}

// Auto binds every prefixed field of *state to a control descriptor:
//
//	txt  text input
//	cb   checkbox (bool fields)
//	dd   dropdown, options from the source method
//	rb   radio group, options from the source method
//	btn  button, label from the label tag
//
// The source method is looked up on the state and called with the current
// field value (or with no arguments). It returns a control.Select[T] or
// control.Radio[T]. Select and radio fields are corrected in place when the
// value is not among the options.
func Auto(b *Builder, state, initial any) error {
	sv := reflect.ValueOf(state)
	if sv.Kind() != reflect.Pointer || sv.IsNil() || sv.Elem().Kind() != reflect.Struct {
		return fmt.Errorf("fill: Auto needs a pointer to a struct, got %T", state)
	}
	sv = sv.Elem()
	iv := reflect.Indirect(reflect.ValueOf(initial))
	if !iv.IsValid() || iv.Type() != sv.Type() {
		return fmt.Errorf("fill: initial state is %T, want %s", initial, sv.Type())
	}

	t := sv.Type()
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		id := FieldID(f)
		cur, base := sv.Field(i), iv.Field(i)

		switch KindOf(id) {
		case KindText:
			c := &control.Text{
				ID:        id,
				Value:     fmt.Sprint(cur.Interface()),
				Label:     f.Tag.Get(tagLabel),
				Highlight: !reflect.DeepEqual(cur.Interface(), base.Interface()),
			}
			b.MarkModified(c.Highlight)
			b.Item(id, c)
		case KindCheck:
			if cur.Kind() != reflect.Bool {
				return fmt.Errorf("fill: checkbox field %s is %s, want bool", f.Name, cur.Type())
			}
			c := Check(b, id, cur.Bool(), base.Bool())
			c.Label = f.Tag.Get(tagLabel)
		case KindSelect, KindRadio:
			binder, err := callSource(sv, f, cur)
			if err != nil {
				return err
			}
			if !binder.Bind(id, cur.Addr().Interface()) {
				return fmt.Errorf("fill: source %s does not match field %s of type %s", SourceMethod(f), f.Name, cur.Type())
			}
			highlight := !reflect.DeepEqual(cur.Interface(), base.Interface())
			binder.Mark(highlight)
			b.MarkModified(highlight)
			b.Item(id, binder)
		case KindButton:
			label := f.Tag.Get(tagLabel)
			if label == "" {
				label = strings.TrimPrefix(id, "btn")
			}
			Button(b, id, label)
		}
	}
	return nil
}

func callSource(sv reflect.Value, f reflect.StructField, cur reflect.Value) (control.Binder, error) {
	name := SourceMethod(f)
	m := sv.Addr().MethodByName(name)
	if !m.IsValid() {
		return nil, fmt.Errorf("fill: field %s has no source method %s", f.Name, name)
	}

	var args []reflect.Value
	switch mt := m.Type(); {
	case mt.NumIn() == 0:
	case mt.NumIn() == 1 && cur.Type().AssignableTo(mt.In(0)):
		args = []reflect.Value{cur}
	default:
		return nil, fmt.Errorf("fill: source %s must take no arguments or a %s", name, cur.Type())
	}
	if m.Type().NumOut() != 1 {
		return nil, fmt.Errorf("fill: source %s must return one value", name)
	}

	out := m.Call(args)[0]
	if out.Kind() != reflect.Pointer {
		p := reflect.New(out.Type())
		p.Elem().Set(out)
		out = p
	}
	binder, ok := out.Interface().(control.Binder)
	if !ok {
		return nil, fmt.Errorf("fill: source %s returns %s, want a select or radio", name, out.Type())
	}
	return binder, nil
}
