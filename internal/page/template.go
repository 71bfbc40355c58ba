package page

import (
	"path"
	"reflect"
	"strings"
)

// TemplateName returns the template for page p: its TemplateName method when
// present and non-empty, otherwise the last element of the state type's
// package path.
func TemplateName[K comparable, S, A any](p Page[K, S, A]) string {
	if n, ok := any(p).(TemplateNamer); ok {
		if name := n.TemplateName(); name != "" {
			return name
		}
	}
	return AutoTemplateName[S]()
}

// AutoTemplateName derives a template name from S alone.
func AutoTemplateName[S any]() string {
	t := reflect.TypeOf((*S)(nil)).Elem()
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if pkg := t.PkgPath(); pkg != "" {
		return path.Base(pkg)
	}
	if t.Name() != "" {
		return strings.ToLower(t.Name())
	}
	return "index"
}
