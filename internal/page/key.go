package page

import (
	"net/url"
	"reflect"
	"strconv"
	"strings"
)

// QueryKeyParam is the query parameter read for non-struct keys.
const QueryKeyParam = "key"

// KeyFromQuery maps query parameters onto a key by field name. Struct keys
// match each exported field by json name, then Go name, then Go name ignoring
// case. Other key types read the "key" parameter.
//
// Coercion: strings pass through; numbers that fail to parse become zero;
// booleans are true for "true" or "1"; pointer fields stay nil when absent or
// unparseable. The result is never an error: missing or malformed input
// yields the zero key.
func KeyFromQuery[K any](query url.Values) K {
	var key K
	v := reflect.ValueOf(&key).Elem()

	if v.Kind() != reflect.Struct {
		if raw, ok := lookup(query, QueryKeyParam); ok {
			coerce(v, raw)
		}
		return key
	}

	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() || f.Anonymous {
			continue
		}
		raw, ok := lookupField(query, f)
		if !ok {
			continue
		}
		coerce(v.Field(i), raw)
	}
	return key
}

func lookup(query url.Values, name string) (string, bool) {
	vals, ok := query[name]
	if !ok || len(vals) == 0 {
		return "", false
	}
	return vals[0], true
}

func lookupField(query url.Values, f reflect.StructField) (string, bool) {
	if tag, ok := f.Tag.Lookup("json"); ok {
		name, _, _ := strings.Cut(tag, ",")
		if name == "-" {
			return "", false
		}
		if name != "" {
			if raw, ok := lookup(query, name); ok {
				return raw, true
			}
		}
	}
	if raw, ok := lookup(query, f.Name); ok {
		return raw, true
	}
	for _, k := range sortedKeys(query) {
		if strings.EqualFold(k, f.Name) {
			return lookup(query, k)
		}
	}
	return "", false
}

// coerce stores raw into v and reports whether raw parsed. Values that do not
// parse are left at zero.
func coerce(v reflect.Value, raw string) bool {
	switch v.Kind() {
	case reflect.String:
		v.SetString(raw)
		return true
	case reflect.Bool:
		v.SetBool(raw == "true" || raw == "1")
		return true
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, err := strconv.ParseInt(strings.TrimSpace(raw), 10, v.Type().Bits())
		if err != nil {
			v.SetInt(0)
			return false
		}
		v.SetInt(n)
		return true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		n, err := strconv.ParseUint(strings.TrimSpace(raw), 10, v.Type().Bits())
		if err != nil {
			v.SetUint(0)
			return false
		}
		v.SetUint(n)
		return true
	case reflect.Float32, reflect.Float64:
		n, err := strconv.ParseFloat(strings.TrimSpace(raw), v.Type().Bits())
		if err != nil {
			v.SetFloat(0)
			return false
		}
		v.SetFloat(n)
		return true
	case reflect.Pointer:
		elem := reflect.New(v.Type().Elem())
		if raw == "" || !coerce(elem.Elem(), raw) {
			v.SetZero()
			return false
		}
		v.Set(elem)
		return true
	default:
		return false
	}
}
