package services

import (
	"fmt"
	"net/url"
	"reflect"
	"strconv"
	"time"
)

// Filters are the query parameters for a list or dashboard call, keyed by
// parameter name. Keys a call does not recognize are ignored.
type Filters map[string]any

// Payload is a write body keyed by canonical field name. Keys a call does not
// recognize are ignored.
type Payload map[string]any

// buildQuery copies the allowed filters into a query string, skipping absent,
// nil and empty values.
func buildQuery(f Filters, allowed ...string) url.Values {
	q := url.Values{}
	for _, key := range allowed {
		v, ok := f[key]
		if !ok {
			continue
		}
		if s, ok := queryValue(v); ok {
			q.Set(key, s)
		}
	}
	return q
}

// pick copies the allowed keys of p into a new payload, skipping nil values.
func pick(p Payload, allowed ...string) Payload {
	out := make(Payload, len(allowed))
	for _, key := range allowed {
		v, ok := p[key]
		if !ok || isNil(v) {
			continue
		}
		out[key] = v
	}
	return out
}

func queryValue(v any) (string, bool) {
	if isNil(v) {
		return "", false
	}
	switch t := v.(type) {
	case string:
		return t, t != ""
	case time.Time:
		if t.IsZero() {
			return "", false
		}
		return t.Format(time.DateOnly), true
	case fmt.Stringer:
		s := t.String()
		return s, s != ""
	case bool:
		return strconv.FormatBool(t), true
	case int:
		return strconv.Itoa(t), true
	case int64:
		return strconv.FormatInt(t, 10), true
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), true
	}

	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Pointer {
		return queryValue(rv.Elem().Interface())
	}
	s := fmt.Sprint(v)
	return s, s != ""
}

func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Interface:
		return rv.IsNil()
	}
	return false
}
