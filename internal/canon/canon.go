// Package canon maps backend records onto one canonical field naming.
//
// The backend is inconsistent about casing: the same attribute can arrive as
// Tin, TIN or tin, TaxType or taxType. Every response body is decoded through
// Decode, so nothing downstream ever has to look up a field under more than
// one name. Only field names are rewritten; map keys that are data, such as
// the risk levels of a distribution, keep their spelling.
//
// The canonical form is lower camel case. Leading acronyms are lowered as a
// unit: TIN -> tin, VATRate -> vatRate, ID -> id.
package canon

import (
	"bytes"
	"fmt"
	"reflect"
	"strings"
	"unicode"
	"unicode/utf8"

	json "github.com/goccy/go-json"
)

// Key returns the canonical form of a field name.
func Key(name string) string {
	if name == "" {
		return name
	}
	first, _ := utf8.DecodeRuneInString(name)
	if !unicode.IsUpper(first) {
		return name
	}

	runes := []rune(name)
	upper := 0
	for upper < len(runes) && unicode.IsUpper(runes[upper]) {
		upper++
	}

	// lower the whole leading run of capitals, except the last one when it
	// starts the next word (VATRate -> vatRate, not vatrate)
	n := upper
	if upper > 1 && upper < len(runes) && unicode.IsLetter(runes[upper]) {
		n = upper - 1
	}
	for i := 0; i < n; i++ {
		runes[i] = unicode.ToLower(runes[i])
	}
	return string(runes)
}

// Pascal returns the PascalCase alias of a canonical field name (tin -> Tin).
func Pascal(name string) string {
	if name == "" {
		return name
	}
	r, size := utf8.DecodeRuneInString(name)
	return string(unicode.ToUpper(r)) + name[size:]
}

// Precedes reports whether key a wins over key b when both are casings of
// the same canonical field. The canonical spelling wins, then the PascalCase
// alias, then any other casing in byte order.
func Precedes(a, b string) bool {
	if ra, rb := rank(a), rank(b); ra != rb {
		return ra < rb
	}
	return a < b
}

func rank(k string) int {
	ck := Key(k)
	switch k {
	case ck:
		return 0
	case Pascal(ck):
		return 1
	default:
		return 2
	}
}

// canonicalKeys maps each canonical key of m to the key of m it is read from.
func canonicalKeys(m map[string]any) map[string]string {
	chosen := make(map[string]string, len(m))
	for k := range m {
		ck := Key(k)
		if cur, ok := chosen[ck]; !ok || Precedes(k, cur) {
			chosen[ck] = k
		}
	}
	return chosen
}

// Normalize rewrites every object key in a decoded JSON value to its canonical
// form, recursing through nested objects and arrays. It treats every key as a
// field name; use Decode for documents that carry maps keyed by data.
//
// When an object carries the same field under several casings, the value is
// taken from the key that Precedes the others.
func Normalize(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for ck, k := range canonicalKeys(t) {
			out[ck] = Normalize(t[k])
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = Normalize(val)
		}
		return out
	default:
		return v
	}
}

var unmarshalerType = reflect.TypeFor[json.Unmarshaler]()

// fieldInfo is what normalizeAs needs to know about one struct field.
type fieldInfo struct {
	typ reflect.Type

	// record fields hold a whole record as a map and are normalized
	// with Normalize (tag `canon:"record"`)
	record bool
}

// normalizeAs rewrites the keys of v that name fields of t, following t into
// nested structs, slices and map values. Map keys, and anything decoded into
// an interface, are data and are left as they are.
func normalizeAs(v any, t reflect.Type) any {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Implements(unmarshalerType) || reflect.PointerTo(t).Implements(unmarshalerType) {
		return v
	}

	switch t.Kind() {
	case reflect.Struct:
		m, ok := v.(map[string]any)
		if !ok {
			return v
		}
		fields := structFields(t)
		out := make(map[string]any, len(m))
		for ck, k := range canonicalKeys(m) {
			f, known := fields[ck]
			switch {
			case !known:
				out[ck] = m[k]
			case f.record:
				out[ck] = Normalize(m[k])
			default:
				out[ck] = normalizeAs(m[k], f.typ)
			}
		}
		return out
	case reflect.Map:
		m, ok := v.(map[string]any)
		if !ok {
			return v
		}
		out := make(map[string]any, len(m))
		for k, val := range m {
			out[k] = normalizeAs(val, t.Elem())
		}
		return out
	case reflect.Slice, reflect.Array:
		s, ok := v.([]any)
		if !ok {
			return v
		}
		out := make([]any, len(s))
		for i, val := range s {
			out[i] = normalizeAs(val, t.Elem())
		}
		return out
	default:
		return v
	}
}

// structFields indexes the JSON fields of t by canonical name. Fields of
// embedded structs without a JSON name are promoted.
func structFields(t reflect.Type) map[string]fieldInfo {
	fields := make(map[string]fieldInfo, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() && !f.Anonymous {
			continue
		}
		tag := f.Tag.Get("json")
		if tag == "-" {
			continue
		}
		name, _, _ := strings.Cut(tag, ",")

		ft := f.Type
		for ft.Kind() == reflect.Pointer {
			ft = ft.Elem()
		}
		if f.Anonymous && name == "" && ft.Kind() == reflect.Struct {
			for k, fi := range structFields(ft) {
				if _, ok := fields[k]; !ok {
					fields[k] = fi
				}
			}
			continue
		}
		if name == "" {
			name = f.Name
		}
		fields[Key(name)] = fieldInfo{typ: f.Type, record: f.Tag.Get("canon") == "record"}
	}
	return fields
}

// NormalizeJSON returns data with all object keys in canonical form.
// Numbers are preserved exactly.
func NormalizeJSON(data []byte) ([]byte, error) {
	v, err := decodeGeneric(data)
	if err != nil || v == nil {
		return bytes.TrimSpace(data), err
	}

	out, err := json.Marshal(Normalize(v))
	if err != nil {
		return nil, fmt.Errorf("failed to encode normalized JSON: %w", err)
	}
	return out, nil
}

// Decode unmarshals data into out after rewriting the keys that name fields
// of out's type to their canonical form. Keys of Go maps in out are data and
// keep their spelling, so {"riskDistribution":{"HIGH":1}} stays HIGH.
func Decode(data []byte, out any) error {
	v, err := decodeGeneric(data)
	if err != nil || v == nil {
		return err
	}

	normalized, err := json.Marshal(normalizeAs(v, reflect.TypeOf(out)))
	if err != nil {
		return fmt.Errorf("failed to encode normalized JSON: %w", err)
	}
	return json.Unmarshal(normalized, out)
}

// decodeGeneric decodes data into plain maps, slices and json.Numbers.
// Empty input decodes to nil.
func decodeGeneric(data []byte) (any, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, nil
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("failed to decode JSON: %w", err)
	}
	return v, nil
}
