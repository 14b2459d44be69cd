package shelf

import (
	"fmt"
	"reflect"
	"strings"
	"time"
)

// fieldValue extracts the value of the named field from a record, which
// may be a struct or a string-keyed map (behind any level of pointers).
// Struct fields match by exact name, then by yaml/json tag, then
// case-insensitively. Pointer-valued fields are dereferenced; a nil
// pointer reports (nil, true) so missing and unset sort alike.
func fieldValue(rec any, name string) (any, bool) {
	v := reflect.ValueOf(rec)
	for v.Kind() == reflect.Pointer {
		if v.IsNil() {
			return nil, false
		}
		v = v.Elem()
	}
	switch v.Kind() {
	case reflect.Struct:
		f, ok := structField(v, name)
		if !ok {
			return nil, false
		}
		return deref(f)
	case reflect.Map:
		kv, ok := mapKey(v.Type(), name)
		if !ok {
			return nil, false
		}
		f := v.MapIndex(kv)
		if !f.IsValid() {
			return nil, false
		}
		return deref(f)
	}
	return nil, false
}

// structField finds the field of v addressed by name, honoring yaml and
// json tags the way the file handlers do.
func structField(v reflect.Value, name string) (reflect.Value, bool) {
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		if f.Name == name || tagName(f, "yaml") == name || tagName(f, "json") == name {
			return v.Field(i), true
		}
	}
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if f.IsExported() && strings.EqualFold(f.Name, name) {
			return v.Field(i), true
		}
	}
	return reflect.Value{}, false
}

func tagName(f reflect.StructField, key string) string {
	tag, ok := f.Tag.Lookup(key)
	if !ok {
		return ""
	}
	name, _, _ := strings.Cut(tag, ",")
	if name == "-" {
		return ""
	}
	return name
}

func mapKey(t reflect.Type, name string) (reflect.Value, bool) {
	kv := reflect.ValueOf(name)
	if !kv.Type().AssignableTo(t.Key()) {
		if !kv.Type().ConvertibleTo(t.Key()) {
			return reflect.Value{}, false
		}
		kv = kv.Convert(t.Key())
	}
	return kv, true
}

func deref(v reflect.Value) (any, bool) {
	for v.Kind() == reflect.Pointer || v.Kind() == reflect.Interface {
		if v.IsNil() {
			return nil, true
		}
		v = v.Elem()
	}
	return v.Interface(), true
}

// setBody stores body into the named field of rec, a non-nil pointer to
// a struct or map record. Nil map records are allocated first.
func setBody(rec any, field, body string) error {
	v := reflect.ValueOf(rec)
	if v.Kind() != reflect.Pointer || v.IsNil() {
		return fmt.Errorf("record must be a non-nil pointer, got %T", rec)
	}
	elem := v.Elem()
	switch elem.Kind() {
	case reflect.Struct:
		f, ok := structField(elem, field)
		if !ok || f.Kind() != reflect.String || !f.CanSet() {
			return fmt.Errorf("record type %s has no settable string field %q", elem.Type(), field)
		}
		f.SetString(body)
		return nil
	case reflect.Map:
		kv, ok := mapKey(elem.Type(), field)
		if !ok {
			return fmt.Errorf("record type %s cannot address key %q", elem.Type(), field)
		}
		if elem.IsNil() {
			elem.Set(reflect.MakeMap(elem.Type()))
		}
		bv := reflect.ValueOf(body)
		if !bv.Type().AssignableTo(elem.Type().Elem()) {
			if !bv.Type().ConvertibleTo(elem.Type().Elem()) {
				return fmt.Errorf("record type %s cannot hold a string body", elem.Type())
			}
			bv = bv.Convert(elem.Type().Elem())
		}
		elem.SetMapIndex(kv, bv)
		return nil
	}
	return fmt.Errorf("record type %s cannot carry a body field", elem.Type())
}

// bodyString extracts the body field from rec for encoding. A missing
// map key yields an empty body; a present non-string value is an error.
func bodyString(rec any, field string) (string, error) {
	v, ok := fieldValue(rec, field)
	if !ok || v == nil {
		return "", nil
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("body field %q holds %T, want string", field, v)
	}
	return s, nil
}

// checkRecordType rejects record types the handlers cannot address.
func checkRecordType(t reflect.Type) error {
	switch t.Kind() {
	case reflect.Struct:
		return nil
	case reflect.Map:
		if t.Key().Kind() != reflect.String {
			return fmt.Errorf("%w: map record type %s needs string keys", ErrConfiguration, t)
		}
		return nil
	}
	return fmt.Errorf("%w: record type %s must be a struct or a string-keyed map", ErrConfiguration, t)
}

// checkBodyField verifies at construction time that the record type can
// carry the configured body field. Map records always can.
func checkBodyField(t reflect.Type, field string) error {
	if t.Kind() == reflect.Map {
		return nil
	}
	zero := reflect.New(t).Elem()
	f, ok := structField(zero, field)
	if !ok || f.Kind() != reflect.String {
		return fmt.Errorf("%w: record type %s has no string field %q for the body", ErrConfiguration, t, field)
	}
	return nil
}

// valueLess orders two dynamic field values for sorting. Nil sorts before
// everything; otherwise strings, booleans, numerics (unified across int,
// uint and float widths) and time.Time compare naturally. Values of
// incomparable or mismatched kinds are treated as equal, which keeps the
// sort stable instead of panicking.
func valueLess(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b != nil
	}
	if at, ok := a.(time.Time); ok {
		bt, ok := b.(time.Time)
		return ok && at.Before(bt)
	}
	av, bv := reflect.ValueOf(a), reflect.ValueOf(b)
	if an, ok := numeric(av); ok {
		bn, bok := numeric(bv)
		return bok && an < bn
	}
	switch {
	case av.Kind() == reflect.String && bv.Kind() == reflect.String:
		return av.String() < bv.String()
	case av.Kind() == reflect.Bool && bv.Kind() == reflect.Bool:
		return !av.Bool() && bv.Bool()
	}
	return false
}

func numeric(v reflect.Value) (float64, bool) {
	switch v.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(v.Int()), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(v.Uint()), true
	case reflect.Float32, reflect.Float64:
		return v.Float(), true
	}
	return 0, false
}
