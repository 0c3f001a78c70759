package formtree

import (
	encjson "encoding/json"
	"fmt"
	"mime/multipart"
	"reflect"
	"time"
)

// Marshaler is the interface implemented by types that render themselves as a
// single form string.
type Marshaler interface {
	MarshalForm() (string, error)
}

// UnsupportedTypeError is returned by [ValueOf] when a Go value has no
// representation in a form value tree.
type UnsupportedTypeError struct {
	Type reflect.Type
}

func (e *UnsupportedTypeError) Error() string {
	return "form: unsupported type: " + e.Type.String()
}

var (
	timeType  = reflect.TypeOf(time.Time{})
	valueType = reflect.TypeOf(Value{})
)

// ValueOf classifies a Go value into a [Value]. It accepts the types produced
// by JSON decoding, Go scalars, time.Time, blobs, slices, string-keyed maps and
// structs. Struct fields are named by their "form" tag, then their "json"
// tag, then their Go name. Map keys are visited in sorted order.
func ValueOf(x any) (Value, error) {
	if x == nil {
		return NullValue(), nil
	}
	return classify(reflect.ValueOf(x))
}

// MustValueOf is like [ValueOf] but panics on error. It is intended for tests
// and literals.
func MustValueOf(x any) Value {
	v, err := ValueOf(x)
	if err != nil {
		panic(err)
	}
	return v
}

func classify(rv reflect.Value) (Value, error) {
	if !rv.IsValid() {
		return NullValue(), nil
	}
	if (rv.Kind() == reflect.Pointer || rv.Kind() == reflect.Interface) && rv.IsNil() {
		return NullValue(), nil
	}

	if rv.Type() == valueType {
		return rv.Interface().(Value), nil
	}

	// Leaves with a dedicated representation come before the kind dispatch so
	// that a *Blob is not mistaken for a struct.
	if rv.CanInterface() {
		switch x := rv.Interface().(type) {
		case time.Time:
			return DateValue(x), nil
		case encjson.Number:
			f, err := x.Float64()
			if err != nil {
				return Value{}, fmt.Errorf("form: invalid number %q: %w", x, err)
			}
			return NumberValue(f), nil
		case []*multipart.FileHeader:
			files := make([]*Blob, 0, len(x))
			for _, fh := range x {
				b, err := blobFromFileHeader(fh)
				if err != nil {
					return Value{}, err
				}
				files = append(files, b)
			}
			return FilesValue(files...), nil
		case []*Blob:
			return FilesValue(x...), nil
		}
		if IsBlob(rv.Interface()) {
			b, err := toBlob(rv.Interface())
			if err != nil {
				return Value{}, err
			}
			return BlobValue(b), nil
		}
		if m, ok := asMarshaler(rv); ok {
			s, err := m.MarshalForm()
			if err != nil {
				return Value{}, err
			}
			return StringValue(s), nil
		}
	}

	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface:
		return classify(rv.Elem())
	case reflect.String:
		return StringValue(rv.String()), nil
	case reflect.Bool:
		return BoolValue(rv.Bool()), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return NumberValue(float64(rv.Int())), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return NumberValue(float64(rv.Uint())), nil
	case reflect.Float32, reflect.Float64:
		return NumberValue(rv.Float()), nil
	case reflect.Slice:
		if rv.IsNil() {
			return NullValue(), nil
		}
		return classifySlice(rv)
	case reflect.Array:
		return classifySlice(rv)
	case reflect.Map:
		return classifyMap(rv)
	case reflect.Struct:
		return classifyStruct(rv)
	}
	return Value{}, &UnsupportedTypeError{Type: rv.Type()}
}

func classifySlice(rv reflect.Value) (Value, error) {
	items := make([]Value, rv.Len())
	for i := range items {
		item, err := classify(rv.Index(i))
		if err != nil {
			return Value{}, err
		}
		items[i] = item
	}
	return Value{kind: KindArray, items: items}, nil
}

func classifyMap(rv reflect.Value) (Value, error) {
	if rv.Type().Key().Kind() != reflect.String {
		return Value{}, fmt.Errorf("form: map keys must be strings")
	}
	if rv.IsNil() {
		return NullValue(), nil
	}

	byKey := make(map[string]reflect.Value, rv.Len())
	iter := rv.MapRange()
	for iter.Next() {
		byKey[iter.Key().String()] = iter.Value()
	}

	fields := make([]Field, 0, len(byKey))
	for _, k := range sortedKeys(byKey) {
		f, err := classify(byKey[k])
		if err != nil {
			return Value{}, err
		}
		fields = append(fields, Field{Key: k, Value: f})
	}
	return ObjectValue(fields...), nil
}

func classifyStruct(rv reflect.Value) (Value, error) {
	tags := tags(rv.Type())
	fields := make([]Field, 0, rv.NumField())
	for i := 0; i < rv.NumField(); i++ {
		tag := tags[i]
		if tag.Ignore {
			continue
		}
		fv := rv.Field(i)
		if tag.Omit && isEmptyValue(fv) {
			continue
		}
		f, err := classify(fv)
		if err != nil {
			return Value{}, err
		}
		fields = append(fields, Field{Key: tag.Name, Value: f})
	}
	return ObjectValue(fields...), nil
}

func asMarshaler(v reflect.Value) (Marshaler, bool) {
	if v.CanAddr() {
		if m, ok := v.Addr().Interface().(Marshaler); ok {
			return m, true
		}
	}
	if m, ok := v.Interface().(Marshaler); ok {
		return m, true
	}
	return nil, false
}

func isEmptyValue(v reflect.Value) bool {
	switch v.Kind() {
	case reflect.Array, reflect.Map, reflect.Slice, reflect.String:
		return v.Len() == 0
	case reflect.Bool,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64,
		reflect.Interface, reflect.Pointer:
		return v.IsZero()
	case reflect.Struct:
		if v.Type() == timeType {
			return v.IsZero()
		}
	}
	return false
}
