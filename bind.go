package formtree

import (
	"fmt"
	"math"
	"reflect"
	"strconv"
	"time"
)

// InvalidBindError describes an invalid argument passed to [Value.Decode].
// (The argument to [Value.Decode] must be a non-nil pointer.)
type InvalidBindError struct {
	Type reflect.Type
}

func (e *InvalidBindError) Error() string {
	if e.Type == nil {
		return "form: Decode(nil)"
	}

	if e.Type.Kind() != reflect.Pointer {
		return "form: Decode(non-pointer " + e.Type.String() + ")"
	}
	return "form: Decode(nil " + e.Type.String() + ")"
}

// BindError describes a value that cannot be stored in the Go type found at
// its path.
type BindError struct {
	Path  string
	Kind  Kind
	Type  reflect.Type
	Cause error
}

func (e *BindError) Error() string {
	msg := "form: cannot bind " + e.Kind.String() + " at " + strconv.Quote(e.Path) + " into " + e.Type.String()
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *BindError) Unwrap() error { return e.Cause }

// Unmarshaler is the interface implemented by types that can unmarshal a form
// leaf of themselves. Numbers, booleans and dates are handed over in their
// text form.
type Unmarshaler interface {
	UnmarshalForm(string) error
}

var (
	blobPtrType   = reflect.TypeOf((*Blob)(nil))
	blobType      = reflect.TypeOf(Blob{})
	blobSliceType = reflect.TypeOf([]*Blob(nil))
)

// Decode stores v in the value pointed to by dst. Struct fields are matched by
// the same tags [ValueOf] uses; object keys without a matching field are
// ignored. Text leaves are converted to numbers and booleans when the target
// asks for them, so values from a plain form submission bind too. Undefined
// values leave the target untouched and null resets it to its zero value.
//
// If dst is nil or not a pointer, Decode returns an [InvalidBindError].
func (v Value) Decode(dst any) error {
	rv := reflect.ValueOf(dst)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		return &InvalidBindError{reflect.TypeOf(dst)}
	}
	return bind("", v, rv.Elem())
}

func bind(path string, v Value, rv reflect.Value) error {
	if v.kind == KindUndefined {
		return nil
	}
	if v.kind == KindNull {
		rv.Set(reflect.Zero(rv.Type()))
		return nil
	}

	switch rv.Type() {
	case valueType:
		rv.Set(reflect.ValueOf(v))
		return nil
	case timeType:
		return bindTime(path, v, rv)
	case blobPtrType, blobType, blobSliceType:
		return bindBlob(path, v, rv)
	}

	if isLeafKind(v.kind) {
		if u, ok := asUnmarshaler(rv); ok {
			if err := u.UnmarshalForm(leafText(v)); err != nil {
				return &BindError{Path: path, Kind: v.kind, Type: rv.Type(), Cause: err}
			}
			return nil
		}
	}

	switch rv.Kind() {
	case reflect.Pointer:
		if rv.IsNil() {
			rv.Set(reflect.New(rv.Type().Elem()))
		}
		return bind(path, v, rv.Elem())
	case reflect.Interface:
		if rv.NumMethod() != 0 {
			break
		}
		if x := v.Interface(); x != nil {
			rv.Set(reflect.ValueOf(x))
		}
		return nil
	case reflect.Struct:
		return bindStruct(path, v, rv)
	case reflect.Map:
		return bindMap(path, v, rv)
	case reflect.Slice:
		return bindSlice(path, v, rv)
	case reflect.Array:
		return bindArray(path, v, rv)
	default:
		return bindScalar(path, v, rv)
	}
	return &BindError{Path: path, Kind: v.kind, Type: rv.Type()}
}

func bindStruct(path string, v Value, rv reflect.Value) error {
	if v.kind != KindObject {
		return &BindError{Path: path, Kind: v.kind, Type: rv.Type()}
	}
	for _, f := range v.Fields() {
		field := findStructField(rv, f.Key)
		if !field.IsValid() || !field.CanSet() {
			continue
		}
		if err := bind(joinPath(path, f.Key), f.Value, field); err != nil {
			return err
		}
	}
	return nil
}

func bindMap(path string, v Value, rv reflect.Value) error {
	if v.kind != KindObject || rv.Type().Key().Kind() != reflect.String {
		return &BindError{Path: path, Kind: v.kind, Type: rv.Type()}
	}
	if rv.IsNil() {
		rv.Set(reflect.MakeMapWithSize(rv.Type(), v.Len()))
	}

	elemType := rv.Type().Elem()
	for _, f := range v.Fields() {
		if f.Value.IsUndefined() {
			continue
		}
		key := reflect.ValueOf(f.Key).Convert(rv.Type().Key())
		elem := reflect.New(elemType).Elem()
		if existing := rv.MapIndex(key); existing.IsValid() {
			elem.Set(existing)
		}
		if err := bind(joinPath(path, f.Key), f.Value, elem); err != nil {
			return err
		}
		rv.SetMapIndex(key, elem)
	}
	return nil
}

// bindSlice fills a slice from an array or file list. A single leaf binds as a
// one-element slice, since a repeated key that arrived once decodes as a leaf.
func bindSlice(path string, v Value, rv reflect.Value) error {
	items := sliceItems(v)
	if items == nil {
		return &BindError{Path: path, Kind: v.kind, Type: rv.Type()}
	}
	out := reflect.MakeSlice(rv.Type(), len(items), len(items))
	for i, item := range items {
		if err := bind(indexPath(path, i), item, out.Index(i)); err != nil {
			return err
		}
	}
	rv.Set(out)
	return nil
}

func bindArray(path string, v Value, rv reflect.Value) error {
	items := sliceItems(v)
	if items == nil || len(items) > rv.Len() {
		return &BindError{Path: path, Kind: v.kind, Type: rv.Type()}
	}
	for i, item := range items {
		if err := bind(indexPath(path, i), item, rv.Index(i)); err != nil {
			return err
		}
	}
	return nil
}

func sliceItems(v Value) []Value {
	switch v.kind {
	case KindArray:
		return append([]Value{}, v.items...)
	case KindFiles:
		items := make([]Value, len(v.files))
		for i, f := range v.files {
			items[i] = BlobValue(f)
		}
		return items
	case KindObject:
		return nil
	}
	return []Value{v}
}

func bindScalar(path string, v Value, rv reflect.Value) error {
	var err error
	switch rv.Kind() {
	case reflect.String:
		if !isLeafKind(v.kind) {
			return &BindError{Path: path, Kind: v.kind, Type: rv.Type()}
		}
		rv.SetString(leafText(v))
		return nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		err = setInt(rv, v)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		err = setUint(rv, v)
	case reflect.Float32, reflect.Float64:
		err = setFloat(rv, v)
	case reflect.Bool:
		err = setBool(rv, v)
	default:
		err = fmt.Errorf("unsupported type")
	}
	if err != nil {
		return &BindError{Path: path, Kind: v.kind, Type: rv.Type(), Cause: err}
	}
	return nil
}

func setInt(rv reflect.Value, v Value) error {
	switch v.kind {
	case KindNumber:
		if v.num != math.Trunc(v.num) {
			return fmt.Errorf("%v is not an integer", v.num)
		}
		if rv.OverflowInt(int64(v.num)) {
			return fmt.Errorf("%v overflows", v.num)
		}
		rv.SetInt(int64(v.num))
		return nil
	case KindString:
		if v.str == "" {
			rv.SetInt(0)
			return nil
		}
		i, err := strconv.ParseInt(v.str, 10, rv.Type().Bits())
		if err != nil {
			return err
		}
		rv.SetInt(i)
		return nil
	}
	return fmt.Errorf("not a number")
}

func setUint(rv reflect.Value, v Value) error {
	switch v.kind {
	case KindNumber:
		if v.num < 0 || v.num != math.Trunc(v.num) {
			return fmt.Errorf("%v is not an unsigned integer", v.num)
		}
		if rv.OverflowUint(uint64(v.num)) {
			return fmt.Errorf("%v overflows", v.num)
		}
		rv.SetUint(uint64(v.num))
		return nil
	case KindString:
		if v.str == "" {
			rv.SetUint(0)
			return nil
		}
		u, err := strconv.ParseUint(v.str, 10, rv.Type().Bits())
		if err != nil {
			return err
		}
		rv.SetUint(u)
		return nil
	}
	return fmt.Errorf("not a number")
}

func setFloat(rv reflect.Value, v Value) error {
	switch v.kind {
	case KindNumber:
		rv.SetFloat(v.num)
		return nil
	case KindString:
		if v.str == "" {
			rv.SetFloat(0)
			return nil
		}
		f, err := strconv.ParseFloat(v.str, rv.Type().Bits())
		if err != nil {
			return err
		}
		rv.SetFloat(f)
		return nil
	}
	return fmt.Errorf("not a number")
}

func setBool(rv reflect.Value, v Value) error {
	switch v.kind {
	case KindBool:
		rv.SetBool(v.b)
		return nil
	case KindString:
		// An unchecked checkbox sends nothing and a checked one "on".
		switch v.str {
		case "", "off":
			rv.SetBool(false)
			return nil
		case "on":
			rv.SetBool(true)
			return nil
		}
		b, err := strconv.ParseBool(v.str)
		if err != nil {
			return err
		}
		rv.SetBool(b)
		return nil
	}
	return fmt.Errorf("not a boolean")
}

func bindTime(path string, v Value, rv reflect.Value) error {
	switch v.kind {
	case KindDate:
		rv.Set(reflect.ValueOf(v.t))
		return nil
	case KindString:
		t, err := time.Parse(time.RFC3339Nano, v.str)
		if err != nil {
			return &BindError{Path: path, Kind: v.kind, Type: rv.Type(), Cause: err}
		}
		rv.Set(reflect.ValueOf(t))
		return nil
	}
	return &BindError{Path: path, Kind: v.kind, Type: rv.Type()}
}

func bindBlob(path string, v Value, rv reflect.Value) error {
	switch rv.Type() {
	case blobPtrType:
		if v.kind == KindBlob {
			rv.Set(reflect.ValueOf(v.blob))
			return nil
		}
	case blobType:
		if v.kind == KindBlob {
			rv.Set(reflect.ValueOf(*v.blob))
			return nil
		}
	case blobSliceType:
		items := sliceItems(v)
		files := make([]*Blob, 0, len(items))
		for _, item := range items {
			if item.kind != KindBlob {
				return &BindError{Path: path, Kind: item.kind, Type: rv.Type()}
			}
			files = append(files, item.blob)
		}
		if items != nil {
			rv.Set(reflect.ValueOf(files))
			return nil
		}
	}
	return &BindError{Path: path, Kind: v.kind, Type: rv.Type()}
}

func isLeafKind(k Kind) bool {
	switch k {
	case KindString, KindNumber, KindBool, KindDate:
		return true
	}
	return false
}

// leafText renders a scalar leaf the way a form field would carry it.
func leafText(v Value) string {
	switch v.kind {
	case KindString:
		return v.str
	case KindNumber:
		return strconv.FormatFloat(v.num, 'f', -1, 64)
	case KindBool:
		return strconv.FormatBool(v.b)
	case KindDate:
		return v.t.UTC().Format(isoLayout)
	}
	return ""
}

func asUnmarshaler(v reflect.Value) (Unmarshaler, bool) {
	if v.CanAddr() {
		if u, ok := v.Addr().Interface().(Unmarshaler); ok {
			return u, true
		}
	}
	if v.Kind() == reflect.Pointer && v.IsNil() {
		return nil, false
	}
	if u, ok := v.Interface().(Unmarshaler); ok {
		return u, true
	}
	return nil, false
}

func findStructField(v reflect.Value, key string) reflect.Value {
	tags := tags(v.Type())
	for i := 0; i < v.NumField(); i++ {
		if tags[i].Ignore {
			continue
		}
		if tags[i].Name == key {
			return v.Field(i)
		}
	}
	return reflect.Value{}
}
