package formtree

import (
	"bytes"
	"sort"
	"strconv"
	"time"

	"github.com/goccy/go-json"
)

// Kind identifies which variant a [Value] holds.
type Kind int

const (
	KindUndefined Kind = iota
	KindNull
	KindString
	KindNumber
	KindBool
	KindDate
	KindBlob
	KindFiles
	KindArray
	KindObject
)

var kindNames = [...]string{
	KindUndefined: "undefined",
	KindNull:      "null",
	KindString:    "string",
	KindNumber:    "number",
	KindBool:      "bool",
	KindDate:      "date",
	KindBlob:      "blob",
	KindFiles:     "files",
	KindArray:     "array",
	KindObject:    "object",
}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return "kind(" + strconv.Itoa(int(k)) + ")"
	}
	return kindNames[k]
}

// isoLayout matches the output of an ECMAScript Date's toISOString.
const isoLayout = "2006-01-02T15:04:05.000Z"

// Value is a node of a form value tree. The zero Value is undefined, which is
// never written to the transport.
//
// Values are immutable once constructed; the accessors returning slices hand
// out copies.
type Value struct {
	kind   Kind
	str    string
	num    float64
	b      bool
	t      time.Time
	blob   *Blob
	files  []*Blob
	items  []Value
	keys   []string
	fields map[string]Value
}

// Field is a single key of an object value.
type Field struct {
	Key   string
	Value Value
}

// NullValue returns the null value.
func NullValue() Value { return Value{kind: KindNull} }

// StringValue returns a string leaf.
func StringValue(s string) Value { return Value{kind: KindString, str: s} }

// NumberValue returns a number leaf.
func NumberValue(f float64) Value { return Value{kind: KindNumber, num: f} }

// BoolValue returns a boolean leaf.
func BoolValue(b bool) Value { return Value{kind: KindBool, b: b} }

// DateValue returns a date leaf.
func DateValue(t time.Time) Value { return Value{kind: KindDate, t: t} }

// BlobValue returns a binary leaf. A nil blob yields null.
func BlobValue(b *Blob) Value {
	if b == nil {
		return NullValue()
	}
	return Value{kind: KindBlob, blob: b}
}

// FilesValue returns a file list. File lists are written as one pair per file
// under the same key.
func FilesValue(files ...*Blob) Value {
	fs := make([]*Blob, 0, len(files))
	for _, f := range files {
		if f != nil {
			fs = append(fs, f)
		}
	}
	return Value{kind: KindFiles, files: fs}
}

// ArrayValue returns an ordered sequence of values.
func ArrayValue(items ...Value) Value {
	return Value{kind: KindArray, items: append([]Value{}, items...)}
}

// ObjectValue returns an object with the given fields in order. A repeated key
// keeps its first position and its last value. Undefined fields are kept so
// that encoding can omit them.
func ObjectValue(fields ...Field) Value {
	v := Value{kind: KindObject, fields: make(map[string]Value, len(fields))}
	for _, f := range fields {
		if _, ok := v.fields[f.Key]; !ok {
			v.keys = append(v.keys, f.Key)
		}
		v.fields[f.Key] = f.Value
	}
	return v
}

// Kind reports the variant held by v.
func (v Value) Kind() Kind { return v.kind }

// IsUndefined reports whether v is the zero Value.
func (v Value) IsUndefined() bool { return v.kind == KindUndefined }

// Str returns the string of a string leaf, or "".
func (v Value) Str() string { return v.str }

// Float returns the number of a number leaf, or 0.
func (v Value) Float() float64 { return v.num }

// Bool returns the boolean of a bool leaf, or false.
func (v Value) Bool() bool { return v.b }

// Time returns the time of a date leaf.
func (v Value) Time() time.Time { return v.t }

// Blob returns the payload of a blob leaf, or nil.
func (v Value) Blob() *Blob { return v.blob }

// Files returns a copy of a file list.
func (v Value) Files() []*Blob { return append([]*Blob(nil), v.files...) }

// Len returns the number of elements of an array or file list, or the number
// of keys of an object.
func (v Value) Len() int {
	switch v.kind {
	case KindArray:
		return len(v.items)
	case KindFiles:
		return len(v.files)
	case KindObject:
		return len(v.keys)
	}
	return 0
}

// Index returns the i'th element of an array. It panics if i is out of range.
func (v Value) Index(i int) Value { return v.items[i] }

// Items returns a copy of the elements of an array.
func (v Value) Items() []Value { return append([]Value(nil), v.items...) }

// Keys returns the keys of an object in insertion order.
func (v Value) Keys() []string { return append([]string(nil), v.keys...) }

// Get returns the field of an object.
func (v Value) Get(key string) (Value, bool) {
	f, ok := v.fields[key]
	return f, ok
}

// Fields returns the fields of an object in insertion order.
func (v Value) Fields() []Field {
	out := make([]Field, 0, len(v.keys))
	for _, k := range v.keys {
		out = append(out, Field{Key: k, Value: v.fields[k]})
	}
	return out
}

// With returns a copy of object v with key set to val. Setting an existing
// key keeps its position. With on a non-object value starts a new object.
func (v Value) With(key string, val Value) Value {
	fields := v.Fields()
	if v.kind != KindObject {
		fields = nil
	}
	return ObjectValue(append(fields, Field{Key: key, Value: val})...)
}

// Interface converts v into plain Go values: map[string]any, []any, string,
// float64, bool, time.Time, *Blob, []*Blob or nil. Undefined object fields
// are dropped.
func (v Value) Interface() any {
	switch v.kind {
	case KindString:
		return v.str
	case KindNumber:
		return v.num
	case KindBool:
		return v.b
	case KindDate:
		return v.t
	case KindBlob:
		return v.blob
	case KindFiles:
		return v.Files()
	case KindArray:
		out := make([]any, len(v.items))
		for i, it := range v.items {
			out[i] = it.Interface()
		}
		return out
	case KindObject:
		out := make(map[string]any, len(v.keys))
		for _, k := range v.keys {
			if f := v.fields[k]; !f.IsUndefined() {
				out[k] = f.Interface()
			}
		}
		return out
	}
	return nil
}

// Equal reports whether v and w describe the same tree. Object key order is
// not significant, dates compare by instant and blobs by content.
func (v Value) Equal(w Value) bool {
	if v.kind != w.kind {
		return false
	}
	switch v.kind {
	case KindString:
		return v.str == w.str
	case KindNumber:
		return v.num == w.num
	case KindBool:
		return v.b == w.b
	case KindDate:
		return v.t.Equal(w.t)
	case KindBlob:
		return v.blob.Equal(w.blob)
	case KindFiles:
		if len(v.files) != len(w.files) {
			return false
		}
		for i := range v.files {
			if !v.files[i].Equal(w.files[i]) {
				return false
			}
		}
		return true
	case KindArray:
		if len(v.items) != len(w.items) {
			return false
		}
		for i := range v.items {
			if !v.items[i].Equal(w.items[i]) {
				return false
			}
		}
		return true
	case KindObject:
		if len(v.keys) != len(w.keys) {
			return false
		}
		for k, f := range v.fields {
			g, ok := w.fields[k]
			if !ok || !f.Equal(g) {
				return false
			}
		}
		return true
	}
	return true
}

// MarshalJSON writes v as JSON. Object keys keep their insertion order, dates
// are written in ISO-8601 form and blobs as a descriptor of name, type and
// size.
func (v Value) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	if err := v.writeJSON(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (v Value) writeJSON(buf *bytes.Buffer) error {
	switch v.kind {
	case KindUndefined, KindNull:
		buf.WriteString("null")
	case KindString:
		return writeJSONValue(buf, v.str)
	case KindNumber:
		return writeJSONValue(buf, v.num)
	case KindBool:
		buf.WriteString(strconv.FormatBool(v.b))
	case KindDate:
		return writeJSONValue(buf, v.t.UTC().Format(isoLayout))
	case KindBlob:
		return writeJSONValue(buf, v.blob.descriptor())
	case KindFiles:
		buf.WriteByte('[')
		for i, f := range v.files {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeJSONValue(buf, f.descriptor()); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	case KindArray:
		buf.WriteByte('[')
		for i, it := range v.items {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := it.writeJSON(buf); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	case KindObject:
		buf.WriteByte('{')
		n := 0
		for _, k := range v.keys {
			f := v.fields[k]
			if f.IsUndefined() {
				continue
			}
			if n > 0 {
				buf.WriteByte(',')
			}
			n++
			if err := writeJSONValue(buf, k); err != nil {
				return err
			}
			buf.WriteByte(':')
			if err := f.writeJSON(buf); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
	}
	return nil
}

func writeJSONValue(buf *bytes.Buffer, x any) error {
	b, err := json.Marshal(x)
	if err != nil {
		return err
	}
	buf.Write(b)
	return nil
}

// UnmarshalJSON parses JSON into v. Numbers become number leaves; dates and
// blobs cannot be recovered from JSON and arrive as strings and objects.
func (v *Value) UnmarshalJSON(data []byte) error {
	var x any
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&x); err != nil {
		return err
	}
	val, err := ValueOf(x)
	if err != nil {
		return err
	}
	*v = val
	return nil
}

// sortedKeys returns the keys of m in lexical order.
func sortedKeys[T any](m map[string]T) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
