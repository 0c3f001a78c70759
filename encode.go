package formtree

import (
	"fmt"
	"log/slog"
)

// EncodeOptions controls how leaves are written by [Encode].
type EncodeOptions struct {
	// StringifyAll JSON-encodes every leaf, strings included. When false,
	// strings are written verbatim, dates as ISO-8601 text and all other
	// leaves as JSON.
	StringifyAll bool
	// HasJS prefixes the stream with the type-preserving tag so that the
	// decoder JSON-parses scalar leaves.
	HasJS bool
}

// DefaultEncodeOptions are the options used by [Marshal] and [NewRequest]
// when none are given.
var DefaultEncodeOptions = EncodeOptions{StringifyAll: true, HasJS: true}

// Encode flattens v into transport pairs, depth first. Nested object keys are
// joined with dots and array elements use the ".[i]" suffix. Undefined fields
// are omitted, blobs are emitted as binary pairs and file lists as one pair
// per file under the same key.
//
// A null or undefined root, or an empty root object, is written as a single
// emptyNull sentinel pair. Any other non-object root is an error.
func Encode(v Value, opts EncodeOptions) (Pairs, error) {
	switch v.kind {
	case KindUndefined, KindNull:
		return Pairs{TextPair(KeyEmptyNull, "null")}, nil
	case KindObject:
		if empty, _ := IsEmptyObject(v); empty {
			return Pairs{TextPair(KeyEmptyNull, "{}")}, nil
		}
	default:
		return nil, fmt.Errorf("form: top-level value must be an object, got %s", v.kind)
	}

	e := encoder{opts: opts}
	if opts.HasJS {
		e.out = append(e.out, TextPair(KeyHasJS, "true"))
	}
	for _, f := range v.Fields() {
		if isReservedKey(f.Key) {
			log().Warn("form: skipping field with reserved name", slog.String("key", f.Key))
			continue
		}
		if err := e.encode(f.Key, f.Value, false); err != nil {
			return nil, err
		}
	}
	return e.out, nil
}

type encoder struct {
	opts EncodeOptions
	out  Pairs
}

// encode writes v at path. Leaves that are direct array elements are always
// JSON-encoded so that element types survive regardless of StringifyAll.
func (e *encoder) encode(path string, v Value, element bool) error {
	switch v.kind {
	case KindUndefined:
		return nil
	case KindBlob:
		e.out = append(e.out, BlobPair(path, v.blob))
		return nil
	case KindFiles:
		for _, f := range v.files {
			e.out = append(e.out, BlobPair(path, f))
		}
		return nil
	case KindArray:
		if len(v.items) == 0 {
			return e.leaf(path, v, element)
		}
		for i, item := range v.items {
			// JSON has no undefined array element; follow its lead and send null.
			if item.IsUndefined() {
				item = NullValue()
			}
			if err := e.encode(indexPath(path, i), item, true); err != nil {
				return err
			}
		}
		return nil
	case KindObject:
		if empty, _ := IsEmptyObject(v); empty {
			return e.leaf(path, v, element)
		}
		for _, f := range v.Fields() {
			if err := e.encode(joinPath(path, f.Key), f.Value, false); err != nil {
				return err
			}
		}
		return nil
	default:
		return e.leaf(path, v, element)
	}
}

func (e *encoder) leaf(path string, v Value, forceJSON bool) error {
	if !e.opts.StringifyAll && !forceJSON {
		switch v.kind {
		case KindString:
			e.out = append(e.out, TextPair(path, v.str))
			return nil
		case KindDate:
			e.out = append(e.out, TextPair(path, v.t.UTC().Format(isoLayout)))
			return nil
		}
	}

	b, err := v.MarshalJSON()
	if err != nil {
		return fmt.Errorf("form: encode %q: %w", path, err)
	}
	e.out = append(e.out, TextPair(path, string(b)))
	return nil
}

// Marshal classifies x with [ValueOf], flattens it with the default options
// and returns an application/x-www-form-urlencoded body.
func Marshal(x any) ([]byte, error) {
	pairs, err := MarshalPairs(x, DefaultEncodeOptions)
	if err != nil {
		return nil, err
	}
	return []byte(pairs.URLEncode()), nil
}

// MarshalPairs classifies x with [ValueOf] and flattens it with opts.
func MarshalPairs(x any, opts EncodeOptions) (Pairs, error) {
	v, err := ValueOf(x)
	if err != nil {
		return nil, err
	}
	return Encode(v, opts)
}

// EncodeToString is a convenience function that returns [Marshal] output as a
// string.
func EncodeToString(x any) (string, error) {
	b, err := Marshal(x)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
