package formtree

import (
	"bytes"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/goccy/go-json"
)

// TypeBackend is the error type given to remote errors that do not name one.
const TypeBackend = "backend"

// rootKeyPrefix marks form-level errors that are not tied to a field.
const rootKeyPrefix = "root"

// FieldError is a single validation failure.
type FieldError struct {
	Message string
	Type    string
	// Extra holds any further properties of the error object.
	Extra map[string]any
}

// ErrorNode is one entry of an [ErrorTree]. A node is a leaf when Err is set;
// it may also carry nested field errors.
type ErrorNode struct {
	Err    *FieldError
	Fields ErrorTree
}

// ErrorTree maps field names to their errors.
type ErrorTree map[string]*ErrorNode

// Leaf returns a leaf node with the given message and type.
func Leaf(message, typ string) *ErrorNode {
	return &ErrorNode{Err: &FieldError{Message: message, Type: typ}}
}

// Nested returns a node holding only nested field errors.
func Nested(fields ErrorTree) *ErrorNode {
	return &ErrorNode{Fields: fields}
}

// IsLeaf reports whether n carries an error of its own.
func (n *ErrorNode) IsLeaf() bool { return n != nil && n.Err != nil }

// Clone returns a deep copy of t.
func (t ErrorTree) Clone() ErrorTree {
	if t == nil {
		return nil
	}
	out := make(ErrorTree, len(t))
	for k, n := range t {
		out[k] = n.clone()
	}
	return out
}

func (n *ErrorNode) clone() *ErrorNode {
	if n == nil {
		return nil
	}
	c := &ErrorNode{Fields: n.Fields.Clone()}
	if n.Err != nil {
		fe := *n.Err
		if n.Err.Extra != nil {
			fe.Extra = make(map[string]any, len(n.Err.Extra))
			for k, v := range n.Err.Extra {
				fe.Extra[k] = v
			}
		}
		c.Err = &fe
	}
	return c
}

// Merge combines a locally computed error tree with one returned by a remote
// validator and returns the result. local is not modified.
//
// A top-level remote key is considered when validKeys is empty, when it is
// listed in validKeys, or when it starts with "root" (case-insensitive).
// Children of a considered key are taken without consulting validKeys again.
// Remote leaves replace the local entry and default their type to
// [TypeBackend]. A nested entry that Merge had to create and that ends up
// without any error is removed.
func Merge(local, remote ErrorTree, validKeys []string) ErrorTree {
	if remote == nil {
		return local
	}
	out := local.Clone()
	if out == nil {
		out = ErrorTree{}
	}
	allowed := make(map[string]bool, len(validKeys))
	for _, k := range validKeys {
		allowed[k] = true
	}
	mergeInto(out, remote, func(key string) bool {
		return len(allowed) == 0 || allowed[key] || strings.HasPrefix(strings.ToLower(key), rootKeyPrefix)
	})
	return out
}

// mergeInto merges src into dst and reports whether any leaf was written.
// eligible is nil below the top level.
func mergeInto(dst, src ErrorTree, eligible func(string) bool) bool {
	set := false
	for _, key := range sortedKeys(src) {
		if eligible != nil && !eligible(key) {
			continue
		}
		rn := src[key]
		if rn == nil {
			continue
		}

		if rn.IsLeaf() {
			dst[key] = &ErrorNode{Err: normalizeRemote(rn.Err), Fields: rn.Fields.Clone()}
			set = true
			continue
		}

		existing := dst[key]
		if existing == nil {
			existing = &ErrorNode{}
		}
		if existing.Fields == nil {
			existing.Fields = ErrorTree{}
		}
		childSet := mergeInto(existing.Fields, rn.Fields, nil)
		switch {
		case childSet:
			dst[key] = existing
			set = true
		case dst[key] != nil:
			// Keep what the local tree already showed.
			if len(existing.Fields) == 0 {
				existing.Fields = nil
			}
		}
	}
	return set
}

func normalizeRemote(fe *FieldError) *FieldError {
	out := *fe
	if out.Type == "" {
		out.Type = TypeBackend
	}
	if fe.Extra != nil {
		out.Extra = make(map[string]any, len(fe.Extra))
		for k, v := range fe.Extra {
			out.Extra[k] = v
		}
	}
	return &out
}

// Len returns the number of leaf errors in t, at any depth.
func (t ErrorTree) Len() int {
	n := 0
	for _, node := range t {
		if node == nil {
			continue
		}
		if node.IsLeaf() {
			n++
		}
		n += node.Fields.Len()
	}
	return n
}

// MarshalJSON writes a leaf as its error object with nested fields alongside,
// and a nested node as an object of its fields.
func (n *ErrorNode) MarshalJSON() ([]byte, error) {
	m := make(map[string]any)
	for k, v := range n.Fields {
		m[k] = v
	}
	if n.Err != nil {
		for k, v := range n.Err.Extra {
			m[k] = v
		}
		if n.Err.Message != "" {
			m["message"] = n.Err.Message
		}
		if n.Err.Type != "" {
			m["type"] = n.Err.Type
		}
	}
	return json.Marshal(m)
}

// UnmarshalJSON reads a node. A string is a leaf message, an object with a
// "message" or "type" property is a leaf, any other object holds nested field
// errors and an array holds the errors of a field array keyed by index. Leaf
// properties that are themselves objects, other than ref and types, are read
// as nested fields; other properties are kept in Extra.
func (n *ErrorNode) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var msg string
		if err := json.Unmarshal(data, &msg); err != nil {
			return err
		}
		*n = ErrorNode{Err: &FieldError{Message: msg}}
		return nil
	}
	if len(data) > 0 && data[0] == '[' {
		return n.unmarshalList(data)
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("form: error node must be a string or an object: %w", err)
	}
	_, hasMessage := raw["message"]
	_, hasType := raw["type"]

	*n = ErrorNode{}
	if !hasMessage && !hasType {
		fields := make(ErrorTree, len(raw))
		for k, v := range raw {
			if isJSONNull(v) {
				continue
			}
			child := &ErrorNode{}
			if err := json.Unmarshal(v, child); err != nil {
				return fmt.Errorf("form: error node %q: %w", k, err)
			}
			fields[k] = child
		}
		n.Fields = fields
		return nil
	}

	fe := &FieldError{}
	for k, v := range raw {
		switch {
		case k == "message":
			if err := json.Unmarshal(v, &fe.Message); err != nil {
				return fmt.Errorf("form: error message: %w", err)
			}
		case k == "type":
			if err := json.Unmarshal(v, &fe.Type); err != nil {
				return fmt.Errorf("form: error type: %w", err)
			}
		case isJSONObject(v) && k != "ref" && k != "types":
			child := &ErrorNode{}
			if err := json.Unmarshal(v, child); err != nil {
				return fmt.Errorf("form: error node %q: %w", k, err)
			}
			if n.Fields == nil {
				n.Fields = ErrorTree{}
			}
			n.Fields[k] = child
		default:
			var x any
			if err := json.Unmarshal(v, &x); err != nil {
				return err
			}
			if fe.Extra == nil {
				fe.Extra = map[string]any{}
			}
			fe.Extra[k] = x
		}
	}
	n.Err = fe
	return nil
}

// unmarshalList reads the errors of a field array. Elements are keyed by their
// index and null elements, which mark valid rows, are skipped.
func (n *ErrorNode) unmarshalList(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("form: error list: %w", err)
	}
	fields := make(ErrorTree, len(raw))
	for i, v := range raw {
		if isJSONNull(v) {
			continue
		}
		child := &ErrorNode{}
		if err := json.Unmarshal(v, child); err != nil {
			return fmt.Errorf("form: error node %d: %w", i, err)
		}
		fields[strconv.Itoa(i)] = child
	}
	*n = ErrorNode{Fields: fields}
	return nil
}

func isJSONNull(b json.RawMessage) bool {
	return string(bytes.TrimSpace(b)) == "null"
}

func isJSONObject(b json.RawMessage) bool {
	b = bytes.TrimSpace(b)
	return len(b) > 0 && b[0] == '{'
}

// ReadErrors parses a JSON error tree, as returned by a remote validator.
// Null entries are skipped.
func ReadErrors(r io.Reader) (ErrorTree, error) {
	var raw map[string]json.RawMessage
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, fmt.Errorf("form: read errors: %w", err)
	}
	if raw == nil {
		return nil, nil
	}
	t := make(ErrorTree, len(raw))
	for k, v := range raw {
		if isJSONNull(v) {
			continue
		}
		n := &ErrorNode{}
		if err := json.Unmarshal(v, n); err != nil {
			return nil, fmt.Errorf("form: read errors: %w", err)
		}
		t[k] = n
	}
	return t, nil
}
