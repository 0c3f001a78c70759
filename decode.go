package formtree

import (
	"log/slog"
	"sort"
	"strconv"
	"strings"

	"github.com/goccy/go-json"
)

// DecodeOptions controls how [Decode] interprets text leaves.
type DecodeOptions struct {
	// PreserveStringified keeps every text leaf as the raw transport string
	// instead of JSON-parsing it.
	PreserveStringified bool
}

// ShapeError reports pairs that disagree about whether a path holds a leaf, an
// object or an array, or a sentinel pair with an unrecognised payload.
type ShapeError struct {
	Path   string
	Reason string
}

func (e *ShapeError) Error() string {
	return "form: shape conflict at " + strconv.Quote(e.Path) + ": " + e.Reason
}

// Decode rebuilds a value tree from transport pairs.
//
// If an emptyNull sentinel is present the result is null or an empty object
// and all other pairs are ignored. Otherwise each pair is parsed with
// [ParsePath] and its leaf is stored in the tree, creating objects and arrays
// on demand: a step followed by an index or append step holds an array, any
// other step an object.
//
// Explicit indices are honoured regardless of arrival order and gaps are
// compacted. "[]" steps append in arrival order, as does an explicit index
// that is already taken. A key that repeats at a leaf accumulates its values
// into an array.
//
// Text leaves are JSON-parsed unless opts.PreserveStringified is set, falling
// back to the raw text when parsing fails, so plain text from a no-script
// submission survives untouched. The text "undefined" is dropped. The hasJS tag
// is informational and never part of the result.
func Decode(ps Pairs, opts DecodeOptions) (Value, error) {
	if p, ok := ps.Get(KeyEmptyNull); ok {
		return decodeSentinel(p)
	}

	root := newObjectNode()
	for _, p := range ps {
		if isReservedKey(p.Key) {
			continue
		}
		leaf, ok := parseLeaf(p, opts)
		if !ok {
			continue
		}
		steps, err := ParsePath(p.Key)
		if err != nil {
			return Value{}, err
		}
		if err := root.insert(p.Key, steps, leaf); err != nil {
			return Value{}, err
		}
	}
	return root.value(), nil
}

func decodeSentinel(p Pair) (Value, error) {
	if p.IsBlob() {
		return Value{}, &ShapeError{Path: p.Key, Reason: "sentinel carries a binary payload"}
	}
	switch p.Text {
	case "null":
		return NullValue(), nil
	case "{}":
		return ObjectValue(), nil
	}
	return Value{}, &ShapeError{Path: p.Key, Reason: "unrecognised sentinel " + strconv.Quote(p.Text)}
}

func parseLeaf(p Pair, opts DecodeOptions) (Value, bool) {
	if p.IsBlob() {
		return BlobValue(p.Blob), true
	}
	if opts.PreserveStringified {
		return StringValue(p.Text), true
	}

	switch p.Text {
	case "undefined":
		return Value{}, false
	case "null":
		return NullValue(), true
	}

	var x any
	if err := json.Unmarshal([]byte(p.Text), &x); err != nil {
		return StringValue(p.Text), true
	}
	v, err := ValueOf(x)
	if err != nil {
		return StringValue(p.Text), true
	}
	return v, true
}

// node is the mutable tree built during a single Decode call. Arrays are
// kept as sparse slots and compacted when the tree is frozen.
type node struct {
	kind   Kind // KindObject or KindArray for containers
	isLeaf bool
	leaf   Value
	keys   []string
	fields map[string]*node
	slots  map[int]*node
	next   int
}

func newObjectNode() *node { return &node{kind: KindObject, fields: map[string]*node{}} }

func newArrayNode() *node { return &node{kind: KindArray, slots: map[int]*node{}} }

func newLeafNode(v Value) *node { return &node{isLeaf: true, leaf: v} }

func (n *node) insert(path string, steps []Step, leaf Value) error {
	cur := n
	for i := 0; i < len(steps)-1; i++ {
		child, err := cur.child(path, steps[i], steps[i+1].isArray())
		if err != nil {
			return err
		}
		cur = child
	}
	return cur.set(path, steps[len(steps)-1], leaf)
}

// child returns the container addressed by s, creating it when absent. An
// existing container is reused whatever its kind.
func (n *node) child(path string, s Step, array bool) (*node, error) {
	create := func() *node {
		if array {
			return newArrayNode()
		}
		return newObjectNode()
	}

	var c *node
	switch n.kind {
	case KindObject:
		if s.Kind == StepAppend {
			return nil, &ShapeError{Path: path, Reason: "append to an object"}
		}
		key := stepKey(s)
		c = n.fields[key]
		if c == nil {
			c = create()
			n.put(key, c)
		}
	case KindArray:
		switch s.Kind {
		case StepField:
			return nil, &ShapeError{Path: path, Reason: "field " + strconv.Quote(s.Field) + " on an array"}
		case StepIndex:
			c = n.slots[s.Index]
			if c == nil {
				c = create()
				n.place(s.Index, c)
			}
		case StepAppend:
			c = create()
			n.place(n.next, c)
		}
	}

	if c.isLeaf {
		return nil, &ShapeError{Path: path, Reason: "value " + c.leaf.kind.String() + " where a container is expected"}
	}
	return c, nil
}

func (n *node) set(path string, s Step, leaf Value) error {
	switch n.kind {
	case KindObject:
		if s.Kind == StepAppend {
			return &ShapeError{Path: path, Reason: "append to an object"}
		}
		key := stepKey(s)
		existing := n.fields[key]
		switch {
		case existing == nil:
			n.put(key, newLeafNode(leaf))
		case existing.isLeaf:
			// Repeated key: accumulate into an array.
			acc := newArrayNode()
			acc.place(0, existing)
			acc.place(1, newLeafNode(leaf))
			n.fields[key] = acc
		case existing.kind == KindArray:
			existing.place(existing.next, newLeafNode(leaf))
		default:
			return &ShapeError{Path: path, Reason: "leaf where an object is expected"}
		}
	case KindArray:
		switch s.Kind {
		case StepField:
			return &ShapeError{Path: path, Reason: "field " + strconv.Quote(s.Field) + " on an array"}
		case StepIndex:
			if n.slots[s.Index] == nil {
				n.place(s.Index, newLeafNode(leaf))
				return nil
			}
			n.place(n.next, newLeafNode(leaf))
		case StepAppend:
			n.place(n.next, newLeafNode(leaf))
		}
	}
	return nil
}

func (n *node) put(key string, c *node) {
	if _, ok := n.fields[key]; !ok {
		n.keys = append(n.keys, key)
	}
	n.fields[key] = c
}

func (n *node) place(i int, c *node) {
	n.slots[i] = c
	if i >= n.next {
		n.next = i + 1
	}
}

// value freezes the builder into an immutable Value.
func (n *node) value() Value {
	if n.isLeaf {
		return n.leaf
	}
	switch n.kind {
	case KindObject:
		fields := make([]Field, 0, len(n.keys))
		for _, k := range n.keys {
			fields = append(fields, Field{Key: k, Value: n.fields[k].value()})
		}
		return ObjectValue(fields...)
	case KindArray:
		idx := make([]int, 0, len(n.slots))
		for i := range n.slots {
			idx = append(idx, i)
		}
		sort.Ints(idx)
		items := make([]Value, len(idx))
		for j, i := range idx {
			items[j] = n.slots[i].value()
		}
		return Value{kind: KindArray, items: items}
	}
	return ObjectValue()
}

// stepKey names the object key addressed by s. A numeric step that lands on
// an existing object is read as a plain key.
func stepKey(s Step) string {
	if s.Kind == StepIndex {
		return strconv.Itoa(s.Index)
	}
	return s.Field
}

// NormalizeArrayKeys rewrites empty-bracket keys such as "car[]" into indexed
// keys "car[0]", "car[1]", ... numbering each distinct base key in the order
// its pairs appear. Other pairs are returned unchanged.
func NormalizeArrayKeys(ps Pairs) Pairs {
	counts := map[string]int{}
	out := make(Pairs, len(ps))
	for i, p := range ps {
		out[i] = p
		if !strings.HasSuffix(p.Key, "[]") {
			continue
		}
		steps, err := ParsePath(p.Key)
		if err != nil || len(steps) < 2 || steps[len(steps)-1].Kind != StepAppend {
			continue
		}
		base := FormatPath(steps[:len(steps)-1])
		steps[len(steps)-1] = Step{Kind: StepIndex, Index: counts[base]}
		counts[base]++
		out[i].Key = FormatPath(steps)
	}
	return out
}

// DecodeQuery decodes a URL query string. Empty-bracket keys are numbered with
// [NormalizeArrayKeys] before decoding. A parameter whose key is not a valid
// path is skipped with a warning rather than failing the decode.
func DecodeQuery(rawQuery string, opts DecodeOptions) (Value, error) {
	ps, err := ParsePairs(rawQuery)
	if err != nil {
		return Value{}, err
	}

	kept := ps[:0]
	for _, p := range ps {
		if _, err := ParsePath(p.Key); err != nil {
			log().Warn("form: skipping query parameter with invalid key",
				slog.String("key", p.Key),
				slog.String("error", err.Error()))
			continue
		}
		kept = append(kept, p)
	}
	return Decode(NormalizeArrayKeys(kept), opts)
}

// Unmarshal decodes an application/x-www-form-urlencoded body with the
// default options. Surrounding whitespace is ignored.
func Unmarshal(data []byte) (Value, error) {
	ps, err := ParsePairs(strings.TrimSpace(string(data)))
	if err != nil {
		return Value{}, err
	}
	return Decode(ps, DecodeOptions{})
}

// DecodeString is a convenience function that calls [Unmarshal] on s.
func DecodeString(s string) (Value, error) {
	return Unmarshal([]byte(s))
}
