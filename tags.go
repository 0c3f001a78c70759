package formtree

import (
	"reflect"
	"strings"
	"sync"
)

// cache of struct field tags to avoid repeated parsing of the same struct type
// across calls to [ValueOf]. The key is the [reflect.Type] of the struct, and
// the value is a slice of *tag, one for each field on the struct.
//
// This cache is safe for concurrent use.
var structTagCache sync.Map

type tag struct {
	Name   string
	Omit   bool
	Ignore bool
}

// tags returns the parsed tag of every field of struct type tt. The "form" tag
// wins; a field without one falls back to its "json" tag and then to the Go
// field name. Unexported fields are ignored.
func tags(tt reflect.Type) []*tag {
	if cached, ok := structTagCache.Load(tt); ok {
		return cached.([]*tag)
	}

	tags := make([]*tag, tt.NumField())
	for i := 0; i < tt.NumField(); i++ {
		f := tt.Field(i)
		if !f.IsExported() {
			tags[i] = &tag{Ignore: true}
			continue
		}

		raw, ok := f.Tag.Lookup("form")
		if !ok {
			raw = f.Tag.Get("json")
		}
		t := parseTag(raw)
		if !t.Ignore && t.Name == "" {
			t.Name = f.Name
		}
		tags[i] = t
	}

	structTagCache.Store(tt, tags)
	return tags
}

func parseTag(str string) *tag {
	str = strings.TrimSpace(str)
	if str == "-" {
		return &tag{Ignore: true}
	}

	parts := strings.Split(str, ",")
	t := &tag{}

	// The first part is the field name, the rest are flags.
	switch name := strings.TrimSpace(parts[0]); name {
	case "-":
		t.Ignore = true
	default:
		t.Name = name
	}

	for _, p := range parts[1:] {
		switch strings.TrimSpace(p) {
		case "omitempty":
			t.Omit = true
		case "ignore":
			t.Ignore = true
		}
	}
	return t
}
