package formtree

import (
	"strconv"
	"strings"
)

// StepKind distinguishes the three kinds of path step.
type StepKind int

const (
	// StepField addresses an object key.
	StepField StepKind = iota
	// StepIndex addresses an array position, written "[N]" or as a bare
	// numeric segment.
	StepIndex
	// StepAppend addresses the next free array position, written "[]".
	StepAppend
)

// Step is one parsed element of a path.
type Step struct {
	Kind  StepKind
	Field string
	Index int
}

func (s Step) isArray() bool { return s.Kind != StepField }

// PathError describes a path that does not follow the path grammar.
type PathError struct {
	Path   string
	Reason string
}

func (e *PathError) Error() string {
	return "form: invalid path " + strconv.Quote(e.Path) + ": " + e.Reason
}

// ParsePath splits a transport key into steps. Segments are separated by dots
// and may carry bracket suffixes:
//
//	tags.[0]     field "tags", index 0 (canonical form)
//	tags[0]      field "tags", index 0
//	tags.0       field "tags", index 0
//	tags[]       field "tags", append
//	a[b][c]      fields "a", "b", "c"
//
// A bare numeric segment is an index unless it is the first segment, since the
// root of a tree is always an object.
func ParsePath(path string) ([]Step, error) {
	if path == "" {
		return nil, &PathError{Path: path, Reason: "empty path"}
	}

	var steps []Step
	for i, seg := range strings.Split(path, ".") {
		if seg == "" {
			return nil, &PathError{Path: path, Reason: "empty segment"}
		}

		name := seg
		var suffix string
		if j := strings.IndexByte(seg, '['); j >= 0 {
			name, suffix = seg[:j], seg[j:]
		}
		if strings.IndexByte(name, ']') >= 0 {
			return nil, &PathError{Path: path, Reason: "unexpected ']'"}
		}

		switch {
		case name == "":
		case i > 0 && isDigits(name):
			n, err := strconv.Atoi(name)
			if err != nil {
				return nil, &PathError{Path: path, Reason: "index out of range"}
			}
			steps = append(steps, Step{Kind: StepIndex, Index: n})
		default:
			steps = append(steps, Step{Kind: StepField, Field: name})
		}

		for len(suffix) > 0 {
			end := strings.IndexByte(suffix, ']')
			if suffix[0] != '[' || end == -1 {
				return nil, &PathError{Path: path, Reason: "unbalanced brackets"}
			}
			inner := suffix[1:end]
			suffix = suffix[end+1:]

			switch {
			case inner == "":
				steps = append(steps, Step{Kind: StepAppend})
			case isDigits(inner):
				n, err := strconv.Atoi(inner)
				if err != nil {
					return nil, &PathError{Path: path, Reason: "index out of range"}
				}
				steps = append(steps, Step{Kind: StepIndex, Index: n})
			case strings.IndexByte(inner, '[') >= 0:
				return nil, &PathError{Path: path, Reason: "nested brackets"}
			default:
				steps = append(steps, Step{Kind: StepField, Field: inner})
			}
		}
	}

	if steps[0].Kind != StepField {
		// A leading bracket index on the root is read as a plain key.
		steps[0] = Step{Kind: StepField, Field: rootKey(steps[0])}
	}
	return steps, nil
}

func rootKey(s Step) string {
	if s.Kind == StepAppend {
		return ""
	}
	return strconv.Itoa(s.Index)
}

// FormatPath renders steps in canonical form: fields joined by dots and
// indices written as ".[N]".
func FormatPath(steps []Step) string {
	var b strings.Builder
	for i, s := range steps {
		if i > 0 {
			b.WriteByte('.')
		}
		switch s.Kind {
		case StepField:
			b.WriteString(s.Field)
		case StepIndex:
			b.WriteByte('[')
			b.WriteString(strconv.Itoa(s.Index))
			b.WriteByte(']')
		case StepAppend:
			b.WriteString("[]")
		}
	}
	return b.String()
}

// joinPath appends a child key to a canonical parent path.
func joinPath(parent, key string) string {
	if parent == "" {
		return key
	}
	return parent + "." + key
}

// indexPath appends an array index to a canonical parent path.
func indexPath(parent string, i int) string {
	return parent + ".[" + strconv.Itoa(i) + "]"
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
