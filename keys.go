package formtree

import (
	"sort"
	"strings"
)

// ValidKeys lists the keys that a remote error tree may report for values:
// every top-level key, each dot-separated segment of a dotted key, and "root".
// The result is sorted and free of duplicates; it is meant as the validKeys
// argument of [Merge].
func ValidKeys(values Value) []string {
	set := map[string]struct{}{rootKeyPrefix: {}}
	for _, k := range values.keys {
		set[k] = struct{}{}
		if strings.Contains(k, ".") {
			for _, seg := range strings.Split(k, ".") {
				if seg != "" {
					set[seg] = struct{}{}
				}
			}
		}
	}

	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// IsEmptyObject reports whether v is an object without keys. isObject is false
// for every non-object value, in which case empty carries no meaning.
func IsEmptyObject(v Value) (empty, isObject bool) {
	if v.kind != KindObject {
		return false, false
	}
	return len(v.keys) == 0, true
}
