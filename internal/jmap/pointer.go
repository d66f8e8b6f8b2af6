package jmap

import "strings"

// ResolvePointer applies an RFC-6901-style pointer ("/seg1/seg2/...") to
// root, walking maps by key and lists by index or wildcard "*". It is
// tolerant: any segment that doesn't match the current node's kind
// returns the node unchanged rather than failing.
//
// When the final result is non-nil and not itself a list, it is wrapped
// in a single-element list — back-reference results are always arrays,
// matching the convention that ids/values downstream arrive as lists.
func ResolvePointer(pointer string, root interface{}) interface{} {
	result := resolveSegments(splitPointer(pointer), root)
	if result == nil {
		return nil
	}
	if _, isList := result.([]interface{}); isList {
		return result
	}
	return []interface{}{result}
}

// splitPointer splits "/a/b~1c" into ["a", "b/c"], unescaping ~1 -> / and
// ~0 -> ~ on each segment. A pointer of "" or "/" yields no segments.
func splitPointer(pointer string) []string {
	pointer = strings.TrimPrefix(pointer, "/")
	if pointer == "" {
		return nil
	}
	raw := strings.Split(pointer, "/")
	segs := make([]string, len(raw))
	for i, s := range raw {
		segs[i] = unescapeSegment(s)
	}
	return segs
}

func unescapeSegment(s string) string {
	if !strings.Contains(s, "~") {
		return s
	}
	s = strings.ReplaceAll(s, "~1", "/")
	s = strings.ReplaceAll(s, "~0", "~")
	return s
}

func resolveSegments(segs []string, node interface{}) interface{} {
	if len(segs) == 0 {
		return node
	}
	seg, rest := segs[0], segs[1:]

	switch n := node.(type) {
	case map[string]interface{}:
		child, ok := n[seg]
		if !ok {
			return nil
		}
		return resolveSegments(rest, child)

	case []interface{}:
		if seg == "*" {
			var flattened []interface{}
			for _, elem := range n {
				sub := resolveSegments(rest, elem)
				if subList, ok := sub.([]interface{}); ok {
					flattened = append(flattened, subList...)
				} else if sub != nil {
					flattened = append(flattened, sub)
				}
			}
			return flattened
		}
		idx, ok := parseIndex(seg)
		if !ok || idx < 0 || idx >= len(n) {
			return node
		}
		return resolveSegments(rest, n[idx])

	default:
		return node
	}
}

func parseIndex(s string) (int, bool) {
	if s == "" {
		return 0, false
	}
	n := 0
	for _, c := range s {
		if c < '0' || c > '9' {
			return 0, false
		}
		n = n*10 + int(c-'0')
	}
	return n, true
}
