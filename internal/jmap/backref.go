package jmap

import "fmt"

// ErrInvalidResultReference is returned by ResolveArgs when an argument's
// #name back-reference names an earlier call tag that produced no
// successful result.
type ErrInvalidResultReference struct {
	CallTag string
}

func (e *ErrInvalidResultReference) Error() string {
	return fmt.Sprintf("invalidResultReference: no successful result for call tag %q", e.CallTag)
}

// backRef is the shape of a back-reference argument value:
// {"resultOf": callTag, "name": argName, "path": pointer}.
type backRef struct {
	resultOf string
	path     string
}

func parseBackRef(v interface{}) (*backRef, bool) {
	m, ok := AsMap(v)
	if !ok {
		return nil, false
	}
	resultOf, ok := AsString(m["resultOf"])
	if !ok {
		return nil, false
	}
	path, _ := AsString(m["path"])
	return &backRef{resultOf: resultOf, path: path}, true
}

// ResolveArgs substitutes every "#name" key in args whose value is a
// back-reference shape with the path-resolved value from log. Ordinary
// keys pass through unchanged; the substitution is shallow — only
// top-level keys of args are inspected, values are never recursively
// scanned for embedded back-references.
//
// If any back-reference names an unknown (or failed-only) call tag, the
// whole call fails and resolution stops at the first such key.
func ResolveArgs(args map[string]interface{}, log *ResultLog) (map[string]interface{}, error) {
	if args == nil {
		return nil, nil
	}
	resolved := make(map[string]interface{}, len(args))
	for key, val := range args {
		if len(key) == 0 || key[0] != '#' {
			resolved[key] = val
			continue
		}
		ref, ok := parseBackRef(val)
		if !ok {
			resolved[key] = val
			continue
		}
		results, ok := log.SuccessfulResults(ref.resultOf)
		if !ok {
			return nil, &ErrInvalidResultReference{CallTag: ref.resultOf}
		}
		argName := key[1:]
		resolved[argName] = resolvePathOverResults(ref.path, results)
	}
	return resolved, nil
}

// resolvePathOverResults concatenates every successful result payload
// recorded under one call tag and applies the pointer to each, flattening
// the per-result resolutions into a single array.
func resolvePathOverResults(path string, results []interface{}) interface{} {
	var out []interface{}
	for _, r := range results {
		resolved := ResolvePointer(path, r)
		if list, ok := resolved.([]interface{}); ok {
			out = append(out, list...)
		} else if resolved != nil {
			out = append(out, resolved)
		}
	}
	return out
}
