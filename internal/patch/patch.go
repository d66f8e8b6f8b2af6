// Package patch implements the /set update patch expander (spec §4.5):
// translating "a/b~1c"-shaped deep-patch keys into nested updates applied
// against the object's currently stored value.
package patch

import "strings"

// Getter fetches the current value of the named top-level properties for
// one object, as a /get-style projection. It returns ok=false if the
// object does not exist — expansion is then skipped silently, leaving the
// flat-keyed entries for the backend's own update path to reject.
type Getter func(id string, properties []string) (map[string]interface{}, bool)

// Expand rewrites update[id] maps in place: every key containing an
// unescaped "/" is a deep patch. For each top-level property touched by
// any deep patch on that id, the current value is fetched via get,
// walked along the patch's slash-separated path, and the leaf is set (or
// deleted, if the patch value is nil). The flat-keyed entries under that
// property name in the update map are then replaced by the resulting
// top-level value.
func Expand(update map[string]map[string]interface{}, get Getter) map[string]map[string]interface{} {
	expanded := make(map[string]map[string]interface{}, len(update))
	for id, patchMap := range update {
		expanded[id] = expandOne(id, patchMap, get)
	}
	return expanded
}

func expandOne(id string, patchMap map[string]interface{}, get Getter) map[string]interface{} {
	deepKeys := make(map[string][]string) // original key -> unescaped path segments
	topProps := make(map[string]bool)
	for key := range patchMap {
		if !strings.Contains(unescapeKey(key), "/") {
			continue
		}
		segs := strings.Split(key, "/")
		for i, seg := range segs {
			segs[i] = unescapeKey(seg)
		}
		deepKeys[key] = segs
		topProps[segs[0]] = true
	}
	if len(deepKeys) == 0 {
		return patchMap
	}

	properties := make([]string, 0, len(topProps))
	for p := range topProps {
		properties = append(properties, p)
	}

	current, ok := get(id, properties)
	if !ok {
		return patchMap
	}

	result := make(map[string]interface{}, len(patchMap))
	for key, val := range patchMap {
		if _, isDeep := deepKeys[key]; !isDeep {
			result[key] = val
		}
	}

	for key, val := range patchMap {
		segs, isDeep := deepKeys[key]
		if !isDeep {
			continue
		}
		top := segs[0]
		target, hasCurrent := current[top]
		if !hasCurrent || target == nil {
			target = map[string]interface{}{}
		}
		target = setAtPath(target, segs[1:], val)
		current[top] = target
		result[top] = target
	}

	return result
}

// setAtPath walks node along segs, setting the leaf to val (or deleting it
// when val is nil), and returns the (possibly replaced) node.
func setAtPath(node interface{}, segs []string, val interface{}) interface{} {
	if len(segs) == 0 {
		return val
	}
	m, ok := node.(map[string]interface{})
	if !ok {
		m = map[string]interface{}{}
	}
	seg := segs[0]
	if len(segs) == 1 {
		if val == nil {
			delete(m, seg)
		} else {
			m[seg] = val
		}
		return m
	}
	m[seg] = setAtPath(m[seg], segs[1:], val)
	return m
}

func unescapeKey(key string) string {
	if !strings.Contains(key, "~") {
		return key
	}
	key = strings.ReplaceAll(key, "~1", "/")
	key = strings.ReplaceAll(key, "~0", "~")
	return key
}
