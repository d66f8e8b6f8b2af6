package jmap

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestResolvePointerMapDescend(t *testing.T) {
	root := map[string]interface{}{
		"ids": []interface{}{"m1", "m2"},
	}
	got := ResolvePointer("/ids", root)
	require.Equal(t, []interface{}{"m1", "m2"}, got)
}

func TestResolvePointerWrapsScalar(t *testing.T) {
	root := map[string]interface{}{"total": float64(3)}
	got := ResolvePointer("/total", root)
	require.Equal(t, []interface{}{float64(3)}, got)
}

func TestResolvePointerEscapes(t *testing.T) {
	root := map[string]interface{}{"a/b": map[string]interface{}{"c~d": "value"}}
	got := ResolvePointer("/a~1b/c~0d", root)
	require.Equal(t, []interface{}{"value"}, got)
}

func TestResolvePointerWildcardFlattens(t *testing.T) {
	root := []interface{}{
		map[string]interface{}{"id": "a"},
		map[string]interface{}{"id": "b"},
	}
	got := ResolvePointer("/*/id", root)
	require.Equal(t, []interface{}{"a", "b"}, got)
}

func TestResolvePointerListIndex(t *testing.T) {
	root := []interface{}{"x", "y", "z"}
	got := ResolvePointer("/1", root)
	require.Equal(t, []interface{}{"y"}, got)
}

func TestResolvePointerToleratesMismatch(t *testing.T) {
	root := map[string]interface{}{"a": "scalar"}
	// A segment naming a key the map does not have resolves to nil.
	got := ResolvePointer("/missing", root)
	require.Nil(t, got)

	// A non-numeric segment against a list is tolerated: the list is
	// returned unchanged.
	listRoot := []interface{}{"only"}
	got2 := ResolvePointer("/not-a-number", listRoot)
	require.Equal(t, []interface{}{"only"}, got2)
}

func TestResolvePointerEmptyPath(t *testing.T) {
	root := map[string]interface{}{"a": "b"}
	got := ResolvePointer("", root)
	require.Equal(t, []interface{}{root}, got)
}
