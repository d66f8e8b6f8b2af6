package query

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func testSortKeyFunc(row Row, property string, scratch *Storage) (SortValue, error) {
	switch property {
	case "receivedAt":
		return SortValue{Num: row.Fields["receivedAt"].(float64), IsNumeric: true}, nil
	case "subject":
		return SortValue{Str: row.Fields["subject"].(string)}, nil
	case "cachedParentPath":
		v := scratch.GetOrCompute("parentPath:"+row.Id, func() interface{} {
			return row.Fields["subject"].(string) + "!"
		})
		return SortValue{Str: v.(string)}, nil
	}
	return SortValue{}, nil
}

func TestSortAscendingNumeric(t *testing.T) {
	rows := []Row{
		{Id: "b", Fields: map[string]interface{}{"receivedAt": 2.0}},
		{Id: "a", Fields: map[string]interface{}{"receivedAt": 1.0}},
		{Id: "c", Fields: map[string]interface{}{"receivedAt": 3.0}},
	}
	err := Sort(rows, []SortField{{Property: "receivedAt", IsAscending: true}}, testSortKeyFunc, NewStorage())
	require.NoError(t, err)
	require.Equal(t, []string{"a", "b", "c"}, idsOf(rows))
}

func TestSortDescendingNumeric(t *testing.T) {
	rows := []Row{
		{Id: "a", Fields: map[string]interface{}{"receivedAt": 1.0}},
		{Id: "b", Fields: map[string]interface{}{"receivedAt": 2.0}},
		{Id: "c", Fields: map[string]interface{}{"receivedAt": 3.0}},
	}
	err := Sort(rows, []SortField{{Property: "receivedAt", IsAscending: false}}, testSortKeyFunc, NewStorage())
	require.NoError(t, err)
	require.Equal(t, []string{"c", "b", "a"}, idsOf(rows))
}

func TestSortLexicalTieBreakOnId(t *testing.T) {
	rows := []Row{
		{Id: "z", Fields: map[string]interface{}{"receivedAt": 1.0}},
		{Id: "a", Fields: map[string]interface{}{"receivedAt": 1.0}},
	}
	err := Sort(rows, []SortField{{Property: "receivedAt", IsAscending: true}}, testSortKeyFunc, NewStorage())
	require.NoError(t, err)
	require.Equal(t, []string{"a", "z"}, idsOf(rows))
}

func TestSortMultiKey(t *testing.T) {
	rows := []Row{
		{Id: "a", Fields: map[string]interface{}{"receivedAt": 1.0, "subject": "b"}},
		{Id: "b", Fields: map[string]interface{}{"receivedAt": 1.0, "subject": "a"}},
		{Id: "c", Fields: map[string]interface{}{"receivedAt": 0.0, "subject": "z"}},
	}
	fields := []SortField{
		{Property: "receivedAt", IsAscending: false},
		{Property: "subject", IsAscending: true},
	}
	err := Sort(rows, fields, testSortKeyFunc, NewStorage())
	require.NoError(t, err)
	require.Equal(t, []string{"b", "a", "c"}, idsOf(rows))
}

func TestSortUsesScratchMemoization(t *testing.T) {
	rows := []Row{
		{Id: "a", Fields: map[string]interface{}{"subject": "b"}},
		{Id: "b", Fields: map[string]interface{}{"subject": "a"}},
	}
	scratch := NewStorage()
	err := Sort(rows, []SortField{{Property: "cachedParentPath", IsAscending: true}}, testSortKeyFunc, scratch)
	require.NoError(t, err)
	require.Equal(t, []string{"b", "a"}, idsOf(rows))
	require.Len(t, scratch.cache, 2)
}

func TestParseSortDefaultsAscending(t *testing.T) {
	fields, err := ParseSort([]interface{}{
		map[string]interface{}{"property": "receivedAt"},
	})
	require.NoError(t, err)
	require.True(t, fields[0].IsAscending)
}

func TestParseSortHonorsIsAscendingFalse(t *testing.T) {
	fields, err := ParseSort([]interface{}{
		map[string]interface{}{"property": "receivedAt", "isAscending": false},
	})
	require.NoError(t, err)
	require.False(t, fields[0].IsAscending)
}

func TestParseSortRejectsMissingProperty(t *testing.T) {
	_, err := ParseSort([]interface{}{map[string]interface{}{}})
	require.Error(t, err)
}

func TestParseSortNilIsNil(t *testing.T) {
	fields, err := ParseSort(nil)
	require.NoError(t, err)
	require.Nil(t, fields)
}

func idsOf(rows []Row) []string {
	ids := make([]string, len(rows))
	for i, r := range rows {
		ids[i] = r.Id
	}
	return ids
}
