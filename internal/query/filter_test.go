package query

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func equalsPredicate(row Row, cond map[string]interface{}, scratch *Storage) (bool, error) {
	for k, v := range cond {
		if row.Fields[k] != v {
			return false, nil
		}
	}
	return true, nil
}

func TestEvalNilFilterMatchesEverything(t *testing.T) {
	ok, err := Eval(nil, Row{Id: "a"}, equalsPredicate, NewStorage())
	require.NoError(t, err)
	require.True(t, ok)
}

func TestEvalEmptyConditionMatchesEverything(t *testing.T) {
	f := &Filter{Condition: map[string]interface{}{}}
	ok, err := Eval(f, Row{Id: "a"}, equalsPredicate, NewStorage())
	require.NoError(t, err)
	require.True(t, ok)
}

func TestEvalLeafCondition(t *testing.T) {
	f := &Filter{Condition: map[string]interface{}{"inMailbox": "m1"}}
	row := Row{Id: "a", Fields: map[string]interface{}{"inMailbox": "m1"}}
	ok, err := Eval(f, row, equalsPredicate, NewStorage())
	require.NoError(t, err)
	require.True(t, ok)

	row.Fields["inMailbox"] = "m2"
	ok, err = Eval(f, row, equalsPredicate, NewStorage())
	require.NoError(t, err)
	require.False(t, ok)
}

func TestEvalEmptyANDIsVacuouslyTrue(t *testing.T) {
	f := &Filter{Operator: "AND", Conditions: nil}
	ok, err := Eval(f, Row{Id: "a"}, equalsPredicate, NewStorage())
	require.NoError(t, err)
	require.True(t, ok)
}

func TestEvalEmptyORIsVacuouslyFalse(t *testing.T) {
	f := &Filter{Operator: "OR", Conditions: nil}
	ok, err := Eval(f, Row{Id: "a"}, equalsPredicate, NewStorage())
	require.NoError(t, err)
	require.False(t, ok)
}

func TestEvalEmptyNOTIsVacuouslyTrue(t *testing.T) {
	// NOT of vacuously-false OR is vacuously true.
	f := &Filter{Operator: "NOT", Conditions: nil}
	ok, err := Eval(f, Row{Id: "a"}, equalsPredicate, NewStorage())
	require.NoError(t, err)
	require.True(t, ok)
}

func TestEvalANDShortCircuits(t *testing.T) {
	f := &Filter{Operator: "AND", Conditions: []Filter{
		{Condition: map[string]interface{}{"a": "1"}},
		{Condition: map[string]interface{}{"b": "2"}},
	}}
	row := Row{Id: "x", Fields: map[string]interface{}{"a": "1", "b": "nope"}}
	ok, err := Eval(f, row, equalsPredicate, NewStorage())
	require.NoError(t, err)
	require.False(t, ok)
}

func TestEvalORMatchesAny(t *testing.T) {
	f := &Filter{Operator: "OR", Conditions: []Filter{
		{Condition: map[string]interface{}{"a": "1"}},
		{Condition: map[string]interface{}{"b": "2"}},
	}}
	row := Row{Id: "x", Fields: map[string]interface{}{"a": "nope", "b": "2"}}
	ok, err := Eval(f, row, equalsPredicate, NewStorage())
	require.NoError(t, err)
	require.True(t, ok)
}

func TestEvalNOTNegatesOr(t *testing.T) {
	f := &Filter{Operator: "NOT", Conditions: []Filter{
		{Condition: map[string]interface{}{"a": "1"}},
	}}
	row := Row{Id: "x", Fields: map[string]interface{}{"a": "1"}}
	ok, err := Eval(f, row, equalsPredicate, NewStorage())
	require.NoError(t, err)
	require.False(t, ok)

	row.Fields["a"] = "other"
	ok, err = Eval(f, row, equalsPredicate, NewStorage())
	require.NoError(t, err)
	require.True(t, ok)
}

func TestEvalNestedOperators(t *testing.T) {
	f := &Filter{Operator: "AND", Conditions: []Filter{
		{Operator: "OR", Conditions: []Filter{
			{Condition: map[string]interface{}{"a": "1"}},
			{Condition: map[string]interface{}{"a": "2"}},
		}},
		{Operator: "NOT", Conditions: []Filter{
			{Condition: map[string]interface{}{"b": "bad"}},
		}},
	}}
	row := Row{Id: "x", Fields: map[string]interface{}{"a": "2", "b": "fine"}}
	ok, err := Eval(f, row, equalsPredicate, NewStorage())
	require.NoError(t, err)
	require.True(t, ok)
}

func TestParseFilterLeaf(t *testing.T) {
	f, err := ParseFilter(map[string]interface{}{"inMailbox": "m1"})
	require.NoError(t, err)
	require.Equal(t, "", f.Operator)
	require.Equal(t, "m1", f.Condition["inMailbox"])
}

func TestParseFilterOperatorTree(t *testing.T) {
	raw := map[string]interface{}{
		"operator": "AND",
		"conditions": []interface{}{
			map[string]interface{}{"inMailbox": "m1"},
			map[string]interface{}{
				"operator": "NOT",
				"conditions": []interface{}{
					map[string]interface{}{"hasKeyword": "$seen"},
				},
			},
		},
	}
	f, err := ParseFilter(raw)
	require.NoError(t, err)
	require.Equal(t, "AND", f.Operator)
	require.Len(t, f.Conditions, 2)
	require.Equal(t, "NOT", f.Conditions[1].Operator)
}

func TestParseFilterRejectsUnknownOperator(t *testing.T) {
	_, err := ParseFilter(map[string]interface{}{
		"operator":   "XOR",
		"conditions": []interface{}{},
	})
	require.Error(t, err)
}

func TestParseFilterNilIsNil(t *testing.T) {
	f, err := ParseFilter(nil)
	require.NoError(t, err)
	require.Nil(t, f)
}

func TestCollectTextTerms(t *testing.T) {
	f := &Filter{Operator: "OR", Conditions: []Filter{
		{Condition: map[string]interface{}{"text": "invoice"}},
		{Condition: map[string]interface{}{"subject": "renewal"}},
	}}
	terms := CollectTextTerms(f, "text", "subject")
	require.ElementsMatch(t, []string{"invoice", "renewal"}, terms)
}

func TestCollectTextTermsIgnoresOtherPredicates(t *testing.T) {
	f := &Filter{Condition: map[string]interface{}{"inMailbox": "m1"}}
	terms := CollectTextTerms(f, "text")
	require.Empty(t, terms)
}
