package query

import "fmt"

// Row is the minimal shape the filter/sort engine needs from a domain
// row: an id for tie-breaking and a bag of type-specific fields the
// domain's own predicate/sort-key functions interpret.
type Row struct {
	Id     string
	Fields map[string]interface{}
}

// PredicateFunc evaluates one domain-specific leaf condition (a map of
// predicate names to operands) against a row. scratch is the shared
// per-query Storage for memoizing expensive derived data.
type PredicateFunc func(row Row, condition map[string]interface{}, scratch *Storage) (bool, error)

// Filter is either a leaf condition or an operator node. Exactly one of
// Condition or (Operator, Conditions) is populated.
type Filter struct {
	Operator   string // "AND", "OR", "NOT", or "" for a leaf
	Conditions []Filter
	Condition  map[string]interface{}
}

// ParseFilter turns a raw JSON filter argument into a Filter tree. A nil
// v parses to a nil *Filter (treated by Eval as "match everything").
func ParseFilter(v interface{}) (*Filter, error) {
	if v == nil {
		return nil, nil
	}
	m, ok := v.(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("invalidArguments: filter must be an object")
	}
	return parseFilterMap(m)
}

func parseFilterMap(m map[string]interface{}) (*Filter, error) {
	op, hasOp := m["operator"].(string)
	if !hasOp {
		return &Filter{Condition: m}, nil
	}
	rawConds, _ := m["conditions"].([]interface{})
	conds := make([]Filter, 0, len(rawConds))
	for _, rc := range rawConds {
		cm, ok := rc.(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("invalidArguments: filter condition must be an object")
		}
		sub, err := parseFilterMap(cm)
		if err != nil {
			return nil, err
		}
		conds = append(conds, *sub)
	}
	switch op {
	case "AND", "OR", "NOT":
	default:
		return nil, fmt.Errorf("invalidArguments: unknown filter operator %q", op)
	}
	return &Filter{Operator: op, Conditions: conds}, nil
}

// Eval evaluates f against row using pred for leaf conditions. A nil f
// matches everything (missing filter = match all, per spec §9).
//
// AND short-circuits to false on the first unmatched sub-condition,
// OR short-circuits to true on the first matched one, and NOT is the
// logical negation of OR over its sub-conditions. An empty AND node is
// vacuously true; an empty OR is vacuously false, and so an empty NOT is
// true — standard boolean identities, since the source leaves the
// empty-node case undefined.
func Eval(f *Filter, row Row, pred PredicateFunc, scratch *Storage) (bool, error) {
	if f == nil {
		return true, nil
	}
	if f.Operator == "" {
		if len(f.Condition) == 0 {
			return true, nil
		}
		return pred(row, f.Condition, scratch)
	}

	switch f.Operator {
	case "AND":
		for _, sub := range f.Conditions {
			ok, err := Eval(&sub, row, pred, scratch)
			if err != nil {
				return false, err
			}
			if !ok {
				return false, nil
			}
		}
		return true, nil

	case "OR":
		for _, sub := range f.Conditions {
			ok, err := Eval(&sub, row, pred, scratch)
			if err != nil {
				return false, err
			}
			if ok {
				return true, nil
			}
		}
		return false, nil

	case "NOT":
		matched, err := evalOr(f.Conditions, row, pred, scratch)
		if err != nil {
			return false, err
		}
		return !matched, nil

	default:
		return false, fmt.Errorf("invalidArguments: unknown filter operator %q", f.Operator)
	}
}

func evalOr(conds []Filter, row Row, pred PredicateFunc, scratch *Storage) (bool, error) {
	for _, sub := range conds {
		ok, err := Eval(&sub, row, pred, scratch)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

// CollectTextTerms walks f and returns every string operand found under
// the given predicate names, recursing through operator nodes. Used by
// SearchSnippet/get to find the terms to highlight in a preview.
func CollectTextTerms(f *Filter, predicateNames ...string) []string {
	if f == nil {
		return nil
	}
	var terms []string
	if f.Operator == "" {
		for _, name := range predicateNames {
			if s, ok := f.Condition[name].(string); ok && s != "" {
				terms = append(terms, s)
			}
		}
		return terms
	}
	for _, sub := range f.Conditions {
		terms = append(terms, CollectTextTerms(&sub, predicateNames...)...)
	}
	return terms
}
