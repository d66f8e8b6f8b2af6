package query

import (
	"fmt"
	"sort"
	"strings"
)

// SortValue is the comparison key a domain's SortKeyFunc computes for one
// row and property: either a numeric or a lexical ordering, never both.
type SortValue struct {
	Num       float64
	Str       string
	IsNumeric bool
}

// SortKeyFunc computes the comparison key for one row's property.
// scratch lets synthesized fields (e.g. mailbox "parent/name") compute
// their per-row key once per query rather than once per comparison.
type SortKeyFunc func(row Row, property string, scratch *Storage) (SortValue, error)

// SortField is one entry of a sort spec: a property name and direction.
type SortField struct {
	Property    string
	IsAscending bool
}

// ParseSort turns a raw JSON sort argument into a []SortField.
func ParseSort(v interface{}) ([]SortField, error) {
	if v == nil {
		return nil, nil
	}
	items, ok := v.([]interface{})
	if !ok {
		return nil, fmt.Errorf("invalidArguments: sort must be an array")
	}
	fields := make([]SortField, 0, len(items))
	for _, it := range items {
		m, ok := it.(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("invalidArguments: sort entry must be an object")
		}
		prop, _ := m["property"].(string)
		if prop == "" {
			return nil, fmt.Errorf("invalidArguments: sort entry missing property")
		}
		asc := true
		if v, ok := m["isAscending"].(bool); ok {
			asc = v
		}
		fields = append(fields, SortField{Property: prop, IsAscending: asc})
	}
	return fields, nil
}

// compare returns -1, 0, 1 for a vs b, comparing numerically if both
// values are numeric and lexically otherwise (so a numeric field
// compared against a lexical default stays well defined: numeric wins
// when both sides claim to be numeric, string compare otherwise).
func compare(a, b SortValue) int {
	if a.IsNumeric && b.IsNumeric {
		switch {
		case a.Num < b.Num:
			return -1
		case a.Num > b.Num:
			return 1
		default:
			return 0
		}
	}
	return strings.Compare(a.Str, b.Str)
}

// Sort orders rows in place according to fields, folded into a stable
// comparator with a final tie-break on id ascending. Reverse ordering
// flips the sign of the per-field comparison.
func Sort(rows []Row, fields []SortField, keyFn SortKeyFunc, scratch *Storage) error {
	var sortErr error
	sort.SliceStable(rows, func(i, j int) bool {
		if sortErr != nil {
			return false
		}
		for _, f := range fields {
			ki, err := keyFn(rows[i], f.Property, scratch)
			if err != nil {
				sortErr = err
				return false
			}
			kj, err := keyFn(rows[j], f.Property, scratch)
			if err != nil {
				sortErr = err
				return false
			}
			c := compare(ki, kj)
			if !f.IsAscending {
				c = -c
			}
			if c != 0 {
				return c < 0
			}
		}
		return rows[i].Id < rows[j].Id
	})
	return sortErr
}
