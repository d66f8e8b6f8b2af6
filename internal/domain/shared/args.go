// Package shared implements the argument-binding and response-shaping
// boilerplate every domain handler in internal/domain/* needs around the
// uniform-verb framework, so each of the fourteen data types only has to
// supply its own filter/sort grammar and CRUD overrides.
package shared

import (
	"strconv"

	"github.com/brandon/jmap-core/internal/jmap"
	"github.com/brandon/jmap-core/internal/query"
	"github.com/brandon/jmap-core/internal/verb"
)

// AccountId pulls the required accountId argument out of args.
func AccountId(args map[string]interface{}) (string, *verb.VerbError) {
	id, _ := args["accountId"].(string)
	if id == "" {
		return "", &verb.VerbError{Type: "accountNotFound"}
	}
	return id, nil
}

// SinceState parses the sinceState argument every /changes and
// /queryChanges call requires.
func SinceState(args map[string]interface{}, key string) (int64, *verb.VerbError) {
	s, _ := args[key].(string)
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, &verb.VerbError{Type: "invalidArguments", Description: key + " must be a numeric string"}
	}
	return n, nil
}

// IntArg reads an optional numeric argument, defaulting to 0 if absent
// or not a number.
func IntArg(args map[string]interface{}, key string) int {
	if f, ok := args[key].(float64); ok {
		return int(f)
	}
	return 0
}

// Int64Ptr reads an optional numeric argument as a pointer, returning
// nil if absent, matching /query's "position omitted" semantics.
func Int64Ptr(args map[string]interface{}, key string) *int64 {
	f, ok := args[key].(float64)
	if !ok {
		return nil
	}
	v := int64(f)
	return &v
}

// StringArg reads an optional string argument.
func StringArg(args map[string]interface{}, key string) string {
	s, _ := args[key].(string)
	return s
}

// BoolArg reads an optional bool argument.
func BoolArg(args map[string]interface{}, key string) bool {
	b, _ := args[key].(bool)
	return b
}

// GetArgs binds a /get call's standard arguments: accountId, ids
// (nil means every object), properties (nil means every property).
func GetArgs(args map[string]interface{}) (verb.GetArgs, *verb.VerbError) {
	accountId, verr := AccountId(args)
	if verr != nil {
		return verb.GetArgs{}, verr
	}
	var ids []string
	if v, ok := args["ids"]; ok && v != nil {
		ids = jmap.StringList(v)
	}
	return verb.GetArgs{
		AccountId:  accountId,
		Ids:        ids,
		Properties: jmap.StringList(args["properties"]),
	}, nil
}

// ChangesArgs binds a /changes call's standard arguments.
func ChangesArgs(args map[string]interface{}) (verb.ChangesArgs, *verb.VerbError) {
	accountId, verr := AccountId(args)
	if verr != nil {
		return verb.ChangesArgs{}, verr
	}
	since, verr := SinceState(args, "sinceState")
	if verr != nil {
		return verb.ChangesArgs{}, verr
	}
	return verb.ChangesArgs{
		AccountId:  accountId,
		SinceState: since,
		MaxChanges: IntArg(args, "maxChanges"),
	}, nil
}

// QueryArgs binds a /query call's standard arguments, parsing filter
// and sort through internal/query.
func QueryArgs(args map[string]interface{}) (verb.QueryArgs, *verb.VerbError) {
	accountId, verr := AccountId(args)
	if verr != nil {
		return verb.QueryArgs{}, verr
	}
	filter, err := query.ParseFilter(args["filter"])
	if err != nil {
		return verb.QueryArgs{}, &verb.VerbError{Type: "invalidArguments", Description: err.Error()}
	}
	sort, err := query.ParseSort(args["sort"])
	if err != nil {
		return verb.QueryArgs{}, &verb.VerbError{Type: "invalidArguments", Description: err.Error()}
	}
	return verb.QueryArgs{
		AccountId:       accountId,
		Filter:          filter,
		Sort:            sort,
		Position:        Int64Ptr(args, "position"),
		Anchor:          StringArg(args, "anchor"),
		AnchorOffset:    int64(IntArg(args, "anchorOffset")),
		Limit:           Int64Ptr(args, "limit"),
		CollapseThreads: BoolArg(args, "collapseThreads"),
	}, nil
}

// QueryChangesArgs binds a /queryChanges call's standard arguments.
func QueryChangesArgs(args map[string]interface{}) (verb.QueryChangesArgs, *verb.VerbError) {
	accountId, verr := AccountId(args)
	if verr != nil {
		return verb.QueryChangesArgs{}, verr
	}
	filter, err := query.ParseFilter(args["filter"])
	if err != nil {
		return verb.QueryChangesArgs{}, &verb.VerbError{Type: "invalidArguments", Description: err.Error()}
	}
	sort, err := query.ParseSort(args["sort"])
	if err != nil {
		return verb.QueryChangesArgs{}, &verb.VerbError{Type: "invalidArguments", Description: err.Error()}
	}
	since, verr := SinceState(args, "sinceQueryState")
	if verr != nil {
		return verb.QueryChangesArgs{}, verr
	}
	return verb.QueryChangesArgs{
		AccountId:       accountId,
		Filter:          filter,
		Sort:            sort,
		SinceQueryState: since,
		MaxChanges:      IntArg(args, "maxChanges"),
		UpToId:          StringArg(args, "upToId"),
		CollapseThreads: BoolArg(args, "collapseThreads"),
	}, nil
}

// SetArgs binds a /set call's standard arguments.
func SetArgs(args map[string]interface{}) (verb.SetArgs, *verb.VerbError) {
	accountId, verr := AccountId(args)
	if verr != nil {
		return verb.SetArgs{}, verr
	}
	create := make(map[string]map[string]interface{})
	if m, ok := jmap.AsMap(args["create"]); ok {
		for k, v := range m {
			if props, ok := jmap.AsMap(v); ok {
				create[k] = props
			}
		}
	}
	update := make(map[string]map[string]interface{})
	if m, ok := jmap.AsMap(args["update"]); ok {
		for k, v := range m {
			if props, ok := jmap.AsMap(v); ok {
				update[k] = props
			}
		}
	}
	var destroy []string
	if d, ok := args["destroy"]; ok {
		destroy = jmap.StringList(d)
	}
	return verb.SetArgs{
		AccountId: accountId,
		Create:    create,
		Update:    update,
		Destroy:   destroy,
		IfInState: StringArg(args, "ifInState"),
	}, nil
}

func nonNilStrings(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
