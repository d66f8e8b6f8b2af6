package shared

import (
	"github.com/brandon/jmap-core/internal/jmap"
	"github.com/brandon/jmap-core/internal/verb"
)

// ErrorResponse wraps a VerbError as the ["error", {...}] response
// shape spec §7 calls for. The dispatcher fills in CallTag.
func ErrorResponse(verr *verb.VerbError) jmap.MethodResponse {
	return jmap.MethodResponse{
		Name: "error",
		Result: jmap.ErrorResult{
			Type:        verr.Type,
			Description: verr.Description,
		},
	}
}

// GetResponse shapes a GetResult into a "<Type>/get" response.
func GetResponse(typeName, accountId string, r verb.GetResult) jmap.MethodResponse {
	list := r.List
	if list == nil {
		list = []verb.Object{}
	}
	return jmap.MethodResponse{
		Name: typeName + "/get",
		Result: map[string]interface{}{
			"accountId": accountId,
			"state":     r.State,
			"list":      list,
			"notFound":  nonNilStrings(r.NotFound),
		},
	}
}

// ChangesResponse shapes a ChangesResult into a "<Type>/changes"
// response.
func ChangesResponse(typeName, accountId string, r verb.ChangesResult) jmap.MethodResponse {
	return jmap.MethodResponse{
		Name: typeName + "/changes",
		Result: map[string]interface{}{
			"accountId":         accountId,
			"oldState":          r.OldState,
			"newState":          r.NewState,
			"hasMoreChanges":    false,
			"created":           nonNilStrings(r.Created),
			"updated":           nonNilStrings(r.Updated),
			"removed":           nonNilStrings(r.Removed),
			"changedProperties": r.ChangedProperties,
		},
	}
}

// QueryResponse shapes a QueryResult into a "<Type>/query" response.
func QueryResponse(typeName, accountId string, r verb.QueryResult) jmap.MethodResponse {
	ids := r.Ids
	if ids == nil {
		ids = []string{}
	}
	return jmap.MethodResponse{
		Name: typeName + "/query",
		Result: map[string]interface{}{
			"accountId":           accountId,
			"queryState":          r.QueryState,
			"canCalculateChanges": r.CanCalculateChanges,
			"position":            r.Position,
			"total":               r.Total,
			"ids":                 ids,
		},
	}
}

// QueryChangesResponse shapes a QueryChangesResult into a
// "<Type>/queryChanges" response.
func QueryChangesResponse(typeName, accountId string, r verb.QueryChangesResult) jmap.MethodResponse {
	added := make([]map[string]interface{}, len(r.Added))
	for i, a := range r.Added {
		added[i] = map[string]interface{}{"id": a.Id, "index": a.Index}
	}
	return jmap.MethodResponse{
		Name: typeName + "/queryChanges",
		Result: map[string]interface{}{
			"accountId":     accountId,
			"oldQueryState": r.OldQueryState,
			"newQueryState": r.NewQueryState,
			"total":         r.Total,
			"removed":       nonNilStrings(r.Removed),
			"added":         added,
		},
	}
}

// SetResponse shapes a SetResult into a "<Type>/set" response.
func SetResponse(typeName, accountId string, r verb.SetResult) jmap.MethodResponse {
	return jmap.MethodResponse{
		Name: typeName + "/set",
		Result: map[string]interface{}{
			"accountId":    accountId,
			"oldState":     r.OldState,
			"newState":     r.NewState,
			"created":      r.Created,
			"notCreated":   errMap(r.NotCreated),
			"updated":      r.Updated,
			"notUpdated":   errMap(r.NotUpdated),
			"destroyed":    nonNilStrings(r.Destroyed),
			"notDestroyed": errMap(r.NotDestroyed),
		},
	}
}

func errMap(m map[string]*verb.VerbError) map[string]jmap.ErrorResult {
	out := make(map[string]jmap.ErrorResult, len(m))
	for k, v := range m {
		out[k] = jmap.ErrorResult{Type: v.Type, Description: v.Description}
	}
	return out
}
