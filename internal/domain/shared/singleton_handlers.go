package shared

import (
	"context"

	"github.com/brandon/jmap-core/internal/jmap"
	"github.com/brandon/jmap-core/internal/verb"
)

// RegisterGetOnly binds "<typeName>/get" for a singleton-typed
// capability that has no /set method (VacationResponse, Identity,
// Quota).
func RegisterGetOnly(reg *jmap.Registry, typeName string, cap verb.Capability) {
	reg.Register(typeName+"/get", singletonGetHandler(typeName, cap))
}

// RegisterGetSet binds "<typeName>/get" and "<typeName>/set" for a
// singleton-typed capability (UserPreferences, ClientPreferences,
// CalendarPreferences).
func RegisterGetSet(reg *jmap.Registry, typeName string, cap verb.Capability) {
	reg.Register(typeName+"/get", singletonGetHandler(typeName, cap))
	reg.Register(typeName+"/set", singletonSetHandler(typeName, cap))
}

func singletonGetHandler(typeName string, cap verb.Capability) jmap.Handler {
	return func(args map[string]interface{}, ids *jmap.IdMap) ([]jmap.MethodResponse, error) {
		ga, verr := GetArgs(args)
		if verr != nil {
			return []jmap.MethodResponse{ErrorResponse(verr)}, nil
		}
		result, verr := verb.Get(context.Background(), cap, ga)
		if verr != nil {
			return []jmap.MethodResponse{ErrorResponse(verr)}, nil
		}
		return []jmap.MethodResponse{GetResponse(typeName, ga.AccountId, result)}, nil
	}
}

func singletonSetHandler(typeName string, cap verb.Capability) jmap.Handler {
	return func(args map[string]interface{}, idMap *jmap.IdMap) ([]jmap.MethodResponse, error) {
		sa, verr := SetArgs(args)
		if verr != nil {
			return []jmap.MethodResponse{ErrorResponse(verr)}, nil
		}
		result, verr := verb.Set(context.Background(), cap, idMap, sa)
		if verr != nil {
			return []jmap.MethodResponse{ErrorResponse(verr)}, nil
		}
		return []jmap.MethodResponse{SetResponse(typeName, sa.AccountId, result)}, nil
	}
}
