package calendar

import (
	"context"

	"github.com/brandon/jmap-core/internal/domain/shared"
	"github.com/brandon/jmap-core/internal/jmap"
	"github.com/brandon/jmap-core/internal/verb"
)

// Register binds every Calendar/*, CalendarEvent/*, and
// CalendarPreferences/* method onto reg.
func Register(reg *jmap.Registry, cal *Capability, event *EventCapability, prefs *verb.SingletonCapability) {
	reg.Register("Calendar/get", getHandler("Calendar", cal))
	reg.Register("Calendar/changes", changesHandler("Calendar", cal))
	reg.Register("Calendar/set", setHandler("Calendar", cal))
	reg.Register("Calendar/refreshSynced", refreshSyncedHandler(cal))

	reg.Register("CalendarEvent/get", getHandler("CalendarEvent", event))
	reg.Register("CalendarEvent/query", eventQueryHandler(event))
	reg.Register("CalendarEvent/changes", changesHandler("CalendarEvent", event))
	reg.Register("CalendarEvent/set", setHandler("CalendarEvent", event))

	shared.RegisterGetSet(reg, "CalendarPreferences", prefs)
}

func getHandler(typeName string, cap verb.Capability) jmap.Handler {
	return func(args map[string]interface{}, ids *jmap.IdMap) ([]jmap.MethodResponse, error) {
		ga, verr := shared.GetArgs(args)
		if verr != nil {
			return []jmap.MethodResponse{shared.ErrorResponse(verr)}, nil
		}
		result, verr := verb.Get(context.Background(), cap, ga)
		if verr != nil {
			return []jmap.MethodResponse{shared.ErrorResponse(verr)}, nil
		}
		return []jmap.MethodResponse{shared.GetResponse(typeName, ga.AccountId, result)}, nil
	}
}

func changesHandler(typeName string, cap verb.Capability) jmap.Handler {
	return func(args map[string]interface{}, ids *jmap.IdMap) ([]jmap.MethodResponse, error) {
		ca, verr := shared.ChangesArgs(args)
		if verr != nil {
			return []jmap.MethodResponse{shared.ErrorResponse(verr)}, nil
		}
		result, verr := verb.Changes(context.Background(), cap, ca)
		if verr != nil {
			return []jmap.MethodResponse{shared.ErrorResponse(verr)}, nil
		}
		return []jmap.MethodResponse{shared.ChangesResponse(typeName, ca.AccountId, result)}, nil
	}
}

func setHandler(typeName string, cap verb.Capability) jmap.Handler {
	return func(args map[string]interface{}, idMap *jmap.IdMap) ([]jmap.MethodResponse, error) {
		sa, verr := shared.SetArgs(args)
		if verr != nil {
			return []jmap.MethodResponse{shared.ErrorResponse(verr)}, nil
		}
		result, verr := verb.Set(context.Background(), cap, idMap, sa)
		if verr != nil {
			return []jmap.MethodResponse{shared.ErrorResponse(verr)}, nil
		}
		return []jmap.MethodResponse{shared.SetResponse(typeName, sa.AccountId, result)}, nil
	}
}

func eventQueryHandler(cap *EventCapability) jmap.Handler {
	return func(args map[string]interface{}, ids *jmap.IdMap) ([]jmap.MethodResponse, error) {
		qa, verr := shared.QueryArgs(args)
		if verr != nil {
			return []jmap.MethodResponse{shared.ErrorResponse(verr)}, nil
		}
		result, verr := verb.Query(context.Background(), cap, qa)
		if verr != nil {
			return []jmap.MethodResponse{shared.ErrorResponse(verr)}, nil
		}
		return []jmap.MethodResponse{shared.QueryResponse("CalendarEvent", qa.AccountId, result)}, nil
	}
}

// refreshSyncedHandler implements Calendar/refreshSynced, a
// non-uniform verb that re-triggers the CollabSynchronizer pull
// Calendar/set's /sync step would otherwise only run lazily.
func refreshSyncedHandler(cap *Capability) jmap.Handler {
	return func(args map[string]interface{}, ids *jmap.IdMap) ([]jmap.MethodResponse, error) {
		accountId, verr := shared.AccountId(args)
		if verr != nil {
			return []jmap.MethodResponse{shared.ErrorResponse(verr)}, nil
		}
		ctx := context.Background()
		if err := cap.Sync(ctx, accountId); err != nil {
			return []jmap.MethodResponse{shared.ErrorResponse(&verb.VerbError{Type: "serverError", Description: err.Error()})}, nil
		}
		state, err := cap.StateToken(ctx, accountId)
		if err != nil {
			return []jmap.MethodResponse{shared.ErrorResponse(&verb.VerbError{Type: "serverError", Description: err.Error()})}, nil
		}
		return []jmap.MethodResponse{{
			Name:   "Calendar/refreshSynced",
			Result: map[string]interface{}{"accountId": accountId, "newState": state},
		}}, nil
	}
}
