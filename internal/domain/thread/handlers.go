package thread

import (
	"context"

	"github.com/brandon/jmap-core/internal/domain/shared"
	"github.com/brandon/jmap-core/internal/jmap"
	"github.com/brandon/jmap-core/internal/verb"
)

// Register binds Thread/get and Thread/changes onto reg.
func Register(reg *jmap.Registry, cap *Capability) {
	reg.Register("Thread/get", getHandler(cap))
	reg.Register("Thread/changes", changesHandler(cap))
}

func getHandler(cap *Capability) jmap.Handler {
	return func(args map[string]interface{}, ids *jmap.IdMap) ([]jmap.MethodResponse, error) {
		ga, verr := shared.GetArgs(args)
		if verr != nil {
			return []jmap.MethodResponse{shared.ErrorResponse(verr)}, nil
		}
		result, verr := verb.Get(context.Background(), cap, ga)
		if verr != nil {
			return []jmap.MethodResponse{shared.ErrorResponse(verr)}, nil
		}
		return []jmap.MethodResponse{shared.GetResponse("Thread", ga.AccountId, result)}, nil
	}
}

func changesHandler(cap *Capability) jmap.Handler {
	return func(args map[string]interface{}, ids *jmap.IdMap) ([]jmap.MethodResponse, error) {
		ca, verr := shared.ChangesArgs(args)
		if verr != nil {
			return []jmap.MethodResponse{shared.ErrorResponse(verr)}, nil
		}
		result, verr := verb.Changes(context.Background(), cap, ca)
		if verr != nil {
			return []jmap.MethodResponse{shared.ErrorResponse(verr)}, nil
		}
		return []jmap.MethodResponse{shared.ChangesResponse("Thread", ca.AccountId, result)}, nil
	}
}
