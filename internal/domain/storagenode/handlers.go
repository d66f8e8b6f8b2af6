package storagenode

import (
	"context"

	"github.com/brandon/jmap-core/internal/domain/shared"
	"github.com/brandon/jmap-core/internal/jmap"
	"github.com/brandon/jmap-core/internal/verb"
)

// Register binds StorageNode/{get,query} onto reg.
func Register(reg *jmap.Registry, cap *Capability) {
	reg.Register("StorageNode/get", getHandler(cap))
	reg.Register("StorageNode/query", queryHandler(cap))
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
		return []jmap.MethodResponse{shared.GetResponse("StorageNode", ga.AccountId, result)}, nil
	}
}

func queryHandler(cap *Capability) jmap.Handler {
	return func(args map[string]interface{}, ids *jmap.IdMap) ([]jmap.MethodResponse, error) {
		qa, verr := shared.QueryArgs(args)
		if verr != nil {
			return []jmap.MethodResponse{shared.ErrorResponse(verr)}, nil
		}
		result, verr := verb.Query(context.Background(), cap, qa)
		if verr != nil {
			return []jmap.MethodResponse{shared.ErrorResponse(verr)}, nil
		}
		return []jmap.MethodResponse{shared.QueryResponse("StorageNode", qa.AccountId, result)}, nil
	}
}
