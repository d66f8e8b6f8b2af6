package contact

import (
	"context"

	"github.com/brandon/jmap-core/internal/domain/shared"
	"github.com/brandon/jmap-core/internal/jmap"
	"github.com/brandon/jmap-core/internal/verb"
)

// Register binds Addressbook/{get,changes}, Contact/*, and
// ContactGroup/* onto reg.
func Register(reg *jmap.Registry, books *AddressbookCapability, contacts *ContactCapability, groups *ContactGroupCapability) {
	reg.Register("Addressbook/get", getHandler("Addressbook", books))
	reg.Register("Addressbook/changes", changesHandler("Addressbook", books))

	reg.Register("Contact/get", getHandler("Contact", contacts))
	reg.Register("Contact/query", contactQueryHandler(contacts))
	reg.Register("Contact/changes", changesHandler("Contact", contacts))
	reg.Register("Contact/set", setHandler("Contact", contacts))

	reg.Register("ContactGroup/get", getHandler("ContactGroup", groups))
	reg.Register("ContactGroup/changes", changesHandler("ContactGroup", groups))
	reg.Register("ContactGroup/set", setHandler("ContactGroup", groups))
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

func contactQueryHandler(cap *ContactCapability) jmap.Handler {
	return func(args map[string]interface{}, ids *jmap.IdMap) ([]jmap.MethodResponse, error) {
		qa, verr := shared.QueryArgs(args)
		if verr != nil {
			return []jmap.MethodResponse{shared.ErrorResponse(verr)}, nil
		}
		result, verr := verb.Query(context.Background(), cap, qa)
		if verr != nil {
			return []jmap.MethodResponse{shared.ErrorResponse(verr)}, nil
		}
		return []jmap.MethodResponse{shared.QueryResponse("Contact", qa.AccountId, result)}, nil
	}
}
