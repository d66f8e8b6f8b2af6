package submission

import (
	"context"
	"strings"

	"github.com/brandon/jmap-core/internal/domain/email"
	"github.com/brandon/jmap-core/internal/domain/shared"
	"github.com/brandon/jmap-core/internal/jmap"
	"github.com/brandon/jmap-core/internal/verb"
)

// Register binds EmailSubmission/{get,query,queryChanges,changes,set}
// onto reg. set wraps the uniform verb.Set with the implicit Email/set
// driven by onSuccessUpdateEmail and onSuccessDestroyEmail.
func Register(reg *jmap.Registry, cap *Capability, emails *email.Capability) {
	reg.Register("EmailSubmission/get", getHandler(cap))
	reg.Register("EmailSubmission/query", queryHandler(cap))
	reg.Register("EmailSubmission/queryChanges", queryChangesHandler(cap))
	reg.Register("EmailSubmission/changes", changesHandler(cap))
	reg.Register("EmailSubmission/set", setHandler(cap, emails))
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
		return []jmap.MethodResponse{shared.GetResponse("EmailSubmission", ga.AccountId, result)}, nil
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
		return []jmap.MethodResponse{shared.QueryResponse("EmailSubmission", qa.AccountId, result)}, nil
	}
}

func queryChangesHandler(cap *Capability) jmap.Handler {
	return func(args map[string]interface{}, ids *jmap.IdMap) ([]jmap.MethodResponse, error) {
		qa, verr := shared.QueryChangesArgs(args)
		if verr != nil {
			return []jmap.MethodResponse{shared.ErrorResponse(verr)}, nil
		}
		result, verr := verb.QueryChanges(context.Background(), cap, qa)
		if verr != nil {
			return []jmap.MethodResponse{shared.ErrorResponse(verr)}, nil
		}
		return []jmap.MethodResponse{shared.QueryChangesResponse("EmailSubmission", qa.AccountId, result)}, nil
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
		return []jmap.MethodResponse{shared.ChangesResponse("EmailSubmission", ca.AccountId, result)}, nil
	}
}

// setHandler runs the uniform create/update/destroy pass and then, for
// every submission that was created or updated successfully, applies the
// matching patch or destroy named in onSuccessUpdateEmail/
// onSuccessDestroyEmail against the email referenced by that
// submission's emailId. Submissions destroyed by the same call are not
// included.
func setHandler(cap *Capability, emails *email.Capability) jmap.Handler {
	return func(args map[string]interface{}, idMap *jmap.IdMap) ([]jmap.MethodResponse, error) {
		sa, verr := shared.SetArgs(args)
		if verr != nil {
			return []jmap.MethodResponse{shared.ErrorResponse(verr)}, nil
		}
		ctx := context.Background()
		result, verr := verb.Set(ctx, cap, idMap, sa)
		if verr != nil {
			return []jmap.MethodResponse{shared.ErrorResponse(verr)}, nil
		}

		onUpdate, _ := jmap.AsMap(args["onSuccessUpdateEmail"])
		onDestroyRaw, _ := args["onSuccessDestroyEmail"].([]interface{})
		onDestroy := jmap.StringList(onDestroyRaw)

		succeeded := make(map[string]string) // submission id -> emailId
		record := func(id string) {
			if row, found, err := cap.LoadOne(ctx, sa.AccountId, id); err == nil && found {
				if emailId, ok := row.Fields["emailId"].(string); ok {
					succeeded[id] = emailId
				}
			}
		}
		for _, obj := range result.Created {
			if id, _ := obj["id"].(string); id != "" {
				record(id)
			}
		}
		for id := range result.Updated {
			record(id)
		}

		for ref, patchRaw := range onUpdate {
			emailId, ok := succeeded[resolveRef(ref, idMap)]
			if !ok {
				continue
			}
			patch, ok := jmap.AsMap(patchRaw)
			if !ok {
				continue
			}
			emails.Update(ctx, sa.AccountId, emailId, patch)
		}
		for _, ref := range onDestroy {
			emailId, ok := succeeded[resolveRef(ref, idMap)]
			if !ok {
				continue
			}
			emails.Destroy(ctx, sa.AccountId, emailId)
		}

		return []jmap.MethodResponse{shared.SetResponse("EmailSubmission", sa.AccountId, result)}, nil
	}
}

func resolveRef(ref string, idMap *jmap.IdMap) string {
	if strings.HasPrefix(ref, "#") {
		return idMap.ResolveId(ref)
	}
	return ref
}
