package email

import (
	"context"

	"github.com/brandon/jmap-core/internal/domain/shared"
	"github.com/brandon/jmap-core/internal/jmap"
	"github.com/brandon/jmap-core/internal/verb"
)

// Register binds every Email/* method onto reg, including the two
// non-uniform verbs import and copy.
func Register(reg *jmap.Registry, cap *Capability) {
	reg.Register("Email/get", getHandler(cap))
	reg.Register("Email/query", queryHandler(cap))
	reg.Register("Email/queryChanges", queryChangesHandler(cap))
	reg.Register("Email/changes", changesHandler(cap))
	reg.Register("Email/set", setHandler(cap))
	reg.Register("Email/import", importHandler(cap))
	reg.Register("Email/copy", copyHandler(cap))
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
		return []jmap.MethodResponse{shared.GetResponse("Email", ga.AccountId, result)}, nil
	}
}

func queryHandler(cap *Capability) jmap.Handler {
	return func(args map[string]interface{}, ids *jmap.IdMap) ([]jmap.MethodResponse, error) {
		qa, verr := shared.QueryArgs(args)
		if verr != nil {
			return []jmap.MethodResponse{shared.ErrorResponse(verr)}, nil
		}
		ctx := context.Background()
		result, verr := verb.Query(ctx, cap.bound(ctx, qa.AccountId), qa)
		if verr != nil {
			return []jmap.MethodResponse{shared.ErrorResponse(verr)}, nil
		}
		return []jmap.MethodResponse{shared.QueryResponse("Email", qa.AccountId, result)}, nil
	}
}

func queryChangesHandler(cap *Capability) jmap.Handler {
	return func(args map[string]interface{}, ids *jmap.IdMap) ([]jmap.MethodResponse, error) {
		qa, verr := shared.QueryChangesArgs(args)
		if verr != nil {
			return []jmap.MethodResponse{shared.ErrorResponse(verr)}, nil
		}
		ctx := context.Background()
		result, verr := verb.QueryChanges(ctx, cap.bound(ctx, qa.AccountId), qa)
		if verr != nil {
			return []jmap.MethodResponse{shared.ErrorResponse(verr)}, nil
		}
		return []jmap.MethodResponse{shared.QueryChangesResponse("Email", qa.AccountId, result)}, nil
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
		return []jmap.MethodResponse{shared.ChangesResponse("Email", ca.AccountId, result)}, nil
	}
}

func setHandler(cap *Capability) jmap.Handler {
	return func(args map[string]interface{}, idMap *jmap.IdMap) ([]jmap.MethodResponse, error) {
		sa, verr := shared.SetArgs(args)
		if verr != nil {
			return []jmap.MethodResponse{shared.ErrorResponse(verr)}, nil
		}
		result, verr := verb.Set(context.Background(), cap, idMap, sa)
		if verr != nil {
			return []jmap.MethodResponse{shared.ErrorResponse(verr)}, nil
		}
		return []jmap.MethodResponse{shared.SetResponse("Email", sa.AccountId, result)}, nil
	}
}

// importHandler implements Email/import: each entry names a blobId
// already uploaded via upload and the mailboxIds/keywords to file the
// parsed message under.
func importHandler(cap *Capability) jmap.Handler {
	return func(args map[string]interface{}, idMap *jmap.IdMap) ([]jmap.MethodResponse, error) {
		accountId, verr := shared.AccountId(args)
		if verr != nil {
			return []jmap.MethodResponse{shared.ErrorResponse(verr)}, nil
		}
		ctx := context.Background()
		oldState, err := cap.StateToken(ctx, accountId)
		if err != nil {
			return []jmap.MethodResponse{shared.ErrorResponse(&verb.VerbError{Type: "serverError", Description: err.Error()})}, nil
		}

		entries, _ := jmap.AsMap(args["emails"])
		created := make(map[string]interface{})
		notCreated := make(map[string]interface{})
		for creationId, raw := range entries {
			entry, ok := jmap.AsMap(raw)
			if !ok {
				notCreated[creationId] = map[string]interface{}{"type": "invalidArguments"}
				continue
			}
			spec := ImportSpec{
				BlobId:     asString(entry["blobId"]),
				MailboxIds: asBoolMap(entry["mailboxIds"]),
				Keywords:   asBoolMap(entry["keywords"]),
				ReceivedAt: asString(entry["receivedAt"]),
			}
			obj, verr := cap.Import(ctx, accountId, spec)
			if verr != nil {
				notCreated[creationId] = map[string]interface{}{"type": verr.Type, "description": verr.Description}
				continue
			}
			if id, ok := obj["id"].(string); ok {
				idMap.Set(creationId, id)
			}
			created[creationId] = obj
		}

		newState, err := cap.StateToken(ctx, accountId)
		if err != nil {
			return []jmap.MethodResponse{shared.ErrorResponse(&verb.VerbError{Type: "serverError", Description: err.Error()})}, nil
		}
		return []jmap.MethodResponse{{
			Name: "Email/import",
			Result: map[string]interface{}{
				"accountId":  accountId,
				"oldState":   oldState,
				"newState":   newState,
				"created":    created,
				"notCreated": notCreated,
			},
		}}, nil
	}
}

// copyHandler implements Email/copy: duplicates messages from
// fromAccountId into accountId, optionally re-mapping mailboxIds and
// keywords per entry.
func copyHandler(cap *Capability) jmap.Handler {
	return func(args map[string]interface{}, idMap *jmap.IdMap) ([]jmap.MethodResponse, error) {
		accountId, verr := shared.AccountId(args)
		if verr != nil {
			return []jmap.MethodResponse{shared.ErrorResponse(verr)}, nil
		}
		fromAccountId := shared.StringArg(args, "fromAccountId")
		if fromAccountId == "" {
			return []jmap.MethodResponse{shared.ErrorResponse(&verb.VerbError{Type: "invalidArguments", Description: "fromAccountId is required"})}, nil
		}
		ctx := context.Background()

		entries, _ := jmap.AsMap(args["create"])
		created := make(map[string]interface{})
		notCreated := make(map[string]interface{})
		for creationId, raw := range entries {
			entry, ok := jmap.AsMap(raw)
			if !ok {
				notCreated[creationId] = map[string]interface{}{"type": "invalidArguments"}
				continue
			}
			spec := CopySpec{
				SourceId:   asString(entry["id"]),
				MailboxIds: asBoolMap(entry["mailboxIds"]),
				Keywords:   asBoolMap(entry["keywords"]),
			}
			obj, verr := cap.Copy(ctx, fromAccountId, accountId, spec)
			if verr != nil {
				notCreated[creationId] = map[string]interface{}{"type": verr.Type, "description": verr.Description}
				continue
			}
			if id, ok := obj["id"].(string); ok {
				idMap.Set(creationId, id)
			}
			created[creationId] = obj
		}

		return []jmap.MethodResponse{{
			Name: "Email/copy",
			Result: map[string]interface{}{
				"fromAccountId": fromAccountId,
				"accountId":     accountId,
				"created":       created,
				"notCreated":    notCreated,
			},
		}}, nil
	}
}

func asBoolMap(v interface{}) map[string]interface{} {
	m, ok := jmap.AsMap(v)
	if !ok {
		return nil
	}
	return m
}

func asString(v interface{}) string {
	s, _ := jmap.AsString(v)
	return s
}
