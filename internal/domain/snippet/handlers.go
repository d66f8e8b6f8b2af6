package snippet

import (
	"context"

	"github.com/brandon/jmap-core/internal/domain/email"
	"github.com/brandon/jmap-core/internal/domain/shared"
	"github.com/brandon/jmap-core/internal/jmap"
	"github.com/brandon/jmap-core/internal/query"
	"github.com/brandon/jmap-core/internal/verb"
)

// Register binds SearchSnippet/get onto reg.
func Register(reg *jmap.Registry, emails *email.Capability) {
	reg.Register("SearchSnippet/get", getHandler(emails))
}

// getHandler implements SearchSnippet/get's non-uniform shape: its list
// entries key on emailId rather than id, so it bypasses shared.GetArgs
// and shared.GetResponse in favor of hand-rolling both.
func getHandler(emails *email.Capability) jmap.Handler {
	return func(args map[string]interface{}, ids *jmap.IdMap) ([]jmap.MethodResponse, error) {
		accountId, verr := shared.AccountId(args)
		if verr != nil {
			return []jmap.MethodResponse{shared.ErrorResponse(verr)}, nil
		}
		filter, err := query.ParseFilter(args["filter"])
		if err != nil {
			return []jmap.MethodResponse{shared.ErrorResponse(&verb.VerbError{Type: "invalidArguments", Description: err.Error()})}, nil
		}

		ctx := context.Background()
		snippets, notFound, verr := Get(ctx, emails, Args{
			AccountId:       accountId,
			EmailIds:        jmap.StringList(args["emailIds"]),
			Filter:          filter,
			CollapseThreads: shared.BoolArg(args, "collapseThreads"),
		})
		if verr != nil {
			return []jmap.MethodResponse{shared.ErrorResponse(verr)}, nil
		}

		list := make([]map[string]interface{}, 0, len(snippets))
		for _, s := range snippets {
			list = append(list, map[string]interface{}{
				"emailId": s.EmailId,
				"subject": s.Subject,
				"preview": s.Preview,
			})
		}
		if notFound == nil {
			notFound = []string{}
		}

		return []jmap.MethodResponse{{
			Name: "SearchSnippet/get",
			Result: map[string]interface{}{
				"accountId": accountId,
				"list":      list,
				"notFound":  notFound,
			},
		}}, nil
	}
}
