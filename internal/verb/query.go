package verb

import (
	"context"

	"github.com/brandon/jmap-core/internal/query"
)

// QueryArgs is the parsed input of a /query call. At most one of
// Position or Anchor may be set; Query rejects both set at once with
// invalidArguments.
type QueryArgs struct {
	AccountId       string
	Filter          *query.Filter
	Sort            []query.SortField
	Position        *int64
	Anchor          string
	AnchorOffset    int64
	Limit           *int64
	CollapseThreads bool
}

// QueryResult is the output of a /query call.
type QueryResult struct {
	QueryState          string
	Position            int64
	Total               int
	Ids                 []string
	CanCalculateChanges bool
}

// Query implements spec §4.4's /query verb and §4.6's algorithm: load
// candidate rows, sort, filter, optionally collapse threads, then
// window to the requested slice.
func Query(ctx context.Context, cap Capability, args QueryArgs) (QueryResult, *VerbError) {
	if args.Position != nil && args.Anchor != "" {
		return QueryResult{}, errTypef("invalidArguments", "position and anchor are mutually exclusive")
	}
	if args.Position != nil && *args.Position < 0 {
		return QueryResult{}, errTypef("invalidArguments", "position must not be negative")
	}
	if args.CollapseThreads {
		collapsible, ok := cap.(Collapsible)
		if !ok || !collapsible.SupportsCollapseThreads() {
			return QueryResult{}, errTypef("invalidArguments", "collapseThreads is not supported for this type")
		}
	}

	rows, err := cap.LoadAll(ctx, args.AccountId)
	if err != nil {
		return QueryResult{}, errTypef("serverError", err.Error())
	}
	active := make([]Row, 0, len(rows))
	for _, r := range rows {
		if r.Active {
			active = append(active, r)
		}
	}

	scratch := query.NewStorage()
	queryRows := make([]query.Row, len(active))
	for i, r := range active {
		queryRows[i] = r.QueryRow()
	}
	if sortErr := query.Sort(queryRows, args.Sort, cap.SortKey, scratch); sortErr != nil {
		return QueryResult{}, errTypef("invalidArguments", sortErr.Error())
	}

	ids := make([]string, 0, len(queryRows))
	for _, qr := range queryRows {
		ok, evalErr := query.Eval(args.Filter, qr, cap.FilterPredicate, scratch)
		if evalErr != nil {
			return QueryResult{}, errTypef("invalidArguments", evalErr.Error())
		}
		if ok {
			ids = append(ids, qr.Id)
		}
	}

	if args.CollapseThreads {
		ids = collapseThreadIds(active, ids)
	}

	state, err := cap.StateToken(ctx, args.AccountId)
	if err != nil {
		return QueryResult{}, errTypef("serverError", err.Error())
	}

	result := QueryResult{
		QueryState:          state,
		Total:               len(ids),
		CanCalculateChanges: true,
	}

	start := int64(0)
	switch {
	case args.Anchor != "":
		idx := indexOf(ids, args.Anchor)
		if idx < 0 {
			return QueryResult{}, errType("anchorNotFound")
		}
		start = int64(idx) + args.AnchorOffset
		if start < 0 {
			start = 0
		}
	case args.Position != nil:
		start = *args.Position
	}
	if start > int64(len(ids)) {
		start = int64(len(ids))
	}
	result.Position = start

	end := int64(len(ids))
	if args.Limit != nil && start+*args.Limit < end {
		end = start + *args.Limit
	}
	result.Ids = append([]string{}, ids[start:end]...)

	return result, nil
}

// collapseThreadIds reduces a sorted, filtered id list to one exemplar
// per thread — the first occurrence of each thread id in sort order.
func collapseThreadIds(rows []Row, filteredIds []string) []string {
	threadOf := make(map[string]string, len(rows))
	for _, r := range rows {
		threadOf[r.Id] = r.ThreadId
	}
	seen := make(map[string]bool, len(filteredIds))
	out := make([]string, 0, len(filteredIds))
	for _, id := range filteredIds {
		t := threadOf[id]
		if t != "" && seen[t] {
			continue
		}
		if t != "" {
			seen[t] = true
		}
		out = append(out, id)
	}
	return out
}

func indexOf(ids []string, id string) int {
	for i, v := range ids {
		if v == id {
			return i
		}
	}
	return -1
}
