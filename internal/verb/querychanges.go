package verb

import (
	"context"

	"github.com/brandon/jmap-core/internal/query"
)

// QueryChangesArgs is the parsed input of a /queryChanges call.
type QueryChangesArgs struct {
	AccountId       string
	Filter          *query.Filter
	Sort            []query.SortField
	SinceQueryState int64
	MaxChanges      int
	UpToId          string
	CollapseThreads bool
}

// QueryChangesResult is the output of a /queryChanges call.
type QueryChangesResult struct {
	OldQueryState string
	NewQueryState string
	Total         int
	Removed       []string
	Added         []query.Added
}

// QueryChanges implements spec §4.4's /queryChanges verb on top of
// §4.7's delta-reconstruction engine: sort and filter every row exactly
// as /query would, then hand the resulting candidate set to the
// Uncollapsed or Collapsed reconstruction depending on CollapseThreads.
func QueryChanges(ctx context.Context, cap Capability, args QueryChangesArgs) (QueryChangesResult, *VerbError) {
	if args.CollapseThreads {
		collapsible, ok := cap.(Collapsible)
		if !ok || !collapsible.SupportsCollapseThreads() {
			return QueryChangesResult{}, errTypef("invalidArguments", "collapseThreads is not supported for this type")
		}
	}

	rows, err := cap.LoadAll(ctx, args.AccountId)
	if err != nil {
		return QueryChangesResult{}, errTypef("serverError", err.Error())
	}

	scratch := query.NewStorage()
	queryRows := make([]query.Row, len(rows))
	for i, r := range rows {
		queryRows[i] = r.QueryRow()
	}
	if sortErr := query.Sort(queryRows, args.Sort, cap.SortKey, scratch); sortErr != nil {
		return QueryChangesResult{}, errTypef("invalidArguments", sortErr.Error())
	}

	rowById := make(map[string]Row, len(rows))
	for _, r := range rows {
		rowById[r.Id] = r
	}

	changeRows := make([]query.ChangeRow, len(queryRows))
	for i, qr := range queryRows {
		r := rowById[qr.Id]
		isIn := r.Active
		if isIn {
			ok, evalErr := query.Eval(args.Filter, qr, cap.FilterPredicate, scratch)
			if evalErr != nil {
				return QueryChangesResult{}, errTypef("invalidArguments", evalErr.Error())
			}
			isIn = ok
		}
		changeRows[i] = r.ChangeRow(isIn)
	}

	var delta query.Delta
	var deltaErr error
	if args.CollapseThreads {
		delta, deltaErr = query.Collapsed(changeRows, args.SinceQueryState, args.MaxChanges, args.UpToId)
	} else {
		delta, deltaErr = query.Uncollapsed(changeRows, args.SinceQueryState, args.MaxChanges, args.UpToId)
	}
	if deltaErr != nil {
		return QueryChangesResult{}, errTypef("cannotCalculateChanges", deltaErr.Error())
	}

	newState, err := cap.StateToken(ctx, args.AccountId)
	if err != nil {
		return QueryChangesResult{}, errTypef("serverError", err.Error())
	}

	return QueryChangesResult{
		NewQueryState: newState,
		Total:         delta.Total,
		Removed:       delta.Removed,
		Added:         delta.Added,
	}, nil
}
