package verb

import (
	"context"
	"strconv"
)

// ChangesArgs is the parsed input of a /changes call.
type ChangesArgs struct {
	AccountId  string
	SinceState int64
	MaxChanges int // 0 means unbounded
}

// ChangesResult is the output of a /changes call.
type ChangesResult struct {
	OldState string
	NewState string
	Created  []string
	Updated  []string
	Removed  []string

	// ChangedProperties is non-nil only for Mailbox, per spec §4.4.
	ChangedProperties []interface{}
}

// Changes implements spec §4.4's /changes verb: classify every row as
// created, updated, or removed relative to sinceState.
func Changes(ctx context.Context, cap Capability, args ChangesArgs) (ChangesResult, *VerbError) {
	deletedModSeq, err := cap.DeletedModSeq(ctx, args.AccountId)
	if err != nil {
		return ChangesResult{}, errTypef("serverError", err.Error())
	}
	if args.SinceState <= deletedModSeq {
		return ChangesResult{}, errTypef("cannotCalculateChanges", "sinceState is older than the deleted-state horizon")
	}

	rows, err := cap.LoadAll(ctx, args.AccountId)
	if err != nil {
		return ChangesResult{}, errTypef("serverError", err.Error())
	}

	result := ChangesResult{OldState: strconv.FormatInt(args.SinceState, 10)}
	changes := 0
	for _, row := range rows {
		modSeq := row.LastModSeq()
		if modSeq <= args.SinceState {
			continue
		}
		changes++
		if args.MaxChanges > 0 && changes > args.MaxChanges {
			return ChangesResult{}, errTypef("cannotCalculateChanges", "too many changes since sinceState")
		}
		switch {
		case row.Active && row.CreatedAt > args.SinceState:
			result.Created = append(result.Created, row.Id)
		case row.Active:
			result.Updated = append(result.Updated, row.Id)
		case row.CreatedAt <= args.SinceState:
			result.Removed = append(result.Removed, row.Id)
		// else: created and destroyed entirely after sinceState — the
		// client never saw it, so it is omitted per spec §4.4.
		}
	}

	newState, err := cap.StateToken(ctx, args.AccountId)
	if err != nil {
		return ChangesResult{}, errTypef("serverError", err.Error())
	}
	result.NewState = newState

	if reporter, ok := cap.(ChangedPropertiesReporter); ok {
		if countOnly := countOnlyChange(rows, result.Updated, args.SinceState); countOnly {
			counters, err := reporter.CountOnlyCounters(ctx, args.AccountId)
			if err != nil {
				return ChangesResult{}, errTypef("serverError", err.Error())
			}
			result.ChangedProperties = counters
		}
	}

	return result, nil
}

// countOnlyChange reports whether every updated row's count modseq
// exceeds sinceState while its non-count modseq does not — the
// condition under which Mailbox/changes may report the closed-set
// counters instead of null (spec §4.4).
func countOnlyChange(rows []Row, updatedIds []string, sinceState int64) bool {
	if len(updatedIds) == 0 {
		return false
	}
	byId := make(map[string]Row, len(rows))
	for _, r := range rows {
		byId[r.Id] = r
	}
	for _, id := range updatedIds {
		row, ok := byId[id]
		if !ok {
			return false
		}
		if !(row.CountModSeq > sinceState && row.ModSeq <= sinceState) {
			return false
		}
	}
	return true
}
