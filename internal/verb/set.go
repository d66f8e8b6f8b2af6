package verb

import (
	"context"

	"github.com/brandon/jmap-core/internal/patch"
)

// IdResolver is the subset of *jmap.IdMap the /set verb needs: recording
// newly created placeholder ids and rewriting "#cid" references in later
// update/destroy arguments of the same batch (spec §4.4 step 4, §5).
type IdResolver interface {
	Set(placeholder, id string)
	ResolveId(s string) string
}

// SetArgs is the parsed input of a /set call.
type SetArgs struct {
	AccountId string
	Create    map[string]map[string]interface{} // placeholder -> props
	Update    map[string]map[string]interface{} // id (or "#placeholder") -> patch
	Destroy   []string                          // ids (or "#placeholder")
	IfInState string                             // empty means unconstrained
}

// SetResult is the output of a /set call.
type SetResult struct {
	OldState     string
	NewState     string
	Created      map[string]Object
	NotCreated   map[string]*VerbError
	Updated      map[string]Object
	NotUpdated   map[string]*VerbError
	Destroyed    []string
	NotDestroyed map[string]*VerbError
}

// Set implements spec §4.4's /set verb in the order its nine-step
// orchestration describes: acquire the superlock, sync external state,
// read oldState, create, expand update patches, update, destroy, sync
// again, read newState.
func Set(ctx context.Context, cap Capability, ids IdResolver, args SetArgs) (SetResult, *VerbError) {
	release, err := cap.Lock(ctx)
	if err != nil {
		return SetResult{}, errTypef("serverError", err.Error())
	}
	defer release()

	if err := cap.Sync(ctx, args.AccountId); err != nil {
		return SetResult{}, errTypef("serverError", err.Error())
	}

	oldState, err := cap.StateToken(ctx, args.AccountId)
	if err != nil {
		return SetResult{}, errTypef("serverError", err.Error())
	}
	if args.IfInState != "" && args.IfInState != oldState {
		return SetResult{}, errTypef("invalidArguments", "ifInState does not match current state")
	}

	result := SetResult{
		OldState:     oldState,
		Created:      make(map[string]Object),
		NotCreated:   make(map[string]*VerbError),
		Updated:      make(map[string]Object),
		NotUpdated:   make(map[string]*VerbError),
		NotDestroyed: make(map[string]*VerbError),
	}

	for placeholder, props := range args.Create {
		obj, verr := cap.Create(ctx, args.AccountId, props)
		if verr != nil {
			result.NotCreated[placeholder] = verr
			continue
		}
		if id, ok := obj["id"].(string); ok {
			ids.Set(placeholder, id)
		}
		result.Created[placeholder] = obj
	}

	resolvedUpdate := make(map[string]map[string]interface{}, len(args.Update))
	for key, patchMap := range args.Update {
		resolvedUpdate[ids.ResolveId(key)] = patchMap
	}
	expanded := patch.Expand(resolvedUpdate, getterFor(ctx, cap, args.AccountId))

	for id, props := range expanded {
		obj, verr := cap.Update(ctx, args.AccountId, id, props)
		if verr != nil {
			result.NotUpdated[id] = verr
			continue
		}
		result.Updated[id] = obj
	}

	for _, rawId := range args.Destroy {
		id := ids.ResolveId(rawId)
		if verr := cap.Destroy(ctx, args.AccountId, id); verr != nil {
			result.NotDestroyed[id] = verr
			continue
		}
		result.Destroyed = append(result.Destroyed, id)
	}

	if err := cap.Sync(ctx, args.AccountId); err != nil {
		return SetResult{}, errTypef("serverError", err.Error())
	}

	newState, err := cap.StateToken(ctx, args.AccountId)
	if err != nil {
		return SetResult{}, errTypef("serverError", err.Error())
	}
	result.NewState = newState

	return result, nil
}

// getterFor adapts a Capability's LoadOne/Materialize pair into the
// patch.Getter shape the expander needs.
func getterFor(ctx context.Context, cap Capability, accountId string) patch.Getter {
	return func(id string, properties []string) (map[string]interface{}, bool) {
		row, ok, err := cap.LoadOne(ctx, accountId, id)
		if err != nil || !ok {
			return nil, false
		}
		return cap.Materialize(row, properties), true
	}
}
