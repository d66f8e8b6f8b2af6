package verb

import "context"

// GetArgs is the parsed input of a /get call.
type GetArgs struct {
	AccountId  string
	Ids        []string // nil means "all objects of this type"
	Properties []string // nil means "all properties"
}

// GetResult is the output of a /get call.
type GetResult struct {
	List     []Object
	NotFound []string
	State    string
}

// Get implements spec §4.4's /get verb: materialize the requested ids
// (or every row, if ids is nil) with the requested properties, and
// report any requested id that does not exist.
func Get(ctx context.Context, cap Capability, args GetArgs) (GetResult, *VerbError) {
	state, err := cap.StateToken(ctx, args.AccountId)
	if err != nil {
		return GetResult{}, errTypef("serverError", err.Error())
	}

	if args.Ids == nil {
		rows, err := cap.LoadAll(ctx, args.AccountId)
		if err != nil {
			return GetResult{}, errTypef("serverError", err.Error())
		}
		result := GetResult{State: state}
		for _, row := range rows {
			if !row.Active {
				continue
			}
			result.List = append(result.List, cap.Materialize(row, args.Properties))
		}
		return result, nil
	}

	result := GetResult{State: state}
	for _, id := range args.Ids {
		row, ok, err := cap.LoadOne(ctx, args.AccountId, id)
		if err != nil {
			return GetResult{}, errTypef("serverError", err.Error())
		}
		if !ok {
			result.NotFound = append(result.NotFound, id)
			continue
		}
		result.List = append(result.List, cap.Materialize(row, args.Properties))
	}
	return result, nil
}
