// Package mailbox binds Mailbox's filter/sort grammar and folder-sync
// behavior (spec §6) onto the generic objects-table store.
package mailbox

import (
	"context"
	"fmt"

	"github.com/brandon/jmap-core/internal/query"
	"github.com/brandon/jmap-core/internal/store"
	"github.com/brandon/jmap-core/internal/sync"
	"github.com/brandon/jmap-core/internal/verb"
)

// Capability implements verb.Capability, verb.ChangedPropertiesReporter,
// and the Sync override that pulls the folder list from an
// EmailSynchronizer before a /set's read-modify-write window.
type Capability struct {
	*store.TypeStore
	source sync.EmailSynchronizer

	// ctx and accountId are set by bound for the duration of one
	// /query or /queryChanges call, letting SortKey's "parent/name"
	// key look up sibling rows without a second parameter on the
	// SortKeyFunc signature itself. Both are nil on the long-lived
	// instance handlers.Register wires in.
	ctx       context.Context
	accountId string
}

// New creates a Mailbox capability backed by ts. source may be nil,
// in which case Sync is a no-op (useful for tests and for accounts with
// no external mail source).
func New(ts *store.TypeStore, source sync.EmailSynchronizer) *Capability {
	return &Capability{TypeStore: ts, source: source}
}

func (c *Capability) bound(ctx context.Context, accountId string) *Capability {
	return &Capability{TypeStore: c.TypeStore, source: c.source, ctx: ctx, accountId: accountId}
}

func (c *Capability) FilterPredicate(row query.Row, condition map[string]interface{}, scratch *query.Storage) (bool, error) {
	for name, operand := range condition {
		switch name {
		case "hasRole":
			want, _ := operand.(bool)
			role, _ := row.Fields["role"].(string)
			if (role != "") != want {
				return false, nil
			}
		case "parentId":
			want, _ := operand.(string)
			got, _ := row.Fields["parentId"].(string)
			if got != want {
				return false, nil
			}
		case "isSubscribed":
			want, _ := operand.(bool)
			got, _ := row.Fields["isSubscribed"].(bool)
			if got != want {
				return false, nil
			}
		default:
			return false, fmt.Errorf("invalidArguments: unknown Mailbox filter predicate %q", name)
		}
	}
	return true, nil
}

func (c *Capability) SortKey(row query.Row, property string, scratch *query.Storage) (query.SortValue, error) {
	switch property {
	case "name":
		name, _ := row.Fields["name"].(string)
		return query.SortValue{Str: name}, nil
	case "sortOrder":
		n, _ := row.Fields["sortOrder"].(float64)
		return query.SortValue{Num: n, IsNumeric: true}, nil
	case "parent/name":
		names := scratch.GetOrCompute("mailbox:names", func() interface{} {
			return c.nameIndex()
		}).(map[string]string)
		parentId, _ := row.Fields["parentId"].(string)
		return query.SortValue{Str: names[parentId]}, nil
	default:
		return query.SortValue{}, fmt.Errorf("invalidArguments: unknown Mailbox sort field %q", property)
	}
}

func (c *Capability) nameIndex() map[string]string {
	names := make(map[string]string)
	if c.ctx == nil {
		return names
	}
	rows, err := c.TypeStore.LoadAll(c.ctx, c.accountId)
	if err != nil {
		return names
	}
	for _, r := range rows {
		if !r.Active {
			continue
		}
		if n, ok := r.Fields["name"].(string); ok {
			names[r.Id] = n
		}
	}
	return names
}

// Create validates parentId (if given) names an existing mailbox and
// fills in the defaults every new mailbox needs before delegating to
// the generic store.
func (c *Capability) Create(ctx context.Context, accountId string, props map[string]interface{}) (verb.Object, *verb.VerbError) {
	if parentId, ok := props["parentId"].(string); ok && parentId != "" {
		_, found, err := c.TypeStore.LoadOne(ctx, accountId, parentId)
		if err != nil {
			return nil, &verb.VerbError{Type: "serverError", Description: err.Error()}
		}
		if !found {
			return nil, &verb.VerbError{Type: "invalidArguments", Description: "parentId does not reference an existing mailbox"}
		}
	}
	merged := map[string]interface{}{
		"totalEmails":  float64(0),
		"unreadEmails": float64(0),
		"totalThreads": float64(0),
		"unreadThreads": float64(0),
		"isSubscribed": true,
		"myRights": map[string]interface{}{
			"mayReadItems": true, "mayAddItems": true, "mayRemoveItems": true,
			"maySetSeen": true, "maySetKeywords": true, "mayCreateChild": true,
			"mayRename": true, "mayDelete": true, "maySubmit": true,
		},
	}
	for k, v := range props {
		merged[k] = v
	}
	return c.TypeStore.Create(ctx, accountId, merged)
}

// Sync pulls the current folder list from source and reconciles it
// against the store: existing folders (matched by path) are updated in
// place, new ones are created. Accounts with no synchronizer configured
// are served entirely out of the store.
func (c *Capability) Sync(ctx context.Context, accountId string) error {
	if c.source == nil {
		return nil
	}
	folders, err := c.source.ListFolders(ctx, accountId)
	if err != nil {
		return fmt.Errorf("failed to sync folders: %w", err)
	}

	existing, err := c.TypeStore.LoadAll(ctx, accountId)
	if err != nil {
		return err
	}
	byPath := make(map[string]string, len(existing))
	for _, r := range existing {
		if !r.Active {
			continue
		}
		if p, ok := r.Fields["path"].(string); ok {
			byPath[p] = r.Id
		}
	}

	for _, f := range folders {
		if id, ok := byPath[f.Path]; ok {
			if verr := updateIfChanged(ctx, c, accountId, id, f); verr != nil {
				return fmt.Errorf(verr.Error())
			}
			continue
		}
		_, verr := c.Create(ctx, accountId, map[string]interface{}{
			"name": f.Name,
			"path": f.Path,
			"role": f.Role,
		})
		if verr != nil {
			return fmt.Errorf(verr.Error())
		}
	}
	return nil
}

func updateIfChanged(ctx context.Context, c *Capability, accountId, id string, f sync.FetchedFolder) *verb.VerbError {
	row, ok, err := c.TypeStore.LoadOne(ctx, accountId, id)
	if err != nil {
		return &verb.VerbError{Type: "serverError", Description: err.Error()}
	}
	if !ok {
		return nil
	}
	name, _ := row.Fields["name"].(string)
	role, _ := row.Fields["role"].(string)
	if name == f.Name && role == f.Role {
		return nil
	}
	_, verr := c.TypeStore.Update(ctx, accountId, id, map[string]interface{}{"name": f.Name, "role": f.Role})
	return verr
}

// CountOnlyCounters implements verb.ChangedPropertiesReporter: Mailbox
// is the one type whose /changes may report the closed set of count
// property names in place of null (spec §4.4).
func (c *Capability) CountOnlyCounters(ctx context.Context, accountId string) ([]interface{}, error) {
	return []interface{}{"totalEmails", "unreadEmails", "totalThreads", "unreadThreads"}, nil
}
