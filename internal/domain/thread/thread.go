// Package thread implements Thread/{get,changes}: spec §6 describes
// Thread's group membership as "derived from Email", so each Thread row
// is just an ordered list of emailIds that internal/domain/email keeps
// current as messages are created or destroyed. Updating an email does
// not move it to a different thread.
package thread

import (
	"context"
	"fmt"

	"github.com/brandon/jmap-core/internal/query"
	"github.com/brandon/jmap-core/internal/store"
	"github.com/brandon/jmap-core/internal/verb"
)

// Capability implements verb.Capability for Thread. Thread has no
// /query, /queryChanges, or /set, so FilterPredicate, SortKey, Create,
// Update, and Destroy exist only to satisfy the interface.
type Capability struct {
	*store.TypeStore
}

func New(ts *store.TypeStore) *Capability {
	return &Capability{TypeStore: ts}
}

func (c *Capability) FilterPredicate(row query.Row, condition map[string]interface{}, scratch *query.Storage) (bool, error) {
	return false, fmt.Errorf("invalidArguments: Thread has no query grammar")
}

func (c *Capability) SortKey(row query.Row, property string, scratch *query.Storage) (query.SortValue, error) {
	return query.SortValue{}, fmt.Errorf("invalidArguments: Thread has no sort grammar")
}

func (c *Capability) Create(ctx context.Context, accountId string, props map[string]interface{}) (verb.Object, *verb.VerbError) {
	return nil, &verb.VerbError{Type: "invalidArguments", Description: "Thread cannot be created directly"}
}

func (c *Capability) Update(ctx context.Context, accountId, id string, props map[string]interface{}) (verb.Object, *verb.VerbError) {
	return nil, &verb.VerbError{Type: "invalidArguments", Description: "Thread cannot be updated directly"}
}

func (c *Capability) Destroy(ctx context.Context, accountId, id string) *verb.VerbError {
	return &verb.VerbError{Type: "invalidArguments", Description: "Thread cannot be destroyed directly"}
}

// Index is the narrow interface internal/domain/email uses to keep a
// thread's membership current without depending on the full Capability
// (and without thread depending back on email).
type Index struct {
	ts *store.TypeStore
}

func NewIndex(ts *store.TypeStore) *Index {
	return &Index{ts: ts}
}

// EnsureThread creates threadId's row if it doesn't exist yet.
func (idx *Index) EnsureThread(ctx context.Context, accountId, threadId string) error {
	_, ok, err := idx.ts.LoadOne(ctx, accountId, threadId)
	if err != nil {
		return err
	}
	if ok {
		return nil
	}
	_, verr := idx.ts.CreateWithId(ctx, accountId, threadId, "", map[string]interface{}{"emailIds": []interface{}{}})
	if verr != nil {
		return fmt.Errorf(verr.Error())
	}
	return nil
}

// AddMember appends emailId to threadId's membership list, creating the
// thread row first if needed.
func (idx *Index) AddMember(ctx context.Context, accountId, threadId, emailId string) error {
	if err := idx.EnsureThread(ctx, accountId, threadId); err != nil {
		return err
	}
	row, ok, err := idx.ts.LoadOne(ctx, accountId, threadId)
	if err != nil || !ok {
		return err
	}
	ids := toStringSlice(row.Fields["emailIds"])
	for _, id := range ids {
		if id == emailId {
			return nil
		}
	}
	ids = append(ids, emailId)
	_, verr := idx.ts.Update(ctx, accountId, threadId, map[string]interface{}{"emailIds": toInterfaceSlice(ids)})
	if verr != nil {
		return fmt.Errorf(verr.Error())
	}
	return nil
}

// RemoveMember removes emailId from threadId's membership list. If the
// thread becomes empty, its row is destroyed.
func (idx *Index) RemoveMember(ctx context.Context, accountId, threadId, emailId string) error {
	row, ok, err := idx.ts.LoadOne(ctx, accountId, threadId)
	if err != nil || !ok {
		return err
	}
	ids := toStringSlice(row.Fields["emailIds"])
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id != emailId {
			out = append(out, id)
		}
	}
	if len(out) == 0 {
		if verr := idx.ts.Destroy(ctx, accountId, threadId); verr != nil {
			return fmt.Errorf(verr.Error())
		}
		return nil
	}
	_, verr := idx.ts.Update(ctx, accountId, threadId, map[string]interface{}{"emailIds": toInterfaceSlice(out)})
	if verr != nil {
		return fmt.Errorf(verr.Error())
	}
	return nil
}

// Members returns threadId's current emailIds in membership order.
func (idx *Index) Members(ctx context.Context, accountId, threadId string) ([]string, error) {
	row, ok, err := idx.ts.LoadOne(ctx, accountId, threadId)
	if err != nil || !ok {
		return nil, err
	}
	return toStringSlice(row.Fields["emailIds"]), nil
}

func toStringSlice(v interface{}) []string {
	items, ok := v.([]interface{})
	if !ok {
		return nil
	}
	out := make([]string, 0, len(items))
	for _, it := range items {
		if s, ok := it.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func toInterfaceSlice(ss []string) []interface{} {
	out := make([]interface{}, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}
