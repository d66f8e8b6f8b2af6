// Package storagenode binds the read-only StorageNode/{get,query} pair
// (spec §6) onto internal/store's blob metadata table, following the
// read-only rejection pattern internal/domain/thread already uses for
// a type with no /set.
package storagenode

import (
	"context"
	"fmt"
	"sync"

	"github.com/brandon/jmap-core/internal/query"
	"github.com/brandon/jmap-core/internal/store"
	"github.com/brandon/jmap-core/internal/verb"
)

// Capability implements verb.Capability for StorageNode directly off
// store.BlobStore, since blob metadata lives in its own table rather
// than the shared objects table store.TypeStore wraps.
type Capability struct {
	blobs *store.BlobStore
	mu    sync.Mutex
}

func New(blobs *store.BlobStore) *Capability {
	return &Capability{blobs: blobs}
}

func (c *Capability) LoadAll(ctx context.Context, accountId string) ([]verb.Row, error) {
	metas, err := c.blobs.ListMeta(ctx, accountId)
	if err != nil {
		return nil, err
	}
	rows := make([]verb.Row, 0, len(metas))
	for _, m := range metas {
		rows = append(rows, rowFromMeta(m))
	}
	return rows, nil
}

func (c *Capability) LoadOne(ctx context.Context, accountId, id string) (verb.Row, bool, error) {
	metas, err := c.blobs.ListMeta(ctx, accountId)
	if err != nil {
		return verb.Row{}, false, err
	}
	for _, m := range metas {
		if m.BlobId == id {
			return rowFromMeta(m), true, nil
		}
	}
	return verb.Row{}, false, nil
}

func rowFromMeta(m store.BlobMeta) verb.Row {
	return verb.Row{
		Id:     m.BlobId,
		Active: true,
		Fields: map[string]interface{}{
			"id":   m.BlobId,
			"size": float64(m.Size),
		},
	}
}

func (c *Capability) Materialize(row verb.Row, properties []string) verb.Object {
	if properties == nil {
		obj := make(verb.Object, len(row.Fields))
		for k, v := range row.Fields {
			obj[k] = v
		}
		return obj
	}
	obj := verb.Object{"id": row.Id}
	for _, p := range properties {
		if v, ok := row.Fields[p]; ok {
			obj[p] = v
		}
	}
	return obj
}

func (c *Capability) FilterPredicate(row query.Row, condition map[string]interface{}, scratch *query.Storage) (bool, error) {
	for name, operand := range condition {
		size, _ := row.Fields["size"].(float64)
		switch name {
		case "minSize":
			want, _ := operand.(float64)
			if size < want {
				return false, nil
			}
		case "maxSize":
			want, _ := operand.(float64)
			if size > want {
				return false, nil
			}
		default:
			return false, fmt.Errorf("invalidArguments: unknown StorageNode filter predicate %q", name)
		}
	}
	return true, nil
}

func (c *Capability) SortKey(row query.Row, property string, scratch *query.Storage) (query.SortValue, error) {
	switch property {
	case "size":
		size, _ := row.Fields["size"].(float64)
		return query.SortValue{Num: size, IsNumeric: true}, nil
	case "id":
		return query.SortValue{Str: row.Id}, nil
	default:
		return query.SortValue{}, fmt.Errorf("invalidArguments: unknown StorageNode sort field %q", property)
	}
}

func (c *Capability) Create(ctx context.Context, accountId string, props map[string]interface{}) (verb.Object, *verb.VerbError) {
	return nil, &verb.VerbError{Type: "invalidArguments", Description: "StorageNode is read-only; upload blobs instead of creating them"}
}

func (c *Capability) Update(ctx context.Context, accountId, id string, props map[string]interface{}) (verb.Object, *verb.VerbError) {
	return nil, &verb.VerbError{Type: "invalidArguments", Description: "StorageNode is read-only"}
}

func (c *Capability) Destroy(ctx context.Context, accountId, id string) *verb.VerbError {
	return &verb.VerbError{Type: "invalidArguments", Description: "StorageNode is read-only"}
}

// StateToken has no modseq to track since StorageNode has no /changes;
// it reports an aggregate that moves whenever the account's blob set
// does, which is enough for /get and /query to hand back a state the
// caller can at least compare across calls.
func (c *Capability) StateToken(ctx context.Context, accountId string) (string, error) {
	metas, err := c.blobs.ListMeta(ctx, accountId)
	if err != nil {
		return "", err
	}
	var total int64
	for _, m := range metas {
		total += m.Size
	}
	return fmt.Sprintf("%d-%d", len(metas), total), nil
}

func (c *Capability) DeletedModSeq(ctx context.Context, accountId string) (int64, error) {
	return 0, nil
}

func (c *Capability) Sync(ctx context.Context, accountId string) error {
	return nil
}

func (c *Capability) Lock(ctx context.Context) (func(), error) {
	c.mu.Lock()
	return c.mu.Unlock, nil
}
