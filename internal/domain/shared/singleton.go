package shared

import (
	"context"
	"fmt"

	"github.com/brandon/jmap-core/internal/store"
	"github.com/brandon/jmap-core/internal/verb"
)

const singletonRowId = "singleton"

// tableSingletonStore adapts a *store.TypeStore into verb.SingletonStore
// by keeping the singleton's entire value in one row with the
// well-known id "singleton" (spec §8's worked scenario 2 reads it back
// by that id).
type tableSingletonStore struct {
	ts *store.TypeStore
}

// NewSingletonStore wraps ts as a verb.SingletonStore, for use with
// verb.SingletonCapability.
func NewSingletonStore(ts *store.TypeStore) verb.SingletonStore {
	return &tableSingletonStore{ts: ts}
}

func (s *tableSingletonStore) Load(ctx context.Context, accountId string) (map[string]interface{}, error) {
	row, ok, err := s.ts.LoadOne(ctx, accountId, singletonRowId)
	if err != nil {
		return nil, err
	}
	if !ok {
		return map[string]interface{}{}, nil
	}
	delete(row.Fields, "id")
	return row.Fields, nil
}

// Save replaces the singleton's entire value. Since TypeStore.Update
// only merges the keys it's given, a value that dropped a property
// (via a null patch) is saved by destroying and recreating the row so
// the stored fields exactly match value.
func (s *tableSingletonStore) Save(ctx context.Context, accountId string, value map[string]interface{}) error {
	_, ok, err := s.ts.LoadOne(ctx, accountId, singletonRowId)
	if err != nil {
		return err
	}
	if ok {
		if verr := s.ts.Destroy(ctx, accountId, singletonRowId); verr != nil {
			return fmt.Errorf(verr.Error())
		}
	}
	_, verr := s.ts.CreateWithId(ctx, accountId, singletonRowId, "", value)
	if verr != nil {
		return fmt.Errorf(verr.Error())
	}
	return nil
}

func (s *tableSingletonStore) StateToken(ctx context.Context, accountId string) (string, error) {
	return s.ts.StateToken(ctx, accountId)
}

// ComputeFunc derives a read-only singleton's current value from
// wherever it's actually tracked (account config, other types' rows).
type ComputeFunc func(ctx context.Context, accountId string) (map[string]interface{}, error)

// computedSingletonStore backs a get-only singleton (Identity, Quota)
// whose value is derived rather than stored; its state token rides on
// ts's state row even though ts itself never holds a value row, so
// accountNotFound-style lookups and state tokens behave consistently
// with the stored singletons.
type computedSingletonStore struct {
	ts      *store.TypeStore
	compute ComputeFunc
}

// NewComputedSingletonStore wraps compute as a verb.SingletonStore whose
// Save always fails, for singleton types that have no /set method.
func NewComputedSingletonStore(ts *store.TypeStore, compute ComputeFunc) verb.SingletonStore {
	return &computedSingletonStore{ts: ts, compute: compute}
}

func (s *computedSingletonStore) Load(ctx context.Context, accountId string) (map[string]interface{}, error) {
	return s.compute(ctx, accountId)
}

func (s *computedSingletonStore) Save(ctx context.Context, accountId string, value map[string]interface{}) error {
	return fmt.Errorf("this singleton cannot be modified")
}

func (s *computedSingletonStore) StateToken(ctx context.Context, accountId string) (string, error) {
	return s.ts.StateToken(ctx, accountId)
}
