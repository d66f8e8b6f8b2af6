package verb

import (
	"context"
	"sync"

	"github.com/brandon/jmap-core/internal/query"
)

// SingletonStore is the minimal backing a singleton-typed resource
// (UserPreferences, ClientPreferences, CalendarPreferences,
// VacationResponse, Identity, Quota) needs to provide. SingletonCapability
// adapts it into a full Capability so the uniform-verb framework can
// serve /get and /set against it like any other type.
type SingletonStore interface {
	// Load returns the singleton's current full value.
	Load(ctx context.Context, accountId string) (map[string]interface{}, error)
	// Save persists value as the singleton's new full value.
	Save(ctx context.Context, accountId string, value map[string]interface{}) error
	// StateToken returns this type's current state token.
	StateToken(ctx context.Context, accountId string) (string, error)
}

// SingletonCapability adapts a SingletonStore into a Capability that
// enforces spec §4.4's singleton rules: create and destroy are always
// rejected, and update is only accepted for the well-known id
// "singleton", applied by read-merge-write over the current full value.
// Singleton types have no /query grammar, so FilterPredicate and
// SortKey are never exercised in practice; they are implemented only to
// satisfy the Capability interface.
type SingletonCapability struct {
	Store SingletonStore

	mu sync.Mutex
}

const singletonId = "singleton"

func (s *SingletonCapability) LoadAll(ctx context.Context, accountId string) ([]Row, error) {
	row, ok, err := s.LoadOne(ctx, accountId, singletonId)
	if err != nil || !ok {
		return nil, err
	}
	return []Row{row}, nil
}

func (s *SingletonCapability) LoadOne(ctx context.Context, accountId, id string) (Row, bool, error) {
	if id != singletonId {
		return Row{}, false, nil
	}
	value, err := s.Store.Load(ctx, accountId)
	if err != nil {
		return Row{}, false, err
	}
	fields := make(map[string]interface{}, len(value)+1)
	for k, v := range value {
		fields[k] = v
	}
	fields["id"] = singletonId
	return Row{Id: singletonId, Active: true, Fields: fields}, true, nil
}

func (s *SingletonCapability) Materialize(row Row, properties []string) Object {
	if properties == nil {
		obj := make(Object, len(row.Fields))
		for k, v := range row.Fields {
			obj[k] = v
		}
		return obj
	}
	obj := make(Object, len(properties)+1)
	obj["id"] = row.Fields["id"]
	for _, p := range properties {
		if v, ok := row.Fields[p]; ok {
			obj[p] = v
		}
	}
	return obj
}

func (s *SingletonCapability) FilterPredicate(row query.Row, condition map[string]interface{}, scratch *query.Storage) (bool, error) {
	return true, nil
}

func (s *SingletonCapability) SortKey(row query.Row, property string, scratch *query.Storage) (query.SortValue, error) {
	return query.SortValue{}, nil
}

func (s *SingletonCapability) Create(ctx context.Context, accountId string, props map[string]interface{}) (Object, *VerbError) {
	return nil, errTypef("invalidArguments", "Can't create singleton types")
}

func (s *SingletonCapability) Update(ctx context.Context, accountId, id string, props map[string]interface{}) (Object, *VerbError) {
	if id != singletonId {
		return nil, errType("notFound")
	}
	current, err := s.Store.Load(ctx, accountId)
	if err != nil {
		return nil, errTypef("serverError", err.Error())
	}
	if current == nil {
		current = make(map[string]interface{})
	}
	for k, v := range props {
		if v == nil {
			delete(current, k)
			continue
		}
		current[k] = v
	}
	if err := s.Store.Save(ctx, accountId, current); err != nil {
		return nil, errTypef("serverError", err.Error())
	}
	return Object{}, nil
}

func (s *SingletonCapability) Destroy(ctx context.Context, accountId, id string) *VerbError {
	return errTypef("invalidArguments", "Can't destroy singleton types")
}

func (s *SingletonCapability) StateToken(ctx context.Context, accountId string) (string, error) {
	return s.Store.StateToken(ctx, accountId)
}

func (s *SingletonCapability) DeletedModSeq(ctx context.Context, accountId string) (int64, error) {
	return 0, nil
}

func (s *SingletonCapability) Sync(ctx context.Context, accountId string) error {
	return nil
}

func (s *SingletonCapability) Lock(ctx context.Context) (func(), error) {
	s.mu.Lock()
	return s.mu.Unlock, nil
}
