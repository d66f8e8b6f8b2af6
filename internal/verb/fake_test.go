package verb

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"github.com/brandon/jmap-core/internal/query"
)

// fakeCap is a minimal in-memory Capability used to exercise the
// uniform-verb framework's Get/Changes/Query/QueryChanges/Set logic
// without any backing store. Its domain is a "widget" with a "name"
// (lexical) and "size" (numeric) property, optionally grouped into
// threads for collapse testing.
type fakeCap struct {
	mu      sync.Mutex
	lockMu  sync.Mutex
	rows    map[string]*Row
	state   int64
	deleted int64
	nextId  int
}

func newFakeCap() *fakeCap {
	return &fakeCap{rows: make(map[string]*Row)}
}

func (f *fakeCap) bump() int64 {
	f.state++
	return f.state
}

// seed inserts a row directly, bypassing Create, for test setup.
func (f *fakeCap) seed(row Row) {
	r := row
	f.rows[r.Id] = &r
}

func (f *fakeCap) LoadAll(ctx context.Context, accountId string) ([]Row, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Row, 0, len(f.rows))
	for _, r := range f.rows {
		out = append(out, *r)
	}
	return out, nil
}

func (f *fakeCap) LoadOne(ctx context.Context, accountId, id string) (Row, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.rows[id]
	if !ok || !r.Active {
		return Row{}, false, nil
	}
	return *r, true, nil
}

func (f *fakeCap) Materialize(row Row, properties []string) Object {
	if properties == nil {
		obj := make(Object, len(row.Fields))
		for k, v := range row.Fields {
			obj[k] = v
		}
		obj["id"] = row.Id
		return obj
	}
	obj := Object{"id": row.Id}
	for _, p := range properties {
		if v, ok := row.Fields[p]; ok {
			obj[p] = v
		}
	}
	return obj
}

func (f *fakeCap) FilterPredicate(row query.Row, condition map[string]interface{}, scratch *query.Storage) (bool, error) {
	for k, v := range condition {
		if row.Fields[k] != v {
			return false, nil
		}
	}
	return true, nil
}

func (f *fakeCap) SortKey(row query.Row, property string, scratch *query.Storage) (query.SortValue, error) {
	switch property {
	case "size":
		v, _ := row.Fields["size"].(float64)
		return query.SortValue{Num: v, IsNumeric: true}, nil
	case "name":
		v, _ := row.Fields["name"].(string)
		return query.SortValue{Str: v}, nil
	}
	return query.SortValue{}, fmt.Errorf("unknown sort property %q", property)
}

func (f *fakeCap) Create(ctx context.Context, accountId string, props map[string]interface{}) (Object, *VerbError) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextId++
	id := "w" + strconv.Itoa(f.nextId)
	ms := f.bump()
	fields := make(map[string]interface{}, len(props)+1)
	for k, v := range props {
		fields[k] = v
	}
	fields["id"] = id
	f.rows[id] = &Row{Id: id, Active: true, CreatedAt: ms, ModSeq: ms, Fields: fields}
	return Object{"id": id}, nil
}

func (f *fakeCap) Update(ctx context.Context, accountId, id string, props map[string]interface{}) (Object, *VerbError) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.rows[id]
	if !ok || !r.Active {
		return nil, errType("notFound")
	}
	for k, v := range props {
		if v == nil {
			delete(r.Fields, k)
			continue
		}
		r.Fields[k] = v
	}
	r.ModSeq = f.bump()
	return Object{}, nil
}

func (f *fakeCap) Destroy(ctx context.Context, accountId, id string) *VerbError {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.rows[id]
	if !ok || !r.Active {
		return errType("notFound")
	}
	r.Active = false
	r.ModSeq = f.bump()
	return nil
}

func (f *fakeCap) StateToken(ctx context.Context, accountId string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return strconv.FormatInt(f.state, 10), nil
}

func (f *fakeCap) DeletedModSeq(ctx context.Context, accountId string) (int64, error) {
	return f.deleted, nil
}

func (f *fakeCap) Sync(ctx context.Context, accountId string) error {
	return nil
}

func (f *fakeCap) Lock(ctx context.Context) (func(), error) {
	f.lockMu.Lock()
	return f.lockMu.Unlock, nil
}

// fakeIds is a minimal IdResolver for /set tests.
type fakeIds struct {
	ids map[string]string
}

func newFakeIds() *fakeIds { return &fakeIds{ids: make(map[string]string)} }

func (f *fakeIds) Set(placeholder, id string) { f.ids[placeholder] = id }

func (f *fakeIds) ResolveId(s string) string {
	if len(s) == 0 || s[0] != '#' {
		return s
	}
	if id, ok := f.ids[s[1:]]; ok {
		return id
	}
	return s
}
