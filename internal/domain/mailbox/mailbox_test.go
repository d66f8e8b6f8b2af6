package mailbox

import (
	"context"
	"io"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/brandon/jmap-core/internal/query"
	"github.com/brandon/jmap-core/internal/store"
	"github.com/brandon/jmap-core/internal/sync"
)

type fakeSynchronizer struct {
	folders []sync.FetchedFolder
}

func (f *fakeSynchronizer) ListFolders(ctx context.Context, accountId string) ([]sync.FetchedFolder, error) {
	return f.folders, nil
}

func (f *fakeSynchronizer) FetchMessages(ctx context.Context, accountId, folderPath string, uidSince uint32) ([]sync.FetchedMessage, error) {
	return nil, nil
}

func (f *fakeSynchronizer) Send(ctx context.Context, accountId string, msg sync.OutgoingMessage) error {
	return nil
}

func newTestCapability(t *testing.T) *Capability {
	t.Helper()
	log := logrus.New()
	log.SetOutput(io.Discard)
	s, err := store.Open(filepath.Join(t.TempDir(), "test.db"), log)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return New(s.Type("Mailbox"), nil)
}

func TestCreateRejectsUnknownParent(t *testing.T) {
	cap := newTestCapability(t)
	_, verr := cap.Create(context.Background(), "a1", map[string]interface{}{"name": "Sub", "parentId": "missing"})
	require.NotNil(t, verr)
	require.Equal(t, "invalidArguments", verr.Type)
}

func TestCreateFillsDefaults(t *testing.T) {
	cap := newTestCapability(t)
	obj, verr := cap.Create(context.Background(), "a1", map[string]interface{}{"name": "Inbox"})
	require.Nil(t, verr)
	row, ok, err := cap.LoadOne(context.Background(), "a1", obj["id"].(string))
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, float64(0), row.Fields["totalEmails"])
	require.Equal(t, true, row.Fields["isSubscribed"])
	rights, ok := row.Fields["myRights"].(map[string]interface{})
	require.True(t, ok)
	require.Equal(t, true, rights["mayAddItems"])
}

func TestFilterPredicateHasRole(t *testing.T) {
	cap := newTestCapability(t)
	row := query.Row{Fields: map[string]interface{}{"role": "inbox"}}
	ok, err := cap.FilterPredicate(row, map[string]interface{}{"hasRole": true}, query.NewStorage())
	require.NoError(t, err)
	require.True(t, ok)

	row2 := query.Row{Fields: map[string]interface{}{}}
	ok, err = cap.FilterPredicate(row2, map[string]interface{}{"hasRole": true}, query.NewStorage())
	require.NoError(t, err)
	require.False(t, ok)
}

func TestFilterPredicateUnknownNameErrors(t *testing.T) {
	cap := newTestCapability(t)
	_, err := cap.FilterPredicate(query.Row{}, map[string]interface{}{"nope": true}, query.NewStorage())
	require.Error(t, err)
}

func TestSortKeyParentNameLooksUpSibling(t *testing.T) {
	cap := newTestCapability(t)
	ctx := context.Background()
	parent, _ := cap.Create(ctx, "a1", map[string]interface{}{"name": "Projects"})
	child, _ := cap.Create(ctx, "a1", map[string]interface{}{"name": "Child", "parentId": parent["id"]})

	bound := cap.bound(ctx, "a1")
	row := query.Row{Id: child["id"].(string), Fields: map[string]interface{}{"parentId": parent["id"]}}
	sv, err := bound.SortKey(row, "parent/name", query.NewStorage())
	require.NoError(t, err)
	require.Equal(t, "Projects", sv.Str)
}

func TestSortKeyUnknownFieldErrors(t *testing.T) {
	cap := newTestCapability(t)
	_, err := cap.SortKey(query.Row{}, "nope", query.NewStorage())
	require.Error(t, err)
}

func TestCountOnlyCountersReturnsClosedSet(t *testing.T) {
	cap := newTestCapability(t)
	counters, err := cap.CountOnlyCounters(context.Background(), "a1")
	require.NoError(t, err)
	require.Equal(t, []interface{}{"totalEmails", "unreadEmails", "totalThreads", "unreadThreads"}, counters)
}

func TestSyncWithNilSourceIsNoop(t *testing.T) {
	cap := newTestCapability(t)
	require.NoError(t, cap.Sync(context.Background(), "a1"))
}

func TestSyncCreatesNewFolders(t *testing.T) {
	log := logrus.New()
	log.SetOutput(io.Discard)
	s, err := store.Open(filepath.Join(t.TempDir(), "test.db"), log)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	fake := &fakeSynchronizer{folders: []sync.FetchedFolder{{Name: "INBOX", Path: "INBOX", Role: "inbox"}}}
	cap := New(s.Type("Mailbox"), fake)

	require.NoError(t, cap.Sync(context.Background(), "a1"))
	rows, err := cap.LoadAll(context.Background(), "a1")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, "INBOX", rows[0].Fields["path"])
	require.Equal(t, "inbox", rows[0].Fields["role"])
}

func TestSyncUpdatesRenamedFolder(t *testing.T) {
	log := logrus.New()
	log.SetOutput(io.Discard)
	s, err := store.Open(filepath.Join(t.TempDir(), "test.db"), log)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	fake := &fakeSynchronizer{folders: []sync.FetchedFolder{{Name: "INBOX", Path: "INBOX", Role: "inbox"}}}
	cap := New(s.Type("Mailbox"), fake)
	ctx := context.Background()
	require.NoError(t, cap.Sync(ctx, "a1"))

	fake.folders[0].Name = "Inbox Renamed"
	require.NoError(t, cap.Sync(ctx, "a1"))

	rows, err := cap.LoadAll(ctx, "a1")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, "Inbox Renamed", rows[0].Fields["name"])
}
