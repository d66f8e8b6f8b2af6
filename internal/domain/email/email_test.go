package email

import (
	"context"
	"io"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/brandon/jmap-core/internal/domain/thread"
	"github.com/brandon/jmap-core/internal/query"
	"github.com/brandon/jmap-core/internal/store"
)

func newTestCapability(t *testing.T) (*Capability, *store.TypeStore) {
	t.Helper()
	log := logrus.New()
	log.SetOutput(io.Discard)
	s, err := store.Open(filepath.Join(t.TempDir(), "test.db"), log)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	mailboxes := s.Type("Mailbox")
	idx := thread.NewIndex(s.Type("Thread"))
	blobs, err := s.Blobs(filepath.Join(t.TempDir(), "blobs"))
	require.NoError(t, err)
	return New(s.Type("Email"), mailboxes, idx, blobs, nil), mailboxes
}

func createMailbox(t *testing.T, mailboxes *store.TypeStore, accountId string) string {
	t.Helper()
	obj, verr := mailboxes.Create(context.Background(), accountId, map[string]interface{}{"name": "Inbox"})
	require.Nil(t, verr)
	return obj["id"].(string)
}

func TestCreateRejectsEmptyMailboxIds(t *testing.T) {
	cap, _ := newTestCapability(t)
	_, verr := cap.Create(context.Background(), "a1", map[string]interface{}{"subject": "hi"})
	require.NotNil(t, verr)
	require.Equal(t, "invalidArguments", verr.Type)
}

func TestCreateRejectsUnknownMailbox(t *testing.T) {
	cap, _ := newTestCapability(t)
	_, verr := cap.Create(context.Background(), "a1", map[string]interface{}{
		"mailboxIds": map[string]interface{}{"missing": true},
	})
	require.NotNil(t, verr)
	require.Equal(t, "invalidMailboxes", verr.Type)
}

func TestCreateAssignsNewThreadAndMembership(t *testing.T) {
	cap, mailboxes := newTestCapability(t)
	ctx := context.Background()
	mb := createMailbox(t, mailboxes, "a1")

	obj, verr := cap.Create(ctx, "a1", map[string]interface{}{
		"mailboxIds": map[string]interface{}{mb: true},
		"subject":    "hello",
	})
	require.Nil(t, verr)

	row, ok, err := cap.LoadOne(ctx, "a1", obj["id"].(string))
	require.NoError(t, err)
	require.True(t, ok)
	require.NotEmpty(t, row.ThreadId)

	members, err := cap.threads.Members(ctx, "a1", row.ThreadId)
	require.NoError(t, err)
	require.Equal(t, []string{obj["id"].(string)}, members)
}

func TestMaterializeIncludesThreadId(t *testing.T) {
	cap, mailboxes := newTestCapability(t)
	ctx := context.Background()
	mb := createMailbox(t, mailboxes, "a1")
	obj, _ := cap.Create(ctx, "a1", map[string]interface{}{"mailboxIds": map[string]interface{}{mb: true}})
	row, _, _ := cap.LoadOne(ctx, "a1", obj["id"].(string))

	materialized := cap.Materialize(row, nil)
	require.Equal(t, row.ThreadId, materialized["threadId"])

	narrowed := cap.Materialize(row, []string{"subject"})
	require.NotContains(t, narrowed, "threadId")
	withThreadId := cap.Materialize(row, []string{"subject", "threadId"})
	require.Equal(t, row.ThreadId, withThreadId["threadId"])
}

func TestDestroyRemovesThreadMembershipAndEmptiesThread(t *testing.T) {
	cap, mailboxes := newTestCapability(t)
	ctx := context.Background()
	mb := createMailbox(t, mailboxes, "a1")
	obj, _ := cap.Create(ctx, "a1", map[string]interface{}{"mailboxIds": map[string]interface{}{mb: true}})
	id := obj["id"].(string)
	row, _, _ := cap.LoadOne(ctx, "a1", id)

	verr := cap.Destroy(ctx, "a1", id)
	require.Nil(t, verr)

	members, err := cap.threads.Members(ctx, "a1", row.ThreadId)
	require.NoError(t, err)
	require.Empty(t, members)
}

func TestFilterPredicateInMailboxAndKeyword(t *testing.T) {
	cap, _ := newTestCapability(t)
	row := query.Row{Fields: map[string]interface{}{
		"mailboxIds": map[string]interface{}{"mb1": true},
		"keywords":   map[string]interface{}{"$seen": true},
	}}
	ok, err := cap.FilterPredicate(row, map[string]interface{}{"inMailbox": "mb1"}, query.NewStorage())
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = cap.FilterPredicate(row, map[string]interface{}{"inMailbox": "mb2"}, query.NewStorage())
	require.NoError(t, err)
	require.False(t, ok)

	ok, err = cap.FilterPredicate(row, map[string]interface{}{"hasKeyword": "$seen"}, query.NewStorage())
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = cap.FilterPredicate(row, map[string]interface{}{"notKeyword": "$seen"}, query.NewStorage())
	require.NoError(t, err)
	require.False(t, ok)
}

func TestFilterPredicateInMailboxOtherThanNormalizesScalarOrList(t *testing.T) {
	cap, _ := newTestCapability(t)
	row := query.Row{Fields: map[string]interface{}{
		"mailboxIds": map[string]interface{}{"mb1": true},
	}}
	ok, err := cap.FilterPredicate(row, map[string]interface{}{"inMailboxOtherThan": "mb2"}, query.NewStorage())
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = cap.FilterPredicate(row, map[string]interface{}{
		"inMailboxOtherThan": []interface{}{"mb1", "mb2"},
	}, query.NewStorage())
	require.NoError(t, err)
	require.False(t, ok)
}

func TestFilterPredicateTextSearchesAcrossFields(t *testing.T) {
	cap, _ := newTestCapability(t)
	row := query.Row{Fields: map[string]interface{}{
		"subject": "Quarterly Report",
		"from":    "alice@example.com",
	}}
	ok, err := cap.FilterPredicate(row, map[string]interface{}{"text": "quarterly"}, query.NewStorage())
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = cap.FilterPredicate(row, map[string]interface{}{"text": "nonexistent"}, query.NewStorage())
	require.NoError(t, err)
	require.False(t, ok)
}

func TestFilterPredicateUnknownNameErrors(t *testing.T) {
	cap, _ := newTestCapability(t)
	_, err := cap.FilterPredicate(query.Row{}, map[string]interface{}{"bogus": true}, query.NewStorage())
	require.Error(t, err)
}

func TestSortKeyReceivedAtAndKeyword(t *testing.T) {
	cap, _ := newTestCapability(t)
	row := query.Row{Fields: map[string]interface{}{
		"receivedAt": "2024-01-02T15:04:05Z",
		"keywords":   map[string]interface{}{"$flagged": true},
	}}
	sv, err := cap.SortKey(row, "receivedAt", query.NewStorage())
	require.NoError(t, err)
	require.True(t, sv.IsNumeric)

	sv, err = cap.SortKey(row, "keyword:$flagged", query.NewStorage())
	require.NoError(t, err)
	require.Equal(t, float64(1), sv.Num)

	sv, err = cap.SortKey(row, "keyword:$seen", query.NewStorage())
	require.NoError(t, err)
	require.Equal(t, float64(0), sv.Num)
}

func TestSortKeyUnknownFieldErrors(t *testing.T) {
	cap, _ := newTestCapability(t)
	_, err := cap.SortKey(query.Row{}, "nope", query.NewStorage())
	require.Error(t, err)
}

func TestThreadKeywordAggregatePredicates(t *testing.T) {
	cap, mailboxes := newTestCapability(t)
	ctx := context.Background()
	mb := createMailbox(t, mailboxes, "a1")

	first, _ := cap.Create(ctx, "a1", map[string]interface{}{
		"mailboxIds": map[string]interface{}{mb: true},
		"keywords":   map[string]interface{}{"$flagged": true},
	})
	firstRow, _, _ := cap.LoadOne(ctx, "a1", first["id"].(string))
	second, _ := cap.Create(ctx, "a1", map[string]interface{}{
		"mailboxIds": map[string]interface{}{mb: true},
		"threadId":   firstRow.ThreadId,
	})
	require.NotEmpty(t, second["id"])

	bound := cap.bound(ctx, "a1")
	scratch := query.NewStorage()
	rowWithThread := query.Row{Fields: map[string]interface{}{"threadId": firstRow.ThreadId}}

	ok, err := bound.FilterPredicate(rowWithThread, map[string]interface{}{"allInThreadHaveKeyword": "$flagged"}, scratch)
	require.NoError(t, err)
	require.False(t, ok)

	ok, err = bound.FilterPredicate(rowWithThread, map[string]interface{}{"someInThreadHaveKeyword": "$flagged"}, scratch)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = bound.FilterPredicate(rowWithThread, map[string]interface{}{"noneInThreadHaveKeyword": "$answered"}, scratch)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestImportRejectsEmptyMailboxIds(t *testing.T) {
	cap, _ := newTestCapability(t)
	_, verr := cap.Import(context.Background(), "a1", ImportSpec{BlobId: "b1"})
	require.NotNil(t, verr)
	require.Equal(t, "invalidArguments", verr.Type)
}

func TestImportReportsMissingBlob(t *testing.T) {
	cap, _ := newTestCapability(t)
	_, verr := cap.Import(context.Background(), "a1", ImportSpec{
		BlobId:     "missing",
		MailboxIds: map[string]interface{}{"mb1": true},
	})
	require.NotNil(t, verr)
	require.Equal(t, "blobNotFound", verr.Type)
}

func TestCopyDuplicatesMessageIntoDestinationAccount(t *testing.T) {
	cap, mailboxes := newTestCapability(t)
	ctx := context.Background()
	srcMb := createMailbox(t, mailboxes, "src")
	dstMb := createMailbox(t, mailboxes, "dst")

	original, verr := cap.Create(ctx, "src", map[string]interface{}{
		"mailboxIds": map[string]interface{}{srcMb: true},
		"subject":    "hello",
	})
	require.Nil(t, verr)

	copied, verr := cap.Copy(ctx, "src", "dst", CopySpec{
		SourceId:   original["id"].(string),
		MailboxIds: map[string]interface{}{dstMb: true},
	})
	require.Nil(t, verr)

	row, ok, err := cap.LoadOne(ctx, "dst", copied["id"].(string))
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "hello", row.Fields["subject"])
}
