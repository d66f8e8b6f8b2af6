package verb

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestChangesClassifiesCreatedUpdatedRemoved(t *testing.T) {
	cap := newFakeCap()
	cap.seed(Row{Id: "created", Active: true, CreatedAt: 5, ModSeq: 5})
	cap.seed(Row{Id: "updated", Active: true, CreatedAt: 1, ModSeq: 5})
	cap.seed(Row{Id: "removed", Active: false, CreatedAt: 1, ModSeq: 5})
	cap.seed(Row{Id: "neverSeen", Active: false, CreatedAt: 5, ModSeq: 5})
	cap.seed(Row{Id: "unchanged", Active: true, CreatedAt: 1, ModSeq: 1})
	cap.state = 5

	res, verr := Changes(context.Background(), cap, ChangesArgs{SinceState: 3})
	require.Nil(t, verr)
	require.Equal(t, []string{"created"}, res.Created)
	require.Equal(t, []string{"updated"}, res.Updated)
	require.Equal(t, []string{"removed"}, res.Removed)
	require.Equal(t, "5", res.NewState)
	require.Equal(t, "3", res.OldState)
}

func TestChangesFailsWhenSinceStateAtDeletedModSeq(t *testing.T) {
	cap := newFakeCap()
	cap.deleted = 10
	_, verr := Changes(context.Background(), cap, ChangesArgs{SinceState: 10})
	require.NotNil(t, verr)
	require.Equal(t, "cannotCalculateChanges", verr.Type)
}

func TestChangesFailsWhenTooManyChanges(t *testing.T) {
	cap := newFakeCap()
	cap.seed(Row{Id: "a", Active: true, CreatedAt: 1, ModSeq: 5})
	cap.seed(Row{Id: "b", Active: true, CreatedAt: 1, ModSeq: 6})
	cap.state = 6

	_, verr := Changes(context.Background(), cap, ChangesArgs{SinceState: 3, MaxChanges: 1})
	require.NotNil(t, verr)
	require.Equal(t, "cannotCalculateChanges", verr.Type)
}

// mailboxCap wraps fakeCap with the ChangedPropertiesReporter extension
// to exercise the Mailbox-only changedProperties rule.
type mailboxCap struct {
	*fakeCap
	counters []interface{}
}

func (m *mailboxCap) CountOnlyCounters(ctx context.Context, accountId string) ([]interface{}, error) {
	return m.counters, nil
}

func TestChangesReportsCountOnlyClosedSet(t *testing.T) {
	cap := &mailboxCap{fakeCap: newFakeCap(), counters: []interface{}{10, 2, 3, 1}}
	cap.seed(Row{Id: "inbox", Active: true, CreatedAt: 1, ModSeq: 1, CountModSeq: 5})
	cap.state = 5

	res, verr := Changes(context.Background(), cap, ChangesArgs{SinceState: 3})
	require.Nil(t, verr)
	require.Equal(t, []interface{}{10, 2, 3, 1}, res.ChangedProperties)
}

func TestChangesOmitsClosedSetWhenNonCountPropertyAlsoChanged(t *testing.T) {
	cap := &mailboxCap{fakeCap: newFakeCap(), counters: []interface{}{10, 2, 3, 1}}
	cap.seed(Row{Id: "inbox", Active: true, CreatedAt: 1, ModSeq: 5, CountModSeq: 5})
	cap.state = 5

	res, verr := Changes(context.Background(), cap, ChangesArgs{SinceState: 3})
	require.Nil(t, verr)
	require.Nil(t, res.ChangedProperties)
}
