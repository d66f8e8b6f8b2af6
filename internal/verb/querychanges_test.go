package verb

import (
	"context"
	"testing"

	"github.com/brandon/jmap-core/internal/query"
	"github.com/stretchr/testify/require"
)

func TestQueryChangesUncollapsedReportsNewlyMatchingRow(t *testing.T) {
	cap := newFakeCap()
	cap.seed(Row{Id: "a", Active: true, ModSeq: 1, Fields: map[string]interface{}{"size": 1.0}})
	cap.seed(Row{Id: "b", Active: true, ModSeq: 5, Fields: map[string]interface{}{"size": 2.0}})

	res, verr := QueryChanges(context.Background(), cap, QueryChangesArgs{
		Sort:            []query.SortField{{Property: "size", IsAscending: true}},
		SinceQueryState: 3,
	})
	require.Nil(t, verr)
	require.Equal(t, 2, res.Total)
	require.Equal(t, []string{"b"}, res.Removed)
	require.Equal(t, []query.Added{{Id: "b", Index: 1}}, res.Added)
}

func TestQueryChangesCollapsedMatchesWorkedExample(t *testing.T) {
	cap := collapsibleFakeCap{newFakeCap()}
	cap.seed(Row{Id: "m2", Active: true, ModSeq: 10, ThreadId: "T", Fields: map[string]interface{}{"size": 2.0}})
	cap.seed(Row{Id: "m1", Active: true, ModSeq: 1, ThreadId: "T", Fields: map[string]interface{}{"size": 1.0}})

	res, verr := QueryChanges(context.Background(), cap, QueryChangesArgs{
		Sort:            []query.SortField{{Property: "size", IsAscending: false}},
		SinceQueryState: 5,
		CollapseThreads: true,
	})
	require.Nil(t, verr)
	require.Equal(t, 1, res.Total)
	require.Equal(t, []string{"m2"}, res.Removed)
	require.Equal(t, []query.Added{{Id: "m2", Index: 0}}, res.Added)
}

func TestQueryChangesMaxChangesExceeded(t *testing.T) {
	cap := newFakeCap()
	cap.seed(Row{Id: "a", Active: true, ModSeq: 10})
	cap.seed(Row{Id: "b", Active: true, ModSeq: 11})

	_, verr := QueryChanges(context.Background(), cap, QueryChangesArgs{
		SinceQueryState: 1,
		MaxChanges:      1,
	})
	require.NotNil(t, verr)
	require.Equal(t, "cannotCalculateChanges", verr.Type)
}

func TestQueryChangesRejectsCollapseWhenUnsupported(t *testing.T) {
	cap := newFakeCap()
	_, verr := QueryChanges(context.Background(), cap, QueryChangesArgs{CollapseThreads: true})
	require.NotNil(t, verr)
	require.Equal(t, "invalidArguments", verr.Type)
}
