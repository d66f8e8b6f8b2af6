package verb

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGetAllReturnsEveryActiveRow(t *testing.T) {
	cap := newFakeCap()
	cap.seed(Row{Id: "w1", Active: true, Fields: map[string]interface{}{"name": "a"}})
	cap.seed(Row{Id: "w2", Active: false, Fields: map[string]interface{}{"name": "b"}})

	res, verr := Get(context.Background(), cap, GetArgs{})
	require.Nil(t, verr)
	require.Len(t, res.List, 1)
	require.Equal(t, "w1", res.List[0]["id"])
}

func TestGetByIdsReportsNotFound(t *testing.T) {
	cap := newFakeCap()
	cap.seed(Row{Id: "w1", Active: true, Fields: map[string]interface{}{"name": "a"}})

	res, verr := Get(context.Background(), cap, GetArgs{Ids: []string{"w1", "missing"}})
	require.Nil(t, verr)
	require.Len(t, res.List, 1)
	require.Equal(t, []string{"missing"}, res.NotFound)
}

func TestGetProjectsOnlyRequestedProperties(t *testing.T) {
	cap := newFakeCap()
	cap.seed(Row{Id: "w1", Active: true, Fields: map[string]interface{}{"name": "a", "size": 1.0}})

	res, verr := Get(context.Background(), cap, GetArgs{Ids: []string{"w1"}, Properties: []string{"name"}})
	require.Nil(t, verr)
	require.Equal(t, "a", res.List[0]["name"])
	require.Equal(t, "w1", res.List[0]["id"])
	_, hasSize := res.List[0]["size"]
	require.False(t, hasSize)
}
