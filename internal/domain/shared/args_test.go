package shared

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAccountIdRequired(t *testing.T) {
	_, verr := AccountId(map[string]interface{}{})
	require.NotNil(t, verr)
	require.Equal(t, "accountNotFound", verr.Type)
}

func TestGetArgsDefaultsIdsAndPropertiesToNil(t *testing.T) {
	args, verr := GetArgs(map[string]interface{}{"accountId": "a1"})
	require.Nil(t, verr)
	require.Nil(t, args.Ids)
	require.Nil(t, args.Properties)
}

func TestGetArgsBindsIdsAndProperties(t *testing.T) {
	args, verr := GetArgs(map[string]interface{}{
		"accountId":  "a1",
		"ids":        []interface{}{"m1", "m2"},
		"properties": []interface{}{"name"},
	})
	require.Nil(t, verr)
	require.Equal(t, []string{"m1", "m2"}, args.Ids)
	require.Equal(t, []string{"name"}, args.Properties)
}

func TestChangesArgsRejectsNonNumericSinceState(t *testing.T) {
	_, verr := ChangesArgs(map[string]interface{}{"accountId": "a1", "sinceState": "nope"})
	require.NotNil(t, verr)
	require.Equal(t, "invalidArguments", verr.Type)
}

func TestQueryArgsBindsPositionAndLimit(t *testing.T) {
	args, verr := QueryArgs(map[string]interface{}{
		"accountId": "a1",
		"position":  float64(2),
		"limit":     float64(10),
	})
	require.Nil(t, verr)
	require.NotNil(t, args.Position)
	require.Equal(t, int64(2), *args.Position)
	require.NotNil(t, args.Limit)
	require.Equal(t, int64(10), *args.Limit)
}

func TestSetArgsBindsCreateUpdateDestroy(t *testing.T) {
	args, verr := SetArgs(map[string]interface{}{
		"accountId": "a1",
		"create":    map[string]interface{}{"c1": map[string]interface{}{"name": "x"}},
		"update":    map[string]interface{}{"m1": map[string]interface{}{"name": "y"}},
		"destroy":   []interface{}{"m2"},
	})
	require.Nil(t, verr)
	require.Equal(t, "x", args.Create["c1"]["name"])
	require.Equal(t, "y", args.Update["m1"]["name"])
	require.Equal(t, []string{"m2"}, args.Destroy)
}
