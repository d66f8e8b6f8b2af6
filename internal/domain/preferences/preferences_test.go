package preferences

import (
	"context"
	"io"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/brandon/jmap-core/internal/store"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	log := logrus.New()
	log.SetOutput(io.Discard)
	s, err := store.Open(filepath.Join(t.TempDir(), "test.db"), log)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestUserPreferencesUpdateAndRead(t *testing.T) {
	b := New(newTestStore(t))
	ctx := context.Background()

	oldState, err := b.UserPreferences.StateToken(ctx, "a1")
	require.NoError(t, err)

	_, verr := b.UserPreferences.Update(ctx, "a1", "singleton", map[string]interface{}{"theme": "dark"})
	require.Nil(t, verr)

	newState, err := b.UserPreferences.StateToken(ctx, "a1")
	require.NoError(t, err)
	require.NotEqual(t, oldState, newState)

	row, ok, err := b.UserPreferences.LoadOne(ctx, "a1", "singleton")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "dark", row.Fields["theme"])
}

func TestVacationResponseDefaultsToDisabled(t *testing.T) {
	b := New(newTestStore(t))
	row, ok, err := b.VacationResponse.LoadOne(context.Background(), "a1", "singleton")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, false, row.Fields["isEnabled"])
}

func TestCreateAndDestroyAreRejectedForSingletons(t *testing.T) {
	b := New(newTestStore(t))
	ctx := context.Background()
	_, verr := b.UserPreferences.Create(ctx, "a1", map[string]interface{}{})
	require.NotNil(t, verr)

	verr = b.UserPreferences.Destroy(ctx, "a1", "singleton")
	require.NotNil(t, verr)
}
