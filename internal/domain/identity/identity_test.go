package identity

import (
	"context"
	"io"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/brandon/jmap-core/internal/config"
	"github.com/brandon/jmap-core/internal/store"
)

func TestIdentityReportsConfiguredEmail(t *testing.T) {
	log := logrus.New()
	log.SetOutput(io.Discard)
	s, err := store.Open(filepath.Join(t.TempDir(), "test.db"), log)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	cfg := &config.Config{Accounts: []config.AccountConfig{{Name: "a1", IMAPUsername: "alice@example.com"}}}
	cap := New(s, cfg)

	row, ok, err := cap.LoadOne(context.Background(), "a1", "singleton")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "alice@example.com", row.Fields["email"])
}

func TestIdentitySetIsRejected(t *testing.T) {
	log := logrus.New()
	log.SetOutput(io.Discard)
	s, err := store.Open(filepath.Join(t.TempDir(), "test.db"), log)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	cfg := &config.Config{Accounts: []config.AccountConfig{{Name: "a1"}}}
	cap := New(s, cfg)
	_, verr := cap.Update(context.Background(), "a1", "singleton", map[string]interface{}{"name": "bob"})
	require.NotNil(t, verr)
}
