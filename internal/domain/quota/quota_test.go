package quota

import (
	"context"
	"io"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/brandon/jmap-core/internal/store"
)

func TestQuotaReflectsStoredBlobSize(t *testing.T) {
	log := logrus.New()
	log.SetOutput(io.Discard)
	s, err := store.Open(filepath.Join(t.TempDir(), "test.db"), log)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	blobs, err := s.Blobs(filepath.Join(t.TempDir(), "blobs"))
	require.NoError(t, err)
	ctx := context.Background()
	_, err = blobs.PutFile(ctx, "a1", []byte("hello world"))
	require.NoError(t, err)

	cap := New(s, blobs)
	row, ok, err := cap.LoadOne(ctx, "a1", "singleton")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, float64(len("hello world")), row.Fields["used"])
}
