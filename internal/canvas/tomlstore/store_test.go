package tomlstore

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"walkypainty/internal/canvas"
	"walkypainty/internal/canvas/canvastest"
	"walkypainty/internal/identity"
)

func newStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(filepath.Join(t.TempDir(), "nested", "canvases.toml"))
	require.NoError(t, err)
	return s
}

func TestStore(t *testing.T) {
	canvastest.RunRepositoryTests(t, func(t *testing.T) canvas.Repository {
		return newStore(t)
	})
}

func TestStoreSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	require.NoError(t, s.CreateCanvas(ctx, canvas.Canvas{
		ID:       "c1",
		Name:     "Sketch",
		Creator:  identity.GuestWithID("g1"),
		IsPublic: false,
	}))

	reopened, err := New(s.Path())
	require.NoError(t, err)
	got, err := reopened.GetCanvas(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, "Sketch", got.Name)
	assert.False(t, got.IsPublic)
	assert.Equal(t, identity.Guest, got.Creator.Kind)

	info, err := os.Stat(s.Path())
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(fileMode), info.Mode().Perm())
}

func TestStoreWritesVersionedSchema(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	require.NoError(t, s.CreateCanvas(ctx, canvas.Canvas{ID: "c1", Name: "x"}))

	data, err := os.ReadFile(s.Path())
	require.NoError(t, err)
	assert.Contains(t, string(data), "version = 1")
	assert.NotContains(t, string(data), "guest_")
}

func TestStoreRejectsFutureVersion(t *testing.T) {
	s := newStore(t)
	require.NoError(t, os.MkdirAll(filepath.Dir(s.Path()), 0o700))
	require.NoError(t, os.WriteFile(s.Path(), []byte("version = 99\n"), 0o600))

	_, err := s.ListCanvases(context.Background())
	assert.ErrorContains(t, err, "unsupported canvas schema version")
}

func TestStoreRejectsEmptyPath(t *testing.T) {
	_, err := New("")
	assert.Error(t, err)
}

func TestStoreHonorsCancelledContext(t *testing.T) {
	s := newStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, s.CreateCanvas(ctx, canvas.Canvas{ID: "c"}), context.Canceled)
	_, err := s.ListCanvases(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
