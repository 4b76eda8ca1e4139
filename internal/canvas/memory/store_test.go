package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"walkypainty/internal/canvas"
	"walkypainty/internal/canvas/canvastest"
	"walkypainty/internal/geometry"
	"walkypainty/internal/identity"
)

func TestStore(t *testing.T) {
	canvastest.RunRepositoryTests(t, func(t *testing.T) canvas.Repository {
		return New()
	})
}

func TestStoreReturnsCopies(t *testing.T) {
	ctx := context.Background()
	s := New()
	require.NoError(t, s.CreateCanvas(ctx, canvas.Canvas{ID: "c", Contributors: []identity.Identity{}}))
	require.NoError(t, s.SaveStroke(ctx, canvas.Stroke{ID: "s", CanvasID: "c", Points: []geometry.Point{{X: 1, Y: 1}}}))

	c, err := s.GetCanvas(ctx, "c")
	require.NoError(t, err)
	c.Contributors = append(c.Contributors, identity.GuestWithID("x"))

	strokes, err := s.ListStrokes(ctx, "c")
	require.NoError(t, err)
	strokes[0].Points[0].X = 99

	again, _ := s.GetCanvas(ctx, "c")
	assert.Empty(t, again.Contributors)
	fresh, _ := s.ListStrokes(ctx, "c")
	assert.Equal(t, 1.0, fresh[0].Points[0].X)
}
