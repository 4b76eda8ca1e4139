// Package canvastest holds the behavior every canvas.Repository must share.
package canvastest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"walkypainty/internal/canvas"
	"walkypainty/internal/geometry"
	"walkypainty/internal/identity"
)

var base = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func sampleCanvas(id string) canvas.Canvas {
	return canvas.Canvas{
		ID:           id,
		Name:         "Canvas " + id,
		ImageData:    geometry.BlankDataURL,
		Creator:      identity.GuestWithID("creator-" + id),
		Contributors: []identity.Identity{},
		IsPublic:     true,
		CreatedAt:    base,
		UpdatedAt:    base,
	}
}

func sampleStroke(id, canvasID string, at time.Time) canvas.Stroke {
	return canvas.Stroke{
		ID:        id,
		CanvasID:  canvasID,
		Author:    identity.GuestWithID("author"),
		Points:    []geometry.Point{{X: 1, Y: 2}, {X: 3.5, Y: 4.25}},
		Color:     "#123456",
		Width:     7,
		Tool:      geometry.Pencil,
		CreatedAt: at,
	}
}

// RunRepositoryTests exercises a fresh repository from newRepo for each case.
func RunRepositoryTests(t *testing.T, newRepo func(t *testing.T) canvas.Repository) {
	ctx := context.Background()

	t.Run("canvas round trip", func(t *testing.T) {
		repo := newRepo(t)
		c := sampleCanvas("c1")
		require.NoError(t, repo.CreateCanvas(ctx, c))

		got, err := repo.GetCanvas(ctx, "c1")
		require.NoError(t, err)
		assert.Equal(t, c.Name, got.Name)
		assert.Equal(t, c.ImageData, got.ImageData)
		assert.True(t, got.Creator.Same(c.Creator))
		assert.True(t, got.CreatedAt.Equal(base))
		assert.True(t, got.IsPublic)
	})

	t.Run("missing canvas", func(t *testing.T) {
		repo := newRepo(t)
		_, err := repo.GetCanvas(ctx, "nope")
		assert.ErrorIs(t, err, canvas.ErrCanvasNotFound)
		_, err = repo.FindDefault(ctx)
		assert.ErrorIs(t, err, canvas.ErrCanvasNotFound)
		assert.ErrorIs(t, repo.UpdateCanvas(ctx, sampleCanvas("nope")), canvas.ErrCanvasNotFound)
		assert.ErrorIs(t, repo.DeleteCanvas(ctx, "nope"), canvas.ErrCanvasNotFound)
		assert.ErrorIs(t, repo.SaveStroke(ctx, sampleStroke("s", "nope", base)), canvas.ErrCanvasNotFound)
	})

	t.Run("duplicate id rejected", func(t *testing.T) {
		repo := newRepo(t)
		require.NoError(t, repo.CreateCanvas(ctx, sampleCanvas("c1")))
		assert.Error(t, repo.CreateCanvas(ctx, sampleCanvas("c1")))
	})

	t.Run("update and default lookup", func(t *testing.T) {
		repo := newRepo(t)
		c := sampleCanvas("c1")
		require.NoError(t, repo.CreateCanvas(ctx, c))

		d := sampleCanvas("d")
		d.Creator = identity.Identity{}
		d.IsDefault = true
		require.NoError(t, repo.CreateCanvas(ctx, d))

		c.Name = "Renamed"
		c.Contributors = append(c.Contributors, identity.GuestWithID("helper"))
		require.NoError(t, repo.UpdateCanvas(ctx, c))

		got, err := repo.GetCanvas(ctx, "c1")
		require.NoError(t, err)
		assert.Equal(t, "Renamed", got.Name)
		require.Len(t, got.Contributors, 1)
		assert.Equal(t, "helper", got.Contributors[0].ID)

		def, err := repo.FindDefault(ctx)
		require.NoError(t, err)
		assert.Equal(t, "d", def.ID)
		assert.True(t, def.Creator.IsZero())

		all, err := repo.ListCanvases(ctx)
		require.NoError(t, err)
		assert.Len(t, all, 2)
	})

	t.Run("stroke persist then list", func(t *testing.T) {
		repo := newRepo(t)
		require.NoError(t, repo.CreateCanvas(ctx, sampleCanvas("c1")))
		require.NoError(t, repo.CreateCanvas(ctx, sampleCanvas("c2")))

		late := sampleStroke("late", "c1", base.Add(2*time.Second))
		early := sampleStroke("early", "c1", base.Add(time.Second))
		other := sampleStroke("other", "c2", base)
		require.NoError(t, repo.SaveStroke(ctx, late))
		require.NoError(t, repo.SaveStroke(ctx, early))
		require.NoError(t, repo.SaveStroke(ctx, other))

		got, err := repo.ListStrokes(ctx, "c1")
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, "early", got[0].ID)
		assert.Equal(t, "late", got[1].ID)
		assert.Equal(t, early.Points, got[0].Points)
		assert.Equal(t, early.Color, got[0].Color)
		assert.Equal(t, early.Width, got[0].Width)
		assert.Equal(t, early.Tool, got[0].Tool)
		assert.True(t, got[0].Author.Same(early.Author))
		assert.True(t, got[0].CreatedAt.Equal(early.CreatedAt))
	})

	t.Run("delete cascades to strokes", func(t *testing.T) {
		repo := newRepo(t)
		require.NoError(t, repo.CreateCanvas(ctx, sampleCanvas("c1")))
		require.NoError(t, repo.SaveStroke(ctx, sampleStroke("s1", "c1", base)))

		require.NoError(t, repo.DeleteCanvas(ctx, "c1"))
		_, err := repo.GetCanvas(ctx, "c1")
		assert.ErrorIs(t, err, canvas.ErrCanvasNotFound)
		_, err = repo.ListStrokes(ctx, "c1")
		assert.ErrorIs(t, err, canvas.ErrCanvasNotFound)

		require.NoError(t, repo.CreateCanvas(ctx, sampleCanvas("c1")))
		strokes, err := repo.ListStrokes(ctx, "c1")
		require.NoError(t, err)
		assert.Empty(t, strokes)
	})
}
