package canvas_test

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"walkypainty/internal/canvas"
	"walkypainty/internal/canvas/memory"
	"walkypainty/internal/geometry"
	"walkypainty/internal/identity"
	"walkypainty/internal/metrics"
)

const pngURL = "data:image/png;base64,AAAA"

func newService() *canvas.Service {
	return canvas.NewService(memory.New(), zap.NewNop(), metrics.New())
}

func boolPtr(b bool) *bool              { return &b }
func strPtr(s string) *string           { return &s }
func guest(id string) identity.Identity { return identity.GuestWithID(id) }

func TestCreateCanvas(t *testing.T) {
	svc := newService()
	ctx := context.Background()
	alice := guest("alice")

	c, err := svc.Create(ctx, alice, canvas.CreateCanvasRequest{
		Name:      "<script>x</script>Sunset",
		ImageData: pngURL,
	})
	require.NoError(t, err)
	assert.Equal(t, "Sunset", c.Name)
	assert.True(t, c.IsPublic, "canvases are public unless asked otherwise")
	assert.True(t, c.Creator.Same(alice))
	assert.NotEmpty(t, c.ID)
}

func TestCreateCanvasValidation(t *testing.T) {
	svc := newService()
	ctx := context.Background()

	tests := []struct {
		name string
		req  canvas.CreateCanvasRequest
	}{
		{"missing name", canvas.CreateCanvasRequest{ImageData: pngURL}},
		{"missing image", canvas.CreateCanvasRequest{Name: "x"}},
		{"not a data url", canvas.CreateCanvasRequest{Name: "x", ImageData: "http://example.com/a.png"}},
		{"markup only name", canvas.CreateCanvasRequest{Name: "<b></b>", ImageData: pngURL}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Create(ctx, guest("a"), tt.req)
			assert.ErrorIs(t, err, canvas.ErrInvalid)
		})
	}
}

func TestDefaultCanvasIsLazyAndSingleton(t *testing.T) {
	svc := newService()
	ctx := context.Background()

	var wg sync.WaitGroup
	ids := make([]string, 8)
	for i := range ids {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c, err := svc.Get(ctx, guest("g"), canvas.DefaultID)
			if assert.NoError(t, err) {
				ids[i] = c.ID
			}
		}()
	}
	wg.Wait()

	for _, id := range ids {
		assert.Equal(t, ids[0], id)
	}

	c, err := svc.Get(ctx, guest("other"), canvas.DefaultID)
	require.NoError(t, err)
	assert.Equal(t, canvas.DefaultName, c.Name)
	assert.True(t, c.IsDefault)
	assert.True(t, c.IsPublic)
	assert.True(t, c.Creator.IsZero())
	assert.Equal(t, geometry.BlankDataURL, c.ImageData)
}

func TestPrivateCanvasVisibility(t *testing.T) {
	svc := newService()
	ctx := context.Background()
	owner, stranger := guest("owner"), guest("stranger")

	priv, err := svc.Create(ctx, owner, canvas.CreateCanvasRequest{Name: "Secret", ImageData: pngURL, IsPublic: boolPtr(false)})
	require.NoError(t, err)
	_, err = svc.Create(ctx, owner, canvas.CreateCanvasRequest{Name: "Open", ImageData: pngURL})
	require.NoError(t, err)

	_, err = svc.Get(ctx, stranger, priv.ID)
	assert.ErrorIs(t, err, canvas.ErrForbidden)
	_, err = svc.Strokes(ctx, stranger, priv.ID)
	assert.ErrorIs(t, err, canvas.ErrForbidden)

	public, err := svc.List(ctx, owner, true)
	require.NoError(t, err)
	assert.Len(t, public, 1)

	mine, err := svc.List(ctx, owner, false)
	require.NoError(t, err)
	assert.Len(t, mine, 2)

	theirs, err := svc.List(ctx, stranger, false)
	require.NoError(t, err)
	assert.Len(t, theirs, 1)
}

func TestUpdateRules(t *testing.T) {
	svc := newService()
	ctx := context.Background()
	owner, helper, stranger := guest("owner"), guest("helper"), guest("stranger")

	c, err := svc.Create(ctx, owner, canvas.CreateCanvasRequest{Name: "Shared", ImageData: pngURL})
	require.NoError(t, err)

	_, err = svc.Update(ctx, stranger, c.ID, canvas.UpdateCanvasRequest{ImageData: strPtr(pngURL)})
	assert.ErrorIs(t, err, canvas.ErrForbidden)

	_, err = svc.SaveStroke(ctx, helper, canvas.SaveStrokeRequest{Canvas: c.ID, Points: []canvas.PointRequest{{X: 1, Y: 1}}})
	require.NoError(t, err)

	updated, err := svc.Update(ctx, helper, c.ID, canvas.UpdateCanvasRequest{Name: strPtr("Renamed")})
	require.NoError(t, err)
	assert.Equal(t, "Renamed", updated.Name)

	_, err = svc.Update(ctx, helper, c.ID, canvas.UpdateCanvasRequest{IsPublic: boolPtr(false)})
	assert.ErrorIs(t, err, canvas.ErrForbidden, "only the creator changes visibility")

	updated, err = svc.Update(ctx, owner, c.ID, canvas.UpdateCanvasRequest{IsPublic: boolPtr(false)})
	require.NoError(t, err)
	assert.False(t, updated.IsPublic)
	require.Len(t, updated.Contributors, 1, "creator is not listed as contributor")
}

func TestDefaultCanvasOpenToUpdatesButNotDeletes(t *testing.T) {
	svc := newService()
	ctx := context.Background()
	anyone := guest("anyone")

	c, err := svc.Update(ctx, anyone, canvas.DefaultID, canvas.UpdateCanvasRequest{ImageData: strPtr(pngURL)})
	require.NoError(t, err)
	assert.Equal(t, pngURL, c.ImageData)
	assert.True(t, c.IsContributor(anyone))

	_, err = svc.Update(ctx, anyone, canvas.DefaultID, canvas.UpdateCanvasRequest{IsPublic: boolPtr(false)})
	assert.ErrorIs(t, err, canvas.ErrForbidden)

	assert.ErrorIs(t, svc.Delete(ctx, anyone, canvas.DefaultID), canvas.ErrForbidden)
}

func TestDeleteCreatorOnlyAndCascades(t *testing.T) {
	svc := newService()
	ctx := context.Background()
	owner, helper := guest("owner"), guest("helper")

	c, err := svc.Create(ctx, owner, canvas.CreateCanvasRequest{Name: "Temp", ImageData: pngURL})
	require.NoError(t, err)
	_, err = svc.SaveStroke(ctx, helper, canvas.SaveStrokeRequest{Canvas: c.ID, Points: []canvas.PointRequest{{X: 1, Y: 1}}})
	require.NoError(t, err)

	assert.ErrorIs(t, svc.Delete(ctx, helper, c.ID), canvas.ErrForbidden)
	require.NoError(t, svc.Delete(ctx, owner, c.ID))

	_, err = svc.Get(ctx, owner, c.ID)
	assert.ErrorIs(t, err, canvas.ErrCanvasNotFound)
	_, err = svc.Strokes(ctx, owner, c.ID)
	assert.ErrorIs(t, err, canvas.ErrCanvasNotFound)
}

func TestSaveStrokeDefaultsAndOrder(t *testing.T) {
	svc := newService()
	ctx := context.Background()
	artist := guest("artist")

	first, err := svc.SaveStroke(ctx, artist, canvas.SaveStrokeRequest{
		Canvas: canvas.DefaultID,
		Points: []canvas.PointRequest{{X: 1, Y: 2}, {X: 3, Y: 4}},
	})
	require.NoError(t, err)
	assert.Equal(t, canvas.DefaultStrokeColor, first.Color)
	assert.Equal(t, canvas.DefaultStrokeWidth, first.Width)
	assert.Equal(t, canvas.DefaultStrokeTool, first.Tool)

	second, err := svc.SaveStroke(ctx, artist, canvas.SaveStrokeRequest{
		Canvas: canvas.DefaultID,
		Points: []canvas.PointRequest{{X: 5, Y: 6}},
		Color:  "#ff0000",
		Width:  2,
		Tool:   geometry.Spray,
	})
	require.NoError(t, err)

	strokes, err := svc.Strokes(ctx, guest("viewer"), canvas.DefaultID)
	require.NoError(t, err)
	require.Len(t, strokes, 2)
	assert.Equal(t, first.ID, strokes[0].ID)
	assert.Equal(t, second.ID, strokes[1].ID)
	assert.Equal(t, []geometry.Point{{X: 1, Y: 2}, {X: 3, Y: 4}}, strokes[0].Points)

	def, err := svc.Get(ctx, artist, canvas.DefaultID)
	require.NoError(t, err)
	assert.True(t, def.IsContributor(artist))
	assert.Len(t, def.Contributors, 1, "contributor recorded once")
}

func TestSaveStrokeValidation(t *testing.T) {
	svc := newService()
	ctx := context.Background()

	tests := []struct {
		name string
		req  canvas.SaveStrokeRequest
	}{
		{"no canvas", canvas.SaveStrokeRequest{Points: []canvas.PointRequest{{}}}},
		{"no points", canvas.SaveStrokeRequest{Canvas: "default"}},
		{"bad color", canvas.SaveStrokeRequest{Canvas: "default", Points: []canvas.PointRequest{{}}, Color: "red"}},
		{"short alpha color", canvas.SaveStrokeRequest{Canvas: "default", Points: []canvas.PointRequest{{}}, Color: "#fff8"}},
		{"long alpha color", canvas.SaveStrokeRequest{Canvas: "default", Points: []canvas.PointRequest{{}}, Color: "#11223344"}},
		{"bad tool", canvas.SaveStrokeRequest{Canvas: "default", Points: []canvas.PointRequest{{}}, Tool: "laser"}},
		{"negative width", canvas.SaveStrokeRequest{Canvas: "default", Points: []canvas.PointRequest{{}}, Width: -1}},
		{"far point", canvas.SaveStrokeRequest{Canvas: "default", Points: []canvas.PointRequest{{X: 1e9}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.SaveStroke(ctx, guest("a"), tt.req)
			assert.ErrorIs(t, err, canvas.ErrInvalid)
		})
	}

	_, err := svc.SaveStroke(ctx, guest("a"), canvas.SaveStrokeRequest{Canvas: "missing", Points: []canvas.PointRequest{{}}})
	assert.ErrorIs(t, err, canvas.ErrCanvasNotFound)

	for _, hex := range []string{"#abc", "#A0B1C2"} {
		_, err := svc.SaveStroke(ctx, guest("a"), canvas.SaveStrokeRequest{Canvas: "default", Points: []canvas.PointRequest{{}}, Color: hex})
		assert.NoError(t, err, hex)
	}
}

func TestCanvasPermissions(t *testing.T) {
	owner, helper, other := guest("o"), guest("h"), guest("x")
	c := canvas.Canvas{Creator: owner, IsPublic: false}
	assert.True(t, c.AddContributor(helper))
	assert.False(t, c.AddContributor(helper))
	assert.False(t, c.AddContributor(owner))

	assert.True(t, c.CanRead(helper))
	assert.False(t, c.CanRead(other))
	assert.True(t, c.CanUpdate(helper))
	assert.False(t, c.CanDelete(helper))
	assert.True(t, c.CanDelete(owner))

	// same id, different kind is a different actor
	assert.False(t, c.CanRead(identity.NewRegistered("o", "Owner")))
}
