package geometry

import (
	"bytes"
	"image"
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seeded() *rand.Rand {
	return rand.New(rand.NewPCG(42, 7))
}

func pixels(t *testing.T, s *Surface) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, s.EncodePNG(&buf))
	return buf.Bytes()
}

func TestToolValid(t *testing.T) {
	for _, tool := range Tools {
		assert.True(t, tool.Valid(), tool)
	}
	assert.False(t, Tool("laser").Valid())
	assert.False(t, Tool("").Valid())
}

func TestPointHelpers(t *testing.T) {
	assert.True(t, Pt(1, 2).Finite())
	assert.False(t, Pt(math.NaN(), 2).Finite())
	assert.False(t, Pt(1, math.Inf(1)).Finite())

	assert.InDelta(t, 5.0, Pt(0, 0).Distance(Pt(3, 4)), 1e-9)
	assert.Equal(t, Pt(5, 10), Pt(0, 0).Mid(Pt(10, 20)))
}

func TestParseColor(t *testing.T) {
	_, ok := ParseColor("#ff0000")
	assert.True(t, ok)
	_, ok = ParseColor("red")
	assert.False(t, ok)
}

func TestSprayOffsetsStayInsideDisc(t *testing.T) {
	rng := seeded()
	for _, width := range []float64{1, 5, 20} {
		offsets := SprayOffsets(width, rng)
		require.Len(t, offsets, SprayDensity(width))
		for _, off := range offsets {
			assert.LessOrEqual(t, math.Hypot(off.X, off.Y), width+1e-9)
		}
	}
}

func TestSprayOffsetsAngularSpread(t *testing.T) {
	rng := seeded()
	const bins = 8
	var counts [bins]int
	total := 0
	for range 400 {
		for _, off := range SprayOffsets(20, rng) {
			theta := math.Atan2(off.Y, off.X)
			if theta < 0 {
				theta += 2 * math.Pi
			}
			counts[int(theta/(2*math.Pi)*bins)%bins]++
			total++
		}
	}

	expected := float64(total) / bins
	for i, c := range counts {
		assert.InDelta(t, expected, float64(c), expected*0.1, "bin %d", i)
	}
}

func TestSprayOffsetsZeroWidth(t *testing.T) {
	assert.Empty(t, SprayOffsets(0, seeded()))
}

func TestRenderSegmentRejectsInvalidInput(t *testing.T) {
	s := NewSurface(32, 32, WithRand(seeded()))
	before := pixels(t, s)

	s.RenderSegment(Brush, Pt(math.NaN(), 1), Pt(10, 10), "#000000", 4)
	s.RenderSegment(Pencil, Pt(1, 1), Pt(math.Inf(-1), 10), "#000000", 4)
	s.RenderSegment(Brush, Pt(1, 1), Pt(10, 10), "#000000", 0)
	s.RenderSegment(Brush, Pt(1, 1), Pt(10, 10), "#000000", -3)
	s.RenderSegment(Tool("laser"), Pt(1, 1), Pt(10, 10), "#000000", 4)

	assert.Equal(t, before, pixels(t, s))
}

func TestRenderSegmentDeterministicAcrossSurfaces(t *testing.T) {
	a := NewSurface(64, 64, WithRand(seeded()))
	b := NewSurface(64, 64, WithRand(seeded()))

	for _, tool := range Tools {
		a.RenderSegment(tool, Pt(5, 5), Pt(40, 30), "#3366cc", 6)
		b.RenderSegment(tool, Pt(5, 5), Pt(40, 30), "#3366cc", 6)
	}

	assert.Equal(t, pixels(t, a), pixels(t, b))
}

func TestPencilMarksRaster(t *testing.T) {
	s := NewSurface(32, 32)
	blank := pixels(t, s)

	s.RenderSegment(Pencil, Pt(2, 16), Pt(30, 16), "#000000", 6)
	assert.NotEqual(t, blank, pixels(t, s))
}

func TestEraserRestoresBackground(t *testing.T) {
	s := NewSurface(32, 32)
	blank := pixels(t, s)

	s.RenderSegment(Pencil, Pt(4, 16), Pt(28, 16), "#000000", 2)
	s.RenderSegment(Eraser, Pt(0, 16), Pt(32, 16), "#000000", 10)

	assert.Equal(t, blank, pixels(t, s))
}

func TestClear(t *testing.T) {
	s := NewSurface(16, 16)
	blank := pixels(t, s)

	s.RenderSegment(Pencil, Pt(0, 0), Pt(16, 16), "#ff0000", 4)
	s.Clear()
	assert.Equal(t, blank, pixels(t, s))
}

func TestResize(t *testing.T) {
	s := NewSurface(16, 16)
	require.NoError(t, s.Resize(40, 20))
	assert.Equal(t, 40, s.Width())
	assert.Equal(t, 20, s.Height())

	assert.Error(t, s.Resize(0, 10))
}

func TestDataURLRoundTrip(t *testing.T) {
	src := NewSurface(24, 24)
	src.RenderSegment(Pencil, Pt(0, 12), Pt(24, 12), "#00ff00", 8)
	url, err := src.DataURL()
	require.NoError(t, err)

	dst := NewSurface(24, 24)
	require.NoError(t, dst.LoadDataURL(url))
	assert.Equal(t, pixels(t, src), pixels(t, dst))
}

func TestDecodeDataURL(t *testing.T) {
	img, err := DecodeDataURL(BlankDataURL)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 1, 1), img.Bounds())

	_, err = DecodeDataURL("data:text/plain;base64,aGk=")
	assert.ErrorIs(t, err, ErrNotPNGDataURL)
}

func TestLoadDataURLErrorKeepsRaster(t *testing.T) {
	s := NewSurface(8, 8)
	s.RenderSegment(Pencil, Pt(0, 4), Pt(8, 4), "#000000", 2)
	before := pixels(t, s)

	assert.Error(t, s.LoadDataURL("garbage"))
	assert.Equal(t, before, pixels(t, s))
}
