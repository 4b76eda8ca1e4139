package draw

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"walkypainty/internal/geometry"
)

type recordingRenderer struct {
	segments []Segment
}

func (r *recordingRenderer) RenderSegment(tool geometry.Tool, prev, pt geometry.Point, color string, width float64) {
	r.segments = append(r.segments, Segment{Prev: prev, Point: pt, Tool: tool, Color: color, Width: width})
}

func TestMachineGesture(t *testing.T) {
	r := &recordingRenderer{}
	var emitted []Segment
	var strokes []Stroke

	m := NewMachine(r,
		WithEmitter(func(s Segment) { emitted = append(emitted, s) }),
		WithStrokeSink(func(s Stroke) { strokes = append(strokes, s) }),
	)
	m.SetCanvasID("c1")

	assert.Equal(t, Idle, m.State())
	assert.False(t, m.PointerMove(geometry.Pt(1, 1)), "move while idle")

	require.True(t, m.PointerDown(geometry.Pt(0, 0)))
	assert.Equal(t, Drawing, m.State())
	require.True(t, m.PointerMove(geometry.Pt(5, 5)))
	require.True(t, m.PointerMove(geometry.Pt(10, 5)))
	require.True(t, m.PointerUp())

	assert.Equal(t, Idle, m.State())
	assert.Equal(t, r.segments, emitted)
	require.Len(t, emitted, 2)
	assert.Equal(t, geometry.Pt(5, 5), emitted[1].Prev)
	assert.Equal(t, geometry.Pt(10, 5), emitted[1].Point)
	assert.Equal(t, DefaultTool, emitted[0].Tool)

	require.Len(t, strokes, 1)
	assert.Equal(t, "c1", strokes[0].CanvasID)
	assert.Equal(t, []geometry.Point{{X: 0, Y: 0}, {X: 5, Y: 5}, {X: 10, Y: 5}}, strokes[0].Points)
}

func TestMachineRejectsNonFinite(t *testing.T) {
	r := &recordingRenderer{}
	emitted := 0
	m := NewMachine(r, WithEmitter(func(Segment) { emitted++ }))

	assert.False(t, m.PointerDown(geometry.Pt(math.NaN(), 0)))
	assert.Equal(t, Idle, m.State())

	require.True(t, m.PointerDown(geometry.Pt(0, 0)))
	assert.False(t, m.PointerMove(geometry.Pt(math.Inf(1), 3)))
	assert.Equal(t, Drawing, m.State())
	assert.Zero(t, emitted)
	assert.Empty(t, r.segments)
}

func TestMachineNoSaveContext(t *testing.T) {
	called := false
	m := NewMachine(nil, WithStrokeSink(func(Stroke) { called = true }))

	m.PointerDown(geometry.Pt(1, 1))
	m.PointerMove(geometry.Pt(2, 2))
	m.PointerLeave()

	assert.False(t, called)
	assert.Equal(t, Idle, m.State())
}

func TestMachineDownWhileDrawingClosesStroke(t *testing.T) {
	var strokes []Stroke
	m := NewMachine(nil, WithStrokeSink(func(s Stroke) { strokes = append(strokes, s) }))
	m.SetCanvasID("c1")

	m.PointerDown(geometry.Pt(0, 0))
	m.PointerMove(geometry.Pt(1, 1))
	m.PointerDown(geometry.Pt(50, 50))

	require.Len(t, strokes, 1)
	assert.Len(t, strokes[0].Points, 2)
	assert.Equal(t, Drawing, m.State())

	m.PointerUp()
	require.Len(t, strokes, 2)
	assert.Equal(t, []geometry.Point{{X: 50, Y: 50}}, strokes[1].Points)
}

func TestMachineUpWhileIdle(t *testing.T) {
	m := NewMachine(nil)
	assert.False(t, m.PointerUp())
}

func TestMachineSettings(t *testing.T) {
	m := NewMachine(nil)

	assert.NoError(t, m.SetTool(geometry.Spray))
	assert.ErrorIs(t, m.SetTool("laser"), ErrInvalidTool)
	assert.Equal(t, geometry.Spray, m.Tool())

	assert.NoError(t, m.SetColor("#ff8800"))
	assert.ErrorIs(t, m.SetColor("orange"), ErrInvalidColor)
	assert.Equal(t, "#ff8800", m.Color())

	assert.NoError(t, m.SetWidth(12))
	assert.ErrorIs(t, m.SetWidth(0), ErrInvalidWidth)
	assert.ErrorIs(t, m.SetWidth(math.NaN()), ErrInvalidWidth)
	assert.Equal(t, 12.0, m.Width())
}
