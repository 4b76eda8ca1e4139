package geometry

import (
	"github.com/gogpu/gg"
	"github.com/lucasb-eyer/go-colorful"
)

const (
	pencilScale = 0.5
	eraserScale = 2.0
)

// RenderSegment draws one segment from prev to pt with the given tool.
// Invalid input (non-finite coordinates, bad width, unknown tool) draws
// nothing. An unparsable color falls back to black.
func (s *Surface) RenderSegment(tool Tool, prev, pt Point, color string, width float64) {
	if !prev.Finite() || !pt.Finite() || !ValidWidth(width) {
		return
	}

	c, ok := ParseColor(color)
	if !ok {
		c = colorful.Color{}
	}

	switch tool {
	case Brush:
		s.brush(prev, pt, c, width)
	case Pencil:
		s.line(prev, pt, c, width*pencilScale)
	case Eraser:
		s.line(prev, pt, s.background, width*eraserScale)
	case Spray:
		s.spray(pt, c, width)
	}
}

// brush: straight segment for fast (sparse) input, otherwise a quadratic
// curve through the midpoint to avoid faceting on dense input
func (s *Surface) brush(prev, pt Point, c colorful.Color, width float64) {
	s.beginStroke(c, width)
	s.dc.MoveTo(prev.X, prev.Y)

	if prev.Distance(pt) > width*2 {
		s.dc.LineTo(pt.X, pt.Y)
	} else {
		mid := prev.Mid(pt)
		s.dc.QuadraticTo(prev.X, prev.Y, mid.X, mid.Y)
	}
	_ = s.dc.Stroke()
}

func (s *Surface) line(prev, pt Point, c colorful.Color, width float64) {
	s.beginStroke(c, width)
	s.dc.MoveTo(prev.X, prev.Y)
	s.dc.LineTo(pt.X, pt.Y)
	_ = s.dc.Stroke()
}

func (s *Surface) spray(pt Point, c colorful.Color, width float64) {
	s.dc.ClearPath()
	s.dc.SetColor(c)
	for _, off := range SprayOffsets(width, s.rng) {
		s.dc.DrawCircle(pt.X+off.X, pt.Y+off.Y, SprayDotRadius)
		_ = s.dc.Fill()
	}
}

func (s *Surface) beginStroke(c colorful.Color, width float64) {
	s.dc.ClearPath()
	s.dc.SetColor(c)
	s.dc.SetLineWidth(width)
	s.dc.SetLineCap(gg.LineCapRound)
	s.dc.SetLineJoin(gg.LineJoinRound)
}
