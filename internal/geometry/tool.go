package geometry

import (
	"math"

	"github.com/lucasb-eyer/go-colorful"
)

// Tool identifies how a segment is rendered
type Tool string

const (
	Brush  Tool = "brush"
	Pencil Tool = "pencil"
	Eraser Tool = "eraser"
	Spray  Tool = "spray"
)

// Tools lists every tool the engine can render, in toolbar order
var Tools = []Tool{Brush, Pencil, Eraser, Spray}

// Valid: tool is one of the fixed set
func (t Tool) Valid() bool {
	switch t {
	case Brush, Pencil, Eraser, Spray:
		return true
	}
	return false
}

// Point is a position in canvas pixel space
type Point struct {
	X float64 `json:"x" toml:"x"`
	Y float64 `json:"y" toml:"y"`
}

func Pt(x, y float64) Point {
	return Point{X: x, Y: y}
}

// Finite: both coordinates are real numbers (no NaN, no Inf)
func (p Point) Finite() bool {
	return finite(p.X) && finite(p.Y)
}

// Distance returns the Euclidean distance between p and q.
func (p Point) Distance(q Point) float64 {
	return math.Hypot(q.X-p.X, q.Y-p.Y)
}

// Mid returns the point halfway between p and q.
func (p Point) Mid(q Point) Point {
	return Point{
		X: p.X + (q.X-p.X)*0.5,
		Y: p.Y + (q.Y-p.Y)*0.5,
	}
}

// ValidWidth: stroke widths must be finite and positive
func ValidWidth(w float64) bool {
	return finite(w) && w > 0
}

// ParseColor parses "#rrggbb" or "#rgb".
func ParseColor(hex string) (colorful.Color, bool) {
	c, err := colorful.Hex(hex)
	if err != nil {
		return colorful.Color{}, false
	}
	return c, true
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
