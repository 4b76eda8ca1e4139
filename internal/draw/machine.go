package draw

import (
	"errors"
	"fmt"

	"walkypainty/internal/geometry"
)

// State of the local pointer gesture
type State int

const (
	Idle State = iota
	Drawing
)

func (s State) String() string {
	if s == Drawing {
		return "drawing"
	}
	return "idle"
}

const (
	DefaultColor = "#000000"
	DefaultWidth = 5.0
	DefaultTool  = geometry.Brush
)

var (
	ErrInvalidTool  = errors.New("invalid tool")
	ErrInvalidColor = errors.New("invalid color")
	ErrInvalidWidth = errors.New("invalid width")
)

// Renderer is the local surface segments are drawn onto
type Renderer interface {
	RenderSegment(tool geometry.Tool, prev, pt geometry.Point, color string, width float64)
}

// Segment: one rendered step of a gesture, forwarded to the network
type Segment struct {
	Prev  geometry.Point
	Point geometry.Point
	Tool  geometry.Tool
	Color string
	Width float64
}

// Stroke is a completed pointer-down to pointer-up gesture
type Stroke struct {
	CanvasID string
	Points   []geometry.Point
	Color    string
	Width    float64
	Tool     geometry.Tool
}

// Machine tracks one local drawing gesture at a time.
// Not safe for concurrent use.
type Machine struct {
	state    State
	buffer   []geometry.Point
	last     geometry.Point
	canvasID string

	tool  geometry.Tool
	color string
	width float64

	renderer Renderer
	emit     func(Segment)
	sink     func(Stroke)
}

type Option func(*Machine)

// WithEmitter: called for every segment drawn while the pointer is down
func WithEmitter(fn func(Segment)) Option {
	return func(m *Machine) { m.emit = fn }
}

// WithStrokeSink: receives completed strokes while a canvas id is set
func WithStrokeSink(fn func(Stroke)) Option {
	return func(m *Machine) { m.sink = fn }
}

// NewMachine creates an idle machine drawing with the default brush settings.
func NewMachine(renderer Renderer, opts ...Option) *Machine {
	m := &Machine{
		state:    Idle,
		tool:     DefaultTool,
		color:    DefaultColor,
		width:    DefaultWidth,
		renderer: renderer,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Machine) State() State {
	return m.state
}

func (m *Machine) Tool() geometry.Tool { return m.tool }
func (m *Machine) Color() string       { return m.color }
func (m *Machine) Width() float64      { return m.width }

// CanvasID is the save context; empty means strokes are not persisted.
func (m *Machine) CanvasID() string {
	return m.canvasID
}

func (m *Machine) SetCanvasID(id string) {
	m.canvasID = id
}

func (m *Machine) SetTool(t geometry.Tool) error {
	if !t.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidTool, t)
	}
	m.tool = t
	return nil
}

func (m *Machine) SetColor(c string) error {
	if _, ok := geometry.ParseColor(c); !ok {
		return fmt.Errorf("%w: %q", ErrInvalidColor, c)
	}
	m.color = c
	return nil
}

func (m *Machine) SetWidth(w float64) error {
	if !geometry.ValidWidth(w) {
		return fmt.Errorf("%w: %v", ErrInvalidWidth, w)
	}
	m.width = w
	return nil
}

// PointerDown opens a new stroke. A press while already drawing closes the
// current stroke first. Returns false if the point was rejected.
func (m *Machine) PointerDown(p geometry.Point) bool {
	if !p.Finite() {
		return false
	}
	if m.state == Drawing {
		m.finish()
	}

	m.state = Drawing
	m.buffer = []geometry.Point{p}
	m.last = p
	return true
}

// PointerMove extends the open stroke, renders the new segment locally and
// emits it. Ignored while idle.
func (m *Machine) PointerMove(p geometry.Point) bool {
	if m.state != Drawing || !p.Finite() {
		return false
	}

	seg := Segment{
		Prev:  m.last,
		Point: p,
		Tool:  m.tool,
		Color: m.color,
		Width: m.width,
	}

	m.buffer = append(m.buffer, p)
	m.last = p

	if m.renderer != nil {
		m.renderer.RenderSegment(seg.Tool, seg.Prev, seg.Point, seg.Color, seg.Width)
	}
	if m.emit != nil {
		m.emit(seg)
	}
	return true
}

// PointerUp closes the open stroke.
func (m *Machine) PointerUp() bool {
	if m.state != Drawing {
		return false
	}
	m.finish()
	return true
}

// PointerLeave behaves like PointerUp when the pointer exits the surface.
func (m *Machine) PointerLeave() bool {
	return m.PointerUp()
}

// finish: back to Idle, handing the buffer to the sink when there is a save context
func (m *Machine) finish() {
	points := m.buffer
	m.buffer = nil
	m.state = Idle

	if m.canvasID == "" || m.sink == nil {
		return
	}
	m.sink(Stroke{
		CanvasID: m.canvasID,
		Points:   points,
		Color:    m.color,
		Width:    m.width,
		Tool:     m.tool,
	})
}
