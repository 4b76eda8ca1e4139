package protocol

import (
	"encoding/json"
	"errors"
	"fmt"

	"walkypainty/internal/geometry"
)

// Message types carried in the "type" field
const (
	TypeJoinRoom     = "join-room"
	TypeDraw         = "draw"
	TypeClear        = "clear"
	TypeCursorMove   = "cursor-move"
	TypeCursorUpdate = "cursor-update"
	TypePresence     = "presence"
	TypeWelcome      = "welcome"
	TypeRoomJoined   = "room-joined"
	TypeUserLeft     = "user-left"
	TypeError        = "error"
)

var (
	ErrMissingType   = errors.New("missing message type")
	ErrInvalidDraw   = errors.New("invalid draw event")
	ErrInvalidCursor = errors.New("invalid cursor position")
)

// Envelope: the fields every message router needs before full decoding
type Envelope struct {
	Type   string `json:"type"`
	RoomID string `json:"roomId,omitempty"`
}

// Peek decodes only the envelope of a raw message.
func Peek(raw []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return Envelope{}, fmt.Errorf("unmarshal envelope: %w", err)
	}
	if env.Type == "" {
		return Envelope{}, ErrMissingType
	}
	return env, nil
}

// Encode marshals a message for the wire.
func Encode(msg any) ([]byte, error) {
	b, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("marshal %T: %w", msg, err)
	}
	return b, nil
}

// Decode unmarshals a raw message into dst.
func Decode(raw []byte, dst any) error {
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("unmarshal %T: %w", dst, err)
	}
	return nil
}

type JoinRoom struct {
	Type   string `json:"type"`
	RoomID string `json:"roomId"`
	Name   string `json:"name,omitempty"`
}

func NewJoinRoom(roomID, name string) JoinRoom {
	return JoinRoom{Type: TypeJoinRoom, RoomID: roomID, Name: name}
}

// DrawEvent is one rendered segment, relayed to room peers and never stored
type DrawEvent struct {
	Type   string        `json:"type"`
	X      float64       `json:"x"`
	Y      float64       `json:"y"`
	LastX  float64       `json:"lastX"`
	LastY  float64       `json:"lastY"`
	Color  string        `json:"color"`
	Width  float64       `json:"width"`
	Tool   geometry.Tool `json:"tool"`
	RoomID string        `json:"roomId"`
}

func NewDrawEvent(roomID string, prev, pt geometry.Point, tool geometry.Tool, color string, width float64) DrawEvent {
	return DrawEvent{
		Type:   TypeDraw,
		X:      pt.X,
		Y:      pt.Y,
		LastX:  prev.X,
		LastY:  prev.Y,
		Color:  color,
		Width:  width,
		Tool:   tool,
		RoomID: roomID,
	}
}

func (e DrawEvent) Prev() geometry.Point  { return geometry.Pt(e.LastX, e.LastY) }
func (e DrawEvent) Point() geometry.Point { return geometry.Pt(e.X, e.Y) }

// Validate: receivers drop events that fail this check
func (e DrawEvent) Validate() error {
	switch {
	case !e.Prev().Finite() || !e.Point().Finite():
		return fmt.Errorf("%w: non-finite coordinates", ErrInvalidDraw)
	case !geometry.ValidWidth(e.Width):
		return fmt.Errorf("%w: width %v", ErrInvalidDraw, e.Width)
	case !e.Tool.Valid():
		return fmt.Errorf("%w: tool %q", ErrInvalidDraw, e.Tool)
	}
	if _, ok := geometry.ParseColor(e.Color); !ok {
		return fmt.Errorf("%w: color %q", ErrInvalidDraw, e.Color)
	}
	return nil
}

type Clear struct {
	Type   string `json:"type"`
	RoomID string `json:"roomId"`
}

func NewClear(roomID string) Clear {
	return Clear{Type: TypeClear, RoomID: roomID}
}

type CursorMove struct {
	Type string  `json:"type"`
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
}

func NewCursorMove(pt geometry.Point) CursorMove {
	return CursorMove{Type: TypeCursorMove, X: pt.X, Y: pt.Y}
}

func (c CursorMove) Validate() error {
	if !geometry.Pt(c.X, c.Y).Finite() {
		return ErrInvalidCursor
	}
	return nil
}

type CursorUpdate struct {
	Type   string  `json:"type"`
	UserID string  `json:"userId"`
	Name   string  `json:"name"`
	Color  string  `json:"color"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
}

// User is one entry of a presence list
type User struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Color string `json:"color"`
}

type Presence struct {
	Type   string `json:"type"`
	RoomID string `json:"roomId"`
	Count  int    `json:"count"`
	Total  int    `json:"total"`
	Users  []User `json:"users"`
}

type Welcome struct {
	Type      string `json:"type"`
	SessionID string `json:"sessionId"`
	Name      string `json:"name"`
	Color     string `json:"color"`
}

type RoomJoined struct {
	Type   string `json:"type"`
	RoomID string `json:"roomId"`
	Color  string `json:"color"`
}

type UserLeft struct {
	Type   string `json:"type"`
	UserID string `json:"userId"`
}

type Error struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

func NewError(message string) Error {
	return Error{Type: TypeError, Message: message}
}
