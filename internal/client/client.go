package client

import (
	"context"
	"fmt"
	"io"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"walkypainty/internal/canvas"
	"walkypainty/internal/draw"
	"walkypainty/internal/geometry"
	"walkypainty/internal/protocol"
)

const (
	DefaultRoom = "default"
	saveTimeout = 10 * time.Second
)

// Status of the link to the sync server
type Status int

const (
	Offline Status = iota
	Online
	Reconnecting
)

func (s Status) String() string {
	switch s {
	case Online:
		return "online"
	case Reconnecting:
		return "reconnecting"
	default:
		return "offline"
	}
}

// Cursor is the last known pointer position of a remote peer
type Cursor struct {
	UserID string
	Name   string
	Color  string
	Point  geometry.Point
}

// Presence as last reported for the current room
type Presence struct {
	RoomID string
	Count  int
	Total  int
	Users  []protocol.User
}

type Options struct {
	Dialer Dialer
	// Saver persists completed strokes while a canvas is selected. Optional.
	Saver StrokeSaver
	Room  string
	Name  string

	ReconnectDelay time.Duration
	MaxAttempts    int

	Logger *zap.Logger
	// OnNotice reports non-fatal problems to the user, such as a failed save
	OnNotice func(message string)
	OnStatus func(Status)
	// OnUpdate fires after each inbound message has been applied
	OnUpdate func(msgType string)
}

// Client is one drawing participant. Pointer input, network messages and
// rendering all run under a single mutex so the raster is never touched by
// two goroutines at once.
type Client struct {
	opts   Options
	logger *zap.Logger

	mu        sync.Mutex
	surface   *geometry.Surface
	machine   *draw.Machine
	conn      Conn
	status    Status
	room      string
	pending   string
	sessionID string
	name      string
	color     string
	cursors   map[string]Cursor
	presence  Presence

	saves sync.WaitGroup
}

func New(surface *geometry.Surface, opts Options) *Client {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	room := strings.TrimSpace(opts.Room)
	if room == "" {
		room = DefaultRoom
	}

	c := &Client{
		opts:    opts,
		logger:  opts.Logger,
		surface: surface,
		status:  Offline,
		room:    room,
		name:    opts.Name,
		cursors: make(map[string]Cursor),
	}
	c.machine = draw.NewMachine(surface,
		draw.WithEmitter(c.emitLocked),
		draw.WithStrokeSink(c.persistLocked),
	)
	return c
}

// Run keeps the client connected until ctx ends or reconnection gives up,
// in which case it returns ErrGaveUp and the client stays Offline. Local
// drawing keeps working in every state.
func (c *Client) Run(ctx context.Context) error {
	if c.opts.Dialer == nil {
		return fmt.Errorf("client: no dialer configured")
	}
	retry := NewReconnector(c.opts.ReconnectDelay, c.opts.MaxAttempts)

	for {
		conn, err := c.opts.Dialer.Dial(ctx)
		if err == nil {
			retry.Reset()
			c.attach(conn)
			err = c.readLoop(ctx, conn)
			c.detach(conn)
		}
		if ctx.Err() != nil {
			c.setStatus(Offline)
			return ctx.Err()
		}

		c.logger.Warn("connection unavailable",
			zap.Int("attempt", retry.Attempts()+1),
			zap.Error(err),
		)
		c.setStatus(Reconnecting)
		if err := retry.Wait(ctx); err != nil {
			c.setStatus(Offline)
			return err
		}
	}
}

// attach: fresh link, so stale cursors go and the active (or requested) room is re-joined
func (c *Client) attach(conn Conn) {
	c.mu.Lock()
	c.conn = conn
	clear(c.cursors)
	c.status = Online
	target := c.room
	if c.pending != "" {
		target = c.pending
	}
	c.pending = target
	c.sendLocked(protocol.NewJoinRoom(target, c.name))
	c.mu.Unlock()

	c.logger.Info("connected", zap.String("room", c.Room()))
	if c.opts.OnStatus != nil {
		c.opts.OnStatus(Online)
	}
}

func (c *Client) detach(conn Conn) {
	c.mu.Lock()
	if c.conn == conn {
		c.conn = nil
		clear(c.cursors)
		c.presence = Presence{}
	}
	c.mu.Unlock()
	_ = conn.Close()
}

func (c *Client) readLoop(ctx context.Context, conn Conn) error {
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		c.receive(raw)
	}
}

func (c *Client) setStatus(s Status) {
	c.mu.Lock()
	changed := c.status != s
	c.status = s
	c.mu.Unlock()

	if changed && c.opts.OnStatus != nil {
		c.opts.OnStatus(s)
	}
}

func (c *Client) receive(raw []byte) {
	env, err := protocol.Peek(raw)
	if err != nil {
		c.logger.Debug("dropping malformed message", zap.Error(err))
		return
	}

	c.mu.Lock()
	notice := c.applyLocked(env, raw)
	c.mu.Unlock()

	if notice != "" {
		c.notify(notice)
	}
	if c.opts.OnUpdate != nil {
		c.opts.OnUpdate(env.Type)
	}
}

// applyLocked folds one server message into local state. Remote draws go
// straight to the surface and never through the local state machine.
func (c *Client) applyLocked(env protocol.Envelope, raw []byte) string {
	switch env.Type {
	case protocol.TypeDraw:
		var ev protocol.DrawEvent
		if err := protocol.Decode(raw, &ev); err != nil {
			return ""
		}
		if err := ev.Validate(); err != nil {
			c.logger.Debug("dropping draw event", zap.Error(err))
			return ""
		}
		if ev.RoomID != c.room {
			return ""
		}
		c.surface.RenderSegment(ev.Tool, ev.Prev(), ev.Point(), ev.Color, ev.Width)

	case protocol.TypeClear:
		if env.RoomID == c.room {
			c.surface.Clear()
		}

	case protocol.TypeCursorUpdate:
		var cu protocol.CursorUpdate
		if err := protocol.Decode(raw, &cu); err != nil || !geometry.Pt(cu.X, cu.Y).Finite() {
			return ""
		}
		c.cursors[cu.UserID] = Cursor{
			UserID: cu.UserID,
			Name:   cu.Name,
			Color:  cu.Color,
			Point:  geometry.Pt(cu.X, cu.Y),
		}

	case protocol.TypeUserLeft:
		var ul protocol.UserLeft
		if err := protocol.Decode(raw, &ul); err == nil {
			delete(c.cursors, ul.UserID)
		}

	case protocol.TypePresence:
		var p protocol.Presence
		if err := protocol.Decode(raw, &p); err != nil || p.RoomID != c.room {
			return ""
		}
		c.presence = Presence{RoomID: p.RoomID, Count: p.Count, Total: p.Total, Users: p.Users}

	case protocol.TypeWelcome:
		var w protocol.Welcome
		if err := protocol.Decode(raw, &w); err == nil {
			c.sessionID = w.SessionID
			c.color = w.Color
			if c.name == "" {
				c.name = w.Name
			}
		}

	case protocol.TypeRoomJoined:
		var rj protocol.RoomJoined
		if err := protocol.Decode(raw, &rj); err == nil {
			if rj.RoomID != c.room {
				clear(c.cursors)
				c.presence = Presence{}
			}
			c.pending = ""
			c.room = rj.RoomID
			c.color = rj.Color
		}

	case protocol.TypeError:
		var e protocol.Error
		if err := protocol.Decode(raw, &e); err == nil {
			// a rejected join leaves us where we were
			c.pending = ""
			return e.Message
		}

	default:
		c.logger.Debug("ignoring message", zap.String("type", env.Type))
	}
	return ""
}

// sendLocked is fire-and-forget. Offline sends are dropped.
func (c *Client) sendLocked(msg any) {
	if c.conn == nil {
		return
	}
	data, err := protocol.Encode(msg)
	if err != nil {
		c.logger.Error("encode message", zap.Error(err))
		return
	}
	if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		c.logger.Debug("send failed", zap.Error(err))
	}
}

func (c *Client) emitLocked(seg draw.Segment) {
	c.sendLocked(protocol.NewDrawEvent(c.room, seg.Prev, seg.Point, seg.Tool, seg.Color, seg.Width))
}

// persistLocked hands the stroke to the saver off the client lock
func (c *Client) persistLocked(s draw.Stroke) {
	saver := c.opts.Saver
	if saver == nil {
		return
	}

	c.saves.Add(1)
	go func() {
		defer c.saves.Done()
		ctx, cancel := context.WithTimeout(context.Background(), saveTimeout)
		defer cancel()

		if err := saver.SaveStroke(ctx, s); err != nil {
			c.logger.Warn("failed to save stroke",
				zap.String("canvasID", s.CanvasID),
				zap.Int("points", len(s.Points)),
				zap.Error(err),
			)
			c.notify("Could not save stroke: " + err.Error())
		}
	}()
}

func (c *Client) notify(message string) {
	if c.opts.OnNotice != nil {
		c.opts.OnNotice(message)
	}
}

// Local input

func (c *Client) PointerDown(p geometry.Point) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.machine.PointerDown(p)
}

func (c *Client) PointerMove(p geometry.Point) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.machine.PointerMove(p)
}

func (c *Client) PointerUp() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.machine.PointerUp()
}

func (c *Client) PointerLeave() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.machine.PointerLeave()
}

func (c *Client) SetTool(t geometry.Tool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.machine.SetTool(t)
}

func (c *Client) SetColor(color string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.machine.SetColor(color)
}

func (c *Client) SetWidth(w float64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.machine.SetWidth(w)
}

// SetCanvas selects where completed strokes are saved; "" stops saving.
func (c *Client) SetCanvas(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.machine.SetCanvasID(id)
}

// MoveCursor shares the local pointer position with the room.
func (c *Client) MoveCursor(p geometry.Point) bool {
	if !p.Finite() {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sendLocked(protocol.NewCursorMove(p))
	return true
}

// Clear wipes the local surface and asks room peers to do the same.
func (c *Client) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.surface.Clear()
	c.sendLocked(protocol.NewClear(c.room))
}

// JoinRoom asks to switch rooms. The active room only changes once the
// server confirms with room-joined; cursors from the old room go then.
func (c *Client) JoinRoom(roomID string) error {
	roomID = strings.TrimSpace(roomID)
	if roomID == "" {
		return fmt.Errorf("room id is required")
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.pending = roomID
	c.sendLocked(protocol.NewJoinRoom(roomID, c.name))
	return nil
}

// CanvasSource is where LoadCanvas reads persisted state from
type CanvasSource interface {
	Canvas(ctx context.Context, id string) (canvas.Canvas, error)
	Strokes(ctx context.Context, canvasID string) ([]canvas.Stroke, error)
}

// LoadCanvas restores a canvas snapshot, replays its saved strokes on top
// and selects it for saving. Fetching happens outside the client lock.
func (c *Client) LoadCanvas(ctx context.Context, src CanvasSource, id string) error {
	cv, err := src.Canvas(ctx, id)
	if err != nil {
		return fmt.Errorf("load canvas %s: %w", id, err)
	}
	strokes, err := src.Strokes(ctx, cv.ID)
	if err != nil {
		return fmt.Errorf("load strokes of %s: %w", cv.ID, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.surface.Clear()
	if cv.ImageData != "" {
		if err := c.surface.LoadDataURL(cv.ImageData); err != nil {
			c.logger.Warn("ignoring unreadable snapshot", zap.String("canvasID", cv.ID), zap.Error(err))
		}
	}
	for _, s := range strokes {
		Replay(c.surface, s)
	}
	c.machine.SetCanvasID(cv.ID)
	return nil
}

// Replay renders a saved stroke segment by segment.
func Replay(surface *geometry.Surface, s canvas.Stroke) {
	for i := 1; i < len(s.Points); i++ {
		surface.RenderSegment(s.Tool, s.Points[i-1], s.Points[i], s.Color, s.Width)
	}
}

func (c *Client) Resize(width, height int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.surface.Resize(width, height)
}

// Snapshot encodes the current raster as a PNG data URL.
func (c *Client) Snapshot() (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.surface.DataURL()
}

// EncodePNG writes the current raster as PNG.
func (c *Client) EncodePNG(w io.Writer) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.surface.EncodePNG(w)
}

// Wait blocks until in-flight stroke saves have finished.
func (c *Client) Wait() {
	c.saves.Wait()
}

func (c *Client) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

func (c *Client) Room() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.room
}

func (c *Client) SessionID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessionID
}

func (c *Client) Name() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.name
}

func (c *Client) Color() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.color
}

func (c *Client) DrawState() draw.State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.machine.State()
}

func (c *Client) Presence() Presence {
	c.mu.Lock()
	defer c.mu.Unlock()
	p := c.presence
	p.Users = slices.Clone(p.Users)
	return p
}

// Cursors returns remote cursors ordered by user id.
func (c *Client) Cursors() []Cursor {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]Cursor, 0, len(c.cursors))
	for _, cur := range c.cursors {
		out = append(out, cur)
	}
	slices.SortFunc(out, func(a, b Cursor) int { return strings.Compare(a.UserID, b.UserID) })
	return out
}
