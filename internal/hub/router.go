package hub

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"
	"go.uber.org/zap"

	"walkypainty/internal/geometry"
	"walkypainty/internal/presence"
	"walkypainty/internal/protocol"
)

const maxNameLength = 32

// MessageRouter routes inbound messages to their handlers by type
type MessageRouter struct {
	hub    *Hub
	policy *bluemonday.Policy
}

func NewMessageRouter(h *Hub) *MessageRouter {
	return &MessageRouter{
		hub:    h,
		policy: bluemonday.StrictPolicy(),
	}
}

// Route: process one raw message from p
func (mr *MessageRouter) Route(p *Peer, raw []byte) error {
	env, err := protocol.Peek(raw)
	if err != nil {
		mr.hub.metrics.Dropped.WithLabelValues("malformed").Inc()
		return err
	}

	switch env.Type {
	case protocol.TypeJoinRoom:
		mr.hub.metrics.Messages.WithLabelValues(env.Type).Inc()
		return mr.handleJoin(p, raw)
	case protocol.TypeDraw, protocol.TypeClear:
		mr.hub.metrics.Messages.WithLabelValues(env.Type).Inc()
		mr.handleRelay(p, env, raw)
		return nil
	case protocol.TypeCursorMove:
		mr.hub.metrics.Messages.WithLabelValues(env.Type).Inc()
		return mr.handleCursor(p, raw)
	default:
		mr.hub.metrics.Dropped.WithLabelValues("unknown_type").Inc()
		return fmt.Errorf("unknown message type: %s", env.Type)
	}
}

func (mr *MessageRouter) handleJoin(p *Peer, raw []byte) error {
	var msg protocol.JoinRoom
	if err := protocol.Decode(raw, &msg); err != nil {
		return err
	}
	roomID := strings.TrimSpace(msg.RoomID)
	if roomID == "" {
		return presence.ErrEmptyRoomID
	}
	mr.join(p, roomID, mr.sanitizeName(msg.Name))
	return nil
}

// join moves p into roomID and announces the change to both rooms.
func (mr *MessageRouter) join(p *Peer, roomID, name string) {
	h := mr.hub
	res, err := h.registry.JoinRoom(p.ID, roomID, name)
	if err != nil {
		h.logger.Info("join rejected",
			zap.String("sessionID", p.ID),
			zap.String("roomID", roomID),
			zap.Error(err),
		)
		h.send(p, protocol.NewError(joinErrorMessage(err)))
		return
	}

	h.send(p, protocol.RoomJoined{
		Type:   protocol.TypeRoomJoined,
		RoomID: roomID,
		Color:  res.Session.Color,
	})

	if !res.Changed {
		h.send(p, h.registry.Snapshot(roomID))
		return
	}
	h.metrics.Rooms.Set(float64(h.registry.RoomCount()))

	if res.Previous != "" {
		h.announceLeave(p.ID, res.Previous)
	}
	h.broadcast(roomID, h.registry.Snapshot(roomID), "")

	for _, cu := range h.sync.CursorsFor(roomID, p.ID) {
		h.send(p, cu)
	}
}

func joinErrorMessage(err error) string {
	switch {
	case errors.Is(err, presence.ErrRoomFull):
		return "Room is full"
	case errors.Is(err, presence.ErrTooManyRooms):
		return "Server at capacity, try again later"
	default:
		return "Could not join room"
	}
}

// sanitizeName: strips markup and caps length
func (mr *MessageRouter) sanitizeName(name string) string {
	name = strings.TrimSpace(mr.policy.Sanitize(name))
	if utf8.RuneCountInString(name) > maxNameLength {
		name = string([]rune(name)[:maxNameLength])
	}
	return name
}

// handleRelay forwards draw and clear messages verbatim to the other members
// of the named room. Non-members are ignored.
func (mr *MessageRouter) handleRelay(p *Peer, env protocol.Envelope, raw []byte) {
	h := mr.hub
	sess, ok := h.registry.Session(p.ID)
	if !ok || sess.RoomID == "" || sess.RoomID != env.RoomID {
		h.metrics.Dropped.WithLabelValues("not_member").Inc()
		return
	}
	h.broadcastRaw(env.RoomID, raw, p.ID)
}

// handleCursor records the position and relays it to room peers, at most
// once per cursor interval per session.
func (mr *MessageRouter) handleCursor(p *Peer, raw []byte) error {
	h := mr.hub
	var msg protocol.CursorMove
	if err := protocol.Decode(raw, &msg); err != nil {
		return err
	}
	if err := msg.Validate(); err != nil {
		return err
	}

	sess, ok := h.registry.MoveCursor(p.ID, geometry.Pt(msg.X, msg.Y))
	if !ok || sess.RoomID == "" {
		return nil
	}
	if !h.registry.CursorDue(p.ID, h.now(), h.cfg.CursorInterval) {
		h.metrics.Dropped.WithLabelValues("throttled").Inc()
		return nil
	}

	h.broadcast(sess.RoomID, cursorUpdate(sess), p.ID)
	return nil
}
