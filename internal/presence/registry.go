package presence

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"walkypainty/internal/geometry"
	"walkypainty/internal/identity"
	"walkypainty/internal/protocol"
)

var (
	ErrRoomFull         = errors.New("room is full")
	ErrTooManyRooms     = errors.New("server at room capacity")
	ErrUnknownSession   = errors.New("unknown session")
	ErrDuplicateSession = errors.New("session already connected")
	ErrEmptyRoomID      = errors.New("room id is required")
)

// Limits: zero means unlimited
type Limits struct {
	MaxRooms    int
	MaxRoomSize int
}

// Session is the live state of one connection.
type Session struct {
	ID          string
	Identity    identity.Identity
	Name        string
	Color       string
	RoomID      string
	Cursor      geometry.Point
	HasCursor   bool
	ConnectedAt time.Time

	lastCursorBroadcast time.Time
}

type room struct {
	id      string
	members map[string]struct{}
}

// Registry tracks sessions, rooms and cursors. It is not safe for concurrent
// use: the hub event loop is its only owner.
type Registry struct {
	sessions map[string]*Session
	rooms    map[string]*room
	limits   Limits
	colors   *ColorGenerator
	now      func() time.Time
}

func NewRegistry(limits Limits) *Registry {
	return &Registry{
		sessions: make(map[string]*Session),
		rooms:    make(map[string]*room),
		limits:   limits,
		colors:   NewColorGenerator(),
		now:      time.Now,
	}
}

// Connect registers a new session outside of any room.
func (r *Registry) Connect(id string, ident identity.Identity, name string) (Session, error) {
	if _, exists := r.sessions[id]; exists {
		return Session{}, fmt.Errorf("%w: %s", ErrDuplicateSession, id)
	}
	if name == "" {
		name = identity.RandomDisplayName()
	}

	s := &Session{
		ID:          id,
		Identity:    ident,
		Name:        name,
		Color:       r.colors.NextColor(),
		ConnectedAt: r.now(),
	}
	r.sessions[id] = s
	return *s, nil
}

// JoinResult describes what a join changed
type JoinResult struct {
	Session Session
	// Previous is the room that was left, empty if none
	Previous string
	// Changed is false when the session was already in the room
	Changed bool
}

// JoinRoom moves a session into roomID, leaving its previous room. A
// non-empty name replaces the display name.
func (r *Registry) JoinRoom(sessionID, roomID, name string) (JoinResult, error) {
	s, ok := r.sessions[sessionID]
	if !ok {
		return JoinResult{}, ErrUnknownSession
	}
	if roomID == "" {
		return JoinResult{}, ErrEmptyRoomID
	}
	if s.RoomID == roomID {
		if name != "" {
			s.Name = name
		}
		return JoinResult{Session: *s}, nil
	}

	target, exists := r.rooms[roomID]
	if !exists {
		// a sole member moving out frees its room's slot
		rooms := len(r.rooms)
		if r.Count(s.RoomID) == 1 {
			rooms--
		}
		if r.limits.MaxRooms > 0 && rooms >= r.limits.MaxRooms {
			return JoinResult{}, ErrTooManyRooms
		}
	} else if r.limits.MaxRoomSize > 0 && len(target.members) >= r.limits.MaxRoomSize {
		return JoinResult{}, ErrRoomFull
	}

	if name != "" {
		s.Name = name
	}
	previous := s.RoomID
	r.leave(s)

	if target == nil {
		target = &room{id: roomID, members: make(map[string]struct{})}
		r.rooms[roomID] = target
	}
	target.members[s.ID] = struct{}{}
	s.RoomID = roomID
	s.HasCursor = false

	return JoinResult{Session: *s, Previous: previous, Changed: true}, nil
}

// MoveCursor records the session's cursor. Returns false for unknown
// sessions and non-finite points.
func (r *Registry) MoveCursor(sessionID string, pt geometry.Point) (Session, bool) {
	s, ok := r.sessions[sessionID]
	if !ok || !pt.Finite() {
		return Session{}, false
	}
	s.Cursor = pt
	s.HasCursor = true
	return *s, true
}

// CursorDue: reports whether at least interval has passed since the last
// relayed cursor update of the session, and if so marks now as relayed
func (r *Registry) CursorDue(sessionID string, now time.Time, interval time.Duration) bool {
	s, ok := r.sessions[sessionID]
	if !ok {
		return false
	}
	if !s.lastCursorBroadcast.IsZero() && now.Sub(s.lastCursorBroadcast) < interval {
		return false
	}
	s.lastCursorBroadcast = now
	return true
}

// Disconnect removes a session. The second call for the same id is a no-op
// returning false, so callers broadcast at most once.
func (r *Registry) Disconnect(sessionID string) (Session, bool) {
	s, ok := r.sessions[sessionID]
	if !ok {
		return Session{}, false
	}
	r.leave(s)
	delete(r.sessions, sessionID)
	return *s, true
}

// leave: drops s from its room, removing the room once empty
func (r *Registry) leave(s *Session) {
	if s.RoomID == "" {
		return
	}
	if rm, ok := r.rooms[s.RoomID]; ok {
		delete(rm.members, s.ID)
		if len(rm.members) == 0 {
			delete(r.rooms, rm.id)
		}
	}
	s.RoomID = ""
}

func (r *Registry) Session(id string) (Session, bool) {
	s, ok := r.sessions[id]
	if !ok {
		return Session{}, false
	}
	return *s, true
}

// Members returns the session ids in a room, sorted by connect time.
func (r *Registry) Members(roomID string) []string {
	rm, ok := r.rooms[roomID]
	if !ok {
		return nil
	}

	ids := make([]string, 0, len(rm.members))
	for id := range rm.members {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		a, b := r.sessions[ids[i]], r.sessions[ids[j]]
		if a.ConnectedAt.Equal(b.ConnectedAt) {
			return a.ID < b.ID
		}
		return a.ConnectedAt.Before(b.ConnectedAt)
	})
	return ids
}

// Count: sessions in a room
func (r *Registry) Count(roomID string) int {
	if rm, ok := r.rooms[roomID]; ok {
		return len(rm.members)
	}
	return 0
}

// Total: connected sessions across all rooms
func (r *Registry) Total() int {
	return len(r.sessions)
}

func (r *Registry) RoomCount() int {
	return len(r.rooms)
}

// Snapshot builds the presence message for a room.
func (r *Registry) Snapshot(roomID string) protocol.Presence {
	ids := r.Members(roomID)
	users := make([]protocol.User, 0, len(ids))
	for _, id := range ids {
		s := r.sessions[id]
		users = append(users, protocol.User{ID: s.ID, Name: s.Name, Color: s.Color})
	}

	return protocol.Presence{
		Type:   protocol.TypePresence,
		RoomID: roomID,
		Count:  len(users),
		Total:  r.Total(),
		Users:  users,
	}
}

// Stats: point-in-time counts for the whole server
type Stats struct {
	Total int            `json:"total"`
	Rooms map[string]int `json:"rooms"`
}

func (r *Registry) Stats() Stats {
	rooms := make(map[string]int, len(r.rooms))
	for id, rm := range r.rooms {
		rooms[id] = len(rm.members)
	}
	return Stats{Total: r.Total(), Rooms: rooms}
}
