package hub

import (
	"walkypainty/internal/presence"
	"walkypainty/internal/protocol"
)

// Synchronizer: brings a new room member up to date with live state. The
// server keeps no drawing history, so that is the cursors of the others.
type Synchronizer struct {
	registry *presence.Registry
}

func NewSynchronizer(registry *presence.Registry) *Synchronizer {
	return &Synchronizer{registry: registry}
}

// CursorsFor returns a cursor-update for every other member with a known cursor.
func (s *Synchronizer) CursorsFor(roomID, joinerID string) []protocol.CursorUpdate {
	var updates []protocol.CursorUpdate
	for _, id := range s.registry.Members(roomID) {
		if id == joinerID {
			continue
		}
		sess, ok := s.registry.Session(id)
		if !ok || !sess.HasCursor {
			continue
		}
		updates = append(updates, cursorUpdate(sess))
	}
	return updates
}

func cursorUpdate(s presence.Session) protocol.CursorUpdate {
	return protocol.CursorUpdate{
		Type:   protocol.TypeCursorUpdate,
		UserID: s.ID,
		Name:   s.Name,
		Color:  s.Color,
		X:      s.Cursor.X,
		Y:      s.Cursor.Y,
	}
}
