package hub

import (
	"walkypainty/internal/identity"
)

// Peer is the hub's view of one connection: an id and a bounded outbound
// queue drained by the transport's write goroutine.
type Peer struct {
	ID       string
	Identity identity.Identity
	// Name is the requested display name; empty picks a random one
	Name string
	// Room joined on registration; empty means the hub default
	InitialRoom string

	send chan []byte
}

func NewPeer(id string, ident identity.Identity, initialRoom string, buffer int) *Peer {
	if buffer < 1 {
		buffer = 1
	}
	return &Peer{
		ID:          id,
		Identity:    ident,
		InitialRoom: initialRoom,
		send:        make(chan []byte, buffer),
	}
}

// Send is closed by the hub when the peer is dropped or evicted.
func (p *Peer) Send() <-chan []byte {
	return p.send
}

// enqueue: never blocks; false means the queue is full
func (p *Peer) enqueue(msg []byte) bool {
	select {
	case p.send <- msg:
		return true
	default:
		return false
	}
}
