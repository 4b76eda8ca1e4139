package hub

// Broadcaster: fans a message out to room members without blocking on any of them
type Broadcaster struct {
	peers map[string]*Peer
}

func NewBroadcaster(peers map[string]*Peer) *Broadcaster {
	return &Broadcaster{peers: peers}
}

// Broadcast enqueues msg for every member except the sender and returns the
// peers whose queue was full. The caller evicts them.
func (b *Broadcaster) Broadcast(members []string, msg []byte, except string) []*Peer {
	var full []*Peer
	for _, id := range members {
		if id == except {
			continue
		}
		p, ok := b.peers[id]
		if !ok {
			continue
		}
		if !p.enqueue(msg) {
			full = append(full, p)
		}
	}
	return full
}
