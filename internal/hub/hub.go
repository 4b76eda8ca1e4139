package hub

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"walkypainty/internal/metrics"
	"walkypainty/internal/presence"
	"walkypainty/internal/protocol"
)

var ErrStopped = errors.New("hub stopped")

// Config for the realtime hub
type Config struct {
	DefaultRoom    string
	CursorInterval time.Duration
	// EventBuffer sizes the inbound event queue
	EventBuffer int
}

type eventKind int

const (
	eventRegister eventKind = iota
	eventUnregister
	eventMessage
	eventStats
)

type event struct {
	kind  eventKind
	peer  *Peer
	msg   []byte
	reply chan presence.Stats
}

// Hub owns the presence registry and every peer. All state is touched only
// from the Run goroutine; other goroutines talk to it through events.
type Hub struct {
	cfg      Config
	registry *presence.Registry
	peers    map[string]*Peer

	router      *MessageRouter
	broadcaster *Broadcaster
	sync        *Synchronizer

	events chan event
	done   chan struct{}

	logger  *zap.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

func New(cfg Config, registry *presence.Registry, logger *zap.Logger, m *metrics.Metrics) *Hub {
	if cfg.DefaultRoom == "" {
		cfg.DefaultRoom = "default"
	}
	if cfg.EventBuffer < 1 {
		cfg.EventBuffer = 256
	}

	peers := make(map[string]*Peer)
	h := &Hub{
		cfg:         cfg,
		registry:    registry,
		peers:       peers,
		broadcaster: NewBroadcaster(peers),
		sync:        NewSynchronizer(registry),
		events:      make(chan event, cfg.EventBuffer),
		done:        make(chan struct{}),
		logger:      logger.Named("hub"),
		metrics:     m,
		now:         time.Now,
	}
	h.router = NewMessageRouter(h)
	return h
}

// Run processes events one at a time until ctx is cancelled, then closes
// every peer's queue.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	defer h.shutdown()

	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-h.events:
			h.handle(ev)
		}
	}
}

func (h *Hub) handle(ev event) {
	switch ev.kind {
	case eventRegister:
		h.handleRegister(ev.peer)
	case eventUnregister:
		h.drop(ev.peer)
	case eventMessage:
		if _, ok := h.peers[ev.peer.ID]; !ok {
			return
		}
		if err := h.router.Route(ev.peer, ev.msg); err != nil {
			h.logger.Warn("dropping message",
				zap.String("sessionID", ev.peer.ID),
				zap.Error(err),
			)
		}
	case eventStats:
		ev.reply <- h.registry.Stats()
	}
}

func (h *Hub) post(ev event) error {
	select {
	case <-h.done:
		return ErrStopped
	default:
	}

	select {
	case h.events <- ev:
		return nil
	case <-h.done:
		return ErrStopped
	}
}

// Register queues a new peer; it joins its initial room once processed.
func (h *Hub) Register(p *Peer) error {
	return h.post(event{kind: eventRegister, peer: p})
}

// Unregister queues removal of a peer. Safe to call more than once.
func (h *Hub) Unregister(p *Peer) error {
	return h.post(event{kind: eventUnregister, peer: p})
}

// Deliver queues one inbound message. Messages from the same peer are
// processed in the order delivered.
func (h *Hub) Deliver(p *Peer, msg []byte) error {
	return h.post(event{kind: eventMessage, peer: p, msg: msg})
}

// Stats asks the event loop for live presence counts.
func (h *Hub) Stats(ctx context.Context) (presence.Stats, error) {
	reply := make(chan presence.Stats, 1)
	if err := h.post(event{kind: eventStats, reply: reply}); err != nil {
		return presence.Stats{}, err
	}
	select {
	case s := <-reply:
		return s, nil
	case <-ctx.Done():
		return presence.Stats{}, ctx.Err()
	case <-h.done:
		return presence.Stats{}, ErrStopped
	}
}

func (h *Hub) handleRegister(p *Peer) {
	sess, err := h.registry.Connect(p.ID, p.Identity, h.router.sanitizeName(p.Name))
	if err != nil {
		h.logger.Warn("rejecting peer", zap.String("sessionID", p.ID), zap.Error(err))
		close(p.send)
		return
	}
	h.peers[p.ID] = p
	h.metrics.Connections.Inc()

	h.logger.Debug("peer registered",
		zap.String("sessionID", sess.ID),
		zap.Stringer("identity", sess.Identity),
		zap.String("name", sess.Name),
	)

	h.send(p, protocol.Welcome{
		Type:      protocol.TypeWelcome,
		SessionID: sess.ID,
		Name:      sess.Name,
		Color:     sess.Color,
	})

	room := p.InitialRoom
	if room == "" {
		room = h.cfg.DefaultRoom
	}
	h.router.join(p, room, "")
}

// drop removes a peer exactly once and tells its room.
func (h *Hub) drop(p *Peer) {
	if current, ok := h.peers[p.ID]; !ok || current != p {
		return
	}
	delete(h.peers, p.ID)
	close(p.send)
	h.metrics.Connections.Dec()

	sess, ok := h.registry.Disconnect(p.ID)
	if !ok {
		return
	}
	h.metrics.Rooms.Set(float64(h.registry.RoomCount()))

	h.logger.Debug("peer dropped",
		zap.String("sessionID", p.ID),
		zap.String("roomID", sess.RoomID),
	)

	if sess.RoomID != "" {
		h.announceLeave(sess.ID, sess.RoomID)
	}
}

// announceLeave: user-left plus fresh presence for the room that lost a member
func (h *Hub) announceLeave(sessionID, roomID string) {
	h.broadcast(roomID, protocol.UserLeft{Type: protocol.TypeUserLeft, UserID: sessionID}, "")
	h.broadcast(roomID, h.registry.Snapshot(roomID), "")
}

// send: encode and enqueue for one peer, evicting it if its queue is full
func (h *Hub) send(p *Peer, msg any) {
	raw, err := protocol.Encode(msg)
	if err != nil {
		h.logger.Error("encode message", zap.Error(err))
		return
	}
	if _, ok := h.peers[p.ID]; !ok {
		return
	}
	if !p.enqueue(raw) {
		h.evict(p)
	}
}

func (h *Hub) broadcast(roomID string, msg any, except string) {
	raw, err := protocol.Encode(msg)
	if err != nil {
		h.logger.Error("encode message", zap.Error(err))
		return
	}
	h.broadcastRaw(roomID, raw, except)
}

func (h *Hub) broadcastRaw(roomID string, raw []byte, except string) {
	full := h.broadcaster.Broadcast(h.registry.Members(roomID), raw, except)
	for _, p := range full {
		h.evict(p)
	}
}

func (h *Hub) evict(p *Peer) {
	h.logger.Info("evicting slow peer", zap.String("sessionID", p.ID))
	h.metrics.Evictions.Inc()
	h.drop(p)
}

func (h *Hub) shutdown() {
	for id, p := range h.peers {
		delete(h.peers, id)
		close(p.send)
		h.registry.Disconnect(id)
	}
	h.metrics.Connections.Set(0)
	h.metrics.Rooms.Set(0)
}
