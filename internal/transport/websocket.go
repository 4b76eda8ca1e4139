package transport

import (
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"walkypainty/internal/hub"
	"walkypainty/internal/identity"
	"walkypainty/internal/metrics"
	"walkypainty/internal/middleware"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// Options configures the WebSocket endpoint
type Options struct {
	// AllowedOrigins: empty means same-origin only, "*" allows any origin
	AllowedOrigins []string
	SendBuffer     int
	Limits         middleware.MessageLimits
	// Metrics is optional
	Metrics *metrics.Metrics
}

// Handler upgrades HTTP requests and wires each connection to the hub
type Handler struct {
	hub       *hub.Hub
	ipLimiter *middleware.IPRateLimit
	opts      Options
	upgrader  websocket.Upgrader
	logger    *zap.Logger
}

func NewHandler(h *hub.Hub, ipLimiter *middleware.IPRateLimit, opts Options, logger *zap.Logger) *Handler {
	if opts.SendBuffer < 1 {
		opts.SendBuffer = 256
	}
	return &Handler{
		hub:       h,
		ipLimiter: ipLimiter,
		opts:      opts,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(opts.AllowedOrigins),
		},
		logger: logger.Named("ws"),
	}
}

// originChecker: nil keeps gorilla's same-origin default
func originChecker(allowed []string) func(*http.Request) bool {
	if len(allowed) == 0 {
		return nil
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		for _, a := range allowed {
			a = strings.TrimSpace(a)
			if a == "*" || strings.EqualFold(origin, a) {
				return true
			}
		}
		return false
	}
}

// ClientIP: RemoteAddr without the port (chi's RealIP rewrites it behind proxies)
func ClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// ServeHTTP upgrades the request, registers a peer and runs its pumps. The
// optional room and name query parameters pick the initial room and display name.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	clientIP := ClientIP(r)
	if h.ipLimiter != nil && !h.ipLimiter.Allow(clientIP) {
		h.logger.Warn("connection rate limit exceeded", zap.String("ip", clientIP))
		http.Error(w, "Too many connections", http.StatusTooManyRequests)
		return
	}

	ident, ok := middleware.IdentityFrom(r.Context())
	if !ok {
		ident = identity.NewGuest()
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("upgrade failed", zap.String("ip", clientIP), zap.Error(err))
		return
	}

	peer := hub.NewPeer(uuid.NewString(), ident, r.URL.Query().Get("room"), h.opts.SendBuffer)
	peer.Name = r.URL.Query().Get("name")

	if err := h.hub.Register(peer); err != nil {
		h.logger.Warn("hub unavailable", zap.Error(err))
		_ = conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "server shutting down"))
		conn.Close()
		return
	}

	c := &connection{
		ws:      conn,
		peer:    peer,
		hub:     h.hub,
		limits:  h.opts.Limits,
		limiter: h.opts.Limits.NewSessionLimiter(),
		metrics: h.opts.Metrics,
		logger:  h.logger.With(zap.String("sessionID", peer.ID), zap.String("ip", clientIP)),
	}

	go c.writePump()
	c.readPump()
}

type connection struct {
	ws      *websocket.Conn
	peer    *hub.Peer
	hub     *hub.Hub
	limits  middleware.MessageLimits
	limiter *rate.Limiter
	metrics *metrics.Metrics
	logger  *zap.Logger
}

func (c *connection) dropped(reason string) {
	if c.metrics != nil {
		c.metrics.Dropped.WithLabelValues(reason).Inc()
	}
}

// readPump: socket to hub. Bad frames are dropped; only a dead socket ends it.
func (c *connection) readPump() {
	defer func() {
		_ = c.hub.Unregister(c.peer)
		c.ws.Close()
	}()

	if limit := c.limits.ReadLimit(); limit > 0 {
		c.ws.SetReadLimit(limit)
	}
	_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, msg, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Info("connection lost", zap.Error(err))
			}
			return
		}

		if !c.limits.ValidateMessageSize(len(msg)) {
			c.logger.Warn("message too large", zap.Int("bytes", len(msg)))
			c.dropped("too_large")
			continue
		}
		if !c.limiter.Allow() {
			c.logger.Debug("message rate limit exceeded")
			c.dropped("rate_limited")
			continue
		}

		if err := c.hub.Deliver(c.peer, msg); err != nil {
			return
		}
	}
}

// writePump: hub to socket, plus keepalive pings. Exits when the hub closes
// the peer's queue.
func (c *connection) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.ws.Close()
	}()

	for {
		select {
		case msg, ok := <-c.peer.Send():
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.ws.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.ws.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
