package handlers

import (
	"net/http"
	"strings"
	"sync"
	"time"

	"chat-realtime-api/internal/middleware"
	"chat-realtime-api/internal/realtime"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// WSConfig tunes the per-connection pumps.
type WSConfig struct {
	SendBuffer      int
	PingInterval    time.Duration
	PongWait        time.Duration
	WriteWait       time.Duration
	MaxMessageBytes int64
	// OriginAllowed filters browser origins; nil allows all.
	OriginAllowed func(origin string) bool
}

// wsClient implements realtime.Client by wrapping a websocket connection.
// Send only enqueues; writePump owns every write to conn.
type wsClient struct {
	handle realtime.ConnectionHandle
	userID string
	conn   *websocket.Conn
	send   chan []byte

	closed    chan struct{}
	closeOnce sync.Once
}

func (c *wsClient) Handle() realtime.ConnectionHandle { return c.handle }
func (c *wsClient) UserID() string                    { return c.userID }

func (c *wsClient) Send(message []byte) bool {
	select {
	case <-c.closed:
		return false
	default:
	}
	select {
	case c.send <- message:
		return true
	default:
		return false
	}
}

func (c *wsClient) Close() {
	c.closeOnce.Do(func() { close(c.closed) })
}

// WSHandler serves the live channel.
type WSHandler struct {
	hub      *realtime.Hub
	cfg      WSConfig
	upgrader websocket.Upgrader
	log      *zap.Logger
}

func NewWSHandler(hub *realtime.Hub, cfg WSConfig, log *zap.Logger) *WSHandler {
	h := &WSHandler{
		hub: hub,
		cfg: cfg,
		log: log.With(zap.String("component", "ws")),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			// Non-browser clients send no Origin.
			if origin == "" || cfg.OriginAllowed == nil {
				return true
			}
			return cfg.OriginAllowed(origin)
		},
	}
	return h
}

// Serve handles GET /ws. The identity comes from the token when the optional
// JWT middleware validated one (an invalid token never reaches here). Without a
// token the userId query param is taken as claimed, unauthenticated; with
// neither the connection is anonymous and only receives presence broadcasts.
func (h *WSHandler) Serve(c *gin.Context) {
	userID := c.GetString(middleware.UserIDKey)
	if userID == "" {
		userID = strings.TrimSpace(c.Query("userId"))
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error.
		h.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	client := &wsClient{
		handle: realtime.NewHandle(),
		userID: userID,
		conn:   conn,
		send:   make(chan []byte, h.cfg.SendBuffer),
		closed: make(chan struct{}),
	}
	h.hub.Connect(client)

	go h.writePump(client)
	h.readPump(client)
}

// readPump forwards message-submit frames to the hub until the connection fails.
func (h *WSHandler) readPump(c *wsClient) {
	defer func() {
		h.hub.Disconnect(c)
		c.Close()
	}()

	c.conn.SetReadLimit(h.cfg.MaxMessageBytes)
	_ = c.conn.SetReadDeadline(time.Now().Add(h.cfg.PongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(h.cfg.PongWait))
	})

	for {
		_, frame, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.log.Debug("websocket read failed", zap.String("handle", string(c.handle)), zap.Error(err))
			}
			return
		}

		env, err := realtime.Decode(frame)
		if err != nil {
			h.log.Warn("undecodable frame", zap.String("handle", string(c.handle)), zap.Error(err))
			continue
		}
		switch env.Event {
		case realtime.EventMessageSubmit:
			h.hub.Submit(c, env.Data)
		default:
			h.log.Debug("ignoring client event", zap.String("event", string(env.Event)), zap.String("handle", string(c.handle)))
		}
	}
}

// writePump drains the send queue and keeps the connection alive with pings.
func (h *WSHandler) writePump(c *wsClient) {
	ticker := time.NewTicker(h.cfg.PingInterval)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case <-c.closed:
			_ = c.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(h.cfg.WriteWait))
			return
		case msg := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(h.cfg.WriteWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, []byte("ping"), time.Now().Add(h.cfg.WriteWait)); err != nil {
				return
			}
		}
	}
}

// GetPresence handles GET /api/presence
func (h *WSHandler) GetPresence(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"online": h.hub.Online()})
}
