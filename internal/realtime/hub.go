package realtime

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"
)

// Client is one live connection as seen by the hub.
// The transport (websocket read/write pumps) lives in the handlers package.
type Client interface {
	Handle() ConnectionHandle
	// UserID is empty for anonymous connections.
	UserID() string
	// Send queues message without blocking; false means the client cannot keep up or is closed.
	Send(message []byte) bool
	Close()
}

type submission struct {
	from    Client
	payload json.RawMessage
}

// Hub serializes every registry mutation, presence broadcast and fanout
// through a single goroutine (Run), so all clients observe broadcasts in
// mutation order.
type Hub struct {
	registry    *Registry
	broadcaster *Broadcaster
	fanout      *Fanout
	metrics     *Metrics
	log         *zap.Logger

	// Owned by the Run goroutine.
	conns map[ConnectionHandle]Client

	connect    chan Client
	disconnect chan Client
	submit     chan submission
	inspect    chan func()
	done       chan struct{}
}

// NewHub wires a hub around an injected registry. metrics may be nil.
func NewHub(registry *Registry, log *zap.Logger, metrics *Metrics) *Hub {
	if metrics == nil {
		metrics = NewMetrics()
	}
	log = log.With(zap.String("component", "hub"))
	return &Hub{
		registry:    registry,
		broadcaster: NewBroadcaster(log, metrics),
		fanout:      NewFanout(registry, log, metrics),
		metrics:     metrics,
		log:         log,
		conns:       make(map[ConnectionHandle]Client),
		connect:     make(chan Client),
		disconnect:  make(chan Client),
		submit:      make(chan submission),
		inspect:     make(chan func()),
		done:        make(chan struct{}),
	}
}

// Metrics returns the hub's collectors.
func (h *Hub) Metrics() *Metrics {
	return h.metrics
}

// Run processes hub events until ctx is cancelled, then closes every
// connection and clears the registry.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	defer h.shutdown()

	for {
		select {
		case <-ctx.Done():
			return
		case c := <-h.connect:
			h.handleConnect(c)
		case c := <-h.disconnect:
			h.drop(c)
		case s := <-h.submit:
			h.handleSubmit(s)
		case fn := <-h.inspect:
			fn()
		}
	}
}

// Done is closed once Run has returned.
func (h *Hub) Done() <-chan struct{} {
	return h.done
}

// Connect adds a live connection. Connections with a user id enter the presence table.
func (h *Hub) Connect(c Client) {
	select {
	case h.connect <- c:
	case <-h.done:
		c.Close()
	}
}

// Disconnect removes a connection; called when its transport closes.
func (h *Hub) Disconnect(c Client) {
	select {
	case h.disconnect <- c:
	case <-h.done:
	}
}

// Submit hands a message-submit payload from c to the fanout engine.
func (h *Hub) Submit(c Client, payload json.RawMessage) {
	select {
	case h.submit <- submission{from: c, payload: payload}:
	case <-h.done:
	}
}

// Online returns the online user ids.
func (h *Hub) Online() []string {
	return h.registry.Online()
}

// ConnectionCount returns the number of live connections. It is answered by the
// hub goroutine, so it also waits for previously queued events to be processed.
func (h *Hub) ConnectionCount() int {
	n := make(chan int, 1)
	select {
	case h.inspect <- func() { n <- len(h.conns) }:
		return <-n
	case <-h.done:
		return 0
	}
}

func (h *Hub) handleConnect(c Client) {
	h.conns[c.Handle()] = c
	h.metrics.ConnectionsActive.Inc()

	if uid := c.UserID(); uid != "" {
		h.registry.Register(uid, c.Handle())
		h.log.Info("user connected", zap.String("user_id", uid), zap.String("handle", string(c.Handle())))
	} else {
		h.log.Debug("anonymous connection", zap.String("handle", string(c.Handle())))
	}

	// Every connect broadcasts, so the newcomer receives the current set.
	h.evict(h.broadcaster.Publish(h.registry.Online(), h.conns))
}

func (h *Hub) handleSubmit(s submission) {
	if _, ok := h.conns[s.from.Handle()]; !ok {
		h.metrics.MessagesDropped.WithLabelValues(dropUnknownSender).Inc()
		h.log.Debug("submit from closed connection", zap.String("handle", string(s.from.Handle())))
		return
	}
	failed, err := h.fanout.Deliver(s.from, s.payload, h.conns)
	if err != nil {
		h.log.Warn("message dropped",
			zap.String("handle", string(s.from.Handle())),
			zap.String("user_id", s.from.UserID()),
			zap.Error(err))
		return
	}
	h.evict(failed)
}

// evict drops connections whose send queue is full.
func (h *Hub) evict(failed []Client) {
	for _, c := range failed {
		h.metrics.SlowConsumers.Inc()
		h.log.Warn("closing slow consumer", zap.String("handle", string(c.Handle())), zap.String("user_id", c.UserID()))
	}
	h.drop(failed...)
}

// drop closes and forgets connections. A removal from the presence table
// triggers a broadcast, whose own failures are dropped in turn.
func (h *Hub) drop(pending ...Client) {
	for len(pending) > 0 {
		c := pending[0]
		pending = pending[1:]

		current, ok := h.conns[c.Handle()]
		if !ok || current != c {
			continue
		}
		delete(h.conns, c.Handle())
		h.metrics.ConnectionsActive.Dec()
		c.Close()

		userID, removed := h.registry.Unregister(c.Handle())
		if !removed {
			if userID != "" {
				h.log.Debug("stale disconnect ignored", zap.String("user_id", userID), zap.String("handle", string(c.Handle())))
			}
			continue
		}
		h.log.Info("user disconnected", zap.String("user_id", userID), zap.String("handle", string(c.Handle())))
		for _, f := range h.broadcaster.Publish(h.registry.Online(), h.conns) {
			h.metrics.SlowConsumers.Inc()
			pending = append(pending, f)
		}
	}
}

func (h *Hub) shutdown() {
	for handle, c := range h.conns {
		c.Close()
		delete(h.conns, handle)
	}
	h.registry.Clear()
	h.metrics.ConnectionsActive.Set(0)
	h.metrics.OnlineUsers.Set(0)
	h.log.Info("hub stopped")
}
