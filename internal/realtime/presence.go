package realtime

import (
	"go.uber.org/zap"
)

// Broadcaster publishes the full online set to every live connection.
type Broadcaster struct {
	log     *zap.Logger
	metrics *Metrics
}

func NewBroadcaster(log *zap.Logger, metrics *Metrics) *Broadcaster {
	return &Broadcaster{log: log, metrics: metrics}
}

// Publish sends one presence-changed frame holding online to every connection,
// anonymous ones included, and returns the connections that could not take it.
func (b *Broadcaster) Publish(online []string, conns map[ConnectionHandle]Client) []Client {
	if online == nil {
		online = []string{}
	}
	frame, err := Encode(EventPresenceChanged, online)
	if err != nil {
		b.log.Error("encode presence", zap.Error(err))
		return nil
	}

	b.metrics.PresenceBroadcasts.Inc()
	b.metrics.OnlineUsers.Set(float64(len(online)))

	var failed []Client
	for _, c := range conns {
		if !c.Send(frame) {
			failed = append(failed, c)
		}
	}
	b.log.Debug("presence published",
		zap.Int("online", len(online)),
		zap.Int("connections", len(conns)),
		zap.Int("failed", len(failed)))
	return failed
}
