package realtime

import (
	"encoding/json"
	"strings"

	"chat-realtime-api/internal/models"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

var (
	ErrMalformedMessage = errors.New("malformed message")
	ErrSenderMismatch   = errors.New("message sender does not match connection")
)

// Fanout delivers submitted messages to the receiver's live connection and
// echoes them to the sender. It has no retry, queue or persistence.
type Fanout struct {
	registry *Registry
	log      *zap.Logger
	metrics  *Metrics
}

func NewFanout(registry *Registry, log *zap.Logger, metrics *Metrics) *Fanout {
	return &Fanout{registry: registry, log: log, metrics: metrics}
}

// Deliver validates payload and queues one message-delivered frame to the
// receiver (when online) and one to the sender. The payload is forwarded
// unchanged. It returns the connections whose send failed.
func (f *Fanout) Deliver(sender Client, payload json.RawMessage, conns map[ConnectionHandle]Client) ([]Client, error) {
	var msg models.Message
	if err := json.Unmarshal(payload, &msg); err != nil {
		f.metrics.MessagesDropped.WithLabelValues(dropMalformed).Inc()
		return nil, errors.Wrap(ErrMalformedMessage, err.Error())
	}
	if strings.TrimSpace(msg.ReceiverID) == "" {
		f.metrics.MessagesDropped.WithLabelValues(dropMalformed).Inc()
		return nil, errors.Wrap(ErrMalformedMessage, "missing receiverId")
	}
	if uid := sender.UserID(); uid != "" && msg.SenderID != "" && msg.SenderID != uid {
		f.metrics.MessagesDropped.WithLabelValues(dropSenderMismatch).Inc()
		return nil, errors.Wrapf(ErrSenderMismatch, "%s on connection of %s", msg.SenderID, uid)
	}

	frame, err := Encode(EventMessageDelivered, payload)
	if err != nil {
		f.metrics.MessagesDropped.WithLabelValues(dropMalformed).Inc()
		return nil, errors.Wrap(ErrMalformedMessage, err.Error())
	}

	var failed []Client
	receiverOnline := false
	if handle, ok := f.registry.Resolve(msg.ReceiverID); ok && handle != sender.Handle() {
		if receiver, live := conns[handle]; live {
			receiverOnline = true
			if receiver.Send(frame) {
				f.metrics.MessagesDelivered.WithLabelValues("receiver").Inc()
			} else {
				failed = append(failed, receiver)
			}
		}
	}

	if sender.Send(frame) {
		f.metrics.MessagesDelivered.WithLabelValues("sender").Inc()
	} else {
		failed = append(failed, sender)
	}

	f.log.Debug("message fanned out",
		zap.String("message_id", msg.ID),
		zap.String("sender_id", msg.SenderID),
		zap.String("receiver_id", msg.ReceiverID),
		zap.Bool("receiver_online", receiverOnline))
	return failed, nil
}
