package realtime

import (
	"encoding/json"

	"github.com/pkg/errors"
)

// EventType names a live-channel frame.
type EventType string

const (
	// EventPresenceChanged carries the full list of online user ids (server -> all clients).
	EventPresenceChanged EventType = "presence-changed"
	// EventMessageSubmit carries a stored message a client wants delivered (client -> server).
	EventMessageSubmit EventType = "message-submit"
	// EventMessageDelivered carries a message to its receiver and back to its sender (server -> client).
	EventMessageDelivered EventType = "message-delivered"
)

// Envelope is the JSON frame exchanged over the live channel.
type Envelope struct {
	Event EventType       `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Encode wraps data in an envelope for evt.
func Encode(evt EventType, data any) ([]byte, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, errors.Wrapf(err, "encode %s payload", evt)
	}
	return json.Marshal(Envelope{Event: evt, Data: raw})
}

// Decode parses one frame. Unknown event names are not an error here; callers decide.
func Decode(frame []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(frame, &env); err != nil {
		return Envelope{}, errors.Wrap(err, "decode frame")
	}
	if env.Event == "" {
		return Envelope{}, errors.New("decode frame: missing event")
	}
	return env, nil
}
