package chatclient

import (
	"context"
	"net/url"
	"sync"
	"time"

	"chat-realtime-api/internal/models"
	"chat-realtime-api/internal/realtime"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

const liveWriteWait = 5 * time.Second

// LiveConn is the client side of the live channel.
type LiveConn struct {
	conn *websocket.Conn
	log  *zap.Logger

	writeMu   sync.Mutex
	closeOnce sync.Once
}

// DialLive opens the live channel at serverURL/ws, authenticating with token.
func DialLive(ctx context.Context, serverURL, token string, log *zap.Logger) (*LiveConn, error) {
	endpoint, err := liveURL(serverURL, token)
	if err != nil {
		return nil, err
	}
	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, endpoint, nil)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		return nil, errors.Wrap(err, "dial live channel")
	}
	return &LiveConn{conn: conn, log: log.With(zap.String("component", "live"))}, nil
}

// liveURL maps serverURL to its websocket endpoint, keeping any path prefix.
func liveURL(serverURL, token string) (string, error) {
	u, err := url.Parse(serverURL)
	if err != nil {
		return "", errors.Wrap(err, "parse server url")
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u = u.JoinPath("ws")
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Submit emits a stored message for delivery to its receiver.
func (l *LiveConn) Submit(msg models.Message) error {
	frame, err := realtime.Encode(realtime.EventMessageSubmit, msg)
	if err != nil {
		return err
	}
	l.writeMu.Lock()
	defer l.writeMu.Unlock()
	_ = l.conn.SetWriteDeadline(time.Now().Add(liveWriteWait))
	return errors.Wrap(l.conn.WriteMessage(websocket.TextMessage, frame), "write submit frame")
}

// Run reads frames and hands each decoded envelope to handle until the
// connection closes or ctx is done. A normal close returns nil.
func (l *LiveConn) Run(ctx context.Context, handle func(realtime.Envelope) error) error {
	stop := context.AfterFunc(ctx, func() { _ = l.Close() })
	defer stop()

	for {
		_, frame, err := l.conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil || websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return errors.Wrap(err, "read live frame")
		}
		env, err := realtime.Decode(frame)
		if err != nil {
			l.log.Warn("undecodable frame", zap.Error(err))
			continue
		}
		if err := handle(env); err != nil {
			l.log.Warn("event handling failed", zap.String("event", string(env.Event)), zap.Error(err))
		}
	}
}

// Close sends a close frame and releases the connection. Safe to call twice.
func (l *LiveConn) Close() error {
	var err error
	l.closeOnce.Do(func() {
		_ = l.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(liveWriteWait))
		err = l.conn.Close()
	})
	return err
}
