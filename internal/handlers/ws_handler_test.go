package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"chat-realtime-api/internal/middleware"
	"chat-realtime-api/internal/models"
	"chat-realtime-api/internal/realtime"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newLiveServer(t *testing.T) (*httptest.Server, *realtime.Hub) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	ctx, cancel := context.WithCancel(context.Background())
	hub := realtime.NewHub(realtime.NewRegistry(), zap.NewNop(), nil)
	go hub.Run(ctx)

	ws := NewWSHandler(hub, WSConfig{
		SendBuffer:      16,
		PingInterval:    time.Second,
		PongWait:        2 * time.Second,
		WriteWait:       time.Second,
		MaxMessageBytes: 1 << 16,
	}, zap.NewNop())

	r := gin.New()
	r.GET("/ws", middleware.OptionalJWTMiddleware(testTokens()), ws.Serve)
	r.GET("/api/presence", ws.GetPresence)

	srv := httptest.NewServer(r)
	t.Cleanup(func() {
		srv.Close()
		cancel()
		<-hub.Done()
	})
	return srv, hub
}

func dialAs(t *testing.T, srv *httptest.Server, query string) *websocket.Conn {
	t.Helper()
	u := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	if query != "" {
		u += "?" + query
	}
	conn, resp, err := websocket.DefaultDialer.Dial(u, nil)
	require.NoError(t, err)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

// nextEvent reads frames until one of type evt arrives.
func nextEvent(t *testing.T, conn *websocket.Conn, evt realtime.EventType) json.RawMessage {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	for {
		_, frame, err := conn.ReadMessage()
		require.NoError(t, err)
		env, err := realtime.Decode(frame)
		require.NoError(t, err)
		if env.Event == evt {
			return env.Data
		}
	}
}

// waitPresence reads presence broadcasts until one equals want.
func waitPresence(t *testing.T, conn *websocket.Conn, want []string) {
	t.Helper()
	for {
		var online []string
		require.NoError(t, json.Unmarshal(nextEvent(t, conn, realtime.EventPresenceChanged), &online))
		if len(online) == len(want) && strings.Join(online, ",") == strings.Join(want, ",") {
			return
		}
	}
}

func submitFrame(t *testing.T, conn *websocket.Conn, msg models.Message) {
	t.Helper()
	frame, err := realtime.Encode(realtime.EventMessageSubmit, msg)
	require.NoError(t, err)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, frame))
}

func TestWS_PresenceAndFanout(t *testing.T) {
	srv, hub := newLiveServer(t)

	aliceToken, err := testTokens().GenerateToken("u-1", "alice")
	require.NoError(t, err)
	alice := dialAs(t, srv, "token="+aliceToken)
	waitPresence(t, alice, []string{"u-1"})

	bob := dialAs(t, srv, "userId=u-2")
	waitPresence(t, bob, []string{"u-1", "u-2"})
	waitPresence(t, alice, []string{"u-1", "u-2"})

	msg := models.Message{
		ID:         "m-1",
		SenderID:   "u-1",
		ReceiverID: "u-2",
		Text:       "hi bob",
		CreatedAt:  time.Now().UTC(),
	}
	submitFrame(t, alice, msg)

	var got models.Message
	require.NoError(t, json.Unmarshal(nextEvent(t, bob, realtime.EventMessageDelivered), &got))
	require.Equal(t, "m-1", got.ID)
	require.Equal(t, "hi bob", got.Text)

	var echo models.Message
	require.NoError(t, json.Unmarshal(nextEvent(t, alice, realtime.EventMessageDelivered), &echo))
	require.Equal(t, "m-1", echo.ID)

	w := httptest.NewRecorder()
	srv.Config.Handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/presence", nil))
	require.JSONEq(t, `{"online":["u-1","u-2"]}`, w.Body.String())

	require.NoError(t, bob.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")))
	waitPresence(t, alice, []string{"u-1"})
	require.Equal(t, []string{"u-1"}, hub.Online())
}

func TestWS_OfflineReceiverGetsSenderEchoOnly(t *testing.T) {
	srv, _ := newLiveServer(t)

	alice := dialAs(t, srv, "userId=u-1")
	waitPresence(t, alice, []string{"u-1"})

	submitFrame(t, alice, models.Message{ID: "m-2", SenderID: "u-1", ReceiverID: "u-9", Text: "anyone?"})

	var echo models.Message
	require.NoError(t, json.Unmarshal(nextEvent(t, alice, realtime.EventMessageDelivered), &echo))
	require.Equal(t, "m-2", echo.ID)
	require.Equal(t, "u-9", echo.ReceiverID)
}

func TestWS_AnonymousConnectionSeesPresence(t *testing.T) {
	srv, hub := newLiveServer(t)

	watcher := dialAs(t, srv, "")
	waitPresence(t, watcher, []string{})

	alice := dialAs(t, srv, "userId=u-1")
	waitPresence(t, alice, []string{"u-1"})
	waitPresence(t, watcher, []string{"u-1"})

	require.Equal(t, 2, hub.ConnectionCount())
	require.Equal(t, []string{"u-1"}, hub.Online())
}

func TestWS_InvalidTokenRejectedBeforeUpgrade(t *testing.T) {
	srv, hub := newLiveServer(t)

	u := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?token=garbage&userId=u-7"
	_, resp, err := websocket.DefaultDialer.Dial(u, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	require.Equal(t, 0, hub.ConnectionCount())
	require.Empty(t, hub.Online())
}

func TestWS_TokenIdentityWinsOverQuery(t *testing.T) {
	srv, _ := newLiveServer(t)

	token, err := testTokens().GenerateToken("u-1", "alice")
	require.NoError(t, err)
	conn := dialAs(t, srv, "token="+token+"&userId=u-7")
	waitPresence(t, conn, []string{"u-1"})
}

func TestWS_RejectsDisallowedOrigin(t *testing.T) {
	gin.SetMode(gin.TestMode)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	hub := realtime.NewHub(realtime.NewRegistry(), zap.NewNop(), nil)
	go hub.Run(ctx)

	ws := NewWSHandler(hub, WSConfig{
		SendBuffer:      1,
		PingInterval:    time.Second,
		PongWait:        2 * time.Second,
		WriteWait:       time.Second,
		MaxMessageBytes: 1024,
		OriginAllowed:   func(o string) bool { return o == "https://chat.example.com" },
	}, zap.NewNop())
	r := gin.New()
	r.GET("/ws", ws.Serve)
	srv := httptest.NewServer(r)
	defer srv.Close()

	header := http.Header{}
	header.Set("Origin", "https://evil.example.com")
	_, resp, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/ws", header)
	require.Error(t, err)
	require.NotNil(t, resp)
	require.Equal(t, http.StatusForbidden, resp.StatusCode)
	require.Equal(t, 0, hub.ConnectionCount())
}
