package websocket

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teamtrack/internal/domain"
)

func newTestHub(t *testing.T) *Hub {
	t.Helper()
	hub := NewHub(slog.New(slog.NewTextHandler(io.Discard, nil)))
	go hub.Run()
	t.Cleanup(hub.Stop)
	return hub
}

func dialTestServer(t *testing.T, hub *Hub, query string) *websocket.Conn {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ServeWs(hub, logger, w, r)
	}))
	t.Cleanup(srv.Close)

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+query, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestServeWsAutoSubscribesTeamFeed(t *testing.T) {
	hub := newTestHub(t)
	conn := dialTestServer(t, hub, "?team_id=t1")

	// Connecting with a team scope subscribes without a separate command.
	assert.Eventually(t, func() bool {
		return hub.GetSubscriberCount("t1") == 1
	}, time.Second, 10*time.Millisecond)

	hub.Deliver(domain.Notification{ID: "n1", TeamID: "t1", Title: "Kickoff moved"})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, raw, err := conn.ReadMessage()
	require.NoError(t, err)

	var msg Message
	require.NoError(t, json.Unmarshal(raw, &msg))
	assert.Equal(t, MessageTypeNotification, msg.Type)
	assert.Equal(t, "t1", msg.TeamID)
}

func TestSubscribeCommand(t *testing.T) {
	hub := newTestHub(t)
	conn := dialTestServer(t, hub, "")

	require.NoError(t, conn.WriteJSON(command{Type: MessageTypeSubscribe, TeamID: "t2"}))

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg Message
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, "subscribed", msg.Type)
	assert.Equal(t, "t2", msg.TeamID)

	assert.Eventually(t, func() bool {
		return hub.GetSubscriberCount("t2") == 1
	}, time.Second, 10*time.Millisecond)
}

func TestSubscribeCommandRequiresTeam(t *testing.T) {
	hub := newTestHub(t)
	conn := dialTestServer(t, hub, "")

	require.NoError(t, conn.WriteJSON(command{Type: MessageTypeSubscribe}))

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg Message
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, MessageTypeError, msg.Type)
}
