package controller

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	conninmemory "github.com/sharetube/watchroom/internal/repository/connection/inmemory"
	roominmemory "github.com/sharetube/watchroom/internal/repository/room/inmemory"
	"github.com/sharetube/watchroom/internal/service/room"
)

type inbound struct {
	Type    string         `json:"type"`
	Payload map[string]any `json:"payload"`
}

type testEnv struct {
	server      *httptest.Server
	controller  *controller
	roomService interface{ Shutdown(context.Context) }
	clock       clockwork.FakeClock
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	clock := clockwork.NewFakeClockAt(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))
	roomService := room.NewService(
		roominmemory.NewRepo(logger),
		conninmemory.NewRepo(logger),
		clock,
		&room.Config{
			MembersLimit:   9,
			PlaylistLimit:  25,
			ChatLimit:      100,
			AdminGrace:     2 * time.Minute,
			EmptyRoomGrace: 5 * time.Minute,
			SweepInterval:  time.Minute,
			Secret:         "secret",
		},
		logger,
	)

	c := NewController(roomService, clock, logger)
	server := httptest.NewServer(c.GetMux())
	t.Cleanup(server.Close)

	return &testEnv{
		server:      server,
		controller:  c,
		roomService: roomService,
		clock:       clock,
	}
}

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	return newTestEnv(t).server
}

func wsURL(server *httptest.Server) string {
	return "ws" + strings.TrimPrefix(server.URL, "http") + "/api/v1/ws"
}

func dial(t *testing.T, server *httptest.Server) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(wsURL(server), nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	return conn
}

func send(t *testing.T, conn *websocket.Conn, messageType string, payload any) {
	t.Helper()
	require.NoError(t, conn.WriteJSON(map[string]any{"type": messageType, "payload": payload}))
}

// readUntil skips messages of other types.
func readUntil(t *testing.T, conn *websocket.Conn, messageType string) map[string]any {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))

	for {
		var msg inbound
		require.NoError(t, conn.ReadJSON(&msg), "waiting for %s", messageType)
		if msg.Type == messageType {
			return msg.Payload
		}
	}
}

func getJSON(t *testing.T, url string, v any) {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
}

func TestHealth(t *testing.T) {
	server := newTestServer(t)

	var health room.Health
	getJSON(t, server.URL+"/api/v1/health", &health)
	assert.Equal(t, "ok", health.Status)
	assert.Equal(t, 0, health.ActiveRooms)
}

func TestRoomFlow(t *testing.T) {
	server := newTestServer(t)
	alice := dial(t, server)
	bob := dial(t, server)

	send(t, alice, "create-room", map[string]any{
		"username":       "alice",
		"room_name":      "movie-night",
		"joining_id":     "abc123",
		"admin_password": "x",
	})
	created := readUntil(t, alice, "room-created")
	assert.Equal(t, true, created["is_admin"])
	assert.NotEmpty(t, created["auth_token"])
	readUntil(t, alice, "chat-history")

	send(t, bob, "join-room", map[string]any{
		"username":   "bob",
		"room_name":  "movie-night",
		"joining_id": "abc123",
	})
	joined := readUntil(t, bob, "room-joined")
	assert.EqualValues(t, 2, joined["total_users"])
	assert.Equal(t, false, joined["is_admin"])
	readUntil(t, alice, "user-joined")

	send(t, bob, "play", nil)
	denied := readUntil(t, bob, "permission-denied")
	assert.Equal(t, "play", denied["action"])
	assert.NotEmpty(t, denied["reason"])

	send(t, alice, "play", map[string]any{"current_time": 10})
	play := readUntil(t, bob, "play")
	assert.Equal(t, "alice", play["actor"].(map[string]any)["username"])
	assert.Equal(t, true, play["player"].(map[string]any)["is_playing"])

	send(t, bob, "chat-message", map[string]any{"message": "hello"})
	chat := readUntil(t, alice, "chat-message")
	for chat["kind"] != "user" {
		chat = readUntil(t, alice, "chat-message")
	}
	assert.Equal(t, "hello", chat["body"])
	assert.Equal(t, "bob", chat["author"])

	var rooms struct {
		Rooms []map[string]any `json:"rooms"`
	}
	getJSON(t, server.URL+"/api/v1/rooms", &rooms)
	require.Len(t, rooms.Rooms, 1)
	assert.EqualValues(t, 2, rooms.Rooms[0]["total_users"])

	require.NoError(t, bob.Close())
	left := readUntil(t, alice, "user-left")
	assert.EqualValues(t, 1, left["total_users"])
}

func TestMalformedMessages(t *testing.T) {
	server := newTestServer(t)
	conn := dial(t, server)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("not json")))
	msg := readUntil(t, conn, "error-message")
	assert.NotEmpty(t, msg["message"])

	send(t, conn, "dance", nil)
	msg = readUntil(t, conn, "error-message")
	assert.Equal(t, "unknown message type", msg["message"])

	send(t, conn, "request-sync", nil)
	msg = readUntil(t, conn, "error-message")
	assert.Equal(t, "join a room first", msg["message"])

	send(t, conn, "seek", map[string]any{})
	msg = readUntil(t, conn, "error-message")
	assert.Equal(t, "invalid payload", msg["message"])
	assert.NotEmpty(t, msg["errors"])

	send(t, conn, "join-room", map[string]any{"username": "bob", "room_name": "nowhere", "joining_id": "x"})
	msg = readUntil(t, conn, "error-message")
	assert.Equal(t, "room not found or expired", msg["message"])

	send(t, conn, "ping", nil)
	pong := readUntil(t, conn, "pong")
	assert.NotZero(t, pong["server_time"])
}

func TestJoinOrCreateByRoomID(t *testing.T) {
	server := newTestServer(t)
	alice := dial(t, server)
	bob := dial(t, server)

	send(t, alice, "join-room", map[string]any{"username": "alice", "room_id": "lobby"})
	joined := readUntil(t, alice, "room-joined")
	assert.Equal(t, true, joined["is_admin"])
	assert.Equal(t, "promote", joined["failover_policy"])

	send(t, bob, "join-room", map[string]any{"username": "bob", "room_id": "lobby"})
	readUntil(t, bob, "room-joined")

	send(t, alice, "disconnect", nil)
	update := readUntil(t, bob, "user-list-update")
	assert.Equal(t, "bob", update["promoted"].(map[string]any)["username"])

	// the socket stays usable after leaving
	send(t, alice, "join-room", map[string]any{"username": "alice", "room_id": "lobby"})
	rejoined := readUntil(t, alice, "room-joined")
	assert.Equal(t, false, rejoined["is_admin"])
}

func TestPingUsesServerClock(t *testing.T) {
	env := newTestEnv(t)
	conn := dial(t, env.server)

	env.clock.Advance(90 * time.Second)
	send(t, conn, "ping", nil)
	pong := readUntil(t, conn, "pong")
	assert.EqualValues(t, env.clock.Now().UnixMilli(), pong["server_time"])
}

func TestShutdownFlushesRoomDestroyed(t *testing.T) {
	env := newTestEnv(t)
	alice := dial(t, env.server)
	bob := dial(t, env.server)

	send(t, alice, "create-room", map[string]any{"username": "alice", "room_name": "movie-night", "joining_id": "abc123"})
	readUntil(t, alice, "chat-history")
	send(t, bob, "join-room", map[string]any{"username": "bob", "room_name": "movie-night", "joining_id": "abc123"})
	readUntil(t, bob, "chat-history")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	env.roomService.Shutdown(ctx)
	require.NoError(t, env.controller.Shutdown(ctx))
	assert.Zero(t, env.controller.clients.count())

	for _, conn := range []*websocket.Conn{alice, bob} {
		destroyed := readUntil(t, conn, "room-destroyed")
		assert.Equal(t, room.ReasonServerShutdown, destroyed["reason"])

		var err error
		for err == nil {
			_, _, err = conn.ReadMessage()
		}
		assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "got %v", err)
	}

	_, resp, err := websocket.DefaultDialer.Dial(wsURL(env.server), nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}
