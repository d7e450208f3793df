package websocket

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
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rivalgrid/tictactoe-arena/internal/entity"
	"github.com/rivalgrid/tictactoe-arena/internal/usecase"
)

const readWait = 5 * time.Second

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	arena := usecase.NewArena(logger, nil)
	server := New(logger, arena)

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		server.ServeWS(context.Background(), w, r)
	}))
	t.Cleanup(ts.Close)

	return ts
}

func dial(t *testing.T, ts *httptest.Server) *websocket.Conn {
	t.Helper()

	url := "ws" + strings.TrimPrefix(ts.URL, "http")

	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	if resp != nil {
		_ = resp.Body.Close()
	}

	t.Cleanup(func() { _ = conn.Close() })

	return conn
}

func send(t *testing.T, conn *websocket.Conn, action string, payload any) {
	t.Helper()

	msg := Message{Action: action}
	if payload != nil {
		raw, err := json.Marshal(payload)
		require.NoError(t, err)
		msg.Payload = raw
	}

	require.NoError(t, conn.WriteJSON(msg))
}

// next reads the next room-scoped message, skipping the online-count
// broadcasts that interleave with everything else.
func next(t *testing.T, conn *websocket.Conn) Message {
	t.Helper()

	for {
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(readWait)))

		var msg Message
		require.NoError(t, conn.ReadJSON(&msg))

		if msg.Action == eventOnlineCount {
			continue
		}

		return msg
	}
}

func gameState(t *testing.T, msg Message) *entity.GameState {
	t.Helper()

	require.Equal(t, eventGameState, msg.Action)

	var state entity.GameState
	require.NoError(t, json.Unmarshal(msg.Payload, &state))

	return &state
}

func TestServer_MatchLifecycle(t *testing.T) {
	ts := newTestServer(t)

	// Given: two clients, the first already waiting for a match
	conn1 := dial(t, ts)
	send(t, conn1, actionSeekMatch, nil)
	require.Equal(t, eventWaiting, next(t, conn1).Action)

	conn2 := dial(t, ts)
	send(t, conn2, actionSeekMatch, nil)

	// Then: both receive match-found with their own symbol, match-started,
	// and a fresh game-state
	var found1, found2 MatchFoundPayload

	msg := next(t, conn1)
	require.Equal(t, eventMatchFound, msg.Action)
	require.NoError(t, json.Unmarshal(msg.Payload, &found1))
	assert.Equal(t, entity.PlayerX, found1.Symbol)

	msg = next(t, conn2)
	require.Equal(t, eventMatchFound, msg.Action)
	require.NoError(t, json.Unmarshal(msg.Payload, &found2))
	assert.Equal(t, entity.PlayerO, found2.Symbol)

	assert.Equal(t, found1.RoomID, found2.RoomID)
	roomID := found1.RoomID

	require.Equal(t, eventMatchStarted, next(t, conn1).Action)
	require.Equal(t, eventMatchStarted, next(t, conn2).Action)

	state := gameState(t, next(t, conn1))
	assert.Equal(t, [9]string{}, state.Board)
	assert.Equal(t, entity.PlayerX, state.Turn)
	assert.Equal(t, map[string]int{entity.PlayerX: 0, entity.PlayerO: 0}, state.Score)
	gameState(t, next(t, conn2))

	// When: the match plays out to a win for X over cells 0,1,2
	moves := []struct {
		conn *websocket.Conn
		cell int
	}{
		{conn1, 0}, {conn2, 4}, {conn1, 1}, {conn2, 3},
	}
	for _, move := range moves {
		send(t, move.conn, actionMakeMove, MovePayload{RoomID: roomID, Index: move.cell})
		gameState(t, next(t, conn1))
		gameState(t, next(t, conn2))
	}

	send(t, conn1, actionMakeMove, MovePayload{RoomID: roomID, Index: 2})

	// Then: the state carrying the incremented score arrives before game-over
	state = gameState(t, next(t, conn1))
	assert.Equal(t, 1, state.Score[entity.PlayerX])
	assert.Equal(t, 1, state.Streak[entity.PlayerX])
	gameState(t, next(t, conn2))

	var over GameOverPayload

	msg = next(t, conn1)
	require.Equal(t, eventGameOver, msg.Action)
	require.NoError(t, json.Unmarshal(msg.Payload, &over))
	assert.Equal(t, entity.PlayerX, over.Winner)
	require.Equal(t, eventGameOver, next(t, conn2).Action)

	// When: a move on the finished board is followed by a chat line
	send(t, conn2, actionMakeMove, MovePayload{RoomID: roomID, Index: 5})
	send(t, conn2, actionSendMessage, ChatPayload{RoomID: roomID, Text: "gg"})

	// Then: the dead move produced nothing; the chat line is the next
	// message on both connections, tagged with the sender's real symbol
	var chat ChatMessagePayload

	msg = next(t, conn1)
	require.Equal(t, eventReceiveMessage, msg.Action)
	require.NoError(t, json.Unmarshal(msg.Payload, &chat))
	assert.Equal(t, entity.PlayerO, chat.Sender)
	assert.Equal(t, "gg", chat.Text)
	require.Equal(t, eventReceiveMessage, next(t, conn2).Action)

	// When: both members vote for a rematch
	send(t, conn1, actionRequestRematch, RematchPayload{RoomID: roomID})
	send(t, conn2, actionRequestRematch, RematchPayload{RoomID: roomID})

	// Then: rematch-started precedes a cleared board with the score kept
	require.Equal(t, eventRematchStarted, next(t, conn1).Action)
	require.Equal(t, eventRematchStarted, next(t, conn2).Action)

	state = gameState(t, next(t, conn1))
	assert.Equal(t, [9]string{}, state.Board)
	assert.Equal(t, entity.PlayerX, state.Turn)
	assert.Equal(t, 1, state.Score[entity.PlayerX])
	assert.Equal(t, 1, state.Streak[entity.PlayerX])
	gameState(t, next(t, conn2))

	// When: the opponent drops mid-match
	require.NoError(t, conn2.Close())

	// Then: the survivor is told
	require.Equal(t, eventOpponentDisconnected, next(t, conn1).Action)
}

func TestServer_OnlineCount(t *testing.T) {
	ts := newTestServer(t)

	// Given: one connected client
	conn1 := dial(t, ts)

	// Then: it immediately learns the online count
	require.NoError(t, conn1.SetReadDeadline(time.Now().Add(readWait)))

	var msg Message
	require.NoError(t, conn1.ReadJSON(&msg))
	require.Equal(t, eventOnlineCount, msg.Action)

	var count int
	require.NoError(t, json.Unmarshal(msg.Payload, &count))
	assert.Equal(t, 1, count)

	// When: a second client connects
	dial(t, ts)

	// Then: the first client sees the count grow
	require.NoError(t, conn1.SetReadDeadline(time.Now().Add(readWait)))
	require.NoError(t, conn1.ReadJSON(&msg))
	require.Equal(t, eventOnlineCount, msg.Action)
	require.NoError(t, json.Unmarshal(msg.Payload, &count))
	assert.Equal(t, 2, count)
}

func TestServer_WaitingSeekerIgnoredOnRepeat(t *testing.T) {
	ts := newTestServer(t)

	// Given: a client already waiting in the queue
	conn1 := dial(t, ts)
	send(t, conn1, actionSeekMatch, nil)
	require.Equal(t, eventWaiting, next(t, conn1).Action)

	// When: it seeks again and then gets paired
	send(t, conn1, actionSeekMatch, nil)

	conn2 := dial(t, ts)
	send(t, conn2, actionSeekMatch, nil)

	// Then: no second waiting event was emitted, match-found is next
	require.Equal(t, eventMatchFound, next(t, conn1).Action)
}
