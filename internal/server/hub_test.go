package server

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/foodchain/foodchain-server-go/internal/config"
	"github.com/foodchain/foodchain-server-go/internal/game"
	"github.com/foodchain/foodchain-server-go/internal/game/card"
)

func newTestHub(t *testing.T) *httptest.Server {
	t.Helper()
	cat := card.NewCatalog()
	cat.Register(&card.Definition{ID: "rabbit", Name: "Rabbit", Type: card.TypePrey, Atk: 1, HP: 2, Nutrition: 1})
	cat.Register(&card.Definition{ID: "wolf", Name: "Wolf", Type: card.TypePredator, Atk: 3, HP: 3})
	deck := make([]string, 0, 20)
	for i := range 20 {
		if i%2 == 0 {
			deck = append(deck, "rabbit")
		} else {
			deck = append(deck, "wolf")
		}
	}

	logger := zaptest.NewLogger(t)
	engine := game.NewEngine(logger, cat, nil, game.Options{Seed: 3})
	hub := NewHub(logger, engine, config.ServerConfig{SendQueue: 512, WriteTimeout: time.Second}, deck)

	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)
	srv := httptest.NewServer(hub)
	t.Cleanup(func() {
		srv.Close()
		cancel()
	})
	return srv
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func send(t *testing.T, conn *websocket.Conn, msg WSMessage) {
	t.Helper()
	require.NoError(t, conn.WriteJSON(msg))
}

func raw(t *testing.T, v any) json.RawMessage {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return b
}

// readUntil reads frames until one of type typ satisfies match.
func readUntil(t *testing.T, conn *websocket.Conn, typ string, match func(WSMessage) bool) WSMessage {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for {
		require.NoError(t, conn.SetReadDeadline(deadline))
		var msg WSMessage
		require.NoError(t, conn.ReadJSON(&msg), "waiting for %s", typ)
		if msg.Type == typ && (match == nil || match(msg)) {
			return msg
		}
	}
}

func viewOf(t *testing.T, msg WSMessage) game.GameView {
	t.Helper()
	var v game.GameView
	require.NoError(t, json.Unmarshal(msg.Data, &v))
	return v
}

func setupComplete(msg WSMessage) bool {
	var v game.GameView
	return json.Unmarshal(msg.Data, &v) == nil && v.Setup == "complete"
}

func TestCreateJoinAndPlay(t *testing.T) {
	srv := newTestHub(t)
	alice := dial(t, srv)
	bob := dial(t, srv)

	send(t, alice, WSMessage{Type: MsgCreateGame, GameID: "g1", PlayerID: "alice", Data: raw(t, SeatRequest{Name: "Alice"})})
	created := readUntil(t, alice, MsgGameCreated, nil)
	assert.Equal(t, "g1", created.GameID)
	assert.Equal(t, "alice", created.PlayerID)

	send(t, bob, WSMessage{Type: MsgJoinGame, GameID: "g1", PlayerID: "bob", Data: raw(t, SeatRequest{Name: "Bob"})})
	readUntil(t, bob, MsgGameCreated, nil)

	view := viewOf(t, readUntil(t, alice, MsgGameState, nil))
	assert.Equal(t, "g1", view.GameID)
	assert.Equal(t, "mulligan", view.Setup)
	for _, p := range view.Players {
		if p.ID == "alice" {
			assert.Len(t, p.Hand, 5)
		} else {
			assert.Empty(t, p.Hand)
		}
	}

	keep := raw(t, game.Action{Type: "keep"})
	send(t, alice, WSMessage{Type: MsgAction, Data: keep})
	send(t, bob, WSMessage{Type: MsgAction, Data: keep})

	done := viewOf(t, readUntil(t, bob, MsgGameState, setupComplete))
	assert.Equal(t, 1, done.Turn)
	assert.Equal(t, "Main 1", done.Phase)
}

func TestActionErrorsAreReported(t *testing.T) {
	srv := newTestHub(t)
	alice := dial(t, srv)
	bob := dial(t, srv)

	send(t, alice, WSMessage{Type: MsgCreateGame, GameID: "g2", PlayerID: "alice"})
	readUntil(t, alice, MsgGameCreated, nil)
	send(t, bob, WSMessage{Type: MsgJoinGame, GameID: "g2", PlayerID: "bob"})
	readUntil(t, bob, MsgGameCreated, nil)

	send(t, bob, WSMessage{Type: MsgAction, Data: raw(t, game.Action{Type: "dance"})})
	msg := readUntil(t, bob, MsgError, nil)
	var data ErrorData
	require.NoError(t, json.Unmarshal(msg.Data, &data))
	assert.Contains(t, data.Message, "unknown action type")

	send(t, bob, WSMessage{Type: MsgAction, Data: raw(t, game.Action{Type: "end_turn"})})
	msg = readUntil(t, bob, MsgError, nil)
	require.NoError(t, json.Unmarshal(msg.Data, &data))
	assert.Contains(t, data.Message, "action rejected")
}

func TestJoinUnknownGame(t *testing.T) {
	srv := newTestHub(t)
	carol := dial(t, srv)

	send(t, carol, WSMessage{Type: MsgJoinGame, GameID: "nope", PlayerID: "carol"})
	msg := readUntil(t, carol, MsgError, nil)
	var data ErrorData
	require.NoError(t, json.Unmarshal(msg.Data, &data))
	assert.Contains(t, data.Message, "game not found")
}

func TestSpectatorSeesNoHands(t *testing.T) {
	srv := newTestHub(t)
	alice := dial(t, srv)
	bob := dial(t, srv)
	watcher := dial(t, srv)

	send(t, alice, WSMessage{Type: MsgCreateGame, GameID: "g3", PlayerID: "alice"})
	readUntil(t, alice, MsgGameCreated, nil)
	send(t, bob, WSMessage{Type: MsgJoinGame, GameID: "g3", PlayerID: "bob"})
	readUntil(t, bob, MsgGameCreated, nil)

	send(t, watcher, WSMessage{Type: MsgWatchGame, GameID: "g3"})
	view := viewOf(t, readUntil(t, watcher, MsgGameState, nil))
	for _, p := range view.Players {
		assert.Empty(t, p.Hand)
		assert.Equal(t, 5, p.HandCount)
	}

	send(t, watcher, WSMessage{Type: MsgAction, Data: raw(t, game.Action{Type: "keep"})})
	msg := readUntil(t, watcher, MsgError, nil)
	assert.Contains(t, string(msg.Data), "spectators cannot act")
}
