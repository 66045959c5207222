// Package server exposes the game engine over websockets. Clients create or
// join games, submit actions and receive their own view of the game after
// every change.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/foodchain/foodchain-server-go/internal/config"
	"github.com/foodchain/foodchain-server-go/internal/game"
)

// Message types.
const (
	MsgCreateGame  = "create_game"
	MsgJoinGame    = "join_game"
	MsgWatchGame   = "watch_game"
	MsgAction      = "action"
	MsgGameCreated = "game_created"
	MsgGameState   = "game_state"
	MsgError       = "error"
)

// WSMessage is the envelope of every websocket frame.
type WSMessage struct {
	Type     string          `json:"type"`
	GameID   string          `json:"game_id,omitempty"`
	PlayerID string          `json:"player_id,omitempty"`
	Data     json.RawMessage `json:"data,omitempty"`
}

// SeatRequest is the data of create_game and join_game.
type SeatRequest struct {
	Name string   `json:"name"`
	Deck []string `json:"deck,omitempty"`
}

// ErrorData is the data of an error message.
type ErrorData struct {
	Message string `json:"message"`
}

// Client is one websocket connection. A client is seated in at most one
// game; a spectator has a game but no player id.
type Client struct {
	id   string
	conn *websocket.Conn
	send chan []byte

	mu       sync.Mutex
	playerID string
	gameID   string
}

func (c *Client) seat() (gameID, playerID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gameID, c.playerID
}

func (c *Client) setSeat(gameID, playerID string) {
	c.mu.Lock()
	c.gameID, c.playerID = gameID, playerID
	c.mu.Unlock()
}

// lobbyGame is a created game waiting for its second player.
type lobbyGame struct {
	host game.Seat
}

// Hub routes client messages to the engine and pushes views back.
type Hub struct {
	logger      *zap.Logger
	engine      *game.Engine
	cfg         config.ServerConfig
	defaultDeck []string
	upgrader    websocket.Upgrader

	clients    map[*Client]bool // owned by Run
	register   chan *Client
	unregister chan *Client
	updates    chan string
	done       chan struct{}

	mu    sync.Mutex
	lobby map[string]*lobbyGame
}

// NewHub creates a hub and subscribes it to the engine's notifications.
// defaultDeck is used by players who do not bring a deck.
func NewHub(logger *zap.Logger, engine *game.Engine, cfg config.ServerConfig, defaultDeck []string) *Hub {
	if cfg.SendQueue < 1 {
		cfg.SendQueue = 64
	}
	h := &Hub{
		logger:      logger,
		engine:      engine,
		cfg:         cfg,
		defaultDeck: defaultDeck,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  cfg.ReadBuffer,
			WriteBufferSize: cfg.WriteBuffer,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		updates:    make(chan string, 64),
		done:       make(chan struct{}),
		lobby:      make(map[string]*lobbyGame),
	}
	engine.SetNotificationHandler(func(n game.GameNotification) {
		h.notify(n.GameID)
	})
	return h
}

// Run owns the client set until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			for client := range h.clients {
				close(client.send)
				delete(h.clients, client)
			}
			return

		case client := <-h.register:
			h.clients[client] = true
			if h.logger != nil {
				h.logger.Debug("client registered", zap.String("client_id", client.id))
			}

		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
				if h.logger != nil {
					h.logger.Debug("client unregistered", zap.String("client_id", client.id))
				}
			}

		case gameID := <-h.updates:
			h.broadcastGameState(gameID)
		}
	}
}

// notify schedules a view push for gameID.
func (h *Hub) notify(gameID string) {
	select {
	case h.updates <- gameID:
	case <-h.done:
	}
}

// broadcastGameState sends each client in gameID its own view. Runs on the
// Run goroutine.
func (h *Hub) broadcastGameState(gameID string) {
	for client := range h.clients {
		cg, playerID := client.seat()
		if cg != gameID {
			continue
		}
		view, err := h.engine.GetGameView(gameID, playerID)
		if err != nil {
			continue
		}
		msg, err := encode(MsgGameState, gameID, playerID, view)
		if err != nil {
			continue
		}
		select {
		case client.send <- msg:
		default:
			// A client that cannot keep up is dropped.
			close(client.send)
			delete(h.clients, client)
			if h.logger != nil {
				h.logger.Warn("dropping slow client", zap.String("client_id", client.id))
			}
		}
	}
}

func encode(typ, gameID, playerID string, data any) ([]byte, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", typ, err)
	}
	return json.Marshal(WSMessage{Type: typ, GameID: gameID, PlayerID: playerID, Data: raw})
}

// reply sends directly to one client from its read goroutine. The send
// channel may already be closed by Run when the client was dropped.
func (h *Hub) reply(c *Client, typ, gameID, playerID string, data any) {
	msg, err := encode(typ, gameID, playerID, data)
	if err != nil {
		return
	}
	defer func() { _ = recover() }()
	select {
	case c.send <- msg:
	default:
	}
}

func (h *Hub) replyError(c *Client, gameID string, err error) {
	h.reply(c, MsgError, gameID, "", ErrorData{Message: err.Error()})
}

func (h *Hub) handleMessage(c *Client, msg WSMessage) {
	if h.logger != nil {
		h.logger.Debug("received message",
			zap.String("type", msg.Type),
			zap.String("client_id", c.id),
			zap.String("game_id", msg.GameID))
	}
	switch msg.Type {
	case MsgCreateGame:
		h.createGame(c, msg)
	case MsgJoinGame:
		h.joinGame(c, msg)
	case MsgWatchGame:
		if _, err := h.engine.GetGameView(msg.GameID, ""); err != nil {
			h.replyError(c, msg.GameID, err)
			return
		}
		c.setSeat(msg.GameID, "")
		h.notify(msg.GameID)
	case MsgAction:
		h.action(c, msg)
	default:
		h.replyError(c, msg.GameID, fmt.Errorf("unknown message type %q", msg.Type))
	}
}

func (h *Hub) seatFrom(msg WSMessage) (game.Seat, error) {
	var req SeatRequest
	if len(msg.Data) > 0 {
		if err := json.Unmarshal(msg.Data, &req); err != nil {
			return game.Seat{}, fmt.Errorf("invalid seat request: %w", err)
		}
	}
	playerID := msg.PlayerID
	if playerID == "" {
		playerID = uuid.NewString()
	}
	deck := req.Deck
	if len(deck) == 0 {
		deck = h.defaultDeck
	}
	return game.Seat{ID: playerID, Name: req.Name, Deck: deck}, nil
}

func (h *Hub) createGame(c *Client, msg WSMessage) {
	seat, err := h.seatFrom(msg)
	if err != nil {
		h.replyError(c, "", err)
		return
	}
	gameID := msg.GameID
	if gameID == "" {
		gameID = uuid.NewString()
	}
	h.mu.Lock()
	if _, taken := h.lobby[gameID]; taken {
		h.mu.Unlock()
		h.replyError(c, gameID, fmt.Errorf("%w: %s", game.ErrGameExists, gameID))
		return
	}
	h.lobby[gameID] = &lobbyGame{host: seat}
	h.mu.Unlock()

	c.setSeat(gameID, seat.ID)
	h.reply(c, MsgGameCreated, gameID, seat.ID, map[string]string{"game_id": gameID, "player_id": seat.ID})
}

// joinGame seats the second player and starts the game, or reattaches a
// player who is already seated in a running game.
func (h *Hub) joinGame(c *Client, msg WSMessage) {
	if msg.PlayerID != "" {
		if _, err := h.engine.GetGameView(msg.GameID, msg.PlayerID); err == nil {
			c.setSeat(msg.GameID, msg.PlayerID)
			h.notify(msg.GameID)
			return
		}
	}

	seat, err := h.seatFrom(msg)
	if err != nil {
		h.replyError(c, msg.GameID, err)
		return
	}
	h.mu.Lock()
	pending, ok := h.lobby[msg.GameID]
	if ok {
		delete(h.lobby, msg.GameID)
	}
	h.mu.Unlock()
	if !ok {
		h.replyError(c, msg.GameID, fmt.Errorf("%w: %s", game.ErrGameNotFound, msg.GameID))
		return
	}

	if err := h.engine.StartGame(msg.GameID, []game.Seat{pending.host, seat}); err != nil {
		h.replyError(c, msg.GameID, err)
		return
	}
	c.setSeat(msg.GameID, seat.ID)
	h.reply(c, MsgGameCreated, msg.GameID, seat.ID, map[string]string{"game_id": msg.GameID, "player_id": seat.ID})
	h.notify(msg.GameID)
}

func (h *Hub) action(c *Client, msg WSMessage) {
	gameID, playerID := c.seat()
	if playerID == "" {
		h.replyError(c, gameID, errors.New("spectators cannot act"))
		return
	}
	var a game.Action
	if err := json.Unmarshal(msg.Data, &a); err != nil {
		h.replyError(c, gameID, fmt.Errorf("invalid action: %w", err))
		return
	}
	a.PlayerID = playerID
	if err := h.engine.ProcessAction(gameID, a); err != nil {
		h.replyError(c, gameID, err)
		return
	}
	h.notify(gameID)
}

// ServeHTTP upgrades the request and starts the client's pumps.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		if h.logger != nil {
			h.logger.Warn("websocket upgrade failed", zap.Error(err))
		}
		return
	}
	client := &Client{
		id:   uuid.NewString(),
		conn: conn,
		send: make(chan []byte, h.cfg.SendQueue),
	}
	select {
	case h.register <- client:
	case <-h.done:
		conn.Close()
		return
	}
	go h.writePump(client)
	go h.readPump(client)
}

func (h *Hub) readPump(c *Client) {
	defer func() {
		select {
		case h.unregister <- c:
		case <-h.done:
		}
		c.conn.Close()
	}()
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		var msg WSMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			h.replyError(c, "", fmt.Errorf("invalid message: %w", err))
			continue
		}
		h.handleMessage(c, msg)
	}
}

func (h *Hub) writePump(c *Client) {
	defer c.conn.Close()
	for msg := range c.send {
		if h.cfg.WriteTimeout > 0 {
			_ = c.conn.SetWriteDeadline(time.Now().Add(h.cfg.WriteTimeout))
		}
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			return
		}
	}
}
