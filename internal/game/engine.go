package game

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/foodchain/foodchain-server-go/internal/game/card"
	"github.com/foodchain/foodchain-server-go/internal/game/effects"
	"github.com/foodchain/foodchain-server-go/internal/game/rules"
	"github.com/foodchain/foodchain-server-go/internal/game/state"
)

var (
	// ErrGameNotFound is returned for an unknown game id.
	ErrGameNotFound = errors.New("game not found")
	// ErrGameExists is returned when starting a game under a taken id.
	ErrGameExists = errors.New("game already exists")
	// ErrPlayerNotFound is returned for a player who is not seated in the game.
	ErrPlayerNotFound = errors.New("player not found")
	// ErrCardNotFound is returned when a deck names an unknown card.
	ErrCardNotFound = errors.New("card not found")
	// ErrRejected wraps a rules refusal; the message is the game log's
	// explanation.
	ErrRejected = errors.New("action rejected")
)

// Options configure every game an Engine starts.
type Options struct {
	Rules state.Rules
	// Seed fixes the random source of every game. Zero seeds each game from
	// the clock.
	Seed uint64
	// ReplayDir is where finished games are saved. Empty disables saving.
	ReplayDir string
}

// Seat is one player joining a game, with the card ids of their deck.
type Seat struct {
	ID   string
	Name string
	Deck []string
}

// GameNotification is sent to the notification handler after every
// externally observable change.
type GameNotification struct {
	Type      string
	GameID    string
	PlayerID  string
	Timestamp time.Time
	Data      map[string]any
}

// NotificationHandler receives game notifications.
type NotificationHandler func(notification GameNotification)

type session struct {
	mu        sync.Mutex
	state     *state.GameState
	startedAt time.Time
}

// Engine hosts games. Each game is guarded by its own mutex; the rules
// packages below it are single-threaded.
type Engine struct {
	logger              *zap.Logger
	mu                  sync.RWMutex
	games               map[string]*session
	defs                effects.Definitions
	machine             *rules.Machine
	opts                Options
	notificationHandler NotificationHandler
	recorder            *ReplayRecorder
}

// NewEngine creates an engine that builds decks from defs and evaluates
// script effects with scripts, which may be nil.
func NewEngine(logger *zap.Logger, defs effects.Definitions, scripts effects.ScriptRunner, opts Options) *Engine {
	if opts.Rules == (state.Rules{}) {
		opts.Rules = state.DefaultRules()
	}
	return &Engine{
		logger:   logger,
		games:    make(map[string]*session),
		defs:     defs,
		machine:  rules.New(logger, defs, scripts),
		opts:     opts,
		recorder: NewReplayRecorder(logger, opts.ReplayDir),
	}
}

// SetNotificationHandler sets the handler for game notifications.
func (e *Engine) SetNotificationHandler(handler NotificationHandler) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.notificationHandler = handler
}

// emitNotification hands n to the handler on its own goroutine so the
// handler may call back into the engine.
func (e *Engine) emitNotification(n GameNotification) {
	e.mu.RLock()
	handler := e.notificationHandler
	e.mu.RUnlock()
	if handler != nil {
		go handler(n)
	}
}

// StartGame creates a game, shuffles both decks and deals opening hands.
// The game then waits for both players to keep or mulligan.
func (e *Engine) StartGame(gameID string, seats []Seat) error {
	if gameID == "" {
		return fmt.Errorf("gameID is required")
	}
	if len(seats) != 2 {
		return fmt.Errorf("exactly 2 players required, got %d", len(seats))
	}
	if seats[0].ID == "" || seats[1].ID == "" || seats[0].ID == seats[1].ID {
		return fmt.Errorf("players need distinct non-empty ids")
	}

	var players [2]*state.Player
	for i, seat := range seats {
		name := seat.Name
		if name == "" {
			name = seat.ID
		}
		p := state.NewPlayer(seat.ID, name, e.opts.Rules.StartingHP, e.opts.Rules.FieldSlots)
		for _, id := range seat.Deck {
			def, ok := e.defs.Get(id)
			if !ok {
				return fmt.Errorf("deck of %s: %w: %s", seat.ID, ErrCardNotFound, id)
			}
			p.Deck = append(p.Deck, card.NewInstance(def))
		}
		players[i] = p
	}

	seed := e.opts.Seed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	st := state.New(gameID, players, e.opts.Rules, seed)
	st.FirstPlayerIndex = st.Rand().IntN(2)
	st.ActivePlayerIndex = st.FirstPlayerIndex
	st.Broadcast = func(s *state.GameState) {
		e.emitNotification(GameNotification{
			Type:      "STATE_CHANGE",
			GameID:    s.ID,
			Timestamp: time.Now(),
			Data: map[string]any{
				"turn":   s.Turn,
				"phase":  s.Phase.String(),
				"active": s.Active().ID,
			},
		})
	}

	e.mu.Lock()
	if _, exists := e.games[gameID]; exists {
		e.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrGameExists, gameID)
	}
	s := &session{state: st, startedAt: time.Now()}
	e.games[gameID] = s
	e.mu.Unlock()

	e.recorder.StartRecording(gameID)
	s.mu.Lock()
	e.machine.Deal(st)
	e.record(s, "deal")
	s.mu.Unlock()

	if e.logger != nil {
		e.logger.Info("game started",
			zap.String("game_id", gameID),
			zap.String("first_player", st.Players[st.FirstPlayerIndex].ID),
			zap.Uint64("seed", seed))
	}
	return nil
}

func (e *Engine) session(gameID string) (*session, error) {
	e.mu.RLock()
	s, ok := e.games[gameID]
	e.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrGameNotFound, gameID)
	}
	return s, nil
}

// act runs one player action under the game's lock. A refusal by the
// rules becomes ErrRejected carrying the game log's explanation.
func (e *Engine) act(gameID, playerID, name string, fn func(st *state.GameState, playerIndex int) bool) error {
	s, err := e.session(gameID)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	idx, ok := s.state.PlayerIndex(playerID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrPlayerNotFound, playerID)
	}
	logged := len(s.state.Log)
	if !fn(s.state, idx) {
		reason := "no change"
		if len(s.state.Log) > logged {
			reason = s.state.Log[len(s.state.Log)-1].Message
		}
		return fmt.Errorf("%w: %s", ErrRejected, reason)
	}
	if err := e.record(s, name); err != nil && e.logger != nil {
		e.logger.Warn("failed to save replay", zap.String("game_id", gameID), zap.Error(err))
	}
	return nil
}

// record adds a replay frame. The frame that finishes the game also stops
// the recording and, with a replay directory configured, saves it.
func (e *Engine) record(s *session, action string) error {
	st := s.state
	e.recorder.Record(st, action)
	if !st.IsOver() || !e.recorder.IsRecording(st.ID) {
		return nil
	}
	e.recorder.StopRecording(st.ID)
	if e.opts.ReplayDir == "" {
		return nil
	}
	return e.recorder.SaveReplay(st.ID)
}

// Mulligan redraws the player's opening hand once.
func (e *Engine) Mulligan(gameID, playerID string) error {
	return e.act(gameID, playerID, "mulligan", e.machine.Mulligan)
}

// KeepHand accepts the player's opening hand.
func (e *Engine) KeepHand(gameID, playerID string) error {
	return e.act(gameID, playerID, "keep", e.machine.KeepHand)
}

// PlayCard plays a card from hand.
func (e *Engine) PlayCard(gameID, playerID string, req rules.PlayRequest) error {
	return e.act(gameID, playerID, "play", func(st *state.GameState, idx int) bool {
		return e.machine.PlayCard(st, idx, req)
	})
}

// Extend eats more prey through the open consumption window.
func (e *Engine) Extend(gameID, playerID string, preyIDs, carrionIDs []string) error {
	return e.act(gameID, playerID, "extend", func(st *state.GameState, idx int) bool {
		return e.machine.Extend(st, idx, preyIDs, carrionIDs)
	})
}

// Attack declares an attack.
func (e *Engine) Attack(gameID, playerID string, req rules.AttackRequest) error {
	return e.act(gameID, playerID, "attack", func(st *state.GameState, idx int) bool {
		return e.machine.Attack(st, idx, req)
	})
}

// Stalk puts a Stalk creature into the shadows.
func (e *Engine) Stalk(gameID, playerID, instanceID string) error {
	return e.act(gameID, playerID, "stalk", func(st *state.GameState, idx int) bool {
		return e.machine.EnterStalking(st, idx, instanceID)
	})
}

// ResolveQueued resolves a queued phase effect; an empty id takes the head.
func (e *Engine) ResolveQueued(gameID, playerID, instanceID string) error {
	return e.act(gameID, playerID, "resolve_queued", func(st *state.GameState, idx int) bool {
		return e.machine.ResolveQueuedEffect(st, idx, instanceID)
	})
}

// ResolveSelection answers a pending target selection.
func (e *Engine) ResolveSelection(gameID, playerID, choiceID string) error {
	return e.act(gameID, playerID, "select", func(st *state.GameState, idx int) bool {
		return e.machine.ResolveSelection(st, idx, choiceID)
	})
}

// CancelSelection skips a pending target selection.
func (e *Engine) CancelSelection(gameID, playerID string) error {
	return e.act(gameID, playerID, "cancel_selection", e.machine.CancelSelection)
}

// AdvancePhase moves the game to its next phase. Only the active player may
// advance.
func (e *Engine) AdvancePhase(gameID, playerID string) error {
	return e.act(gameID, playerID, "advance", func(st *state.GameState, idx int) bool {
		if idx != st.ActivePlayerIndex {
			st.LogAction(state.CategorySystem, "Only the active player advances the phase")
			return false
		}
		return e.machine.AdvancePhase(st)
	})
}

// EndTurn ends the active player's turn.
func (e *Engine) EndTurn(gameID, playerID string) error {
	return e.act(gameID, playerID, "end_turn", func(st *state.GameState, idx int) bool {
		if idx != st.ActivePlayerIndex {
			st.LogAction(state.CategorySystem, "Only the active player ends the turn")
			return false
		}
		wasEnd := st.Phase == state.PhaseEnd
		if e.machine.EndTurn(st) {
			return true
		}
		// Entering End with queued effects is accepted; the turn ends once
		// they are resolved.
		return !wasEnd && st.Phase == state.PhaseEnd && len(st.EndOfTurnQueue) > 0
	})
}

// Action is a player action in transport form.
type Action struct {
	PlayerID   string   `json:"player_id"`
	Type       string   `json:"type"`
	CardID     string   `json:"card_id,omitempty"`
	TargetID   string   `json:"target_id,omitempty"`
	PreyIDs    []string `json:"prey_ids,omitempty"`
	CarrionIDs []string `json:"carrion_ids,omitempty"`
	AllyIDs    []string `json:"ally_ids,omitempty"`
}

// ProcessAction routes a transport action to the matching engine call.
func (e *Engine) ProcessAction(gameID string, a Action) error {
	switch strings.ToUpper(strings.TrimSpace(a.Type)) {
	case "MULLIGAN":
		return e.Mulligan(gameID, a.PlayerID)
	case "KEEP":
		return e.KeepHand(gameID, a.PlayerID)
	case "PLAY":
		return e.PlayCard(gameID, a.PlayerID, rules.PlayRequest{CardID: a.CardID, PreyIDs: a.PreyIDs, CarrionIDs: a.CarrionIDs})
	case "EXTEND":
		return e.Extend(gameID, a.PlayerID, a.PreyIDs, a.CarrionIDs)
	case "ATTACK":
		return e.Attack(gameID, a.PlayerID, rules.AttackRequest{AttackerID: a.CardID, TargetID: a.TargetID, AllyIDs: a.AllyIDs})
	case "STALK":
		return e.Stalk(gameID, a.PlayerID, a.CardID)
	case "RESOLVE_QUEUED":
		return e.ResolveQueued(gameID, a.PlayerID, a.CardID)
	case "SELECT":
		return e.ResolveSelection(gameID, a.PlayerID, a.TargetID)
	case "CANCEL_SELECTION":
		return e.CancelSelection(gameID, a.PlayerID)
	case "ADVANCE":
		return e.AdvancePhase(gameID, a.PlayerID)
	case "END_TURN":
		return e.EndTurn(gameID, a.PlayerID)
	default:
		return fmt.Errorf("unknown action type: %s", a.Type)
	}
}

// GetGameView returns the game as playerID sees it. An empty playerID is a
// spectator, who sees neither hand.
func (e *Engine) GetGameView(gameID, playerID string) (*GameView, error) {
	s, err := e.session(gameID)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if playerID != "" {
		if _, ok := s.state.PlayerIndex(playerID); !ok {
			return nil, fmt.Errorf("%w: %s", ErrPlayerNotFound, playerID)
		}
	}
	return buildGameView(s.state, playerID, s.startedAt), nil
}

// Checksum computes the deterministic checksum of a game.
func (e *Engine) Checksum(gameID string) (*SerializationChecksum, error) {
	s, err := e.session(gameID)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return ComputeChecksum(s.state)
}

// GetReplay returns the recorded frames of a game. Finished games that were
// saved are read back from the replay directory.
func (e *Engine) GetReplay(gameID string) (*Replay, error) {
	if r, ok := e.recorder.GetReplay(gameID); ok {
		return r, nil
	}
	if e.opts.ReplayDir != "" {
		r, err := e.recorder.LoadReplay(gameID)
		if err == nil {
			return r, nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}
	return nil, fmt.Errorf("%w: no replay for %s", ErrGameNotFound, gameID)
}

// EndGame ends a game early. An empty winnerID records a draw. The replay
// is saved when a replay directory is configured.
func (e *Engine) EndGame(gameID, winnerID string) error {
	s, err := e.session(gameID)
	if err != nil {
		return err
	}
	s.mu.Lock()
	st := s.state
	if winnerID == "" {
		st.Winner = state.Draw
		st.LogAction(state.CategorySystem, "The game ends in a draw")
	} else {
		idx, ok := st.PlayerIndex(winnerID)
		if !ok {
			s.mu.Unlock()
			return fmt.Errorf("%w: %s", ErrPlayerNotFound, winnerID)
		}
		st.Winner = idx
		st.Logf(state.CategorySystem, "Game ended. Winner: %s", st.Players[idx].Name)
	}
	saveErr := e.record(s, "end_game")
	st.Notify()
	s.mu.Unlock()

	if e.logger != nil {
		e.logger.Info("game ended",
			zap.String("game_id", gameID),
			zap.String("winner", winnerID))
	}
	if saveErr != nil {
		return fmt.Errorf("save replay: %w", saveErr)
	}
	return nil
}

// RemoveGame forgets a game.
func (e *Engine) RemoveGame(gameID string) {
	e.mu.Lock()
	delete(e.games, gameID)
	e.mu.Unlock()
	e.recorder.ClearReplay(gameID)
}

// GameIDs lists the hosted games.
func (e *Engine) GameIDs() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	ids := make([]string, 0, len(e.games))
	for id := range e.games {
		ids = append(ids, id)
	}
	return ids
}
