package game

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/foodchain/foodchain-server-go/internal/game/card"
	"github.com/foodchain/foodchain-server-go/internal/game/state"
)

// testCatalog holds a few vanilla cards; none carry effects so games built
// from them only exercise the turn machine and combat.
func testCatalog() *card.Catalog {
	cat := card.NewCatalog()
	cat.Register(&card.Definition{ID: "rabbit", Name: "Rabbit", Type: card.TypePrey, Atk: 1, HP: 2, Nutrition: 1})
	cat.Register(&card.Definition{ID: "mouse", Name: "Mouse", Type: card.TypePrey, Atk: 1, HP: 1, Nutrition: 1})
	cat.Register(&card.Definition{ID: "wolf", Name: "Wolf", Type: card.TypePredator, Atk: 3, HP: 3})
	return cat
}

func testDeck() []string {
	deck := make([]string, 0, 20)
	for i := range 20 {
		switch i % 3 {
		case 0:
			deck = append(deck, "rabbit")
		case 1:
			deck = append(deck, "mouse")
		default:
			deck = append(deck, "wolf")
		}
	}
	return deck
}

// engineHarness drives one game through the public engine API and gives
// tests direct access to the state behind it.
type engineHarness struct {
	t       *testing.T
	engine  *Engine
	catalog *card.Catalog
	gameID  string
	players []string
}

func newEngineHarness(t *testing.T, opts Options) *engineHarness {
	t.Helper()
	if opts.Seed == 0 {
		opts.Seed = 42
	}
	cat := testCatalog()
	h := &engineHarness{
		t:       t,
		engine:  NewEngine(zaptest.NewLogger(t), cat, nil, opts),
		catalog: cat,
		gameID:  "game-1",
		players: []string{"alice", "bob"},
	}
	require.NoError(t, h.engine.StartGame(h.gameID, []Seat{
		{ID: "alice", Name: "Alice", Deck: testDeck()},
		{ID: "bob", Name: "Bob", Deck: testDeck()},
	}))
	return h
}

// state returns the live game state. Callers must not hold it across
// engine calls from other goroutines.
func (h *engineHarness) state() *state.GameState {
	h.engine.mu.RLock()
	defer h.engine.mu.RUnlock()
	return h.engine.games[h.gameID].state
}

// keepBoth finishes setup, which starts the first turn.
func (h *engineHarness) keepBoth() {
	h.t.Helper()
	for _, id := range h.players {
		require.NoError(h.t, h.engine.KeepHand(h.gameID, id))
	}
}

func (h *engineHarness) activeID() string {
	return h.state().Active().ID
}

func (h *engineHarness) waitingID() string {
	return h.state().Opponent().ID
}

// giveCard puts a fresh instance of cardID into the player's hand.
func (h *engineHarness) giveCard(playerID, cardID string) *card.Instance {
	h.t.Helper()
	def, ok := h.catalog.Get(cardID)
	require.True(h.t, ok, "unknown card %s", cardID)
	st := h.state()
	idx, ok := st.PlayerIndex(playerID)
	require.True(h.t, ok)
	c := card.NewInstance(def)
	st.Players[idx].Hand = append(st.Players[idx].Hand, c)
	return c
}

// placeVeteran puts cardID on the player's field as if it arrived last turn.
func (h *engineHarness) placeVeteran(playerID, cardID string) *card.Instance {
	h.t.Helper()
	c := h.giveCard(playerID, cardID)
	st := h.state()
	idx, _ := st.PlayerIndex(playerID)
	p := st.Players[idx]
	p.Hand = p.Hand[:len(p.Hand)-1]
	c.SummonedTurn = st.Turn - 1
	require.True(h.t, p.Place(c, p.FirstEmptySlot()))
	return c
}
