package rules

import (
	"github.com/foodchain/foodchain-server-go/internal/game/state"
)

// Deal shuffles both decks and draws opening hands. The game waits in the
// mulligan stage until both players have decided.
func (m *Machine) Deal(st *state.GameState) {
	for _, p := range st.Players {
		st.Shuffle(p.Deck)
		for range st.Rules.HandSize {
			if _, ok := p.Draw(); !ok {
				break
			}
		}
	}
	st.Setup = state.Setup{Stage: state.SetupMulligan}
	st.Logf(state.CategorySystem, "%s goes first", st.Players[st.FirstPlayerIndex].Name)
	st.Notify()
}

// Mulligan shuffles the player's hand back and draws a fresh one. Each
// player may do this once; it also counts as keeping the new hand.
func (m *Machine) Mulligan(st *state.GameState, playerIndex int) bool {
	if st.Setup.Complete() {
		st.LogAction(state.CategorySystem, "Setup is already complete")
		return false
	}
	if st.Setup.Mulliganed[playerIndex] || st.Setup.Kept[playerIndex] {
		st.LogAction(state.CategorySystem, "You have already decided on your hand")
		return false
	}
	p := st.Players[playerIndex]
	n := len(p.Hand)
	p.Deck = append(p.Deck, p.Hand...)
	p.Hand = nil
	st.Shuffle(p.Deck)
	for range n {
		p.Draw()
	}
	st.Setup.Mulliganed[playerIndex] = true
	st.Logf(state.CategorySystem, "%s takes a mulligan", p.Name)
	return m.keep(st, playerIndex)
}

// KeepHand accepts the current hand.
func (m *Machine) KeepHand(st *state.GameState, playerIndex int) bool {
	if st.Setup.Complete() {
		st.LogAction(state.CategorySystem, "Setup is already complete")
		return false
	}
	if st.Setup.Kept[playerIndex] {
		st.LogAction(state.CategorySystem, "You have already kept your hand")
		return false
	}
	st.Logf(state.CategorySystem, "%s keeps their hand", st.Players[playerIndex].Name)
	return m.keep(st, playerIndex)
}

// keep records the decision and starts the first turn once both players
// have one.
func (m *Machine) keep(st *state.GameState, playerIndex int) bool {
	st.Setup.Kept[playerIndex] = true
	if st.Setup.Kept[0] && st.Setup.Kept[1] {
		st.Setup.Stage = state.SetupComplete
		st.ActivePlayerIndex = st.FirstPlayerIndex
		st.Turn = 1
		m.StartTurn(st)
		return true
	}
	st.Notify()
	return true
}
