package targeting

import (
	"fmt"

	"github.com/foodchain/foodchain-server-go/internal/game/card"
	"github.com/foodchain/foodchain-server-go/internal/game/state"
)

// Validator checks a player's answer to a pending target selection.
type Validator struct {
	gameState *state.GameState
}

// NewValidator creates a validator bound to one game.
func NewValidator(gameState *state.GameState) *Validator {
	return &Validator{gameState: gameState}
}

// ValidateSelection returns the chosen creature if the choice answers the
// pending decision. Candidates are re-checked against the current field, so a
// creature that died while the decision was open is rejected.
func (v *Validator) ValidateSelection(playerIndex int, choiceID string) (*card.Instance, error) {
	if v == nil || v.gameState == nil {
		return nil, fmt.Errorf("target validator not initialized")
	}
	pending := v.gameState.Pending
	if pending == nil {
		return nil, fmt.Errorf("no selection is pending")
	}
	if playerIndex != pending.PlayerIndex {
		return nil, fmt.Errorf("player %d is not choosing", playerIndex)
	}
	if !pending.HasCandidate(choiceID) {
		return nil, fmt.Errorf("target %s is not a legal choice", choiceID)
	}
	c, _, ok := v.gameState.FindOnField(choiceID)
	if !ok {
		return nil, fmt.Errorf("target %s is no longer on the field", choiceID)
	}
	if c.CurrentHP <= 0 {
		return nil, fmt.Errorf("target %s is dead", c.Name())
	}
	return c, nil
}
