package combat

import (
	"fmt"

	"github.com/foodchain/foodchain-server-go/internal/game/card"
	"github.com/foodchain/foodchain-server-go/internal/game/keywords"
	"github.com/foodchain/foodchain-server-go/internal/game/state"
)

// ValidateAttack checks that attacker may attack defender right now. A nil
// defender is an attack on the opposing player. The returned error explains
// the refusal for the game log.
func ValidateAttack(st *state.GameState, attacker, defender *card.Instance, attackerIdx int) error {
	if st.IsOver() {
		return fmt.Errorf("the game is over")
	}
	if st.Phase != state.PhaseCombat {
		return fmt.Errorf("attacks are only declared in the %s phase", state.PhaseCombat)
	}
	if attackerIdx != st.ActivePlayerIndex {
		return fmt.Errorf("it is not your turn")
	}
	if st.Pending != nil || st.PendingAttack != nil {
		return fmt.Errorf("an earlier action is still resolving")
	}
	if attacker == nil || st.Players[attackerIdx].SlotOf(attacker.ID) < 0 {
		return fmt.Errorf("attacker is not on your field")
	}
	if attacker.HasAttacked {
		return fmt.Errorf("%s has already attacked this turn", attacker.Name())
	}
	if !keywords.CanAttack(attacker) {
		return fmt.Errorf("%s cannot attack", attacker.Name())
	}

	defenderIdx := state.Other(attackerIdx)
	lures := lureCreatures(st.Players[defenderIdx])

	if defender == nil {
		if !keywords.CanAttackPlayer(attacker, st.Turn) {
			return fmt.Errorf("%s needs Haste to attack a player the turn it arrives", attacker.Name())
		}
		if len(lures) > 0 {
			return fmt.Errorf("%s must be attacked first", lures[0].Name())
		}
		return nil
	}

	if st.Players[defenderIdx].SlotOf(defender.ID) < 0 || !defender.Type().IsCreature() {
		return fmt.Errorf("target is not an enemy creature")
	}
	if defender.CurrentHP <= 0 {
		return fmt.Errorf("%s is already dead", defender.Name())
	}
	if !keywords.CanBeAttacked(defender) {
		return fmt.Errorf("%s cannot be attacked", defender.Name())
	}
	if len(lures) > 0 && !keywords.Has(defender, card.KeywordLure) {
		return fmt.Errorf("%s must be attacked first", lures[0].Name())
	}
	return nil
}

// lureCreatures lists the live, attackable Lure creatures on p's field.
func lureCreatures(p *state.Player) []*card.Instance {
	var out []*card.Instance
	for _, c := range p.Creatures() {
		if c.CurrentHP > 0 && keywords.Has(c, card.KeywordLure) && keywords.CanBeAttacked(c) {
			out = append(out, c)
		}
	}
	return out
}
