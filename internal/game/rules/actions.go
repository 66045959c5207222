package rules

import (
	"slices"

	"go.uber.org/zap"

	"github.com/foodchain/foodchain-server-go/internal/game/card"
	"github.com/foodchain/foodchain-server-go/internal/game/combat"
	"github.com/foodchain/foodchain-server-go/internal/game/consumption"
	"github.com/foodchain/foodchain-server-go/internal/game/keywords"
	"github.com/foodchain/foodchain-server-go/internal/game/state"
)

// PlayRequest names a card in hand and, for predators, what it eats.
type PlayRequest struct {
	CardID     string
	PreyIDs    []string
	CarrionIDs []string
}

// AttackRequest declares an attack. An empty TargetID attacks the opposing
// player. AllyIDs are Pride creatures joining the hunt.
type AttackRequest struct {
	AttackerID string
	TargetID   string
	AllyIDs    []string
}

// mainPhaseAction checks the preconditions shared by play and stalk.
func (m *Machine) mainPhaseAction(st *state.GameState, playerIndex int) bool {
	if !m.canAct(st) {
		return false
	}
	if playerIndex != st.ActivePlayerIndex {
		st.LogAction(state.CategorySystem, "It is not your turn")
		return false
	}
	if !st.Phase.IsMain() {
		st.Logf(state.CategorySystem, "Cards are played in a main phase, not %s", st.Phase)
		return false
	}
	return true
}

// PlayCard plays a card from the active player's hand. One card per turn
// may be played; free spells do not count against the limit.
func (m *Machine) PlayCard(st *state.GameState, playerIndex int, req PlayRequest) bool {
	if !m.mainPhaseAction(st, playerIndex) {
		return false
	}
	owner := st.Players[playerIndex]
	hi := owner.HandIndex(req.CardID)
	if hi < 0 {
		st.LogAction(state.CategoryPlay, "That card is not in your hand")
		return false
	}
	c := owner.Hand[hi]
	t := c.Type()
	if t == card.TypeTrap {
		st.Logf(state.CategoryPlay, "%s is a trap and cannot be played from hand", c.Name())
		return false
	}
	if st.CardPlayedThisTurn && t != card.TypeFreeSpell {
		st.LogAction(state.CategoryPlay, "You have already played a card this turn")
		return false
	}
	if !m.hasRoom(st, playerIndex, c, req.PreyIDs) {
		st.Logf(state.CategoryPlay, "No room on the field for %s", c.Name())
		return false
	}

	m.consumption.CloseWindow(st)
	owner.RemoveFromHand(c.ID)
	st.Logf(state.CategoryPlay, "%s plays %s", owner.Name, c.Name())

	switch {
	case t == card.TypePredator:
		if _, ok := m.consumption.EnterPlay(st, consumption.Request{
			Predator:    c,
			PreyIDs:     req.PreyIDs,
			CarrionIDs:  req.CarrionIDs,
			PlayerIndex: playerIndex,
		}); !ok {
			owner.Hand = slices.Insert(owner.Hand, hi, c)
			return false
		}
		m.claimFieldSpell(st, c, playerIndex)
	case t == card.TypePrey || c.Def.FieldSpell:
		c.SummonedTurn = st.Turn
		keywords.ApplyEntryStatuses(c)
		owner.Place(c, owner.FirstEmptySlot())
		m.claimFieldSpell(st, c, playerIndex)
		m.effects.Fire(st, c, card.OnPlay, playerIndex)
	case t.IsSpell():
		m.effects.Fire(st, c, card.OnPlay, playerIndex)
		st.Logf(state.CategoryPlay, "%s is discarded", c.Name())
	default:
		owner.Hand = slices.Insert(owner.Hand, hi, c)
		st.Logf(state.CategoryPlay, "%s cannot be played", c.Name())
		return false
	}

	if t != card.TypeFreeSpell {
		st.CardPlayedThisTurn = true
	}
	if m.logger != nil {
		m.logger.Debug("card played",
			zap.String("game_id", st.ID),
			zap.Int("player", playerIndex),
			zap.String("card", c.Def.ID))
	}
	m.cleanup(st)
	st.Notify()
	return true
}

// hasRoom reports whether c will find a slot. A predator may free one by
// eating prey from its own field.
func (m *Machine) hasRoom(st *state.GameState, playerIndex int, c *card.Instance, preyIDs []string) bool {
	owner := st.Players[playerIndex]
	if !c.Type().IsCreature() && !c.Def.FieldSpell {
		return true
	}
	if owner.FirstEmptySlot() >= 0 {
		return true
	}
	if c.Type() != card.TypePredator {
		return false
	}
	field, _ := consumption.ConsumablePrey(st, c, playerIndex)
	for _, prey := range field {
		if slices.Contains(preyIDs, prey.ID) {
			return true
		}
	}
	return false
}

// claimFieldSpell makes c the active field spell, destroying the previous
// source. Spell-type sources are discarded; creature sources die.
func (m *Machine) claimFieldSpell(st *state.GameState, c *card.Instance, playerIndex int) {
	if !c.Def.FieldSpell {
		return
	}
	if prev := st.FieldSpell; prev != nil {
		if old, loc, ok := st.FindOnField(prev.InstanceID); ok {
			if old.Type().IsCreature() {
				old.CurrentHP = 0
			} else {
				st.Players[loc.Player].Field[loc.Slot] = nil
			}
			st.Logf(state.CategoryEffect, "%s is replaced by %s", old.Name(), c.Name())
		}
	}
	st.FieldSpell = &state.FieldSpell{InstanceID: c.ID, PlayerIndex: playerIndex}
}

// Extend lets the predator holding the consumption window eat more.
func (m *Machine) Extend(st *state.GameState, playerIndex int, preyIDs, carrionIDs []string) bool {
	if !m.mainPhaseAction(st, playerIndex) {
		return false
	}
	if _, ok := m.consumption.ExtendConsumption(st, preyIDs, carrionIDs); !ok {
		return false
	}
	m.cleanup(st)
	st.Notify()
	return true
}

// EnterStalking puts a Stalk creature into the shadows during a main phase.
func (m *Machine) EnterStalking(st *state.GameState, playerIndex int, instanceID string) bool {
	if !m.mainPhaseAction(st, playerIndex) {
		return false
	}
	c, loc, ok := st.FindOnField(instanceID)
	if !ok || loc.Player != playerIndex {
		st.LogAction(state.CategorySystem, "That creature is not on your field")
		return false
	}
	if c.HasAttacked {
		st.Logf(state.CategoryCombat, "%s has already attacked this turn", c.Name())
		return false
	}
	if !keywords.EnterStalking(c) {
		st.Logf(state.CategoryCombat, "%s cannot stalk", c.Name())
		return false
	}
	st.Logf(state.CategoryCombat, "%s slips into the shadows", c.Name())
	st.Notify()
	return true
}

// Attack validates and resolves an attack. An attacker with an unfired
// onBeforeCombat effect resolves it first; if that effect needs a target
// the attack waits in GameState.PendingAttack until the selection is made.
func (m *Machine) Attack(st *state.GameState, playerIndex int, req AttackRequest) bool {
	if !m.canAct(st) {
		return false
	}
	attacker, loc, ok := st.FindOnField(req.AttackerID)
	if !ok || loc.Player != playerIndex {
		attacker = nil
	}
	var defender *card.Instance
	if req.TargetID != "" {
		if defender, _, ok = st.FindOnField(req.TargetID); !ok {
			st.LogAction(state.CategoryCombat, "Attack refused: target is not on the field")
			return false
		}
	}
	if err := combat.ValidateAttack(st, attacker, defender, playerIndex); err != nil {
		st.Logf(state.CategoryCombat, "Attack refused: %v", err)
		return false
	}
	available := combat.GetAvailablePrideAllies(st, attacker, playerIndex)
	for _, id := range req.AllyIDs {
		i := slices.IndexFunc(available, func(c *card.Instance) bool { return c.ID == id })
		if i < 0 {
			st.LogAction(state.CategoryCombat, "Attack refused: an ally cannot join the hunt")
			return false
		}
		if defender == nil && !keywords.CanAttackPlayer(available[i], st.Turn) {
			st.Logf(state.CategoryCombat, "Attack refused: %s cannot hunt the player this turn", available[i].Name())
			return false
		}
	}
	if len(req.AllyIDs) > 0 && !keywords.Has(attacker, card.KeywordPride) {
		st.Logf(state.CategoryCombat, "Attack refused: %s does not hunt in a pride", attacker.Name())
		return false
	}

	m.consumption.CloseWindow(st)
	st.PendingAttack = &state.PendingAttack{
		AttackerID:  attacker.ID,
		TargetID:    req.TargetID,
		PlayerIndex: playerIndex,
		AllyIDs:     slices.Clone(req.AllyIDs),
	}
	m.continueAttack(st)
	st.Notify()
	return true
}

// continueAttack runs st.PendingAttack unless a selection is still open.
func (m *Machine) continueAttack(st *state.GameState) {
	pa := st.PendingAttack
	if pa == nil || st.Pending != nil {
		return
	}
	attacker, loc, ok := st.FindOnField(pa.AttackerID)
	if !ok || loc.Player != pa.PlayerIndex || attacker.CurrentHP <= 0 || !keywords.CanAttack(attacker) {
		st.PendingAttack = nil
		st.LogAction(state.CategoryCombat, "The attack is called off")
		m.cleanup(st)
		return
	}
	defIdx := state.Other(pa.PlayerIndex)
	var defender *card.Instance
	if pa.TargetID != "" {
		defender, loc, ok = st.FindOnField(pa.TargetID)
		if !ok || loc.Player != defIdx || defender.CurrentHP <= 0 {
			st.PendingAttack = nil
			st.LogAction(state.CategoryCombat, "The attack is called off: its target is gone")
			m.cleanup(st)
			return
		}
	}

	res := m.combat.InitiateCombat(st, attacker, defender, pa.PlayerIndex, defIdx)
	if res.Deferred {
		attacker.BeforeCombatFired = true
		state.RemoveFromQueue(&st.BeforeCombatQueue, attacker.ID)
		m.effects.Fire(st, attacker, card.OnBeforeCombat, pa.PlayerIndex)
		if st.Pending != nil {
			return
		}
		m.continueAttack(st)
		return
	}
	st.PendingAttack = nil

	for _, id := range pa.AllyIDs {
		ally, aloc, ok := st.FindOnField(id)
		if !ok || aloc.Player != pa.PlayerIndex || !keywords.ReadyToAttack(ally) || ally.JoinedPrideAttack {
			continue
		}
		if defender == nil && !keywords.CanAttackPlayer(ally, st.Turn) {
			continue
		}
		if defender != nil && defender.CurrentHP <= 0 {
			break
		}
		m.combat.ResolvePrideCoordinatedDamage(st, ally, defender, pa.PlayerIndex, defIdx)
	}
	m.cleanup(st)
}

// ResolveSelection answers the pending target selection, then resumes an
// attack that was waiting on it.
func (m *Machine) ResolveSelection(st *state.GameState, playerIndex int, choiceID string) bool {
	if !m.effects.ResolveSelection(st, playerIndex, choiceID) {
		return false
	}
	m.afterSelection(st)
	return true
}

// CancelSelection skips the pending target selection.
func (m *Machine) CancelSelection(st *state.GameState, playerIndex int) bool {
	if !m.effects.CancelSelection(st, playerIndex) {
		return false
	}
	m.afterSelection(st)
	return true
}

func (m *Machine) afterSelection(st *state.GameState) {
	m.cleanup(st)
	if st.Pending == nil {
		m.continueAttack(st)
		if st.Phase == state.PhaseStart && !st.IsOver() {
			m.AdvancePhase(st)
		}
	}
	st.Notify()
}
