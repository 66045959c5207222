// Package combat resolves a single attack atomically. It keeps no state of
// its own between calls.
package combat

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/foodchain/foodchain-server-go/internal/game/card"
	"github.com/foodchain/foodchain-server-go/internal/game/effects"
	"github.com/foodchain/foodchain-server-go/internal/game/keywords"
	"github.com/foodchain/foodchain-server-go/internal/game/state"
)

// Outcome reports the damage each side dealt. AttackerDamage is what the
// attacker dealt to the defender; DefenderDamage is the counter-damage,
// 0 when Ambush or Harmless suppressed it.
type Outcome struct {
	AttackerDamage int
	DefenderDamage int
}

// Initiation is the result of InitiateCombat.
type Initiation struct {
	// Deferred means the attacker's onBeforeCombat effect must be resolved
	// and marked fired before combat is initiated again.
	Deferred     bool
	Outcome      Outcome
	PlayerDamage int
}

// Resolver resolves attacks and death cleanup.
type Resolver struct {
	logger  *zap.Logger
	effects *effects.Resolver
}

// NewResolver creates a combat resolver that hands card effects to eff.
func NewResolver(logger *zap.Logger, eff *effects.Resolver) *Resolver {
	return &Resolver{logger: logger, effects: eff}
}

// NeedsBeforeCombat reports whether c has an onBeforeCombat effect that has
// not fired this turn.
func NeedsBeforeCombat(c *card.Instance) bool {
	return c != nil && !c.BeforeCombatFired && keywords.AbilitiesActive(c) && c.Def.HasEffect(card.OnBeforeCombat)
}

// InitiateCombat dispatches an attack. A nil defender attacks the player.
func (r *Resolver) InitiateCombat(st *state.GameState, attacker, defender *card.Instance, attackerIdx, defenderIdx int) Initiation {
	if NeedsBeforeCombat(attacker) {
		return Initiation{Deferred: true}
	}
	if defender == nil {
		return Initiation{PlayerDamage: r.ResolveDirectAttack(st, attacker, st.Players[defenderIdx], attackerIdx)}
	}
	return Initiation{Outcome: r.ResolveCreatureCombat(st, attacker, defender, attackerIdx, defenderIdx)}
}

// ResolveCreatureCombat resolves one creature-vs-creature attack. The steps
// run in a fixed order; reordering them changes outcomes.
func (r *Resolver) ResolveCreatureCombat(st *state.GameState, attacker, defender *card.Instance, attackerIdx, defenderIdx int) Outcome {
	attAtk := keywords.GetEffectiveAttack(attacker, st, attackerIdx)
	defAtk := keywords.GetEffectiveAttack(defender, st, defenderIdx)
	ambush := keywords.Has(attacker, card.KeywordAmbush)
	harmless := keywords.Has(defender, card.KeywordHarmless)
	counter := !ambush && !harmless

	st.Logf(state.CategoryCombat, "%s (%d/%d) attacks %s (%d/%d)",
		attacker.Name(), attAtk, attacker.CurrentHP, defender.Name(), defAtk, defender.CurrentHP)

	toDefender := r.strike(st, defender, attAtk)
	var toAttacker keywords.HitResult
	if counter {
		toAttacker = r.strike(st, attacker, defAtk)
	}

	r.applyToxic(st, attacker, defender, toDefender)
	if counter {
		r.applyToxic(st, defender, attacker, toAttacker)
	}

	r.applyNeurotoxic(st, attacker, defender, toDefender)
	if counter {
		r.applyNeurotoxic(st, defender, attacker, toAttacker)
	}

	if keywords.Has(attacker, card.KeywordWeb) && toDefender.Landed() && defender.CurrentHP > 0 && !defender.Webbed {
		defender.Webbed = true
		st.Logf(state.CategoryDebuff, "%s is caught in %s's web", defender.Name(), attacker.Name())
	}

	markDeath(st, defender, attacker)
	markDeath(st, attacker, defender)

	if ambush {
		st.Logf(state.CategoryCombat, "%s strikes from ambush and takes no damage", attacker.Name())
	}

	if keywords.Has(defender, card.KeywordPoisonous) && !ambush && attacker.CurrentHP > 0 {
		attacker.CurrentHP = 0
		st.Logf(state.CategoryDebuff, "%s is poisoned by %s", attacker.Name(), defender.Name())
		markDeath(st, attacker, defender)
	}

	if keywords.EndStalking(attacker) {
		st.Logf(state.CategoryCombat, "%s leaves the shadows", attacker.Name())
	}
	attacker.HasAttacked = true

	out := Outcome{AttackerDamage: attAtk}
	if counter {
		out.DefenderDamage = defAtk
	}
	if r.logger != nil {
		r.logger.Debug("creature combat resolved",
			zap.String("game_id", st.ID),
			zap.String("attacker", attacker.Name()),
			zap.String("defender", defender.Name()),
			zap.Int("attacker_damage", out.AttackerDamage),
			zap.Int("defender_damage", out.DefenderDamage))
	}
	return out
}

// ResolveDirectAttack hits the opposing player for the attacker's effective
// attack and returns the damage dealt.
func (r *Resolver) ResolveDirectAttack(st *state.GameState, attacker *card.Instance, opponent *state.Player, attackerIdx int) int {
	dmg := keywords.GetEffectiveAttack(attacker, st, attackerIdx)
	opponent.HP -= dmg
	st.Logf(state.CategoryCombat, "%s attacks %s directly for %d (%d hp)", attacker.Name(), opponent.Name, dmg, opponent.HP)
	if keywords.EndStalking(attacker) {
		st.Logf(state.CategoryCombat, "%s leaves the shadows", attacker.Name())
	}
	attacker.HasAttacked = true
	return dmg
}

// strike applies one hit and logs how it was absorbed.
func (r *Resolver) strike(st *state.GameState, target *card.Instance, dmg int) keywords.HitResult {
	hit := keywords.TakeHit(target, dmg)
	switch {
	case hit.Blocked:
		st.Logf(state.CategoryCombat, "%s's Barrier absorbs %d damage", target.Name(), dmg)
	case hit.ShellAbsorbed > 0:
		st.Logf(state.CategoryCombat, "%s's Shell absorbs %d, takes %d (%d hp)", target.Name(), hit.ShellAbsorbed, hit.HPDamage, target.CurrentHP)
	case hit.HPDamage > 0:
		st.Logf(state.CategoryCombat, "%s takes %d damage (%d hp)", target.Name(), hit.HPDamage, target.CurrentHP)
	}
	return hit
}

// applyToxic kills a target that survived a landed hit from a Toxic source.
func (r *Resolver) applyToxic(st *state.GameState, src, target *card.Instance, hit keywords.HitResult) {
	if !keywords.Has(src, card.KeywordToxic) || !hit.Landed() || target.CurrentHP <= 0 {
		return
	}
	target.CurrentHP = 0
	target.KilledByToxic = true
	st.Logf(state.CategoryDebuff, "%s's toxin kills %s", src.Name(), target.Name())
}

// applyNeurotoxic replaces the target's keywords with Harmless and
// paralyzes it until the end of next turn.
func (r *Resolver) applyNeurotoxic(st *state.GameState, src, target *card.Instance, hit keywords.HitResult) {
	if !keywords.Has(src, card.KeywordNeurotoxic) || !hit.Landed() {
		return
	}
	target.Keywords = card.Keywords{card.KeywordHarmless}
	target.AbilitiesCancelled = true
	target.HasBarrier = false
	target.Paralyzed = true
	target.ParalyzedUntilTurn = st.Turn + 1
	st.Logf(state.CategoryDebuff, "%s is paralyzed by %s's neurotoxin", target.Name(), src.Name())
}

// markDeath records the first killing blow as a value snapshot.
func markDeath(st *state.GameState, victim, killer *card.Instance) {
	if victim.CurrentHP > 0 || victim.DiedInCombat {
		return
	}
	victim.DiedInCombat = true
	victim.SlainBy = killer.Snapshot()
	st.Logf(state.CategoryDeath, "%s is slain by %s", victim.Name(), killer.Name())
}

// CheckPrideCoordinatedHunt reports whether attacker can call allies in.
func CheckPrideCoordinatedHunt(st *state.GameState, attacker *card.Instance, attackerIdx int) bool {
	return keywords.Has(attacker, card.KeywordPride) && len(GetAvailablePrideAllies(st, attacker, attackerIdx)) > 0
}

// GetAvailablePrideAllies lists the Pride creatures that may join
// attacker's hunt: active, able to attack, and not yet used this turn.
func GetAvailablePrideAllies(st *state.GameState, attacker *card.Instance, attackerIdx int) []*card.Instance {
	if attacker == nil || attackerIdx < 0 || attackerIdx > 1 {
		return nil
	}
	var allies []*card.Instance
	for _, c := range st.Players[attackerIdx].Creatures() {
		if c.ID == attacker.ID || c.HasAttacked || c.JoinedPrideAttack {
			continue
		}
		if keywords.Has(c, card.KeywordPride) && keywords.CanAttack(c) {
			allies = append(allies, c)
		}
	}
	return allies
}

// ResolvePrideCoordinatedDamage lets an ally add its effective attack to a
// hunt. The ally never takes counter-damage and is spent for the turn. A nil
// defender means the hunt targets the player.
func (r *Resolver) ResolvePrideCoordinatedDamage(st *state.GameState, ally, defender *card.Instance, allyIdx, defenderIdx int) int {
	dmg := keywords.GetEffectiveAttack(ally, st, allyIdx)
	ally.HasAttacked = true
	ally.JoinedPrideAttack = true
	keywords.EndStalking(ally)

	if defender == nil {
		opp := st.Players[defenderIdx]
		opp.HP -= dmg
		st.Logf(state.CategoryCombat, "%s joins the hunt on %s for %d (%d hp)", ally.Name(), opp.Name, dmg, opp.HP)
		return dmg
	}

	st.Logf(state.CategoryCombat, "%s joins the hunt on %s for %d", ally.Name(), defender.Name(), dmg)
	hit := r.strike(st, defender, dmg)
	r.applyToxic(st, ally, defender, hit)
	r.applyNeurotoxic(st, ally, defender, hit)
	markDeath(st, defender, ally)
	return dmg
}

// CleanupOptions tunes CleanupDestroyed.
type CleanupOptions struct {
	// Silent suppresses death log lines.
	Silent bool
}

// CleanupDestroyed settles every field creature at 0 hp or less. Molt
// intercepts unless the creature was killed by Toxic. Otherwise the creature
// leaves the field, its onSlain fires if its abilities are active, and it
// goes to carrion unless it is a token. Passes repeat until no death is left,
// so chained onSlain damage is settled too. It returns the number of deaths.
func (r *Resolver) CleanupDestroyed(st *state.GameState, opts CleanupOptions) int {
	deaths := 0
	for {
		changed := false
		for pi, p := range st.Players {
			for slot, c := range p.Field {
				if c == nil || !c.Type().IsCreature() || c.CurrentHP > 0 {
					continue
				}
				changed = true
				if !c.KilledByToxic && keywords.TriggerMolt(c) {
					if !opts.Silent {
						st.Logf(state.CategoryDeath, "%s molts and survives at 1 hp", c.Name())
					}
					continue
				}
				p.Field[slot] = nil
				state.RemoveFromQueue(&st.BeforeCombatQueue, c.ID)
				state.RemoveFromQueue(&st.EndOfTurnQueue, c.ID)
				if st.FieldSpell != nil && st.FieldSpell.InstanceID == c.ID {
					st.FieldSpell = nil
				}
				if !opts.Silent {
					st.Logf(state.CategoryDeath, "%s dies", c.Name())
				}
				deaths++
				if keywords.AbilitiesActive(c) {
					r.effects.Fire(st, c, card.OnSlain, pi)
				}
				p.Bury(c)
			}
		}
		if !changed {
			break
		}
	}
	r.CheckWinner(st)
	return deaths
}

// CheckWinner ends the game when a player is at 0 hp or less.
func (r *Resolver) CheckWinner(st *state.GameState) bool {
	if st.IsOver() {
		return true
	}
	down0, down1 := st.Players[0].HP <= 0, st.Players[1].HP <= 0
	switch {
	case down0 && down1:
		st.Winner = state.Draw
	case down0:
		st.Winner = 1
	case down1:
		st.Winner = 0
	default:
		return false
	}
	st.LogAction(state.CategorySystem, describeResult(st))
	if r.logger != nil {
		r.logger.Info("game over", zap.String("game_id", st.ID), zap.Int("winner", st.Winner))
	}
	return true
}

func describeResult(st *state.GameState) string {
	if st.Winner == state.Draw {
		return "The game ends in a draw"
	}
	return fmt.Sprintf("%s wins the game", st.Players[st.Winner].Name)
}
