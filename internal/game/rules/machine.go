// Package rules drives a game through its turns: the phase state machine,
// the effect queues that gate phase advancement, card play and attack
// orchestration. Illegal-but-expected calls are logged to the game log and
// return false; nothing here panics or returns an error for them.
package rules

import (
	"go.uber.org/zap"

	"github.com/foodchain/foodchain-server-go/internal/game/card"
	"github.com/foodchain/foodchain-server-go/internal/game/combat"
	"github.com/foodchain/foodchain-server-go/internal/game/consumption"
	"github.com/foodchain/foodchain-server-go/internal/game/effects"
	"github.com/foodchain/foodchain-server-go/internal/game/keywords"
	"github.com/foodchain/foodchain-server-go/internal/game/state"
)

// Machine is the turn/phase state machine. It holds no game state of its
// own; one Machine serves any number of games.
type Machine struct {
	logger      *zap.Logger
	effects     *effects.Resolver
	combat      *combat.Resolver
	consumption *consumption.Engine
}

// NewMachine wires the resolvers a game needs.
func NewMachine(logger *zap.Logger, eff *effects.Resolver, cmb *combat.Resolver, cons *consumption.Engine) *Machine {
	return &Machine{logger: logger, effects: eff, combat: cmb, consumption: cons}
}

// New builds a Machine and all of its collaborators from a card source and
// an optional script runner.
func New(logger *zap.Logger, defs effects.Definitions, scripts effects.ScriptRunner) *Machine {
	eff := effects.NewResolver(logger, defs, effects.NewEvaluator(logger, scripts))
	return NewMachine(logger, eff, combat.NewResolver(logger, eff), consumption.NewEngine(logger, eff))
}

// Effects exposes the effect resolver.
func (m *Machine) Effects() *effects.Resolver {
	return m.effects
}

// canAct is the precondition shared by every state transition.
func (m *Machine) canAct(st *state.GameState) bool {
	switch {
	case st.IsOver():
		st.LogAction(state.CategorySystem, "The game is over")
		return false
	case !st.Setup.Complete():
		st.LogAction(state.CategorySystem, "Setup is not complete")
		return false
	case st.Pending != nil:
		st.LogAction(state.CategorySystem, "Waiting for a target selection")
		return false
	}
	return true
}

// AdvancePhase moves to the next phase and runs its entry behaviour. It
// refuses while a phase-bound queue is undrained. Leaving End ends the turn.
func (m *Machine) AdvancePhase(st *state.GameState) bool {
	if !m.canAct(st) {
		return false
	}
	switch st.Phase {
	case state.PhaseBeforeCombat:
		if len(st.BeforeCombatQueue) > 0 {
			st.Logf(state.CategoryPhase, "Resolve %d before-combat effect(s) first", len(st.BeforeCombatQueue))
			return false
		}
	case state.PhaseEnd:
		return m.EndTurn(st)
	}

	st.Phase = st.Phase.Next()
	st.Logf(state.CategoryPhase, "%s phase", st.Phase)
	if m.logger != nil {
		m.logger.Debug("phase advanced",
			zap.String("game_id", st.ID),
			zap.Int("turn", st.Turn),
			zap.Stringer("phase", st.Phase))
	}
	m.enterPhase(st)
	st.Notify()
	return true
}

func (m *Machine) enterPhase(st *state.GameState) {
	switch st.Phase {
	case state.PhaseStart:
		m.runStart(st)
	case state.PhaseDraw:
		m.runDraw(st)
	case state.PhaseMain1:
	case state.PhaseBeforeCombat:
		m.runBeforeCombat(st)
	case state.PhaseCombat:
		m.runCombat(st)
	case state.PhaseMain2:
		m.runMain2(st)
	case state.PhaseEnd:
		if m.queueEndEffects(st) {
			m.EndTurn(st)
		}
	}
}

// StartTurn runs the Start phase for the active player and rolls on
// through Draw into Main 1 unless an effect is waiting on a selection.
func (m *Machine) StartTurn(st *state.GameState) bool {
	if st.IsOver() || !st.Setup.Complete() {
		return false
	}
	st.Phase = state.PhaseStart
	st.Logf(state.CategoryPhase, "Turn %d: %s's turn", st.Turn, st.Active().Name)
	m.runStart(st)
	st.Notify()
	return true
}

func (m *Machine) runStart(st *state.GameState) {
	idx := st.ActivePlayerIndex
	active := st.Active()
	st.CardPlayedThisTurn = false
	st.EndOfTurnFinalized = false
	st.BeforeCombatQueue = nil
	st.EndOfTurnQueue = nil
	st.PendingAttack = nil
	m.consumption.CloseWindow(st)

	for _, p := range st.Players {
		for _, c := range p.Creatures() {
			c.ResetTurnFlags()
		}
	}
	for _, c := range active.Creatures() {
		if keywords.RechargeShell(c) {
			st.Logf(state.CategoryBuff, "%s's shell recharges to %d", c.Name(), c.CurrentShell)
		}
		if keywords.GrowStalkBonus(c, st.Rules.MaxStalkBonus) {
			st.Logf(state.CategoryBuff, "%s stalks closer (+%d)", c.Name(), c.StalkBonus)
		}
	}

	for _, c := range fieldInstances(active) {
		if keywords.AbilitiesActive(c) {
			m.effects.Fire(st, c, card.OnStart, idx)
		}
	}
	for _, c := range active.Creatures() {
		if into := c.Def.TransformOnStart; into != "" && keywords.AbilitiesActive(c) {
			m.effects.Resolve(st, effects.Result{Ops: []effects.Op{effects.TransformCard{TargetID: c.ID, Into: into}}},
				state.EffectContext{SourceID: c.ID, SourceName: c.Name(), PlayerIndex: idx, Trigger: card.OnStart})
		}
	}
	m.cleanup(st)

	if st.Pending == nil && !st.IsOver() {
		m.AdvancePhase(st)
	}
}

func (m *Machine) runDraw(st *state.GameState) {
	skip := st.Rules.SkipFirstDraw && st.Turn == 1 && st.ActivePlayerIndex == st.FirstPlayerIndex
	switch {
	case skip:
		st.Logf(state.CategoryPhase, "%s skips the first draw", st.Active().Name)
	default:
		if _, ok := st.Active().Draw(); ok {
			st.Logf(state.CategoryPhase, "%s draws a card", st.Active().Name)
		} else {
			st.Logf(state.CategoryPhase, "%s has no cards left to draw", st.Active().Name)
		}
	}
	m.AdvancePhase(st)
}

func (m *Machine) runBeforeCombat(st *state.GameState) {
	st.BeforeCombatQueue = nil
	for _, c := range st.Active().Creatures() {
		if combat.NeedsBeforeCombat(c) {
			st.BeforeCombatQueue = append(st.BeforeCombatQueue, c.ID)
		}
	}
	if len(st.BeforeCombatQueue) == 0 {
		st.LogAction(state.CategoryPhase, "No before-combat effects")
		m.AdvancePhase(st)
		return
	}
	st.Logf(state.CategoryPhase, "%d before-combat effect(s) to resolve", len(st.BeforeCombatQueue))
}

func (m *Machine) runCombat(st *state.GameState) {
	ready := 0
	for _, c := range st.Active().Creatures() {
		if keywords.ReadyToAttack(c) {
			ready++
		}
	}
	st.Logf(state.CategoryPhase, "%s has %d creature(s) ready to attack", st.Active().Name, ready)
}

// runMain2 restores creatures whose card regenerates after attacking.
func (m *Machine) runMain2(st *state.GameState) {
	for _, c := range st.Active().Creatures() {
		if !c.Def.PostCombatRegen || !c.HasAttacked || c.CurrentHP <= 0 || !keywords.AbilitiesActive(c) {
			continue
		}
		if c.CurrentHP < c.Def.HP {
			c.CurrentHP = c.Def.HP
			st.Logf(state.CategoryHeal, "%s recovers after the hunt (%d hp)", c.Name(), c.CurrentHP)
		}
	}
}

// queueEndEffects queues onEnd effects and reports whether the queue is
// empty, meaning the turn can end right away.
func (m *Machine) queueEndEffects(st *state.GameState) bool {
	st.EndOfTurnQueue = nil
	for _, c := range fieldInstances(st.Active()) {
		if keywords.AbilitiesActive(c) && c.Def.HasEffect(card.OnEnd) {
			st.EndOfTurnQueue = append(st.EndOfTurnQueue, c.ID)
		}
	}
	if len(st.EndOfTurnQueue) == 0 {
		return true
	}
	st.Logf(state.CategoryPhase, "%d end-of-turn effect(s) to resolve", len(st.EndOfTurnQueue))
	return false
}

// FinalizeEndPhase applies the end-of-turn status passes in order: Regen,
// thaw, lethal-freeze deaths, paralysis release, then cleanup. It runs at
// most once per turn.
func (m *Machine) FinalizeEndPhase(st *state.GameState) bool {
	if st.EndOfTurnFinalized {
		return false
	}
	st.EndOfTurnFinalized = true
	active := st.Active()

	for _, c := range active.Creatures() {
		if keywords.Has(c, card.KeywordRegen) && c.CurrentHP > 0 && c.CurrentHP < c.Def.HP {
			c.CurrentHP = c.Def.HP
			st.Logf(state.CategoryHeal, "%s regenerates to %d hp", c.Name(), c.CurrentHP)
		}
	}
	for _, c := range active.Creatures() {
		if c.Frozen && c.FrozenDiesTurn == 0 {
			c.Frozen = false
			st.Logf(state.CategoryBuff, "%s thaws", c.Name())
		}
	}
	for _, p := range st.Players {
		for _, c := range p.Creatures() {
			if c.Frozen && c.FrozenDiesTurn > 0 && st.Turn >= c.FrozenDiesTurn && c.CurrentHP > 0 {
				c.CurrentHP = 0
				st.Logf(state.CategoryDeath, "%s succumbs to the freeze", c.Name())
			}
		}
	}
	for _, p := range st.Players {
		for _, c := range p.Creatures() {
			if c.Paralyzed && st.Turn >= c.ParalyzedUntilTurn {
				c.Paralyzed = false
				c.ParalyzedUntilTurn = 0
				st.Logf(state.CategoryBuff, "%s is no longer paralyzed", c.Name())
			}
		}
	}
	m.cleanup(st)
	return true
}

// EndTurn finishes the active player's turn and starts the opponent's. From
// a phase before End it first enters End, which may halt on onEnd effects.
func (m *Machine) EndTurn(st *state.GameState) bool {
	if !m.canAct(st) {
		return false
	}
	if len(st.BeforeCombatQueue) > 0 && st.Phase == state.PhaseBeforeCombat {
		st.LogAction(state.CategoryPhase, "Resolve before-combat effects first")
		return false
	}
	if st.Phase != state.PhaseEnd {
		st.Phase = state.PhaseEnd
		st.Logf(state.CategoryPhase, "%s phase", st.Phase)
		if !m.queueEndEffects(st) {
			st.Notify()
			return false
		}
	} else if len(st.EndOfTurnQueue) > 0 {
		st.Logf(state.CategoryPhase, "Resolve %d end-of-turn effect(s) first", len(st.EndOfTurnQueue))
		return false
	}

	m.FinalizeEndPhase(st)
	if st.IsOver() {
		st.Notify()
		return true
	}

	st.ActivePlayerIndex = state.Other(st.ActivePlayerIndex)
	st.Turn++
	st.Phase = state.PhaseStart
	if m.logger != nil {
		m.logger.Debug("turn passed",
			zap.String("game_id", st.ID),
			zap.Int("turn", st.Turn),
			zap.String("active", st.Active().ID))
	}
	m.StartTurn(st)
	return true
}

// ResolveQueuedEffect resolves one queued before-combat or end-of-turn
// effect for the active player. An empty id takes the head of the queue.
func (m *Machine) ResolveQueuedEffect(st *state.GameState, playerIndex int, instanceID string) bool {
	if !m.canAct(st) {
		return false
	}
	if playerIndex != st.ActivePlayerIndex {
		st.LogAction(state.CategorySystem, "Only the active player resolves queued effects")
		return false
	}

	var queue *[]string
	trigger := card.OnBeforeCombat
	switch st.Phase {
	case state.PhaseBeforeCombat:
		queue = &st.BeforeCombatQueue
	case state.PhaseEnd:
		queue = &st.EndOfTurnQueue
		trigger = card.OnEnd
	default:
		st.Logf(state.CategorySystem, "Nothing is queued during %s", st.Phase)
		return false
	}
	if len(*queue) == 0 {
		st.LogAction(state.CategorySystem, "The effect queue is empty")
		return false
	}
	if instanceID == "" {
		instanceID = (*queue)[0]
	}
	if !state.RemoveFromQueue(queue, instanceID) {
		st.LogAction(state.CategorySystem, "That effect is not queued")
		return false
	}

	c, loc, ok := st.FindOnField(instanceID)
	if !ok || loc.Player != playerIndex {
		st.LogAction(state.CategoryEffect, "The queued effect's source has left the field")
		st.Notify()
		return true
	}
	if trigger == card.OnBeforeCombat {
		c.BeforeCombatFired = true
	}
	if keywords.AbilitiesActive(c) {
		m.effects.Fire(st, c, trigger, playerIndex)
	}
	m.cleanup(st)
	st.Notify()
	return true
}

// cleanup settles deaths after any step that can deal damage.
func (m *Machine) cleanup(st *state.GameState) {
	m.combat.CleanupDestroyed(st, combat.CleanupOptions{})
}

// fieldInstances returns every occupied slot, spells in play included.
func fieldInstances(p *state.Player) []*card.Instance {
	var out []*card.Instance
	for _, c := range p.Field {
		if c != nil {
			out = append(out, c)
		}
	}
	return out
}
