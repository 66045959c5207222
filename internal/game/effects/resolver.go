package effects

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/foodchain/foodchain-server-go/internal/game/card"
	"github.com/foodchain/foodchain-server-go/internal/game/keywords"
	"github.com/foodchain/foodchain-server-go/internal/game/state"
	"github.com/foodchain/foodchain-server-go/internal/game/targeting"
)

// Definitions looks up card definitions for transforms and token summons.
type Definitions interface {
	Get(id string) (*card.Definition, bool)
}

// Resolver applies Results to game state. It does not run death cleanup;
// callers settle deaths after resolution.
type Resolver struct {
	logger    *zap.Logger
	defs      Definitions
	evaluator *Evaluator
}

// NewResolver creates a resolver.
func NewResolver(logger *zap.Logger, defs Definitions, evaluator *Evaluator) *Resolver {
	return &Resolver{logger: logger, defs: defs, evaluator: evaluator}
}

// Fire evaluates c's effects for trigger and resolves them. It reports
// whether anything fired.
func (r *Resolver) Fire(st *state.GameState, c *card.Instance, trigger card.Trigger, ownerIndex int) bool {
	res := r.evaluator.Evaluate(st, c, trigger, ownerIndex)
	if res.Empty() {
		return false
	}
	st.Logf(state.CategoryEffect, "%s: %s effect", c.Name(), trigger)
	r.Resolve(st, res, state.EffectContext{
		SourceID:    c.ID,
		SourceName:  c.Name(),
		PlayerIndex: ownerIndex,
		Trigger:     trigger,
	})
	return true
}

// Resolve applies every op in order. Ops that enter creatures may chain
// further onPlay effects, which are applied before the next op. It reports
// whether a target selection is now pending.
func (r *Resolver) Resolve(st *state.GameState, res Result, ctx state.EffectContext) bool {
	if r.logger != nil && !res.Empty() {
		r.logger.Debug("resolving effect",
			zap.String("game_id", st.ID),
			zap.String("source", ctx.SourceName),
			zap.Stringer("trigger", ctx.Trigger),
			zap.Int("ops", len(res.Ops)))
	}
	queue := append([]Op(nil), res.Ops...)
	for len(queue) > 0 {
		op := queue[0]
		queue = queue[1:]
		if follow := r.apply(st, op); len(follow) > 0 {
			queue = append(follow, queue...)
		}
	}
	return st.Pending != nil
}

// ResolveSelection answers the pending decision with choiceID, applies the
// paused effect to it and continues with the remaining descriptors. Invalid
// choices are logged and leave the decision pending.
func (r *Resolver) ResolveSelection(st *state.GameState, playerIndex int, choiceID string) bool {
	target, err := targeting.NewValidator(st).ValidateSelection(playerIndex, choiceID)
	if err != nil {
		st.Logf(state.CategorySystem, "Invalid selection: %v", err)
		return false
	}
	pending := st.Pending
	st.Pending = nil
	st.Logf(state.CategoryEffect, "%s targets %s", pending.Context.SourceName, target.Name())

	if op := bind(pending.Effect, target.ID, pending.Context); op != nil {
		r.Resolve(st, Result{Ops: []Op{op}}, pending.Context)
	}
	r.continueWith(st, pending)
	return true
}

// CancelSelection drops the paused effect and continues with the remaining
// descriptors. Only the choosing player may cancel.
func (r *Resolver) CancelSelection(st *state.GameState, playerIndex int) bool {
	pending := st.Pending
	if pending == nil || pending.PlayerIndex != playerIndex {
		st.LogAction(state.CategorySystem, "No selection to cancel")
		return false
	}
	st.Pending = nil
	st.Logf(state.CategoryEffect, "%s: selection skipped", pending.Context.SourceName)
	r.continueWith(st, pending)
	return true
}

func (r *Resolver) continueWith(st *state.GameState, pending *state.PendingDecision) {
	if len(pending.Remaining) == 0 {
		return
	}
	r.Resolve(st, r.evaluator.EvaluateEffects(st, pending.Remaining, pending.Context), pending.Context)
}

func (r *Resolver) apply(st *state.GameState, op Op) []Op {
	switch o := op.(type) {
	case Heal:
		p := st.Players[o.Player]
		p.HP += o.Amount
		st.Logf(state.CategoryHeal, "%s heals %d (%d hp)", p.Name, o.Amount, p.HP)
	case DamagePlayer:
		p := st.Players[o.Player]
		p.HP -= o.Amount
		st.Logf(state.CategoryEffect, "%s takes %d damage (%d hp)", p.Name, o.Amount, p.HP)
	case DamageCreature:
		c := r.liveTarget(st, o.TargetID)
		if c == nil {
			return nil
		}
		hit := keywords.TakeHit(c, o.Amount)
		switch {
		case hit.Blocked:
			st.Logf(state.CategoryEffect, "%s's Barrier blocks %d damage", c.Name(), o.Amount)
		case hit.ShellAbsorbed > 0:
			st.Logf(state.CategoryEffect, "%s takes %d damage (%d absorbed by Shell)", c.Name(), hit.HPDamage, hit.ShellAbsorbed)
		default:
			st.Logf(state.CategoryEffect, "%s takes %d damage", c.Name(), hit.HPDamage)
		}
	case KillCreature:
		c := r.liveTarget(st, o.TargetID)
		if c == nil {
			return nil
		}
		c.CurrentHP = 0
		st.Logf(state.CategoryEffect, "%s is destroyed", c.Name())
	case TransformCard:
		return r.transform(st, o)
	case SummonTokens:
		return r.summon(st, o)
	case CopyAbilities:
		from, to := r.liveTarget(st, o.FromID), r.liveTarget(st, o.ToID)
		if from == nil || to == nil || from.ID == to.ID {
			return nil
		}
		for _, k := range from.Keywords {
			grantKeyword(to, k, from.ShellLevel)
		}
		st.Logf(state.CategoryBuff, "%s copies the abilities of %s", to.Name(), from.Name())
	case BuffCreature:
		c := r.liveTarget(st, o.TargetID)
		if c == nil {
			return nil
		}
		c.CurrentAtk = max(c.CurrentAtk+o.Atk, 0)
		c.CurrentHP += o.HP
		cat := state.CategoryBuff
		if o.Atk < 0 || o.HP < 0 {
			cat = state.CategoryDebuff
		}
		st.Logf(cat, "%s becomes %d/%d", c.Name(), c.CurrentAtk, c.CurrentHP)
	case FreezeCreature:
		c := r.liveTarget(st, o.TargetID)
		if c == nil {
			return nil
		}
		c.Frozen = true
		if o.Lethal {
			c.FrozenDiesTurn = st.Turn + 1
			st.Logf(state.CategoryDebuff, "%s is frozen and will die at the end of turn %d", c.Name(), c.FrozenDiesTurn)
		} else {
			st.Logf(state.CategoryDebuff, "%s is frozen", c.Name())
		}
	case GrantKeyword:
		c := r.liveTarget(st, o.TargetID)
		if c == nil {
			return nil
		}
		grantKeyword(c, o.Keyword, 1)
		st.Logf(state.CategoryBuff, "%s gains %s", c.Name(), o.Keyword)
	case DrawCards:
		p := st.Players[o.Player]
		drawn := 0
		for range o.Count {
			if _, ok := p.Draw(); !ok {
				break
			}
			drawn++
		}
		st.Logf(state.CategoryEffect, "%s draws %d card(s)", p.Name, drawn)
	case TriggerOnPlay:
		c := r.liveTarget(st, o.InstanceID)
		if c == nil {
			return nil
		}
		return r.evaluator.Evaluate(st, c, card.OnPlay, o.Player).Ops
	case SelectTarget:
		r.pause(st, o)
	default:
		if r.logger != nil {
			r.logger.Warn("unknown effect op", zap.String("type", fmt.Sprintf("%T", op)))
		}
	}
	return nil
}

// pause stores a selection. Only one decision can be open; a second one
// raised while the first is pending is answered at random.
func (r *Resolver) pause(st *state.GameState, o SelectTarget) {
	if st.Pending == nil {
		st.Pending = &state.PendingDecision{
			PlayerIndex: o.PlayerIndex,
			Candidates:  o.Candidates,
			Effect:      o.Effect,
			Remaining:   o.Remaining,
			Context:     o.Context,
		}
		st.Logf(state.CategoryEffect, "%s: choose a target", o.Context.SourceName)
		return
	}
	if len(o.Candidates) == 0 {
		return
	}
	choice := o.Candidates[st.Rand().IntN(len(o.Candidates))]
	st.Logf(state.CategoryEffect, "%s: target chosen at random", o.Context.SourceName)
	if op := bind(o.Effect, choice, o.Context); op != nil {
		r.Resolve(st, Result{Ops: []Op{op}}, o.Context)
	}
	if len(o.Remaining) > 0 {
		r.Resolve(st, r.evaluator.EvaluateEffects(st, o.Remaining, o.Context), o.Context)
	}
}

func (r *Resolver) transform(st *state.GameState, o TransformCard) []Op {
	old, loc, ok := st.FindOnField(o.TargetID)
	if !ok {
		return nil
	}
	def, ok := r.defs.Get(o.Into)
	if !ok {
		if r.logger != nil {
			r.logger.Warn("transform into unknown card", zap.String("card", o.Into))
		}
		return nil
	}
	next := card.NewInstance(def)
	next.SummonedTurn = old.SummonedTurn
	keywords.ApplyEntryStatuses(next)
	st.Players[loc.Player].Field[loc.Slot] = next
	state.RemoveFromQueue(&st.BeforeCombatQueue, old.ID)
	state.RemoveFromQueue(&st.EndOfTurnQueue, old.ID)
	st.Logf(state.CategoryEffect, "%s transforms into %s", old.Name(), next.Name())
	if def.HasEffect(card.OnPlay) {
		return []Op{TriggerOnPlay{InstanceID: next.ID, Player: loc.Player}}
	}
	return nil
}

func (r *Resolver) summon(st *state.GameState, o SummonTokens) []Op {
	p := st.Players[o.Player]
	var follow []Op
	for _, id := range o.TokenIDs {
		def, ok := r.defs.Get(id)
		if !ok {
			if r.logger != nil {
				r.logger.Warn("summon of unknown card", zap.String("card", id))
			}
			continue
		}
		slot := p.FirstEmptySlot()
		if slot < 0 {
			st.Logf(state.CategoryEffect, "No room to summon %s", def.Name)
			break
		}
		tok := card.NewInstance(def)
		tok.SummonedTurn = st.Turn
		keywords.ApplyEntryStatuses(tok)
		p.Place(tok, slot)
		st.Logf(state.CategoryPlay, "%s summons %s", p.Name, tok.Name())
		if def.HasEffect(card.OnPlay) {
			follow = append(follow, TriggerOnPlay{InstanceID: tok.ID, Player: o.Player})
		}
	}
	return follow
}

// liveTarget finds a field creature that is still alive.
func (r *Resolver) liveTarget(st *state.GameState, id string) *card.Instance {
	c, _, ok := st.FindOnField(id)
	if !ok || c.CurrentHP <= 0 {
		return nil
	}
	return c
}

// grantKeyword adds k and sets up the status it carries on entry.
func grantKeyword(c *card.Instance, k card.Keyword, shellLevel int) {
	if c.Keywords.Has(k) {
		return
	}
	c.Keywords = c.Keywords.With(k)
	switch k {
	case card.KeywordBarrier:
		c.HasBarrier = keywords.AbilitiesActive(c)
	case card.KeywordShell:
		c.ShellLevel = max(shellLevel, 1)
		if keywords.AbilitiesActive(c) {
			c.CurrentShell = c.ShellLevel
		}
	}
}
