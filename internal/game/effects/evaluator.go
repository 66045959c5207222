package effects

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/foodchain/foodchain-server-go/internal/game/card"
	"github.com/foodchain/foodchain-server-go/internal/game/state"
	"github.com/foodchain/foodchain-server-go/internal/game/targeting"
)

// ScriptEnv is the read-only view a script hook receives.
type ScriptEnv struct {
	Trigger     string
	SourceID    string
	SourceName  string
	SourceAtk   int
	SourceHP    int
	Turn        int
	PlayerHP    int
	OpponentHP  int
	Friendly    int
	Enemies     int
	HandSize    int
	PlayerIndex int
}

// ScriptRunner evaluates a named hook into plain descriptors. Returned
// descriptors must not be Script descriptors themselves.
type ScriptRunner interface {
	RunHook(hook string, env ScriptEnv) ([]card.Effect, error)
}

// Evaluator maps declared effect descriptors to a Result.
type Evaluator struct {
	logger  *zap.Logger
	scripts ScriptRunner
}

// NewEvaluator creates an evaluator. scripts may be nil, in which case
// Script descriptors fire nothing.
func NewEvaluator(logger *zap.Logger, scripts ScriptRunner) *Evaluator {
	return &Evaluator{logger: logger, scripts: scripts}
}

// Evaluate returns what c's effects for trigger do right now. c may already
// be off the field (onSlain).
func (e *Evaluator) Evaluate(st *state.GameState, c *card.Instance, trigger card.Trigger, ownerIndex int) Result {
	if c == nil || c.Def == nil {
		return Result{}
	}
	effects := c.Def.EffectsFor(trigger)
	if len(effects) == 0 {
		return Result{}
	}
	ctx := state.EffectContext{
		SourceID:    c.ID,
		SourceName:  c.Name(),
		PlayerIndex: ownerIndex,
		Trigger:     trigger,
	}
	return Result{Ops: e.evaluate(st, effects, ctx)}
}

// EvaluateEffects evaluates a descriptor list under a saved context. It is
// the continuation step after a selection.
func (e *Evaluator) EvaluateEffects(st *state.GameState, effects []card.Effect, ctx state.EffectContext) Result {
	return Result{Ops: e.evaluate(st, effects, ctx)}
}

func (e *Evaluator) evaluate(st *state.GameState, effects []card.Effect, ctx state.EffectContext) []Op {
	var ops []Op
	src := targeting.Source{ID: ctx.SourceID, PlayerIndex: ctx.PlayerIndex}
	opp := state.Other(ctx.PlayerIndex)

	for i, eff := range effects {
		switch d := eff.(type) {
		case card.Heal:
			ops = append(ops, Heal{Player: ctx.PlayerIndex, Amount: d.Amount})
		case card.DamageOpponent:
			ops = append(ops, DamagePlayer{Player: opp, Amount: d.Amount})
		case card.Summon:
			ops = append(ops, SummonTokens{Player: ctx.PlayerIndex, TokenIDs: append([]string(nil), d.Tokens...)})
		case card.Draw:
			ops = append(ops, DrawCards{Player: ctx.PlayerIndex, Count: d.Count})
		case card.Script:
			rest := append(e.runScript(st, d.Hook, ctx), effects[i+1:]...)
			return append(ops, e.evaluate(st, rest, ctx)...)
		case card.DamageCreatures, card.Kill, card.Transform, card.CopyAbilities,
			card.Buff, card.Freeze, card.GrantKeyword:
			sel, _ := card.TargetOf(eff)
			if sel.IsChoice() {
				candidates := targeting.Candidates(st, sel, src)
				if _, isCopy := eff.(card.CopyAbilities); isCopy {
					candidates = withoutID(candidates, ctx.SourceID)
				}
				if len(candidates) == 0 {
					st.Logf(state.CategoryEffect, "%s: no valid target", ctx.SourceName)
					continue
				}
				return append(ops, SelectTarget{
					PlayerIndex: ctx.PlayerIndex,
					Candidates:  targeting.IDs(candidates),
					Effect:      eff,
					Remaining:   append([]card.Effect(nil), effects[i+1:]...),
					Context:     ctx,
				})
			}
			for _, target := range targeting.Resolve(st, sel, src) {
				if op := bind(eff, target.ID, ctx); op != nil {
					ops = append(ops, op)
				}
			}
		default:
			if e.logger != nil {
				e.logger.Warn("unknown effect descriptor", zap.String("type", fmt.Sprintf("%T", eff)))
			}
		}
	}
	return ops
}

// runScript drops any Script descriptors a hook returns, so scripts never
// recurse.
func (e *Evaluator) runScript(st *state.GameState, hook string, ctx state.EffectContext) []card.Effect {
	if e.scripts == nil {
		return nil
	}
	env := buildScriptEnv(st, ctx)
	effects, err := e.scripts.RunHook(hook, env)
	if err != nil {
		if e.logger != nil {
			e.logger.Warn("card script failed",
				zap.String("hook", hook),
				zap.String("card", ctx.SourceName),
				zap.Error(err))
		}
		return nil
	}
	out := effects[:0:0]
	for _, eff := range effects {
		if _, nested := eff.(card.Script); nested {
			continue
		}
		out = append(out, eff)
	}
	return out
}

func buildScriptEnv(st *state.GameState, ctx state.EffectContext) ScriptEnv {
	env := ScriptEnv{
		Trigger:     ctx.Trigger.String(),
		SourceID:    ctx.SourceID,
		SourceName:  ctx.SourceName,
		PlayerIndex: ctx.PlayerIndex,
	}
	if st == nil || ctx.PlayerIndex < 0 || ctx.PlayerIndex > 1 {
		return env
	}
	me, them := st.Players[ctx.PlayerIndex], st.Players[state.Other(ctx.PlayerIndex)]
	env.Turn = st.Turn
	env.PlayerHP = me.HP
	env.OpponentHP = them.HP
	env.Friendly = len(me.Creatures())
	env.Enemies = len(them.Creatures())
	env.HandSize = len(me.Hand)
	if c, _, ok := st.FindOnField(ctx.SourceID); ok {
		env.SourceAtk = c.CurrentAtk
		env.SourceHP = c.CurrentHP
	}
	return env
}

func withoutID(cs []*card.Instance, id string) []*card.Instance {
	out := cs[:0:0]
	for _, c := range cs {
		if c.ID != id {
			out = append(out, c)
		}
	}
	return out
}
