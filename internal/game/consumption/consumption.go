// Package consumption resolves a predator eating prey: nutrition accounting,
// stat growth, carrion placement, dry-drops and the extended window.
package consumption

import (
	"go.uber.org/zap"

	"github.com/foodchain/foodchain-server-go/internal/game/card"
	"github.com/foodchain/foodchain-server-go/internal/game/effects"
	"github.com/foodchain/foodchain-server-go/internal/game/keywords"
	"github.com/foodchain/foodchain-server-go/internal/game/state"
)

// Request names what a predator eats. PreyIDs are on the owner's field,
// CarrionIDs in the owner's carrion.
type Request struct {
	Predator    *card.Instance
	PreyIDs     []string
	CarrionIDs  []string
	PlayerIndex int
}

// Outcome reports what one consumption did.
type Outcome struct {
	Consumed  int
	Nutrition int
	Eaten     []string
}

// Engine resolves consumption.
type Engine struct {
	logger   *zap.Logger
	resolver *effects.Resolver
}

// NewEngine creates a consumption engine that fires onConsume through resolver.
func NewEngine(logger *zap.Logger, resolver *effects.Resolver) *Engine {
	return &Engine{logger: logger, resolver: resolver}
}

// ConsumablePrey lists the field prey and carrion entries predator can eat
// right now. Carrion is only on the menu for an active Scavenge.
func ConsumablePrey(st *state.GameState, predator *card.Instance, playerIndex int) (field, carrion []*card.Instance) {
	if !keywords.CanConsume(predator) || playerIndex < 0 || playerIndex > 1 {
		return nil, nil
	}
	owner := st.Players[playerIndex]
	for _, c := range owner.Creatures() {
		if c.ID != predator.ID && c.CurrentHP > 0 && edibleBy(predator, c) {
			field = append(field, c)
		}
	}
	if keywords.Has(predator, card.KeywordScavenge) {
		for _, c := range owner.Carrion {
			if edibleBy(predator, c) {
				carrion = append(carrion, c)
			}
		}
	}
	return field, carrion
}

// edibleBy applies the per-prey checks: eligible prey whose nutrition does
// not exceed the predator's current attack.
func edibleBy(predator, prey *card.Instance) bool {
	return keywords.CanBeConsumed(prey) && keywords.Nutrition(prey) <= predator.CurrentAtk
}

// ConsumePrey eats the requested prey, up to limit in total. Ineligible or
// missing ids are skipped with a log line. Eaten field prey go to carrion
// (tokens are discarded); eaten carrion is gone. Growth is +1/+1 per point
// of nutrition, applied once for the whole meal. onConsume is not fired here.
func (e *Engine) ConsumePrey(st *state.GameState, req Request, limit int) Outcome {
	var out Outcome
	pred := req.Predator
	if !keywords.CanConsume(pred) || req.PlayerIndex < 0 || req.PlayerIndex > 1 {
		return out
	}
	owner := st.Players[req.PlayerIndex]
	atk := pred.CurrentAtk

	for _, id := range req.PreyIDs {
		if out.Consumed >= limit {
			break
		}
		slot := owner.SlotOf(id)
		if slot < 0 || id == pred.ID {
			st.Logf(state.CategoryConsume, "%s cannot eat a creature that is not on its field", pred.Name())
			continue
		}
		prey := owner.Field[slot]
		if prey.CurrentHP <= 0 || !keywords.CanBeConsumed(prey) || keywords.Nutrition(prey) > atk {
			st.Logf(state.CategoryConsume, "%s cannot eat %s", pred.Name(), prey.Name())
			continue
		}
		n := keywords.Nutrition(prey)
		owner.RemoveFromField(id)
		state.RemoveFromQueue(&st.BeforeCombatQueue, id)
		state.RemoveFromQueue(&st.EndOfTurnQueue, id)
		owner.Bury(prey)
		out.Consumed++
		out.Nutrition += n
		out.Eaten = append(out.Eaten, id)
		st.Logf(state.CategoryConsume, "%s consumes %s (+%d nutrition)", pred.Name(), prey.Name(), n)
	}

	if len(req.CarrionIDs) > 0 && !keywords.Has(pred, card.KeywordScavenge) {
		st.Logf(state.CategoryConsume, "%s cannot scavenge", pred.Name())
	} else {
		for _, id := range req.CarrionIDs {
			if out.Consumed >= limit {
				break
			}
			i := owner.CarrionIndex(id)
			if i < 0 {
				continue
			}
			prey := owner.Carrion[i]
			if !keywords.CanBeConsumed(prey) || keywords.Nutrition(prey) > atk {
				st.Logf(state.CategoryConsume, "%s cannot scavenge %s", pred.Name(), prey.Name())
				continue
			}
			n := keywords.Nutrition(prey)
			owner.RemoveFromCarrion(id)
			out.Consumed++
			out.Nutrition += n
			out.Eaten = append(out.Eaten, id)
			st.Logf(state.CategoryConsume, "%s scavenges %s (+%d nutrition)", pred.Name(), prey.Name(), n)
		}
	}

	if out.Nutrition > 0 {
		pred.CurrentAtk += out.Nutrition
		pred.CurrentHP += out.Nutrition
		st.Logf(state.CategoryBuff, "%s grows to %d/%d", pred.Name(), pred.CurrentAtk, pred.CurrentHP)
	}
	if e.logger != nil && out.Consumed > 0 {
		e.logger.Debug("predator consumed prey",
			zap.String("game_id", st.ID),
			zap.String("predator", pred.Name()),
			zap.Int("consumed", out.Consumed),
			zap.Int("nutrition", out.Nutrition))
	}
	return out
}

// EnterPlay resolves a predator entering the field from hand: it eats,
// takes a free slot, becomes dry-dropped if it ate nothing, and otherwise
// fires onConsume exactly once and may open the extended window.
// Precondition: the caller has checked that a slot will be free.
func (e *Engine) EnterPlay(st *state.GameState, req Request) (Outcome, bool) {
	pred := req.Predator
	owner := st.Players[req.PlayerIndex]
	out := e.ConsumePrey(st, req, st.Rules.MaxConsumption)

	slot := owner.FirstEmptySlot()
	if slot < 0 {
		st.Logf(state.CategoryPlay, "No room on the field for %s", pred.Name())
		return out, false
	}
	pred.SummonedTurn = st.Turn
	if out.Consumed == 0 {
		pred.DryDropped = true
		st.Logf(state.CategoryConsume, "%s is dry-dropped and loses its abilities", pred.Name())
	}
	keywords.ApplyEntryStatuses(pred)
	owner.Place(pred, slot)

	if out.Consumed > 0 {
		e.resolver.Fire(st, pred, card.OnConsume, req.PlayerIndex)
		e.OpenWindow(st, pred, req.PlayerIndex, out.Consumed)
	}
	return out, true
}

// OpenWindow opens the extended consumption window when the predator has
// eaten fewer than the cap and more prey is available.
func (e *Engine) OpenWindow(st *state.GameState, pred *card.Instance, playerIndex, consumed int) bool {
	if consumed <= 0 || consumed >= st.Rules.MaxConsumption {
		return false
	}
	field, carrion := ConsumablePrey(st, pred, playerIndex)
	if len(field)+len(carrion) == 0 {
		return false
	}
	st.ExtendedConsumption = &state.ConsumptionWindow{
		PredatorID:  pred.ID,
		PlayerIndex: playerIndex,
		Consumed:    consumed,
	}
	st.Logf(state.CategoryConsume, "%s may keep eating (%d/%d)", pred.Name(), consumed, st.Rules.MaxConsumption)
	return true
}

// ExtendConsumption lets the window's predator eat more. onConsume does not
// fire again. The window closes at the cap or when nothing is left to eat.
func (e *Engine) ExtendConsumption(st *state.GameState, preyIDs, carrionIDs []string) (Outcome, bool) {
	w := st.ExtendedConsumption
	if w == nil {
		st.LogAction(state.CategoryConsume, "No consumption window is open")
		return Outcome{}, false
	}
	if w.PlayerIndex != st.ActivePlayerIndex {
		st.LogAction(state.CategoryConsume, "The consumption window belongs to the other player")
		return Outcome{}, false
	}
	pred, loc, ok := st.FindOnField(w.PredatorID)
	if !ok || loc.Player != w.PlayerIndex || !keywords.CanConsume(pred) {
		e.CloseWindow(st)
		return Outcome{}, false
	}
	out := e.ConsumePrey(st, Request{
		Predator:    pred,
		PreyIDs:     preyIDs,
		CarrionIDs:  carrionIDs,
		PlayerIndex: w.PlayerIndex,
	}, st.Rules.MaxConsumption-w.Consumed)
	w.Consumed += out.Consumed

	field, carrion := ConsumablePrey(st, pred, w.PlayerIndex)
	if w.Consumed >= st.Rules.MaxConsumption || len(field)+len(carrion) == 0 {
		e.CloseWindow(st)
	}
	return out, out.Consumed > 0
}

// CloseWindow closes any open window.
func (e *Engine) CloseWindow(st *state.GameState) bool {
	if st.ExtendedConsumption == nil {
		return false
	}
	st.ExtendedConsumption = nil
	st.LogAction(state.CategoryConsume, "Consumption window closed")
	return true
}
