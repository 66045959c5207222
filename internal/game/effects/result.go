// Package effects turns card effect descriptors into concrete operations and
// applies them to game state.
//
// The Evaluator never mutates state. The Resolver is an exhaustive switch
// over the Op variants below.
package effects

import (
	"github.com/foodchain/foodchain-server-go/internal/game/card"
	"github.com/foodchain/foodchain-server-go/internal/game/state"
)

// Op is one concrete state change.
type Op interface {
	isOp()
}

// Heal restores hp to a player.
type Heal struct {
	Player int
	Amount int
}

// DamagePlayer removes hp from a player.
type DamagePlayer struct {
	Player int
	Amount int
}

// DamageCreature deals non-combat damage. Barrier and Shell still absorb it.
type DamageCreature struct {
	TargetID string
	Amount   int
}

// KillCreature sets hp to 0; death is settled by the next cleanup.
type KillCreature struct {
	TargetID string
}

// TransformCard replaces a field creature with a fresh instance of Into.
type TransformCard struct {
	TargetID string
	Into     string
}

// SummonTokens places token creatures on a player's field.
type SummonTokens struct {
	Player   int
	TokenIDs []string
}

// CopyAbilities adds the keywords of From to To.
type CopyAbilities struct {
	FromID string
	ToID   string
}

// BuffCreature changes current attack and hp.
type BuffCreature struct {
	TargetID string
	Atk      int
	HP       int
}

// FreezeCreature freezes a creature, optionally with a death timer.
type FreezeCreature struct {
	TargetID string
	Lethal   bool
}

// GrantKeyword adds a keyword to a creature.
type GrantKeyword struct {
	TargetID string
	Keyword  card.Keyword
}

// DrawCards draws for a player.
type DrawCards struct {
	Player int
	Count  int
}

// TriggerOnPlay fires the onPlay effects of an instance that entered the
// field through another effect.
type TriggerOnPlay struct {
	InstanceID string
	Player     int
}

// SelectTarget pauses resolution until PlayerIndex picks one of the
// candidates. Effect is applied to the choice, then Remaining is evaluated.
type SelectTarget struct {
	PlayerIndex int
	Candidates  []string
	Effect      card.Effect
	Remaining   []card.Effect
	Context     state.EffectContext
}

func (Heal) isOp()           {}
func (DamagePlayer) isOp()   {}
func (DamageCreature) isOp() {}
func (KillCreature) isOp()   {}
func (TransformCard) isOp()  {}
func (SummonTokens) isOp()   {}
func (CopyAbilities) isOp()  {}
func (BuffCreature) isOp()   {}
func (FreezeCreature) isOp() {}
func (GrantKeyword) isOp()   {}
func (DrawCards) isOp()      {}
func (TriggerOnPlay) isOp()  {}
func (SelectTarget) isOp()   {}

// Result is the output of one effect evaluation. An empty Result means no
// effect fired.
type Result struct {
	Ops []Op
}

// Empty reports whether nothing fired.
func (r Result) Empty() bool {
	return len(r.Ops) == 0
}

// bind turns a targeted descriptor into the op for one concrete target.
// Untargeted descriptors return nil.
func bind(eff card.Effect, targetID string, ctx state.EffectContext) Op {
	switch e := eff.(type) {
	case card.DamageCreatures:
		return DamageCreature{TargetID: targetID, Amount: e.Amount}
	case card.Kill:
		return KillCreature{TargetID: targetID}
	case card.Transform:
		return TransformCard{TargetID: targetID, Into: e.Into}
	case card.CopyAbilities:
		return CopyAbilities{FromID: targetID, ToID: ctx.SourceID}
	case card.Buff:
		return BuffCreature{TargetID: targetID, Atk: e.Atk, HP: e.HP}
	case card.Freeze:
		return FreezeCreature{TargetID: targetID, Lethal: e.Lethal}
	case card.GrantKeyword:
		return GrantKeyword{TargetID: targetID, Keyword: e.Keyword}
	default:
		return nil
	}
}
