// Package keywords answers whether a creature currently has a capability and
// holds the only functions that write keyword-driven status.
//
// Predicates are pure. Mutators return whether they changed anything and are
// no-ops on nil input or when their precondition does not hold.
package keywords

import (
	"github.com/foodchain/foodchain-server-go/internal/game/card"
	"github.com/foodchain/foodchain-server-go/internal/game/state"
)

// capability describes how a keyword interacts with the abilities-active gate.
type capability struct {
	// drawback keywords restrict their holder and stay in force when
	// abilities are suppressed.
	drawback bool
}

var capabilities = map[card.Keyword]capability{
	card.KeywordHaste:      {},
	card.KeywordBarrier:    {},
	card.KeywordShell:      {},
	card.KeywordMolt:       {},
	card.KeywordToxic:      {},
	card.KeywordNeurotoxic: {},
	card.KeywordPoisonous:  {},
	card.KeywordAmbush:     {},
	card.KeywordStalk:      {},
	card.KeywordPride:      {},
	card.KeywordLure:       {},
	card.KeywordWeb:        {},
	card.KeywordHidden:     {},
	card.KeywordInvisible:  {},
	card.KeywordRegen:      {},
	card.KeywordScavenge:   {},
	card.KeywordImmune:     {},
	card.KeywordHarmless:   {drawback: true},
	card.KeywordPassive:    {drawback: true},
	card.KeywordInedible:   {drawback: true},
	card.KeywordEdible:     {drawback: true},
}

// AbilitiesActive is the gate every beneficial keyword passes through: a
// dry-dropped creature or one with cancelled abilities has none.
func AbilitiesActive(c *card.Instance) bool {
	return c != nil && !c.DryDropped && !c.AbilitiesCancelled
}

// HasKeyword reports raw presence of k, ignoring suppression.
func HasKeyword(c *card.Instance, k card.Keyword) bool {
	return c != nil && c.Keywords.Has(k)
}

// Has reports whether k is present and in force.
func Has(c *card.Instance, k card.Keyword) bool {
	if !HasKeyword(c, k) {
		return false
	}
	if capabilities[k].drawback {
		return true
	}
	return AbilitiesActive(c)
}

// CanAttack is false for frozen, webbed or paralyzed creatures and for
// Passive or Harmless ones.
func CanAttack(c *card.Instance) bool {
	if c == nil || !c.Type().IsCreature() || c.CurrentHP <= 0 {
		return false
	}
	if c.Frozen || c.Webbed || c.Paralyzed {
		return false
	}
	return !Has(c, card.KeywordPassive) && !Has(c, card.KeywordHarmless)
}

// ReadyToAttack adds the once-per-turn limit to CanAttack.
func ReadyToAttack(c *card.Instance) bool {
	return CanAttack(c) && !c.HasAttacked
}

// CanAttackPlayer requires a creature summoned on an earlier turn unless it
// has Haste.
func CanAttackPlayer(c *card.Instance, turn int) bool {
	if !CanAttack(c) {
		return false
	}
	return c.SummonedTurn < turn || Has(c, card.KeywordHaste)
}

// CanBeAttacked is false for Hidden, Invisible and stalking creatures.
func CanBeAttacked(c *card.Instance) bool {
	if c == nil || !c.Type().IsCreature() {
		return false
	}
	if c.Hidden {
		return false
	}
	return !Has(c, card.KeywordHidden) && !Has(c, card.KeywordInvisible)
}

// CanBeConsumed checks the prey side: not frozen, not Inedible, and either a
// prey or an Edible predator.
func CanBeConsumed(c *card.Instance) bool {
	if c == nil || c.Frozen || Has(c, card.KeywordInedible) {
		return false
	}
	switch c.Type() {
	case card.TypePrey:
		return true
	case card.TypePredator:
		return Has(c, card.KeywordEdible)
	default:
		return false
	}
}

// CanConsume checks the predator side.
func CanConsume(c *card.Instance) bool {
	return c != nil && c.Type() == card.TypePredator && !c.Frozen
}

// Nutrition is the feed value of prey. Edible predators are worth their
// current attack.
func Nutrition(c *card.Instance) int {
	if c == nil || c.Def == nil {
		return 0
	}
	if c.Type() == card.TypePredator {
		return max(c.CurrentAtk, 0)
	}
	return c.Def.Nutrition
}

// IsStalking reports the stalking status.
func IsStalking(c *card.Instance) bool {
	return c != nil && c.Stalking
}

// HasMolt reports an unused, active Molt.
func HasMolt(c *card.Instance) bool {
	return Has(c, card.KeywordMolt)
}

// PrideBonus is the pack bonus: +1 while another active Pride creature
// shares the field.
func PrideBonus(c *card.Instance, st *state.GameState, ownerIndex int) int {
	if !Has(c, card.KeywordPride) || st == nil || ownerIndex < 0 || ownerIndex > 1 {
		return 0
	}
	for _, ally := range st.Players[ownerIndex].Creatures() {
		if ally.ID != c.ID && ally.CurrentHP > 0 && Has(ally, card.KeywordPride) {
			return 1
		}
	}
	return 0
}

// GetEffectiveAttack is the damage c deals right now. Combat uses it
// exclusively; the Pride and Stalk parts are never written to CurrentAtk.
func GetEffectiveAttack(c *card.Instance, st *state.GameState, ownerIndex int) int {
	if c == nil {
		return 0
	}
	atk := c.CurrentAtk + PrideBonus(c, st, ownerIndex)
	if IsStalking(c) {
		atk += c.StalkBonus
	}
	return max(atk, 0)
}

// EnterStalking starts stalking: the creature becomes Hidden and begins
// accumulating a bonus.
func EnterStalking(c *card.Instance) bool {
	if c == nil || c.Stalking || !Has(c, card.KeywordStalk) {
		return false
	}
	c.Stalking = true
	c.Hidden = true
	c.StalkBonus = 0
	return true
}

// EndStalking drops the stalking state and its bonus.
func EndStalking(c *card.Instance) bool {
	if c == nil || !c.Stalking {
		return false
	}
	c.Stalking = false
	c.Hidden = false
	c.StalkBonus = 0
	return true
}

// GrowStalkBonus adds one to the stalk bonus up to limit.
func GrowStalkBonus(c *card.Instance, limit int) bool {
	if !IsStalking(c) || c.StalkBonus >= limit {
		return false
	}
	c.StalkBonus++
	return true
}

// TriggerMolt revives c at 1 hp and wipes its keywords, Shell included. A
// molted creature has no Molt left, so a second call returns false.
func TriggerMolt(c *card.Instance) bool {
	if !HasMolt(c) {
		return false
	}
	c.CurrentHP = 1
	c.Keywords = card.Keywords{}
	c.ShellLevel = 0
	c.CurrentShell = 0
	c.HasBarrier = false
	c.DiedInCombat = false
	c.SlainBy = nil
	return true
}

// ShellResult splits one hit between the shell and hp.
type ShellResult struct {
	ShellAbsorbed int
	HPDamage      int
}

// ApplyDamageWithShell drains the shell charge by up to damage and returns
// the remainder that passes through. HP is left to the caller.
func ApplyDamageWithShell(c *card.Instance, damage int) ShellResult {
	if c == nil || damage <= 0 {
		return ShellResult{}
	}
	absorbed := min(max(c.CurrentShell, 0), damage)
	c.CurrentShell -= absorbed
	return ShellResult{ShellAbsorbed: absorbed, HPDamage: damage - absorbed}
}

// RechargeShell restores the shell to its level.
func RechargeShell(c *card.Instance) bool {
	if !Has(c, card.KeywordShell) || c.CurrentShell >= c.ShellLevel {
		return false
	}
	c.CurrentShell = c.ShellLevel
	return true
}

// ApplyEntryStatuses sets Barrier and Shell charge for a creature entering
// the field. Suppressed creatures get neither.
func ApplyEntryStatuses(c *card.Instance) {
	if c == nil {
		return
	}
	c.HasBarrier = Has(c, card.KeywordBarrier)
	if Has(c, card.KeywordShell) {
		c.CurrentShell = c.ShellLevel
	} else {
		c.CurrentShell = 0
	}
}

// HitResult describes how one hit was absorbed.
type HitResult struct {
	Blocked       bool
	ShellAbsorbed int
	HPDamage      int
}

// Landed reports whether the hit got past Barrier. A hit fully soaked by
// Shell still landed.
func (h HitResult) Landed() bool {
	return !h.Blocked && h.ShellAbsorbed+h.HPDamage > 0
}

// TakeHit applies damage to c in absorption order: an active Barrier blocks
// the whole hit and is used up, then an active Shell soaks what it can, then
// hp takes the rest. Any hit that gets past Barrier clears Webbed.
func TakeHit(c *card.Instance, damage int) HitResult {
	if c == nil || damage <= 0 {
		return HitResult{}
	}
	if c.HasBarrier && AbilitiesActive(c) {
		c.HasBarrier = false
		return HitResult{Blocked: true}
	}
	res := ShellResult{HPDamage: damage}
	if AbilitiesActive(c) {
		res = ApplyDamageWithShell(c, damage)
	}
	c.CurrentHP -= res.HPDamage
	hit := HitResult{ShellAbsorbed: res.ShellAbsorbed, HPDamage: res.HPDamage}
	if hit.Landed() {
		c.Webbed = false
	}
	return hit
}
