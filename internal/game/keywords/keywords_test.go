package keywords

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/foodchain/foodchain-server-go/internal/game/card"
	"github.com/foodchain/foodchain-server-go/internal/game/state"
)

func creature(typ card.Type, atk, hp int, kws ...card.Keyword) *card.Instance {
	def := &card.Definition{ID: "c", Name: "Creature", Type: typ, Atk: atk, HP: hp, Keywords: kws, Nutrition: 1}
	if card.Keywords(kws).Has(card.KeywordShell) {
		def.ShellLevel = 2
	}
	c := card.NewInstance(def)
	ApplyEntryStatuses(c)
	return c
}

func newState() *state.GameState {
	rules := state.DefaultRules()
	return state.New("g", [2]*state.Player{
		state.NewPlayer("p1", "A", rules.StartingHP, rules.FieldSlots),
		state.NewPlayer("p2", "B", rules.StartingHP, rules.FieldSlots),
	}, rules, 1)
}

func TestAbilitiesActiveGate(t *testing.T) {
	c := creature(card.TypePredator, 2, 2, card.KeywordToxic, card.KeywordPassive)
	assert.True(t, Has(c, card.KeywordToxic))

	c.DryDropped = true
	assert.False(t, Has(c, card.KeywordToxic), "dry-dropped suppresses abilities")
	assert.True(t, HasKeyword(c, card.KeywordToxic))
	assert.True(t, Has(c, card.KeywordPassive), "drawbacks stay in force")

	c.DryDropped = false
	c.AbilitiesCancelled = true
	assert.False(t, Has(c, card.KeywordToxic))
	assert.False(t, AbilitiesActive(nil))
	assert.False(t, Has(nil, card.KeywordToxic))
}

func TestCanAttack(t *testing.T) {
	c := creature(card.TypePredator, 2, 2)
	assert.True(t, CanAttack(c))

	for name, mutate := range map[string]func(*card.Instance){
		"frozen":    func(c *card.Instance) { c.Frozen = true },
		"webbed":    func(c *card.Instance) { c.Webbed = true },
		"paralyzed": func(c *card.Instance) { c.Paralyzed = true },
		"passive":   func(c *card.Instance) { c.Keywords = card.Keywords{card.KeywordPassive} },
		"harmless":  func(c *card.Instance) { c.Keywords = card.Keywords{card.KeywordHarmless} },
		"dead":      func(c *card.Instance) { c.CurrentHP = 0 },
	} {
		t.Run(name, func(t *testing.T) {
			c := creature(card.TypePredator, 2, 2)
			mutate(c)
			assert.False(t, CanAttack(c))
		})
	}

	c.HasAttacked = true
	assert.False(t, ReadyToAttack(c))
	assert.False(t, CanAttack(nil))
}

func TestCanAttackPlayerNeedsHasteOnSummonTurn(t *testing.T) {
	c := creature(card.TypePredator, 2, 2)
	c.SummonedTurn = 3
	assert.False(t, CanAttackPlayer(c, 3))
	assert.True(t, CanAttackPlayer(c, 4))

	h := creature(card.TypePredator, 2, 2, card.KeywordHaste)
	h.SummonedTurn = 3
	assert.True(t, CanAttackPlayer(h, 3))
}

func TestCanBeAttacked(t *testing.T) {
	assert.True(t, CanBeAttacked(creature(card.TypePrey, 0, 1)))
	assert.False(t, CanBeAttacked(creature(card.TypePrey, 0, 1, card.KeywordHidden)))
	assert.False(t, CanBeAttacked(creature(card.TypePrey, 0, 1, card.KeywordInvisible)))

	inv := creature(card.TypePrey, 0, 1, card.KeywordInvisible)
	inv.AbilitiesCancelled = true
	assert.True(t, CanBeAttacked(inv))

	stalker := creature(card.TypePredator, 1, 1, card.KeywordStalk)
	require.True(t, EnterStalking(stalker))
	assert.False(t, CanBeAttacked(stalker))
}

func TestConsumptionPredicates(t *testing.T) {
	prey := creature(card.TypePrey, 0, 1)
	assert.True(t, CanBeConsumed(prey))
	prey.Frozen = true
	assert.False(t, CanBeConsumed(prey))

	assert.False(t, CanBeConsumed(creature(card.TypePrey, 0, 1, card.KeywordInedible)))
	assert.False(t, CanBeConsumed(creature(card.TypePredator, 2, 2)))

	edible := creature(card.TypePredator, 2, 2, card.KeywordEdible)
	assert.True(t, CanBeConsumed(edible))
	assert.Equal(t, 2, Nutrition(edible))

	pred := creature(card.TypePredator, 2, 2)
	assert.True(t, CanConsume(pred))
	pred.Frozen = true
	assert.False(t, CanConsume(pred))
	assert.False(t, CanConsume(prey))
}

func TestGetEffectiveAttack(t *testing.T) {
	st := newState()
	lion := creature(card.TypePredator, 3, 3, card.KeywordPride, card.KeywordStalk)
	st.Players[0].Place(lion, 0)
	assert.Equal(t, 3, GetEffectiveAttack(lion, st, 0))

	ally := creature(card.TypePredator, 2, 2, card.KeywordPride)
	st.Players[0].Place(ally, 1)
	assert.Equal(t, 4, GetEffectiveAttack(lion, st, 0), "pack bonus")

	require.True(t, EnterStalking(lion))
	require.True(t, GrowStalkBonus(lion, 3))
	require.True(t, GrowStalkBonus(lion, 3))
	assert.Equal(t, 6, GetEffectiveAttack(lion, st, 0))
	assert.Equal(t, 3, lion.CurrentAtk, "transient bonuses are never baked in")

	ally.DryDropped = true
	assert.Equal(t, 5, GetEffectiveAttack(lion, st, 0), "inactive ally gives no bonus")
	assert.Equal(t, 0, GetEffectiveAttack(nil, st, 0))
}

func TestStalkingLifecycle(t *testing.T) {
	assert.False(t, EnterStalking(nil))
	assert.False(t, EndStalking(nil))
	assert.False(t, EnterStalking(creature(card.TypePredator, 1, 1)), "needs Stalk")

	c := creature(card.TypePredator, 1, 1, card.KeywordStalk)
	require.True(t, EnterStalking(c))
	assert.False(t, EnterStalking(c), "already stalking")
	assert.True(t, c.Hidden)

	for range 5 {
		GrowStalkBonus(c, 3)
	}
	assert.Equal(t, 3, c.StalkBonus)

	require.True(t, EndStalking(c))
	assert.False(t, c.Hidden)
	assert.Equal(t, 0, c.StalkBonus)
	assert.False(t, EndStalking(c))
}

func TestMoltIsSingleUse(t *testing.T) {
	assert.False(t, TriggerMolt(nil))

	c := creature(card.TypePrey, 1, 2, card.KeywordMolt, card.KeywordShell, card.KeywordBarrier)
	c.CurrentHP = -3
	require.True(t, TriggerMolt(c))
	assert.Equal(t, 1, c.CurrentHP)
	assert.Empty(t, c.Keywords)
	assert.Equal(t, 0, c.ShellLevel)
	assert.False(t, c.HasBarrier)

	c.CurrentHP = 0
	assert.False(t, TriggerMolt(c))
	assert.Equal(t, 0, c.CurrentHP)
}

func TestMoltSuppressedWhenAbilitiesInactive(t *testing.T) {
	c := creature(card.TypePrey, 1, 2, card.KeywordMolt)
	c.AbilitiesCancelled = true
	c.CurrentHP = 0
	assert.False(t, TriggerMolt(c))
}

func TestShellRecharge(t *testing.T) {
	c := creature(card.TypePrey, 0, 3, card.KeywordShell)
	assert.Equal(t, 2, c.CurrentShell)
	assert.False(t, RechargeShell(c), "already full")

	ApplyDamageWithShell(c, 5)
	assert.Equal(t, 0, c.CurrentShell)
	assert.True(t, RechargeShell(c))
	assert.Equal(t, 2, c.CurrentShell)
}

func TestApplyDamageWithShellNil(t *testing.T) {
	assert.Equal(t, ShellResult{}, ApplyDamageWithShell(nil, 4))
}

func TestShellDepletesMonotonically(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		s := rapid.IntRange(0, 20).Draw(rt, "shell")
		d := rapid.IntRange(0, 40).Draw(rt, "damage")
		c := creature(card.TypePrey, 0, 5)
		c.CurrentShell = s

		res := ApplyDamageWithShell(c, d)

		if res.ShellAbsorbed != min(s, d) {
			rt.Fatalf("absorbed %d, want %d", res.ShellAbsorbed, min(s, d))
		}
		if res.HPDamage != d-res.ShellAbsorbed {
			rt.Fatalf("hp damage %d, want %d", res.HPDamage, d-res.ShellAbsorbed)
		}
		if c.CurrentShell != s-res.ShellAbsorbed || c.CurrentShell < 0 {
			rt.Fatalf("shell %d after absorbing %d from %d", c.CurrentShell, res.ShellAbsorbed, s)
		}
		if c.CurrentHP != 5 {
			rt.Fatalf("hp changed to %d", c.CurrentHP)
		}
	})
}

func TestEntryStatusesRespectGate(t *testing.T) {
	c := card.NewInstance(&card.Definition{ID: "x", Type: card.TypePredator, Atk: 1, HP: 1,
		Keywords: card.Keywords{card.KeywordBarrier, card.KeywordShell}, ShellLevel: 1})
	c.DryDropped = true
	ApplyEntryStatuses(c)
	assert.False(t, c.HasBarrier)
	assert.Equal(t, 0, c.CurrentShell)
}

func TestBarrierAbsorbsExactlyOneHit(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		first := rapid.IntRange(1, 50).Draw(rt, "first")
		second := rapid.IntRange(1, 50).Draw(rt, "second")
		c := creature(card.TypePrey, 0, 60, card.KeywordBarrier)

		hit := TakeHit(c, first)
		if !hit.Blocked || hit.Landed() || c.CurrentHP != 60 || c.HasBarrier {
			rt.Fatalf("first hit %+v left hp=%d barrier=%t", hit, c.CurrentHP, c.HasBarrier)
		}
		hit = TakeHit(c, second)
		if hit.Blocked || c.CurrentHP != 60-second {
			rt.Fatalf("second hit %+v left hp=%d", hit, c.CurrentHP)
		}
	})
}

func TestTakeHitShellThenHP(t *testing.T) {
	c := creature(card.TypePrey, 0, 3, card.KeywordShell)
	c.Webbed = true
	hit := TakeHit(c, 3)
	assert.Equal(t, HitResult{ShellAbsorbed: 2, HPDamage: 1}, hit)
	assert.Equal(t, 2, c.CurrentHP)
	assert.Equal(t, 0, c.CurrentShell)
	assert.False(t, c.Webbed, "hp damage clears web")

	soaked := creature(card.TypePrey, 0, 3, card.KeywordShell)
	soaked.Webbed = true
	hit = TakeHit(soaked, 1)
	assert.True(t, hit.Landed())
	assert.False(t, soaked.Webbed, "shell-only hit still clears web")
	assert.Equal(t, 3, soaked.CurrentHP)
}

func TestBarrierBlockKeepsWeb(t *testing.T) {
	c := creature(card.TypePrey, 0, 3, card.KeywordBarrier)
	c.Webbed = true
	hit := TakeHit(c, 2)
	assert.True(t, hit.Blocked)
	assert.False(t, hit.Landed())
	assert.True(t, c.Webbed, "blocked hit never touched the creature")

	hit = TakeHit(c, 1)
	assert.True(t, hit.Landed())
	assert.False(t, c.Webbed)
}

func TestTakeHitIgnoresSuppressedBarrierAndShell(t *testing.T) {
	c := creature(card.TypePrey, 0, 5, card.KeywordBarrier, card.KeywordShell)
	c.AbilitiesCancelled = true
	hit := TakeHit(c, 3)
	assert.Equal(t, HitResult{HPDamage: 3}, hit)
	assert.Equal(t, 2, c.CurrentHP)
}
