package rules

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/foodchain/foodchain-server-go/internal/game/card"
	"github.com/foodchain/foodchain-server-go/internal/game/keywords"
	"github.com/foodchain/foodchain-server-go/internal/game/state"
)

type table struct {
	t   *testing.T
	st  *state.GameState
	cat *card.Catalog
	m   *Machine
}

func newTable(t *testing.T) *table {
	rules := state.DefaultRules()
	rules.FieldSlots = 5
	st := state.New("g", [2]*state.Player{
		state.NewPlayer("p1", "Alice", rules.StartingHP, rules.FieldSlots),
		state.NewPlayer("p2", "Bob", rules.StartingHP, rules.FieldSlots),
	}, rules, 5)
	st.Setup.Stage = state.SetupComplete
	st.Phase = state.PhaseMain1
	cat := card.NewCatalog()
	return &table{t: t, st: st, cat: cat, m: New(zaptest.NewLogger(t), cat, nil)}
}

func (tb *table) register(def *card.Definition) *card.Definition {
	if _, ok := tb.cat.Get(def.ID); !ok {
		tb.cat.Register(def)
	}
	return def
}

// field puts a creature on a player's field as if it arrived last turn.
func (tb *table) field(player int, def *card.Definition) *card.Instance {
	tb.t.Helper()
	c := card.NewInstance(tb.register(def))
	c.SummonedTurn = tb.st.Turn - 1
	keywords.ApplyEntryStatuses(c)
	slot := tb.st.Players[player].FirstEmptySlot()
	require.GreaterOrEqual(tb.t, slot, 0)
	tb.st.Players[player].Place(c, slot)
	return c
}

func (tb *table) hand(player int, def *card.Definition) *card.Instance {
	c := card.NewInstance(tb.register(def))
	tb.st.Players[player].Hand = append(tb.st.Players[player].Hand, c)
	return c
}

func (tb *table) deck(player, n int) {
	for i := range n {
		def := tb.register(&card.Definition{ID: fmt.Sprintf("filler-%d", i), Name: "Filler", Type: card.TypePrey, HP: 1, Nutrition: 1})
		tb.st.Players[player].Deck = append(tb.st.Players[player].Deck, card.NewInstance(def))
	}
}

func creature(id string, atk, hp int, kws ...card.Keyword) *card.Definition {
	return &card.Definition{ID: id, Name: id, Type: card.TypePredator, Atk: atk, HP: hp, Keywords: kws}
}

func withEffect(def *card.Definition, trigger card.Trigger, effs ...card.Effect) *card.Definition {
	if def.Effects == nil {
		def.Effects = map[card.Trigger][]card.Effect{}
	}
	def.Effects[trigger] = append(def.Effects[trigger], effs...)
	return def
}

func lastLog(st *state.GameState) string {
	e, _ := st.LastLog()
	return e.Message
}

func TestSetupMulliganAndFirstTurn(t *testing.T) {
	tb := newTable(t)
	tb.st.Setup = state.Setup{}
	tb.st.Phase = state.PhaseStart
	tb.deck(0, 10)
	tb.deck(1, 10)

	tb.m.Deal(tb.st)
	assert.Len(t, tb.st.Players[0].Hand, 5)
	assert.Len(t, tb.st.Players[1].Hand, 5)
	assert.False(t, tb.m.AdvancePhase(tb.st), "setup not complete")
	assert.Equal(t, state.PhaseStart, tb.st.Phase)

	require.True(t, tb.m.Mulligan(tb.st, 0))
	assert.Len(t, tb.st.Players[0].Hand, 5)
	assert.False(t, tb.m.Mulligan(tb.st, 0), "only one mulligan")
	assert.False(t, tb.st.Setup.Complete())

	require.True(t, tb.m.KeepHand(tb.st, 1))
	require.True(t, tb.st.Setup.Complete())
	assert.Equal(t, state.PhaseMain1, tb.st.Phase)
	assert.Equal(t, 0, tb.st.ActivePlayerIndex)
	assert.Len(t, tb.st.Players[0].Hand, 5, "first player skips the first draw")
}

func TestAdvanceFromBeforeCombatWithQueueIsNoOp(t *testing.T) {
	tb := newTable(t)
	hawk := tb.field(0, withEffect(creature("hawk", 2, 2), card.OnBeforeCombat, card.Heal{Amount: 1}))

	require.True(t, tb.m.AdvancePhase(tb.st))
	require.Equal(t, state.PhaseBeforeCombat, tb.st.Phase)
	require.Equal(t, []string{hawk.ID}, tb.st.BeforeCombatQueue)

	logs := len(tb.st.Log)
	assert.False(t, tb.m.AdvancePhase(tb.st))
	assert.Equal(t, state.PhaseBeforeCombat, tb.st.Phase)
	assert.Greater(t, len(tb.st.Log), logs)
	assert.Contains(t, lastLog(tb.st), "before-combat")

	require.True(t, tb.m.ResolveQueuedEffect(tb.st, 0, ""))
	assert.Equal(t, 11, tb.st.Players[0].HP)
	assert.True(t, hawk.BeforeCombatFired)
	assert.Empty(t, tb.st.BeforeCombatQueue)

	require.True(t, tb.m.AdvancePhase(tb.st))
	assert.Equal(t, state.PhaseCombat, tb.st.Phase)
}

func TestBeforeCombatSkippedWithoutEffects(t *testing.T) {
	tb := newTable(t)
	tb.field(0, creature("wolf", 2, 2))

	require.True(t, tb.m.AdvancePhase(tb.st))
	assert.Equal(t, state.PhaseCombat, tb.st.Phase)
}

func TestEndTurnPassesToOpponent(t *testing.T) {
	tb := newTable(t)
	tb.deck(1, 3)
	tb.st.CardPlayedThisTurn = true

	require.True(t, tb.m.EndTurn(tb.st))
	assert.Equal(t, 1, tb.st.ActivePlayerIndex)
	assert.Equal(t, 2, tb.st.Turn)
	assert.Equal(t, state.PhaseMain1, tb.st.Phase)
	assert.Len(t, tb.st.Players[1].Hand, 1)
	assert.False(t, tb.st.CardPlayedThisTurn)
}

func TestEndQueueHaltsUntilDrained(t *testing.T) {
	tb := newTable(t)
	tb.st.Phase = state.PhaseMain2
	tb.field(0, withEffect(creature("owl", 1, 1), card.OnEnd, card.DamageOpponent{Amount: 1}))

	require.True(t, tb.m.AdvancePhase(tb.st))
	require.Equal(t, state.PhaseEnd, tb.st.Phase)
	assert.Len(t, tb.st.EndOfTurnQueue, 1)
	assert.False(t, tb.m.EndTurn(tb.st))
	assert.Equal(t, 0, tb.st.ActivePlayerIndex)

	assert.False(t, tb.m.ResolveQueuedEffect(tb.st, 1, ""), "not the active player")
	require.True(t, tb.m.ResolveQueuedEffect(tb.st, 0, ""))
	assert.Equal(t, 9, tb.st.Players[1].HP)

	require.True(t, tb.m.EndTurn(tb.st))
	assert.Equal(t, 1, tb.st.ActivePlayerIndex)
}

func TestFinalizeEndPhase(t *testing.T) {
	tb := newTable(t)
	tb.st.Phase = state.PhaseEnd
	tb.st.Turn = 4

	troll := tb.field(0, creature("troll", 1, 5, card.KeywordRegen))
	troll.CurrentHP = 2
	iced := tb.field(0, creature("iced", 1, 3))
	iced.Frozen = true
	doomed := tb.field(1, creature("doomed", 1, 3))
	doomed.Frozen, doomed.FrozenDiesTurn = true, 4
	stung := tb.field(1, creature("stung", 1, 3))
	stung.Paralyzed, stung.ParalyzedUntilTurn = true, 4
	later := tb.field(1, creature("later", 1, 3))
	later.Paralyzed, later.ParalyzedUntilTurn = true, 5

	require.True(t, tb.m.FinalizeEndPhase(tb.st))
	assert.Equal(t, 5, troll.CurrentHP)
	assert.False(t, iced.Frozen)
	assert.Equal(t, -1, tb.st.Players[1].SlotOf(doomed.ID))
	assert.Contains(t, tb.st.Players[1].Carrion, doomed)
	assert.False(t, doomed.Frozen, "the corpse thaws in carrion")
	assert.Zero(t, doomed.FrozenDiesTurn)
	assert.False(t, stung.Paralyzed)
	assert.True(t, later.Paralyzed)

	assert.False(t, tb.m.FinalizeEndPhase(tb.st), "runs once per turn")
}

func TestStartTurnUpkeep(t *testing.T) {
	tb := newTable(t)
	tb.st.Turn = 3
	tb.deck(0, 2)
	tb.register(&card.Definition{ID: "butterfly", Name: "Butterfly", Type: card.TypePrey, HP: 2})

	crab := tb.field(0, &card.Definition{ID: "crab", Name: "Crab", Type: card.TypePrey, HP: 3, Keywords: card.Keywords{card.KeywordShell}, ShellLevel: 2})
	crab.CurrentShell = 0
	cat := tb.field(0, creature("cat", 2, 2, card.KeywordStalk))
	require.True(t, keywords.EnterStalking(cat))
	cat.HasAttacked = true
	tb.field(0, withEffect(creature("sun", 0, 1), card.OnStart, card.Heal{Amount: 2}))
	pupa := tb.field(0, &card.Definition{ID: "pupa", Name: "Pupa", Type: card.TypePrey, HP: 1, TransformOnStart: "butterfly"})
	slot := tb.st.Players[0].SlotOf(pupa.ID)

	require.True(t, tb.m.StartTurn(tb.st))
	assert.Equal(t, 2, crab.CurrentShell)
	assert.Equal(t, 1, cat.StalkBonus)
	assert.False(t, cat.HasAttacked)
	assert.Equal(t, 12, tb.st.Players[0].HP)
	assert.Equal(t, "Butterfly", tb.st.Players[0].Field[slot].Name())
	assert.Equal(t, state.PhaseMain1, tb.st.Phase)
	assert.Len(t, tb.st.Players[0].Hand, 1)
}

func TestMain2PostCombatRegen(t *testing.T) {
	tb := newTable(t)
	tb.st.Phase = state.PhaseCombat
	bear := tb.field(0, &card.Definition{ID: "bear", Name: "Bear", Type: card.TypePredator, Atk: 3, HP: 6, PostCombatRegen: true})
	bear.CurrentHP, bear.HasAttacked = 2, true
	idle := tb.field(0, &card.Definition{ID: "idle", Name: "Idle", Type: card.TypePredator, Atk: 3, HP: 6, PostCombatRegen: true})
	idle.CurrentHP = 2

	require.True(t, tb.m.AdvancePhase(tb.st))
	assert.Equal(t, state.PhaseMain2, tb.st.Phase)
	assert.Equal(t, 6, bear.CurrentHP)
	assert.Equal(t, 2, idle.CurrentHP)
}

func TestPlayCardLimits(t *testing.T) {
	tb := newTable(t)
	mouse := tb.hand(0, withEffect(&card.Definition{ID: "mouse", Name: "Mouse", Type: card.TypePrey, HP: 1, Nutrition: 1}, card.OnPlay, card.Heal{Amount: 1}))
	vole := tb.hand(0, &card.Definition{ID: "vole", Name: "Vole", Type: card.TypePrey, HP: 1, Nutrition: 1})
	bolt := tb.hand(0, withEffect(&card.Definition{ID: "bolt", Name: "Bolt", Type: card.TypeFreeSpell}, card.OnPlay, card.DamageOpponent{Amount: 2}))
	snare := tb.hand(0, &card.Definition{ID: "snare", Name: "Snare", Type: card.TypeTrap})

	assert.False(t, tb.m.PlayCard(tb.st, 1, PlayRequest{CardID: mouse.ID}), "not your turn")
	assert.False(t, tb.m.PlayCard(tb.st, 0, PlayRequest{CardID: snare.ID}), "traps stay in hand")

	require.True(t, tb.m.PlayCard(tb.st, 0, PlayRequest{CardID: mouse.ID}))
	assert.Equal(t, 0, tb.st.Players[0].SlotOf(mouse.ID))
	assert.Equal(t, tb.st.Turn, mouse.SummonedTurn)
	assert.Equal(t, 11, tb.st.Players[0].HP)
	assert.True(t, tb.st.CardPlayedThisTurn)

	assert.False(t, tb.m.PlayCard(tb.st, 0, PlayRequest{CardID: vole.ID}), "one card per turn")
	assert.Equal(t, 0, tb.st.Players[0].HandIndex(vole.ID))

	require.True(t, tb.m.PlayCard(tb.st, 0, PlayRequest{CardID: bolt.ID}), "free spells are exempt")
	assert.Equal(t, 8, tb.st.Players[1].HP)
	assert.Equal(t, -1, tb.st.Players[0].HandIndex(bolt.ID))
	assert.Empty(t, tb.st.Players[0].Carrion)

	tb.st.Phase = state.PhaseCombat
	tb.st.CardPlayedThisTurn = false
	assert.False(t, tb.m.PlayCard(tb.st, 0, PlayRequest{CardID: vole.ID}), "main phases only")
}

func TestPlayPredatorOntoFullField(t *testing.T) {
	tb := newTable(t)
	var prey []*card.Instance
	for i := range 5 {
		prey = append(prey, tb.field(0, &card.Definition{ID: fmt.Sprintf("prey-%d", i), Name: "Prey", Type: card.TypePrey, HP: 1, Nutrition: 1}))
	}
	wolf := tb.hand(0, creature("wolf", 2, 2))

	assert.False(t, tb.m.PlayCard(tb.st, 0, PlayRequest{CardID: wolf.ID}))
	require.True(t, tb.m.PlayCard(tb.st, 0, PlayRequest{CardID: wolf.ID, PreyIDs: []string{prey[2].ID}}))
	assert.Equal(t, 2, tb.st.Players[0].SlotOf(wolf.ID))
	assert.Equal(t, 3, wolf.CurrentAtk)
	assert.False(t, wolf.DryDropped)
	assert.Len(t, tb.st.Players[0].Carrion, 1)
	require.NotNil(t, tb.st.ExtendedConsumption)

	require.True(t, tb.m.Extend(tb.st, 0, []string{prey[0].ID}, nil))
	assert.Equal(t, 4, wolf.CurrentAtk)
}

func TestFieldSpellReplacesPrevious(t *testing.T) {
	tb := newTable(t)
	swamp := tb.hand(0, &card.Definition{ID: "swamp", Name: "Swamp", Type: card.TypeSpell, FieldSpell: true})
	tundra := tb.hand(0, &card.Definition{ID: "tundra", Name: "Tundra", Type: card.TypeSpell, FieldSpell: true})

	require.True(t, tb.m.PlayCard(tb.st, 0, PlayRequest{CardID: swamp.ID}))
	require.NotNil(t, tb.st.FieldSpell)
	assert.Equal(t, swamp.ID, tb.st.FieldSpell.InstanceID)
	assert.Equal(t, 0, tb.st.Players[0].SlotOf(swamp.ID))

	tb.st.CardPlayedThisTurn = false
	require.True(t, tb.m.PlayCard(tb.st, 0, PlayRequest{CardID: tundra.ID}))
	assert.Equal(t, tundra.ID, tb.st.FieldSpell.InstanceID)
	assert.Equal(t, -1, tb.st.Players[0].SlotOf(swamp.ID))
	assert.Empty(t, tb.st.Players[0].Carrion, "spells never reach carrion")
}

func TestEnterStalkingOnlyInMainPhase(t *testing.T) {
	tb := newTable(t)
	cat := tb.field(0, creature("cat", 2, 2, card.KeywordStalk))
	dog := tb.field(0, creature("dog", 2, 2))

	assert.False(t, tb.m.EnterStalking(tb.st, 0, dog.ID))
	require.True(t, tb.m.EnterStalking(tb.st, 0, cat.ID))
	assert.True(t, cat.Hidden)
	assert.False(t, tb.m.EnterStalking(tb.st, 0, cat.ID), "already stalking")
}

func TestAttackLegality(t *testing.T) {
	tb := newTable(t)
	tb.st.Phase = state.PhaseCombat
	tb.st.Turn = 2
	fresh := tb.field(0, creature("pup", 2, 2))
	fresh.SummonedTurn = tb.st.Turn
	hasty := tb.field(0, creature("hare", 1, 1, card.KeywordHaste))
	hasty.SummonedTurn = tb.st.Turn
	shadow := tb.field(1, creature("shadow", 1, 1, card.KeywordHidden))
	plain := tb.field(1, creature("plain", 0, 5))

	assert.False(t, tb.m.Attack(tb.st, 0, AttackRequest{AttackerID: fresh.ID}), "needs Haste for the player")
	assert.False(t, tb.m.Attack(tb.st, 0, AttackRequest{AttackerID: fresh.ID, TargetID: shadow.ID}))
	require.True(t, tb.m.Attack(tb.st, 0, AttackRequest{AttackerID: fresh.ID, TargetID: plain.ID}))
	assert.Equal(t, 3, plain.CurrentHP)
	assert.False(t, tb.m.Attack(tb.st, 0, AttackRequest{AttackerID: fresh.ID, TargetID: plain.ID}), "once per turn")

	require.True(t, tb.m.Attack(tb.st, 0, AttackRequest{AttackerID: hasty.ID}))
	assert.Equal(t, 9, tb.st.Players[1].HP)
}

func TestLureMustBeAttackedFirst(t *testing.T) {
	tb := newTable(t)
	tb.st.Phase = state.PhaseCombat
	wolf := tb.field(0, creature("wolf", 2, 5))
	decoy := tb.field(1, creature("decoy", 0, 5, card.KeywordLure))
	other := tb.field(1, creature("other", 0, 5))

	assert.False(t, tb.m.Attack(tb.st, 0, AttackRequest{AttackerID: wolf.ID, TargetID: other.ID}))
	assert.False(t, tb.m.Attack(tb.st, 0, AttackRequest{AttackerID: wolf.ID}))
	require.True(t, tb.m.Attack(tb.st, 0, AttackRequest{AttackerID: wolf.ID, TargetID: decoy.ID}))
	assert.Equal(t, 3, decoy.CurrentHP)
}

func TestAttackWaitsForBeforeCombatSelection(t *testing.T) {
	tb := newTable(t)
	tb.st.Phase = state.PhaseCombat
	hawk := tb.field(0, withEffect(creature("hawk", 2, 4), card.OnBeforeCombat,
		card.DamageCreatures{Amount: 1, Target: card.SelectChooseEnemy}))
	a := tb.field(1, creature("a", 0, 3))
	b := tb.field(1, creature("b", 0, 3))

	require.True(t, tb.m.Attack(tb.st, 0, AttackRequest{AttackerID: hawk.ID, TargetID: a.ID}))
	require.NotNil(t, tb.st.Pending)
	require.NotNil(t, tb.st.PendingAttack)
	assert.Equal(t, 3, a.CurrentHP, "combat waits for the selection")
	assert.False(t, tb.m.AdvancePhase(tb.st))

	require.True(t, tb.m.ResolveSelection(tb.st, 0, b.ID))
	assert.Equal(t, 2, b.CurrentHP)
	assert.Equal(t, 1, a.CurrentHP)
	assert.True(t, hawk.HasAttacked)
	assert.Nil(t, tb.st.PendingAttack)
}

func TestPrideHunt(t *testing.T) {
	tb := newTable(t)
	tb.st.Phase = state.PhaseCombat
	lion := tb.field(0, creature("lion", 3, 5, card.KeywordPride))
	lioness := tb.field(0, creature("lioness", 2, 2, card.KeywordPride))
	buffalo := tb.field(1, creature("buffalo", 1, 20))

	require.True(t, tb.m.Attack(tb.st, 0, AttackRequest{AttackerID: lion.ID, TargetID: buffalo.ID, AllyIDs: []string{lioness.ID}}))
	assert.Equal(t, 13, buffalo.CurrentHP, "4 from the lion and 3 from the lioness")
	assert.Equal(t, 4, lion.CurrentHP)
	assert.Equal(t, 2, lioness.CurrentHP)
	assert.True(t, lioness.JoinedPrideAttack)
	assert.False(t, tb.m.Attack(tb.st, 0, AttackRequest{AttackerID: lioness.ID, TargetID: buffalo.ID}))
}

func TestPrideHuntOnPlayerNeedsSeasonedAllies(t *testing.T) {
	tb := newTable(t)
	tb.st.Phase = state.PhaseCombat
	tb.st.Turn = 2
	lion := tb.field(0, creature("lion", 4, 5, card.KeywordPride))
	cub := tb.field(0, creature("cub", 3, 2, card.KeywordPride))
	cub.SummonedTurn = tb.st.Turn
	hastyCub := tb.field(0, creature("hasty-cub", 1, 2, card.KeywordPride, card.KeywordHaste))
	hastyCub.SummonedTurn = tb.st.Turn

	assert.False(t, tb.m.Attack(tb.st, 0, AttackRequest{AttackerID: lion.ID, AllyIDs: []string{cub.ID}}))
	assert.Contains(t, lastLog(tb.st), "cannot hunt the player this turn")
	assert.Equal(t, 10, tb.st.Players[1].HP)
	assert.False(t, lion.HasAttacked)
	assert.False(t, cub.JoinedPrideAttack)

	require.True(t, tb.m.Attack(tb.st, 0, AttackRequest{AttackerID: lion.ID, AllyIDs: []string{hastyCub.ID}}))
	assert.True(t, hastyCub.JoinedPrideAttack)
	assert.False(t, cub.JoinedPrideAttack)
	assert.Less(t, tb.st.Players[1].HP, 10)
}

func TestPrideHuntOnCreatureTakesFreshAllies(t *testing.T) {
	tb := newTable(t)
	tb.st.Phase = state.PhaseCombat
	tb.st.Turn = 2
	lion := tb.field(0, creature("lion", 3, 5, card.KeywordPride))
	cub := tb.field(0, creature("cub", 2, 2, card.KeywordPride))
	cub.SummonedTurn = tb.st.Turn
	buffalo := tb.field(1, creature("buffalo", 1, 20))

	require.True(t, tb.m.Attack(tb.st, 0, AttackRequest{AttackerID: lion.ID, TargetID: buffalo.ID, AllyIDs: []string{cub.ID}}))
	assert.True(t, cub.JoinedPrideAttack)
	assert.Equal(t, 2, cub.CurrentHP)
}

func TestLethalAttackEndsGame(t *testing.T) {
	tb := newTable(t)
	tb.st.Phase = state.PhaseCombat
	wolf := tb.field(0, creature("wolf", 3, 3))
	tb.st.Players[1].HP = 2

	require.True(t, tb.m.Attack(tb.st, 0, AttackRequest{AttackerID: wolf.ID}))
	assert.Equal(t, 0, tb.st.Winner)
	assert.False(t, tb.m.AdvancePhase(tb.st))
	assert.False(t, tb.m.EndTurn(tb.st))
}

func TestBroadcastAfterPhaseChange(t *testing.T) {
	tb := newTable(t)
	var phases []state.Phase
	tb.st.Broadcast = func(s *state.GameState) { phases = append(phases, s.Phase) }

	require.True(t, tb.m.AdvancePhase(tb.st))
	assert.NotEmpty(t, phases)
	assert.Equal(t, state.PhaseCombat, phases[len(phases)-1])
}
