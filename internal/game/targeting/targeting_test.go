package targeting

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/foodchain/foodchain-server-go/internal/game/card"
	"github.com/foodchain/foodchain-server-go/internal/game/state"
)

type board struct {
	st                          *state.GameState
	hawk, vole, ghost, tortoise *card.Instance
}

// newBoard puts hawk and vole on player 0's field, and an Invisible ghost
// and an Immune tortoise on player 1's.
func newBoard(t *testing.T) board {
	t.Helper()
	rules := state.DefaultRules()
	st := state.New("g", [2]*state.Player{
		state.NewPlayer("a", "A", rules.StartingHP, rules.FieldSlots),
		state.NewPlayer("b", "B", rules.StartingHP, rules.FieldSlots),
	}, rules, 7)

	b := board{
		st:       st,
		hawk:     card.NewInstance(&card.Definition{ID: "hawk", Name: "Hawk", Type: card.TypePredator, Atk: 2, HP: 2}),
		vole:     card.NewInstance(&card.Definition{ID: "vole", Name: "Vole", Type: card.TypePrey, HP: 1}),
		ghost:    card.NewInstance(&card.Definition{ID: "ghost", Name: "Ghost Moth", Type: card.TypePrey, HP: 1, Keywords: card.Keywords{card.KeywordInvisible}}),
		tortoise: card.NewInstance(&card.Definition{ID: "tortoise", Name: "Tortoise", Type: card.TypePrey, HP: 3, Keywords: card.Keywords{card.KeywordImmune}}),
	}
	require.True(t, st.Players[0].Place(b.hawk, 0))
	require.True(t, st.Players[0].Place(b.vole, 1))
	require.True(t, st.Players[1].Place(b.ghost, 0))
	require.True(t, st.Players[1].Place(b.tortoise, 2))
	return b
}

func TestCandidatesBySelector(t *testing.T) {
	b := newBoard(t)
	src := Source{ID: b.hawk.ID, PlayerIndex: 0}

	assert.Equal(t, []string{b.hawk.ID}, IDs(Candidates(b.st, card.SelectSelf, src)))
	assert.Equal(t, []string{b.hawk.ID, b.vole.ID}, IDs(Candidates(b.st, card.SelectAllFriendly, src)))
	assert.Equal(t, []string{b.vole.ID}, IDs(Candidates(b.st, card.SelectChooseFriendly, src)))
	assert.Equal(t, []string{b.ghost.ID}, IDs(Candidates(b.st, card.SelectAllEnemies, src)), "Immune is never affected")
	assert.Empty(t, Candidates(b.st, card.SelectChooseEnemy, src), "Invisible cannot be chosen")
	assert.Equal(t, []string{b.vole.ID}, IDs(Candidates(b.st, card.SelectChooseAny, src)))
	assert.Equal(t, []string{b.hawk.ID, b.vole.ID, b.ghost.ID}, IDs(Candidates(b.st, card.SelectAllCreatures, src)))
}

func TestCandidatesSkipDeadAndBadSource(t *testing.T) {
	b := newBoard(t)
	b.vole.CurrentHP = 0

	assert.Equal(t, []string{b.hawk.ID}, IDs(Candidates(b.st, card.SelectAllFriendly, Source{ID: b.hawk.ID, PlayerIndex: 0})))
	assert.Nil(t, Candidates(b.st, card.SelectAllFriendly, Source{PlayerIndex: 2}))
	assert.Nil(t, Candidates(nil, card.SelectAllFriendly, Source{}))
}

func TestResolveRandomEnemyPicksOne(t *testing.T) {
	b := newBoard(t)
	b.tortoise.Keywords = nil

	got := Resolve(b.st, card.SelectRandomEnemy, Source{ID: b.hawk.ID, PlayerIndex: 0})
	require.Len(t, got, 1)
	assert.Contains(t, []string{b.ghost.ID, b.tortoise.ID}, got[0].ID)
}

func TestValidateSelection(t *testing.T) {
	b := newBoard(t)
	v := NewValidator(b.st)

	_, err := v.ValidateSelection(0, b.vole.ID)
	assert.ErrorContains(t, err, "no selection is pending")

	b.st.Pending = &state.PendingDecision{PlayerIndex: 0, Candidates: []string{b.vole.ID, b.tortoise.ID}}

	got, err := v.ValidateSelection(0, b.vole.ID)
	require.NoError(t, err)
	assert.Same(t, b.vole, got)

	_, err = v.ValidateSelection(1, b.vole.ID)
	assert.ErrorContains(t, err, "is not choosing")

	_, err = v.ValidateSelection(0, b.hawk.ID)
	assert.ErrorContains(t, err, "not a legal choice")

	b.st.Players[1].RemoveFromField(b.tortoise.ID)
	_, err = v.ValidateSelection(0, b.tortoise.ID)
	assert.ErrorContains(t, err, "no longer on the field")

	b.vole.CurrentHP = 0
	_, err = v.ValidateSelection(0, b.vole.ID)
	assert.ErrorContains(t, err, "is dead")

	var nilValidator *Validator
	_, err = nilValidator.ValidateSelection(0, b.vole.ID)
	assert.Error(t, err)
}
