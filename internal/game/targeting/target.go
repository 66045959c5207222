package targeting

import (
	"github.com/foodchain/foodchain-server-go/internal/game/card"
	"github.com/foodchain/foodchain-server-go/internal/game/keywords"
	"github.com/foodchain/foodchain-server-go/internal/game/state"
)

// Source identifies the card an effect belongs to.
type Source struct {
	ID          string
	PlayerIndex int
}

// Candidates returns the field creatures a selector can pick, in player then
// slot order. For SelectRandomEnemy it returns the whole pool.
func Candidates(st *state.GameState, sel card.Selector, src Source) []*card.Instance {
	if st == nil || src.PlayerIndex < 0 || src.PlayerIndex > 1 {
		return nil
	}
	own := alive(st.Players[src.PlayerIndex].Creatures())
	enemy := alive(st.Players[state.Other(src.PlayerIndex)].Creatures())

	switch sel {
	case card.SelectSelf:
		if c, _, ok := st.FindOnField(src.ID); ok {
			return []*card.Instance{c}
		}
		return nil
	case card.SelectAllFriendly:
		return own
	case card.SelectChooseFriendly:
		return without(own, src.ID)
	case card.SelectAllEnemies, card.SelectRandomEnemy:
		return filter(enemy, affectable)
	case card.SelectChooseEnemy:
		return filter(enemy, choosable)
	case card.SelectAllCreatures:
		return append(own, filter(enemy, affectable)...)
	case card.SelectChooseAny:
		return append(without(own, src.ID), filter(enemy, choosable)...)
	default:
		return nil
	}
}

// Resolve returns the creatures a non-choice selector applies to. A random
// selector picks one with the game's random source.
func Resolve(st *state.GameState, sel card.Selector, src Source) []*card.Instance {
	pool := Candidates(st, sel, src)
	if sel == card.SelectRandomEnemy && len(pool) > 1 {
		return []*card.Instance{pool[st.Rand().IntN(len(pool))]}
	}
	return pool
}

// IDs lists instance ids.
func IDs(cs []*card.Instance) []string {
	out := make([]string, len(cs))
	for i, c := range cs {
		out[i] = c.ID
	}
	return out
}

// affectable excludes Immune creatures from enemy effects.
func affectable(c *card.Instance) bool {
	return !keywords.Has(c, card.KeywordImmune)
}

// choosable additionally excludes Invisible creatures from enemy choices.
func choosable(c *card.Instance) bool {
	return affectable(c) && !keywords.Has(c, card.KeywordInvisible)
}

func alive(cs []*card.Instance) []*card.Instance {
	return filter(cs, func(c *card.Instance) bool { return c.CurrentHP > 0 })
}

func without(cs []*card.Instance, id string) []*card.Instance {
	return filter(cs, func(c *card.Instance) bool { return c.ID != id })
}

func filter(cs []*card.Instance, keep func(*card.Instance) bool) []*card.Instance {
	out := make([]*card.Instance, 0, len(cs))
	for _, c := range cs {
		if keep(c) {
			out = append(out, c)
		}
	}
	return out
}
