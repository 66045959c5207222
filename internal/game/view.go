package game

import (
	"time"

	"github.com/foodchain/foodchain-server-go/internal/game/card"
	"github.com/foodchain/foodchain-server-go/internal/game/state"
)

// viewLogLimit caps how many log entries a view carries.
const viewLogLimit = 50

// CardView is a card as shown to a client.
type CardView struct {
	ID         string   `json:"id"`
	CardID     string   `json:"card_id"`
	Name       string   `json:"name"`
	Type       string   `json:"type"`
	Atk        int      `json:"atk"`
	HP         int      `json:"hp"`
	BaseAtk    int      `json:"base_atk"`
	BaseHP     int      `json:"base_hp"`
	Nutrition  int      `json:"nutrition"`
	Keywords   []string `json:"keywords,omitempty"`
	Statuses   []string `json:"statuses,omitempty"`
	Shell      int      `json:"shell,omitempty"`
	StalkBonus int      `json:"stalk_bonus,omitempty"`
	Token      bool     `json:"token,omitempty"`
}

// PlayerView is one player's side. Hand is only filled for the viewer.
type PlayerView struct {
	ID        string      `json:"id"`
	Name      string      `json:"name"`
	HP        int         `json:"hp"`
	HandCount int         `json:"hand_count"`
	Hand      []CardView  `json:"hand,omitempty"`
	DeckCount int         `json:"deck_count"`
	Field     []*CardView `json:"field"`
	Carrion   []CardView  `json:"carrion"`
}

// SelectionView is a pending target selection. Candidates are only filled
// for the choosing player.
type SelectionView struct {
	PlayerID   string   `json:"player_id"`
	Source     string   `json:"source"`
	Candidates []string `json:"candidates,omitempty"`
}

// LogView is one game log line.
type LogView struct {
	Turn     int    `json:"turn"`
	Category string `json:"category"`
	Message  string `json:"message"`
}

// GameView is the client-facing snapshot of a game.
type GameView struct {
	GameID            string         `json:"game_id"`
	Turn              int            `json:"turn"`
	Phase             string         `json:"phase"`
	Setup             string         `json:"setup"`
	ActivePlayerID    string         `json:"active_player_id"`
	WinnerID          string         `json:"winner_id,omitempty"`
	Draw              bool           `json:"draw,omitempty"`
	CardPlayed        bool           `json:"card_played"`
	FieldSpell        string         `json:"field_spell,omitempty"`
	Consuming         string         `json:"consuming,omitempty"`
	BeforeCombatQueue []string       `json:"before_combat_queue,omitempty"`
	EndOfTurnQueue    []string       `json:"end_of_turn_queue,omitempty"`
	Selection         *SelectionView `json:"selection,omitempty"`
	Players           []PlayerView   `json:"players"`
	Log               []LogView      `json:"log"`
	StartedAt         time.Time      `json:"started_at"`
}

func newCardView(c *card.Instance) CardView {
	v := CardView{
		ID:         c.ID,
		CardID:     c.Def.ID,
		Name:       c.Name(),
		Type:       c.Type().String(),
		Atk:        c.CurrentAtk,
		HP:         c.CurrentHP,
		BaseAtk:    c.Def.Atk,
		BaseHP:     c.Def.HP,
		Nutrition:  c.Def.Nutrition,
		Keywords:   c.Keywords.Strings(),
		Shell:      c.CurrentShell,
		StalkBonus: c.StalkBonus,
		Token:      c.IsToken(),
	}
	for _, s := range []struct {
		on   bool
		name string
	}{
		{c.Frozen, "frozen"},
		{c.Paralyzed, "paralyzed"},
		{c.Webbed, "webbed"},
		{c.HasBarrier, "barrier"},
		{c.DryDropped, "dry_dropped"},
		{c.AbilitiesCancelled, "abilities_cancelled"},
		{c.Stalking, "stalking"},
		{c.Hidden, "hidden"},
		{c.HasAttacked, "attacked"},
	} {
		if s.on {
			v.Statuses = append(v.Statuses, s.name)
		}
	}
	return v
}

func cardViews(cs []*card.Instance) []CardView {
	out := make([]CardView, 0, len(cs))
	for _, c := range cs {
		out = append(out, newCardView(c))
	}
	return out
}

// buildGameView renders st for viewerID. Only the viewer's own hand and
// selection candidates are revealed.
func buildGameView(st *state.GameState, viewerID string, startedAt time.Time) *GameView {
	v := &GameView{
		GameID:            st.ID,
		Turn:              st.Turn,
		Phase:             st.Phase.String(),
		Setup:             st.Setup.Stage.String(),
		ActivePlayerID:    st.Active().ID,
		CardPlayed:        st.CardPlayedThisTurn,
		BeforeCombatQueue: append([]string(nil), st.BeforeCombatQueue...),
		EndOfTurnQueue:    append([]string(nil), st.EndOfTurnQueue...),
		StartedAt:         startedAt,
	}
	switch {
	case st.Winner == state.Draw:
		v.Draw = true
	case st.Winner >= 0:
		v.WinnerID = st.Players[st.Winner].ID
	}
	if st.FieldSpell != nil {
		v.FieldSpell = st.FieldSpell.InstanceID
	}
	if st.ExtendedConsumption != nil {
		v.Consuming = st.ExtendedConsumption.PredatorID
	}
	if d := st.Pending; d != nil {
		chooser := st.Players[d.PlayerIndex].ID
		sel := &SelectionView{PlayerID: chooser, Source: d.Context.SourceName}
		if chooser == viewerID {
			sel.Candidates = append([]string(nil), d.Candidates...)
		}
		v.Selection = sel
	}

	for _, p := range st.Players {
		pv := PlayerView{
			ID:        p.ID,
			Name:      p.Name,
			HP:        p.HP,
			HandCount: len(p.Hand),
			DeckCount: len(p.Deck),
			Field:     make([]*CardView, len(p.Field)),
			Carrion:   cardViews(p.Carrion),
		}
		if p.ID == viewerID {
			pv.Hand = cardViews(p.Hand)
		}
		for i, c := range p.Field {
			if c != nil {
				cv := newCardView(c)
				pv.Field[i] = &cv
			}
		}
		v.Players = append(v.Players, pv)
	}

	start := max(0, len(st.Log)-viewLogLimit)
	for _, e := range st.Log[start:] {
		v.Log = append(v.Log, LogView{Turn: e.Turn, Category: e.Category.String(), Message: e.Message})
	}
	return v
}
