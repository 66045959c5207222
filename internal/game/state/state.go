package state

import (
	"math/rand/v2"

	"github.com/foodchain/foodchain-server-go/internal/game/card"
)

// Rules are the per-game tunables copied from configuration at game start.
type Rules struct {
	FieldSlots     int
	StartingHP     int
	HandSize       int
	SkipFirstDraw  bool
	MaxConsumption int
	MaxStalkBonus  int
}

// DefaultRules returns the standard game rules.
func DefaultRules() Rules {
	return Rules{
		FieldSlots:     3,
		StartingHP:     10,
		HandSize:       5,
		SkipFirstDraw:  true,
		MaxConsumption: 3,
		MaxStalkBonus:  3,
	}
}

// Location addresses a field slot.
type Location struct {
	Player int
	Slot   int
}

// ConsumptionWindow lets a predator keep eating after it was played.
type ConsumptionWindow struct {
	PredatorID  string
	PlayerIndex int
	Consumed    int
}

// FieldSpell is the single active field-wide spell.
type FieldSpell struct {
	InstanceID  string
	PlayerIndex int
}

// EffectContext is the saved context of an effect resolution. It holds ids,
// never live instances, so it can sit in a pending decision.
type EffectContext struct {
	SourceID    string
	SourceName  string
	PlayerIndex int
	Trigger     card.Trigger
}

// PendingDecision pauses resolution until a player picks one of the
// candidates. A nil *PendingDecision means no decision is pending.
type PendingDecision struct {
	PlayerIndex int
	Candidates  []string
	Effect      card.Effect
	Remaining   []card.Effect
	Context     EffectContext
}

// HasCandidate reports whether id is a legal choice.
func (d *PendingDecision) HasCandidate(id string) bool {
	if d == nil {
		return false
	}
	for _, c := range d.Candidates {
		if c == id {
			return true
		}
	}
	return false
}

// PendingAttack is an attack deferred until the attacker's onBeforeCombat
// effect has resolved. An empty TargetID is a direct attack on the player.
type PendingAttack struct {
	AttackerID  string
	TargetID    string
	PlayerIndex int
	AllyIDs     []string
}

// NoWinner and Draw are the non-player values of GameState.Winner.
const (
	NoWinner = -2
	Draw     = -1
)

// GameState is the single source of truth for one game. It is not safe for
// concurrent use; callers serialize access.
type GameState struct {
	ID                  string
	Players             [2]*Player
	ActivePlayerIndex   int
	FirstPlayerIndex    int
	Phase               Phase
	Turn                int
	CardPlayedThisTurn  bool
	ExtendedConsumption *ConsumptionWindow
	FieldSpell          *FieldSpell
	BeforeCombatQueue   []string
	EndOfTurnQueue      []string
	EndOfTurnFinalized  bool
	Setup               Setup
	Pending             *PendingDecision
	PendingAttack       *PendingAttack
	Winner              int
	Rules               Rules
	Log                 []LogEntry

	// Broadcast is called after externally observable changes.
	Broadcast func(*GameState)

	rng *rand.Rand
}

// New creates a game in the mulligan stage with empty zones.
func New(id string, players [2]*Player, rules Rules, seed uint64) *GameState {
	return &GameState{
		ID:      id,
		Players: players,
		Phase:   PhaseStart,
		Turn:    1,
		Winner:  NoWinner,
		Rules:   rules,
		rng:     rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
	}
}

// Rand is the game's seeded random source.
func (s *GameState) Rand() *rand.Rand {
	if s.rng == nil {
		s.rng = rand.New(rand.NewPCG(0, 0))
	}
	return s.rng
}

// Active is the player whose turn it is.
func (s *GameState) Active() *Player {
	return s.Players[s.ActivePlayerIndex]
}

// Opponent is the player waiting for their turn.
func (s *GameState) Opponent() *Player {
	return s.Players[1-s.ActivePlayerIndex]
}

// Other returns the index of the other player.
func Other(index int) int {
	return 1 - index
}

// IsOver reports whether a winner (or draw) has been decided.
func (s *GameState) IsOver() bool {
	return s.Winner != NoWinner
}

// Notify invokes the broadcast hook if one is set.
func (s *GameState) Notify() {
	if s.Broadcast != nil {
		s.Broadcast(s)
	}
}

// PlayerIndex returns the index of the player with the given id.
func (s *GameState) PlayerIndex(playerID string) (int, bool) {
	for i, p := range s.Players {
		if p != nil && p.ID == playerID {
			return i, true
		}
	}
	return -1, false
}

// FindOnField locates an instance on either field.
func (s *GameState) FindOnField(id string) (*card.Instance, Location, bool) {
	for pi, p := range s.Players {
		if p == nil {
			continue
		}
		if slot := p.SlotOf(id); slot >= 0 {
			return p.Field[slot], Location{Player: pi, Slot: slot}, true
		}
	}
	return nil, Location{}, false
}

// Shuffle reorders a deck with the game's random source.
func (s *GameState) Shuffle(deck []*card.Instance) {
	s.Rand().Shuffle(len(deck), func(i, j int) { deck[i], deck[j] = deck[j], deck[i] })
}

// RemoveFromQueue drops id from a phase queue, reporting whether it was queued.
func RemoveFromQueue(queue *[]string, id string) bool {
	for i, q := range *queue {
		if q == id {
			*queue = append((*queue)[:i], (*queue)[i+1:]...)
			return true
		}
	}
	return false
}
