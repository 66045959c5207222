package state

import "github.com/foodchain/foodchain-server-go/internal/game/card"

// Player holds one side of the game. Every card instance lives in exactly
// one of the zone slices.
type Player struct {
	ID   string
	Name string
	HP   int
	// Hand order is visible only to its owner.
	Hand []*card.Instance
	// Field has a fixed number of slots; nil is an empty slot.
	Field []*card.Instance
	// Deck[0] is the top of the deck.
	Deck []*card.Instance
	// Carrion never holds tokens.
	Carrion []*card.Instance
}

// NewPlayer creates a player with an empty field of the given size.
func NewPlayer(id, name string, hp, fieldSlots int) *Player {
	return &Player{
		ID:    id,
		Name:  name,
		HP:    hp,
		Field: make([]*card.Instance, fieldSlots),
	}
}

// FirstEmptySlot returns the lowest empty field slot or -1 if the field is full.
func (p *Player) FirstEmptySlot() int {
	for i, c := range p.Field {
		if c == nil {
			return i
		}
	}
	return -1
}

// SlotOf returns the field slot holding the instance, or -1.
func (p *Player) SlotOf(id string) int {
	for i, c := range p.Field {
		if c != nil && c.ID == id {
			return i
		}
	}
	return -1
}

// Creatures returns the occupied field slots that hold creatures, in slot order.
func (p *Player) Creatures() []*card.Instance {
	out := make([]*card.Instance, 0, len(p.Field))
	for _, c := range p.Field {
		if c != nil && c.Type().IsCreature() {
			out = append(out, c)
		}
	}
	return out
}

// Place puts c into slot. It refuses an occupied or out-of-range slot.
func (p *Player) Place(c *card.Instance, slot int) bool {
	if slot < 0 || slot >= len(p.Field) || p.Field[slot] != nil {
		return false
	}
	p.Field[slot] = c
	return true
}

// RemoveFromField empties the slot holding id and returns its instance.
func (p *Player) RemoveFromField(id string) *card.Instance {
	slot := p.SlotOf(id)
	if slot < 0 {
		return nil
	}
	c := p.Field[slot]
	p.Field[slot] = nil
	return c
}

// HandIndex returns the position of id in hand, or -1.
func (p *Player) HandIndex(id string) int {
	for i, c := range p.Hand {
		if c.ID == id {
			return i
		}
	}
	return -1
}

// RemoveFromHand takes id out of the hand.
func (p *Player) RemoveFromHand(id string) *card.Instance {
	i := p.HandIndex(id)
	if i < 0 {
		return nil
	}
	c := p.Hand[i]
	p.Hand = append(p.Hand[:i], p.Hand[i+1:]...)
	return c
}

// CarrionIndex returns the position of id in carrion, or -1.
func (p *Player) CarrionIndex(id string) int {
	for i, c := range p.Carrion {
		if c.ID == id {
			return i
		}
	}
	return -1
}

// RemoveFromCarrion takes id out of carrion.
func (p *Player) RemoveFromCarrion(id string) *card.Instance {
	i := p.CarrionIndex(id)
	if i < 0 {
		return nil
	}
	c := p.Carrion[i]
	p.Carrion = append(p.Carrion[:i], p.Carrion[i+1:]...)
	return c
}

// Bury moves a dead instance to carrion with its field statuses cleared.
// Tokens are discarded instead and Bury reports false for them.
func (p *Player) Bury(c *card.Instance) bool {
	if c == nil || c.IsToken() {
		return false
	}
	c.ClearStatuses()
	p.Carrion = append(p.Carrion, c)
	return true
}

// Draw moves the top card of the deck to the hand.
func (p *Player) Draw() (*card.Instance, bool) {
	if len(p.Deck) == 0 {
		return nil, false
	}
	c := p.Deck[0]
	p.Deck = p.Deck[1:]
	p.Hand = append(p.Hand, c)
	return c, true
}
