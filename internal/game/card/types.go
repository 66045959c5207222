package card

import (
	"fmt"
	"strings"
)

// Type is the card type printed on a definition.
type Type int

const (
	TypePredator Type = iota + 1
	TypePrey
	TypeSpell
	TypeFreeSpell
	TypeTrap
)

var typeNames = map[Type]string{
	TypePredator:  "Predator",
	TypePrey:      "Prey",
	TypeSpell:     "Spell",
	TypeFreeSpell: "Free Spell",
	TypeTrap:      "Trap",
}

func (t Type) String() string {
	if name, ok := typeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("TYPE_%d", int(t))
}

// IsCreature reports whether cards of this type occupy a field slot as creatures.
func (t Type) IsCreature() bool {
	return t == TypePredator || t == TypePrey
}

// IsSpell covers both spell kinds.
func (t Type) IsSpell() bool {
	return t == TypeSpell || t == TypeFreeSpell
}

// ParseType accepts "predator", "prey", "spell", "free spell"/"free_spell", "trap".
func ParseType(name string) (Type, error) {
	n := strings.ToLower(strings.TrimSpace(name))
	n = strings.NewReplacer("_", " ", "-", " ").Replace(n)
	for t, tn := range typeNames {
		if strings.ToLower(tn) == n {
			return t, nil
		}
	}
	return 0, fmt.Errorf("unknown card type %q", name)
}

// Trigger names the moment a card-declared effect fires.
type Trigger int

const (
	OnPlay Trigger = iota + 1
	OnConsume
	OnSlain
	OnStart
	OnEnd
	OnBeforeCombat
)

var triggerNames = map[Trigger]string{
	OnPlay:         "onPlay",
	OnConsume:      "onConsume",
	OnSlain:        "onSlain",
	OnStart:        "onStart",
	OnEnd:          "onEnd",
	OnBeforeCombat: "onBeforeCombat",
}

var triggerKeys = map[string]Trigger{
	"on_play":          OnPlay,
	"on_consume":       OnConsume,
	"on_slain":         OnSlain,
	"on_start":         OnStart,
	"on_end":           OnEnd,
	"on_before_combat": OnBeforeCombat,
}

func (t Trigger) String() string {
	if name, ok := triggerNames[t]; ok {
		return name
	}
	return fmt.Sprintf("TRIGGER_%d", int(t))
}

// ParseTrigger converts a catalog key such as "on_consume".
func ParseTrigger(key string) (Trigger, error) {
	if t, ok := triggerKeys[strings.ToLower(strings.TrimSpace(key))]; ok {
		return t, nil
	}
	return 0, fmt.Errorf("unknown trigger %q", key)
}
