package card

import (
	"fmt"
	"strings"
)

// Selector names the creatures or players an effect descriptor applies to,
// relative to the card that owns the effect.
type Selector int

const (
	SelectSelf Selector = iota + 1
	SelectAllEnemies
	SelectAllFriendly
	SelectAllCreatures
	SelectRandomEnemy
	SelectChooseEnemy
	SelectChooseFriendly
	SelectChooseAny
)

var selectorNames = map[Selector]string{
	SelectSelf:           "self",
	SelectAllEnemies:     "all_enemies",
	SelectAllFriendly:    "all_friendly",
	SelectAllCreatures:   "all_creatures",
	SelectRandomEnemy:    "random_enemy",
	SelectChooseEnemy:    "choose_enemy",
	SelectChooseFriendly: "choose_friendly",
	SelectChooseAny:      "choose_any",
}

func (s Selector) String() string {
	if name, ok := selectorNames[s]; ok {
		return name
	}
	return fmt.Sprintf("SELECTOR_%d", int(s))
}

// IsChoice reports whether the selector needs a player decision.
func (s Selector) IsChoice() bool {
	return s == SelectChooseEnemy || s == SelectChooseFriendly || s == SelectChooseAny
}

// ParseSelector converts a catalog name. An empty name means SelectSelf.
func ParseSelector(name string) (Selector, error) {
	n := strings.ToLower(strings.TrimSpace(name))
	if n == "" {
		return SelectSelf, nil
	}
	for s, sn := range selectorNames {
		if sn == n {
			return s, nil
		}
	}
	return 0, fmt.Errorf("unknown target selector %q", name)
}

// Effect is a declarative effect descriptor. The concrete types below are
// the complete set; evaluators switch over them exhaustively.
type Effect interface {
	isEffect()
}

// Heal restores hp to the card owner.
type Heal struct {
	Amount int
}

// DamageOpponent removes hp from the opposing player.
type DamageOpponent struct {
	Amount int
}

// DamageCreatures deals damage to the selected creatures.
type DamageCreatures struct {
	Amount int
	Target Selector
}

// Kill destroys the selected creatures.
type Kill struct {
	Target Selector
}

// Transform replaces the selected creatures with a fresh instance of Into.
type Transform struct {
	Target Selector
	Into   string
}

// Summon puts token creatures onto the owner's field.
type Summon struct {
	Tokens []string
}

// CopyAbilities copies the keyword set of the selected creature onto the source.
type CopyAbilities struct {
	From Selector
}

// Buff permanently changes current attack and hp.
type Buff struct {
	Atk    int
	HP     int
	Target Selector
}

// Freeze freezes the selected creatures. A lethal freeze kills the creature
// when it expires at the end of the next turn.
type Freeze struct {
	Target Selector
	Lethal bool
}

// GrantKeyword adds a keyword to the selected creatures.
type GrantKeyword struct {
	Keyword Keyword
	Target  Selector
}

// Draw draws cards for the card owner.
type Draw struct {
	Count int
}

// Script delegates evaluation to a named scripting hook.
type Script struct {
	Hook string
}

func (Heal) isEffect()            {}
func (DamageOpponent) isEffect()  {}
func (DamageCreatures) isEffect() {}
func (Kill) isEffect()            {}
func (Transform) isEffect()       {}
func (Summon) isEffect()          {}
func (CopyAbilities) isEffect()   {}
func (Buff) isEffect()            {}
func (Freeze) isEffect()          {}
func (GrantKeyword) isEffect()    {}
func (Draw) isEffect()            {}
func (Script) isEffect()          {}

// TargetOf returns the selector an effect aims at and whether it has one.
func TargetOf(e Effect) (Selector, bool) {
	switch eff := e.(type) {
	case DamageCreatures:
		return eff.Target, true
	case Kill:
		return eff.Target, true
	case Transform:
		return eff.Target, true
	case CopyAbilities:
		return eff.From, true
	case Buff:
		return eff.Target, true
	case Freeze:
		return eff.Target, true
	case GrantKeyword:
		return eff.Target, true
	default:
		return 0, false
	}
}
