package card

import "github.com/google/uuid"

// Definition is the immutable template a card instance is created from.
type Definition struct {
	ID        string
	Name      string
	Type      Type
	Atk       int
	HP        int
	Nutrition int
	Tribe     string
	Keywords  Keywords
	// ShellLevel is the charge Shell restores to.
	ShellLevel int
	Token      bool
	// FieldSpell spells stay on the field and become the active field spell.
	FieldSpell bool
	// TransformOnStart names the definition this card becomes at the start
	// of its owner's turn.
	TransformOnStart string
	// PostCombatRegen heals the creature to full in Main 2 if it attacked.
	PostCombatRegen bool
	Effects         map[Trigger][]Effect
}

// EffectsFor returns the descriptors declared for a trigger.
func (d *Definition) EffectsFor(t Trigger) []Effect {
	if d == nil || d.Effects == nil {
		return nil
	}
	return d.Effects[t]
}

// HasEffect reports whether any descriptor is declared for t.
func (d *Definition) HasEffect(t Trigger) bool {
	return len(d.EffectsFor(t)) > 0
}

// SlainBy is a value snapshot of the creature that dealt a killing blow. It
// never points back at the live instance.
type SlainBy struct {
	ID   string
	Name string
	Type Type
	Atk  int
	HP   int
}

// Instance is a card in play. It is owned by exactly one zone at a time.
type Instance struct {
	ID           string
	Def          *Definition
	CurrentAtk   int
	CurrentHP    int
	Keywords     Keywords
	SummonedTurn int

	Frozen             bool
	FrozenDiesTurn     int // 0 for plain Frozen
	Paralyzed          bool
	ParalyzedUntilTurn int
	Webbed             bool
	HasBarrier         bool
	DryDropped         bool
	AbilitiesCancelled bool

	HasAttacked       bool
	JoinedPrideAttack bool
	BeforeCombatFired bool

	DiedInCombat  bool
	KilledByToxic bool
	SlainBy       *SlainBy

	CurrentShell int
	ShellLevel   int

	Stalking   bool
	StalkBonus int
	Hidden     bool // granted while stalking
}

// NewInstance creates an instance with current stats equal to the base stats.
// Status flags that depend on active abilities are applied when the
// instance enters the field.
func NewInstance(def *Definition) *Instance {
	return &Instance{
		ID:         uuid.NewString(),
		Def:        def,
		CurrentAtk: def.Atk,
		CurrentHP:  def.HP,
		Keywords:   def.Keywords.Clone(),
		ShellLevel: def.ShellLevel,
	}
}

// Name is the definition name.
func (c *Instance) Name() string {
	if c == nil || c.Def == nil {
		return ""
	}
	return c.Def.Name
}

// Type is the definition type.
func (c *Instance) Type() Type {
	if c == nil || c.Def == nil {
		return 0
	}
	return c.Def.Type
}

// IsToken reports whether the instance came from a token definition.
func (c *Instance) IsToken() bool {
	return c != nil && c.Def != nil && c.Def.Token
}

// Snapshot captures the identifying values for a SlainBy record.
func (c *Instance) Snapshot() *SlainBy {
	if c == nil {
		return nil
	}
	return &SlainBy{
		ID:   c.ID,
		Name: c.Name(),
		Type: c.Type(),
		Atk:  c.CurrentAtk,
		HP:   c.CurrentHP,
	}
}

// ResetTurnFlags clears the per-turn combat flags.
func (c *Instance) ResetTurnFlags() {
	c.HasAttacked = false
	c.JoinedPrideAttack = false
	c.BeforeCombatFired = false
}

// ClearStatuses drops the field-only statuses of an instance leaving play.
// Dry-drop, ability cancellation and the death record stay with the card.
func (c *Instance) ClearStatuses() {
	c.Frozen = false
	c.FrozenDiesTurn = 0
	c.Paralyzed = false
	c.ParalyzedUntilTurn = 0
	c.Webbed = false
	c.HasBarrier = false
	c.Stalking = false
	c.StalkBonus = 0
	c.Hidden = false
	c.ResetTurnFlags()
}
