package card

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// EffectSpec is the flat catalog form of an effect descriptor. Only the
// fields relevant to Type are read.
type EffectSpec struct {
	Type    string   `yaml:"type" json:"type"`
	Amount  int      `yaml:"amount,omitempty" json:"amount,omitempty"`
	Atk     int      `yaml:"atk,omitempty" json:"atk,omitempty"`
	HP      int      `yaml:"hp,omitempty" json:"hp,omitempty"`
	Target  string   `yaml:"target,omitempty" json:"target,omitempty"`
	Into    string   `yaml:"into,omitempty" json:"into,omitempty"`
	Tokens  []string `yaml:"tokens,omitempty" json:"tokens,omitempty"`
	Keyword string   `yaml:"keyword,omitempty" json:"keyword,omitempty"`
	Count   int      `yaml:"count,omitempty" json:"count,omitempty"`
	Hook    string   `yaml:"hook,omitempty" json:"hook,omitempty"`
	Lethal  bool     `yaml:"lethal,omitempty" json:"lethal,omitempty"`
}

// CardSpec is the catalog form of a Definition.
type CardSpec struct {
	ID               string                  `yaml:"id"`
	Name             string                  `yaml:"name"`
	Type             string                  `yaml:"type"`
	Atk              int                     `yaml:"atk"`
	HP               int                     `yaml:"hp"`
	Nutrition        int                     `yaml:"nutrition"`
	Tribe            string                  `yaml:"tribe"`
	Keywords         []string                `yaml:"keywords"`
	ShellLevel       int                     `yaml:"shell_level"`
	Token            bool                    `yaml:"token"`
	FieldSpell       bool                    `yaml:"field_spell"`
	TransformOnStart string                  `yaml:"transform_on_start"`
	PostCombatRegen  bool                    `yaml:"post_combat_regen"`
	Effects          map[string][]EffectSpec `yaml:"effects"`
}

type catalogFile struct {
	Cards []CardSpec `yaml:"cards"`
}

// Definition builds the runtime definition, rejecting unknown names.
func (s CardSpec) Definition() (*Definition, error) {
	if strings.TrimSpace(s.ID) == "" {
		return nil, errors.New("card id is required")
	}
	typ, err := ParseType(s.Type)
	if err != nil {
		return nil, fmt.Errorf("card %s: %w", s.ID, err)
	}
	kws, err := ParseKeywords(s.Keywords)
	if err != nil {
		return nil, fmt.Errorf("card %s: %w", s.ID, err)
	}
	def := &Definition{
		ID:               s.ID,
		Name:             s.Name,
		Type:             typ,
		Atk:              s.Atk,
		HP:               s.HP,
		Nutrition:        s.Nutrition,
		Tribe:            s.Tribe,
		Keywords:         kws,
		ShellLevel:       s.ShellLevel,
		Token:            s.Token,
		FieldSpell:       s.FieldSpell,
		TransformOnStart: s.TransformOnStart,
		PostCombatRegen:  s.PostCombatRegen,
	}
	if def.Name == "" {
		def.Name = def.ID
	}
	if kws.Has(KeywordShell) && def.ShellLevel == 0 {
		def.ShellLevel = 1
	}
	if len(s.Effects) > 0 {
		def.Effects = make(map[Trigger][]Effect, len(s.Effects))
	}
	for key, specs := range s.Effects {
		trigger, err := ParseTrigger(key)
		if err != nil {
			return nil, fmt.Errorf("card %s: %w", s.ID, err)
		}
		for i, es := range specs {
			eff, err := es.Effect()
			if err != nil {
				return nil, fmt.Errorf("card %s %s[%d]: %w", s.ID, key, i, err)
			}
			def.Effects[trigger] = append(def.Effects[trigger], eff)
		}
	}
	return def, nil
}

// Effect converts the flat spec to its typed descriptor.
func (es EffectSpec) Effect() (Effect, error) {
	target, err := ParseSelector(es.Target)
	if err != nil {
		return nil, err
	}
	switch strings.ToLower(strings.TrimSpace(es.Type)) {
	case "heal":
		return Heal{Amount: es.Amount}, nil
	case "damage_opponent":
		return DamageOpponent{Amount: es.Amount}, nil
	case "damage_creatures":
		return DamageCreatures{Amount: es.Amount, Target: target}, nil
	case "kill":
		return Kill{Target: target}, nil
	case "transform":
		if es.Into == "" {
			return nil, errors.New("transform requires into")
		}
		return Transform{Target: target, Into: es.Into}, nil
	case "summon":
		if len(es.Tokens) == 0 {
			return nil, errors.New("summon requires tokens")
		}
		return Summon{Tokens: append([]string(nil), es.Tokens...)}, nil
	case "copy_abilities":
		return CopyAbilities{From: target}, nil
	case "buff":
		return Buff{Atk: es.Atk, HP: es.HP, Target: target}, nil
	case "freeze":
		return Freeze{Target: target, Lethal: es.Lethal}, nil
	case "grant_keyword":
		kw, err := ParseKeyword(es.Keyword)
		if err != nil {
			return nil, err
		}
		return GrantKeyword{Keyword: kw, Target: target}, nil
	case "draw":
		count := es.Count
		if count == 0 {
			count = 1
		}
		return Draw{Count: count}, nil
	case "script":
		if es.Hook == "" {
			return nil, errors.New("script requires hook")
		}
		return Script{Hook: es.Hook}, nil
	default:
		return nil, fmt.Errorf("unknown effect type %q", es.Type)
	}
}

// Catalog holds every known Definition keyed by ID.
type Catalog struct {
	defs map[string]*Definition
}

// NewCatalog creates an empty Catalog.
func NewCatalog() *Catalog {
	return &Catalog{defs: make(map[string]*Definition)}
}

// Register adds def, overwriting any entry with the same ID.
// Precondition: def must not be nil and def.ID must not be empty.
func (c *Catalog) Register(def *Definition) {
	c.defs[def.ID] = def
}

// Get returns the Definition for id, or (nil, false) if not found.
func (c *Catalog) Get(id string) (*Definition, bool) {
	d, ok := c.defs[id]
	return d, ok
}

// Len is the number of registered definitions.
func (c *Catalog) Len() int {
	return len(c.defs)
}

// All returns the definitions sorted by ID.
func (c *Catalog) All() []*Definition {
	out := make([]*Definition, 0, len(c.defs))
	for _, d := range c.defs {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Validate checks that every definition reference resolves.
func (c *Catalog) Validate() error {
	var errs []error
	for _, def := range c.All() {
		if def.TransformOnStart != "" {
			if _, ok := c.defs[def.TransformOnStart]; !ok {
				errs = append(errs, fmt.Errorf("card %s: transform_on_start references unknown card %q", def.ID, def.TransformOnStart))
			}
		}
		for _, effects := range def.Effects {
			for _, eff := range effects {
				switch e := eff.(type) {
				case Transform:
					if _, ok := c.defs[e.Into]; !ok {
						errs = append(errs, fmt.Errorf("card %s: transform references unknown card %q", def.ID, e.Into))
					}
				case Summon:
					for _, id := range e.Tokens {
						tok, ok := c.defs[id]
						if !ok {
							errs = append(errs, fmt.Errorf("card %s: summon references unknown card %q", def.ID, id))
						} else if !tok.Type.IsCreature() {
							errs = append(errs, fmt.Errorf("card %s: summoned card %q is not a creature", def.ID, id))
						}
					}
				}
			}
		}
	}
	return errors.Join(errs...)
}

// DecodeSpecs parses a catalog document of the form `cards: [...]`.
func DecodeSpecs(r io.Reader) ([]CardSpec, error) {
	var file catalogFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, err
	}
	return file.Cards, nil
}

// ReadSpecDirectory reads every *.yaml file in dir in name order.
// Precondition: dir must be a readable directory.
func ReadSpecDirectory(dir string) ([]CardSpec, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading catalog dir %q: %w", dir, err)
	}
	var specs []CardSpec
	for _, e := range entries {
		if e.IsDir() || !(strings.HasSuffix(e.Name(), ".yaml") || strings.HasSuffix(e.Name(), ".yml")) {
			continue
		}
		path := filepath.Join(dir, e.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading %q: %w", path, err)
		}
		fileSpecs, err := DecodeSpecs(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("parsing %q: %w", path, err)
		}
		specs = append(specs, fileSpecs...)
	}
	return specs, nil
}

// NewCatalogFromSpecs converts and validates specs.
// Postcondition: Returns a Catalog whose references all resolve, or an error.
func NewCatalogFromSpecs(specs []CardSpec) (*Catalog, error) {
	cat := NewCatalog()
	for _, s := range specs {
		def, err := s.Definition()
		if err != nil {
			return nil, err
		}
		if _, dup := cat.Get(def.ID); dup {
			return nil, fmt.Errorf("duplicate card id %q", def.ID)
		}
		cat.Register(def)
	}
	if err := cat.Validate(); err != nil {
		return nil, err
	}
	return cat, nil
}

// LoadDirectory reads and validates every catalog file in dir.
func LoadDirectory(dir string) (*Catalog, error) {
	specs, err := ReadSpecDirectory(dir)
	if err != nil {
		return nil, err
	}
	return NewCatalogFromSpecs(specs)
}
