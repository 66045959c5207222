package card

import (
	"fmt"
	"strings"
)

// Keyword is a fixed keyword kind. Strings only appear at the catalog and
// wire boundaries.
type Keyword int

const (
	KeywordHaste Keyword = iota + 1
	KeywordBarrier
	KeywordShell
	KeywordMolt
	KeywordToxic
	KeywordNeurotoxic
	KeywordPoisonous
	KeywordAmbush
	KeywordStalk
	KeywordPride
	KeywordLure
	KeywordWeb
	KeywordHarmless
	KeywordPassive
	KeywordInedible
	KeywordEdible
	KeywordHidden
	KeywordInvisible
	KeywordRegen
	KeywordScavenge
	KeywordImmune
)

var keywordNames = map[Keyword]string{
	KeywordHaste:      "Haste",
	KeywordBarrier:    "Barrier",
	KeywordShell:      "Shell",
	KeywordMolt:       "Molt",
	KeywordToxic:      "Toxic",
	KeywordNeurotoxic: "Neurotoxic",
	KeywordPoisonous:  "Poisonous",
	KeywordAmbush:     "Ambush",
	KeywordStalk:      "Stalk",
	KeywordPride:      "Pride",
	KeywordLure:       "Lure",
	KeywordWeb:        "Web",
	KeywordHarmless:   "Harmless",
	KeywordPassive:    "Passive",
	KeywordInedible:   "Inedible",
	KeywordEdible:     "Edible",
	KeywordHidden:     "Hidden",
	KeywordInvisible:  "Invisible",
	KeywordRegen:      "Regen",
	KeywordScavenge:   "Scavenge",
	KeywordImmune:     "Immune",
}

var keywordsByName = func() map[string]Keyword {
	m := make(map[string]Keyword, len(keywordNames))
	for k, name := range keywordNames {
		m[strings.ToLower(name)] = k
	}
	return m
}()

func (k Keyword) String() string {
	if name, ok := keywordNames[k]; ok {
		return name
	}
	return fmt.Sprintf("KEYWORD_%d", int(k))
}

// ParseKeyword converts a catalog keyword name (case-insensitive) to a Keyword.
func ParseKeyword(name string) (Keyword, error) {
	if k, ok := keywordsByName[strings.ToLower(strings.TrimSpace(name))]; ok {
		return k, nil
	}
	return 0, fmt.Errorf("unknown keyword %q", name)
}

// Keywords is an ordered keyword set. Order follows the card text.
type Keywords []Keyword

// Has reports whether k is present, ignoring any suppression.
func (ks Keywords) Has(k Keyword) bool {
	for _, have := range ks {
		if have == k {
			return true
		}
	}
	return false
}

// With returns a copy with k appended if it was not already present.
func (ks Keywords) With(k Keyword) Keywords {
	if ks.Has(k) {
		return ks.Clone()
	}
	out := make(Keywords, 0, len(ks)+1)
	out = append(out, ks...)
	return append(out, k)
}

// Without returns a copy with every occurrence of k removed.
func (ks Keywords) Without(k Keyword) Keywords {
	out := make(Keywords, 0, len(ks))
	for _, have := range ks {
		if have != k {
			out = append(out, have)
		}
	}
	return out
}

// Clone returns an independent copy.
func (ks Keywords) Clone() Keywords {
	if ks == nil {
		return nil
	}
	return append(Keywords(nil), ks...)
}

// Strings renders the set for views and logs.
func (ks Keywords) Strings() []string {
	out := make([]string, len(ks))
	for i, k := range ks {
		out[i] = k.String()
	}
	return out
}

// ParseKeywords converts a list of names, failing on the first unknown one.
func ParseKeywords(names []string) (Keywords, error) {
	out := make(Keywords, 0, len(names))
	for _, name := range names {
		k, err := ParseKeyword(name)
		if err != nil {
			return nil, err
		}
		out = out.With(k)
	}
	return out, nil
}
