package state

import "fmt"

// Category classifies game log entries.
type Category int

const (
	CategoryCombat Category = iota
	CategoryDeath
	CategoryBuff
	CategoryDebuff
	CategoryPhase
	CategoryHeal
	CategoryPlay
	CategoryConsume
	CategoryEffect
	CategorySystem
)

var categoryNames = map[Category]string{
	CategoryCombat:  "Combat",
	CategoryDeath:   "Death",
	CategoryBuff:    "Buff",
	CategoryDebuff:  "Debuff",
	CategoryPhase:   "Phase",
	CategoryHeal:    "Heal",
	CategoryPlay:    "Play",
	CategoryConsume: "Consume",
	CategoryEffect:  "Effect",
	CategorySystem:  "System",
}

func (c Category) String() string {
	if name, ok := categoryNames[c]; ok {
		return name
	}
	return fmt.Sprintf("CATEGORY_%d", int(c))
}

// LogEntry is one line of the human-readable game log.
type LogEntry struct {
	Turn     int
	Category Category
	Message  string
}

// LogAction appends to the game log. Engine logic never reads the log back.
func (s *GameState) LogAction(category Category, message string) {
	s.Log = append(s.Log, LogEntry{Turn: s.Turn, Category: category, Message: message})
}

// Logf formats and appends to the game log.
func (s *GameState) Logf(category Category, format string, args ...any) {
	s.LogAction(category, fmt.Sprintf(format, args...))
}

// LastLog returns the most recent entry, if any.
func (s *GameState) LastLog() (LogEntry, bool) {
	if len(s.Log) == 0 {
		return LogEntry{}, false
	}
	return s.Log[len(s.Log)-1], true
}
