package state

import "fmt"

// Phase is one of the seven phases of a turn, in play order.
type Phase int

const (
	PhaseStart Phase = iota
	PhaseDraw
	PhaseMain1
	PhaseBeforeCombat
	PhaseCombat
	PhaseMain2
	PhaseEnd
)

var phaseNames = map[Phase]string{
	PhaseStart:        "Start",
	PhaseDraw:         "Draw",
	PhaseMain1:        "Main 1",
	PhaseBeforeCombat: "Before Combat",
	PhaseCombat:       "Combat",
	PhaseMain2:        "Main 2",
	PhaseEnd:          "End",
}

func (p Phase) String() string {
	if name, ok := phaseNames[p]; ok {
		return name
	}
	return fmt.Sprintf("PHASE_%d", int(p))
}

// Next returns the following phase. End wraps to Start; the player hand-off
// happens in the turn machine, not here.
func (p Phase) Next() Phase {
	if p >= PhaseEnd {
		return PhaseStart
	}
	return p + 1
}

// IsMain reports whether cards may be played from hand in this phase.
func (p Phase) IsMain() bool {
	return p == PhaseMain1 || p == PhaseMain2
}

// SetupStage tracks the pre-game mulligan.
type SetupStage int

const (
	SetupMulligan SetupStage = iota
	SetupComplete
)

var setupStageNames = map[SetupStage]string{
	SetupMulligan: "mulligan",
	SetupComplete: "complete",
}

func (s SetupStage) String() string {
	if name, ok := setupStageNames[s]; ok {
		return name
	}
	return fmt.Sprintf("SETUP_%d", int(s))
}

// Setup is the mulligan bookkeeping for both players.
type Setup struct {
	Stage      SetupStage
	Kept       [2]bool
	Mulliganed [2]bool
}

// Complete reports whether setup has finished.
func (s Setup) Complete() bool {
	return s.Stage == SetupComplete
}
