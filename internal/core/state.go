// Package core implements the agent execution loop: the single cooperative
// step function that drains inbound messages, captures the screen and
// accessibility state, calls the LLM provider, dispatches tool calls, and
// feeds the results back into the next step's observation.
package core

import (
	"time"

	"github.com/Ninot1Quyi/jarvis-sub000/internal/model"
)

// ToolScreenshot is a screenshot produced by a tool call (as opposed to the
// loop's own primary screenshot), queued for the next step's image list.
type ToolScreenshot struct {
	Path  string
	Label string
}

// State is everything the loop carries across steps.
type State struct {
	CurrentTask   string
	TodoSummary   string
	ScreenEnabled bool

	PendingToolScreenshots []ToolScreenshot
	RoundClicks            *model.RoundClickRing
	CurrentRoundClicks     []model.Coordinate

	NoToolCallCount int
	LastHadToolCall bool

	ScreenWidth  int
	ScreenHeight int

	Messages []model.Message

	AXDiffBaseline  *model.StateSnapshot
	AXToolDiffAdded map[string]int

	StepCount   int
	Finished    bool
	FirstStep   bool
	LastErr     error
	LastRoundAt time.Time

	// RecentStepSummaries keeps the last five "name(args) -> outcome" lines
	// for the computer template's recentSteps section.
	RecentStepSummaries []string
}

func (s *State) pushStepSummary(line string) {
	s.RecentStepSummaries = append(s.RecentStepSummaries, line)
	if len(s.RecentStepSummaries) > 5 {
		s.RecentStepSummaries = s.RecentStepSummaries[len(s.RecentStepSummaries)-5:]
	}
}

// NewState returns the loop's initial state: screen capture enabled, first
// step pending, and empty history.
func NewState() *State {
	return &State{
		ScreenEnabled:   true,
		RoundClicks:     model.NewRoundClickRing(),
		AXToolDiffAdded: make(map[string]int),
		FirstStep:       true,
	}
}

// needsIdleWait implements the step-3 predicate: enter idle polling only
// when inbound was empty, something could plausibly wake the loop back up
// (an inbound queue or an AX backend is actually wired), and either this is
// the first step with no task already queued, or the loop has already gone
// two consecutive rounds without a tool call. A pending task always takes
// priority over idling, first step or not — the loop has work to do.
func (s *State) needsIdleWait(hadInbound, canWake bool) bool {
	if hadInbound || !canWake || s.CurrentTask != "" {
		return false
	}
	if s.FirstStep {
		return true
	}
	return !s.LastHadToolCall && s.NoToolCallCount >= 2
}
