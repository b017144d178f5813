package models

import "strings"

// StoryPhase is the narrative phase reported by the story oracle.
type StoryPhase string

const (
	PhaseIntroduction StoryPhase = "introduction"
	PhaseDevelopment  StoryPhase = "development"
	PhaseClimax       StoryPhase = "climax"
	PhaseResolution   StoryPhase = "resolution"
)

// ParseStoryPhase resolves a phase name case-insensitively.
func ParseStoryPhase(s string) (StoryPhase, bool) {
	switch StoryPhase(strings.ToLower(strings.TrimSpace(s))) {
	case PhaseIntroduction:
		return PhaseIntroduction, true
	case PhaseDevelopment:
		return PhaseDevelopment, true
	case PhaseClimax:
		return PhaseClimax, true
	case PhaseResolution:
		return PhaseResolution, true
	}
	return "", false
}

// PhaseForProgress maps a progress value onto the phase band it falls in:
// 0-25 introduction, 26-50 development, 51-75 climax, 76-100 resolution.
func PhaseForProgress(progress int) StoryPhase {
	switch {
	case progress <= 25:
		return PhaseIntroduction
	case progress <= 50:
		return PhaseDevelopment
	case progress <= 75:
		return PhaseClimax
	default:
		return PhaseResolution
	}
}

// StoryState is the state of one structured story run.
type StoryState struct {
	Phase      StoryPhase `json:"phase"`
	Progress   int        `json:"progress"`
	IsComplete bool       `json:"is_complete"`
}

// NewStoryState returns the starting state of a story run.
func NewStoryState() StoryState {
	return StoryState{Phase: PhaseIntroduction}
}

// ContentPlan is the state of one structured content run.
type ContentPlan struct {
	Topic       string   `json:"topic"`
	Goal        string   `json:"goal"`
	Steps       []string `json:"steps"`
	CurrentStep int      `json:"current_step"`
	IsComplete  bool     `json:"is_complete"`
}

// Planned reports whether the planning call has populated the plan.
func (p ContentPlan) Planned() bool {
	return p.CurrentStep > 0 && len(p.Steps) > 0
}

// StepInstruction returns the instruction text for the current step.
func (p ContentPlan) StepInstruction() string {
	i := p.CurrentStep - 1
	if i < 0 || i >= len(p.Steps) {
		return ""
	}
	return p.Steps[i]
}
