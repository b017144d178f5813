package flow

import (
	"context"
	"fmt"
	"strings"

	"github.com/BTreeMap/StreamAgent/internal/envelope"
	"github.com/BTreeMap/StreamAgent/internal/genai"
	"github.com/BTreeMap/StreamAgent/internal/models"
)

// AdvanceStory applies one decoded story envelope to s. Progress is clamped
// to 0..100 and never decreases; completion is derived from progress alone,
// the envelope's own isComplete flag is ignored.
func AdvanceStory(s models.StoryState, e envelope.Story) models.StoryState {
	p := int(e.StoryProgress)
	if p > 100 {
		p = 100
	}
	if p < s.Progress {
		p = s.Progress
	}
	phase, ok := models.ParseStoryPhase(e.Phase)
	if !ok {
		phase = models.PhaseForProgress(p)
	}
	return models.StoryState{Phase: phase, Progress: p, IsComplete: p >= 100}
}

// Story drives one story arc about a subject to completion.
type Story struct {
	gen       genai.Generator
	character models.Character
	subject   string
	opts      Opts

	state    models.StoryState
	thoughts *ThoughtHistory
}

// NewStory creates a story run starting from the introduction phase.
func NewStory(gen genai.Generator, character models.Character, subject string, opts ...Option) *Story {
	return &Story{
		gen:       gen,
		character: character,
		subject:   subject,
		opts:      buildOpts(0, opts),
		state:     models.NewStoryState(),
		thoughts:  NewThoughtHistory(DefaultThoughtCapacity),
	}
}

// State returns the current story state.
func (s *Story) State() models.StoryState { return s.state }

// Thoughts returns the continuity history, oldest first.
func (s *Story) Thoughts() []string { return s.thoughts.Items() }

// Step issues one oracle call and applies the result. ok is false when the
// response could not be decoded; the returned thought is then FallbackThought
// and the state is unchanged.
func (s *Story) Step(ctx context.Context) (thought string, ok bool, err error) {
	prompt := storyPrompt(s.character.Name, s.subject, s.state, s.thoughts.Items())
	text, err := s.gen.Generate(ctx, genai.ModelMedium, systemPrompt(s.character), prompt)
	if err != nil {
		return "", false, fmt.Errorf("story step: %w", err)
	}
	res := envelope.Decode[envelope.Story](envelope.KindStory, text)
	if !res.OK() {
		s.opts.Logger.Warn("Story.Step: could not decode story envelope", "error", res.Err, "raw", text)
		return FallbackThought, false, nil
	}

	thought = strings.TrimSpace(res.Value.Thought)
	s.state = AdvanceStory(s.state, res.Value)
	if !s.state.IsComplete && thought != "" {
		s.thoughts.Add(thought)
	}
	s.opts.Logger.Debug("Story.Step: advanced", "progress", s.state.Progress, "phase", s.state.Phase,
		"reported_progress", int(res.Value.StoryProgress), "reported_complete", bool(res.Value.IsComplete))
	return thought, true, nil
}

// Run calls Step until the story completes. It returns ErrIncomplete when
// the step guard is reached first.
func (s *Story) Run(ctx context.Context) (Result, error) {
	var res Result
	for !s.state.IsComplete && res.Calls < s.opts.MaxSteps {
		if res.Calls > 0 && s.opts.StepDelay > 0 {
			if err := s.opts.Sleep(ctx, s.opts.StepDelay); err != nil {
				return res, err
			}
		}
		thought, ok, err := s.Step(ctx)
		res.Calls++
		if err != nil {
			return res, err
		}
		if !ok {
			res.Fallbacks++
			continue
		}
		res.emit(ctx, s.opts.Sink, thought)
	}
	if !s.state.IsComplete {
		s.opts.Logger.Warn("Story.Run: step guard reached", "calls", res.Calls, "progress", s.state.Progress)
		return res, fmt.Errorf("%w: story at %d%% after %d calls", ErrIncomplete, s.state.Progress, res.Calls)
	}
	s.opts.Logger.Info("Story.Run: story complete", "subject", s.subject, "thoughts", len(res.Narrative),
		"calls", res.Calls, "fallbacks", res.Fallbacks, "phase", s.state.Phase)
	return res, nil
}
