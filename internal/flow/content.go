package flow

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/BTreeMap/StreamAgent/internal/envelope"
	"github.com/BTreeMap/StreamAgent/internal/genai"
	"github.com/BTreeMap/StreamAgent/internal/models"
)

// ErrEmptyPlan is returned by AdoptContentPlan when the plan has no steps.
var ErrEmptyPlan = errors.New("content plan has no steps")

// AdoptContentPlan builds the plan proposed by a planning envelope. Blank
// steps are dropped; the topic falls back to subject.
func AdoptContentPlan(subject string, e envelope.ContentInit) (models.ContentPlan, error) {
	var steps []string
	for _, st := range e.ContentPlan.Steps {
		if st = strings.TrimSpace(st); st != "" {
			steps = append(steps, st)
		}
	}
	if len(steps) == 0 {
		return models.ContentPlan{}, ErrEmptyPlan
	}
	topic := strings.TrimSpace(e.ContentPlan.Topic)
	if topic == "" {
		topic = subject
	}
	return models.ContentPlan{
		Topic:       topic,
		Goal:        strings.TrimSpace(e.ContentPlan.Goal),
		Steps:       steps,
		CurrentStep: 1,
	}, nil
}

// AdvanceContent applies one decoded step envelope to p. CurrentStep never
// decreases; the plan completes when the oracle says so or when the current
// step reaches len(Steps)-1.
func AdvanceContent(p models.ContentPlan, e envelope.ContentStep) models.ContentPlan {
	if n := int(e.CurrentStep); n > p.CurrentStep {
		p.CurrentStep = n
	}
	p.IsComplete = bool(e.IsComplete) || p.CurrentStep >= len(p.Steps)-1
	return p
}

// Content drafts a content plan about a subject, then generates it step by step.
type Content struct {
	gen       genai.Generator
	character models.Character
	subject   string
	opts      Opts

	plan      models.ContentPlan
	thoughts  *ThoughtHistory
	stepCalls int
}

// NewContent creates a content run with an empty plan.
func NewContent(gen genai.Generator, character models.Character, subject string, opts ...Option) *Content {
	return &Content{
		gen:       gen,
		character: character,
		subject:   subject,
		opts:      buildOpts(DefaultContentStepDelay, opts),
		plan:      models.ContentPlan{Topic: subject},
		thoughts:  NewThoughtHistory(DefaultThoughtCapacity),
	}
}

// Plan returns a copy of the current plan.
func (c *Content) Plan() models.ContentPlan {
	p := c.plan
	p.Steps = append([]string(nil), c.plan.Steps...)
	return p
}

// Thoughts returns the continuity history, oldest first.
func (c *Content) Thoughts() []string { return c.thoughts.Items() }

// Step issues the planning call while no plan exists, and a step call
// afterwards. ok is false when the response could not be used.
func (c *Content) Step(ctx context.Context) (thought string, ok bool, err error) {
	if !c.plan.Planned() {
		return c.planStep(ctx)
	}
	return c.contentStep(ctx)
}

func (c *Content) planStep(ctx context.Context) (string, bool, error) {
	text, err := c.gen.Generate(ctx, genai.ModelMedium, systemPrompt(c.character), contentPlanPrompt(c.character.Name, c.subject))
	if err != nil {
		return "", false, fmt.Errorf("content plan: %w", err)
	}
	res := envelope.Decode[envelope.ContentInit](envelope.KindContentInit, text)
	if !res.OK() {
		c.opts.Logger.Warn("Content.planStep: could not decode plan envelope", "error", res.Err, "raw", text)
		return FallbackThought, false, nil
	}
	plan, err := AdoptContentPlan(c.subject, res.Value)
	if err != nil {
		c.opts.Logger.Warn("Content.planStep: plan rejected", "error", err)
		return FallbackThought, false, nil
	}
	c.plan = plan
	thought := strings.TrimSpace(res.Value.Thought)
	if thought != "" {
		c.thoughts.Add(thought)
	}
	c.opts.Logger.Info("Content.planStep: content plan initialized", "topic", plan.Topic, "goal", plan.Goal, "steps", len(plan.Steps))
	return thought, true, nil
}

func (c *Content) contentStep(ctx context.Context) (string, bool, error) {
	c.stepCalls++
	prompt := contentStepPrompt(c.character.Name, c.subject, c.plan, c.thoughts.Items())
	text, err := c.gen.Generate(ctx, genai.ModelMedium, systemPrompt(c.character), prompt)
	if err != nil {
		return "", false, fmt.Errorf("content step %d: %w", c.plan.CurrentStep, err)
	}
	res := envelope.Decode[envelope.ContentStep](envelope.KindContentStep, text)
	if !res.OK() {
		c.opts.Logger.Warn("Content.contentStep: could not decode step envelope", "error", res.Err, "raw", text)
		return FallbackThought, false, nil
	}

	thought := strings.TrimSpace(res.Value.Thought)
	if tr := strings.TrimSpace(res.Value.Transition); tr != "" {
		thought = tr + " " + thought
	}
	c.plan = AdvanceContent(c.plan, res.Value)
	if th := strings.TrimSpace(res.Value.Thought); th != "" {
		c.thoughts.Add(th)
	}
	c.opts.Logger.Debug("Content.contentStep: advanced", "current_step", c.plan.CurrentStep, "total_steps", len(c.plan.Steps), "complete", c.plan.IsComplete)
	return thought, true, nil
}

func (c *Content) guardReached(calls int) bool {
	if calls >= c.opts.MaxSteps {
		return true
	}
	return c.plan.Planned() && c.stepCalls >= len(c.plan.Steps)+contentStepMargin
}

// Run drives the plan to completion, pausing StepDelay between calls.
// It returns ErrIncomplete when a step guard is reached first.
func (c *Content) Run(ctx context.Context) (Result, error) {
	var res Result
	for !c.plan.IsComplete && !c.guardReached(res.Calls) {
		if res.Calls > 0 && c.opts.StepDelay > 0 {
			if err := c.opts.Sleep(ctx, c.opts.StepDelay); err != nil {
				return res, err
			}
		}
		thought, ok, err := c.Step(ctx)
		res.Calls++
		if err != nil {
			return res, err
		}
		if !ok {
			res.Fallbacks++
			continue
		}
		res.emit(ctx, c.opts.Sink, thought)
	}
	if !c.plan.IsComplete {
		c.opts.Logger.Warn("Content.Run: step guard reached", "calls", res.Calls, "current_step", c.plan.CurrentStep, "total_steps", len(c.plan.Steps))
		return res, fmt.Errorf("%w: content at step %d of %d after %d calls", ErrIncomplete, c.plan.CurrentStep, len(c.plan.Steps), res.Calls)
	}
	c.opts.Logger.Info("Content.Run: content complete", "topic", c.plan.Topic, "goal", c.plan.Goal,
		"thoughts", len(res.Narrative), "calls", res.Calls, "fallbacks", res.Fallbacks)
	return res, nil
}
