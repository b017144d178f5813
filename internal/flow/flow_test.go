package flow

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/BTreeMap/StreamAgent/internal/envelope"
	"github.com/BTreeMap/StreamAgent/internal/genai"
	"github.com/BTreeMap/StreamAgent/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedGen replays responses in order and repeats the last one when exhausted.
type scriptedGen struct {
	mu        sync.Mutex
	responses []string
	err       error
	prompts   []string
	classes   []genai.ModelClass
}

func (g *scriptedGen) Generate(_ context.Context, class genai.ModelClass, _, user string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.prompts = append(g.prompts, user)
	g.classes = append(g.classes, class)
	if g.err != nil {
		return "", g.err
	}
	i := len(g.prompts) - 1
	if i >= len(g.responses) {
		i = len(g.responses) - 1
	}
	return g.responses[i], nil
}

func noSleep(calls *[]time.Duration) SleepFunc {
	return func(_ context.Context, d time.Duration) error {
		if calls != nil {
			*calls = append(*calls, d)
		}
		return nil
	}
}

func TestThoughtHistoryEvictsOldest(t *testing.T) {
	h := NewThoughtHistory(DefaultThoughtCapacity)
	for _, s := range []string{"a", "b", "c", "d", "e", "f", "g"} {
		h.Add(s)
		assert.LessOrEqual(t, h.Len(), 5)
	}
	assert.Equal(t, []string{"c", "d", "e", "f", "g"}, h.Items())

	items := h.Items()
	items[0] = "mutated"
	assert.Equal(t, "c", h.Items()[0], "Items must return a copy")

	h.Clear()
	assert.Zero(t, h.Len())
}

func TestAdvanceStory(t *testing.T) {
	s := models.NewStoryState()

	s = AdvanceStory(s, envelope.Story{StoryProgress: 30, Phase: "Development"})
	assert.Equal(t, models.StoryState{Phase: models.PhaseDevelopment, Progress: 30}, s)

	s = AdvanceStory(s, envelope.Story{StoryProgress: 10, Phase: "bogus", IsComplete: true})
	assert.Equal(t, 30, s.Progress, "progress must not decrease")
	assert.Equal(t, models.PhaseDevelopment, s.Phase, "unknown phase falls back to the progress band")
	assert.False(t, s.IsComplete, "oracle isComplete flag is informational")

	s = AdvanceStory(s, envelope.Story{StoryProgress: 140})
	assert.Equal(t, 100, s.Progress)
	assert.True(t, s.IsComplete)
	assert.Equal(t, models.PhaseResolution, s.Phase)

	huge := envelope.Decode[envelope.Story](envelope.KindStory, `{"thought":"x","storyProgress":1e20}`)
	require.True(t, huge.OK())
	s = AdvanceStory(models.StoryState{Phase: models.PhaseDevelopment, Progress: 40}, huge.Value)
	assert.Equal(t, 100, s.Progress, "out of range progress saturates")
	assert.True(t, s.IsComplete)
}

func TestStoryRunScenario(t *testing.T) {
	gen := &scriptedGen{responses: []string{
		"```json\n{\"thought\":\"once\",\"storyProgress\":40,\"phase\":\"development\",\"isComplete\":false}\n```",
		`{"thought":"then","storyProgress":70,"phase":"climax","isComplete":false}`,
		`{"thought":"the end","storyProgress":100,"phase":"resolution","isComplete":true}`,
	}}
	var sunk []string
	s := NewStory(gen, models.DefaultCharacter(), "a lost robot",
		WithThoughtSink(func(_ context.Context, th string) { sunk = append(sunk, th) }))

	res, err := s.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, models.StoryState{Phase: models.PhaseResolution, Progress: 100, IsComplete: true}, s.State())
	assert.Equal(t, []string{"once", "then"}, s.Thoughts(), "terminal thought is not kept as context")
	assert.Equal(t, []string{"once", "then", "the end"}, res.Narrative)
	assert.Equal(t, res.Narrative, sunk)
	assert.Equal(t, 3, res.Calls)
	assert.Equal(t, "once\n\nthen\n\nthe end", res.Text())

	for _, c := range gen.classes {
		assert.Equal(t, genai.ModelMedium, c)
	}
	assert.Contains(t, gen.prompts[1], "Current Progress: 40%")
	assert.Contains(t, gen.prompts[2], "1. once")
	assert.Contains(t, gen.prompts[2], "2. then")
}

func TestStoryFallbackDoesNotAdvance(t *testing.T) {
	gen := &scriptedGen{responses: []string{
		"I am not JSON",
		`{"thought":"no progress field"}`,
		`{"thought":"done","storyProgress":100}`,
	}}
	s := NewStory(gen, models.DefaultCharacter(), "x")

	th, ok, err := s.Step(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, FallbackThought, th)
	assert.Equal(t, models.NewStoryState(), s.State())
	assert.Empty(t, s.Thoughts())

	res, err := s.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Fallbacks)
	assert.Equal(t, []string{"done"}, res.Narrative, "fallback thoughts are not part of the narrative")
	assert.True(t, s.State().IsComplete)
}

func TestEmptyThoughtsAreNotKept(t *testing.T) {
	story := NewStory(&scriptedGen{responses: []string{
		`{"thought":"","storyProgress":20}`,
		`{"thought":"a spark","storyProgress":30}`,
	}}, models.DefaultCharacter(), "x")
	for i := 0; i < 2; i++ {
		_, ok, err := story.Step(context.Background())
		require.NoError(t, err)
		require.True(t, ok)
	}
	assert.Equal(t, []string{"a spark"}, story.Thoughts())

	content := NewContent(&scriptedGen{responses: []string{
		`{"thought":"","contentPlan":{"topic":"tea","goal":"inform","steps":["origins","kinds","recap"]},"currentStep":1}`,
		`{"thought":"","transition":"First,","currentStep":2}`,
	}}, models.DefaultCharacter(), "tea")
	for i := 0; i < 2; i++ {
		_, ok, err := content.Step(context.Background())
		require.NoError(t, err)
		require.True(t, ok)
	}
	assert.Empty(t, content.Thoughts())
}

func TestStoryGuard(t *testing.T) {
	gen := &scriptedGen{responses: []string{`{"thought":"stuck","storyProgress":10}`}}
	s := NewStory(gen, models.DefaultCharacter(), "x", WithMaxSteps(4))

	res, err := s.Run(context.Background())
	require.ErrorIs(t, err, ErrIncomplete)
	assert.Equal(t, 4, res.Calls)
	assert.Len(t, gen.prompts, 4)
	assert.False(t, s.State().IsComplete)
}

func TestStoryGeneratorError(t *testing.T) {
	boom := errors.New("provider down")
	s := NewStory(&scriptedGen{err: boom}, models.DefaultCharacter(), "x")
	_, err := s.Run(context.Background())
	assert.ErrorIs(t, err, boom)
}

func TestAdoptContentPlan(t *testing.T) {
	_, err := AdoptContentPlan("s", envelope.ContentInit{ContentPlan: envelope.ContentPlanBody{Steps: []string{" ", ""}}})
	assert.ErrorIs(t, err, ErrEmptyPlan)

	p, err := AdoptContentPlan("subject", envelope.ContentInit{ContentPlan: envelope.ContentPlanBody{
		Goal: " teach ", Steps: []string{"intro", "  ", "body", "wrap"},
	}})
	require.NoError(t, err)
	assert.Equal(t, "subject", p.Topic)
	assert.Equal(t, "teach", p.Goal)
	assert.Equal(t, []string{"intro", "body", "wrap"}, p.Steps)
	assert.Equal(t, 1, p.CurrentStep)
	assert.False(t, p.IsComplete)
	assert.True(t, p.Planned())
}

func TestAdvanceContent(t *testing.T) {
	p := models.ContentPlan{Steps: []string{"a", "b", "c", "d"}, CurrentStep: 2}

	next := AdvanceContent(p, envelope.ContentStep{CurrentStep: 1})
	assert.Equal(t, 2, next.CurrentStep, "current step must not decrease")
	assert.False(t, next.IsComplete)

	next = AdvanceContent(next, envelope.ContentStep{CurrentStep: 3})
	assert.Equal(t, 3, next.CurrentStep)
	assert.True(t, next.IsComplete, "reaching len(steps)-1 completes the plan")

	early := AdvanceContent(p, envelope.ContentStep{CurrentStep: 2, IsComplete: true})
	assert.True(t, early.IsComplete)
}

func TestContentRun(t *testing.T) {
	gen := &scriptedGen{responses: []string{
		`{"thought":"Welcome!","contentPlan":{"topic":"tea","goal":"inform","steps":["origins","kinds","brewing","recap"]},"currentStep":1}`,
		`{"thought":"It began in China.","transition":"First,","currentStep":2,"isComplete":false}`,
		`{"thought":"Green and black.","currentStep":"3","isComplete":"false"}`,
	}}
	var delays []time.Duration
	c := NewContent(gen, models.DefaultCharacter(), "tea", WithSleep(noSleep(&delays)))

	res, err := c.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"Welcome!", "First, It began in China.", "Green and black."}, res.Narrative)
	assert.Equal(t, []string{"Welcome!", "It began in China.", "Green and black."}, c.Thoughts())

	p := c.Plan()
	assert.True(t, p.IsComplete)
	assert.Equal(t, 3, p.CurrentStep)
	assert.Equal(t, "tea", p.Topic)
	assert.Equal(t, []time.Duration{DefaultContentStepDelay, DefaultContentStepDelay}, delays)

	require.Len(t, gen.prompts, 3)
	assert.Contains(t, gen.prompts[0], "create a content plan")
	assert.Contains(t, gen.prompts[1], "Current Step (1 of 4):\norigins")
	assert.Contains(t, gen.prompts[2], "Current Step (2 of 4):\nkinds")
}

func TestContentPlanRequiredBeforeSteps(t *testing.T) {
	gen := &scriptedGen{responses: []string{
		`{"thought":"hm","contentPlan":{"topic":"t","steps":[]}}`,
		`{"thought":"still no plan"}`,
		`{"thought":"ok","contentPlan":{"steps":["only"]}}`,
		`{"thought":"done","currentStep":1}`,
	}}
	c := NewContent(gen, models.DefaultCharacter(), "s", WithSleep(noSleep(nil)))

	res, err := c.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, res.Fallbacks)
	assert.Equal(t, 4, res.Calls)
	for _, p := range gen.prompts[:3] {
		assert.Contains(t, p, "create a content plan", "no step call before a plan exists")
	}
	assert.Equal(t, []string{"only"}, c.Plan().Steps)
}

func TestContentGuard(t *testing.T) {
	gen := &scriptedGen{responses: []string{
		`{"thought":"plan","contentPlan":{"steps":["a","b","c","d","e"]}}`,
		`{"thought":"same step again","currentStep":1,"isComplete":false}`,
	}}
	c := NewContent(gen, models.DefaultCharacter(), "s", WithSleep(noSleep(nil)))

	res, err := c.Run(context.Background())
	require.ErrorIs(t, err, ErrIncomplete)
	assert.Equal(t, 1+5+contentStepMargin, res.Calls)
	assert.Equal(t, 1, c.Plan().CurrentStep)
}

func TestContentSleepCancelled(t *testing.T) {
	gen := &scriptedGen{responses: []string{
		`{"thought":"plan","contentPlan":{"steps":["a","b","c"]}}`,
	}}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	c := NewContent(gen, models.DefaultCharacter(), "s", WithStepDelay(time.Hour))

	res, err := c.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, res.Calls)
}

func TestSystemPromptIncludesCharacter(t *testing.T) {
	got := systemPrompt(models.DefaultCharacter())
	assert.True(t, strings.HasPrefix(got, "You are Borp"))
	assert.Contains(t, got, "# Lore")
}
