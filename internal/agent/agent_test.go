package agent

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/BTreeMap/StreamAgent/internal/genai"
	"github.com/BTreeMap/StreamAgent/internal/models"
	"github.com/BTreeMap/StreamAgent/internal/platform"
	"github.com/BTreeMap/StreamAgent/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

type fakeSettings struct {
	mode    models.RunMode
	subject string
}

func (s fakeSettings) Mode() models.RunMode { return s.mode }
func (s fakeSettings) Subject() string      { return s.subject }

type fakePlatform struct {
	mu         sync.Mutex
	responses  []models.AIResponse
	animations []string
}

func (f *fakePlatform) FetchUnreadComments(context.Context, string, time.Time, int) ([]models.Comment, error) {
	return nil, nil
}

func (f *fakePlatform) MarkCommentsRead(_ context.Context, ids []string) (platform.MarkReadResult, error) {
	return platform.MarkReadResult{Success: true, ModifiedCount: len(ids)}, nil
}

func (f *fakePlatform) PostAIResponse(_ context.Context, resp models.AIResponse) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.responses = append(f.responses, resp)
	return nil
}

func (f *fakePlatform) FetchRoomMessages(context.Context, string, int) ([]models.RoomMessage, error) {
	return nil, nil
}

func (f *fakePlatform) PostRoomMessage(context.Context, string, platform.RoomPost) (models.RoomMessage, error) {
	return models.RoomMessage{}, nil
}

func (f *fakePlatform) UpdateAnimation(_ context.Context, _ string, animation string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.animations = append(f.animations, animation)
	return nil
}

// routedGen answers by prompt type.
type routedGen struct {
	mu      sync.Mutex
	plan    func() (string, error)
	thought func() (string, error)
	story   string
	calls   int
}

func (g *routedGen) Generate(_ context.Context, _ genai.ModelClass, _, user string) (string, error) {
	g.mu.Lock()
	g.calls++
	g.mu.Unlock()
	switch {
	case strings.Contains(user, "# Task Plan for"):
		return g.plan()
	case strings.Contains(user, "SPONTANEOUS"):
		if g.thought != nil {
			return g.thought()
		}
		return "I wonder what chat had for breakfast.", nil
	case strings.Contains(user, "Pick an animation"):
		return "Thumbs_Up", nil
	case strings.Contains(user, "Structured Story"):
		return g.story, nil
	}
	return "", errors.New("unexpected prompt")
}

func planOf(text string) func() (string, error) {
	return func() (string, error) { return text, nil }
}

type sleeper struct {
	mu     sync.Mutex
	delays []time.Duration
	hook   func(n int)
}

func (s *sleeper) sleep(ctx context.Context, d time.Duration) error {
	s.mu.Lock()
	s.delays = append(s.delays, d)
	n := len(s.delays)
	s.mu.Unlock()
	if s.hook != nil {
		s.hook(n)
	}
	return ctx.Err()
}

type stepClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *stepClock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(250 * time.Millisecond)
	return c.t
}

func newTestAgent(t *testing.T, gen genai.Generator, settings Settings, opts ...Option) (*Agent, *fakePlatform, *store.InMemoryStore, *sleeper) {
	t.Helper()
	fp := &fakePlatform{}
	mem := store.NewInMemoryStore()
	sl := &sleeper{}
	clk := &stepClock{t: time.Date(2026, 7, 1, 18, 0, 0, 0, time.UTC)}
	base := []Option{WithSleep(sl.sleep), WithClock(clk.now)}
	a, err := New(Deps{
		Character: models.DefaultCharacter(),
		Generator: gen,
		Platform:  fp,
		Memories:  mem,
		Cycles:    mem,
		Settings:  settings,
	}, append(base, opts...)...)
	require.NoError(t, err)
	return a, fp, mem, sl
}

func TestNewRequiresDependencies(t *testing.T) {
	_, err := New(Deps{})
	assert.ErrorIs(t, err, ErrMissingDependency)
}

func TestRunCycleExecutesPlanInOrder(t *testing.T) {
	gen := &routedGen{plan: planOf("```json\n{\"taskQueueConstants\":[{\"name\":\"FreshThought\"},{\"name\":\"PeriodicAnimation\"}]}\n```")}
	a, fp, mem, sl := newTestAgent(t, gen, fakeSettings{mode: models.RunModeNormal})

	rec, err := a.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []models.TaskName{models.TaskFreshThought, models.TaskPeriodicAnimation}, rec.TaskPlan)
	assert.Equal(t, models.CycleStatusCompleted, rec.Status)
	require.Len(t, rec.Completed, 2)
	assert.Empty(t, rec.Failed)
	assert.Equal(t, models.TaskFreshThought, rec.Completed[0].Name)
	assert.Equal(t, models.TaskPeriodicAnimation, rec.Completed[1].Name)
	assert.Equal(t, len(rec.TaskPlan), rec.Consumed())
	require.NotNil(t, rec.DurationMs)

	assert.Equal(t, []time.Duration{2 * time.Second, 2 * time.Second}, sl.delays, "inter-task pacing after each task")
	require.Len(t, fp.responses, 1)
	assert.True(t, fp.responses[0].Thought)
	assert.Equal(t, []string{"thumbs_up"}, fp.animations)

	thoughts, err := mem.GetMemories(context.Background(), models.MemoryFilter{AgentID: a.AgentID()})
	require.NoError(t, err)
	require.Len(t, thoughts, 1)
	assert.Equal(t, true, thoughts[0].Content.Metadata["isThought"])

	snap := a.History().Snapshot()
	require.Len(t, snap, 1)
	assert.Equal(t, rec.ID, snap[0].ID)
	assert.Equal(t, models.CycleStatusCompleted, snap[0].Status)

	saved, err := mem.ListCycles(context.Background(), a.AgentID(), 0)
	require.NoError(t, err)
	require.Len(t, saved, 1)
	assert.Equal(t, rec.ID, saved[0].ID)
}

func TestRunCyclePlanFailure(t *testing.T) {
	gen := &routedGen{plan: planOf("sorry, I can't plan today")}
	a, _, mem, _ := newTestAgent(t, gen, fakeSettings{})

	rec, err := a.RunCycle(context.Background())
	require.ErrorIs(t, err, ErrPlanParse)
	assert.Equal(t, models.CycleStatusFailed, rec.Status)
	assert.Zero(t, rec.Consumed())

	saved, err := mem.ListCycles(context.Background(), "", 0)
	require.NoError(t, err)
	require.Len(t, saved, 1)
	assert.Equal(t, models.CycleStatusFailed, saved[0].Status)
	assert.Equal(t, 1, a.Status().CyclesFailed)
}

func TestRunCycleIsolatesTaskFailures(t *testing.T) {
	gen := &routedGen{
		plan:    planOf(`{"taskQueueConstants":[{"name":"FreshThought"},{"name":"PeriodicAnimation"},{"name":"FreshThought"}]}`),
		thought: func() (string, error) { return "", errors.New("oracle timeout") },
	}
	a, _, _, _ := newTestAgent(t, gen, fakeSettings{})
	a.Register(models.TaskPeriodicAnimation, func(context.Context, *State) error { panic("boom") })

	rec, err := a.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, models.CycleStatusCompleted, rec.Status)
	assert.Empty(t, rec.Completed)
	require.Len(t, rec.Failed, 3)
	assert.Contains(t, rec.Failed[0].Error, "oracle timeout")
	assert.Contains(t, rec.Failed[1].Error, "panicked: boom")
	assert.Equal(t, models.TaskFreshThought, rec.Failed[2].Name)

	rates := a.History().Stats().TaskSuccessRates
	assert.Equal(t, 2, rates[models.TaskFreshThought].Failed)
}

func TestParsePlanFiltersToActiveSet(t *testing.T) {
	a, _, _, _ := newTestAgent(t, &routedGen{}, fakeSettings{})

	offered := a.offeredTasks(models.RunModeStoryOnly)
	assert.Equal(t, []models.TaskName{models.TaskStructuredStory}, offered)

	plan, err := a.ParsePlan(`{"taskQueueConstants":[{"name":"FreshThought"},{"name":"startStructuredStory"},{"name":"bogus"},{"name":"structuredstory"}]}`, offered)
	require.NoError(t, err)
	assert.Equal(t, []models.TaskName{models.TaskStructuredStory, models.TaskStructuredStory}, plan)

	_, err = a.ParsePlan(`{"taskQueueConstants":[{"name":"FreshThought"}]}`, offered)
	assert.ErrorIs(t, err, ErrEmptyPlan)
	_, err = a.ParsePlan(`{"taskQueueConstants":[{"name":"bogus"},{"name":"alsoBogus"}]}`, offered)
	assert.ErrorIs(t, err, ErrEmptyPlan, "a plan of only unknown tasks is a plan error")

	normal := a.offeredTasks(models.RunModeNormal)
	assert.NotContains(t, normal, models.TaskAgentRoomChat, "default character is not in the agent room")
}

func TestStoryOnlyModePublishesThoughts(t *testing.T) {
	gen := &routedGen{
		plan:  planOf(`{"taskQueueConstants":[{"name":"StructuredStory"}]}`),
		story: `{"thought":"and they lived happily","storyProgress":100,"phase":"resolution","isComplete":true}`,
	}
	a, fp, _, _ := newTestAgent(t, gen, fakeSettings{mode: models.RunModeStoryOnly, subject: "dragons"}, WithPublishThoughts(true))

	rec, err := a.RunCycle(context.Background())
	require.NoError(t, err)
	require.Len(t, rec.Completed, 1)
	require.Len(t, fp.responses, 1)
	assert.Equal(t, "and they lived happily", fp.responses[0].Text)
	assert.Equal(t, "dragons", a.Status().Subject)
}

func TestStructuredStoryGuardFailsTask(t *testing.T) {
	gen := &routedGen{
		plan:  planOf(`{"taskQueueConstants":[{"name":"StructuredStory"}]}`),
		story: `{"thought":"forever","storyProgress":5}`,
	}
	a, _, _, _ := newTestAgent(t, gen, fakeSettings{mode: models.RunModeStoryOnly}, WithMaxSteps(3))

	rec, err := a.RunCycle(context.Background())
	require.NoError(t, err)
	require.Len(t, rec.Failed, 1)
	assert.Contains(t, rec.Failed[0].Error, "incomplete")
}

func TestRunRestartsAfterFatalFailure(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	var planCalls int
	gen := &routedGen{plan: func() (string, error) {
		planCalls++
		if planCalls == 1 {
			panic("plan oracle exploded")
		}
		return `{"taskQueueConstants":[{"name":"PeriodicAnimation"}]}`, nil
	}}
	a, _, _, sl := newTestAgent(t, gen, fakeSettings{})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sl.hook = func(int) {
		if a.Status().CyclesCompleted >= 1 {
			cancel()
		}
	}

	require.NoError(t, a.Run(ctx))
	timings := DefaultTimings()
	require.GreaterOrEqual(t, len(sl.delays), 3)
	assert.Equal(t, timings.Startup, sl.delays[0])
	assert.Equal(t, timings.Restart, sl.delays[1])

	snap := a.History().Snapshot()
	require.Len(t, snap, 2)
	assert.Equal(t, models.CycleStatusFailed, snap[0].Status, "interrupted cycle is closed as failed")
	assert.Equal(t, models.CycleStatusCompleted, snap[1].Status)
	assert.Zero(t, a.Status().Restarts, "completed cycle resets the restart counter")
}

func TestRunGivesUpAfterMaxRestarts(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	gen := &routedGen{plan: func() (string, error) { panic("always") }}
	a, _, _, sl := newTestAgent(t, gen, fakeSettings{}, WithMaxRestarts(2))

	err := a.Run(context.Background())
	require.ErrorIs(t, err, ErrTooManyRestarts)
	assert.ErrorIs(t, err, ErrFatal)
	timings := DefaultTimings()
	assert.Equal(t, []time.Duration{timings.Startup, timings.Restart, 2 * timings.Restart}, sl.delays)
}

func TestRestartDelayIsCapped(t *testing.T) {
	a, _, _, _ := newTestAgent(t, &routedGen{}, fakeSettings{})
	assert.Equal(t, 10*time.Second, a.restartDelay(1))
	assert.Equal(t, 80*time.Second, a.restartDelay(4))
	assert.Equal(t, 5*time.Minute, a.restartDelay(10))
}

func TestLoopBacksOffAfterFailedCycle(t *testing.T) {
	gen := &routedGen{plan: planOf("not a plan")}
	a, _, _, sl := newTestAgent(t, gen, fakeSettings{})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sl.hook = func(n int) {
		if n == 2 {
			cancel()
		}
	}
	err := a.Loop(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, []time.Duration{5 * time.Second, 5 * time.Second}, sl.delays)
	assert.Equal(t, 2, a.Status().CyclesFailed)
}
