// Package agent runs the task cycle orchestrator for one streaming character.
//
// Each cycle asks the planning oracle for an ordered task list, runs the
// tasks one after another, records every outcome in a CycleRecord, and
// then sleeps before planning again. Run wraps the cycle loop in a
// supervisor that restarts it with backoff after a fatal failure.
package agent

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/BTreeMap/StreamAgent/internal/chat"
	"github.com/BTreeMap/StreamAgent/internal/flow"
	"github.com/BTreeMap/StreamAgent/internal/genai"
	"github.com/BTreeMap/StreamAgent/internal/history"
	"github.com/BTreeMap/StreamAgent/internal/models"
	"github.com/BTreeMap/StreamAgent/internal/speech"
	"github.com/BTreeMap/StreamAgent/internal/store"
	"github.com/BTreeMap/StreamAgent/internal/util"
)

var (
	// ErrEmptyPlan is returned when the plan oracle yields no runnable task.
	ErrEmptyPlan = errors.New("task plan is empty")
	// ErrPlanParse is returned when the plan oracle's output cannot be decoded.
	ErrPlanParse = errors.New("task plan could not be parsed")
	// ErrFatal marks a failure that escaped the cycle boundary.
	ErrFatal = errors.New("fatal orchestrator failure")
	// ErrTooManyRestarts is returned by Run once MaxRestarts is exceeded.
	ErrTooManyRestarts = errors.New("too many orchestrator restarts")
	// ErrMissingDependency is returned by New when a required dependency is nil.
	ErrMissingDependency = errors.New("missing agent dependency")
)

// Settings is the reloadable runtime configuration read at every cycle.
type Settings interface {
	Mode() models.RunMode
	Subject() string
}

// Platform is everything the tasks need from the streaming platform.
// *platform.Client satisfies it.
type Platform interface {
	chat.Platform
	chat.RoomClient
	UpdateAnimation(ctx context.Context, agentID, animation string) error
}

// Deps are the collaborators of an Agent.
type Deps struct {
	Character models.Character
	Generator genai.Generator
	Platform  Platform
	Memories  store.MemoryStore
	// Cycles persists finished cycles; nil disables persistence.
	Cycles store.CycleStore
	// Dedup filters redelivered comments; nil disables it.
	Dedup    store.DedupRepo
	Speech   speech.Synthesizer
	Settings Settings
}

// Timings are the pacing delays of the cycle loop.
type Timings struct {
	Startup      time.Duration
	InterTask    time.Duration
	InterCycle   time.Duration
	CycleBackoff time.Duration
	ContentStep  time.Duration
	Restart      time.Duration
	MaxRestart   time.Duration
}

// DefaultTimings returns the production pacing.
func DefaultTimings() Timings {
	return Timings{
		Startup:      5 * time.Second,
		InterTask:    2 * time.Second,
		InterCycle:   3 * time.Second,
		CycleBackoff: 5 * time.Second,
		ContentStep:  flow.DefaultContentStepDelay,
		Restart:      10 * time.Second,
		MaxRestart:   5 * time.Minute,
	}
}

// Opts holds configuration for Agent.
type Opts struct {
	Timings         Timings
	MaxSteps        int
	MaxRestarts     int
	PublishThoughts bool
	CommentLimit    int
	HistorySize     int
	Logger          *slog.Logger
	Clock           func() time.Time
	Sleep           flow.SleepFunc
}

// Option is a functional option for configuring an Agent.
type Option func(*Opts)

// WithTimings replaces the pacing delays.
func WithTimings(t Timings) Option {
	return func(o *Opts) { o.Timings = t }
}

// WithMaxSteps caps the oracle calls of one structured run.
func WithMaxSteps(n int) Option {
	return func(o *Opts) { o.MaxSteps = n }
}

// WithMaxRestarts limits supervisor restarts; 0 means unlimited.
func WithMaxRestarts(n int) Option {
	return func(o *Opts) { o.MaxRestarts = n }
}

// WithPublishThoughts posts structured story and content thoughts to the platform.
func WithPublishThoughts(enabled bool) Option {
	return func(o *Opts) { o.PublishThoughts = enabled }
}

// WithCommentLimit sets the number of comments fetched per ReadAndReply.
func WithCommentLimit(n int) Option {
	return func(o *Opts) { o.CommentLimit = n }
}

// WithHistorySize sets the number of cycle records kept in memory.
func WithHistorySize(n int) Option {
	return func(o *Opts) { o.HistorySize = n }
}

// WithLogger sets the base logger; the agent name is added to it.
func WithLogger(l *slog.Logger) Option {
	return func(o *Opts) { o.Logger = l }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(o *Opts) { o.Clock = now }
}

// WithSleep replaces the context-aware sleep used for every delay.
func WithSleep(fn flow.SleepFunc) Option {
	return func(o *Opts) { o.Sleep = fn }
}

// TaskFunc executes one task of a cycle.
type TaskFunc func(ctx context.Context, st *State) error

// State is the mutable state of one orchestrator, owned by its cycle loop.
type State struct {
	Mode    models.RunMode
	Subject string
	// Cycle is the record of the cycle being executed.
	Cycle *models.CycleRecord
}

// Status is a point-in-time view of an agent for the status API.
type Status struct {
	Agent           string              `json:"agent"`
	AgentID         string              `json:"agent_id"`
	Mode            models.RunMode      `json:"mode"`
	Subject         string              `json:"subject"`
	CyclesCompleted int                 `json:"cycles_completed"`
	CyclesFailed    int                 `json:"cycles_failed"`
	Restarts        int                 `json:"restarts"`
	Current         *models.CycleRecord `json:"current_cycle,omitempty"`
}

// Agent is the orchestrator of one character.
type Agent struct {
	deps    Deps
	opts    Opts
	agentID string
	logger  *slog.Logger

	tasks    map[models.TaskName]TaskFunc
	history  *history.History
	pipeline *chat.Pipeline
	room     *chat.Room
	state    State

	mu              sync.Mutex
	cyclesCompleted int
	cyclesFailed    int
	restarts        int
}

// New wires an agent and registers its task handlers.
func New(deps Deps, opts ...Option) (*Agent, error) {
	if deps.Generator == nil || deps.Platform == nil || deps.Memories == nil || deps.Settings == nil {
		return nil, ErrMissingDependency
	}
	o := Opts{
		Timings:     DefaultTimings(),
		MaxSteps:    flow.DefaultMaxSteps,
		HistorySize: history.DefaultCapacity,
		Logger:      slog.Default(),
		Clock:       time.Now,
		Sleep:       util.Sleep,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if deps.Speech == nil {
		deps.Speech = speech.Disabled{}
	}

	a := &Agent{
		deps:    deps,
		opts:    o,
		agentID: deps.Character.AgentID(),
		logger:  o.Logger.With("agent", deps.Character.Name),
		history: history.New(o.HistorySize),
		tasks:   make(map[models.TaskName]TaskFunc),
	}

	pipelineOpts := []chat.Option{chat.WithLogger(a.logger), chat.WithClock(o.Clock), chat.WithLimit(o.CommentLimit)}
	if deps.Dedup != nil {
		pipelineOpts = append(pipelineOpts, chat.WithDedup(deps.Dedup))
	}
	a.pipeline = chat.NewPipeline(deps.Character, deps.Generator, deps.Memories, deps.Speech, deps.Platform, pipelineOpts...)
	a.room = chat.NewRoom(deps.Character, deps.Generator, deps.Speech, deps.Platform, a.logger)

	a.Register(models.TaskReadAndReply, a.readAndReply)
	a.Register(models.TaskFreshThought, a.freshThought)
	a.Register(models.TaskPeriodicAnimation, a.periodicAnimation)
	a.Register(models.TaskStructuredStory, a.structuredStory)
	a.Register(models.TaskStructuredContent, a.structuredContent)
	a.Register(models.TaskAgentRoomChat, a.agentRoomChat)
	return a, nil
}

// Register associates a task name with its handler, replacing any previous one.
func (a *Agent) Register(name models.TaskName, fn TaskFunc) {
	a.tasks[name] = fn
}

// Handler returns the handler registered for name.
func (a *Agent) Handler(name models.TaskName) (TaskFunc, bool) {
	fn, ok := a.tasks[name]
	return fn, ok
}

// Name returns the character name.
func (a *Agent) Name() string { return a.deps.Character.Name }

// AgentID returns the platform id of the character.
func (a *Agent) AgentID() string { return a.agentID }

// Character returns the character the agent streams as.
func (a *Agent) Character() models.Character { return a.deps.Character }

// History returns the bounded cycle history.
func (a *Agent) History() *history.History { return a.history }

// Status returns a snapshot for monitoring.
func (a *Agent) Status() Status {
	a.mu.Lock()
	st := Status{
		Agent:           a.Name(),
		AgentID:         a.agentID,
		Mode:            a.deps.Settings.Mode(),
		Subject:         a.deps.Settings.Subject(),
		CyclesCompleted: a.cyclesCompleted,
		CyclesFailed:    a.cyclesFailed,
		Restarts:        a.restarts,
	}
	a.mu.Unlock()
	if c, ok := a.history.Latest(); ok {
		st.Current = &c
	}
	return st
}
