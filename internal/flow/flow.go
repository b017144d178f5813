// Package flow implements the structured generation state machines used by
// StreamAgent: a story arc that advances by a progress percentage, and a
// content plan that is drafted once and then generated step by step.
//
// Each machine exposes a pure transition function (AdvanceStory,
// AdoptContentPlan, AdvanceContent) and a run loop that drives it against a
// genai.Generator until completion or until the iteration guard trips.
package flow

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/BTreeMap/StreamAgent/internal/util"
)

// ErrIncomplete is returned when a run loop stops before the oracle reported
// completion.
var ErrIncomplete = errors.New("structured generation incomplete")

const (
	// DefaultMaxSteps caps the oracle calls of one structured run.
	DefaultMaxSteps = 40
	// DefaultContentStepDelay paces content generation calls.
	DefaultContentStepDelay = 2 * time.Second
	// FallbackThought replaces a thought whose envelope could not be decoded.
	FallbackThought = "Let me gather my thoughts..."

	// contentStepMargin is the number of step calls allowed past len(steps).
	contentStepMargin = 3
)

// ThoughtSink receives every thought a run produces, in order.
type ThoughtSink func(ctx context.Context, thought string)

// SleepFunc waits between steps; it must return early when ctx ends.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Opts holds configuration for the state machine run loops.
type Opts struct {
	MaxSteps  int
	StepDelay time.Duration
	Sink      ThoughtSink
	Sleep     SleepFunc
	Logger    *slog.Logger
}

// Option is a functional option for configuring a state machine.
type Option func(*Opts)

// WithMaxSteps sets the maximum number of oracle calls. Values <= 0 keep the default.
func WithMaxSteps(n int) Option {
	return func(o *Opts) {
		if n > 0 {
			o.MaxSteps = n
		}
	}
}

// WithStepDelay sets the pause between consecutive oracle calls.
func WithStepDelay(d time.Duration) Option {
	return func(o *Opts) { o.StepDelay = d }
}

// WithThoughtSink registers a callback that receives each produced thought.
func WithThoughtSink(sink ThoughtSink) Option {
	return func(o *Opts) { o.Sink = sink }
}

// WithSleep replaces the delay function.
func WithSleep(fn SleepFunc) Option {
	return func(o *Opts) { o.Sleep = fn }
}

// WithLogger sets the logger used by the run loop.
func WithLogger(l *slog.Logger) Option {
	return func(o *Opts) { o.Logger = l }
}

func buildOpts(stepDelay time.Duration, opts []Option) Opts {
	o := Opts{
		MaxSteps:  DefaultMaxSteps,
		StepDelay: stepDelay,
		Sleep:     util.Sleep,
		Logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Result summarizes a finished or aborted structured run.
type Result struct {
	// Narrative holds the thoughts produced by successful oracle calls.
	Narrative []string
	Calls     int
	Fallbacks int
}

// Text joins the narrative into a single block.
func (r Result) Text() string {
	return strings.Join(r.Narrative, "\n\n")
}

func (r *Result) emit(ctx context.Context, sink ThoughtSink, thought string) {
	if thought == "" {
		return
	}
	r.Narrative = append(r.Narrative, thought)
	if sink != nil {
		sink(ctx, thought)
	}
}
