package agent

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/BTreeMap/StreamAgent/internal/envelope"
	"github.com/BTreeMap/StreamAgent/internal/genai"
	"github.com/BTreeMap/StreamAgent/internal/models"
	"github.com/BTreeMap/StreamAgent/internal/util"
)

// offeredTasks is the task set for mode, restricted to registered handlers.
func (a *Agent) offeredTasks(mode models.RunMode) []models.TaskName {
	var out []models.TaskName
	for _, name := range models.TaskSet(mode, a.deps.Character.Settings.InChat) {
		if _, ok := a.tasks[name]; ok {
			out = append(out, name)
		}
	}
	return out
}

// ParsePlan decodes a plan envelope and keeps the entries that name an
// offered task, in order. Other entries are dropped with a warning; a plan
// left with no entries is ErrEmptyPlan.
func (a *Agent) ParsePlan(text string, offered []models.TaskName) ([]models.TaskName, error) {
	res := envelope.Decode[envelope.TaskPlan](envelope.KindTaskPlan, text)
	if !res.OK() {
		return nil, fmt.Errorf("%w: %w", ErrPlanParse, res.Err)
	}
	allowed := make(map[models.TaskName]bool, len(offered))
	for _, n := range offered {
		allowed[n] = true
	}
	var plan []models.TaskName
	for _, e := range res.Value.TaskQueueConstants {
		name, ok := models.ParseTaskName(e.Name)
		if !ok || !allowed[name] {
			a.logger.Warn("Agent.ParsePlan: dropping task outside the active set", "task", e.Name)
			continue
		}
		plan = append(plan, name)
	}
	if len(plan) == 0 {
		return nil, ErrEmptyPlan
	}
	return plan, nil
}

// plan asks the planning oracle for the next task list.
func (a *Agent) plan(ctx context.Context, mode models.RunMode) ([]models.TaskName, error) {
	offered := a.offeredTasks(mode)
	if len(offered) == 0 {
		return nil, ErrEmptyPlan
	}
	text, err := a.deps.Generator.Generate(ctx, genai.ModelMedium, "", planPrompt(a.deps.Character, offered))
	if err != nil {
		return nil, fmt.Errorf("generate task plan: %w", err)
	}
	a.logger.Debug("Agent.plan: generated task plan", "raw", text)
	return a.ParsePlan(text, offered)
}

// RunCycle executes one plan-then-execute pass. The returned record is
// Completed unless planning failed or ctx ended the cycle early.
func (a *Agent) RunCycle(ctx context.Context) (models.CycleRecord, error) {
	a.state.Mode = a.deps.Settings.Mode()
	if s := a.deps.Settings.Subject(); s != "" {
		a.state.Subject = s
	} else if a.state.Subject == "" {
		a.state.Subject = pickSubject()
	}

	rec := models.CycleRecord{
		ID:        util.GenerateRandomID("cyc_", 32),
		AgentID:   a.agentID,
		StartTime: a.opts.Clock(),
		Status:    models.CycleStatusInProgress,
	}
	a.state.Cycle = &rec
	defer func() { a.state.Cycle = nil }()
	a.history.Put(rec)
	log := a.logger.With("cycle_id", rec.ID)
	log.Info("Agent.RunCycle: starting cycle", "mode", a.state.Mode, "subject", a.state.Subject)

	plan, err := a.plan(ctx, a.state.Mode)
	if err != nil {
		a.finish(ctx, &rec, models.CycleStatusFailed)
		return rec, err
	}
	rec.TaskPlan = plan
	a.history.Put(rec)
	log.Info("Agent.RunCycle: task plan ready", "plan", plan)

	for _, name := range plan {
		fn, ok := a.Handler(name)
		if !ok {
			log.Warn("Agent.RunCycle: no handler registered, skipping", "task", name)
			continue
		}
		start := a.opts.Clock()
		taskErr := a.runTask(ctx, name, fn)
		outcome := models.NewTaskOutcome(name, start, a.opts.Clock(), taskErr)
		rec.Record(outcome)
		a.history.Put(rec)
		if taskErr != nil {
			log.Error("Agent.RunCycle: task failed", "task", name, "error", taskErr, "duration_ms", outcome.DurationMs)
		} else {
			log.Info("Agent.RunCycle: task completed", "task", name, "duration_ms", outcome.DurationMs)
		}

		if err := a.opts.Sleep(ctx, a.opts.Timings.InterTask); err != nil {
			a.finish(ctx, &rec, models.CycleStatusFailed)
			return rec, err
		}
	}

	a.finish(ctx, &rec, models.CycleStatusCompleted)
	a.logSummary(rec)
	return rec, nil
}

// runTask isolates a handler: a panic becomes the task's error.
func (a *Agent) runTask(ctx context.Context, name models.TaskName, fn TaskFunc) (err error) {
	defer func() {
		if r := recover(); r != nil {
			a.logger.Error("Agent.runTask: task panicked", "task", name, "panic", r)
			err = fmt.Errorf("task %s panicked: %v", name, r)
		}
	}()
	return fn(ctx, &a.state)
}

// finish closes rec, publishes it to history and persists it.
func (a *Agent) finish(ctx context.Context, rec *models.CycleRecord, status models.CycleStatus) {
	rec.Finish(status, a.opts.Clock())
	a.history.Put(*rec)

	a.mu.Lock()
	if status == models.CycleStatusCompleted {
		a.cyclesCompleted++
	} else {
		a.cyclesFailed++
	}
	a.mu.Unlock()

	if a.deps.Cycles == nil {
		return
	}
	// persist even when ctx is already cancelled
	if err := a.deps.Cycles.SaveCycle(context.WithoutCancel(ctx), *rec); err != nil {
		a.logger.Error("Agent.finish: failed to persist cycle", "cycle_id", rec.ID, "error", err)
	}
}

// LoadHistory seeds the in-memory history from the cycle store.
func (a *Agent) LoadHistory(ctx context.Context) error {
	if a.deps.Cycles == nil {
		return nil
	}
	records, err := a.deps.Cycles.ListCycles(ctx, a.agentID, a.opts.HistorySize)
	if err != nil {
		return fmt.Errorf("load cycle history: %w", err)
	}
	a.history.Load(records)
	a.logger.Debug("Agent.LoadHistory: history restored", "cycles", len(records))
	return nil
}

func seconds(ms int64) string {
	return fmt.Sprintf("%.2f seconds", float64(ms)/1000)
}

// logSummary writes the end-of-cycle report.
func (a *Agent) logSummary(rec models.CycleRecord) {
	var total int64
	if rec.DurationMs != nil {
		total = *rec.DurationMs
	}
	describe := func(outcomes []models.TaskOutcome) string {
		parts := make([]string, 0, len(outcomes))
		for _, o := range outcomes {
			s := fmt.Sprintf("%s (%s)", o.Name, seconds(o.DurationMs))
			if o.Error != "" {
				s += ": " + o.Error
			}
			parts = append(parts, s)
		}
		return strings.Join(parts, ", ")
	}
	stats := a.history.Stats()
	rates := make([]string, 0, len(stats.TaskSuccessRates))
	for name, r := range stats.TaskSuccessRates {
		rates = append(rates, fmt.Sprintf("%s=%s", name, r.Rate))
	}
	sort.Strings(rates)
	var slowest string
	if len(stats.MostTimeConsuming) > 0 {
		slowest = string(stats.MostTimeConsuming[0].TaskName)
	}
	a.logger.Info("Agent.logSummary: cycle completed",
		"cycle_id", rec.ID,
		"total_duration", seconds(total),
		"completed", describe(rec.Completed),
		"failed", describe(rec.Failed),
		"total_cycles", stats.TotalCycles,
		"average_cycle_duration", seconds(int64(stats.AverageCycleDurationMs)),
		"success_rates", strings.Join(rates, " "),
		"most_time_consuming", slowest,
	)
}
