package agent

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/BTreeMap/StreamAgent/internal/models"
)

// Loop runs cycles until ctx ends. A cycle-level failure is logged and
// followed by the backoff delay; the loop itself only returns on ctx
// cancellation or when a panic escapes a cycle, which it reports as ErrFatal.
func (a *Agent) Loop(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrFatal, r)
			a.logger.Error("Agent.Loop: panic escaped cycle", "panic", r, "stack", string(debug.Stack()))
		}
	}()
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		rec, cycleErr := a.RunCycle(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if cycleErr != nil {
			a.logger.Error("Agent.Loop: cycle failed", "cycle_id", rec.ID, "error", cycleErr, "backoff", a.opts.Timings.CycleBackoff)
			if err := a.opts.Sleep(ctx, a.opts.Timings.CycleBackoff); err != nil {
				return err
			}
			continue
		}
		a.resetRestarts()
		if err := a.opts.Sleep(ctx, a.opts.Timings.InterCycle); err != nil {
			return err
		}
	}
}

func (a *Agent) resetRestarts() {
	a.mu.Lock()
	a.restarts = 0
	a.mu.Unlock()
}

// Run supervises Loop: after a fatal failure it waits and starts a fresh
// loop, doubling the delay up to Timings.MaxRestart. The delay resets once
// a cycle completes. Run returns nil when ctx ends, and ErrTooManyRestarts
// when MaxRestarts is set and exceeded.
func (a *Agent) Run(ctx context.Context) error {
	a.logger.Info("Agent.Run: starting", "agent_id", a.agentID, "startup_delay", a.opts.Timings.Startup)
	if err := a.LoadHistory(ctx); err != nil {
		a.logger.Warn("Agent.Run: could not restore history", "error", err)
	}
	if err := a.opts.Sleep(ctx, a.opts.Timings.Startup); err != nil {
		return nil
	}

	for {
		err := a.Loop(ctx)
		if ctx.Err() != nil {
			a.logger.Info("Agent.Run: stopped")
			return nil
		}
		if err == nil || errors.Is(err, context.Canceled) {
			err = ErrFatal
		}

		a.mu.Lock()
		a.restarts++
		n := a.restarts
		a.mu.Unlock()
		if a.opts.MaxRestarts > 0 && n > a.opts.MaxRestarts {
			return fmt.Errorf("%w: %d restarts, last error: %w", ErrTooManyRestarts, n-1, err)
		}

		delay := a.restartDelay(n)
		a.logger.Error("Agent.Run: orchestrator failed, restarting", "error", err, "restart", n, "delay", delay)
		a.markInterrupted()
		if err := a.opts.Sleep(ctx, delay); err != nil {
			return nil
		}
	}
}

// restartDelay is Timings.Restart doubled per consecutive restart, capped at MaxRestart.
func (a *Agent) restartDelay(n int) time.Duration {
	d := a.opts.Timings.Restart
	limit := a.opts.Timings.MaxRestart
	for i := 1; i < n; i++ {
		d *= 2
		if limit > 0 && d >= limit {
			return limit
		}
	}
	return d
}

// markInterrupted fails a cycle left in progress by a fatal error.
func (a *Agent) markInterrupted() {
	rec, ok := a.history.Latest()
	if !ok || rec.Status != models.CycleStatusInProgress {
		return
	}
	a.finish(context.Background(), &rec, models.CycleStatusFailed)
}
