package history

import (
	"fmt"
	"sort"

	"github.com/BTreeMap/StreamAgent/internal/models"
)

// TaskRate is the success tally of one task name.
type TaskRate struct {
	Success int     `json:"success"`
	Failed  int     `json:"failed"`
	Percent float64 `json:"percent"`
	Rate    string  `json:"rate"`
}

// TaskTime aggregates the durations of one task name.
type TaskTime struct {
	TaskName          models.TaskName `json:"task_name"`
	TotalDurationMs   int64           `json:"total_duration_ms"`
	AverageDurationMs float64         `json:"average_duration_ms"`
	ExecutionCount    int             `json:"execution_count"`
}

// Stats bundles the derived views over a set of cycle records.
type Stats struct {
	TotalCycles            int                          `json:"total_cycles"`
	AverageCycleDurationMs float64                      `json:"average_cycle_duration_ms"`
	TaskSuccessRates       map[models.TaskName]TaskRate `json:"task_success_rates"`
	MostTimeConsuming      []TaskTime                   `json:"most_time_consuming"`
}

// Compute derives all statistics from records.
func Compute(records []models.CycleRecord) Stats {
	return Stats{
		TotalCycles:            len(records),
		AverageCycleDurationMs: AverageCycleDuration(records),
		TaskSuccessRates:       TaskSuccessRates(records),
		MostTimeConsuming:      MostTimeConsuming(records),
	}
}

// AverageCycleDuration is the mean DurationMs over records that have one,
// or 0 when none do.
func AverageCycleDuration(records []models.CycleRecord) float64 {
	var total int64
	var n int
	for _, c := range records {
		if c.DurationMs == nil {
			continue
		}
		total += *c.DurationMs
		n++
	}
	if n == 0 {
		return 0
	}
	return float64(total) / float64(n)
}

// TaskSuccessRates tallies completed and failed outcomes per task name.
func TaskSuccessRates(records []models.CycleRecord) map[models.TaskName]TaskRate {
	out := make(map[models.TaskName]TaskRate)
	for _, c := range records {
		for _, o := range c.Completed {
			r := out[o.Name]
			r.Success++
			out[o.Name] = r
		}
		for _, o := range c.Failed {
			r := out[o.Name]
			r.Failed++
			out[o.Name] = r
		}
	}
	for name, r := range out {
		if total := r.Success + r.Failed; total > 0 {
			r.Percent = float64(r.Success) / float64(total) * 100
		}
		r.Rate = fmt.Sprintf("%.1f%%", r.Percent)
		out[name] = r
	}
	return out
}

// MostTimeConsuming aggregates outcome durations per task name, sorted by
// total duration, largest first. Ties are ordered by name.
func MostTimeConsuming(records []models.CycleRecord) []TaskTime {
	byName := make(map[models.TaskName]*TaskTime)
	add := func(o models.TaskOutcome) {
		t, ok := byName[o.Name]
		if !ok {
			t = &TaskTime{TaskName: o.Name}
			byName[o.Name] = t
		}
		t.TotalDurationMs += o.DurationMs
		t.ExecutionCount++
	}
	for _, c := range records {
		for _, o := range c.Completed {
			add(o)
		}
		for _, o := range c.Failed {
			add(o)
		}
	}

	out := make([]TaskTime, 0, len(byName))
	for _, t := range byName {
		t.AverageDurationMs = float64(t.TotalDurationMs) / float64(t.ExecutionCount)
		out = append(out, *t)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].TotalDurationMs != out[j].TotalDurationMs {
			return out[i].TotalDurationMs > out[j].TotalDurationMs
		}
		return out[i].TaskName < out[j].TaskName
	})
	return out
}
