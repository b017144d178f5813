package history

import (
	"fmt"
	"testing"
	"time"

	"github.com/BTreeMap/StreamAgent/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)

func outcome(name models.TaskName, ms int64, errMsg string) models.TaskOutcome {
	o := models.TaskOutcome{Name: name, StartTime: t0, EndTime: t0.Add(time.Duration(ms) * time.Millisecond), DurationMs: ms}
	o.Error = errMsg
	return o
}

func cycle(id string, durationMs int64, outcomes ...models.TaskOutcome) models.CycleRecord {
	c := models.CycleRecord{ID: id, StartTime: t0, Status: models.CycleStatusInProgress}
	for _, o := range outcomes {
		c.TaskPlan = append(c.TaskPlan, o.Name)
		c.Record(o)
	}
	c.Finish(models.CycleStatusCompleted, t0.Add(time.Duration(durationMs)*time.Millisecond))
	return c
}

func TestPutEvictsOldestFirst(t *testing.T) {
	h := New(DefaultCapacity)
	for i := 0; i < DefaultCapacity+1; i++ {
		h.Put(models.CycleRecord{ID: fmt.Sprintf("c%03d", i), StartTime: t0.Add(time.Duration(i) * time.Second)})
	}
	require.Equal(t, DefaultCapacity, h.Len())
	snap := h.Snapshot()
	assert.Equal(t, "c001", snap[0].ID, "101st insert evicts the oldest")
	assert.Equal(t, "c100", snap[len(snap)-1].ID)
}

func TestPutReplacesNewest(t *testing.T) {
	h := New(3)
	c := models.CycleRecord{ID: "a", Status: models.CycleStatusInProgress}
	h.Put(c)

	c.Record(outcome(models.TaskFreshThought, 10, ""))
	h.Put(c)
	require.Equal(t, 1, h.Len())
	latest, ok := h.Latest()
	require.True(t, ok)
	assert.Len(t, latest.Completed, 1)

	// mutating the caller's copy must not leak into history
	c.Completed[0].Name = models.TaskPeriodicAnimation
	latest, _ = h.Latest()
	assert.Equal(t, models.TaskFreshThought, latest.Completed[0].Name)
}

func TestLoadKeepsNewest(t *testing.T) {
	h := New(2)
	h.Load([]models.CycleRecord{{ID: "a"}, {ID: "b"}, {ID: "c"}})
	snap := h.Snapshot()
	require.Len(t, snap, 2)
	assert.Equal(t, "b", snap[0].ID)
	assert.Equal(t, "c", snap[1].ID)
}

func TestStatsEmpty(t *testing.T) {
	h := New(0)
	_, ok := h.Latest()
	assert.False(t, ok)

	s := h.Stats()
	assert.Zero(t, s.TotalCycles)
	assert.Zero(t, s.AverageCycleDurationMs)
	assert.Empty(t, s.TaskSuccessRates)
	assert.Empty(t, s.MostTimeConsuming)
}

func TestAverageCycleDuration(t *testing.T) {
	records := []models.CycleRecord{
		cycle("a", 1000),
		cycle("b", 3000),
		{ID: "running", StartTime: t0, Status: models.CycleStatusInProgress},
	}
	assert.InDelta(t, 2000.0, AverageCycleDuration(records), 0.001)
}

func TestTaskSuccessRates(t *testing.T) {
	records := []models.CycleRecord{
		cycle("a", 100,
			outcome(models.TaskFreshThought, 10, ""),
			outcome(models.TaskPeriodicAnimation, 10, "no animation")),
		cycle("b", 100,
			outcome(models.TaskFreshThought, 10, ""),
			outcome(models.TaskFreshThought, 10, "oracle down"),
			outcome(models.TaskPeriodicAnimation, 10, "no animation")),
	}
	rates := TaskSuccessRates(records)
	require.Len(t, rates, 2)

	ft := rates[models.TaskFreshThought]
	assert.Equal(t, 2, ft.Success)
	assert.Equal(t, 1, ft.Failed)
	assert.Equal(t, "66.7%", ft.Rate)

	pa := rates[models.TaskPeriodicAnimation]
	assert.Equal(t, 0, pa.Success)
	assert.Equal(t, 2, pa.Failed)
	assert.Equal(t, "0.0%", pa.Rate)
}

func TestMostTimeConsuming(t *testing.T) {
	records := []models.CycleRecord{
		cycle("a", 100,
			outcome(models.TaskReadAndReply, 500, ""),
			outcome(models.TaskFreshThought, 200, "")),
		cycle("b", 100,
			outcome(models.TaskFreshThought, 400, "boom"),
			outcome(models.TaskPeriodicAnimation, 100, "")),
	}
	got := MostTimeConsuming(records)
	require.Len(t, got, 3)
	assert.Equal(t, models.TaskFreshThought, got[0].TaskName)
	assert.Equal(t, int64(600), got[0].TotalDurationMs)
	assert.Equal(t, 2, got[0].ExecutionCount)
	assert.InDelta(t, 300.0, got[0].AverageDurationMs, 0.001)
	assert.Equal(t, models.TaskReadAndReply, got[1].TaskName)
	assert.Equal(t, models.TaskPeriodicAnimation, got[2].TaskName)
}
