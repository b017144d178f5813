package models

import "time"

// CycleStatus is the lifecycle state of a CycleRecord.
type CycleStatus string

const (
	CycleStatusInProgress CycleStatus = "in-progress"
	CycleStatusCompleted  CycleStatus = "completed"
	CycleStatusFailed     CycleStatus = "failed"
)

// TaskOutcome records a single task execution. It is not modified after it
// has been appended to a CycleRecord.
type TaskOutcome struct {
	Name       TaskName  `json:"name"`
	StartTime  time.Time `json:"start_time"`
	EndTime    time.Time `json:"end_time"`
	DurationMs int64     `json:"duration_ms"`
	Error      string    `json:"error,omitempty"`
}

// NewTaskOutcome builds an outcome from a start and end time.
func NewTaskOutcome(name TaskName, start, end time.Time, err error) TaskOutcome {
	o := TaskOutcome{
		Name:       name,
		StartTime:  start,
		EndTime:    end,
		DurationMs: end.Sub(start).Milliseconds(),
	}
	if err != nil {
		o.Error = err.Error()
	}
	return o
}

// Failed reports whether the outcome carries an error.
func (o TaskOutcome) Failed() bool {
	return o.Error != ""
}

// CycleRecord tracks one plan-then-execute pass of the orchestrator.
type CycleRecord struct {
	ID         string        `json:"id"`
	AgentID    string        `json:"agent_id"`
	StartTime  time.Time     `json:"start_time"`
	EndTime    *time.Time    `json:"end_time,omitempty"`
	TaskPlan   []TaskName    `json:"task_plan"`
	Completed  []TaskOutcome `json:"completed"`
	Failed     []TaskOutcome `json:"failed"`
	Status     CycleStatus   `json:"status"`
	DurationMs *int64        `json:"duration_ms,omitempty"`
}

// Record appends an outcome to the completed or failed list.
func (c *CycleRecord) Record(o TaskOutcome) {
	if o.Failed() {
		c.Failed = append(c.Failed, o)
		return
	}
	c.Completed = append(c.Completed, o)
}

// Consumed is the number of plan entries that have produced an outcome.
func (c *CycleRecord) Consumed() int {
	return len(c.Completed) + len(c.Failed)
}

// Finish closes the record with the given terminal status.
func (c *CycleRecord) Finish(status CycleStatus, end time.Time) {
	c.EndTime = &end
	d := end.Sub(c.StartTime).Milliseconds()
	c.DurationMs = &d
	c.Status = status
}

// Clone returns a deep copy so readers never share slices with the owner.
func (c CycleRecord) Clone() CycleRecord {
	out := c
	out.TaskPlan = append([]TaskName(nil), c.TaskPlan...)
	out.Completed = append([]TaskOutcome(nil), c.Completed...)
	out.Failed = append([]TaskOutcome(nil), c.Failed...)
	if c.EndTime != nil {
		t := *c.EndTime
		out.EndTime = &t
	}
	if c.DurationMs != nil {
		d := *c.DurationMs
		out.DurationMs = &d
	}
	return out
}
