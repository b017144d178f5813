package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/BTreeMap/StreamAgent/internal/models"
)

// timeLayout is fixed-width so text timestamps sort chronologically.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		// rows written by other tools may use RFC3339
		return time.Parse(time.RFC3339Nano, s)
	}
	return t, nil
}

// nilIfEmpty returns nil if s is empty, otherwise returns s.
// Used for nullable database columns.
func nilIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// cycleColumns is the encoded form of a CycleRecord shared by SQL backends.
type cycleColumns struct {
	plan      string
	completed string
	failed    string
}

func encodeCycle(c models.CycleRecord) (cycleColumns, error) {
	plan, err := json.Marshal(nonNilNames(c.TaskPlan))
	if err != nil {
		return cycleColumns{}, fmt.Errorf("encode task plan: %w", err)
	}
	completed, err := json.Marshal(nonNilOutcomes(c.Completed))
	if err != nil {
		return cycleColumns{}, fmt.Errorf("encode completed outcomes: %w", err)
	}
	failed, err := json.Marshal(nonNilOutcomes(c.Failed))
	if err != nil {
		return cycleColumns{}, fmt.Errorf("encode failed outcomes: %w", err)
	}
	return cycleColumns{plan: string(plan), completed: string(completed), failed: string(failed)}, nil
}

func decodeCycle(c *models.CycleRecord, cols cycleColumns, durationMs sql.NullInt64) error {
	if err := json.Unmarshal([]byte(cols.plan), &c.TaskPlan); err != nil {
		return fmt.Errorf("decode task plan: %w", err)
	}
	if err := json.Unmarshal([]byte(cols.completed), &c.Completed); err != nil {
		return fmt.Errorf("decode completed outcomes: %w", err)
	}
	if err := json.Unmarshal([]byte(cols.failed), &c.Failed); err != nil {
		return fmt.Errorf("decode failed outcomes: %w", err)
	}
	if durationMs.Valid {
		d := durationMs.Int64
		c.DurationMs = &d
	}
	return nil
}

func nonNilNames(v []models.TaskName) []models.TaskName {
	if v == nil {
		return []models.TaskName{}
	}
	return v
}

func nonNilOutcomes(v []models.TaskOutcome) []models.TaskOutcome {
	if v == nil {
		return []models.TaskOutcome{}
	}
	return v
}

func nullDuration(d *int64) interface{} {
	if d == nil {
		return nil
	}
	return *d
}

func encodeContent(c models.Content) (string, error) {
	data, err := json.Marshal(c)
	if err != nil {
		return "", fmt.Errorf("encode memory content: %w", err)
	}
	return string(data), nil
}

func decodeContent(s string) (models.Content, error) {
	var c models.Content
	if err := json.Unmarshal([]byte(s), &c); err != nil {
		return c, fmt.Errorf("decode memory content: %w", err)
	}
	return c, nil
}

// reverseCycles flips newest-first query results into start order.
func reverseCycles(cs []models.CycleRecord) {
	for i, j := 0, len(cs)-1; i < j; i, j = i+1, j-1 {
		cs[i], cs[j] = cs[j], cs[i]
	}
}
