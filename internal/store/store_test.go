package store

import (
	"context"
	"path/filepath"
	"syscall"
	"testing"
	"time"

	"github.com/BTreeMap/StreamAgent/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetectDSNType(t *testing.T) {
	tests := []struct {
		dsn  string
		want string
	}{
		{"postgres://user:pw@localhost/db", "postgres"},
		{"postgresql://localhost/db?sslmode=disable", "postgres"},
		{"host=localhost user=agent dbname=stream", "postgres"},
		{"/var/lib/streamagent/streamagent.db", "sqlite"},
		{"file:test.db?cache=shared", "sqlite"},
	}
	for _, tt := range tests {
		if got := DetectDSNType(tt.dsn); got != tt.want {
			t.Errorf("DetectDSNType(%q) = %q, want %q", tt.dsn, got, tt.want)
		}
	}
}

func TestOpenWithoutDSNIsInMemory(t *testing.T) {
	s, err := Open()
	require.NoError(t, err)
	_, ok := s.(*InMemoryStore)
	assert.True(t, ok, "expected in-memory store, got %T", s)
}

func TestSQLiteStoreRequiresDSN(t *testing.T) {
	_, err := NewSQLiteStore()
	assert.ErrorIs(t, err, ErrDSNNotSet)
	_, err = NewSQLiteStore(WithSQLiteDSN(filepath.Join(t.TempDir(), "x.db")), WithDriver("oracle"))
	assert.Error(t, err)
}

// backends returns every store that can run without external services.
func backends(t *testing.T) map[string]Store {
	t.Helper()
	dir := t.TempDir()
	out := map[string]Store{"memory": NewInMemoryStore()}

	mattn, err := NewSQLiteStore(WithSQLiteDSN(filepath.Join(dir, "mattn", "agent.db")))
	require.NoError(t, err)
	out["sqlite3"] = mattn

	modernc, err := NewSQLiteStore(WithSQLiteDSN(filepath.Join(dir, "modernc", "agent.db")), WithDriver(DriverModernc))
	require.NoError(t, err)
	out["modernc"] = modernc

	if dsn, ok := syscall.Getenv("DATABASE_URL"); ok && dsn != "" {
		pg, err := NewPostgresStore(WithPostgresDSN(dsn))
		if err == nil {
			pg.db.Exec("DELETE FROM memories")
			pg.db.Exec("DELETE FROM cycles")
			pg.db.Exec("DELETE FROM inbound_dedup")
			out["postgres"] = pg
		}
	}
	t.Cleanup(func() {
		for _, s := range out {
			s.Close()
		}
	})
	return out
}

func TestMemoryInsertOrIgnore(t *testing.T) {
	ctx := context.Background()
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
			m := models.Memory{
				ID: "m1", UserID: "u1", AgentID: "a1", RoomID: "r1",
				Content:   models.Content{Text: "first", Source: "borp"},
				CreatedAt: base,
			}
			require.NoError(t, s.CreateMemory(ctx, m))

			dup := m
			dup.Content.Text = "overwritten?"
			require.NoError(t, s.CreateMemory(ctx, dup))

			m2 := models.Memory{ID: "m2", UserID: "u2", AgentID: "a1", RoomID: "r1", Content: models.Content{Text: "second"}, CreatedAt: base.Add(time.Second)}
			require.NoError(t, s.CreateMemory(ctx, m2))
			m3 := models.Memory{ID: "m3", UserID: "u1", AgentID: "a1", RoomID: "r2", Content: models.Content{Text: "other room"}, CreatedAt: base.Add(2 * time.Second)}
			require.NoError(t, s.CreateMemory(ctx, m3))

			room, err := s.GetMemories(ctx, models.MemoryFilter{AgentID: "a1", RoomID: "r1"})
			require.NoError(t, err)
			require.Len(t, room, 2)
			assert.Equal(t, "m2", room[0].ID, "newest first")
			assert.Equal(t, "first", room[1].Content.Text, "duplicate insert must be ignored")
			assert.True(t, room[1].CreatedAt.Equal(base))

			byUser, err := s.GetMemories(ctx, models.MemoryFilter{RoomID: "r1", UserID: "u1", Limit: 1})
			require.NoError(t, err)
			require.Len(t, byUser, 1)
			assert.Equal(t, "m1", byUser[0].ID)

			none, err := s.GetMemories(ctx, models.MemoryFilter{RoomID: "r1", UserID: "nobody"})
			require.NoError(t, err)
			assert.Empty(t, none)
		})
	}
}

func TestCyclePersistence(t *testing.T) {
	ctx := context.Background()
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
			for i := 0; i < 3; i++ {
				st := start.Add(time.Duration(i) * time.Minute)
				c := models.CycleRecord{
					ID:        "cyc_" + string(rune('a'+i)),
					AgentID:   "a1",
					StartTime: st,
					TaskPlan:  []models.TaskName{models.TaskFreshThought, models.TaskPeriodicAnimation},
					Status:    models.CycleStatusInProgress,
				}
				c.Record(models.NewTaskOutcome(models.TaskFreshThought, st, st.Add(time.Second), nil))
				c.Record(models.NewTaskOutcome(models.TaskPeriodicAnimation, st, st.Add(2*time.Second), assertErr("no animation")))
				c.Finish(models.CycleStatusCompleted, st.Add(3*time.Second))
				require.NoError(t, s.SaveCycle(ctx, c))
			}
			failed := models.CycleRecord{ID: "cyc_x", AgentID: "a2", StartTime: start, Status: models.CycleStatusInProgress}
			failed.Finish(models.CycleStatusFailed, start.Add(time.Second))
			require.NoError(t, s.SaveCycle(ctx, failed))

			got, err := s.ListCycles(ctx, "a1", 2)
			require.NoError(t, err)
			require.Len(t, got, 2)
			assert.Equal(t, "cyc_b", got[0].ID, "oldest of the most recent two first")
			assert.Equal(t, "cyc_c", got[1].ID)
			c := got[1]
			assert.Equal(t, models.CycleStatusCompleted, c.Status)
			assert.Equal(t, []models.TaskName{models.TaskFreshThought, models.TaskPeriodicAnimation}, c.TaskPlan)
			require.Len(t, c.Completed, 1)
			require.Len(t, c.Failed, 1)
			assert.Equal(t, "no animation", c.Failed[0].Error)
			require.NotNil(t, c.DurationMs)
			assert.Equal(t, int64(3000), *c.DurationMs)
			require.NotNil(t, c.EndTime)

			all, err := s.ListCycles(ctx, "", 0)
			require.NoError(t, err)
			assert.Len(t, all, 4)
		})
	}
}

func TestDedupRepo(t *testing.T) {
	ctx := context.Background()
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			fresh, err := s.RecordInbound(ctx, "c1", "a1")
			require.NoError(t, err)
			assert.True(t, fresh)

			fresh, err = s.RecordInbound(ctx, "c1", "a1")
			require.NoError(t, err)
			assert.False(t, fresh)

			fresh, err = s.RecordInbound(ctx, "c2", "a1")
			require.NoError(t, err)
			assert.True(t, fresh, "other comments are unaffected")

			require.NoError(t, s.MarkProcessed(ctx, "c1"))
			require.NoError(t, s.MarkProcessed(ctx, "never-seen"))
		})
	}
}

type assertErr string

func (e assertErr) Error() string { return string(e) }
