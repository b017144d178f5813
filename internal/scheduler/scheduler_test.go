package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/BTreeMap/StreamAgent/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSchedulerAddJob(t *testing.T) {
	s := NewScheduler()
	defer s.Stop()
	// Should add a valid cron job without error
	if err := s.AddJob("* * * * *", func() {}); err != nil {
		t.Errorf("Expected no error adding job, got %v", err)
	}
	if err := s.AddJob("@every 1m", func() {}); err != nil {
		t.Errorf("Expected descriptor to be accepted, got %v", err)
	}
	if err := s.AddJob("not a cron", func() {}); err == nil {
		t.Error("Expected error for invalid expression")
	}
	assert.Equal(t, 2, s.Len())
}

func TestSchedulerRunStopsOnCancel(t *testing.T) {
	s := NewScheduler()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

type fakeUpdater struct {
	mu     sync.Mutex
	got    []models.SceneStatus
	failID string
}

func (f *fakeUpdater) UpdateSceneStatus(_ context.Context, s models.SceneStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.got = append(f.got, s)
	if s.AgentID == f.failID {
		return errors.New("status 500")
	}
	return nil
}

func TestSceneStatusFor(t *testing.T) {
	now := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	c := models.Character{
		Name: "Captain Nova!",
		ID:   "nova",
		Settings: models.CharacterSettings{
			TwitterUsername: "nova_ai",
			Creator:         map[string]any{"username": "maker"},
		},
	}
	s := SceneStatusFor(c, now)
	assert.Equal(t, "nova", s.AgentID)
	assert.True(t, s.IsStreaming)
	assert.Equal(t, now, s.LastHeartbeat)
	assert.Equal(t, "Captain Nova!'s Stream", s.Title)
	assert.Equal(t, "Interactive AI Stream", s.Description)
	assert.Equal(t, "stream", s.Type)
	assert.Equal(t, "ThreeScene", s.Component)
	assert.Equal(t, "nova_ai", s.Twitter)
	assert.Equal(t, "Captain Nova!", s.ModelName)
	assert.Equal(t, "captain_nova", s.Identifier)
	assert.Equal(t, "maker", s.Creator["username"])
	assert.NotNil(t, s.SceneConfigs)
	assert.Empty(t, s.SceneConfigs)
	assert.Equal(t, models.SceneStats{}, s.Stats)
}

func TestHeartbeatBeat(t *testing.T) {
	u := &fakeUpdater{failID: "b"}
	h := NewHeartbeat(u, []models.Character{{Name: "A", ID: "a"}, {Name: "B", ID: "b"}, {Name: "C", ID: "c"}})

	err := h.Beat(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 of 3")
	require.Len(t, u.got, 3, "a failing agent does not stop the others")
	assert.Equal(t, "c", u.got[2].AgentID)

	u.failID = ""
	assert.NoError(t, h.Beat(context.Background()))
}

func TestHeartbeatSchedule(t *testing.T) {
	s := NewScheduler()
	defer s.Stop()
	h := NewHeartbeat(&fakeUpdater{}, nil)
	require.NoError(t, h.Schedule(context.Background(), s, "*/5 * * * *"))
	assert.Error(t, h.Schedule(context.Background(), s, "every tuesday"))
	assert.Equal(t, 1, s.Len())
}
