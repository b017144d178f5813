package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/BTreeMap/StreamAgent/internal/models"
)

// Scene defaults sent with every heartbeat.
const (
	sceneDescription = "Interactive AI Stream"
	sceneType        = "stream"
	sceneComponent   = "ThreeScene"
)

// SceneUpdater sends a streaming status document for an agent's scene.
type SceneUpdater interface {
	UpdateSceneStatus(ctx context.Context, status models.SceneStatus) error
}

// SceneStatusFor builds the heartbeat document for a character.
func SceneStatusFor(c models.Character, now time.Time) models.SceneStatus {
	configs := c.Settings.SceneConfigs
	if configs == nil {
		configs = []any{}
	}
	return models.SceneStatus{
		AgentID:       c.AgentID(),
		IsStreaming:   true,
		LastHeartbeat: now,
		Title:         fmt.Sprintf("%s's Stream", c.Name),
		Description:   sceneDescription,
		Type:          sceneType,
		Component:     sceneComponent,
		Twitter:       c.Settings.TwitterUsername,
		ModelName:     c.Name,
		Identifier:    c.Identifier(),
		Creator:       c.Settings.Creator,
		SceneConfigs:  configs,
	}
}

// Heartbeat reports each character's scene as streaming.
type Heartbeat struct {
	updater    SceneUpdater
	characters []models.Character
	timeout    time.Duration
	now        func() time.Time
}

// NewHeartbeat creates a heartbeat for the given characters.
func NewHeartbeat(updater SceneUpdater, characters []models.Character) *Heartbeat {
	return &Heartbeat{
		updater:    updater,
		characters: characters,
		timeout:    30 * time.Second,
		now:        time.Now,
	}
}

// Beat sends one status update per character. Failures are logged and
// counted; the returned error reports how many updates failed.
func (h *Heartbeat) Beat(ctx context.Context) error {
	failed := 0
	for _, c := range h.characters {
		callCtx, cancel := context.WithTimeout(ctx, h.timeout)
		err := h.updater.UpdateSceneStatus(callCtx, SceneStatusFor(c, h.now()))
		cancel()
		if err != nil {
			failed++
			slog.Error("Heartbeat.Beat: scene update failed", "agent", c.Name, "agent_id", c.AgentID(), "error", err)
			continue
		}
		slog.Debug("Heartbeat.Beat: scene updated", "agent", c.Name)
	}
	if failed > 0 {
		return fmt.Errorf("heartbeat: %d of %d scene updates failed", failed, len(h.characters))
	}
	return nil
}

// Schedule registers the heartbeat on s using expr.
func (h *Heartbeat) Schedule(ctx context.Context, s *Scheduler, expr string) error {
	if err := s.AddJob(expr, func() { _ = h.Beat(ctx) }); err != nil {
		return fmt.Errorf("schedule heartbeat %q: %w", expr, err)
	}
	slog.Info("Heartbeat scheduled", "cron", expr, "agents", len(h.characters))
	return nil
}
