package agent

import (
	"context"
	"fmt"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/BTreeMap/StreamAgent/internal/flow"
	"github.com/BTreeMap/StreamAgent/internal/genai"
	"github.com/BTreeMap/StreamAgent/internal/models"
	"github.com/google/uuid"
)

const (
	thoughtContextParts = 5
	animationOptions    = 10
)

func (a *Agent) readAndReply(ctx context.Context, _ *State) error {
	_, err := a.pipeline.ReadAndReply(ctx)
	return err
}

func (a *Agent) agentRoomChat(ctx context.Context, _ *State) error {
	_, err := a.room.ReadAndReply(ctx)
	return err
}

// freshThought shares a spontaneous thought built from random lore and bio lines.
func (a *Agent) freshThought(ctx context.Context, _ *State) error {
	c := a.deps.Character
	prompt := freshThoughtPrompt(c, sample(c.Lore, thoughtContextParts), sample(c.Bio, thoughtContextParts))
	text, err := a.deps.Generator.Generate(ctx, genai.ModelMedium, "", prompt)
	if err != nil {
		return fmt.Errorf("generate fresh thought: %w", err)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		a.logger.Debug("Agent.freshThought: empty thought, nothing to share")
		return nil
	}

	now := a.opts.Clock()
	mem := models.Memory{
		ID:      models.StableID(fmt.Sprintf("thought-%s-%d", a.agentID, now.UnixMilli())),
		UserID:  a.agentID,
		AgentID: a.agentID,
		RoomID:  c.StreamRoomID(),
		Content: models.Content{
			Text:   text,
			Source: "borp",
			Metadata: map[string]any{
				"isThought": true,
				"timestamp": now.UTC().Format(time.RFC3339),
			},
		},
		CreatedAt: now,
	}
	if err := a.deps.Memories.CreateMemory(ctx, mem); err != nil {
		a.logger.Error("Agent.freshThought: failed to store thought memory", "error", err)
	}

	a.publishThought(ctx, text)
	return nil
}

// publishThought posts text as a thought with speech when available.
// Delivery failures are logged only.
func (a *Agent) publishThought(ctx context.Context, text string) {
	resp := models.AIResponse{ID: uuid.NewString(), Text: text, AgentID: a.agentID, Thought: true}
	if u, err := a.deps.Speech.Synthesize(ctx, text); err != nil {
		a.logger.Warn("Agent.publishThought: failed to generate speech", "error", err)
	} else {
		resp.AudioURL = u
	}
	if err := a.deps.Platform.PostAIResponse(ctx, resp); err != nil {
		a.logger.Error("Agent.publishThought: failed to post thought", "error", err, "response_id", resp.ID)
		return
	}
	a.logger.Info("Agent.publishThought: thought shared", "response_id", resp.ID, "has_audio", resp.AudioURL != "")
}

// periodicAnimation lets the oracle choose among a random subset of the catalog.
func (a *Agent) periodicAnimation(ctx context.Context, _ *State) error {
	catalog := a.deps.Character.AnimationCatalog()
	options := append([]string(nil), catalog...)
	rand.Shuffle(len(options), func(i, j int) { options[i], options[j] = options[j], options[i] })
	if len(options) > animationOptions {
		options = options[:animationOptions]
	}

	raw, err := a.deps.Generator.Generate(ctx, genai.ModelSmall, "", animationPrompt(a.deps.Character, options))
	if err != nil {
		return fmt.Errorf("generate animation: %w", err)
	}
	anim, ok := models.LookupAnimation(catalog, raw)
	if !ok {
		a.logger.Warn("Agent.periodicAnimation: invalid animation generated", "animation", strings.TrimSpace(raw))
		return nil
	}
	if err := a.deps.Platform.UpdateAnimation(ctx, a.agentID, anim); err != nil {
		a.logger.Error("Agent.periodicAnimation: failed to post animation", "error", err, "animation", anim)
		return nil
	}
	a.logger.Info("Agent.periodicAnimation: animation played", "animation", anim)
	return nil
}

func (a *Agent) flowOptions(stepDelay time.Duration) []flow.Option {
	opts := []flow.Option{
		flow.WithMaxSteps(a.opts.MaxSteps),
		flow.WithStepDelay(stepDelay),
		flow.WithSleep(a.opts.Sleep),
		flow.WithLogger(a.logger),
	}
	if a.opts.PublishThoughts {
		opts = append(opts, flow.WithThoughtSink(a.publishThought))
	}
	return opts
}

func (a *Agent) structuredStory(ctx context.Context, st *State) error {
	story := flow.NewStory(a.deps.Generator, a.deps.Character, st.Subject, a.flowOptions(0)...)
	res, err := story.Run(ctx)
	if err != nil {
		return err
	}
	a.logger.Info("Agent.structuredStory: complete story generated", "subject", st.Subject, "thoughts", len(res.Narrative), "story", res.Text())
	return nil
}

func (a *Agent) structuredContent(ctx context.Context, st *State) error {
	content := flow.NewContent(a.deps.Generator, a.deps.Character, st.Subject, a.flowOptions(a.opts.Timings.ContentStep)...)
	res, err := content.Run(ctx)
	if err != nil {
		return err
	}
	plan := content.Plan()
	a.logger.Info("Agent.structuredContent: content generated", "topic", plan.Topic, "goal", plan.Goal, "steps", len(plan.Steps), "content", res.Text())
	return nil
}
