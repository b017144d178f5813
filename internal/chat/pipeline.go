// Package chat implements the comment response pipeline and the shared
// agent-room conversation.
//
// A ReadAndReply pass fetches unread viewer comments, stores them as
// memories, lets the oracle pick at most one of them, and posts a single
// reply with optional speech and animation.
package chat

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/BTreeMap/StreamAgent/internal/envelope"
	"github.com/BTreeMap/StreamAgent/internal/genai"
	"github.com/BTreeMap/StreamAgent/internal/models"
	"github.com/BTreeMap/StreamAgent/internal/platform"
	"github.com/BTreeMap/StreamAgent/internal/speech"
	"github.com/BTreeMap/StreamAgent/internal/store"
	"github.com/google/uuid"
)

const (
	// memorySource tags every memory written by the pipeline.
	memorySource = "borp"
	// noneSentinel is the selection oracle's answer when nothing deserves a reply.
	noneSentinel = "NONE"
	// historyLimit is the number of recent memories shown to the reply oracle.
	historyLimit = 20
)

// Platform is the part of the streaming platform the pipeline talks to.
// *platform.Client satisfies it.
type Platform interface {
	FetchUnreadComments(ctx context.Context, agentID string, since time.Time, limit int) ([]models.Comment, error)
	MarkCommentsRead(ctx context.Context, ids []string) (platform.MarkReadResult, error)
	PostAIResponse(ctx context.Context, resp models.AIResponse) error
}

// Opts holds configuration for Pipeline.
type Opts struct {
	Limit  int
	Dedup  store.DedupRepo
	Logger *slog.Logger
	Clock  func() time.Time
}

// Option is a functional option for configuring a Pipeline.
type Option func(*Opts)

// WithLimit sets the number of comments fetched per pass.
func WithLimit(n int) Option {
	return func(o *Opts) {
		if n > 0 {
			o.Limit = n
		}
	}
}

// WithDedup drops comments that were already consumed by an earlier pass.
func WithDedup(repo store.DedupRepo) Option {
	return func(o *Opts) { o.Dedup = repo }
}

// WithLogger sets the pipeline logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *Opts) { o.Logger = l }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(o *Opts) { o.Clock = now }
}

// Pipeline turns batches of unread comments into at most one posted reply.
// It is driven sequentially by a single orchestrator and is not safe for
// concurrent use.
type Pipeline struct {
	character models.Character
	agentID   string
	roomID    string

	gen      genai.Generator
	memories store.MemoryStore
	speech   speech.Synthesizer
	platform Platform
	opts     Opts

	watermark time.Time
}

// NewPipeline creates a pipeline whose watermark starts at the current time.
func NewPipeline(character models.Character, gen genai.Generator, memories store.MemoryStore, synth speech.Synthesizer, p Platform, opts ...Option) *Pipeline {
	o := Opts{Limit: platform.DefaultCommentLimit, Logger: slog.Default(), Clock: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	if synth == nil {
		synth = speech.Disabled{}
	}
	return &Pipeline{
		character: character,
		agentID:   character.AgentID(),
		roomID:    character.StreamRoomID(),
		gen:       gen,
		memories:  memories,
		speech:    synth,
		platform:  p,
		opts:      o,
		watermark: o.Clock(),
	}
}

// Watermark returns the creation time after which comments are fetched.
func (p *Pipeline) Watermark() time.Time { return p.watermark }

// Outcome describes one pipeline pass.
type Outcome struct {
	// Comments is the batch that was processed.
	Comments []models.Comment
	Selected *models.Comment
	Response *models.AIResponse
	Posted   bool
}

// CommentIDs returns the ids of the processed batch.
func (o Outcome) CommentIDs() []string { return models.CommentIDs(o.Comments) }

// ReadAndReply fetches comments newer than the watermark and processes them.
// The watermark moves to the current time once the fetch has been attempted,
// whether or not it succeeded.
func (p *Pipeline) ReadAndReply(ctx context.Context) (Outcome, error) {
	since := p.watermark
	p.opts.Logger.Debug("Pipeline.ReadAndReply: reading chat", "since", since, "limit", p.opts.Limit)
	comments, err := p.platform.FetchUnreadComments(ctx, p.agentID, since, p.opts.Limit)
	p.watermark = p.opts.Clock()
	if err != nil {
		return Outcome{}, fmt.Errorf("read and reply: %w", err)
	}
	comments = p.dropSeen(ctx, comments)
	if len(comments) == 0 {
		p.opts.Logger.Debug("Pipeline.ReadAndReply: no comments to process")
		return Outcome{}, nil
	}
	out, err := p.Process(ctx, comments)
	if err != nil {
		return out, err
	}
	p.opts.Logger.Info("Pipeline.ReadAndReply: processed comments", "count", len(out.Comments), "posted", out.Posted)
	return out, nil
}

// dropSeen removes comments the dedup repo has already recorded.
func (p *Pipeline) dropSeen(ctx context.Context, comments []models.Comment) []models.Comment {
	if p.opts.Dedup == nil {
		return comments
	}
	fresh := comments[:0:0]
	for _, c := range comments {
		ok, err := p.opts.Dedup.RecordInbound(ctx, c.ID, p.agentID)
		if err != nil {
			p.opts.Logger.Warn("Pipeline.dropSeen: dedup record failed, keeping comment", "comment_id", c.ID, "error", err)
			fresh = append(fresh, c)
			continue
		}
		if !ok {
			p.opts.Logger.Debug("Pipeline.dropSeen: skipping already consumed comment", "comment_id", c.ID)
			continue
		}
		fresh = append(fresh, c)
	}
	return fresh
}

// Process runs the pipeline on a fixed batch of comments.
func (p *Pipeline) Process(ctx context.Context, comments []models.Comment) (Outcome, error) {
	out := Outcome{Comments: comments}
	if len(comments) == 0 {
		return out, nil
	}
	ids := models.CommentIDs(comments)

	if res, err := p.platform.MarkCommentsRead(ctx, ids); err != nil {
		p.opts.Logger.Error("Pipeline.Process: failed to mark comments as read", "error", err, "count", len(ids))
	} else {
		p.opts.Logger.Debug("Pipeline.Process: comments marked read", "success", res.Success, "modified", res.ModifiedCount)
	}

	batch := make(map[string]bool, len(comments))
	for _, c := range comments {
		m := p.commentMemory(c)
		batch[m.ID] = true
		if strings.TrimSpace(m.Content.Text) == "" {
			continue
		}
		if err := p.memories.CreateMemory(ctx, m); err != nil {
			p.opts.Logger.Error("Pipeline.Process: failed to store comment memory", "error", err, "comment_id", c.ID)
		}
	}

	selectedID, err := SelectComment(ctx, p.gen, p.character, comments)
	if err != nil {
		return out, fmt.Errorf("select comment: %w", err)
	}
	if selectedID == "" {
		p.opts.Logger.Info("Pipeline.Process: no suitable comment found to respond to", "count", len(comments))
		return out, nil
	}
	var selected *models.Comment
	for i := range comments {
		if comments[i].ID == selectedID {
			selected = &comments[i]
			break
		}
	}
	if selected == nil {
		p.opts.Logger.Warn("Pipeline.Process: selected comment not in batch", "selected_id", selectedID)
		return out, nil
	}
	out.Selected = selected

	p.rememberFirstInteraction(ctx, *selected, batch)

	resp, err := p.reply(ctx, *selected)
	if err != nil {
		return out, err
	}
	out.Response = &resp

	if err := p.platform.PostAIResponse(ctx, resp); err != nil {
		p.opts.Logger.Error("Pipeline.Process: failed to post response", "error", err, "response_id", resp.ID)
	} else {
		out.Posted = true
		p.opts.Logger.Info("Pipeline.Process: posted reply", "comment_id", selected.ID, "handle", selected.DisplayHandle(), "response_id", resp.ID)
	}
	if p.opts.Dedup != nil {
		if err := p.opts.Dedup.MarkProcessed(ctx, selected.ID); err != nil {
			p.opts.Logger.Warn("Pipeline.Process: dedup mark processed failed", "comment_id", selected.ID, "error", err)
		}
	}
	return out, nil
}

// SelectComment picks the comment to answer. It returns "" for an empty
// batch or when the oracle answers NONE. A single comment is selected
// without consulting the oracle.
func SelectComment(ctx context.Context, gen genai.Generator, character models.Character, comments []models.Comment) (string, error) {
	switch len(comments) {
	case 0:
		return "", nil
	case 1:
		return comments[0].ID, nil
	}
	text, err := gen.Generate(ctx, genai.ModelMedium, characterSystemPrompt(character), selectCommentPrompt(character.Name, comments))
	if err != nil {
		return "", err
	}
	id := strings.Trim(strings.TrimSpace(text), "`\"' \n")
	if id == "" || strings.EqualFold(id, noneSentinel) {
		return "", nil
	}
	return id, nil
}

func (p *Pipeline) userID(c models.Comment) string {
	return models.StableID(c.DisplayHandle())
}

func (p *Pipeline) commentMemory(c models.Comment) models.Memory {
	return models.Memory{
		ID:      models.StableID(c.ID + "-" + p.agentID),
		UserID:  p.userID(c),
		AgentID: p.agentID,
		RoomID:  p.roomID,
		Content: models.Content{
			Text:     c.Message,
			Source:   memorySource,
			Metadata: map[string]any{"handle": c.DisplayHandle(), "commentId": c.ID},
		},
		CreatedAt: c.CreatedAt,
	}
}

// rememberFirstInteraction stores an introduction memory when the commenter
// has no memories in this room other than the ones from the current batch.
func (p *Pipeline) rememberFirstInteraction(ctx context.Context, c models.Comment, batch map[string]bool) {
	if c.Message == "" {
		return
	}
	existing, err := p.memories.GetMemories(ctx, models.MemoryFilter{
		AgentID: p.agentID,
		RoomID:  p.roomID,
		UserID:  p.userID(c),
	})
	if err != nil {
		p.opts.Logger.Error("Pipeline.rememberFirstInteraction: failed to fetch memories", "error", err, "handle", c.DisplayHandle())
		return
	}
	for _, m := range existing {
		if !batch[m.ID] {
			return
		}
	}

	handle := c.DisplayHandle()
	now := p.opts.Clock()
	m := models.Memory{
		ID:      models.StableID("first-interaction-" + handle + "-" + p.agentID),
		UserID:  p.userID(c),
		AgentID: p.agentID,
		RoomID:  p.roomID,
		Content: models.Content{
			Text:   "My name is " + handle,
			Source: memorySource,
			Metadata: map[string]any{
				"isFirstInteraction": true,
				"username":           handle,
				"handle":             handle,
				"timestamp":          now.UTC().Format(time.RFC3339),
			},
		},
		CreatedAt: now,
	}
	if err := p.memories.CreateMemory(ctx, m); err != nil {
		p.opts.Logger.Error("Pipeline.rememberFirstInteraction: failed to store introduction", "error", err, "handle", handle)
		return
	}
	p.opts.Logger.Info("Pipeline.rememberFirstInteraction: first interaction recorded", "handle", handle, "memory_id", m.ID)
}

// recentHistory renders the newest memories of the room, oldest first.
func (p *Pipeline) recentHistory(ctx context.Context) []string {
	mems, err := p.memories.GetMemories(ctx, models.MemoryFilter{AgentID: p.agentID, RoomID: p.roomID, Limit: historyLimit})
	if err != nil {
		p.opts.Logger.Warn("Pipeline.recentHistory: failed to load memories", "error", err)
		return nil
	}
	lines := make([]string, 0, len(mems))
	for i := len(mems) - 1; i >= 0; i-- {
		m := mems[i]
		if m.Content.Text == "" {
			continue
		}
		speaker := p.character.Name
		if m.UserID != p.agentID {
			speaker = "viewer"
			if h, ok := m.Content.Metadata["handle"].(string); ok && h != "" {
				speaker = h
			}
		}
		lines = append(lines, speaker+": "+m.Content.Text)
	}
	return lines
}

// reply composes the response to c and decorates it with animation and speech.
func (p *Pipeline) reply(ctx context.Context, c models.Comment) (models.AIResponse, error) {
	catalog := p.character.AnimationCatalog()
	prompt := replyPrompt(p.character.Name, p.recentHistory(ctx), c, catalog)
	raw, err := p.gen.Generate(ctx, genai.ModelMedium, characterSystemPrompt(p.character), prompt)
	if err != nil {
		return models.AIResponse{}, fmt.Errorf("compose reply: %w", err)
	}
	text := strings.TrimSpace(raw)
	if res := envelope.Decode[envelope.Reply](envelope.KindReply, raw); res.OK() {
		text = strings.TrimSpace(res.Value.Text)
	} else {
		p.opts.Logger.Debug("Pipeline.reply: reply was not an envelope, using raw text", "error", res.Err)
	}
	if text == "" {
		return models.AIResponse{}, fmt.Errorf("compose reply: %w", genai.ErrEmptyResponse)
	}

	commentMemID := models.StableID(c.ID + "-" + p.agentID)
	replyMem := models.Memory{
		ID:        models.StableID("reply-" + c.ID + "-" + p.agentID),
		UserID:    p.agentID,
		AgentID:   p.agentID,
		RoomID:    p.roomID,
		Content:   models.Content{Text: text, Source: memorySource, InReplyTo: commentMemID},
		CreatedAt: p.opts.Clock(),
	}
	if err := p.memories.CreateMemory(ctx, replyMem); err != nil {
		p.opts.Logger.Error("Pipeline.reply: failed to store reply memory", "error", err)
	}

	resp := models.AIResponse{
		ID:               uuid.NewString(),
		Text:             text,
		AgentID:          p.agentID,
		ReplyToMessageID: c.ID,
		ReplyToMessage:   c.Message,
		ReplyToUser:      c.User,
		ReplyToHandle:    c.Handle,
		ReplyToPfp:       c.Avatar,
	}
	if anim, err := p.animationFor(ctx, text, catalog); err != nil {
		p.opts.Logger.Warn("Pipeline.reply: no animation for reply", "error", err)
	} else {
		resp.Animation = anim
	}
	if u, err := p.speech.Synthesize(ctx, text); err != nil {
		p.opts.Logger.Warn("Pipeline.reply: failed to generate speech", "error", err)
	} else {
		resp.AudioURL = u
	}
	return resp, nil
}

func (p *Pipeline) animationFor(ctx context.Context, reply string, catalog []string) (string, error) {
	raw, err := p.gen.Generate(ctx, genai.ModelSmall, "", replyAnimationPrompt(p.character.Name, reply, catalog))
	if err != nil {
		return "", err
	}
	anim, ok := models.LookupAnimation(catalog, raw)
	if !ok {
		return "", fmt.Errorf("animation %q not in catalog", strings.TrimSpace(raw))
	}
	return anim, nil
}
