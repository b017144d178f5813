package chat

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/BTreeMap/StreamAgent/internal/envelope"
	"github.com/BTreeMap/StreamAgent/internal/genai"
	"github.com/BTreeMap/StreamAgent/internal/models"
	"github.com/BTreeMap/StreamAgent/internal/platform"
	"github.com/BTreeMap/StreamAgent/internal/speech"
)

const (
	// AgentRoomID is the shared room where agents talk to each other.
	AgentRoomID = "borp-room"

	roomFetchLimit   = 20
	roomHistoryLines = 10
)

// RoomClient reads and writes agent-room messages. *platform.Client satisfies it.
type RoomClient interface {
	FetchRoomMessages(ctx context.Context, roomID string, limit int) ([]models.RoomMessage, error)
	PostRoomMessage(ctx context.Context, roomID string, post platform.RoomPost) (models.RoomMessage, error)
}

// Room answers the latest message in the shared agent room.
type Room struct {
	character models.Character
	agentID   string
	gen       genai.Generator
	speech    speech.Synthesizer
	client    RoomClient
	logger    *slog.Logger

	lastMessageID string
}

// NewRoom creates a room participant for character.
func NewRoom(character models.Character, gen genai.Generator, synth speech.Synthesizer, client RoomClient, logger *slog.Logger) *Room {
	if synth == nil {
		synth = speech.Disabled{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Room{
		character: character,
		agentID:   character.AgentID(),
		gen:       gen,
		speech:    synth,
		client:    client,
		logger:    logger,
	}
}

// LastMessageID returns the id of the newest message already handled.
func (r *Room) LastMessageID() string { return r.lastMessageID }

// ReadAndReply answers the newest room message unless it was already handled
// or was written by this agent. It reports whether a reply was posted.
func (r *Room) ReadAndReply(ctx context.Context) (bool, error) {
	msgs, err := r.client.FetchRoomMessages(ctx, AgentRoomID, roomFetchLimit)
	if err != nil {
		return false, fmt.Errorf("agent room chat: %w", err)
	}
	if len(msgs) == 0 {
		r.logger.Debug("Room.ReadAndReply: no messages found")
		return false, nil
	}
	latest := msgs[len(msgs)-1]
	if latest.ID == r.lastMessageID {
		r.logger.Debug("Room.ReadAndReply: latest message already processed", "message_id", latest.ID)
		return false, nil
	}
	if latest.AgentID == r.agentID {
		r.logger.Debug("Room.ReadAndReply: latest message is from self", "message_id", latest.ID)
		r.lastMessageID = latest.ID
		return false, nil
	}

	start := max(0, len(msgs)-roomHistoryLines)
	lines := make([]string, 0, len(msgs)-start)
	for _, m := range msgs[start:] {
		lines = append(lines, m.AgentName+": "+m.Message)
	}
	raw, err := r.gen.Generate(ctx, genai.ModelMedium, characterSystemPrompt(r.character),
		roomPrompt(r.character.Name, strings.Join(lines, "\n"), latest.Message))
	if err != nil {
		return false, fmt.Errorf("agent room reply: %w", err)
	}
	res := envelope.Decode[envelope.RoomReply](envelope.KindRoomReply, raw)
	text := strings.TrimSpace(res.Value.Text)
	if !res.OK() || text == "" {
		r.logger.Error("Room.ReadAndReply: failed to parse response", "error", res.Err, "raw", raw)
		return false, nil
	}

	post := platform.RoomPost{AgentID: r.agentID, AgentName: r.character.Name, Message: text}
	if u, err := r.speech.Synthesize(ctx, text); err != nil {
		r.logger.Warn("Room.ReadAndReply: failed to generate speech", "error", err)
	} else {
		post.SpeechURL = u
	}
	if _, err := r.client.PostRoomMessage(ctx, AgentRoomID, post); err != nil {
		r.logger.Error("Room.ReadAndReply: failed to post room message", "error", err, "reply_to", latest.ID)
		return false, nil
	}
	r.logger.Info("Room.ReadAndReply: replied in agent room", "previous_message_id", r.lastMessageID, "message_id", latest.ID, "from", latest.AgentName)
	r.lastMessageID = latest.ID
	return true, nil
}
