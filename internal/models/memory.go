package models

import (
	"time"

	"github.com/google/uuid"
)

// Content is the body of a memory record.
type Content struct {
	Text      string         `json:"text"`
	Source    string         `json:"source,omitempty"`
	InReplyTo string         `json:"in_reply_to,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// Memory is a durable conversational record kept per agent and room.
type Memory struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	AgentID   string    `json:"agent_id"`
	RoomID    string    `json:"room_id"`
	Content   Content   `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// MemoryFilter selects memories. Empty fields match everything.
type MemoryFilter struct {
	AgentID string
	RoomID  string
	UserID  string
	// Limit caps the result size; 0 means no limit. Results are newest first.
	Limit int
}

// StableID derives a deterministic UUID from an arbitrary string so the same
// input always maps to the same memory, user, or room id.
func StableID(s string) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(s)).String()
}
