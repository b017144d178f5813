package store

import (
	"context"
	"time"
)

// DedupRecord tracks an inbound viewer comment an agent has consumed.
type DedupRecord struct {
	MessageID   string     `json:"message_id"`
	AgentID     string     `json:"agent_id"`
	ReceivedAt  time.Time  `json:"received_at"`
	ProcessedAt *time.Time `json:"processed_at"`
}

// DedupRepo guards against consuming the same comment twice.
type DedupRepo interface {
	// RecordInbound records a comment. It returns false if the comment was
	// already recorded.
	RecordInbound(ctx context.Context, messageID, agentID string) (bool, error)

	// MarkProcessed stamps the comment that received a reply.
	MarkProcessed(ctx context.Context, messageID string) error
}
