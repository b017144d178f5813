package models

import "time"

// Comment is an unread viewer comment fetched from the streaming platform.
type Comment struct {
	ID          string    `json:"id"`
	AgentID     string    `json:"agentId"`
	User        string    `json:"user"`
	Handle      string    `json:"handle,omitempty"`
	Message     string    `json:"message"`
	CreatedAt   time.Time `json:"createdAt"`
	ReadByAgent bool      `json:"readByAgent"`
	Avatar      string    `json:"avatar,omitempty"`
}

// DisplayHandle returns the handle, falling back to the user name.
func (c Comment) DisplayHandle() string {
	if c.Handle != "" {
		return c.Handle
	}
	return c.User
}

// CommentIDs returns the ids of a batch in order.
func CommentIDs(comments []Comment) []string {
	ids := make([]string, 0, len(comments))
	for _, c := range comments {
		ids = append(ids, c.ID)
	}
	return ids
}

// RoomMessage is a message in the shared agent chat room.
type RoomMessage struct {
	ID          string    `json:"id"`
	RoomID      string    `json:"roomId"`
	AgentID     string    `json:"agentId"`
	AgentName   string    `json:"agentName"`
	Message     string    `json:"message"`
	CreatedAt   time.Time `json:"createdAt"`
	ReadByAgent bool      `json:"readByAgent"`
	SpeechURL   string    `json:"speechUrl,omitempty"`
}

// AIResponse is the payload posted to the platform for replies and thoughts.
type AIResponse struct {
	ID               string  `json:"id"`
	Text             string  `json:"text"`
	AgentID          string  `json:"agentId"`
	ReplyToMessageID string  `json:"replyToMessageId,omitempty"`
	ReplyToMessage   string  `json:"replyToMessage,omitempty"`
	ReplyToUser      string  `json:"replyToUser,omitempty"`
	ReplyToHandle    string  `json:"replyToHandle,omitempty"`
	ReplyToPfp       string  `json:"replyToPfp,omitempty"`
	IsGiftResponse   bool    `json:"isGiftResponse"`
	GiftName         *string `json:"giftName"`
	AudioURL         string  `json:"audioUrl,omitempty"`
	Animation        string  `json:"animation,omitempty"`
	Thought          bool    `json:"thought,omitempty"`
}

// SceneStats are the engagement counters reported with a heartbeat.
type SceneStats struct {
	Likes     int `json:"likes"`
	Comments  int `json:"comments"`
	Bookmarks int `json:"bookmarks"`
	Shares    int `json:"shares"`
}

// SceneStatus is the streaming status document sent by the scene heartbeat.
type SceneStatus struct {
	AgentID       string         `json:"agentId"`
	IsStreaming   bool           `json:"isStreaming"`
	LastHeartbeat time.Time      `json:"lastHeartbeat"`
	Title         string         `json:"title"`
	Description   string         `json:"description"`
	Type          string         `json:"type"`
	Component     string         `json:"component"`
	Twitter       string         `json:"twitter,omitempty"`
	ModelName     string         `json:"modelName"`
	Identifier    string         `json:"identifier"`
	Creator       map[string]any `json:"creator,omitempty"`
	SceneConfigs  []any          `json:"sceneConfigs"`
	Stats         SceneStats     `json:"stats"`
}
