package platform

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/BTreeMap/StreamAgent/internal/models"
)

// Endpoint paths relative to the base URL.
const (
	pathUnreadComments = "/api/agents/%s/comments/unread"
	pathMarkRead       = "/api/comments/mark-read"
	pathAIResponses    = "/api/ai-responses"
	pathAnimation      = "/api/animations"
	pathRoomMessages   = "/api/rooms/%s/messages"
	pathScene          = "/api/scenes/%s"
	pathUploadAudio    = "/api/upload/audio"
)

// DefaultCommentLimit is the page size used when no limit is given.
const DefaultCommentLimit = 15

type commentsResponse struct {
	Success  bool             `json:"success"`
	Comments []models.Comment `json:"comments"`
	Error    string           `json:"error,omitempty"`
}

// FetchUnreadComments returns unread comments created after since.
func (c *Client) FetchUnreadComments(ctx context.Context, agentID string, since time.Time, limit int) ([]models.Comment, error) {
	if limit <= 0 {
		limit = DefaultCommentLimit
	}
	q := url.Values{}
	q.Set("since", since.UTC().Format(time.RFC3339Nano))
	q.Set("limit", strconv.Itoa(limit))

	var out commentsResponse
	if err := c.doJSON(ctx, "GET", fmt.Sprintf(pathUnreadComments, url.PathEscape(agentID)), q, nil, &out); err != nil {
		return nil, fmt.Errorf("fetch unread comments: %w", err)
	}
	return out.Comments, nil
}

// MarkReadResult is the server's answer to a mark-read request.
type MarkReadResult struct {
	Success       bool   `json:"success"`
	ModifiedCount int    `json:"modifiedCount"`
	Error         string `json:"error,omitempty"`
}

// MarkCommentsRead flags comments as consumed on the server.
func (c *Client) MarkCommentsRead(ctx context.Context, ids []string) (MarkReadResult, error) {
	var out MarkReadResult
	if err := c.doJSON(ctx, "POST", pathMarkRead, nil, map[string][]string{"commentIds": ids}, &out); err != nil {
		return MarkReadResult{}, fmt.Errorf("mark comments read: %w", err)
	}
	return out, nil
}

// PostAIResponse publishes a reply or thought.
func (c *Client) PostAIResponse(ctx context.Context, resp models.AIResponse) error {
	if err := c.doJSON(ctx, "POST", pathAIResponses, nil, resp, nil); err != nil {
		return fmt.Errorf("post AI response %s: %w", resp.ID, err)
	}
	return nil
}

// UpdateAnimation asks the scene to play an animation.
func (c *Client) UpdateAnimation(ctx context.Context, agentID, animation string) error {
	body := map[string]string{"agentId": agentID, "animation": animation}
	if err := c.doJSON(ctx, "POST", pathAnimation, nil, body, nil); err != nil {
		return fmt.Errorf("update animation: %w", err)
	}
	return nil
}

type roomMessagesResponse struct {
	Success  bool                 `json:"success"`
	Messages []models.RoomMessage `json:"messages"`
	Error    string               `json:"error,omitempty"`
}

// FetchRoomMessages returns up to limit recent messages of an agent room.
func (c *Client) FetchRoomMessages(ctx context.Context, roomID string, limit int) ([]models.RoomMessage, error) {
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	var out roomMessagesResponse
	if err := c.doJSON(ctx, "GET", fmt.Sprintf(pathRoomMessages, url.PathEscape(roomID)), q, nil, &out); err != nil {
		return nil, fmt.Errorf("fetch room messages: %w", err)
	}
	return out.Messages, nil
}

// RoomPost is a message posted to an agent room.
type RoomPost struct {
	AgentID   string `json:"agentId"`
	AgentName string `json:"agentName"`
	Message   string `json:"message"`
	SpeechURL string `json:"speechUrl,omitempty"`
}

type roomPostResponse struct {
	Success bool               `json:"success"`
	Message models.RoomMessage `json:"message"`
}

// PostRoomMessage posts to an agent room and returns the stored message.
func (c *Client) PostRoomMessage(ctx context.Context, roomID string, post RoomPost) (models.RoomMessage, error) {
	var out roomPostResponse
	if err := c.doJSON(ctx, "POST", fmt.Sprintf(pathRoomMessages, url.PathEscape(roomID)), nil, post, &out); err != nil {
		return models.RoomMessage{}, fmt.Errorf("post room message: %w", err)
	}
	return out.Message, nil
}

type sceneResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// UpdateSceneStatus sends a streaming heartbeat for an agent's scene.
func (c *Client) UpdateSceneStatus(ctx context.Context, status models.SceneStatus) error {
	var out sceneResponse
	if err := c.doJSON(ctx, "PUT", fmt.Sprintf(pathScene, url.PathEscape(status.AgentID)), nil, status, &out); err != nil {
		return fmt.Errorf("update scene status: %w", err)
	}
	if !out.Success {
		if out.Error == "" {
			out.Error = "server reported failure"
		}
		return fmt.Errorf("update scene status: %s", out.Error)
	}
	return nil
}

type uploadResponse struct {
	URL  string `json:"url"`
	Data struct {
		URL string `json:"url"`
	} `json:"data"`
}

// UploadAudio uploads an mp3 and returns its public URL.
func (c *Client) UploadAudio(ctx context.Context, fileName string, audio []byte) (string, error) {
	req, err := c.newRequest(ctx, "POST", pathUploadAudio, nil, bytes.NewReader(audio), "audio/mpeg")
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", fileName))
	req.Header.Set("isAudioStream", "true")

	var out uploadResponse
	if err := c.send(req, pathUploadAudio, &out); err != nil {
		return "", fmt.Errorf("upload audio: %w", err)
	}
	if out.URL != "" {
		return out.URL, nil
	}
	if out.Data.URL != "" {
		return out.Data.URL, nil
	}
	return "", fmt.Errorf("upload audio: response has no url")
}
