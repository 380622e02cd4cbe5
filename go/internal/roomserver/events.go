package roomserver

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/mcdev12/planningsync/go/internal/models"
	"github.com/mcdev12/planningsync/go/internal/session/protocol"
)

// EventType names a room change notification.
type EventType string

const (
	EventTypeUserJoined          EventType = "USER_JOINED"
	EventTypeUserLeft            EventType = "USER_LEFT"
	EventTypeTopicAdded          EventType = "TOPIC_ADDED"
	EventTypeTopicUpdated        EventType = "TOPIC_UPDATED"
	EventTypeTopicRemoved        EventType = "TOPIC_REMOVED"
	EventTypeCurrentTopicChanged EventType = "CURRENT_TOPIC_CHANGED"
	EventTypeCommentAdded        EventType = "COMMENT_ADDED"
	EventTypeVisibilityToggled   EventType = "VISIBILITY_TOGGLED"
	EventTypeUserVoted           EventType = "USER_VOTED"
	EventTypeTopicCompleted      EventType = "TOPIC_COMPLETED"
	EventTypeTopicReset          EventType = "TOPIC_RESET"
)

// RoomEvent is the envelope carried between server instances.
type RoomEvent struct {
	ID        string          `json:"id"`
	RoomID    string          `json:"room_id"`
	Type      EventType       `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
}

// Frame renders the event as the websocket notification sent to clients.
func (e RoomEvent) Frame() ([]byte, error) {
	frame, err := json.Marshal(protocol.Envelope{Type: string(e.Type), Data: e.Data})
	if err != nil {
		return nil, fmt.Errorf("marshal notification: %w", err)
	}
	return frame, nil
}

type UserJoinedPayload struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
}

type UserLeftPayload struct {
	UserID string `json:"user_id"`
}

type TopicAddedPayload struct {
	TopicID     string    `json:"topic_id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
}

type TopicUpdatedPayload struct {
	TopicID string `json:"topic_id"`
	Title   string `json:"title"`
	Desc    string `json:"desc"`
	URL     string `json:"url"`
}

type TopicPayload struct {
	TopicID string `json:"topic_id"`
}

type CommentAddedPayload struct {
	TopicID   string    `json:"topic_id"`
	CommentID string    `json:"comment_id"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// UserVotedPayload does not carry the vote so hidden votes stay hidden.
type UserVotedPayload struct {
	TopicID string `json:"topic_id"`
	UserID  string `json:"user_id"`
}

type TopicCompletedPayload struct {
	TopicID string      `json:"topic_id"`
	Points  models.Vote `json:"points"`
}
