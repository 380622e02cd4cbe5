package models

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"
)

var (
	ErrTopicNotFound  = errors.New("topic not found")
	ErrTopicCompleted = errors.New("topic already completed")
	ErrEmptyTitle     = errors.New("topic title is required")
	ErrEmptyComment   = errors.New("comment content is required")
	ErrInvariant      = errors.New("room invariant violated")
)

// Participant is a user connected to a room. UserID is assigned by the server
// per connection and is not stable across reconnects.
type Participant struct {
	UserID string `json:"user_id"`
	Name   string `json:"name"`
}

// Comment belongs to exactly one topic.
type Comment struct {
	CommentID string    `json:"comment_id"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// Topic is an item estimated by the room.
type Topic struct {
	TopicID      string          `json:"topic_id"`
	Title        string          `json:"title"`
	URL          string          `json:"url"`
	Description  string          `json:"description"`
	Completed    bool            `json:"completed"`
	VotesVisible bool            `json:"votes_visible"`
	Points       *Vote           `json:"points"`
	ClientVotes  map[string]Vote `json:"client_votes"`
	Comments     []Comment       `json:"comments"`
	CreatedAt    time.Time       `json:"created_at"`
	CompletedAt  *time.Time      `json:"completed_at"`
}

// Room is the full snapshot of a planning session.
type Room struct {
	RoomID         string                 `json:"room_id"`
	CreatedAt      time.Time              `json:"created_at"`
	CurrentTopicID *string                `json:"current_topic_id"`
	Topics         map[string]*Topic      `json:"topics"`
	ConnectedUsers map[string]Participant `json:"connected_users"`
}

// NewRoom returns an empty room.
func NewRoom(id string, createdAt time.Time) *Room {
	return &Room{
		RoomID:         id,
		CreatedAt:      createdAt,
		Topics:         make(map[string]*Topic),
		ConnectedUsers: make(map[string]Participant),
	}
}

// CurrentTopic returns the topic being voted on, or nil.
func (r *Room) CurrentTopic() *Topic {
	if r.CurrentTopicID == nil {
		return nil
	}
	return r.Topics[*r.CurrentTopicID]
}

// SortedTopics returns the topics ordered by creation time.
func (r *Room) SortedTopics() []*Topic {
	topics := slices.Collect(maps.Values(r.Topics))
	slices.SortFunc(topics, func(a, b *Topic) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.TopicID, b.TopicID)
	})
	return topics
}

// Validate checks the structural invariants of the snapshot.
func (r *Room) Validate() error {
	if r.CurrentTopicID != nil {
		if _, ok := r.Topics[*r.CurrentTopicID]; !ok {
			return fmt.Errorf("%w: current topic %s does not exist", ErrInvariant, *r.CurrentTopicID)
		}
	}
	for id, t := range r.Topics {
		if !t.Completed {
			continue
		}
		if t.Points == nil || !t.Points.Valid() {
			return fmt.Errorf("%w: completed topic %s has no valid points", ErrInvariant, id)
		}
		if !t.VotesVisible {
			return fmt.Errorf("%w: completed topic %s has hidden votes", ErrInvariant, id)
		}
	}
	return nil
}

// Clone returns a deep copy of the room.
func (r *Room) Clone() *Room {
	if r == nil {
		return nil
	}
	out := &Room{
		RoomID:         r.RoomID,
		CreatedAt:      r.CreatedAt,
		Topics:         make(map[string]*Topic, len(r.Topics)),
		ConnectedUsers: maps.Clone(r.ConnectedUsers),
	}
	if out.ConnectedUsers == nil {
		out.ConnectedUsers = make(map[string]Participant)
	}
	if r.CurrentTopicID != nil {
		id := *r.CurrentTopicID
		out.CurrentTopicID = &id
	}
	for id, t := range r.Topics {
		out.Topics[id] = t.clone()
	}
	return out
}

func (t *Topic) clone() *Topic {
	c := *t
	c.ClientVotes = maps.Clone(t.ClientVotes)
	if c.ClientVotes == nil {
		c.ClientVotes = make(map[string]Vote)
	}
	c.Comments = slices.Clone(t.Comments)
	if t.Points != nil {
		p := *t.Points
		c.Points = &p
	}
	if t.CompletedAt != nil {
		at := *t.CompletedAt
		c.CompletedAt = &at
	}
	return &c
}
