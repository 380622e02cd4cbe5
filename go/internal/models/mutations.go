package models

import (
	"fmt"
	"strings"
	"time"
)

// Mutations below are applied by the room server only. Clients never modify
// a Room; they replace it with a fresh snapshot.

// ValidateTitle rejects blank topic titles.
func ValidateTitle(title string) error {
	if strings.TrimSpace(title) == "" {
		return ErrEmptyTitle
	}
	return nil
}

// NormalizeComment trims the content and rejects it when nothing is left.
func NormalizeComment(content string) (string, error) {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return "", ErrEmptyComment
	}
	return trimmed, nil
}

func (r *Room) topic(id string) (*Topic, error) {
	t, ok := r.Topics[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrTopicNotFound, id)
	}
	return t, nil
}

func (r *Room) AddTopic(id, title, url, description string, now time.Time) (*Topic, error) {
	if err := ValidateTitle(title); err != nil {
		return nil, err
	}
	t := &Topic{
		TopicID:     id,
		Title:       title,
		URL:         url,
		Description: description,
		ClientVotes: make(map[string]Vote),
		Comments:    make([]Comment, 0),
		CreatedAt:   now,
	}
	r.Topics[id] = t
	return t, nil
}

// RemoveTopic deletes the topic and clears the current topic if it pointed at it.
func (r *Room) RemoveTopic(id string) error {
	if _, err := r.topic(id); err != nil {
		return err
	}
	if r.CurrentTopicID != nil && *r.CurrentTopicID == id {
		r.CurrentTopicID = nil
	}
	delete(r.Topics, id)
	return nil
}

// SetCurrentTopic opens voting on the topic with hidden votes.
func (r *Room) SetCurrentTopic(id string) error {
	t, err := r.topic(id)
	if err != nil {
		return err
	}
	if t.Completed {
		return fmt.Errorf("%w: %s", ErrTopicCompleted, id)
	}
	t.VotesVisible = false
	r.CurrentTopicID = &id
	return nil
}

// VoteOnTopic records the participant's vote. A later vote replaces an earlier one.
func (r *Room) VoteOnTopic(userID, topicID string, v Vote) error {
	if !v.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidVote, string(v))
	}
	t, err := r.topic(topicID)
	if err != nil {
		return err
	}
	if t.Completed {
		return fmt.Errorf("%w: %s", ErrTopicCompleted, topicID)
	}
	if t.ClientVotes == nil {
		t.ClientVotes = make(map[string]Vote)
	}
	t.ClientVotes[userID] = v
	return nil
}

func (r *Room) ToggleVisibility(topicID string) error {
	t, err := r.topic(topicID)
	if err != nil {
		return err
	}
	if t.Completed {
		return fmt.Errorf("%w: %s", ErrTopicCompleted, topicID)
	}
	t.VotesVisible = !t.VotesVisible
	return nil
}

// CompleteTopic finalizes the estimate and reveals the votes.
func (r *Room) CompleteTopic(topicID string, points Vote, now time.Time) error {
	if !points.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidVote, string(points))
	}
	t, err := r.topic(topicID)
	if err != nil {
		return err
	}
	t.Completed = true
	t.Points = &points
	t.CompletedAt = &now
	t.VotesVisible = true
	if r.CurrentTopicID != nil && *r.CurrentTopicID == topicID {
		r.CurrentTopicID = nil
	}
	return nil
}

// ResetTopic clears votes and any completion so the topic can be estimated again.
func (r *Room) ResetTopic(topicID string) error {
	t, err := r.topic(topicID)
	if err != nil {
		return err
	}
	t.Points = nil
	t.Completed = false
	t.CompletedAt = nil
	t.VotesVisible = false
	t.ClientVotes = make(map[string]Vote)
	return nil
}

func (r *Room) AddComment(commentID, topicID, content string, now time.Time) (*Comment, error) {
	content, err := NormalizeComment(content)
	if err != nil {
		return nil, err
	}
	t, err := r.topic(topicID)
	if err != nil {
		return nil, err
	}
	c := Comment{CommentID: commentID, Content: content, CreatedAt: now}
	t.Comments = append(t.Comments, c)
	return &c, nil
}

func (r *Room) ChangeTopicDetails(topicID, title, description, url string) error {
	if err := ValidateTitle(title); err != nil {
		return err
	}
	t, err := r.topic(topicID)
	if err != nil {
		return err
	}
	t.Title = title
	t.Description = description
	t.URL = url
	return nil
}

// Join registers a connected participant.
func (r *Room) Join(p Participant) {
	if r.ConnectedUsers == nil {
		r.ConnectedUsers = make(map[string]Participant)
	}
	r.ConnectedUsers[p.UserID] = p
}

// Leave removes a participant. Their votes stay on the topics.
func (r *Room) Leave(userID string) {
	delete(r.ConnectedUsers, userID)
}
