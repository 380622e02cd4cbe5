package session

import (
	"errors"
	"strings"

	"github.com/mcdev12/planningsync/go/internal/models"
	"github.com/mcdev12/planningsync/go/internal/session/protocol"
	"github.com/rs/zerolog/log"
)

// Send validates and transmits a command. Invalid commands return
// ErrValidation. When the session is not Synced the call does nothing.
// There is no acknowledgement: the effect shows up in a later snapshot.
func (m *Manager) Send(cmd protocol.Command) error {
	frame, err := protocol.Encode(cmd)
	if err != nil {
		return err
	}

	m.mu.Lock()
	conn := m.conn
	state := m.state
	m.mu.Unlock()

	if state != StateSynced || conn == nil {
		log.Debug().
			Str("command", string(cmd.Type())).
			Str("state", state.String()).
			Msg("dropping command, session not synced")
		return nil
	}

	if err := conn.trySend(frame); err != nil {
		if errors.Is(err, errConnectionClosed) {
			return nil
		}
		m.metrics.RecordDroppedSend(string(cmd.Type()))
		log.Warn().
			Err(err).
			Str("command", string(cmd.Type())).
			Str("connection_id", conn.ID).
			Msg("failed to queue command")
		return err
	}

	log.Debug().
		Str("command", string(cmd.Type())).
		Str("connection_id", conn.ID).
		Msg("command sent")
	return nil
}

// Sender transmits commands over the active connection.
type Sender interface {
	Send(cmd protocol.Command) error
}

// Dispatcher exposes one method per user intent.
type Dispatcher struct {
	sender Sender
}

func NewDispatcher(sender Sender) *Dispatcher {
	return &Dispatcher{sender: sender}
}

func (d *Dispatcher) AddTopic(title, url, description string) error {
	return d.sender.Send(protocol.AddTopicCommand{
		Title:   strings.TrimSpace(title),
		URL:     strings.TrimSpace(url),
		Content: description,
	})
}

func (d *Dispatcher) ChangeTopicDetails(topicID, title, url, description string) error {
	return d.sender.Send(protocol.ChangeTopicDetailsCommand{
		TopicID: topicID,
		Title:   strings.TrimSpace(title),
		URL:     strings.TrimSpace(url),
		Desc:    description,
	})
}

func (d *Dispatcher) ChangeCurrentTopic(topicID string) error {
	return d.sender.Send(protocol.ChangeCurrentTopicCommand{TopicID: topicID})
}

func (d *Dispatcher) AddComment(topicID, content string) error {
	return d.sender.Send(protocol.AddCommentCommand{
		TopicID: topicID,
		Content: strings.TrimSpace(content),
	})
}

func (d *Dispatcher) ToggleVisibility(topicID string) error {
	return d.sender.Send(protocol.ToggleVisibilityCommand{TopicID: topicID})
}

func (d *Dispatcher) Vote(topicID string, points models.Vote) error {
	return d.sender.Send(protocol.VoteOnTopicCommand{TopicID: topicID, Points: points})
}

func (d *Dispatcher) CompleteTopic(topicID string, points models.Vote) error {
	return d.sender.Send(protocol.CompleteTopicCommand{TopicID: topicID, Points: points})
}

func (d *Dispatcher) ResetTopic(topicID string) error {
	return d.sender.Send(protocol.ResetTopicCommand{TopicID: topicID})
}

func (d *Dispatcher) RemoveTopic(topicID string) error {
	return d.sender.Send(protocol.RemoveTopicCommand{TopicID: topicID})
}
