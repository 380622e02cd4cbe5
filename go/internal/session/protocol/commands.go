package protocol

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mcdev12/planningsync/go/internal/models"
)

// CommandType names an outbound intent.
type CommandType string

const (
	CommandAddTopic           CommandType = "ADD_TOPIC"
	CommandChangeTopicDetails CommandType = "CHANGE_TOPIC_DETAILS"
	CommandChangeCurrentTopic CommandType = "CHANGE_CURRENT_TOPIC"
	CommandAddComment         CommandType = "ADD_COMMENT"
	CommandToggleVisibility   CommandType = "TOGGLE_VISIBILITY"
	CommandVoteOnTopic        CommandType = "VOTE_ON_TOPIC"
	CommandCompleteTopic      CommandType = "COMPLETE_TOPIC"
	CommandResetTopic         CommandType = "RESET_TOPIC"
	CommandRemoveTopic        CommandType = "REMOVE_TOPIC"
)

// Command is a user intent that can be sent to the room server.
type Command interface {
	Type() CommandType
	Validate() error
}

type AddTopicCommand struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Content string `json:"content"`
}

type ChangeTopicDetailsCommand struct {
	TopicID string `json:"topic_id"`
	Title   string `json:"title"`
	URL     string `json:"url"`
	Desc    string `json:"desc"`
}

type ChangeCurrentTopicCommand struct {
	TopicID string `json:"topic_id"`
}

type AddCommentCommand struct {
	TopicID string `json:"topic_id"`
	Content string `json:"content"`
}

type ToggleVisibilityCommand struct {
	TopicID string `json:"topic_id"`
}

type VoteOnTopicCommand struct {
	TopicID string      `json:"topic_id"`
	Points  models.Vote `json:"points"`
}

type CompleteTopicCommand struct {
	TopicID string      `json:"topic_id"`
	Points  models.Vote `json:"points"`
}

type ResetTopicCommand struct {
	TopicID string `json:"topic_id"`
}

type RemoveTopicCommand struct {
	TopicID string `json:"topic_id"`
}

func (AddTopicCommand) Type() CommandType           { return CommandAddTopic }
func (ChangeTopicDetailsCommand) Type() CommandType { return CommandChangeTopicDetails }
func (ChangeCurrentTopicCommand) Type() CommandType { return CommandChangeCurrentTopic }
func (AddCommentCommand) Type() CommandType         { return CommandAddComment }
func (ToggleVisibilityCommand) Type() CommandType   { return CommandToggleVisibility }
func (VoteOnTopicCommand) Type() CommandType        { return CommandVoteOnTopic }
func (CompleteTopicCommand) Type() CommandType      { return CommandCompleteTopic }
func (ResetTopicCommand) Type() CommandType         { return CommandResetTopic }
func (RemoveTopicCommand) Type() CommandType        { return CommandRemoveTopic }

func requireTopic(id string) error {
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("%w: topic_id is required", ErrValidation)
	}
	return nil
}

func requireVote(v models.Vote) error {
	if v == "" {
		return fmt.Errorf("%w: points are required", ErrValidation)
	}
	if !v.Valid() {
		return fmt.Errorf("%w: %w", ErrValidation, models.ErrInvalidVote)
	}
	return nil
}

func (c AddTopicCommand) Validate() error {
	if err := models.ValidateTitle(c.Title); err != nil {
		return fmt.Errorf("%w: %w", ErrValidation, err)
	}
	return nil
}

func (c ChangeTopicDetailsCommand) Validate() error {
	if err := requireTopic(c.TopicID); err != nil {
		return err
	}
	if err := models.ValidateTitle(c.Title); err != nil {
		return fmt.Errorf("%w: %w", ErrValidation, err)
	}
	return nil
}

func (c ChangeCurrentTopicCommand) Validate() error { return requireTopic(c.TopicID) }

func (c AddCommentCommand) Validate() error {
	if err := requireTopic(c.TopicID); err != nil {
		return err
	}
	if _, err := models.NormalizeComment(c.Content); err != nil {
		return fmt.Errorf("%w: %w", ErrValidation, err)
	}
	return nil
}

func (c ToggleVisibilityCommand) Validate() error { return requireTopic(c.TopicID) }

func (c VoteOnTopicCommand) Validate() error {
	if err := requireTopic(c.TopicID); err != nil {
		return err
	}
	return requireVote(c.Points)
}

func (c CompleteTopicCommand) Validate() error {
	if err := requireTopic(c.TopicID); err != nil {
		return err
	}
	return requireVote(c.Points)
}

func (c ResetTopicCommand) Validate() error  { return requireTopic(c.TopicID) }
func (c RemoveTopicCommand) Validate() error { return requireTopic(c.TopicID) }

// Encode validates the command and wraps it in an envelope.
func Encode(cmd Command) ([]byte, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}
	data, err := json.Marshal(cmd)
	if err != nil {
		return nil, fmt.Errorf("marshal %s: %w", cmd.Type(), err)
	}
	frame, err := json.Marshal(Envelope{Type: string(cmd.Type()), Data: data})
	if err != nil {
		return nil, fmt.Errorf("marshal envelope: %w", err)
	}
	return frame, nil
}

// Decode parses an envelope into its command and validates it.
func Decode(frame []byte) (Command, error) {
	var env Envelope
	if err := json.Unmarshal(frame, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}

	var cmd Command
	switch CommandType(env.Type) {
	case CommandAddTopic:
		cmd = &AddTopicCommand{}
	case CommandChangeTopicDetails:
		cmd = &ChangeTopicDetailsCommand{}
	case CommandChangeCurrentTopic:
		cmd = &ChangeCurrentTopicCommand{}
	case CommandAddComment:
		cmd = &AddCommentCommand{}
	case CommandToggleVisibility:
		cmd = &ToggleVisibilityCommand{}
	case CommandVoteOnTopic:
		cmd = &VoteOnTopicCommand{}
	case CommandCompleteTopic:
		cmd = &CompleteTopicCommand{}
	case CommandResetTopic:
		cmd = &ResetTopicCommand{}
	case CommandRemoveTopic:
		cmd = &RemoveTopicCommand{}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownCommand, env.Type)
	}

	if len(env.Data) == 0 {
		return nil, fmt.Errorf("%w: %s without data", ErrValidation, env.Type)
	}
	if err := json.Unmarshal(env.Data, cmd); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrValidation, env.Type, err)
	}
	if err := cmd.Validate(); err != nil {
		return nil, err
	}
	return cmd, nil
}
