package roomserver

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/planningsync/go/internal/models"
	"github.com/mcdev12/planningsync/go/internal/session/protocol"
	"github.com/rs/zerolog/log"
)

// PresenceProvider lists the participants connected to a room.
type PresenceProvider interface {
	Participants(roomID string) []models.Participant
}

// App applies commands to rooms and announces the resulting changes.
type App struct {
	store    RoomStore
	notifier Notifier
	presence PresenceProvider
	clock    clockwork.Clock
}

func NewApp(store RoomStore, notifier Notifier, presence PresenceProvider, clock clockwork.Clock) *App {
	return &App{
		store:    store,
		notifier: notifier,
		presence: presence,
		clock:    clock,
	}
}

func (a *App) CreateRoom(ctx context.Context) (*models.Room, error) {
	room := models.NewRoom(uuid.New().String(), a.clock.Now().UTC())
	if err := a.store.Create(ctx, room); err != nil {
		return nil, fmt.Errorf("failed to create room: %w", err)
	}
	log.Info().Str("room_id", room.RoomID).Msg("room created")
	return room, nil
}

// GetRoom returns the stored room with the participants currently connected.
func (a *App) GetRoom(ctx context.Context, roomID string) (*models.Room, error) {
	room, err := a.store.Get(ctx, roomID)
	if err != nil {
		return nil, err
	}
	for _, p := range a.presence.Participants(roomID) {
		room.Join(p)
	}
	return room, nil
}

// Joined announces a new participant.
func (a *App) Joined(ctx context.Context, roomID, userID, username string) {
	a.announce(ctx, roomID, EventTypeUserJoined, UserJoinedPayload{UserID: userID, Username: username})
}

// Left announces a departed participant.
func (a *App) Left(ctx context.Context, roomID, userID string) {
	a.announce(ctx, roomID, EventTypeUserLeft, UserLeftPayload{UserID: userID})
}

// HandleCommand decodes a frame from userID and applies it to the room.
// Invalid or inapplicable commands are dropped without a notification.
func (a *App) HandleCommand(ctx context.Context, roomID, userID string, frame []byte) error {
	cmd, err := protocol.Decode(frame)
	if err != nil {
		return fmt.Errorf("failed to decode command: %w", err)
	}

	var (
		eventType EventType
		payload   any
	)
	_, err = a.store.Update(ctx, roomID, func(room *models.Room) error {
		var applyErr error
		eventType, payload, applyErr = a.apply(room, userID, cmd)
		return applyErr
	})
	if err != nil {
		return fmt.Errorf("failed to apply %s: %w", cmd.Type(), err)
	}

	a.announce(ctx, roomID, eventType, payload)
	return nil
}

func (a *App) apply(room *models.Room, userID string, cmd protocol.Command) (EventType, any, error) {
	now := a.clock.Now().UTC()

	switch c := cmd.(type) {
	case *protocol.AddTopicCommand:
		topic, err := room.AddTopic(uuid.New().String(), c.Title, c.URL, c.Content, now)
		if err != nil {
			return "", nil, err
		}
		return EventTypeTopicAdded, TopicAddedPayload{
			TopicID:     topic.TopicID,
			Title:       topic.Title,
			Description: topic.Description,
			CreatedAt:   topic.CreatedAt,
		}, nil

	case *protocol.ChangeTopicDetailsCommand:
		if err := room.ChangeTopicDetails(c.TopicID, c.Title, c.Desc, c.URL); err != nil {
			return "", nil, err
		}
		return EventTypeTopicUpdated, TopicUpdatedPayload{TopicID: c.TopicID, Title: c.Title, Desc: c.Desc, URL: c.URL}, nil

	case *protocol.ChangeCurrentTopicCommand:
		if err := room.SetCurrentTopic(c.TopicID); err != nil {
			return "", nil, err
		}
		return EventTypeCurrentTopicChanged, TopicPayload{TopicID: c.TopicID}, nil

	case *protocol.AddCommentCommand:
		comment, err := room.AddComment(uuid.New().String(), c.TopicID, c.Content, now)
		if err != nil {
			return "", nil, err
		}
		return EventTypeCommentAdded, CommentAddedPayload{
			TopicID:   c.TopicID,
			CommentID: comment.CommentID,
			Content:   comment.Content,
			CreatedAt: comment.CreatedAt,
		}, nil

	case *protocol.ToggleVisibilityCommand:
		if err := room.ToggleVisibility(c.TopicID); err != nil {
			return "", nil, err
		}
		return EventTypeVisibilityToggled, TopicPayload{TopicID: c.TopicID}, nil

	case *protocol.VoteOnTopicCommand:
		if err := room.VoteOnTopic(userID, c.TopicID, c.Points); err != nil {
			return "", nil, err
		}
		return EventTypeUserVoted, UserVotedPayload{TopicID: c.TopicID, UserID: userID}, nil

	case *protocol.CompleteTopicCommand:
		if err := room.CompleteTopic(c.TopicID, c.Points, now); err != nil {
			return "", nil, err
		}
		return EventTypeTopicCompleted, TopicCompletedPayload{TopicID: c.TopicID, Points: c.Points}, nil

	case *protocol.ResetTopicCommand:
		if err := room.ResetTopic(c.TopicID); err != nil {
			return "", nil, err
		}
		return EventTypeTopicReset, TopicPayload{TopicID: c.TopicID}, nil

	case *protocol.RemoveTopicCommand:
		if err := room.RemoveTopic(c.TopicID); err != nil {
			return "", nil, err
		}
		return EventTypeTopicRemoved, TopicPayload{TopicID: c.TopicID}, nil

	default:
		return "", nil, fmt.Errorf("%w: %T", protocol.ErrUnknownCommand, cmd)
	}
}

func (a *App) announce(ctx context.Context, roomID string, eventType EventType, payload any) {
	event, err := NewRoomEvent(roomID, eventType, payload, a.clock.Now().UTC())
	if err != nil {
		log.Error().Err(err).Str("room_id", roomID).Msg("failed to build room event")
		return
	}
	if err := a.notifier.Publish(ctx, event); err != nil {
		log.Error().
			Err(err).
			Str("room_id", roomID).
			Str("event_type", string(eventType)).
			Msg("failed to publish room event")
		return
	}
	log.Debug().
		Str("event_id", event.ID).
		Str("room_id", roomID).
		Str("event_type", string(eventType)).
		Msg("room event published")
}
