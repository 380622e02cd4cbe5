package roomserver

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Broadcaster delivers rendered frames to the sockets of a room.
type Broadcaster interface {
	BroadcastToRoom(roomID string, frame []byte)
}

// Notifier fans room events out to every server instance holding sockets
// for the room.
type Notifier interface {
	Publish(ctx context.Context, event RoomEvent) error
	Start(ctx context.Context) error
	Stop() error
}

// NewRoomEvent builds an event with a fresh id.
func NewRoomEvent(roomID string, eventType EventType, payload any, now time.Time) (RoomEvent, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return RoomEvent{}, fmt.Errorf("marshal %s payload: %w", eventType, err)
	}
	return RoomEvent{
		ID:        uuid.New().String(),
		RoomID:    roomID,
		Type:      eventType,
		Timestamp: now,
		Data:      data,
	}, nil
}

// deliver renders an event and hands it to the local sockets.
func deliver(sink Broadcaster, event RoomEvent) error {
	frame, err := event.Frame()
	if err != nil {
		return err
	}
	sink.BroadcastToRoom(event.RoomID, frame)
	return nil
}

// LocalNotifier delivers events to sockets of this process only.
type LocalNotifier struct {
	sink Broadcaster
}

func NewLocalNotifier(sink Broadcaster) *LocalNotifier {
	return &LocalNotifier{sink: sink}
}

func (n *LocalNotifier) Publish(_ context.Context, event RoomEvent) error {
	return deliver(n.sink, event)
}

func (n *LocalNotifier) Start(ctx context.Context) error {
	<-ctx.Done()
	return nil
}

func (n *LocalNotifier) Stop() error { return nil }
