package roomserver

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/mcdev12/planningsync/go/internal/models"
)

var ErrRoomNotFound = errors.New("room not found")

// RoomStore persists rooms. Update applies fn atomically to the stored room.
// Presence (connected users) is never persisted.
type RoomStore interface {
	Create(ctx context.Context, room *models.Room) error
	Get(ctx context.Context, roomID string) (*models.Room, error)
	Update(ctx context.Context, roomID string, fn func(*models.Room) error) (*models.Room, error)
	Close() error
}

// MemoryStore keeps rooms in process memory.
type MemoryStore struct {
	mu    sync.Mutex
	rooms map[string]*models.Room
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{rooms: make(map[string]*models.Room)}
}

func (s *MemoryStore) Create(_ context.Context, room *models.Room) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.rooms[room.RoomID]; exists {
		return fmt.Errorf("room %s already exists", room.RoomID)
	}
	s.rooms[room.RoomID] = stripPresence(room)
	return nil
}

func (s *MemoryStore) Get(_ context.Context, roomID string) (*models.Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	room, ok := s.rooms[roomID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrRoomNotFound, roomID)
	}
	return room.Clone(), nil
}

func (s *MemoryStore) Update(_ context.Context, roomID string, fn func(*models.Room) error) (*models.Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	room, ok := s.rooms[roomID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrRoomNotFound, roomID)
	}
	working := room.Clone()
	if err := fn(working); err != nil {
		return nil, err
	}
	s.rooms[roomID] = stripPresence(working)
	return working.Clone(), nil
}

func (s *MemoryStore) Close() error { return nil }

func stripPresence(room *models.Room) *models.Room {
	c := room.Clone()
	c.ConnectedUsers = make(map[string]models.Participant)
	return c
}
