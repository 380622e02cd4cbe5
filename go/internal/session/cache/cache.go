package cache

import (
	"cmp"
	"context"
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"

	"github.com/mcdev12/planningsync/go/internal/models"
	"github.com/rs/zerolog/log"
)

const (
	UsernameKey    = "username"
	RecentRoomsKey = "recent_rooms"

	// RecentRoomsLimit caps how many rooms RecentRooms returns. The store
	// itself keeps every room ever joined.
	RecentRoomsLimit = 10
)

// Store is a durable string key-value store.
type Store interface {
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key, value string) error
	Close() error
}

// Cache holds the chosen display name and the rooms recently joined. The
// recent rooms mapping is read once when the cache is opened and rewritten
// on every RememberRoom.
type Cache struct {
	store Store

	mu     sync.Mutex
	recent map[string]models.Room
}

// New opens a cache over store and loads the recent rooms mapping.
func New(ctx context.Context, store Store) (*Cache, error) {
	c := &Cache{
		store:  store,
		recent: make(map[string]models.Room),
	}

	raw, ok, err := store.Get(ctx, RecentRoomsKey)
	if err != nil {
		return nil, fmt.Errorf("failed to read recent rooms: %w", err)
	}
	if ok && raw != "" {
		if err := json.Unmarshal([]byte(raw), &c.recent); err != nil {
			log.Warn().Err(err).Msg("discarding unreadable recent rooms cache")
			c.recent = make(map[string]models.Room)
		}
	}

	return c, nil
}

// Username returns the stored display name, or "" when none was chosen.
func (c *Cache) Username(ctx context.Context) (string, error) {
	name, _, err := c.store.Get(ctx, UsernameKey)
	if err != nil {
		return "", fmt.Errorf("failed to read username: %w", err)
	}
	return name, nil
}

func (c *Cache) SetUsername(ctx context.Context, name string) error {
	if err := c.store.Set(ctx, UsernameKey, strings.TrimSpace(name)); err != nil {
		return fmt.Errorf("failed to store username: %w", err)
	}
	return nil
}

// RememberRoom stores or overwrites the snapshot of a joined room.
func (c *Cache) RememberRoom(ctx context.Context, room *models.Room) error {
	if room == nil || room.RoomID == "" {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.recent[room.RoomID] = *room.Clone()

	data, err := json.Marshal(c.recent)
	if err != nil {
		return fmt.Errorf("failed to encode recent rooms: %w", err)
	}
	if err := c.store.Set(ctx, RecentRoomsKey, string(data)); err != nil {
		return fmt.Errorf("failed to store recent rooms: %w", err)
	}
	return nil
}

// RecentRooms returns at most RecentRoomsLimit rooms, newest first by creation time.
func (c *Cache) RecentRooms() []models.Room {
	c.mu.Lock()
	rooms := slices.Collect(maps.Values(c.recent))
	c.mu.Unlock()

	slices.SortFunc(rooms, func(a, b models.Room) int {
		if n := b.CreatedAt.Compare(a.CreatedAt); n != 0 {
			return n
		}
		return cmp.Compare(a.RoomID, b.RoomID)
	})
	if len(rooms) > RecentRoomsLimit {
		rooms = rooms[:RecentRoomsLimit]
	}
	return rooms
}

func (c *Cache) Close() error {
	return c.store.Close()
}
