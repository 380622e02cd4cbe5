package room_client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/mcdev12/planningsync/go/clients"
	"github.com/mcdev12/planningsync/go/internal/models"
)

// ErrRoomNotFound is returned when the server does not know the room.
var ErrRoomNotFound = errors.New("room not found")

// RoomClient talks to the room lookup and creation API.
type RoomClient struct {
	*clients.BaseClient
}

func NewRoomClient(baseURL string) *RoomClient {
	client := &RoomClient{
		BaseClient: clients.NewBaseClient(strings.TrimRight(baseURL, "/")),
	}

	client.SetHeader(ContentTypeHeader, ContentTypeJSON)

	return client
}

// GetRoom fetches the current snapshot of a room.
func (c *RoomClient) GetRoom(ctx context.Context, roomID string) (*models.Room, error) {
	if roomID == "" {
		return nil, fmt.Errorf("%w: empty room id", ErrRoomNotFound)
	}

	body, err := c.Get(ctx, fmt.Sprintf(RoomEndpoint, url.PathEscape(roomID)))
	if err != nil {
		var statusErr *clients.StatusError
		if errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusNotFound {
			return nil, fmt.Errorf("%w: %s", ErrRoomNotFound, roomID)
		}
		return nil, fmt.Errorf("failed to get room %s: %w", roomID, err)
	}

	return decodeRoom(body)
}

// CreateRoom asks the server for a new empty room.
func (c *RoomClient) CreateRoom(ctx context.Context) (*models.Room, error) {
	body, err := c.Post(ctx, RoomsEndpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create room: %w", err)
	}

	return decodeRoom(body)
}

// SocketURL returns the websocket address for joining roomID as username.
func (c *RoomClient) SocketURL(roomID, username string) (string, error) {
	u, err := url.Parse(c.BaseURL())
	if err != nil {
		return "", fmt.Errorf("failed to parse base url: %w", err)
	}

	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	case "http", "":
		u.Scheme = "ws"
	}
	rawPath := strings.TrimRight(u.EscapedPath(), "/") + fmt.Sprintf(SocketEndpoint, url.PathEscape(roomID))
	path, err := url.PathUnescape(rawPath)
	if err != nil {
		return "", fmt.Errorf("failed to build socket path: %w", err)
	}
	u.Path, u.RawPath = path, rawPath
	u.RawQuery = url.Values{UsernameParam: []string{username}}.Encode()

	return u.String(), nil
}

func decodeRoom(body []byte) (*models.Room, error) {
	var room models.Room
	if err := json.Unmarshal(body, &room); err != nil {
		return nil, fmt.Errorf("failed to decode room: %w", err)
	}
	if room.Topics == nil {
		room.Topics = make(map[string]*models.Topic)
	}
	if room.ConnectedUsers == nil {
		room.ConnectedUsers = make(map[string]models.Participant)
	}
	return &room, nil
}
