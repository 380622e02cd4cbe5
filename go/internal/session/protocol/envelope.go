package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
)

// TypeAuth is the identity assignment sent as the first frame of every connection.
const TypeAuth = "AUTH"

var (
	// ErrValidation marks commands rejected before they reach the wire.
	ErrValidation = errors.New("validation failed")
	// ErrUnknownCommand is returned when decoding an envelope with an unrecognised type.
	ErrUnknownCommand = errors.New("unknown command type")
	// ErrMalformedFrame is returned when a frame is not a JSON envelope.
	ErrMalformedFrame = errors.New("malformed frame")
)

// Envelope is the wire shape of every frame in both directions.
type Envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Auth carries the identity assigned by the server to a fresh connection.
type Auth struct {
	Type     string `json:"type"`
	UserID   string `json:"user_id"`
	UserName string `json:"user_name,omitempty"`
	RoomID   string `json:"room_id,omitempty"`
}

// NewAuth builds the identity frame for a connection.
func NewAuth(userID, userName, roomID string) Auth {
	return Auth{Type: TypeAuth, UserID: userID, UserName: userName, RoomID: roomID}
}

// ParseAuth decodes the first frame of a connection. Anything other than an
// AUTH frame carrying a user id is an error.
func ParseAuth(frame []byte) (Auth, error) {
	var auth Auth
	if err := json.Unmarshal(frame, &auth); err != nil {
		return Auth{}, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}
	if auth.Type != TypeAuth {
		return Auth{}, fmt.Errorf("expected %s frame, got %q", TypeAuth, auth.Type)
	}
	if auth.UserID == "" {
		return Auth{}, fmt.Errorf("%s frame without user_id", TypeAuth)
	}
	return auth, nil
}

// FrameType extracts the type of a frame for logging. Frames that are not
// envelopes report an empty type.
func FrameType(frame []byte) string {
	var env struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(frame, &env); err != nil {
		return ""
	}
	return env.Type
}
