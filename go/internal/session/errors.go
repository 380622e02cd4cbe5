package session

import (
	"errors"

	"github.com/mcdev12/planningsync/go/clients/room_client"
	"github.com/mcdev12/planningsync/go/internal/session/protocol"
)

var (
	// ErrRoomNotFound is terminal for the session: the client drops back to
	// the room-less state and does not retry.
	ErrRoomNotFound = room_client.ErrRoomNotFound
	// ErrProtocolViolation is reported when the first frame is not an AUTH frame.
	ErrProtocolViolation = errors.New("protocol violation")
	// ErrTransport wraps socket errors and unexpected closes.
	ErrTransport = errors.New("transport failure")
	// ErrValidation marks intents rejected before they reach the wire.
	ErrValidation = protocol.ErrValidation
	// ErrBackpressure is returned when the outbound buffer of the connection is full.
	ErrBackpressure = errors.New("outbound buffer full")
	// ErrClosed is returned by operations on a closed Manager.
	ErrClosed = errors.New("session manager closed")

	errConnectionClosed = errors.New("connection closed")
)
