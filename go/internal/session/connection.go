package session

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// connection wraps one authenticated socket. Every frame and the final
// close are reported with the generation the socket was opened under.
type connection struct {
	ID         string
	UserID     string
	RoomID     string
	Generation uint64
	Conn       *websocket.Conn

	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
	config    ConnectionConfig

	onFrame func(gen uint64, frame []byte)
	onClose func(gen uint64, err error)

	ConnectedAt time.Time
}

func newConnection(ws *websocket.Conn, gen uint64, roomID, userID string, cfg ConnectionConfig) *connection {
	return &connection{
		ID:          uuid.New().String(),
		UserID:      userID,
		RoomID:      roomID,
		Generation:  gen,
		Conn:        ws,
		send:        make(chan []byte, cfg.SendBufferSize),
		done:        make(chan struct{}),
		config:      cfg,
		ConnectedAt: time.Now(),
	}
}

func (c *connection) start() {
	go c.writePump()
	go c.readPump()
}

// trySend queues a frame without blocking.
func (c *connection) trySend(frame []byte) error {
	select {
	case <-c.done:
		return errConnectionClosed
	default:
	}

	select {
	case c.send <- frame:
		return nil
	default:
		return ErrBackpressure
	}
}

// close sends a normal close frame and releases the socket. Safe to call more than once.
func (c *connection) close() {
	c.closeOnce.Do(func() {
		close(c.done)
		deadline := time.Now().Add(c.config.WriteTimeout)
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		_ = c.Conn.WriteControl(websocket.CloseMessage, msg, deadline)
		c.Conn.Close()
	})
}

// writePump handles sending messages to the WebSocket connection
func (c *connection) writePump() {
	ticker := time.NewTicker(c.config.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return

		case message := <-c.send:
			c.Conn.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout))
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Error().
					Err(err).
					Str("connection_id", c.ID).
					Msg("failed to write message to WebSocket")
				c.Conn.Close()
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				log.Error().
					Err(err).
					Str("connection_id", c.ID).
					Msg("failed to send ping")
				c.Conn.Close()
				return
			}
		}
	}
}

// readPump handles reading messages from the WebSocket connection
func (c *connection) readPump() {
	c.Conn.SetReadLimit(c.config.MaxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(c.config.ReadTimeout))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(c.config.ReadTimeout))
		return nil
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Error().
					Err(err).
					Str("connection_id", c.ID).
					Msg("unexpected WebSocket close error")
			}
			c.close()
			c.onClose(c.Generation, err)
			return
		}

		c.Conn.SetReadDeadline(time.Now().Add(c.config.ReadTimeout))
		c.onFrame(c.Generation, message)
	}
}
