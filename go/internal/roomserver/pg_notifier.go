package roomserver

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/rs/zerolog/log"
)

type ListenerConfig struct {
	DatabaseURL   string // Postgres DSN for LISTEN/NOTIFY
	NotifyChannel string
	PingInterval  time.Duration
}

func DefaultListenerConfig() ListenerConfig {
	return ListenerConfig{
		NotifyChannel: "room_events",
		PingInterval:  90 * time.Second,
	}
}

// PGNotifier fans events out through Postgres LISTEN/NOTIFY.
type PGNotifier struct {
	db       *sql.DB
	listener *pq.Listener
	sink     Broadcaster
	cfg      ListenerConfig
}

func NewPGNotifier(db *sql.DB, sink Broadcaster, cfg ListenerConfig) (*PGNotifier, error) {
	l := pq.NewListener(
		cfg.DatabaseURL,
		10*time.Second,
		time.Minute,
		func(ev pq.ListenerEventType, err error) {
			if err != nil {
				log.Error().Err(err).Msg("listener event")
			}
		},
	)
	if err := l.Listen(cfg.NotifyChannel); err != nil {
		l.Close()
		return nil, fmt.Errorf("failed to listen to channel: %w", err)
	}

	log.Info().
		Str("channel", cfg.NotifyChannel).
		Msg("listening for notifications")

	return &PGNotifier{db: db, listener: l, sink: sink, cfg: cfg}, nil
}

func (n *PGNotifier) Publish(ctx context.Context, event RoomEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if _, err := n.db.ExecContext(ctx, `SELECT pg_notify($1, $2)`, n.cfg.NotifyChannel, string(payload)); err != nil {
		return fmt.Errorf("failed to notify: %w", err)
	}
	return nil
}

func (n *PGNotifier) Start(ctx context.Context) error {
	log.Info().
		Str("channel", n.cfg.NotifyChannel).
		Dur("ping_interval", n.cfg.PingInterval).
		Msg("listener started")

	pingTicker := time.NewTicker(n.cfg.PingInterval)
	defer pingTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("listener shutting down")
			return nil
		case note := <-n.listener.Notify:
			if note == nil {
				// nil notification means the connection was re-established
				continue
			}
			if err := n.handleNotification(note.Extra); err != nil {
				log.Error().Err(err).Msg("failed to handle notification")
			}
		case <-pingTicker.C:
			if err := n.listener.Ping(); err != nil {
				log.Error().Err(err).Msg("failed to ping listener")
			}
		}
	}
}

func (n *PGNotifier) handleNotification(extra string) error {
	var event RoomEvent
	if err := json.Unmarshal([]byte(extra), &event); err != nil {
		return fmt.Errorf("invalid event in notification: %w", err)
	}
	return deliver(n.sink, event)
}

// Ping checks the listener connection.
func (n *PGNotifier) Ping(context.Context) error {
	return n.listener.Ping()
}

func (n *PGNotifier) Stop() error {
	return n.listener.Close()
}
