package roomserver

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog/log"
)

// JetStreamConfig holds configuration for the JetStream notifier
type JetStreamConfig struct {
	URL             string
	StreamName      string
	SubjectPrefix   string
	MaxReconnects   int
	ReconnectWait   time.Duration
	MaxAge          time.Duration
	Replicas        int
	DuplicateWindow time.Duration
}

// DefaultJetStreamConfig returns default JetStream configuration
func DefaultJetStreamConfig() JetStreamConfig {
	return JetStreamConfig{
		URL:             nats.DefaultURL,
		StreamName:      "ROOM_EVENTS",
		SubjectPrefix:   "rooms.events",
		MaxReconnects:   -1, // Infinite
		ReconnectWait:   2 * time.Second,
		MaxAge:          time.Hour,
		Replicas:        1,
		DuplicateWindow: 2 * time.Minute,
	}
}

// NATSNotifier publishes room events to a JetStream stream and relays every
// event on the stream to the local sockets. Each instance reads the stream
// through its own ordered consumer so all instances see all events.
type NATSNotifier struct {
	nc     *nats.Conn
	js     jetstream.JetStream
	sink   Broadcaster
	config JetStreamConfig
}

// NewNATSNotifier connects to NATS and makes sure the stream exists
func NewNATSNotifier(cfg JetStreamConfig, sink Broadcaster) (*NATSNotifier, error) {
	opts := []nats.Option{
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Error().Err(err).Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
		nats.ErrorHandler(func(nc *nats.Conn, sub *nats.Subscription, err error) {
			log.Error().Err(err).Msg("NATS error")
		}),
	}

	nc, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("create JetStream context: %w", err)
	}

	n := &NATSNotifier{nc: nc, js: js, sink: sink, config: cfg}

	if err := n.ensureStream(context.Background()); err != nil {
		nc.Close()
		return nil, fmt.Errorf("ensure stream: %w", err)
	}

	return n, nil
}

func (n *NATSNotifier) ensureStream(ctx context.Context) error {
	_, err := n.js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:        n.config.StreamName,
		Description: "Room change notifications",
		Subjects:    []string{n.config.SubjectPrefix + ".>"},
		Retention:   jetstream.LimitsPolicy,
		MaxAge:      n.config.MaxAge,
		Storage:     jetstream.FileStorage,
		Replicas:    n.config.Replicas,
		Duplicates:  n.config.DuplicateWindow,
	})
	if err != nil {
		return fmt.Errorf("create or update stream: %w", err)
	}
	log.Info().Str("stream", n.config.StreamName).Msg("JetStream stream ready")
	return nil
}

func (n *NATSNotifier) subject(roomID string) string {
	return n.config.SubjectPrefix + "." + roomID
}

// Publish writes the event to the stream, using the event id for deduplication.
func (n *NATSNotifier) Publish(ctx context.Context, event RoomEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if _, err := n.js.Publish(ctx, n.subject(event.RoomID), data, jetstream.WithMsgID(event.ID)); err != nil {
		return fmt.Errorf("publish %s: %w", event.Type, err)
	}
	return nil
}

// Start consumes new events until ctx is cancelled
func (n *NATSNotifier) Start(ctx context.Context) error {
	consumer, err := n.js.OrderedConsumer(ctx, n.config.StreamName, jetstream.OrderedConsumerConfig{
		FilterSubjects: []string{n.config.SubjectPrefix + ".>"},
		DeliverPolicy:  jetstream.DeliverNewPolicy,
	})
	if err != nil {
		return fmt.Errorf("create ordered consumer: %w", err)
	}

	consumeCtx, err := consumer.Consume(func(msg jetstream.Msg) {
		if err := n.processMessage(msg); err != nil {
			log.Error().
				Err(err).
				Str("subject", msg.Subject()).
				Msg("failed to process message")
		}
	})
	if err != nil {
		return fmt.Errorf("start consumer: %w", err)
	}
	defer consumeCtx.Stop()

	log.Info().Str("stream", n.config.StreamName).Msg("relaying room events from JetStream")

	<-ctx.Done()
	log.Info().Msg("room event relay shutting down")
	return nil
}

func (n *NATSNotifier) processMessage(msg jetstream.Msg) error {
	var event RoomEvent
	if err := json.Unmarshal(msg.Data(), &event); err != nil {
		return fmt.Errorf("unmarshal event: %w", err)
	}
	if event.RoomID == "" {
		event.RoomID = strings.TrimPrefix(msg.Subject(), n.config.SubjectPrefix+".")
	}

	log.Debug().
		Str("event_id", event.ID).
		Str("room_id", event.RoomID).
		Str("event_type", string(event.Type)).
		Msg("relaying room event")

	return deliver(n.sink, event)
}

// Ping reports whether the NATS connection is up.
func (n *NATSNotifier) Ping(context.Context) error {
	if n.nc == nil || !n.nc.IsConnected() {
		return fmt.Errorf("NATS disconnected")
	}
	return nil
}

// Stop closes the NATS connection
func (n *NATSNotifier) Stop() error {
	if n.nc != nil {
		n.nc.Close()
	}
	return nil
}
