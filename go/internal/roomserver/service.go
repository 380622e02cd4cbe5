package roomserver

import (
	"context"
	"fmt"
	"net/http"

	"github.com/jonboulle/clockwork"
	"github.com/rs/cors"
	"github.com/rs/zerolog/log"
)

// Service is the room server: REST snapshots, room sockets and event fan-out
type Service struct {
	store             RoomStore
	notifier          Notifier
	app               *App
	connectionManager *ConnectionManager
	wsHandler         *WebSocketHandler
	roomHandler       *RoomHandler
	health            *HealthChecker
	allowedOrigins    []string
}

// Config holds configuration for the room server
type Config struct {
	ConnectionConfig ConnectionConfig
	AllowedOrigins   []string
	Clock            clockwork.Clock
}

// NotifierFactory builds the notifier that feeds the local sockets.
type NotifierFactory func(sink Broadcaster) (Notifier, error)

// LocalNotifierFactory keeps events inside the process.
func LocalNotifierFactory(sink Broadcaster) (Notifier, error) {
	return NewLocalNotifier(sink), nil
}

// DefaultConfig returns default configuration for the room server
func DefaultConfig() Config {
	return Config{
		ConnectionConfig: DefaultConnectionConfig(),
		AllowedOrigins:   []string{"*"},
		Clock:            clockwork.NewRealClock(),
	}
}

// NewService creates a new room server
func NewService(config Config, store RoomStore, newNotifier NotifierFactory) (*Service, error) {
	if config.Clock == nil {
		config.Clock = clockwork.NewRealClock()
	}

	connectionManager := NewConnectionManager(config.ConnectionConfig)

	notifier, err := newNotifier(connectionManager)
	if err != nil {
		return nil, fmt.Errorf("failed to create notifier: %w", err)
	}

	app := NewApp(store, notifier, connectionManager, config.Clock)

	connectionManager.onMessage = func(c *Connection, frame []byte) {
		if err := app.HandleCommand(context.Background(), c.RoomID, c.UserID, frame); err != nil {
			log.Warn().
				Err(err).
				Str("connection_id", c.ID).
				Str("room_id", c.RoomID).
				Msg("command rejected")
		}
	}
	connectionManager.onDisconnect = func(c *Connection) {
		app.Left(context.Background(), c.RoomID, c.UserID)
	}

	return &Service{
		store:             store,
		notifier:          notifier,
		app:               app,
		connectionManager: connectionManager,
		wsHandler:         NewWebSocketHandler(connectionManager, app),
		roomHandler:       NewRoomHandler(app),
		health:            NewHealthChecker(store, notifier, connectionManager),
		allowedOrigins:    config.AllowedOrigins,
	}, nil
}

// Start runs the connection manager and the notifier until ctx is done
func (s *Service) Start(ctx context.Context) error {
	log.Info().Msg("starting room server")

	go s.connectionManager.Start(ctx)

	go func() {
		if err := s.notifier.Start(ctx); err != nil {
			log.Error().Err(err).Msg("notifier failed")
		}
	}()

	<-ctx.Done()

	log.Info().Msg("room server shutting down")
	return s.Stop()
}

// Stop releases the notifier and the store
func (s *Service) Stop() error {
	if err := s.notifier.Stop(); err != nil {
		log.Error().Err(err).Msg("failed to stop notifier")
	}
	if err := s.store.Close(); err != nil {
		log.Error().Err(err).Msg("failed to close room store")
	}

	log.Info().Msg("room server stopped")
	return nil
}

// RegisterRoutes registers the REST and WebSocket routes
func (s *Service) RegisterRoutes(mux *http.ServeMux) {
	s.roomHandler.RegisterRoutes(mux)
	s.wsHandler.RegisterRoutes(mux)
	mux.Handle("GET /health", s.health)
}

// Handler returns every route wrapped with CORS
func (s *Service) Handler() http.Handler {
	mux := http.NewServeMux()
	s.RegisterRoutes(mux)

	c := cors.New(cors.Options{
		AllowedMethods: []string{
			http.MethodHead,
			http.MethodGet,
			http.MethodPost,
		},
		AllowedOrigins: s.allowedOrigins,
		AllowedHeaders: []string{"*"},
	})
	return c.Handler(mux)
}

// GetStats returns statistics about the room server
func (s *Service) GetStats() map[string]interface{} {
	stats := s.connectionManager.GetConnectionStats()
	stats["service"] = "room_server"
	return stats
}
