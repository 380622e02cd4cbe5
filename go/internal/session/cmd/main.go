package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/mcdev12/planningsync/go/clients/room_client"
	"github.com/mcdev12/planningsync/go/internal/dbconfig"
	"github.com/mcdev12/planningsync/go/internal/models"
	"github.com/mcdev12/planningsync/go/internal/session"
	"github.com/mcdev12/planningsync/go/internal/session/cache"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Debug().Err(err).Msg("could not load .env file")
	}

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	level, err := zerolog.ParseLevel(getEnv("LOG_LEVEL", "info"))
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	config, err := loadConfig(os.Getenv("CONFIG_PATH"))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := setupCacheStore(ctx, config)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open session cache")
	}
	sessionCache, err := cache.New(ctx, store)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load session cache")
	}
	defer sessionCache.Close()

	metrics := &session.CountingMetrics{}
	manager, err := session.NewManager(ctx, room_client.NewRoomClient(config.ServerURL), sessionCache, session.Options{
		Connection: config.connectionConfig(),
		Reconnect:  config.reconnectPolicy(),
		Metrics:    metrics,
		Hooks: session.Hooks{
			OnStateChange: func(s session.State) {
				fmt.Printf("[%s]\n", s)
			},
			OnRoom: func(room *models.Room) {
				fmt.Printf("[room %s updated: %d topics]\n", room.RoomID, len(room.Topics))
			},
			OnError: func(err error) {
				fmt.Printf("[error] %v\n", err)
			},
		},
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create session manager")
	}

	c := &console{
		session:  manager,
		dispatch: session.NewDispatcher(manager),
		recent:   sessionCache,
		out:      os.Stdout,
	}

	if config.Username != "" {
		if err := manager.SetUsername(ctx, config.Username); err != nil {
			fmt.Printf("[error] %v\n", err)
		}
	}
	if config.RoomID != "" {
		if err := manager.JoinRoom(ctx, config.RoomID); err != nil {
			fmt.Printf("[error] %v\n", err)
		}
	}

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	fmt.Println(`type "help" for commands`)
loop:
	for {
		select {
		case <-ctx.Done():
			break loop
		case line, ok := <-lines:
			if !ok {
				break loop
			}
			quit, err := c.exec(ctx, line)
			if err != nil {
				fmt.Printf("[error] %v\n", err)
			}
			if quit {
				break loop
			}
		}
	}

	if err := manager.Close(); err != nil {
		log.Error().Err(err).Msg("failed to close session")
	}

	log.Info().
		Int64("notifications", metrics.Notifications.Load()).
		Int64("fetches", metrics.Fetches.Load()).
		Int64("failed_fetches", metrics.FailedFetches.Load()).
		Int64("stale_fetches", metrics.StaleFetches.Load()).
		Int64("reconnect_attempts", metrics.ReconnectAttempts.Load()).
		Int64("dropped_sends", metrics.DroppedSends.Load()).
		Msg("session summary")
}

func setupCacheStore(ctx context.Context, config *Config) (cache.Store, error) {
	switch config.Cache.Backend {
	case "memory":
		return cache.NewMemoryStore(), nil
	case "postgres":
		return cache.NewPostgresStore(ctx, dbconfig.NewConfigFromEnv().DSN(), config.Cache.Profile)
	default:
		return cache.NewFileStore(config.Cache.Path)
	}
}
