package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"time"

	"github.com/mcdev12/planningsync/go/internal/dbconfig"
	"github.com/mcdev12/planningsync/go/internal/roomserver"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
)

func setupServer(config *Config, service *roomserver.Service) *http.Server {
	return &http.Server{
		Addr:        fmt.Sprintf(":%s", config.Port),
		Handler:     h2c.NewHandler(service.Handler(), &http2.Server{}),
		ReadTimeout: 10 * time.Second,
		IdleTimeout: 120 * time.Second,
	}
}

func setupStore(ctx context.Context, config *Config, db *sql.DB) (roomserver.RoomStore, error) {
	if config.Store == "memory" {
		return roomserver.NewMemoryStore(), nil
	}
	return roomserver.NewPostgresStore(ctx, db)
}

func notifierFactory(config *Config, dbCfg dbconfig.Config, db *sql.DB) roomserver.NotifierFactory {
	switch config.Notifier {
	case "nats":
		jsCfg := roomserver.DefaultJetStreamConfig()
		jsCfg.URL = config.NATS.URL
		if config.NATS.Stream != "" {
			jsCfg.StreamName = config.NATS.Stream
		}
		if config.NATS.Subject != "" {
			jsCfg.SubjectPrefix = config.NATS.Subject
		}
		return func(sink roomserver.Broadcaster) (roomserver.Notifier, error) {
			return roomserver.NewNATSNotifier(jsCfg, sink)
		}

	case "postgres":
		listenerCfg := roomserver.DefaultListenerConfig()
		listenerCfg.DatabaseURL = dbCfg.DSN()
		if config.Postgres.NotifyChannel != "" {
			listenerCfg.NotifyChannel = config.Postgres.NotifyChannel
		}
		return func(sink roomserver.Broadcaster) (roomserver.Notifier, error) {
			return roomserver.NewPGNotifier(db, sink, listenerCfg)
		}

	default:
		return roomserver.LocalNotifierFactory
	}
}

// needsDatabase reports whether any configured backend lives in Postgres.
func (c *Config) needsDatabase() bool {
	return c.Store == "postgres" || c.Notifier == "postgres"
}
