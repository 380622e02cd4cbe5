package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/mcdev12/planningsync/go/internal/dbconfig"
	"github.com/mcdev12/planningsync/go/internal/roomserver"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Warn().Err(err).Msg("could not load .env file")
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

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	dbCfg := dbconfig.NewConfigFromEnv()
	var db *sql.DB
	if config.needsDatabase() {
		if db, err = setupDatabase(ctx, dbCfg); err != nil {
			log.Fatal().Err(err).Msg("failed to connect to database")
		}
	}

	store, err := setupStore(ctx, config, db)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to set up room store")
	}

	serviceConfig := roomserver.DefaultConfig()
	serviceConfig.AllowedOrigins = config.CORS.AllowedOrigins

	service, err := roomserver.NewService(serviceConfig, store, notifierFactory(config, dbCfg, db))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create room server")
	}

	server := setupServer(config, service)

	log.Info().
		Str("port", config.Port).
		Str("store", config.Store).
		Str("notifier", config.Notifier).
		Msg("starting room server")

	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := service.Start(ctx); err != nil {
			log.Error().Err(err).Msg("room server failed")
		}
	}()

	go func() {
		log.Info().Str("addr", server.Addr).Msg("HTTP server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	sig := <-sigChan

	log.Info().Str("signal", sig.String()).Msg("received shutdown signal")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown failed")
	}

	cancel()
	<-done

	// The Postgres store closes the shared handle itself.
	if db != nil && config.Store != "postgres" {
		db.Close()
	}

	log.Info().Msg("room server shutdown complete")
}
