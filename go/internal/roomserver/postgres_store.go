package roomserver

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	_ "github.com/lib/pq"
	"github.com/mcdev12/planningsync/go/internal/models"
	"github.com/mcdev12/planningsync/go/internal/sqlutil"
)

const createRoomsTable = `
CREATE TABLE IF NOT EXISTS rooms (
    room_id    TEXT        PRIMARY KEY,
    created_at TIMESTAMPTZ NOT NULL,
    snapshot   JSONB       NOT NULL,
    updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// PostgresStore keeps each room as a JSON document.
type PostgresStore struct {
	db *sql.DB
}

// OpenPostgresStore connects with lib/pq and creates the rooms table.
func OpenPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to create database connection: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	store, err := NewPostgresStore(ctx, db)
	if err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

func NewPostgresStore(ctx context.Context, db *sql.DB) (*PostgresStore, error) {
	if _, err := db.ExecContext(ctx, createRoomsTable); err != nil {
		return nil, fmt.Errorf("failed to create rooms table: %w", err)
	}
	return &PostgresStore{db: db}, nil
}

func (s *PostgresStore) Create(ctx context.Context, room *models.Room) error {
	snapshot, err := json.Marshal(stripPresence(room))
	if err != nil {
		return fmt.Errorf("failed to encode room: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO rooms (room_id, created_at, snapshot) VALUES ($1, $2, $3)`,
		room.RoomID, room.CreatedAt, snapshot,
	)
	if err != nil {
		return fmt.Errorf("failed to insert room: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, roomID string) (*models.Room, error) {
	return scanRoom(s.db.QueryRowContext(ctx,
		`SELECT snapshot FROM rooms WHERE room_id = $1`, roomID), roomID)
}

func (s *PostgresStore) Update(ctx context.Context, roomID string, fn func(*models.Room) error) (*models.Room, error) {
	var room *models.Room
	err := sqlutil.Run(ctx, s.db, func(tx *sql.Tx) error {
		var err error
		room, err = scanRoom(tx.QueryRowContext(ctx,
			`SELECT snapshot FROM rooms WHERE room_id = $1 FOR UPDATE`, roomID), roomID)
		if err != nil {
			return err
		}
		if err := fn(room); err != nil {
			return err
		}

		snapshot, err := json.Marshal(stripPresence(room))
		if err != nil {
			return fmt.Errorf("failed to encode room: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE rooms SET snapshot = $2, updated_at = now() WHERE room_id = $1`,
			roomID, snapshot,
		); err != nil {
			return fmt.Errorf("failed to update room: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return room, nil
}

// Ping checks the database connection.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}

func scanRoom(row *sql.Row, roomID string) (*models.Room, error) {
	var snapshot []byte
	if err := row.Scan(&snapshot); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrRoomNotFound, roomID)
		}
		return nil, fmt.Errorf("failed to load room: %w", err)
	}
	var room models.Room
	if err := json.Unmarshal(snapshot, &room); err != nil {
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
