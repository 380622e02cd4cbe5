package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/mcdev12/planningsync/go/internal/models"
	"github.com/mcdev12/planningsync/go/internal/session/protocol"
	"github.com/rs/zerolog/log"
)

func parseAuth(frame []byte) (protocol.Auth, error) {
	auth, err := protocol.ParseAuth(frame)
	if err != nil {
		return protocol.Auth{}, fmt.Errorf("%w: %w", ErrProtocolViolation, err)
	}
	return auth, nil
}

// handleFrame treats every frame after AUTH as a change notification. The
// payload is ignored; each frame triggers its own snapshot fetch.
func (m *Manager) handleFrame(gen uint64, frame []byte) {
	frameType := protocol.FrameType(frame)

	m.mu.Lock()
	if m.closed || gen != m.generation || m.roomID == "" {
		m.mu.Unlock()
		return
	}
	m.fetchSeq++
	seq := m.fetchSeq
	roomID := m.roomID
	m.wg.Add(1)
	m.mu.Unlock()

	m.metrics.RecordNotification(frameType)
	log.Debug().
		Str("frame_type", frameType).
		Str("room_id", roomID).
		Uint64("generation", gen).
		Uint64("fetch_seq", seq).
		Msg("notification received")

	go func() {
		defer m.wg.Done()
		m.refresh(gen, seq, roomID)
	}()
}

// refresh fetches the snapshot and applies it if it is still current.
func (m *Manager) refresh(gen, seq uint64, roomID string) {
	ctx, cancel := context.WithTimeout(m.baseCtx, m.config.FetchTimeout)
	defer cancel()

	start := m.clock.Now()
	room, err := m.api.GetRoom(ctx, roomID)
	m.metrics.RecordFetch(err == nil, m.clock.Since(start))

	if err != nil {
		m.handleFetchError(gen, roomID, err)
		return
	}
	m.applySnapshot(gen, seq, roomID, room)
}

// applySnapshot replaces the local room unless the fetch was issued under an
// older generation, for another room, or was overtaken by a newer fetch.
func (m *Manager) applySnapshot(gen, seq uint64, roomID string, room *models.Room) bool {
	m.mu.Lock()
	if gen != m.generation || roomID != m.roomID || seq < m.appliedSeq {
		m.mu.Unlock()
		m.metrics.RecordStaleFetch()
		log.Debug().
			Str("room_id", roomID).
			Uint64("generation", gen).
			Uint64("fetch_seq", seq).
			Msg("discarding stale snapshot")
		return false
	}
	m.room = room
	m.appliedSeq = seq
	m.mu.Unlock()

	if err := room.Validate(); err != nil {
		log.Warn().Err(err).Str("room_id", roomID).Msg("snapshot breaks room invariants")
	}
	m.deliverRoom(room)
	return true
}

// deliverRoom hands room to OnRoom if it is still the current snapshot.
// Deliveries are serialized, so the hook never sees an older snapshot after
// a newer one.
func (m *Manager) deliverRoom(room *models.Room) {
	if m.hooks.OnRoom == nil {
		return
	}
	m.deliverMu.Lock()
	defer m.deliverMu.Unlock()

	m.mu.Lock()
	current := m.room == room
	m.mu.Unlock()
	if !current {
		return
	}
	m.hooks.OnRoom(room)
}

func (m *Manager) handleFetchError(gen uint64, roomID string, err error) {
	m.mu.Lock()
	if gen != m.generation || roomID != m.roomID {
		m.mu.Unlock()
		m.metrics.RecordStaleFetch()
		return
	}

	if !errors.Is(err, ErrRoomNotFound) {
		m.lastErr = err
		m.mu.Unlock()
		log.Error().Err(err).Str("room_id", roomID).Msg("failed to refresh room")
		m.fireError(err)
		return
	}

	var p pending
	m.teardownLocked(StateIdle, &p)
	m.roomID = ""
	m.room = nil
	m.lastErr = err
	m.mu.Unlock()
	p.run()

	log.Warn().Str("room_id", roomID).Msg("room no longer exists")
	m.fireError(err)
}
