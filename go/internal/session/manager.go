package session

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/planningsync/go/internal/models"
	"github.com/rs/zerolog/log"
)

// RoomAPI is the request-response side of the room server.
type RoomAPI interface {
	GetRoom(ctx context.Context, roomID string) (*models.Room, error)
	CreateRoom(ctx context.Context) (*models.Room, error)
	SocketURL(roomID, username string) (string, error)
}

// SessionCache persists the display name and the rooms joined.
type SessionCache interface {
	Username(ctx context.Context) (string, error)
	SetUsername(ctx context.Context, name string) error
	RememberRoom(ctx context.Context, room *models.Room) error
}

// Hooks are called after the manager's lock is released, from whichever
// goroutine caused the change. They must not block for long. OnRoom calls
// are serialized and must not call JoinRoom or CreateRoom.
type Hooks struct {
	OnStateChange func(State)
	OnRoom        func(*models.Room)
	OnError       func(error)
}

type Options struct {
	Connection ConnectionConfig
	Reconnect  ReconnectPolicy
	Clock      clockwork.Clock
	Metrics    MetricsCollector
	Hooks      Hooks
	Dialer     *websocket.Dialer
	// Random returns values in [0, 1) for reconnect jitter.
	Random func() float64
}

// Manager owns the single connection of a client to a room. It tracks the
// lifecycle state, the identity assigned by the server and the latest room
// snapshot.
type Manager struct {
	api     RoomAPI
	cache   SessionCache
	config  ConnectionConfig
	policy  ReconnectPolicy
	clock   clockwork.Clock
	metrics MetricsCollector
	hooks   Hooks
	dialer  *websocket.Dialer
	random  func() float64

	baseCtx context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	deliverMu sync.Mutex

	mu         sync.Mutex
	closed     bool
	state      State
	username   string
	roomID     string
	userID     string
	generation uint64
	conn       *connection
	cancelOpen context.CancelFunc
	retryTimer clockwork.Timer
	attempts   int
	room       *models.Room
	fetchSeq   uint64
	appliedSeq uint64
	lastErr    error
}

// NewManager creates a manager and restores the display name from the cache.
func NewManager(ctx context.Context, api RoomAPI, cache SessionCache, opts Options) (*Manager, error) {
	if opts.Connection == (ConnectionConfig{}) {
		opts.Connection = DefaultConnectionConfig()
	}
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.Metrics == nil {
		opts.Metrics = &NoOpMetricsCollector{}
	}
	if opts.Random == nil {
		opts.Random = rand.Float64
	}
	if opts.Dialer == nil {
		opts.Dialer = &websocket.Dialer{
			HandshakeTimeout: opts.Connection.DialTimeout,
			ReadBufferSize:   opts.Connection.ReadBufferSize,
			WriteBufferSize:  opts.Connection.WriteBufferSize,
		}
	}

	name, err := cache.Username(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to restore username: %w", err)
	}

	baseCtx, cancel := context.WithCancel(context.Background())
	return &Manager{
		api:      api,
		cache:    cache,
		config:   opts.Connection,
		policy:   opts.Reconnect,
		clock:    opts.Clock,
		metrics:  opts.Metrics,
		hooks:    opts.Hooks,
		dialer:   opts.Dialer,
		random:   opts.Random,
		baseCtx:  baseCtx,
		cancel:   cancel,
		username: name,
	}, nil
}

func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// UserID returns the identity assigned by the server, or "" when not Synced.
func (m *Manager) UserID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.userID
}

func (m *Manager) Username() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.username
}

func (m *Manager) RoomID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.roomID
}

// Room returns the latest snapshot. The value is shared and must not be modified.
func (m *Manager) Room() *models.Room {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.room
}

func (m *Manager) Generation() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.generation
}

func (m *Manager) LastError() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastErr
}

// SetUsername changes the display name. Any open connection is closed
// first; a new one is opened when a room is selected.
func (m *Manager) SetUsername(ctx context.Context, name string) error {
	name = strings.TrimSpace(name)

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrClosed
	}
	if name == m.username {
		m.mu.Unlock()
		return nil
	}
	m.mu.Unlock()

	if err := m.cache.SetUsername(ctx, name); err != nil {
		return fmt.Errorf("failed to save username: %w", err)
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrClosed
	}
	var p pending
	m.teardownLocked(StateIdle, &p)
	m.username = name
	m.mu.Unlock()
	p.run()

	log.Info().Str("username", name).Msg("display name changed")
	return m.Connect(ctx)
}

// CreateRoom creates a new room on the server and joins it.
func (m *Manager) CreateRoom(ctx context.Context) (*models.Room, error) {
	room, err := m.api.CreateRoom(ctx)
	if err != nil {
		return nil, err
	}
	log.Info().Str("room_id", room.RoomID).Msg("room created")
	if err := m.JoinRoom(ctx, room.RoomID); err != nil {
		return nil, err
	}
	return m.Room(), nil
}

// JoinRoom selects a room. The snapshot is fetched first; an unknown room
// leaves the manager room-less and returns ErrRoomNotFound.
func (m *Manager) JoinRoom(ctx context.Context, roomID string) error {
	roomID = strings.TrimSpace(roomID)
	if roomID == "" {
		m.LeaveRoom()
		return nil
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrClosed
	}
	if roomID == m.roomID && m.state.active() {
		m.mu.Unlock()
		return nil
	}
	var p pending
	if m.roomID != roomID {
		m.teardownLocked(StateIdle, &p)
		m.room = nil
	}
	m.roomID = roomID
	m.fetchSeq++
	seq := m.fetchSeq
	gen := m.generation
	m.mu.Unlock()
	p.run()

	fetchCtx, cancel := context.WithTimeout(ctx, m.config.FetchTimeout)
	room, err := m.api.GetRoom(fetchCtx, roomID)
	cancel()
	if err != nil {
		if !errors.Is(err, ErrRoomNotFound) {
			err = fmt.Errorf("%w: %w", ErrTransport, err)
		}
		log.Warn().Err(err).Str("room_id", roomID).Msg("failed to join room")
		m.mu.Lock()
		if m.roomID == roomID && m.generation == gen {
			m.roomID = ""
			m.room = nil
		}
		m.lastErr = err
		m.mu.Unlock()
		m.fireError(err)
		return err
	}

	if !m.applySnapshot(gen, seq, roomID, room) {
		return nil
	}

	if err := m.cache.RememberRoom(ctx, room); err != nil {
		log.Warn().Err(err).Str("room_id", roomID).Msg("failed to remember room")
	}

	log.Info().Str("room_id", roomID).Msg("room joined")
	return m.Connect(ctx)
}

// LeaveRoom closes the connection and clears the session identity.
func (m *Manager) LeaveRoom() {
	m.mu.Lock()
	var p pending
	m.teardownLocked(StateIdle, &p)
	left := m.roomID
	m.roomID = ""
	m.room = nil
	m.mu.Unlock()
	p.run()

	if left != "" {
		log.Info().Str("room_id", left).Msg("room left")
	}
}

// Connect opens the connection when both a room and a display name are
// known. It is a no-op while a connection is open or opening.
func (m *Manager) Connect(ctx context.Context) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrClosed
	}
	if m.roomID == "" || m.username == "" {
		m.mu.Unlock()
		return nil
	}
	if m.state.active() {
		m.mu.Unlock()
		return nil
	}

	var p pending
	m.stopRetryLocked()
	m.generation++
	gen := m.generation
	openCtx, cancel := context.WithCancel(ctx)
	m.cancelOpen = cancel
	roomID, username := m.roomID, m.username
	m.transitionLocked(StateConnecting, &p)
	m.mu.Unlock()
	p.run()

	defer cancel()
	return m.open(openCtx, gen, roomID, username)
}

// open dials the socket and waits for the AUTH frame.
func (m *Manager) open(ctx context.Context, gen uint64, roomID, username string) error {
	logger := log.With().Str("room_id", roomID).Uint64("generation", gen).Logger()

	socketURL, err := m.api.SocketURL(roomID, username)
	if err != nil {
		return m.failOpen(gen, fmt.Errorf("%w: %w", ErrTransport, err))
	}

	dialCtx, cancelDial := context.WithTimeout(ctx, m.config.DialTimeout)
	ws, _, err := m.dialer.DialContext(dialCtx, socketURL, nil)
	cancelDial()
	if err != nil {
		logger.Error().Err(err).Msg("failed to dial room socket")
		return m.failOpen(gen, fmt.Errorf("%w: dial: %w", ErrTransport, err))
	}

	m.mu.Lock()
	if gen != m.generation {
		m.mu.Unlock()
		ws.Close()
		return nil
	}
	var p pending
	m.transitionLocked(StateAuthenticating, &p)
	m.mu.Unlock()
	p.run()

	stop := context.AfterFunc(ctx, func() { ws.Close() })
	ws.SetReadLimit(m.config.MaxMessageSize)
	ws.SetReadDeadline(time.Now().Add(m.config.AuthTimeout))
	_, frame, err := ws.ReadMessage()
	if !stop() {
		ws.Close()
		return m.failOpen(gen, fmt.Errorf("%w: %w", ErrTransport, context.Cause(ctx)))
	}
	if err != nil {
		ws.Close()
		logger.Error().Err(err).Msg("connection closed before authentication")
		return m.failOpen(gen, fmt.Errorf("%w: awaiting auth: %w", ErrTransport, err))
	}

	auth, err := parseAuth(frame)
	if err != nil {
		ws.Close()
		logger.Warn().Err(err).Msg("first frame was not an identity assignment")
		return m.failOpen(gen, err)
	}

	conn := newConnection(ws, gen, roomID, auth.UserID, m.config)
	conn.onFrame = m.handleFrame
	conn.onClose = m.handleDisconnect

	m.mu.Lock()
	if gen != m.generation {
		m.mu.Unlock()
		conn.close()
		return nil
	}
	m.conn = conn
	m.userID = auth.UserID
	m.cancelOpen = nil
	m.attempts = 0
	m.lastErr = nil
	var synced pending
	m.transitionLocked(StateSynced, &synced)
	m.mu.Unlock()

	conn.start()
	synced.run()

	logger.Info().
		Str("connection_id", conn.ID).
		Str("user_id", auth.UserID).
		Msg("session synced")
	return nil
}

// failOpen records a failed connection attempt unless the attempt was superseded.
func (m *Manager) failOpen(gen uint64, err error) error {
	m.mu.Lock()
	if gen != m.generation {
		m.mu.Unlock()
		return nil
	}
	var p pending
	m.cancelOpen = nil
	m.lastErr = err
	m.transitionLocked(StateClosed, &p)
	if errors.Is(err, ErrTransport) {
		m.scheduleReconnectLocked()
	}
	m.mu.Unlock()
	p.run()
	m.fireError(err)
	return err
}

// handleDisconnect runs when the read pump of a connection stops.
func (m *Manager) handleDisconnect(gen uint64, cause error) {
	m.mu.Lock()
	if gen != m.generation || m.conn == nil {
		m.mu.Unlock()
		return
	}
	var p pending
	m.conn = nil
	m.userID = ""
	err := fmt.Errorf("%w: %w", ErrTransport, cause)
	m.lastErr = err
	m.transitionLocked(StateClosed, &p)
	m.scheduleReconnectLocked()
	m.mu.Unlock()
	p.run()

	log.Error().Err(cause).Uint64("generation", gen).Msg("room connection lost")
	m.fireError(err)
}

func (m *Manager) scheduleReconnectLocked() {
	if m.closed || !m.policy.Enabled() || m.attempts >= m.policy.MaxRetries {
		return
	}
	if m.roomID == "" || m.username == "" {
		return
	}

	delay := m.policy.Delay(m.attempts, m.random)
	m.attempts++
	attempt := m.attempts
	gen := m.generation

	timer := m.clock.NewTimer(delay)
	m.retryTimer = timer

	log.Info().
		Int("attempt", attempt).
		Dur("delay", delay).
		Msg("scheduling reconnect")

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		select {
		case <-timer.Chan():
			m.retry(gen, attempt)
		case <-m.baseCtx.Done():
			timer.Stop()
		}
	}()
}

func (m *Manager) retry(gen uint64, attempt int) {
	m.mu.Lock()
	if gen != m.generation || m.state != StateClosed {
		m.mu.Unlock()
		return
	}
	m.retryTimer = nil
	m.mu.Unlock()

	m.metrics.RecordReconnectAttempt(attempt)
	_ = m.Connect(m.baseCtx)
}

func (m *Manager) stopRetryLocked() {
	if m.retryTimer != nil {
		m.retryTimer.Stop()
		m.retryTimer = nil
	}
}

// teardownLocked closes the connection, invalidates everything tagged with
// the current generation and clears the identity.
func (m *Manager) teardownLocked(next State, p *pending) {
	m.generation++
	m.stopRetryLocked()
	m.attempts = 0
	if m.cancelOpen != nil {
		m.cancelOpen()
		m.cancelOpen = nil
	}
	if m.conn != nil {
		conn := m.conn
		m.conn = nil
		p.add(conn.close)
	}
	m.userID = ""
	m.transitionLocked(next, p)
}

func (m *Manager) transitionLocked(next State, p *pending) {
	if m.state == next {
		return
	}
	prev := m.state
	m.state = next
	log.Debug().Str("from", prev.String()).Str("to", next.String()).Msg("session state changed")
	if m.hooks.OnStateChange != nil {
		fn := m.hooks.OnStateChange
		p.add(func() { fn(next) })
	}
}

func (m *Manager) fireError(err error) {
	if m.hooks.OnError != nil {
		m.hooks.OnError(err)
	}
}

// Close tears down the connection and stops background work.
func (m *Manager) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	var p pending
	m.teardownLocked(StateIdle, &p)
	m.mu.Unlock()
	p.run()

	m.cancel()
	m.wg.Wait()
	return nil
}

// pending collects callbacks to run once the lock is released.
type pending []func()

func (p *pending) add(fn func()) {
	*p = append(*p, fn)
}

func (p pending) run() {
	for _, fn := range p {
		fn()
	}
}
