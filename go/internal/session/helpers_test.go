package session

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/mcdev12/planningsync/go/clients/room_client"
	"github.com/mcdev12/planningsync/go/internal/models"
	"github.com/mcdev12/planningsync/go/internal/roomserver"
	"github.com/mcdev12/planningsync/go/internal/session/cache"
)

// startRoomServer runs the real room server on an httptest listener.
func startRoomServer(t *testing.T) *httptest.Server {
	t.Helper()
	svc, err := roomserver.NewService(roomserver.DefaultConfig(), roomserver.NewMemoryStore(), roomserver.LocalNotifierFactory)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	go svc.Start(ctx)

	srv := httptest.NewServer(svc.Handler())
	t.Cleanup(func() {
		srv.Close()
		cancel()
	})
	return srv
}

func newTestManager(t *testing.T, api RoomAPI, opts Options) *Manager {
	t.Helper()
	ctx := context.Background()
	c, err := cache.New(ctx, cache.NewMemoryStore())
	if err != nil {
		t.Fatalf("cache.New: %v", err)
	}
	m, err := NewManager(ctx, api, c, opts)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	t.Cleanup(func() { m.Close() })
	return m
}

func newServerManager(t *testing.T, srv *httptest.Server, opts Options) *Manager {
	t.Helper()
	return newTestManager(t, room_client.NewRoomClient(srv.URL), opts)
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func topicByTitle(room *models.Room, title string) *models.Topic {
	if room == nil {
		return nil
	}
	for _, topic := range room.Topics {
		if topic.Title == title {
			return topic
		}
	}
	return nil
}

// socketServer is a scripted room socket. Each accepted connection gets
// firstFrame(n) as its opening frame, n counting from 1.
type socketServer struct {
	*httptest.Server

	firstFrame func(n int) []byte
	refuse     atomic.Bool
	accepted   atomic.Int32

	mu    sync.Mutex
	conns []*websocket.Conn
}

func authFrame(n int) []byte {
	return []byte(fmt.Sprintf(`{"type":"AUTH","user_id":"u%d","user_name":"ana","room_id":"r1"}`, n))
}

func startSocketServer(t *testing.T, firstFrame func(n int) []byte) *socketServer {
	t.Helper()
	s := &socketServer{firstFrame: firstFrame}
	upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}

	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.refuse.Load() {
			http.Error(w, "unavailable", http.StatusServiceUnavailable)
			return
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		n := int(s.accepted.Add(1))
		s.mu.Lock()
		s.conns = append(s.conns, conn)
		s.mu.Unlock()

		conn.WriteMessage(websocket.TextMessage, s.firstFrame(n))
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	t.Cleanup(s.Close)
	return s
}

func (s *socketServer) latest() *websocket.Conn {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.conns) == 0 {
		return nil
	}
	return s.conns[len(s.conns)-1]
}

// notify pushes a change notification on the newest connection.
func (s *socketServer) notify(t *testing.T) {
	t.Helper()
	conn := s.latest()
	if conn == nil {
		t.Fatal("no socket connection to notify")
	}
	if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"TOPIC_ADDED","data":{}}`)); err != nil {
		t.Fatalf("notify: %v", err)
	}
}

// drop closes the newest connection from the server side.
func (s *socketServer) drop() {
	if conn := s.latest(); conn != nil {
		conn.Close()
	}
}

// stubAPI serves a fixed room and points sockets at a socketServer.
type stubAPI struct {
	socketURL string
	room      *models.Room
	gone      atomic.Bool
	fetches   atomic.Int32
}

func newStubAPI(sockets *socketServer) *stubAPI {
	return &stubAPI{
		socketURL: "ws" + strings.TrimPrefix(sockets.URL, "http") + "/ws/r1",
		room:      models.NewRoom("r1", time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)),
	}
}

func (a *stubAPI) GetRoom(_ context.Context, roomID string) (*models.Room, error) {
	a.fetches.Add(1)
	if a.gone.Load() || roomID != a.room.RoomID {
		return nil, fmt.Errorf("%w: %s", ErrRoomNotFound, roomID)
	}
	return a.room.Clone(), nil
}

func (a *stubAPI) CreateRoom(context.Context) (*models.Room, error) {
	return a.room.Clone(), nil
}

func (a *stubAPI) SocketURL(string, string) (string, error) {
	return a.socketURL, nil
}

// heldAuth delays the first frame of connection 1 until release is closed.
// Later connections get their AUTH frame immediately.
func heldAuth(t *testing.T) (firstFrame func(n int) []byte, release func()) {
	t.Helper()
	hold := make(chan struct{})
	var once sync.Once
	release = func() { once.Do(func() { close(hold) }) }
	t.Cleanup(release)
	return func(n int) []byte {
		if n == 1 {
			<-hold
		}
		return authFrame(n)
	}, release
}

// labelledAPI answers each fetch with the stub room plus one topic titled by
// the next label.
type labelledAPI struct {
	*stubAPI

	mu     sync.Mutex
	labels []string
}

func (a *labelledAPI) GetRoom(ctx context.Context, roomID string) (*models.Room, error) {
	room, err := a.stubAPI.GetRoom(ctx, roomID)
	if err != nil {
		return nil, err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if len(a.labels) > 0 {
		label := a.labels[0]
		a.labels = a.labels[1:]
		if _, err := room.AddTopic(label, label, "", "", time.Now()); err != nil {
			return nil, err
		}
	}
	return room, nil
}

// flakyCache wraps a memory cache whose username writes can be made to fail.
type flakyCache struct {
	*cache.Cache
	fail atomic.Bool
}

func (c *flakyCache) SetUsername(ctx context.Context, name string) error {
	if c.fail.Load() {
		return errors.New("disk full")
	}
	return c.Cache.SetUsername(ctx, name)
}
