package roomserver

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/mcdev12/planningsync/go/internal/models"
	"github.com/mcdev12/planningsync/go/internal/session/protocol"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	svc, err := NewService(DefaultConfig(), NewMemoryStore(), LocalNotifierFactory)
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

func createRoom(t *testing.T, baseURL string) *models.Room {
	t.Helper()
	resp, err := http.Post(baseURL+"/room", "application/json", nil)
	if err != nil {
		t.Fatalf("POST /room: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("POST /room status = %d", resp.StatusCode)
	}
	var room models.Room
	if err := json.NewDecoder(resp.Body).Decode(&room); err != nil {
		t.Fatalf("decode room: %v", err)
	}
	return &room
}

func getRoom(t *testing.T, baseURL, roomID string) *models.Room {
	t.Helper()
	resp, err := http.Get(baseURL + "/room/" + roomID)
	if err != nil {
		t.Fatalf("GET /room: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("GET /room status = %d", resp.StatusCode)
	}
	var room models.Room
	if err := json.NewDecoder(resp.Body).Decode(&room); err != nil {
		t.Fatalf("decode room: %v", err)
	}
	return &room
}

func wsURL(baseURL, path string) string {
	return "ws" + strings.TrimPrefix(baseURL, "http") + path
}

func TestRoomEndpoints(t *testing.T) {
	srv := newTestServer(t)

	room := createRoom(t, srv.URL)
	if room.RoomID == "" {
		t.Fatal("created room has no id")
	}
	if got := getRoom(t, srv.URL, room.RoomID); got.RoomID != room.RoomID {
		t.Errorf("GET room id = %q, want %q", got.RoomID, room.RoomID)
	}

	resp, err := http.Get(srv.URL + "/room/does-not-exist")
	if err != nil {
		t.Fatalf("GET unknown room: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("unknown room status = %d, want 404", resp.StatusCode)
	}
}

func TestSocketRejectsBadRequests(t *testing.T) {
	srv := newTestServer(t)
	room := createRoom(t, srv.URL)

	tests := []struct {
		name string
		path string
		code int
	}{
		{"missing username", "/ws/" + room.RoomID, http.StatusBadRequest},
		{"unknown room", "/ws/nope?username=ana", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, resp, err := websocket.DefaultDialer.Dial(wsURL(srv.URL, tt.path), nil)
			if err == nil {
				t.Fatal("expected dial to fail")
			}
			if resp == nil || resp.StatusCode != tt.code {
				t.Fatalf("status = %v, want %d", resp, tt.code)
			}
		})
	}
}

func readUntil(t *testing.T, conn *websocket.Conn, frameType string) []byte {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	for {
		_, frame, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("waiting for %s: %v", frameType, err)
		}
		if protocol.FrameType(frame) == frameType {
			return frame
		}
	}
}

func TestSocketSessionFlow(t *testing.T) {
	srv := newTestServer(t)
	room := createRoom(t, srv.URL)

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv.URL, "/ws/"+room.RoomID+"?username=ana"), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, first, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read auth: %v", err)
	}
	auth, err := protocol.ParseAuth(first)
	if err != nil {
		t.Fatalf("first frame is not AUTH: %v (%s)", err, first)
	}
	if auth.RoomID != room.RoomID || auth.UserName != "ana" || auth.UserID == "" {
		t.Errorf("auth = %+v", auth)
	}

	readUntil(t, conn, string(EventTypeUserJoined))

	frame, err := protocol.Encode(protocol.AddTopicCommand{Title: "Checkout flow"})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
		t.Fatalf("write: %v", err)
	}
	readUntil(t, conn, string(EventTypeTopicAdded))

	snapshot := getRoom(t, srv.URL, room.RoomID)
	if len(snapshot.Topics) != 1 {
		t.Errorf("topics = %d, want 1", len(snapshot.Topics))
	}
	if p, ok := snapshot.ConnectedUsers[auth.UserID]; !ok || p.Name != "ana" {
		t.Errorf("connected users = %+v", snapshot.ConnectedUsers)
	}
}

type failingPinger struct{ *MemoryStore }

func (f *failingPinger) Ping(context.Context) error { return errors.New("connection refused") }

func TestHealth(t *testing.T) {
	srv := newTestServer(t)
	resp, err := http.Get(srv.URL + "/health")
	if err != nil {
		t.Fatalf("GET /health: %v", err)
	}
	defer resp.Body.Close()
	var status HealthStatus
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.StatusCode != http.StatusOK || !status.Healthy {
		t.Errorf("status %d healthy=%v errors=%v", resp.StatusCode, status.Healthy, status.Errors)
	}

	cm := NewConnectionManager(DefaultConnectionConfig())
	checker := NewHealthChecker(&failingPinger{NewMemoryStore()}, NewLocalNotifier(cm), cm)
	got := checker.Check(context.Background())
	if got.Healthy || got.StoreConnected || len(got.Errors) != 1 {
		t.Errorf("failing store reported as %+v", got)
	}
}
