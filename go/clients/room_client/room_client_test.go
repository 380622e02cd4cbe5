package room_client

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestGetRoom(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/room/R1":
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"room_id":"R1","created_at":"2024-01-01T00:00:00Z","topics":{},"current_topic_id":null}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	client := NewRoomClient(srv.URL)

	room, err := client.GetRoom(context.Background(), "R1")
	if err != nil {
		t.Fatal(err)
	}
	if room.RoomID != "R1" || room.ConnectedUsers == nil {
		t.Errorf("unexpected room: %+v", room)
	}

	if _, err := client.GetRoom(context.Background(), "missing"); !errors.Is(err, ErrRoomNotFound) {
		t.Errorf("missing room error = %v, want ErrRoomNotFound", err)
	}
}

func TestGetRoomServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := NewRoomClient(srv.URL).GetRoom(context.Background(), "R1")
	if err == nil || errors.Is(err, ErrRoomNotFound) {
		t.Fatalf("error = %v, want non-not-found failure", err)
	}
}

func TestCreateRoom(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/room" {
			http.NotFound(w, r)
			return
		}
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"room_id":"R9","created_at":"2024-01-01T00:00:00Z","topics":{}}`))
	}))
	defer srv.Close()

	room, err := NewRoomClient(srv.URL + "/").CreateRoom(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if room.RoomID != "R9" {
		t.Errorf("room id = %q", room.RoomID)
	}
}

func TestSocketURL(t *testing.T) {
	tests := []struct {
		base   string
		roomID string
		want   string
	}{
		{"http://localhost:8080", "R1", "ws://localhost:8080/ws/R1?username=alice+b"},
		{"https://poker.example.com/api", "R1", "wss://poker.example.com/api/ws/R1?username=alice+b"},
		{"http://localhost:8080", "a/b?c", "ws://localhost:8080/ws/a%2Fb%3Fc?username=alice+b"},
	}
	for _, tt := range tests {
		got, err := NewRoomClient(tt.base).SocketURL(tt.roomID, "alice b")
		if err != nil {
			t.Fatal(err)
		}
		if got != tt.want {
			t.Errorf("SocketURL(%s) = %s, want %s", tt.base, got, tt.want)
		}
	}
}
