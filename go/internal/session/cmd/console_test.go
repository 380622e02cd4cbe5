package main

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/mcdev12/planningsync/go/internal/models"
	"github.com/mcdev12/planningsync/go/internal/session"
	"github.com/mcdev12/planningsync/go/internal/session/protocol"
)

type fakeSession struct {
	room     *models.Room
	username string
	joined   string
}

func (f *fakeSession) SetUsername(_ context.Context, name string) error {
	f.username = name
	return nil
}
func (f *fakeSession) CreateRoom(context.Context) (*models.Room, error) { return f.room, nil }
func (f *fakeSession) JoinRoom(_ context.Context, id string) error {
	f.joined = id
	return nil
}
func (f *fakeSession) LeaveRoom()                 { f.room = nil }
func (f *fakeSession) Room() *models.Room         { return f.room }
func (f *fakeSession) State() session.State       { return session.StateSynced }
func (f *fakeSession) UserID() string             { return "u1" }
func (f *fakeSession) Username() string           { return f.username }
func (f *fakeSession) RecentRooms() []models.Room { return nil }

type recordingSender struct {
	sent []protocol.Command
}

func (r *recordingSender) Send(cmd protocol.Command) error {
	if err := cmd.Validate(); err != nil {
		return err
	}
	r.sent = append(r.sent, cmd)
	return nil
}

func newTestConsole(t *testing.T) (*console, *fakeSession, *recordingSender, *bytes.Buffer) {
	t.Helper()
	base := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	room := models.NewRoom("room-1", base)
	if _, err := room.AddTopic("aaaa1111", "Login", "", "", base); err != nil {
		t.Fatal(err)
	}
	if _, err := room.AddTopic("bbbb2222", "Signup", "", "", base.Add(time.Minute)); err != nil {
		t.Fatal(err)
	}

	fs := &fakeSession{room: room}
	sender := &recordingSender{}
	out := &bytes.Buffer{}
	return &console{session: fs, dispatch: session.NewDispatcher(sender), recent: fs, out: out}, fs, sender, out
}

func TestConsoleDispatchesIntents(t *testing.T) {
	c, _, sender, _ := newTestConsole(t)
	ctx := context.Background()

	tests := []struct {
		line string
		want protocol.Command
	}{
		{"add Payments", protocol.AddTopicCommand{Title: "Payments"}},
		{"select 2", protocol.ChangeCurrentTopicCommand{TopicID: "bbbb2222"}},
		{"vote aaaa 13", protocol.VoteOnTopicCommand{TopicID: "aaaa1111", Points: models.VoteThirteen}},
		{"comment 1 too big", protocol.AddCommentCommand{TopicID: "aaaa1111", Content: "too big"}},
		{"toggle 1", protocol.ToggleVisibilityCommand{TopicID: "aaaa1111"}},
		{"complete 1 8", protocol.CompleteTopicCommand{TopicID: "aaaa1111", Points: models.VoteEight}},
		{"reset bbbb", protocol.ResetTopicCommand{TopicID: "bbbb2222"}},
		{"remove 2", protocol.RemoveTopicCommand{TopicID: "bbbb2222"}},
		{"edit 1 Log in", protocol.ChangeTopicDetailsCommand{TopicID: "aaaa1111", Title: "Log in"}},
	}
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			sender.sent = nil
			if _, err := c.exec(ctx, tt.line); err != nil {
				t.Fatalf("exec: %v", err)
			}
			if len(sender.sent) != 1 {
				t.Fatalf("sent %d commands, want 1", len(sender.sent))
			}
			if sender.sent[0] != tt.want {
				t.Errorf("sent %#v, want %#v", sender.sent[0], tt.want)
			}
		})
	}
}

func TestConsoleRejectsBadInput(t *testing.T) {
	c, _, sender, _ := newTestConsole(t)
	ctx := context.Background()

	tests := []struct {
		line string
		want error
	}{
		{"vote 1 4", models.ErrInvalidVote},
		{"vote 9 5", errUnknownTopic},
		{"add", errUsage},
		{"comment 1", protocol.ErrValidation},
		{"dance 1", errUsage},
	}
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			_, err := c.exec(ctx, tt.line)
			if !errors.Is(err, tt.want) {
				t.Errorf("exec(%q) = %v, want %v", tt.line, err, tt.want)
			}
		})
	}
	if len(sender.sent) != 0 {
		t.Errorf("rejected input sent %d commands", len(sender.sent))
	}
}

func TestConsoleSessionCommands(t *testing.T) {
	c, fs, _, _ := newTestConsole(t)
	ctx := context.Background()

	if _, err := c.exec(ctx, "name  Ana "); err != nil {
		t.Fatalf("name: %v", err)
	}
	if fs.username != "Ana" {
		t.Errorf("username = %q", fs.username)
	}
	if _, err := c.exec(ctx, "join room-9"); err != nil {
		t.Fatalf("join: %v", err)
	}
	if fs.joined != "room-9" {
		t.Errorf("joined = %q", fs.joined)
	}
	quit, err := c.exec(ctx, "quit")
	if err != nil || !quit {
		t.Errorf("quit = %v, %v", quit, err)
	}
	c.exec(ctx, "leave")
	if _, err := c.exec(ctx, "select 1"); !errors.Is(err, errNoRoom) {
		t.Errorf("select without room: %v", err)
	}
}

func TestConsoleShowHidesVotes(t *testing.T) {
	c, fs, _, out := newTestConsole(t)
	topic := fs.room.Topics["aaaa1111"]
	topic.ClientVotes["u1"] = models.VoteFive
	fs.room.Join(models.Participant{UserID: "u1", Name: "ana"})

	c.exec(context.Background(), "show")
	if !strings.Contains(out.String(), "1 hidden") {
		t.Errorf("hidden votes not masked:\n%s", out.String())
	}

	out.Reset()
	topic.VotesVisible = true
	c.exec(context.Background(), "show")
	if !strings.Contains(out.String(), "ana=5") || !strings.Contains(out.String(), "avg 5.0") {
		t.Errorf("visible votes not shown:\n%s", out.String())
	}
}
