package roomserver

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/planningsync/go/internal/models"
	"github.com/mcdev12/planningsync/go/internal/session/protocol"
)

type recordingNotifier struct {
	mu     sync.Mutex
	events []RoomEvent
}

func (n *recordingNotifier) Publish(_ context.Context, event RoomEvent) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, event)
	return nil
}

func (n *recordingNotifier) Start(ctx context.Context) error { <-ctx.Done(); return nil }
func (n *recordingNotifier) Stop() error                     { return nil }

func (n *recordingNotifier) types() []EventType {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]EventType, len(n.events))
	for i, e := range n.events {
		out[i] = e.Type
	}
	return out
}

type staticPresence []models.Participant

func (p staticPresence) Participants(string) []models.Participant { return p }

func newTestApp(t *testing.T) (*App, *recordingNotifier, string) {
	t.Helper()
	notifier := &recordingNotifier{}
	clock := clockwork.NewFakeClockAt(time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC))
	app := NewApp(NewMemoryStore(), notifier, staticPresence{{UserID: "u1", Name: "ana"}}, clock)
	room, err := app.CreateRoom(context.Background())
	if err != nil {
		t.Fatalf("CreateRoom: %v", err)
	}
	return app, notifier, room.RoomID
}

func mustEncode(t *testing.T, cmd protocol.Command) []byte {
	t.Helper()
	frame, err := protocol.Encode(cmd)
	if err != nil {
		t.Fatalf("Encode(%s): %v", cmd.Type(), err)
	}
	return frame
}

func onlyTopic(t *testing.T, room *models.Room) *models.Topic {
	t.Helper()
	if len(room.Topics) != 1 {
		t.Fatalf("expected one topic, got %d", len(room.Topics))
	}
	for _, topic := range room.Topics {
		return topic
	}
	return nil
}

func TestAppVotingRound(t *testing.T) {
	ctx := context.Background()
	app, notifier, roomID := newTestApp(t)

	if err := app.HandleCommand(ctx, roomID, "u1", mustEncode(t, protocol.AddTopicCommand{Title: "Login page"})); err != nil {
		t.Fatalf("add topic: %v", err)
	}
	room, err := app.GetRoom(ctx, roomID)
	if err != nil {
		t.Fatalf("GetRoom: %v", err)
	}
	topic := onlyTopic(t, room)

	steps := []protocol.Command{
		protocol.ChangeCurrentTopicCommand{TopicID: topic.TopicID},
		protocol.VoteOnTopicCommand{TopicID: topic.TopicID, Points: models.VoteFive},
		protocol.AddCommentCommand{TopicID: topic.TopicID, Content: "  needs design  "},
		protocol.ToggleVisibilityCommand{TopicID: topic.TopicID},
		protocol.CompleteTopicCommand{TopicID: topic.TopicID, Points: models.VoteFive},
	}
	for _, cmd := range steps {
		if err := app.HandleCommand(ctx, roomID, "u1", mustEncode(t, cmd)); err != nil {
			t.Fatalf("%s: %v", cmd.Type(), err)
		}
	}

	room, err = app.GetRoom(ctx, roomID)
	if err != nil {
		t.Fatalf("GetRoom: %v", err)
	}
	topic = onlyTopic(t, room)
	if room.CurrentTopicID == nil || *room.CurrentTopicID != topic.TopicID {
		t.Errorf("current topic = %v, want %s", room.CurrentTopicID, topic.TopicID)
	}
	if got := topic.ClientVotes["u1"]; got != models.VoteFive {
		t.Errorf("vote = %q, want %q", got, models.VoteFive)
	}
	if len(topic.Comments) != 1 || topic.Comments[0].Content != "needs design" {
		t.Errorf("comments = %+v", topic.Comments)
	}
	if !topic.Completed || topic.Points == nil || *topic.Points != models.VoteFive {
		t.Errorf("topic not completed with 5 points: %+v", topic)
	}
	if _, ok := room.ConnectedUsers["u1"]; !ok {
		t.Errorf("connected users missing presence: %+v", room.ConnectedUsers)
	}
	if err := room.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}

	want := []EventType{
		EventTypeTopicAdded,
		EventTypeCurrentTopicChanged,
		EventTypeUserVoted,
		EventTypeCommentAdded,
		EventTypeVisibilityToggled,
		EventTypeTopicCompleted,
	}
	got := notifier.types()
	if len(got) != len(want) {
		t.Fatalf("events = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("event %d = %s, want %s", i, got[i], want[i])
		}
	}
}

func TestAppVoteEventHidesPoints(t *testing.T) {
	ctx := context.Background()
	app, notifier, roomID := newTestApp(t)

	if err := app.HandleCommand(ctx, roomID, "u1", mustEncode(t, protocol.AddTopicCommand{Title: "API"})); err != nil {
		t.Fatalf("add topic: %v", err)
	}
	room, _ := app.GetRoom(ctx, roomID)
	topic := onlyTopic(t, room)
	if err := app.HandleCommand(ctx, roomID, "u1", mustEncode(t, protocol.VoteOnTopicCommand{TopicID: topic.TopicID, Points: models.VoteThirteen})); err != nil {
		t.Fatalf("vote: %v", err)
	}

	notifier.mu.Lock()
	last := notifier.events[len(notifier.events)-1]
	notifier.mu.Unlock()

	var payload map[string]any
	if err := json.Unmarshal(last.Data, &payload); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if _, ok := payload["points"]; ok {
		t.Errorf("USER_VOTED payload leaks points: %s", last.Data)
	}
}

func TestAppRejectedCommandsPublishNothing(t *testing.T) {
	ctx := context.Background()
	app, notifier, roomID := newTestApp(t)

	err := app.HandleCommand(ctx, roomID, "u1", mustEncode(t, protocol.ToggleVisibilityCommand{TopicID: "missing"}))
	if !errors.Is(err, models.ErrTopicNotFound) {
		t.Errorf("toggle missing topic: got %v, want ErrTopicNotFound", err)
	}

	err = app.HandleCommand(ctx, roomID, "u1", []byte(`{"type":"VOTE_ON_TOPIC","data":{"topic_id":"t","points":"4"}}`))
	if !errors.Is(err, protocol.ErrValidation) {
		t.Errorf("bad vote: got %v, want ErrValidation", err)
	}

	err = app.HandleCommand(ctx, "nope", "u1", mustEncode(t, protocol.AddTopicCommand{Title: "x"}))
	if !errors.Is(err, ErrRoomNotFound) {
		t.Errorf("unknown room: got %v, want ErrRoomNotFound", err)
	}

	if got := notifier.types(); len(got) != 0 {
		t.Errorf("expected no events, got %v", got)
	}
}

func TestMemoryStoreUpdateFailureKeepsRoom(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	room := models.NewRoom("r1", time.Now())
	if err := store.Create(ctx, room); err != nil {
		t.Fatalf("Create: %v", err)
	}

	boom := errors.New("boom")
	_, err := store.Update(ctx, "r1", func(r *models.Room) error {
		if _, err := r.AddTopic("t1", "Title", "", "", time.Now()); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("Update: got %v, want boom", err)
	}

	stored, err := store.Get(ctx, "r1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if len(stored.Topics) != 0 {
		t.Errorf("failed update leaked topics: %+v", stored.Topics)
	}
}

func TestMemoryStoreDoesNotPersistPresence(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	room := models.NewRoom("r1", time.Now())
	room.Join(models.Participant{UserID: "u1", Name: "ana"})
	if err := store.Create(ctx, room); err != nil {
		t.Fatalf("Create: %v", err)
	}
	stored, _ := store.Get(ctx, "r1")
	if len(stored.ConnectedUsers) != 0 {
		t.Errorf("presence persisted: %+v", stored.ConnectedUsers)
	}
}
