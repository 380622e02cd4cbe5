package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"

	"github.com/mcdev12/planningsync/go/internal/models"
	"github.com/mcdev12/planningsync/go/internal/session"
)

var (
	errUsage        = errors.New("usage")
	errNoRoom       = errors.New("no room selected")
	errUnknownTopic = errors.New("no such topic")
)

// roomSession is the part of the session manager the console drives.
type roomSession interface {
	SetUsername(ctx context.Context, name string) error
	CreateRoom(ctx context.Context) (*models.Room, error)
	JoinRoom(ctx context.Context, roomID string) error
	LeaveRoom()
	Room() *models.Room
	State() session.State
	UserID() string
	Username() string
}

type recentRooms interface {
	RecentRooms() []models.Room
}

// console turns text lines into session intents.
type console struct {
	session  roomSession
	dispatch *session.Dispatcher
	recent   recentRooms
	out      io.Writer
}

const helpText = `commands:
  name <name>               set display name
  create                    create a room and join it
  join <room_id>            join a room
  leave                     leave the room
  rooms                     list recent rooms
  add <title>               add a topic
  edit <topic> <title>      rename a topic
  select <topic>            vote on a topic
  comment <topic> <text>    comment on a topic
  toggle <topic>            show or hide votes
  vote <topic> <card>       vote (0.5 1 2 3 5 8 13 20 coffee no_ans)
  complete <topic> <card>   finish a topic with the agreed points
  reset <topic>             clear votes and completion
  remove <topic>            delete a topic
  show                      print the room
  quit
<topic> is a number from "show" or a topic id prefix.`

// exec runs one command line. It reports whether the console should stop.
func (c *console) exec(ctx context.Context, line string) (bool, error) {
	verb, rest, _ := strings.Cut(strings.TrimSpace(line), " ")
	rest = strings.TrimSpace(rest)

	switch verb {
	case "":
		return false, nil
	case "quit", "exit":
		return true, nil
	case "help":
		fmt.Fprintln(c.out, helpText)
		return false, nil
	case "name":
		if rest == "" {
			return false, fmt.Errorf("%w: name <name>", errUsage)
		}
		return false, c.session.SetUsername(ctx, rest)
	case "create":
		room, err := c.session.CreateRoom(ctx)
		if err != nil {
			return false, err
		}
		fmt.Fprintf(c.out, "created room %s\n", room.RoomID)
		return false, nil
	case "join":
		if rest == "" {
			return false, fmt.Errorf("%w: join <room_id>", errUsage)
		}
		return false, c.session.JoinRoom(ctx, rest)
	case "leave":
		c.session.LeaveRoom()
		return false, nil
	case "rooms":
		c.printRecent()
		return false, nil
	case "show":
		c.printRoom()
		return false, nil
	case "add":
		if rest == "" {
			return false, fmt.Errorf("%w: add <title>", errUsage)
		}
		return false, c.dispatch.AddTopic(rest, "", "")
	}

	ref, arg, _ := strings.Cut(rest, " ")
	arg = strings.TrimSpace(arg)
	if ref == "" {
		return false, fmt.Errorf("%w: %s <topic> ...", errUsage, verb)
	}
	topic, err := c.resolveTopic(ref)
	if err != nil {
		return false, err
	}

	switch verb {
	case "edit":
		return false, c.dispatch.ChangeTopicDetails(topic.TopicID, arg, topic.URL, topic.Description)
	case "select":
		return false, c.dispatch.ChangeCurrentTopic(topic.TopicID)
	case "comment":
		return false, c.dispatch.AddComment(topic.TopicID, arg)
	case "toggle":
		return false, c.dispatch.ToggleVisibility(topic.TopicID)
	case "vote", "complete":
		card, err := models.ParseVote(arg)
		if err != nil {
			return false, err
		}
		if verb == "vote" {
			return false, c.dispatch.Vote(topic.TopicID, card)
		}
		return false, c.dispatch.CompleteTopic(topic.TopicID, card)
	case "reset":
		return false, c.dispatch.ResetTopic(topic.TopicID)
	case "remove":
		return false, c.dispatch.RemoveTopic(topic.TopicID)
	default:
		return false, fmt.Errorf("%w: unknown command %q, try help", errUsage, verb)
	}
}

// resolveTopic accepts a 1-based position in creation order or an id prefix.
func (c *console) resolveTopic(ref string) (*models.Topic, error) {
	room := c.session.Room()
	if room == nil {
		return nil, errNoRoom
	}
	topics := room.SortedTopics()

	if n, err := strconv.Atoi(ref); err == nil && n >= 1 && n <= len(topics) {
		return topics[n-1], nil
	}

	var match *models.Topic
	for _, t := range topics {
		if strings.HasPrefix(t.TopicID, ref) {
			if match != nil {
				return nil, fmt.Errorf("%w: %q is ambiguous", errUnknownTopic, ref)
			}
			match = t
		}
	}
	if match == nil {
		return nil, fmt.Errorf("%w: %q", errUnknownTopic, ref)
	}
	return match, nil
}

func (c *console) printRecent() {
	rooms := c.recent.RecentRooms()
	if len(rooms) == 0 {
		fmt.Fprintln(c.out, "no recent rooms")
		return
	}
	for _, r := range rooms {
		fmt.Fprintf(c.out, "%s  created %s  %d topics\n",
			r.RoomID, r.CreatedAt.Local().Format("2006-01-02 15:04"), len(r.Topics))
	}
}

func (c *console) printRoom() {
	fmt.Fprintf(c.out, "state: %s  name: %q  user: %s\n", c.session.State(), c.session.Username(), c.session.UserID())

	room := c.session.Room()
	if room == nil {
		fmt.Fprintln(c.out, "no room selected")
		return
	}
	fmt.Fprintf(c.out, "room %s\n", room.RoomID)

	names := make([]string, 0, len(room.ConnectedUsers))
	for _, p := range room.ConnectedUsers {
		names = append(names, p.Name)
	}
	slices.Sort(names)
	fmt.Fprintf(c.out, "participants: %s\n", strings.Join(names, ", "))

	current := room.CurrentTopic()
	for i, t := range room.SortedTopics() {
		marker := " "
		if t == current {
			marker = "*"
		}
		status := "open"
		if t.Completed && t.Points != nil {
			status = "done: " + t.Points.String()
		}
		fmt.Fprintf(c.out, "%s%2d. %s [%s] %s\n", marker, i+1, t.Title, status, shortID(t.TopicID))
		fmt.Fprintf(c.out, "      votes: %s\n", formatVotes(t, room.ConnectedUsers))
		for _, cm := range t.Comments {
			fmt.Fprintf(c.out, "      - %s\n", cm.Content)
		}
	}
}

func formatVotes(t *models.Topic, users map[string]models.Participant) string {
	if len(t.ClientVotes) == 0 {
		return "none"
	}
	if !t.VotesVisible {
		return fmt.Sprintf("%d hidden", len(t.ClientVotes))
	}

	parts := make([]string, 0, len(t.ClientVotes))
	for userID, v := range t.ClientVotes {
		name := userID
		if p, ok := users[userID]; ok {
			name = p.Name
		}
		parts = append(parts, fmt.Sprintf("%s=%s", name, v))
	}
	slices.Sort(parts)

	summary := models.Tally(t.ClientVotes)
	if summary.Numeric > 0 {
		parts = append(parts, fmt.Sprintf("avg %.1f", summary.Average))
	}
	return strings.Join(parts, " ")
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
