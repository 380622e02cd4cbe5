package models

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestParseVote(t *testing.T) {
	tests := []struct {
		in      string
		want    Vote
		wantErr bool
	}{
		{in: "0.5", want: VoteHalf},
		{in: "13", want: VoteThirteen},
		{in: "coffee", want: VoteCoffee},
		{in: "no_ans", want: VoteUnsure},
		{in: "", wantErr: true},
		{in: "4", wantErr: true},
		{in: " 8", wantErr: true},
		{in: "Coffee", wantErr: true},
	}

	for _, tt := range tests {
		got, err := ParseVote(tt.in)
		if tt.wantErr {
			if !errors.Is(err, ErrInvalidVote) {
				t.Errorf("ParseVote(%q) error = %v, want ErrInvalidVote", tt.in, err)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseVote(%q) unexpected error: %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseVote(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestVoteJSONRejectsOutOfDomain(t *testing.T) {
	if _, err := json.Marshal(Vote("7")); err == nil {
		t.Fatal("expected marshal error for out-of-domain vote")
	}

	var v Vote
	if err := json.Unmarshal([]byte(`"7"`), &v); !errors.Is(err, ErrInvalidVote) {
		t.Fatalf("unmarshal error = %v, want ErrInvalidVote", err)
	}
	if err := json.Unmarshal([]byte(`8`), &v); !errors.Is(err, ErrInvalidVote) {
		t.Fatalf("unmarshal of bare number error = %v, want ErrInvalidVote", err)
	}

	var votes map[string]Vote
	if err := json.Unmarshal([]byte(`{"u1":"8","u2":"banana"}`), &votes); !errors.Is(err, ErrInvalidVote) {
		t.Fatalf("map unmarshal error = %v, want ErrInvalidVote", err)
	}
}

func TestVotePoints(t *testing.T) {
	if p, ok := VoteHalf.Points(); !ok || p != 0.5 {
		t.Errorf("VoteHalf.Points() = %v, %v", p, ok)
	}
	if _, ok := VoteCoffee.Points(); ok {
		t.Error("sentinel should have no points")
	}
	if !VoteUnsure.IsSentinel() || VoteEight.IsSentinel() {
		t.Error("IsSentinel mismatch")
	}
	if len(Deck()) != 10 {
		t.Errorf("deck size = %d, want 10", len(Deck()))
	}
}

func TestTally(t *testing.T) {
	s := Tally(map[string]Vote{
		"u1": VoteThree,
		"u2": VoteFive,
		"u3": VoteCoffee,
		"u4": VoteFive,
	})
	if s.Numeric != 3 {
		t.Fatalf("numeric = %d, want 3", s.Numeric)
	}
	if want := 13.0 / 3; s.Average != want {
		t.Errorf("average = %v, want %v", s.Average, want)
	}
	if s.Counts[VoteFive] != 2 || s.Counts[VoteCoffee] != 1 {
		t.Errorf("unexpected counts: %v", s.Counts)
	}
}
