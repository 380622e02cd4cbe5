package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strconv"
)

// ErrInvalidVote is returned when a value falls outside the estimation deck.
var ErrInvalidVote = errors.New("invalid vote value")

// Vote is a single card from the estimation deck. Only the constants below
// are valid; the zero value is not a vote.
type Vote string

const (
	VoteHalf     Vote = "0.5"
	VoteOne      Vote = "1"
	VoteTwo      Vote = "2"
	VoteThree    Vote = "3"
	VoteFive     Vote = "5"
	VoteEight    Vote = "8"
	VoteThirteen Vote = "13"
	VoteTwenty   Vote = "20"

	// VoteCoffee means the participant needs a break.
	VoteCoffee Vote = "coffee"
	// VoteUnsure means the participant is unable to estimate.
	VoteUnsure Vote = "no_ans"
)

var deck = []Vote{
	VoteHalf, VoteOne, VoteTwo, VoteThree, VoteFive,
	VoteEight, VoteThirteen, VoteTwenty, VoteCoffee, VoteUnsure,
}

// Deck returns every valid vote in display order.
func Deck() []Vote {
	return slices.Clone(deck)
}

// ParseVote converts wire text into a Vote.
func ParseVote(s string) (Vote, error) {
	v := Vote(s)
	if !v.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidVote, s)
	}
	return v, nil
}

func (v Vote) Valid() bool {
	return slices.Contains(deck, v)
}

// IsSentinel reports whether v is one of the non-numeric cards.
func (v Vote) IsSentinel() bool {
	return v == VoteCoffee || v == VoteUnsure
}

// Points returns the numeric value of the card. ok is false for sentinels
// and invalid values.
func (v Vote) Points() (points float64, ok bool) {
	if !v.Valid() || v.IsSentinel() {
		return 0, false
	}
	p, err := strconv.ParseFloat(string(v), 64)
	if err != nil {
		return 0, false
	}
	return p, true
}

func (v Vote) String() string {
	return string(v)
}

func (v Vote) MarshalJSON() ([]byte, error) {
	if !v.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidVote, string(v))
	}
	return json.Marshal(string(v))
}

func (v *Vote) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidVote, string(data))
	}
	parsed, err := ParseVote(s)
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

// VoteSummary aggregates revealed votes for display.
type VoteSummary struct {
	Counts  map[Vote]int
	Numeric int
	Average float64
}

// Tally counts the votes and averages the numeric ones.
func Tally(votes map[string]Vote) VoteSummary {
	summary := VoteSummary{Counts: make(map[Vote]int)}
	var total float64
	for _, v := range votes {
		summary.Counts[v]++
		if p, ok := v.Points(); ok {
			total += p
			summary.Numeric++
		}
	}
	if summary.Numeric > 0 {
		summary.Average = total / float64(summary.Numeric)
	}
	return summary
}
