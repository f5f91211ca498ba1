// Package rps runs rock-paper-scissors tournaments between LLM and
// baseline agents and analyzes their JSONL logs.
package rps

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidMove is returned by ParseMove for unrecognized input.
var ErrInvalidMove = errors.New("invalid move")

// Move is one of rock, paper or scissors.
type Move string

const (
	Rock     Move = "rock"
	Paper    Move = "paper"
	Scissors Move = "scissors"
)

// Moves lists the moves in canonical order.
var Moves = []Move{Rock, Paper, Scissors}

// Outcome is a round or match result from one player's point of view.
type Outcome string

const (
	Win  Outcome = "win"
	Loss Outcome = "loss"
	Draw Outcome = "draw"
)

var moveAliases = map[string]Move{
	"rock":     Rock,
	"r":        Rock,
	"stone":    Rock,
	"paper":    Paper,
	"p":        Paper,
	"scissors": Scissors,
	"s":        Scissors,
	"scissor":  Scissors,
}

// ParseMove accepts a move name or one of its aliases.
func ParseMove(s string) (Move, error) {
	if m, ok := moveAliases[strings.ToLower(strings.TrimSpace(s))]; ok {
		return m, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidMove, s)
}

// Beats reports whether m wins against other.
func (m Move) Beats(other Move) bool {
	return (m == Rock && other == Scissors) ||
		(m == Paper && other == Rock) ||
		(m == Scissors && other == Paper)
}

// CounterTo returns the move that beats m.
func CounterTo(m Move) Move {
	switch m {
	case Rock:
		return Paper
	case Paper:
		return Scissors
	default:
		return Rock
	}
}

// DetermineWinner returns the outcome for each player.
func DetermineWinner(m1, m2 Move) (Outcome, Outcome) {
	switch {
	case m1 == m2:
		return Draw, Draw
	case m1.Beats(m2):
		return Win, Loss
	default:
		return Loss, Win
	}
}

func moveStrings(moves []Move) []string {
	out := make([]string, len(moves))
	for i, m := range moves {
		out[i] = string(m)
	}
	return out
}
