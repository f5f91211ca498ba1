// Package players provides the agents that compete in board game tournaments.
package players

import (
	"context"
	"errors"
	"math/rand/v2"

	"github.com/agent-protocol/agent-arena/pkg/game"
)

// ErrNoValidMoves is returned when a player is asked to move on a full board.
var ErrNoValidMoves = errors.New("no valid moves")

// Player chooses moves for one seat of a game.
type Player interface {
	Name() string
	// Model identifies what drives the player, such as an LLM model name.
	Model() string
	ChooseMove(ctx context.Context, g game.Game, symbol game.Symbol) (game.Move, error)
}

// RandomPlayer picks uniformly among the valid moves.
type RandomPlayer struct {
	name string
	rng  *rand.Rand
}

// NewRandomPlayer returns a seeded random player.
func NewRandomPlayer(name string, seed uint64) *RandomPlayer {
	return &RandomPlayer{name: name, rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

func (p *RandomPlayer) Name() string  { return p.name }
func (p *RandomPlayer) Model() string { return "random" }

func (p *RandomPlayer) ChooseMove(ctx context.Context, g game.Game, symbol game.Symbol) (game.Move, error) {
	moves := g.ValidMoves(symbol)
	if len(moves) == 0 {
		return game.Move{}, ErrNoValidMoves
	}
	return moves[p.rng.IntN(len(moves))], nil
}
