package sessions

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/agent-protocol/agent-arena/pkg/game"
	"github.com/agent-protocol/agent-arena/pkg/tournament"
)

// ProgressObserver prints tournament progress for a terminal.
type ProgressObserver struct {
	out        io.Writer
	showBoards bool
}

var _ tournament.Observer = (*ProgressObserver)(nil)

// NewProgressObserver writes to out (stdout when nil). With showBoards set
// every move is printed with the board after it.
func NewProgressObserver(out io.Writer, showBoards bool) *ProgressObserver {
	if out == nil {
		out = os.Stdout
	}
	return &ProgressObserver{out: out, showBoards: showBoards}
}

func (p *ProgressObserver) TournamentStarted(participants []string, totalRounds int) error {
	fmt.Fprintf(p.out, "🏁 Tournament started: %d players, %d rounds expected\n", len(participants), totalRounds)
	for i, name := range participants {
		fmt.Fprintf(p.out, "  %d. %s\n", i+1, name)
	}
	return nil
}

func (p *ProgressObserver) RoundStarted(round int, label string) error {
	fmt.Fprintf(p.out, "\n=== %s ===\n", label)
	return nil
}

func (p *ProgressObserver) MoveMade(gameID, player string, symbol game.Symbol, move game.Move, board game.Board) error {
	slog.Debug("move", "game_id", gameID, "player", player, "symbol", symbol, "move", move)
	if !p.showBoards {
		return nil
	}
	fmt.Fprintf(p.out, "%s: %s (%s) plays %s\n", gameID, player, symbol, move)
	for _, row := range board.Rows() {
		fmt.Fprintf(p.out, "  %s\n", row)
	}
	return nil
}

func (p *ProgressObserver) GameFinished(result tournament.GameResult) error {
	if result.Winner == "" {
		fmt.Fprintf(p.out, "  %s: draw after %d moves\n", result.GameID, result.Moves)
		return nil
	}
	fmt.Fprintf(p.out, "  %s: %s wins as %s in %d moves\n", result.GameID, result.Winner, result.WinnerSymbol, result.Moves)
	return nil
}

func (p *ProgressObserver) MatchFinished(result tournament.MatchResult) error {
	outcome := "drawn"
	if result.Winner != "" {
		outcome = result.Winner + " wins"
		if result.TieBreak {
			outcome += " on tie-break"
		}
	}
	fmt.Fprintf(p.out, "Match %s: %s %d-%d %s, %s\n",
		result.MatchID, result.Player1, result.Score[0], result.Score[1], result.Player2, outcome)
	return nil
}
