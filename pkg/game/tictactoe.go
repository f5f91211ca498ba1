package game

import (
	"fmt"
	"strconv"
	"strings"
)

// KindTicTacToe is the registry name of generic tic-tac-toe.
const KindTicTacToe = "tictactoe"

var ticTacToeSymbols = []Symbol{"X", "O", "A", "B", "C", "D", "E", "F"}

// TicTacToe is NxN tic-tac-toe where WinLength in a row wins.
type TicTacToe struct {
	config    Config
	board     Board
	moveCount int
	symbols   []Symbol
}

// NewTicTacToe validates cfg and returns an empty board.
func NewTicTacToe(cfg Config) (*TicTacToe, error) {
	if cfg.BoardSize < 1 {
		return nil, fmt.Errorf("board size must be positive, got %d", cfg.BoardSize)
	}
	if cfg.WinLength < 1 || cfg.WinLength > cfg.BoardSize {
		return nil, fmt.Errorf("win length must be between 1 and %d, got %d", cfg.BoardSize, cfg.WinLength)
	}
	if cfg.NumPlayers < 2 || cfg.NumPlayers > len(ticTacToeSymbols) {
		return nil, fmt.Errorf("tic-tac-toe supports 2 to %d players, got %d", len(ticTacToeSymbols), cfg.NumPlayers)
	}
	if cfg.MaxMoves <= 0 {
		cfg.MaxMoves = 50
	}
	return &TicTacToe{
		config:  cfg,
		board:   newBoard(cfg.BoardSize, cfg.BoardSize),
		symbols: append([]Symbol(nil), ticTacToeSymbols[:cfg.NumPlayers]...),
	}, nil
}

func (g *TicTacToe) Kind() string { return KindTicTacToe }

func (g *TicTacToe) MakeMove(m Move, player Symbol) (Move, error) {
	if over, _ := g.IsGameOver(); over {
		return m, ErrGameOver
	}
	if !g.IsValidMove(m, player) {
		return m, fmt.Errorf("%w: %s", ErrInvalidMove, m)
	}
	g.board[m.Row][m.Col] = player
	g.moveCount++
	return m, nil
}

func (g *TicTacToe) IsValidMove(m Move, player Symbol) bool {
	n := g.config.BoardSize
	if m.Row < 0 || m.Row >= n || m.Col < 0 || m.Col >= n {
		return false
	}
	return g.board[m.Row][m.Col] == Empty
}

func (g *TicTacToe) IsGameOver() (bool, Symbol) {
	for _, s := range g.symbols {
		if hasRun(g.board, s, g.config.WinLength) {
			return true, s
		}
	}
	if g.moveCount >= g.config.BoardSize*g.config.BoardSize {
		return true, ""
	}
	return false, ""
}

func (g *TicTacToe) State() Board { return g.board.Clone() }

// ValidMoves lists empty cells in row-major order.
func (g *TicTacToe) ValidMoves(player Symbol) []Move {
	var moves []Move
	for r := range g.board {
		for c := range g.board[r] {
			if g.board[r][c] == Empty {
				moves = append(moves, Move{Row: r, Col: c})
			}
		}
	}
	return moves
}

func (g *TicTacToe) Copy() Game {
	return &TicTacToe{
		config:    g.config,
		board:     g.board.Clone(),
		moveCount: g.moveCount,
		symbols:   append([]Symbol(nil), g.symbols...),
	}
}

// Display renders the board with column indices and row labels:
//
//	   0   1   2
//	  -----------
//	0| X | O |   |
func (g *TicTacToe) Display() string {
	n := g.config.BoardSize
	idx := make([]string, n)
	for i := range idx {
		idx[i] = strconv.Itoa(i)
	}
	separator := "  " + strings.Repeat("-", 4*n-1)

	lines := []string{"   " + strings.Join(idx, "   "), separator}
	for i, row := range g.board {
		cells := make([]string, len(row))
		for j, cell := range row {
			cells[j] = string(cell)
		}
		lines = append(lines, fmt.Sprintf("%d| %s |", i, strings.Join(cells, " | ")), separator)
	}
	return strings.Join(lines, "\n")
}

func (g *TicTacToe) Config() Config { return g.config }

func (g *TicTacToe) Symbols() []Symbol { return append([]Symbol(nil), g.symbols...) }

func (g *TicTacToe) MoveCount() int { return g.moveCount }
