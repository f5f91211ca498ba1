package game

import (
	"fmt"
	"strconv"
	"strings"
)

// KindConnectFour is the registry name of connect four.
const KindConnectFour = "connect4"

var connectFourSymbols = []Symbol{"R", "Y", "B", "G"}

// DefaultConnectFourConfig is the classic 7 wide, 6 high board with four to win.
func DefaultConnectFourConfig() Config {
	return Config{
		BoardSize:  7,
		WinLength:  4,
		NumPlayers: 2,
		MaxMoves:   42,
		Extra:      map[string]any{"height": 6},
	}
}

// ConnectFour drops pieces into columns. BoardSize is the width and
// Extra["height"] the number of rows.
type ConnectFour struct {
	config    Config
	width     int
	height    int
	board     Board
	moveCount int
	symbols   []Symbol
}

// NewConnectFour validates cfg and returns an empty board.
func NewConnectFour(cfg Config) (*ConnectFour, error) {
	height := cfg.IntExtra("height", 6)
	if cfg.BoardSize < 1 || height < 1 {
		return nil, fmt.Errorf("connect four board must be at least 1x1, got %dx%d", cfg.BoardSize, height)
	}
	longest := max(cfg.BoardSize, height)
	if cfg.WinLength < 1 || cfg.WinLength > longest {
		return nil, fmt.Errorf("win length must be between 1 and %d, got %d", longest, cfg.WinLength)
	}
	if cfg.NumPlayers < 2 || cfg.NumPlayers > len(connectFourSymbols) {
		return nil, fmt.Errorf("connect four supports 2 to %d players, got %d", len(connectFourSymbols), cfg.NumPlayers)
	}
	if cfg.MaxMoves <= 0 {
		cfg.MaxMoves = cfg.BoardSize * height
	}
	return &ConnectFour{
		config:  cfg,
		width:   cfg.BoardSize,
		height:  height,
		board:   newBoard(height, cfg.BoardSize),
		symbols: append([]Symbol(nil), connectFourSymbols[:cfg.NumPlayers]...),
	}, nil
}

func (g *ConnectFour) Kind() string { return KindConnectFour }

// MakeMove drops a piece into m.Col and reports the landing cell.
func (g *ConnectFour) MakeMove(m Move, player Symbol) (Move, error) {
	if over, _ := g.IsGameOver(); over {
		return m, ErrGameOver
	}
	if !g.IsValidMove(m, player) {
		return m, fmt.Errorf("%w: column %d", ErrInvalidMove, m.Col)
	}
	row := g.landingRow(m.Col)
	g.board[row][m.Col] = player
	g.moveCount++
	return Move{Row: row, Col: m.Col}, nil
}

func (g *ConnectFour) IsValidMove(m Move, player Symbol) bool {
	if m.Col < 0 || m.Col >= g.width {
		return false
	}
	return g.board[0][m.Col] == Empty
}

func (g *ConnectFour) IsGameOver() (bool, Symbol) {
	for _, s := range g.symbols {
		if hasRun(g.board, s, g.config.WinLength) {
			return true, s
		}
	}
	if g.moveCount >= g.width*g.height {
		return true, ""
	}
	return false, ""
}

func (g *ConnectFour) State() Board { return g.board.Clone() }

// ValidMoves lists open columns left to right, each with its landing row.
func (g *ConnectFour) ValidMoves(player Symbol) []Move {
	var moves []Move
	for c := 0; c < g.width; c++ {
		if g.board[0][c] == Empty {
			moves = append(moves, Move{Row: g.landingRow(c), Col: c})
		}
	}
	return moves
}

func (g *ConnectFour) Copy() Game {
	return &ConnectFour{
		config:    g.config,
		width:     g.width,
		height:    g.height,
		board:     g.board.Clone(),
		moveCount: g.moveCount,
		symbols:   append([]Symbol(nil), g.symbols...),
	}
}

// Display renders the board top row first, "." for empty cells.
func (g *ConnectFour) Display() string {
	idx := make([]string, g.width)
	for i := range idx {
		idx[i] = strconv.Itoa(i)
	}
	separator := " +" + strings.Repeat("-", 2*g.width-1) + "+"

	lines := []string{"  " + strings.Join(idx, " "), separator}
	for _, row := range g.board {
		cells := make([]string, len(row))
		for j, cell := range row {
			if cell == Empty {
				cells[j] = "."
			} else {
				cells[j] = string(cell)
			}
		}
		lines = append(lines, " |"+strings.Join(cells, "|")+"|")
	}
	lines = append(lines, separator)
	return strings.Join(lines, "\n")
}

// Config returns the configuration with width and height in Extra.
func (g *ConnectFour) Config() Config {
	cfg := g.config
	cfg.Extra = make(map[string]any, len(g.config.Extra)+2)
	for k, v := range g.config.Extra {
		cfg.Extra[k] = v
	}
	cfg.Extra["width"] = g.width
	cfg.Extra["height"] = g.height
	return cfg
}

func (g *ConnectFour) Symbols() []Symbol { return append([]Symbol(nil), g.symbols...) }

func (g *ConnectFour) MoveCount() int { return g.moveCount }

func (g *ConnectFour) landingRow(col int) int {
	for r := g.height - 1; r >= 0; r-- {
		if g.board[r][col] == Empty {
			return r
		}
	}
	return -1
}
