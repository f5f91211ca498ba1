// Package game defines the turn-based game interface used by the tournament
// engine, together with configurable tic-tac-toe and connect four rules.
package game

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Symbol marks a player's pieces on the board. Empty is the free cell.
type Symbol string

// Empty is the symbol of an unoccupied cell.
const Empty Symbol = " "

var (
	// ErrInvalidMove is returned by MakeMove for out of range or occupied cells.
	ErrInvalidMove = errors.New("invalid move")
	// ErrGameOver is returned by MakeMove once the game has ended.
	ErrGameOver = errors.New("game is over")
	// ErrUnknownGame is returned by New for an unregistered game kind.
	ErrUnknownGame = errors.New("unknown game")
)

// Move is a board coordinate. Column-drop games only read Col.
type Move struct {
	Row int `json:"row"`
	Col int `json:"col"`
}

func (m Move) String() string {
	return fmt.Sprintf("(%d, %d)", m.Row, m.Col)
}

// Board is a row-major grid of symbols.
type Board [][]Symbol

// Clone returns a deep copy of the board.
func (b Board) Clone() Board {
	out := make(Board, len(b))
	for i, row := range b {
		out[i] = append([]Symbol(nil), row...)
	}
	return out
}

// Rows renders the board as strings, one per row.
func (b Board) Rows() []string {
	out := make([]string, len(b))
	for i, row := range b {
		var sb strings.Builder
		for _, cell := range row {
			sb.WriteString(string(cell))
		}
		out[i] = sb.String()
	}
	return out
}

// Game is a turn-based board game for two or more players.
// The caller chooses whose turn it is and passes that player's symbol.
type Game interface {
	// Kind returns the registry name of the game.
	Kind() string
	// MakeMove places a piece for player. It returns the cell actually
	// occupied, which differs from m for column-drop games.
	MakeMove(m Move, player Symbol) (Move, error)
	IsValidMove(m Move, player Symbol) bool
	// IsGameOver reports whether the game ended and the winning symbol.
	// A finished game with an empty winner is a draw.
	IsGameOver() (bool, Symbol)
	State() Board
	ValidMoves(player Symbol) []Move
	Copy() Game
	Display() string
	Config() Config
	// Symbols lists the player symbols in turn order.
	Symbols() []Symbol
	MoveCount() int
}

// Config holds the parameters shared by all games. Extra carries
// game-specific settings such as the connect four height.
type Config struct {
	BoardSize  int            `json:"board_size" yaml:"board_size"`
	WinLength  int            `json:"win_length" yaml:"win_length"`
	NumPlayers int            `json:"num_players" yaml:"num_players"`
	MaxMoves   int            `json:"max_moves" yaml:"max_moves"`
	Extra      map[string]any `json:"extra,omitempty" yaml:"extra,omitempty"`
}

// DefaultConfig is standard 3x3 tic-tac-toe for two players.
func DefaultConfig() Config {
	return Config{BoardSize: 3, WinLength: 3, NumPlayers: 2, MaxMoves: 50}
}

// ToMap flattens the config, merging Extra into the top level.
func (c Config) ToMap() map[string]any {
	out := map[string]any{
		"board_size":  c.BoardSize,
		"win_length":  c.WinLength,
		"num_players": c.NumPlayers,
		"max_moves":   c.MaxMoves,
	}
	for k, v := range c.Extra {
		out[k] = v
	}
	return out
}

// IntExtra reads an integer from Extra, accepting the numeric types JSON and
// YAML decoders produce.
func (c Config) IntExtra(key string, def int) int {
	switch v := c.Extra[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return def
	}
}

// Factory builds a fresh game for cfg.
type Factory func(cfg Config) (Game, error)

var registry = map[string]Factory{}

// Register adds a game kind to the registry.
func Register(kind string, f Factory) {
	registry[kind] = f
}

// New builds a game of the given kind.
func New(kind string, cfg Config) (Game, error) {
	f, ok := registry[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %q (available: %s)", ErrUnknownGame, kind, strings.Join(Kinds(), ", "))
	}
	return f(cfg)
}

// Kinds lists the registered game kinds in sorted order.
func Kinds() []string {
	kinds := make([]string, 0, len(registry))
	for k := range registry {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return kinds
}

func init() {
	Register(KindTicTacToe, func(cfg Config) (Game, error) { return NewTicTacToe(cfg) })
	Register(KindConnectFour, func(cfg Config) (Game, error) { return NewConnectFour(cfg) })
}

// hasRun reports whether player owns winLength consecutive cells starting
// anywhere on the board in any of the four line directions.
func hasRun(board Board, player Symbol, winLength int) bool {
	rows := len(board)
	if rows == 0 || winLength <= 0 {
		return false
	}
	cols := len(board[0])
	dirs := [4][2]int{{0, 1}, {1, 0}, {1, 1}, {1, -1}}

	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			if board[r][c] != player {
				continue
			}
			for _, d := range dirs {
				endR := r + d[0]*(winLength-1)
				endC := c + d[1]*(winLength-1)
				if endR < 0 || endR >= rows || endC < 0 || endC >= cols {
					continue
				}
				n := 1
				for n < winLength && board[r+d[0]*n][c+d[1]*n] == player {
					n++
				}
				if n == winLength {
					return true
				}
			}
		}
	}
	return false
}

func newBoard(rows, cols int) Board {
	b := make(Board, rows)
	for i := range b {
		b[i] = make([]Symbol, cols)
		for j := range b[i] {
			b[i][j] = Empty
		}
	}
	return b
}
