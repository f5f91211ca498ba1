package players

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/agent-protocol/agent-arena/pkg/agents"
	"github.com/agent-protocol/agent-arena/pkg/core"
	"github.com/agent-protocol/agent-arena/pkg/game"
)

// LLMPlayer asks a language model for each move and parses the reply.
type LLMPlayer struct {
	agent *agents.ChatAgent
}

// NewLLMPlayer creates an LLM-backed player named name.
func NewLLMPlayer(name string, conn core.LLMConnection, config agents.ChatAgentConfig) *LLMPlayer {
	return &LLMPlayer{agent: agents.NewChatAgent(name, "", conn, config)}
}

func (p *LLMPlayer) Name() string  { return p.agent.Name }
func (p *LLMPlayer) Model() string { return p.agent.Model() }

// ChooseMove prompts the model. Model errors are returned so the engine can
// substitute a valid move; unparseable replies fall back inside ParseMove.
func (p *LLMPlayer) ChooseMove(ctx context.Context, g game.Game, symbol game.Symbol) (game.Move, error) {
	reply, err := p.agent.Respond(ctx, BuildPrompt(g, symbol))
	if err != nil {
		return game.Move{}, err
	}
	return ParseMove(reply, g, symbol), nil
}

// BuildPrompt renders the move request for the game kind.
func BuildPrompt(g game.Game, symbol game.Symbol) string {
	switch g.Kind() {
	case game.KindTicTacToe:
		return ticTacToePrompt(g, symbol)
	case game.KindConnectFour:
		return connectFourPrompt(g, symbol)
	default:
		return genericPrompt(g, symbol)
	}
}

func ticTacToePrompt(g game.Game, symbol game.Symbol) string {
	cfg := g.Config()
	n := cfg.BoardSize
	var sb strings.Builder
	fmt.Fprintf(&sb, "You are playing Tic-Tac-Toe as player '%s'.\n\n", symbol)
	sb.WriteString("Board Configuration:\n")
	fmt.Fprintf(&sb, "- Board size: %dx%d\n", n, n)
	fmt.Fprintf(&sb, "- Win condition: %d in a row\n", cfg.WinLength)
	fmt.Fprintf(&sb, "- Your symbol: %s\n\n", symbol)
	fmt.Fprintf(&sb, "Current board (rows 0-%d, columns 0-%d):\n%s\n\n", n-1, n-1, g.Display())
	fmt.Fprintf(&sb, "Valid moves available: %s\n\n", formatMoves(g.ValidMoves(symbol), false))
	sb.WriteString("Make your move by responding with ONLY a JSON object in this exact format:\n")
	sb.WriteString("{\"row\": 0, \"col\": 1}\n\n")
	fmt.Fprintf(&sb, "Where row and col are integers from 0 to %d. Choose an empty cell (marked with ' ').\n\n", n-1)
	sb.WriteString("Strategic considerations:\n")
	fmt.Fprintf(&sb, "1. Try to get %d of your symbols in a row (horizontal, vertical, or diagonal)\n", cfg.WinLength)
	sb.WriteString("2. Block your opponent if they're close to winning\n")
	sb.WriteString("3. Take center positions when available\n")
	sb.WriteString("4. Create multiple winning opportunities when possible\n")
	return sb.String()
}

func connectFourPrompt(g game.Game, symbol game.Symbol) string {
	cfg := g.Config()
	width := cfg.IntExtra("width", cfg.BoardSize)
	var sb strings.Builder
	fmt.Fprintf(&sb, "You are playing Connect Four as player '%s'.\n\n", symbol)
	fmt.Fprintf(&sb, "The board has %d columns and %d rows. Pieces drop to the lowest empty cell of a column.\n", width, cfg.IntExtra("height", 6))
	fmt.Fprintf(&sb, "Connect %d of your pieces horizontally, vertically or diagonally to win.\n\n", cfg.WinLength)
	fmt.Fprintf(&sb, "Current board ('.' is empty):\n%s\n\n", g.Display())
	fmt.Fprintf(&sb, "Open columns: %s\n\n", formatMoves(g.ValidMoves(symbol), true))
	sb.WriteString("Respond with ONLY a JSON object in this exact format:\n")
	sb.WriteString("{\"col\": 3}\n\n")
	sb.WriteString("Block your opponent's threats and prefer central columns.\n")
	return sb.String()
}

func genericPrompt(g game.Game, symbol game.Symbol) string {
	cfgJSON, _ := json.Marshal(g.Config().ToMap())
	var sb strings.Builder
	fmt.Fprintf(&sb, "You are playing a game as player '%s'.\n\n", symbol)
	fmt.Fprintf(&sb, "Game Configuration: %s\n\n", cfgJSON)
	fmt.Fprintf(&sb, "Current game state:\n%s\n\n", g.Display())
	fmt.Fprintf(&sb, "Valid moves available: %s\n\n", formatMoves(g.ValidMoves(symbol), false))
	sb.WriteString("Make your move by responding with a JSON object representing your chosen move.\n")
	sb.WriteString("For coordinate-based games, use: {\"row\": 0, \"col\": 1}\n")
	return sb.String()
}

func formatMoves(moves []game.Move, columnsOnly bool) string {
	parts := make([]string, len(moves))
	for i, m := range moves {
		if columnsOnly {
			parts[i] = strconv.Itoa(m.Col)
		} else {
			parts[i] = m.String()
		}
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

var (
	jsonObjectRe  = regexp.MustCompile(`\{[^}]*\}`)
	integerRe     = regexp.MustCompile(`\b\d+\b`)
	coordPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)row[:\s]*(\d+).*col[:\s]*(\d+)`),
		regexp.MustCompile(`(\d+)[,\s]+(\d+)`),
		regexp.MustCompile(`\((\d+)[,\s]*(\d+)\)`),
	}
)

// ParseMove extracts a move from a model reply. It tries a JSON object
// first, then bare numbers, then coordinate patterns, and finally returns
// the first valid move (or the origin when none exist).
func ParseMove(reply string, g game.Game, symbol game.Symbol) game.Move {
	if g.Kind() == game.KindConnectFour {
		return parseColumn(reply, g, symbol)
	}

	n := g.Config().BoardSize
	inRange := func(r, c int) bool { return r >= 0 && r < n && c >= 0 && c < n }

	if obj := jsonObjectRe.FindString(reply); obj != "" {
		var data map[string]any
		if err := json.Unmarshal([]byte(obj), &data); err == nil {
			r, okR := intField(data, "row")
			c, okC := intField(data, "col")
			if okR && okC && inRange(r, c) {
				return game.Move{Row: r, Col: c}
			}
			if m, ok := moveField(data["move"]); ok && inRange(m.Row, m.Col) {
				return m
			}
		}
	}

	if nums := integerRe.FindAllString(reply, -1); len(nums) >= 2 {
		r, errR := strconv.Atoi(nums[0])
		c, errC := strconv.Atoi(nums[1])
		if errR == nil && errC == nil && inRange(r, c) {
			return game.Move{Row: r, Col: c}
		}
	}

	for _, re := range coordPatterns {
		if m := re.FindStringSubmatch(reply); m != nil {
			r, errR := strconv.Atoi(m[1])
			c, errC := strconv.Atoi(m[2])
			if errR == nil && errC == nil && inRange(r, c) {
				return game.Move{Row: r, Col: c}
			}
		}
	}

	return firstValid(g, symbol)
}

func parseColumn(reply string, g game.Game, symbol game.Symbol) game.Move {
	width := g.Config().BoardSize
	inRange := func(c int) bool { return c >= 0 && c < width }

	if obj := jsonObjectRe.FindString(reply); obj != "" {
		var data map[string]any
		if err := json.Unmarshal([]byte(obj), &data); err == nil {
			for _, key := range []string{"col", "column", "move"} {
				if c, ok := intField(data, key); ok && inRange(c) {
					return game.Move{Col: c}
				}
			}
		}
	}
	for _, s := range integerRe.FindAllString(reply, -1) {
		if c, err := strconv.Atoi(s); err == nil && inRange(c) {
			return game.Move{Col: c}
		}
	}
	return firstValid(g, symbol)
}

func firstValid(g game.Game, symbol game.Symbol) game.Move {
	if moves := g.ValidMoves(symbol); len(moves) > 0 {
		return moves[0]
	}
	return game.Move{}
}

func intField(data map[string]any, key string) (int, bool) {
	switch v := data[key].(type) {
	case float64:
		return int(v), true
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(v))
		return n, err == nil
	default:
		return 0, false
	}
}

// moveField accepts "move": [r, c] or "move": {"row": r, "col": c}.
func moveField(v any) (game.Move, bool) {
	switch mv := v.(type) {
	case []any:
		if len(mv) == 2 {
			r, okR := mv[0].(float64)
			c, okC := mv[1].(float64)
			if okR && okC {
				return game.Move{Row: int(r), Col: int(c)}, true
			}
		}
	case map[string]any:
		r, okR := intField(mv, "row")
		c, okC := intField(mv, "col")
		if okR && okC {
			return game.Move{Row: r, Col: c}, true
		}
	}
	return game.Move{}, false
}
