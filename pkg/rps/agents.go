package rps

import (
	"context"
	"fmt"
	"math/rand/v2"
	"strings"

	"github.com/agent-protocol/agent-arena/pkg/agents"
	"github.com/agent-protocol/agent-arena/pkg/core"
)

// Agent kinds accepted by NewAgent.
const (
	KindLLM     = "llm"
	KindRandom  = "random"
	KindCounter = "counter"
)

// Agent chooses a move given both players' history in the current match.
type Agent interface {
	Name() string
	Model() string
	Kind() string
	Temperature() float32
	MakeMove(ctx context.Context, round int, opponentHistory, ownHistory []Move) (Move, error)
	Strategy() string
}

// AgentConfig describes an agent to build.
type AgentConfig struct {
	Kind        string
	Name        string
	Model       string
	Temperature float32
	Seed        int
}

// NewAgent builds an agent of the configured kind. LLM agents need conn.
func NewAgent(cfg AgentConfig, conn core.LLMConnection) (Agent, error) {
	rng := rand.New(rand.NewPCG(uint64(cfg.Seed), uint64(cfg.Seed)^0x9e3779b97f4a7c15))
	switch cfg.Kind {
	case KindRandom:
		return &RandomAgent{name: nameOr(cfg.Name, "Random"), rng: rng}, nil
	case KindCounter:
		return &CounterAgent{name: nameOr(cfg.Name, "Counter"), rng: rng}, nil
	case KindLLM, "":
		if conn == nil {
			return nil, fmt.Errorf("llm agent %s needs a connection", cfg.Model)
		}
		name := nameOr(cfg.Name, cfg.Model)
		chat := agents.NewChatAgent(name, "", conn, agents.ChatAgentConfig{
			Model:       cfg.Model,
			Temperature: cfg.Temperature,
			Seed:        cfg.Seed,
			Tuned:       true,
		})
		return &LLMAgent{name: name, chat: chat, rng: rng}, nil
	default:
		return nil, fmt.Errorf("unknown agent kind %q", cfg.Kind)
	}
}

func nameOr(name, def string) string {
	if name == "" {
		return def
	}
	return name
}

// LLMAgent asks a model for each move. The seed for round r is seed+r.
type LLMAgent struct {
	name string
	chat *agents.ChatAgent
	rng  *rand.Rand
}

func (a *LLMAgent) Name() string         { return a.name }
func (a *LLMAgent) Model() string        { return a.chat.Model() }
func (a *LLMAgent) Kind() string         { return KindLLM }
func (a *LLMAgent) Temperature() float32 { return a.chat.Temperature() }

func (a *LLMAgent) MakeMove(ctx context.Context, round int, opponentHistory, ownHistory []Move) (Move, error) {
	prompt := BuildPrompt(a.name, round, opponentHistory, ownHistory)
	text, err := a.chat.RespondWith(ctx, prompt, a.chat.Seed()+round, nil)
	if err != nil {
		return "", err
	}
	return ParseResponse(text, a.rng), nil
}

func (a *LLMAgent) Strategy() string {
	return fmt.Sprintf("%s reads the opponent's history at temperature %.1f", a.name, a.chat.Temperature())
}

// BuildPrompt renders the per-round prompt, including the match history
// and the opponent's last three moves once there are at least two.
func BuildPrompt(name string, round int, opponentHistory, ownHistory []Move) string {
	lines := []string{
		fmt.Sprintf("You are playing Rock Paper Scissors as '%s'.", name),
		fmt.Sprintf("This is round %d.", round),
		"",
		"Rules:",
		"- Rock beats Scissors",
		"- Paper beats Rock",
		"- Scissors beats Paper",
		"- Same moves result in a draw",
		"",
	}

	if len(opponentHistory) > 0 && len(ownHistory) > 0 {
		lines = append(lines,
			"Game history:",
			fmt.Sprintf("Your previous moves: %s", strings.Join(moveStrings(ownHistory), ", ")),
			fmt.Sprintf("Opponent's previous moves: %s", strings.Join(moveStrings(opponentHistory), ", ")),
			"",
		)
		if len(opponentHistory) >= 2 {
			recent := opponentHistory[max(0, len(opponentHistory)-3):]
			lines = append(lines, "Opponent's recent pattern: "+strings.Join(moveStrings(recent), " -> "), "")
		}
	}

	lines = append(lines,
		"Choose your move for this round. Respond with ONLY one of these words:",
		"- rock",
		"- paper",
		"- scissors",
		"",
		"Your move:",
	)
	return strings.Join(lines, "\n")
}

var responseWords = []struct {
	word string
	move Move
}{
	{"rock", Rock},
	{"paper", Paper},
	{"scissors", Scissors},
	{"scissor", Scissors},
	{"stone", Rock},
}

// ParseResponse extracts a move from free text: an exact alias, then the
// first move word found, then a lone r/p/s letter, then a random move.
func ParseResponse(text string, rng *rand.Rand) Move {
	text = strings.ToLower(strings.TrimSpace(text))
	if m, err := ParseMove(text); err == nil {
		return m
	}
	for _, w := range responseWords {
		if strings.Contains(text, w.word) {
			return w.move
		}
	}

	hasR, hasP, hasS := strings.Contains(text, "r"), strings.Contains(text, "p"), strings.Contains(text, "s")
	switch {
	case hasR && !hasP && !hasS:
		return Rock
	case hasP && !hasR && !hasS:
		return Paper
	case hasS && !hasR && !hasP:
		return Scissors
	}
	return Moves[rng.IntN(len(Moves))]
}

// RandomAgent plays uniformly at random.
type RandomAgent struct {
	name string
	rng  *rand.Rand
}

func (a *RandomAgent) Name() string         { return a.name }
func (a *RandomAgent) Model() string        { return KindRandom }
func (a *RandomAgent) Kind() string         { return KindRandom }
func (a *RandomAgent) Temperature() float32 { return 0 }

func (a *RandomAgent) MakeMove(context.Context, int, []Move, []Move) (Move, error) {
	return Moves[a.rng.IntN(len(Moves))], nil
}

func (a *RandomAgent) Strategy() string { return a.name + " uses pure random strategy" }

// CounterAgent beats the opponent's most frequent move so far, preferring
// rock, then paper, then scissors on ties.
type CounterAgent struct {
	name string
	rng  *rand.Rand
}

func (a *CounterAgent) Name() string         { return a.name }
func (a *CounterAgent) Model() string        { return KindCounter }
func (a *CounterAgent) Kind() string         { return KindCounter }
func (a *CounterAgent) Temperature() float32 { return 0 }

func (a *CounterAgent) MakeMove(_ context.Context, _ int, opponentHistory, _ []Move) (Move, error) {
	if len(opponentHistory) == 0 {
		return Moves[a.rng.IntN(len(Moves))], nil
	}
	counts := frequencies(opponentHistory)
	best := Rock
	for _, m := range Moves {
		if counts[m] > counts[best] {
			best = m
		}
	}
	return CounterTo(best), nil
}

func (a *CounterAgent) Strategy() string { return a.name + " counters opponent's most frequent move" }

func frequencies(moves []Move) map[Move]int {
	counts := map[Move]int{Rock: 0, Paper: 0, Scissors: 0}
	for _, m := range moves {
		counts[m]++
	}
	return counts
}
