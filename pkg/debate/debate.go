// Package debate runs multi-agent debates judged by another model.
package debate

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/agent-protocol/agent-arena/pkg/agents"
	"github.com/agent-protocol/agent-arena/pkg/core"
	"github.com/agent-protocol/agent-arena/pkg/llm"
	"github.com/agent-protocol/agent-arena/pkg/records"
)

// Transcript entry kinds.
const (
	EventStart       = "debate_start"
	EventVerdict     = "verdict"
	TypeOpening      = "opening_statement"
	TypeResponse     = "debate_response"
	JudgeSeedOffset  = 1000
	judgeDefaultText = "Judge encountered an error and defaulted to Agent A."
)

// judgeLetters caps how many agents the judge can tell apart.
const judgeLetters = "ABCDEFGH"

// DefaultTopic is used when no topic is given.
const DefaultTopic = "The benefits and drawbacks of artificial intelligence in education"

// Config controls a debate.
type Config struct {
	Topic       string  `json:"topic" yaml:"topic"`
	NumAgents   int     `json:"num_agents" yaml:"num_agents"`
	Rounds      int     `json:"rounds" yaml:"rounds"`
	Model       string  `json:"model" yaml:"model"`
	Temperature float32 `json:"temperature" yaml:"temperature"`
	Seed        int     `json:"seed" yaml:"seed"`
	Output      string  `json:"output" yaml:"output"`
}

// DefaultConfig returns a three agent, two round debate.
func DefaultConfig() Config {
	return Config{
		Topic:       DefaultTopic,
		NumAgents:   3,
		Rounds:      2,
		Model:       "phi4:latest",
		Temperature: 0.7,
		Seed:        42,
		Output:      "debate_log.jsonl",
	}
}

// Validate checks agent count, rounds and temperature.
func (c Config) Validate() error {
	switch {
	case c.Topic == "":
		return fmt.Errorf("a topic is required")
	case c.NumAgents < 2 || c.NumAgents > len(judgeLetters):
		return fmt.Errorf("number of agents must be between 2 and %d, got %d", len(judgeLetters), c.NumAgents)
	case c.Rounds < 0:
		return fmt.Errorf("rounds must not be negative")
	case c.Temperature < 0 || c.Temperature > 2:
		return fmt.Errorf("temperature must be between 0 and 2")
	}
	return nil
}

// MetadataPath is where the run metadata is saved for a transcript path.
func MetadataPath(output string) string {
	return strings.TrimSuffix(output, filepath.Ext(output)) + "_metadata.json"
}

// Entry is one line of the debate transcript.
type Entry struct {
	Timestamp     time.Time `json:"timestamp"`
	Event         string    `json:"event,omitempty"`
	Topic         string    `json:"topic,omitempty"`
	NumAgents     int       `json:"num_agents,omitempty"`
	Rounds        *int      `json:"rounds,omitempty"`
	Model         string    `json:"model,omitempty"`
	Temperature   *float32  `json:"temperature,omitempty"`
	Seed          *int      `json:"seed,omitempty"`
	Round         *int      `json:"round,omitempty"`
	Agent         *int      `json:"agent,omitempty"`
	Message       string    `json:"message,omitempty"`
	Type          string    `json:"type,omitempty"`
	Winner        string    `json:"winner,omitempty"`
	Justification string    `json:"justification,omitempty"`
}

// Statement is one agent message.
type Statement struct {
	Round   int    `json:"round"`
	Agent   int    `json:"agent"`
	Message string `json:"message"`
	Type    string `json:"type"`
}

// Verdict is the judge's decision.
type Verdict struct {
	Winner        string `json:"winner"`
	WinnerAgent   int    `json:"winner_agent"`
	Justification string `json:"justification"`
	Defaulted     bool   `json:"defaulted,omitempty"`
}

// Metadata summarizes a finished debate.
type Metadata struct {
	RunID           string    `json:"run_id"`
	Config          Config    `json:"config"`
	StartTime       time.Time `json:"start_time"`
	EndTime         time.Time `json:"end_time"`
	DurationSeconds float64   `json:"duration_seconds"`
	Statements      int       `json:"statements"`
	FailedResponses int       `json:"failed_responses"`
	Verdict         Verdict   `json:"verdict"`
}

// Result is a finished debate.
type Result struct {
	RunID      string
	Statements []Statement
	Verdict    Verdict
	Metadata   Metadata
}

// Debate runs debates through one connection.
type Debate struct {
	conn core.LLMConnection
	out  io.Writer
}

// New creates a debate runner printing progress to out.
func New(conn core.LLMConnection, out io.Writer) *Debate {
	if out == nil {
		out = io.Discard
	}
	return &Debate{conn: conn, out: out}
}

// Run holds opening statements, then cfg.Rounds rounds where each agent
// answers the latest message of every other agent, then asks the judge.
func (d *Debate) Run(ctx context.Context, cfg Config) (*Result, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	start := time.Now().UTC()
	log, err := records.Create(cfg.Output, false)
	if err != nil {
		return nil, err
	}
	defer log.Close()
	write := func(e Entry) error {
		e.Timestamp = time.Now().UTC()
		return log.Write(e)
	}

	rounds, temp, seed := cfg.Rounds, cfg.Temperature, cfg.Seed
	if err := write(Entry{Event: EventStart, Topic: cfg.Topic, NumAgents: cfg.NumAgents, Rounds: &rounds, Model: cfg.Model, Temperature: &temp, Seed: &seed}); err != nil {
		return nil, err
	}

	debaters := make([]*agents.ChatAgent, cfg.NumAgents)
	for i := range debaters {
		debaters[i] = agents.NewChatAgent(fmt.Sprintf("Agent %d", i), "", d.conn, agents.ChatAgentConfig{
			Model: cfg.Model, Temperature: cfg.Temperature, Seed: cfg.Seed + i, Tuned: true,
		})
	}

	res := &Result{RunID: uuid.NewString()}
	failed := 0
	say := func(round, agent int, kind, prompt string) error {
		fallback := fmt.Sprintf("Agent %d encountered an error and cannot respond.", agent)
		text, ok := debaters[agent].RespondWithRetry(ctx, prompt, fallback)
		if !ok {
			failed++
		}
		res.Statements = append(res.Statements, Statement{Round: round, Agent: agent, Message: text, Type: kind})
		fmt.Fprintf(d.out, "Agent %d: %s\n\n", agent, preview(text, 200))
		return write(Entry{Round: &round, Agent: &agent, Message: text, Type: kind})
	}

	rule := strings.Repeat("=", 60)
	fmt.Fprintf(d.out, "Starting debate on topic: %s\nAgents: %d, Rounds: %d, Model: %s\n%s\n", cfg.Topic, cfg.NumAgents, cfg.Rounds, cfg.Model, rule)
	fmt.Fprintln(d.out, "OPENING STATEMENTS:")
	for i := range debaters {
		prompt := fmt.Sprintf("Please introduce your position on this topic: %s. Be clear and concise in your opening statement.", cfg.Topic)
		if err := say(0, i, TypeOpening, prompt); err != nil {
			return nil, err
		}
	}
	fmt.Fprintln(d.out, rule)

	for round := 1; round <= cfg.Rounds; round++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		fmt.Fprintf(d.out, "ROUND %d:\n", round)
		for i := range debaters {
			if err := say(round, i, TypeResponse, responsePrompt(round, i, cfg.Topic, res.Statements)); err != nil {
				return nil, err
			}
		}
		fmt.Fprintln(d.out, strings.Repeat("-", 40))
	}

	fmt.Fprintf(d.out, "%s\nJUDGING PHASE:\n", rule)
	res.Verdict = d.judge(ctx, cfg, res.Statements)
	if err := write(Entry{Event: EventVerdict, Winner: res.Verdict.Winner, Justification: res.Verdict.Justification}); err != nil {
		return nil, err
	}
	fmt.Fprintf(d.out, "WINNER: Agent %s\nJustification: %s\n", res.Verdict.Winner, res.Verdict.Justification)

	end := time.Now().UTC()
	res.Metadata = Metadata{
		RunID:           res.RunID,
		Config:          cfg,
		StartTime:       start,
		EndTime:         end,
		DurationSeconds: end.Sub(start).Seconds(),
		Statements:      len(res.Statements),
		FailedResponses: failed,
		Verdict:         res.Verdict,
	}
	if err := records.SaveJSON(MetadataPath(cfg.Output), res.Metadata); err != nil {
		return nil, err
	}
	fmt.Fprintf(d.out, "\nFull debate log saved to: %s\n", cfg.Output)
	return res, nil
}

func preview(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}

// latestByAgent returns the most recent message of every agent except skip.
func latestByAgent(statements []Statement, skip int) map[int]string {
	out := map[int]string{}
	for i := len(statements) - 1; i >= 0; i-- {
		s := statements[i]
		if s.Agent == skip {
			continue
		}
		if _, ok := out[s.Agent]; !ok {
			out[s.Agent] = s.Message
		}
	}
	return out
}

func sortedAgents(m map[int]string) []int {
	ids := make([]int, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

func responsePrompt(round, agent int, topic string, statements []Statement) string {
	latest := latestByAgent(statements, agent)
	if len(latest) == 0 {
		return fmt.Sprintf("Round %d: Continue the debate on %s. Present your arguments clearly.", round, topic)
	}
	parts := make([]string, 0, len(latest))
	for _, id := range sortedAgents(latest) {
		parts = append(parts, fmt.Sprintf("Agent %d: %s", id, latest[id]))
	}
	return fmt.Sprintf("Round %d: Respond to these statements from other agents:\n\n%s\n\nYour response:", round, strings.Join(parts, "\n\n"))
}

// JudgePrompt lists each agent's final argument under a letter.
func JudgePrompt(statements []Statement) (string, []int) {
	latest := latestByAgent(statements, -1)
	ids := sortedAgents(latest)
	var b strings.Builder
	b.WriteString("Based on the following debate, which agent made the strongest case?")
	for i, id := range ids {
		fmt.Fprintf(&b, "\n%s (Agent %d): %s", letter(i), id, latest[id])
	}
	letters := make([]string, 0, len(ids))
	for i := range ids {
		if i < len(judgeLetters) {
			letters = append(letters, letter(i))
		}
	}
	fmt.Fprintf(&b, "\nWhich agent (%s) made the strongest case? Provide your answer as a single letter followed by a brief justification.", strings.Join(letters, "/"))
	return b.String(), ids
}

func letter(i int) string {
	if i < len(judgeLetters) {
		return judgeLetters[i : i+1]
	}
	return fmt.Sprintf("Agent%d", i)
}

// ParseVerdict reads the judge's letter from a {"answer": "X"} object,
// falling back to the first character of the reply.
func ParseVerdict(text string) string {
	var parsed struct {
		Answer string `json:"answer"`
	}
	if err := json.Unmarshal([]byte(text), &parsed); err == nil {
		if parsed.Answer == "" {
			return "Unknown"
		}
		return parsed.Answer
	}
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return "A"
	}
	return strings.ToUpper(trimmed[:1])
}

func (d *Debate) judge(ctx context.Context, cfg Config, statements []Statement) Verdict {
	prompt, ids := JudgePrompt(statements)
	judge := agents.NewChatAgent("Judge", "", d.conn, agents.ChatAgentConfig{
		Model: cfg.Model, Temperature: cfg.Temperature, Seed: cfg.Seed + JudgeSeedOffset, Tuned: true,
	})
	format := llm.LetterSchema(min(len(ids), len(judgeLetters)))

	for attempt := 0; attempt < 2; attempt++ {
		text, err := judge.RespondWith(ctx, prompt, judge.Seed()+attempt, format)
		if err == nil {
			v := Verdict{Winner: ParseVerdict(text), Justification: text, WinnerAgent: -1}
			if i := strings.Index(judgeLetters, v.Winner); i >= 0 && len(v.Winner) == 1 && i < len(ids) {
				v.WinnerAgent = ids[i]
			}
			return v
		}
		if ctx.Err() != nil {
			break
		}
		slog.Warn("judge call failed", "model", cfg.Model, "attempt", attempt+1, "error", err)
	}
	return Verdict{Winner: "A", WinnerAgent: 0, Justification: judgeDefaultText, Defaulted: true}
}

// LoadTranscript reads a debate JSONL file.
func LoadTranscript(path string) ([]Entry, error) {
	return records.ReadLines[Entry](path)
}
