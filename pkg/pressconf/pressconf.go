// Package pressconf simulates a press conference: a spokesperson takes
// questions from biased journalists, then a note-taker and a summarizer
// write up the event.
package pressconf

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/agent-protocol/agent-arena/pkg/agents"
	"github.com/agent-protocol/agent-arena/pkg/core"
	"github.com/agent-protocol/agent-arena/pkg/records"
)

// Files written to each run directory.
const (
	TranscriptFile = "transcript.jsonl"
	MetadataFile   = "metadata.json"
	MinutesFile    = "minutes.txt"
	SummaryFile    = "summary.txt"
)

// Transcript entry types.
const (
	EventStart  = "conference_start"
	TypeOpening = "opening_statement"
	TypeQ       = "question"
	TypeA       = "answer"
	TypeMinutes = "minutes"
	TypeSummary = "summary"
)

// Biases are assigned to journalists in turn when none is given.
var Biases = []string{"left-leaning", "right-leaning", "neutral"}

// Journalist is one member of the press.
type Journalist struct {
	Model string `json:"model" yaml:"model"`
	Bias  string `json:"bias" yaml:"bias"`
}

// Config selects the event, the journalists and every agent's model.
type Config struct {
	EventKey          string       `json:"event_key" yaml:"event_key"`
	Journalists       []Journalist `json:"journalists" yaml:"journalists"`
	SpokespersonModel string       `json:"spokesperson_model" yaml:"spokesperson_model"`
	NoteTakerModel    string       `json:"notetaker_model" yaml:"notetaker_model"`
	SummarizerModel   string       `json:"summarizer_model" yaml:"summarizer_model"`
	Rounds            int          `json:"rounds" yaml:"rounds"`
	Temperature       float32      `json:"temp" yaml:"temp"`
	Seed              int          `json:"seed" yaml:"seed"`
}

// NewJournalists builds n journalists on model with rotating biases.
func NewJournalists(n int, model string) []Journalist {
	out := make([]Journalist, n)
	for i := range out {
		out[i] = Journalist{Model: model, Bias: Biases[i%len(Biases)]}
	}
	return out
}

// DefaultConfig returns four journalists and one round on phi4.
func DefaultConfig() Config {
	return Config{
		EventKey:          "tech_product_launch",
		Journalists:       NewJournalists(4, "phi4"),
		SpokespersonModel: "phi4",
		NoteTakerModel:    "phi4",
		SummarizerModel:   "phi4",
		Rounds:            1,
		Temperature:       0.7,
		Seed:              42,
	}
}

// Validate checks the config can run.
func (c Config) Validate() error {
	switch {
	case len(c.Journalists) == 0:
		return fmt.Errorf("at least one journalist is required")
	case c.Rounds < 1:
		return fmt.Errorf("rounds must be at least 1, got %d", c.Rounds)
	case c.Temperature < 0 || c.Temperature > 2:
		return fmt.Errorf("temperature must be between 0 and 2")
	case c.SpokespersonModel == "" || c.NoteTakerModel == "" || c.SummarizerModel == "":
		return fmt.Errorf("spokesperson, note-taker and summarizer models are required")
	}
	for i, j := range c.Journalists {
		if j.Model == "" || j.Bias == "" {
			return fmt.Errorf("journalist %d needs a model and a bias", i)
		}
	}
	return nil
}

// Entry is one line of transcript.jsonl.
type Entry struct {
	Timestamp    time.Time `json:"timestamp"`
	Event        string    `json:"event,omitempty"`
	Config       *Config   `json:"config,omitempty"`
	EventDetails *Event    `json:"event_details,omitempty"`
	Role         string    `json:"role,omitempty"`
	Bias         string    `json:"bias,omitempty"`
	Model        string    `json:"model,omitempty"`
	Message      string    `json:"message,omitempty"`
	Type         string    `json:"type,omitempty"`
}

// Metadata is written to metadata.json.
type Metadata struct {
	RunID  string `json:"run_id"`
	Config Config `json:"config"`
	Event  Event  `json:"event"`
	Timing struct {
		DurationSeconds float64 `json:"duration_seconds"`
	} `json:"timing"`
	Files map[string]string `json:"files"`
}

// Result is a finished press conference.
type Result struct {
	RunID      string
	Dir        string
	Transcript []Entry
	Minutes    string
	Summary    string
}

// FormatTranscript renders "Role: message" blocks separated by blank lines.
func FormatTranscript(entries []Entry) string {
	var parts []string
	for _, e := range entries {
		if e.Event != "" {
			continue
		}
		parts = append(parts, e.Role+": "+e.Message)
	}
	return strings.Join(parts, "\n\n")
}

// Conference runs press conferences through one connection.
type Conference struct {
	conn core.LLMConnection
	out  io.Writer
	now  func() time.Time
}

// New creates a conference runner printing progress to out.
func New(conn core.LLMConnection, out io.Writer) *Conference {
	if out == nil {
		out = io.Discard
	}
	return &Conference{conn: conn, out: out, now: time.Now}
}

// Run holds the conference and writes its files under baseDir.
func (c *Conference) Run(ctx context.Context, cfg Config, event Event, baseDir string) (*Result, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	start := c.now()
	dir := filepath.Join(baseDir, fmt.Sprintf("%s_%s_%djournalists", start.Format("20060102_150405"), event.Key, len(cfg.Journalists)))
	log, err := records.Create(filepath.Join(dir, TranscriptFile), false)
	if err != nil {
		return nil, err
	}
	defer log.Close()

	res := &Result{RunID: uuid.NewString(), Dir: dir}
	write := func(e Entry) error {
		e.Timestamp = c.now().UTC()
		if e.Event == "" {
			res.Transcript = append(res.Transcript, e)
		}
		return log.Write(e)
	}
	if err := write(Entry{Event: EventStart, Config: &cfg, EventDetails: &event}); err != nil {
		return nil, err
	}

	newAgent := func(name, model string, seed int) *agents.ChatAgent {
		return agents.NewChatAgent(name, "", c.conn, agents.ChatAgentConfig{Model: model, Temperature: cfg.Temperature, Seed: seed})
	}
	ask := func(a *agents.ChatAgent, prompt string) string {
		text, _ := a.RespondWithRetry(ctx, prompt, fmt.Sprintf("Agent using model %s encountered an error.", a.Model()))
		return text
	}
	spokesperson := newAgent("Spokesperson", cfg.SpokespersonModel, cfg.Seed)
	journalists := make([]*agents.ChatAgent, len(cfg.Journalists))
	for i, j := range cfg.Journalists {
		journalists[i] = newAgent(fmt.Sprintf("Journalist %d", i), j.Model, cfg.Seed+i+1)
	}
	noteTaker := newAgent("Note-Taker", cfg.NoteTakerModel, cfg.Seed+100)
	summarizer := newAgent("Summarizer", cfg.SummarizerModel, cfg.Seed+200)

	rule := strings.Repeat("=", 60)
	fmt.Fprintf(c.out, "\n%s\nStarting Press Conference: %s\n%s\n\n", rule, event.Title, rule)

	fmt.Fprintln(c.out, "--- Spokesperson's Opening Statement ---")
	opening := ask(spokesperson, OpeningPrompt(event.Details))
	fmt.Fprintln(c.out, opening)
	if err := write(Entry{Role: "Spokesperson", Message: opening, Type: TypeOpening}); err != nil {
		return nil, err
	}

	for r := 0; r < cfg.Rounds; r++ {
		fmt.Fprintf(c.out, "\n--- Question Round %d ---\n", r+1)
		for i, j := range cfg.Journalists {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			fmt.Fprintf(c.out, "\nJournalist %d (%s, %s) is asking...\n", i, j.Bias, j.Model)
			question := ask(journalists[i], QuestionPrompt(j.Bias, FormatTranscript(res.Transcript)))
			fmt.Fprintf(c.out, "Question: %s\n", question)
			if err := write(Entry{Role: fmt.Sprintf("Journalist %d", i), Bias: j.Bias, Model: j.Model, Message: question, Type: TypeQ}); err != nil {
				return nil, err
			}

			fmt.Fprintln(c.out, "\nSpokesperson is responding...")
			answer := ask(spokesperson, ResponsePrompt(event.Details, FormatTranscript(res.Transcript), question))
			fmt.Fprintf(c.out, "Response: %s\n", answer)
			if err := write(Entry{Role: "Spokesperson", Message: answer, Type: TypeA}); err != nil {
				return nil, err
			}
		}
	}

	fmt.Fprintf(c.out, "\n%s\n--- Generating Meeting Minutes ---\n", rule)
	res.Minutes = ask(noteTaker, MinutesPrompt(FormatTranscript(res.Transcript)))
	fmt.Fprintln(c.out, res.Minutes)
	if err := write(Entry{Role: "Note-Taker", Message: res.Minutes, Type: TypeMinutes}); err != nil {
		return nil, err
	}
	if err := os.WriteFile(filepath.Join(dir, MinutesFile), []byte(res.Minutes), 0644); err != nil {
		return nil, fmt.Errorf("failed to write minutes: %w", err)
	}

	fmt.Fprintf(c.out, "\n%s\n--- Generating Final Summary ---\n", rule)
	res.Summary = ask(summarizer, SummaryPrompt(res.Minutes))
	fmt.Fprintln(c.out, res.Summary)
	if err := write(Entry{Role: "Summarizer", Message: res.Summary, Type: TypeSummary}); err != nil {
		return nil, err
	}
	if err := os.WriteFile(filepath.Join(dir, SummaryFile), []byte(res.Summary), 0644); err != nil {
		return nil, fmt.Errorf("failed to write summary: %w", err)
	}

	meta := Metadata{
		RunID:  res.RunID,
		Config: cfg,
		Event:  event,
		Files: map[string]string{
			"transcript": TranscriptFile,
			"metadata":   MetadataFile,
			"minutes":    MinutesFile,
			"summary":    SummaryFile,
		},
	}
	meta.Timing.DurationSeconds = float64(c.now().Sub(start).Milliseconds()) / 1000
	if err := records.SaveJSON(filepath.Join(dir, MetadataFile), meta); err != nil {
		return nil, err
	}

	fmt.Fprintf(c.out, "\n%s\nPress conference finished. Results saved in: %s\n", rule, dir)
	return res, nil
}

// LoadTranscript reads a run's transcript.jsonl.
func LoadTranscript(dir string) ([]Entry, error) {
	return records.ReadLines[Entry](filepath.Join(dir, TranscriptFile))
}
