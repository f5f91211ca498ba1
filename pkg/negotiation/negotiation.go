// Package negotiation runs the buyer/seller demos: a role-played
// negotiation over a catalog scenario, and a numeric bargain with a
// mediator.
package negotiation

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
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
	SummaryFile    = "summary.md"
	MetadataFile   = "metadata.json"
)

// Transcript entry kinds.
const (
	EventStart   = "negotiation_start"
	EventDeal    = "deal_made"
	EventNoDeal  = "no_deal"
	TypeTurn     = "negotiation_turn"
	TypeAnalysis = "analysis"
)

const agentErrorText = "Agent encountered an error."

var priceRe = regexp.MustCompile(`(?i)Price: \$?(\d+\.?\d*)`)

// ParsePrice finds the "Price: $XX" line. It returns the price and the
// message with the price line removed.
func ParsePrice(text string) (float64, string, bool) {
	loc := priceRe.FindStringSubmatchIndex(text)
	if loc == nil {
		return 0, text, false
	}
	price, err := strconv.ParseFloat(text[loc[2]:loc[3]], 64)
	if err != nil {
		return 0, text, false
	}
	return price, strings.TrimSpace(text[:loc[0]]), true
}

// Config selects the scenario, models and sampling for a run.
type Config struct {
	ScenarioKey    string  `json:"scenario_key" yaml:"scenario_key"`
	Rounds         int     `json:"rounds" yaml:"rounds"`
	BuyerModel     string  `json:"buyer_model" yaml:"buyer_model"`
	SellerModel    string  `json:"seller_model" yaml:"seller_model"`
	ModeratorModel string  `json:"moderator_model" yaml:"moderator_model"`
	Temperature    float32 `json:"temp" yaml:"temp"`
	Seed           int     `json:"seed" yaml:"seed"`
}

// DefaultConfig mirrors the interactive defaults.
func DefaultConfig() Config {
	return Config{
		ScenarioKey:    "yard_sale_lamp",
		Rounds:         4,
		BuyerModel:     "phi3",
		SellerModel:    "phi3",
		ModeratorModel: "phi3",
		Temperature:    0.8,
		Seed:           42,
	}
}

// Validate rejects unusable settings.
func (c Config) Validate() error {
	if c.Rounds < 1 {
		return fmt.Errorf("rounds must be at least 1, got %d", c.Rounds)
	}
	if c.Temperature < 0 || c.Temperature > 2 {
		return fmt.Errorf("temperature must be between 0 and 2, got %.2f", c.Temperature)
	}
	if c.BuyerModel == "" || c.SellerModel == "" || c.ModeratorModel == "" {
		return fmt.Errorf("buyer, seller and moderator models are required")
	}
	return nil
}

// Entry is one line of transcript.jsonl.
type Entry struct {
	Timestamp time.Time `json:"timestamp"`
	Event     string    `json:"event,omitempty"`
	Type      string    `json:"type,omitempty"`
	Role      string    `json:"role,omitempty"`
	Message   string    `json:"message,omitempty"`
	Price     *float64  `json:"price,omitempty"`
	Config    *Config   `json:"config,omitempty"`
	Scenario  *Scenario `json:"scenario,omitempty"`
}

// Turn is one message of the negotiation.
type Turn struct {
	Role    string  `json:"role"`
	Message string  `json:"message"`
	Price   float64 `json:"price"`
}

// Outcome reports whether a deal was struck.
type Outcome struct {
	DealMade   bool    `json:"deal_made"`
	FinalPrice float64 `json:"final_price"`
}

// Metadata is written to metadata.json when a run ends.
type Metadata struct {
	RunID    string   `json:"run_id"`
	Config   Config   `json:"config"`
	Scenario Scenario `json:"scenario"`
	Outcome  Outcome  `json:"outcome"`
	Timing   struct {
		DurationSeconds float64 `json:"duration_seconds"`
	} `json:"timing"`
}

// Result is a finished negotiation.
type Result struct {
	RunID    string
	Dir      string
	Scenario Scenario
	Config   Config
	Turns    []Turn
	Outcome  Outcome
	Analysis string
	Duration time.Duration
}

// FormatHistory renders turns as "Role: message" lines.
func FormatHistory(turns []Turn) string {
	lines := make([]string, len(turns))
	for i, t := range turns {
		lines[i] = t.Role + ": " + t.Message
	}
	return strings.Join(lines, "\n")
}

// Negotiator runs scenario negotiations.
type Negotiator struct {
	conn core.LLMConnection
	out  io.Writer
	now  func() time.Time
}

// NewNegotiator creates a negotiator printing progress to out.
func NewNegotiator(conn core.LLMConnection, out io.Writer) *Negotiator {
	if out == nil {
		out = io.Discard
	}
	return &Negotiator{conn: conn, out: out, now: time.Now}
}

// Run plays up to cfg.Rounds seller/buyer exchanges, then asks the
// moderator for an analysis. A deal closes at the seller's price as soon
// as the buyer's offer reaches it.
func (n *Negotiator) Run(ctx context.Context, cfg Config, scenario Scenario, baseDir string) (*Result, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	start := n.now()
	dir := filepath.Join(baseDir, start.Format("20060102_150405")+"_"+scenario.Key)
	log, err := records.Create(filepath.Join(dir, TranscriptFile), false)
	if err != nil {
		return nil, err
	}
	defer log.Close()

	res := &Result{RunID: uuid.NewString(), Dir: dir, Scenario: scenario, Config: cfg}
	write := func(e Entry) error {
		e.Timestamp = n.now().UTC()
		return log.Write(e)
	}
	if err := write(Entry{Event: EventStart, Config: &cfg, Scenario: &scenario}); err != nil {
		return nil, err
	}

	buyer := agents.NewChatAgent("Buyer", "", n.conn, agents.ChatAgentConfig{Model: cfg.BuyerModel, Temperature: cfg.Temperature, Seed: cfg.Seed})
	seller := agents.NewChatAgent("Seller", "", n.conn, agents.ChatAgentConfig{Model: cfg.SellerModel, Temperature: cfg.Temperature, Seed: cfg.Seed + 1})
	moderator := agents.NewChatAgent("Moderator", "", n.conn, agents.ChatAgentConfig{Model: cfg.ModeratorModel, Temperature: cfg.Temperature, Seed: cfg.Seed + 2})

	rule := strings.Repeat("=", 60)
	fmt.Fprintf(n.out, "\n%s\nStarting Negotiation: '%s' at a %s\nListed Price: $%s\n%s\n\n",
		rule, scenario.ItemName, scenario.Name, FormatPrice(scenario.ListPrice), rule)

	lastBuyer, lastSeller := 0.0, scenario.ListPrice
	for i := 0; i < cfg.Rounds*2; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		history := FormatHistory(res.Turns)
		var turn Turn
		if i%2 == 0 {
			fmt.Fprintf(n.out, "\n--- Turn %d: Seller's Move ---\n", i/2+1)
			text, _ := seller.RespondWithRetry(ctx, SellerPrompt(scenario, history), agentErrorText)
			price, msg, ok := ParsePrice(text)
			if ok {
				lastSeller = price
			}
			turn = Turn{Role: "Seller", Message: msg, Price: lastSeller}
			fmt.Fprintf(n.out, "Seller says: %s\nSeller's Price: $%s\n", msg, FormatPrice(lastSeller))
		} else {
			fmt.Fprintf(n.out, "\n--- Turn %d: Buyer's Move ---\n", i/2+1)
			text, _ := buyer.RespondWithRetry(ctx, BuyerPrompt(scenario, history), agentErrorText)
			price, msg, ok := ParsePrice(text)
			if ok {
				lastBuyer = price
			}
			turn = Turn{Role: "Buyer", Message: msg, Price: lastBuyer}
			fmt.Fprintf(n.out, "Buyer says: %s\nBuyer's Offer: $%s\n", msg, FormatPrice(lastBuyer))
		}
		res.Turns = append(res.Turns, turn)
		price := turn.Price
		if err := write(Entry{Type: TypeTurn, Role: turn.Role, Message: turn.Message, Price: &price}); err != nil {
			return nil, err
		}

		if lastBuyer >= lastSeller {
			res.Outcome = Outcome{DealMade: true, FinalPrice: lastSeller}
			fmt.Fprintf(n.out, "\nDEAL! A deal was struck at $%s\n", FormatPrice(lastSeller))
			final := lastSeller
			if err := write(Entry{Event: EventDeal, Price: &final}); err != nil {
				return nil, err
			}
			break
		}
	}
	if !res.Outcome.DealMade {
		fmt.Fprintln(n.out, "\nNO DEAL! The negotiation ended without an agreement.")
		if err := write(Entry{Event: EventNoDeal}); err != nil {
			return nil, err
		}
	}

	fmt.Fprintf(n.out, "\n%s\n--- Moderator's Analysis ---\n", rule)
	res.Analysis, _ = moderator.RespondWithRetry(ctx, ModeratorPrompt(scenario, res.Outcome.FinalPrice, FormatHistory(res.Turns)), agentErrorText)
	fmt.Fprintln(n.out, res.Analysis)
	if err := write(Entry{Type: TypeAnalysis, Role: "Moderator", Message: res.Analysis}); err != nil {
		return nil, err
	}
	if err := os.WriteFile(filepath.Join(dir, SummaryFile), []byte(SummaryMarkdown(res)), 0644); err != nil {
		return nil, fmt.Errorf("failed to write summary: %w", err)
	}

	res.Duration = n.now().Sub(start)
	meta := Metadata{RunID: res.RunID, Config: cfg, Scenario: scenario, Outcome: res.Outcome}
	meta.Timing.DurationSeconds = float64(res.Duration.Milliseconds()) / 1000
	if err := records.SaveJSON(filepath.Join(dir, MetadataFile), meta); err != nil {
		return nil, err
	}

	fmt.Fprintf(n.out, "\n%s\nNegotiation finished. Results saved in: %s\n", rule, dir)
	return res, nil
}

// SummaryMarkdown renders summary.md.
func SummaryMarkdown(res *Result) string {
	outcome := "No Deal"
	if res.Outcome.DealMade {
		outcome = "Deal at $" + FormatPrice(res.Outcome.FinalPrice)
	}
	return fmt.Sprintf("# Negotiation Analysis\n\n**Outcome:** %s\n\n%s", outcome, res.Analysis)
}

// LoadTranscript reads a run's transcript.jsonl.
func LoadTranscript(dir string) ([]Entry, error) {
	return records.ReadLines[Entry](filepath.Join(dir, TranscriptFile))
}
