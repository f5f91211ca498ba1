package negotiation

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/agent-protocol/agent-arena/pkg/agents"
	"github.com/agent-protocol/agent-arena/pkg/core"
	"github.com/agent-protocol/agent-arena/pkg/records"
)

// RetrySeedOffset is added to the seed when a failed bargain is replayed.
const RetrySeedOffset = 1000

// Bargain roles.
const (
	RoleBuyer    = "buyer"
	RoleSeller   = "seller"
	RoleMediator = "mediator"
)

var offerPatterns = []*regexp.Regexp{
	regexp.MustCompile(`\$?(\d+\.?\d*)`),
	regexp.MustCompile(`(?i)(\d+\.?\d*)\s*dollars?`),
	regexp.MustCompile(`(?i)offer.*?(\d+\.?\d*)`),
	regexp.MustCompile(`(?i)bid.*?(\d+\.?\d*)`),
	regexp.MustCompile(`(?i)price.*?(\d+\.?\d*)`),
}

// ExtractOffer pulls the first dollar amount out of free text.
func ExtractOffer(text string) (float64, bool) {
	for _, re := range offerPatterns {
		m := re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		if v, err := strconv.ParseFloat(m[1], 64); err == nil {
			return v, true
		}
	}
	return 0, false
}

// BargainConfig configures a numeric bargain.
type BargainConfig struct {
	MinPrice    float64 `json:"min_price" yaml:"min_price"`
	MaxPrice    float64 `json:"max_price" yaml:"max_price"`
	MaxRounds   int     `json:"max_rounds" yaml:"max_rounds"`
	Threshold   float64 `json:"threshold" yaml:"threshold"`
	Model       string  `json:"model" yaml:"model"`
	Temperature float32 `json:"temp" yaml:"temp"`
	Seed        int     `json:"seed" yaml:"seed"`
	Output      string  `json:"output" yaml:"output"`
}

// DefaultBargainConfig returns the stock price range and convergence settings.
func DefaultBargainConfig() BargainConfig {
	return BargainConfig{
		MinPrice:    50,
		MaxPrice:    200,
		MaxRounds:   5,
		Threshold:   0.05,
		Model:       "phi4",
		Temperature: 0.7,
		Seed:        42,
		Output:      "negotiation_log.jsonl",
	}
}

// Validate checks the range, rounds, threshold and temperature.
func (c BargainConfig) Validate() error {
	switch {
	case c.MinPrice <= 0:
		return errors.New("minimum price must be positive")
	case c.MaxPrice <= c.MinPrice:
		return errors.New("maximum price must be greater than minimum price")
	case c.MaxRounds < 1:
		return errors.New("maximum rounds must be at least 1")
	case c.Threshold <= 0 || c.Threshold >= 1:
		return errors.New("threshold must be between 0 and 1")
	case c.Temperature < 0 || c.Temperature > 2:
		return errors.New("temperature must be between 0 and 2")
	}
	return nil
}

// BargainEntry is one line of the bargain log. Round is nil for the
// mediator and for the final line.
type BargainEntry struct {
	Timestamp  time.Time `json:"timestamp"`
	Round      *int      `json:"round,omitempty"`
	Role       string    `json:"role,omitempty"`
	Offer      *float64  `json:"offer,omitempty"`
	FinalPrice *float64  `json:"final_price,omitempty"`
	Winner     string    `json:"winner,omitempty"`
	Agreement  *bool     `json:"agreement,omitempty"`
	Seed       int       `json:"seed,omitempty"`
}

// BargainResult is the outcome of a bargain.
type BargainResult struct {
	FinalPrice float64 `json:"final_price"`
	Winner     string  `json:"winner"`
	Agreement  bool    `json:"agreement"`
	Rounds     int     `json:"rounds"`
	Seed       int     `json:"seed"`
}

// Bargainer runs numeric buyer/seller negotiations.
type Bargainer struct {
	conn core.LLMConnection
	out  io.Writer
}

// NewBargainer creates a bargainer printing progress to out.
func NewBargainer(conn core.LLMConnection, out io.Writer) *Bargainer {
	if out == nil {
		out = io.Discard
	}
	return &Bargainer{conn: conn, out: out}
}

// Run plays the bargain. If a model call fails the whole run is replayed
// once with the seed moved by RetrySeedOffset.
func (b *Bargainer) Run(ctx context.Context, cfg BargainConfig) (*BargainResult, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	res, err := b.run(ctx, cfg)
	if err == nil || ctx.Err() != nil {
		return res, err
	}
	fmt.Fprintf(b.out, "❌ Error during negotiation: %v\n🔄 Retrying with adjusted parameters...\n", err)
	slog.Warn("bargain failed, retrying", "seed", cfg.Seed, "error", err)
	cfg.Seed += RetrySeedOffset
	res, err = b.run(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("retry failed: %w", err)
	}
	return res, nil
}

type bargainer struct {
	chat     *agents.ChatAgent
	min, max float64
}

func (p bargainer) ask(ctx context.Context, prompt string) (float64, bool, error) {
	text, err := p.chat.Respond(ctx, prompt)
	if err != nil {
		return 0, false, err
	}
	v, ok := ExtractOffer(text)
	return v, ok, nil
}

func (p bargainer) inRange(v float64, ok bool) bool {
	return ok && v >= p.min && v <= p.max
}

func (p bargainer) clamp(v float64) float64 {
	return round2(math.Max(p.min, math.Min(v, p.max)))
}

func (b *Bargainer) run(ctx context.Context, cfg BargainConfig) (*BargainResult, error) {
	log, err := records.Create(cfg.Output, false)
	if err != nil {
		return nil, err
	}
	defer log.Close()
	write := func(e BargainEntry) error {
		e.Timestamp = time.Now().UTC()
		return log.Write(e)
	}
	offer := func(round int, role string, v float64) error {
		return write(BargainEntry{Round: &round, Role: role, Offer: &v})
	}

	chat := func(name string, seed int) *agents.ChatAgent {
		return agents.NewChatAgent(name, "", b.conn, agents.ChatAgentConfig{Model: cfg.Model, Temperature: cfg.Temperature, Seed: seed})
	}
	buyer := bargainer{chat: chat("buyer", cfg.Seed), min: cfg.MinPrice, max: cfg.MaxPrice}
	seller := bargainer{chat: chat("seller", cfg.Seed+1), min: cfg.MinPrice, max: cfg.MaxPrice}
	mediator := chat("mediator", cfg.Seed+2)
	span := cfg.MaxPrice - cfg.MinPrice
	lo, hi := FormatPrice(cfg.MinPrice), FormatPrice(cfg.MaxPrice)

	fmt.Fprintln(b.out, "💰 Starting Buyer-Seller Negotiation")
	fmt.Fprintf(b.out, "📊 Model: %s, Temperature: %.1f, Seed: %d\n", cfg.Model, cfg.Temperature, cfg.Seed)
	fmt.Fprintf(b.out, "💲 Price Range: $%s - $%s\n", lo, hi)
	fmt.Fprintf(b.out, "🔄 Max Rounds: %d, Threshold: %.1f%%\n", cfg.MaxRounds, cfg.Threshold*100)
	fmt.Fprintf(b.out, "📝 Logging to: %s\n%s\n", cfg.Output, strings.Repeat("=", 60))

	fmt.Fprintln(b.out, "🔵 Round 0: Buyer making opening offer...")
	v, ok, err := buyer.ask(ctx, fmt.Sprintf("As a buyer, propose an opening bid for an item. The acceptable price range is between $%s and $%s. As a buyer, you want to pay less. Give only a numeric dollar amount like '75' or '$75'.", lo, hi))
	if err != nil {
		return nil, err
	}
	if !buyer.inRange(v, ok) {
		v = cfg.MinPrice + span*0.3
	}
	buyerOffer := round2(v)
	if err := offer(0, RoleBuyer, buyerOffer); err != nil {
		return nil, err
	}
	fmt.Fprintf(b.out, "Buyer offers: $%.2f\n", buyerOffer)

	res := &BargainResult{Seed: cfg.Seed}
	var sellerOffer float64
	for r := 1; r <= cfg.MaxRounds; r++ {
		res.Rounds = r
		fmt.Fprintf(b.out, "\n🔴 Round %d: Seller responding...\n", r)
		v, ok, err := seller.ask(ctx, fmt.Sprintf("As a seller, the buyer has offered $%.2f. Make a counteroffer that's reasonable but still favors you as the seller (you want to receive more money). The acceptable range is $%s to $%s. Give only a numeric dollar amount.", buyerOffer, lo, hi))
		if err != nil {
			return nil, err
		}
		if !seller.inRange(v, ok) {
			pos := cfg.MaxPrice - span*0.2
			v = pos - (pos-buyerOffer)*0.4
		}
		sellerOffer = seller.clamp(v)
		if err := offer(r, RoleSeller, sellerOffer); err != nil {
			return nil, err
		}
		fmt.Fprintf(b.out, "Seller counteroffers: $%.2f\n", sellerOffer)

		if buyerOffer > 0 {
			diff := math.Abs(sellerOffer - buyerOffer)
			if diff/buyerOffer < cfg.Threshold {
				res.FinalPrice = (sellerOffer + buyerOffer) / 2
				res.Agreement = true
				fmt.Fprintf(b.out, "✅ Agreement reached! Price difference (%.2f) is within threshold.\n", diff)
				fmt.Fprintf(b.out, "💰 Final agreed price: $%.2f\n", res.FinalPrice)
				break
			}
		}

		if r < cfg.MaxRounds {
			fmt.Fprintf(b.out, "🔵 Round %d: Buyer responding...\n", r)
			v, ok, err := buyer.ask(ctx, fmt.Sprintf("As a buyer, the seller has offered $%.2f. Make a counteroffer that's reasonable but still favors you as the buyer. The acceptable range is $%s to $%s. Give only a numeric dollar amount.", sellerOffer, lo, hi))
			if err != nil {
				return nil, err
			}
			if !buyer.inRange(v, ok) {
				prev := cfg.MinPrice + span*0.4
				v = prev + (sellerOffer-prev)*0.3
			}
			buyerOffer = buyer.clamp(v)
			if err := offer(r, RoleBuyer, buyerOffer); err != nil {
				return nil, err
			}
			fmt.Fprintf(b.out, "Buyer counteroffers: $%.2f\n", buyerOffer)
		}
	}

	if !res.Agreement {
		fmt.Fprintf(b.out, "\n🤝 No agreement after %d rounds. Calling mediator...\n", cfg.MaxRounds)
		text, err := mediator.Respond(ctx, fmt.Sprintf("As a neutral mediator, the buyer's final offer is $%.2f and the seller's final offer is $%.2f. Suggest a fair compromise price that both parties might accept. Give only a numeric dollar amount.", buyerOffer, sellerOffer))
		if err != nil {
			return nil, err
		}
		v, ok := ExtractOffer(text)
		if !ok {
			v = (buyerOffer + sellerOffer) / 2
		}
		res.FinalPrice = round2(v)
		final := res.FinalPrice
		if err := write(BargainEntry{Role: RoleMediator, Offer: &final}); err != nil {
			return nil, err
		}
		fmt.Fprintf(b.out, "Mediator suggests: $%.2f\n", res.FinalPrice)
	}

	res.Winner = BargainWinner(res.FinalPrice, cfg.MinPrice, cfg.MaxPrice)
	final, agreement := res.FinalPrice, res.Agreement
	if err := write(BargainEntry{FinalPrice: &final, Winner: res.Winner, Agreement: &agreement, Seed: cfg.Seed}); err != nil {
		return nil, err
	}

	rule := strings.Repeat("=", 60)
	fmt.Fprintf(b.out, "%s\n📋 NEGOTIATION RESULTS:\n%s\n", rule, rule)
	fmt.Fprintf(b.out, "💰 Final Price: $%.2f\n", res.FinalPrice)
	fmt.Fprintf(b.out, "🏆 Winner: %s\n", strings.ToUpper(res.Winner[:1])+res.Winner[1:])
	agreed := "No (Mediated)"
	if res.Agreement {
		agreed = "Yes"
	}
	fmt.Fprintf(b.out, "🤝 Agreement Reached: %s\n", agreed)
	fmt.Fprintf(b.out, "📊 Buyer's ideal ($%s) vs Seller's ideal ($%s)\n%s\n", lo, hi, rule)
	return res, nil
}

// BargainWinner is the side whose ideal price the final price is closer to.
// The buyer wants the minimum and the seller the maximum; ties go to the seller.
func BargainWinner(final, minPrice, maxPrice float64) string {
	if math.Abs(final-minPrice) < math.Abs(final-maxPrice) {
		return RoleBuyer
	}
	return RoleSeller
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
