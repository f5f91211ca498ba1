package negotiation

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/agent-protocol/agent-arena/pkg/llm/llmtest"
	"github.com/agent-protocol/agent-arena/pkg/records"
)

func TestDefaultCatalog(t *testing.T) {
	c := DefaultCatalog()
	if diff := cmp.Diff([]string{"yard_sale_lamp", "fish_market", "pokemon_card"}, c.Keys()); diff != "" {
		t.Errorf("Keys mismatch (-want +got):\n%s", diff)
	}
	fish, err := c.Get("fish_market")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if fish.ListPrice != 75 || fish.SellerMinPrice != 55 || fish.BuyerTargetPrice != 60 || fish.BuyerMaxPrice != 70 {
		t.Errorf("Unexpected fish market prices %+v", fish)
	}
	if _, err := c.Get("car_lot"); !errors.Is(err, ErrUnknownScenario) {
		t.Errorf("Expected ErrUnknownScenario, got %v", err)
	}
}

func TestCatalog_Merge(t *testing.T) {
	extra, err := ParseCatalog([]byte(`
- key: fish_market
  name: Harbor
  item_name: a crate of crabs
  list_price: 90
  seller_min_price: 60
  buyer_target_price: 65
  buyer_max_price: 80
- key: car_boot
  name: Car Boot Sale
  item_name: a box of records
  list_price: 30
  seller_min_price: 15
  buyer_target_price: 18
  buyer_max_price: 25
`))
	if err != nil {
		t.Fatalf("ParseCatalog failed: %v", err)
	}
	c := DefaultCatalog()
	c.Merge(extra)
	if got := len(c.Keys()); got != 4 {
		t.Errorf("Expected 4 scenarios, got %d", got)
	}
	fish, _ := c.Get("fish_market")
	if fish.ItemName != "a crate of crabs" {
		t.Errorf("Expected override, got %q", fish.ItemName)
	}
}

func TestParseCatalog_Invalid(t *testing.T) {
	tests := map[string]string{
		"no key":         "- name: x\n  list_price: 10\n",
		"bad min":        "- key: a\n  list_price: 10\n  seller_min_price: 20\n",
		"target above":   "- key: a\n  list_price: 10\n  buyer_target_price: 9\n  buyer_max_price: 5\n",
		"duplicate keys": "- key: a\n  list_price: 10\n- key: a\n  list_price: 12\n",
		"not yaml":       "key: [",
	}
	for name, data := range tests {
		if _, err := ParseCatalog([]byte(data)); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}
}

func TestParsePrice(t *testing.T) {
	tests := []struct {
		text    string
		price   float64
		message string
		ok      bool
	}{
		{"It's a classic.\nPrice: $38", 38, "It's a classic.", true},
		{"fine, price: 24.50", 24.5, "fine,", true},
		{"No number here", 0, "No number here", false},
	}
	for _, tt := range tests {
		price, msg, ok := ParsePrice(tt.text)
		if price != tt.price || msg != tt.message || ok != tt.ok {
			t.Errorf("ParsePrice(%q) = %v, %q, %v", tt.text, price, msg, ok)
		}
	}
}

func TestPrompts(t *testing.T) {
	s, _ := DefaultCatalog().Get("yard_sale_lamp")
	seller := SellerPrompt(s, "Buyer: hi")
	for _, want := range []string{"You are a Seller at a Local Yard Sale.", "The listed price is: $40.", "walk-away price of $20.", "Buyer: hi"} {
		if !strings.Contains(seller, want) {
			t.Errorf("Seller prompt missing %q", want)
		}
	}
	if buyer := BuyerPrompt(s, ""); !strings.Contains(buyer, "Your target price is $25, but you absolutely CANNOT pay more than your secret maximum price of $35.") {
		t.Errorf("Buyer prompt missing limits:\n%s", buyer)
	}
	if mod := ModeratorPrompt(s, 27.5, "t"); !strings.Contains(mod, "Final Deal Price: $27.5") {
		t.Errorf("Moderator prompt missing price:\n%s", mod)
	}
}

func newNegotiator(conn *llmtest.Connection, out *bytes.Buffer) *Negotiator {
	n := NewNegotiator(conn, out)
	n.now = func() time.Time { return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC) }
	return n
}

func TestNegotiator_Deal(t *testing.T) {
	conn := llmtest.New(
		"Lovely lamp, barely used.\nPrice: $38",
		"That's steep for a dusty lamp.\nPrice: $25",
		"Meet me in the middle.\nPrice: $30",
		"Alright, you've got a deal.\nPrice: $30",
		"The buyer paid above target but under the maximum.",
	)
	var out bytes.Buffer
	cfg := DefaultConfig()
	cfg.Rounds = 3
	s, _ := DefaultCatalog().Get(cfg.ScenarioKey)
	base := t.TempDir()

	res, err := newNegotiator(conn, &out).Run(context.Background(), cfg, s, base)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if !res.Outcome.DealMade || res.Outcome.FinalPrice != 30 {
		t.Errorf("Expected deal at 30, got %+v", res.Outcome)
	}
	if res.Dir != filepath.Join(base, "20240501_120000_yard_sale_lamp") {
		t.Errorf("Unexpected dir %s", res.Dir)
	}
	if len(res.Turns) != 4 || res.Turns[0].Role != "Seller" || res.Turns[1].Message != "That's steep for a dusty lamp." {
		t.Errorf("Unexpected turns %+v", res.Turns)
	}

	var seeds []int
	for _, r := range conn.Requests {
		seeds = append(seeds, *r.Config.Seed)
	}
	if diff := cmp.Diff([]int{43, 42, 43, 42, 44}, seeds); diff != "" {
		t.Errorf("Seed mismatch (-want +got):\n%s", diff)
	}
	if !strings.Contains(conn.LastPrompt(), "Seller: Lovely lamp, barely used.\nBuyer: That's steep") {
		t.Errorf("Moderator should see the transcript, got:\n%s", conn.LastPrompt())
	}

	entries, err := LoadTranscript(res.Dir)
	if err != nil {
		t.Fatalf("LoadTranscript failed: %v", err)
	}
	var kinds []string
	for _, e := range entries {
		kinds = append(kinds, e.Event+e.Type)
	}
	want := []string{EventStart, TypeTurn, TypeTurn, TypeTurn, TypeTurn, EventDeal, TypeAnalysis}
	if diff := cmp.Diff(want, kinds); diff != "" {
		t.Errorf("Transcript mismatch (-want +got):\n%s", diff)
	}

	summary, err := os.ReadFile(filepath.Join(res.Dir, SummaryFile))
	if err != nil {
		t.Fatalf("Missing summary: %v", err)
	}
	if !strings.Contains(string(summary), "**Outcome:** Deal at $30") {
		t.Errorf("Unexpected summary:\n%s", summary)
	}
	var meta Metadata
	if err := records.LoadJSON(filepath.Join(res.Dir, MetadataFile), &meta); err != nil {
		t.Fatalf("LoadJSON failed: %v", err)
	}
	if meta.RunID != res.RunID || !meta.Outcome.DealMade || meta.Scenario.Key != "yard_sale_lamp" {
		t.Errorf("Unexpected metadata %+v", meta)
	}
	if !strings.Contains(out.String(), "DEAL! A deal was struck at $30") {
		t.Errorf("Expected deal banner, got:\n%s", out.String())
	}
}

func TestNegotiator_NoDealWithFailingSeller(t *testing.T) {
	conn := &llmtest.Connection{}
	down := errors.New("connection refused")
	conn.Push(
		llmtest.Reply{Err: down},
		llmtest.Reply{Err: down},
		llmtest.Reply{Text: "Too rich for me.\nPrice: $20"},
		llmtest.Reply{Text: "Nobody moved."},
	)
	cfg := DefaultConfig()
	cfg.Rounds = 1
	s, _ := DefaultCatalog().Get(cfg.ScenarioKey)

	res, err := newNegotiator(conn, nil).Run(context.Background(), cfg, s, t.TempDir())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if res.Outcome.DealMade {
		t.Error("Expected no deal")
	}
	if res.Turns[0].Message != agentErrorText || res.Turns[0].Price != 40 {
		t.Errorf("Expected fallback seller turn at list price, got %+v", res.Turns[0])
	}
	if res.Analysis != "Nobody moved." {
		t.Errorf("Unexpected analysis %q", res.Analysis)
	}
	if got := *conn.Requests[1].Config.Seed; got != 44 {
		t.Errorf("Expected retry with seed 44, got %d", got)
	}
}

func TestConfig_Validate(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Rounds = 0
	if err := cfg.Validate(); err == nil {
		t.Error("Expected error for zero rounds")
	}
	cfg = DefaultConfig()
	cfg.Temperature = 2.5
	if err := cfg.Validate(); err == nil {
		t.Error("Expected error for temperature")
	}
}

func TestExtractOffer(t *testing.T) {
	tests := []struct {
		text string
		want float64
		ok   bool
	}{
		{"$75", 75, true},
		{"I'd go to 120.50 dollars", 120.5, true},
		{"My offer stands at $99.", 99, true},
		{"no idea", 0, false},
	}
	for _, tt := range tests {
		got, ok := ExtractOffer(tt.text)
		if got != tt.want || ok != tt.ok {
			t.Errorf("ExtractOffer(%q) = %v, %v", tt.text, got, ok)
		}
	}
}

func bargainConfig(t *testing.T) BargainConfig {
	cfg := DefaultBargainConfig()
	cfg.Output = filepath.Join(t.TempDir(), "bargain.jsonl")
	return cfg
}

func TestBargainer_Agreement(t *testing.T) {
	conn := llmtest.New("I offer $80", "$150", "How about 120?", "124")
	cfg := bargainConfig(t)

	res, err := NewBargainer(conn, nil).Run(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	want := &BargainResult{FinalPrice: 122, Winner: RoleBuyer, Agreement: true, Rounds: 2, Seed: 42}
	if diff := cmp.Diff(want, res); diff != "" {
		t.Errorf("Result mismatch (-want +got):\n%s", diff)
	}

	entries, err := records.ReadLines[BargainEntry](cfg.Output)
	if err != nil {
		t.Fatalf("ReadLines failed: %v", err)
	}
	if len(entries) != 5 {
		t.Fatalf("Expected 5 log lines, got %d", len(entries))
	}
	if entries[3].Role != RoleSeller || *entries[3].Round != 2 || *entries[3].Offer != 124 {
		t.Errorf("Unexpected seller entry %+v", entries[3])
	}
	if !*entries[4].Agreement || entries[4].Winner != RoleBuyer {
		t.Errorf("Unexpected final entry %+v", entries[4])
	}
}

func TestBargainer_FallbacksAndMediator(t *testing.T) {
	conn := llmtest.New("no idea", "999", "something fair")
	cfg := bargainConfig(t)
	cfg.MaxRounds = 1

	res, err := NewBargainer(conn, nil).Run(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	// Buyer opens at 95, seller falls back to 140, mediator averages.
	if res.Agreement || res.FinalPrice != 117.5 || res.Winner != RoleBuyer {
		t.Errorf("Unexpected result %+v", res)
	}
	entries, _ := records.ReadLines[BargainEntry](cfg.Output)
	if len(entries) != 4 || entries[2].Role != RoleMediator || entries[2].Round != nil {
		t.Errorf("Unexpected entries %+v", entries)
	}
}

func TestBargainer_RetriesWithNewSeed(t *testing.T) {
	conn := &llmtest.Connection{}
	conn.Push(
		llmtest.Reply{Err: errors.New("model not loaded")},
		llmtest.Reply{Text: "80"},
		llmtest.Reply{Text: "150"},
		llmtest.Reply{Text: "$115"},
	)
	cfg := bargainConfig(t)
	cfg.MaxRounds = 1
	var out bytes.Buffer

	res, err := NewBargainer(conn, &out).Run(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if res.Seed != 1042 || res.FinalPrice != 115 {
		t.Errorf("Unexpected result %+v", res)
	}
	if got := *conn.Requests[1].Config.Seed; got != 1042 {
		t.Errorf("Expected replay seed 1042, got %d", got)
	}
	if !strings.Contains(out.String(), "Retrying with adjusted parameters") {
		t.Errorf("Expected retry notice, got:\n%s", out.String())
	}
}

func TestBargainConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*BargainConfig)
	}{
		{"min", func(c *BargainConfig) { c.MinPrice = 0 }},
		{"max", func(c *BargainConfig) { c.MaxPrice = c.MinPrice }},
		{"rounds", func(c *BargainConfig) { c.MaxRounds = 0 }},
		{"threshold", func(c *BargainConfig) { c.Threshold = 1 }},
		{"temperature", func(c *BargainConfig) { c.Temperature = -1 }},
	}
	for _, tt := range tests {
		cfg := DefaultBargainConfig()
		tt.mutate(&cfg)
		if err := cfg.Validate(); err == nil {
			t.Errorf("%s: expected error", tt.name)
		}
	}
	if err := DefaultBargainConfig().Validate(); err != nil {
		t.Errorf("Default config invalid: %v", err)
	}
}

func TestBargainWinner(t *testing.T) {
	if got := BargainWinner(125, 50, 200); got != RoleSeller {
		t.Errorf("Expected tie to go to seller, got %s", got)
	}
	if got := BargainWinner(60, 50, 200); got != RoleBuyer {
		t.Errorf("Expected buyer, got %s", got)
	}
}
