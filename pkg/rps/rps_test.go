package rps

import (
	"bytes"
	"context"
	"errors"
	"math/rand/v2"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/agent-protocol/agent-arena/pkg/llm/llmtest"
)

// fixed always plays the same move.
type fixed struct {
	name, model string
	move        Move
	fail        bool
}

func (f *fixed) Name() string         { return f.name }
func (f *fixed) Model() string        { return f.model }
func (f *fixed) Kind() string         { return "fixed" }
func (f *fixed) Temperature() float32 { return 0.5 }
func (f *fixed) Strategy() string     { return "always " + string(f.move) }
func (f *fixed) MakeMove(context.Context, int, []Move, []Move) (Move, error) {
	if f.fail {
		return "", errors.New("model offline")
	}
	return f.move, nil
}

func newLogger(t *testing.T) *Logger {
	t.Helper()
	l, err := NewLogger(filepath.Join(t.TempDir(), "logs", "tournament.jsonl"))
	if err != nil {
		t.Fatalf("NewLogger failed: %v", err)
	}
	t.Cleanup(func() { l.Close() })
	return l
}

func countTypes(recs []Record) map[string]int {
	out := map[string]int{}
	for _, r := range recs {
		out[r.Type]++
	}
	return out
}

func trio() []Agent {
	return []Agent{
		&fixed{name: "rock", model: "llama", move: Rock},
		&fixed{name: "paper", model: "llama", move: Paper},
		&fixed{name: "scissors", model: "phi", move: Scissors},
	}
}

func TestParseMove(t *testing.T) {
	tests := []struct {
		in   string
		want Move
		err  bool
	}{
		{"rock", Rock, false},
		{" R ", Rock, false},
		{"stone", Rock, false},
		{"P", Paper, false},
		{"scissor", Scissors, false},
		{"lizard", "", true},
	}
	for _, tt := range tests {
		got, err := ParseMove(tt.in)
		if (err != nil) != tt.err {
			t.Errorf("ParseMove(%q) error = %v", tt.in, err)
			continue
		}
		if tt.err && !errors.Is(err, ErrInvalidMove) {
			t.Errorf("Expected ErrInvalidMove, got %v", err)
		}
		if got != tt.want {
			t.Errorf("ParseMove(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestDetermineWinner(t *testing.T) {
	for _, m := range Moves {
		if r1, r2 := DetermineWinner(m, m); r1 != Draw || r2 != Draw {
			t.Errorf("%s vs %s should draw", m, m)
		}
		c := CounterTo(m)
		if r1, r2 := DetermineWinner(c, m); r1 != Win || r2 != Loss {
			t.Errorf("%s should beat %s", c, m)
		}
	}
}

func TestParseResponse(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	tests := []struct {
		text string
		want Move
	}{
		{"Paper", Paper},
		{"I will play scissors this time.", Scissors},
		{"Rock! Definitely not paper.", Rock},
		{"stone it is", Rock},
		{"p.", Paper},
	}
	for _, tt := range tests {
		if got := ParseResponse(tt.text, rng); got != tt.want {
			t.Errorf("ParseResponse(%q) = %s, want %s", tt.text, got, tt.want)
		}
	}
	if got := ParseResponse("???", rng); got != Rock && got != Paper && got != Scissors {
		t.Errorf("Expected a random move, got %q", got)
	}
}

func TestBuildPrompt(t *testing.T) {
	first := BuildPrompt("phi4", 1, nil, nil)
	if strings.Contains(first, "Game history") {
		t.Error("First round should not include history")
	}
	p := BuildPrompt("phi4", 4, []Move{Rock, Rock, Paper}, []Move{Paper, Scissors, Rock})
	for _, want := range []string{
		"You are playing Rock Paper Scissors as 'phi4'.",
		"This is round 4.",
		"Your previous moves: paper, scissors, rock",
		"Opponent's recent pattern: rock -> rock -> paper",
	} {
		if !strings.Contains(p, want) {
			t.Errorf("Prompt missing %q", want)
		}
	}
}

func TestLLMAgent_SeedPerRound(t *testing.T) {
	conn := llmtest.New("I choose paper!")
	a, err := NewAgent(AgentConfig{Model: "phi4", Temperature: 0.7, Seed: 10}, conn)
	if err != nil {
		t.Fatalf("NewAgent failed: %v", err)
	}
	move, err := a.MakeMove(context.Background(), 3, []Move{Rock}, []Move{Scissors})
	if err != nil {
		t.Fatalf("MakeMove failed: %v", err)
	}
	if move != Paper {
		t.Errorf("Expected paper, got %s", move)
	}
	if got := *conn.Requests[0].Config.Seed; got != 13 {
		t.Errorf("Expected seed 13, got %d", got)
	}
	if a.Name() != "phi4" || a.Kind() != KindLLM {
		t.Errorf("Unexpected agent %s/%s", a.Name(), a.Kind())
	}
	if _, err := NewAgent(AgentConfig{Model: "phi4"}, nil); err == nil {
		t.Error("Expected error without a connection")
	}
	if _, err := NewAgent(AgentConfig{Kind: "oracle"}, nil); err == nil {
		t.Error("Expected error for unknown kind")
	}
}

func TestCounterAgent(t *testing.T) {
	a, err := NewAgent(AgentConfig{Kind: KindCounter, Seed: 1}, nil)
	if err != nil {
		t.Fatalf("NewAgent failed: %v", err)
	}
	tests := []struct {
		history []Move
		want    Move
	}{
		{[]Move{Rock, Rock, Paper}, Paper},
		{[]Move{Scissors, Paper, Scissors}, Rock},
		{[]Move{Paper, Scissors}, Scissors},
	}
	for _, tt := range tests {
		got, _ := a.MakeMove(context.Background(), len(tt.history)+1, tt.history, nil)
		if got != tt.want {
			t.Errorf("Counter against %v = %s, want %s", tt.history, got, tt.want)
		}
	}
}

func TestScorer_Leaderboard(t *testing.T) {
	s := NewScorer([]string{"a", "b", "c"})
	s.RecordMatch("a", "b", Draw, Draw)
	s.RecordMatch("c", "a", Win, Loss)
	s.RecordMatch("b", "c", Win, Loss)

	lb := s.Leaderboard()
	var got []string
	for _, e := range lb {
		got = append(got, e.Name)
	}
	if diff := cmp.Diff([]string{"b", "c", "a"}, got); diff != "" {
		t.Errorf("Leaderboard mismatch (-want +got):\n%s", diff)
	}
	if lb[0].Points != 4 || lb[1].Points != 3 || lb[2].Points != 1 {
		t.Errorf("Unexpected points %d %d %d", lb[0].Points, lb[1].Points, lb[2].Points)
	}
	if s.Champion() != "b" {
		t.Errorf("Expected champion b, got %s", s.Champion())
	}
}

func TestCalculateStreaks(t *testing.T) {
	tests := []struct {
		name     string
		player   []Move
		opponent []Move
		want     Streaks
	}{
		{"empty", nil, nil, Streaks{StreakType: "none"}},
		{
			"ends losing",
			[]Move{Paper, Paper, Rock, Rock, Rock},
			[]Move{Rock, Rock, Paper, Paper, Paper},
			Streaks{LongestWinStreak: 2, LongestLossStreak: 3, CurrentStreak: -3, StreakType: "loss"},
		},
		{
			"draw resets",
			[]Move{Rock, Rock, Rock},
			[]Move{Scissors, Rock, Scissors},
			Streaks{LongestWinStreak: 1, CurrentStreak: 1, StreakType: "win"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if diff := cmp.Diff(tt.want, *CalculateStreaks(tt.player, tt.opponent)); diff != "" {
				t.Errorf("Streaks mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestExpectedMatches(t *testing.T) {
	tests := []struct {
		n    int
		typ  string
		want int
	}{
		{4, TypeRoundRobin, 6},
		{5, TypeSingleElimination, 7},
		{4, TypeSingleElimination, 3},
		{6, TypeLeague, 6},
	}
	for _, tt := range tests {
		if got := ExpectedMatches(tt.n, tt.typ); got != tt.want {
			t.Errorf("ExpectedMatches(%d, %s) = %d, want %d", tt.n, tt.typ, got, tt.want)
		}
	}
}

func TestBaseModel(t *testing.T) {
	if got := BaseModel("phi4(Agent1)"); got != "phi4" {
		t.Errorf("Expected phi4, got %s", got)
	}
	if got := BaseModel("llama3.2"); got != "llama3.2" {
		t.Errorf("Expected llama3.2, got %s", got)
	}
}

func TestParseTournamentType(t *testing.T) {
	for in, want := range map[string]string{
		"round-robin": TypeRoundRobin,
		"round_robin": TypeRoundRobin,
		"elimination": TypeSingleElimination,
		"league":      TypeLeague,
	} {
		got, err := ParseTournamentType(in)
		if err != nil || got != want {
			t.Errorf("ParseTournamentType(%q) = %q, %v", in, got, err)
		}
	}
	if _, err := ParseTournamentType("swiss"); err == nil {
		t.Error("Expected error for swiss")
	}
}

func TestManager_RoundRobin(t *testing.T) {
	logger := newLogger(t)
	var out bytes.Buffer
	m := NewManager(logger, Options{Rounds: 3, Temperature: 0.7, Seed: 42, Out: &out})

	res, err := m.Run(context.Background(), TypeRoundRobin, trio())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	// Everyone beats one opponent and loses to the other.
	if res.Champion != "rock" {
		t.Errorf("Expected champion rock, got %s", res.Champion)
	}
	if res.TotalMatches != 3 {
		t.Errorf("Expected 3 matches, got %d", res.TotalMatches)
	}
	for name, st := range res.Standings {
		if st.Points != 3 || st.MatchesPlayed != 2 {
			t.Errorf("%s: unexpected standing %+v", name, st)
		}
	}
	if !strings.Contains(out.String(), "🥇 CHAMPION: rock") {
		t.Errorf("Expected champion banner, got:\n%s", out.String())
	}

	recs, err := LoadLog(logger.Path())
	if err != nil {
		t.Fatalf("LoadLog failed: %v", err)
	}
	wantCounts := map[string]int{
		RecordTournamentStart: 1,
		RecordMatchStart:      3,
		RecordRound:           9,
		RecordMatchEnd:        3,
		RecordTournamentEnd:   1,
	}
	if diff := cmp.Diff(wantCounts, countTypes(recs)); diff != "" {
		t.Errorf("Record counts mismatch (-want +got):\n%s", diff)
	}

	start := recs[0]
	if start.ExpectedTotalMatches != 3 || start.NumUniqueModels != 3 || *start.Seed != 42 {
		t.Errorf("Unexpected tournament_start %+v", start)
	}
	if start.ModelMetadata["scissors"].Model != "phi" {
		t.Errorf("Expected model metadata, got %+v", start.ModelMetadata)
	}

	var end Record
	for _, r := range recs {
		if r.Type == RecordMatchEnd && r.MatchID == "RR001_rock_vs_paper" {
			end = r
		}
	}
	if end.Winner != "paper" || end.FinalScore != "0-3" || end.WinnerModel != "llama" {
		t.Errorf("Unexpected match_end %+v", end)
	}
	if !end.IsSameModel || end.ModelMatchup != "llama_vs_llama" {
		t.Errorf("Expected same-model matchup, got %q", end.ModelMatchup)
	}
	if end.Player1Streaks.CurrentStreak != -3 || end.Player2MoveFrequency[Paper] != 3 {
		t.Errorf("Unexpected streaks/frequency %+v %v", end.Player1Streaks, end.Player2MoveFrequency)
	}
	if len(end.MoveSequences) != 3 || end.MoveSequences[2].Round != 3 {
		t.Errorf("Unexpected sequences %+v", end.MoveSequences)
	}

	last := recs[len(recs)-1]
	if last.Champion != "rock" || last.TotalMatchesPlayed != 3 || last.MatchesPerParticipant != 1 {
		t.Errorf("Unexpected tournament_end %+v", last)
	}
	if recs[2].MatchID != "M0001" {
		t.Errorf("Expected first round id M0001, got %s", recs[2].MatchID)
	}
}

func TestManager_SingleElimination(t *testing.T) {
	logger := newLogger(t)
	agents := append(trio(), &fixed{name: "paper2", model: "phi", move: Paper})
	m := NewManager(logger, Options{Rounds: 2, Seed: 1})

	res, err := m.Run(context.Background(), TypeSingleElimination, agents)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	// rock loses to paper, scissors beats paper2, scissors beats paper.
	if res.Champion != "scissors" {
		t.Errorf("Expected champion scissors, got %s", res.Champion)
	}
	if res.TotalRounds != 2 || res.TotalMatches != 3 {
		t.Errorf("Expected 2 rounds and 3 matches, got %d and %d", res.TotalRounds, res.TotalMatches)
	}
	recs, err := LoadLog(logger.Path())
	if err != nil {
		t.Fatalf("LoadLog failed: %v", err)
	}
	if got := countTypes(recs)[RecordMatchEnd]; got != 3 {
		t.Errorf("Expected 3 match_end records, got %d", got)
	}
}

func TestManager_PadBracket(t *testing.T) {
	m := NewManager(newLogger(t), Options{Seed: 3})
	var got []string
	for _, a := range m.padBracket(trio()) {
		got = append(got, a.Name())
	}
	if diff := cmp.Diff([]string{"rock", "paper", "scissors", "Bye3"}, got); diff != "" {
		t.Errorf("Bracket mismatch (-want +got):\n%s", diff)
	}
}

func TestManager_DrawAdvancesRandomly(t *testing.T) {
	var out bytes.Buffer
	m := NewManager(newLogger(t), Options{Rounds: 3, Seed: 5, Out: &out})
	res, err := m.RunSingleElimination(context.Background(), []Agent{
		&fixed{name: "a", move: Rock},
		&fixed{name: "b", move: Rock},
	})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if res.Champion != "a" && res.Champion != "b" {
		t.Errorf("Unexpected champion %s", res.Champion)
	}
	if !strings.Contains(out.String(), "🎲 Draw! Randomly advancing") {
		t.Errorf("Expected draw notice, got:\n%s", out.String())
	}
}

func TestManager_League(t *testing.T) {
	logger := newLogger(t)
	agents := append(trio(), &fixed{name: "paper2", model: "phi", move: Paper})
	m := NewManager(logger, Options{Rounds: 5, Seed: 9})

	res, err := m.Run(context.Background(), TypeLeague, agents)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	for name, st := range res.Standings {
		if st.MatchesPlayed != 5 {
			t.Errorf("%s played %d matches, want 5", name, st.MatchesPlayed)
		}
	}
	recs, err := LoadLog(logger.Path())
	if err != nil {
		t.Fatalf("LoadLog failed: %v", err)
	}
	counts := countTypes(recs)
	if counts[RecordRound] != 10 || counts[RecordRoundSummary] != 1 || counts[RecordMatchEnd] != 0 {
		t.Errorf("Unexpected record counts %v", counts)
	}
}

func TestManager_FailedMovesFallBackToRandom(t *testing.T) {
	logger := newLogger(t)
	m := NewManager(logger, Options{Rounds: 3, Seed: 2})
	s, err := m.PlayMatch(context.Background(), &fixed{name: "broken", fail: true}, &fixed{name: "rock", move: Rock})
	if err != nil {
		t.Fatalf("PlayMatch failed: %v", err)
	}
	if len(s.Player1History) != 3 || len(s.Player2History) != 3 {
		t.Errorf("Expected 3 rounds played, got %d", len(s.Player1History))
	}
}

func TestManager_TooFewAgents(t *testing.T) {
	m := NewManager(newLogger(t), Options{})
	if _, err := m.Run(context.Background(), TypeLeague, trio()[:1]); !errors.Is(err, ErrTooFewAgents) {
		t.Errorf("Expected ErrTooFewAgents, got %v", err)
	}
}

func TestAnalyzer(t *testing.T) {
	logger := newLogger(t)
	m := NewManager(logger, Options{Rounds: 3, Temperature: 0.7, Seed: 42})
	if _, err := m.Run(context.Background(), TypeRoundRobin, trio()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	recs, err := LoadLog(logger.Path())
	if err != nil {
		t.Fatalf("LoadLog failed: %v", err)
	}
	a := NewAnalyzer(recs)

	if diff := cmp.Diff([]string{"paper", "rock", "scissors"}, a.Agents()); diff != "" {
		t.Errorf("Agents mismatch (-want +got):\n%s", diff)
	}

	rock := a.AgentStatistics("rock")
	if rock.TotalRounds != 6 || rock.RoundWins != 3 || rock.RoundLosses != 3 {
		t.Errorf("Unexpected round stats %+v", rock)
	}
	if rock.MatchWins != 1 || rock.MatchLosses != 1 || rock.MatchWinRate != 0.5 {
		t.Errorf("Unexpected match stats %+v", rock)
	}
	if rock.MoveDistribution[Rock] != 1 {
		t.Errorf("Expected rock only, got %v", rock.MoveDistribution)
	}
	if diff := cmp.Diff([]string{"paper", "scissors"}, rock.Opponents); diff != "" {
		t.Errorf("Opponents mismatch (-want +got):\n%s", diff)
	}

	h := a.HeadToHead("paper", "rock")
	if h.TotalRounds != 3 || h.Agent1Wins != 3 || h.Agent1WinPct != 1 {
		t.Errorf("Unexpected head to head %+v", h)
	}
	if h.Rounds[0].Agent1Move != Paper {
		t.Errorf("Expected rounds from paper's side, got %+v", h.Rounds[0])
	}

	eff := a.MoveEffectiveness()
	if e := eff[Rock][Scissors]; e.Encounters != 3 || e.Wins != 3 || e.WinRate != 1 {
		t.Errorf("Unexpected rock vs scissors %+v", e)
	}
	if e := eff[Rock][Paper]; e.Encounters != 3 || e.Wins != 0 {
		t.Errorf("Unexpected rock vs paper %+v", e)
	}
	if e := eff[Scissors][Scissors]; e.Encounters != 0 {
		t.Errorf("Expected no scissors mirror, got %+v", e)
	}

	perf := a.ModelPerformance()
	llama, phi := perf["llama"], perf["phi"]
	if llama.TotalMatches != 3 || llama.Wins != 2 || llama.Losses != 1 || llama.SameModelMatches != 1 || llama.CrossModelMatches != 2 {
		t.Errorf("Unexpected llama stats %+v", llama)
	}
	if llama.TotalRounds != 9 || llama.RoundsWon != 3 {
		t.Errorf("Unexpected llama rounds %d/%d", llama.RoundsWon, llama.TotalRounds)
	}
	if phi.TotalMatches != 2 || phi.Wins != 1 || phi.RoundsWon != 3 {
		t.Errorf("Unexpected phi stats %+v", phi)
	}

	sum := a.Summary()
	if sum.Type != TypeRoundRobin || sum.Champion != "rock" || sum.TotalRounds != 9 || sum.TotalMatches != 3 {
		t.Errorf("Unexpected summary %+v", sum)
	}
	if *sum.Temperature != 0.7 {
		t.Errorf("Expected temperature 0.7, got %v", *sum.Temperature)
	}
	if d := sum.MoveDistribution[Paper]; d < 0.33 || d > 0.34 {
		t.Errorf("Expected a third paper, got %v", d)
	}
}
