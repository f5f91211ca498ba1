package rps

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"strings"
	"time"
)

// Tournament types as written to the log.
const (
	TypeRoundRobin        = "round_robin"
	TypeSingleElimination = "single_elimination"
	TypeLeague            = "league"
)

// ErrTooFewAgents is returned when fewer than two agents are entered.
var ErrTooFewAgents = errors.New("need at least two agents")

// ParseTournamentType accepts the CLI spellings.
func ParseTournamentType(s string) (string, error) {
	switch strings.ToLower(strings.ReplaceAll(s, "_", "-")) {
	case "round-robin", "roundrobin", "rr":
		return TypeRoundRobin, nil
	case "elimination", "single-elimination", "knockout":
		return TypeSingleElimination, nil
	case "league":
		return TypeLeague, nil
	}
	return "", fmt.Errorf("unknown tournament type %q", s)
}

// Options controls a tournament run.
type Options struct {
	// Rounds is rounds per match, or total rounds for a league.
	Rounds      int
	Temperature float32
	Seed        int
	// Out receives the progress display. Nil discards it.
	Out io.Writer
}

// Result is what a finished tournament reports.
type Result struct {
	Type         string              `json:"tournament_type"`
	Participants []string            `json:"participants"`
	Champion     string              `json:"champion"`
	Standings    map[string]Standing `json:"final_standings"`
	Leaderboard  []LeaderboardEntry  `json:"-"`
	TotalMatches int                 `json:"total_matches,omitempty"`
	TotalRounds  int                 `json:"total_rounds,omitempty"`
}

// Manager plays tournaments and writes every round to its logger.
type Manager struct {
	logger       *Logger
	opts         Options
	out          io.Writer
	rng          *rand.Rand
	matchCounter int
}

// NewManager creates a manager logging through logger.
func NewManager(logger *Logger, opts Options) *Manager {
	if opts.Rounds <= 0 {
		opts.Rounds = 10
	}
	out := opts.Out
	if out == nil {
		out = io.Discard
	}
	seed := uint64(opts.Seed)
	return &Manager{
		logger: logger,
		opts:   opts,
		out:    out,
		rng:    rand.New(rand.NewPCG(seed, seed+1)),
	}
}

// Run dispatches on the tournament type.
func (m *Manager) Run(ctx context.Context, tournamentType string, agentsIn []Agent) (*Result, error) {
	if len(agentsIn) < 2 {
		return nil, ErrTooFewAgents
	}
	switch tournamentType {
	case TypeRoundRobin:
		return m.RunRoundRobin(ctx, agentsIn)
	case TypeSingleElimination:
		return m.RunSingleElimination(ctx, agentsIn)
	case TypeLeague:
		return m.RunLeague(ctx, agentsIn)
	}
	return nil, fmt.Errorf("unknown tournament type %q", tournamentType)
}

// RunRoundRobin plays every pair once, in combination order.
func (m *Manager) RunRoundRobin(ctx context.Context, agentsIn []Agent) (*Result, error) {
	var pairs [][2]Agent
	for i := range agentsIn {
		for j := i + 1; j < len(agentsIn); j++ {
			pairs = append(pairs, [2]Agent{agentsIn[i], agentsIn[j]})
		}
	}

	fmt.Fprintln(m.out, "🏆 Starting Round-Robin Tournament")
	fmt.Fprintf(m.out, "👥 %d agents, %d rounds per match\n", len(agentsIn), m.opts.Rounds)
	fmt.Fprintln(m.out, strings.Repeat("=", 60))

	names := agentNames(agentsIn)
	scorer := NewScorer(names)
	if err := m.logger.TournamentStart(agentsIn, TypeRoundRobin, m.opts.Rounds, m.opts.Temperature, m.opts.Seed); err != nil {
		return nil, err
	}

	for i, p := range pairs {
		a, b := p[0], p[1]
		fmt.Fprintf(m.out, "\n⚔️ Match %d/%d: %s vs %s\n", i+1, len(pairs), a.Name(), b.Name())
		matchID := fmt.Sprintf("RR%03d_%s_vs_%s", i+1, a.Name(), b.Name())
		summary, err := m.loggedMatch(ctx, matchID, a, b)
		if err != nil {
			return nil, err
		}
		recordMatch(scorer, summary)
		fmt.Fprintf(m.out, "🏅 Winner: %s\n", summary.Winner)
	}

	res := m.finish(scorer, TypeRoundRobin, "Round-Robin", names)
	res.TotalMatches = len(pairs)
	return res, m.logger.TournamentEnd(res.Standings, res.Champion)
}

// RunSingleElimination pads the bracket to a power of two with random
// agents named Bye{n} and advances a random side on a drawn match.
func (m *Manager) RunSingleElimination(ctx context.Context, agentsIn []Agent) (*Result, error) {
	bracket := m.padBracket(agentsIn)
	names := agentNames(bracket)

	fmt.Fprintln(m.out, "🏆 Starting Single-Elimination Tournament")
	fmt.Fprintf(m.out, "👥 %d agents, %d rounds per match\n", len(agentsIn), m.opts.Rounds)
	fmt.Fprintln(m.out, strings.Repeat("=", 60))

	if err := m.logger.TournamentStart(bracket, TypeSingleElimination, m.opts.Rounds, m.opts.Temperature, m.opts.Seed); err != nil {
		return nil, err
	}

	scorer := NewScorer(names)
	current := bracket
	round := 1
	for len(current) > 1 {
		fmt.Fprintf(m.out, "\n🔥 Round %d - %d participants\n", round, len(current))
		fmt.Fprintln(m.out, strings.Repeat("-", 40))

		next := make([]Agent, 0, len(current)/2)
		for i := 0; i+1 < len(current); i += 2 {
			a, b := current[i], current[i+1]
			fmt.Fprintf(m.out, "⚔️ %s vs %s\n", a.Name(), b.Name())
			matchID := fmt.Sprintf("SE_R%dM%d_%s_vs_%s", round, i/2+1, a.Name(), b.Name())
			summary, err := m.loggedMatch(ctx, matchID, a, b)
			if err != nil {
				return nil, err
			}
			recordMatch(scorer, summary)

			advancing := a
			switch summary.Winner {
			case b.Name():
				advancing = b
			case DrawWinner:
				if m.rng.IntN(2) == 1 {
					advancing = b
				}
				fmt.Fprintf(m.out, "🎲 Draw! Randomly advancing: %s\n", advancing.Name())
			}
			next = append(next, advancing)
			fmt.Fprintf(m.out, "✅ %s advances!\n", advancing.Name())
		}
		current = next
		round++
	}

	champion := current[0].Name()
	fmt.Fprintln(m.out, strings.Repeat("=", 60))
	fmt.Fprintf(m.out, "🏆 TOURNAMENT CHAMPION: %s\n", champion)
	fmt.Fprintln(m.out, strings.Repeat("=", 60))

	res := &Result{
		Type:         TypeSingleElimination,
		Participants: names,
		Champion:     champion,
		Standings:    scorer.Standings(),
		Leaderboard:  scorer.Leaderboard(),
		TotalMatches: len(bracket) - 1,
		TotalRounds:  round - 1,
	}
	return res, m.logger.TournamentEnd(res.Standings, champion)
}

// RunLeague plays Rounds single rounds between randomly paired agents,
// scoring each as a match. Standings are logged every five rounds.
func (m *Manager) RunLeague(ctx context.Context, agentsIn []Agent) (*Result, error) {
	names := agentNames(agentsIn)
	scorer := NewScorer(names)

	fmt.Fprintln(m.out, "🏆 Starting League Tournament")
	fmt.Fprintf(m.out, "👥 %d agents, %d total rounds\n", len(agentsIn), m.opts.Rounds)
	fmt.Fprintln(m.out, strings.Repeat("=", 60))

	if err := m.logger.TournamentStart(agentsIn, TypeLeague, m.opts.Rounds, m.opts.Temperature, m.opts.Seed); err != nil {
		return nil, err
	}

	shuffled := append([]Agent(nil), agentsIn...)
	for round := 1; round <= m.opts.Rounds; round++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		m.rng.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })
		fmt.Fprintf(m.out, "\n🔄 Round %d/%d\n", round, m.opts.Rounds)

		for i := 0; i+1 < len(shuffled); i += 2 {
			a, b := shuffled[i], shuffled[i+1]
			m1, m2, r1, r2, err := m.playRound(ctx, a, b, round, nil, nil)
			if err != nil {
				return nil, err
			}
			scorer.RecordMatch(a.Name(), b.Name(), r1, r2)
			fmt.Fprintf(m.out, "  %s=%s vs %s=%s → %s\n", a.Name(), m1, b.Name(), m2, roundVerdict(a, b, r1))
		}

		if round%5 == 0 {
			if err := m.logger.RoundSummary(round, scorer.Standings()); err != nil {
				return nil, err
			}
			m.displayStandings(scorer, fmt.Sprintf("After Round %d", round))
		}
	}

	res := m.finish(scorer, TypeLeague, "League", names)
	res.TotalRounds = m.opts.Rounds
	return res, m.logger.TournamentEnd(res.Standings, res.Champion)
}

// PlayMatch plays a multi-round match without match_start/match_end records.
func (m *Manager) PlayMatch(ctx context.Context, a, b Agent) (MatchSummary, error) {
	start := time.Now()
	s := MatchSummary{Player1: a, Player2: b}
	fmt.Fprintf(m.out, "    🎲 Playing %d-round match...\n", m.opts.Rounds)

	for round := 1; round <= m.opts.Rounds; round++ {
		m1, m2, r1, _, err := m.playRound(ctx, a, b, round, s.Player1History, s.Player2History)
		if err != nil {
			return s, err
		}
		switch r1 {
		case Win:
			s.Player1Score++
		case Loss:
			s.Player2Score++
		}
		s.Player1History = append(s.Player1History, m1)
		s.Player2History = append(s.Player2History, m2)
		fmt.Fprintf(m.out, "      Round %2d: %s=%-8s vs %s=%-8s → %s\n", round, a.Name(), m1, b.Name(), m2, roundVerdict(a, b, r1))
	}

	switch {
	case s.Player1Score > s.Player2Score:
		s.Winner = a.Name()
	case s.Player2Score > s.Player1Score:
		s.Winner = b.Name()
	default:
		s.Winner = DrawWinner
	}
	s.Duration = time.Since(start)
	fmt.Fprintf(m.out, "    📊 Final Score: %s %d-%d %s (%.1fs)\n", a.Name(), s.Player1Score, s.Player2Score, b.Name(), s.Duration.Seconds())
	return s, nil
}

func (m *Manager) loggedMatch(ctx context.Context, matchID string, a, b Agent) (MatchSummary, error) {
	if err := m.logger.MatchStart(matchID, a, b, m.opts.Rounds); err != nil {
		return MatchSummary{}, err
	}
	s, err := m.PlayMatch(ctx, a, b)
	if err != nil {
		return s, err
	}
	s.MatchID = matchID
	return s, m.logger.MatchEnd(s)
}

// playRound asks both agents for a move. If either fails, both moves are
// replaced with random ones so the round still counts.
func (m *Manager) playRound(ctx context.Context, a, b Agent, round int, aHist, bHist []Move) (Move, Move, Outcome, Outcome, error) {
	if err := ctx.Err(); err != nil {
		return "", "", "", "", err
	}
	m.matchCounter++
	id := fmt.Sprintf("M%04d", m.matchCounter)

	m1, err := a.MakeMove(ctx, round, bHist, aHist)
	var m2 Move
	if err == nil {
		m2, err = b.MakeMove(ctx, round, aHist, bHist)
	}
	if err != nil {
		if ctx.Err() != nil {
			return "", "", "", "", ctx.Err()
		}
		slog.Warn("move failed, playing random moves", "round", round, "player1", a.Name(), "player2", b.Name(), "error", err)
		fmt.Fprintf(m.out, "⚠️ Error getting moves in round %d: %v\n", round, err)
		m1 = Moves[m.rng.IntN(len(Moves))]
		m2 = Moves[m.rng.IntN(len(Moves))]
	}

	r1, r2 := DetermineWinner(m1, m2)
	if err := m.logger.Round(id, a.Name(), b.Name(), m1, m2, r1, r2); err != nil {
		return "", "", "", "", err
	}
	return m1, m2, r1, r2, nil
}

func (m *Manager) padBracket(agentsIn []Agent) []Agent {
	size := 2
	for size < len(agentsIn) {
		size *= 2
	}
	out := append([]Agent(nil), agentsIn...)
	for len(out) < size {
		seed := m.rng.Uint64()
		out = append(out, &RandomAgent{
			name: fmt.Sprintf("Bye%d", len(out)),
			rng:  rand.New(rand.NewPCG(seed, seed>>1)),
		})
	}
	return out
}

func (m *Manager) finish(scorer *Scorer, tournamentType, title string, names []string) *Result {
	lb := scorer.Leaderboard()
	res := &Result{
		Type:         tournamentType,
		Participants: names,
		Standings:    scorer.Standings(),
		Leaderboard:  lb,
	}
	if len(lb) > 0 {
		res.Champion = lb[0].Name
	}
	m.displayFinal(lb, title)
	return res
}

func (m *Manager) displayStandings(scorer *Scorer, title string) {
	fmt.Fprintf(m.out, "\n📊 %s\n", title)
	fmt.Fprintln(m.out, strings.Repeat("-", 50))
	for i, e := range scorer.Leaderboard() {
		fmt.Fprintf(m.out, "%2d. %-15s | %3dpts | %2dW-%2dL-%2dD | %.1f%%\n",
			i+1, e.Name, e.Points, e.Wins, e.Losses, e.Draws, e.WinRate*100)
	}
}

func (m *Manager) displayFinal(lb []LeaderboardEntry, title string) {
	fmt.Fprintln(m.out, "\n"+strings.Repeat("=", 60))
	fmt.Fprintf(m.out, "🏆 %s TOURNAMENT RESULTS\n", strings.ToUpper(title))
	fmt.Fprintln(m.out, strings.Repeat("=", 60))
	if len(lb) > 0 {
		fmt.Fprintf(m.out, "🥇 CHAMPION: %s\n", lb[0].Name)
	}
	fmt.Fprintln(m.out, "\n📊 Final Standings:")
	fmt.Fprintln(m.out, strings.Repeat("-", 60))
	for i, e := range lb {
		medal := "  "
		switch i {
		case 0:
			medal = "🥇"
		case 1:
			medal = "🥈"
		case 2:
			medal = "🥉"
		}
		fmt.Fprintf(m.out, "%s %2d. %-15s | %3d pts | %2d-%2d-%2d | %.1f%% | %d matches\n",
			medal, i+1, e.Name, e.Points, e.Wins, e.Losses, e.Draws, e.WinRate*100, e.MatchesPlayed)
	}
	fmt.Fprintln(m.out, strings.Repeat("=", 60))
}

func recordMatch(scorer *Scorer, s MatchSummary) {
	p1, p2 := s.Player1.Name(), s.Player2.Name()
	switch s.Winner {
	case p1:
		scorer.RecordMatch(p1, p2, Win, Loss)
	case p2:
		scorer.RecordMatch(p1, p2, Loss, Win)
	default:
		scorer.RecordMatch(p1, p2, Draw, Draw)
	}
}

func roundVerdict(a, b Agent, r1 Outcome) string {
	switch r1 {
	case Win:
		return "✅ " + a.Name()
	case Loss:
		return "✅ " + b.Name()
	}
	return "🤝 Draw"
}

func agentNames(agentsIn []Agent) []string {
	out := make([]string, len(agentsIn))
	for i, a := range agentsIn {
		out[i] = a.Name()
	}
	return out
}
