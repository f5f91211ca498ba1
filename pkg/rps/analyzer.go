package rps

import (
	"slices"
	"sort"

	"github.com/agent-protocol/agent-arena/pkg/records"
)

// LoadLog reads a tournament JSONL log.
func LoadLog(path string) ([]Record, error) {
	return records.ReadLines[Record](path)
}

// AgentStats aggregates one agent's rounds and matches.
type AgentStats struct {
	Agent            string           `json:"agent_name"`
	TotalRounds      int              `json:"total_rounds"`
	RoundWins        int              `json:"round_wins"`
	RoundLosses      int              `json:"round_losses"`
	RoundDraws       int              `json:"round_draws"`
	RoundWinRate     float64          `json:"round_win_rate"`
	MatchWins        int              `json:"match_wins"`
	MatchLosses      int              `json:"match_losses"`
	MatchDraws       int              `json:"match_draws"`
	MatchWinRate     float64          `json:"match_win_rate"`
	MoveFrequency    map[Move]int     `json:"move_frequency"`
	MoveDistribution map[Move]float64 `json:"move_distribution"`
	Opponents        []string         `json:"opponents_faced"`
}

// HeadToHeadRound is one round seen from the first agent's side.
type HeadToHeadRound struct {
	Agent1Move Move    `json:"agent1_move"`
	Agent2Move Move    `json:"agent2_move"`
	Result     Outcome `json:"result"`
}

// HeadToHead compares two agents over every round they played.
type HeadToHead struct {
	Agent1       string            `json:"agent1"`
	Agent2       string            `json:"agent2"`
	TotalRounds  int               `json:"total_rounds"`
	Agent1Wins   int               `json:"agent1_wins"`
	Agent2Wins   int               `json:"agent2_wins"`
	Draws        int               `json:"draws"`
	Agent1WinPct float64           `json:"agent1_win_rate"`
	Agent2WinPct float64           `json:"agent2_win_rate"`
	Rounds       []HeadToHeadRound `json:"rounds_detail"`
}

// Effectiveness is how one move fared against another.
type Effectiveness struct {
	WinRate    float64 `json:"win_rate"`
	Encounters int     `json:"total_encounters"`
	Wins       int     `json:"wins"`
}

// ModelStats aggregates match_end records by model.
type ModelStats struct {
	TotalMatches      int      `json:"total_matches"`
	Wins              int      `json:"wins"`
	Losses            int      `json:"losses"`
	Draws             int      `json:"draws"`
	TotalRounds       int      `json:"total_rounds"`
	RoundsWon         int      `json:"rounds_won"`
	SameModelMatches  int      `json:"same_model_matches"`
	CrossModelMatches int      `json:"cross_model_matches"`
	Opponents         []string `json:"opponents_faced"`
	TotalDuration     float64  `json:"total_duration"`
	AvgMatchDuration  float64  `json:"average_match_duration"`
	MatchWinRate      float64  `json:"match_win_rate"`
	RoundWinRate      float64  `json:"round_win_rate"`
}

// TournamentSummary is the headline view of a log.
type TournamentSummary struct {
	Type             string           `json:"tournament_type"`
	Participants     []string         `json:"participants"`
	TotalRounds      int              `json:"total_rounds"`
	TotalMatches     int              `json:"total_matches"`
	Champion         string           `json:"champion"`
	MoveDistribution map[Move]float64 `json:"move_distribution"`
	Temperature      *float32         `json:"temperature,omitempty"`
	Seed             *int             `json:"seed,omitempty"`
}

// Analyzer answers questions about a tournament log.
type Analyzer struct {
	data      []Record
	rounds    []Record
	matchEnds []Record
	agents    []string
}

// NewAnalyzer indexes the records.
func NewAnalyzer(data []Record) *Analyzer {
	a := &Analyzer{data: data}
	seen := map[string]bool{}
	for _, r := range data {
		switch r.Type {
		case RecordRound:
			a.rounds = append(a.rounds, r)
		case RecordMatchEnd:
			a.matchEnds = append(a.matchEnds, r)
		case RecordTournamentStart:
			for _, n := range r.AgentNames {
				if !seen[n] {
					seen[n] = true
					a.agents = append(a.agents, n)
				}
			}
		}
	}
	sort.Strings(a.agents)
	return a
}

// Agents lists every agent named at tournament start, sorted.
func (a *Analyzer) Agents() []string { return a.agents }

// AgentStatistics summarizes one agent.
func (a *Analyzer) AgentStatistics(name string) AgentStats {
	s := AgentStats{Agent: name, MoveFrequency: map[Move]int{Rock: 0, Paper: 0, Scissors: 0}}
	opponents := map[string]bool{}

	for _, r := range a.rounds {
		var move Move
		var result Outcome
		switch name {
		case r.Player1:
			move, result = r.Move1, r.Result1
			opponents[r.Player2] = true
		case r.Player2:
			move, result = r.Move2, r.Result2
			opponents[r.Player1] = true
		default:
			continue
		}
		s.TotalRounds++
		s.MoveFrequency[move]++
		switch result {
		case Win:
			s.RoundWins++
		case Loss:
			s.RoundLosses++
		default:
			s.RoundDraws++
		}
	}

	for _, r := range a.matchEnds {
		if r.Player1 != name && r.Player2 != name {
			continue
		}
		switch r.Winner {
		case name:
			s.MatchWins++
		case DrawWinner:
			s.MatchDraws++
		default:
			s.MatchLosses++
		}
	}

	s.RoundWinRate = rate(s.RoundWins, s.TotalRounds)
	s.MatchWinRate = rate(s.MatchWins, s.MatchWins+s.MatchLosses+s.MatchDraws)
	s.MoveDistribution = distribution(s.MoveFrequency, s.TotalRounds)
	s.Opponents = sortedKeys(opponents)
	return s
}

// HeadToHead compares agent1 against agent2.
func (a *Analyzer) HeadToHead(agent1, agent2 string) HeadToHead {
	h := HeadToHead{Agent1: agent1, Agent2: agent2}
	for _, r := range a.rounds {
		var round HeadToHeadRound
		switch {
		case r.Player1 == agent1 && r.Player2 == agent2:
			round = HeadToHeadRound{Agent1Move: r.Move1, Agent2Move: r.Move2, Result: r.Result1}
		case r.Player1 == agent2 && r.Player2 == agent1:
			round = HeadToHeadRound{Agent1Move: r.Move2, Agent2Move: r.Move1, Result: r.Result2}
		default:
			continue
		}
		h.Rounds = append(h.Rounds, round)
		switch round.Result {
		case Win:
			h.Agent1Wins++
		case Loss:
			h.Agent2Wins++
		default:
			h.Draws++
		}
	}
	h.TotalRounds = len(h.Rounds)
	h.Agent1WinPct = rate(h.Agent1Wins, h.TotalRounds)
	h.Agent2WinPct = rate(h.Agent2Wins, h.TotalRounds)
	return h
}

// MoveEffectiveness maps player1's move and player2's move to how often
// player1 won that pairing.
func (a *Analyzer) MoveEffectiveness() map[Move]map[Move]Effectiveness {
	out := make(map[Move]map[Move]Effectiveness, len(Moves))
	for _, m1 := range Moves {
		out[m1] = make(map[Move]Effectiveness, len(Moves))
		for _, m2 := range Moves {
			out[m1][m2] = Effectiveness{}
		}
	}
	for _, r := range a.rounds {
		row, ok := out[r.Move1]
		if !ok {
			continue
		}
		e, ok := row[r.Move2]
		if !ok || r.Result1 == "" {
			continue
		}
		e.Encounters++
		if r.Result1 == Win {
			e.Wins++
		}
		e.WinRate = rate(e.Wins, e.Encounters)
		row[r.Move2] = e
	}
	return out
}

// ModelPerformance aggregates match results per model. A match between
// two agents of the same model is counted once.
func (a *Analyzer) ModelPerformance() map[string]*ModelStats {
	stats := map[string]*ModelStats{}
	opponents := map[string]map[string]bool{}
	get := func(model string) *ModelStats {
		if s, ok := stats[model]; ok {
			return s
		}
		s := &ModelStats{}
		stats[model] = s
		opponents[model] = map[string]bool{}
		return s
	}
	tally := func(s *ModelStats, winnerModel, model string) {
		switch winnerModel {
		case model:
			s.Wins++
		case DrawWinner:
			s.Draws++
		default:
			s.Losses++
		}
	}

	for _, r := range a.matchEnds {
		m1, m2 := orUnknown(r.Player1Model), orUnknown(r.Player2Model)
		winner := orUnknown(r.WinnerModel)

		s1 := get(m1)
		s1.TotalMatches++
		s1.TotalRounds += r.TotalRounds
		s1.RoundsWon += r.Player1Score
		s1.TotalDuration += r.MatchDurationSeconds
		opponents[m1][m2] = true
		tally(s1, winner, m1)
		if m1 == m2 {
			s1.SameModelMatches++
			continue
		}
		s1.CrossModelMatches++

		s2 := get(m2)
		s2.TotalMatches++
		s2.TotalRounds += r.TotalRounds
		s2.RoundsWon += r.Player2Score
		s2.TotalDuration += r.MatchDurationSeconds
		opponents[m2][m1] = true
		tally(s2, winner, m2)
		s2.CrossModelMatches++
	}

	for model, s := range stats {
		s.MatchWinRate = rate(s.Wins, s.TotalMatches)
		s.RoundWinRate = rate(s.RoundsWon, s.TotalRounds)
		if s.TotalMatches > 0 {
			s.AvgMatchDuration = s.TotalDuration / float64(s.TotalMatches)
		}
		s.Opponents = sortedKeys(opponents[model])
	}
	return stats
}

// Summary reports the tournament type, champion and overall move mix.
func (a *Analyzer) Summary() TournamentSummary {
	s := TournamentSummary{
		Participants: a.agents,
		TotalRounds:  len(a.rounds),
		TotalMatches: len(a.matchEnds),
	}
	for _, r := range a.data {
		switch r.Type {
		case RecordTournamentStart:
			s.Type = r.TournamentType
			s.Temperature = r.Temperature
			s.Seed = r.Seed
		case RecordTournamentEnd:
			s.Champion = r.Champion
		}
	}

	counts := map[Move]int{Rock: 0, Paper: 0, Scissors: 0}
	total := 0
	for _, r := range a.rounds {
		for _, m := range []Move{r.Move1, r.Move2} {
			if slices.Contains(Moves, m) {
				counts[m]++
				total++
			}
		}
	}
	s.MoveDistribution = distribution(counts, total)
	return s
}

func distribution(counts map[Move]int, total int) map[Move]float64 {
	out := make(map[Move]float64, len(counts))
	for m, c := range counts {
		out[m] = rate(c, total)
	}
	return out
}

func sortedKeys(set map[string]bool) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}
