package rps

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/agent-protocol/agent-arena/pkg/records"
)

// Record types written to the tournament log.
const (
	RecordTournamentStart = "tournament_start"
	RecordMatchStart      = "match_start"
	RecordRound           = "match"
	RecordMatchEnd        = "match_end"
	RecordRoundSummary    = "round_summary"
	RecordTournamentEnd   = "tournament_end"
)

// DrawWinner is the winner recorded for a drawn match.
const DrawWinner = "Draw"

// ModelMeta describes the model behind an agent.
type ModelMeta struct {
	Model       string  `json:"model"`
	Temperature float32 `json:"temperature"`
	AgentType   string  `json:"agent_type"`
}

// MoveSequence is one round of a match.
type MoveSequence struct {
	Round       int  `json:"round"`
	Player1Move Move `json:"player1_move"`
	Player2Move Move `json:"player2_move"`
}

// Streaks summarizes consecutive round results. CurrentStreak is positive
// for wins and negative for losses.
type Streaks struct {
	LongestWinStreak  int    `json:"longest_win_streak"`
	LongestLossStreak int    `json:"longest_loss_streak"`
	CurrentStreak     int    `json:"current_streak"`
	StreakType        string `json:"streak_type"`
}

// Record is one line of the tournament log. Fields not used by a record
// type are omitted.
type Record struct {
	Timestamp time.Time `json:"timestamp"`
	Type      string    `json:"type"`

	// tournament_start
	AgentNames           []string             `json:"agent_names,omitempty"`
	Models               []string             `json:"models,omitempty"`
	UniqueModels         []string             `json:"unique_models,omitempty"`
	NumParticipants      int                  `json:"num_participants,omitempty"`
	NumUniqueModels      int                  `json:"num_unique_models,omitempty"`
	TournamentType       string               `json:"tournament_type,omitempty"`
	Rounds               int                  `json:"rounds,omitempty"`
	Temperature          *float32             `json:"temperature,omitempty"`
	Seed                 *int                 `json:"seed,omitempty"`
	ModelMetadata        map[string]ModelMeta `json:"model_metadata,omitempty"`
	ExpectedTotalMatches int                  `json:"expected_total_matches,omitempty"`

	// match, match_start, match_end
	MatchID            string   `json:"match_id,omitempty"`
	Player1            string   `json:"player1,omitempty"`
	Player2            string   `json:"player2,omitempty"`
	Move1              Move     `json:"move1,omitempty"`
	Move2              Move     `json:"move2,omitempty"`
	Result1            Outcome  `json:"result1,omitempty"`
	Result2            Outcome  `json:"result2,omitempty"`
	Player1Model       string   `json:"player1_model,omitempty"`
	Player2Model       string   `json:"player2_model,omitempty"`
	Player1Temperature *float32 `json:"player1_temperature,omitempty"`
	Player2Temperature *float32 `json:"player2_temperature,omitempty"`
	ModelMatchup       string   `json:"model_matchup,omitempty"`
	IsSameModel        bool     `json:"is_same_model,omitempty"`
	RoundsInMatch      int      `json:"rounds_in_match,omitempty"`
	MatchNumber        int      `json:"match_number,omitempty"`

	Winner               string         `json:"winner,omitempty"`
	WinnerModel          string         `json:"winner_model,omitempty"`
	FinalScore           string         `json:"final_score,omitempty"`
	Player1Score         int            `json:"player1_score,omitempty"`
	Player2Score         int            `json:"player2_score,omitempty"`
	Draws                int            `json:"draws,omitempty"`
	TotalRounds          int            `json:"total_rounds,omitempty"`
	Player1WinRate       float64        `json:"player1_win_rate,omitempty"`
	Player2WinRate       float64        `json:"player2_win_rate,omitempty"`
	Player1MoveFrequency map[Move]int   `json:"player1_move_frequency,omitempty"`
	Player2MoveFrequency map[Move]int   `json:"player2_move_frequency,omitempty"`
	MoveSequences        []MoveSequence `json:"move_sequences,omitempty"`
	Player1Streaks       *Streaks       `json:"player1_streaks,omitempty"`
	Player2Streaks       *Streaks       `json:"player2_streaks,omitempty"`
	MatchDurationSeconds float64        `json:"match_duration_seconds,omitempty"`

	// round_summary, tournament_end
	Round                 int                 `json:"round,omitempty"`
	Standings             map[string]Standing `json:"standings,omitempty"`
	TournamentStartTime   *time.Time          `json:"tournament_start_time,omitempty"`
	TournamentEndTime     *time.Time          `json:"tournament_end_time,omitempty"`
	DurationSeconds       float64             `json:"tournament_duration_seconds,omitempty"`
	FinalStandings        map[string]Standing `json:"final_standings,omitempty"`
	Champion              string              `json:"champion,omitempty"`
	TotalParticipants     int                 `json:"total_participants,omitempty"`
	TotalMatchesPlayed    int                 `json:"total_matches_played,omitempty"`
	MatchesPerParticipant float64             `json:"matches_per_participant,omitempty"`
}

// MatchSummary is what a finished multi-round match contributes to the log.
type MatchSummary struct {
	MatchID        string
	Player1        Agent
	Player2        Agent
	Winner         string
	Player1Score   int
	Player2Score   int
	Player1History []Move
	Player2History []Move
	Duration       time.Duration
}

// Logger writes the tournament JSONL log. The file is emptied when the
// logger is created.
type Logger struct {
	mu          sync.Mutex
	w           *records.Writer
	now         func() time.Time
	start       time.Time
	matchNumber int
}

// NewLogger truncates path and opens it for appending.
func NewLogger(path string) (*Logger, error) {
	w, err := records.Create(path, true)
	if err != nil {
		return nil, err
	}
	return &Logger{w: w, now: func() time.Time { return time.Now().UTC() }}, nil
}

// Path is the log file.
func (l *Logger) Path() string { return l.w.Path() }

// Close closes the log.
func (l *Logger) Close() error { return l.w.Close() }

// BaseModel strips an "(AgentN)" suffix from an agent name.
func BaseModel(name string) string {
	if i := strings.Index(name, "("); i > 0 && strings.Contains(name[i:], ")") {
		return name[:i]
	}
	return name
}

// ExpectedMatches predicts the number of matches for n participants.
func ExpectedMatches(n int, tournamentType string) int {
	switch tournamentType {
	case TypeRoundRobin:
		return n * (n - 1) / 2
	case TypeSingleElimination:
		size := 2
		for size < n {
			size *= 2
		}
		return size - 1
	default:
		return n
	}
}

func (l *Logger) TournamentStart(agentsIn []Agent, tournamentType string, rounds int, temperature float32, seed int) error {
	l.mu.Lock()
	l.start = l.now()
	l.matchNumber = 0
	l.mu.Unlock()

	names := make([]string, len(agentsIn))
	models := make([]string, len(agentsIn))
	meta := make(map[string]ModelMeta, len(agentsIn))
	seen := map[string]bool{}
	var unique []string
	for i, a := range agentsIn {
		names[i] = a.Name()
		models[i] = BaseModel(a.Name())
		if !seen[models[i]] {
			seen[models[i]] = true
			unique = append(unique, models[i])
		}
		meta[a.Name()] = ModelMeta{Model: a.Model(), Temperature: a.Temperature(), AgentType: a.Kind()}
	}

	return l.w.Write(Record{
		Timestamp:            l.start,
		Type:                 RecordTournamentStart,
		AgentNames:           names,
		Models:               models,
		UniqueModels:         unique,
		NumParticipants:      len(names),
		NumUniqueModels:      len(unique),
		TournamentType:       tournamentType,
		Rounds:               rounds,
		Temperature:          &temperature,
		Seed:                 &seed,
		ModelMetadata:        meta,
		ExpectedTotalMatches: ExpectedMatches(len(names), tournamentType),
	})
}

func (l *Logger) MatchStart(matchID string, p1, p2 Agent, roundsInMatch int) error {
	l.mu.Lock()
	l.matchNumber++
	n := l.matchNumber
	l.mu.Unlock()

	t1, t2 := p1.Temperature(), p2.Temperature()
	return l.w.Write(Record{
		Timestamp:          l.now(),
		Type:               RecordMatchStart,
		MatchID:            matchID,
		Player1:            p1.Name(),
		Player2:            p2.Name(),
		Player1Model:       p1.Model(),
		Player2Model:       p2.Model(),
		Player1Temperature: &t1,
		Player2Temperature: &t2,
		ModelMatchup:       p1.Model() + "_vs_" + p2.Model(),
		IsSameModel:        p1.Model() == p2.Model(),
		RoundsInMatch:      roundsInMatch,
		MatchNumber:        n,
	})
}

// Round logs a single round.
func (l *Logger) Round(matchID, p1, p2 string, m1, m2 Move, r1, r2 Outcome) error {
	return l.w.Write(Record{
		Timestamp: l.now(),
		Type:      RecordRound,
		MatchID:   matchID,
		Player1:   p1,
		Player2:   p2,
		Move1:     m1,
		Move2:     m2,
		Result1:   r1,
		Result2:   r2,
	})
}

// MatchEnd logs a finished match with frequencies, sequences and streaks.
func (l *Logger) MatchEnd(m MatchSummary) error {
	total := len(m.Player1History)
	seqs := make([]MoveSequence, total)
	for i := range total {
		seqs[i] = MoveSequence{Round: i + 1, Player1Move: m.Player1History[i], Player2Move: m.Player2History[i]}
	}

	winnerModel := m.Winner
	switch m.Winner {
	case m.Player1.Name():
		winnerModel = m.Player1.Model()
	case m.Player2.Name():
		winnerModel = m.Player2.Model()
	}

	return l.w.Write(Record{
		Timestamp:            l.now(),
		Type:                 RecordMatchEnd,
		MatchID:              m.MatchID,
		Player1:              m.Player1.Name(),
		Player2:              m.Player2.Name(),
		Player1Model:         m.Player1.Model(),
		Player2Model:         m.Player2.Model(),
		ModelMatchup:         m.Player1.Model() + "_vs_" + m.Player2.Model(),
		IsSameModel:          m.Player1.Model() == m.Player2.Model(),
		Winner:               m.Winner,
		WinnerModel:          winnerModel,
		FinalScore:           formatScore(m.Player1Score, m.Player2Score),
		Player1Score:         m.Player1Score,
		Player2Score:         m.Player2Score,
		Draws:                total - m.Player1Score - m.Player2Score,
		TotalRounds:          total,
		Player1WinRate:       rate(m.Player1Score, total),
		Player2WinRate:       rate(m.Player2Score, total),
		Player1MoveFrequency: frequencies(m.Player1History),
		Player2MoveFrequency: frequencies(m.Player2History),
		MoveSequences:        seqs,
		Player1Streaks:       CalculateStreaks(m.Player1History, m.Player2History),
		Player2Streaks:       CalculateStreaks(m.Player2History, m.Player1History),
		MatchDurationSeconds: m.Duration.Seconds(),
	})
}

// RoundSummary logs standings part way through a league.
func (l *Logger) RoundSummary(round int, standings map[string]Standing) error {
	return l.w.Write(Record{
		Timestamp: l.now(),
		Type:      RecordRoundSummary,
		Round:     round,
		Standings: standings,
	})
}

// TournamentEnd logs the final standings.
func (l *Logger) TournamentEnd(standings map[string]Standing, champion string) error {
	l.mu.Lock()
	start, matches := l.start, l.matchNumber
	l.mu.Unlock()

	end := l.now()
	rec := Record{
		Timestamp:          end,
		Type:               RecordTournamentEnd,
		TournamentEndTime:  &end,
		FinalStandings:     standings,
		Champion:           champion,
		TotalParticipants:  len(standings),
		TotalMatchesPlayed: matches,
	}
	if !start.IsZero() {
		rec.TournamentStartTime = &start
		rec.DurationSeconds = end.Sub(start).Seconds()
	}
	if len(standings) > 0 {
		rec.MatchesPerParticipant = float64(matches) / float64(len(standings))
	}
	return l.w.Write(rec)
}

// CalculateStreaks walks the round results from the player's side.
func CalculateStreaks(player, opponent []Move) *Streaks {
	s := &Streaks{StreakType: "none"}
	n := min(len(player), len(opponent))
	win, loss := 0, 0
	var last Outcome
	for i := range n {
		r, _ := DetermineWinner(player[i], opponent[i])
		last = r
		switch r {
		case Win:
			win++
			loss = 0
			s.LongestWinStreak = max(s.LongestWinStreak, win)
		case Loss:
			loss++
			win = 0
			s.LongestLossStreak = max(s.LongestLossStreak, loss)
		default:
			win, loss = 0, 0
		}
	}
	switch last {
	case Win:
		s.CurrentStreak = win
		s.StreakType = "win"
	case Loss:
		s.CurrentStreak = -loss
		s.StreakType = "loss"
	}
	return s
}

func formatScore(a, b int) string {
	return fmt.Sprintf("%d-%d", a, b)
}

func rate(n, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(n) / float64(total)
}
