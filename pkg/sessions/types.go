// Package sessions records tournament sessions on disk and manages the
// recorded sessions afterwards.
package sessions

import (
	"time"

	"github.com/agent-protocol/agent-arena/pkg/game"
	"github.com/agent-protocol/agent-arena/pkg/tournament"
)

// Event types written to the session logs.
const (
	EventTournamentStart    = "tournament_start"
	EventRoundStart         = "round_start"
	EventMove               = "move"
	EventGameResult         = "game_result"
	EventMatchResult        = "match_result"
	EventTournamentComplete = "tournament_complete"
)

// Session status values.
const (
	StatusRunning   = "running"
	StatusCompleted = "completed"
)

// Event is one line of logs/moves.jsonl or logs/results.jsonl.
type Event struct {
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`

	Models      []string `json:"models,omitempty"`
	TotalRounds int      `json:"total_rounds,omitempty"`

	RoundNumber int    `json:"round_number,omitempty"`
	Label       string `json:"label,omitempty"`

	GameID     string   `json:"game_id,omitempty"`
	Player     string   `json:"player,omitempty"`
	Symbol     string   `json:"symbol,omitempty"`
	Move       []int    `json:"move,omitempty"`
	BoardState []string `json:"board_state,omitempty"`

	Result     string   `json:"result,omitempty"`
	Winner     string   `json:"winner,omitempty"`
	Moves      int      `json:"moves,omitempty"`
	FinalState []string `json:"final_state,omitempty"`

	Match *tournament.MatchResult `json:"match,omitempty"`

	Champion     string `json:"champion,omitempty"`
	TotalMatches int    `json:"total_matches,omitempty"`
	TotalGames   int    `json:"total_games,omitempty"`
	SummaryFile  string `json:"summary_file,omitempty"`
}

// Metadata tracks the lifecycle of a session.
type Metadata struct {
	SessionID     string     `json:"session_id"`
	Name          string     `json:"name"`
	StartTime     time.Time  `json:"start_time"`
	EndTime       *time.Time `json:"end_time"`
	TotalDuration string     `json:"total_duration,omitempty"`
	FilesCreated  []string   `json:"files_created"`
	Status        string     `json:"status"`
}

// ConfigRecord is data/tournament_config.json.
type ConfigRecord struct {
	Tournament tournament.Config `json:"tournament"`
	GameKind   string            `json:"game_kind"`
	Game       game.Config       `json:"game"`
	Models     []string          `json:"models"`
	CLIArgs    map[string]any    `json:"cli_args"`
	Timestamp  string            `json:"timestamp"`
	SessionID  string            `json:"session_id"`
}

// ResultsRecord is data/tournament_summary.json: the compiled results plus
// where the session lives.
type ResultsRecord struct {
	*tournament.Results
	SessionID        string            `json:"session_id"`
	Timestamp        string            `json:"timestamp"`
	CompletionTime   time.Time         `json:"completion_time"`
	SessionDirectory string            `json:"session_directory"`
	Files            map[string]string `json:"files"`
}

// TournamentData collects everything recorded during the run.
type TournamentData struct {
	Config       *ConfigRecord                   `json:"config"`
	Participants []string                        `json:"participants"`
	Matches      []tournament.MatchResult        `json:"matches"`
	Standings    map[string]*tournament.Standing `json:"standings"`
	Results      *ResultsRecord                  `json:"results"`
}

// FileStructure describes the session directory layout.
type FileStructure struct {
	SessionDirectory string            `json:"session_directory"`
	Subdirectories   map[string]string `json:"subdirectories"`
	KeyFiles         map[string]string `json:"key_files"`
	TotalFiles       int               `json:"total_files"`
}

// Summary is session_summary.json, written when a session is finalized.
type Summary struct {
	Metadata       Metadata       `json:"metadata"`
	TournamentData TournamentData `json:"tournament_data"`
	FileStructure  FileStructure  `json:"file_structure"`
}

// Champion returns the recorded champion, or "" for an unfinished session.
func (s *Summary) Champion() string {
	if r := s.TournamentData.Results; r != nil && r.Results != nil {
		return r.Champion
	}
	return ""
}

// Format returns the recorded tournament format.
func (s *Summary) Format() string {
	if c := s.TournamentData.Config; c != nil {
		return string(c.Tournament.Format)
	}
	return ""
}

// Standings returns the final standings, falling back to the ones captured
// during the run.
func (s *Summary) Standings() map[string]*tournament.Standing {
	if r := s.TournamentData.Results; r != nil && r.Results != nil && r.Standings != nil {
		return r.Standings
	}
	return s.TournamentData.Standings
}
