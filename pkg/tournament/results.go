package tournament

import (
	"sort"

	"github.com/agent-protocol/agent-arena/pkg/game"
)

// Standing accumulates one player's record. Points: match win 3, match
// loss 1, drawn match 2 each, Swiss bye 2.
type Standing struct {
	Wins          int      `json:"wins"`
	Losses        int      `json:"losses"`
	Draws         int      `json:"draws"`
	GamesWon      int      `json:"games_won"`
	GamesLost     int      `json:"games_lost"`
	GamesDrawn    int      `json:"games_drawn"`
	MatchesPlayed int      `json:"matches_played"`
	Points        int      `json:"points"`
	Byes          int      `json:"byes,omitempty"`
	Opponents     []string `json:"opponents"`
}

// WinRate is match wins over matches played.
func (s *Standing) WinRate() float64 {
	if s.MatchesPlayed == 0 {
		return 0
	}
	return float64(s.Wins) / float64(s.MatchesPlayed)
}

func (s *Standing) hasPlayed(name string) bool {
	for _, o := range s.Opponents {
		if o == name {
			return true
		}
	}
	return false
}

// GameResult describes one finished game.
type GameResult struct {
	GameID       string      `json:"game_id"`
	Players      [2]string   `json:"players"` // first mover, second mover
	Winner       string      `json:"winner,omitempty"`
	WinnerSymbol game.Symbol `json:"winner_symbol,omitempty"`
	Moves        int         `json:"moves"`
	Substituted  int         `json:"substituted_moves,omitempty"`
	FinalState   []string    `json:"final_state"`
}

// Result is "win" or "draw".
func (g GameResult) Result() string {
	if g.Winner == "" {
		return "draw"
	}
	return "win"
}

// MatchResult describes a best-of-N match.
type MatchResult struct {
	MatchID  string       `json:"match_id"`
	Round    int          `json:"round"`
	Player1  string       `json:"player1"`
	Player2  string       `json:"player2"`
	Games    []GameResult `json:"games"`
	Winner   string       `json:"winner,omitempty"` // empty for a drawn match
	Score    [2]int       `json:"score"`
	Format   string       `json:"format"`
	TieBreak bool         `json:"tie_break,omitempty"`
}

// MatchSummary is the compact match entry stored in Results.
type MatchSummary struct {
	MatchID string    `json:"match_id"`
	Round   int       `json:"round"`
	Players [2]string `json:"players"`
	Winner  string    `json:"winner,omitempty"`
	Score   [2]int    `json:"score"`
	Games   int       `json:"games"`
}

// ResultsConfig echoes the configuration a tournament ran with.
type ResultsConfig struct {
	Format     Format         `json:"format"`
	BestOf     int            `json:"best_of"`
	GameKind   string         `json:"game"`
	GameConfig map[string]any `json:"game_config"`
}

// Results is the compiled outcome of a tournament.
type Results struct {
	Format       Format               `json:"format"`
	Champion     string               `json:"champion"`
	TotalRounds  int                  `json:"total_rounds"`
	TotalMatches int                  `json:"total_matches"`
	TotalGames   int                  `json:"total_games"`
	Participants []string             `json:"participants"`
	Standings    map[string]*Standing `json:"standings"`
	Matches      []MatchSummary       `json:"matches"`
	Config       ResultsConfig        `json:"config"`
}

// RankedStanding pairs a player with their standing.
type RankedStanding struct {
	Rank  int
	Name  string
	Stats *Standing
}

// Ranking orders players by points, games won, match wins, then name.
func (r *Results) Ranking() []RankedStanding {
	out := make([]RankedStanding, 0, len(r.Standings))
	for name, s := range r.Standings {
		out = append(out, RankedStanding{Name: name, Stats: s})
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i].Stats, out[j].Stats
		if a.Points != b.Points {
			return a.Points > b.Points
		}
		if a.GamesWon != b.GamesWon {
			return a.GamesWon > b.GamesWon
		}
		if a.Wins != b.Wins {
			return a.Wins > b.Wins
		}
		return out[i].Name < out[j].Name
	})
	for i := range out {
		out[i].Rank = i + 1
	}
	return out
}
