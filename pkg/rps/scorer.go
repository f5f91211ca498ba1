package rps

import "sort"

// Standing is one agent's record. Points are 3 per win and 1 per draw.
type Standing struct {
	Wins          int     `json:"wins"`
	Losses        int     `json:"losses"`
	Draws         int     `json:"draws"`
	MatchesPlayed int     `json:"matches_played"`
	WinRate       float64 `json:"win_rate"`
	Points        int     `json:"points"`
}

// LeaderboardEntry pairs an agent with its standing.
type LeaderboardEntry struct {
	Name string
	Standing
}

// Scorer tallies match results.
type Scorer struct {
	names   []string
	records map[string]*Standing
}

// NewScorer starts everyone at zero.
func NewScorer(names []string) *Scorer {
	s := &Scorer{names: append([]string(nil), names...)}
	s.Reset()
	return s
}

// Reset clears every record.
func (s *Scorer) Reset() {
	s.records = make(map[string]*Standing, len(s.names))
	for _, n := range s.names {
		s.records[n] = &Standing{}
	}
}

// RecordMatch applies both players' outcomes.
func (s *Scorer) RecordMatch(p1, p2 string, r1, r2 Outcome) {
	s.apply(p1, r1)
	s.apply(p2, r2)
}

func (s *Scorer) apply(name string, r Outcome) {
	st, ok := s.records[name]
	if !ok {
		st = &Standing{}
		s.records[name] = st
		s.names = append(s.names, name)
	}
	st.MatchesPlayed++
	switch r {
	case Win:
		st.Wins++
	case Loss:
		st.Losses++
	default:
		st.Draws++
	}
}

// Standings returns a snapshot with win rate and points filled in.
func (s *Scorer) Standings() map[string]Standing {
	out := make(map[string]Standing, len(s.records))
	for name, st := range s.records {
		v := *st
		if v.MatchesPlayed > 0 {
			v.WinRate = float64(v.Wins) / float64(v.MatchesPlayed)
		}
		v.Points = 3*v.Wins + v.Draws
		out[name] = v
	}
	return out
}

// Leaderboard sorts by points, win rate, then wins, keeping registration
// order for full ties.
func (s *Scorer) Leaderboard() []LeaderboardEntry {
	standings := s.Standings()
	out := make([]LeaderboardEntry, 0, len(s.names))
	for _, n := range s.names {
		out = append(out, LeaderboardEntry{Name: n, Standing: standings[n]})
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Points != b.Points {
			return a.Points > b.Points
		}
		if a.WinRate != b.WinRate {
			return a.WinRate > b.WinRate
		}
		return a.Wins > b.Wins
	})
	return out
}

// Champion is the leaderboard leader.
func (s *Scorer) Champion() string {
	if lb := s.Leaderboard(); len(lb) > 0 {
		return lb[0].Name
	}
	return ""
}
