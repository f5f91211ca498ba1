package sessions

import (
	"encoding/csv"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/agent-protocol/agent-arena/pkg/records"
)

var (
	// ErrSessionNotFound is returned when a directory has no session summary.
	ErrSessionNotFound = errors.New("session not found")
	// ErrTooFewSessions is returned when comparing fewer than two sessions.
	ErrTooFewSessions = errors.New("need at least 2 sessions to compare")
	// ErrUnsupportedFormat is returned for unknown export formats.
	ErrUnsupportedFormat = errors.New("unsupported export format")
)

// Info is one line of a session listing.
type Info struct {
	SessionID string    `json:"session_id"`
	Name      string    `json:"name"`
	StartTime time.Time `json:"start_time"`
	Duration  string    `json:"duration"`
	Champion  string    `json:"champion"`
	Format    string    `json:"format"`
	Directory string    `json:"directory"`
}

// Manager inspects the sessions stored under a base directory.
type Manager struct {
	baseDir string
}

// NewManager creates a manager for baseDir.
func NewManager(baseDir string) *Manager {
	return &Manager{baseDir: baseDir}
}

// BaseDir returns the managed directory.
func (m *Manager) BaseDir() string { return m.baseDir }

// LoadSummary reads session_summary.json from a session directory.
func LoadSummary(dir string) (*Summary, error) {
	var s Summary
	if err := records.LoadJSON(filepath.Join(dir, SummaryFile), &s); err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, dir)
		}
		return nil, err
	}
	return &s, nil
}

// Resolve accepts either a path or the name of a session under the base
// directory.
func (m *Manager) Resolve(ref string) string {
	if _, err := os.Stat(filepath.Join(ref, SummaryFile)); err == nil {
		return ref
	}
	return filepath.Join(m.baseDir, ref)
}

// List returns finished sessions, newest first. A missing base directory
// yields an empty list; unreadable sessions are skipped.
func (m *Manager) List() ([]Info, error) {
	entries, err := os.ReadDir(m.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read %s: %w", m.baseDir, err)
	}

	var out []Info
	for _, e := range entries {
		if !e.IsDir() || !strings.HasPrefix(e.Name(), sessionsPrefix) {
			continue
		}
		dir := filepath.Join(m.baseDir, e.Name())
		s, err := LoadSummary(dir)
		if err != nil {
			slog.Warn("skipping session", "dir", dir, "error", err)
			continue
		}
		out = append(out, Info{
			SessionID: s.Metadata.SessionID,
			Name:      e.Name(),
			StartTime: s.Metadata.StartTime,
			Duration:  s.Metadata.TotalDuration,
			Champion:  s.Champion(),
			Format:    s.Format(),
			Directory: dir,
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].StartTime.After(out[j].StartTime) })
	return out, nil
}

// RankedEntry is one row of a session analysis.
type RankedEntry struct {
	Rank    int     `json:"rank"`
	Player  string  `json:"player"`
	Points  int     `json:"points"`
	WinRate float64 `json:"win_rate"`
}

// Analysis summarizes one session.
type Analysis struct {
	Summary *Summary      `json:"summary"`
	Top     []RankedEntry `json:"top"`
}

// Analyze loads a session and ranks its top five players by points then
// games won. Win rate is games won over decided games.
func Analyze(dir string) (*Analysis, error) {
	s, err := LoadSummary(dir)
	if err != nil {
		return nil, err
	}

	standings := s.Standings()
	names := make([]string, 0, len(standings))
	for name := range standings {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		a, b := standings[names[i]], standings[names[j]]
		if a.Points != b.Points {
			return a.Points > b.Points
		}
		if a.GamesWon != b.GamesWon {
			return a.GamesWon > b.GamesWon
		}
		return names[i] < names[j]
	})

	a := &Analysis{Summary: s}
	for i, name := range names {
		if i == 5 {
			break
		}
		st := standings[name]
		a.Top = append(a.Top, RankedEntry{
			Rank:    i + 1,
			Player:  name,
			Points:  st.Points,
			WinRate: ratio(st.GamesWon, st.GamesWon+st.GamesLost),
		})
	}
	return a, nil
}

// ModelComparison aggregates one model across sessions.
type ModelComparison struct {
	Model         string  `json:"model"`
	Sessions      int     `json:"sessions"`
	Championships int     `json:"championships"`
	TotalPoints   int     `json:"total_points"`
	TotalGames    int     `json:"total_games"`
	TotalWins     int     `json:"total_wins"`
	AvgWinRate    float64 `json:"avg_win_rate"`
}

// Comparison is the result of comparing sessions.
type Comparison struct {
	Sessions []*Summary       `json:"sessions"`
	Models   []ModelComparison `json:"models"`
}

// Compare aggregates per-model performance over several sessions, most
// championships first. Sessions that fail to load are skipped.
func Compare(dirs []string) (*Comparison, error) {
	if len(dirs) < 2 {
		return nil, ErrTooFewSessions
	}

	c := &Comparison{}
	for _, dir := range dirs {
		s, err := LoadSummary(dir)
		if err != nil {
			slog.Warn("could not load session", "dir", dir, "error", err)
			continue
		}
		c.Sessions = append(c.Sessions, s)
	}
	if len(c.Sessions) < 2 {
		return nil, fmt.Errorf("%w: only %d could be loaded", ErrTooFewSessions, len(c.Sessions))
	}

	stats := make(map[string]*ModelComparison)
	for _, s := range c.Sessions {
		champion := s.Champion()
		for model, st := range s.Standings() {
			mc, ok := stats[model]
			if !ok {
				mc = &ModelComparison{Model: model}
				stats[model] = mc
			}
			mc.Sessions++
			mc.TotalPoints += st.Points
			mc.TotalGames += st.GamesWon + st.GamesLost
			mc.TotalWins += st.GamesWon
			if model == champion {
				mc.Championships++
			}
		}
	}

	for _, mc := range stats {
		mc.AvgWinRate = ratio(mc.TotalWins, mc.TotalGames)
		c.Models = append(c.Models, *mc)
	}
	sort.Slice(c.Models, func(i, j int) bool {
		if c.Models[i].Championships != c.Models[j].Championships {
			return c.Models[i].Championships > c.Models[j].Championships
		}
		return c.Models[i].Model < c.Models[j].Model
	})
	return c, nil
}

var standingColumns = []string{
	"model", "wins", "losses", "draws", "games_won", "games_lost",
	"games_drawn", "matches_played", "points", "byes",
}

// Export writes a session as JSON (the whole summary) or CSV (standings).
func Export(dir, output, format string) error {
	s, err := LoadSummary(dir)
	if err != nil {
		return err
	}

	switch strings.ToLower(format) {
	case "json":
		return records.SaveJSON(output, s)
	case "csv":
		return exportCSV(s, output)
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}
}

func exportCSV(s *Summary, output string) error {
	f, err := os.Create(output)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", output, err)
	}
	defer f.Close()

	standings := s.Standings()
	models := make([]string, 0, len(standings))
	for m := range standings {
		models = append(models, m)
	}
	sort.Strings(models)

	w := csv.NewWriter(f)
	if err := w.Write(standingColumns); err != nil {
		return err
	}
	for _, m := range models {
		st := standings[m]
		row := []string{m}
		for _, v := range []int{st.Wins, st.Losses, st.Draws, st.GamesWon, st.GamesLost,
			st.GamesDrawn, st.MatchesPlayed, st.Points, st.Byes} {
			row = append(row, strconv.Itoa(v))
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

// Cleanup finds sessions that started more than maxAge ago and, unless
// dryRun is set, deletes their directories. It returns the old sessions.
func (m *Manager) Cleanup(maxAge time.Duration, dryRun bool) ([]Info, error) {
	sessions, err := m.List()
	if err != nil {
		return nil, err
	}

	cutoff := time.Now().Add(-maxAge)
	var old []Info
	for _, s := range sessions {
		if s.StartTime.Before(cutoff) {
			old = append(old, s)
		}
	}
	if dryRun {
		return old, nil
	}

	for _, s := range old {
		if err := os.RemoveAll(s.Directory); err != nil {
			return old, fmt.Errorf("failed to delete %s: %w", s.Name, err)
		}
		slog.Info("deleted session", "name", s.Name)
	}
	return old, nil
}

func ratio(a, b int) float64 {
	if b == 0 {
		return 0
	}
	return float64(a) / float64(b)
}
