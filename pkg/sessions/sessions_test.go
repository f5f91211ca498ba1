package sessions

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/agent-protocol/agent-arena/pkg/game"
	"github.com/agent-protocol/agent-arena/pkg/players"
	"github.com/agent-protocol/agent-arena/pkg/records"
	"github.com/agent-protocol/agent-arena/pkg/tournament"
)

type firstValid struct{ name string }

func (p firstValid) Name() string  { return p.name }
func (p firstValid) Model() string { return "scripted" }
func (p firstValid) ChooseMove(ctx context.Context, g game.Game, s game.Symbol) (game.Move, error) {
	return g.ValidMoves(s)[0], nil
}

func clock(start time.Time) func() time.Time {
	t := start
	return func() time.Time {
		t = t.Add(time.Second)
		return t
	}
}

// recordSession runs a best-of-one round robin between names and records it.
func recordSession(t *testing.T, base string, start time.Time, extra tournament.Observer, names ...string) *Recorder {
	t.Helper()
	rec, err := newRecorder(base, fmt.Sprintf("tournament_roun_3x3_w3_%dp", len(names)), clock(start))
	if err != nil {
		t.Fatalf("newRecorder failed: %v", err)
	}

	cfg := tournament.Config{Format: tournament.RoundRobin, BestOf: 1}
	if err := rec.SaveConfiguration(ConfigRecord{
		Tournament: cfg,
		GameKind:   game.KindTicTacToe,
		Game:       game.DefaultConfig(),
		Models:     names,
	}); err != nil {
		t.Fatalf("SaveConfiguration failed: %v", err)
	}

	ps := make([]players.Player, len(names))
	for i, n := range names {
		ps[i] = firstValid{name: n}
	}
	factory := func() (game.Game, error) { return game.NewTicTacToe(game.DefaultConfig()) }
	e := tournament.NewEngine(cfg, factory, tournament.NewMultiObserver(rec, extra))
	if err := e.AddPlayers(ps); err != nil {
		t.Fatal(err)
	}
	res, err := e.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if _, err := rec.SaveResults(res); err != nil {
		t.Fatalf("SaveResults failed: %v", err)
	}
	if _, err := rec.Finalize(); err != nil {
		t.Fatalf("Finalize failed: %v", err)
	}
	return rec
}

func TestSessionName(t *testing.T) {
	tests := []struct {
		format tournament.Format
		bestOf int
		board  int
		win    int
		models int
		want   string
	}{
		{tournament.RoundRobin, 1, 3, 3, 4, "tournament_roun_3x3_w3_4p"},
		{tournament.SingleElimination, 3, 5, 4, 2, "tournament_sing_5x5_w4_bo3_2p"},
		{tournament.Swiss, 5, 4, 3, 8, "tournament_swis_4x4_w3_bo5_8p"},
		{tournament.DoubleElimination, 1, 3, 3, 3, "tournament_doub_3x3_w3_3p"},
	}
	for _, tt := range tests {
		tc := tournament.Config{Format: tt.format, BestOf: tt.bestOf}
		gc := game.Config{BoardSize: tt.board, WinLength: tt.win}
		if got := SessionName(tc, gc, tt.models); got != tt.want {
			t.Errorf("SessionName(%s) = %q, want %q", tt.format, got, tt.want)
		}
	}
}

func TestRecorder_WritesSession(t *testing.T) {
	base := t.TempDir()
	start := time.Date(2024, 5, 1, 14, 30, 0, 0, time.UTC)
	var progress bytes.Buffer
	rec := recordSession(t, base, start, NewProgressObserver(&progress, true), "alpha", "beta")

	if want := filepath.Join(base, "tournament_roun_3x3_w3_2p_20240501_143001"); rec.Dir() != want {
		t.Errorf("Expected session dir %s, got %s", want, rec.Dir())
	}

	moves, err := records.ReadLines[Event](filepath.Join(rec.Dir(), MovesLog))
	if err != nil {
		t.Fatalf("Failed to read moves: %v", err)
	}
	if len(moves) != 7 || moves[0].Player != "alpha" || moves[0].Symbol != "X" {
		t.Errorf("Unexpected moves log: %d entries, first %+v", len(moves), moves[0])
	}
	if diff := cmp.Diff([]int{0, 0}, moves[0].Move); diff != "" {
		t.Errorf("Unexpected first move (-want +got):\n%s", diff)
	}

	events, err := records.ReadLines[Event](filepath.Join(rec.Dir(), ResultsLog))
	if err != nil {
		t.Fatalf("Failed to read results: %v", err)
	}
	var types []string
	for _, e := range events {
		types = append(types, e.Type)
		if e.Timestamp.IsZero() {
			t.Errorf("Event %s has no timestamp", e.Type)
		}
	}
	wantTypes := []string{EventTournamentStart, EventRoundStart, EventGameResult, EventMatchResult, EventTournamentComplete}
	if diff := cmp.Diff(wantTypes, types); diff != "" {
		t.Errorf("Unexpected event sequence (-want +got):\n%s", diff)
	}
	if events[4].Champion != "alpha" || events[3].Match == nil || events[3].Match.Score != [2]int{1, 0} {
		t.Errorf("Unexpected closing events %+v %+v", events[3], events[4])
	}

	var meta Metadata
	if err := records.LoadJSON(filepath.Join(rec.Dir(), MetadataFile), &meta); err != nil {
		t.Fatalf("Failed to load metadata: %v", err)
	}
	if meta.Status != StatusCompleted || meta.EndTime == nil || meta.TotalDuration == "" {
		t.Errorf("Expected completed metadata, got %+v", meta)
	}
	wantFiles := []string{MetadataFile, ConfigFile, ResultsFile, MovesLog, ResultsLog}
	if diff := cmp.Diff(wantFiles, meta.FilesCreated); diff != "" {
		t.Errorf("Unexpected file list (-want +got):\n%s", diff)
	}
	if _, err := os.Stat(filepath.Join(rec.Dir(), ReportsDir)); err != nil {
		t.Errorf("Expected reports directory: %v", err)
	}

	summary, err := LoadSummary(rec.Dir())
	if err != nil {
		t.Fatalf("LoadSummary failed: %v", err)
	}
	if summary.Champion() != "alpha" || summary.Format() != "round_robin" {
		t.Errorf("Unexpected summary champion %q format %q", summary.Champion(), summary.Format())
	}
	if summary.TournamentData.Config.SessionID != rec.SessionID() || len(summary.TournamentData.Matches) != 1 {
		t.Errorf("Unexpected tournament data %+v", summary.TournamentData)
	}
	if summary.FileStructure.TotalFiles != 5 {
		t.Errorf("Expected 5 files, got %d", summary.FileStructure.TotalFiles)
	}

	out := progress.String()
	for _, want := range []string{"2 players", "Round robin round 1", "alpha (X) plays (0, 0)", "RR1G1: alpha wins as X in 7 moves", "Match RR1: alpha 1-0 beta, alpha wins"} {
		if !strings.Contains(out, want) {
			t.Errorf("Expected progress output to contain %q, got:\n%s", want, out)
		}
	}
}

func TestManager_List(t *testing.T) {
	base := t.TempDir()
	older := recordSession(t, base, time.Now().Add(-2*time.Hour), nil, "a", "b")
	newer := recordSession(t, base, time.Now().Add(-time.Hour), nil, "a", "b", "c")

	os.MkdirAll(filepath.Join(base, "notes"), 0755)
	os.MkdirAll(filepath.Join(base, "tournament_broken_20240101_000000"), 0755)

	list, err := NewManager(base).List()
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("Expected 2 sessions, got %d", len(list))
	}
	if list[0].Directory != newer.Dir() || list[1].Directory != older.Dir() {
		t.Errorf("Expected newest first, got %s then %s", list[0].Name, list[1].Name)
	}
	if list[0].Champion != "a" || list[0].Format != "round_robin" || list[0].Duration == "" {
		t.Errorf("Unexpected info %+v", list[0])
	}

	empty, err := NewManager(filepath.Join(base, "missing")).List()
	if err != nil || len(empty) != 0 {
		t.Errorf("Expected empty list for a missing dir, got %v %v", empty, err)
	}
}

func TestManager_Resolve(t *testing.T) {
	base := t.TempDir()
	rec := recordSession(t, base, time.Now(), nil, "a", "b")
	m := NewManager(base)

	if got := m.Resolve(rec.Dir()); got != rec.Dir() {
		t.Errorf("Expected path to resolve to itself, got %s", got)
	}
	if got := m.Resolve(filepath.Base(rec.Dir())); got != rec.Dir() {
		t.Errorf("Expected name to resolve under base, got %s", got)
	}
}

func TestAnalyze(t *testing.T) {
	rec := recordSession(t, t.TempDir(), time.Now(), nil, "a", "b", "c")

	a, err := Analyze(rec.Dir())
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}
	want := []RankedEntry{
		{Rank: 1, Player: "a", Points: 6, WinRate: 1},
		{Rank: 2, Player: "b", Points: 4, WinRate: 0.5},
		{Rank: 3, Player: "c", Points: 2, WinRate: 0},
	}
	if diff := cmp.Diff(want, a.Top); diff != "" {
		t.Errorf("Unexpected ranking (-want +got):\n%s", diff)
	}

	if _, err := Analyze(t.TempDir()); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("Expected ErrSessionNotFound, got %v", err)
	}
}

func TestCompare(t *testing.T) {
	base := t.TempDir()
	s1 := recordSession(t, base, time.Now().Add(-time.Hour), nil, "a", "b")
	s2 := recordSession(t, base, time.Now(), nil, "a", "b", "c")

	if _, err := Compare([]string{s1.Dir()}); !errors.Is(err, ErrTooFewSessions) {
		t.Errorf("Expected ErrTooFewSessions, got %v", err)
	}
	if _, err := Compare([]string{s1.Dir(), filepath.Join(base, "nope")}); !errors.Is(err, ErrTooFewSessions) {
		t.Errorf("Expected ErrTooFewSessions when one fails to load, got %v", err)
	}

	c, err := Compare([]string{s1.Dir(), s2.Dir()})
	if err != nil {
		t.Fatalf("Compare failed: %v", err)
	}
	want := []ModelComparison{
		{Model: "a", Sessions: 2, Championships: 2, TotalPoints: 9, TotalGames: 3, TotalWins: 3, AvgWinRate: 1},
		{Model: "b", Sessions: 2, Championships: 0, TotalPoints: 5, TotalGames: 3, TotalWins: 1, AvgWinRate: 1.0 / 3},
		{Model: "c", Sessions: 1, Championships: 0, TotalPoints: 2, TotalGames: 2, TotalWins: 0, AvgWinRate: 0},
	}
	if diff := cmp.Diff(want, c.Models); diff != "" {
		t.Errorf("Unexpected comparison (-want +got):\n%s", diff)
	}
}

func TestExport(t *testing.T) {
	rec := recordSession(t, t.TempDir(), time.Now(), nil, "a", "b", "c")
	out := t.TempDir()

	csvPath := filepath.Join(out, "standings.csv")
	if err := Export(rec.Dir(), csvPath, "CSV"); err != nil {
		t.Fatalf("CSV export failed: %v", err)
	}
	data, _ := os.ReadFile(csvPath)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 4 {
		t.Fatalf("Expected header and 3 rows, got %q", lines)
	}
	if lines[0] != "model,wins,losses,draws,games_won,games_lost,games_drawn,matches_played,points,byes" {
		t.Errorf("Unexpected header %q", lines[0])
	}
	if lines[1] != "a,2,0,0,2,0,0,2,6,0" {
		t.Errorf("Unexpected row %q", lines[1])
	}

	jsonPath := filepath.Join(out, "session.json")
	if err := Export(rec.Dir(), jsonPath, "json"); err != nil {
		t.Fatalf("JSON export failed: %v", err)
	}
	var s Summary
	if err := records.LoadJSON(jsonPath, &s); err != nil || s.Champion() != "a" {
		t.Errorf("Unexpected exported summary: %v %q", err, s.Champion())
	}

	if err := Export(rec.Dir(), filepath.Join(out, "x.xml"), "xml"); !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("Expected ErrUnsupportedFormat, got %v", err)
	}
}

func TestManager_Cleanup(t *testing.T) {
	base := t.TempDir()
	old := recordSession(t, base, time.Now().Add(-40*24*time.Hour), nil, "a", "b")
	recordSession(t, base, time.Now(), nil, "a", "b")
	m := NewManager(base)

	found, err := m.Cleanup(30*24*time.Hour, true)
	if err != nil {
		t.Fatalf("Cleanup dry run failed: %v", err)
	}
	if len(found) != 1 || found[0].Directory != old.Dir() {
		t.Fatalf("Expected the old session, got %+v", found)
	}
	if _, err := os.Stat(old.Dir()); err != nil {
		t.Errorf("Dry run must not delete: %v", err)
	}

	if _, err := m.Cleanup(30*24*time.Hour, false); err != nil {
		t.Fatalf("Cleanup failed: %v", err)
	}
	if _, err := os.Stat(old.Dir()); !os.IsNotExist(err) {
		t.Errorf("Expected old session to be deleted, got %v", err)
	}
	list, _ := m.List()
	if len(list) != 1 {
		t.Errorf("Expected 1 remaining session, got %d", len(list))
	}
}
