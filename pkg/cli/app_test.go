package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/agent-protocol/agent-arena/pkg/core"
	"github.com/agent-protocol/agent-arena/pkg/game"
	"github.com/agent-protocol/agent-arena/pkg/llm"
	"github.com/agent-protocol/agent-arena/pkg/llm/llmtest"
	"github.com/agent-protocol/agent-arena/pkg/sessions"
	"github.com/agent-protocol/agent-arena/pkg/tournament"
)

// run executes the app with args and returns what it printed.
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	app := NewApp()
	app.Writer = &out
	app.ErrWriter = io.Discard
	err := app.Run(append([]string{"arena"}, args...))
	return out.String(), err
}

// ollamaStub answers every chat request with reply and lists one model.
func ollamaStub(t *testing.T, reply string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/chat":
			var req llm.OllamaChatRequest
			json.NewDecoder(r.Body).Decode(&req)
			json.NewEncoder(w).Encode(llm.OllamaChatResponse{
				Model:   req.Model,
				Message: llm.OllamaMessage{Role: "assistant", Content: reply},
				Done:    true,
			})
		case "/api/tags":
			json.NewEncoder(w).Encode(llm.OllamaTagsResponse{Models: []core.ModelInfo{{
				Name:    "phi4:latest",
				Size:    2 * 1024 * 1024 * 1024,
				Details: core.ModelDetails{Family: "phi3", ParameterSize: "14.7B", QuantizationLevel: "Q4_K_M"},
			}}})
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"WARNING", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"chatty", slog.LevelInfo},
	}
	for _, tt := range tests {
		if got := parseLevel(tt.in); got != tt.want {
			t.Errorf("parseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestSplitModels(t *testing.T) {
	got := splitModels([]string{"phi4, llama3.2", "", "gemma3"})
	if diff := cmp.Diff([]string{"phi4", "llama3.2", "gemma3"}, got); diff != "" {
		t.Errorf("Models mismatch (-want +got):\n%s", diff)
	}
}

func TestTournamentPlan_Validate(t *testing.T) {
	valid := DefaultTournamentPlan()
	valid.Models = []string{"a", "b"}

	tests := []struct {
		name    string
		mutate  func(*TournamentPlan)
		wantErr string
	}{
		{"valid", func(p *TournamentPlan) {}, ""},
		{"one model", func(p *TournamentPlan) { p.Models = p.Models[:1] }, "at least 2 models"},
		{"hot", func(p *TournamentPlan) { p.Temperature = 2.5 }, "temperature"},
		{"small board", func(p *TournamentPlan) { p.Game.BoardSize = 2 }, "board size"},
		{"big board", func(p *TournamentPlan) { p.Game.BoardSize = 11 }, "board size"},
		{"long win", func(p *TournamentPlan) { p.Game.WinLength = 4 }, "win length"},
		{"short win", func(p *TournamentPlan) { p.Game.WinLength = 2 }, "win length"},
		{"format", func(p *TournamentPlan) { p.Tournament.Format = "ladder" }, "unsupported tournament format"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := valid
			p.Models = append([]string(nil), valid.Models...)
			tt.mutate(&p)
			err := p.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestLoadTournamentPlan(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plan.yaml")
	data := `
tournament:
  format: round_robin
  best_of: 3
models: [phi4, random]
game_kind: connect4
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}
	plan, err := LoadTournamentPlan(path, "")
	if err != nil {
		t.Fatalf("LoadTournamentPlan failed: %v", err)
	}
	if plan.Tournament.Format != tournament.RoundRobin || plan.Tournament.BestOf != 3 {
		t.Errorf("Unexpected tournament config %+v", plan.Tournament)
	}
	if plan.Game.BoardSize != 7 || plan.Game.WinLength != 4 || plan.Game.IntExtra("height", 0) != 6 {
		t.Errorf("Expected connect four defaults, got %+v", plan.Game)
	}
	if plan.Tournament.Seed != 42 || plan.Temperature != 0.7 {
		t.Errorf("Defaults lost: %+v", plan)
	}
	if err := plan.Validate(); err != nil {
		t.Errorf("Validate failed: %v", err)
	}
}

func TestLoadTournamentPlan_GameFields(t *testing.T) {
	tests := []struct {
		name     string
		yaml     string
		kind     string
		wantKind string
		want     game.Config
	}{
		{
			name:     "connect four keeps file fields",
			yaml:     "game_kind: connect4\ngame:\n  win_length: 5\n  max_moves: 30\n",
			wantKind: game.KindConnectFour,
			want:     game.Config{BoardSize: 7, WinLength: 5, NumPlayers: 2, MaxMoves: 30, Extra: map[string]any{"height": 6}},
		},
		{
			name:     "kind argument keeps file fields",
			yaml:     "game:\n  board_size: 8\n  win_length: 5\n",
			kind:     game.KindConnectFour,
			wantKind: game.KindConnectFour,
			want:     game.Config{BoardSize: 8, WinLength: 5, NumPlayers: 2, MaxMoves: 42, Extra: map[string]any{"height": 6}},
		},
		{
			name:     "kind argument replaces file kind",
			yaml:     "game_kind: connect4\ngame:\n  board_size: 5\n",
			kind:     game.KindTicTacToe,
			wantKind: game.KindTicTacToe,
			want:     game.Config{BoardSize: 5, WinLength: 3, NumPlayers: 2, MaxMoves: 50},
		},
		{
			name:     "tic-tac-toe defaults",
			yaml:     "game:\n  board_size: 4\n",
			wantKind: game.KindTicTacToe,
			want:     game.Config{BoardSize: 4, WinLength: 3, NumPlayers: 2, MaxMoves: 50},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "plan.yaml")
			if err := os.WriteFile(path, []byte(tt.yaml), 0o644); err != nil {
				t.Fatal(err)
			}
			plan, err := LoadTournamentPlan(path, tt.kind)
			if err != nil {
				t.Fatalf("LoadTournamentPlan failed: %v", err)
			}
			if plan.GameKind != tt.wantKind {
				t.Errorf("Expected game kind %q, got %q", tt.wantKind, plan.GameKind)
			}
			if diff := cmp.Diff(tt.want, plan.Game); diff != "" {
				t.Errorf("Game config mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestRunTournament_RandomPlayers(t *testing.T) {
	plan := DefaultTournamentPlan()
	plan.Models = []string{"random", "random", "random"}
	plan.Tournament.Format = tournament.RoundRobin
	plan.OutputDir = t.TempDir()

	var out bytes.Buffer
	res, dir, err := RunTournament(context.Background(), llmtest.New(), plan, &out, false)
	if err != nil {
		t.Fatalf("RunTournament failed: %v", err)
	}
	if len(res.Standings) != 3 || res.TotalMatches != 3 {
		t.Errorf("Unexpected results: %d players, %d matches", len(res.Standings), res.TotalMatches)
	}
	for _, name := range []string{"random", "random_2", "random_3"} {
		if _, ok := res.Standings[name]; !ok {
			t.Errorf("Missing player %s", name)
		}
	}
	if !strings.HasPrefix(filepath.Base(dir), "tournament_roun_3x3_w3_3p_") {
		t.Errorf("Unexpected session dir %s", dir)
	}
	for _, f := range []string{sessions.SummaryFile, sessions.ConfigFile, "reports/standings.html"} {
		if _, err := os.Stat(filepath.Join(dir, f)); err != nil {
			t.Errorf("Expected %s: %v", f, err)
		}
	}
	if !strings.Contains(out.String(), "Tournament started: 3 players") {
		t.Errorf("Progress not printed:\n%s", out.String())
	}
}

func TestBuildPlayers(t *testing.T) {
	plan := DefaultTournamentPlan()
	plan.Models = []string{"phi4", "phi4", "Random"}
	var names, models []string
	for _, p := range buildPlayers(llmtest.New(), plan) {
		names = append(names, p.Name())
		models = append(models, p.Model())
	}
	if diff := cmp.Diff([]string{"phi4", "phi4_2", "Random"}, names); diff != "" {
		t.Errorf("Names mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"phi4", "phi4", "random"}, models); diff != "" {
		t.Errorf("Models mismatch (-want +got):\n%s", diff)
	}
}

func TestApp_TournamentAndSessions(t *testing.T) {
	dir := t.TempDir()
	out, err := run(t, "tournament", "-m", "random", "-m", "random", "--game", game.KindConnectFour, "--output", dir)
	if err != nil {
		t.Fatalf("tournament failed: %v\n%s", err, out)
	}
	if !strings.Contains(out, "Champion:") {
		t.Errorf("Expected standings table:\n%s", out)
	}

	out, err = run(t, "sessions", "--dir", dir, "list")
	if err != nil {
		t.Fatalf("sessions list failed: %v", err)
	}
	if !strings.Contains(out, "tournament_sing_7x7_w4_2p_") {
		t.Errorf("Session missing from list:\n%s", out)
	}

	entries, _ := os.ReadDir(dir)
	if len(entries) != 1 {
		t.Fatalf("Expected one session, got %d", len(entries))
	}
	name := entries[0].Name()
	csvPath := filepath.Join(t.TempDir(), "standings.csv")
	if _, err := run(t, "sessions", "--dir", dir, "export", "--format", "csv", "--output", csvPath, name); err != nil {
		t.Fatalf("export failed: %v", err)
	}
	data, err := os.ReadFile(csvPath)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(string(data), "model,wins") {
		t.Errorf("Unexpected CSV:\n%s", data)
	}

	out, err = run(t, "sessions", "--dir", dir, "cleanup", "--days", "1")
	if err != nil || !strings.Contains(out, "0 sessions older than 1 days") {
		t.Errorf("cleanup = %q, %v", out, err)
	}
}

func TestApp_Validation(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"one model", []string{"tournament", "-m", "phi4"}, "at least 2 models"},
		{"board", []string{"tournament", "-m", "a,b", "--board-size", "12"}, "board size"},
		{"win length", []string{"tournament", "-m", "a,b", "--board-size", "4", "--win-length", "5"}, "win length"},
		{"rps temperature", []string{"rps", "-m", "a,b", "--temperature", "1.5"}, "temperature must be between 0 and 1"},
		{"rps type", []string{"rps", "-m", "a,b", "--type", "swiss"}, "unknown tournament type"},
		{"scenario", []string{"negotiate", "--scenario", "car_lot"}, "unknown scenario"},
		{"bargain range", []string{"bargain", "--min-price", "300"}, "maximum price"},
		{"ask", []string{"ask"}, "PROMPT or --example"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := run(t, tt.args...)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}

func TestApp_RPSScriptedAgents(t *testing.T) {
	log := filepath.Join(t.TempDir(), "rps.jsonl")
	out, err := run(t, "rps", "-m", "random,counter", "--rounds", "3", "--output", log, "--analyze")
	if err != nil {
		t.Fatalf("rps failed: %v\n%s", err, out)
	}
	for _, want := range []string{"Champion:", "round_robin tournament, 1 matches, 3 rounds", "Match win rate"} {
		if !strings.Contains(out, want) {
			t.Errorf("Output missing %q:\n%s", want, out)
		}
	}
}

func TestBuildRPSAgents(t *testing.T) {
	agents, err := buildRPSAgents(llmtest.New(), []string{"phi4", "phi4", "counter"}, 0.5, 10)
	if err != nil {
		t.Fatal(err)
	}
	var got []string
	for _, a := range agents {
		got = append(got, a.Name()+"/"+a.Kind())
	}
	want := []string{"phi4(Agent1)/llm", "phi4(Agent2)/llm", "counter/counter"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Agents mismatch (-want +got):\n%s", diff)
	}
}

func TestApp_AskWithOllama(t *testing.T) {
	srv := ollamaStub(t, `{"answer": "B"}`)
	dir := t.TempDir()

	out, err := run(t, "--base-url", srv.URL, "ask", "--example", "abcd", "--output", dir)
	if err != nil {
		t.Fatalf("ask failed: %v", err)
	}
	if !strings.Contains(out, "Answer: B") {
		t.Errorf("Unexpected output:\n%s", out)
	}

	out, err = run(t, "--base-url", srv.URL, "ask", "--output", dir, "Why", "is", "the", "sky", "blue?")
	if err != nil {
		t.Fatalf("ask failed: %v", err)
	}
	if !strings.Contains(out, `{"answer": "B"}`) {
		t.Errorf("Unexpected output:\n%s", out)
	}
	files, _ := os.ReadDir(dir)
	if len(files) != 2 {
		t.Errorf("Expected 2 saved exchanges, got %d", len(files))
	}
}

func TestApp_ModelsList(t *testing.T) {
	srv := ollamaStub(t, "OK")
	out, err := run(t, "--base-url", srv.URL, "models")
	if err != nil {
		t.Fatalf("models failed: %v", err)
	}
	for _, want := range []string{"phi4:latest", "2.00 GB", "14.7B"} {
		if !strings.Contains(out, want) {
			t.Errorf("Output missing %q:\n%s", want, out)
		}
	}
}

// modelConn fails for the model named "bad".
type modelConn struct{ llmtest.Connection }

func (m *modelConn) GenerateContent(ctx context.Context, req *core.LLMRequest) (*core.LLMResponse, error) {
	if req.Config.Model == "bad" {
		return nil, errors.New("model not found")
	}
	text := "OK"
	return &core.LLMResponse{Content: &core.Content{Role: "assistant", Parts: []core.Part{{Type: "text", Text: &text}}}}, nil
}

func TestProbeModels(t *testing.T) {
	results := ProbeModels(context.Background(), &modelConn{}, []string{"phi4", "bad", "gemma3"}, 2, time.Second)
	var got []string
	for _, r := range results {
		status := r.Reply
		if r.Err != nil {
			status = r.Err.Error()
		}
		got = append(got, r.Model+":"+status)
	}
	want := []string{"phi4:OK", "bad:model not found", "gemma3:OK"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Probe mismatch (-want +got):\n%s", diff)
	}
}

func TestApp_Render(t *testing.T) {
	dir := t.TempDir()
	if _, err := run(t, "tournament", "-m", "random,random", "--output", dir); err != nil {
		t.Fatal(err)
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 1 {
		t.Fatalf("Expected one session, got %d", len(entries))
	}
	session := filepath.Join(dir, entries[0].Name())
	target := filepath.Join(t.TempDir(), "page.html")

	out, err := run(t, "render", "-o", target, session)
	if err != nil {
		t.Fatalf("render failed: %v", err)
	}
	if !strings.Contains(out, "Rendered session") {
		t.Errorf("Unexpected output %q", out)
	}
	data, err := os.ReadFile(target)
	if err != nil || !strings.Contains(string(data), "Tournament Results") {
		t.Errorf("Unexpected page: %v", err)
	}
}
