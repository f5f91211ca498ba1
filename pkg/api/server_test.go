package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/go-cmp/cmp"
	"github.com/gorilla/websocket"

	"github.com/agent-protocol/agent-arena/pkg/debate"
	"github.com/agent-protocol/agent-arena/pkg/records"
	"github.com/agent-protocol/agent-arena/pkg/report"
	"github.com/agent-protocol/agent-arena/pkg/sessions"
	"github.com/agent-protocol/agent-arena/pkg/tournament"
)

const sessionName = "tournament_roun_3x3_w3_bo3_2p_20240101_120000"

func init() {
	gin.SetMode(gin.TestMode)
}

// newTestServer lays out one finished session and one debate log.
func newTestServer(t *testing.T) (*Server, string, string) {
	t.Helper()
	root := t.TempDir()
	sessionsDir := filepath.Join(root, "tournaments")
	outputsDir := filepath.Join(root, "outputs")

	summary := sessions.Summary{
		Metadata: sessions.Metadata{
			SessionID: "abc",
			Name:      sessionName,
			StartTime: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC),
			Status:    sessions.StatusCompleted,
		},
		TournamentData: sessions.TournamentData{
			Results: &sessions.ResultsRecord{Results: &tournament.Results{
				Format:   tournament.RoundRobin,
				Champion: "phi4",
				Standings: map[string]*tournament.Standing{
					"phi4":  {Wins: 1, MatchesPlayed: 1, Points: 3, GamesWon: 2},
					"llama": {Losses: 1, MatchesPlayed: 1, Points: 1, GamesLost: 2},
				},
			}},
		},
	}
	if err := records.SaveJSON(filepath.Join(sessionsDir, sessionName, sessions.SummaryFile), summary); err != nil {
		t.Fatal(err)
	}

	rounds, agent := 1, 1
	w, err := records.Create(filepath.Join(outputsDir, "debates", "debate_log.jsonl"), true)
	if err != nil {
		t.Fatal(err)
	}
	w.Write(debate.Entry{Event: debate.EventStart, Topic: "Tabs or spaces", NumAgents: 2, Rounds: &rounds})
	w.Write(debate.Entry{Round: &rounds, Agent: &agent, Message: "Tabs.", Type: debate.TypeOpening})
	w.Close()

	s := NewServer(&ServerConfig{Host: "127.0.0.1", Port: 0, SessionsDir: sessionsDir, OutputsDir: outputsDir})
	return s, root, outputsDir
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestRoutes(t *testing.T) {
	s, _, _ := newTestServer(t)

	tests := []struct {
		name           string
		path           string
		expectedStatus int
	}{
		{"Health Check", "/health", http.StatusOK},
		{"Index", "/", http.StatusOK},
		{"List Sessions", "/api/sessions", http.StatusOK},
		{"Get Session", "/api/sessions/" + sessionName, http.StatusOK},
		{"Missing Session", "/api/sessions/tournament_nope", http.StatusNotFound},
		{"Analyze Session", "/api/sessions/" + sessionName + "/analysis", http.StatusOK},
		{"List Runs", "/api/runs", http.StatusOK},
		{"Records", "/api/records/outputs/debates/debate_log.jsonl", http.StatusOK},
		{"Unknown Root", "/api/records/home/debate_log.jsonl", http.StatusBadRequest},
		{"Missing File", "/api/records/outputs/none.jsonl", http.StatusNotFound},
		{"HTML Debate", "/api/html/outputs/debates/debate_log.jsonl", http.StatusOK},
		{"HTML Session", "/api/html/sessions/" + sessionName, http.StatusOK},
		{"HTML Unknown Layout", "/api/html/outputs/debates", http.StatusUnprocessableEntity},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := get(t, s.Handler(), tt.path)
			if rec.Code != tt.expectedStatus {
				t.Errorf("GET %s = %d, want %d (body %s)", tt.path, rec.Code, tt.expectedStatus, rec.Body.String())
			}
		})
	}
}

func TestListSessions(t *testing.T) {
	s, _, _ := newTestServer(t)
	rec := get(t, s.Handler(), "/api/sessions")

	var list []sessions.Info
	if err := json.Unmarshal(rec.Body.Bytes(), &list); err != nil {
		t.Fatalf("Invalid JSON: %v", err)
	}
	if len(list) != 1 || list[0].Champion != "phi4" || list[0].Name != sessionName {
		t.Errorf("Unexpected sessions %+v", list)
	}
}

func TestRecordsAndHTML(t *testing.T) {
	s, _, _ := newTestServer(t)

	rec := get(t, s.Handler(), "/api/records/outputs/debates/debate_log.jsonl")
	var lines []map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &lines); err != nil {
		t.Fatalf("Invalid JSON: %v", err)
	}
	if len(lines) != 2 || lines[0]["event"] != debate.EventStart || lines[1]["message"] != "Tabs." {
		t.Errorf("Unexpected records %v", lines)
	}

	page := get(t, s.Handler(), "/api/html/sessions/"+sessionName)
	if ct := page.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("Content-Type = %s", ct)
	}
	if body := page.Body.String(); !strings.Contains(body, "Tournament Results") || !strings.Contains(body, "llama") {
		t.Errorf("Unexpected page:\n%s", body)
	}
}

func TestRecords_StaysInsideRoot(t *testing.T) {
	s, root, _ := newTestServer(t)
	if err := os.WriteFile(filepath.Join(root, "secret.jsonl"), []byte(`{"token":"x"}`+"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	rec := get(t, s.Handler(), "/api/records/outputs/../secret.jsonl")
	if rec.Code == http.StatusOK {
		t.Fatalf("Expected the file outside the root to be unreachable, got %s", rec.Body.String())
	}
}

func TestListRuns(t *testing.T) {
	_, _, outputs := newTestServer(t)
	os.WriteFile(filepath.Join(outputs, "notes.jsonl"), []byte(`{"event":"other"}`+"\n"), 0o644)

	runs, err := ListRuns(outputs)
	if err != nil {
		t.Fatalf("ListRuns failed: %v", err)
	}
	var got []string
	for _, r := range runs {
		got = append(got, string(r.Kind)+":"+r.Path)
	}
	if diff := cmp.Diff([]string{string(report.KindDebate) + ":debates/debate_log.jsonl"}, got); diff != "" {
		t.Errorf("Runs mismatch (-want +got):\n%s", diff)
	}

	if runs, err := ListRuns(filepath.Join(outputs, "missing")); err != nil || len(runs) != 0 {
		t.Errorf("Expected no runs for a missing dir, got %v %v", runs, err)
	}
}

func TestTailer_Drain(t *testing.T) {
	path := filepath.Join(t.TempDir(), "log.jsonl")
	os.WriteFile(path, []byte("{\"a\":1}\n\n{\"b\":"), 0o644)

	tl, err := NewTailer(path, false)
	if err != nil {
		t.Fatal(err)
	}
	var got []string
	emit := func(line []byte) error {
		got = append(got, string(line))
		return nil
	}
	if err := tl.drain(emit); err != nil {
		t.Fatal(err)
	}

	f, _ := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	f.WriteString("2}\n")
	f.Close()
	if err := tl.drain(emit); err != nil {
		t.Fatal(err)
	}

	if diff := cmp.Diff([]string{`{"a":1}`, `{"b":2}`}, got); diff != "" {
		t.Errorf("Lines mismatch (-want +got):\n%s", diff)
	}

	fromEnd, err := NewTailer(path, true)
	if err != nil {
		t.Fatal(err)
	}
	got = nil
	fromEnd.drain(emit)
	if len(got) != 0 {
		t.Errorf("Expected nothing from the end, got %v", got)
	}
}

func TestTailWebsocket(t *testing.T) {
	s, _, outputs := newTestServer(t)
	logPath := filepath.Join(outputs, "live.jsonl")
	os.WriteFile(logPath, []byte(`{"n":1}`+"\n"), 0o644)

	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/tail/outputs/live.jsonl"
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(10 * time.Second))

	_, msg, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if string(msg) != `{"n":1}` {
		t.Errorf("First message = %s", msg)
	}

	f, err := os.OpenFile(logPath, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		t.Fatal(err)
	}
	f.WriteString(`{"n":2}` + "\n")
	f.Close()

	_, msg, err = conn.ReadMessage()
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if string(msg) != `{"n":2}` {
		t.Errorf("Second message = %s", msg)
	}
}

func TestTail_MissingFile(t *testing.T) {
	s, _, _ := newTestServer(t)
	rec := get(t, s.Handler(), "/api/tail/outputs/nothing.jsonl?from=end")
	if rec.Code != http.StatusNotFound {
		t.Errorf("Expected 404, got %d", rec.Code)
	}
}
