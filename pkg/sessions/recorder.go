package sessions

import (
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/agent-protocol/agent-arena/pkg/game"
	"github.com/agent-protocol/agent-arena/pkg/records"
	"github.com/agent-protocol/agent-arena/pkg/tournament"
)

// TimestampLayout names session directories.
const TimestampLayout = "20060102_150405"

// Session file locations, relative to the session directory.
const (
	LogsDir        = "logs"
	DataDir        = "data"
	ReportsDir     = "reports"
	MovesLog       = "logs/moves.jsonl"
	ResultsLog     = "logs/results.jsonl"
	ConfigFile     = "data/tournament_config.json"
	MetadataFile   = "data/session_metadata.json"
	ResultsFile    = "data/tournament_summary.json"
	SummaryFile    = "session_summary.json"
	sessionsPrefix = "tournament_"
)

// Recorder writes one tournament session to {baseDir}/{name}_{timestamp}.
// It implements tournament.Observer.
type Recorder struct {
	mu        sync.Mutex
	dir       string
	timestamp string
	moves     *records.Writer
	results   *records.Writer
	metadata  Metadata
	data      TournamentData
	now       func() time.Time
}

var _ tournament.Observer = (*Recorder)(nil)

// SessionName builds a descriptive name such as
// tournament_roun_3x3_w3_bo3_4p.
func SessionName(tc tournament.Config, gc game.Config, numModels int) string {
	format := strings.ReplaceAll(string(tc.Format), "_", "")
	if len(format) > 4 {
		format = format[:4]
	}
	parts := []string{
		format,
		fmt.Sprintf("%dx%d", gc.BoardSize, gc.BoardSize),
		fmt.Sprintf("w%d", gc.WinLength),
	}
	if tc.BestOf > 1 {
		parts = append(parts, fmt.Sprintf("bo%d", tc.BestOf))
	}
	parts = append(parts, fmt.Sprintf("%dp", numModels))
	return sessionsPrefix + strings.Join(parts, "_")
}

// NewRecorder creates the session directory tree and opens the logs.
func NewRecorder(baseDir, name string) (*Recorder, error) {
	return newRecorder(baseDir, name, time.Now)
}

func newRecorder(baseDir, name string, now func() time.Time) (*Recorder, error) {
	start := now()
	timestamp := start.Format(TimestampLayout)
	dir := filepath.Join(baseDir, fmt.Sprintf("%s_%s", name, timestamp))

	for _, sub := range []string{LogsDir, DataDir, ReportsDir} {
		if err := os.MkdirAll(filepath.Join(dir, sub), 0755); err != nil {
			return nil, fmt.Errorf("failed to create session directory: %w", err)
		}
	}

	r := &Recorder{
		dir:       dir,
		timestamp: timestamp,
		now:       now,
		metadata: Metadata{
			SessionID:    uuid.NewString(),
			Name:         filepath.Base(dir),
			StartTime:    start,
			FilesCreated: []string{},
			Status:       StatusRunning,
		},
		data: TournamentData{
			Participants: []string{},
			Matches:      []tournament.MatchResult{},
			Standings:    map[string]*tournament.Standing{},
		},
	}

	var err error
	if r.moves, err = records.Create(r.path(MovesLog), false); err != nil {
		return nil, err
	}
	if r.results, err = records.Create(r.path(ResultsLog), false); err != nil {
		r.moves.Close()
		return nil, err
	}
	if err := r.saveMetadata(); err != nil {
		r.Close()
		return nil, err
	}

	slog.Info("session started", "dir", dir, "session_id", r.metadata.SessionID)
	return r, nil
}

// Dir is the session directory.
func (r *Recorder) Dir() string { return r.dir }

// SessionID is the session's uuid.
func (r *Recorder) SessionID() string { return r.metadata.SessionID }

// ReportsDir is where rendered reports for this session belong.
func (r *Recorder) ReportsDir() string { return r.path(ReportsDir) }

// SaveConfiguration writes data/tournament_config.json.
func (r *Recorder) SaveConfiguration(cfg ConfigRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	cfg.Timestamp = r.timestamp
	cfg.SessionID = r.metadata.SessionID
	if cfg.CLIArgs == nil {
		cfg.CLIArgs = map[string]any{}
	}
	if err := records.SaveJSON(r.path(ConfigFile), cfg); err != nil {
		return fmt.Errorf("failed to save configuration: %w", err)
	}
	r.data.Config = &cfg
	r.metadata.FilesCreated = append(r.metadata.FilesCreated, ConfigFile)
	return r.saveMetadata()
}

func (r *Recorder) TournamentStarted(participants []string, totalRounds int) error {
	r.mu.Lock()
	r.data.Participants = append([]string(nil), participants...)
	r.mu.Unlock()
	return r.results.Write(Event{
		Type:        EventTournamentStart,
		Timestamp:   r.now(),
		Models:      participants,
		TotalRounds: totalRounds,
	})
}

func (r *Recorder) RoundStarted(round int, label string) error {
	return r.results.Write(Event{
		Type:        EventRoundStart,
		Timestamp:   r.now(),
		RoundNumber: round,
		Label:       label,
	})
}

func (r *Recorder) MoveMade(gameID, player string, symbol game.Symbol, move game.Move, board game.Board) error {
	return r.moves.Write(Event{
		Type:       EventMove,
		Timestamp:  r.now(),
		GameID:     gameID,
		Player:     player,
		Symbol:     string(symbol),
		Move:       []int{move.Row, move.Col},
		BoardState: board.Rows(),
	})
}

func (r *Recorder) GameFinished(result tournament.GameResult) error {
	return r.results.Write(Event{
		Type:       EventGameResult,
		Timestamp:  r.now(),
		GameID:     result.GameID,
		Result:     result.Result(),
		Winner:     result.Winner,
		Moves:      result.Moves,
		FinalState: result.FinalState,
	})
}

func (r *Recorder) MatchFinished(result tournament.MatchResult) error {
	r.mu.Lock()
	r.data.Matches = append(r.data.Matches, result)
	r.mu.Unlock()
	return r.results.Write(Event{
		Type:      EventMatchResult,
		Timestamp: r.now(),
		Winner:    result.Winner,
		Match:     &result,
	})
}

// SaveResults writes data/tournament_summary.json and logs completion.
func (r *Recorder) SaveResults(res *tournament.Results) (*ResultsRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	record := &ResultsRecord{
		Results:          res,
		SessionID:        r.metadata.SessionID,
		Timestamp:        r.timestamp,
		CompletionTime:   r.now(),
		SessionDirectory: r.dir,
		Files: map[string]string{
			"config":      r.path(ConfigFile),
			"moves_log":   r.path(MovesLog),
			"results_log": r.path(ResultsLog),
			"reports":     r.path(ReportsDir),
		},
	}
	if err := records.SaveJSON(r.path(ResultsFile), record); err != nil {
		return nil, fmt.Errorf("failed to save results: %w", err)
	}
	r.data.Results = record
	r.data.Standings = res.Standings

	err := r.results.Write(Event{
		Type:         EventTournamentComplete,
		Timestamp:    r.now(),
		Champion:     res.Champion,
		TotalMatches: res.TotalMatches,
		TotalGames:   res.TotalGames,
		SummaryFile:  r.path(ResultsFile),
	})
	return record, err
}

// Finalize closes the logs, lists every file in the session and writes
// session_summary.json.
func (r *Recorder) Finalize() (*Summary, error) {
	if err := r.Close(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	end := r.now()
	r.metadata.EndTime = &end
	r.metadata.TotalDuration = end.Sub(r.metadata.StartTime).String()
	r.metadata.Status = StatusCompleted

	files, err := r.listFiles()
	if err != nil {
		return nil, fmt.Errorf("failed to list session files: %w", err)
	}
	if !slices.Contains(files, MetadataFile) {
		files = append(files, MetadataFile)
	}
	r.metadata.FilesCreated = files
	if err := r.saveMetadata(); err != nil {
		return nil, err
	}

	summary := &Summary{
		Metadata:       r.metadata,
		TournamentData: r.data,
		FileStructure:  r.fileStructure(),
	}
	if err := records.SaveJSON(r.path(SummaryFile), summary); err != nil {
		return nil, fmt.Errorf("failed to save session summary: %w", err)
	}
	slog.Info("session finalized", "dir", r.dir, "files", len(files))
	return summary, nil
}

// Close closes the log files.
func (r *Recorder) Close() error {
	err1 := r.moves.Close()
	err2 := r.results.Close()
	if err1 != nil {
		return err1
	}
	return err2
}

func (r *Recorder) path(rel string) string {
	return filepath.Join(r.dir, filepath.FromSlash(rel))
}

func (r *Recorder) saveMetadata() error {
	if err := records.SaveJSON(r.path(MetadataFile), r.metadata); err != nil {
		return fmt.Errorf("failed to save session metadata: %w", err)
	}
	return nil
}

func (r *Recorder) listFiles() ([]string, error) {
	var files []string
	err := filepath.WalkDir(r.dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		rel, err := filepath.Rel(r.dir, path)
		if err != nil {
			return err
		}
		files = append(files, filepath.ToSlash(rel))
		return nil
	})
	return files, err
}

func (r *Recorder) fileStructure() FileStructure {
	return FileStructure{
		SessionDirectory: r.dir,
		Subdirectories: map[string]string{
			"logs":    r.path(LogsDir),
			"data":    r.path(DataDir),
			"reports": r.path(ReportsDir),
		},
		KeyFiles: map[string]string{
			"configuration":      r.path(ConfigFile),
			"session_metadata":   r.path(MetadataFile),
			"moves_log":          r.path(MovesLog),
			"results_log":        r.path(ResultsLog),
			"tournament_summary": r.path(ResultsFile),
		},
		TotalFiles: len(r.metadata.FilesCreated),
	}
}
