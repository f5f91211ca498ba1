package report

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/agent-protocol/agent-arena/pkg/debate"
	"github.com/agent-protocol/agent-arena/pkg/negotiation"
	"github.com/agent-protocol/agent-arena/pkg/pressconf"
	"github.com/agent-protocol/agent-arena/pkg/records"
	"github.com/agent-protocol/agent-arena/pkg/sessions"
)

// ErrUnknownLayout is returned when a path holds no renderable output.
var ErrUnknownLayout = errors.New("no renderable transcript or session found")

// Kind names the output a path holds.
type Kind string

const (
	KindDebate      Kind = "debate"
	KindNegotiation Kind = "negotiation"
	KindPress       Kind = "press"
	KindSession     Kind = "session"
)

// Detect reports what kind of output lives at path: a debate JSONL log, a
// negotiation or press run directory, or a tournament session directory.
func Detect(path string) (Kind, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", err
	}
	if !info.IsDir() {
		return detectLog(path)
	}
	if _, err := os.Stat(filepath.Join(path, sessions.SummaryFile)); err == nil {
		return KindSession, nil
	}
	transcript := filepath.Join(path, negotiation.TranscriptFile)
	if _, err := os.Stat(transcript); err == nil {
		return detectLog(transcript)
	}
	return "", fmt.Errorf("%w: %s", ErrUnknownLayout, path)
}

func detectLog(path string) (Kind, error) {
	head, err := records.ReadLines[struct {
		Event string `json:"event"`
	}](path)
	if err != nil {
		return "", err
	}
	if len(head) > 0 {
		switch head[0].Event {
		case debate.EventStart:
			return KindDebate, nil
		case negotiation.EventStart:
			return KindNegotiation, nil
		case pressconf.EventStart:
			return KindPress, nil
		}
	}
	return "", fmt.Errorf("%w: %s", ErrUnknownLayout, path)
}

// Load builds the page for whatever Detect finds at path.
func Load(path string) (*Page, Kind, error) {
	kind, err := Detect(path)
	if err != nil {
		return nil, "", err
	}

	var page *Page
	switch kind {
	case KindDebate:
		entries, err := debate.LoadTranscript(path)
		if err != nil {
			return nil, kind, err
		}
		page = DebatePage(entries)
	case KindNegotiation:
		entries, err := negotiation.LoadTranscript(dirOf(path))
		if err != nil {
			return nil, kind, err
		}
		page = NegotiationPage(entries)
	case KindPress:
		entries, err := pressconf.LoadTranscript(dirOf(path))
		if err != nil {
			return nil, kind, err
		}
		page = PressPage(entries)
	case KindSession:
		s, err := sessions.LoadSummary(path)
		if err != nil {
			return nil, kind, err
		}
		r := s.TournamentData.Results
		if r == nil || r.Results == nil {
			return nil, kind, fmt.Errorf("session %s has no results yet", path)
		}
		page = StandingsPage(r.Results)
	}
	return page, kind, nil
}

// WriteHTML renders the page for path into out.
func WriteHTML(path, out string) (Kind, error) {
	page, kind, err := Load(path)
	if err != nil {
		return kind, err
	}
	if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
		return kind, err
	}
	f, err := os.Create(out)
	if err != nil {
		return kind, err
	}
	if err := Render(f, page); err != nil {
		f.Close()
		return kind, err
	}
	return kind, f.Close()
}

// DefaultHTMLPath is where WriteHTML output goes when no path is given: next
// to a log file, or inside a run directory.
func DefaultHTMLPath(path string, kind Kind) string {
	if info, err := os.Stat(path); err == nil && !info.IsDir() {
		return path[:len(path)-len(filepath.Ext(path))] + ".html"
	}
	if kind == KindSession {
		return filepath.Join(path, sessions.ReportsDir, "standings.html")
	}
	return filepath.Join(path, "transcript.html")
}

func dirOf(path string) string {
	if info, err := os.Stat(path); err == nil && info.IsDir() {
		return path
	}
	return filepath.Dir(path)
}
