package tournament

import "github.com/agent-protocol/agent-arena/pkg/game"

// Observer receives tournament events as they happen. Returning an error
// aborts the tournament.
type Observer interface {
	TournamentStarted(participants []string, totalRounds int) error
	RoundStarted(round int, label string) error
	MoveMade(gameID, player string, symbol game.Symbol, move game.Move, board game.Board) error
	GameFinished(result GameResult) error
	MatchFinished(result MatchResult) error
}

// NopObserver ignores every event.
type NopObserver struct{}

func (NopObserver) TournamentStarted([]string, int) error { return nil }
func (NopObserver) RoundStarted(int, string) error       { return nil }
func (NopObserver) MoveMade(string, string, game.Symbol, game.Move, game.Board) error {
	return nil
}
func (NopObserver) GameFinished(GameResult) error   { return nil }
func (NopObserver) MatchFinished(MatchResult) error { return nil }

// MultiObserver fans events out to several observers, stopping at the
// first error.
type MultiObserver struct {
	observers []Observer
}

// NewMultiObserver combines observers; nil entries are skipped.
func NewMultiObserver(observers ...Observer) *MultiObserver {
	m := &MultiObserver{}
	for _, o := range observers {
		m.Add(o)
	}
	return m
}

// Add appends an observer.
func (m *MultiObserver) Add(o Observer) {
	if o != nil {
		m.observers = append(m.observers, o)
	}
}

func (m *MultiObserver) TournamentStarted(participants []string, totalRounds int) error {
	for _, o := range m.observers {
		if err := o.TournamentStarted(participants, totalRounds); err != nil {
			return err
		}
	}
	return nil
}

func (m *MultiObserver) RoundStarted(round int, label string) error {
	for _, o := range m.observers {
		if err := o.RoundStarted(round, label); err != nil {
			return err
		}
	}
	return nil
}

func (m *MultiObserver) MoveMade(gameID, player string, symbol game.Symbol, move game.Move, board game.Board) error {
	for _, o := range m.observers {
		if err := o.MoveMade(gameID, player, symbol, move, board); err != nil {
			return err
		}
	}
	return nil
}

func (m *MultiObserver) GameFinished(result GameResult) error {
	for _, o := range m.observers {
		if err := o.GameFinished(result); err != nil {
			return err
		}
	}
	return nil
}

func (m *MultiObserver) MatchFinished(result MatchResult) error {
	for _, o := range m.observers {
		if err := o.MatchFinished(result); err != nil {
			return err
		}
	}
	return nil
}
