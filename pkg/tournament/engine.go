package tournament

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"

	"github.com/agent-protocol/agent-arena/pkg/game"
	"github.com/agent-protocol/agent-arena/pkg/players"
)

var (
	// ErrNotEnoughPlayers is returned when fewer than two players are registered.
	ErrNotEnoughPlayers = errors.New("need at least 2 players for a tournament")
	// ErrDuplicatePlayer is returned when two players share a name.
	ErrDuplicatePlayer = errors.New("duplicate player name")
)

// GameFactory builds a fresh game for every game of every match.
type GameFactory func() (game.Game, error)

// Engine schedules matches and plays them out move by move.
type Engine struct {
	config    Config
	newGame   GameFactory
	observer  Observer
	rng       *rand.Rand
	players   []players.Player
	byName    map[string]players.Player
	standings map[string]*Standing
	matches   []MatchResult

	gameKind   string
	gameConfig map[string]any
}

// NewEngine creates an engine. A nil observer discards events.
func NewEngine(config Config, factory GameFactory, observer Observer) *Engine {
	config.Normalize()
	if observer == nil {
		observer = NopObserver{}
	}
	seed := uint64(config.Seed)
	return &Engine{
		config:    config,
		newGame:   factory,
		observer:  observer,
		rng:       rand.New(rand.NewPCG(seed, seed+1)),
		byName:    make(map[string]players.Player),
		standings: make(map[string]*Standing),
	}
}

// Config returns the normalized configuration.
func (e *Engine) Config() Config { return e.config }

// AddPlayers registers the participants, shuffling them when configured,
// and resets their standings.
func (e *Engine) AddPlayers(ps []players.Player) error {
	if len(ps) < 2 {
		return ErrNotEnoughPlayers
	}
	byName := make(map[string]players.Player, len(ps))
	for _, p := range ps {
		if _, dup := byName[p.Name()]; dup {
			return fmt.Errorf("%w: %s", ErrDuplicatePlayer, p.Name())
		}
		byName[p.Name()] = p
	}

	e.players = append([]players.Player(nil), ps...)
	if e.config.ShufflePlayers {
		e.rng.Shuffle(len(e.players), func(i, j int) {
			e.players[i], e.players[j] = e.players[j], e.players[i]
		})
	}
	e.byName = byName
	e.standings = make(map[string]*Standing, len(ps))
	for _, p := range e.players {
		e.standings[p.Name()] = &Standing{Opponents: []string{}}
	}
	e.matches = nil
	return nil
}

// Participants returns player names in seeding order.
func (e *Engine) Participants() []string {
	names := make([]string, len(e.players))
	for i, p := range e.players {
		names[i] = p.Name()
	}
	return names
}

// Run plays the whole tournament and compiles the results.
func (e *Engine) Run(ctx context.Context) (*Results, error) {
	if len(e.players) < 2 {
		return nil, ErrNotEnoughPlayers
	}

	probe, err := e.newGame()
	if err != nil {
		return nil, fmt.Errorf("failed to create game: %w", err)
	}
	e.gameKind = probe.Kind()
	e.gameConfig = probe.Config().ToMap()

	slog.Info("tournament starting",
		"format", e.config.Format,
		"players", e.Participants(),
		"best_of", e.config.BestOf)

	total := EstimateTotalRounds(e.config.Format, len(e.players), e.config.MaxRounds)
	if err := e.observer.TournamentStarted(e.Participants(), total); err != nil {
		return nil, fmt.Errorf("observer: %w", err)
	}

	var champion string
	switch e.config.Format {
	case SingleElimination:
		champion, err = e.runSingleElimination(ctx)
	case DoubleElimination:
		champion, err = e.runDoubleElimination(ctx)
	case RoundRobin:
		champion, err = e.runRoundRobin(ctx)
	case Swiss:
		champion, err = e.runSwiss(ctx)
	default:
		err = fmt.Errorf("unsupported tournament format %q", e.config.Format)
	}
	if err != nil {
		return nil, err
	}

	slog.Info("tournament complete", "champion", champion, "matches", len(e.matches))
	return e.compileResults(champion), nil
}

// playMatch plays up to BestOf games. Player1 moves first in odd games.
// A decisive match never ends drawn: ties go through breakTie.
func (e *Engine) playMatch(ctx context.Context, name1, name2, matchID string, round int, decisive bool) (MatchResult, error) {
	p1, p2 := e.byName[name1], e.byName[name2]
	need := e.config.WinsNeeded()

	result := MatchResult{
		MatchID: matchID,
		Round:   round,
		Player1: name1,
		Player2: name2,
		Format:  fmt.Sprintf("best_of_%d", e.config.BestOf),
	}

	for n := 1; n <= e.config.BestOf && result.Score[0] < need && result.Score[1] < need; n++ {
		first, second := p1, p2
		if n%2 == 0 {
			first, second = p2, p1
		}
		gr, err := e.playGame(ctx, first, second, fmt.Sprintf("%sG%d", matchID, n))
		if err != nil {
			return result, err
		}
		result.Games = append(result.Games, gr)
		switch gr.Winner {
		case name1:
			result.Score[0]++
		case name2:
			result.Score[1]++
		}
		slog.Debug("game finished", "game_id", gr.GameID, "winner", gr.Winner, "score", result.Score)
	}

	switch {
	case result.Score[0] > result.Score[1]:
		result.Winner = name1
	case result.Score[1] > result.Score[0]:
		result.Winner = name2
	}

	e.updateStandings(name1, name2, result.Score[0], result.Score[1], len(result.Games))
	if decisive && result.Winner == "" {
		e.breakTie(&result)
	}
	e.matches = append(e.matches, result)
	if err := e.observer.MatchFinished(result); err != nil {
		return result, fmt.Errorf("observer: %w", err)
	}
	return result, nil
}

// playGame runs one game. Invalid or failed moves are replaced with the
// first valid move; a position without valid moves ends in a draw.
func (e *Engine) playGame(ctx context.Context, first, second players.Player, gameID string) (GameResult, error) {
	g, err := e.newGame()
	if err != nil {
		return GameResult{}, fmt.Errorf("failed to create game: %w", err)
	}
	symbols := g.Symbols()
	seats := [2]players.Player{first, second}
	result := GameResult{GameID: gameID, Players: [2]string{first.Name(), second.Name()}}

	maxMoves := g.Config().MaxMoves
	for turn := 0; turn < maxMoves; turn++ {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		seat := turn % 2
		player, symbol := seats[seat], symbols[seat]

		move, err := player.ChooseMove(ctx, g, symbol)
		if ctx.Err() != nil {
			return result, ctx.Err()
		}
		if err != nil || !g.IsValidMove(move, symbol) {
			valid := g.ValidMoves(symbol)
			if len(valid) == 0 {
				break
			}
			slog.Warn("substituting move", "game_id", gameID, "player", player.Name(), "move", move, "error", err)
			move = valid[0]
			result.Substituted++
		}

		landed, err := g.MakeMove(move, symbol)
		if err != nil {
			slog.Warn("move rejected, ending game as draw", "game_id", gameID, "error", err)
			break
		}
		result.Moves++
		if err := e.observer.MoveMade(gameID, player.Name(), symbol, landed, g.State()); err != nil {
			return result, fmt.Errorf("observer: %w", err)
		}

		if over, winner := g.IsGameOver(); over {
			for i, s := range symbols[:2] {
				if s == winner && winner != "" {
					result.Winner = seats[i].Name()
					result.WinnerSymbol = winner
				}
			}
			break
		}
	}

	result.FinalState = g.State().Rows()
	if err := e.observer.GameFinished(result); err != nil {
		return result, fmt.Errorf("observer: %w", err)
	}
	return result, nil
}

func (e *Engine) updateStandings(p1, p2 string, w1, w2, games int) {
	s1, s2 := e.standings[p1], e.standings[p2]
	s1.MatchesPlayed++
	s2.MatchesPlayed++

	drawn := games - w1 - w2
	s1.GamesWon += w1
	s1.GamesLost += w2
	s1.GamesDrawn += drawn
	s2.GamesWon += w2
	s2.GamesLost += w1
	s2.GamesDrawn += drawn

	switch {
	case w1 > w2:
		s1.Wins++
		s2.Losses++
		s1.Points += 3
		s2.Points++
	case w2 > w1:
		s2.Wins++
		s1.Losses++
		s2.Points += 3
		s1.Points++
	default:
		s1.Draws++
		s2.Draws++
		s1.Points += 2
		s2.Points += 2
	}

	s1.Opponents = append(s1.Opponents, p2)
	s2.Opponents = append(s2.Opponents, p1)
}

// breakTie picks an elimination winner for a drawn match: more tournament
// games won first, then a seeded coin toss.
func (e *Engine) breakTie(m *MatchResult) string {
	s1, s2 := e.standings[m.Player1], e.standings[m.Player2]
	winner := m.Player1
	switch {
	case s1.GamesWon > s2.GamesWon:
	case s2.GamesWon > s1.GamesWon:
		winner = m.Player2
	case e.rng.IntN(2) == 1:
		winner = m.Player2
	}
	m.Winner = winner
	m.TieBreak = true
	slog.Info("drawn elimination match decided by tie-break", "match_id", m.MatchID, "advances", winner)
	return winner
}

// bestBy returns the first player in seeding order with the greatest key.
func (e *Engine) bestBy(key func(*Standing) [3]int) string {
	var best string
	var bestKey [3]int
	for i, p := range e.players {
		k := key(e.standings[p.Name()])
		if i == 0 || greater(k, bestKey) {
			best, bestKey = p.Name(), k
		}
	}
	return best
}

func greater(a, b [3]int) bool {
	for i := range a {
		if a[i] != b[i] {
			return a[i] > b[i]
		}
	}
	return false
}

func (e *Engine) compileResults(champion string) *Results {
	rounds := make(map[int]bool)
	summaries := make([]MatchSummary, len(e.matches))
	totalGames := 0
	for i, m := range e.matches {
		rounds[m.Round] = true
		totalGames += len(m.Games)
		summaries[i] = MatchSummary{
			MatchID: m.MatchID,
			Round:   m.Round,
			Players: [2]string{m.Player1, m.Player2},
			Winner:  m.Winner,
			Score:   m.Score,
			Games:   len(m.Games),
		}
	}

	return &Results{
		Format:       e.config.Format,
		Champion:     champion,
		TotalRounds:  len(rounds),
		TotalMatches: len(e.matches),
		TotalGames:   totalGames,
		Participants: e.Participants(),
		Standings:    e.standings,
		Matches:      summaries,
		Config: ResultsConfig{
			Format:     e.config.Format,
			BestOf:     e.config.BestOf,
			GameKind:   e.gameKind,
			GameConfig: e.gameConfig,
		},
	}
}
