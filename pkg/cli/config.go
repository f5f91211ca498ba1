package cli

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/agent-protocol/agent-arena/pkg/game"
	"github.com/agent-protocol/agent-arena/pkg/tournament"
)

// TournamentPlan is everything a tournament run needs. It can be read from a
// YAML file and then overridden by flags.
type TournamentPlan struct {
	Tournament  tournament.Config `yaml:"tournament"`
	GameKind    string            `yaml:"game_kind"`
	Game        game.Config       `yaml:"game"`
	Models      []string          `yaml:"models"`
	Temperature float64           `yaml:"temperature"`
	OutputDir   string            `yaml:"output_dir"`
}

// DefaultTournamentPlan is a best-of-one 3x3 single elimination.
func DefaultTournamentPlan() TournamentPlan {
	return TournamentPlan{
		Tournament:  tournament.DefaultConfig(),
		GameKind:    game.KindTicTacToe,
		Game:        game.DefaultConfig(),
		Temperature: 0.7,
		OutputDir:   "tournament_outputs",
	}
}

// defaultPlanFor returns the defaults with the game settings of kind. An
// empty kind keeps tic-tac-toe.
func defaultPlanFor(kind string) TournamentPlan {
	plan := DefaultTournamentPlan()
	if kind == game.KindConnectFour {
		plan.GameKind = kind
		plan.Game = game.DefaultConnectFourConfig()
	} else if kind != "" {
		plan.GameKind = kind
	}
	return plan
}

// LoadTournamentPlan reads path on top of the defaults of its game kind, so
// game fields the file leaves out keep that game's defaults. A non-empty kind
// replaces the file's game_kind.
func LoadTournamentPlan(path, kind string) (TournamentPlan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return defaultPlanFor(kind), fmt.Errorf("failed to read config: %w", err)
	}
	var head struct {
		GameKind string `yaml:"game_kind"`
	}
	if err := yaml.Unmarshal(data, &head); err != nil {
		return defaultPlanFor(kind), fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	if kind == "" {
		kind = head.GameKind
	}

	plan := defaultPlanFor(kind)
	if err := yaml.Unmarshal(data, &plan); err != nil {
		return plan, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	if kind != "" {
		plan.GameKind = kind
	}
	return plan, nil
}

// Validate applies the limits shared by every tournament.
func (p TournamentPlan) Validate() error {
	if err := validateModels(p.Models, 2); err != nil {
		return err
	}
	if err := validateTemperature(p.Temperature, 2); err != nil {
		return err
	}
	if _, err := tournament.ParseFormat(string(p.Tournament.Format)); err != nil {
		return err
	}
	if p.Game.BoardSize < 3 || p.Game.BoardSize > 10 {
		return fmt.Errorf("board size must be between 3 and 10, got %d", p.Game.BoardSize)
	}
	if p.Game.WinLength < 3 || p.Game.WinLength > p.Game.BoardSize {
		return fmt.Errorf("win length must be between 3 and the board size %d, got %d", p.Game.BoardSize, p.Game.WinLength)
	}
	return nil
}
