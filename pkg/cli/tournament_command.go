package cli

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/agent-protocol/agent-arena/pkg/agents"
	"github.com/agent-protocol/agent-arena/pkg/core"
	"github.com/agent-protocol/agent-arena/pkg/game"
	"github.com/agent-protocol/agent-arena/pkg/players"
	"github.com/agent-protocol/agent-arena/pkg/report"
	"github.com/agent-protocol/agent-arena/pkg/sessions"
	"github.com/agent-protocol/agent-arena/pkg/tournament"
)

// RandomModel enters a seeded random player instead of an LLM.
const RandomModel = "random"

// tournamentCommand creates the 'tournament' command
func tournamentCommand() *cli.Command {
	return &cli.Command{
		Name:  "tournament",
		Usage: "Runs a board game tournament between models",
		Flags: append([]cli.Flag{
			&cli.StringFlag{
				Name:  "config",
				Usage: "YAML file with tournament, game and model settings",
			},
			&cli.StringSliceFlag{
				Name:    "models",
				Aliases: []string{"m"},
				Usage:   "Models to enter; \"random\" enters a random player",
			},
			&cli.StringFlag{
				Name:  "format",
				Value: string(tournament.SingleElimination),
				Usage: "single_elimination, round_robin, swiss or double_elimination",
			},
			&cli.StringFlag{
				Name:  "game",
				Value: game.KindTicTacToe,
				Usage: "Game kind (tictactoe or connect4)",
			},
			&cli.IntFlag{
				Name:  "board-size",
				Value: 3,
				Usage: "Board size (connect four: width)",
			},
			&cli.IntFlag{
				Name:  "win-length",
				Value: 3,
				Usage: "Pieces in a row needed to win",
			},
			&cli.IntFlag{
				Name:  "best-of",
				Value: 1,
				Usage: "Games per match (forced odd)",
			},
			&cli.IntFlag{
				Name:  "max-rounds",
				Value: 10,
				Usage: "Round cap for Swiss tournaments",
			},
			&cli.BoolFlag{
				Name:  "no-shuffle",
				Usage: "Seed players in the given order",
			},
			&cli.BoolFlag{
				Name:  "show-boards",
				Usage: "Print the board after every move",
			},
			&cli.StringFlag{
				Name:  "output",
				Value: "tournament_outputs",
				Usage: "Directory for session folders",
			},
		}, samplingFlags(0.7)...),
		Action: tournamentCommandAction,
	}
}

func tournamentCommandAction(c *cli.Context) error {
	plan, err := tournamentPlan(c)
	if err != nil {
		return err
	}
	if err := plan.Validate(); err != nil {
		return err
	}

	conn, err := connection(c)
	if err != nil {
		return err
	}
	defer conn.Close(c.Context)

	res, dir, err := RunTournament(c.Context, conn, plan, c.App.Writer, c.Bool("show-boards"))
	if err != nil {
		return err
	}
	fmt.Fprintln(c.App.Writer)
	fmt.Fprintln(c.App.Writer, report.StandingsTable(res))
	fmt.Fprintf(c.App.Writer, "📁 Session saved to %s\n", dir)
	return nil
}

// tournamentPlan merges the optional config file with explicitly set flags.
func tournamentPlan(c *cli.Context) (TournamentPlan, error) {
	kind := ""
	if c.IsSet("game") {
		kind = c.String("game")
	}
	plan := defaultPlanFor(kind)
	if path := c.String("config"); path != "" {
		var err error
		if plan, err = LoadTournamentPlan(path, kind); err != nil {
			return plan, err
		}
	}

	if c.IsSet("models") || len(plan.Models) == 0 {
		plan.Models = splitModels(c.StringSlice("models"))
	}
	if c.IsSet("format") || c.String("config") == "" {
		f, err := tournament.ParseFormat(c.String("format"))
		if err != nil {
			return plan, err
		}
		plan.Tournament.Format = f
	}
	if c.IsSet("board-size") {
		plan.Game.BoardSize = c.Int("board-size")
	}
	if c.IsSet("win-length") {
		plan.Game.WinLength = c.Int("win-length")
	}
	if c.IsSet("best-of") {
		plan.Tournament.BestOf = c.Int("best-of")
	}
	if c.IsSet("max-rounds") {
		plan.Tournament.MaxRounds = c.Int("max-rounds")
	}
	if c.Bool("no-shuffle") {
		plan.Tournament.ShufflePlayers = false
	}
	if c.IsSet("seed") {
		plan.Tournament.Seed = int64(c.Int("seed"))
	}
	if c.IsSet("temperature") {
		plan.Temperature = c.Float64("temperature")
	}
	if c.IsSet("output") {
		plan.OutputDir = c.String("output")
	}
	plan.Tournament.Normalize()
	return plan, nil
}

// RunTournament plays plan, records the session and writes the standings
// page into the session's reports directory.
func RunTournament(ctx context.Context, conn core.LLMConnection, plan TournamentPlan, out io.Writer, showBoards bool) (*tournament.Results, string, error) {
	if _, err := game.New(plan.GameKind, plan.Game); err != nil {
		return nil, "", err
	}

	name := sessions.SessionName(plan.Tournament, plan.Game, len(plan.Models))
	recorder, err := sessions.NewRecorder(plan.OutputDir, name)
	if err != nil {
		return nil, "", err
	}
	err = recorder.SaveConfiguration(sessions.ConfigRecord{
		Tournament: plan.Tournament,
		GameKind:   plan.GameKind,
		Game:       plan.Game,
		Models:     plan.Models,
		CLIArgs: map[string]any{
			"temperature": plan.Temperature,
			"show_boards": showBoards,
		},
	})
	if err != nil {
		recorder.Close()
		return nil, "", err
	}

	observer := tournament.NewMultiObserver(recorder, sessions.NewProgressObserver(out, showBoards))
	engine := tournament.NewEngine(plan.Tournament, func() (game.Game, error) {
		return game.New(plan.GameKind, plan.Game)
	}, observer)
	if err := engine.AddPlayers(buildPlayers(conn, plan)); err != nil {
		recorder.Close()
		return nil, "", err
	}

	res, err := engine.Run(ctx)
	if err != nil {
		recorder.Close()
		return nil, "", err
	}
	if _, err := recorder.SaveResults(res); err != nil {
		recorder.Close()
		return nil, "", err
	}
	if _, err := recorder.Finalize(); err != nil {
		return nil, "", err
	}

	htmlPath := report.DefaultHTMLPath(recorder.Dir(), report.KindSession)
	if _, err := report.WriteHTML(recorder.Dir(), htmlPath); err != nil {
		return res, recorder.Dir(), fmt.Errorf("failed to write standings page: %w", err)
	}
	return res, recorder.Dir(), nil
}

// buildPlayers names each player after its model, suffixing repeats, and
// gives player i the seed base+i.
func buildPlayers(conn core.LLMConnection, plan TournamentPlan) []players.Player {
	seen := map[string]int{}
	out := make([]players.Player, 0, len(plan.Models))
	for i, model := range plan.Models {
		seen[model]++
		name := model
		if n := seen[model]; n > 1 {
			name = fmt.Sprintf("%s_%d", model, n)
		}
		seed := int(plan.Tournament.Seed) + i
		if strings.EqualFold(model, RandomModel) {
			out = append(out, players.NewRandomPlayer(name, uint64(seed)))
			continue
		}
		out = append(out, players.NewLLMPlayer(name, conn, agents.ChatAgentConfig{
			Model:       model,
			Temperature: float32(plan.Temperature),
			Seed:        seed,
		}))
	}
	return out
}

// sessionsDirFlag is shared by the commands reading recorded sessions.
func sessionsDirFlag() cli.Flag {
	return &cli.StringFlag{
		Name:  "dir",
		Value: "tournament_outputs",
		Usage: "Directory holding tournament sessions",
	}
}

func absOrSelf(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return path
}
