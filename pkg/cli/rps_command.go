package cli

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/agent-protocol/agent-arena/pkg/core"
	"github.com/agent-protocol/agent-arena/pkg/report"
	"github.com/agent-protocol/agent-arena/pkg/rps"
)

// rpsCommand creates the 'rps' command
func rpsCommand() *cli.Command {
	return &cli.Command{
		Name:  "rps",
		Usage: "Runs a rock-paper-scissors tournament",
		Flags: append([]cli.Flag{
			&cli.StringSliceFlag{
				Name:    "models",
				Aliases: []string{"m"},
				Usage:   "Models to enter; \"random\" and \"counter\" enter scripted agents",
			},
			&cli.StringFlag{
				Name:  "type",
				Value: "round-robin",
				Usage: "round-robin, elimination or league",
			},
			&cli.IntFlag{
				Name:  "rounds",
				Value: 10,
				Usage: "Rounds per match (league: total rounds)",
			},
			&cli.StringFlag{
				Name:  "output",
				Value: "rps_tournament_log.jsonl",
				Usage: "JSONL log file",
			},
			&cli.BoolFlag{
				Name:  "analyze",
				Usage: "Print the log analysis when the tournament ends",
			},
		}, samplingFlags(0.7)...),
		Subcommands: []*cli.Command{
			{
				Name:      "analyze",
				Usage:     "Analyzes an existing tournament log",
				ArgsUsage: "LOG_FILE",
				Action: func(c *cli.Context) error {
					if c.Args().Len() != 1 {
						return fmt.Errorf("LOG_FILE is required")
					}
					return printRPSAnalysis(c.App.Writer, c.Args().First())
				},
			},
		},
		Action: rpsCommandAction,
	}
}

func rpsCommandAction(c *cli.Context) error {
	models := splitModels(c.StringSlice("models"))
	if err := validateModels(models, 2); err != nil {
		return err
	}
	temperature := c.Float64("temperature")
	if err := validateTemperature(temperature, 1); err != nil {
		return err
	}
	tournamentType, err := rps.ParseTournamentType(c.String("type"))
	if err != nil {
		return err
	}

	conn, err := connection(c)
	if err != nil {
		return err
	}
	defer conn.Close(c.Context)

	seed := c.Int("seed")
	entrants, err := buildRPSAgents(conn, models, float32(temperature), seed)
	if err != nil {
		return err
	}

	logger, err := rps.NewLogger(c.String("output"))
	if err != nil {
		return err
	}
	manager := rps.NewManager(logger, rps.Options{
		Rounds:      c.Int("rounds"),
		Temperature: float32(temperature),
		Seed:        seed,
		Out:         c.App.Writer,
	})
	res, err := manager.Run(c.Context, tournamentType, entrants)
	if cerr := logger.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return err
	}

	rows := make([][]string, len(res.Leaderboard))
	for i, e := range res.Leaderboard {
		rows[i] = []string{
			strconv.Itoa(i + 1), e.Name, strconv.Itoa(e.Points),
			strconv.Itoa(e.Wins), strconv.Itoa(e.Draws), strconv.Itoa(e.Losses),
			fmt.Sprintf("%.1f%%", e.WinRate*100),
		}
	}
	fmt.Fprintln(c.App.Writer)
	fmt.Fprintln(c.App.Writer, report.Titled("🏆 Champion: "+res.Champion,
		report.Table([]string{"Rank", "Agent", "Pts", "W", "D", "L", "Win rate"}, rows)))
	fmt.Fprintf(c.App.Writer, "📝 Log saved to %s\n", logger.Path())

	if c.Bool("analyze") {
		return printRPSAnalysis(c.App.Writer, logger.Path())
	}
	return nil
}

// buildRPSAgents turns model names into agents. Repeated models are told
// apart as model(AgentN); agent i gets seed+i.
func buildRPSAgents(conn core.LLMConnection, models []string, temperature float32, seed int) ([]rps.Agent, error) {
	counts := map[string]int{}
	for _, m := range models {
		counts[m]++
	}
	out := make([]rps.Agent, 0, len(models))
	for i, model := range models {
		cfg := rps.AgentConfig{Kind: rps.KindLLM, Model: model, Temperature: temperature, Seed: seed + i}
		switch strings.ToLower(model) {
		case rps.KindRandom, rps.KindCounter:
			cfg.Kind = strings.ToLower(model)
		}
		cfg.Name = model
		if counts[model] > 1 {
			cfg.Name = fmt.Sprintf("%s(Agent%d)", model, i+1)
		}
		agent, err := rps.NewAgent(cfg, conn)
		if err != nil {
			return nil, err
		}
		out = append(out, agent)
	}
	return out, nil
}

func printRPSAnalysis(w io.Writer, path string) error {
	data, err := rps.LoadLog(path)
	if err != nil {
		return err
	}
	a := rps.NewAnalyzer(data)
	s := a.Summary()

	fmt.Fprintf(w, "\n📊 %s tournament, %d matches, %d rounds, champion %s\n", s.Type, s.TotalMatches, s.TotalRounds, s.Champion)
	fmt.Fprintf(w, "Moves: rock %.1f%%, paper %.1f%%, scissors %.1f%%\n",
		s.MoveDistribution[rps.Rock]*100, s.MoveDistribution[rps.Paper]*100, s.MoveDistribution[rps.Scissors]*100)

	var rows [][]string
	for _, name := range a.Agents() {
		st := a.AgentStatistics(name)
		rows = append(rows, []string{
			name,
			strconv.Itoa(st.TotalRounds),
			fmt.Sprintf("%.1f%%", st.RoundWinRate*100),
			fmt.Sprintf("%d-%d-%d", st.MatchWins, st.MatchDraws, st.MatchLosses),
			fmt.Sprintf("%.1f%%", st.MatchWinRate*100),
		})
	}
	fmt.Fprintln(w, report.Table([]string{"Agent", "Rounds", "Round win rate", "Matches W-D-L", "Match win rate"}, rows))

	perf := a.ModelPerformance()
	modelNames := make([]string, 0, len(perf))
	for m := range perf {
		modelNames = append(modelNames, m)
	}
	sort.Strings(modelNames)
	rows = rows[:0]
	for _, m := range modelNames {
		st := perf[m]
		rows = append(rows, []string{
			m,
			strconv.Itoa(st.TotalMatches),
			fmt.Sprintf("%.1f%%", st.MatchWinRate*100),
			fmt.Sprintf("%.1f%%", st.RoundWinRate*100),
			fmt.Sprintf("%.2fs", st.AvgMatchDuration),
		})
	}
	fmt.Fprintln(w, report.Table([]string{"Model", "Matches", "Match win rate", "Round win rate", "Avg match"}, rows))
	return nil
}
