package cli

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/agent-protocol/agent-arena/pkg/debate"
	"github.com/agent-protocol/agent-arena/pkg/report"
)

func topicsFlag() cli.Flag {
	return &cli.StringFlag{
		Name:  "topics",
		Usage: "YAML topic catalog to use instead of the built-in one",
	}
}

func loadTopics(c *cli.Context) (*debate.Topics, error) {
	if path := c.String("topics"); path != "" {
		return debate.LoadTopics(path)
	}
	return debate.DefaultTopics(), nil
}

// debateCommand creates the 'debate' command
func debateCommand() *cli.Command {
	def := debate.DefaultConfig()
	return &cli.Command{
		Name:      "debate",
		Usage:     "Runs a multi-agent debate judged by another model call",
		ArgsUsage: "[TOPIC_OR_KEY]",
		Flags: append([]cli.Flag{
			topicsFlag(),
			&cli.IntFlag{
				Name:  "agents",
				Value: def.NumAgents,
				Usage: "Number of debating agents (2-8)",
			},
			&cli.IntFlag{
				Name:  "rounds",
				Value: def.Rounds,
				Usage: "Response rounds after the opening statements",
			},
			&cli.StringFlag{
				Name:    "model",
				Value:   def.Model,
				EnvVars: []string{"OLLAMA_MODEL"},
			},
			&cli.StringFlag{
				Name:  "output",
				Value: def.Output,
				Usage: "JSONL transcript",
			},
			&cli.BoolFlag{
				Name:  "no-html",
				Usage: "Skip the HTML transcript",
			},
		}, samplingFlags(float64(def.Temperature))...),
		Action: debateCommandAction,
	}
}

func debateCommandAction(c *cli.Context) error {
	topics, err := loadTopics(c)
	if err != nil {
		return err
	}
	topic := debate.DefaultTopic
	if c.Args().Present() {
		topic = topics.Resolve(c.Args().First())
	}

	cfg := debate.Config{
		Topic:       topic,
		NumAgents:   c.Int("agents"),
		Rounds:      c.Int("rounds"),
		Model:       c.String("model"),
		Temperature: float32(c.Float64("temperature")),
		Seed:        c.Int("seed"),
		Output:      c.String("output"),
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	conn, err := connection(c)
	if err != nil {
		return err
	}
	defer conn.Close(c.Context)

	res, err := debate.New(conn, c.App.Writer).Run(c.Context, cfg)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "\n⚖️ Winner: Agent %s\n%s\n", res.Verdict.Winner, res.Verdict.Justification)
	fmt.Fprintf(c.App.Writer, "📝 Transcript: %s\n", cfg.Output)

	if !c.Bool("no-html") {
		out := report.DefaultHTMLPath(cfg.Output, report.KindDebate)
		if _, err := report.WriteHTML(cfg.Output, out); err != nil {
			return err
		}
		fmt.Fprintf(c.App.Writer, "🌐 HTML transcript: %s\n", out)
	}
	return nil
}

// topicsCommand creates the 'topics' command
func topicsCommand() *cli.Command {
	return &cli.Command{
		Name:  "topics",
		Usage: "Lists debate topics by category",
		Flags: []cli.Flag{topicsFlag()},
		Action: func(c *cli.Context) error {
			topics, err := loadTopics(c)
			if err != nil {
				return err
			}
			for _, cat := range topics.Categories() {
				fmt.Fprintf(c.App.Writer, "\n%s\n", cat.Name)
				for _, t := range cat.Topics {
					fmt.Fprintf(c.App.Writer, "  %-24s %s\n", t.Key, t.Question)
				}
			}
			fmt.Fprintf(c.App.Writer, "\n%d topics\n", topics.Len())
			return nil
		},
	}
}
