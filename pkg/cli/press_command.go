package cli

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/agent-protocol/agent-arena/pkg/pressconf"
	"github.com/agent-protocol/agent-arena/pkg/report"
)

// pressCommand creates the 'press' command
func pressCommand() *cli.Command {
	def := pressconf.DefaultConfig()
	return &cli.Command{
		Name:  "press",
		Usage: "Simulates a press conference",
		Flags: append([]cli.Flag{
			&cli.StringFlag{
				Name:  "event",
				Value: def.EventKey,
				Usage: "Event key",
			},
			&cli.StringFlag{
				Name:  "events",
				Usage: "YAML event catalog to use instead of the built-in one",
			},
			&cli.BoolFlag{
				Name:  "list",
				Usage: "List events and exit",
			},
			&cli.IntFlag{
				Name:  "journalists",
				Value: len(def.Journalists),
				Usage: "Number of journalists; biases rotate",
			},
			&cli.StringFlag{
				Name:    "model",
				Value:   def.SpokespersonModel,
				Usage:   "Model for every role not set explicitly",
				EnvVars: []string{"OLLAMA_MODEL"},
			},
			&cli.StringFlag{Name: "spokesperson-model"},
			&cli.StringFlag{Name: "journalist-model"},
			&cli.StringFlag{Name: "notetaker-model"},
			&cli.StringFlag{Name: "summarizer-model"},
			&cli.IntFlag{
				Name:  "rounds",
				Value: def.Rounds,
				Usage: "Question rounds",
			},
			&cli.StringFlag{
				Name:  "output",
				Value: "press_conferences",
				Usage: "Directory for run folders",
			},
			&cli.BoolFlag{
				Name:  "no-html",
				Usage: "Skip the HTML transcript",
			},
		}, samplingFlags(float64(def.Temperature))...),
		Action: pressCommandAction,
	}
}

func pressCommandAction(c *cli.Context) error {
	events := pressconf.DefaultEvents()
	if path := c.String("events"); path != "" {
		var err error
		if events, err = pressconf.LoadEvents(path); err != nil {
			return err
		}
	}
	if c.Bool("list") {
		for _, e := range events.All() {
			fmt.Fprintf(c.App.Writer, "%-28s %s\n", e.Key, e.Title)
		}
		return nil
	}
	event, err := events.Get(c.String("event"))
	if err != nil {
		return err
	}

	model := c.String("model")
	role := func(flag string) string {
		if v := c.String(flag); v != "" {
			return v
		}
		return model
	}
	cfg := pressconf.Config{
		EventKey:          event.Key,
		Journalists:       pressconf.NewJournalists(c.Int("journalists"), role("journalist-model")),
		SpokespersonModel: role("spokesperson-model"),
		NoteTakerModel:    role("notetaker-model"),
		SummarizerModel:   role("summarizer-model"),
		Rounds:            c.Int("rounds"),
		Temperature:       float32(c.Float64("temperature")),
		Seed:              c.Int("seed"),
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	conn, err := connection(c)
	if err != nil {
		return err
	}
	defer conn.Close(c.Context)

	res, err := pressconf.New(conn, c.App.Writer).Run(c.Context, cfg, event, c.String("output"))
	if err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "\n📰 Summary\n%s\n", res.Summary)
	fmt.Fprintf(c.App.Writer, "📁 Run saved to %s\n", res.Dir)

	if !c.Bool("no-html") {
		out := report.DefaultHTMLPath(res.Dir, report.KindPress)
		if _, err := report.WriteHTML(res.Dir, out); err != nil {
			return err
		}
		fmt.Fprintf(c.App.Writer, "🌐 HTML transcript: %s\n", out)
	}
	return nil
}
