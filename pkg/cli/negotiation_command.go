package cli

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/agent-protocol/agent-arena/pkg/negotiation"
	"github.com/agent-protocol/agent-arena/pkg/report"
)

// negotiateCommand creates the 'negotiate' command
func negotiateCommand() *cli.Command {
	def := negotiation.DefaultConfig()
	return &cli.Command{
		Name:  "negotiate",
		Usage: "Runs a buyer/seller negotiation over a scenario",
		Flags: append([]cli.Flag{
			&cli.StringFlag{
				Name:  "scenario",
				Value: def.ScenarioKey,
				Usage: "Scenario key",
			},
			&cli.StringFlag{
				Name:  "scenarios",
				Usage: "YAML file with extra or replacement scenarios",
			},
			&cli.BoolFlag{
				Name:  "list",
				Usage: "List scenarios and exit",
			},
			&cli.IntFlag{
				Name:  "rounds",
				Value: def.Rounds,
				Usage: "Negotiation rounds",
			},
			&cli.StringFlag{
				Name:  "buyer-model",
				Value: def.BuyerModel,
			},
			&cli.StringFlag{
				Name:  "seller-model",
				Value: def.SellerModel,
			},
			&cli.StringFlag{
				Name:  "moderator-model",
				Value: def.ModeratorModel,
			},
			&cli.StringFlag{
				Name:  "output",
				Value: "negotiation_runs",
				Usage: "Directory for run folders",
			},
			&cli.BoolFlag{
				Name:  "no-html",
				Usage: "Skip the HTML transcript",
			},
		}, samplingFlags(float64(def.Temperature))...),
		Action: negotiateCommandAction,
	}
}

func negotiateCommandAction(c *cli.Context) error {
	catalog := negotiation.DefaultCatalog()
	if path := c.String("scenarios"); path != "" {
		extra, err := negotiation.LoadCatalog(path)
		if err != nil {
			return err
		}
		catalog.Merge(extra)
	}
	if c.Bool("list") {
		for _, s := range catalog.All() {
			fmt.Fprintf(c.App.Writer, "%-20s %s (list $%s)\n", s.Key, s.Name, negotiation.FormatPrice(s.ListPrice))
		}
		return nil
	}

	scenario, err := catalog.Get(c.String("scenario"))
	if err != nil {
		return err
	}
	cfg := negotiation.Config{
		ScenarioKey:    scenario.Key,
		Rounds:         c.Int("rounds"),
		BuyerModel:     c.String("buyer-model"),
		SellerModel:    c.String("seller-model"),
		ModeratorModel: c.String("moderator-model"),
		Temperature:    float32(c.Float64("temperature")),
		Seed:           c.Int("seed"),
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	conn, err := connection(c)
	if err != nil {
		return err
	}
	defer conn.Close(c.Context)

	res, err := negotiation.NewNegotiator(conn, c.App.Writer).Run(c.Context, cfg, scenario, c.String("output"))
	if err != nil {
		return err
	}
	if res.Outcome.DealMade {
		fmt.Fprintf(c.App.Writer, "\n🤝 Deal at $%s\n", negotiation.FormatPrice(res.Outcome.FinalPrice))
	} else {
		fmt.Fprintln(c.App.Writer, "\n❌ No deal")
	}
	fmt.Fprintf(c.App.Writer, "📁 Run saved to %s\n", res.Dir)

	if !c.Bool("no-html") {
		out := report.DefaultHTMLPath(res.Dir, report.KindNegotiation)
		if _, err := report.WriteHTML(res.Dir, out); err != nil {
			return err
		}
		fmt.Fprintf(c.App.Writer, "🌐 HTML transcript: %s\n", out)
	}
	return nil
}

// bargainCommand creates the 'bargain' command
func bargainCommand() *cli.Command {
	def := negotiation.DefaultBargainConfig()
	return &cli.Command{
		Name:  "bargain",
		Usage: "Runs a numeric buyer/seller negotiation with a mediator",
		Flags: append([]cli.Flag{
			&cli.Float64Flag{
				Name:  "min-price",
				Value: def.MinPrice,
				Usage: "Seller's minimum price",
			},
			&cli.Float64Flag{
				Name:  "max-price",
				Value: def.MaxPrice,
				Usage: "Buyer's maximum price",
			},
			&cli.IntFlag{
				Name:  "max-rounds",
				Value: def.MaxRounds,
			},
			&cli.Float64Flag{
				Name:  "threshold",
				Value: def.Threshold,
				Usage: "Relative gap that counts as agreement",
			},
			&cli.StringFlag{
				Name:    "model",
				Value:   def.Model,
				EnvVars: []string{"OLLAMA_MODEL"},
			},
			&cli.StringFlag{
				Name:  "output",
				Value: def.Output,
				Usage: "JSONL log file",
			},
		}, samplingFlags(float64(def.Temperature))...),
		Action: bargainCommandAction,
	}
}

func bargainCommandAction(c *cli.Context) error {
	cfg := negotiation.BargainConfig{
		MinPrice:    c.Float64("min-price"),
		MaxPrice:    c.Float64("max-price"),
		MaxRounds:   c.Int("max-rounds"),
		Threshold:   c.Float64("threshold"),
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

	res, err := negotiation.NewBargainer(conn, c.App.Writer).Run(c.Context, cfg)
	if err != nil {
		return err
	}
	status := "mediated"
	if res.Agreement {
		status = "agreed"
	}
	fmt.Fprintf(c.App.Writer, "\nFinal price $%.2f (%s after %d rounds), winner: %s\n", res.FinalPrice, status, res.Rounds, res.Winner)
	fmt.Fprintf(c.App.Writer, "📝 Log saved to %s\n", cfg.Output)
	return nil
}
