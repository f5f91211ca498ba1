package cli

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"

	"github.com/agent-protocol/agent-arena/pkg/core"
	"github.com/agent-protocol/agent-arena/pkg/ptr"
	"github.com/agent-protocol/agent-arena/pkg/report"
)

// modelsCommand creates the 'models' command
func modelsCommand() *cli.Command {
	return &cli.Command{
		Name:   "models",
		Usage:  "Lists installed models",
		Action: modelsListAction,
		Subcommands: []*cli.Command{
			{
				Name:      "check",
				Usage:     "Sends a short prompt to each model and reports which answer",
				ArgsUsage: "MODEL...",
				Flags: []cli.Flag{
					&cli.DurationFlag{Name: "timeout", Value: 60 * time.Second, Usage: "Per-model timeout"},
					&cli.IntFlag{Name: "parallel", Value: 2, Usage: "Models probed at once"},
				},
				Action: modelsCheckAction,
			},
		},
	}
}

func modelsListAction(c *cli.Context) error {
	conn, err := connection(c)
	if err != nil {
		return err
	}
	defer conn.Close(c.Context)
	lister, ok := conn.(core.ModelLister)
	if !ok {
		return fmt.Errorf("backend %s cannot list models", c.String("backend"))
	}

	models, err := lister.ListModels(c.Context)
	if err != nil {
		return err
	}
	rows := make([][]string, len(models))
	for i, m := range models {
		rows[i] = []string{m.Name, fmt.Sprintf("%.2f GB", m.SizeGB()), m.Details.Family, m.Details.ParameterSize, m.Details.QuantizationLevel}
	}
	fmt.Fprintln(c.App.Writer, report.Table([]string{"Model", "Size", "Family", "Parameters", "Quantization"}, rows))
	return nil
}

// ProbeResult is the outcome of checking one model.
type ProbeResult struct {
	Model   string
	Reply   string
	Err     error
	Elapsed time.Duration
}

// ProbeModels asks every model for a one-word reply, at most parallel at a
// time. A failing model does not stop the others.
func ProbeModels(ctx context.Context, conn core.LLMConnection, models []string, parallel int, timeout time.Duration) []ProbeResult {
	results := make([]ProbeResult, len(models))
	g, ctx := errgroup.WithContext(ctx)
	if parallel > 0 {
		g.SetLimit(parallel)
	}
	for i, model := range models {
		g.Go(func() error {
			pctx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()
			start := time.Now()
			resp, err := conn.GenerateContent(pctx, &core.LLMRequest{
				Contents: []core.Content{core.NewTextContent("user", "Reply with the single word OK.")},
				Config:   &core.LLMConfig{Model: model, Temperature: ptr.Float32(0)},
			})
			results[i] = ProbeResult{Model: model, Err: err, Elapsed: time.Since(start)}
			if err == nil {
				results[i].Reply = strings.TrimSpace(resp.Text())
			}
			return nil
		})
	}
	g.Wait()
	return results
}

func modelsCheckAction(c *cli.Context) error {
	models := splitModels(c.Args().Slice())
	if len(models) == 0 {
		return fmt.Errorf("at least one MODEL is required")
	}
	conn, err := connection(c)
	if err != nil {
		return err
	}
	defer conn.Close(c.Context)

	failed := 0
	rows := [][]string{}
	for _, r := range ProbeModels(c.Context, conn, models, c.Int("parallel"), c.Duration("timeout")) {
		status := "✅ " + r.Reply
		if r.Err != nil {
			status = "❌ " + r.Err.Error()
			failed++
		}
		rows = append(rows, []string{r.Model, r.Elapsed.Round(time.Millisecond).String(), status})
	}
	fmt.Fprintln(c.App.Writer, report.Table([]string{"Model", "Time", "Result"}, rows))
	if failed > 0 {
		return fmt.Errorf("%d of %d models failed", failed, len(models))
	}
	return nil
}
