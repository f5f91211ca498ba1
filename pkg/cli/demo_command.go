package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/agent-protocol/agent-arena/pkg/rag"
	"github.com/agent-protocol/agent-arena/pkg/records"
	"github.com/agent-protocol/agent-arena/pkg/structured"
	"github.com/agent-protocol/agent-arena/pkg/vision"
)

// askCommand creates the 'ask' command
func askCommand() *cli.Command {
	return &cli.Command{
		Name:      "ask",
		Usage:     "Sends one prompt, or runs a structured-output example",
		ArgsUsage: "[PROMPT]",
		Flags: append([]cli.Flag{
			&cli.StringFlag{
				Name:    "model",
				Value:   "phi4:latest",
				EnvVars: []string{"OLLAMA_MODEL"},
			},
			&cli.StringFlag{
				Name:  "example",
				Usage: "Structured example to run: " + strings.Join(structured.Names(), ", "),
			},
			&cli.StringFlag{
				Name:  "output",
				Value: "results/structured",
				Usage: "Directory for saved exchanges",
			},
		}, samplingFlags(0.7)...),
		Action: askCommandAction,
	}
}

func askCommandAction(c *cli.Context) error {
	conn, err := connection(c)
	if err != nil {
		return err
	}
	defer conn.Close(c.Context)

	runner := structured.NewRunner(conn, c.App.Writer, c.String("output"))
	model := c.String("model")

	if name := c.String("example"); name != "" {
		ex, err := structured.Lookup(name)
		if err != nil {
			return err
		}
		res, err := runner.Run(c.Context, ex, model)
		if err != nil {
			return err
		}
		if res.Valid {
			fmt.Fprintf(c.App.Writer, "Answer: %v\n", res.Answer)
		} else {
			fmt.Fprintf(c.App.Writer, "Validation failed: %s\n", res.Problem)
		}
		if res.Path != "" {
			fmt.Fprintf(c.App.Writer, "Saved to %s\n", res.Path)
		}
		return nil
	}

	prompt := strings.Join(c.Args().Slice(), " ")
	if prompt == "" {
		return errors.New("a PROMPT or --example is required")
	}
	temperature := c.Float64("temperature")
	if err := validateTemperature(temperature, 2); err != nil {
		return err
	}
	ans, err := runner.Ask(c.Context, model, prompt, float32(temperature), c.Int("seed"))
	if err != nil {
		return err
	}
	fmt.Fprintln(c.App.Writer, ans.Response)
	if ans.Path != "" {
		fmt.Fprintf(c.App.Writer, "Saved to %s\n", ans.Path)
	}
	return nil
}

// visionCommand creates the 'vision' command
func visionCommand() *cli.Command {
	return &cli.Command{
		Name:      "vision",
		Usage:     "Runs a vision task on an image",
		ArgsUsage: "IMAGE",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "task",
				Value: vision.TaskInvoice,
				Usage: strings.Join([]string{vision.TaskInvoice, vision.TaskObjects, vision.TaskEmotions}, ", "),
			},
			&cli.StringFlag{
				Name:  "model",
				Usage: "Vision model (defaults depend on the task)",
			},
			&cli.StringFlag{
				Name:  "output",
				Value: "results/vision",
				Usage: "Directory for JSON results",
			},
		},
		Action: visionCommandAction,
	}
}

func visionCommandAction(c *cli.Context) error {
	if c.Args().Len() != 1 {
		return errors.New("exactly one IMAGE is required")
	}
	conn, err := connection(c)
	if err != nil {
		return err
	}
	defer conn.Close(c.Context)

	res, err := vision.NewAnalyzer(conn, c.String("output")).Run(c.Context, c.String("task"), c.String("model"), c.Args().First())
	if err != nil {
		if res != nil {
			fmt.Fprintf(c.App.Writer, "Raw output:\n%s\n", res.Raw)
		}
		return err
	}
	fmt.Fprintln(c.App.Writer, res.Raw)
	if res.Path != "" {
		fmt.Fprintf(c.App.Writer, "Saved to %s\n", res.Path)
	}
	return nil
}

// ragCommand creates the 'rag' command
func ragCommand() *cli.Command {
	def := rag.DefaultConfig()
	return &cli.Command{
		Name:      "rag",
		Usage:     "Answers a question from local text and markdown files",
		ArgsUsage: "QUESTION",
		Flags: []cli.Flag{
			&cli.StringSliceFlag{
				Name:     "docs",
				Aliases:  []string{"d"},
				Usage:    "Files or directories to index",
				Required: true,
			},
			&cli.StringFlag{
				Name:  "model",
				Value: def.Model,
			},
			&cli.StringFlag{
				Name:  "embed-model",
				Value: def.EmbedModel,
			},
			&cli.IntFlag{
				Name:  "chunk-size",
				Value: def.ChunkSize,
			},
			&cli.IntFlag{
				Name:  "chunk-overlap",
				Value: def.ChunkOverlap,
			},
			&cli.IntFlag{
				Name:  "k",
				Value: def.K,
				Usage: "Chunks retrieved per retriever",
			},
			&cli.Float64SliceFlag{
				Name:  "weights",
				Usage: "Semantic and keyword weights",
			},
			&cli.BoolFlag{
				Name:  "sources",
				Usage: "Print the retrieved chunks",
			},
			&cli.StringFlag{
				Name:  "output",
				Usage: "Save the answer as JSON",
			},
		},
		Action: ragCommandAction,
	}
}

func ragCommandAction(c *cli.Context) error {
	question := strings.Join(c.Args().Slice(), " ")
	if question == "" {
		return errors.New("a QUESTION is required")
	}
	docs, err := rag.Load(c.StringSlice("docs")...)
	if err != nil {
		return err
	}

	conn, err := connection(c)
	if err != nil {
		return err
	}
	defer conn.Close(c.Context)
	backend, ok := conn.(rag.Backend)
	if !ok {
		return fmt.Errorf("backend %s cannot embed text", c.String("backend"))
	}

	cfg := rag.Config{
		Model:        c.String("model"),
		EmbedModel:   c.String("embed-model"),
		ChunkSize:    c.Int("chunk-size"),
		ChunkOverlap: c.Int("chunk-overlap"),
		K:            c.Int("k"),
		Weights:      c.Float64Slice("weights"),
	}
	if len(cfg.Weights) == 0 {
		cfg.Weights = rag.DefaultConfig().Weights
	}

	fmt.Fprintf(c.App.Writer, "Indexing %d documents...\n", len(docs))
	index, err := rag.Build(c.Context, backend, cfg, docs)
	if err != nil {
		return err
	}
	ans, err := index.Ask(c.Context, question)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "\n%s\n", ans.Text)

	if c.Bool("sources") {
		for i, d := range ans.Sources {
			fmt.Fprintf(c.App.Writer, "\n[%d] %v (offset %v)\n%s\n", i+1, d.Metadata[rag.MetaSource], d.Metadata[rag.MetaStartIndex], d.Content)
		}
	}
	if path := c.String("output"); path != "" {
		if err := records.SaveJSON(path, ans); err != nil {
			return err
		}
		fmt.Fprintf(c.App.Writer, "Saved to %s\n", path)
	}
	return nil
}
