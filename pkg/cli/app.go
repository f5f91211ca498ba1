package cli

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/agent-protocol/agent-arena/pkg/core"
	"github.com/agent-protocol/agent-arena/pkg/llm"
)

// Version information - will be set during build
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// LogLevelEnv overrides the log level when --verbose is not given.
const LogLevelEnv = "ARENA_LOG_LEVEL"

// NewApp creates and configures the CLI application
func NewApp() *cli.App {
	app := &cli.App{
		Name:    "arena",
		Usage:   "Multi-agent LLM demos and tournaments on a local Ollama",
		Version: Version,
		Commands: []*cli.Command{
			tournamentCommand(),
			rpsCommand(),
			negotiateCommand(),
			bargainCommand(),
			debateCommand(),
			topicsCommand(),
			pressCommand(),
			askCommand(),
			visionCommand(),
			ragCommand(),
			sessionsCommand(),
			modelsCommand(),
			renderCommand(),
			serveCommand(),
		},
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "verbose",
				Usage: "Enable verbose logging",
			},
			&cli.StringFlag{
				Name:    "backend",
				Value:   llm.BackendOllama,
				Usage:   "LLM backend (ollama or openai)",
				EnvVars: []string{"ARENA_BACKEND"},
			},
			&cli.StringFlag{
				Name:    "base-url",
				Usage:   "Backend base URL",
				EnvVars: []string{"OLLAMA_API_BASE"},
			},
			&cli.StringFlag{
				Name:    "api-key",
				Usage:   "API key for the openai backend",
				EnvVars: []string{"OPENAI_API_KEY"},
			},
		},
		Before: func(c *cli.Context) error {
			setupLogging(c.App.ErrWriter, c.Bool("verbose"))
			return nil
		},
	}

	// Custom help template
	cli.AppHelpTemplate = `NAME:
   {{.Name}} - {{.Usage}}

USAGE:
   {{.HelpName}} {{if .VisibleFlags}}[global options]{{end}}{{if .Commands}} command [command options]{{end}} {{if .ArgsUsage}}{{.ArgsUsage}}{{else}}[arguments...]{{end}}
   {{if .Commands}}
COMMANDS:
{{range .Commands}}{{if not .HideHelp}}   {{join .Names ", "}}{{ "\t"}}{{.Usage}}{{ "\n" }}{{end}}{{end}}{{end}}{{if .VisibleFlags}}
GLOBAL OPTIONS:
   {{range .VisibleFlags}}{{.}}
   {{end}}{{end}}{{if .Version}}
VERSION:
   {{.Version}}
   {{end}}
`

	return app
}

// setupLogging installs a text slog handler on w.
func setupLogging(w io.Writer, verbose bool) {
	if w == nil {
		w = os.Stderr
	}
	level := parseLevel(os.Getenv(LogLevelEnv))
	if verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})))
}

func parseLevel(s string) slog.Level {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG":
		return slog.LevelDebug
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR", "CRITICAL":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// connection builds the backend selected by the global flags.
func connection(c *cli.Context) (core.LLMConnection, error) {
	return llm.NewConnection(llm.ConnectionOptions{
		Backend: c.String("backend"),
		BaseURL: c.String("base-url"),
		APIKey:  c.String("api-key"),
	})
}

// Common LLM sampling flags
func samplingFlags(temperature float64) []cli.Flag {
	return []cli.Flag{
		&cli.Float64Flag{
			Name:  "temperature",
			Value: temperature,
			Usage: "Sampling temperature",
		},
		&cli.IntFlag{
			Name:  "seed",
			Value: 42,
			Usage: "Random seed",
		},
	}
}

// Helper function to validate required flags
func validateRequiredFlags(c *cli.Context, flags ...string) error {
	for _, flag := range flags {
		if c.String(flag) == "" {
			return fmt.Errorf("required flag --%s is missing", flag)
		}
	}
	return nil
}

func validateTemperature(t, max float64) error {
	if t < 0 || t > max {
		return fmt.Errorf("temperature must be between 0 and %g, got %g", max, t)
	}
	return nil
}

// splitModels accepts repeated flags as well as comma separated lists.
func splitModels(values []string) []string {
	var out []string
	for _, v := range values {
		for _, m := range strings.Split(v, ",") {
			if m = strings.TrimSpace(m); m != "" {
				out = append(out, m)
			}
		}
	}
	return out
}

func validateModels(models []string, min int) error {
	if len(models) < min {
		return fmt.Errorf("at least %d models are required, got %d", min, len(models))
	}
	return nil
}
