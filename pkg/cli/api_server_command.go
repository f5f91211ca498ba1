package cli

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/agent-protocol/agent-arena/pkg/api"
)

// serveCommand creates the 'serve' command
func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Starts the read-only results browser",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "host",
				Value: "127.0.0.1",
				Usage: "Host to bind the server to",
			},
			&cli.IntFlag{
				Name:  "port",
				Value: 8000,
				Usage: "Port to bind the server to",
			},
			&cli.StringSliceFlag{
				Name:  "allow-origins",
				Usage: "Origins allowed for CORS (default: any)",
			},
			&cli.StringFlag{
				Name:  "sessions-dir",
				Value: "tournament_outputs",
				Usage: "Directory holding tournament sessions",
			},
			&cli.StringFlag{
				Name:  "outputs-dir",
				Value: ".",
				Usage: "Directory holding demo transcripts",
			},
		},
		Action: serveCommandAction,
	}
}

func serveCommandAction(c *cli.Context) error {
	sessionsDir := absOrSelf(c.String("sessions-dir"))
	outputsDir := absOrSelf(c.String("outputs-dir"))
	if _, err := os.Stat(outputsDir); err != nil {
		return fmt.Errorf("outputs directory not found: %s", outputsDir)
	}

	host := c.String("host")
	port := c.Int("port")
	fmt.Fprintf(c.App.Writer, "Starting results browser...\n")
	fmt.Fprintf(c.App.Writer, "Sessions directory: %s\n", sessionsDir)
	fmt.Fprintf(c.App.Writer, "Outputs directory: %s\n", outputsDir)
	fmt.Fprintf(c.App.Writer, "Server address: http://%s:%d\n", host, port)

	server := api.NewServer(&api.ServerConfig{
		Host:         host,
		Port:         port,
		SessionsDir:  sessionsDir,
		OutputsDir:   outputsDir,
		AllowOrigins: c.StringSlice("allow-origins"),
	})

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := server.Start(ctx); err != nil && ctx.Err() == nil {
		return fmt.Errorf("server failed: %w", err)
	}
	return nil
}
