package cli

import (
	"errors"
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/agent-protocol/agent-arena/pkg/report"
)

// renderCommand creates the 'render' command
func renderCommand() *cli.Command {
	return &cli.Command{
		Name:      "render",
		Usage:     "Renders a debate log, run directory or session as HTML",
		ArgsUsage: "PATH",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "HTML file (default next to the input)",
			},
		},
		Action: func(c *cli.Context) error {
			if c.Args().Len() != 1 {
				return errors.New("exactly one PATH is required")
			}
			path := c.Args().First()
			kind, err := report.Detect(path)
			if err != nil {
				return err
			}
			out := c.String("output")
			if out == "" {
				out = report.DefaultHTMLPath(path, kind)
			}
			if _, err := report.WriteHTML(path, out); err != nil {
				return err
			}
			fmt.Fprintf(c.App.Writer, "Rendered %s %s to %s\n", kind, path, out)
			return nil
		},
	}
}
