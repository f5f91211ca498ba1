package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/agent-protocol/agent-arena/pkg/report"
	"github.com/agent-protocol/agent-arena/pkg/sessions"
)

// sessionsCommand creates the 'sessions' command
func sessionsCommand() *cli.Command {
	return &cli.Command{
		Name:  "sessions",
		Usage: "Lists, analyzes, compares, exports and cleans up tournament sessions",
		Flags: []cli.Flag{sessionsDirFlag()},
		Subcommands: []*cli.Command{
			{
				Name:   "list",
				Usage:  "Lists recorded sessions, newest first",
				Action: sessionsListAction,
			},
			{
				Name:      "analyze",
				Usage:     "Shows the top standings of a session",
				ArgsUsage: "SESSION",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "json", Usage: "Print the analysis as JSON"},
				},
				Action: sessionsAnalyzeAction,
			},
			{
				Name:      "compare",
				Usage:     "Compares models across two or more sessions",
				ArgsUsage: "SESSION SESSION...",
				Action:    sessionsCompareAction,
			},
			{
				Name:      "export",
				Usage:     "Exports a session as JSON or CSV",
				ArgsUsage: "SESSION",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "format", Value: "json", Usage: "json or csv"},
					&cli.StringFlag{Name: "output", Usage: "Output file (default SESSION_export.FORMAT)"},
				},
				Action: sessionsExportAction,
			},
			{
				Name:  "cleanup",
				Usage: "Deletes sessions older than a number of days",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "days", Value: 30, Usage: "Maximum age in days"},
					&cli.BoolFlag{Name: "force", Usage: "Delete instead of listing"},
				},
				Action: sessionsCleanupAction,
			},
		},
	}
}

func manager(c *cli.Context) *sessions.Manager {
	return sessions.NewManager(c.String("dir"))
}

func sessionsListAction(c *cli.Context) error {
	list, err := manager(c).List()
	if err != nil {
		return err
	}
	if len(list) == 0 {
		fmt.Fprintf(c.App.Writer, "No sessions found in %s\n", c.String("dir"))
		return nil
	}
	rows := make([][]string, len(list))
	for i, s := range list {
		rows[i] = []string{s.Name, s.StartTime.Format("2006-01-02 15:04:05"), s.Duration, s.Format, s.Champion}
	}
	fmt.Fprintln(c.App.Writer, report.Table([]string{"Session", "Started", "Duration", "Format", "Champion"}, rows))
	return nil
}

func sessionArg(c *cli.Context) (string, error) {
	if c.Args().Len() != 1 {
		return "", errors.New("exactly one SESSION is required")
	}
	return manager(c).Resolve(c.Args().First()), nil
}

func sessionsAnalyzeAction(c *cli.Context) error {
	dir, err := sessionArg(c)
	if err != nil {
		return err
	}
	a, err := sessions.Analyze(dir)
	if err != nil {
		return err
	}
	if c.Bool("json") {
		enc := json.NewEncoder(c.App.Writer)
		enc.SetIndent("", "  ")
		return enc.Encode(a)
	}

	rows := make([][]string, len(a.Top))
	for i, e := range a.Top {
		rows[i] = []string{strconv.Itoa(e.Rank), e.Player, strconv.Itoa(e.Points), fmt.Sprintf("%.1f%%", e.WinRate*100)}
	}
	title := fmt.Sprintf("%s (%s) champion: %s", a.Summary.Metadata.Name, a.Summary.Format(), a.Summary.Champion())
	fmt.Fprintln(c.App.Writer, report.Titled(title, report.Table([]string{"Rank", "Player", "Pts", "Win rate"}, rows)))
	return nil
}

func sessionsCompareAction(c *cli.Context) error {
	m := manager(c)
	var dirs []string
	for _, ref := range c.Args().Slice() {
		dirs = append(dirs, m.Resolve(ref))
	}
	cmp, err := sessions.Compare(dirs)
	if err != nil {
		return err
	}
	rows := make([][]string, len(cmp.Models))
	for i, mc := range cmp.Models {
		rows[i] = []string{
			mc.Model,
			strconv.Itoa(mc.Sessions),
			strconv.Itoa(mc.Championships),
			strconv.Itoa(mc.TotalPoints),
			fmt.Sprintf("%.1f%%", mc.AvgWinRate*100),
		}
	}
	title := fmt.Sprintf("Comparing %d sessions", len(cmp.Sessions))
	fmt.Fprintln(c.App.Writer, report.Titled(title, report.Table([]string{"Model", "Sessions", "Titles", "Points", "Win rate"}, rows)))
	return nil
}

func sessionsExportAction(c *cli.Context) error {
	dir, err := sessionArg(c)
	if err != nil {
		return err
	}
	format := c.String("format")
	output := c.String("output")
	if output == "" {
		output = filepath.Base(dir) + "_export." + format
	}
	if err := sessions.Export(dir, output, format); err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "Exported %s to %s\n", filepath.Base(dir), output)
	return nil
}

func sessionsCleanupAction(c *cli.Context) error {
	days := c.Int("days")
	if days < 0 {
		return fmt.Errorf("days must not be negative, got %d", days)
	}
	dryRun := !c.Bool("force")
	old, err := manager(c).Cleanup(time.Duration(days)*24*time.Hour, dryRun)
	if err != nil {
		return err
	}
	verb := "Deleted"
	if dryRun {
		verb = "Would delete"
	}
	for _, s := range old {
		fmt.Fprintf(c.App.Writer, "%s %s (started %s)\n", verb, s.Name, s.StartTime.Format(time.DateTime))
	}
	fmt.Fprintf(c.App.Writer, "%d sessions older than %d days\n", len(old), days)
	if dryRun && len(old) > 0 {
		fmt.Fprintln(c.App.Writer, "Run again with --force to delete them")
	}
	return nil
}
