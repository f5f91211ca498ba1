package report

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/agent-protocol/agent-arena/pkg/game"
	"github.com/agent-protocol/agent-arena/pkg/tournament"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#5B8DEF")).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FF6B6B"))
	borderStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#444444"))
)

// Table renders rows under headers with a rounded border.
func Table(headers []string, rows [][]string) string {
	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(borderStyle).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})
	return t.String()
}

// Titled prefixes a rendered block with a styled title line.
func Titled(title, body string) string {
	return lipgloss.JoinVertical(lipgloss.Left, titleStyle.Render(title), body)
}

// StandingsTable renders the final ranking of a tournament.
func StandingsTable(res *tournament.Results) string {
	return Titled("🏆 Champion: "+res.Champion, Table(StandingsHeaders, StandingsRows(res)))
}

// BoardTable draws a board as a grid, empty cells shown as a dot.
func BoardTable(b game.Board) string {
	rows := make([][]string, len(b))
	var headers []string
	for r, line := range b {
		rows[r] = make([]string, len(line))
		for c, sym := range line {
			cell := strings.TrimSpace(string(sym))
			if cell == "" {
				cell = "·"
			}
			rows[r][c] = cell
		}
	}
	if len(b) > 0 {
		for c := range b[0] {
			headers = append(headers, string(rune('0'+c%10)))
		}
	}
	return Table(headers, rows)
}
