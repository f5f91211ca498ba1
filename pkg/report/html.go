// Package report renders transcripts and standings as HTML pages and
// terminal tables.
package report

import (
	"embed"
	"fmt"
	"html/template"
	"io"
	"strconv"

	"github.com/agent-protocol/agent-arena/pkg/debate"
	"github.com/agent-protocol/agent-arena/pkg/negotiation"
	"github.com/agent-protocol/agent-arena/pkg/pressconf"
	"github.com/agent-protocol/agent-arena/pkg/tournament"
)

//go:embed templates/*.html
var templateFS embed.FS

var pageTemplate = template.Must(template.ParseFS(templateFS, "templates/page.html"))

// Fact is one label/value line under the page title.
type Fact struct {
	Label string
	Value string
}

// Message is one speech bubble. Class is "", "alt" or "note".
type Message struct {
	Speaker string
	Tag     string
	Text    string
	Class   string
}

// Grid is a plain table.
type Grid struct {
	Headers []string
	Rows    [][]string
}

// Verdict closes a page with a highlighted block.
type Verdict struct {
	Heading string
	Text    string
}

// Page is everything one HTML view shows.
type Page struct {
	Title    string
	Subtitle string
	Facts    []Fact
	Messages []Message
	Table    *Grid
	Verdict  *Verdict
}

// Render writes p as a standalone HTML document.
func Render(w io.Writer, p *Page) error {
	if err := pageTemplate.Execute(w, p); err != nil {
		return fmt.Errorf("render %q: %w", p.Title, err)
	}
	return nil
}

// DebatePage builds the view of a debate transcript.
func DebatePage(entries []debate.Entry) *Page {
	p := &Page{Title: "Debate"}
	for _, e := range entries {
		switch {
		case e.Event == debate.EventStart:
			p.Subtitle = e.Topic
			p.Facts = append(p.Facts, Fact{"Model", e.Model}, Fact{"Agents", strconv.Itoa(e.NumAgents)})
			if e.Rounds != nil {
				p.Facts = append(p.Facts, Fact{"Rounds", strconv.Itoa(*e.Rounds)})
			}
			if e.Seed != nil {
				p.Facts = append(p.Facts, Fact{"Seed", strconv.Itoa(*e.Seed)})
			}
		case e.Event == debate.EventVerdict:
			p.Verdict = &Verdict{Heading: "Judge's verdict: Agent " + e.Winner, Text: e.Justification}
		case e.Agent != nil:
			m := Message{Speaker: fmt.Sprintf("Agent %d", *e.Agent), Tag: e.Type}
			if e.Round != nil {
				m.Tag = fmt.Sprintf("round %d, %s", *e.Round, e.Type)
			}
			m.Text = e.Message
			if *e.Agent%2 == 0 {
				m.Class = "alt"
			}
			p.Messages = append(p.Messages, m)
		}
	}
	return p
}

// NegotiationPage builds the view of a negotiation transcript.
func NegotiationPage(entries []negotiation.Entry) *Page {
	p := &Page{Title: "Negotiation"}
	for _, e := range entries {
		switch {
		case e.Event == negotiation.EventStart:
			if e.Scenario != nil {
				p.Subtitle = e.Scenario.Name
				p.Facts = append(p.Facts,
					Fact{"Item", e.Scenario.ItemName},
					Fact{"List price", "$" + negotiation.FormatPrice(e.Scenario.ListPrice)},
					Fact{"Seller minimum", "$" + negotiation.FormatPrice(e.Scenario.SellerMinPrice)},
					Fact{"Buyer maximum", "$" + negotiation.FormatPrice(e.Scenario.BuyerMaxPrice)})
			}
			if e.Config != nil {
				p.Facts = append(p.Facts,
					Fact{"Buyer model", e.Config.BuyerModel},
					Fact{"Seller model", e.Config.SellerModel})
			}
		case e.Event == negotiation.EventDeal && e.Price != nil:
			p.Facts = append(p.Facts, Fact{"Outcome", "Deal at $" + negotiation.FormatPrice(*e.Price)})
		case e.Event == negotiation.EventNoDeal:
			p.Facts = append(p.Facts, Fact{"Outcome", "No deal"})
		case e.Type == negotiation.TypeAnalysis:
			p.Verdict = &Verdict{Heading: "Moderator analysis", Text: e.Message}
		case e.Type == negotiation.TypeTurn:
			m := Message{Speaker: e.Role, Text: e.Message}
			if e.Price != nil {
				m.Tag = "offer $" + negotiation.FormatPrice(*e.Price)
			}
			if e.Role == "Seller" {
				m.Class = "alt"
			}
			p.Messages = append(p.Messages, m)
		}
	}
	return p
}

// PressPage builds the view of a press conference transcript.
func PressPage(entries []pressconf.Entry) *Page {
	p := &Page{Title: "Press Conference"}
	for _, e := range entries {
		switch e.Type {
		case "":
			if e.Event == pressconf.EventStart && e.EventDetails != nil {
				p.Subtitle = e.EventDetails.Title
				p.Facts = append(p.Facts, Fact{"Event", e.EventDetails.Details})
				if e.Config != nil {
					p.Facts = append(p.Facts,
						Fact{"Journalists", strconv.Itoa(len(e.Config.Journalists))},
						Fact{"Rounds", strconv.Itoa(e.Config.Rounds)})
				}
			}
		case pressconf.TypeSummary:
			p.Verdict = &Verdict{Heading: "Summary", Text: e.Message}
		default:
			m := Message{Speaker: e.Role, Tag: e.Bias, Text: e.Message}
			switch e.Type {
			case pressconf.TypeQ:
				m.Class = "alt"
			case pressconf.TypeMinutes:
				m.Class = "note"
			}
			p.Messages = append(p.Messages, m)
		}
	}
	return p
}

// StandingsPage builds the final table of a tournament.
func StandingsPage(res *tournament.Results) *Page {
	p := &Page{
		Title:    "Tournament Results",
		Subtitle: string(res.Format),
		Facts: []Fact{
			{"Champion", res.Champion},
			{"Rounds", strconv.Itoa(res.TotalRounds)},
			{"Matches", strconv.Itoa(res.TotalMatches)},
			{"Games", strconv.Itoa(res.TotalGames)},
		},
		Table: &Grid{Headers: StandingsHeaders, Rows: StandingsRows(res)},
	}
	if res.Config.GameKind != "" {
		p.Facts = append(p.Facts, Fact{"Game", res.Config.GameKind}, Fact{"Best of", strconv.Itoa(res.Config.BestOf)})
	}
	return p
}

// StandingsHeaders label the columns of StandingsRows.
var StandingsHeaders = []string{"Rank", "Player", "Pts", "W", "D", "L", "Games W-D-L", "Win rate"}

// StandingsRows formats the ranking of res.
func StandingsRows(res *tournament.Results) [][]string {
	var rows [][]string
	for _, r := range res.Ranking() {
		s := r.Stats
		rows = append(rows, []string{
			strconv.Itoa(r.Rank),
			r.Name,
			strconv.Itoa(s.Points),
			strconv.Itoa(s.Wins),
			strconv.Itoa(s.Draws),
			strconv.Itoa(s.Losses),
			fmt.Sprintf("%d-%d-%d", s.GamesWon, s.GamesDrawn, s.GamesLost),
			fmt.Sprintf("%.1f%%", 100*s.WinRate()),
		})
	}
	return rows
}
