package cmd

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/spigell/cv-ranker/internal/ranking"
)

var (
	headerStyle   = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle     = lipgloss.NewStyle().Padding(0, 1)
	fallbackStyle = cellStyle.Foreground(lipgloss.Color("214"))
	footerStyle   = lipgloss.NewStyle().Faint(true)
)

// sourceColumn is the index of the source column in ranking.ReportHeader.
const sourceColumn = 7

func printTable(w io.Writer, view *ranking.View) error {
	rows := view.Report()

	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers(ranking.ReportHeader...).
		Rows(rows...).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			if row >= 0 && row < len(rows) && rows[row][sourceColumn] == "fallback" {
				return fallbackStyle
			}
			return cellStyle
		})

	footer := fmt.Sprintf("%d candidates, %d scored by the fallback heuristic, sorted by %s (weights %s)",
		len(view.Items), view.Fallbacks(), view.SortBy, view.Weights)

	_, err := fmt.Fprintf(w, "%s\n%s\n", t.Render(), footerStyle.Render(footer))
	return err
}

func printJSON(w io.Writer, view *ranking.View) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(view)
}
