package tui

import (
	"fmt"
	"unicode/utf8"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/semlayer/semlayer/internal/db"
)

const maxCellWidth = 40

// RenderResult draws res as a bordered table. At most maxRows rows are
// shown when maxRows > 0; a footer reports the rest.
func RenderResult(res *db.Result, maxRows int) string {
	if res == nil || len(res.Columns) == 0 {
		return dimStyle.Render("(no columns)")
	}

	rows := res.Rows
	if maxRows > 0 && len(rows) > maxRows {
		rows = rows[:maxRows]
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(borderStyle).
		Headers(res.Columns...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return headerStyle
			case row%2 == 1:
				return oddCellStyle
			default:
				return cellStyle
			}
		})
	for _, row := range rows {
		cells := make([]string, len(row))
		for i, v := range row {
			cells[i] = truncate(db.FormatValue(v), maxCellWidth)
		}
		t.Row(cells...)
	}

	out := t.Render()
	switch {
	case len(res.Rows) == 0:
		out += "\n" + dimStyle.Render("0 rows")
	case len(rows) < len(res.Rows):
		out += "\n" + dimStyle.Render(fmt.Sprintf("showing %d of %d rows", len(rows), len(res.Rows)))
	default:
		out += "\n" + dimStyle.Render(fmt.Sprintf("%d rows", len(res.Rows)))
	}
	return out
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n-1]) + "…"
}
