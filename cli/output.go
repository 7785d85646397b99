package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/morikuni/failure/v2"
	"github.com/rendini/mashup/api/sitemap"
)

var headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)

var cellStyle = lipgloss.NewStyle().Padding(0, 1)

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return failure.Wrap(err)
	}
	return nil
}

func writeTable(w io.Writer, headers []string, rows [][]string) error {
	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})
	if _, err := fmt.Fprintln(w, t.String()); err != nil {
		return failure.Wrap(err)
	}
	return nil
}

func formatOptTime(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return sitemap.FormatTime(*t)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
