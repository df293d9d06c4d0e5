package cli

import (
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/shopspring/decimal"

	"saldo/internal/core"
)

var (
	colorInflow  = lipgloss.Color("#a6e3a1")
	colorOutflow = lipgloss.Color("#f38ba8")
	colorBorder  = lipgloss.Color("#7f849c")
	colorHeader  = lipgloss.Color("#cdd6f4")

	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(colorHeader).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	titleStyle  = lipgloss.NewStyle().Bold(true)
)

// money renders an amount in BRL, green when positive and red when negative.
func money(d decimal.Decimal) string {
	s := core.FormatAmount(d)
	switch {
	case d.IsPositive():
		return lipgloss.NewStyle().Foreground(colorInflow).Render(s)
	case d.IsNegative():
		return lipgloss.NewStyle().Foreground(colorOutflow).Render(s)
	}
	return s
}

func renderTable(w io.Writer, title string, headers []string, rows [][]string) error {
	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(colorBorder)).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})
	if title != "" {
		if _, err := fmt.Fprintln(w, titleStyle.Render(title)); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintln(w, t.String())
	return err
}
