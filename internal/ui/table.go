package ui

import (
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/lipgloss"

	"github.com/lobot-sh/lobot/internal/cloud"
)

// TableColumn defines a table column with name and width.
type TableColumn struct {
	Title string
	Width int
}

// NewTable creates a new Bubbles table with default styling.
func NewTable(columns []TableColumn, rows []table.Row) table.Model {
	cols := make([]table.Column, len(columns))
	for i, c := range columns {
		cols[i] = table.Column{
			Title: c.Title,
			Width: c.Width,
		}
	}

	t := table.New(
		table.WithColumns(cols),
		table.WithRows(rows),
		table.WithFocused(false),
		table.WithHeight(len(rows)+1), // +1 for header
	)

	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color(string(ColorMuted))).
		BorderBottom(true).
		Bold(true).
		Foreground(lipgloss.Color(string(ColorPrimary)))
	s.Cell = s.Cell.
		Foreground(lipgloss.Color(string(ColorPrimary)))
	s.Selected = s.Selected.
		Foreground(lipgloss.Color(string(ColorPrimary))).
		Background(lipgloss.Color(string(ColorMuted))).
		Bold(false)

	t.SetStyles(s)
	return t
}

// RenderSimpleTable renders a non-interactive table string for CLI
// output.
func RenderSimpleTable(columns []TableColumn, rows [][]string) string {
	if len(rows) == 0 {
		return ""
	}

	tableRows := make([]table.Row, len(rows))
	for i, row := range rows {
		tableRows[i] = table.Row(row)
	}

	t := NewTable(columns, tableRows)
	return t.View()
}

// instanceColumns are the listing columns; PRICE/HR is appended only
// when prices were loaded.
func instanceColumns(withPrices bool) []TableColumn {
	cols := []TableColumn{
		{Title: "NAME", Width: 18},
		{Title: "ID", Width: 20},
		{Title: "TYPE", Width: 12},
		{Title: "STATE", Width: 14},
		{Title: "ADDRESS", Width: 16},
		{Title: "KEY", Width: 14},
		{Title: "UPTIME", Width: 10},
	}
	if withPrices {
		cols = append(cols, TableColumn{Title: "PRICE/HR", Width: 10})
	}
	return cols
}

// RenderInstanceTable renders the instance listing. Prices may be nil;
// types absent from the map show a dash.
func RenderInstanceTable(instances []cloud.Instance, prices map[string]float64) string {
	if len(instances) == 0 {
		return "No instances in this region"
	}

	withPrices := prices != nil
	rows := make([][]string, 0, len(instances))
	for _, inst := range instances {
		name := inst.Name
		if name == "" {
			name = "-"
		}

		addr := inst.PublicAddress
		if addr == "" {
			addr = "-"
		}

		uptime := "-"
		if inst.State == cloud.StateRunning {
			uptime = formatUptime(inst.Uptime(time.Now()))
		}

		stateStyle := lipgloss.NewStyle().Foreground(StateColor(inst.State.String()))
		row := []string{
			name,
			inst.ID,
			inst.Type,
			stateStyle.Render(inst.State.String()),
			addr,
			inst.KeyName,
			uptime,
		}

		if withPrices {
			if price, ok := prices[inst.Type]; ok {
				row = append(row, fmt.Sprintf("$%.4f", price))
			} else {
				row = append(row, "-")
			}
		}
		rows = append(rows, row)
	}

	return RenderSimpleTable(instanceColumns(withPrices), rows)
}

// formatUptime renders an uptime compactly: 45m, 3h12m, 2d4h.
func formatUptime(d time.Duration) string {
	if d <= 0 {
		return "-"
	}
	days := int(d.Hours()) / 24
	hours := int(d.Hours()) % 24
	minutes := int(d.Minutes()) % 60

	switch {
	case days > 0:
		return fmt.Sprintf("%dd%dh", days, hours)
	case hours > 0:
		return fmt.Sprintf("%dh%dm", hours, minutes)
	default:
		return fmt.Sprintf("%dm", minutes)
	}
}
