package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"honnef.co/go/dsgpu/validate"
)

var (
	colorBorder = lipgloss.Color("#585b70")
	colorHeader = lipgloss.Color("#89b4fa")
	colorOK     = lipgloss.Color("#a6e3a1")
	colorFail   = lipgloss.Color("#f38ba8")

	headerStyle = lipgloss.NewStyle().Foreground(colorHeader).Bold(true).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	titleStyle  = lipgloss.NewStyle().Bold(true).MarginTop(1)
)

func formatDuration(d time.Duration) string {
	return d.Round(time.Microsecond).String()
}

func formatErr(e float64) string {
	if e == 0 {
		return "0"
	}
	return strconv.FormatFloat(e, 'e', 2, 64)
}

func verdict(r *validate.Report, tol float64) string {
	if r.Agrees(tol) {
		return lipgloss.NewStyle().Foreground(colorOK).Render("ok")
	}
	return lipgloss.NewStyle().Foreground(colorFail).Render("FAIL")
}

func newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(colorBorder)).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		}).
		Headers(headers...)
}

// renderSummary renders one row per report.
func renderSummary(reports []*validate.Report, tol float64) string {
	t := newTable("kernel", "device", "points", "mismatches", "max rel err", "host", "device time", "result")
	for _, r := range reports {
		t.Row(
			r.Kernel,
			r.Device,
			strconv.Itoa(r.Points),
			strconv.Itoa(max(r.IterationMismatches, r.EscapeMismatches)),
			formatErr(r.MaxRelErr),
			formatDuration(r.HostTime().Duration()),
			formatDuration(r.DeviceTime().Duration()),
			verdict(r, tol),
		)
	}
	return titleStyle.Render("Summary") + "\n" + t.String()
}

func formatValues(vs []float64) string {
	parts := make([]string, len(vs))
	for i, v := range vs {
		parts[i] = strconv.FormatFloat(v, 'g', 17, 64)
	}
	return strings.Join(parts, " ")
}

// renderSamples renders the first elements of a report, host and device
// side by side.
func renderSamples(r *validate.Report) string {
	t := newTable("#", "input", "host", "device")
	for _, s := range r.Samples {
		t.Row(strconv.Itoa(s.Index), fmt.Sprint(s.Input), formatValues(s.Want), formatValues(s.Got))
	}
	title := fmt.Sprintf("%s (%s)", r.Kernel, strings.Join(r.Quantities, ", "))
	return titleStyle.Render(title) + "\n" + t.String()
}
