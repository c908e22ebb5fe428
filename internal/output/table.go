package output

import (
	"fmt"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
)

// TableFormatter renders reports as an ASCII table, or a Markdown table when
// Markdown is set.
type TableFormatter struct {
	Markdown bool
}

// FormatReport renders a report as a table.
func (f *TableFormatter) FormatReport(report *Report) (string, error) {
	if report == nil {
		return "", nil
	}

	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"Service", "Status", "Endpoint", "Notes"})

	for _, ep := range report.Services {
		t.AppendRow(table.Row{
			ep.Name,
			reachableLabel(ep.Reachable),
			endpointLabel(ep),
			ep.LastError,
		})
	}

	if g := report.Generative; g != nil {
		t.AppendRow(table.Row{
			"connector",
			generativeLabel(g),
			fmt.Sprintf("%s/%s", g.Provider, g.Model),
			"",
		})
	}

	if !report.CheckedAt.IsZero() {
		t.AppendFooter(table.Row{"", "", "checked " + report.CheckedAt.Format("15:04:05"), ""})
	}

	var rendered string
	if f.Markdown {
		rendered = t.RenderMarkdown()
	} else {
		rendered = t.Render()
	}

	if strings.TrimSpace(report.Reply) != "" {
		rendered += "\n\n"
		if report.Input != "" {
			rendered += fmt.Sprintf("Input: %s\n", report.Input)
		}
		rendered += fmt.Sprintf("Reply: %s", report.Reply)
	}
	return rendered, nil
}
