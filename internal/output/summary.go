// Package output renders run summaries for the CLI.
package output

import (
	"fmt"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/OR-Dept-Environmental-Quality/soar/internal/core/engine"
	"github.com/OR-Dept-Environmental-Quality/soar/internal/pipeline"
	"github.com/OR-Dept-Environmental-Quality/soar/internal/stage"
)

// RunSummary renders the extraction report as a table with per-service rows
// and a totals footer.
func RunSummary(rep *engine.Report) string {
	if rep == nil {
		return ""
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Run %s (%s)\n", rep.RunID, rep.Status)
	if rep.Reason != "" {
		fmt.Fprintf(&b, "Reason: %s\n", rep.Reason)
	}

	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"Service", "Years", "Rows", "Skipped"})

	var rows, skipped int64
	for _, svc := range rep.Services {
		t.AppendRow(table.Row{svc.Service, svc.Years, svc.Rows, svc.Skipped})
		rows += svc.Rows
		skipped += svc.Skipped
	}
	t.AppendFooter(table.Row{"total", "", rows, skipped})

	b.WriteString(t.Render())
	return b.String()
}

// TransformSummary renders the transform step results.
func TransformSummary(results []pipeline.TransformResult) string {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"Step", "Years", "Rows"})
	for _, r := range results {
		t.AppendRow(table.Row{r.Step, r.Years, r.Rows})
	}
	return t.Render()
}

// StageSummary renders the staged table results.
func StageSummary(results []stage.TableResult) string {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"Table", "Years", "Rows"})
	for _, r := range results {
		t.AppendRow(table.Row{r.Table, r.Years, r.Rows})
	}
	return t.Render()
}
