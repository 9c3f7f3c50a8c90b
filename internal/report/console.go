package report

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/deoleojr/Disaster-Relief-Project-Part-1/internal/experiment"
)

var (
	green  = color.New(color.FgGreen).SprintFunc()
	red    = color.New(color.FgRed).SprintFunc()
	yellow = color.New(color.FgYellow).SprintFunc()
)

// ConsoleSummary renders one row per model with its cross-validated and
// hold-out AUC and a colored status.
func ConsoleSummary(results *experiment.Results) string {
	holdOut := make(map[string]string, len(results.HoldOut.Metrics))
	for _, m := range results.HoldOut.Metrics {
		holdOut[m.Model] = m.AUC.String() + "*"
	}

	t := table.NewWriter()
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Model", "Status", "CV Accuracy", "CV AUC", "Fold Acc", "Hold-out AUC"})
	for _, tr := range results.Training {
		if !tr.OK() {
			t.AppendRow(table.Row{tr.Name, red("FAILED"), "-", "-", "-", "-"})
			continue
		}
		status := green("OK")
		if tr.Metrics.HasUndefined() {
			status = yellow("PARTIAL")
		}
		hold, ok := holdOut[tr.Name]
		if !ok {
			hold = "-"
		}
		t.AppendRow(table.Row{
			tr.Name,
			status,
			tr.Metrics.Accuracy.String(),
			tr.Metrics.AUC.String(),
			fmt.Sprintf("%.4f ± %.4f", tr.FoldAccuracyMean, tr.FoldAccuracyStd),
			hold,
		})
	}
	if len(results.HoldOut.Metrics) > 0 {
		t.AppendFooter(table.Row{"", "", "", "", "", "* synthetic labels"})
	}
	return t.Render()
}
