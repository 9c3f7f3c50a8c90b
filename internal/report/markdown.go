package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/deoleojr/Disaster-Relief-Project-Part-1/internal/config"
	"github.com/deoleojr/Disaster-Relief-Project-Part-1/internal/evaluation"
	"github.com/deoleojr/Disaster-Relief-Project-Part-1/internal/experiment"
)

var metricsColumns = table.Row{
	"Model", "Accuracy", "AUC", "PR-AUC", "F1", "Sensitivity", "Specificity",
	"Precision", "Balanced Acc.", "Kappa", "Log-loss",
}

func metricsTable(rows []*evaluation.Metrics, extra func(m *evaluation.Metrics) []any, extraHeader ...any) string {
	t := table.NewWriter()
	t.AppendHeader(append(append(table.Row{}, metricsColumns...), extraHeader...))
	for _, m := range rows {
		row := table.Row{
			m.Model,
			m.Accuracy.String(),
			m.AUC.String(),
			m.PRAUC.String(),
			m.F1.String(),
			m.Sensitivity.String(),
			m.Specificity.String(),
			m.Precision.String(),
			m.BalancedAccuracy.String(),
			m.Kappa.String(),
			m.LogLoss.String(),
		}
		if extra != nil {
			row = append(row, extra(m)...)
		}
		t.AppendRow(row)
	}
	return t.RenderMarkdown()
}

// WriteMarkdown renders the analysis as a Markdown document. rocImage is
// the relative path of the ROC plot, or empty when there is none.
func WriteMarkdown(w io.Writer, results *experiment.Results, title, rocImage string) error {
	var b strings.Builder
	cfg := results.Config

	fmt.Fprintf(&b, "# %s\n\n", title)
	fmt.Fprintf(&b, "Run `%s`, started %s, took %s.\n\n",
		results.RunID, results.StartedAt.Format(time.RFC3339), results.Duration.Round(time.Millisecond))

	writeOverview(&b, results)
	writeCrossValidation(&b, results, rocImage)
	writeHoldOut(&b, results, cfg)
	writeUndefined(&b, results)

	_, err := io.WriteString(w, b.String())
	return err
}

func writeOverview(b *strings.Builder, results *experiment.Results) {
	s := results.Summary
	b.WriteString("## Data overview\n\n")
	fmt.Fprintf(b, "- Source: `%s`\n", s.Source)
	fmt.Fprintf(b, "- Samples: %d\n", s.Samples)
	fmt.Fprintf(b, "- Target class %q: %d (%.2f%%)\n", s.Target, s.TargetCount, 100*s.TargetShare())
	if s.OutOfRange > 0 {
		fmt.Fprintf(b, "- Samples with a channel outside 0..255: %d\n", s.OutOfRange)
	}
	if results.ScalingErr != nil {
		fmt.Fprintf(b, "- Scaling: %v. These channels were centered only.\n", results.ScalingErr)
	}
	b.WriteString("\n")

	t := table.NewWriter()
	t.AppendHeader(table.Row{"Class", "Count", "Mean Red", "Mean Green", "Mean Blue"})
	for _, c := range s.Classes {
		t.AppendRow(table.Row{
			c.Class, c.Count,
			fmt.Sprintf("%.1f", c.Mean[0]),
			fmt.Sprintf("%.1f", c.Mean[1]),
			fmt.Sprintf("%.1f", c.Mean[2]),
		})
	}
	b.WriteString(t.RenderMarkdown())
	b.WriteString("\n\n")
}

func writeCrossValidation(b *strings.Builder, results *experiment.Results, rocImage string) {
	training := results.Config.Training
	stratified := "unstratified"
	if training.Stratified {
		stratified = "stratified"
	}
	fmt.Fprintf(b, "## Cross-validation\n\n%d-fold %s cross-validation, seed %d, threshold %.2f. "+
		"Metrics are computed on the pooled out-of-fold predictions.\n\n",
		training.Folds, stratified, training.Seed, training.Threshold)

	trained := results.Succeeded()
	rows := make([]*evaluation.Metrics, 0, len(trained))
	folds := make(map[string]string, len(trained))
	for _, tr := range trained {
		rows = append(rows, tr.Metrics)
		folds[tr.Name] = fmt.Sprintf("%.4f ± %.4f", tr.FoldAccuracyMean, tr.FoldAccuracyStd)
	}
	if len(rows) > 0 {
		b.WriteString(metricsTable(rows, func(m *evaluation.Metrics) []any {
			return []any{folds[m.Model]}
		}, "Fold accuracy"))
		b.WriteString("\n\n")
	}
	if rocImage != "" {
		fmt.Fprintf(b, "![Cross-validated ROC curves](%s)\n\n", rocImage)
	}

	if failed := results.Failed(); len(failed) > 0 {
		b.WriteString("### Failed models\n\n")
		for _, tr := range failed {
			fmt.Fprintf(b, "- %s: %v\n", tr.Name, tr.Err)
		}
		b.WriteString("\n")
	}
}

func writeHoldOut(b *strings.Builder, results *experiment.Results, cfg *config.Config) {
	h := results.HoldOut
	fmt.Fprintf(b, "## Hold-out\n\nDirectory `%s`.\n\n", h.Dir)

	switch h.Scaling {
	case config.ScalingIndependent:
		b.WriteString("Hold-out features were standardized with statistics refit on the hold-out rows " +
			"(`independent`), so they are not on the scale the models were trained on.\n\n")
	default:
		b.WriteString("Hold-out features were standardized with the training-set parameters (`training`).\n\n")
	}

	if p := h.Parsed; p != nil {
		if len(p.Files) > 0 {
			t := table.NewWriter()
			t.AppendHeader(table.Row{"File", "Columns", "Rows", "Kept"})
			for _, f := range p.Files {
				t.AppendRow(table.Row{f.File, f.Columns, f.Rows, f.Kept})
			}
			b.WriteString(t.RenderMarkdown())
			b.WriteString("\n\n")
		}
		fmt.Fprintf(b, "Records: %d. Dropped rows: %d.\n\n", len(p.Records), len(p.DroppedRows))
		if len(p.SkippedFiles) > 0 {
			b.WriteString("### Skipped files\n\n")
			for _, fe := range p.SkippedFiles {
				fmt.Fprintf(b, "- `%s`: %v\n", fe.File, fe.Err)
			}
			b.WriteString("\n")
		}
	}

	if h.Err != nil {
		fmt.Fprintf(b, "Hold-out evaluation skipped: %v\n\n", h.Err)
		return
	}

	fmt.Fprintf(b, "> **Placeholder:** the hold-out set has no ground truth. These metrics use synthetic "+
		"labels (seed %d, BlueTarp rate %.2f) and do not measure real performance.\n\n",
		cfg.HoldOut.LabelSeed, cfg.HoldOut.PositiveRate)
	if len(h.Metrics) > 0 {
		b.WriteString(metricsTable(h.Metrics, nil))
		b.WriteString("\n\n")
	}
	for _, err := range h.ModelErrs {
		fmt.Fprintf(b, "- scoring failed: %v\n", err)
	}
	if len(h.ModelErrs) > 0 {
		b.WriteString("\n")
	}
}

func writeUndefined(b *strings.Builder, results *experiment.Results) {
	var lines []string
	collect := func(m *evaluation.Metrics) {
		for _, u := range m.Undefined {
			lines = append(lines, fmt.Sprintf("- %s (%s): %s", m.Model, m.Dataset, u))
		}
	}
	for _, tr := range results.Succeeded() {
		collect(tr.Metrics)
	}
	for _, m := range results.HoldOut.Metrics {
		collect(m)
	}
	if len(lines) == 0 {
		return
	}
	b.WriteString("## Undefined metrics\n\n")
	b.WriteString(strings.Join(lines, "\n"))
	b.WriteString("\n")
}
