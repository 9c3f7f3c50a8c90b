package report

import (
	"errors"
	"fmt"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"

	"github.com/deoleojr/Disaster-Relief-Project-Part-1/internal/evaluation"
)

// PlotROC draws the cross-validated ROC curve of every trained model into
// a PNG at path. Models whose curve is undefined are left out; if none
// remain no file is written and the error wraps ErrUndefinedMetric.
func PlotROC(trained []evaluation.TrainResult, labels []int, path string) error {
	p := plot.New()
	p.Title.Text = "Cross-validated ROC"
	p.X.Label.Text = "False positive rate"
	p.Y.Label.Text = "True positive rate"
	p.X.Min, p.X.Max = 0, 1
	p.Y.Min, p.Y.Max = 0, 1
	p.Add(plotter.NewGrid())

	chance, err := plotter.NewLine(plotter.XYs{{X: 0, Y: 0}, {X: 1, Y: 1}})
	if err != nil {
		return err
	}
	chance.Dashes = []vg.Length{vg.Points(4), vg.Points(4)}
	chance.Color = plotutil.Color(7)
	p.Add(chance)

	drawn := 0
	for i, tr := range trained {
		curve, err := evaluation.ROC(labels, tr.OOFProba)
		if err != nil {
			if errors.Is(err, evaluation.ErrUndefinedMetric) {
				continue
			}
			return fmt.Errorf("%s: %w", tr.Name, err)
		}

		pts := make(plotter.XYs, len(curve.FPR))
		for j := range curve.FPR {
			pts[j] = plotter.XY{X: curve.FPR[j], Y: curve.TPR[j]}
		}
		line, err := plotter.NewLine(pts)
		if err != nil {
			return err
		}
		line.Color = plotutil.Color(i)
		line.Width = vg.Points(1.5)
		p.Add(line)
		p.Legend.Add(fmt.Sprintf("%s (AUC %.4f)", tr.Name, curve.AUC()), line)
		drawn++
	}
	if drawn == 0 {
		return fmt.Errorf("no ROC curve to draw: %w", evaluation.ErrUndefinedMetric)
	}

	p.Legend.Top = false
	p.Legend.Left = false
	p.Legend.XOffs = -10
	p.Legend.YOffs = 10

	return p.Save(6*vg.Inch, 6*vg.Inch, path)
}
