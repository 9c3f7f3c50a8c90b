package evaluation

import (
	"fmt"
	"sort"

	"gonum.org/v1/gonum/integrate"
	"gonum.org/v1/gonum/stat"
)

// ROCCurve holds paired rates for every achievable threshold, ordered by
// increasing false positive rate.
type ROCCurve struct {
	FPR        []float64
	TPR        []float64
	Thresholds []float64
}

func classCounts(yTrue []int, scores []float64) (pos, neg int, err error) {
	if len(yTrue) != len(scores) {
		return 0, 0, fmt.Errorf("labels and scores have different lengths: %d vs %d", len(yTrue), len(scores))
	}
	for i, label := range yTrue {
		switch label {
		case 1:
			pos++
		case 0:
			neg++
		default:
			return 0, 0, fmt.Errorf("non-binary label %d at row %d", label, i)
		}
	}
	return pos, neg, nil
}

func ROC(yTrue []int, scores []float64) (*ROCCurve, error) {
	pos, neg, err := classCounts(yTrue, scores)
	if err != nil {
		return nil, err
	}
	if pos == 0 || neg == 0 {
		return nil, fmt.Errorf("%w: ROC needs both classes, got %d positive and %d negative", ErrUndefinedMetric, pos, neg)
	}

	y := append([]float64(nil), scores...)
	classes := make([]bool, len(yTrue))
	for i, label := range yTrue {
		classes[i] = label == 1
	}
	stat.SortWeightedLabeled(y, classes, nil)

	tpr, fpr, thresh := stat.ROC(nil, y, classes, nil)
	return &ROCCurve{FPR: fpr, TPR: tpr, Thresholds: thresh}, nil
}

// AUC is the area under the ROC curve. It is undefined, not 0.5, when the
// labels contain a single class.
func AUC(yTrue []int, scores []float64) (float64, error) {
	curve, err := ROC(yTrue, scores)
	if err != nil {
		return 0, err
	}
	return curve.AUC(), nil
}

func (c *ROCCurve) AUC() float64 {
	return integrate.Trapezoidal(c.FPR, c.TPR)
}

// PRAUC is the average precision: precision at each distinct score
// weighted by the recall gained there.
func PRAUC(yTrue []int, scores []float64) (float64, error) {
	pos, _, err := classCounts(yTrue, scores)
	if err != nil {
		return 0, err
	}
	if pos == 0 {
		return 0, fmt.Errorf("%w: precision-recall needs positive labels", ErrUndefinedMetric)
	}

	order := make([]int, len(scores))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return scores[order[a]] > scores[order[b]]
	})

	var tp, fp int
	ap, prevRecall := 0.0, 0.0
	for i := 0; i < len(order); {
		// take every row tied at this score before emitting a point
		j := i
		for j < len(order) && scores[order[j]] == scores[order[i]] {
			if yTrue[order[j]] == 1 {
				tp++
			} else {
				fp++
			}
			j++
		}
		recall := float64(tp) / float64(pos)
		precision := float64(tp) / float64(tp+fp)
		ap += (recall - prevRecall) * precision
		prevRecall = recall
		i = j
	}
	return ap, nil
}
