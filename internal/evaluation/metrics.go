package evaluation

import (
	"errors"
	"fmt"
	"math"
)

// ErrUndefinedMetric is returned when a metric has no meaningful value for
// the sample, for example AUC over labels of a single class.
var ErrUndefinedMetric = errors.New("undefined metric")

// Value is a metric that may be undefined. An undefined Value is never
// rendered as a number.
type Value struct {
	V       float64
	Defined bool
}

func Defined(v float64) Value {
	return Value{V: v, Defined: true}
}

func (v Value) String() string {
	return v.Format(4)
}

func (v Value) Format(precision int) string {
	if !v.Defined {
		return "undefined"
	}
	return fmt.Sprintf("%.*f", precision, v.V)
}

// ConfusionMatrix tallies hard predictions against true labels, with
// label 1 as the positive class.
type ConfusionMatrix struct {
	TP int `json:"tp"`
	FP int `json:"fp"`
	TN int `json:"tn"`
	FN int `json:"fn"`
}

func NewConfusionMatrix(yTrue, yPred []int) (ConfusionMatrix, error) {
	var cm ConfusionMatrix
	if len(yTrue) != len(yPred) {
		return cm, fmt.Errorf("labels and predictions have different lengths: %d vs %d", len(yTrue), len(yPred))
	}
	for i := range yTrue {
		switch {
		case yTrue[i] == 1 && yPred[i] == 1:
			cm.TP++
		case yTrue[i] == 0 && yPred[i] == 1:
			cm.FP++
		case yTrue[i] == 0 && yPred[i] == 0:
			cm.TN++
		case yTrue[i] == 1 && yPred[i] == 0:
			cm.FN++
		default:
			return cm, fmt.Errorf("non-binary label at row %d: true=%d pred=%d", i, yTrue[i], yPred[i])
		}
	}
	return cm, nil
}

func (cm ConfusionMatrix) Total() int {
	return cm.TP + cm.FP + cm.TN + cm.FN
}

func (cm ConfusionMatrix) Accuracy() Value {
	return ratio(cm.TP+cm.TN, cm.Total())
}

// Sensitivity is the true positive rate, also reported as recall.
func (cm ConfusionMatrix) Sensitivity() Value {
	return ratio(cm.TP, cm.TP+cm.FN)
}

func (cm ConfusionMatrix) Specificity() Value {
	return ratio(cm.TN, cm.TN+cm.FP)
}

func (cm ConfusionMatrix) Precision() Value {
	return ratio(cm.TP, cm.TP+cm.FP)
}

// F1 is 0 when precision and recall are both 0, and undefined when
// either of them is.
func (cm ConfusionMatrix) F1() Value {
	p, r := cm.Precision(), cm.Sensitivity()
	if !p.Defined || !r.Defined {
		return Value{}
	}
	if p.V+r.V == 0 {
		return Defined(0)
	}
	return Defined(2 * p.V * r.V / (p.V + r.V))
}

func (cm ConfusionMatrix) BalancedAccuracy() Value {
	sens, spec := cm.Sensitivity(), cm.Specificity()
	if !sens.Defined || !spec.Defined {
		return Value{}
	}
	return Defined((sens.V + spec.V) / 2)
}

// Kappa is Cohen's kappa between predictions and labels.
func (cm ConfusionMatrix) Kappa() Value {
	n := float64(cm.Total())
	if n == 0 {
		return Value{}
	}
	observed := float64(cm.TP+cm.TN) / n
	expected := (float64(cm.TP+cm.FN)*float64(cm.TP+cm.FP) +
		float64(cm.TN+cm.FP)*float64(cm.TN+cm.FN)) / (n * n)
	if expected == 1 {
		return Value{}
	}
	return Defined((observed - expected) / (1 - expected))
}

const probabilityClip = 1e-15

// LogLoss is the mean binary cross-entropy of proba against yTrue.
func LogLoss(yTrue []int, proba []float64) (float64, error) {
	if len(yTrue) != len(proba) {
		return 0, fmt.Errorf("labels and probabilities have different lengths: %d vs %d", len(yTrue), len(proba))
	}
	if len(yTrue) == 0 {
		return 0, fmt.Errorf("%w: log-loss of an empty sample", ErrUndefinedMetric)
	}
	sum := 0.0
	for i, p := range proba {
		p = math.Min(math.Max(p, probabilityClip), 1-probabilityClip)
		if yTrue[i] == 1 {
			sum -= math.Log(p)
		} else {
			sum -= math.Log(1 - p)
		}
	}
	return sum / float64(len(yTrue)), nil
}

// Metrics is the fixed-shape summary of one model on one sample. Consumers
// treat it as read-only.
type Metrics struct {
	Model     string
	Dataset   string
	N         int
	Threshold float64
	// Placeholder marks metrics computed against synthetic labels.
	Placeholder bool

	Confusion        ConfusionMatrix
	Accuracy         Value
	AUC              Value
	PRAUC            Value
	F1               Value
	Sensitivity      Value
	Specificity      Value
	Precision        Value
	Recall           Value
	BalancedAccuracy Value
	Kappa            Value
	LogLoss          Value

	// Undefined lists "metric: reason" for every metric left undefined.
	Undefined []string
}

func (m *Metrics) HasUndefined() bool {
	return len(m.Undefined) > 0
}

func (m *Metrics) note(name string, v Value, reason string) Value {
	if !v.Defined {
		m.Undefined = append(m.Undefined, fmt.Sprintf("%s: %s", name, reason))
	}
	return v
}

func (m *Metrics) fromResult(name string, v float64, err error) (Value, error) {
	if err == nil {
		return Defined(v), nil
	}
	if errors.Is(err, ErrUndefinedMetric) {
		m.Undefined = append(m.Undefined, fmt.Sprintf("%s: %v", name, err))
		return Value{}, nil
	}
	return Value{}, err
}

func ratio(num, den int) Value {
	if den == 0 {
		return Value{}
	}
	return Defined(float64(num) / float64(den))
}
