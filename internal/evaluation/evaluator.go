package evaluation

import (
	"fmt"
	"math/rand"

	"gonum.org/v1/gonum/mat"

	"github.com/deoleojr/Disaster-Relief-Project-Part-1/internal/models"
)

// DefaultThreshold turns a BlueTarp probability into a hard prediction.
const DefaultThreshold = 0.5

// Evaluate scores a fitted model on X against the row-aligned labels yTrue
// and returns the per-row BlueTarp probabilities it scored.
func Evaluate(name, dataset string, model models.Model, X mat.Matrix, yTrue []int, threshold float64) (*Metrics, []float64, error) {
	rows, _ := X.Dims()
	if rows != len(yTrue) {
		return nil, nil, fmt.Errorf("feature matrix and labels have different lengths: %d vs %d", rows, len(yTrue))
	}
	proba, err := model.PredictProba(X)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", name, err)
	}
	m, err := ScoreProbabilities(name, dataset, proba, yTrue, threshold)
	if err != nil {
		return nil, nil, err
	}
	return m, proba, nil
}

// ScoreProbabilities builds the Metrics record for BlueTarp probabilities
// proba against yTrue. Metrics that cannot be computed are left undefined
// and listed in Metrics.Undefined; other failures are errors.
func ScoreProbabilities(name, dataset string, proba []float64, yTrue []int, threshold float64) (*Metrics, error) {
	if len(proba) != len(yTrue) {
		return nil, fmt.Errorf("labels and probabilities have different lengths: %d vs %d", len(yTrue), len(proba))
	}
	if len(yTrue) == 0 {
		return nil, fmt.Errorf("cannot score an empty sample")
	}

	pred := make([]int, len(proba))
	for i, p := range proba {
		if p >= threshold {
			pred[i] = 1
		}
	}
	cm, err := NewConfusionMatrix(yTrue, pred)
	if err != nil {
		return nil, err
	}

	m := &Metrics{
		Model:     name,
		Dataset:   dataset,
		N:         len(yTrue),
		Threshold: threshold,
		Confusion: cm,
	}
	m.Accuracy = cm.Accuracy()
	m.Sensitivity = m.note("Sensitivity", cm.Sensitivity(), "no BlueTarp labels")
	m.Recall = m.Sensitivity
	m.Specificity = m.note("Specificity", cm.Specificity(), "no NonBlueTarp labels")
	m.Precision = m.note("Precision", cm.Precision(), "no BlueTarp predictions")
	m.F1 = m.note("F1", cm.F1(), "precision or recall undefined")
	m.BalancedAccuracy = m.note("BalancedAccuracy", cm.BalancedAccuracy(), "labels contain a single class")
	m.Kappa = m.note("Kappa", cm.Kappa(), "chance agreement is 1")

	auc, err := AUC(yTrue, proba)
	if m.AUC, err = m.fromResult("AUC", auc, err); err != nil {
		return nil, err
	}
	prauc, err := PRAUC(yTrue, proba)
	if m.PRAUC, err = m.fromResult("PRAUC", prauc, err); err != nil {
		return nil, err
	}
	logLoss, err := LogLoss(yTrue, proba)
	if m.LogLoss, err = m.fromResult("LogLoss", logLoss, err); err != nil {
		return nil, err
	}

	return m, nil
}

// SyntheticLabels draws n labels with P(BlueTarp) = rate. They stand in
// for hold-out ground truth that does not exist, so anything scored
// against them is a placeholder.
func SyntheticLabels(n int, seed int64, rate float64) []int {
	rng := rand.New(rand.NewSource(seed))
	labels := make([]int, n)
	for i := range labels {
		if rng.Float64() < rate {
			labels[i] = 1
		}
	}
	return labels
}
