package models

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// Model is a binary classifier. Labels are 0 (negative) and 1 (positive);
// PredictProba returns the probability of the positive class per row.
type Model interface {
	Fit(X mat.Matrix, y []int) error
	PredictProba(X mat.Matrix) ([]float64, error)
	GetType() string
	GetName() string
	GetParams() map[string]any
	IsFitted() bool
	Reset()
}

type BaseModel struct {
	Name   string
	Params map[string]any
	fitted bool
}

func (bm *BaseModel) GetType() string {
	return bm.Name
}

func (bm *BaseModel) GetName() string {
	return bm.Name
}

func (bm *BaseModel) GetParams() map[string]any {
	return bm.Params
}

func (bm *BaseModel) IsFitted() bool {
	return bm.fitted
}

// Predict thresholds PredictProba: rows with probability >= threshold are positive.
func Predict(m Model, X mat.Matrix, threshold float64) ([]int, error) {
	proba, err := m.PredictProba(X)
	if err != nil {
		return nil, err
	}
	predictions := make([]int, len(proba))
	for i, p := range proba {
		if p >= threshold {
			predictions[i] = 1
		}
	}
	return predictions, nil
}

func checkTrainingSet(X mat.Matrix, y []int) (rows, cols int, err error) {
	rows, cols = X.Dims()
	if rows == 0 || cols == 0 {
		return 0, 0, fmt.Errorf("empty training set")
	}
	if rows != len(y) {
		return 0, 0, fmt.Errorf("feature matrix and labels have different lengths: %d vs %d", rows, len(y))
	}
	var pos int
	for i, label := range y {
		switch label {
		case 0:
		case 1:
			pos++
		default:
			return 0, 0, fmt.Errorf("label %d at row %d is not binary", label, i)
		}
	}
	if pos == 0 || pos == rows {
		return 0, 0, fmt.Errorf("training labels contain a single class")
	}
	return rows, cols, nil
}

func checkPredictInput(m Model, X mat.Matrix, cols int) error {
	if !m.IsFitted() {
		return fmt.Errorf("%s must be fitted before predict", m.GetName())
	}
	if _, c := X.Dims(); c != cols {
		return fmt.Errorf("%s fitted on %d features, got %d", m.GetName(), cols, c)
	}
	return nil
}
