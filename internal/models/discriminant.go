package models

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// LinearDiscriminant is linear discriminant analysis with a pooled within-class covariance.
type LinearDiscriminant struct {
	BaseModel
	Reg    float64
	Priors [2]float64
	Means  [2][]float64

	// discriminant for class k is x·Weights[k] + Offsets[k]
	Weights [2][]float64
	Offsets [2]float64
	nFeat   int
}

func NewLDA(reg float64) *LinearDiscriminant {
	return &LinearDiscriminant{
		Reg: reg,
		BaseModel: BaseModel{
			Name: LDA,
			Params: map[string]any{
				"reg": reg,
			},
		},
	}
}

func (m *LinearDiscriminant) Fit(X mat.Matrix, y []int) error {
	m.Reset()
	rows, cols, err := checkTrainingSet(X, y)
	if err != nil {
		return err
	}

	parts := splitByClass(X, y)
	pooled := mat.NewSymDense(cols, nil)
	var stats [2]classStats
	for k := range parts {
		stats[k] = computeClassStats(parts[k], rows)
		if stats[k].Count > 1 {
			var scaled mat.SymDense
			scaled.ScaleSym(float64(stats[k].Count-1), stats[k].Cov)
			pooled.AddSym(pooled, &scaled)
		}
	}
	dof := rows - 2
	if dof < 1 {
		dof = 1
	}
	pooled.ScaleSym(1/float64(dof), pooled)

	chol, err := regularize(pooled, m.Reg)
	if err != nil {
		return fmt.Errorf("lda: %w", err)
	}

	for k := range stats {
		mean := mat.NewVecDense(cols, stats[k].Mean)
		var w mat.VecDense
		if err := chol.SolveVecTo(&w, mean); err != nil {
			return fmt.Errorf("lda: %w", err)
		}
		m.Weights[k] = append([]float64(nil), w.RawVector().Data...)
		m.Offsets[k] = -0.5*mat.Dot(mean, &w) + math.Log(stats[k].Prior)
		m.Means[k] = stats[k].Mean
		m.Priors[k] = stats[k].Prior
	}

	m.nFeat = cols
	m.fitted = true
	return nil
}

func (m *LinearDiscriminant) PredictProba(X mat.Matrix) ([]float64, error) {
	if err := checkPredictInput(m, X, m.nFeat); err != nil {
		return nil, err
	}

	rows, _ := X.Dims()
	w0 := mat.NewVecDense(m.nFeat, m.Weights[0])
	w1 := mat.NewVecDense(m.nFeat, m.Weights[1])
	proba := make([]float64, rows)
	for i := 0; i < rows; i++ {
		x := rowVec(X, i)
		d0 := mat.Dot(x, w0) + m.Offsets[0]
		d1 := mat.Dot(x, w1) + m.Offsets[1]
		proba[i] = sigmoid(d1 - d0)
	}
	return proba, nil
}

func (m *LinearDiscriminant) Reset() {
	m.Priors = [2]float64{}
	m.Means = [2][]float64{}
	m.Weights = [2][]float64{}
	m.Offsets = [2]float64{}
	m.nFeat = 0
	m.fitted = false
}

// QuadraticDiscriminant is quadratic discriminant analysis with one covariance per class.
type QuadraticDiscriminant struct {
	BaseModel
	Reg    float64
	Priors [2]float64
	Means  [2][]float64

	chols  [2]*mat.Cholesky
	logDet [2]float64
	nFeat  int
}

func NewQDA(reg float64) *QuadraticDiscriminant {
	return &QuadraticDiscriminant{
		Reg: reg,
		BaseModel: BaseModel{
			Name: QDA,
			Params: map[string]any{
				"reg": reg,
			},
		},
	}
}

func (m *QuadraticDiscriminant) Fit(X mat.Matrix, y []int) error {
	m.Reset()
	rows, cols, err := checkTrainingSet(X, y)
	if err != nil {
		return err
	}

	parts := splitByClass(X, y)
	for k := range parts {
		stats := computeClassStats(parts[k], rows)
		chol, err := regularize(stats.Cov, m.Reg)
		if err != nil {
			return fmt.Errorf("qda: class %d: %w", k, err)
		}
		m.chols[k] = chol
		m.logDet[k] = chol.LogDet()
		m.Means[k] = stats.Mean
		m.Priors[k] = stats.Prior
	}

	m.nFeat = cols
	m.fitted = true
	return nil
}

func (m *QuadraticDiscriminant) PredictProba(X mat.Matrix) ([]float64, error) {
	if err := checkPredictInput(m, X, m.nFeat); err != nil {
		return nil, err
	}

	rows, _ := X.Dims()
	proba := make([]float64, rows)
	var diff, z mat.VecDense
	for i := 0; i < rows; i++ {
		x := rowVec(X, i)
		var d [2]float64
		for k := 0; k < 2; k++ {
			diff.SubVec(x, mat.NewVecDense(m.nFeat, m.Means[k]))
			if err := m.chols[k].SolveVecTo(&z, &diff); err != nil {
				return nil, fmt.Errorf("qda: %w", err)
			}
			d[k] = -0.5*m.logDet[k] - 0.5*mat.Dot(&diff, &z) + math.Log(m.Priors[k])
		}
		proba[i] = sigmoid(d[1] - d[0])
	}
	return proba, nil
}

func (m *QuadraticDiscriminant) Reset() {
	m.Priors = [2]float64{}
	m.Means = [2][]float64{}
	m.chols = [2]*mat.Cholesky{}
	m.logDet = [2]float64{}
	m.nFeat = 0
	m.fitted = false
}
