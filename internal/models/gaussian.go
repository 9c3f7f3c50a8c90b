package models

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// classStats holds the per-class moments shared by LDA and QDA.
type classStats struct {
	Count int
	Prior float64
	Mean  []float64
	Cov   *mat.SymDense
}

func splitByClass(X mat.Matrix, y []int) [2]*mat.Dense {
	_, cols := X.Dims()
	var counts [2]int
	for _, label := range y {
		counts[label]++
	}

	var parts [2]*mat.Dense
	var next [2]int
	for k := range parts {
		parts[k] = mat.NewDense(counts[k], cols, nil)
	}
	for i, label := range y {
		for j := 0; j < cols; j++ {
			parts[label].Set(next[label], j, X.At(i, j))
		}
		next[label]++
	}
	return parts
}

func computeClassStats(part *mat.Dense, total int) classStats {
	rows, cols := part.Dims()
	cs := classStats{
		Count: rows,
		Prior: float64(rows) / float64(total),
		Mean:  make([]float64, cols),
		Cov:   mat.NewSymDense(cols, nil),
	}

	col := make([]float64, rows)
	for j := 0; j < cols; j++ {
		mat.Col(col, j, part)
		cs.Mean[j] = stat.Mean(col, nil)
	}
	if rows > 1 {
		stat.CovarianceMatrix(cs.Cov, part, nil)
	}
	return cs
}

// regularize adds reg to the diagonal and factorizes the result.
func regularize(cov *mat.SymDense, reg float64) (*mat.Cholesky, error) {
	n := cov.SymmetricDim()
	for j := 0; j < n; j++ {
		cov.SetSym(j, j, cov.At(j, j)+reg)
	}

	var chol mat.Cholesky
	if ok := chol.Factorize(cov); !ok {
		return nil, fmt.Errorf("covariance matrix is not positive definite")
	}
	return &chol, nil
}

func sigmoid(z float64) float64 {
	if z >= 0 {
		return 1 / (1 + math.Exp(-z))
	}
	e := math.Exp(z)
	return e / (1 + e)
}

func rowVec(X mat.Matrix, i int) *mat.VecDense {
	_, cols := X.Dims()
	v := mat.NewVecDense(cols, nil)
	for j := 0; j < cols; j++ {
		v.SetVec(j, X.At(i, j))
	}
	return v
}
