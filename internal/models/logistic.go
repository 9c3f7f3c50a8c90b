package models

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// LogisticRegression is a binary logistic model fitted by iteratively
// reweighted least squares. Ridge keeps the Newton system positive
// definite when the classes are separable.
type LogisticRegression struct {
	BaseModel
	Ridge     float64
	MaxIter   int
	Tolerance float64

	// Coefficients[0] is the intercept.
	Coefficients []float64
	Iterations   int
	Converged    bool
}

func NewLogisticRegression(ridge float64, maxIter int, tolerance float64) *LogisticRegression {
	return &LogisticRegression{
		Ridge:     ridge,
		MaxIter:   maxIter,
		Tolerance: tolerance,
		BaseModel: BaseModel{
			Name: Logistic,
			Params: map[string]any{
				"ridge":     ridge,
				"max_iter":  maxIter,
				"tolerance": tolerance,
			},
		},
	}
}

func (lr *LogisticRegression) Fit(X mat.Matrix, y []int) error {
	lr.Reset()
	rows, cols, err := checkTrainingSet(X, y)
	if err != nil {
		return err
	}

	p := cols + 1
	design := withIntercept(X)
	beta := mat.NewVecDense(p, nil)
	eta := mat.NewVecDense(rows, nil)
	resid := mat.NewVecDense(rows, nil)
	weighted := mat.NewDense(rows, p, nil)
	hessian := mat.NewSymDense(p, nil)
	var grad, step mat.VecDense
	var chol mat.Cholesky

	for iter := 1; iter <= lr.MaxIter; iter++ {
		eta.MulVec(design, beta)
		for i := 0; i < rows; i++ {
			prob := sigmoid(eta.AtVec(i))
			resid.SetVec(i, float64(y[i])-prob)
			sw := math.Sqrt(prob * (1 - prob))
			for j := 0; j < p; j++ {
				weighted.Set(i, j, sw*design.At(i, j))
			}
		}

		// H = Zᵀ W Z + ridge·I, g = Zᵀ(y - p) - ridge·β
		hessian.SymOuterK(1, weighted.T())
		for j := 0; j < p; j++ {
			hessian.SetSym(j, j, hessian.At(j, j)+lr.Ridge)
		}
		grad.MulVec(design.T(), resid)
		grad.AddScaledVec(&grad, -lr.Ridge, beta)

		if ok := chol.Factorize(hessian); !ok {
			return fmt.Errorf("logistic: hessian is not positive definite at iteration %d", iter)
		}
		if err := chol.SolveVecTo(&step, &grad); err != nil {
			return fmt.Errorf("logistic: %w", err)
		}
		beta.AddVec(beta, &step)
		lr.Iterations = iter

		if floats.HasNaN(beta.RawVector().Data) {
			return fmt.Errorf("logistic: coefficients diverged at iteration %d", iter)
		}
		if mat.Norm(&step, math.Inf(1)) < lr.Tolerance {
			lr.Converged = true
			break
		}
	}

	lr.Coefficients = append([]float64(nil), beta.RawVector().Data...)
	lr.fitted = true
	return nil
}

func (lr *LogisticRegression) PredictProba(X mat.Matrix) ([]float64, error) {
	if err := checkPredictInput(lr, X, len(lr.Coefficients)-1); err != nil {
		return nil, err
	}

	rows, cols := X.Dims()
	proba := make([]float64, rows)
	for i := 0; i < rows; i++ {
		z := lr.Coefficients[0]
		for j := 0; j < cols; j++ {
			z += lr.Coefficients[j+1] * X.At(i, j)
		}
		proba[i] = sigmoid(z)
	}
	return proba, nil
}

func (lr *LogisticRegression) Reset() {
	lr.Coefficients = nil
	lr.Iterations = 0
	lr.Converged = false
	lr.fitted = false
}

func withIntercept(X mat.Matrix) *mat.Dense {
	rows, cols := X.Dims()
	design := mat.NewDense(rows, cols+1, nil)
	for i := 0; i < rows; i++ {
		design.Set(i, 0, 1)
		for j := 0; j < cols; j++ {
			design.Set(i, j+1, X.At(i, j))
		}
	}
	return design
}
