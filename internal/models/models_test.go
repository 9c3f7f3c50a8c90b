package models

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

// gaussianBlobs draws n points per class around (-1,-1) and (1,1).
func gaussianBlobs(n int, spread float64, seed int64) (*mat.Dense, []int) {
	rng := rand.New(rand.NewSource(seed))
	X := mat.NewDense(2*n, 2, nil)
	y := make([]int, 2*n)
	for i := 0; i < 2*n; i++ {
		center := -1.0
		if i >= n {
			center = 1
			y[i] = 1
		}
		X.Set(i, 0, center+spread*rng.NormFloat64())
		X.Set(i, 1, center+spread*rng.NormFloat64())
	}
	return X, y
}

func TestCreateModel(t *testing.T) {
	t.Parallel()

	for _, algorithm := range Algorithms {
		t.Run(algorithm, func(t *testing.T) {
			m, err := CreateModel(DefaultConfig(algorithm))
			require.NoError(t, err)
			assert.Equal(t, algorithm, m.GetType())
			assert.False(t, m.IsFitted())
			assert.NotEmpty(t, m.GetParams())
			assert.NotEqual(t, algorithm, DisplayName(algorithm))
		})
	}

	_, err := CreateModel(ModelConfig{Algorithm: "knn"})
	assert.Error(t, err)

	m, err := CreateModel(ModelConfig{Algorithm: Logistic})
	require.NoError(t, err)
	lr := m.(*LogisticRegression)
	assert.Equal(t, 1e-4, lr.Ridge)
	assert.Equal(t, 100, lr.MaxIter)
}

func TestModelsSeparateBlobs(t *testing.T) {
	t.Parallel()

	X, y := gaussianBlobs(60, 0.3, 7)
	for _, algorithm := range Algorithms {
		t.Run(algorithm, func(t *testing.T) {
			m, err := CreateModel(DefaultConfig(algorithm))
			require.NoError(t, err)
			require.NoError(t, m.Fit(X, y))
			assert.True(t, m.IsFitted())

			proba, err := m.PredictProba(X)
			require.NoError(t, err)
			require.Len(t, proba, len(y))

			pred, err := Predict(m, X, 0.5)
			require.NoError(t, err)
			correct := 0
			for i := range y {
				assert.GreaterOrEqual(t, proba[i], 0.0)
				assert.LessOrEqual(t, proba[i], 1.0)
				if pred[i] == y[i] {
					correct++
				}
			}
			assert.GreaterOrEqual(t, float64(correct)/float64(len(y)), 0.95)

			probe := mat.NewDense(2, 2, []float64{-1, -1, 1, 1})
			p, err := m.PredictProba(probe)
			require.NoError(t, err)
			assert.Less(t, p[0], 0.5)
			assert.Greater(t, p[1], 0.5)
		})
	}
}

func TestLogisticConvergesOnSeparableData(t *testing.T) {
	t.Parallel()

	X := mat.NewDense(6, 1, []float64{-3, -2, -1, 1, 2, 3})
	y := []int{0, 0, 0, 1, 1, 1}

	lr := NewLogisticRegression(1e-4, 200, 1e-8)
	require.NoError(t, lr.Fit(X, y))
	require.Len(t, lr.Coefficients, 2)
	assert.Greater(t, lr.Coefficients[1], 0.0)

	proba, err := lr.PredictProba(X)
	require.NoError(t, err)
	for i, p := range proba {
		if y[i] == 1 {
			assert.Greater(t, p, 0.5)
		} else {
			assert.Less(t, p, 0.5)
		}
	}
}

func TestDiscriminantsHandleConstantWithinClassFeature(t *testing.T) {
	t.Parallel()

	// Column 1 is constant inside each class, so only the ridge keeps
	// the covariance invertible.
	X := mat.NewDense(8, 2, []float64{
		0.1, -1,
		0.4, -1,
		-0.3, -1,
		0.9, -1,
		0.2, 1,
		-0.5, 1,
		0.7, 1,
		0.0, 1,
	})
	y := []int{0, 0, 0, 0, 1, 1, 1, 1}

	for _, m := range []Model{NewLDA(1e-6), NewQDA(1e-6)} {
		require.NoError(t, m.Fit(X, y), m.GetName())
		pred, err := Predict(m, X, 0.5)
		require.NoError(t, err)
		assert.Equal(t, y, pred, m.GetName())
	}
}

func TestFitRejectsBadInput(t *testing.T) {
	t.Parallel()

	X := mat.NewDense(3, 1, []float64{1, 2, 3})
	for _, algorithm := range Algorithms {
		m, err := CreateModel(DefaultConfig(algorithm))
		require.NoError(t, err)

		assert.Error(t, m.Fit(X, []int{1, 1, 1}), "single class")
		assert.Error(t, m.Fit(X, []int{0, 1}), "length mismatch")
		assert.Error(t, m.Fit(X, []int{0, 1, 2}), "non-binary label")

		_, err = m.PredictProba(X)
		assert.Error(t, err, "predict before fit")
	}
}

func TestPredictRejectsWrongWidth(t *testing.T) {
	t.Parallel()

	X, y := gaussianBlobs(10, 0.2, 3)
	m := NewQDA(1e-6)
	require.NoError(t, m.Fit(X, y))

	_, err := m.PredictProba(mat.NewDense(1, 3, nil))
	assert.Error(t, err)

	m.Reset()
	assert.False(t, m.IsFitted())
}
