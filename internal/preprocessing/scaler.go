package preprocessing

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// ErrDegenerateFeature is returned when a column has no spread to scale by.
var ErrDegenerateFeature = errors.New("degenerate feature")

// ScalerParams are the per-column statistics a Scaler was fitted with.
// They are reused, never recomputed, when transforming new data.
type ScalerParams struct {
	Columns []string  `json:"columns"`
	Mean    []float64 `json:"mean"`
	Std     []float64 `json:"std"`
	// Degenerate lists zero-variance columns that were centered but not
	// rescaled.
	Degenerate []string `json:"degenerate,omitempty" yaml:"degenerate,omitempty"`
}

// DegenerateErr reports the columns left unscaled, wrapping
// ErrDegenerateFeature, or nil when every column was scaled.
func (p ScalerParams) DegenerateErr() error {
	if len(p.Degenerate) == 0 {
		return nil
	}
	return fmt.Errorf("%w: zero variance in %s, left unscaled", ErrDegenerateFeature, strings.Join(p.Degenerate, ", "))
}

// Scaler standardizes columns to zero mean and unit variance. With
// SkipDegenerate set, a zero-variance column is only centered and is
// listed in ScalerParams.Degenerate instead of failing Fit.
type Scaler struct {
	Columns        []string
	SkipDegenerate bool
	IsFitted       bool
	params         ScalerParams
}

func NewScaler(columns ...string) *Scaler {
	return &Scaler{Columns: columns}
}

// NewScalerFromParams returns a fitted scaler that applies previously computed statistics.
func NewScalerFromParams(params ScalerParams) (*Scaler, error) {
	if len(params.Mean) == 0 || len(params.Mean) != len(params.Std) {
		return nil, fmt.Errorf("invalid scaler params: %d means, %d std devs", len(params.Mean), len(params.Std))
	}
	for j, sd := range params.Std {
		if sd == 0 || math.IsNaN(sd) || math.IsInf(sd, 0) {
			return nil, fmt.Errorf("%w: column %s has std %v", ErrDegenerateFeature, columnName(params.Columns, j), sd)
		}
	}
	return &Scaler{
		Columns:  params.Columns,
		IsFitted: true,
		params:   cloneParams(params),
	}, nil
}

func (s *Scaler) Fit(X mat.Matrix) error {
	rows, cols := X.Dims()
	if rows == 0 || cols == 0 {
		return fmt.Errorf("empty dataset")
	}
	if rows < 2 {
		return fmt.Errorf("%w: need at least 2 rows to estimate spread, got %d", ErrDegenerateFeature, rows)
	}

	mean := make([]float64, cols)
	std := make([]float64, cols)
	col := make([]float64, rows)
	var degenerate []string
	for j := 0; j < cols; j++ {
		mat.Col(col, j, X)
		mean[j], std[j] = stat.MeanStdDev(col, nil)
		switch {
		case std[j] == 0 && s.SkipDegenerate:
			std[j] = 1
			degenerate = append(degenerate, columnName(s.Columns, j))
		case std[j] == 0 || math.IsNaN(std[j]) || math.IsInf(std[j], 0):
			s.IsFitted = false
			return fmt.Errorf("%w: column %s has zero variance", ErrDegenerateFeature, columnName(s.Columns, j))
		}
	}

	s.params = ScalerParams{
		Columns:    append([]string(nil), s.Columns...),
		Mean:       mean,
		Std:        std,
		Degenerate: degenerate,
	}
	s.IsFitted = true
	return nil
}

func (s *Scaler) Transform(X mat.Matrix) (*mat.Dense, error) {
	if err := s.checkDims(X); err != nil {
		return nil, err
	}

	rows, cols := X.Dims()
	result := mat.NewDense(rows, cols, nil)
	result.Apply(func(i, j int, v float64) float64 {
		return (v - s.params.Mean[j]) / s.params.Std[j]
	}, X)
	return result, nil
}

func (s *Scaler) FitTransform(X mat.Matrix) (*mat.Dense, error) {
	if err := s.Fit(X); err != nil {
		return nil, err
	}
	return s.Transform(X)
}

// InverseTransform maps scaled values back onto the original units.
func (s *Scaler) InverseTransform(X mat.Matrix) (*mat.Dense, error) {
	if err := s.checkDims(X); err != nil {
		return nil, err
	}

	rows, cols := X.Dims()
	result := mat.NewDense(rows, cols, nil)
	result.Apply(func(i, j int, v float64) float64 {
		return v*s.params.Std[j] + s.params.Mean[j]
	}, X)
	return result, nil
}

func (s *Scaler) Params() ScalerParams {
	return cloneParams(s.params)
}

func (s *Scaler) checkDims(X mat.Matrix) error {
	if !s.IsFitted {
		return fmt.Errorf("scaler must be fitted before transform")
	}
	_, cols := X.Dims()
	if cols != len(s.params.Mean) {
		return fmt.Errorf("scaler fitted on %d columns, got %d", len(s.params.Mean), cols)
	}
	return nil
}

func cloneParams(p ScalerParams) ScalerParams {
	return ScalerParams{
		Columns:    append([]string(nil), p.Columns...),
		Mean:       append([]float64(nil), p.Mean...),
		Std:        append([]float64(nil), p.Std...),
		Degenerate: append([]string(nil), p.Degenerate...),
	}
}

func columnName(columns []string, j int) string {
	if j < len(columns) {
		return columns[j]
	}
	return fmt.Sprintf("#%d", j)
}
