package data

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

type DataValidator struct{}

func NewDataValidator() *DataValidator {
	return &DataValidator{}
}

func (dv *DataValidator) ValidateDataset(X mat.Matrix, y []int) error {
	rows, cols := X.Dims()
	if rows == 0 {
		return fmt.Errorf("dataset is empty")
	}

	if rows != len(y) {
		return fmt.Errorf("feature matrix and labels have different lengths: %d vs %d", rows, len(y))
	}

	if cols == 0 {
		return fmt.Errorf("features cannot be empty")
	}

	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			v := X.At(i, j)
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return fmt.Errorf("missing value (NaN) at sample %d, feature %d", i, j)
			}
		}
	}

	return nil
}

func (dv *DataValidator) ValidateLabels(y []int) error {
	if len(y) == 0 {
		return fmt.Errorf("labels are empty")
	}

	classCount := make(map[int]int)
	for _, label := range y {
		classCount[label]++
	}

	if len(classCount) < 2 {
		return fmt.Errorf("dataset must have at least 2 classes, found %d", len(classCount))
	}

	return nil
}

// ClassStats describes the samples sharing one original Class value.
type ClassStats struct {
	Class string
	Count int
	Mean  [3]float64
}

type DatasetSummary struct {
	Source      string
	Samples     int
	Target      string
	TargetCount int
	OutOfRange  int
	Classes     []ClassStats
}

// TargetShare is the fraction of samples in the target class.
func (s DatasetSummary) TargetShare() float64 {
	if s.Samples == 0 {
		return 0
	}
	return float64(s.TargetCount) / float64(s.Samples)
}

// Summarize computes per-class counts and channel means, sorted by
// descending count. Channels outside 0..255 are counted, not rejected.
func Summarize(ds *Dataset, target string) DatasetSummary {
	summary := DatasetSummary{
		Source:  ds.Source,
		Samples: len(ds.Samples),
		Target:  target,
	}

	byClass := make(map[string][][3]float64)
	for _, s := range ds.Samples {
		channels := [3]float64{s.Red, s.Green, s.Blue}
		for _, v := range channels {
			if v < 0 || v > 255 {
				summary.OutOfRange++
				break
			}
		}
		byClass[s.Class] = append(byClass[s.Class], channels)
		if s.Class == target {
			summary.TargetCount++
		}
	}

	for class, rows := range byClass {
		cs := ClassStats{Class: class, Count: len(rows)}
		values := make([]float64, len(rows))
		for j := 0; j < 3; j++ {
			for i, r := range rows {
				values[i] = r[j]
			}
			cs.Mean[j] = stat.Mean(values, nil)
		}
		summary.Classes = append(summary.Classes, cs)
	}
	sort.Slice(summary.Classes, func(i, j int) bool {
		if summary.Classes[i].Count != summary.Classes[j].Count {
			return summary.Classes[i].Count > summary.Classes[j].Count
		}
		return summary.Classes[i].Class < summary.Classes[j].Class
	})

	return summary
}
