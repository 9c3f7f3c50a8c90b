package evaluation

import (
	"fmt"
	"math/rand"
	"sort"
)

// KFoldSplitter assigns every row to exactly one of NFolds folds.
type KFoldSplitter struct {
	nFolds     int
	shuffle    bool
	stratified bool
	randomSeed int64
}

func NewKFoldSplitter(nFolds int, shuffle, stratified bool, randomSeed int64) *KFoldSplitter {
	return &KFoldSplitter{
		nFolds:     nFolds,
		shuffle:    shuffle,
		stratified: stratified,
		randomSeed: randomSeed,
	}
}

// Split returns the row indices of each fold. Fold sizes differ by at most
// one; with stratification each label is dealt round-robin across folds.
func (kfs *KFoldSplitter) Split(n int, y []int) ([][]int, error) {
	if kfs.nFolds < 2 || kfs.nFolds > n {
		return nil, fmt.Errorf("invalid number of folds: %d (must be between 2 and %d)", kfs.nFolds, n)
	}
	if kfs.stratified && len(y) != n {
		return nil, fmt.Errorf("stratified split needs %d labels, got %d", n, len(y))
	}

	rng := rand.New(rand.NewSource(kfs.randomSeed))
	folds := make([][]int, kfs.nFolds)

	if !kfs.stratified {
		indices := make([]int, n)
		for i := range indices {
			indices[i] = i
		}
		if kfs.shuffle {
			rng.Shuffle(len(indices), func(i, j int) {
				indices[i], indices[j] = indices[j], indices[i]
			})
		}
		for pos, idx := range indices {
			f := pos % kfs.nFolds
			folds[f] = append(folds[f], idx)
		}
		return sortFolds(folds), nil
	}

	classIndices := make(map[int][]int)
	for i, label := range y {
		classIndices[label] = append(classIndices[label], i)
	}
	labels := make([]int, 0, len(classIndices))
	for label := range classIndices {
		labels = append(labels, label)
	}
	sort.Ints(labels)

	// continue dealing where the previous class stopped so fold sizes stay balanced
	next := 0
	for _, label := range labels {
		indices := classIndices[label]
		if kfs.shuffle {
			rng.Shuffle(len(indices), func(i, j int) {
				indices[i], indices[j] = indices[j], indices[i]
			})
		}
		for _, idx := range indices {
			folds[next] = append(folds[next], idx)
			next = (next + 1) % kfs.nFolds
		}
	}
	return sortFolds(folds), nil
}

// Assignments inverts a fold partition into a fold index per row.
func Assignments(folds [][]int, n int) ([]int, error) {
	foldOf := make([]int, n)
	for i := range foldOf {
		foldOf[i] = -1
	}
	for f, fold := range folds {
		for _, idx := range fold {
			if idx < 0 || idx >= n {
				return nil, fmt.Errorf("fold %d references row %d outside 0..%d", f, idx, n-1)
			}
			if foldOf[idx] != -1 {
				return nil, fmt.Errorf("row %d appears in folds %d and %d", idx, foldOf[idx], f)
			}
			foldOf[idx] = f
		}
	}
	for i, f := range foldOf {
		if f == -1 {
			return nil, fmt.Errorf("row %d is not assigned to any fold", i)
		}
	}
	return foldOf, nil
}

func sortFolds(folds [][]int) [][]int {
	for _, fold := range folds {
		sort.Ints(fold)
	}
	return folds
}
