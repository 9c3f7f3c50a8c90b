package evaluation

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"github.com/montanaflynn/stats"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/mat"

	"github.com/deoleojr/Disaster-Relief-Project-Part-1/internal/models"
)

// CVDataset names the out-of-fold sample in Metrics records.
const CVDataset = "cross-validation"

type TrainerOptions struct {
	Folds      int
	Seed       int64
	Stratified bool
	MaxWorkers int
	Threshold  float64
}

func DefaultTrainerOptions() TrainerOptions {
	return TrainerOptions{
		Folds:      10,
		Seed:       42,
		Stratified: true,
		MaxWorkers: runtime.NumCPU(),
		Threshold:  DefaultThreshold,
	}
}

// TrainResult is the outcome of cross-validating one model configuration.
// When Err is set the remaining fields other than Name and Config are not
// meaningful.
type TrainResult struct {
	Name   string
	Config models.ModelConfig
	// Model is refit on the full training table after cross-validation.
	Model models.Model

	OOFProba         []float64
	FoldOf           []int
	FoldAccuracy     []float64
	FoldAccuracyMean float64
	FoldAccuracyStd  float64
	Metrics          *Metrics

	Err      error
	Duration time.Duration
}

func (r *TrainResult) OK() bool {
	return r.Err == nil
}

type Trainer struct {
	opts   TrainerOptions
	logger *zap.Logger
}

func NewTrainer(opts TrainerOptions, logger *zap.Logger) *Trainer {
	defaults := DefaultTrainerOptions()
	if opts.Folds == 0 {
		opts.Folds = defaults.Folds
	}
	if opts.MaxWorkers <= 0 {
		opts.MaxWorkers = defaults.MaxWorkers
	}
	if opts.Threshold <= 0 || opts.Threshold >= 1 {
		opts.Threshold = defaults.Threshold
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Trainer{opts: opts, logger: logger}
}

func (t *Trainer) Options() TrainerOptions {
	return t.opts
}

// KFoldSplit partitions n rows into the trainer's folds.
func (t *Trainer) KFoldSplit(n int, y []int) ([][]int, error) {
	return NewKFoldSplitter(t.opts.Folds, true, t.opts.Stratified, t.opts.Seed).Split(n, y)
}

// Train cross-validates every configuration on a single shared fold
// partition and refits each one on the full table. A configuration that
// fails is reported through its TrainResult.Err; the error return is for
// an invalid partition or a cancelled context.
func (t *Trainer) Train(ctx context.Context, X mat.Matrix, y []int, configs []models.ModelConfig) ([]TrainResult, error) {
	rows, _ := X.Dims()
	if rows != len(y) {
		return nil, fmt.Errorf("feature matrix and labels have different lengths: %d vs %d", rows, len(y))
	}
	folds, err := t.KFoldSplit(rows, y)
	if err != nil {
		return nil, err
	}
	foldOf, err := Assignments(folds, rows)
	if err != nil {
		return nil, err
	}

	results := make([]TrainResult, len(configs))
	foldErrs := make([][]error, len(configs))
	finalErrs := make([]error, len(configs))
	// one slot per fold plus the final fit
	elapsed := make([][]time.Duration, len(configs))
	names := modelNames(configs)
	for i, cfg := range configs {
		results[i] = TrainResult{
			Name:         names[i],
			Config:       cfg,
			OOFProba:     make([]float64, rows),
			FoldOf:       foldOf,
			FoldAccuracy: make([]float64, len(folds)),
		}
		foldErrs[i] = make([]error, len(folds))
		elapsed[i] = make([]time.Duration, len(folds)+1)
	}

	t.logger.Info("starting cross-validation",
		zap.Int("rows", rows),
		zap.Int("folds", len(folds)),
		zap.Int("models", len(configs)),
		zap.Int("workers", t.opts.MaxWorkers))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(t.opts.MaxWorkers)
	for i := range configs {
		for f := range folds {
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				start := time.Now()
				acc, err := t.fitFold(configs[i], X, y, folds[f], results[i].OOFProba)
				elapsed[i][f] = time.Since(start)
				results[i].FoldAccuracy[f] = acc
				foldErrs[i][f] = err
				return nil
			})
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			start := time.Now()
			model, err := fitModel(configs[i], X, y)
			elapsed[i][len(folds)] = time.Since(start)
			results[i].Model = model
			finalErrs[i] = err
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("cross-validation interrupted: %w", err)
	}

	for i := range results {
		t.summarize(&results[i], y, foldErrs[i], finalErrs[i], elapsed[i])
	}
	return results, nil
}

func (t *Trainer) summarize(r *TrainResult, y []int, foldErrs []error, finalErr error, elapsed []time.Duration) {
	for _, d := range elapsed {
		r.Duration += d
	}
	for f, err := range foldErrs {
		if err != nil {
			r.Err = fmt.Errorf("%s: fold %d: %w", r.Name, f, err)
			break
		}
	}
	if r.Err == nil && finalErr != nil {
		r.Err = fmt.Errorf("%s: final fit: %w", r.Name, finalErr)
	}
	if r.Err != nil {
		r.Model = nil
		t.logger.Error("model failed", zap.String("model", r.Name), zap.Error(r.Err))
		return
	}

	r.FoldAccuracyMean, _ = stats.Mean(r.FoldAccuracy)
	if len(r.FoldAccuracy) > 1 {
		r.FoldAccuracyStd, _ = stats.StandardDeviationSample(r.FoldAccuracy)
	}

	metrics, err := ScoreProbabilities(r.Name, CVDataset, r.OOFProba, y, t.opts.Threshold)
	if err != nil {
		r.Err = fmt.Errorf("%s: scoring out-of-fold predictions: %w", r.Name, err)
		r.Model = nil
		t.logger.Error("model failed", zap.String("model", r.Name), zap.Error(r.Err))
		return
	}
	r.Metrics = metrics

	t.logger.Info("cross-validated model",
		zap.String("model", r.Name),
		zap.Float64("fold_accuracy_mean", r.FoldAccuracyMean),
		zap.Float64("fold_accuracy_std", r.FoldAccuracyStd),
		zap.Stringer("auc", metrics.AUC),
		zap.Duration("duration", r.Duration))
}

// fitFold trains a fresh model on every row outside test, writes its
// probabilities for the test rows into oof and returns the fold accuracy.
// Folds are disjoint, so concurrent calls never write the same element.
func (t *Trainer) fitFold(cfg models.ModelConfig, X mat.Matrix, y []int, test []int, oof []float64) (float64, error) {
	rows, _ := X.Dims()
	train := complement(rows, test)

	model, err := fitModel(cfg, subsetRows(X, train), subsetLabels(y, train))
	if err != nil {
		return 0, err
	}
	proba, err := model.PredictProba(subsetRows(X, test))
	if err != nil {
		return 0, err
	}

	correct := 0
	for k, idx := range test {
		oof[idx] = proba[k]
		if (proba[k] >= t.opts.Threshold) == (y[idx] == 1) {
			correct++
		}
	}
	return float64(correct) / float64(len(test)), nil
}

func fitModel(cfg models.ModelConfig, X mat.Matrix, y []int) (models.Model, error) {
	model, err := models.CreateModel(cfg)
	if err != nil {
		return nil, err
	}
	if err := model.Fit(X, y); err != nil {
		return nil, err
	}
	return model, nil
}

func complement(n int, excluded []int) []int {
	skip := make([]bool, n)
	for _, idx := range excluded {
		skip[idx] = true
	}
	kept := make([]int, 0, n-len(excluded))
	for i := 0; i < n; i++ {
		if !skip[i] {
			kept = append(kept, i)
		}
	}
	return kept
}

func subsetRows(X mat.Matrix, indices []int) *mat.Dense {
	_, cols := X.Dims()
	out := mat.NewDense(len(indices), cols, nil)
	for i, idx := range indices {
		for j := 0; j < cols; j++ {
			out.Set(i, j, X.At(idx, j))
		}
	}
	return out
}

func subsetLabels(y []int, indices []int) []int {
	out := make([]int, len(indices))
	for i, idx := range indices {
		out[i] = y[idx]
	}
	return out
}

// modelNames gives each configuration its display name. An algorithm
// configured more than once is numbered in config order so that every
// result has a distinct name.
func modelNames(configs []models.ModelConfig) []string {
	total := make(map[string]int, len(configs))
	for _, cfg := range configs {
		total[cfg.Algorithm]++
	}
	seen := make(map[string]int, len(configs))
	names := make([]string, len(configs))
	for i, cfg := range configs {
		names[i] = models.DisplayName(cfg.Algorithm)
		if total[cfg.Algorithm] > 1 {
			seen[cfg.Algorithm]++
			names[i] = fmt.Sprintf("%s #%d", names[i], seen[cfg.Algorithm])
		}
	}
	return names
}
