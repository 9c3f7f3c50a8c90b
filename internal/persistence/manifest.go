package persistence

import (
	"fmt"
	"io"
	"os"
	"time"

	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"

	"github.com/deoleojr/Disaster-Relief-Project-Part-1/internal/data"
	"github.com/deoleojr/Disaster-Relief-Project-Part-1/internal/evaluation"
	"github.com/deoleojr/Disaster-Relief-Project-Part-1/internal/experiment"
	"github.com/deoleojr/Disaster-Relief-Project-Part-1/internal/preprocessing"
)

var createFile = func(name string) (io.WriteCloser, error) {
	return os.Create(name)
}

// RunManifest records what a run was fitted on and how each model did.
// It holds hyperparameters and scaler statistics, never fitted models.
type RunManifest struct {
	RunID          string                     `yaml:"run_id"`
	CreatedAt      time.Time                  `yaml:"created_at"`
	Duration       time.Duration              `yaml:"duration"`
	Dataset        string                     `yaml:"dataset"`
	Samples        int                        `yaml:"samples"`
	Target         string                     `yaml:"target"`
	Features       []string                   `yaml:"features"`
	Classes        []string                   `yaml:"classes"`
	Scaler         preprocessing.ScalerParams `yaml:"scaler"`
	HoldOutScaling string                     `yaml:"holdout_scaling"`
	HoldOutRecords int                        `yaml:"holdout_records"`
	Models         []ModelMetadata            `yaml:"models"`
}

// ModelMetadata summarizes one model. Nil metric pointers are undefined.
type ModelMetadata struct {
	ModelName        string         `yaml:"name"`
	Algorithm        string         `yaml:"algorithm"`
	Parameters       map[string]any `yaml:"parameters,omitempty"`
	Accuracy         *float64       `yaml:"accuracy,omitempty"`
	AUC              *float64       `yaml:"auc,omitempty"`
	Precision        *float64       `yaml:"precision,omitempty"`
	Recall           *float64       `yaml:"recall,omitempty"`
	F1Score          *float64       `yaml:"f1,omitempty"`
	FoldAccuracyMean float64        `yaml:"fold_accuracy_mean"`
	FoldAccuracyStd  float64        `yaml:"fold_accuracy_std"`
	TrainingTime     time.Duration  `yaml:"training_time"`
	Error            string         `yaml:"error,omitempty"`
}

func NewRunManifest(results *experiment.Results) *RunManifest {
	m := &RunManifest{
		RunID:          results.RunID,
		CreatedAt:      results.StartedAt,
		Duration:       results.Duration,
		Dataset:        results.Summary.Source,
		Samples:        results.Summary.Samples,
		Target:         results.Summary.Target,
		Features:       append([]string(nil), data.FeatureColumns...),
		Scaler:         results.Scaler,
		HoldOutScaling: results.HoldOut.Scaling,
	}
	for _, c := range results.Summary.Classes {
		m.Classes = append(m.Classes, c.Class)
	}
	if results.HoldOut.Parsed != nil {
		m.HoldOutRecords = len(results.HoldOut.Parsed.Records)
	}

	for _, tr := range results.Training {
		meta := ModelMetadata{
			ModelName:    tr.Name,
			Algorithm:    tr.Config.Algorithm,
			TrainingTime: tr.Duration,
		}
		if !tr.OK() {
			meta.Error = tr.Err.Error()
			m.Models = append(m.Models, meta)
			continue
		}
		if tr.Model != nil {
			meta.Parameters = tr.Model.GetParams()
		}
		meta.Accuracy = defined(tr.Metrics.Accuracy)
		meta.AUC = defined(tr.Metrics.AUC)
		meta.Precision = defined(tr.Metrics.Precision)
		meta.Recall = defined(tr.Metrics.Recall)
		meta.F1Score = defined(tr.Metrics.F1)
		meta.FoldAccuracyMean = tr.FoldAccuracyMean
		meta.FoldAccuracyStd = tr.FoldAccuracyStd
		m.Models = append(m.Models, meta)
	}
	return m
}

func defined(v evaluation.Value) *float64 {
	if !v.Defined {
		return nil
	}
	f := v.V
	return &f
}

func (m *RunManifest) Save(filename string) (err error) {
	file, err := createFile(filename)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer multierr.AppendInvoke(&err, multierr.Close(file))

	encoder := yaml.NewEncoder(file)
	encoder.SetIndent(2)
	if err := encoder.Encode(m); err != nil {
		return fmt.Errorf("failed to encode manifest: %w", err)
	}
	return encoder.Close()
}

func LoadRunManifest(filename string) (*RunManifest, error) {
	raw, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}

	var m RunManifest
	if err := yaml.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("failed to decode manifest: %w", err)
	}
	return &m, nil
}
