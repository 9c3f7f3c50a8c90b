package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"

	"github.com/deoleojr/Disaster-Relief-Project-Part-1/internal/models"
)

// Hold-out scaling modes.
const (
	// ScalingTraining applies the training scaler parameters to hold-out rows.
	ScalingTraining = "training"
	// ScalingIndependent refits a scaler on the hold-out rows themselves.
	ScalingIndependent = "independent"
)

type Config struct {
	Data     DataConfig     `yaml:"data"`
	HoldOut  HoldOutConfig  `yaml:"holdout"`
	Training TrainingConfig `yaml:"training"`
	Report   ReportConfig   `yaml:"report"`
	Log      LogConfig      `yaml:"log"`
}

type DataConfig struct {
	Source      string        `yaml:"source"`
	Timeout     time.Duration `yaml:"timeout"`
	TargetClass string        `yaml:"target_class"`
}

type HoldOutConfig struct {
	Dir          string  `yaml:"dir"`
	Pattern      string  `yaml:"pattern"`
	HeaderLines  int     `yaml:"header_lines"`
	MaxFields    int     `yaml:"max_fields"`
	Scaling      string  `yaml:"scaling"`
	LabelSeed    int64   `yaml:"label_seed"`
	PositiveRate float64 `yaml:"positive_rate"`
}

type TrainingConfig struct {
	Folds      int                  `yaml:"folds"`
	Seed       int64                `yaml:"seed"`
	Stratified bool                 `yaml:"stratified"`
	MaxWorkers int                  `yaml:"max_workers"`
	Threshold  float64              `yaml:"threshold"`
	Models     []models.ModelConfig `yaml:"models"`
}

type ReportConfig struct {
	OutputDir string `yaml:"output_dir"`
	Title     string `yaml:"title"`
	Plot      bool   `yaml:"plot"`
}

type LogConfig struct {
	// Mode is "release" for JSON production logs, anything else for
	// colored development logs.
	Mode string `yaml:"mode"`
}

func Default() *Config {
	cfg := &Config{
		Data: DataConfig{
			Source:      "data/HaitiPixels.csv",
			Timeout:     30 * time.Second,
			TargetClass: "Blue Tarp",
		},
		HoldOut: HoldOutConfig{
			Dir:          "data/holdout",
			Pattern:      "*.txt",
			HeaderLines:  6,
			MaxFields:    13,
			Scaling:      ScalingTraining,
			LabelSeed:    1,
			PositiveRate: 0.5,
		},
		Training: TrainingConfig{
			Folds:      10,
			Seed:       42,
			Stratified: true,
			Threshold:  0.5,
		},
		Report: ReportConfig{
			OutputDir: "report",
			Title:     "Blue Tarp Detection",
			Plot:      true,
		},
		Log: LogConfig{Mode: "debug"},
	}
	for _, algorithm := range models.Algorithms {
		cfg.Training.Models = append(cfg.Training.Models, models.DefaultConfig(algorithm))
	}
	return cfg
}

// Load overlays the YAML file at path on the defaults. A missing file
// yields the defaults unchanged.
func Load(path string) (*Config, error) {
	cfg := Default()

	raw, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var err error
	if c.Data.Source == "" {
		err = multierr.Append(err, errors.New("data.source is required"))
	}
	if c.Data.Timeout <= 0 {
		err = multierr.Append(err, fmt.Errorf("data.timeout must be positive, got %s", c.Data.Timeout))
	}
	if c.Training.Folds < 2 {
		err = multierr.Append(err, fmt.Errorf("training.folds must be at least 2, got %d", c.Training.Folds))
	}
	if c.Training.Threshold <= 0 || c.Training.Threshold >= 1 {
		err = multierr.Append(err, fmt.Errorf("training.threshold must be in (0,1), got %g", c.Training.Threshold))
	}
	if c.Training.MaxWorkers < 0 {
		err = multierr.Append(err, fmt.Errorf("training.max_workers must not be negative, got %d", c.Training.MaxWorkers))
	}
	if len(c.Training.Models) == 0 {
		err = multierr.Append(err, errors.New("training.models must name at least one model"))
	}
	for i, m := range c.Training.Models {
		if _, createErr := models.CreateModel(m); createErr != nil {
			err = multierr.Append(err, fmt.Errorf("training.models[%d]: %w", i, createErr))
		}
	}
	switch c.HoldOut.Scaling {
	case ScalingTraining, ScalingIndependent:
	default:
		err = multierr.Append(err, fmt.Errorf("holdout.scaling must be %q or %q, got %q",
			ScalingTraining, ScalingIndependent, c.HoldOut.Scaling))
	}
	if c.HoldOut.PositiveRate < 0 || c.HoldOut.PositiveRate > 1 {
		err = multierr.Append(err, fmt.Errorf("holdout.positive_rate must be in [0,1], got %g", c.HoldOut.PositiveRate))
	}
	if c.HoldOut.HeaderLines < 0 {
		err = multierr.Append(err, fmt.Errorf("holdout.header_lines must not be negative, got %d", c.HoldOut.HeaderLines))
	}
	if c.Report.OutputDir == "" {
		err = multierr.Append(err, errors.New("report.output_dir is required"))
	}
	return err
}
