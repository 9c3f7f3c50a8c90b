package models

import (
	"fmt"
)

const (
	Logistic = "logistic"
	LDA      = "lda"
	QDA      = "qda"
)

// Algorithms lists the supported model types in report order.
var Algorithms = []string{Logistic, LDA, QDA}

type ModelConfig struct {
	Algorithm string  `yaml:"algorithm"`
	Ridge     float64 `yaml:"ridge"`
	MaxIter   int     `yaml:"max_iter"`
	Tolerance float64 `yaml:"tolerance"`
	Reg       float64 `yaml:"reg"`
}

func CreateModel(config ModelConfig) (Model, error) {
	switch config.Algorithm {
	case Logistic:
		if config.Ridge <= 0 {
			config.Ridge = 1e-4
		}
		if config.MaxIter <= 0 {
			config.MaxIter = 100
		}
		if config.Tolerance <= 0 {
			config.Tolerance = 1e-8
		}
		return NewLogisticRegression(config.Ridge, config.MaxIter, config.Tolerance), nil

	case LDA:
		if config.Reg <= 0 {
			config.Reg = 1e-6
		}
		return NewLDA(config.Reg), nil

	case QDA:
		if config.Reg <= 0 {
			config.Reg = 1e-6
		}
		return NewQDA(config.Reg), nil

	default:
		return nil, fmt.Errorf("unknown algorithm: %s", config.Algorithm)
	}
}

func DefaultConfig(algorithm string) ModelConfig {
	config := ModelConfig{Algorithm: algorithm}

	switch algorithm {
	case Logistic:
		config.Ridge = 1e-4
		config.MaxIter = 100
		config.Tolerance = 1e-8
	case LDA, QDA:
		config.Reg = 1e-6
	}

	return config
}

// DisplayName is the label used for an algorithm in tables and plots.
func DisplayName(algorithm string) string {
	switch algorithm {
	case Logistic:
		return "Logistic Regression"
	case LDA:
		return "LDA"
	case QDA:
		return "QDA"
	default:
		return algorithm
	}
}
