// Package model defines the capabilities the pipeline needs from trained
// models and provides local and remote implementations of them.
package model

import (
	"context"
)

// Ranker scores aligned site feature rows; higher means ranked earlier.
type Ranker interface {
	Predict(ctx context.Context, rows [][]float64) ([]float64, error)
}

// Classifier predicts a label set per aligned feature row. An empty set is
// a valid prediction.
type Classifier interface {
	Predict(ctx context.Context, rows [][]float64) ([][]string, error)
}

// RankerFunc adapts a function to Ranker.
type RankerFunc func(ctx context.Context, rows [][]float64) ([]float64, error)

func (f RankerFunc) Predict(ctx context.Context, rows [][]float64) ([]float64, error) {
	return f(ctx, rows)
}

// ClassifierFunc adapts a function to Classifier.
type ClassifierFunc func(ctx context.Context, rows [][]float64) ([][]string, error)

func (f ClassifierFunc) Predict(ctx context.Context, rows [][]float64) ([][]string, error) {
	return f(ctx, rows)
}

// NopClassifier predicts nothing, so every resource takes the rule fallback.
type NopClassifier struct{}

func (NopClassifier) Predict(_ context.Context, rows [][]float64) ([][]string, error) {
	return make([][]string, len(rows)), nil
}
