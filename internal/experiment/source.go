package experiment

import (
	"context"
	"errors"
	"fmt"

	"github.com/specialistvlad/gridbench/internal/hyper"
)

// ErrConflictingSources is returned when both inline hyperparameters and a
// hyperparameters file are given.
var ErrConflictingSources = errors.New("hyperparameters and hyper_file are mutually exclusive")

// Source says where the hyperparameters of an experiment come from.
type Source struct {
	// JSON is an inline object applied to every dataset.
	JSON string
	// File is a per-dataset hyperparameters file.
	File string
	// Best reads the per-dataset winners of a previous grid search from
	// BestPath, ignoring JSON and File.
	Best     bool
	BestPath string
	// Default applies to every dataset when nothing else is given.
	Default hyper.Set
}

// Resolve returns the hyperparameters of every dataset.
func (s Source) Resolve(ctx context.Context, datasets []string) (hyper.PerDataset, error) {
	if s.Best {
		return hyper.LoadFile(ctx, s.BestPath, datasets)
	}
	inline := s.JSON != "" && s.JSON != "{}"
	if inline && s.File != "" {
		return nil, ErrConflictingSources
	}
	switch {
	case s.File != "":
		return hyper.LoadFile(ctx, s.File, datasets)
	case inline:
		set, err := hyper.Parse(s.JSON)
		if err != nil {
			return nil, fmt.Errorf("hyperparameters: %w", err)
		}
		return hyper.Uniform(datasets, set), nil
	default:
		return hyper.Uniform(datasets, s.Default), nil
	}
}
