// Package config holds the run configuration of a grid computation.
//
// Grid is the immutable description of one run (model, scoring, folds, seeds,
// dataset filters) and is broadcast to every rank as part of the plan.
// Topology describes the process group. Platform is the site-wide defaults
// file (gridbench.hcl) that sits under command-line flags.
package config
