// Package search implements the grid search strategy: every task selects the
// best hyperparameter combination of its dataset with a nested
// cross-validation on the outer training partition, then refits the winner on
// the whole partition and scores it on the untouched outer test partition.
//
// Runs can be resumed from a dataset with config.Grid.ContinueFrom; previously
// persisted results are merged with the new ones rather than replaced.
package search
