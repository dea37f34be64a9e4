// Package folding generates K-Fold and stratified K-Fold train/test splits.
// Splits are deterministic for a given seed; seed -1 draws a random one.
package folding

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"sort"
)

// ErrFold is returned for invalid fold parameters.
var ErrFold = errors.New("invalid fold")

// Fold yields the train and test indices of fold n in [0, K).
type Fold interface {
	K() int
	Fold(n int) (train, test []int, err error)
}

// New returns a StratifiedKFold over y when stratified is set and a KFold over
// len(y) samples otherwise.
func New(stratified bool, k int, y []int, seed int) (Fold, error) {
	if stratified {
		return NewStratifiedKFold(k, y, seed)
	}
	return NewKFold(k, len(y), seed)
}

func newRand(seed int) *rand.Rand {
	if seed == -1 {
		return rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return rand.New(rand.NewPCG(uint64(seed), 0))
}

// KFold shuffles the samples once and cuts them into K contiguous blocks;
// the first n mod K blocks get one extra sample.
type KFold struct {
	k      int
	blocks [][]int
}

// NewKFold creates a KFold over n samples.
func NewKFold(k, n, seed int) (*KFold, error) {
	if k < 2 || k > n {
		return nil, fmt.Errorf("%w: cannot make %d folds out of %d samples", ErrFold, k, n)
	}
	perm := newRand(seed).Perm(n)
	blocks := make([][]int, k)
	start := 0
	for i := range k {
		size := n / k
		if i < n%k {
			size++
		}
		blocks[i] = perm[start : start+size]
		start += size
	}
	return &KFold{k: k, blocks: blocks}, nil
}

// K implements Fold.
func (f *KFold) K() int { return f.k }

// Fold implements Fold.
func (f *KFold) Fold(n int) ([]int, []int, error) {
	return split(f.blocks, n)
}

// StratifiedKFold keeps the class proportions of y in every fold. Samples of
// each class are shuffled and dealt to the folds in turn, continuing where
// the previous class stopped.
type StratifiedKFold struct {
	k      int
	blocks [][]int
}

// NewStratifiedKFold creates a StratifiedKFold over the labels y.
func NewStratifiedKFold(k int, y []int, seed int) (*StratifiedKFold, error) {
	if k < 2 || k > len(y) {
		return nil, fmt.Errorf("%w: cannot make %d folds out of %d samples", ErrFold, k, len(y))
	}
	byClass := make(map[int][]int)
	for i, label := range y {
		byClass[label] = append(byClass[label], i)
	}
	classes := make([]int, 0, len(byClass))
	for c := range byClass {
		classes = append(classes, c)
	}
	sort.Ints(classes)

	rng := newRand(seed)
	blocks := make([][]int, k)
	next := 0
	for _, c := range classes {
		members := byClass[c]
		rng.Shuffle(len(members), func(i, j int) { members[i], members[j] = members[j], members[i] })
		for _, idx := range members {
			blocks[next] = append(blocks[next], idx)
			next = (next + 1) % k
		}
	}
	return &StratifiedKFold{k: k, blocks: blocks}, nil
}

// K implements Fold.
func (f *StratifiedKFold) K() int { return f.k }

// Fold implements Fold.
func (f *StratifiedKFold) Fold(n int) ([]int, []int, error) {
	return split(f.blocks, n)
}

// split returns block n as the test set and the rest as the train set, both
// sorted ascending.
func split(blocks [][]int, n int) ([]int, []int, error) {
	if n < 0 || n >= len(blocks) {
		return nil, nil, fmt.Errorf("%w: fold %d out of range [0, %d)", ErrFold, n, len(blocks))
	}
	var train []int
	for i, b := range blocks {
		if i != n {
			train = append(train, b...)
		}
	}
	test := append([]int(nil), blocks[n]...)
	sort.Ints(train)
	sort.Ints(test)
	return train, test, nil
}

var (
	_ Fold = (*KFold)(nil)
	_ Fold = (*StratifiedKFold)(nil)
)
