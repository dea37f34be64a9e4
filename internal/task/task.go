// Package task defines the unit of distributed work of a grid run and the
// operations on the task list: building, load-balancing shuffle and the
// progress header shown while results come in.
package task

import (
	"fmt"
	"io"
	"math/rand/v2"
	"strings"

	"github.com/specialistvlad/gridbench/internal/hyper"
)

// ShuffleSeed fixes the shuffle so that runs are reproducible.
const ShuffleSeed = 271

// Task is one (dataset, seed, outer fold) triple. DatasetIndex is relative to
// the datasets selected for the run, not to the whole catalog.
type Task struct {
	Dataset         string    `json:"dataset"`
	DatasetIndex    int       `json:"idx_dataset"`
	Seed            int       `json:"seed"`
	Fold            int       `json:"fold"`
	Hyperparameters hyper.Set `json:"hyperparameters,omitempty"`
}

func (t Task) String() string {
	return fmt.Sprintf("%s/seed=%d/fold=%d", t.Dataset, t.Seed, t.Fold)
}

// List is the task list. It is built once by the manager and never mutated
// after the broadcast; tasks are identified by their position.
type List []Task

// Build creates one task per dataset, seed and fold, in that nesting order.
// When params is not nil every task carries its dataset's set.
func Build(datasets []string, seeds []int, nFolds int, params hyper.PerDataset) List {
	tasks := make(List, 0, len(datasets)*len(seeds)*nFolds)
	for idx, dataset := range datasets {
		for _, seed := range seeds {
			for fold := range nFolds {
				t := Task{Dataset: dataset, DatasetIndex: idx, Seed: seed, Fold: fold}
				if params != nil {
					t.Hyperparameters = params[dataset]
				}
				tasks = append(tasks, t)
			}
		}
	}
	return tasks
}

// Shuffle returns a copy of the list permuted with ShuffleSeed, so heavy
// datasets spread across workers the same way on every run.
func (l List) Shuffle() List {
	out := append(List(nil), l...)
	rng := rand.New(rand.NewPCG(ShuffleSeed, ShuffleSeed))
	rng.Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
	return out
}

// Datasets returns the distinct dataset names indexed by DatasetIndex.
func (l List) Datasets() []string {
	var names []string
	for _, t := range l {
		for len(names) <= t.DatasetIndex {
			names = append(names, "")
		}
		names[t.DatasetIndex] = t.Dataset
	}
	return names
}

// Separator frames the progress header and the progress bar.
const Separator = "|"

// WriteHeader prints the task count and a ruler with one column per task,
// every tenth column marked with the separator, leaving the cursor where the
// first progress mark goes.
func WriteHeader(w io.Writer, n int) error {
	var b strings.Builder
	fmt.Fprintf(&b, "* Number of tasks: %d\n", n)
	b.WriteString(Separator)
	for i := 1; i <= n; i++ {
		if i%10 == 0 {
			b.WriteString(Separator)
		} else {
			b.WriteByte(byte('0' + i%10))
		}
	}
	b.WriteString(Separator + "\n" + Separator)
	_, err := io.WriteString(w, b.String())
	return err
}
