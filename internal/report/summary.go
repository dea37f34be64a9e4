package report

import (
	"fmt"
	"io"
	"maps"
	"slices"
	"strconv"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/specialistvlad/gridbench/internal/results"
	"github.com/specialistvlad/gridbench/internal/scheduler"
	"github.com/specialistvlad/gridbench/internal/task"
)

var rankColors = []lipgloss.Color{"7", "1", "2", "3", "4", "5", "6"}

// RankStyle is the progress color of a worker rank.
func RankStyle(r *lipgloss.Renderer, rank int) lipgloss.Style {
	return r.NewStyle().Foreground(rankColors[rank%len(rankColors)])
}

func sortedNames[V any](m map[string]V) []string {
	return slices.Sorted(maps.Keys(m))
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

// Summary prints, per worker, every task it ran with its elapsed time, the
// worker total and the grand total, to expose load imbalance.
func Summary(w io.Writer, tasks task.List, c scheduler.Collected, elapsed time.Duration) error {
	s := newStyles(w)
	byWorker := c.ByWorker()
	workers := slices.Sorted(maps.Keys(byWorker))

	var rows [][]string
	var busy float64
	for _, worker := range workers {
		var total float64
		for _, rec := range byWorker[worker] {
			idx := int(rec.Result.Task)
			if idx < 0 || idx >= len(tasks) {
				return fmt.Errorf("worker %d reported unknown task %d", worker, idx)
			}
			t := tasks[idx]
			rows = append(rows, []string{
				strconv.Itoa(worker), t.Dataset, strconv.Itoa(t.Seed), strconv.Itoa(t.Fold),
				results.FormatDuration(seconds(rec.Result.Time)),
			})
			total += rec.Result.Time
		}
		rows = append(rows, []string{strconv.Itoa(worker), "Total", "", "", results.FormatDuration(seconds(total))})
		busy += total
	}

	_, err := fmt.Fprintf(w, "%s\n%s\n%s\n",
		s.title.Render("Summary of tasks per worker"),
		s.table([]string{"Worker", "Dataset", "Seed", "Fold", "Time"}, rows),
		s.title.Render(fmt.Sprintf("Tasks: %d Workers: %d Busy: %s Total: %s",
			len(c.Records), len(workers), results.FormatDuration(seconds(busy)), results.FormatDuration(elapsed))))
	return err
}
