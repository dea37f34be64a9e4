package engine

import (
	"maps"
	"sync"
)

// Progress counts received results. It is safe for concurrent use so an
// HTTP handler can read it while the manager runs.
type Progress struct {
	mu        sync.Mutex
	total     int
	done      int
	perWorker map[int]int
}

// Snapshot is a point-in-time copy of a Progress.
type Snapshot struct {
	Total     int         `json:"total"`
	Done      int         `json:"done"`
	PerWorker map[int]int `json:"per_worker"`
}

// NewProgress returns an empty Progress.
func NewProgress() *Progress {
	return &Progress{perWorker: make(map[int]int)}
}

// Start resets the counters for a run of total tasks.
func (p *Progress) Start(total int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.total = total
	p.done = 0
	clear(p.perWorker)
}

// Add records one result from worker.
func (p *Progress) Add(worker int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.done++
	p.perWorker[worker]++
}

// Snapshot returns the current counters.
func (p *Progress) Snapshot() Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	return Snapshot{Total: p.total, Done: p.done, PerWorker: maps.Clone(p.perWorker)}
}
