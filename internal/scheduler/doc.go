// Package scheduler hands out task indices to worker ranks on demand.
// The producer never decides which worker runs which task: whichever worker
// asks first receives the next index, so faster workers naturally take on
// more of the list.
package scheduler
