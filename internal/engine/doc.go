// Package engine drives a grid run across its ranks.
//
// The Driver is shared by every strategy. On the manager it builds and
// shuffles the task list, broadcasts the Plan, hands out tasks through the
// scheduler and finally asks the strategy to compile the results. On a worker
// it receives the Plan, rebuilds the strategy from it and runs tasks until
// the manager sends END. A Strategy only decides which tasks exist, how one
// task is computed and how results are reduced.
package engine
