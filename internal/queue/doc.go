// Package queue implements the task queue engine: the persisted task state
// machine, the atomic claim protocol that guarantees at-most-one worker
// executes a given task, the retention sweeper that purges expired records,
// and the bounded-wait adapter that lets a synchronous caller observe an
// asynchronously completed task.
//
// The engine holds no mutable state of its own; every transition is a
// conditional update in the TaskStore, so it is safe to call from any number
// of goroutines or processes without external locking.
package queue
