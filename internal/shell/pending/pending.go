// Package pending is the bounded record of (pid, raw status) tuples
// the SIGCHLD reap goroutine observes before the shell's main path has
// had a chance to look at them: single writer, single reader, drained
// at defined sync points (before each prompt and inside the job
// builtins). A mutex serializes Push against Drain, so an entry is
// never observed partially written, never lost mid-drain, and never
// double-applied.
package pending

import "sync"

// Capacity bounds the number of outstanding (pid, status) tuples the
// queue can hold before it silently drops further entries. 256 exceeds
// the number of children a reasonable interactive session keeps
// outstanding at once.
const Capacity = 256

// Entry is one observed child-status transition.
type Entry struct {
	Pid       int
	RawStatus int
}

// Queue is the PendingQueue itself.
type Queue struct {
	mu      sync.Mutex
	n       int
	entries [Capacity]Entry
}

// New creates an empty Queue.
func New() *Queue {
	return &Queue{}
}

// Push appends an entry. It reports false if the queue is full, in
// which case the entry is dropped: the caller (the goroutine standing
// in for the SIGCHLD handler) can log the drop, but the shell's view
// of that child's status is lost, since the next SIGCHLD will not
// re-deliver it.
func (q *Queue) Push(pid, rawStatus int) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.n >= Capacity {
		return false
	}
	q.entries[q.n] = Entry{Pid: pid, RawStatus: rawStatus}
	q.n++
	return true
}

// Drain copies out every pending entry and resets the queue, all under
// the lock so the writer can resume appending from index 0 without
// racing the reader's copy.
func (q *Queue) Drain() []Entry {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.n == 0 {
		return nil
	}
	out := make([]Entry, q.n)
	copy(out, q.entries[:q.n])
	q.n = 0
	return out
}
