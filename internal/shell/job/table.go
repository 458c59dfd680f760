package job

import (
	"fmt"
	"io"
	"strconv"
	"sync"

	"golang.org/x/sys/unix"
)

// Table is the ordered collection of live Jobs. A Job lives from just
// before its first fork until it is observed completed and the user
// has been notified.
type Table struct {
	mu      sync.Mutex
	jobs    []*Job
	nextNum int
}

// NewTable creates an empty Table. Job numbers start at 1.
func NewTable() *Table {
	return &Table{nextNum: 1}
}

// Create appends a new Job, assigning the next monotonic job number.
func (t *Table) Create(processes []*Process, rawText string, background bool) *Job {
	t.mu.Lock()
	defer t.mu.Unlock()

	j := New(processes, rawText, background)
	j.Num = t.nextNum
	t.nextNum++
	t.jobs = append(t.jobs, j)
	return j
}

// Find resolves a job specifier from a builtin's argv: "" (absent) means
// the last Job in the table, "%N" means the Job with that job number,
// anything else is not found.
func (t *Table) Find(specifier string) *Job {
	t.mu.Lock()
	defer t.mu.Unlock()

	if specifier == "" {
		if len(t.jobs) == 0 {
			return nil
		}
		return t.jobs[len(t.jobs)-1]
	}

	if len(specifier) < 2 || specifier[0] != '%' {
		return nil
	}
	num, err := strconv.ParseInt(specifier[1:], 10, 64)
	if err != nil || num <= 0 {
		return nil
	}
	for _, j := range t.jobs {
		if int64(j.Num) == num {
			return j
		}
	}
	return nil
}

// Remove unlinks the Job from the table. Its Processes are released
// with it since nothing else in the program holds a reference.
func (t *Table) Remove(j *Job) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i, cur := range t.jobs {
		if cur == j {
			t.jobs = append(t.jobs[:i], t.jobs[i+1:]...)
			return
		}
	}
}

// Jobs returns a snapshot of the live Jobs in insertion order.
func (t *Table) Jobs() []*Job {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]*Job, len(t.jobs))
	copy(out, t.jobs)
	return out
}

// KillAll delivers SIGHUP, then SIGCONT, then SIGTERM to every live
// Job's process group, so stopped background jobs are woken and can
// act on the termination signal before the shell exits.
func (t *Table) KillAll() {
	for _, j := range t.Jobs() {
		if j.Pgid == 0 {
			continue
		}
		_ = unix.Kill(-j.Pgid, unix.SIGHUP)
		_ = unix.Kill(-j.Pgid, unix.SIGCONT)
		_ = unix.Kill(-j.Pgid, unix.SIGTERM)
	}
}

// NotifyAll walks the table applying the notification policy: a stopped
// Job is reported once, a completed Job is reported (if background) and
// removed. This is the single centralized point builtins defer to so a
// Job is never reported twice in the same pass.
func (t *Table) NotifyAll(w io.Writer) {
	for _, j := range t.Jobs() {
		t.notify(w, j)
	}
}

// notify applies the single-Job half of the notification policy used by
// both NotifyAll and the job controller's foreground path.
func (t *Table) notify(w io.Writer, j *Job) {
	if j.IsCompleted() {
		if j.Background {
			formatJobInfo(w, j, "Done")
		}
		t.Remove(j)
		return
	}
	if j.IsStopped() && !j.Notified {
		formatJobInfo(w, j, "Stopped")
		j.Notified = true
	}
}

// Notify applies the notification policy to a single Job. Exported for
// the job controller's foreground completion step, which must notify
// about exactly the Job it just ran, not the whole table.
func (t *Table) Notify(w io.Writer, j *Job) {
	t.notify(w, j)
}

// List renders the "jobs" builtin: every live Job gets a status line,
// completed Jobs are reported as Done and removed in the same pass.
func (t *Table) List(w io.Writer) {
	for _, j := range t.Jobs() {
		if j.IsCompleted() {
			formatJobInfo(w, j, "Done")
			t.Remove(j)
			continue
		}
		status := "Running"
		if j.IsStopped() {
			status = "Stopped"
		}
		formatJobInfo(w, j, status)
	}
}

func formatJobInfo(w io.Writer, j *Job, status string) {
	if j.Background {
		fmt.Fprintf(w, "[%d]  %s      %s &\n", j.Num, status, j.RawText)
	} else {
		fmt.Fprintf(w, "[%d]  %s      %s\n", j.Num, status, j.RawText)
	}
}
