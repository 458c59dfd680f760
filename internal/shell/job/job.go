// Package job provides the data model for YegaShell pipelines: the
// Command a parser hands the execution layer, the Process a forked
// pipeline stage becomes, and the Job that groups Processes sharing a
// process group under job control.
package job

import "sync"

// Command is one stage of a parsed pipeline. It is immutable after
// construction; the execution layer never mutates argv or redirection
// targets in place, it builds a new Command when expansion applies.
type Command struct {
	// Argv is the program name followed by its arguments.
	Argv []string
	// Infile, if non-empty, is opened read-only and becomes stage stdin.
	Infile string
	// Outfile, if non-empty, becomes stage stdout.
	Outfile string
	// AppendOutput selects O_APPEND over O_TRUNC when Outfile is opened.
	AppendOutput bool
	// Background is only meaningful on the last Command of a Pipeline.
	Background bool
}

// Pipeline is the parser's output: an ordered list of Commands plus the
// background flag and the raw text the user typed (sans trailing '&').
type Pipeline struct {
	Commands   []Command
	Background bool
	RawText    string
}

// Process is one pipeline stage once a Job has been created for it. Pid
// is 0 until the stage has been forked.
type Process struct {
	Cmd       Command
	Pid       int
	Completed bool
	Stopped   bool
	// RawStatus is the wait status recorded when this Process completed
	// (a stop is not recorded here), in the encoding produced by
	// unix.WaitStatus (ExitStatus/Signal are queried through that type's
	// accessors).
	RawStatus int
}

// Job is one user-visible pipeline: a set of Processes that share a
// process group, created together and torn down together.
type Job struct {
	mu sync.Mutex

	// Num is the monotonic job number assigned by the Table at creation;
	// it is never reused within a shell session.
	Num int
	// Pgid equals the pid of the first forked Process; it is 0 until that
	// fork completes.
	Pgid int
	// Processes is ordered; position determines pipe wiring.
	Processes []*Process
	// RawText is the verbatim command line as entered, used in listings.
	RawText string
	// Background may be set at creation or later by the bg builtin.
	Background bool
	// Notified records that the user has already been told this Job is
	// stopped, so the per-prompt notification pass reports each stop once.
	// Cleared when the Job is continued.
	Notified bool
}

// New creates a Job for the given Processes. num and pgid are assigned
// later by Table.Create and the PipelineBuilder respectively.
func New(processes []*Process, rawText string, background bool) *Job {
	return &Job{
		Processes:  processes,
		RawText:    rawText,
		Background: background,
	}
}

// Lock/Unlock expose the Job's mutex to packages that must read or
// mutate several Process fields as one atomic step (the Reaper).
// Methods below that report a single derived fact
// take the lock themselves.
func (j *Job) Lock()   { j.mu.Lock() }
func (j *Job) Unlock() { j.mu.Unlock() }

// IsStopped reports whether the Job is stopped: every Process is
// stopped or completed, and at least one is stopped.
func (j *Job) IsStopped() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.isStoppedLocked()
}

func (j *Job) isStoppedLocked() bool {
	anyStopped := false
	for _, p := range j.Processes {
		if !p.Stopped && !p.Completed {
			return false
		}
		if p.Stopped {
			anyStopped = true
		}
	}
	return anyStopped
}

// IsCompleted reports whether every Process in the Job has completed.
func (j *Job) IsCompleted() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.isCompletedLocked()
}

func (j *Job) isCompletedLocked() bool {
	for _, p := range j.Processes {
		if !p.Completed {
			return false
		}
	}
	return true
}

// ClearStopped clears the stopped flag on every Process, used before
// continuing a stopped Job (fg/bg). A continued Job may stop again
// later and is then reported again, so the notified mark resets too.
func (j *Job) ClearStopped() {
	j.mu.Lock()
	defer j.mu.Unlock()
	for _, p := range j.Processes {
		p.Stopped = false
	}
	j.Notified = false
}

// LastProcess returns the last stage of the pipeline, the one whose
// exit status becomes "$?".
func (j *Job) LastProcess() *Process {
	if len(j.Processes) == 0 {
		return nil
	}
	return j.Processes[len(j.Processes)-1]
}

// FindProcess returns the Process with the given pid, if any.
func (j *Job) FindProcess(pid int) *Process {
	j.mu.Lock()
	defer j.mu.Unlock()
	for _, p := range j.Processes {
		if p.Pid == pid {
			return p
		}
	}
	return nil
}
