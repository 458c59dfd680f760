// Package jobctl drives a pipeline from launch to completion or
// suspension: foreground jobs get the controlling terminal and a
// blocking wait, background jobs get an announcement and run
// concurrently with the prompt. It is the single place that
// coordinates the Builder, the SIGCHLD reap suspension, the
// controlling terminal, and the job.Table.
package jobctl

import (
	"fmt"
	"os"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
	"golang.org/x/term"

	"github.com/tjper/yegashell/internal/shell/job"
	"github.com/tjper/yegashell/internal/shell/pipeline"
	"github.com/tjper/yegashell/internal/shell/reaper"
	"github.com/tjper/yegashell/internal/shell/signals"
)

// Controller wires a Builder, a Table, and a signals.Controller into
// the foreground/background job lifecycle.
type Controller struct {
	builder   *pipeline.Builder
	table     *job.Table
	sig       *signals.Controller
	shellPgid int
	termFd    int
	terminal  bool
}

// New creates a Controller. Terminal control (tcsetpgrp) is attempted
// only when stdin is actually a terminal; a piped or redirected stdin
// (term.IsTerminal reports false) runs every job without ever touching
// the controlling terminal, which keeps a non-interactive invocation
// from failing on an ENOTTY that a real terminal session would never
// hit.
func New(builder *pipeline.Builder, table *job.Table, sig *signals.Controller) *Controller {
	fd := int(os.Stdin.Fd())
	return &Controller{
		builder:   builder,
		table:     table,
		sig:       sig,
		shellPgid: unix.Getpgrp(),
		termFd:    fd,
		terminal:  term.IsTerminal(fd),
	}
}

// Run starts p and drives it to completion or suspension, applying
// foreground or background treatment per p.Background. It returns the
// job's recorded exit status for the caller to record as "$?".
//
// Between BlockForFork and Restore the SIGCHLD reap goroutine is
// suspended, so no status of the new group can be consumed before the
// job's pids are recorded and, for a foreground job, not before the
// blocking wait has collected them itself.
func (c *Controller) Run(p job.Pipeline) (exitStatus int, err error) {
	mask, err := c.sig.BlockForFork(p.Background)
	if err != nil {
		return 0, errors.Wrap(err, "jobctl: block signals before fork")
	}

	j := c.table.Create(nil, p.RawText, p.Background)

	processes, pgid, err := c.builder.Start(p)
	if err != nil {
		c.table.Remove(j)
		_ = c.sig.Restore(mask)
		return 0, err
	}

	j.Processes = processes
	j.Pgid = pgid

	// Every stage failed PATH lookup: nothing was forked, so there is
	// nothing to wait for, announce, or keep in the table.
	if pgid == 0 {
		c.table.Remove(j)
		_ = c.sig.Restore(mask)
		return 1, nil
	}

	if p.Background {
		return c.runBackground(j, mask)
	}
	return c.runForeground(j, mask)
}

// runForeground hands the terminal to the job's process group, waits
// for it, reclaims the terminal, notifies, then ends the reap
// suspension last, so the SIGCHLD reap goroutine cannot take this job's
// statuses while the wait and the terminal handback are in progress.
// The shell's own signal mask is not changed on this path.
func (c *Controller) runForeground(j *job.Job, mask signals.Mask) (int, error) {
	if c.terminal && j.Pgid != 0 {
		if err := c.setForegroundGroup(j.Pgid); err != nil {
			fmt.Fprintf(os.Stderr, "jobctl: tcsetpgrp failed: %v\n", err)
		}
	}

	exitStatus, err := reaper.WaitForChildren(j)
	if err != nil {
		fmt.Fprintf(os.Stderr, "jobctl: wait failed: %v\n", err)
	}
	if derr := reaper.DrainRemaining(j); derr != nil {
		fmt.Fprintf(os.Stderr, "jobctl: drain failed: %v\n", derr)
	}

	if c.terminal {
		if err := c.setForegroundGroup(c.shellPgid); err != nil {
			fmt.Fprintf(os.Stderr, "jobctl: couldn't reclaim terminal: %v\n", err)
		}
	}

	c.table.Notify(os.Stderr, j)

	if rerr := c.sig.Restore(mask); rerr != nil {
		fmt.Fprintf(os.Stderr, "jobctl: restore signal mask failed: %v\n", rerr)
	}
	return exitStatus, nil
}

// runBackground announces "[num]  pgid", then ends the critical region
// and lets the job run concurrently with the shell prompt.
func (c *Controller) runBackground(j *job.Job, mask signals.Mask) (int, error) {
	fmt.Fprintf(os.Stderr, "[%d]  %d\n", j.Num, j.Pgid)
	if err := c.sig.Restore(mask); err != nil {
		fmt.Fprintf(os.Stderr, "jobctl: restore signal mask failed: %v\n", err)
	}
	return 0, nil
}

// Continue resumes a stopped Job in either the foreground or
// background, shared by the fg and bg builtins: clear each stage's
// stopped mark, print the command being resumed, send SIGCONT to the
// whole process group, then drive it like a freshly started job of the
// same background-ness. Unlike an initial background launch, a job
// moved to the background by bg is not re-announced with its pgid; the
// "<raw_text> &" line printed here is the announcement.
func (c *Controller) Continue(j *job.Job, background bool) (exitStatus int, err error) {
	mask, err := c.sig.BlockForFork(background)
	if err != nil {
		return 0, errors.Wrap(err, "jobctl: block signals before continue")
	}

	j.Background = background
	if j.IsStopped() {
		j.ClearStopped()
		if background {
			fmt.Fprintf(os.Stdout, "%s &\n", j.RawText)
		} else {
			fmt.Fprintf(os.Stdout, "%s\n", j.RawText)
		}
		if j.Pgid != 0 {
			if err := unix.Kill(-j.Pgid, unix.SIGCONT); err != nil {
				_ = c.sig.Restore(mask)
				return 0, errors.Wrap(err, "jobctl: SIGCONT")
			}
		}
	}

	if background {
		if err := c.sig.Restore(mask); err != nil {
			fmt.Fprintf(os.Stderr, "jobctl: restore signal mask failed: %v\n", err)
		}
		return 0, nil
	}
	return c.runForeground(j, mask)
}

// setForegroundGroup is the Go substitute for tcsetpgrp(3): there is no
// such call in the standard library or golang.org/x/sys/unix, so it is
// emulated with the TIOCSPGRP ioctl tcsetpgrp itself wraps.
func (c *Controller) setForegroundGroup(pgid int) error {
	return unix.IoctlSetInt(c.termFd, unix.TIOCSPGRP, pgid)
}
