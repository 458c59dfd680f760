// Package pipeline builds and launches the process groups behind a
// parsed command pipeline: one child per stage, stages joined by
// pipes, redirections applied, every child in a process group of its
// own led by the first stage that starts. Raw fork(2) is unsafe in a Go process,
// which may have many OS threads and goroutines live at fork time, so
// children start through os/exec.Cmd with a SysProcAttr carrying
// Setpgid/Pgid: the runtime's fork+exec helper calls setpgid in the
// child between fork and exec, before the program can run.
package pipeline

import (
	"fmt"
	"os"
	"os/exec"
	"syscall"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"

	"github.com/tjper/yegashell/internal/shell/env"
	"github.com/tjper/yegashell/internal/shell/job"
)

// Builder starts every Process of a Pipeline under a shared process
// group, wiring stdin/stdout through os.Pipe() or through the named
// redirection files.
//
// Builder never touches child statuses or signal state itself: the
// caller (jobctl) brackets its call to Start with
// signals.Controller.BlockForFork/Restore so the SIGCHLD reap goroutine
// stays out of the new process group's statuses until the job is fully
// installed.
type Builder struct {
	vars *env.Table
}

// New creates a Builder. vars supplies PATH resolution and the
// exported environment passed to children.
func New(vars *env.Table) *Builder {
	return &Builder{vars: vars}
}

// Start launches every stage of p, returning one Process per stage (in
// pipeline order) plus the process group id they share. A stage whose
// command could not be resolved on PATH gets a Process already marked
// Completed with an EXIT_FAILURE status, so it is accounted for in
// job-completion bookkeeping without the reaper ever waiting on it.
func (b *Builder) Start(p job.Pipeline) ([]*job.Process, int, error) {
	if len(p.Commands) == 0 {
		return nil, 0, fmt.Errorf("pipeline: empty pipeline")
	}

	pipes := make([][2]*os.File, len(p.Commands)-1)
	for i := range pipes {
		r, w, err := os.Pipe()
		if err != nil {
			closeAll(pipes[:i])
			return nil, 0, errors.Wrap(err, "pipeline: create pipe")
		}
		pipes[i] = [2]*os.File{r, w}
	}

	processes := make([]*job.Process, len(p.Commands))
	var pgid int

	for i, c := range p.Commands {
		processes[i] = &job.Process{Cmd: c}

		path := env.LookupFullPath(b.vars, c.Argv[0])
		if path == "" {
			fmt.Fprintf(os.Stderr, "%s: command not found\n", c.Argv[0])
			closeStageEnds(pipes, i, len(p.Commands))
			// Completed=true with Pid 0 stands in for a stage that never
			// actually ran, so job-completion bookkeeping treats it like any
			// other finished stage without the reaper ever waiting on it.
			processes[i].Completed = true
			processes[i].RawStatus = 1 << 8
			continue
		}

		cmd := exec.Command(path, c.Argv[1:]...)
		cmd.Env = b.vars.Environ()
		cmd.SysProcAttr = sysProcAttr(pgid)

		files, err := attachStdio(cmd, c, pipes, i, len(p.Commands))
		if err != nil {
			closeAll(pipes)
			return nil, 0, err
		}

		err = cmd.Start()
		// The child holds dups of every *os.File handed to it; the
		// parent's copies of the redirection files are done either way.
		closeFiles(files)
		if err != nil {
			closeAll(pipes)
			return nil, 0, errors.Wrapf(err, "pipeline: start %q", c.Argv[0])
		}

		// The first stage that actually starts leads the group; any
		// earlier stage that failed lookup never forked.
		if pgid == 0 {
			pgid = cmd.Process.Pid
		} else if err := setpgidTolerant(cmd.Process.Pid, pgid); err != nil {
			closeAll(pipes)
			return nil, 0, errors.Wrap(err, "pipeline: setpgid in parent")
		}
		processes[i].Pid = cmd.Process.Pid

		closeStageEnds(pipes, i, len(p.Commands))
	}

	return processes, pgid, nil
}

// attachStdio wires stage i's stdin/stdout: an explicit redirection
// file wins over the pipe that stage would otherwise use. The
// redirection files it opens are returned so the caller can close the
// parent's copies once the child has been started (or failed to).
func attachStdio(cmd *exec.Cmd, c job.Command, pipes [][2]*os.File, i, n int) ([]*os.File, error) {
	var opened []*os.File

	if c.Infile != "" {
		f, err := os.Open(c.Infile)
		if err != nil {
			return nil, errors.Wrapf(err, "pipeline: open infile %q", c.Infile)
		}
		opened = append(opened, f)
		cmd.Stdin = f
	} else if i > 0 {
		cmd.Stdin = pipes[i-1][0]
	} else {
		cmd.Stdin = os.Stdin
	}

	if c.Outfile != "" {
		flags := os.O_WRONLY | os.O_CREATE
		if c.AppendOutput {
			flags |= os.O_APPEND
		} else {
			flags |= os.O_TRUNC
		}
		f, err := os.OpenFile(c.Outfile, flags, 0o644)
		if err != nil {
			closeFiles(opened)
			return nil, errors.Wrapf(err, "pipeline: open outfile %q", c.Outfile)
		}
		opened = append(opened, f)
		cmd.Stdout = f
	} else if i < n-1 {
		cmd.Stdout = pipes[i][1]
	} else {
		cmd.Stdout = os.Stdout
	}

	cmd.Stderr = os.Stderr
	return opened, nil
}

// closeStageEnds closes the parent's copies of the pipe ends that
// stage i has already handed to its child. A read end the shell keeps
// open would defer EOF to the downstream stage indefinitely. Every
// *os.File cmd.Stdin/Stdout referenced is dup'd into the child by
// os/exec, so closing the parent's handle here does not affect the
// child.
func closeStageEnds(pipes [][2]*os.File, i, n int) {
	if i > 0 {
		pipes[i-1][0].Close()
	}
	if i < n-1 {
		pipes[i][1].Close()
	}
}

func closeAll(pipes [][2]*os.File) {
	for _, pair := range pipes {
		if pair[0] != nil {
			pair[0].Close()
		}
		if pair[1] != nil {
			pair[1].Close()
		}
	}
}

func closeFiles(files []*os.File) {
	for _, f := range files {
		f.Close()
	}
}

// sysProcAttr builds the attribute that makes the runtime's fork+exec
// helper call setpgid(0, pgid) in the child between fork and exec.
// pgid is 0 for the first stage that starts, which asks the kernel to
// start a new group seeded with the child's own pid; later stages join
// that group.
func sysProcAttr(pgid int) *syscall.SysProcAttr {
	return &syscall.SysProcAttr{
		Setpgid: true,
		Pgid:    pgid,
	}
}

// setpgidTolerant is the parent-side setpgid call that closes the race
// against a child that has not yet reached its own setpgid: EACCES
// (the child already exec'd) and EINVAL (the child already called
// setpgid itself) both mean the group was already set up correctly and
// are not reported as failures.
func setpgidTolerant(pid, pgid int) error {
	err := unix.Setpgid(pid, pgid)
	if err == nil || err == unix.EACCES || err == unix.EINVAL {
		return nil
	}
	return err
}
