// Package signals manages the shell's signal dispositions, built on
// Go's os/signal + golang.org/x/sys/unix, the idiomatic substitute for
// raw sigaction in a garbage-collected, multi-threaded runtime.
//
// SIGTTIN/SIGTTOU/SIGTSTP are absorbed via a registered (no-op) handler
// rather than SIG_IGN. POSIX exec(2) resets a caught signal's
// disposition to default but leaves an ignored disposition alone, and
// Go's os/exec gives no hook to run code in the child between fork and
// exec. Catching instead of ignoring gets the same protection for the
// shell itself (the signal never reaches default action) while letting
// exec(2) do the child-side reset for free, with no explicit child-side
// step needed at all.
//
// This package never blocks signals on the calling OS thread around a
// pipeline's fork. Go's os/exec gives no child-side hook to undo such
// a block before execve (the runtime's fork+exec helper restores the
// child's mask to whatever was in effect on the forking thread at fork
// time, i.e. to the blocked mask itself), so a child forked while
// SIGINT/SIGQUIT/SIGTSTP were blocked would exec with them blocked
// forever, and a blocked SIGTSTP/SIGINT is never delivered at all.
// That would silently disable ^Z/^C for every foreground job.
//
// What a sigprocmask block would protect is still needed, though: from
// "about to fork a pipeline" until "the foreground wait has finished
// and the terminal is back", the SIGCHLD handler must not consume
// child statuses, or it steals the foreground job's exit/stop out from
// under waitpid(-pgid): the blocking wait then hangs on a group whose
// statuses are already gone. BlockForFork/Restore implement exactly
// that: they suspend this package's reap goroutine (the SIGCHLD
// handler stand-in) for the duration, and Restore kicks one catch-up
// reap so anything a background child reported in the interim lands in
// the PendingQueue. The process signal mask itself is never touched.
package signals

import (
	"os"
	"os/signal"
	"sync"
	"sync/atomic"

	"golang.org/x/sys/unix"

	"github.com/tjper/yegashell/internal/log"
	"github.com/tjper/yegashell/internal/shell/pending"
)

// logger reports the reap goroutine's pending-queue overflow warning; it
// never writes any of the job-table listings the builtins print to
// stderr.
var logger = log.New(os.Stderr, "signals")

// Controller installs the shell's signal dispositions and mediates the
// critical region around starting a pipeline's process group.
type Controller struct {
	pq *pending.Queue

	interrupted  atomic.Bool
	childChanged atomic.Bool

	// suspended tells the reap goroutine to leave child statuses in the
	// kernel for a foreground waitpid(-pgid) to collect; reapMu lets
	// BlockForFork wait out a reap already in flight when it suspends.
	suspended atomic.Bool
	reapMu    sync.Mutex

	sigCh chan os.Signal
	kick  chan struct{}
	done  chan struct{}
}

// New creates a Controller that records child-status transitions into pq.
func New(pq *pending.Queue) *Controller {
	return &Controller{
		pq:    pq,
		sigCh: make(chan os.Signal, 16),
		kick:  make(chan struct{}, 1),
		done:  make(chan struct{}),
	}
}

// Install registers the shell-side handlers and starts the goroutine
// that stands in for a SIGCHLD handler. Installation failures are
// fatal to shell startup.
func (c *Controller) Install() error {
	signal.Notify(c.sigCh,
		unix.SIGINT, unix.SIGQUIT, unix.SIGCHLD,
		unix.SIGTTIN, unix.SIGTTOU, unix.SIGTSTP,
	)
	go c.loop()
	return nil
}

// Stop releases the signal channel; used only at shell exit.
func (c *Controller) Stop() {
	close(c.done)
	signal.Stop(c.sigCh)
}

func (c *Controller) loop() {
	for {
		select {
		case <-c.done:
			return
		case <-c.kick:
			c.reapAvailable()
		case sig := <-c.sigCh:
			switch sig {
			case unix.SIGINT, unix.SIGQUIT:
				c.interrupted.Store(true)
				_, _ = os.Stdout.Write([]byte{'\n'})
			case unix.SIGCHLD:
				c.childChanged.Store(true)
				c.reapAvailable()
			case unix.SIGTTIN, unix.SIGTTOU, unix.SIGTSTP:
				// Absorbed: the shell is session leader and repeatedly
				// reassigns the controlling terminal's foreground group, so it
				// must never be suspended by these itself.
			}
		}
	}
}

// reapAvailable drains every immediately-reportable child status into
// the pending queue, non-blocking and stopped-aware. While the
// controller is suspended (a pipeline is being installed, or a
// foreground wait owns the process group's statuses) it leaves
// everything queued in the kernel.
func (c *Controller) reapAvailable() {
	c.reapMu.Lock()
	defer c.reapMu.Unlock()
	if c.suspended.Load() {
		return
	}

	var ws unix.WaitStatus
	for {
		pid, err := unix.Wait4(-1, &ws, unix.WNOHANG|unix.WUNTRACED, nil)
		if err != nil || pid <= 0 {
			return
		}
		if !c.pq.Push(pid, int(ws)) {
			logger.Warnf("pending queue full, dropping status for pid %d", pid)
		}
	}
}

// Interrupted reports and clears the flag set by a delivered
// SIGINT/SIGQUIT.
func (c *Controller) Interrupted() bool {
	return c.interrupted.Swap(false)
}

// ChildChanged reports and clears the flag set whenever SIGCHLD fired,
// used by the REPL to decide whether a notification pass is worthwhile.
func (c *Controller) ChildChanged() bool {
	return c.childChanged.Swap(false)
}

// Mask is the token returned by BlockForFork and consumed by Restore.
// It carries nothing: no process-level signal mask changes hands, but
// the block/fork/install/restore call shape keeps every critical
// region explicitly bracketed at its call sites.
type Mask struct{}

// BlockForFork suspends the SIGCHLD reap goroutine for the critical
// region around launching a pipeline: from just before its first fork
// until the job is installed and (for foreground jobs) its wait has
// completed. The reapMu round-trip waits out a reap already in flight,
// so once BlockForFork returns no status of the new job can be
// consumed behind the caller's back. background is accepted only to
// keep the call signature symmetric with the caller's foreground/
// background split; the suspension itself is identical.
func (c *Controller) BlockForFork(background bool) (Mask, error) {
	c.suspended.Store(true)
	// Taking and releasing reapMu waits out any reap that started before
	// suspended was set; nothing is mutated under it here.
	c.reapMu.Lock()
	c.reapMu.Unlock()
	return Mask{}, nil
}

// Restore resumes reaping and kicks one catch-up pass so statuses that
// piled up in the kernel during the suspension reach the PendingQueue
// without waiting for the next SIGCHLD.
func (c *Controller) Restore(m Mask) error {
	c.suspended.Store(false)
	select {
	case c.kick <- struct{}{}:
	default:
	}
	return nil
}
