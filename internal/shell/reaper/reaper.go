// Package reaper collects child statuses and applies them to the jobs
// that own them: a blocking wait for the foreground pipeline, a
// non-blocking drain for statuses already reportable, and the
// application of pending-queue entries recorded for background
// children.
package reaper

import (
	"github.com/pkg/errors"
	"golang.org/x/sys/unix"

	"github.com/tjper/yegashell/internal/shell/job"
	"github.com/tjper/yegashell/internal/shell/pending"
)

// applyStatus updates the Process matching pid within j with the
// outcome encoded in ws, and reports the exit status to record as
// "$?" when pid is the Job's last stage.
func applyStatus(j *job.Job, pid int, ws unix.WaitStatus) (exitStatus int, isLastStage, stopped bool) {
	j.Lock()
	defer j.Unlock()

	p := findLocked(j, pid)
	if p == nil {
		return 0, false, false
	}
	isLastStage = p == j.Processes[len(j.Processes)-1]

	switch {
	case ws.Stopped():
		p.Stopped = true
		stopped = true
	case ws.Exited():
		p.Completed = true
		p.RawStatus = int(ws)
		if isLastStage {
			exitStatus = ws.ExitStatus()
		}
	case ws.Signaled():
		p.Completed = true
		p.RawStatus = int(ws)
		if isLastStage {
			exitStatus = 128 + int(ws.Signal())
		}
	}
	return exitStatus, isLastStage, stopped
}

func findLocked(j *job.Job, pid int) *job.Process {
	for _, p := range j.Processes {
		if p.Pid == pid {
			return p
		}
	}
	return nil
}

// WaitForChildren blocks waiting on j's process group until either
// every stage has completed or one has stopped. A stop returns
// immediately: the stop signal went to the whole group, so the
// remaining stages' statuses are presumed to follow and are picked up
// by DrainRemaining. It returns the exit status of the job's last
// stage to become "$?".
func WaitForChildren(j *job.Job) (exitStatus int, err error) {
	exitStatus = presetExitStatus(j)
	if j.Pgid == 0 {
		return exitStatus, nil
	}
	var ws unix.WaitStatus
	for {
		pid, werr := unix.Wait4(-j.Pgid, &ws, unix.WUNTRACED, nil)
		if werr != nil {
			if werr == unix.EINTR {
				continue
			}
			if werr == unix.ECHILD {
				return exitStatus, nil
			}
			return exitStatus, errors.Wrap(werr, "reaper: wait4")
		}
		if pid <= 0 {
			return exitStatus, nil
		}

		status, isLast, stopped := applyStatus(j, pid, ws)
		if isLast && (ws.Exited() || ws.Signaled()) {
			exitStatus = status
		}
		if stopped {
			return exitStatus, nil
		}
		if j.IsCompleted() {
			return exitStatus, nil
		}
	}
}

// presetExitStatus seeds "$?" for a last stage that completed before
// the wait loop ever ran: a stage the builder marked completed without
// forking it (command not found), or one whose exit was already applied
// from the pending queue before fg brought the job back to the
// foreground. The wait loop will never see such a stage again.
func presetExitStatus(j *job.Job) int {
	j.Lock()
	defer j.Unlock()
	if len(j.Processes) == 0 {
		return 0
	}
	p := j.Processes[len(j.Processes)-1]
	if !p.Completed {
		return 0
	}
	ws := unix.WaitStatus(p.RawStatus)
	if ws.Signaled() {
		return 128 + int(ws.Signal())
	}
	return ws.ExitStatus()
}

// DrainRemaining collects every status already available without
// blocking. It is called right after WaitForChildren returns so a
// status that arrived for another stage of the same job in the interim
// is not left unaccounted for.
func DrainRemaining(j *job.Job) error {
	if j.Pgid == 0 {
		return nil
	}
	var ws unix.WaitStatus
	for {
		pid, err := unix.Wait4(-j.Pgid, &ws, unix.WNOHANG|unix.WUNTRACED, nil)
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			if err == unix.ECHILD {
				return nil
			}
			return errors.Wrap(err, "reaper: wait4 (drain)")
		}
		if pid <= 0 {
			return nil
		}
		applyStatus(j, pid, ws)
	}
}

// ApplyPending drains the PendingQueue fed by the SIGCHLD handler and
// applies each entry to whichever Job owns that pid. Entries for a pid
// not found in any live Job (an adopted orphan, or a stage from a Job
// already removed) are silently dropped.
func ApplyPending(pq *pending.Queue, jobs []*job.Job) {
	for _, entry := range pq.Drain() {
		ws := unix.WaitStatus(entry.RawStatus)
		for _, j := range jobs {
			if p := j.FindProcess(entry.Pid); p != nil {
				applyStatus(j, entry.Pid, ws)
				break
			}
		}
	}
}
