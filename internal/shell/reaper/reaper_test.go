package reaper

import (
	"testing"

	"golang.org/x/sys/unix"

	"github.com/tjper/yegashell/internal/shell/job"
	"github.com/tjper/yegashell/internal/shell/pending"
)

// Raw wait status words in the kernel's encoding, the same values
// waitpid writes: a normal exit is code<<8, a signal death is the
// signal number, a stop is sig<<8|0x7f.
func exited(code int) int   { return code << 8 }
func signaled(sig int) int  { return sig }
func stoppedBy(sig int) int { return sig<<8 | 0x7f }

func TestApplyPending(t *testing.T) {
	tests := map[string]struct {
		rawStatus     int
		wantCompleted bool
		wantStopped   bool
	}{
		"normal exit completes the process": {
			rawStatus:     exited(0),
			wantCompleted: true,
		},
		"non-zero exit completes the process": {
			rawStatus:     exited(1),
			wantCompleted: true,
		},
		"signal death completes the process": {
			rawStatus:     signaled(int(unix.SIGKILL)),
			wantCompleted: true,
		},
		"stop marks the process stopped": {
			rawStatus:   stoppedBy(int(unix.SIGTSTP)),
			wantStopped: true,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			table := job.NewTable()
			j := table.Create([]*job.Process{{Pid: 42}}, "sleep 100", true)

			pq := pending.New()
			pq.Push(42, test.rawStatus)
			ApplyPending(pq, table.Jobs())

			p := j.Processes[0]
			if p.Completed != test.wantCompleted {
				t.Fatalf("Completed; actual: %v, expected: %v", p.Completed, test.wantCompleted)
			}
			if p.Stopped != test.wantStopped {
				t.Fatalf("Stopped; actual: %v, expected: %v", p.Stopped, test.wantStopped)
			}
			if test.wantCompleted && p.RawStatus != test.rawStatus {
				t.Fatalf("RawStatus; actual: %#x, expected: %#x", p.RawStatus, test.rawStatus)
			}
		})
	}
}

func TestApplyPendingIgnoresUnknownPid(t *testing.T) {
	table := job.NewTable()
	j := table.Create([]*job.Process{{Pid: 42}}, "sleep 100", true)

	pq := pending.New()
	pq.Push(9999, exited(0))
	ApplyPending(pq, table.Jobs())

	if j.Processes[0].Completed || j.Processes[0].Stopped {
		t.Fatal("expected an unknown pid's status to leave the job untouched")
	}
}

func TestApplyPendingMatchesAcrossJobs(t *testing.T) {
	table := job.NewTable()
	j1 := table.Create([]*job.Process{{Pid: 10}}, "sleep 1", true)
	j2 := table.Create([]*job.Process{{Pid: 20}}, "sleep 2", true)

	pq := pending.New()
	pq.Push(20, exited(3))
	ApplyPending(pq, table.Jobs())

	if j1.Processes[0].Completed {
		t.Fatal("expected job 1 to be untouched")
	}
	if !j2.Processes[0].Completed {
		t.Fatal("expected job 2's process to complete")
	}
}

func TestPresetExitStatus(t *testing.T) {
	tests := map[string]struct {
		procs []*job.Process
		want  int
	}{
		"incomplete last stage yields zero": {
			procs: []*job.Process{{Pid: 10}},
			want:  0,
		},
		"unforked not-found stage yields its recorded status": {
			procs: []*job.Process{{Completed: true, RawStatus: exited(1)}},
			want:  1,
		},
		"already-applied exit yields its code": {
			procs: []*job.Process{{Pid: 10, Completed: true, RawStatus: exited(7)}},
			want:  7,
		},
		"already-applied signal death yields 128 plus signo": {
			procs: []*job.Process{{Pid: 10, Completed: true, RawStatus: signaled(int(unix.SIGTERM))}},
			want:  128 + int(unix.SIGTERM),
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			j := job.New(test.procs, "cmd", false)
			if got := presetExitStatus(j); got != test.want {
				t.Fatalf("presetExitStatus; actual: %d, expected: %d", got, test.want)
			}
		})
	}
}
