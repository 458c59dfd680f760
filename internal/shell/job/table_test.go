package job

import (
	"bytes"
	"strings"
	"testing"
)

func TestTableCreateAssignsMonotonicNumbers(t *testing.T) {
	table := NewTable()

	j1 := table.Create([]*Process{{}}, "echo a", false)
	j2 := table.Create([]*Process{{}}, "echo b", false)

	if j1.Num != 1 || j2.Num != 2 {
		t.Fatalf("unexpected job numbers; j1: %d, j2: %d", j1.Num, j2.Num)
	}
}

func TestTableFind(t *testing.T) {
	table := NewTable()
	j1 := table.Create([]*Process{{}}, "echo a", false)
	j2 := table.Create([]*Process{{}}, "echo b", false)

	tests := map[string]struct {
		specifier string
		want      *Job
	}{
		"absent specifier returns last job": {specifier: "", want: j2},
		"percent-N returns matching job":     {specifier: "%1", want: j1},
		"unknown percent-N returns nil":      {specifier: "%99", want: nil},
		"garbage specifier returns nil":      {specifier: "bogus", want: nil},
		"bare percent returns nil":           {specifier: "%", want: nil},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			if got := table.Find(test.specifier); got != test.want {
				t.Fatalf("Find(%q); actual: %v, expected: %v", test.specifier, got, test.want)
			}
		})
	}
}

func TestTableFindEmpty(t *testing.T) {
	table := NewTable()
	if got := table.Find(""); got != nil {
		t.Fatalf("expected nil on empty table, got: %v", got)
	}
}

func TestTableRemove(t *testing.T) {
	table := NewTable()
	j1 := table.Create([]*Process{{}}, "echo a", false)
	j2 := table.Create([]*Process{{}}, "echo b", false)

	table.Remove(j1)

	jobs := table.Jobs()
	if len(jobs) != 1 || jobs[0] != j2 {
		t.Fatalf("unexpected jobs after remove: %v", jobs)
	}
}

func TestTableListReportsAndRemovesCompleted(t *testing.T) {
	table := NewTable()
	table.Create([]*Process{{Completed: true}}, "echo done", false)
	table.Create([]*Process{{}}, "sleep 100", true)
	table.Create([]*Process{{Stopped: true}}, "sleep 100", false)

	var buf bytes.Buffer
	table.List(&buf)

	out := buf.String()
	if !strings.Contains(out, "[1]  Done      echo done\n") {
		t.Fatalf("missing Done line in: %q", out)
	}
	if !strings.Contains(out, "[2]  Running      sleep 100 &\n") {
		t.Fatalf("missing Running line in: %q", out)
	}
	if !strings.Contains(out, "[3]  Stopped      sleep 100\n") {
		t.Fatalf("missing Stopped line in: %q", out)
	}

	if len(table.Jobs()) != 2 {
		t.Fatalf("expected completed job to be removed, jobs: %v", table.Jobs())
	}
}

func TestTableNotifyAllRemovesOnlyCompleted(t *testing.T) {
	table := NewTable()
	table.Create([]*Process{{Completed: true}}, "echo hi", true)
	table.Create([]*Process{{Stopped: true}}, "sleep 100", false)

	var buf bytes.Buffer
	table.NotifyAll(&buf)

	if !strings.Contains(buf.String(), "Done      echo hi &") {
		t.Fatalf("missing background done notice: %q", buf.String())
	}
	if !strings.Contains(buf.String(), "Stopped      sleep 100") {
		t.Fatalf("missing stopped notice: %q", buf.String())
	}
	if len(table.Jobs()) != 1 {
		t.Fatalf("expected only the completed job to be removed, jobs: %v", table.Jobs())
	}
}

func TestTableNotifyReportsStopOnce(t *testing.T) {
	table := NewTable()
	j := table.Create([]*Process{{Stopped: true}}, "sleep 100", false)

	var buf bytes.Buffer
	table.NotifyAll(&buf)
	table.NotifyAll(&buf)

	if got := strings.Count(buf.String(), "Stopped"); got != 1 {
		t.Fatalf("expected exactly one stopped notice, got %d in: %q", got, buf.String())
	}

	// Continuing and stopping again reports again.
	j.ClearStopped()
	j.Processes[0].Stopped = true

	buf.Reset()
	table.NotifyAll(&buf)
	if got := strings.Count(buf.String(), "Stopped"); got != 1 {
		t.Fatalf("expected a fresh stopped notice after continue, got %d in: %q", got, buf.String())
	}
}
