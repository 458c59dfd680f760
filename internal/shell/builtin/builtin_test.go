package builtin

import (
	"os"
	"testing"

	"github.com/tjper/yegashell/internal/shell/env"
	"github.com/tjper/yegashell/internal/shell/job"
	"github.com/tjper/yegashell/internal/shell/jobctl"
	"github.com/tjper/yegashell/internal/shell/pending"
	"github.com/tjper/yegashell/internal/shell/pipeline"
	"github.com/tjper/yegashell/internal/shell/signals"
)

// newRegistry builds a Registry whose collaborators are real but idle:
// the signals controller is never installed and no job is ever started,
// so only the builtins that stay in-process are exercised here.
func newRegistry() (*Registry, *env.Table) {
	vars := env.New()
	table := job.NewTable()
	pq := pending.New()
	jc := jobctl.New(pipeline.New(vars), table, signals.New(pq))
	return New(table, jc, vars, pq), vars
}

func TestIsBuiltin(t *testing.T) {
	r, _ := newRegistry()

	tests := map[string]bool{
		"cd":     true,
		"exit":   true,
		"jobs":   true,
		"fg":     true,
		"bg":     true,
		"export": true,
		"unset":  true,
		"pwd":    true,
		"help":   true,
		"ls":     false,
		"echo":   false,
	}
	for name, want := range tests {
		if got := r.IsBuiltin(name); got != want {
			t.Errorf("IsBuiltin(%q); actual: %v, expected: %v", name, got, want)
		}
	}
}

func TestExit(t *testing.T) {
	r, _ := newRegistry()

	tests := map[string]struct {
		argv   []string
		status int
	}{
		"no argument":          {argv: []string{"exit"}, status: 0},
		"numeric argument":     {argv: []string{"exit", "7"}, status: 7},
		"non-numeric argument": {argv: []string{"exit", "seven"}, status: 0},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			result := r.Run(test.argv)
			if !result.Exit {
				t.Fatal("expected exit builtin to request shell exit")
			}
			if result.Status != test.status {
				t.Fatalf("unexpected status; actual: %d, expected: %d", result.Status, test.status)
			}
		})
	}
}

func TestExportAndUnset(t *testing.T) {
	r, vars := newRegistry()

	if result := r.Run([]string{"export", "FOO=bar"}); result.Status != 0 {
		t.Fatalf("unexpected export status: %d", result.Status)
	}
	if value, ok := vars.Lookup("FOO"); !ok || value != "bar" {
		t.Fatalf("unexpected FOO after export; value: %q, ok: %v", value, ok)
	}
	environ := vars.Environ()
	found := false
	for _, kv := range environ {
		if kv == "FOO=bar" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected FOO=bar in environ: %v", environ)
	}

	if result := r.Run([]string{"export", "1BAD=x"}); result.Status == 0 {
		t.Fatal("expected export of invalid identifier to fail")
	}

	if result := r.Run([]string{"unset", "FOO"}); result.Status != 0 {
		t.Fatalf("unexpected unset status: %d", result.Status)
	}
	if _, ok := vars.Lookup("FOO"); ok {
		t.Fatal("expected FOO to be gone after unset")
	}
	if result := r.Run([]string{"unset", "FOO"}); result.Status == 0 {
		t.Fatal("expected unset of missing variable to fail")
	}
	if result := r.Run([]string{"unset"}); result.Status == 0 {
		t.Fatal("expected unset with no argument to fail")
	}
}

func TestCd(t *testing.T) {
	r, _ := newRegistry()

	orig, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	defer func() {
		if err := os.Chdir(orig); err != nil {
			t.Fatal(err)
		}
	}()

	dir := t.TempDir()
	if result := r.Run([]string{"cd", dir}); result.Status != 0 {
		t.Fatalf("unexpected cd status: %d", result.Status)
	}
	if result := r.Run([]string{"cd", "/does/not/exist"}); result.Status == 0 {
		t.Fatal("expected cd to a missing directory to fail")
	}
}

func TestFgAndBgWithoutJobs(t *testing.T) {
	r, _ := newRegistry()

	if result := r.Run([]string{"fg"}); result.Status == 0 {
		t.Fatal("expected fg with no jobs to fail")
	}
	if result := r.Run([]string{"bg", "%9"}); result.Status == 0 {
		t.Fatal("expected bg of an unknown job to fail")
	}
}
