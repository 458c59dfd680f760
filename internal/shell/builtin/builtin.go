// Package builtin implements the shell's non-job builtins (cd, pwd,
// help, exit, export, unset) and its job-control builtins (jobs, fg,
// bg).
package builtin

import (
	"fmt"
	"os"
	"strconv"

	"github.com/tjper/yegashell/internal/shell/env"
	"github.com/tjper/yegashell/internal/shell/job"
	"github.com/tjper/yegashell/internal/shell/jobctl"
	"github.com/tjper/yegashell/internal/shell/pending"
	"github.com/tjper/yegashell/internal/shell/reaper"
	"github.com/tjper/yegashell/internal/validator"
)

// Result reports the outcome of a builtin invocation: the status to
// record as "$?", and whether the shell should exit.
type Result struct {
	Status int
	Exit   bool
}

// Registry dispatches builtin names to their implementations.
type Registry struct {
	table *job.Table
	jc    *jobctl.Controller
	vars  *env.Table
	pq    *pending.Queue
}

// New creates a Registry.
func New(table *job.Table, jc *jobctl.Controller, vars *env.Table, pq *pending.Queue) *Registry {
	return &Registry{table: table, jc: jc, vars: vars, pq: pq}
}

// IsBuiltin reports whether name names a builtin.
func (r *Registry) IsBuiltin(name string) bool {
	switch name {
	case "cd", "help", "exit", "pwd", "export", "unset", "fg", "bg", "jobs":
		return true
	default:
		return false
	}
}

// Run dispatches argv[0] to its builtin implementation. The caller
// must have already confirmed IsBuiltin(argv[0]).
func (r *Registry) Run(argv []string) Result {
	switch argv[0] {
	case "cd":
		return r.cd(argv)
	case "help":
		return r.help()
	case "exit":
		return r.exit(argv)
	case "pwd":
		return r.pwd()
	case "export":
		return r.export(argv)
	case "unset":
		return r.unset(argv)
	case "fg":
		return r.fg(argv)
	case "bg":
		return r.bg(argv)
	case "jobs":
		return r.jobs()
	}
	return Result{Status: 1}
}

func (r *Registry) cd(argv []string) Result {
	var path string
	if len(argv) < 2 || argv[1] == "~" {
		var ok bool
		path, ok = r.vars.Lookup("HOME")
		if !ok || path == "" {
			path = os.Getenv("HOME")
		}
		if path == "" {
			fmt.Fprintln(os.Stderr, "cd: HOME not set")
			return Result{Status: 1}
		}
	} else {
		path = argv[1]
	}

	if err := os.Chdir(path); err != nil {
		fmt.Fprintf(os.Stderr, "cd: %v\n", err)
		return Result{Status: 1}
	}
	return Result{}
}

func (r *Registry) help() Result {
	fmt.Println("Yega Shell")
	fmt.Println("Type the name of the command, and hit enter.")
	fmt.Println("Use the man command for information on other programs.")
	return Result{}
}

func (r *Registry) exit(argv []string) Result {
	status := 0
	if len(argv) > 1 {
		if n, err := strconv.Atoi(argv[1]); err == nil {
			status = n
		}
	}
	return Result{Status: status, Exit: true}
}

func (r *Registry) pwd() Result {
	cwd, err := os.Getwd()
	if err != nil {
		fmt.Fprintf(os.Stderr, "pwd: %v\n", err)
		return Result{Status: 1}
	}
	fmt.Println(cwd)
	return Result{}
}

func (r *Registry) export(argv []string) Result {
	if len(argv) < 2 {
		for _, line := range r.vars.Dump() {
			fmt.Println(line)
		}
		return Result{}
	}

	status := 0
	for _, arg := range argv[1:] {
		key, value, ok := env.SplitKeyValue(arg)
		if !ok {
			key = arg
			value, _ = r.vars.Lookup(key)
		}

		if !env.IsValidIdentifier(key) {
			fmt.Fprintf(os.Stderr, "export: `%s': not a valid identifier\n", key)
			status = 1
			continue
		}
		r.vars.Set(key, value, true)
	}
	return Result{Status: status}
}

func (r *Registry) unset(argv []string) Result {
	v := validator.New()
	v.Assert(len(argv) >= 2, "unset: not enough arguments")
	v.AssertFunc(func() bool { return len(argv) < 2 || env.IsValidIdentifier(argv[1]) }, validator.Format("unset: argument must be a valid identifier"))
	if err := v.Err(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return Result{Status: 1}
	}

	if !r.vars.Unset(argv[1]) {
		fmt.Fprintf(os.Stderr, "unset: `%s': no such variable\n", argv[1])
		return Result{Status: 1}
	}
	return Result{}
}

func (r *Registry) specifier(argv []string) string {
	if len(argv) < 2 {
		return ""
	}
	return argv[1]
}

func (r *Registry) jobs() Result {
	r.applyPending()
	r.table.List(os.Stderr)
	return Result{}
}

func (r *Registry) fg(argv []string) Result {
	r.applyPending()

	j := r.table.Find(r.specifier(argv))
	if j == nil {
		fmt.Fprintln(os.Stderr, "fg: no such job")
		return Result{Status: 1}
	}
	if j.IsCompleted() {
		fmt.Fprintf(os.Stderr, "fg: job %d already completed\n", j.Num)
		return Result{Status: 1}
	}

	status, err := r.jc.Continue(j, false)
	if err != nil {
		fmt.Fprintf(os.Stderr, "fg: %v\n", err)
		return Result{Status: 1}
	}
	return Result{Status: status}
}

func (r *Registry) bg(argv []string) Result {
	r.applyPending()

	j := r.table.Find(r.specifier(argv))
	if j == nil {
		fmt.Fprintln(os.Stderr, "bg: no such job")
		return Result{Status: 1}
	}
	if j.IsCompleted() {
		fmt.Fprintf(os.Stderr, "bg: job %d already completed\n", j.Num)
		return Result{Status: 1}
	}

	if _, err := r.jc.Continue(j, true); err != nil {
		fmt.Fprintf(os.Stderr, "bg: %v\n", err)
		return Result{Status: 1}
	}
	return Result{}
}

// applyPending brings the job table up to date before a job builtin
// acts, so the builtin's decision is based on every child transition
// observed so far. Notification stays deferred to the per-prompt pass.
func (r *Registry) applyPending() {
	reaper.ApplyPending(r.pq, r.table.Jobs())
}
