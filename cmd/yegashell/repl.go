package main

import (
	"bufio"
	"fmt"
	"io"
	"os"

	"github.com/pkg/errors"

	"github.com/tjper/yegashell/internal/shell/builtin"
	"github.com/tjper/yegashell/internal/shell/env"
	"github.com/tjper/yegashell/internal/shell/job"
	"github.com/tjper/yegashell/internal/shell/jobctl"
	"github.com/tjper/yegashell/internal/shell/lang"
	"github.com/tjper/yegashell/internal/shell/pending"
	"github.com/tjper/yegashell/internal/shell/pipeline"
	"github.com/tjper/yegashell/internal/shell/reaper"
	"github.com/tjper/yegashell/internal/shell/signals"
)

const (
	ecLineError = 2
)

// Shell wires the REPL's collaborators together: prompt, tokenize,
// parse, execute, repeat.
type Shell struct {
	vars    *env.Table
	jobs    *job.Table
	pending *pending.Queue
	sig     *signals.Controller
	jc      *jobctl.Controller
	builtin *builtin.Registry

	lastExitStatus int
	in             *bufio.Reader
}

// NewShell constructs a Shell and installs its signal handlers.
func NewShell() (*Shell, error) {
	vars := env.New()
	jobs := job.NewTable()
	pq := pending.New()

	sig := signals.New(pq)
	if err := sig.Install(); err != nil {
		return nil, errors.Wrap(err, "install signal handlers")
	}

	builder := pipeline.New(vars)
	jc := jobctl.New(builder, jobs, sig)
	reg := builtin.New(jobs, jc, vars, pq)

	return &Shell{
		vars:    vars,
		jobs:    jobs,
		pending: pq,
		sig:     sig,
		jc:      jc,
		builtin: reg,
		in:      bufio.NewReader(os.Stdin),
	}, nil
}

// Close releases the Shell's resources: every live job's process group
// is sent SIGHUP/SIGCONT/SIGTERM so a stopped background job does not
// survive the shell that created it.
func (s *Shell) Close() {
	s.jobs.KillAll()
	s.sig.Stop()
}

// RunLine executes a single command line (the -c flag path) and
// returns the process exit status to use as the program's own.
func (s *Shell) RunLine(line string) int {
	if exit, status := s.execute(line); exit {
		return status
	}
	return s.lastExitStatus
}

// REPL runs the interactive prompt/read/execute loop until EOF (Ctrl-D)
// or the exit builtin.
func (s *Shell) REPL() int {
	for {
		s.notifyBackground()

		fmt.Fprint(os.Stdout, "YegaShell> ")
		line, err := s.in.ReadString('\n')
		if err != nil {
			if err == io.EOF {
				if line == "" {
					fmt.Fprintln(os.Stderr, "Detected EOF (Ctrl+D), exiting...")
					return s.lastExitStatus
				}
			} else {
				fmt.Fprintf(os.Stderr, "yegashell: read error: %v\n", err)
				return ecLineError
			}
		}

		if exit, status := s.execute(line); exit {
			return status
		}
		if err == io.EOF {
			fmt.Fprintln(os.Stderr, "Detected EOF (Ctrl+D), exiting...")
			return s.lastExitStatus
		}
	}
}

// execute runs one command line: tokenize, parse, expand, and either
// dispatch to a builtin or hand the pipeline to the JobController. It
// reports (true, status) when the line invoked the exit builtin.
func (s *Shell) execute(line string) (exit bool, status int) {
	trimmed := trimNewline(line)
	if trimmed == "" {
		return false, 0
	}

	tokens, err := lang.Tokenize(trimmed)
	if err != nil {
		fmt.Fprintf(os.Stderr, "yegashell: %v\n", err)
		return false, 0
	}
	if len(tokens) == 0 {
		return false, 0
	}

	p, err := lang.ParsePipeline(tokens, trimmed)
	if err != nil {
		fmt.Fprintf(os.Stderr, "yegashell: %v\n", err)
		return false, 0
	}

	for i, cmd := range p.Commands {
		p.Commands[i] = lang.Expand(cmd, s.vars, os.Getpid(), s.lastExitStatus)
	}

	if len(p.Commands) == 1 && s.builtin.IsBuiltin(p.Commands[0].Argv[0]) {
		result := s.builtin.Run(p.Commands[0].Argv)
		s.lastExitStatus = result.Status
		return result.Exit, result.Status
	}

	status, err = s.jc.Run(p)
	if err != nil {
		fmt.Fprintf(os.Stderr, "yegashell: %v\n", err)
		return false, 0
	}
	if !p.Background {
		s.lastExitStatus = status
	}
	return false, 0
}

// notifyBackground reports completions/stops of background jobs before
// the next prompt. The child-changed flag gates the pass: job state
// only moves when a SIGCHLD has fired since the last prompt.
func (s *Shell) notifyBackground() {
	if !s.sig.ChildChanged() {
		return
	}
	reaper.ApplyPending(s.pending, s.jobs.Jobs())
	s.jobs.NotifyAll(os.Stderr)
}

func trimNewline(line string) string {
	for len(line) > 0 && (line[len(line)-1] == '\n' || line[len(line)-1] == '\r') {
		line = line[:len(line)-1]
	}
	return line
}
