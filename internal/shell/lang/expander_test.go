package lang

import (
	"os"
	"strconv"
	"testing"

	"github.com/tjper/yegashell/internal/shell/env"
	"github.com/tjper/yegashell/internal/shell/job"
)

func TestExpand(t *testing.T) {
	vars := env.New()
	vars.Set("GREETING", "hello", false)

	tests := map[string]struct {
		cmd            job.Command
		lastExitStatus int
		exp            job.Command
	}{
		"dollar-dollar becomes shell pid": {
			cmd: job.Command{Argv: []string{"echo", "$$"}},
			exp: job.Command{Argv: []string{"echo", strconv.Itoa(os.Getpid())}},
		},
		"dollar-question becomes last exit status": {
			cmd:            job.Command{Argv: []string{"echo", "$?"}},
			lastExitStatus: 7,
			exp:            job.Command{Argv: []string{"echo", "7"}},
		},
		"named variable expands from shell table": {
			cmd: job.Command{Argv: []string{"echo", "$GREETING"}},
			exp: job.Command{Argv: []string{"echo", "hello"}},
		},
		"missing variable expands to empty string": {
			cmd: job.Command{Argv: []string{"echo", "$DOES_NOT_EXIST"}},
			exp: job.Command{Argv: []string{"echo", ""}},
		},
		"argv0 is never expanded": {
			cmd: job.Command{Argv: []string{"$GREETING"}},
			exp: job.Command{Argv: []string{"$GREETING"}},
		},
		"redirection targets expand too": {
			cmd: job.Command{Argv: []string{"cat"}, Outfile: "$GREETING"},
			exp: job.Command{Argv: []string{"cat"}, Outfile: "hello"},
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			actual := Expand(test.cmd, vars, os.Getpid(), test.lastExitStatus)
			if actual.Outfile != test.exp.Outfile {
				t.Fatalf("unexpected outfile; actual: %q, expected: %q", actual.Outfile, test.exp.Outfile)
			}
			if len(actual.Argv) != len(test.exp.Argv) {
				t.Fatalf("unexpected argv; actual: %#v, expected: %#v", actual.Argv, test.exp.Argv)
			}
			for i := range actual.Argv {
				if actual.Argv[i] != test.exp.Argv[i] {
					t.Fatalf("unexpected argv[%d]; actual: %q, expected: %q", i, actual.Argv[i], test.exp.Argv[i])
				}
			}
		})
	}
}
