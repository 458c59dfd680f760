// Command yegashell is an interactive POSIX-style shell with
// pipelines, I/O redirection, and job control.
package main

import (
	"flag"
	"fmt"
	"os"
	"strings"
)

const (
	ecSuccess = iota
	// ecUnrecognized indicates an unrecognized flag or argument combination.
	ecUnrecognized
	// ecSignalSetup indicates signal installation failed.
	ecSignalSetup
)

var commandFlag = flag.String("c", "", "run a single command line and exit, instead of starting the REPL")

func main() {
	os.Exit(Run())
}

// Run is the entrypoint of the YegaShell CLI.
func Run() int {
	flag.Parse()

	if len(flag.Args()) > 0 {
		return help(fmt.Sprintf("Unrecognized argument %q.", flag.Args()[0]))
	}

	shell, err := NewShell()
	if err != nil {
		fmt.Fprintf(os.Stderr, "yegashell: %v\n", err)
		return ecSignalSetup
	}
	defer shell.Close()

	if *commandFlag != "" {
		return shell.RunLine(*commandFlag)
	}
	return shell.REPL()
}

// help outputs a general overview of the yegashell executable to the
// user.
func help(text string) int {
	var b strings.Builder
	if text != "" {
		fmt.Fprintf(&b, "\nNotice: %s", text)
	}
	b.WriteString(`

YegaShell is an interactive POSIX-style shell supporting pipelines,
I/O redirection, background jobs, and job control (jobs/fg/bg).

Usage:
  yegashell [-c "command line"]

Flags:
  -c    run a single command line and exit, instead of starting the REPL
`)
	fmt.Fprint(os.Stdout, b.String())
	return ecUnrecognized
}
