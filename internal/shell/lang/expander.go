package lang

import (
	"strconv"
	"unicode"

	"github.com/tjper/yegashell/internal/shell/env"
	"github.com/tjper/yegashell/internal/shell/job"
)

// Expand applies variable expansion to a Command's argv (excluding
// argv[0], which is never expanded) and to its redirection targets.
// shellPid backs "$$" and lastExitStatus backs "$?"; everything else is
// looked up through vars.
//
// This runs once in the parent before any stage starts: "$$" names the
// shell's own pid, not a per-child value, and Go's os/exec gives no
// hook to run an expansion pass inside a child after it starts anyway.
func Expand(cmd job.Command, vars *env.Table, shellPid, lastExitStatus int) job.Command {
	out := cmd
	out.Argv = make([]string, len(cmd.Argv))
	copy(out.Argv, cmd.Argv)

	for i := 1; i < len(out.Argv); i++ {
		out.Argv[i] = expandToken(out.Argv[i], vars, shellPid, lastExitStatus)
	}
	if out.Infile != "" {
		out.Infile = expandToken(out.Infile, vars, shellPid, lastExitStatus)
	}
	if out.Outfile != "" {
		out.Outfile = expandToken(out.Outfile, vars, shellPid, lastExitStatus)
	}
	return out
}

func expandToken(token string, vars *env.Table, shellPid, lastExitStatus int) string {
	if token == "" || token[0] != '$' {
		return token
	}
	switch token {
	case "$$":
		return strconv.Itoa(shellPid)
	case "$?":
		return strconv.Itoa(lastExitStatus)
	}
	return expandVariable(token, vars)
}

// expandVariable expands "$NAME<rest>" to "<value of NAME><rest>". An
// invalid or missing name substitutes the empty string.
func expandVariable(token string, vars *env.Table) string {
	name, rest := scanVarName(token[1:])
	if name == "" {
		return rest
	}
	value, _ := vars.Lookup(name)
	return value + rest
}

func scanVarName(s string) (name, rest string) {
	if s == "" {
		return "", s
	}
	first := rune(s[0])
	if !(unicode.IsLetter(first) || first == '_') {
		return "", s
	}
	i := 0
	for i < len(s) {
		r := rune(s[i])
		if !(unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_') {
			break
		}
		i++
	}
	return s[:i], s[i:]
}
