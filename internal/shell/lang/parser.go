package lang

import (
	"fmt"
	"strings"

	"github.com/tjper/yegashell/internal/shell/job"
)

// ParsePipeline turns a tokenized command line into a job.Pipeline:
// pipe-delimited command segments, per-segment redirections, and the
// trailing background marker. The pipeline's raw text keeps the line
// as typed minus any trailing '&', for use in job listings.
func ParsePipeline(tokens []string, rawText string) (job.Pipeline, error) {
	if len(tokens) == 0 {
		return job.Pipeline{}, fmt.Errorf("parser: empty command")
	}
	if err := validateBackground(tokens); err != nil {
		return job.Pipeline{}, err
	}

	var commands []job.Command
	background := false
	start := 0
	for i := 0; i <= len(tokens); i++ {
		if i == len(tokens) || tokens[i] == "|" {
			segment := tokens[start:i]
			if len(segment) == 0 {
				return job.Pipeline{}, fmt.Errorf("parser: empty command between pipes")
			}
			cmd, err := parseCommand(segment)
			if err != nil {
				return job.Pipeline{}, err
			}
			if cmd.Background {
				background = true
			}
			commands = append(commands, cmd)
			start = i + 1
		}
	}

	trimmed := strings.TrimRight(rawText, " \t")
	trimmed = strings.TrimSuffix(trimmed, "&")
	trimmed = strings.TrimRight(trimmed, " \t")

	return job.Pipeline{
		Commands:   commands,
		Background: background,
		RawText:    trimmed,
	}, nil
}

// validateBackground enforces that '&' never appears except as the
// final token of the whole line.
func validateBackground(tokens []string) error {
	for i, tok := range tokens {
		if tok == "&" && i != len(tokens)-1 {
			return fmt.Errorf("parser: syntax error on '&': must be last")
		}
	}
	return nil
}

// parseCommand parses one pipe segment into a Command. The first token
// of a segment must be an ordinary word; a bare redirection or
// background operator there is a syntax error.
func parseCommand(tokens []string) (job.Command, error) {
	if isOperator(tokens[0]) {
		return job.Command{}, fmt.Errorf("parser: syntax error, first token is invalid")
	}

	cmd := job.Command{Argv: []string{tokens[0]}}

	i := 1
	for i < len(tokens) {
		tok := tokens[i]
		i++
		switch tok {
		case "&":
			if i != len(tokens) {
				return job.Command{}, fmt.Errorf("parser: syntax error, '&' must be the last token")
			}
			cmd.Background = true
		case ">>":
			if i >= len(tokens) || isOperator(tokens[i]) {
				return job.Command{}, fmt.Errorf("parser: syntax error after '>>'")
			}
			cmd.Outfile = tokens[i]
			cmd.AppendOutput = true
			i++
		case ">":
			if i >= len(tokens) || isOperator(tokens[i]) {
				return job.Command{}, fmt.Errorf("parser: syntax error after '>'")
			}
			cmd.Outfile = tokens[i]
			i++
		case "<":
			if i >= len(tokens) || isOperator(tokens[i]) {
				return job.Command{}, fmt.Errorf("parser: syntax error after '<'")
			}
			cmd.Infile = tokens[i]
			i++
		default:
			cmd.Argv = append(cmd.Argv, tok)
		}
	}
	return cmd, nil
}

func isOperator(tok string) bool {
	switch tok {
	case ">", "<", "&", ">>":
		return true
	default:
		return false
	}
}
