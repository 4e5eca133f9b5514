package autoquery

import "strings"

// Command is one parsed entry of a request's include list, e.g.
// "COUNT(DISTINCT City) as Cities" parses to Name "COUNT", Args
// ["DISTINCT City"], Suffix " as Cities".
type Command struct {
	Name   string
	Args   []string
	Suffix string
}

// String reassembles the command into its canonical textual form.
func (c *Command) String() string {
	var sb strings.Builder
	sb.WriteString(c.Name)
	if len(c.Args) > 0 {
		sb.WriteByte('(')
		for i, a := range c.Args {
			if i > 0 {
				sb.WriteByte(',')
			}
			sb.WriteString(a)
		}
		sb.WriteByte(')')
	}
	sb.WriteString(c.Suffix)
	return sb.String()
}

// ParseCommands splits a comma-separated include expression into commands.
// Commas inside parentheses do not split; text after a command's closing
// parenthesis up to the next top-level comma becomes its suffix. Bare words
// with no parentheses become commands with no args, so "total" parses the
// same way "count(*)" does.
func ParseCommands(expression string) []*Command {
	var out []*Command
	rest := expression
	for rest != "" {
		var segment string
		segment, rest = splitTopLevel(rest)
		segment = strings.TrimSpace(segment)
		if segment == "" {
			continue
		}
		out = append(out, parseCommand(segment))
	}
	return out
}

// splitTopLevel cuts the expression at the first comma not nested inside
// parentheses.
func splitTopLevel(s string) (segment, rest string) {
	depth := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '(':
			depth++
		case ')':
			if depth > 0 {
				depth--
			}
		case ',':
			if depth == 0 {
				return s[:i], s[i+1:]
			}
		}
	}
	return s, ""
}

func parseCommand(segment string) *Command {
	open := strings.IndexByte(segment, '(')
	if open < 0 {
		return &Command{Name: strings.TrimSpace(segment)}
	}

	cmd := &Command{Name: strings.TrimSpace(segment[:open])}

	depth := 1
	argStart := open + 1
	i := argStart
	for ; i < len(segment) && depth > 0; i++ {
		switch segment[i] {
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				cmd.appendArg(segment[argStart:i])
			}
		case ',':
			if depth == 1 {
				cmd.appendArg(segment[argStart:i])
				argStart = i + 1
			}
		}
	}
	if depth > 0 {
		// Unterminated arg list: keep what we have.
		cmd.appendArg(segment[argStart:])
	}
	if i < len(segment) {
		cmd.Suffix = segment[i:]
	}
	return cmd
}

func (c *Command) appendArg(raw string) {
	arg := strings.TrimSpace(raw)
	if arg != "" {
		c.Args = append(c.Args, arg)
	}
}
