package autoquery

import (
	"fmt"
	"strings"
)

// sqlAggregateFunctions are the command names the aggregate response filter
// recognizes, lowercased.
var sqlAggregateFunctions = map[string]struct{}{
	"avg":   {},
	"count": {},
	"first": {},
	"last":  {},
	"max":   {},
	"min":   {},
	"sum":   {},
}

// includeAggregates is the built-in response filter that turns aggregate
// include commands into a single extra SELECT over a clause-stripped clone of
// the base expression and folds the scalar results into Response.Meta. Non
// aggregate commands are left in fc.Commands untouched.
func includeAggregates(fc *FilterContext) error {
	var entries []aggregateEntry
	var remaining []*Command

	for _, cmd := range fc.Commands {
		if _, ok := sqlAggregateFunctions[strings.ToLower(cmd.Name)]; !ok {
			remaining = append(remaining, cmd)
			continue
		}
		entries = append(entries, buildAggregateEntry(fc, cmd))
	}
	if len(entries) == 0 {
		return nil
	}
	fc.Commands = remaining

	selectList := make([]string, len(entries))
	for i, e := range entries {
		selectList[i] = e.sql
	}

	expr := fc.Expression.Clone().
		ClearLimits().
		ClearOrderBy().
		UnsafeSelect(strings.Join(selectList, ", "))

	rows, err := fc.Executor.Select(fc.Context, expr)
	if err != nil {
		return fmt.Errorf("aggregate query: %w", err)
	}
	if len(rows) == 0 {
		return nil
	}
	row := rows[0]

	if fc.Response.Meta == nil {
		fc.Response.Meta = make(map[string]string, len(entries))
	}
	for _, e := range entries {
		value, ok := row[e.column]
		if !ok || value == nil {
			continue
		}
		fc.Response.Meta[e.label] = fmt.Sprintf("%v", value)
	}
	return nil
}

// aggregateEntry is one rendered aggregate select-list item. column is the
// result column label the backend will report; label is the Meta key.
type aggregateEntry struct {
	sql    string
	column string
	label  string
}

// buildAggregateEntry renders one aggregate command. Field arguments are
// rewritten to dialect-quoted columns; "*" and numeric literals pass through;
// anything else is treated as a string literal so that unmatched text can
// never reach the select list unquoted.
func buildAggregateEntry(fc *FilterContext, cmd *Command) aggregateEntry {
	dialect := fc.Expression.Dialect()
	original := cmd.String()

	arg := "*"
	if len(cmd.Args) > 0 {
		arg = cmd.Args[0]
	}

	modifier := ""
	if rest, ok := cutPrefixFold(arg, "distinct "); ok {
		modifier = "DISTINCT "
		arg = strings.TrimSpace(rest)
	}

	switch {
	case arg == "*":
	case isNumericLiteral(arg):
	default:
		if entity, field := fc.Expression.FirstMatchingField(arg); field != nil {
			arg = dialect.QuoteColumn(entity, field)
		} else {
			arg = dialect.QuoteValue(arg)
		}
	}

	label := original
	if alias, ok := cutPrefixFold(strings.TrimSpace(cmd.Suffix), "as "); ok {
		label = strings.TrimSpace(alias)
	}

	column := label
	if !isSafeVarName(column) {
		column = original
	}

	sql := strings.ToUpper(cmd.Name) + "(" + modifier + arg + ") " + dialect.QuoteIdentifier(column)
	return aggregateEntry{sql: sql, column: column, label: label}
}

func isNumericLiteral(s string) bool {
	if s == "" {
		return false
	}
	dot := false
	for i, r := range s {
		switch {
		case r >= '0' && r <= '9':
		case r == '.' && !dot && i > 0:
			dot = true
		default:
			return false
		}
	}
	return true
}

func isSafeVarName(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
		default:
			return false
		}
	}
	return true
}
