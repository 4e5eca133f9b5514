// Package convention defines the naming-convention rules that map parameter
// names like "AgeGreaterThan" or "NameStartsWith" to SQL predicate templates
// without the caller declaring a filter explicitly. A Registry of rules is
// built once at startup and read concurrently by every request afterwards.
package convention

import (
	"fmt"
	"strings"
)

// Term selects how a condition combines with the rest of the WHERE clause.
type Term int

const (
	// TermDefault defers to the request type's default term.
	TermDefault Term = iota
	// TermAnd combines the condition with AND.
	TermAnd
	// TermOr combines the condition with OR.
	TermOr
	// TermEnsure attaches the condition to the query's permanent predicate
	// set, where later raw-SQL overrides cannot remove it.
	TermEnsure
)

// ValueStyle describes how many bound-value slots a filter template consumes.
type ValueStyle int

const (
	// ValueStyleSingle binds one scalar via {Value}.
	ValueStyleSingle ValueStyle = iota
	// ValueStyleList binds a whole sequence via {Values}; the backend expands
	// it to an IN (...) list.
	ValueStyleList
	// ValueStyleMultiple binds successive sequence elements via {Value1}..{ValueN}.
	ValueStyleMultiple
)

// SQL templates for the seeded operator conventions. Placeholders {Field},
// {Value}, {Values} and {Value1}..{ValueN} are substituted at condition-build
// time; the substituted values are always bound, never interpolated.
const (
	TemplateGreaterThan         = "{Field} > {Value}"
	TemplateGreaterThanOrEqual  = "{Field} >= {Value}"
	TemplateLessThan            = "{Field} < {Value}"
	TemplateLessThanOrEqual     = "{Field} <= {Value}"
	TemplateNotEqual            = "{Field} <> {Value}"
	TemplateCaseInsensitiveLike = "UPPER({Field}) LIKE UPPER({Value})"
	TemplateCaseSensitiveLike   = "{Field} LIKE {Value}"
	TemplateIn                  = "{Field} IN ({Values})"
	TemplateBetween             = "{Field} BETWEEN {Value1} AND {Value2}"
)

// Filter is one naming-convention's SQL shape: either a plain operand
// ("{column} {operand} ?") or a full template with placeholder substitution.
// Instances are derived once, at registration time, and never recomputed per
// request.
type Filter struct {
	Term        Term
	Operand     string     // Defaults to "=" when empty and no Template is set
	Template    string     // Replaces the whole fragment when set
	Field       string     // Field override for explicit per-request declarations
	ValueFormat string     // printf-style single-placeholder format applied to each bound scalar
	ValueStyle  ValueStyle // Derived from Template by Init
	ValueArity  int        // Number of {ValueN} slots; fixed at registration time
}

// Init derives ValueStyle and ValueArity from the filter's template. It must
// be called exactly once before the filter is used to build conditions; the
// Registry builder does this for every rule it registers.
func (f *Filter) Init() *Filter {
	f.ValueStyle = ValueStyleSingle
	if f.Template == "" {
		return f
	}

	arity := 0
	for strings.Contains(f.Template, placeholder(arity+1)) {
		arity++
	}
	if arity > 0 {
		f.ValueStyle = ValueStyleMultiple
		f.ValueArity = arity
		return f
	}
	if strings.Contains(f.Template, "{Values}") {
		f.ValueStyle = ValueStyleList
	}
	return f
}

// Combine merges an explicitly declared per-field filter with the convention
// the field matcher resolved, preferring the declaration's settings. Neither
// input is mutated.
func (f *Filter) Combine(conv *Filter) *Filter {
	if conv == nil {
		return f
	}
	merged := &Filter{
		Term:        f.Term,
		Operand:     coalesce(f.Operand, conv.Operand),
		Template:    coalesce(f.Template, conv.Template),
		Field:       coalesce(f.Field, conv.Field),
		ValueFormat: coalesce(f.ValueFormat, conv.ValueFormat),
	}
	return merged.Init()
}

func placeholder(n int) string {
	return fmt.Sprintf("{Value%d}", n)
}

func coalesce(a, b string) string {
	if a != "" {
		return a
	}
	return b
}
