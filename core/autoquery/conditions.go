package autoquery

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/asaidimu/go-autoquery/core/convention"
	"github.com/asaidimu/go-autoquery/core/query"
)

// ArgumentError reports a filter that received a value incompatible with its
// template, e.g. a two-slot BETWEEN given one value. It is a construction-time
// rejection surfaced to the caller as a client error.
type ArgumentError struct {
	Field string
	Msg   string
}

func (e *ArgumentError) Error() string {
	return fmt.Sprintf("invalid filter value for %q: %s", e.Field, e.Msg)
}

// buildCondition produces one parameterized predicate for a matched field.
// A nil result with a nil error means "no filter applied": nil values under
// list/multiple-style filters and empty collections are deliberate no-ops.
func buildCondition(defaultTerm query.Term, quotedColumn string, value any, filter *convention.Filter) (*query.Condition, error) {
	seq, isSeq := asSequence(value)
	if isSeq && len(seq) == 0 {
		return nil, nil
	}

	term := defaultTerm
	ensure := false
	if filter != nil {
		switch filter.Term {
		case convention.TermAnd:
			term = query.TermAnd
		case convention.TermOr:
			term = query.TermOr
		case convention.TermEnsure:
			term = query.TermAnd
			ensure = true
		}
	}

	if value == nil {
		if filter != nil && filter.ValueStyle != convention.ValueStyleSingle {
			return nil, nil
		}
		return &query.Condition{Term: term, Fragment: quotedColumn + " IS NULL"}, nil
	}

	if filter == nil {
		if isSeq {
			return &query.Condition{
				Term:     term,
				Fragment: quotedColumn + " IN (?)",
				Values:   []any{query.ListValue(seq)},
			}, nil
		}
		return &query.Condition{
			Term:     term,
			Fragment: quotedColumn + " = ?",
			Values:   []any{value},
		}, nil
	}

	operand := filter.Operand
	if operand == "" {
		operand = "="
	}

	if filter.Template == "" {
		v := value
		if isSeq {
			v = query.ListValue(seq)
		} else if filter.ValueFormat != "" {
			v = fmt.Sprintf(filter.ValueFormat, v)
		}
		return &query.Condition{
			Term:     markEnsure(term, ensure),
			Fragment: "(" + quotedColumn + " " + operand + " ?)",
			Values:   []any{v},
		}, nil
	}

	fragment := strings.ReplaceAll(filter.Template, "{Field}", quotedColumn)

	switch filter.ValueStyle {
	case convention.ValueStyleMultiple:
		if !isSeq {
			return nil, &ArgumentError{Field: filter.Field, Msg: fmt.Sprintf("requires %d values", filter.ValueArity)}
		}
		if len(seq) < filter.ValueArity {
			return nil, &ArgumentError{Field: filter.Field, Msg: fmt.Sprintf("requires %d values, got %d", filter.ValueArity, len(seq))}
		}
		values := make([]any, filter.ValueArity)
		for i := 0; i < filter.ValueArity; i++ {
			fragment = strings.Replace(fragment, fmt.Sprintf("{Value%d}", i+1), "?", 1)
			v := seq[i]
			if filter.ValueFormat != "" {
				v = fmt.Sprintf(filter.ValueFormat, v)
			}
			values[i] = v
		}
		return &query.Condition{Term: markEnsure(term, ensure), Fragment: fragment, Values: values}, nil

	case convention.ValueStyleList:
		if !isSeq {
			return nil, &ArgumentError{Field: filter.Field, Msg: "expects a list of values"}
		}
		fragment = strings.ReplaceAll(fragment, "{Values}", "?")
		return &query.Condition{
			Term:     markEnsure(term, ensure),
			Fragment: fragment,
			Values:   []any{query.ListValue(seq)},
		}, nil

	default:
		fragment = strings.ReplaceAll(fragment, "{Value}", "?")
		v := value
		if filter.ValueFormat != "" {
			v = fmt.Sprintf(filter.ValueFormat, v)
		}
		return &query.Condition{Term: markEnsure(term, ensure), Fragment: fragment, Values: []any{v}}, nil
	}
}

// ensureTerm is a private marker: ensured conditions still carry AND but are
// attached to the permanent predicate set by the assembler.
const ensureTerm query.Term = "ENSURE"

func markEnsure(term query.Term, ensure bool) query.Term {
	if ensure {
		return ensureTerm
	}
	return term
}

// asSequence normalizes slice values to []any. Strings and byte slices are
// scalars, not sequences.
func asSequence(value any) ([]any, bool) {
	switch v := value.(type) {
	case nil:
		return nil, false
	case string, []byte:
		return nil, false
	case []any:
		return v, true
	case []string:
		out := make([]any, len(v))
		for i, x := range v {
			out[i] = x
		}
		return out, true
	case []int:
		out := make([]any, len(v))
		for i, x := range v {
			out[i] = x
		}
		return out, true
	case []int64:
		out := make([]any, len(v))
		for i, x := range v {
			out[i] = x
		}
		return out, true
	case []float64:
		out := make([]any, len(v))
		for i, x := range v {
			out[i] = x
		}
		return out, true
	}

	rv := reflect.ValueOf(value)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out, true
}
