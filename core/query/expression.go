package query

import (
	"fmt"
	"strings"

	"github.com/asaidimu/go-autoquery/core/schema"
)

// Term says how a condition combines with the rest of the WHERE clause.
type Term string

const (
	TermAnd Term = "AND"
	TermOr  Term = "OR"
)

// ListValue marks a bound value as a whole sequence occupying a single slot.
// The backend expands it into an IN (...) placeholder list at render time.
type ListValue []any

// Condition is a single WHERE predicate ready for attachment. Fragment holds
// "?" bound-value slots only; Values are substituted positionally by the
// backend, never concatenated into the fragment. This is the SQL-injection
// boundary.
type Condition struct {
	Term     Term
	Fragment string
	Values   []any
}

// JoinKind is the SQL join flavor of a join pair.
type JoinKind string

const (
	JoinInner JoinKind = "INNER JOIN"
	JoinLeft  JoinKind = "LEFT JOIN"
)

// Join is one resolved join clause between two entities of a declared chain.
type Join struct {
	Kind JoinKind
	From *schema.EntityDefinition
	To   *schema.EntityDefinition
}

// OrderField is one ORDER BY entry.
type OrderField struct {
	Field string
	Desc  bool
}

// SelectExpression is the abstract query the engine assembles and the backend
// executes. It distinguishes the normal combinable predicate set (conditions)
// from the permanent one (ensures), which survives raw-SQL overrides.
type SelectExpression struct {
	dialect    Dialect
	base       *schema.EntityDefinition
	joins      []Join
	conditions []Condition
	ensures    []Condition

	selectFields []string
	distinct     bool
	rawSelect    string
	rawFrom      string
	rawJoin      string
	rawWhere     string

	orderBy []OrderField
	offset  *int
	limit   *int
}

// NewSelectExpression starts an expression selecting from a base entity.
func NewSelectExpression(dialect Dialect, base *schema.EntityDefinition) *SelectExpression {
	return &SelectExpression{dialect: dialect, base: base}
}

// Dialect returns the quoting dialect the expression was created with.
func (e *SelectExpression) Dialect() Dialect { return e.dialect }

// Base returns the entity the expression selects from.
func (e *SelectExpression) Base() *schema.EntityDefinition { return e.base }

// Joins returns the attached join clauses in attachment order.
func (e *SelectExpression) Joins() []Join { return e.joins }

// Conditions returns the combinable predicate set in attachment order.
func (e *SelectExpression) Conditions() []Condition { return e.conditions }

// Ensures returns the permanent predicate set in attachment order.
func (e *SelectExpression) Ensures() []Condition { return e.ensures }

// SelectFields returns the explicit projection, or nil for the full entity.
func (e *SelectExpression) SelectFields() []string { return e.selectFields }

// Distinct reports whether the explicit projection is DISTINCT.
func (e *SelectExpression) Distinct() bool { return e.distinct }

// RawSelect returns the verbatim select list, when one was admitted.
func (e *SelectExpression) RawSelect() string { return e.rawSelect }

// RawFrom returns the verbatim FROM clause, when one was admitted.
func (e *SelectExpression) RawFrom() string { return e.rawFrom }

// RawJoin returns the verbatim join clause, when one was admitted.
func (e *SelectExpression) RawJoin() string { return e.rawJoin }

// RawWhere returns the verbatim WHERE fragment, when one was admitted.
func (e *SelectExpression) RawWhere() string { return e.rawWhere }

// OrderBy returns the ORDER BY entries in attachment order.
func (e *SelectExpression) OrderBy() []OrderField { return e.orderBy }

// Offset returns the row offset, or nil when unset.
func (e *SelectExpression) Offset() *int { return e.offset }

// Limit returns the row limit, or nil when unset.
func (e *SelectExpression) Limit() *int { return e.limit }

// AddCondition attaches a predicate to the combinable set.
func (e *SelectExpression) AddCondition(term Term, fragment string, values ...any) *SelectExpression {
	if term == "" {
		term = TermAnd
	}
	e.conditions = append(e.conditions, Condition{Term: term, Fragment: fragment, Values: values})
	return e
}

// Ensure attaches a predicate to the permanent set. Ensured predicates are
// always ANDed onto the final WHERE clause and cannot be displaced by later
// raw-SQL overrides.
func (e *SelectExpression) Ensure(fragment string, values ...any) *SelectExpression {
	e.ensures = append(e.ensures, Condition{Term: TermAnd, Fragment: fragment, Values: values})
	return e
}

// HasWhere reports whether any predicate source is present. Used for the
// empty-OR guard.
func (e *SelectExpression) HasWhere() bool {
	return len(e.conditions) > 0 || len(e.ensures) > 0 || e.rawWhere != ""
}

// Join attaches one inner-join pair.
func (e *SelectExpression) Join(from, to *schema.EntityDefinition) *SelectExpression {
	e.joins = append(e.joins, Join{Kind: JoinInner, From: from, To: to})
	return e
}

// LeftJoin attaches one left-join pair.
func (e *SelectExpression) LeftJoin(from, to *schema.EntityDefinition) *SelectExpression {
	e.joins = append(e.joins, Join{Kind: JoinLeft, From: from, To: to})
	return e
}

// SetLimits applies pagination. Either argument may be nil.
func (e *SelectExpression) SetLimits(skip, take *int) *SelectExpression {
	e.offset = skip
	e.limit = take
	return e
}

// ClearLimits removes pagination, for clause-stripped clones.
func (e *SelectExpression) ClearLimits() *SelectExpression {
	e.offset = nil
	e.limit = nil
	return e
}

// ClearOrderBy removes ordering, for clause-stripped clones.
func (e *SelectExpression) ClearOrderBy() *SelectExpression {
	e.orderBy = nil
	return e
}

// OrderByFields appends ascending order entries. A "-" name prefix flips the
// entry to descending. Unknown fields are rejected.
func (e *SelectExpression) OrderByFields(names ...string) error {
	return e.appendOrderBy(names, false)
}

// OrderByFieldsDescending appends descending order entries.
func (e *SelectExpression) OrderByFieldsDescending(names ...string) error {
	return e.appendOrderBy(names, true)
}

func (e *SelectExpression) appendOrderBy(names []string, desc bool) error {
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		entryDesc := desc
		if strings.HasPrefix(name, "-") {
			entryDesc = !entryDesc
			name = name[1:]
		}
		_, field := e.FirstMatchingField(name)
		if field == nil {
			return fmt.Errorf("unknown order field %q on %q", name, e.base.Name)
		}
		e.orderBy = append(e.orderBy, OrderField{Field: field.Name, Desc: entryDesc})
	}
	return nil
}

// Select sets the explicit projection.
func (e *SelectExpression) Select(fields []string) *SelectExpression {
	e.selectFields = fields
	e.distinct = false
	return e
}

// SelectDistinct sets the explicit projection with DISTINCT.
func (e *SelectExpression) SelectDistinct(fields []string) *SelectExpression {
	e.selectFields = fields
	e.distinct = true
	return e
}

// UnsafeSelect splices a verbatim select list into the expression. Callers
// are responsible for the fragment's provenance: the engine only passes text
// it constructed itself or that survived VerifyFragment.
func (e *SelectExpression) UnsafeSelect(sql string) *SelectExpression {
	e.rawSelect = sql
	return e
}

// UnsafeFrom splices a verbatim FROM clause into the expression.
func (e *SelectExpression) UnsafeFrom(sql string) *SelectExpression {
	e.rawFrom = sql
	return e
}

// UnsafeJoin splices a verbatim join clause rendered after the declared
// joins.
func (e *SelectExpression) UnsafeJoin(sql string) *SelectExpression {
	e.rawJoin = sql
	return e
}

// UnsafeWhere splices a verbatim WHERE fragment into the expression. It is
// combined with, not substituted for, the ensured predicate set.
func (e *SelectExpression) UnsafeWhere(sql string) *SelectExpression {
	e.rawWhere = sql
	return e
}

// Clone returns an independent copy of the expression. Mutating the clone's
// clause sets never affects the original; the underlying entity definitions
// are shared because they are immutable.
func (e *SelectExpression) Clone() *SelectExpression {
	dup := *e
	dup.joins = append([]Join(nil), e.joins...)
	dup.conditions = append([]Condition(nil), e.conditions...)
	dup.ensures = append([]Condition(nil), e.ensures...)
	dup.selectFields = append([]string(nil), e.selectFields...)
	dup.orderBy = append([]OrderField(nil), e.orderBy...)
	if e.offset != nil {
		v := *e.offset
		dup.offset = &v
	}
	if e.limit != nil {
		v := *e.limit
		dup.limit = &v
	}
	return &dup
}

// FirstMatchingField resolves a name against the expression's live column
// namespace: the base entity first, then each joined entity in join order.
// Names match a field's logical name, its data-contract alias, or its column
// name, case-insensitively.
func (e *SelectExpression) FirstMatchingField(name string) (*schema.EntityDefinition, *schema.FieldDefinition) {
	if entity, field := matchEntityField(e.base, name); field != nil {
		return entity, field
	}
	for _, j := range e.joins {
		if entity, field := matchEntityField(j.To, name); field != nil {
			return entity, field
		}
	}
	return nil, nil
}

func matchEntityField(entity *schema.EntityDefinition, name string) (*schema.EntityDefinition, *schema.FieldDefinition) {
	if entity == nil {
		return nil, nil
	}
	if f := entity.Field(name); f != nil {
		return entity, f
	}
	for _, f := range entity.Fields() {
		if f.Alias != "" && strings.EqualFold(f.Alias, name) {
			return entity, f
		}
	}
	return nil, nil
}
