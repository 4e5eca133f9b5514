package autoquery

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	jsoniter "github.com/json-iterator/go"

	"github.com/asaidimu/go-autoquery/core/convention"
	"github.com/asaidimu/go-autoquery/core/query"
	"github.com/asaidimu/go-autoquery/core/schema"
)

var paramJSON = jsoniter.ConfigCompatibleWithStandardLibrary

// Assembler is the per-request-type query planner. It is built once from a
// descriptor and the catalog, cached, and used concurrently afterwards; all
// per-request state lives in the expression it assembles.
type Assembler struct {
	descriptor  *RequestDescriptor
	entity      *schema.EntityDefinition
	joins       []query.Join
	conventions *convention.Registry
	dialect     query.Dialect
	opts        *Options
	defaultTerm query.Term
	properties  map[string]struct{}
}

func newAssembler(d *RequestDescriptor, catalog *schema.Catalog, conventions *convention.Registry, dialect query.Dialect, opts *Options) (*Assembler, error) {
	entity, ok := catalog.Entity(d.Entity)
	if !ok {
		return nil, fmt.Errorf("assemble %q: unknown entity %q", d.Name, d.Entity)
	}

	var joins []query.Join
	for _, chain := range d.Joins {
		prev := entity
		for _, name := range chain.Entities {
			to, ok := catalog.Entity(name)
			if !ok {
				return nil, fmt.Errorf("assemble %q: unknown join entity %q", d.Name, name)
			}
			kind := chain.Kind
			if kind == "" {
				kind = query.JoinInner
			}
			joins = append(joins, query.Join{Kind: kind, From: prev, To: to})
			prev = to
		}
	}

	term := d.DefaultTerm
	if term == "" {
		term = query.TermAnd
	}

	properties := make(map[string]struct{}, len(d.Properties))
	for _, p := range d.Properties {
		properties[strings.ToLower(p.Name)] = struct{}{}
	}

	return &Assembler{
		descriptor:  d,
		entity:      entity,
		joins:       joins,
		conventions: conventions,
		dialect:     dialect,
		opts:        opts,
		defaultTerm: term,
		properties:  properties,
	}, nil
}

// Build assembles the select expression for one request. params carries the
// untyped dynamic parameters (query string entries and the like); it may be
// nil. The assembly order is fixed: raw fragments, joins, paging and order,
// auto filters, typed properties, untyped parameters, the empty-OR guard and
// finally the field projection.
func (a *Assembler) Build(ctx context.Context, req Request, params map[string]string) (*query.SelectExpression, error) {
	expr := query.NewSelectExpression(a.dialect, a.entity)

	if err := a.applyRawFragments(expr, params); err != nil {
		return nil, err
	}

	for _, j := range a.joins {
		if j.Kind == query.JoinLeft {
			expr.LeftJoin(j.From, j.To)
		} else {
			expr.Join(j.From, j.To)
		}
	}

	if err := a.applyPaging(expr, req); err != nil {
		return nil, err
	}

	if err := a.applyAutoFilters(ctx, expr); err != nil {
		return nil, err
	}

	if err := a.applyTyped(expr, req); err != nil {
		return nil, err
	}

	if a.opts.EnableUntypedQueries {
		if err := a.applyUntyped(expr, params); err != nil {
			return nil, err
		}
	}

	// A request type defaulting to OR with no conditions at all must match
	// nothing, not everything.
	if a.defaultTerm == query.TermOr && !expr.HasWhere() {
		expr.AddCondition(query.TermAnd, "1=0")
	}

	a.applyFieldProjection(expr, req)

	return expr, nil
}

func (a *Assembler) applyRawFragments(expr *query.SelectExpression, params map[string]string) error {
	if !a.opts.EnableRawSQLFilters {
		return nil
	}
	admit := func(name string, apply func(string)) error {
		fragment, ok := params[name]
		if !ok || fragment == "" {
			return nil
		}
		if err := query.VerifyFragment(fragment); err != nil {
			return err
		}
		apply(fragment)
		return nil
	}
	if err := admit("_select", func(s string) { expr.UnsafeSelect(s) }); err != nil {
		return err
	}
	if err := admit("_from", func(s string) { expr.UnsafeFrom(s) }); err != nil {
		return err
	}
	if err := admit("_join", func(s string) { expr.UnsafeJoin(s) }); err != nil {
		return err
	}
	return admit("_where", func(s string) { expr.UnsafeWhere(s) })
}

func (a *Assembler) applyPaging(expr *query.SelectExpression, req Request) error {
	if orderBy := req.GetOrderBy(); orderBy != "" {
		if err := expr.OrderByFields(splitFieldList(orderBy)...); err != nil {
			return err
		}
	} else if orderByDesc := req.GetOrderByDesc(); orderByDesc != "" {
		if err := expr.OrderByFieldsDescending(splitFieldList(orderByDesc)...); err != nil {
			return err
		}
	}

	skip := req.GetSkip()
	take := req.GetTake()
	if max := a.opts.MaxLimit; max != nil {
		if take == nil || *take > *max {
			take = max
		}
	}
	expr.SetLimits(skip, take)

	// Paging over an unordered result set is non-deterministic on most
	// backends, so a limited query with no declared order falls back to
	// the primary key.
	if (skip != nil || take != nil) && len(expr.OrderBy()) == 0 && a.opts.OrderByPrimaryKeyOnPagedQuery {
		if pk := a.entity.PrimaryKey(); pk != nil {
			if err := expr.OrderByFields(pk.Name); err != nil {
				return err
			}
		}
	}
	return nil
}

func (a *Assembler) applyAutoFilters(ctx context.Context, expr *query.SelectExpression) error {
	for _, af := range a.descriptor.AutoFilters {
		value, err := af.Value(ctx)
		if err != nil {
			return fmt.Errorf("auto filter %q: %w", af.Field, err)
		}
		entity, field := expr.FirstMatchingField(af.Field)
		if field == nil {
			return fmt.Errorf("auto filter %q: no such field on %q", af.Field, a.entity.Name)
		}
		if err := a.appendCondition(expr, entity, field, value, af.Filter); err != nil {
			return err
		}
	}
	return nil
}

func (a *Assembler) applyTyped(expr *query.SelectExpression, req Request) error {
	for _, p := range a.descriptor.Properties {
		value := p.Get(req)
		if value == nil {
			continue
		}

		name := p.Name
		if p.Filter != nil && p.Filter.Field != "" {
			name = p.Filter.Field
		}

		match := matchField(a.conventions, expr, name, a.opts.SnakeCaseParams)
		if match == nil {
			continue
		}
		filter := match.Filter
		if p.Filter != nil {
			filter = p.Filter.Combine(match.Filter)
		}
		if err := a.appendCondition(expr, match.Entity, match.Field, value, filter); err != nil {
			return err
		}
	}
	return nil
}

func (a *Assembler) applyUntyped(expr *query.SelectExpression, params map[string]string) error {
	names := make([]string, 0, len(params))
	for name := range params {
		if _, reserved := reservedParams[strings.ToLower(name)]; reserved {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		raw := params[name]

		// A "#" and everything after it is a client-side comment on the
		// parameter name, e.g. "Id#1" repeated for distinct values.
		lookup := name
		if i := strings.IndexByte(lookup, '#'); i >= 0 {
			lookup = lookup[:i]
		}

		// Names claimed by a declared property belong to the typed pass.
		if _, declared := a.properties[strings.ToLower(lookup)]; declared {
			continue
		}

		match := matchField(a.conventions, expr, lookup, a.opts.SnakeCaseParams)
		if match == nil {
			continue
		}

		value, err := a.parseUntypedValue(match, lookup, raw)
		if err != nil {
			return err
		}
		if err := a.appendCondition(expr, match.Entity, match.Field, value, match.Filter); err != nil {
			return err
		}
	}
	return nil
}

// parseUntypedValue converts a raw string parameter into the value shape its
// filter expects: a coerced scalar, a parsed list, or nil for an empty string.
func (a *Assembler) parseUntypedValue(match *fieldMatch, name, raw string) (any, error) {
	if raw == "" {
		return nil, nil
	}

	wantsList := match.Implicit
	if match.Filter != nil && match.Filter.ValueStyle != convention.ValueStyleSingle {
		wantsList = true
	}
	if !wantsList {
		return coerceScalar(match.Field, raw)
	}

	if strings.HasPrefix(raw, "[") {
		var elems []any
		if err := paramJSON.UnmarshalFromString(raw, &elems); err != nil {
			return nil, fmt.Errorf("parameter %q: %w", name, err)
		}
		return elems, nil
	}

	parts := strings.Split(raw, ",")
	out := make([]any, 0, len(parts))
	for _, p := range parts {
		v, err := coerceScalar(match.Field, strings.TrimSpace(p))
		if err != nil {
			return nil, fmt.Errorf("parameter %q: %w", name, err)
		}
		out = append(out, v)
	}
	return out, nil
}

func coerceScalar(field *schema.FieldDefinition, raw string) (any, error) {
	switch field.Type {
	case schema.FieldTypeInteger:
		v, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%q is not an integer", raw)
		}
		return v, nil
	case schema.FieldTypeNumber:
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, fmt.Errorf("%q is not a number", raw)
		}
		return v, nil
	case schema.FieldTypeBoolean:
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return nil, fmt.Errorf("%q is not a boolean", raw)
		}
		return v, nil
	}
	return raw, nil
}

func (a *Assembler) appendCondition(expr *query.SelectExpression, entity *schema.EntityDefinition, field *schema.FieldDefinition, value any, filter *convention.Filter) error {
	quoted := a.dialect.QuoteColumn(entity, field)
	cond, err := buildCondition(a.defaultTerm, quoted, value, filter)
	if err != nil {
		return err
	}
	if cond == nil {
		return nil
	}
	if cond.Term == ensureTerm {
		expr.Ensure(cond.Fragment, cond.Values...)
	} else {
		expr.AddCondition(cond.Term, cond.Fragment, cond.Values...)
	}
	return nil
}

func (a *Assembler) applyFieldProjection(expr *query.SelectExpression, req Request) {
	raw := req.GetFields()
	if raw == "" {
		return
	}

	distinct := false
	var fields []string
	for i, name := range splitFieldList(raw) {
		if i == 0 {
			if rest, ok := cutPrefixFold(name, "distinct "); ok {
				distinct = true
				name = strings.TrimSpace(rest)
			}
		}
		if _, field := expr.FirstMatchingField(name); field != nil {
			fields = append(fields, field.Name)
		}
	}
	if len(fields) == 0 {
		return
	}
	if distinct {
		expr.SelectDistinct(fields)
	} else {
		expr.Select(fields)
	}
}

// splitFieldList splits a field-name list on the separators accepted in
// orderBy, orderByDesc and fields values: commas and semicolons.
func splitFieldList(s string) []string {
	parts := strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == ';' })
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func cutPrefixFold(s, prefix string) (string, bool) {
	if len(s) >= len(prefix) && strings.EqualFold(s[:len(prefix)], prefix) {
		return s[len(prefix):], true
	}
	return "", false
}
