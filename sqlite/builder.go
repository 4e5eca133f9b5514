package sqlite

import (
	"fmt"
	"strings"

	"github.com/asaidimu/go-autoquery/core/query"
	"github.com/asaidimu/go-autoquery/core/schema"
)

// BuildSelectSQL renders a select expression into a SQLite SELECT statement
// and its positional parameters.
func BuildSelectSQL(expr *query.SelectExpression) (string, []any, error) {
	var sb strings.Builder
	var params []any
	d := Dialect{}

	sb.WriteString("SELECT ")
	if err := writeSelectList(&sb, expr, d); err != nil {
		return "", nil, err
	}

	if err := writeFrom(&sb, expr, d); err != nil {
		return "", nil, err
	}

	if err := writeWhere(&sb, expr, &params); err != nil {
		return "", nil, err
	}

	if order := expr.OrderBy(); len(order) > 0 {
		sb.WriteString(" ORDER BY ")
		for i, o := range order {
			if i > 0 {
				sb.WriteString(", ")
			}
			entity, field := expr.FirstMatchingField(o.Field)
			if field == nil {
				return "", nil, fmt.Errorf("order by: unknown field %q", o.Field)
			}
			sb.WriteString(d.QuoteColumn(entity, field))
			if o.Desc {
				sb.WriteString(" DESC")
			}
		}
	}

	writeLimits(&sb, expr)
	return sb.String(), params, nil
}

// BuildCountSQL renders the matching-row count query for an expression,
// ignoring its projection, ordering and limits.
func BuildCountSQL(expr *query.SelectExpression) (string, []any, error) {
	var sb strings.Builder
	var params []any
	d := Dialect{}

	sb.WriteString("SELECT COUNT(*)")
	if err := writeFrom(&sb, expr, d); err != nil {
		return "", nil, err
	}
	if err := writeWhere(&sb, expr, &params); err != nil {
		return "", nil, err
	}
	return sb.String(), params, nil
}

func writeSelectList(sb *strings.Builder, expr *query.SelectExpression, d Dialect) error {
	if raw := expr.RawSelect(); raw != "" {
		sb.WriteString(raw)
		return nil
	}

	fields := expr.SelectFields()
	if len(fields) == 0 {
		if len(expr.Joins()) > 0 {
			// Joined queries project the base table only, so join columns
			// never shadow base columns in the result set.
			sb.WriteString(d.QuoteIdentifier(expr.Base().Table) + ".*")
		} else {
			sb.WriteString("*")
		}
		return nil
	}

	if expr.Distinct() {
		sb.WriteString("DISTINCT ")
	}
	for i, name := range fields {
		if i > 0 {
			sb.WriteString(", ")
		}
		entity, field := expr.FirstMatchingField(name)
		if field == nil {
			return fmt.Errorf("select: unknown field %q", name)
		}
		sb.WriteString(d.QuoteColumn(entity, field))
		sb.WriteString(" AS " + d.QuoteIdentifier(field.Name))
	}
	return nil
}

func writeFrom(sb *strings.Builder, expr *query.SelectExpression, d Dialect) error {
	sb.WriteString(" FROM ")
	if raw := expr.RawFrom(); raw != "" {
		sb.WriteString(raw)
	} else {
		sb.WriteString(d.QuoteIdentifier(expr.Base().Table))
	}

	for _, j := range expr.Joins() {
		on, err := inferJoinCondition(j, d)
		if err != nil {
			return err
		}
		sb.WriteString(" " + string(j.Kind) + " " + d.QuoteIdentifier(j.To.Table) + " ON " + on)
	}

	if raw := expr.RawJoin(); raw != "" {
		sb.WriteString(" " + raw)
	}
	return nil
}

// inferJoinCondition resolves the ON clause for a join pair by foreign key
// naming convention: the To entity referencing the From entity's primary key
// through a "<FromName>Id" field, or the reverse.
func inferJoinCondition(j query.Join, d Dialect) (string, error) {
	if fk := j.To.Field(j.From.Name + "Id"); fk != nil {
		if pk := j.From.PrimaryKey(); pk != nil {
			return d.QuoteColumn(j.To, fk) + " = " + d.QuoteColumn(j.From, pk), nil
		}
	}
	if fk := j.From.Field(j.To.Name + "Id"); fk != nil {
		if pk := j.To.PrimaryKey(); pk != nil {
			return d.QuoteColumn(j.From, fk) + " = " + d.QuoteColumn(j.To, pk), nil
		}
	}
	return "", fmt.Errorf("cannot infer join between %q and %q: no matching reference field", j.From.Name, j.To.Name)
}

func writeWhere(sb *strings.Builder, expr *query.SelectExpression, params *[]any) error {
	combined := ""

	if conds := expr.Conditions(); len(conds) > 0 {
		var cb strings.Builder
		for i, c := range conds {
			if i > 0 {
				term := c.Term
				if term == "" {
					term = query.TermAnd
				}
				cb.WriteString(" " + string(term) + " ")
			}
			fragment, err := expandFragment(c.Fragment, c.Values, params)
			if err != nil {
				return err
			}
			cb.WriteString(fragment)
		}
		combined = cb.String()
	}

	if raw := expr.RawWhere(); raw != "" {
		if combined != "" {
			combined = "(" + combined + ") AND (" + raw + ")"
		} else {
			combined = raw
		}
	}

	for _, c := range expr.Ensures() {
		fragment, err := expandFragment(c.Fragment, c.Values, params)
		if err != nil {
			return err
		}
		if combined != "" {
			combined = "(" + combined + ") AND " + fragment
		} else {
			combined = fragment
		}
	}

	if combined != "" {
		sb.WriteString(" WHERE " + combined)
	}
	return nil
}

// expandFragment pairs a fragment's "?" slots with its bound values. A
// ListValue expands its slot into one placeholder per element, which turns
// "IN (?)" into "IN (?, ?, ...)".
func expandFragment(fragment string, values []any, params *[]any) (string, error) {
	slots := strings.Count(fragment, "?")
	if slots != len(values) {
		return "", fmt.Errorf("fragment %q has %d value slots but %d values", fragment, slots, len(values))
	}
	if slots == 0 {
		return fragment, nil
	}

	var sb strings.Builder
	idx := 0
	for i := 0; i < len(fragment); i++ {
		if fragment[i] != '?' {
			sb.WriteByte(fragment[i])
			continue
		}
		value := values[idx]
		idx++
		if list, ok := value.(query.ListValue); ok {
			for n, elem := range list {
				if n > 0 {
					sb.WriteString(", ")
				}
				sb.WriteByte('?')
				*params = append(*params, elem)
			}
			continue
		}
		sb.WriteByte('?')
		*params = append(*params, value)
	}
	return sb.String(), nil
}

func writeLimits(sb *strings.Builder, expr *query.SelectExpression) {
	limit, offset := expr.Limit(), expr.Offset()
	if limit == nil && offset == nil {
		return
	}
	if limit != nil {
		fmt.Fprintf(sb, " LIMIT %d", *limit)
	} else {
		// SQLite requires a LIMIT clause before OFFSET; -1 means unbounded.
		sb.WriteString(" LIMIT -1")
	}
	if offset != nil {
		fmt.Fprintf(sb, " OFFSET %d", *offset)
	}
}

// buildInsertSQL renders an INSERT with RETURNING * so the stored row comes
// back in one round trip. Requires SQLite 3.35.0+.
func buildInsertSQL(entity *schema.EntityDefinition, row map[string]any) (string, []any, error) {
	d := Dialect{}
	columns, values, err := rowColumns(entity, row)
	if err != nil {
		return "", nil, err
	}
	if len(columns) == 0 {
		return "", nil, fmt.Errorf("insert into %q: no columns", entity.Name)
	}

	quoted := make([]string, len(columns))
	placeholders := make([]string, len(columns))
	for i, c := range columns {
		quoted[i] = d.QuoteIdentifier(c)
		placeholders[i] = "?"
	}
	sql := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) RETURNING *",
		d.QuoteIdentifier(entity.Table),
		strings.Join(quoted, ", "),
		strings.Join(placeholders, ", "))
	return sql, values, nil
}

// buildUpdateSQL renders an UPDATE targeting the row's primary key value.
func buildUpdateSQL(entity *schema.EntityDefinition, row map[string]any) (string, []any, error) {
	d := Dialect{}
	pk := entity.PrimaryKey()
	if pk == nil {
		return "", nil, fmt.Errorf("update %q: entity has no primary key", entity.Name)
	}
	pkValue, ok := rowValue(entity, row, pk)
	if !ok {
		return "", nil, fmt.Errorf("update %q: row is missing primary key %q", entity.Name, pk.Name)
	}

	columns, values, err := rowColumns(entity, row)
	if err != nil {
		return "", nil, err
	}

	var sets []string
	var params []any
	for i, c := range columns {
		if c == pk.ColumnName() {
			continue
		}
		sets = append(sets, d.QuoteIdentifier(c)+" = ?")
		params = append(params, values[i])
	}
	if len(sets) == 0 {
		return "", nil, fmt.Errorf("update %q: no columns to set", entity.Name)
	}

	sql := fmt.Sprintf("UPDATE %s SET %s WHERE %s = ?",
		d.QuoteIdentifier(entity.Table),
		strings.Join(sets, ", "),
		d.QuoteIdentifier(pk.ColumnName()))
	params = append(params, pkValue)
	return sql, params, nil
}

// buildDeleteSQL renders a DELETE targeting the row's primary key value.
func buildDeleteSQL(entity *schema.EntityDefinition, row map[string]any) (string, []any, error) {
	d := Dialect{}
	pk := entity.PrimaryKey()
	if pk == nil {
		return "", nil, fmt.Errorf("delete from %q: entity has no primary key", entity.Name)
	}
	pkValue, ok := rowValue(entity, row, pk)
	if !ok {
		return "", nil, fmt.Errorf("delete from %q: row is missing primary key %q", entity.Name, pk.Name)
	}
	sql := fmt.Sprintf("DELETE FROM %s WHERE %s = ?",
		d.QuoteIdentifier(entity.Table),
		d.QuoteIdentifier(pk.ColumnName()))
	return sql, []any{pkValue}, nil
}

// buildUpsertSQL renders an INSERT .. ON CONFLICT upsert keyed on the primary
// key, with RETURNING *.
func buildUpsertSQL(entity *schema.EntityDefinition, row map[string]any) (string, []any, error) {
	d := Dialect{}
	pk := entity.PrimaryKey()
	if pk == nil {
		return "", nil, fmt.Errorf("save %q: entity has no primary key", entity.Name)
	}
	columns, values, err := rowColumns(entity, row)
	if err != nil {
		return "", nil, err
	}
	if len(columns) == 0 {
		return "", nil, fmt.Errorf("save %q: no columns", entity.Name)
	}

	quoted := make([]string, len(columns))
	placeholders := make([]string, len(columns))
	var sets []string
	for i, c := range columns {
		quoted[i] = d.QuoteIdentifier(c)
		placeholders[i] = "?"
		if c != pk.ColumnName() {
			sets = append(sets, d.QuoteIdentifier(c)+" = excluded."+d.QuoteIdentifier(c))
		}
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "INSERT INTO %s (%s) VALUES (%s) ON CONFLICT(%s) DO ",
		d.QuoteIdentifier(entity.Table),
		strings.Join(quoted, ", "),
		strings.Join(placeholders, ", "),
		d.QuoteIdentifier(pk.ColumnName()))
	if len(sets) == 0 {
		sb.WriteString("NOTHING")
	} else {
		sb.WriteString("UPDATE SET " + strings.Join(sets, ", "))
	}
	sb.WriteString(" RETURNING *")
	return sb.String(), values, nil
}

// rowColumns resolves a row's keys against the entity, in field declaration
// order for deterministic SQL. Keys may be field names, aliases or column
// names, case-insensitively; unknown keys are rejected.
func rowColumns(entity *schema.EntityDefinition, row map[string]any) ([]string, []any, error) {
	byField := make(map[*schema.FieldDefinition]any, len(row))
	for key, value := range row {
		field := resolveRowField(entity, key)
		if field == nil {
			return nil, nil, fmt.Errorf("row key %q does not match a field of %q", key, entity.Name)
		}
		byField[field] = value
	}

	var columns []string
	var values []any
	for _, field := range entity.Fields() {
		if value, ok := byField[field]; ok {
			columns = append(columns, field.ColumnName())
			values = append(values, value)
		}
	}
	return columns, values, nil
}

func resolveRowField(entity *schema.EntityDefinition, key string) *schema.FieldDefinition {
	if f := entity.Field(key); f != nil {
		return f
	}
	for _, f := range entity.Fields() {
		if f.Alias != "" && strings.EqualFold(f.Alias, key) {
			return f
		}
	}
	return nil
}

func rowValue(entity *schema.EntityDefinition, row map[string]any, field *schema.FieldDefinition) (any, bool) {
	for key, value := range row {
		if resolveRowField(entity, key) == field {
			return value, true
		}
	}
	return nil, false
}
