// Package sqlite is the SQLite storage backend: it renders the engine's
// abstract select expressions into SQL and executes them over database/sql
// with the mattn/go-sqlite3 driver.
package sqlite

import (
	"strings"

	"github.com/asaidimu/go-autoquery/core/schema"
)

// Dialect implements identifier and literal quoting for SQLite.
type Dialect struct{}

// QuoteIdentifier properly quotes an identifier for SQLite.
func (Dialect) QuoteIdentifier(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// QuoteColumn returns the table-qualified quoted column for a field.
func (d Dialect) QuoteColumn(entity *schema.EntityDefinition, field *schema.FieldDefinition) string {
	return d.QuoteIdentifier(entity.Table) + "." + d.QuoteIdentifier(field.ColumnName())
}

// QuoteValue renders a string as an escaped SQL string literal.
func (Dialect) QuoteValue(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
