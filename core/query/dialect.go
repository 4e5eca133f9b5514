// Package query models an abstract relational SELECT as a value: parameterized
// conditions, joins, projection, ordering and limits. No SQL text is rendered
// here beyond condition fragments with bound-value slots; a storage backend
// renders and executes the expression through its own dialect.
package query

import "github.com/asaidimu/go-autoquery/core/schema"

// Dialect abstracts identifier and literal quoting so the engine can compose
// fragments without knowing the backend's SQL flavor. Implementations live
// with the execution backend.
type Dialect interface {
	// QuoteIdentifier quotes a bare identifier, e.g. name -> "name".
	QuoteIdentifier(name string) string

	// QuoteColumn returns the fully-qualified quoted column reference for a
	// field of an entity, e.g. "orders"."customer_id".
	QuoteColumn(entity *schema.EntityDefinition, field *schema.FieldDefinition) string

	// QuoteValue renders a string as a safely escaped SQL string literal.
	// Used only for literal arguments inside aggregate expressions.
	QuoteValue(s string) string
}
