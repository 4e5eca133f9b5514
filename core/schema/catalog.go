// Package schema describes the relational shape of queryable entities. It is
// deliberately reflection-free: an EntityDefinition carries only the metadata
// the query engine needs to resolve parameter names to columns (field names,
// column mappings, data-contract aliases and the primary key). The storage
// backend owns everything else about the physical schema.
package schema

import (
	"fmt"
	"strings"
)

// FieldType represents the basic field types the engine can coerce untyped
// parameter values into.
type FieldType string

const (
	FieldTypeString  FieldType = "string"  // Text data
	FieldTypeInteger FieldType = "integer" // Whole numbers
	FieldTypeNumber  FieldType = "number"  // Floating point numbers
	FieldTypeBoolean FieldType = "boolean" // True/false values
	FieldTypeTime    FieldType = "time"    // Timestamps, stored per backend convention
)

// FieldDefinition describes a single queryable field of an entity.
type FieldDefinition struct {
	Name       string    // Logical field name, e.g. "CustomerName"
	Column     string    // Column name when it differs from Name
	Alias      string    // Data-contract alias, e.g. a wire name from serialization attributes
	Type       FieldType // Used to coerce untyped string parameters
	PrimaryKey bool
}

// ColumnName returns the physical column the field maps to.
func (f *FieldDefinition) ColumnName() string {
	if f.Column != "" {
		return f.Column
	}
	return f.Name
}

// EntityDefinition is the field catalog for one entity type. It is built once
// at startup and read concurrently by every request; it must not be mutated
// after registration.
type EntityDefinition struct {
	Name   string // Logical entity name, e.g. "Order"
	Table  string // Physical table name
	fields []*FieldDefinition
	byName map[string]*FieldDefinition
}

// NewEntity builds an EntityDefinition from its fields. Field names must be
// unique under case folding.
func NewEntity(name, table string, fields ...*FieldDefinition) (*EntityDefinition, error) {
	if name == "" {
		return nil, fmt.Errorf("entity name cannot be empty")
	}
	if table == "" {
		table = name
	}
	e := &EntityDefinition{
		Name:   name,
		Table:  table,
		fields: fields,
		byName: make(map[string]*FieldDefinition, len(fields)),
	}
	for _, f := range fields {
		if f.Name == "" {
			return nil, fmt.Errorf("entity %q has a field with no name", name)
		}
		key := strings.ToLower(f.Name)
		if _, dup := e.byName[key]; dup {
			return nil, fmt.Errorf("entity %q declares field %q twice", name, f.Name)
		}
		e.byName[key] = f
	}
	return e, nil
}

// Fields returns the entity's fields in declaration order.
func (e *EntityDefinition) Fields() []*FieldDefinition {
	return e.fields
}

// Field resolves a name to a field definition, case-insensitively. It matches
// the logical field name first, then the physical column name.
func (e *EntityDefinition) Field(name string) *FieldDefinition {
	if f, ok := e.byName[strings.ToLower(name)]; ok {
		return f
	}
	for _, f := range e.fields {
		if strings.EqualFold(f.ColumnName(), name) {
			return f
		}
	}
	return nil
}

// PrimaryKey returns the entity's primary key field, or nil when none is
// declared.
func (e *EntityDefinition) PrimaryKey() *FieldDefinition {
	for _, f := range e.fields {
		if f.PrimaryKey {
			return f
		}
	}
	return nil
}

// Aliases returns the entity's data-contract alias table as a lower-cased
// alias to field-name mapping.
func (e *EntityDefinition) Aliases() map[string]string {
	aliases := make(map[string]string)
	for _, f := range e.fields {
		if f.Alias != "" {
			aliases[strings.ToLower(f.Alias)] = f.Name
		}
	}
	return aliases
}

// Catalog is a registry of entity definitions keyed by logical name. Like its
// entries it is populated once at startup and treated as read-only afterwards.
type Catalog struct {
	entities map[string]*EntityDefinition
}

// NewCatalog creates an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{entities: make(map[string]*EntityDefinition)}
}

// Register adds an entity to the catalog. Registering the same name twice is
// an error so that accidental redefinition surfaces at startup.
func (c *Catalog) Register(e *EntityDefinition) error {
	key := strings.ToLower(e.Name)
	if _, dup := c.entities[key]; dup {
		return fmt.Errorf("entity %q is already registered", e.Name)
	}
	c.entities[key] = e
	return nil
}

// MustRegister is Register for static seed tables; it panics on error.
func (c *Catalog) MustRegister(e *EntityDefinition) {
	if err := c.Register(e); err != nil {
		panic(err)
	}
}

// Entity resolves a logical entity name, case-insensitively.
func (c *Catalog) Entity(name string) (*EntityDefinition, bool) {
	e, ok := c.entities[strings.ToLower(name)]
	return e, ok
}
