package autoquery

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/asaidimu/go-autoquery/core/convention"
	"github.com/asaidimu/go-autoquery/core/query"
	"github.com/asaidimu/go-autoquery/core/schema"
)

// Operation classifies what a registered request type does when dispatched.
type Operation int

const (
	OpQuery Operation = iota
	OpCreate
	OpUpdate
	OpPatch
	OpDelete
	OpSave
)

func (op Operation) String() string {
	switch op {
	case OpQuery:
		return "query"
	case OpCreate:
		return "create"
	case OpUpdate:
		return "update"
	case OpPatch:
		return "patch"
	case OpDelete:
		return "delete"
	case OpSave:
		return "save"
	}
	return fmt.Sprintf("operation(%d)", int(op))
}

// PropertySpec describes one declared filter property of a request type: how
// to read its value off a request instance and, optionally, an explicit
// filter declaration that overrides name-convention matching.
type PropertySpec struct {
	Name   string
	Get    func(req Request) any
	Filter *convention.Filter
}

// AutoFilterSpec is a server-side filter the engine applies to every query of
// the request type regardless of what the request carries. Value is resolved
// per request, typically from the context (tenant, session).
type AutoFilterSpec struct {
	Field  string
	Filter *convention.Filter
	Value  func(ctx context.Context) (any, error)
}

// JoinChain declares the entities a request type joins through, in order,
// starting from an entity already present in the query.
type JoinChain struct {
	Kind     query.JoinKind
	Entities []string
}

// RequestDescriptor is the static registration of one request type. It
// replaces runtime reflection over request structs: the engine consults
// descriptors only, so everything here is resolvable and validated up front.
type RequestDescriptor struct {
	// Name keys dispatch. Conventionally the request struct's type name.
	Name string

	// Operation defaults to OpQuery.
	Operation Operation

	// Entity names the catalog entity the request targets.
	Entity string

	// DefaultTerm combines convention-matched conditions that carry no term
	// of their own. Empty means AND.
	DefaultTerm query.Term

	// Properties are the request type's declared filter properties.
	Properties []PropertySpec

	// AutoFilters run on every query of this type.
	AutoFilters []AutoFilterSpec

	// Joins are declared join chains, resolved against the catalog at
	// registration.
	Joins []JoinChain

	// Row extracts the column-keyed row for write operations. Required for
	// every Operation except OpQuery.
	Row func(req Request) map[string]any
}

// DescriptorRegistry holds the registered request descriptors, keyed by name
// case-insensitively. Registration validates eagerly so that a bad descriptor
// fails at startup, not on first request.
type DescriptorRegistry struct {
	catalog *schema.Catalog

	mu   sync.RWMutex
	byID map[string]*RequestDescriptor
}

// NewDescriptorRegistry creates a registry resolving entities against catalog.
func NewDescriptorRegistry(catalog *schema.Catalog) *DescriptorRegistry {
	return &DescriptorRegistry{
		catalog: catalog,
		byID:    make(map[string]*RequestDescriptor),
	}
}

// Register validates and stores a descriptor. Registering the same name twice
// is an error.
func (r *DescriptorRegistry) Register(d *RequestDescriptor) error {
	if d.Name == "" {
		return fmt.Errorf("register request descriptor: missing name")
	}
	if _, ok := r.catalog.Entity(d.Entity); !ok {
		return fmt.Errorf("register %q: unknown entity %q", d.Name, d.Entity)
	}
	for _, chain := range d.Joins {
		if len(chain.Entities) == 0 {
			return fmt.Errorf("register %q: empty join chain", d.Name)
		}
		for _, name := range chain.Entities {
			if _, ok := r.catalog.Entity(name); !ok {
				return fmt.Errorf("register %q: unknown join entity %q", d.Name, name)
			}
		}
	}
	for _, p := range d.Properties {
		if p.Name == "" || p.Get == nil {
			return fmt.Errorf("register %q: property needs a name and a getter", d.Name)
		}
		if p.Filter != nil {
			p.Filter.Init()
		}
	}
	for _, af := range d.AutoFilters {
		if af.Field == "" || af.Value == nil {
			return fmt.Errorf("register %q: auto filter needs a field and a value source", d.Name)
		}
		if af.Filter != nil {
			af.Filter.Init()
		}
	}
	if d.Operation != OpQuery && d.Row == nil {
		return fmt.Errorf("register %q: %s operation needs a row extractor", d.Name, d.Operation)
	}

	key := strings.ToLower(d.Name)
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.byID[key]; dup {
		return fmt.Errorf("register %q: already registered", d.Name)
	}
	r.byID[key] = d
	return nil
}

// MustRegister is Register for static setup code paths.
func (r *DescriptorRegistry) MustRegister(d *RequestDescriptor) {
	if err := r.Register(d); err != nil {
		panic(err)
	}
}

// Lookup returns the descriptor registered under name, case-insensitively.
func (r *DescriptorRegistry) Lookup(name string) (*RequestDescriptor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.byID[strings.ToLower(name)]
	if !ok {
		return nil, fmt.Errorf("no request type registered as %q", name)
	}
	return d, nil
}
