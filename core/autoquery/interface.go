package autoquery

import (
	"context"

	"github.com/asaidimu/go-autoquery/core/query"
	"github.com/asaidimu/go-autoquery/core/schema"
)

// Request is the declarative query surface every AutoQuery request carries.
// Embed QueryBase to satisfy it.
type Request interface {
	GetSkip() *int
	GetTake() *int
	GetOrderBy() string
	GetOrderByDesc() string
	GetFields() string
	GetInclude() string
}

// QueryBase is the embeddable pagination/ordering/projection portion of a
// request. Declared filter properties live on the embedding struct and are
// exposed to the engine through the request descriptor's property specs.
type QueryBase struct {
	Skip        *int   `json:"skip,omitempty"`
	Take        *int   `json:"take,omitempty"`
	OrderBy     string `json:"orderBy,omitempty"`
	OrderByDesc string `json:"orderByDesc,omitempty"`
	Fields      string `json:"fields,omitempty"`
	Include     string `json:"include,omitempty"`
}

func (q *QueryBase) GetSkip() *int          { return q.Skip }
func (q *QueryBase) GetTake() *int          { return q.Take }
func (q *QueryBase) GetOrderBy() string     { return q.OrderBy }
func (q *QueryBase) GetOrderByDesc() string { return q.OrderByDesc }
func (q *QueryBase) GetFields() string      { return q.Fields }
func (q *QueryBase) GetInclude() string     { return q.Include }

// Executor is the storage backend boundary for reads. One Select call per
// base query, plus at most one more for aggregate extraction; cancellation
// and timeouts belong to the backend via ctx.
type Executor interface {
	// Dialect returns the quoting dialect used to compose fragments for this
	// backend.
	Dialect() query.Dialect

	// Select renders and executes the expression, returning raw rows keyed by
	// result column label.
	Select(ctx context.Context, expr *query.SelectExpression) ([]map[string]any, error)

	// Count returns the number of rows the expression matches, ignoring its
	// limits and ordering.
	Count(ctx context.Context, expr *query.SelectExpression) (int64, error)
}

// CrudExecutor is the storage backend boundary for write dispatch. Rows are
// column-name keyed; the primary key drives Update/Patch/Delete targeting.
type CrudExecutor interface {
	Insert(ctx context.Context, entity *schema.EntityDefinition, row map[string]any) (map[string]any, error)
	Update(ctx context.Context, entity *schema.EntityDefinition, row map[string]any) (int64, error)
	Patch(ctx context.Context, entity *schema.EntityDefinition, row map[string]any) (int64, error)
	Delete(ctx context.Context, entity *schema.EntityDefinition, row map[string]any) (int64, error)
	Save(ctx context.Context, entity *schema.EntityDefinition, row map[string]any) (map[string]any, error)
}

// QueryResponse is the engine's result envelope. Meta carries aggregate
// scalar results as strings keyed by their canonical SQL text, e.g.
// "COUNT(*)"; it is nil when no metadata was produced.
type QueryResponse struct {
	Offset  int               `json:"offset"`
	Total   *int64            `json:"total,omitempty"`
	Results []map[string]any  `json:"results"`
	Meta    map[string]string `json:"meta,omitempty"`
}

// FilterContext is handed to response filters after the base query executed.
// Filters may run additional backend calls (the aggregate extractor does) and
// mutate the response and the pending include-command list.
type FilterContext struct {
	Context    context.Context
	Request    Request
	Commands   []*Command
	Expression *query.SelectExpression
	Response   *QueryResponse
	Executor   Executor
}

// ResponseFilter post-processes a query response. Filters run in registration
// order; an error aborts the request.
type ResponseFilter func(fc *FilterContext) error
