package autoquery

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/asaidimu/go-autoquery/core/query"
	"github.com/asaidimu/go-autoquery/core/schema"
)

type testDialect struct{}

func (testDialect) QuoteIdentifier(name string) string { return `"` + name + `"` }
func (testDialect) QuoteColumn(e *schema.EntityDefinition, f *schema.FieldDefinition) string {
	return `"` + e.Table + `"."` + f.ColumnName() + `"`
}
func (testDialect) QuoteValue(s string) string { return "'" + s + "'" }

// fakeExecutor records every expression it is asked to run and replays canned
// results.
type fakeExecutor struct {
	selects     []*query.SelectExpression
	selectRows  [][]map[string]any
	selectErr   error
	countResult int64
	countCalls  int
}

func (f *fakeExecutor) Dialect() query.Dialect { return testDialect{} }

func (f *fakeExecutor) Select(_ context.Context, expr *query.SelectExpression) ([]map[string]any, error) {
	if f.selectErr != nil {
		return nil, f.selectErr
	}
	f.selects = append(f.selects, expr)
	if len(f.selectRows) > 0 {
		rows := f.selectRows[0]
		f.selectRows = f.selectRows[1:]
		return rows, nil
	}
	return nil, nil
}

func (f *fakeExecutor) Count(_ context.Context, _ *query.SelectExpression) (int64, error) {
	f.countCalls++
	return f.countResult, nil
}

func testCatalog(t *testing.T) *schema.Catalog {
	t.Helper()

	order, err := schema.NewEntity("Order", "orders",
		&schema.FieldDefinition{Name: "Id", Column: "id", Type: schema.FieldTypeInteger, PrimaryKey: true},
		&schema.FieldDefinition{Name: "CustomerId", Column: "customer_id", Type: schema.FieldTypeInteger},
		&schema.FieldDefinition{Name: "City", Column: "city", Type: schema.FieldTypeString},
		&schema.FieldDefinition{Name: "Status", Column: "status", Type: schema.FieldTypeString},
		&schema.FieldDefinition{Name: "Amount", Column: "amount", Type: schema.FieldTypeNumber},
		&schema.FieldDefinition{Name: "CreatedAt", Column: "created_at", Type: schema.FieldTypeTime},
	)
	require.NoError(t, err)

	customer, err := schema.NewEntity("Customer", "customers",
		&schema.FieldDefinition{Name: "Id", Column: "id", Type: schema.FieldTypeInteger, PrimaryKey: true},
		&schema.FieldDefinition{Name: "Name", Column: "name", Type: schema.FieldTypeString},
		&schema.FieldDefinition{Name: "Region", Column: "region", Type: schema.FieldTypeString},
	)
	require.NoError(t, err)

	catalog := schema.NewCatalog()
	catalog.MustRegister(order)
	catalog.MustRegister(customer)
	return catalog
}

func testExpression(t *testing.T) *query.SelectExpression {
	t.Helper()
	entity, ok := testCatalog(t).Entity("Order")
	require.True(t, ok)
	return query.NewSelectExpression(testDialect{}, entity)
}

// plainRequest is a request with nothing but the embedded query surface.
type plainRequest struct {
	QueryBase
}

func intPtr(v int) *int { return &v }
