package autoquery

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/asaidimu/go-autoquery/core/schema"
)

// fakeCrudExecutor is a read+write backend double. It records the last row it
// was handed per operation.
type fakeCrudExecutor struct {
	fakeExecutor

	lastOp   string
	lastRow  map[string]any
	affected int64
	writeErr error
}

func (f *fakeCrudExecutor) Insert(_ context.Context, _ *schema.EntityDefinition, row map[string]any) (map[string]any, error) {
	f.lastOp, f.lastRow = "insert", row
	return row, f.writeErr
}

func (f *fakeCrudExecutor) Update(_ context.Context, _ *schema.EntityDefinition, row map[string]any) (int64, error) {
	f.lastOp, f.lastRow = "update", row
	return f.affected, f.writeErr
}

func (f *fakeCrudExecutor) Patch(_ context.Context, _ *schema.EntityDefinition, row map[string]any) (int64, error) {
	f.lastOp, f.lastRow = "patch", row
	return f.affected, f.writeErr
}

func (f *fakeCrudExecutor) Delete(_ context.Context, _ *schema.EntityDefinition, row map[string]any) (int64, error) {
	f.lastOp, f.lastRow = "delete", row
	return f.affected, f.writeErr
}

func (f *fakeCrudExecutor) Save(_ context.Context, _ *schema.EntityDefinition, row map[string]any) (map[string]any, error) {
	f.lastOp, f.lastRow = "save", row
	return row, f.writeErr
}

func newWriteEngine(t *testing.T, crud *fakeCrudExecutor) *Engine {
	t.Helper()
	e, err := NewEngine(crud, testCatalog(t), nil)
	require.NoError(t, err)
	return e
}

func TestExecuteWrite_Create(t *testing.T) {
	crud := &fakeCrudExecutor{}
	e := newWriteEngine(t, crud)
	e.MustRegister(&RequestDescriptor{
		Name:      "CreateOrder",
		Operation: OpCreate,
		Entity:    "Order",
		Row: func(req Request) map[string]any {
			return map[string]any{"City": "Austin", "Amount": 12.5}
		},
	})

	resp, err := e.ExecuteWrite(context.Background(), "CreateOrder", &plainRequest{})
	require.NoError(t, err)
	assert.Equal(t, "insert", crud.lastOp)
	assert.Equal(t, "Austin", crud.lastRow["City"])
	assert.Equal(t, int64(1), resp.RowsAffected)
	assert.Equal(t, crud.lastRow, resp.Row)
}

func TestExecuteWrite_UpdateReportsAffectedRows(t *testing.T) {
	crud := &fakeCrudExecutor{affected: 1}
	e := newWriteEngine(t, crud)
	e.MustRegister(&RequestDescriptor{
		Name:      "UpdateOrder",
		Operation: OpUpdate,
		Entity:    "Order",
		Row: func(req Request) map[string]any {
			return map[string]any{"Id": 7, "Status": "shipped"}
		},
	})

	resp, err := e.ExecuteWrite(context.Background(), "UpdateOrder", &plainRequest{})
	require.NoError(t, err)
	assert.Equal(t, "update", crud.lastOp)
	assert.Equal(t, int64(1), resp.RowsAffected)
	assert.Nil(t, resp.Row)
}

func TestExecuteWrite_DeleteAndPatch(t *testing.T) {
	crud := &fakeCrudExecutor{affected: 2}
	e := newWriteEngine(t, crud)
	e.MustRegister(&RequestDescriptor{
		Name:      "DeleteOrder",
		Operation: OpDelete,
		Entity:    "Order",
		Row:       func(req Request) map[string]any { return map[string]any{"Id": 3} },
	})
	e.MustRegister(&RequestDescriptor{
		Name:      "PatchOrder",
		Operation: OpPatch,
		Entity:    "Order",
		Row:       func(req Request) map[string]any { return map[string]any{"Id": 3, "City": "Boise"} },
	})

	resp, err := e.ExecuteWrite(context.Background(), "DeleteOrder", &plainRequest{})
	require.NoError(t, err)
	assert.Equal(t, "delete", crud.lastOp)
	assert.Equal(t, int64(2), resp.RowsAffected)

	resp, err = e.ExecuteWrite(context.Background(), "PatchOrder", &plainRequest{})
	require.NoError(t, err)
	assert.Equal(t, "patch", crud.lastOp)
	assert.Equal(t, int64(2), resp.RowsAffected)
}

func TestExecuteWrite_RejectsQueryRequests(t *testing.T) {
	crud := &fakeCrudExecutor{}
	e := newWriteEngine(t, crud)
	e.MustRegister(&RequestDescriptor{Name: "QueryOrders", Entity: "Order"})

	_, err := e.ExecuteWrite(context.Background(), "QueryOrders", &plainRequest{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not a write")
}

func TestExecuteWrite_BackendErrorPropagates(t *testing.T) {
	crud := &fakeCrudExecutor{writeErr: errors.New("constraint violated")}
	e := newWriteEngine(t, crud)
	e.MustRegister(&RequestDescriptor{
		Name:      "SaveOrder",
		Operation: OpSave,
		Entity:    "Order",
		Row:       func(req Request) map[string]any { return map[string]any{"Id": 1} },
	})

	_, err := e.ExecuteWrite(context.Background(), "SaveOrder", &plainRequest{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "constraint violated")
}

func TestDispatch_RoutesByOperation(t *testing.T) {
	crud := &fakeCrudExecutor{affected: 1}
	e := newWriteEngine(t, crud)
	e.MustRegister(&RequestDescriptor{Name: "QueryOrders", Entity: "Order"})
	e.MustRegister(&RequestDescriptor{
		Name:      "DeleteOrder",
		Operation: OpDelete,
		Entity:    "Order",
		Row:       func(req Request) map[string]any { return map[string]any{"Id": 1} },
	})

	got, err := e.Dispatch(context.Background(), "QueryOrders", &plainRequest{}, nil)
	require.NoError(t, err)
	_, ok := got.(*QueryResponse)
	assert.True(t, ok)

	got, err = e.Dispatch(context.Background(), "DeleteOrder", &plainRequest{}, nil)
	require.NoError(t, err)
	write, ok := got.(*WriteResponse)
	require.True(t, ok)
	assert.Equal(t, int64(1), write.RowsAffected)
}
