package autoquery

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// WriteResponse is the result envelope for write dispatch. Row is populated
// by operations that return the stored row (create, save); RowsAffected by
// the rest.
type WriteResponse struct {
	RowsAffected int64          `json:"rowsAffected"`
	Row          map[string]any `json:"row,omitempty"`
}

// Dispatch routes a request by its registered operation: query requests run
// through Execute and return *QueryResponse, write requests run through the
// crud backend and return *WriteResponse.
func (e *Engine) Dispatch(ctx context.Context, name string, req Request, params map[string]string) (any, error) {
	d, err := e.descriptors.Lookup(name)
	if err != nil {
		return nil, err
	}
	if d.Operation == OpQuery {
		return e.Execute(ctx, name, req, params)
	}
	return e.executeWrite(ctx, d, req)
}

// ExecuteWrite runs a registered write request against the crud backend.
func (e *Engine) ExecuteWrite(ctx context.Context, name string, req Request) (*WriteResponse, error) {
	d, err := e.descriptors.Lookup(name)
	if err != nil {
		return nil, err
	}
	if d.Operation == OpQuery {
		return nil, fmt.Errorf("%q is a query request, not a write", name)
	}
	return e.executeWrite(ctx, d, req)
}

func (e *Engine) executeWrite(ctx context.Context, d *RequestDescriptor, req Request) (*WriteResponse, error) {
	if e.crud == nil {
		return nil, fmt.Errorf("dispatch %q: no crud executor configured", d.Name)
	}
	entity, ok := e.catalog.Entity(d.Entity)
	if !ok {
		return nil, fmt.Errorf("dispatch %q: unknown entity %q", d.Name, d.Entity)
	}
	row := d.Row(req)

	started := time.Now()
	e.bus.Emit(string(WriteStart), newEvent(WriteStart, d))

	resp := &WriteResponse{}
	var err error
	switch d.Operation {
	case OpCreate:
		resp.Row, err = e.crud.Insert(ctx, entity, row)
		resp.RowsAffected = 1
	case OpSave:
		resp.Row, err = e.crud.Save(ctx, entity, row)
		resp.RowsAffected = 1
	case OpUpdate:
		resp.RowsAffected, err = e.crud.Update(ctx, entity, row)
	case OpPatch:
		resp.RowsAffected, err = e.crud.Patch(ctx, entity, row)
	case OpDelete:
		resp.RowsAffected, err = e.crud.Delete(ctx, entity, row)
	default:
		err = fmt.Errorf("dispatch %q: unsupported operation %s", d.Name, d.Operation)
	}

	if err != nil {
		e.logger.Error("write failed",
			zap.String("request", d.Name),
			zap.String("operation", d.Operation.String()),
			zap.Error(err))
		e.bus.Emit(string(WriteFailed), newEvent(WriteFailed, d).withError(err))
		return nil, err
	}

	e.bus.Emit(string(WriteSuccess), newEvent(WriteSuccess, d).withResult(int(resp.RowsAffected), started))
	return resp, nil
}
