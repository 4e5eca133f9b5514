package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"github.com/asaidimu/go-autoquery/core/query"
	"github.com/asaidimu/go-autoquery/core/schema"
)

// Executor runs assembled queries and write operations against a SQLite
// database. It implements both the engine's read and write backend
// boundaries.
type Executor struct {
	db     *sql.DB
	logger *zap.Logger
}

// ExecutorOption configures an Executor.
type ExecutorOption func(*Executor)

// WithLogger sets the executor's logger. The default is a no-op logger.
func WithLogger(logger *zap.Logger) ExecutorOption {
	return func(e *Executor) { e.logger = logger }
}

// NewExecutor wraps an open database handle. The handle's lifecycle belongs
// to the caller.
func NewExecutor(db *sql.DB, opts ...ExecutorOption) (*Executor, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlite: db handle is required")
	}
	e := &Executor{db: db, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Dialect returns the SQLite quoting dialect.
func (e *Executor) Dialect() query.Dialect { return Dialect{} }

// Select renders and executes the expression, returning rows keyed by result
// column label.
func (e *Executor) Select(ctx context.Context, expr *query.SelectExpression) ([]map[string]any, error) {
	sqlText, params, err := BuildSelectSQL(expr)
	if err != nil {
		return nil, err
	}
	e.logger.Debug("executing select", zap.String("sql", sqlText), zap.Int("params", len(params)))

	rows, err := e.db.QueryContext(ctx, sqlText, params...)
	if err != nil {
		return nil, fmt.Errorf("select: %w", err)
	}
	defer rows.Close()
	return readRows(rows)
}

// Count renders and executes the matching-row count for the expression.
func (e *Executor) Count(ctx context.Context, expr *query.SelectExpression) (int64, error) {
	sqlText, params, err := BuildCountSQL(expr)
	if err != nil {
		return 0, err
	}
	e.logger.Debug("executing count", zap.String("sql", sqlText))

	var total int64
	if err := e.db.QueryRowContext(ctx, sqlText, params...).Scan(&total); err != nil {
		return 0, fmt.Errorf("count: %w", err)
	}
	return total, nil
}

// Insert stores a new row and returns it as persisted.
func (e *Executor) Insert(ctx context.Context, entity *schema.EntityDefinition, row map[string]any) (map[string]any, error) {
	sqlText, params, err := buildInsertSQL(entity, row)
	if err != nil {
		return nil, err
	}
	return e.queryOneRow(ctx, sqlText, params)
}

// Update replaces every non-key column of the row identified by its primary
// key and reports the number of affected rows.
func (e *Executor) Update(ctx context.Context, entity *schema.EntityDefinition, row map[string]any) (int64, error) {
	sqlText, params, err := buildUpdateSQL(entity, row)
	if err != nil {
		return 0, err
	}
	return e.execAffected(ctx, sqlText, params)
}

// Patch updates only the columns present in the row, identified by its
// primary key. SQLite renders patch and update identically because the row
// already carries just the columns to set.
func (e *Executor) Patch(ctx context.Context, entity *schema.EntityDefinition, row map[string]any) (int64, error) {
	return e.Update(ctx, entity, row)
}

// Delete removes the row identified by its primary key.
func (e *Executor) Delete(ctx context.Context, entity *schema.EntityDefinition, row map[string]any) (int64, error) {
	sqlText, params, err := buildDeleteSQL(entity, row)
	if err != nil {
		return 0, err
	}
	return e.execAffected(ctx, sqlText, params)
}

// Save upserts the row on its primary key and returns it as persisted.
func (e *Executor) Save(ctx context.Context, entity *schema.EntityDefinition, row map[string]any) (map[string]any, error) {
	sqlText, params, err := buildUpsertSQL(entity, row)
	if err != nil {
		return nil, err
	}
	return e.queryOneRow(ctx, sqlText, params)
}

func (e *Executor) queryOneRow(ctx context.Context, sqlText string, params []any) (map[string]any, error) {
	e.logger.Debug("executing write", zap.String("sql", sqlText))

	rows, err := e.db.QueryContext(ctx, sqlText, params...)
	if err != nil {
		return nil, fmt.Errorf("write: %w", err)
	}
	defer rows.Close()

	result, err := readRows(rows)
	if err != nil {
		return nil, err
	}
	if len(result) == 0 {
		return nil, fmt.Errorf("write returned no row")
	}
	return result[0], nil
}

func (e *Executor) execAffected(ctx context.Context, sqlText string, params []any) (int64, error) {
	e.logger.Debug("executing write", zap.String("sql", sqlText))

	res, err := e.db.ExecContext(ctx, sqlText, params...)
	if err != nil {
		return 0, fmt.Errorf("write: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("write: rows affected: %w", err)
	}
	return affected, nil
}

// readRows scans a result set into column-keyed maps. SQLite reports TEXT
// values as []byte through database/sql; those are converted to string so
// callers see plain values.
func readRows(rows *sql.Rows) ([]map[string]any, error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("read columns: %w", err)
	}

	var out []map[string]any
	for rows.Next() {
		values := make([]any, len(columns))
		scan := make([]any, len(columns))
		for i := range values {
			scan[i] = &values[i]
		}
		if err := rows.Scan(scan...); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}

		row := make(map[string]any, len(columns))
		for i, col := range columns {
			value := values[i]
			if b, ok := value.([]byte); ok {
				value = string(b)
			}
			row[col] = value
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return out, nil
}
