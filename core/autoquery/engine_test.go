package autoquery

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEngine(t *testing.T, exec *fakeExecutor, opts *Options) *Engine {
	t.Helper()
	e, err := NewEngine(exec, testCatalog(t), opts)
	require.NoError(t, err)
	e.MustRegister(&RequestDescriptor{Name: "QueryOrders", Entity: "Order"})
	return e
}

func TestEngine_QueryReturnsRows(t *testing.T) {
	exec := &fakeExecutor{selectRows: [][]map[string]any{{
		{"id": int64(1), "city": "Seattle"},
		{"id": int64(2), "city": "Austin"},
	}}}
	e := newTestEngine(t, exec, nil)

	resp, err := e.Query(context.Background(), "QueryOrders", &plainRequest{})
	require.NoError(t, err)
	assert.Len(t, resp.Results, 2)
	assert.Equal(t, 0, resp.Offset)
	assert.Nil(t, resp.Total)
	assert.Nil(t, resp.Meta)
	assert.Equal(t, 0, exec.countCalls)
}

func TestEngine_UnknownRequestType(t *testing.T) {
	e := newTestEngine(t, &fakeExecutor{}, nil)
	_, err := e.Query(context.Background(), "NoSuchRequest", &plainRequest{})
	require.Error(t, err)
}

func TestEngine_IncludeTotalUsesAggregateQuery(t *testing.T) {
	exec := &fakeExecutor{selectRows: [][]map[string]any{
		{{"id": int64(1)}},
		{{"COUNT(*)": int64(123)}},
	}}
	e := newTestEngine(t, exec, nil)

	resp, err := e.Query(context.Background(), "QueryOrders",
		&plainRequest{QueryBase{Include: "total"}})
	require.NoError(t, err)

	// Total comes from the aggregate select, not a third round trip.
	require.NotNil(t, resp.Total)
	assert.Equal(t, int64(123), *resp.Total)
	assert.Equal(t, 0, exec.countCalls)
	assert.Len(t, exec.selects, 2)

	// The promoted COUNT(*) does not leak into Meta.
	assert.Nil(t, resp.Meta)
}

func TestEngine_ExplicitCountBecomesTotal(t *testing.T) {
	exec := &fakeExecutor{selectRows: [][]map[string]any{
		{{"id": int64(1)}},
		{{"count(*)": int64(42)}},
	}}
	e := newTestEngine(t, exec, nil)

	resp, err := e.Query(context.Background(), "QueryOrders",
		&plainRequest{QueryBase{Include: "count(*)"}})
	require.NoError(t, err)

	require.NotNil(t, resp.Total)
	assert.Equal(t, int64(42), *resp.Total)
	assert.Equal(t, 0, exec.countCalls)

	// Unlike the "total" pseudo-command, an aggregate the caller named
	// stays in Meta.
	require.NotNil(t, resp.Meta)
	assert.Equal(t, "42", resp.Meta["count(*)"])
}

func TestEngine_IncludeTotalOptionFallsBackToCount(t *testing.T) {
	exec := &fakeExecutor{countResult: 9}
	opts := DefaultOptions()
	opts.IncludeTotal = true
	e := newTestEngine(t, exec, opts)

	resp, err := e.Query(context.Background(), "QueryOrders", &plainRequest{})
	require.NoError(t, err)
	require.NotNil(t, resp.Total)
	assert.Equal(t, int64(9), *resp.Total)
	assert.Equal(t, 1, exec.countCalls)
}

func TestEngine_AggregatesAndTotalTogether(t *testing.T) {
	exec := &fakeExecutor{selectRows: [][]map[string]any{
		{{"id": int64(1)}},
		{{"COUNT(*)": int64(4), "Sum(Amount)": 77.0}},
	}}
	e := newTestEngine(t, exec, nil)

	resp, err := e.Query(context.Background(), "QueryOrders",
		&plainRequest{QueryBase{Include: "total, Sum(Amount)"}})
	require.NoError(t, err)

	require.NotNil(t, resp.Total)
	assert.Equal(t, int64(4), *resp.Total)
	require.NotNil(t, resp.Meta)
	assert.Equal(t, "77", resp.Meta["Sum(Amount)"])
	assert.NotContains(t, resp.Meta, "COUNT(*)")
}

func TestEngine_OffsetReflectedInResponse(t *testing.T) {
	exec := &fakeExecutor{}
	e := newTestEngine(t, exec, nil)

	resp, err := e.Query(context.Background(), "QueryOrders",
		&plainRequest{QueryBase{Skip: intPtr(30)}})
	require.NoError(t, err)
	assert.Equal(t, 30, resp.Offset)
}

func TestEngine_AssemblerCacheConcurrency(t *testing.T) {
	e := newTestEngine(t, &fakeExecutor{}, nil)

	const workers = 16
	results := make([]*Assembler, workers)
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func(i int) {
			defer wg.Done()
			a, err := e.assembler("QueryOrders")
			assert.NoError(t, err)
			results[i] = a
		}(i)
	}
	wg.Wait()

	// Every caller sees the same published assembler.
	first := results[0]
	require.NotNil(t, first)
	for _, a := range results[1:] {
		assert.Same(t, first, a)
	}
	assert.Len(t, *e.cache.Load(), 1)
}

func TestEngine_SubscribeReceivesLifecycleEvents(t *testing.T) {
	exec := &fakeExecutor{}
	e := newTestEngine(t, exec, nil)

	received := make(chan QueryEvent, 1)
	unsubscribe := e.Subscribe(QuerySuccess, func(ctx context.Context, event QueryEvent) error {
		select {
		case received <- event:
		default:
		}
		return nil
	})
	defer unsubscribe()

	_, err := e.Query(context.Background(), "QueryOrders", &plainRequest{})
	require.NoError(t, err)

	select {
	case event := <-received:
		assert.Equal(t, QuerySuccess, event.Type)
		assert.Equal(t, "QueryOrders", event.Request)
		assert.Equal(t, "Order", event.Entity)
		assert.NotEmpty(t, event.ID)
		require.NotNil(t, event.Rows)
		assert.Equal(t, 0, *event.Rows)
	case <-time.After(2 * time.Second):
		t.Fatal("query success event not delivered")
	}
}

func TestEngine_CustomResponseFilter(t *testing.T) {
	exec := &fakeExecutor{selectRows: [][]map[string]any{{{"id": int64(1)}}}}
	e, err := NewEngine(exec, testCatalog(t), nil,
		WithResponseFilter(func(fc *FilterContext) error {
			if fc.Response.Meta == nil {
				fc.Response.Meta = map[string]string{}
			}
			fc.Response.Meta["stamp"] = "here"
			return nil
		}))
	require.NoError(t, err)
	e.MustRegister(&RequestDescriptor{Name: "QueryOrders", Entity: "Order"})

	resp, err := e.Query(context.Background(), "QueryOrders", &plainRequest{})
	require.NoError(t, err)
	require.NotNil(t, resp.Meta)
	assert.Equal(t, "here", resp.Meta["stamp"])
}

func TestEngine_WriteDispatchRequiresCrudExecutor(t *testing.T) {
	e := newTestEngine(t, &fakeExecutor{}, nil)
	e.MustRegister(&RequestDescriptor{
		Name:      "CreateOrder",
		Operation: OpCreate,
		Entity:    "Order",
		Row:       func(req Request) map[string]any { return map[string]any{"Id": 1} },
	})

	_, err := e.ExecuteWrite(context.Background(), "CreateOrder", &plainRequest{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no crud executor")
}

func TestDescriptorRegistry_Validation(t *testing.T) {
	reg := NewDescriptorRegistry(testCatalog(t))

	assert.Error(t, reg.Register(&RequestDescriptor{Name: "X", Entity: "Nope"}))
	assert.Error(t, reg.Register(&RequestDescriptor{Entity: "Order"}))
	assert.Error(t, reg.Register(&RequestDescriptor{
		Name: "X", Entity: "Order",
		Properties: []PropertySpec{{Name: "Broken"}},
	}))
	assert.Error(t, reg.Register(&RequestDescriptor{
		Name: "X", Entity: "Order", Operation: OpDelete,
	}))

	require.NoError(t, reg.Register(&RequestDescriptor{Name: "X", Entity: "Order"}))
	assert.Error(t, reg.Register(&RequestDescriptor{Name: "x", Entity: "Order"}))

	d, err := reg.Lookup("X")
	require.NoError(t, err)
	assert.Equal(t, "X", d.Name)
}
