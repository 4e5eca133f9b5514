package autoquery

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/asaidimu/go-events"
	"go.uber.org/zap"

	"github.com/asaidimu/go-autoquery/core/convention"
	"github.com/asaidimu/go-autoquery/core/query"
	"github.com/asaidimu/go-autoquery/core/schema"
)

// Engine is the AutoQuery front door. It owns the descriptor registry, the
// convention registry, the assembler cache and the response filter chain, and
// executes requests through the storage backend it was constructed with.
//
// An Engine is safe for concurrent use. The assembler cache is a copy-on-write
// snapshot swapped with compare-and-swap, so the hot read path takes no locks.
type Engine struct {
	executor    Executor
	crud        CrudExecutor
	catalog     *schema.Catalog
	descriptors *DescriptorRegistry
	conventions *convention.Registry
	opts        *Options
	logger      *zap.Logger
	bus         *events.TypedEventBus[QueryEvent]
	filters     []ResponseFilter

	cache atomic.Pointer[map[string]*Assembler]
}

// EngineOption configures optional engine collaborators.
type EngineOption func(*Engine)

// WithLogger sets the engine's logger. The default is a no-op logger.
func WithLogger(logger *zap.Logger) EngineOption {
	return func(e *Engine) { e.logger = logger }
}

// WithConventions replaces the default convention registry.
func WithConventions(reg *convention.Registry) EngineOption {
	return func(e *Engine) { e.conventions = reg }
}

// WithResponseFilter appends a response filter after the built-in aggregate
// filter.
func WithResponseFilter(f ResponseFilter) EngineOption {
	return func(e *Engine) { e.filters = append(e.filters, f) }
}

// WithCrudExecutor sets the write backend when it is not the same value as
// the read executor.
func WithCrudExecutor(crud CrudExecutor) EngineOption {
	return func(e *Engine) { e.crud = crud }
}

// NewEngine constructs an engine over a storage backend and an entity
// catalog. A nil opts uses DefaultOptions. When the executor also implements
// CrudExecutor, write dispatch works without further configuration.
func NewEngine(executor Executor, catalog *schema.Catalog, opts *Options, engineOpts ...EngineOption) (*Engine, error) {
	if executor == nil {
		return nil, fmt.Errorf("autoquery: executor is required")
	}
	if catalog == nil {
		return nil, fmt.Errorf("autoquery: catalog is required")
	}
	if opts == nil {
		opts = DefaultOptions()
	}

	bus, err := newQueryEventBus()
	if err != nil {
		return nil, fmt.Errorf("autoquery: event bus: %w", err)
	}

	e := &Engine{
		executor:    executor,
		catalog:     catalog,
		descriptors: NewDescriptorRegistry(catalog),
		opts:        opts,
		logger:      zap.NewNop(),
		bus:         bus,
		filters:     []ResponseFilter{includeAggregates},
	}
	if crud, ok := executor.(CrudExecutor); ok {
		e.crud = crud
	}
	for _, opt := range engineOpts {
		opt(e)
	}
	if e.conventions == nil {
		e.conventions = convention.NewRegistryBuilder().
			CaseSensitiveLike(opts.CaseSensitiveLike).
			Build()
	}

	empty := make(map[string]*Assembler)
	e.cache.Store(&empty)
	return e, nil
}

// Register registers a request descriptor with the engine.
func (e *Engine) Register(d *RequestDescriptor) error {
	return e.descriptors.Register(d)
}

// MustRegister is Register for static setup code paths.
func (e *Engine) MustRegister(d *RequestDescriptor) {
	e.descriptors.MustRegister(d)
}

// Options returns the engine's resolved options.
func (e *Engine) Options() *Options { return e.opts }

// Conventions returns the engine's convention registry.
func (e *Engine) Conventions() *convention.Registry { return e.conventions }

// Subscribe registers a callback for a lifecycle event type and returns its
// unsubscribe function.
func (e *Engine) Subscribe(eventType QueryEventType, cb QueryEventCallback) func() {
	return e.bus.Subscribe(string(eventType), cb)
}

// assembler returns the cached assembler for a request type, building and
// publishing it on first use. Building is idempotent, so two racing callers
// may both build; the compare-and-swap loop guarantees a single survivor.
func (e *Engine) assembler(name string) (*Assembler, error) {
	key := strings.ToLower(name)
	if a, ok := (*e.cache.Load())[key]; ok {
		return a, nil
	}

	d, err := e.descriptors.Lookup(name)
	if err != nil {
		return nil, err
	}
	built, err := newAssembler(d, e.catalog, e.conventions, e.executor.Dialect(), e.opts)
	if err != nil {
		return nil, err
	}
	e.logger.Debug("built query assembler",
		zap.String("request", d.Name),
		zap.String("entity", d.Entity))

	for {
		cur := e.cache.Load()
		if a, ok := (*cur)[key]; ok {
			return a, nil
		}
		next := make(map[string]*Assembler, len(*cur)+1)
		for k, v := range *cur {
			next[k] = v
		}
		next[key] = built
		if e.cache.CompareAndSwap(cur, &next) {
			return built, nil
		}
	}
}

// CreateQuery assembles the select expression for a request without
// executing it. name is the registered request type; params carries untyped
// dynamic parameters and may be nil.
func (e *Engine) CreateQuery(ctx context.Context, name string, req Request, params map[string]string) (*query.SelectExpression, error) {
	a, err := e.assembler(name)
	if err != nil {
		return nil, err
	}
	return a.Build(ctx, req, params)
}

// Execute assembles and runs a query request end to end: the base select,
// the response filter chain and total resolution.
func (e *Engine) Execute(ctx context.Context, name string, req Request, params map[string]string) (*QueryResponse, error) {
	d, err := e.descriptors.Lookup(name)
	if err != nil {
		return nil, err
	}

	started := time.Now()
	e.bus.Emit(string(QueryStart), newEvent(QueryStart, d))

	resp, err := e.execute(ctx, name, req, params)
	if err != nil {
		e.logger.Error("query failed",
			zap.String("request", d.Name),
			zap.Error(err))
		e.bus.Emit(string(QueryFailed), newEvent(QueryFailed, d).withError(err))
		return nil, err
	}

	e.bus.Emit(string(QuerySuccess), newEvent(QuerySuccess, d).withResult(len(resp.Results), started))
	return resp, nil
}

// Query is Execute without untyped parameters.
func (e *Engine) Query(ctx context.Context, name string, req Request) (*QueryResponse, error) {
	return e.Execute(ctx, name, req, nil)
}

func (e *Engine) execute(ctx context.Context, name string, req Request, params map[string]string) (*QueryResponse, error) {
	a, err := e.assembler(name)
	if err != nil {
		return nil, err
	}
	expr, err := a.Build(ctx, req, params)
	if err != nil {
		return nil, err
	}

	rows, err := e.executor.Select(ctx, expr)
	if err != nil {
		return nil, err
	}

	offset := 0
	if expr.Offset() != nil {
		offset = *expr.Offset()
	}
	resp := &QueryResponse{Offset: offset, Results: rows}

	commands, totalRequested, explicitCount := parseIncludes(req.GetInclude())
	if e.opts.IncludeTotal {
		totalRequested = true
	}

	fc := &FilterContext{
		Context:    ctx,
		Request:    req,
		Commands:   commands,
		Expression: expr,
		Response:   resp,
		Executor:   e.executor,
	}
	for _, f := range e.filters {
		if err := f(fc); err != nil {
			return nil, err
		}
	}

	if totalRequested {
		if err := e.resolveTotal(ctx, expr, resp, explicitCount); err != nil {
			return nil, err
		}
	}
	if len(resp.Meta) == 0 {
		resp.Meta = nil
	}
	return resp, nil
}

// parseIncludes splits the include expression into commands, rewriting the
// "total" pseudo-command into COUNT(*) so a single aggregate query serves it.
// An explicit count() or count(*) also requests the total; explicitCount
// distinguishes it so the COUNT(*) meta entry the caller asked for by name
// survives total promotion.
func parseIncludes(include string) (commands []*Command, totalRequested, explicitCount bool) {
	for _, cmd := range ParseCommands(include) {
		if strings.EqualFold(cmd.Name, "total") && len(cmd.Args) == 0 {
			totalRequested = true
			commands = append(commands, &Command{Name: "COUNT", Args: []string{"*"}})
			continue
		}
		if strings.EqualFold(cmd.Name, "count") {
			if len(cmd.Args) == 0 {
				cmd.Args = []string{"*"}
			}
			if len(cmd.Args) == 1 && cmd.Args[0] == "*" {
				totalRequested = true
				explicitCount = true
			}
		}
		commands = append(commands, cmd)
	}
	return commands, totalRequested, explicitCount
}

// resolveTotal fills Response.Total, preferring a COUNT(*) value the
// aggregate filter already produced over a second backend round trip. keepMeta
// leaves the promoted meta entry in place for explicitly requested counts.
func (e *Engine) resolveTotal(ctx context.Context, expr *query.SelectExpression, resp *QueryResponse, keepMeta bool) error {
	for key, raw := range resp.Meta {
		if !strings.EqualFold(key, "COUNT(*)") {
			continue
		}
		total, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			break
		}
		resp.Total = &total
		if !keepMeta {
			delete(resp.Meta, key)
		}
		return nil
	}

	total, err := e.executor.Count(ctx, expr.Clone().ClearLimits().ClearOrderBy())
	if err != nil {
		return fmt.Errorf("count query: %w", err)
	}
	resp.Total = &total
	return nil
}
