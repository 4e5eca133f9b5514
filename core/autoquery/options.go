// Package autoquery implements the AutoQuery translation engine: it converts
// a declaratively-shaped request (typed properties plus arbitrary untyped
// name/value parameters) into a safe, paginated, filtered, sortable query
// expression, executes it through an abstract storage backend, and folds
// requested aggregate values into response metadata.
package autoquery

// Options is the engine's configuration surface. It is resolved once, before
// the engine is constructed, and never mutated afterwards.
type Options struct {
	// MaxLimit clamps the request's take value and acts as the default page
	// size when the request specifies none. Nil means unbounded.
	MaxLimit *int

	// IncludeTotal always computes the total row count, even when the request
	// did not ask for it.
	IncludeTotal bool

	// EnableUntypedQueries allows untyped dynamic parameters (e.g. query
	// string entries) to become filter conditions.
	EnableUntypedQueries bool

	// EnableRawSQLFilters admits the reserved _select/_from/_join/_where
	// dynamic parameters as verbatim SQL fragments, after denylist
	// verification.
	// Leave off unless every caller is trusted.
	EnableRawSQLFilters bool

	// OrderByPrimaryKeyOnPagedQuery forces primary-key ordering on paginated
	// queries that specify no ordering, so pages are stable on backends with
	// no deterministic default order.
	OrderByPrimaryKeyOnPagedQuery bool

	// CaseSensitiveLike builds the convention registry with case-sensitive
	// LIKE-family templates.
	CaseSensitiveLike bool

	// SnakeCaseParams lets parameter names in snake_case fall back to the
	// underscore-stripped form during field matching.
	SnakeCaseParams bool

	// NamedConnection selects a named storage connection; empty uses the
	// default. The engine only records it, the backend interprets it.
	NamedConnection string
}

// DefaultOptions mirrors the engine's historical defaults: untyped queries
// and primary-key paging order on, everything else off.
func DefaultOptions() *Options {
	return &Options{
		EnableUntypedQueries:          true,
		OrderByPrimaryKeyOnPagedQuery: true,
	}
}
