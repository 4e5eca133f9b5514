package autoquery

import (
	"strings"

	"github.com/asaidimu/go-autoquery/core/convention"
	"github.com/asaidimu/go-autoquery/core/query"
	"github.com/asaidimu/go-autoquery/core/schema"
)

// reservedParams are dynamic parameter names the engine consumes itself.
// They never participate in field matching. Keys are lowercase.
var reservedParams = map[string]struct{}{
	"skip":        {},
	"take":        {},
	"orderby":     {},
	"orderbydesc": {},
	"fields":      {},
	"include":     {},
	"_select":     {},
	"_from":       {},
	"_join":       {},
	"_where":      {},
}

// fieldMatch is the outcome of resolving a parameter name against the live
// column namespace of an expression. Filter is nil for a plain match;
// Implicit marks matches produced by name shape rather than by an exact
// field name, e.g. the pluralized form, and lets untyped parsing accept
// multi-value input for them.
type fieldMatch struct {
	Entity   *schema.EntityDefinition
	Field    *schema.FieldDefinition
	Filter   *convention.Filter
	Implicit bool
}

// matchField resolves a parameter name to a field and, when the name carries
// a convention token, the filter that token stands for. Resolution order:
// exact name (including alias and column name), plural with a trailing "s"
// stripped, snake_case with underscores removed, then prefix and suffix
// convention tokens applied to the remainder. A nil return means the name
// addresses nothing and the caller drops the parameter silently.
func matchField(reg *convention.Registry, expr *query.SelectExpression, name string, snakeCaseFallback bool) *fieldMatch {
	if entity, field := expr.FirstMatchingField(name); field != nil {
		return &fieldMatch{Entity: entity, Field: field}
	}

	if strings.HasSuffix(name, "s") {
		if entity, field := expr.FirstMatchingField(name[:len(name)-1]); field != nil {
			// No filter: a sequence value still renders IN through the
			// condition builder, a scalar stays plain equality.
			return &fieldMatch{Entity: entity, Field: field, Implicit: true}
		}
	}

	if snakeCaseFallback && strings.Contains(name, "_") {
		stripped := strings.ReplaceAll(name, "_", "")
		if entity, field := expr.FirstMatchingField(stripped); field != nil {
			return &fieldMatch{Entity: entity, Field: field}
		}
	}

	for _, rule := range reg.Prefixes() {
		if !strings.HasPrefix(name, rule.Token) {
			continue
		}
		remainder := name[len(rule.Token):]
		if entity, field := matchRemainder(expr, remainder); field != nil {
			f := *rule.Filter
			f.Field = field.Name
			return &fieldMatch{Entity: entity, Field: field, Filter: &f}
		}
	}

	for _, rule := range reg.Suffixes() {
		if !strings.HasSuffix(name, rule.Token) {
			continue
		}
		remainder := name[:len(name)-len(rule.Token)]
		if entity, field := matchRemainder(expr, remainder); field != nil {
			f := *rule.Filter
			f.Field = field.Name
			return &fieldMatch{Entity: entity, Field: field, Filter: &f}
		}
	}

	return nil
}

// matchRemainder retries a convention-stripped remainder as a field name,
// with the same trailing-"s" plural fallback the whole-name match gets.
func matchRemainder(expr *query.SelectExpression, name string) (*schema.EntityDefinition, *schema.FieldDefinition) {
	if entity, field := expr.FirstMatchingField(name); field != nil {
		return entity, field
	}
	if strings.HasSuffix(name, "s") {
		return expr.FirstMatchingField(name[:len(name)-1])
	}
	return nil, nil
}
